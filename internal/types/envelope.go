package types

import "encoding/json"

// Envelope is the single wire format shared by the inter-service RPC channel
// and subscriber broadcasts. Requests carry requestId+type+data, responses
// echo the requestId with data or error, broadcasts omit requestId.
type Envelope struct {
	RequestID string          `json:"requestId,omitempty"`
	Type      string          `json:"type,omitempty"`
	Data      json.RawMessage `json:"data,omitempty"`
	Error     string          `json:"error,omitempty"`
}

// NewEnvelope builds an envelope with the payload marshalled into Data.
func NewEnvelope(requestID, msgType string, payload interface{}) (Envelope, error) {
	env := Envelope{RequestID: requestID, Type: msgType}
	if payload != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			return env, err
		}
		env.Data = data
	}
	return env, nil
}
