package clients

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/finalcall/auction-api/internal/rpc"
	"github.com/finalcall/auction-api/internal/types"
)

// Peer service names as registered with the transport.
const (
	ServiceAuth      = "auth"
	ServiceCatalogue = "catalogue"
)

// UserClient resolves users through the authentication service's internal
// websocket channel.
type UserClient struct {
	transport *rpc.Transport
}

func NewUserClient(transport *rpc.Transport) *UserClient {
	return &UserClient{transport: transport}
}

func (c *UserClient) GetUserByID(ctx context.Context, userID int64) (*types.UserDTO, error) {
	data, err := c.transport.Send(ctx, ServiceAuth, "user.getById", map[string]int64{"userId": userID})
	if err != nil {
		return nil, err
	}

	var user types.UserDTO
	if err := json.Unmarshal(data, &user); err != nil {
		return nil, fmt.Errorf("decode user %d: %w", userID, err)
	}
	return &user, nil
}

// ItemClient resolves catalogue items through the catalogue service's
// internal websocket channel.
type ItemClient struct {
	transport *rpc.Transport
}

func NewItemClient(transport *rpc.Transport) *ItemClient {
	return &ItemClient{transport: transport}
}

func (c *ItemClient) GetItemByID(ctx context.Context, itemID int64) (*types.ItemDTO, error) {
	data, err := c.transport.Send(ctx, ServiceCatalogue, "item.getById", map[string]int64{"itemId": itemID})
	if err != nil {
		return nil, err
	}

	var item types.ItemDTO
	if err := json.Unmarshal(data, &item); err != nil {
		return nil, fmt.Errorf("decode item %d: %w", itemID, err)
	}
	return &item, nil
}
