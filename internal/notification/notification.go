package notification

import (
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/finalcall/auction-api/internal/types"
	"github.com/finalcall/auction-api/pkg/response"
)

var ErrNotificationNotFound = errors.New("notification not found")

// Service owns notification persistence. Notifications are created by the
// event fan-out and mutated only by the recipient marking them read.
type Service struct {
	db *Database
}

func NewService(gormDB *gorm.DB) *Service {
	return &Service{db: NewDatabase(gormDB)}
}

// CreateNotification persists the notification, assigning its id and
// timestamp when the caller left them unset.
func (s *Service) CreateNotification(n *types.Notification) error {
	if n.NotificationID == "" {
		n.NotificationID = uuid.New().String()
	}
	if n.Timestamp.IsZero() {
		n.Timestamp = time.Now().UTC()
	}
	return s.db.CreateNotification(n)
}

// ListForUser returns a user's notifications newest-first.
func (s *Service) ListForUser(userID int64) ([]types.Notification, error) {
	return s.db.GetNotificationsForUser(userID)
}

// MarkRead flips the read flag. Marking an already-read notification again
// is a no-op, not an error.
func (s *Service) MarkRead(notificationID string, userID int64) (*types.Notification, error) {
	n, err := s.db.GetNotification(notificationID)
	if err != nil {
		return nil, err
	}
	if n == nil || n.UserID != userID {
		return nil, fmt.Errorf("%w: %s", ErrNotificationNotFound, notificationID)
	}
	if n.Read {
		return n, nil
	}

	n.Read = true
	if err := s.db.SaveNotification(n); err != nil {
		return nil, fmt.Errorf("persist notification %s: %w", notificationID, err)
	}
	return n, nil
}

// GinHandlers contains HTTP handlers for notification endpoints
type GinHandlers struct {
	service *Service
}

func NewGinHandlers(service *Service) *GinHandlers {
	return &GinHandlers{service: service}
}

// ListHandler handles GET requests for a user's notifications
func (h *GinHandlers) ListHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		userID, err := strconv.ParseInt(c.Param("user_id"), 10, 64)
		if err != nil {
			response.BadRequest(c, "Invalid user ID")
			return
		}

		notifications, err := h.service.ListForUser(userID)
		if err != nil {
			response.InternalError(c, "Failed to load notifications")
			return
		}
		response.Success(c, notifications)
	}
}

// MarkReadHandler handles POST requests marking one notification read
// URL parameter: notification_id; body carries the acting user id
func (h *GinHandlers) MarkReadHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		var req struct {
			UserID int64 `json:"user_id"`
		}
		if err := c.ShouldBindJSON(&req); err != nil {
			response.BadRequest(c, err.Error())
			return
		}

		n, err := h.service.MarkRead(c.Param("notification_id"), req.UserID)
		if err != nil {
			if errors.Is(err, ErrNotificationNotFound) {
				response.NotFound(c, err.Error())
				return
			}
			response.InternalError(c, "Failed to update notification")
			return
		}
		response.Success(c, n)
	}
}
