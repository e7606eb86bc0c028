package notification

import (
	"errors"

	"github.com/finalcall/auction-api/internal/types"
	"gorm.io/gorm"
)

type Database struct {
	db *gorm.DB
}

func NewDatabase(db *gorm.DB) *Database {
	return &Database{db: db}
}

func (d *Database) CreateNotification(n *types.Notification) error {
	return d.db.Create(n).Error
}

func (d *Database) GetNotificationsForUser(userID int64) ([]types.Notification, error) {
	var notifications []types.Notification
	err := d.db.
		Where("user_id = ?", userID).
		Order("timestamp DESC").
		Find(&notifications).Error
	if err != nil {
		return nil, err
	}
	return notifications, nil
}

func (d *Database) GetNotification(notificationID string) (*types.Notification, error) {
	var n types.Notification
	if err := d.db.Where("notification_id = ?", notificationID).First(&n).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &n, nil
}

func (d *Database) SaveNotification(n *types.Notification) error {
	return d.db.Save(n).Error
}
