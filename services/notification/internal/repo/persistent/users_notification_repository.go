package persistent

import (
	"context"
	"fmt"
	"time"

	"herald/services/notification/internal/entity"
	"herald/services/notification/internal/model"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type UsersNotificationRepository interface {
	// Upsert links the user to the notification. An existing link is surfaced
	// again as unseen instead of being duplicated.
	Upsert(ctx context.Context, notificationID, userID string) (*entity.UsersNotification, error)
	ListForUser(ctx context.Context, userID string, limit, offset int) ([]entity.InboxEntry, int64, error)
	MarkRead(ctx context.Context, userID, notificationID string) error
}

type usersNotificationRepository struct {
	db *gorm.DB
}

func NewUsersNotificationRepository(db *gorm.DB) UsersNotificationRepository {
	return &usersNotificationRepository{db: db}
}

var linkConflict = clause.OnConflict{
	Columns: []clause.Column{{Name: "user_id"}, {Name: "notification_id"}},
	DoUpdates: clause.Set{
		{Column: clause.Column{Name: "is_read"}, Value: false},
		{Column: clause.Column{Name: "is_seen"}, Value: false},
		{Column: clause.Column{Name: "entity_added_at"}, Value: gorm.Expr("EXCLUDED.entity_added_at")},
	},
}

func (r *usersNotificationRepository) Upsert(ctx context.Context, notificationID, userID string) (*entity.UsersNotification, error) {
	now := time.Now().UTC()
	m := &model.UsersNotificationModel{
		UserID:         userID,
		NotificationID: notificationID,
		CreatedAt:      now,
		EntityAddedAt:  now,
	}

	err := r.db.WithContext(ctx).
		Omit("Notification").
		Clauses(linkConflict, clause.Returning{}).
		Create(m).Error
	if err != nil {
		return nil, fmt.Errorf("failed to upsert users notification: %w", err)
	}

	return ToUsersNotificationEntity(m), nil
}

func (r *usersNotificationRepository) ListForUser(ctx context.Context, userID string, limit, offset int) ([]entity.InboxEntry, int64, error) {
	query := r.db.WithContext(ctx).Model(&model.UsersNotificationModel{}).Where("user_id = ?", userID)

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, fmt.Errorf("failed to count notifications: %w", err)
	}

	var models []model.UsersNotificationModel
	err := query.
		Preload("Notification").
		Order("entity_added_at DESC").
		Limit(limit).
		Offset(offset).
		Find(&models).Error
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list notifications: %w", err)
	}

	entries, err := ToInboxEntries(models)
	if err != nil {
		return nil, 0, err
	}
	return entries, total, nil
}

func (r *usersNotificationRepository) MarkRead(ctx context.Context, userID, notificationID string) error {
	result := r.db.WithContext(ctx).
		Model(&model.UsersNotificationModel{}).
		Where("user_id = ? AND notification_id = ?", userID, notificationID).
		Updates(map[string]interface{}{"is_read": true, "is_seen": true})
	if result.Error != nil {
		return fmt.Errorf("failed to mark users notification read: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return entity.ErrNotFound
	}
	return nil
}
