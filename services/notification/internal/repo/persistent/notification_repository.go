package persistent

import (
	"context"
	"errors"
	"fmt"
	"time"

	"herald/services/notification/internal/entity"
	"herald/services/notification/internal/model"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type NotificationRepository interface {
	// UpsertOpen appends the event's actors and entities to the unread record for
	// (event.Type, event.Context.ID), creating it when none is open. The lookup
	// and write happen in one statement.
	UpsertOpen(ctx context.Context, event entity.Event) (*entity.Notification, error)
	GetByID(ctx context.Context, id string) (*entity.Notification, error)
	// MarkRead closes the record to further merging.
	MarkRead(ctx context.Context, id string) error
}

type notificationRepository struct {
	db *gorm.DB
}

func NewNotificationRepository(db *gorm.DB) NotificationRepository {
	return &notificationRepository{db: db}
}

// openRecordConflict targets the partial unique index
// notifications_open_key (event, context_id) WHERE is_read = false.
var openRecordConflict = clause.OnConflict{
	Columns:     []clause.Column{{Name: "event"}, {Name: "context_id"}},
	TargetWhere: clause.Where{Exprs: []clause.Expression{clause.Expr{SQL: "is_read = false"}}},
	DoUpdates: clause.Set{
		{Column: clause.Column{Name: "actors"}, Value: gorm.Expr("notifications.actors || EXCLUDED.actors")},
		{Column: clause.Column{Name: "entities"}, Value: gorm.Expr("notifications.entities || EXCLUDED.entities")},
		{Column: clause.Column{Name: "context"}, Value: gorm.Expr("EXCLUDED.context")},
		{Column: clause.Column{Name: "modified_at"}, Value: gorm.Expr("EXCLUDED.modified_at")},
	},
}

func (r *notificationRepository) UpsertOpen(ctx context.Context, event entity.Event) (*entity.Notification, error) {
	m, err := ToNotificationModel(event)
	if err != nil {
		return nil, err
	}
	now := time.Now().UTC()
	m.CreatedAt = now
	m.ModifiedAt = now

	err = r.db.WithContext(ctx).
		Clauses(openRecordConflict, clause.Returning{}).
		Create(m).Error
	if err != nil {
		return nil, fmt.Errorf("failed to upsert notification: %w", err)
	}

	return ToNotificationEntity(m)
}

func (r *notificationRepository) GetByID(ctx context.Context, id string) (*entity.Notification, error) {
	var m model.NotificationModel
	err := r.db.WithContext(ctx).Where("id = ?", id).First(&m).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, entity.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get notification: %w", err)
	}
	return ToNotificationEntity(&m)
}

func (r *notificationRepository) MarkRead(ctx context.Context, id string) error {
	result := r.db.WithContext(ctx).
		Model(&model.NotificationModel{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{
			"is_read":     true,
			"modified_at": time.Now().UTC(),
		})
	if result.Error != nil {
		return fmt.Errorf("failed to mark notification read: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return entity.ErrNotFound
	}
	return nil
}
