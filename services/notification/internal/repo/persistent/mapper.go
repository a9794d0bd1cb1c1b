package persistent

import (
	"encoding/json"
	"fmt"

	"herald/services/notification/internal/entity"
	"herald/services/notification/internal/model"

	"gorm.io/datatypes"
)

func ToUserEntity(m *model.UserModel) *entity.User {
	if m == nil {
		return nil
	}
	return &entity.User{
		ID:           m.ID,
		Email:        m.Email,
		Username:     m.Username,
		Name:         m.Name,
		ProfilePhoto: m.ProfilePhoto,
		CreatedAt:    m.CreatedAt,
	}
}

func ToCommunityEntity(m *model.CommunityModel) *entity.Community {
	if m == nil {
		return nil
	}
	return &entity.Community{
		ID:           m.ID,
		Name:         m.Name,
		Slug:         m.Slug,
		Description:  m.Description,
		ProfilePhoto: m.ProfilePhoto,
		CreatedAt:    m.CreatedAt,
	}
}

// ToNotificationModel encodes the event's snapshots as JSON columns.
func ToNotificationModel(event entity.Event) (*model.NotificationModel, error) {
	context, err := json.Marshal(event.Context)
	if err != nil {
		return nil, fmt.Errorf("failed to encode context: %w", err)
	}
	actors, err := marshalPayloads(event.Actors)
	if err != nil {
		return nil, fmt.Errorf("failed to encode actors: %w", err)
	}
	entities, err := marshalPayloads(event.Entities)
	if err != nil {
		return nil, fmt.Errorf("failed to encode entities: %w", err)
	}

	return &model.NotificationModel{
		Event:     string(event.Type),
		ContextID: event.Context.ID,
		Context:   datatypes.JSON(context),
		Actors:    actors,
		Entities:  entities,
	}, nil
}

func ToNotificationEntity(m *model.NotificationModel) (*entity.Notification, error) {
	n := &entity.Notification{
		ID:         m.ID,
		Event:      entity.EventType(m.Event),
		IsRead:     m.IsRead,
		CreatedAt:  m.CreatedAt,
		ModifiedAt: m.ModifiedAt,
	}
	if err := json.Unmarshal(m.Context, &n.Context); err != nil {
		return nil, fmt.Errorf("failed to decode context of notification %s: %w", m.ID, err)
	}
	if err := json.Unmarshal(m.Actors, &n.Actors); err != nil {
		return nil, fmt.Errorf("failed to decode actors of notification %s: %w", m.ID, err)
	}
	if err := json.Unmarshal(m.Entities, &n.Entities); err != nil {
		return nil, fmt.Errorf("failed to decode entities of notification %s: %w", m.ID, err)
	}
	return n, nil
}

func ToUsersNotificationEntity(m *model.UsersNotificationModel) *entity.UsersNotification {
	return &entity.UsersNotification{
		ID:             m.ID,
		UserID:         m.UserID,
		NotificationID: m.NotificationID,
		IsRead:         m.IsRead,
		IsSeen:         m.IsSeen,
		CreatedAt:      m.CreatedAt,
		EntityAddedAt:  m.EntityAddedAt,
	}
}

func ToInboxEntries(models []model.UsersNotificationModel) ([]entity.InboxEntry, error) {
	entries := make([]entity.InboxEntry, 0, len(models))
	for i := range models {
		n, err := ToNotificationEntity(&models[i].Notification)
		if err != nil {
			return nil, err
		}
		entries = append(entries, entity.InboxEntry{
			Notification:  *n,
			IsRead:        models[i].IsRead,
			IsSeen:        models[i].IsSeen,
			EntityAddedAt: models[i].EntityAddedAt,
		})
	}
	return entries, nil
}

// marshalPayloads always yields a JSON array so jsonb concatenation appends.
func marshalPayloads(payloads []entity.Payload) (datatypes.JSON, error) {
	if payloads == nil {
		payloads = []entity.Payload{}
	}
	b, err := json.Marshal(payloads)
	if err != nil {
		return nil, err
	}
	return datatypes.JSON(b), nil
}
