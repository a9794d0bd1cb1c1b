package entity

import "time"

// EventType classifies what happened. It is half of the aggregation key.
type EventType string

const (
	EventAddedModerator                  EventType = "ADDED_MODERATOR"
	EventPrivateCommunityRequestApproved EventType = "PRIVATE_COMMUNITY_REQUEST_APPROVED"
)

// Event is the transient description of one occurrence, built per job and
// merged into a stored Notification.
type Event struct {
	Type     EventType
	Actors   []Payload
	Context  Payload
	Entities []Payload
}

// Notification is the shared record many users link to. At most one unread
// record exists per (Event, Context.ID).
type Notification struct {
	ID         string    `json:"id"`
	Event      EventType `json:"event"`
	Context    Payload   `json:"context"`
	Actors     []Payload `json:"actors"`
	Entities   []Payload `json:"entities"`
	IsRead     bool      `json:"is_read"`
	CreatedAt  time.Time `json:"created_at"`
	ModifiedAt time.Time `json:"modified_at"`
}

// UsersNotification links one user to one Notification and carries that
// user's read state.
type UsersNotification struct {
	ID             string    `json:"id"`
	UserID         string    `json:"user_id"`
	NotificationID string    `json:"notification_id"`
	IsRead         bool      `json:"is_read"`
	IsSeen         bool      `json:"is_seen"`
	CreatedAt      time.Time `json:"created_at"`
	EntityAddedAt  time.Time `json:"entity_added_at"`
}

// InboxEntry is a Notification as seen by one user.
type InboxEntry struct {
	Notification
	IsRead        bool      `json:"is_read"`
	IsSeen        bool      `json:"is_seen"`
	EntityAddedAt time.Time `json:"entity_added_at"`
}
