package usecase

import (
	"encoding/json"
	"fmt"

	"herald/services/notification/internal/entity"
)

// Job describes one notification-producing event: which snapshots to fetch,
// how to assemble them into an Event, and who receives the result.
type Job interface {
	EventType() entity.EventType
	Validate() error
	// Refs lists the snapshots to resolve, in the order BuildEvent expects them.
	Refs() []entity.Ref
	BuildEvent(payloads []entity.Payload) entity.Event
	RecipientIDs() []string
	// ContextID is the community the external delivery trigger runs for.
	ContextID() string
}

// JobEnvelope is the message format on the jobs queue.
type JobEnvelope struct {
	Type entity.EventType `json:"type"`
	Data json.RawMessage  `json:"data"`
}

var jobFactories = map[entity.EventType]func() Job{
	entity.EventAddedModerator:                  func() Job { return &AddedModeratorJob{} },
	entity.EventPrivateCommunityRequestApproved: func() Job { return &PrivateCommunityRequestApprovedJob{} },
}

// DecodeJob builds and validates the job registered for eventType.
func DecodeJob(eventType entity.EventType, data json.RawMessage) (Job, error) {
	factory, ok := jobFactories[eventType]
	if !ok {
		return nil, fmt.Errorf("%w: unknown job type %q", ErrInvalidJob, eventType)
	}

	job := factory()
	if len(data) == 0 {
		return nil, fmt.Errorf("%w: %s job without data", ErrInvalidJob, eventType)
	}
	if err := json.Unmarshal(data, job); err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrInvalidJob, eventType, err)
	}
	if err := job.Validate(); err != nil {
		return nil, err
	}
	return job, nil
}

func requireIDs(eventType entity.EventType, fields map[string]string) error {
	for name, value := range fields {
		if value == "" {
			return fmt.Errorf("%w: %s job missing %s", ErrInvalidJob, eventType, name)
		}
	}
	return nil
}

// AddedModeratorJob is emitted when UserID promotes ModeratorID in CommunityID.
type AddedModeratorJob struct {
	ModeratorID string `json:"moderatorId"`
	CommunityID string `json:"communityId"`
	UserID      string `json:"userId"`
}

func (j *AddedModeratorJob) EventType() entity.EventType { return entity.EventAddedModerator }

func (j *AddedModeratorJob) Validate() error {
	return requireIDs(j.EventType(), map[string]string{
		"moderatorId": j.ModeratorID,
		"communityId": j.CommunityID,
		"userId":      j.UserID,
	})
}

func (j *AddedModeratorJob) Refs() []entity.Ref {
	return []entity.Ref{
		{Kind: entity.KindUser, ID: j.UserID},
		{Kind: entity.KindCommunity, ID: j.CommunityID},
		{Kind: entity.KindUser, ID: j.ModeratorID},
	}
}

// BuildEvent records both the promoting user and the new moderator as actors.
func (j *AddedModeratorJob) BuildEvent(p []entity.Payload) entity.Event {
	actor, community, moderator := p[0], p[1], p[2]
	return entity.Event{
		Type:     entity.EventAddedModerator,
		Actors:   []entity.Payload{actor, moderator},
		Context:  community,
		Entities: []entity.Payload{community},
	}
}

func (j *AddedModeratorJob) RecipientIDs() []string { return []string{j.ModeratorID} }

func (j *AddedModeratorJob) ContextID() string { return j.CommunityID }

// PrivateCommunityRequestApprovedJob is emitted when ModeratorID lets UserID
// into the private community CommunityID.
type PrivateCommunityRequestApprovedJob struct {
	UserID      string `json:"userId"`
	CommunityID string `json:"communityId"`
	ModeratorID string `json:"moderatorId"`
}

func (j *PrivateCommunityRequestApprovedJob) EventType() entity.EventType {
	return entity.EventPrivateCommunityRequestApproved
}

func (j *PrivateCommunityRequestApprovedJob) Validate() error {
	return requireIDs(j.EventType(), map[string]string{
		"userId":      j.UserID,
		"communityId": j.CommunityID,
		"moderatorId": j.ModeratorID,
	})
}

func (j *PrivateCommunityRequestApprovedJob) Refs() []entity.Ref {
	return []entity.Ref{
		{Kind: entity.KindUser, ID: j.ModeratorID},
		{Kind: entity.KindCommunity, ID: j.CommunityID},
	}
}

func (j *PrivateCommunityRequestApprovedJob) BuildEvent(p []entity.Payload) entity.Event {
	moderator, community := p[0], p[1]
	return entity.Event{
		Type:     entity.EventPrivateCommunityRequestApproved,
		Actors:   []entity.Payload{moderator},
		Context:  community,
		Entities: []entity.Payload{community},
	}
}

func (j *PrivateCommunityRequestApprovedJob) RecipientIDs() []string { return []string{j.UserID} }

func (j *PrivateCommunityRequestApprovedJob) ContextID() string { return j.CommunityID }
