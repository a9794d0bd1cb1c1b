package payload

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"herald/pkg/logger"
	"herald/services/notification/internal/entity"
	"herald/services/notification/internal/repo/persistent"

	"github.com/redis/go-redis/v9"
)

// Resolver turns entity references into snapshots. Snapshots are cached in
// Redis under payload:<KIND>:<id>; the cache is optional and its failures only
// cost a store round trip.
type Resolver struct {
	users       persistent.UserRepository
	communities persistent.CommunityRepository
	redisClient *redis.Client
	ttl         time.Duration
	logger      *logger.Logger
}

func NewResolver(users persistent.UserRepository, communities persistent.CommunityRepository, redisClient *redis.Client, ttl time.Duration, log *logger.Logger) *Resolver {
	return &Resolver{
		users:       users,
		communities: communities,
		redisClient: redisClient,
		ttl:         ttl,
		logger:      log,
	}
}

type userSnapshot struct {
	ID           string `json:"id"`
	Name         string `json:"name"`
	Username     string `json:"username"`
	ProfilePhoto string `json:"profilePhoto,omitempty"`
}

type communitySnapshot struct {
	ID           string `json:"id"`
	Name         string `json:"name"`
	Slug         string `json:"slug"`
	ProfilePhoto string `json:"profilePhoto,omitempty"`
}

func cacheKey(kind entity.Kind, id string) string {
	return fmt.Sprintf("payload:%s:%s", kind, id)
}

// Resolve returns the snapshot for (kind, id). A missing record yields an
// error wrapping entity.ErrNotFound.
func (r *Resolver) Resolve(ctx context.Context, kind entity.Kind, id string) (entity.Payload, error) {
	if !kind.Valid() {
		return entity.Payload{}, fmt.Errorf("unknown payload kind %q", kind)
	}
	if id == "" {
		return entity.Payload{}, fmt.Errorf("%s with empty id: %w", kind, entity.ErrNotFound)
	}

	if cached, ok := r.fromCache(ctx, kind, id); ok {
		return entity.Payload{ID: id, Type: kind, Payload: cached}, nil
	}

	raw, err := r.load(ctx, kind, id)
	if err != nil {
		return entity.Payload{}, err
	}

	r.store(ctx, kind, id, raw)
	return entity.Payload{ID: id, Type: kind, Payload: raw}, nil
}

func (r *Resolver) load(ctx context.Context, kind entity.Kind, id string) (json.RawMessage, error) {
	var snapshot interface{}
	switch kind {
	case entity.KindUser:
		u, err := r.users.GetByID(ctx, id)
		if err != nil {
			return nil, fmt.Errorf("failed to fetch %s %s: %w", kind, id, err)
		}
		snapshot = userSnapshot{ID: u.ID, Name: u.Name, Username: u.Username, ProfilePhoto: u.ProfilePhoto}
	case entity.KindCommunity:
		c, err := r.communities.GetByID(ctx, id)
		if err != nil {
			return nil, fmt.Errorf("failed to fetch %s %s: %w", kind, id, err)
		}
		snapshot = communitySnapshot{ID: c.ID, Name: c.Name, Slug: c.Slug, ProfilePhoto: c.ProfilePhoto}
	}

	raw, err := json.Marshal(snapshot)
	if err != nil {
		return nil, fmt.Errorf("failed to encode %s %s: %w", kind, id, err)
	}
	return raw, nil
}

func (r *Resolver) fromCache(ctx context.Context, kind entity.Kind, id string) (json.RawMessage, bool) {
	if r.redisClient == nil {
		return nil, false
	}

	val, err := r.redisClient.Get(ctx, cacheKey(kind, id)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false
	}
	if err != nil {
		r.logger.Warn("[PAYLOAD] Cache read failed for %s %s: %v", kind, id, err)
		return nil, false
	}
	if !json.Valid(val) {
		r.logger.Warn("[PAYLOAD] Ignoring corrupt cache entry for %s %s", kind, id)
		return nil, false
	}
	return json.RawMessage(val), true
}

func (r *Resolver) store(ctx context.Context, kind entity.Kind, id string, raw json.RawMessage) {
	if r.redisClient == nil {
		return
	}
	if err := r.redisClient.Set(ctx, cacheKey(kind, id), []byte(raw), r.ttl).Err(); err != nil {
		r.logger.Warn("[PAYLOAD] Cache write failed for %s %s: %v", kind, id, err)
	}
}

// Invalidate drops the cached snapshot so the next Resolve reads the store.
func (r *Resolver) Invalidate(ctx context.Context, kind entity.Kind, id string) error {
	if r.redisClient == nil {
		return nil
	}
	return r.redisClient.Del(ctx, cacheKey(kind, id)).Err()
}
