package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"

	"herald/pkg/cache"
	"herald/pkg/config"
	"herald/pkg/database"
	"herald/pkg/logger"
	"herald/pkg/queue"
	"herald/services/notification/internal/entity"
	"herald/services/notification/internal/model"
	"herald/services/notification/internal/payload"
	"herald/services/notification/internal/repo/persistent"
	"herald/services/notification/internal/usecase"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

var testUsers = []struct {
	email    string
	username string
	name     string
}{
	{"alice@test.com", "alice", "Alice"},
	{"bob@test.com", "bob", "Bob"},
	{"charlie@test.com", "charlie", "Charlie"},
	{"diana@test.com", "diana", "Diana"},
	{"eve", "eve", "Eve Without Mail"},
}

var testCommunities = []struct {
	name string
	slug string
}{
	{"Gophers", "gophers"},
	{"Distributed Systems", "distsys"},
}

// seedID derives a stable id so repeated runs update the same rows.
func seedID(kind, key string) string {
	return uuid.NewSHA1(uuid.NameSpaceURL, []byte("herald-seed/"+kind+"/"+key)).String()
}

func main() {
	enqueue := flag.Bool("enqueue", false, "publish a sample ADDED_MODERATOR job for every seeded community")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		panic(fmt.Sprintf("Failed to load config: %v", err))
	}

	log := logger.New()
	db, err := database.NewPostgresDB(cfg)
	if err != nil {
		log.Error("Failed to connect to database: %v", err)
		panic(err)
	}

	redisClient, err := cache.NewRedisClient(cfg)
	if err != nil {
		log.Error("Failed to connect to redis: %v", err)
		panic(err)
	}
	defer redisClient.Close()

	resolver := payload.NewResolver(persistent.NewUserRepository(db), persistent.NewCommunityRepository(db), redisClient, cfg.PayloadCacheTTL, log)

	ctx := context.Background()
	if err := seedDatabase(ctx, db, resolver, log); err != nil {
		log.Error("Failed to seed database: %v", err)
		panic(err)
	}
	log.Info("Database seeded successfully!")

	if !*enqueue {
		return
	}

	queueClient, err := queue.NewRabbitMQClient(cfg, log)
	if err != nil {
		log.Error("Failed to connect to RabbitMQ: %v", err)
		panic(err)
	}
	defer queueClient.Close()

	if err := enqueueSampleJobs(ctx, queueClient); err != nil {
		log.Error("Failed to enqueue sample jobs: %v", err)
		panic(err)
	}
	log.Info("Sample jobs enqueued")
}

func seedDatabase(ctx context.Context, db *gorm.DB, resolver *payload.Resolver, log *logger.Logger) error {
	upsert := clause.OnConflict{Columns: []clause.Column{{Name: "id"}}, UpdateAll: true}

	for _, u := range testUsers {
		user := &model.UserModel{
			ID:       seedID("user", u.username),
			Email:    u.email,
			Username: u.username,
			Name:     u.name,
		}
		if err := db.WithContext(ctx).Clauses(upsert).Create(user).Error; err != nil {
			return fmt.Errorf("failed to seed user %s: %w", u.username, err)
		}
		if err := resolver.Invalidate(ctx, entity.KindUser, user.ID); err != nil {
			log.Warn("Failed to drop cached snapshot for user %s: %v", u.username, err)
		}
		log.Info("Seeded user: %s (%s)", user.Username, user.ID)
	}

	for _, c := range testCommunities {
		community := &model.CommunityModel{
			ID:          seedID("community", c.slug),
			Name:        c.name,
			Slug:        c.slug,
			Description: fmt.Sprintf("Seeded community %s", c.name),
		}
		if err := db.WithContext(ctx).Clauses(upsert).Create(community).Error; err != nil {
			return fmt.Errorf("failed to seed community %s: %w", c.slug, err)
		}
		if err := resolver.Invalidate(ctx, entity.KindCommunity, community.ID); err != nil {
			log.Warn("Failed to drop cached snapshot for community %s: %v", c.slug, err)
		}
		log.Info("Seeded community: %s (%s)", community.Slug, community.ID)
	}

	return nil
}

// enqueueSampleJobs has alice promote every other seeded user in each community.
func enqueueSampleJobs(ctx context.Context, publisher usecase.JobPublisher) error {
	owner := seedID("user", testUsers[0].username)
	for _, c := range testCommunities {
		for _, u := range testUsers[1:] {
			data, err := json.Marshal(usecase.AddedModeratorJob{
				UserID:      owner,
				CommunityID: seedID("community", c.slug),
				ModeratorID: seedID("user", u.username),
			})
			if err != nil {
				return err
			}
			envelope := usecase.JobEnvelope{Type: entity.EventAddedModerator, Data: data}
			if err := publisher.Publish(ctx, queue.JobsQueueName, envelope, 5); err != nil {
				return err
			}
		}
	}
	return nil
}
