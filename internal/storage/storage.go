// Package storage is the durable side of the chat core: rooms and messages in
// PostgreSQL via GORM, plus Redis for the fan-out event bus and typing-key
// soft state. The message log is append-only; the only mutation ever applied
// to a persisted message is the one-way read flag.
package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"

	"marketchat/backend/internal/config"
	"marketchat/backend/internal/models"
)

// ErrNotFound is returned when a requested entity does not exist.
var ErrNotFound = errors.New("not found")

// eventsChannel is the Redis Pub/Sub channel carrying every fan-out event.
// Publishes happen only after the corresponding write is durable, so
// subscribers never observe a message the store could still lose.
const eventsChannel = "chat:events"

type Storage interface {
	// Users
	SaveUser(user *models.User) error
	GetUserByID(id string) (*models.User, error)
	EnsureUser(email, displayName string) (*models.User, error)

	// Rooms
	CreateRoomIfAbsent(room *models.Room) (*models.Room, error)
	GetRoomByID(roomID string) (*models.Room, error)
	ListRoomsForUser(userID string) ([]models.Room, error)

	// Messages
	AppendMessage(msg *models.Message) error
	ListMessages(roomID string, afterSeq int64, limit int) ([]models.Message, error)
	LastMessage(roomID string) (*models.Message, error)
	MarkReadUpTo(roomID, readerID string, uptoSeq int64) (int64, error)
	HasUnread(roomID, userID string) (bool, error)
	UnreadRoomIDs(userID string) ([]string, error)

	// Idempotent sends
	FindIdempotency(senderID, roomID, key string) (*models.Idempotency, error)
	SaveIdempotency(rec *models.Idempotency) error
	GetMessageByID(id uint) (*models.Message, error)

	// Listings (read-only collaborator)
	GetListing(id string) (*models.Listing, error)

	// Event bus / soft state
	PublishEvent(event models.Event) error
	SubscribeEvents() *redis.PubSub
	TouchTyping(roomID, userID string) error
}

type Service struct {
	DB    *gorm.DB
	Redis *redis.Client
	Ctx   context.Context
}

// NewStorageService Constructor
func NewStorageService(db *gorm.DB, rdb *redis.Client) *Service {
	return &Service{
		DB:    db,
		Redis: rdb,
		Ctx:   context.Background(),
	}
}

// PublishEvent publishes a fan-out event on the shared Redis channel.
// Callers must only publish events whose backing write is already durable.
func (s *Service) PublishEvent(event models.Event) error {
	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}
	return s.Redis.Publish(s.Ctx, eventsChannel, payload).Err()
}

// SubscribeEvents subscribes to the shared event channel.
func (s *Service) SubscribeEvents() *redis.PubSub {
	return s.Redis.Subscribe(s.Ctx, eventsChannel)
}

// TouchTyping refreshes the short-lived typing key for (room, user).
// The TTL is the backstop against stale presence state; receivers expire
// indicators locally on the same window.
func (s *Service) TouchTyping(roomID, userID string) error {
	key := "typing:" + roomID + ":" + userID
	return s.Redis.Set(s.Ctx, key, "1", config.TypingTTL).Err()
}
