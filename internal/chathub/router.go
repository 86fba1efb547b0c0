package chathub

import (
	"fmt"
	"log"
	"strings"
	"sync"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	"github.com/samber/lo"

	"marketchat/backend/internal/config"
	"marketchat/backend/internal/models"
	"marketchat/backend/internal/storage"
)

// ListingResolver resolves a listing reference to a display title. Unknown
// references resolve to an empty title; the chat core never validates them.
type ListingResolver interface {
	ResolveTitle(listingID string) string
}

// Router is the delivery core. Every mutation of one room (sequence
// assignment, persistence, read-marking, publish) runs under that room's
// lock, so concurrent sends to the same room are serialized while different
// rooms proceed in parallel. Events are published only after the backing
// write is durable.
type Router struct {
	Storage  storage.Storage
	Unread   *Unread
	Listings ListingResolver

	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

func NewRouter(s storage.Storage, unread *Unread, listings ListingResolver) *Router {
	return &Router{
		Storage:  s,
		Unread:   unread,
		Listings: listings,
		locks:    make(map[string]*sync.Mutex),
	}
}

// roomLock returns the mutex owning the room, creating it on first use.
func (r *Router) roomLock(roomID string) *sync.Mutex {
	r.mu.Lock()
	defer r.mu.Unlock()
	l, ok := r.locks[roomID]
	if !ok {
		l = &sync.Mutex{}
		r.locks[roomID] = l
	}
	return l
}

// GetOrCreateRoom resolves the room for (caller, other, listing), creating it
// lazily on first use. Either participant order resolves to the same room;
// concurrent first-time calls create at most one row (insert-if-absent on
// the dedup key).
func (r *Router) GetOrCreateRoom(callerID, otherID string, listingID *string) (*models.Room, error) {
	if callerID == otherID {
		return nil, ErrSelfChat
	}
	if _, err := r.Storage.GetUserByID(otherID); err != nil {
		return nil, fmt.Errorf("%w: %s", ErrUnknownUser, otherID)
	}

	room := models.NewRoom(uuid.New().String(), callerID, otherID, listingID)
	created, err := r.Storage.CreateRoomIfAbsent(room)
	if err != nil {
		return nil, fmt.Errorf("create room: %w", err)
	}
	return created, nil
}

// RoomForParticipant loads the room and verifies userID belongs to it.
func (r *Router) RoomForParticipant(roomID, userID string) (*models.Room, error) {
	room, err := r.Storage.GetRoomByID(roomID)
	if err != nil {
		return nil, ErrRoomNotFound
	}
	if !room.HasParticipant(userID) {
		return nil, ErrNotParticipant
	}
	return room, nil
}

// Send validates, persists and fans out one message. The send is atomic:
// a persistence failure aborts the whole operation and nothing is broadcast,
// while a failed broadcast never fails a persisted send. An idempotency key
// replays the originally created message instead of appending a duplicate.
func (r *Router) Send(roomID, senderID, body, idempotencyKey string) (*models.Message, error) {
	room, err := r.RoomForParticipant(roomID, senderID)
	if err != nil {
		return nil, err
	}

	body = strings.TrimSpace(body)
	if body == "" {
		return nil, ErrEmptyBody
	}
	if utf8.RuneCountInString(body) > config.MaxMessageLength {
		return nil, ErrBodyTooLong
	}

	lock := r.roomLock(roomID)
	lock.Lock()
	defer lock.Unlock()

	if idempotencyKey != "" {
		rec, err := r.Storage.FindIdempotency(senderID, roomID, idempotencyKey)
		if err != nil {
			return nil, fmt.Errorf("idempotency lookup: %w", err)
		}
		if rec != nil {
			return r.Storage.GetMessageByID(rec.MessageID)
		}
	}

	msg := &models.Message{
		RoomID:    roomID,
		SenderID:  senderID,
		Body:      body,
		ListingID: room.ListingID,
	}
	if err := r.Storage.AppendMessage(msg); err != nil {
		return nil, fmt.Errorf("persist message: %w", err)
	}

	if idempotencyKey != "" {
		rec := &models.Idempotency{
			SenderID:  senderID,
			RoomID:    roomID,
			Key:       idempotencyKey,
			MessageID: msg.ID,
			ExpiresAt: time.Now().Add(config.IdempotencyTTL),
		}
		if err := r.Storage.SaveIdempotency(rec); err != nil {
			// The send already succeeded; a retry will simply re-append.
			log.Printf("WARNING: Failed to record idempotency key for room %s: %v", roomID, err)
		}
	}

	// Write-before-broadcast: the message is durable at this point.
	if err := r.Storage.PublishEvent(models.Event{
		Kind:    models.KindNewMessage,
		RoomID:  roomID,
		Message: msg,
	}); err != nil {
		log.Printf("WARNING: Failed to publish message event for room %s: %v", roomID, err)
	}

	r.Unread.OnMessageSent(roomID, room.OtherParticipant(senderID))
	return msg, nil
}

// ListMessages returns a page of the room's messages, oldest to newest,
// starting after afterSeq.
func (r *Router) ListMessages(roomID, requesterID string, afterSeq int64, limit int) ([]models.Message, error) {
	if _, err := r.RoomForParticipant(roomID, requesterID); err != nil {
		return nil, err
	}
	if limit <= 0 {
		limit = config.DefaultPageSize
	}
	if limit > config.MaxPageSize {
		limit = config.MaxPageSize
	}
	return r.Storage.ListMessages(roomID, afterSeq, limit)
}

// MarkRead marks every message from the other participant, up to the room's
// newest sequence at admission, as read. A send racing with this call is not
// covered; it stays unread until the next MarkRead. Returns the number of
// messages newly marked.
func (r *Router) MarkRead(roomID, readerID string) (int64, error) {
	if _, err := r.RoomForParticipant(roomID, readerID); err != nil {
		return 0, err
	}

	lock := r.roomLock(roomID)
	lock.Lock()
	defer lock.Unlock()

	// Re-read under the room lock: LastMessageSeq is now the admission bound.
	room, err := r.Storage.GetRoomByID(roomID)
	if err != nil {
		return 0, ErrRoomNotFound
	}

	updated, err := r.Storage.MarkReadUpTo(roomID, readerID, room.LastMessageSeq)
	if err != nil {
		return 0, fmt.Errorf("mark read: %w", err)
	}

	r.Unread.OnMessagesRead(roomID, readerID)

	if updated > 0 {
		if err := r.Storage.PublishEvent(models.Event{
			Kind:   models.KindReadStateChanged,
			RoomID: roomID,
			ReadState: &models.ReadStateEvent{
				ReaderID: readerID,
				UpToSeq:  room.LastMessageSeq,
			},
		}); err != nil {
			log.Printf("WARNING: Failed to publish read-state event for room %s: %v", roomID, err)
		}
	}
	return updated, nil
}

// RoomSummary is one entry of a user's conversation list.
type RoomSummary struct {
	Room         models.Room     `json:"room"`
	LastMessage  *models.Message `json:"last_message,omitempty"`
	HasUnread    bool            `json:"has_unread"`
	ListingTitle string          `json:"listing_title,omitempty"`
}

// ListRooms returns the user's conversations, most recent activity first,
// each with its last message and unread marker.
func (r *Router) ListRooms(userID string) ([]RoomSummary, error) {
	if err := r.Unread.EnsurePrimed(r.Storage, userID); err != nil {
		log.Printf("WARNING: Unread priming failed for user %s: %v", userID, err)
	}

	rooms, err := r.Storage.ListRoomsForUser(userID)
	if err != nil {
		return nil, err
	}

	summaries := lo.Map(rooms, func(room models.Room, _ int) RoomSummary {
		summary := RoomSummary{
			Room:      room,
			HasUnread: r.Unread.HasUnread(userID, room.ID),
		}
		if last, err := r.Storage.LastMessage(room.ID); err == nil {
			summary.LastMessage = last
		}
		if room.ListingID != nil && r.Listings != nil {
			summary.ListingTitle = r.Listings.ResolveTitle(*room.ListingID)
		}
		return summary
	})
	return summaries, nil
}
