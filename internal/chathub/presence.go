package chathub

import (
	"log"
	"sync"
	"time"

	"marketchat/backend/internal/config"
	"marketchat/backend/internal/models"
	"marketchat/backend/internal/storage"
)

// Presence holds the ephemeral typing state per room. Nothing here is
// durable: every indicator expires after config.TypingTTL absent a refresh,
// and receivers expire theirs locally on the same window, so the server
// never pushes an "expired" event.
type Presence struct {
	Storage storage.Storage

	mu     sync.Mutex
	typing map[string]map[string]time.Time // room id -> user id -> expiry
}

func NewPresence(s storage.Storage) *Presence {
	return &Presence{
		Storage: s,
		typing:  make(map[string]map[string]time.Time),
	}
}

// SignalTyping broadcasts a typing indicator to the room's subscribers.
// Signals for rooms the sender does not participate in are silently dropped;
// typing is a non-critical path and never surfaces an error to the client.
func (p *Presence) SignalTyping(roomID, userID, displayName string) {
	room, err := p.Storage.GetRoomByID(roomID)
	if err != nil || !room.HasParticipant(userID) {
		return
	}

	expiresAt := time.Now().Add(config.TypingTTL)

	p.mu.Lock()
	if p.typing[roomID] == nil {
		p.typing[roomID] = make(map[string]time.Time)
	}
	p.typing[roomID][userID] = expiresAt
	p.sweepRoomLocked(roomID, time.Now())
	p.mu.Unlock()

	// TTL backstop in Redis; local maps are swept on access and by Run.
	if err := p.Storage.TouchTyping(roomID, userID); err != nil {
		log.Printf("WARNING: Failed to touch typing key for room %s: %v", roomID, err)
	}

	if err := p.Storage.PublishEvent(models.Event{
		Kind:   models.KindTypingSignal,
		RoomID: roomID,
		Typing: &models.TypingEvent{
			UserID:      userID,
			DisplayName: displayName,
			ExpiresAt:   expiresAt,
		},
	}); err != nil {
		log.Printf("WARNING: Failed to publish typing event for room %s: %v", roomID, err)
	}
}

// ActiveTypists returns the users currently typing in the room.
func (p *Presence) ActiveTypists(roomID string) []string {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.sweepRoomLocked(roomID, time.Now())
	users := make([]string, 0, len(p.typing[roomID]))
	for userID := range p.typing[roomID] {
		users = append(users, userID)
	}
	return users
}

// Run sweeps expired typing entries periodically so per-room state never
// accumulates without bound. Start it once, as a goroutine.
func (p *Presence) Run() {
	ticker := time.NewTicker(config.TypingTTL)
	defer ticker.Stop()

	for now := range ticker.C {
		p.mu.Lock()
		for roomID := range p.typing {
			p.sweepRoomLocked(roomID, now)
		}
		p.mu.Unlock()
	}
}

func (p *Presence) sweepRoomLocked(roomID string, now time.Time) {
	for userID, expiry := range p.typing[roomID] {
		if expiry.Before(now) {
			delete(p.typing[roomID], userID)
		}
	}
	if len(p.typing[roomID]) == 0 {
		delete(p.typing, roomID)
	}
}
