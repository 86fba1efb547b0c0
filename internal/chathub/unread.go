package chathub

import (
	"sync"

	"marketchat/backend/internal/models"
	"marketchat/backend/internal/storage"
)

// Unread is the incremental unread aggregator: a boolean per (user, room),
// bumped on every send and cleared on every mark-read, never recomputed by
// table scan in the steady state. Updates are atomic at the per-user level,
// so summaries for different users never contend on one lock.
type Unread struct {
	mu    sync.RWMutex
	users map[string]*userUnread
}

type userUnread struct {
	mu sync.Mutex
	// primed is set once the user's state has been reconciled against the
	// store; until then a fresh process would report no unread rooms.
	primed bool
	rooms  map[string]bool
}

func NewUnread() *Unread {
	return &Unread{users: make(map[string]*userUnread)}
}

func (u *Unread) entry(userID string) *userUnread {
	u.mu.RLock()
	e, ok := u.users[userID]
	u.mu.RUnlock()
	if ok {
		return e
	}

	u.mu.Lock()
	defer u.mu.Unlock()
	if e, ok = u.users[userID]; !ok {
		e = &userUnread{rooms: make(map[string]bool)}
		u.users[userID] = e
	}
	return e
}

// OnMessageSent marks the room unread for the recipient.
func (u *Unread) OnMessageSent(roomID, recipientID string) {
	e := u.entry(recipientID)
	e.mu.Lock()
	e.rooms[roomID] = true
	e.mu.Unlock()
}

// OnMessagesRead clears the room's unread marker for the reader.
func (u *Unread) OnMessagesRead(roomID, readerID string) {
	e := u.entry(readerID)
	e.mu.Lock()
	delete(e.rooms, roomID)
	e.mu.Unlock()
}

// HasUnread reports whether the room is unread for the user.
func (u *Unread) HasUnread(userID, roomID string) bool {
	e := u.entry(userID)
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.rooms[roomID]
}

// Summary returns the user's unread view: a boolean per room and the total
// number of unread rooms. It reflects every send/read completed before the
// call (read-your-writes within the process).
func (u *Unread) Summary(userID string) models.UnreadSummary {
	e := u.entry(userID)
	e.mu.Lock()
	defer e.mu.Unlock()

	perRoom := make(map[string]bool, len(e.rooms))
	for roomID := range e.rooms {
		perRoom[roomID] = true
	}
	return models.UnreadSummary{PerRoom: perRoom, Total: len(perRoom)}
}

// Reconcile replaces the user's in-memory state with what the message store
// actually holds. Used at connect time and as a drift-correction fallback;
// the incremental path stays the primary mechanism.
func (u *Unread) Reconcile(s storage.Storage, userID string) error {
	roomIDs, err := s.UnreadRoomIDs(userID)
	if err != nil {
		return err
	}

	fresh := make(map[string]bool, len(roomIDs))
	for _, roomID := range roomIDs {
		fresh[roomID] = true
	}

	e := u.entry(userID)
	e.mu.Lock()
	e.rooms = fresh
	e.primed = true
	e.mu.Unlock()
	return nil
}

// EnsurePrimed reconciles the user against the store the first time their
// state is read, so a restarted process never reports rooms as read before
// the user's first connect. Once primed, it is a cheap no-op.
func (u *Unread) EnsurePrimed(s storage.Storage, userID string) error {
	e := u.entry(userID)
	e.mu.Lock()
	primed := e.primed
	e.mu.Unlock()
	if primed {
		return nil
	}
	return u.Reconcile(s, userID)
}
