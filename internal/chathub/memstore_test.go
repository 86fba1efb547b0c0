package chathub_test

import (
	"sync"
	"time"

	"github.com/redis/go-redis/v9"

	"marketchat/backend/internal/models"
	"marketchat/backend/internal/storage"
)

// memStorage is an in-memory storage.Storage for concurrency and scenario
// tests. It mirrors the real service's guarantees: sequence assignment is
// serialized per store, appends are "durable" once AppendMessage returns,
// and it records every published event in publish order.
type memStorage struct {
	mu sync.Mutex

	users      map[string]*models.User
	roomsByKey map[string]*models.Room
	roomsByID  map[string]*models.Room
	messages   map[string][]*models.Message
	msgByID    map[uint]*models.Message
	nextMsgID  uint
	idem       map[string]*models.Idempotency
	listings   map[string]*models.Listing
	readState  map[string]*models.ReadState

	// appendDelay stretches the window between sequence assignment and
	// durability, to catch premature broadcasts.
	appendDelay time.Duration

	events []models.Event
	// prematurePublish flips if an event ever references a message the
	// store has not durably written.
	prematurePublish bool
}

func newMemStorage(userIDs ...string) *memStorage {
	s := &memStorage{
		users:      make(map[string]*models.User),
		roomsByKey: make(map[string]*models.Room),
		roomsByID:  make(map[string]*models.Room),
		messages:   make(map[string][]*models.Message),
		msgByID:    make(map[uint]*models.Message),
		idem:       make(map[string]*models.Idempotency),
		listings:   make(map[string]*models.Listing),
		readState:  make(map[string]*models.ReadState),
	}
	for _, id := range userIDs {
		s.users[id] = &models.User{ID: id, Email: id + "@test", DisplayName: id}
	}
	return s
}

func (s *memStorage) SaveUser(user *models.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.users[user.ID] = user
	return nil
}

func (s *memStorage) GetUserByID(id string) (*models.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	user, ok := s.users[id]
	if !ok {
		return nil, storage.ErrNotFound
	}
	return user, nil
}

func (s *memStorage) EnsureUser(email, displayName string) (*models.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, u := range s.users {
		if u.Email == email {
			return u, nil
		}
	}
	user := &models.User{ID: email, Email: email, DisplayName: displayName}
	s.users[user.ID] = user
	return user, nil
}

func (s *memStorage) CreateRoomIfAbsent(room *models.Room) (*models.Room, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if existing, ok := s.roomsByKey[room.DedupKey]; ok {
		return existing, nil
	}
	room.CreatedAt = time.Now()
	s.roomsByKey[room.DedupKey] = room
	s.roomsByID[room.ID] = room
	return room, nil
}

func (s *memStorage) GetRoomByID(roomID string) (*models.Room, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	room, ok := s.roomsByID[roomID]
	if !ok {
		return nil, storage.ErrNotFound
	}
	c := *room
	return &c, nil
}

func (s *memStorage) ListRoomsForUser(userID string) ([]models.Room, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var rooms []models.Room
	for _, room := range s.roomsByID {
		if room.HasParticipant(userID) {
			rooms = append(rooms, *room)
		}
	}
	for i := 0; i < len(rooms); i++ {
		for j := i + 1; j < len(rooms); j++ {
			if activity(rooms[j]).After(activity(rooms[i])) {
				rooms[i], rooms[j] = rooms[j], rooms[i]
			}
		}
	}
	return rooms, nil
}

func activity(r models.Room) time.Time {
	if r.LastMessageAt.After(r.CreatedAt) {
		return r.LastMessageAt
	}
	return r.CreatedAt
}

func (s *memStorage) AppendMessage(msg *models.Message) error {
	s.mu.Lock()
	room, ok := s.roomsByID[msg.RoomID]
	if !ok {
		s.mu.Unlock()
		return storage.ErrNotFound
	}
	msg.Seq = room.LastMessageSeq + 1
	s.mu.Unlock()

	// Not durable yet: a premature broadcast in this window is a bug.
	if s.appendDelay > 0 {
		time.Sleep(s.appendDelay)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.nextMsgID++
	msg.ID = s.nextMsgID
	msg.CreatedAt = time.Now()
	stored := *msg
	s.messages[msg.RoomID] = append(s.messages[msg.RoomID], &stored)
	s.msgByID[msg.ID] = &stored
	room.LastMessageSeq = msg.Seq
	room.LastMessageAt = msg.CreatedAt
	return nil
}

func (s *memStorage) ListMessages(roomID string, afterSeq int64, limit int) ([]models.Message, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []models.Message
	for _, msg := range s.messages[roomID] {
		if msg.Seq > afterSeq && len(out) < limit {
			out = append(out, *msg)
		}
	}
	return out, nil
}

func (s *memStorage) LastMessage(roomID string) (*models.Message, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	msgs := s.messages[roomID]
	if len(msgs) == 0 {
		return nil, nil
	}
	c := *msgs[len(msgs)-1]
	return &c, nil
}

func (s *memStorage) MarkReadUpTo(roomID, readerID string, uptoSeq int64) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var updated int64
	now := time.Now()
	for _, msg := range s.messages[roomID] {
		if msg.SenderID != readerID && !msg.Read && msg.Seq <= uptoSeq {
			msg.Read = true
			msg.ReadAt = &now
			updated++
		}
	}
	key := roomID + "/" + readerID
	state, ok := s.readState[key]
	if !ok || uptoSeq > state.LastReadSeq {
		s.readState[key] = &models.ReadState{
			RoomID: roomID, UserID: readerID, LastReadSeq: uptoSeq, LastReadAt: now,
		}
	}
	return updated, nil
}

func (s *memStorage) HasUnread(roomID, userID string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, msg := range s.messages[roomID] {
		if msg.SenderID != userID && !msg.Read {
			return true, nil
		}
	}
	return false, nil
}

func (s *memStorage) UnreadRoomIDs(userID string) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []string
	for roomID, msgs := range s.messages {
		room := s.roomsByID[roomID]
		if room == nil || !room.HasParticipant(userID) {
			continue
		}
		for _, msg := range msgs {
			if msg.SenderID != userID && !msg.Read {
				out = append(out, roomID)
				break
			}
		}
	}
	return out, nil
}

func (s *memStorage) FindIdempotency(senderID, roomID, key string) (*models.Idempotency, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	k := senderID + "/" + roomID + "/" + key
	rec, ok := s.idem[k]
	if !ok {
		return nil, nil
	}
	if rec.ExpiresAt.Before(time.Now()) {
		delete(s.idem, k)
		return nil, nil
	}
	return rec, nil
}

// expireIdempotency ages a stored record past its TTL.
func (s *memStorage) expireIdempotency(senderID, roomID, key string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if rec, ok := s.idem[senderID+"/"+roomID+"/"+key]; ok {
		rec.ExpiresAt = time.Now().Add(-time.Minute)
	}
}

func (s *memStorage) SaveIdempotency(rec *models.Idempotency) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.idem[rec.SenderID+"/"+rec.RoomID+"/"+rec.Key] = rec
	return nil
}

func (s *memStorage) GetMessageByID(id uint) (*models.Message, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	msg, ok := s.msgByID[id]
	if !ok {
		return nil, storage.ErrNotFound
	}
	c := *msg
	return &c, nil
}

func (s *memStorage) GetListing(id string) (*models.Listing, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	l, ok := s.listings[id]
	if !ok {
		return nil, storage.ErrNotFound
	}
	return l, nil
}

func (s *memStorage) PublishEvent(event models.Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if event.Message != nil {
		if _, ok := s.msgByID[event.Message.ID]; !ok {
			s.prematurePublish = true
		}
	}
	s.events = append(s.events, event)
	return nil
}

func (s *memStorage) SubscribeEvents() *redis.PubSub { return nil }

func (s *memStorage) TouchTyping(roomID, userID string) error { return nil }

// publishedEvents snapshots the event log in publish order.
func (s *memStorage) publishedEvents() []models.Event {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]models.Event, len(s.events))
	copy(out, s.events)
	return out
}

func (s *memStorage) messageCount(roomID string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.messages[roomID])
}
