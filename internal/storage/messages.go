package storage

import (
	"errors"
	"log"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"marketchat/backend/internal/models"
)

// AppendMessage assigns the next sequence number for the room and persists
// the message, all in one transaction. The row lock on the room serializes
// sequence assignment; a failed write rolls back without advancing the
// counter. The message is durable before this returns.
func (s *Service) AppendMessage(msg *models.Message) error {
	return s.DB.Transaction(func(tx *gorm.DB) error {
		var room models.Room
		err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			First(&room, "id = ?", msg.RoomID).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrNotFound
		}
		if err != nil {
			return err
		}

		msg.Seq = room.LastMessageSeq + 1
		if err := tx.Create(msg).Error; err != nil {
			log.Printf("ERROR: Failed to save message for room %s: %v", msg.RoomID, err)
			return err
		}

		return tx.Model(&models.Room{}).
			Where("id = ?", room.ID).
			Updates(map[string]interface{}{
				"last_message_seq": msg.Seq,
				"last_message_at":  msg.CreatedAt,
			}).Error
	})
}

// ListMessages returns up to limit messages of the room with seq > afterSeq,
// oldest to newest.
func (s *Service) ListMessages(roomID string, afterSeq int64, limit int) ([]models.Message, error) {
	var messages []models.Message
	err := s.DB.
		Where("room_id = ? AND seq > ?", roomID, afterSeq).
		Order("seq asc").
		Limit(limit).
		Find(&messages).Error
	if err != nil {
		log.Printf("ERROR: Failed to list messages for room %s: %v", roomID, err)
		return nil, err
	}
	return messages, nil
}

// LastMessage returns the newest message of the room, or nil when the room
// has no messages yet.
func (s *Service) LastMessage(roomID string) (*models.Message, error) {
	var msg models.Message
	err := s.DB.
		Where("room_id = ?", roomID).
		Order("seq desc").
		First(&msg).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &msg, nil
}

// MarkReadUpTo flips the read flag on every unread message in the room sent
// by the other participant with seq <= uptoSeq, and raises the reader's
// watermark. The seq bound is captured by the caller at admission, so a send
// racing with this call stays unread until the next mark-read. The read flag
// is one-way: rows already read are never touched again.
func (s *Service) MarkReadUpTo(roomID, readerID string, uptoSeq int64) (int64, error) {
	var updated int64
	now := time.Now()

	err := s.DB.Transaction(func(tx *gorm.DB) error {
		result := tx.Model(&models.Message{}).
			Where("room_id = ? AND sender_id <> ? AND read = ? AND seq <= ?",
				roomID, readerID, false, uptoSeq).
			Updates(map[string]interface{}{"read": true, "read_at": now})
		if result.Error != nil {
			return result.Error
		}
		updated = result.RowsAffected

		// Raise the watermark, never lower it.
		return tx.Clauses(clause.OnConflict{
			Columns: []clause.Column{{Name: "room_id"}, {Name: "user_id"}},
			DoUpdates: clause.Assignments(map[string]interface{}{
				"last_read_seq": gorm.Expr("GREATEST(read_states.last_read_seq, EXCLUDED.last_read_seq)"),
				"last_read_at":  now,
			}),
		}).Create(&models.ReadState{
			RoomID:      roomID,
			UserID:      readerID,
			LastReadSeq: uptoSeq,
			LastReadAt:  now,
		}).Error
	})
	if err != nil {
		log.Printf("ERROR: Failed to mark room %s read for %s: %v", roomID, readerID, err)
		return 0, err
	}
	return updated, nil
}

// HasUnread reports whether the room holds at least one unread message sent
// by the other participant. Used for reconciliation, not the steady state.
func (s *Service) HasUnread(roomID, userID string) (bool, error) {
	var count int64
	err := s.DB.Model(&models.Message{}).
		Where("room_id = ? AND sender_id <> ? AND read = ?", roomID, userID, false).
		Limit(1).
		Count(&count).Error
	if err != nil {
		return false, err
	}
	return count > 0, nil
}

// UnreadRoomIDs scans the store for every room in which the user has unread
// messages. This is the startup/reconciliation fallback behind the in-memory
// unread aggregator.
func (s *Service) UnreadRoomIDs(userID string) ([]string, error) {
	rawSQL := `
        SELECT DISTINCT m.room_id
        FROM messages m
        JOIN rooms r ON r.id = m.room_id
        WHERE (r.user_a_id = ? OR r.user_b_id = ?)
          AND m.sender_id <> ?
          AND m.read = false
    `
	var roomIDs []string
	if err := s.DB.Raw(rawSQL, userID, userID, userID).Scan(&roomIDs).Error; err != nil {
		log.Printf("ERROR: Failed to scan unread rooms for user %s: %v", userID, err)
		return nil, err
	}
	return roomIDs, nil
}

// FindIdempotency returns the recorded outcome for (sender, room, key), or
// nil when none exists or the record has expired.
func (s *Service) FindIdempotency(senderID, roomID, key string) (*models.Idempotency, error) {
	var rec models.Idempotency
	err := s.DB.
		Where("sender_id = ? AND room_id = ? AND key = ?", senderID, roomID, key).
		First(&rec).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	if rec.ExpiresAt.Before(time.Now()) {
		// Purge so the unique index does not block the key's reuse.
		if err := s.DB.Delete(&rec).Error; err != nil {
			log.Printf("WARNING: Failed to purge expired idempotency record %s: %v", rec.ID, err)
		}
		return nil, nil
	}
	return &rec, nil
}

// SaveIdempotency records the outcome of a completed send. An existing row
// for the same (sender, room, key) is overwritten, so a key reused after
// expiry points at the newest send.
func (s *Service) SaveIdempotency(rec *models.Idempotency) error {
	if rec.ID == "" {
		rec.ID = uuid.New().String()
	}
	return s.DB.Clauses(clause.OnConflict{
		Columns: []clause.Column{
			{Name: "sender_id"}, {Name: "room_id"}, {Name: "key"},
		},
		DoUpdates: clause.AssignmentColumns([]string{"message_id", "expires_at"}),
	}).Create(rec).Error
}

// GetMessageByID loads a single message, used to replay idempotent sends.
func (s *Service) GetMessageByID(id uint) (*models.Message, error) {
	var msg models.Message
	err := s.DB.First(&msg, id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &msg, nil
}
