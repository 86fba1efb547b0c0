package storage

import (
	"errors"
	"log"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"marketchat/backend/internal/models"
)

// SaveUser persists a user in PostgreSQL.
func (s *Service) SaveUser(user *models.User) error {
	return s.DB.Save(user).Error
}

// GetUserByID loads a user by id.
func (s *Service) GetUserByID(id string) (*models.User, error) {
	var user models.User
	err := s.DB.First(&user, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &user, nil
}

// EnsureUser finds a user by email, creating the account on first contact.
func (s *Service) EnsureUser(email, displayName string) (*models.User, error) {
	var user models.User
	defaults := models.User{Email: email, DisplayName: displayName}

	result := s.DB.Where("email = ?", email).FirstOrCreate(&user, defaults)
	if result.Error != nil {
		log.Printf("ERROR: Failed to ensure user %s: %v", email, result.Error)
		return nil, result.Error
	}
	if result.RowsAffected > 0 {
		log.Printf("INFO: New user %s saved to database (ID: %s).", email, user.ID)
	}
	return &user, nil
}

// CreateRoomIfAbsent inserts the room unless one already exists for its
// dedup key, and returns the surviving row either way. The unique index on
// dedup_key makes concurrent first-time calls race-safe: at most one insert
// wins, the rest resolve to the winner.
func (s *Service) CreateRoomIfAbsent(room *models.Room) (*models.Room, error) {
	result := s.DB.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "dedup_key"}},
		DoNothing: true,
	}).Create(room)
	if result.Error != nil {
		return nil, result.Error
	}
	if result.RowsAffected > 0 {
		return room, nil
	}

	// Lost the race (or the room already existed): load the winner.
	var existing models.Room
	if err := s.DB.First(&existing, "dedup_key = ?", room.DedupKey).Error; err != nil {
		return nil, err
	}
	return &existing, nil
}

// GetRoomByID loads a room by id.
func (s *Service) GetRoomByID(roomID string) (*models.Room, error) {
	var room models.Room
	err := s.DB.First(&room, "id = ?", roomID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		log.Printf("ERROR: Failed to get room %s: %v", roomID, err)
		return nil, err
	}
	return &room, nil
}

// ListRoomsForUser returns every room the user participates in, most recent
// activity first. Rooms without messages sort by creation time.
func (s *Service) ListRoomsForUser(userID string) ([]models.Room, error) {
	var rooms []models.Room
	err := s.DB.
		Where("user_a_id = ? OR user_b_id = ?", userID, userID).
		Order("GREATEST(last_message_at, created_at) DESC").
		Find(&rooms).Error
	if err != nil {
		log.Printf("ERROR: Failed to list rooms for user %s: %v", userID, err)
		return nil, err
	}
	return rooms, nil
}

// GetListing loads a listing projection. Unknown references yield ErrNotFound;
// the chat core tolerates them (listing refs are opaque).
func (s *Service) GetListing(id string) (*models.Listing, error) {
	var listing models.Listing
	err := s.DB.First(&listing, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &listing, nil
}
