package models

import "github.com/lib/pq"

// Listing is a read-only projection of a marketplace listing. The chat core
// only resolves titles for display; the catalog itself is owned elsewhere.
type Listing struct {
	ID      string         `gorm:"primaryKey" json:"id"`
	OwnerID string         `gorm:"type:text;not null;index" json:"owner_id"`
	Title   string         `gorm:"type:text;not null" json:"title"`
	Photos  pq.StringArray `gorm:"type:text[]" json:"photos,omitempty"`
}
