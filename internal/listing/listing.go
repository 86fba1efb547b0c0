// Package listing is the read-only bridge to the marketplace catalog. The
// chat core only ever resolves a listing reference to a title for display;
// references are otherwise opaque and never validated.
package listing

import (
	"errors"
	"log"

	"marketchat/backend/internal/storage"
)

type Catalog struct {
	Storage storage.Storage
}

func NewCatalog(s storage.Storage) *Catalog {
	return &Catalog{Storage: s}
}

// ResolveTitle returns the listing's title, or an empty string when the
// reference points nowhere.
func (c *Catalog) ResolveTitle(listingID string) string {
	l, err := c.Storage.GetListing(listingID)
	if err != nil {
		if !errors.Is(err, storage.ErrNotFound) {
			log.Printf("WARNING: Failed to resolve listing %s: %v", listingID, err)
		}
		return ""
	}
	return l.Title
}
