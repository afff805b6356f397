package monitor

import (
	"blogwatch/models"

	log "github.com/sirupsen/logrus"
)

// Normalize reduces a raw post to the identifier and fingerprint change
// detection works on. The identifier is the first available of the explicit
// id, the canonical link and the slug. Posts with none of the three cannot
// be tracked and are skipped.
func Normalize(raw models.RawPost, category string) (models.Post, bool) {
	id := raw.ID
	if id == "" {
		id = raw.Link
	}
	if id == "" {
		id = raw.Slug
	}
	if id == "" {
		log.WithFields(log.Fields{
			"category": category,
			"title":    raw.Title,
		}).Debug("Post has no usable identifier, skipping")
		return models.Post{}, false
	}

	return models.Post{
		ID:          id,
		Fingerprint: models.Fingerprint{Trending: raw.Trending},
		Category:    category,
		Raw:         raw,
	}, true
}
