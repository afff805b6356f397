package monitor

import (
	"maps"

	"blogwatch/models"

	log "github.com/sirupsen/logrus"
)

// State maps post identifiers to the fingerprint they carried the last time
// they were notified and persisted.
type State map[string]models.Fingerprint

// Detect compares posts against the dedup state and returns the posts to
// notify, in input order, together with the updated state. A post is
// notified when its id is unknown or when its fingerprint differs from the
// stored one. The input state is not mutated and no I/O happens here.
func Detect(posts []models.Post, state State) ([]models.Post, State) {
	updated := maps.Clone(state)
	if updated == nil {
		updated = State{}
	}

	var notify []models.Post
	for _, post := range posts {
		prev, seen := updated[post.ID]
		if seen && prev == post.Fingerprint {
			log.WithFields(log.Fields{
				"id":       post.ID,
				"category": post.Category,
			}).Debug("Post already processed")
			continue
		}

		log.WithFields(log.Fields{
			"id":       post.ID,
			"category": post.Category,
			"changed":  seen,
		}).Debug("New or updated post detected")

		notify = append(notify, post)
		updated[post.ID] = post.Fingerprint
	}

	return notify, updated
}
