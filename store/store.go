package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"blogwatch/models"
	"blogwatch/monitor"

	sqlbuilder "github.com/huandu/go-sqlbuilder"
	log "github.com/sirupsen/logrus"
)

// Store is the durable dedup state: a mapping from post id to the
// fingerprint it carried when it was last notified. Loaded once at startup
// and flushed wholesale after every cycle that produced notifications.
type Store struct {
	db *sql.DB
}

func NewStore(database string) (*Store, error) {
	db, err := connection(database)
	if err != nil {
		return nil, fmt.Errorf("failed to connect database: %w", err)
	}
	return &Store{db: db}, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

// Load reads the full dedup state. An empty or freshly migrated database
// yields an empty state, which is not an error.
func (s *Store) Load(ctx context.Context) (monitor.State, error) {
	sb := sqlbuilder.NewSelectBuilder()
	sb.Select("id", "trending").From("posts")

	query, args := sb.Build()
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query error: %w", err)
	}
	defer rows.Close()

	state := monitor.State{}
	for rows.Next() {
		var id string
		var trending bool
		if err := rows.Scan(&id, &trending); err != nil {
			return nil, fmt.Errorf("scan error: %w", err)
		}
		state[id] = models.Fingerprint{Trending: trending}
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}

	log.WithFields(log.Fields{
		"entries": len(state),
	}).Debug("Loaded dedup state")

	return state, nil
}

// Flush writes the full state in one transaction, so a concurrent reader
// never observes a partial write. Entries are upserted, never deleted.
func (s *Store) Flush(ctx context.Context, state monitor.State) error {
	ctx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin error: %w", err)
	}
	defer tx.Rollback()

	now := time.Now().UTC()
	for id, fingerprint := range state {
		_, err := tx.ExecContext(ctx, `
			INSERT INTO posts (id, trending, first_seen_at, updated_at)
			VALUES (?, ?, ?, ?)
			ON CONFLICT (id) DO UPDATE SET
				trending = excluded.trending,
				updated_at = excluded.updated_at`,
			id,
			fingerprint.Trending,
			now,
			now,
		)
		if err != nil {
			return fmt.Errorf("upsert error: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit error: %w", err)
	}

	log.WithFields(log.Fields{
		"entries": len(state),
	}).Debug("Flushed dedup state")

	return nil
}

// Tracked lists the stored entries, newest update first. Feeds the ops
// endpoint.
func (s *Store) Tracked(ctx context.Context, limit int) ([]models.TrackedPost, error) {
	sb := sqlbuilder.NewSelectBuilder()
	sb.Select("id", "trending", "first_seen_at", "updated_at").From("posts")
	sb.OrderBy("updated_at").Desc()
	sb.Limit(limit)

	query, args := sb.Build()
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query error: %w", err)
	}
	defer rows.Close()

	var tracked []models.TrackedPost
	for rows.Next() {
		var post models.TrackedPost
		if err := rows.Scan(&post.ID, &post.Trending, &post.FirstSeenAt, &post.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan error: %w", err)
		}
		tracked = append(tracked, post)
	}

	return tracked, rows.Err()
}
