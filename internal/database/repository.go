package database

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/therealutkarshpriyadarshi/sourcing/internal/logging"
	"github.com/therealutkarshpriyadarshi/sourcing/internal/metrics"
	"github.com/therealutkarshpriyadarshi/sourcing/pkg/models"
)

var (
	// ErrNotFound is returned when a record does not exist
	ErrNotFound = errors.New("record not found")
	// ErrStaleVersionKey is returned when an update carries an outdated version key
	ErrStaleVersionKey = errors.New("stale version key")
)

// Repository provides database operations
type Repository struct {
	db     *DB
	logger *logging.Logger
}

// NewRepository creates a new repository
func NewRepository(db *DB, logger *logging.Logger) *Repository {
	if logger == nil {
		logger = logging.NewNopLogger()
	}
	return &Repository{db: db, logger: logger}
}

// NewIdentifier returns a fresh content or asset identifier
func NewIdentifier() string {
	return "do_" + uuid.New().String()
}

// NextVersionKey returns a version key newer than current. Keys are unix
// milliseconds, bumped past current when the clock has not moved on.
func NextVersionKey(current string, now time.Time) string {
	next := now.UnixMilli()
	if prev, err := strconv.ParseInt(current, 10, 64); err == nil && prev >= next {
		next = prev + 1
	}
	return strconv.FormatInt(next, 10)
}

func (r *Repository) observe(operation string, start time.Time, err error) {
	if errors.Is(err, ErrNotFound) || errors.Is(err, ErrStaleVersionKey) {
		err = nil
	}
	duration := time.Since(start)
	metrics.RecordDatabaseOperation(operation, metrics.Status(err), duration.Seconds())
	r.logger.LogDatabaseOperation(operation, duration, err)
}

// track starts timing operation; the returned func observes *err
func (r *Repository) track(operation string, err *error) func() {
	start := time.Now()
	return func() { r.observe(operation, start, *err) }
}

// Contents

// CreateContent creates a new content record
func (r *Repository) CreateContent(ctx context.Context, content *models.Content) (err error) {
	defer r.track("create_content", &err)()
	now := time.Now()

	if content.Identifier == "" {
		content.Identifier = NewIdentifier()
	}
	if content.Status == "" {
		content.Status = models.ContentStatusDraft
	}
	if content.Transcripts == nil {
		content.Transcripts = models.Transcripts{}
	}
	content.VersionKey = NextVersionKey("", now)

	query := `
		INSERT INTO contents (identifier, name, status, version_key, transcripts)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING created_on, last_updated_on
	`

	err = r.db.Pool.QueryRow(ctx, query,
		content.Identifier, content.Name, content.Status, content.VersionKey, content.Transcripts,
	).Scan(&content.CreatedOn, &content.LastUpdatedOn)

	if err != nil {
		return fmt.Errorf("failed to create content: %w", err)
	}

	return nil
}

// GetContent retrieves a content record by identifier
func (r *Repository) GetContent(ctx context.Context, id string) (_ *models.Content, err error) {
	defer r.track("get_content", &err)()

	var content models.Content

	query := `
		SELECT identifier, name, status, version_key, transcripts, created_on, last_updated_on
		FROM contents
		WHERE identifier = $1
	`

	err = r.db.Pool.QueryRow(ctx, query, id).Scan(
		&content.Identifier, &content.Name, &content.Status, &content.VersionKey,
		&content.Transcripts, &content.CreatedOn, &content.LastUpdatedOn,
	)

	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("content %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get content: %w", err)
	}

	return &content, nil
}

// UpdateContentTranscripts replaces the transcript list of a content record
// when versionKey matches the stored one, and issues a new version key.
func (r *Repository) UpdateContentTranscripts(ctx context.Context, id, versionKey string, transcripts models.Transcripts) (_ *models.Content, err error) {
	defer r.track("update_content", &err)()
	now := time.Now()

	if transcripts == nil {
		transcripts = models.Transcripts{}
	}

	query := `
		UPDATE contents
		SET transcripts = $3, version_key = $4, last_updated_on = CURRENT_TIMESTAMP
		WHERE identifier = $1 AND version_key = $2
		RETURNING identifier, name, status, version_key, transcripts, created_on, last_updated_on
	`

	var content models.Content
	err = r.db.Pool.QueryRow(ctx, query, id, versionKey, transcripts, NextVersionKey(versionKey, now)).Scan(
		&content.Identifier, &content.Name, &content.Status, &content.VersionKey,
		&content.Transcripts, &content.CreatedOn, &content.LastUpdatedOn,
	)

	if errors.Is(err, pgx.ErrNoRows) {
		return nil, r.missOrStale(ctx, "contents", id)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to update content: %w", err)
	}

	return &content, nil
}

// missOrStale tells a missing record from a version key mismatch after a conditional update matched no rows
func (r *Repository) missOrStale(ctx context.Context, table, id string) error {
	var exists bool
	query := fmt.Sprintf(`SELECT EXISTS(SELECT 1 FROM %s WHERE identifier = $1)`, table)
	if err := r.db.Pool.QueryRow(ctx, query, id).Scan(&exists); err != nil {
		return fmt.Errorf("failed to check %s: %w", table, err)
	}
	if !exists {
		return fmt.Errorf("%s %s: %w", table, id, ErrNotFound)
	}
	return fmt.Errorf("%s %s: %w", table, id, ErrStaleVersionKey)
}
