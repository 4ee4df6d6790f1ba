// ABOUTME: SQLite-backed greeting record store
// ABOUTME: Creates, lists, fetches and deletes greetings with inline encoded audio
package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"github.com/greetcast/greetcast-go/internal/config"
	_ "modernc.org/sqlite"
)

// ErrNotFound is returned when no greeting has the requested ID
var ErrNotFound = errors.New("greeting not found")

// Record is one saved greeting.
// AudioRef holds the base64 PCM16 speech at the synthesis rate.
type Record struct {
	ID        string
	Occasion  string
	Message   string
	ImageRef  string
	AudioRef  string
	VideoRef  string
	Voice     string
	CreatedAt time.Time
}

// Store wraps a SQLite database of greetings.
type Store struct {
	db    *sql.DB
	log   *slog.Logger
	clock func() time.Time
	newID func() string
}

// Open initializes the store, creating the database file and schema as needed.
func Open(ctx context.Context, cfg config.StoreConfig, log *slog.Logger) (*Store, error) {
	dir := filepath.Dir(cfg.Path)
	if dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create data dir: %w", err)
		}
	}

	dsn := fmt.Sprintf("file:%s?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)", cfg.Path)
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping sqlite: %w", err)
	}

	s := &Store{
		db:    db,
		log:   log,
		clock: time.Now,
		newID: func() string { return uuid.New().String() },
	}

	if err := s.initSchema(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("init schema: %w", err)
	}

	log.Debug("greeting store opened", slog.String("path", cfg.Path))
	return s, nil
}

func (s *Store) initSchema(ctx context.Context) error {
	ddl := `
CREATE TABLE IF NOT EXISTS greetings (
    id TEXT PRIMARY KEY,
    occasion TEXT NOT NULL,
    message TEXT NOT NULL,
    image_ref TEXT,
    audio_ref TEXT,
    video_ref TEXT,
    voice TEXT,
    created_at TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_greetings_created ON greetings(created_at);
`
	_, err := s.db.ExecContext(ctx, ddl)
	return err
}

// Close releases underlying resources.
func (s *Store) Close() error {
	return s.db.Close()
}

// Create saves a new greeting, assigning its ID and creation time.
func (s *Store) Create(ctx context.Context, rec Record) (Record, error) {
	if rec.Occasion == "" {
		return Record{}, errors.New("occasion must not be empty")
	}
	rec.ID = s.newID()
	rec.CreatedAt = s.clock().UTC()

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO greetings(id, occasion, message, image_ref, audio_ref, video_ref, voice, created_at)
		 VALUES(?, ?, ?, ?, ?, ?, ?, ?)`,
		rec.ID, rec.Occasion, rec.Message, rec.ImageRef, rec.AudioRef, rec.VideoRef, rec.Voice,
		rec.CreatedAt.Format(time.RFC3339Nano))
	if err != nil {
		return Record{}, fmt.Errorf("insert greeting: %w", err)
	}

	s.log.Info("greeting saved", slog.String("id", rec.ID), slog.String("occasion", rec.Occasion))
	return rec, nil
}

// SetVideoRef records the generated video for an existing greeting.
func (s *Store) SetVideoRef(ctx context.Context, id, videoRef string) error {
	res, err := s.db.ExecContext(ctx, `UPDATE greetings SET video_ref = ? WHERE id = ?`, videoRef, id)
	if err != nil {
		return fmt.Errorf("update greeting: %w", err)
	}
	return requireRow(res, id)
}

// List returns up to limit greetings, newest first.
func (s *Store) List(ctx context.Context, limit int) ([]Record, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, occasion, message, image_ref, audio_ref, video_ref, voice, created_at
		 FROM greetings ORDER BY created_at DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("list greetings: %w", err)
	}
	defer rows.Close()

	var records []Record
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, err
		}
		records = append(records, rec)
	}
	return records, rows.Err()
}

// Get returns one greeting or ErrNotFound.
func (s *Store) Get(ctx context.Context, id string) (Record, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, occasion, message, image_ref, audio_ref, video_ref, voice, created_at
		 FROM greetings WHERE id = ?`, id)

	rec, err := scanRecord(row)
	if errors.Is(err, sql.ErrNoRows) {
		return Record{}, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	return rec, err
}

// Delete removes a greeting or returns ErrNotFound.
func (s *Store) Delete(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM greetings WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete greeting: %w", err)
	}
	if err := requireRow(res, id); err != nil {
		return err
	}

	s.log.Info("greeting deleted", slog.String("id", id))
	return nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanRecord(row scanner) (Record, error) {
	var rec Record
	var imageRef, audioRef, videoRef, voice sql.NullString
	var created string
	if err := row.Scan(&rec.ID, &rec.Occasion, &rec.Message, &imageRef, &audioRef, &videoRef, &voice, &created); err != nil {
		return Record{}, err
	}
	rec.ImageRef = imageRef.String
	rec.AudioRef = audioRef.String
	rec.VideoRef = videoRef.String
	rec.Voice = voice.String
	if ts, err := time.Parse(time.RFC3339Nano, created); err == nil {
		rec.CreatedAt = ts
	}
	return rec, nil
}

func requireRow(res sql.Result, id string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	return nil
}
