// ABOUTME: Tests for the greeting record store
// ABOUTME: Uses a temporary SQLite file per test
package store

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"path/filepath"
	"testing"
	"time"

	"github.com/greetcast/greetcast-go/internal/config"
	"github.com/matryer/is"
)

func newLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, &slog.HandlerOptions{Level: slog.LevelError}))
}

func openTestStore(t *testing.T) *Store {
	t.Helper()
	cfg := config.StoreConfig{Path: filepath.Join(t.TempDir(), "nested", "greetcast.db")}
	s, err := Open(context.Background(), cfg, newLogger())
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestCreateAndGet(t *testing.T) {
	is := is.New(t)
	s := openTestStore(t)
	ctx := context.Background()

	rec, err := s.Create(ctx, Record{
		Occasion: "birthday",
		Message:  "Happy birthday, Sam!",
		AudioRef: "AABA",
		Voice:    "Kore",
	})
	is.NoErr(err)
	is.True(rec.ID != "")            // create should assign an id
	is.True(!rec.CreatedAt.IsZero()) // create should stamp the time

	got, err := s.Get(ctx, rec.ID)
	is.NoErr(err)
	is.Equal(got.Message, "Happy birthday, Sam!")
	is.Equal(got.AudioRef, "AABA")
	is.Equal(got.Voice, "Kore")
	is.Equal(got.VideoRef, "") // no video yet
	is.True(got.CreatedAt.Equal(rec.CreatedAt))
}

func TestCreateRequiresOccasion(t *testing.T) {
	is := is.New(t)
	s := openTestStore(t)

	_, err := s.Create(context.Background(), Record{Message: "hi"})
	is.True(err != nil) // occasion is required
}

func TestListNewestFirst(t *testing.T) {
	is := is.New(t)
	s := openTestStore(t)
	ctx := context.Background()

	base := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	for i, occasion := range []string{"birthday", "wedding", "graduation"} {
		stamp := base.Add(time.Duration(i) * time.Hour)
		s.clock = func() time.Time { return stamp }
		_, err := s.Create(ctx, Record{Occasion: occasion})
		is.NoErr(err)
	}

	records, err := s.List(ctx, 0)
	is.NoErr(err)
	is.Equal(len(records), 3)
	is.Equal(records[0].Occasion, "graduation")
	is.Equal(records[2].Occasion, "birthday")

	limited, err := s.List(ctx, 2)
	is.NoErr(err)
	is.Equal(len(limited), 2)
}

func TestDelete(t *testing.T) {
	is := is.New(t)
	s := openTestStore(t)
	ctx := context.Background()

	rec, err := s.Create(ctx, Record{Occasion: "thank you"})
	is.NoErr(err)

	is.NoErr(s.Delete(ctx, rec.ID))

	_, err = s.Get(ctx, rec.ID)
	is.True(errors.Is(err, ErrNotFound)) // deleted greeting is gone

	err = s.Delete(ctx, rec.ID)
	is.True(errors.Is(err, ErrNotFound)) // second delete reports not found
}

func TestSetVideoRef(t *testing.T) {
	is := is.New(t)
	s := openTestStore(t)
	ctx := context.Background()

	rec, err := s.Create(ctx, Record{Occasion: "anniversary"})
	is.NoErr(err)

	is.NoErr(s.SetVideoRef(ctx, rec.ID, "https://videos.example/abc.mp4"))

	got, err := s.Get(ctx, rec.ID)
	is.NoErr(err)
	is.Equal(got.VideoRef, "https://videos.example/abc.mp4")

	err = s.SetVideoRef(ctx, "missing", "x")
	is.True(errors.Is(err, ErrNotFound))
}
