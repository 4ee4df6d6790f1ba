// ABOUTME: Tests for the studio application flows
// ABOUTME: Runs create, play, record and live sessions against fake services and a virtual device
package app

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/greetcast/greetcast-go/internal/config"
	"github.com/greetcast/greetcast-go/internal/store"
	"github.com/greetcast/greetcast-go/pkg/audio/codec"
	"github.com/greetcast/greetcast-go/pkg/audio/encode"
	"github.com/greetcast/greetcast-go/pkg/avsync"
	"github.com/greetcast/greetcast-go/pkg/protocol"
	"github.com/matryer/is"
)

// 0.1s of silence at 24kHz
var speechData = codec.EncodeBytes(make([]byte, 2400*2))

type fakeServices struct {
	server   *httptest.Server
	videoURI string
	drafts   int
}

func newFakeServices(t *testing.T) *fakeServices {
	t.Helper()
	f := &fakeServices{}

	f.server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch {
		case strings.HasSuffix(r.URL.Path, "-tts:generateContent"):
			io.WriteString(w, `{"candidates":[{"content":{"parts":[{"inlineData":{"mimeType":"audio/pcm;rate=24000","data":"`+speechData+`"}}]}}]}`)
		case strings.HasSuffix(r.URL.Path, ":generateContent"):
			f.drafts++
			io.WriteString(w, `{"candidates":[{"content":{"parts":[{"text":"Happy birthday, Sam!"}]}}]}`)
		case strings.HasSuffix(r.URL.Path, ":predictLongRunning"):
			resp := map[string]any{
				"name": "operations/1",
				"done": true,
				"response": map[string]any{
					"generateVideoResponse": map[string]any{
						"generatedSamples": []any{map[string]any{"video": map[string]any{"uri": f.videoURI}}},
					},
				},
			}
			json.NewEncoder(w).Encode(resp)
		default:
			http.NotFound(w, r)
		}
	}))
	t.Cleanup(f.server.Close)
	return f
}

func testConfig(t *testing.T, endpoint string) config.Config {
	t.Helper()
	dir := t.TempDir()

	cfg := config.Default()
	cfg.Store.Path = filepath.Join(dir, "greetcast.db")
	cfg.Media.CacheDir = filepath.Join(dir, "media")
	cfg.Media.PlayerCommand = []string{"true"}
	cfg.Speech.Endpoint = endpoint
	cfg.Speech.APIKey = "k"
	cfg.Video.Endpoint = endpoint
	cfg.Video.PollIntervalMS = 5
	cfg.Discovery.Enabled = false
	cfg.Playback.Device = "virtual"
	cfg.Sync.ReadyTimeoutMS = 2000
	return cfg
}

func newTestApp(t *testing.T, cfg config.Config) *App {
	t.Helper()
	log := slog.New(slog.NewTextHandler(io.Discard, &slog.HandlerOptions{Level: slog.LevelError}))

	a, err := New(context.Background(), cfg, log, Options{VirtualAudio: true})
	if err != nil {
		t.Fatalf("new app: %v", err)
	}
	t.Cleanup(func() { a.Close() })
	return a
}

func TestCreateDraftsAndStoresGreeting(t *testing.T) {
	is := is.New(t)
	svc := newFakeServices(t)
	a := newTestApp(t, testConfig(t, svc.server.URL))
	ctx := context.Background()

	rec, err := a.Create(ctx, CreateRequest{Occasion: "birthday", Details: "Sam turns 30"})
	is.NoErr(err)
	is.Equal(svc.drafts, 1)
	is.Equal(rec.Message, "Happy birthday, Sam!")
	is.Equal(rec.AudioRef, speechData)
	is.Equal(rec.Voice, "Kore")
	is.Equal(rec.VideoRef, "")

	list, err := a.List(ctx, 10)
	is.NoErr(err)
	is.Equal(len(list), 1)
	is.Equal(list[0].ID, rec.ID)
}

func TestCreateRequiresOccasion(t *testing.T) {
	is := is.New(t)
	svc := newFakeServices(t)
	a := newTestApp(t, testConfig(t, svc.server.URL))

	_, err := a.Create(context.Background(), CreateRequest{Message: "hi"})
	is.True(err != nil)
}

func TestPlayAudioOnlyGreeting(t *testing.T) {
	is := is.New(t)
	svc := newFakeServices(t)
	a := newTestApp(t, testConfig(t, svc.server.URL))
	ctx := context.Background()

	rec, err := a.Create(ctx, CreateRequest{Occasion: "birthday", Message: "Happy birthday"})
	is.NoErr(err)

	st, err := a.Play(ctx, rec.ID)
	is.NoErr(err)
	is.Equal(st.Phase, avsync.Ended)
	is.Equal(a.output.Stats().Enqueued, int64(1))
}

func TestCreateWithVideoAndPlaySynced(t *testing.T) {
	if _, err := exec.LookPath("true"); err != nil {
		t.Skip("true not available")
	}
	is := is.New(t)
	svc := newFakeServices(t)

	local := filepath.Join(t.TempDir(), "greeting.mp4")
	is.NoErr(os.WriteFile(local, []byte("video"), 0644))
	svc.videoURI = "file://" + local

	a := newTestApp(t, testConfig(t, svc.server.URL))
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	rec, err := a.Create(ctx, CreateRequest{Occasion: "birthday", Message: "Happy birthday", WithVideo: true})
	is.NoErr(err)
	is.Equal(rec.VideoRef, svc.videoURI)

	st, err := a.Play(ctx, rec.ID)
	is.NoErr(err)
	is.Equal(st.Phase, avsync.Ended)
	is.Equal(st.Warning, "")

	// Retry replays the same greeting
	st, err = a.Retry(ctx)
	is.NoErr(err)
	is.Equal(st.Phase, avsync.Ended)
	is.Equal(a.output.Stats().Enqueued, int64(2))
}

func TestRetryWithoutPlayback(t *testing.T) {
	svc := newFakeServices(t)
	a := newTestApp(t, testConfig(t, svc.server.URL))

	if _, err := a.Retry(context.Background()); !errors.Is(err, ErrNothingToRetry) {
		t.Errorf("expected ErrNothingToRetry, got %v", err)
	}
}

func TestDeleteGreeting(t *testing.T) {
	is := is.New(t)
	svc := newFakeServices(t)
	a := newTestApp(t, testConfig(t, svc.server.URL))
	ctx := context.Background()

	rec, err := a.Create(ctx, CreateRequest{Occasion: "anniversary", Message: "Cheers"})
	is.NoErr(err)
	is.NoErr(a.Delete(ctx, rec.ID))

	_, err = a.Get(ctx, rec.ID)
	is.True(errors.Is(err, store.ErrNotFound))
}

func writeTestWAV(t *testing.T, frames int) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "mic.wav")
	f, err := os.Create(path)
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()

	samples := make([]float32, frames*4096)
	for i := range samples {
		samples[i] = 0.25
	}
	if err := encode.WAV(f, samples, 16000); err != nil {
		t.Fatalf("write wav: %v", err)
	}
	return path
}

func TestRecordFromFileSavesClip(t *testing.T) {
	is := is.New(t)
	svc := newFakeServices(t)

	cfg := testConfig(t, svc.server.URL)
	cfg.Capture.Source = "file"
	cfg.Capture.File = writeTestWAV(t, 3)
	a := newTestApp(t, cfg)

	clip := filepath.Join(t.TempDir(), "clip.wav")
	var lastLevel float64
	r, err := a.StartRecording(context.Background(), RecordOptions{
		ClipPath: clip,
		Events: RecordEvents{
			OnFrame: func(frames, dropped int, recorded time.Duration, level float64) { lastLevel = level },
		},
	})
	is.NoErr(err)

	res, err := r.Wait(context.Background())
	is.NoErr(err)
	is.NoErr(res.Err)
	is.Equal(res.Frames, 3)
	is.Equal(res.Dropped, 0)
	is.Equal(res.Duration, 768*time.Millisecond) // 3 x 4096 samples at 16kHz
	is.True(lastLevel > 0.2 && lastLevel < 0.3)

	info, err := os.Stat(clip)
	is.NoErr(err)
	is.True(info.Size() > 44) // header plus samples
}

func TestRecordUnknownSource(t *testing.T) {
	svc := newFakeServices(t)
	cfg := testConfig(t, svc.server.URL)
	cfg.Capture.Source = "tape"
	a := newTestApp(t, cfg)

	if _, err := a.StartRecording(context.Background(), RecordOptions{}); err == nil {
		t.Fatal("expected error for unknown source")
	}
}

func TestRecordLiveStreamsFrames(t *testing.T) {
	is := is.New(t)
	svc := newFakeServices(t)

	received := make(chan protocol.ClientMessage, 10)
	upgrader := websocket.Upgrader{}
	gateway := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()

		var setup protocol.ClientMessage
		if err := conn.ReadJSON(&setup); err != nil || setup.Setup == nil {
			t.Errorf("expected setup, got %v", err)
			return
		}
		conn.WriteMessage(websocket.TextMessage, []byte(`{"setupComplete":{}}`))
		conn.WriteMessage(websocket.TextMessage, []byte(`{"serverContent":{"inputTranscription":{"text":"hello"}}}`))

		for {
			var msg protocol.ClientMessage
			if err := conn.ReadJSON(&msg); err != nil {
				return
			}
			received <- msg
		}
	}))
	defer gateway.Close()

	cfg := testConfig(t, svc.server.URL)
	cfg.Capture.Source = "file"
	cfg.Capture.File = writeTestWAV(t, 3)
	cfg.Speech.LiveURL = "ws" + strings.TrimPrefix(gateway.URL, "http")
	a := newTestApp(t, cfg)

	var connectedURL string
	r, err := a.StartRecording(context.Background(), RecordOptions{
		Live: true,
		Events: RecordEvents{
			OnConnected: func(url string) { connectedURL = url },
		},
	})
	is.NoErr(err)
	is.Equal(connectedURL, cfg.Speech.LiveURL)

	res, err := r.Wait(context.Background())
	is.NoErr(err)
	is.NoErr(res.Err)
	is.Equal(res.Frames, 3)

	for i := 0; i < 3; i++ {
		select {
		case msg := <-received:
			is.True(msg.RealtimeInput != nil)
			is.Equal(msg.RealtimeInput.MediaChunks[0].MimeType, "audio/pcm;rate=16000")
		case <-time.After(2 * time.Second):
			t.Fatalf("gateway received %d frames, want 3", i)
		}
	}
}

func TestWriteSeekBuffer(t *testing.T) {
	var b writeSeekBuffer
	b.Write([]byte("hello world"))
	b.Seek(0, io.SeekStart)
	b.Write([]byte("J"))
	b.Seek(0, io.SeekEnd)
	b.Write([]byte("!"))

	if got := string(b.Bytes()); got != "Jello world!" {
		t.Errorf("unexpected buffer %q", got)
	}
	if _, err := b.Seek(-1, io.SeekStart); err == nil {
		t.Error("expected error for negative seek")
	}
}
