// ABOUTME: WebSocket client for live speech sessions
// ABOUTME: Handles connection, setup handshake, audio streaming and message routing
package protocol

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/url"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/greetcast/greetcast-go/pkg/audio/codec"
)

const (
	handshakeTimeout = 5 * time.Second

	// defaultWriteTimeout bounds a single frame write when the caller's
	// context has no deadline
	defaultWriteTimeout = 5 * time.Second
)

// ErrNotConnected is returned when sending on a closed session
var ErrNotConnected = errors.New("not connected")

// Config holds client configuration
type Config struct {
	// URL is the ws:// or wss:// session endpoint
	URL string

	// APIKey is sent as the key query parameter when set
	APIKey string

	Model             string
	Voice             string
	SystemInstruction string

	// WriteTimeout bounds each outbound write, default 5s
	WriteTimeout time.Duration
}

// LiveClient represents a live speech session
type LiveClient struct {
	config    Config
	sessionID string
	conn      *websocket.Conn
	mu        sync.RWMutex
	writeMu   sync.Mutex

	// Message channels
	Audio        chan codec.EncodedFrame
	Transcripts  chan Transcript
	TurnComplete chan struct{}
	Interrupted  chan struct{}

	// State
	connected bool
	err       error
	ctx       context.Context
	cancel    context.CancelFunc
}

// NewLiveClient creates a new session client
func NewLiveClient(config Config) *LiveClient {
	ctx, cancel := context.WithCancel(context.Background())
	if config.WriteTimeout <= 0 {
		config.WriteTimeout = defaultWriteTimeout
	}

	return &LiveClient{
		config:       config,
		sessionID:    uuid.New().String(),
		Audio:        make(chan codec.EncodedFrame, 100),
		Transcripts:  make(chan Transcript, 20),
		TurnComplete: make(chan struct{}, 10),
		Interrupted:  make(chan struct{}, 10),
		ctx:          ctx,
		cancel:       cancel,
	}
}

// SessionID returns the identifier sent in setup
func (c *LiveClient) SessionID() string {
	return c.sessionID
}

// Connect dials the service and performs the setup handshake
func (c *LiveClient) Connect(ctx context.Context) error {
	u, err := url.Parse(c.config.URL)
	if err != nil {
		return fmt.Errorf("invalid session url: %w", err)
	}
	if c.config.APIKey != "" {
		q := u.Query()
		q.Set("key", c.config.APIKey)
		u.RawQuery = q.Encode()
	}

	log.Printf("Connecting to %s://%s%s", u.Scheme, u.Host, u.Path)

	conn, _, err := websocket.DefaultDialer.DialContext(ctx, u.String(), nil)
	if err != nil {
		return fmt.Errorf("dial failed: %w", err)
	}

	c.mu.Lock()
	c.conn = conn
	c.connected = true
	c.mu.Unlock()

	if err := c.handshake(); err != nil {
		c.Close()
		return fmt.Errorf("handshake failed: %w", err)
	}

	go c.readMessages()

	return nil
}

// handshake sends setup and waits for setupComplete
func (c *LiveClient) handshake() error {
	setup := &Setup{
		Model:     c.config.Model,
		SessionID: c.sessionID,
		GenerationConfig: &GenerationConfig{
			ResponseModalities: []string{"AUDIO"},
		},
		InputAudioTranscription: &struct{}{},
	}
	if c.config.Voice != "" {
		setup.GenerationConfig.SpeechConfig = &SpeechConfig{
			VoiceConfig: VoiceConfig{PrebuiltVoiceConfig: PrebuiltVoice{VoiceName: c.config.Voice}},
		}
	}
	if c.config.SystemInstruction != "" {
		setup.SystemInstruction = &Content{Parts: []Part{{Text: c.config.SystemInstruction}}}
	}

	if err := c.send(ClientMessage{Setup: setup}); err != nil {
		return fmt.Errorf("failed to send setup: %w", err)
	}

	c.conn.SetReadDeadline(time.Now().Add(handshakeTimeout))
	_, data, err := c.conn.ReadMessage()
	if err != nil {
		return fmt.Errorf("failed to read setupComplete: %w", err)
	}
	c.conn.SetReadDeadline(time.Time{})

	var msg ServerMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return fmt.Errorf("failed to parse setupComplete: %w", err)
	}
	if msg.SetupComplete == nil {
		return fmt.Errorf("expected setupComplete, got %s", string(data))
	}

	log.Printf("Live session %s ready (model=%s)", c.sessionID, c.config.Model)
	return nil
}

// SendAudio streams one captured frame. Cancelling ctx interrupts a write
// the service has stopped reading; the session is unusable afterwards.
func (c *LiveClient) SendAudio(ctx context.Context, frame codec.EncodedFrame) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	conn, err := c.activeConn()
	if err != nil {
		return err
	}

	stop := context.AfterFunc(ctx, func() {
		conn.NetConn().SetWriteDeadline(time.Now())
	})
	defer stop()

	deadline := time.Now().Add(c.config.WriteTimeout)
	if d, ok := ctx.Deadline(); ok && d.Before(deadline) {
		deadline = d
	}

	msg := ClientMessage{RealtimeInput: &RealtimeInput{MediaChunks: []codec.EncodedFrame{frame}}}
	if err := c.write(conn, msg, deadline); err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		return err
	}
	return nil
}

// SendText sends a complete user text turn
func (c *LiveClient) SendText(text string) error {
	return c.send(ClientMessage{ClientContent: &ClientContent{
		Turns:        []Content{{Role: "user", Parts: []Part{{Text: text}}}},
		TurnComplete: true,
	}})
}

func (c *LiveClient) send(msg ClientMessage) error {
	conn, err := c.activeConn()
	if err != nil {
		return err
	}
	return c.write(conn, msg, time.Now().Add(c.config.WriteTimeout))
}

// activeConn returns the connection without holding the state lock
// across network writes, so Close is never stuck behind a slow peer
func (c *LiveClient) activeConn() (*websocket.Conn, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	if !c.connected {
		if c.err != nil {
			return nil, fmt.Errorf("%w: %v", ErrNotConnected, c.err)
		}
		return nil, ErrNotConnected
	}
	return c.conn, nil
}

// write serializes writes; gorilla allows one concurrent writer
func (c *LiveClient) write(conn *websocket.Conn, msg ClientMessage, deadline time.Time) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()

	conn.SetWriteDeadline(deadline)
	return conn.WriteJSON(msg)
}

// readMessages reads and routes incoming messages
func (c *LiveClient) readMessages() {
	defer c.Close()

	for {
		select {
		case <-c.ctx.Done():
			return
		default:
		}

		messageType, data, err := c.conn.ReadMessage()
		if err != nil {
			if c.ctx.Err() == nil {
				log.Printf("Read error: %v", err)
				c.setErr(err)
			}
			return
		}

		if messageType != websocket.TextMessage && messageType != websocket.BinaryMessage {
			log.Printf("Unknown WebSocket message type: %d", messageType)
			continue
		}

		c.handleMessage(data)
	}
}

// handleMessage routes one server message
func (c *LiveClient) handleMessage(data []byte) {
	var msg ServerMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		log.Printf("Failed to parse server message: %v", err)
		return
	}

	if msg.GoAway != nil {
		log.Printf("Server closing session soon (time left %s)", msg.GoAway.TimeLeft)
	}

	content := msg.ServerContent
	if content == nil {
		return
	}

	if content.Interrupted {
		c.signal(c.Interrupted)
	}

	if content.InputTranscription != nil && content.InputTranscription.Text != "" {
		c.transcript(Transcript{Role: "user", Text: content.InputTranscription.Text})
	}
	if content.OutputTranscription != nil && content.OutputTranscription.Text != "" {
		c.transcript(Transcript{Role: "model", Text: content.OutputTranscription.Text})
	}

	if content.ModelTurn != nil {
		for _, part := range content.ModelTurn.Parts {
			if part.InlineData != nil && part.InlineData.Data != "" {
				select {
				case c.Audio <- *part.InlineData:
				case <-c.ctx.Done():
					return
				}
			}
			if part.Text != "" {
				c.transcript(Transcript{Role: "model", Text: part.Text})
			}
		}
	}

	if content.TurnComplete {
		c.signal(c.TurnComplete)
	}
}

func (c *LiveClient) transcript(t Transcript) {
	select {
	case c.Transcripts <- t:
	case <-time.After(100 * time.Millisecond):
		log.Printf("Transcript channel full, dropping message")
	}
}

func (c *LiveClient) signal(ch chan struct{}) {
	select {
	case ch <- struct{}{}:
	default:
	}
}

func (c *LiveClient) setErr(err error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.err == nil {
		c.err = err
	}
}

// Done is closed when the session ends
func (c *LiveClient) Done() <-chan struct{} {
	return c.ctx.Done()
}

// Err returns the error that ended the session, if any
func (c *LiveClient) Err() error {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.err
}

// Close closes the connection. It does not wait for an in-flight write;
// closing the socket fails that write instead.
func (c *LiveClient) Close() error {
	c.mu.Lock()
	if !c.connected {
		c.mu.Unlock()
		return nil
	}
	c.connected = false
	conn := c.conn
	c.mu.Unlock()

	c.cancel()

	// WriteControl may run alongside other writers
	conn.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""), time.Now().Add(time.Second))

	err := conn.Close()
	log.Printf("Connection closed")
	return err
}

// IsConnected returns connection status
func (c *LiveClient) IsConnected() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.connected
}
