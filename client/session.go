package client

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"

	"admin-alerts/codec"
)

var (
	// ErrNotConnected is returned by Send while the stream is down. The
	// command is lost; nothing queues it for later.
	ErrNotConnected = errors.New("session not connected")
	// ErrOutboxFull is returned by Send when the writer is saturated.
	ErrOutboxFull = errors.New("session outbox full")
)

// SignalKind identifies a session lifecycle signal.
type SignalKind int

const (
	SignalConnected SignalKind = iota + 1
	SignalDisconnected
	SignalEvent
)

func (k SignalKind) String() string {
	switch k {
	case SignalConnected:
		return "connected"
	case SignalDisconnected:
		return "disconnected"
	case SignalEvent:
		return "eventReceived"
	}
	return "unknown"
}

// Signal is emitted by a Session, in transport delivery order.
type Signal struct {
	Kind    SignalKind
	Name    string
	Payload []byte
	Err     error
}

// SessionConfig configures a Session.
type SessionConfig struct {
	BaseURL    string
	StreamPath string
	EventsPath string
	Token      string
	OutboxSize int
	SignalBuf  int
	MinBackoff time.Duration
	MaxBackoff time.Duration
	// SendTimeout bounds a single outbound POST.
	SendTimeout time.Duration
	HTTPClient  *http.Client
	Logger      *log.Logger
}

func (c *SessionConfig) setDefaults() {
	if c.StreamPath == "" {
		c.StreamPath = "/stream"
	}
	if c.EventsPath == "" {
		c.EventsPath = "/api/events"
	}
	if c.OutboxSize <= 0 {
		c.OutboxSize = 16
	}
	if c.SignalBuf <= 0 {
		c.SignalBuf = 64
	}
	if c.MinBackoff <= 0 {
		c.MinBackoff = time.Second
	}
	if c.MaxBackoff < c.MinBackoff {
		c.MaxBackoff = 5 * time.Second
		if c.MaxBackoff < c.MinBackoff {
			c.MaxBackoff = c.MinBackoff
		}
	}
	if c.SendTimeout <= 0 {
		c.SendTimeout = 10 * time.Second
	}
	if c.HTTPClient == nil {
		c.HTTPClient = &http.Client{}
	}
	if c.Logger == nil {
		c.Logger = log.StandardLogger()
	}
}

// Session keeps one logical connection to the alert server: an event stream
// for inbound events and POSTs for outbound ones. It reconnects with
// exponential backoff and never replays what was missed while down.
type Session struct {
	cfg       SessionConfig
	log       *log.Entry
	signals   chan Signal
	outbox    chan []byte
	connected atomic.Bool
}

func NewSession(cfg SessionConfig) *Session {
	cfg.setDefaults()
	return &Session{
		cfg:     cfg,
		log:     cfg.Logger.WithField("session", uuid.NewString()),
		signals: make(chan Signal, cfg.SignalBuf),
		outbox:  make(chan []byte, cfg.OutboxSize),
	}
}

// Signals is closed when Run returns.
func (s *Session) Signals() <-chan Signal { return s.signals }

func (s *Session) Connected() bool { return s.connected.Load() }

// Run connects and keeps reconnecting until ctx is done.
func (s *Session) Run(ctx context.Context) error {
	defer close(s.signals)

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		s.writeLoop(ctx)
	}()
	defer wg.Wait()

	backoff := s.cfg.MinBackoff
	for {
		if ctx.Err() != nil {
			return nil
		}
		established, err := s.stream(ctx)
		if ctx.Err() != nil {
			return nil
		}
		if established {
			backoff = s.cfg.MinBackoff
		}
		s.log.WithError(err).WithField("retry_in", backoff).Warn("alert stream lost, reconnecting")
		select {
		case <-ctx.Done():
			return nil
		case <-time.After(backoff):
		}
		backoff = min(backoff*2, s.cfg.MaxBackoff)
	}
}

// Send hands a named event to the writer and returns immediately.
func (s *Session) Send(name string, payload any) error {
	if !s.connected.Load() {
		return ErrNotConnected
	}
	body, err := codec.EncodeEnvelope(name, payload)
	if err != nil {
		return fmt.Errorf("encode %s: %w", name, err)
	}
	select {
	case s.outbox <- body:
		return nil
	default:
		return ErrOutboxFull
	}
}

func (s *Session) stream(ctx context.Context) (bool, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.url(s.cfg.StreamPath), nil)
	if err != nil {
		return false, err
	}
	req.Header.Set("Accept", "text/event-stream")
	s.authorize(req)
	resp, err := s.cfg.HTTPClient.Do(req)
	if err != nil {
		return false, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return false, fmt.Errorf("stream status %d", resp.StatusCode)
	}

	s.connected.Store(true)
	s.log.Info("connected to alert stream")
	if !s.emit(ctx, Signal{Kind: SignalConnected}) {
		s.connected.Store(false)
		return true, ctx.Err()
	}

	frames := codec.NewFrameReader(resp.Body)
	for {
		name, data, err := frames.Next()
		if err != nil {
			s.connected.Store(false)
			if errors.Is(err, io.EOF) {
				err = io.ErrUnexpectedEOF
			}
			s.log.WithError(err).Info("disconnected from alert stream")
			s.emit(ctx, Signal{Kind: SignalDisconnected, Err: err})
			return true, err
		}
		if !s.emit(ctx, Signal{Kind: SignalEvent, Name: name, Payload: data}) {
			s.connected.Store(false)
			return true, ctx.Err()
		}
	}
}

func (s *Session) emit(ctx context.Context, sig Signal) bool {
	select {
	case s.signals <- sig:
		return true
	case <-ctx.Done():
		return false
	}
}

func (s *Session) writeLoop(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case body := <-s.outbox:
			if err := s.post(ctx, body); err != nil {
				s.log.WithError(err).Warn("outbound event lost")
			}
		}
	}
}

func (s *Session) post(ctx context.Context, body []byte) error {
	ctx, cancel := context.WithTimeout(ctx, s.cfg.SendTimeout)
	defer cancel()
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.url(s.cfg.EventsPath), bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	s.authorize(req)
	resp, err := s.cfg.HTTPClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)
	if resp.StatusCode >= 300 {
		return fmt.Errorf("events endpoint status %d", resp.StatusCode)
	}
	return nil
}

func (s *Session) authorize(req *http.Request) {
	if s.cfg.Token != "" {
		req.Header.Set("Authorization", "Bearer "+s.cfg.Token)
	}
}

func (s *Session) url(path string) string {
	return strings.TrimRight(s.cfg.BaseURL, "/") + path
}
