package callsession

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// DefaultListLimit caps List when the caller asks for no limit.
const DefaultListLimit = 50

// Option customizes a Service.
type Option func(*Service)

// WithClock overrides time.Now.
func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

// Service manages call sessions over a Store.
type Service struct {
	store  Store
	logger *zap.Logger
	now    func() time.Time
}

// NewService creates a Service.
func NewService(store Store, logger *zap.Logger, opts ...Option) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &Service{store: store, logger: logger, now: time.Now}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Start opens an active session and bumps the caller's call count.
func (s *Service) Start(ctx context.Context, callerID, callerName string) (*Session, error) {
	callerID = strings.TrimSpace(callerID)
	if callerID == "" {
		return nil, fmt.Errorf("%w: caller id is required", ErrInvalidInput)
	}

	now := s.now().UTC()
	if _, err := s.store.UpsertCaller(ctx, callerID, func(c *Caller) {
		if name := strings.TrimSpace(callerName); name != "" {
			c.Name = name
		}
		c.LastCallAt = now
		c.TotalCalls++
	}); err != nil {
		return nil, fmt.Errorf("upsert caller: %w", err)
	}

	sess := &Session{
		ID:             uuid.NewString(),
		CallerID:       callerID,
		Status:         StatusActive,
		StartedAt:      now,
		Transcript:     []Entry{},
		HelpRequestIDs: []string{},
	}
	if err := s.store.Create(ctx, sess); err != nil {
		return nil, fmt.Errorf("create call session: %w", err)
	}
	s.logger.Info("call session started",
		zap.String("session_id", sess.ID),
		zap.String("caller_id", callerID))
	return sess, nil
}

// End marks the session ended. Ending twice returns ErrSessionEnded.
func (s *Service) End(ctx context.Context, id string) (*Session, error) {
	sess, err := s.store.Update(ctx, id, func(sess *Session) error {
		if sess.Status == StatusEnded {
			return ErrSessionEnded
		}
		now := s.now().UTC()
		sess.Status = StatusEnded
		sess.EndedAt = &now
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("end call session %s: %w", id, err)
	}
	s.logger.Info("call session ended", zap.String("session_id", id))
	return sess, nil
}

// AppendTranscript adds a line to an active session. Timestamps are forced
// strictly after the previous entry so the transcript order is total.
func (s *Service) AppendTranscript(ctx context.Context, id string, speaker Speaker, message string) (*Session, error) {
	if !speaker.Valid() {
		return nil, fmt.Errorf("%w: unknown speaker %q", ErrInvalidInput, speaker)
	}
	message = strings.TrimSpace(message)
	if message == "" {
		return nil, fmt.Errorf("%w: message is required", ErrInvalidInput)
	}

	sess, err := s.store.Update(ctx, id, func(sess *Session) error {
		if sess.Status == StatusEnded {
			return ErrSessionEnded
		}
		ts := s.now().UTC()
		if n := len(sess.Transcript); n > 0 {
			if last := sess.Transcript[n-1].Timestamp; !ts.After(last) {
				ts = last.Add(time.Nanosecond)
			}
		}
		sess.Transcript = append(sess.Transcript, Entry{Speaker: speaker, Message: message, Timestamp: ts})
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("append transcript to %s: %w", id, err)
	}
	return sess, nil
}

// AttachHelpRequest records that the session produced a help request.
// Attaching the same id twice is a no-op. Ended sessions still accept
// attachments since escalations can complete after hang-up.
func (s *Service) AttachHelpRequest(ctx context.Context, id, requestID string) error {
	_, err := s.store.Update(ctx, id, func(sess *Session) error {
		if !sess.HasHelpRequest(requestID) {
			sess.HelpRequestIDs = append(sess.HelpRequestIDs, requestID)
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("attach help request to %s: %w", id, err)
	}
	return nil
}

// Get returns one session.
func (s *Service) Get(ctx context.Context, id string) (*Session, error) {
	return s.store.Get(ctx, id)
}

// List returns the latest sessions. A non-positive limit means
// DefaultListLimit.
func (s *Service) List(ctx context.Context, limit int) ([]*Session, error) {
	if limit <= 0 {
		limit = DefaultListLimit
	}
	return s.store.List(ctx, limit)
}

// Caller returns a caller profile.
func (s *Service) Caller(ctx context.Context, id string) (*Caller, error) {
	return s.store.GetCaller(ctx, id)
}
