package notify

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/nats-io/nats-server/v2/server"
	"github.com/nats-io/nats.go"
	"go.uber.org/zap"
)

// NATSBus publishes events as JSON on NATS subjects:
//
//	<prefix>.supervisors.<event>
//	<prefix>.callers.<base64url(callerId)>.<event>
//
// Caller ids are encoded so that dots and wildcards in them cannot change
// the subject hierarchy.
type NATSBus struct {
	nc     *nats.Conn
	prefix string
	logger *zap.Logger
	owned  bool

	mu     sync.Mutex
	closed bool
}

// NewNATSBus wraps an existing connection. The caller keeps ownership of nc.
func NewNATSBus(nc *nats.Conn, prefix string, logger *zap.Logger) *NATSBus {
	if logger == nil {
		logger = zap.NewNop()
	}
	if prefix == "" {
		prefix = "frontdesk"
	}
	return &NATSBus{nc: nc, prefix: prefix, logger: logger}
}

// DialNATS connects to url and returns a bus that closes the connection
// on Close.
func DialNATS(url, prefix string, logger *zap.Logger) (*NATSBus, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	nc, err := nats.Connect(url,
		nats.Name("frontdesk"),
		nats.MaxReconnects(-1),
		nats.ReconnectWait(time.Second),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			if err != nil {
				logger.Warn("nats disconnected", zap.Error(err))
			}
		}),
		nats.ReconnectHandler(func(c *nats.Conn) {
			logger.Info("nats reconnected", zap.String("url", c.ConnectedUrl()))
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("connect nats %s: %w", url, err)
	}
	b := NewNATSBus(nc, prefix, logger)
	b.owned = true
	return b, nil
}

// Conn returns the underlying connection.
func (b *NATSBus) Conn() *nats.Conn { return b.nc }

func (b *NATSBus) subject(ch Channel, event string) string {
	if id, ok := ch.CallerID(); ok {
		return fmt.Sprintf("%s.callers.%s.%s", b.prefix, base64.RawURLEncoding.EncodeToString([]byte(id)), event)
	}
	return fmt.Sprintf("%s.%s.%s", b.prefix, ch, event)
}

// Publish sends payload as JSON. NATS buffers writes; delivery is not
// confirmed.
func (b *NATSBus) Publish(_ context.Context, ch Channel, typ EventType, payload any) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal %s payload: %w", typ, err)
	}
	if err := b.nc.Publish(b.subject(ch, string(typ)), data); err != nil {
		return fmt.Errorf("publish %s to %s: %w", typ, ch, err)
	}
	return nil
}

// Subscribe relays every event type on ch.
func (b *NATSBus) Subscribe(ctx context.Context, ch Channel) (<-chan Event, func(), error) {
	b.mu.Lock()
	closed := b.closed
	b.mu.Unlock()
	if closed {
		return nil, nil, ErrClosed
	}

	msgs := make(chan *nats.Msg, subscriberBuffer)
	sub, err := b.nc.ChanSubscribe(b.subject(ch, "*"), msgs)
	if err != nil {
		return nil, nil, fmt.Errorf("subscribe %s: %w", ch, err)
	}
	// Flush so the subscription is registered before callers publish.
	if err := b.nc.Flush(); err != nil {
		_ = sub.Unsubscribe()
		return nil, nil, fmt.Errorf("flush subscription %s: %w", ch, err)
	}

	events := make(chan Event, subscriberBuffer)
	done := make(chan struct{})
	var once sync.Once
	cancel := func() { once.Do(func() { close(done) }) }

	go func() {
		defer close(events)
		defer func() { _ = sub.Unsubscribe() }()
		for {
			select {
			case msg := <-msgs:
				idx := strings.LastIndexByte(msg.Subject, '.')
				ev := Event{Type: EventType(msg.Subject[idx+1:]), Data: json.RawMessage(msg.Data)}
				select {
				case events <- ev:
				default:
					b.logger.Debug("dropping event for slow subscriber", zap.String("channel", string(ch)))
				}
			case <-done:
				return
			case <-ctx.Done():
				return
			}
		}
	}()

	return events, cancel, nil
}

// Close drains the connection if the bus owns it.
func (b *NATSBus) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return nil
	}
	b.closed = true
	if b.owned {
		return b.nc.Drain()
	}
	return nil
}

// StartEmbedded runs an in-process NATS server on host:port. Port -1 picks
// a random free port.
func StartEmbedded(host string, port int) (*server.Server, error) {
	opts := &server.Options{
		Host:   host,
		Port:   port,
		NoLog:  true,
		NoSigs: true,
	}
	ns, err := server.NewServer(opts)
	if err != nil {
		return nil, fmt.Errorf("create embedded nats: %w", err)
	}
	go ns.Start()
	if !ns.ReadyForConnections(5 * time.Second) {
		ns.Shutdown()
		return nil, fmt.Errorf("embedded nats not ready after 5s")
	}
	return ns, nil
}
