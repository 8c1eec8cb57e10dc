package eventbus

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"
	"github.com/verigrade/verigrade/pkg/logger"
	"go.uber.org/zap"
)

// Subjects for VeriGrade events.
const (
	SubjectTransactionRecorded = "transactions.recorded"

	SubjectFraudDetected           = "fraud.detected"
	SubjectFraudAlertStatusChanged = "fraud.alert.status_changed"
)

const (
	defaultStreamName = "VERIGRADE"
	defaultMaxAge     = 72 * time.Hour

	// correlationHeader carries the request id across the bus.
	correlationHeader = "X-Request-ID"
)

// Event is the envelope of every message on the bus.
type Event struct {
	ID        string          `json:"id"`
	Type      string          `json:"type"`
	Source    string          `json:"source"`
	Timestamp time.Time       `json:"timestamp"`
	Data      json.RawMessage `json:"data"`
}

// NewEvent wraps data in an envelope with a fresh id.
func NewEvent(eventType, source string, data interface{}) (*Event, error) {
	raw, err := json.Marshal(data)
	if err != nil {
		return nil, fmt.Errorf("marshal event data: %w", err)
	}
	return &Event{
		ID:        uuid.NewString(),
		Type:      eventType,
		Source:    source,
		Timestamp: time.Now().UTC(),
		Data:      raw,
	}, nil
}

// Decode unmarshals the payload into v.
func (e *Event) Decode(v interface{}) error {
	if err := json.Unmarshal(e.Data, v); err != nil {
		return fmt.Errorf("decode %s event %s: %w", e.Type, e.ID, err)
	}
	return nil
}

func decodeMessage(data []byte) (*Event, error) {
	event := new(Event)
	if err := json.Unmarshal(data, event); err != nil {
		return nil, err
	}
	return event, nil
}

// HandlerFunc processes one event. A nil return acks the message, an error
// asks for redelivery.
type HandlerFunc func(ctx context.Context, event *Event) error

// Config holds the NATS connection and stream settings.
type Config struct {
	URL        string
	Name       string
	StreamName string
	MaxAge     time.Duration
}

// DefaultConfig points at a local NATS server.
func DefaultConfig() Config {
	return Config{URL: nats.DefaultURL, Name: "verigrade"}.withDefaults()
}

func (c Config) withDefaults() Config {
	if c.URL == "" {
		c.URL = nats.DefaultURL
	}
	if c.StreamName == "" {
		c.StreamName = defaultStreamName
	}
	if c.MaxAge <= 0 {
		c.MaxAge = defaultMaxAge
	}
	return c
}

// Bus publishes and consumes events on a JetStream stream holding the
// transactions.> and fraud.> subjects.
type Bus struct {
	conn      *nats.Conn
	js        jetstream.JetStream
	cfg       Config
	consumers []jetstream.ConsumeContext
}

// New connects to NATS and creates or updates the stream.
func New(ctx context.Context, cfg Config) (*Bus, error) {
	cfg = cfg.withDefaults()

	nc, err := nats.Connect(cfg.URL,
		nats.Name(cfg.Name),
		nats.RetryOnFailedConnect(true),
		nats.MaxReconnects(-1),
		nats.ReconnectWait(2*time.Second),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			if err != nil {
				logger.Warn("nats disconnected", zap.Error(err))
			}
		}),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			logger.Info("nats reconnected", zap.String("url", nc.ConnectedUrl()))
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("nats connect %s: %w", cfg.URL, err)
	}

	js, err := jetstream.New(nc)
	if err == nil {
		err = ensureStream(ctx, js, cfg)
	}
	if err != nil {
		nc.Close()
		return nil, err
	}

	logger.Info("event bus ready", zap.String("url", cfg.URL), zap.String("stream", cfg.StreamName))
	return &Bus{conn: nc, js: js, cfg: cfg}, nil
}

func ensureStream(ctx context.Context, js jetstream.JetStream, cfg Config) error {
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	_, err := js.CreateOrUpdateStream(ctx, jetstream.StreamConfig{
		Name:      cfg.StreamName,
		Subjects:  []string{"transactions.>", "fraud.>"},
		Storage:   jetstream.FileStorage,
		Retention: jetstream.InterestPolicy,
		MaxAge:    cfg.MaxAge,
	})
	if err != nil {
		return fmt.Errorf("ensure stream %s: %w", cfg.StreamName, err)
	}
	return nil
}

// Publish writes event to subject. The event id doubles as the JetStream
// dedup id and the request id in ctx travels in a header.
func (b *Bus) Publish(ctx context.Context, subject string, event *Event) error {
	if b == nil {
		return errors.New("event bus not connected")
	}

	msg, err := newMessage(ctx, subject, event)
	if err != nil {
		return err
	}
	if _, err := b.js.PublishMsg(ctx, msg, jetstream.WithMsgID(event.ID)); err != nil {
		return fmt.Errorf("publish %s to %s: %w", event.ID, subject, err)
	}

	logger.DebugContext(ctx, "event published",
		zap.String("subject", subject),
		zap.String("event_id", event.ID),
	)
	return nil
}

func newMessage(ctx context.Context, subject string, event *Event) (*nats.Msg, error) {
	body, err := json.Marshal(event)
	if err != nil {
		return nil, fmt.Errorf("marshal event: %w", err)
	}
	msg := nats.NewMsg(subject)
	msg.Data = body
	if id := logger.CorrelationIDFromContext(ctx); id != "" {
		msg.Header.Set(correlationHeader, id)
	}
	return msg, nil
}

// Subscribe attaches a durable consumer named consumer to subject. Each
// service uses its own consumer name so it sees every event once.
func (b *Bus) Subscribe(ctx context.Context, subject, consumer string, handler HandlerFunc) error {
	c, err := b.js.CreateOrUpdateConsumer(ctx, b.cfg.StreamName, jetstream.ConsumerConfig{
		Durable:       consumer,
		FilterSubject: subject,
		AckPolicy:     jetstream.AckExplicitPolicy,
		AckWait:       30 * time.Second,
		MaxDeliver:    5,
		DeliverPolicy: jetstream.DeliverNewPolicy,
	})
	if err != nil {
		return fmt.Errorf("create consumer %s: %w", consumer, err)
	}

	cc, err := c.Consume(func(msg jetstream.Msg) {
		dispatch(ctx, msg, handler)
	})
	if err != nil {
		return fmt.Errorf("consume %s: %w", consumer, err)
	}

	b.consumers = append(b.consumers, cc)
	logger.Info("subscribed", zap.String("subject", subject), zap.String("consumer", consumer))
	return nil
}

func dispatch(ctx context.Context, msg jetstream.Msg, handler HandlerFunc) {
	event, err := decodeMessage(msg.Data())
	if err != nil {
		logger.Warn("dropping malformed event", zap.String("subject", msg.Subject()), zap.Error(err))
		_ = msg.Term()
		return
	}

	if id := msg.Headers().Get(correlationHeader); id != "" {
		ctx = logger.ContextWithCorrelationID(ctx, id)
	}

	if err := handler(ctx, event); err != nil {
		logger.WarnContext(ctx, "event handler failed, requesting redelivery",
			zap.String("event_id", event.ID),
			zap.String("type", event.Type),
			zap.Error(err),
		)
		_ = msg.Nak()
		return
	}
	_ = msg.Ack()
}

// Close stops consumers and drains the connection.
func (b *Bus) Close() {
	for _, cc := range b.consumers {
		cc.Stop()
	}
	if b.conn != nil {
		_ = b.conn.Drain()
	}
	logger.Info("event bus closed")
}

// Connected reports whether the NATS connection is up. Safe on a nil Bus.
func (b *Bus) Connected() bool {
	return b != nil && b.conn != nil && b.conn.IsConnected()
}
