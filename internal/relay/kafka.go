package relay

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"
)

const (
	headerEventType = "event_type"
	headerSource    = "source"
)

type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

type messageReader interface {
	ReadMessage(ctx context.Context) (kafka.Message, error)
	Close() error
}

// Forwarder mirrors locally created events to a kafka topic so other
// instances sharing the same storage can refresh.
type Forwarder struct {
	source    string
	writer    messageWriter
	queue     chan Event
	flushTick time.Duration
	batchSize int
	log       *zap.Logger
}

func NewForwarder(source, topic string, brokers []string, log *zap.Logger) *Forwarder {
	w := &kafka.Writer{
		Addr:                   kafka.TCP(brokers...),
		Topic:                  topic,
		Balancer:               &kafka.LeastBytes{},
		AllowAutoTopicCreation: true,
	}
	return newForwarder(source, w, log)
}

func newForwarder(source string, w messageWriter, log *zap.Logger) *Forwarder {
	return &Forwarder{
		source:    source,
		writer:    w,
		queue:     make(chan Event, 1024),
		flushTick: 200 * time.Millisecond,
		batchSize: 100,
		log:       log,
	}
}

// Handle queues e when it originated in this process. Remote events are
// ignored so they do not bounce between instances.
func (f *Forwarder) Handle(_ context.Context, e Event) error {
	if e.Source != f.source {
		return nil
	}
	select {
	case f.queue <- e:
		return nil
	default:
		return errors.New("kafka forward queue full")
	}
}

func (f *Forwarder) Run(ctx context.Context) {
	ticker := time.NewTicker(f.flushTick)
	defer ticker.Stop()

	batch := make([]kafka.Message, 0, f.batchSize)
	flush := func(ctx context.Context) {
		if len(batch) == 0 {
			return
		}
		if err := f.writer.WriteMessages(ctx, batch...); err != nil {
			f.log.Error("failed to forward events", zap.Int("count", len(batch)), zap.Error(err))
		}
		batch = batch[:0]
	}

	for {
		select {
		case e := <-f.queue:
			msg, err := toMessage(e)
			if err != nil {
				f.log.Error("failed to encode event", zap.String("event_id", e.ID), zap.Error(err))
				continue
			}
			batch = append(batch, msg)
			if len(batch) >= f.batchSize {
				flush(ctx)
			}
		case <-ticker.C:
			flush(ctx)
		case <-ctx.Done():
		drain:
			for {
				select {
				case e := <-f.queue:
					if msg, err := toMessage(e); err == nil {
						batch = append(batch, msg)
					}
				default:
					break drain
				}
			}
			flushCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			flush(flushCtx)
			cancel()
			return
		}
	}
}

func (f *Forwarder) Close() error {
	return f.writer.Close()
}

func toMessage(e Event) (kafka.Message, error) {
	value, err := json.Marshal(e)
	if err != nil {
		return kafka.Message{}, err
	}
	return kafka.Message{
		Key:   []byte(e.Type),
		Value: value,
		Headers: []kafka.Header{
			{Key: headerEventType, Value: []byte(e.Type)},
			{Key: headerSource, Value: []byte(e.Source)},
		},
	}, nil
}

// Listener republishes events forwarded by other instances into the local relay.
type Listener struct {
	relay      *Relay
	reader     messageReader
	retryDelay time.Duration
	log        *zap.Logger
}

// NewListener reads topic. Every instance needs the full stream, so the
// consumer group defaults to one per instance.
func NewListener(r *Relay, topic, groupID string, brokers []string, log *zap.Logger) *Listener {
	if groupID == "" {
		groupID = "milkshop-" + r.Source()
	}
	reader := kafka.NewReader(kafka.ReaderConfig{
		Brokers:     brokers,
		Topic:       topic,
		GroupID:     groupID,
		StartOffset: kafka.LastOffset,
		MaxBytes:    10e6, // 10MB
	})
	return &Listener{relay: r, reader: reader, retryDelay: time.Second, log: log}
}

func (l *Listener) Run(ctx context.Context) {
	for {
		if ctx.Err() != nil {
			return
		}
		l.receive(ctx)
	}
}

func (l *Listener) receive(ctx context.Context) {
	m, err := l.reader.ReadMessage(ctx)
	if err != nil {
		if ctx.Err() == nil {
			l.log.Warn("error reading event message", zap.Error(err))
			select {
			case <-time.After(l.retryDelay):
			case <-ctx.Done():
			}
		}
		return
	}

	for _, h := range m.Headers {
		if h.Key == headerSource && string(h.Value) == l.relay.Source() {
			return
		}
	}

	var e Event
	if err := json.Unmarshal(m.Value, &e); err != nil {
		l.log.Warn("error parsing event message", zap.Error(err))
		return
	}
	if e.Source == l.relay.Source() {
		return
	}
	l.relay.Republish(ctx, e)
}

func (l *Listener) Close() error {
	return l.reader.Close()
}
