package broker

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"
)

// Topics de notificaciones de dominio.
const (
	TopicBlockedDatesChanged = "blocked_dates.changed"
	TopicUserFollowed        = "user.followed"
	TopicEventJoined         = "event.joined"
	TopicEventLeft           = "event.left"
)

// Publisher publica notificaciones de dominio. key agrupa mensajes del mismo agregado.
type Publisher interface {
	Publish(ctx context.Context, topic, key string, payload any) error
	Close() error
}

type nopPublisher struct{}

// NewNopPublisher devuelve un Publisher que descarta todo.
func NewNopPublisher() Publisher {
	return nopPublisher{}
}

func (nopPublisher) Publish(context.Context, string, string, any) error { return nil }

func (nopPublisher) Close() error { return nil }

// MessageWriter es el subconjunto de kafka.Writer que usa KafkaPublisher.
type MessageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

const (
	defaultQueueSize    = 1024
	defaultWriteTimeout = 5 * time.Second
)

var (
	ErrPublisherClosed = errors.New("publisher closed")
	ErrQueueFull       = errors.New("publish queue full")
)

// KafkaPublisher encola cada notificacion como un mensaje JSON y la escribe
// desde una goroutine propia. Publish nunca espera al broker.
type KafkaPublisher struct {
	writer       MessageWriter
	logger       *zap.Logger
	queue        chan kafka.Message
	writeTimeout time.Duration
	done         chan struct{}

	mu        sync.RWMutex
	closed    bool
	closeOnce sync.Once
	closeErr  error
}

func NewKafkaPublisher(brokers []string, logger *zap.Logger) *KafkaPublisher {
	return NewWriterPublisher(&kafka.Writer{
		Addr:                   kafka.TCP(brokers...),
		Balancer:               &kafka.Hash{},
		AllowAutoTopicCreation: true,
		BatchTimeout:           50 * time.Millisecond,
	}, logger)
}

// NewWriterPublisher arranca el publicador sobre un writer ya construido.
func NewWriterPublisher(writer MessageWriter, logger *zap.Logger) *KafkaPublisher {
	return newKafkaPublisher(writer, logger, defaultQueueSize, defaultWriteTimeout)
}

func newKafkaPublisher(writer MessageWriter, logger *zap.Logger, queueSize int, writeTimeout time.Duration) *KafkaPublisher {
	if logger == nil {
		logger = zap.NewNop()
	}
	p := &KafkaPublisher{
		writer:       writer,
		logger:       logger,
		queue:        make(chan kafka.Message, queueSize),
		writeTimeout: writeTimeout,
		done:         make(chan struct{}),
	}
	go p.run()
	return p
}

// Publish no usa el contexto del llamador: la notificacion sobrevive a la
// cancelacion del request que la origino.
func (p *KafkaPublisher) Publish(_ context.Context, topic, key string, payload any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	msg := kafka.Message{
		Topic: topic,
		Key:   []byte(key),
		Value: body,
		Headers: []kafka.Header{
			{Key: "event_id", Value: []byte(uuid.NewString())},
			{Key: "event_type", Value: []byte(topic)},
		},
	}

	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.closed {
		return ErrPublisherClosed
	}
	select {
	case p.queue <- msg:
		return nil
	default:
		return ErrQueueFull
	}
}

func (p *KafkaPublisher) run() {
	defer close(p.done)
	for msg := range p.queue {
		ctx, cancel := context.WithTimeout(context.Background(), p.writeTimeout)
		err := p.writer.WriteMessages(ctx, msg)
		cancel()
		if err != nil {
			p.logger.Warn("kafka write failed",
				zap.Error(err),
				zap.String("topic", msg.Topic),
				zap.ByteString("key", msg.Key),
			)
		}
	}
}

// Close deja de aceptar mensajes, drena la cola y cierra el writer.
func (p *KafkaPublisher) Close() error {
	p.closeOnce.Do(func() {
		p.mu.Lock()
		p.closed = true
		close(p.queue)
		p.mu.Unlock()

		<-p.done
		p.closeErr = p.writer.Close()
	})
	return p.closeErr
}
