package kafka

import (
	"context"
	"log/slog"

	"github.com/segmentio/kafka-go"
	"github.com/vadimbarashkov/shortlink/internal/entity"
	"github.com/vadimbarashkov/shortlink/internal/metrics"
)

type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

type pseudonymiser interface {
	Pseudonymise(event entity.VisitEvent) entity.VisitEvent
}

// Publisher writes visit events to a topic asynchronously. Client addresses
// are replaced by their digests before an event is encoded.
type Publisher struct {
	writer  messageWriter
	hasher  pseudonymiser
	logger  *slog.Logger
	metrics *metrics.Metrics
}

func NewPublisher(brokers []string, topic string, hasher pseudonymiser, logger *slog.Logger, m *metrics.Metrics) *Publisher {
	p := &Publisher{
		hasher:  hasher,
		logger:  logger,
		metrics: m,
	}

	p.writer = &kafka.Writer{
		Addr:                   kafka.TCP(brokers...),
		Topic:                  topic,
		Balancer:               &kafka.Hash{},
		Async:                  true,
		AllowAutoTopicCreation: true,
		Completion:             p.complete,
	}

	return p
}

func newPublisher(writer messageWriter, hasher pseudonymiser, logger *slog.Logger, m *metrics.Metrics) *Publisher {
	return &Publisher{writer: writer, hasher: hasher, logger: logger, metrics: m}
}

// Record hands event to the writer. The writer is asynchronous, so the call
// does not wait for the broker.
func (p *Publisher) Record(event entity.VisitEvent) {
	msg, err := encodeEvent(p.hasher.Pseudonymise(event))
	if err != nil {
		p.metrics.AnalyticsDropped()
		p.logger.Error("failed to encode visit event", slog.Any("err", err))
		return
	}

	if err := p.writer.WriteMessages(context.Background(), msg); err != nil {
		p.metrics.AnalyticsDropped()
		p.logger.Warn("failed to publish visit event",
			slog.String("code", event.Code),
			slog.Any("err", err),
		)
	}
}

func (p *Publisher) complete(messages []kafka.Message, err error) {
	if err == nil {
		return
	}

	for range messages {
		p.metrics.AnalyticsDropped()
	}

	p.logger.Error("failed to deliver visit events",
		slog.Int("messages", len(messages)),
		slog.Any("err", err),
	)
}

func (p *Publisher) Close() error {
	return p.writer.Close()
}
