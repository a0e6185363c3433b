package kafka

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/segmentio/kafka-go"
	"github.com/vadimbarashkov/shortlink/internal/entity"
)

const processTimeout = 5 * time.Second

type messageReader interface {
	FetchMessage(ctx context.Context) (kafka.Message, error)
	CommitMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

type eventProcessor interface {
	Process(ctx context.Context, event entity.VisitEvent) error
}

// Consumer reads visit events from a topic and hands them to a processor.
// Every message is committed once handled, whether or not it was persisted.
type Consumer struct {
	reader    messageReader
	processor eventProcessor
	logger    *slog.Logger
}

func NewConsumer(brokers []string, topic, groupID string, processor eventProcessor, logger *slog.Logger) *Consumer {
	reader := kafka.NewReader(kafka.ReaderConfig{
		Brokers:  brokers,
		Topic:    topic,
		GroupID:  groupID,
		MinBytes: 1,
		MaxBytes: 10e6,
	})

	return newConsumer(reader, processor, logger)
}

func newConsumer(reader messageReader, processor eventProcessor, logger *slog.Logger) *Consumer {
	return &Consumer{
		reader:    reader,
		processor: processor,
		logger:    logger,
	}
}

// Run consumes until ctx is cancelled.
func (c *Consumer) Run(ctx context.Context) error {
	const op = "adapter.queue.kafka.Consumer.Run"

	for {
		msg, err := c.reader.FetchMessage(ctx)
		if err != nil {
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) || ctx.Err() != nil {
				return nil
			}

			return fmt.Errorf("%s: failed to fetch message: %w", op, err)
		}

		c.handle(ctx, msg)

		if err := c.reader.CommitMessages(ctx, msg); err != nil {
			if ctx.Err() != nil {
				return nil
			}

			return fmt.Errorf("%s: failed to commit message: %w", op, err)
		}
	}
}

func (c *Consumer) handle(ctx context.Context, msg kafka.Message) {
	event, err := decodeEvent(msg)
	if err != nil {
		c.logger.Error("skipping malformed visit event",
			slog.Int64("offset", msg.Offset),
			slog.Any("err", err),
		)
		return
	}

	// A cancelled consumer must not abort a write already started.
	pctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), processTimeout)
	defer cancel()

	if err := c.processor.Process(pctx, event); err != nil {
		c.logger.Error("failed to record visit",
			slog.String("code", event.Code),
			slog.Any("err", err),
		)
	}
}

func (c *Consumer) Close() error {
	return c.reader.Close()
}
