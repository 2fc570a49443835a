package kafka

import (
	"context"
	"fmt"
	"time"

	"github.com/pkg/errors"
	"github.com/segmentio/kafka-go"
)

const defaultCommitTimeout = 5 * time.Second

type messageReader interface {
	FetchMessage(ctx context.Context) (kafka.Message, error)
	CommitMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// Consumer reads the scan feed one message at a time. A message is committed
// only after its handler succeeded; a failed handler leaves it for redelivery.
type Consumer struct {
	r             messageReader
	commitTimeout time.Duration
}

// NewConsumer joins groupID on topic. Without a group it reads the topic directly
// from the first offset, which is only useful for local replays.
func NewConsumer(brokers []string, topic, groupID string) *Consumer {
	cfg := kafka.ReaderConfig{
		Brokers:           brokers,
		GroupID:           groupID,
		HeartbeatInterval: 3 * time.Second,
		SessionTimeout:    30 * time.Second,
		StartOffset:       kafka.FirstOffset,
	}
	if groupID != "" {
		cfg.GroupTopics = []string{topic}
	} else {
		cfg.Topic = topic
	}
	return newConsumerWithReader(kafka.NewReader(cfg))
}

func newConsumerWithReader(r messageReader) *Consumer {
	return &Consumer{r: r, commitTimeout: defaultCommitTimeout}
}

func (c *Consumer) Close() error {
	return c.r.Close()
}

// Consume feeds messages to handler until ctx is cancelled or something fails.
// Cancellation is reported as ctx.Err() itself, not as a fetch failure.
func (c *Consumer) Consume(ctx context.Context, handler func(key, value []byte) error) error {
	for {
		msg, err := c.r.FetchMessage(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			return errors.Wrap(err, "fetch message")
		}
		if err := handler(msg.Key, msg.Value); err != nil {
			// Важно: commit делаем только при успехе, иначе потеряем скан.
			return errors.Wrapf(err, "handle %s", position(msg))
		}
		if err := c.commit(ctx, msg); err != nil {
			return err
		}
	}
}

// commit is not bound to ctx: a scan that was already applied must be committed
// even when shutdown starts right after, or it is applied twice after restart.
func (c *Consumer) commit(ctx context.Context, msg kafka.Message) error {
	cctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), c.commitTimeout)
	defer cancel()
	if err := c.r.CommitMessages(cctx, msg); err != nil {
		return errors.Wrapf(err, "commit %s", position(msg))
	}
	return nil
}

func position(msg kafka.Message) string {
	return fmt.Sprintf("%s[%d]@%d", msg.Topic, msg.Partition, msg.Offset)
}
