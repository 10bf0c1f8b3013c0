package relay

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/IBM/sarama"
)

// Router is the cross-boundary transport. The design assumes at-least-once
// delivery and no automatic cross-boundary retry; the receive side's
// processed set carries the exactly-once-logical guarantee.
type Router interface {
	Publish(ctx context.Context, m Message) error
	Close() error
}

const DefaultTopicPrefix = "credit.relay."

// TopicFor names the destination network's relay topic.
func TopicFor(prefix string, chainID int64) string {
	if prefix == "" {
		prefix = DefaultTopicPrefix
	}
	return prefix + strconv.FormatInt(chainID, 10)
}

// KafkaRouter publishes relay messages to per-destination topics, keyed by
// owner so one owner's deltas stay ordered within a partition.
type KafkaRouter struct {
	prefix string
	sp     sarama.SyncProducer
}

func NewKafkaRouter(brokersCSV, topicPrefix string) (*KafkaRouter, error) {
	brokers := splitCSV(brokersCSV)
	if len(brokers) == 0 {
		return nil, errors.New("no brokers")
	}

	cfg := sarama.NewConfig()

	// Reliability-oriented defaults
	cfg.Producer.RequiredAcks = sarama.WaitForAll
	cfg.Producer.Retry.Max = 10
	cfg.Producer.Retry.Backoff = 200 * time.Millisecond

	// SyncProducer must have Return.Successes=true
	cfg.Producer.Return.Successes = true
	cfg.Producer.Return.Errors = true

	// Broker-side idempotency cuts duplicate deliveries at the transport
	// layer; the processed set still handles the rest.
	cfg.Producer.Idempotent = true
	cfg.Net.MaxOpenRequests = 1

	cfg.Version = sarama.V2_1_0_0

	sp, err := sarama.NewSyncProducer(brokers, cfg)
	if err != nil {
		return nil, err
	}

	return &KafkaRouter{prefix: topicPrefix, sp: sp}, nil
}

func (r *KafkaRouter) Close() error {
	if r.sp != nil {
		return r.sp.Close()
	}
	return nil
}

// Publish sends the message and waits for broker ACK (sync). It is safe to
// mark the message sent after this returns nil.
func (r *KafkaRouter) Publish(ctx context.Context, m Message) error {
	payload, err := Encode(m)
	if err != nil {
		return err
	}

	msg := &sarama.ProducerMessage{
		Topic: TopicFor(r.prefix, m.DestChain),
		Key:   sarama.StringEncoder(m.Delta.Owner),
		Value: sarama.ByteEncoder(payload),
	}

	// sarama SyncProducer doesn't accept context; check before/after.
	select {
	case <-ctx.Done():
		return ctx.Err()
	default:
	}

	if _, _, err := r.sp.SendMessage(msg); err != nil {
		return fmt.Errorf("relay publish: %w", err)
	}
	return nil
}

func splitCSV(s string) []string {
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, x := range parts {
		x = strings.TrimSpace(x)
		if x != "" {
			out = append(out, x)
		}
	}
	return out
}
