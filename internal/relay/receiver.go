package relay

import (
	"context"
	"log"
	"time"

	"github.com/IBM/sarama"
)

// Receiver consumes relay topics and feeds messages into Relay.Receive.
// At-least-once consumption is fine: the processed set absorbs duplicates.
type Receiver struct {
	group  sarama.ConsumerGroup
	topics []string
	rl     *Relay
}

func NewReceiver(brokersCSV, groupID string, topics []string, rl *Relay) (*Receiver, error) {
	brokers := splitCSV(brokersCSV)

	cfg := sarama.NewConfig()
	cfg.Version = sarama.V2_8_0_0
	cfg.Consumer.Offsets.Initial = sarama.OffsetOldest
	cfg.Consumer.Return.Errors = true

	cg, err := sarama.NewConsumerGroup(brokers, groupID, cfg)
	if err != nil {
		return nil, err
	}
	return &Receiver{group: cg, topics: topics, rl: rl}, nil
}

func (c *Receiver) Close() error { return c.group.Close() }

// Run consumes until ctx is canceled (sarama requires re-running Consume
// after every rebalance).
func (c *Receiver) Run(ctx context.Context) error {
	h := &handler{rl: c.rl}
	for {
		if err := c.group.Consume(ctx, c.topics, h); err != nil {
			log.Printf("[receiver] consume err: %v", err)
			time.Sleep(300 * time.Millisecond)
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
	}
}

type handler struct {
	rl *Relay
}

func (h *handler) Setup(sarama.ConsumerGroupSession) error   { return nil }
func (h *handler) Cleanup(sarama.ConsumerGroupSession) error { return nil }

func (h *handler) ConsumeClaim(sess sarama.ConsumerGroupSession, claim sarama.ConsumerGroupClaim) error {
	for msg := range claim.Messages() {
		m, err := Decode(msg.Value)
		if err != nil {
			// poison message; log and move on, offsets must advance
			log.Printf("[receiver] decode err: topic=%s offset=%d err=%v", msg.Topic, msg.Offset, err)
			sess.MarkMessage(msg, "")
			continue
		}

		if _, err := h.rl.Receive(sess.Context(), m); err != nil {
			// do not mark: the message re-delivers after restart/rebalance
			log.Printf("[receiver] receive err: id=%s err=%v", m.ID.Hex(), err)
			return err
		}
		sess.MarkMessage(msg, "")
	}
	return nil
}
