package main

import (
	"context"
	"flag"
	"log"
	"strings"

	"github.com/IBM/sarama"

	"github.com/CreditBoost360/CreditBoost-sub002/internal/relay"
)

type Handler struct{}

func (Handler) Setup(sarama.ConsumerGroupSession) error   { return nil }
func (Handler) Cleanup(sarama.ConsumerGroupSession) error { return nil }
func (Handler) ConsumeClaim(
	s sarama.ConsumerGroupSession,
	c sarama.ConsumerGroupClaim,
) error {
	for msg := range c.Messages() {
		m, err := relay.Decode(msg.Value)
		if err != nil {
			log.Printf("undecodable message at partition=%d offset=%d: %v",
				msg.Partition, msg.Offset, err)
			s.MarkMessage(msg, "")
			continue
		}
		log.Printf(
			"id=%s route=%d->%d owner=%s partition=%d offset=%d",
			m.ID.Hex(),
			m.SourceChain,
			m.DestChain,
			m.Delta.Owner,
			msg.Partition,
			msg.Offset,
		)
		s.MarkMessage(msg, "")
	}
	return nil
}

func main() {
	brokers := flag.String("brokers", "localhost:9092", "comma-separated kafka brokers")
	prefix := flag.String("prefix", "credit.relay.", "relay topic prefix")
	chain := flag.Int64("chain", 2, "destination chain id to watch")
	groupID := flag.String("group", "relay-test_tools", "consumer group id")
	flag.Parse()

	cfg := sarama.NewConfig()
	cfg.Version = sarama.V2_8_0_0
	cfg.Consumer.Offsets.Initial = sarama.OffsetOldest

	group, err := sarama.NewConsumerGroup(strings.Split(*brokers, ","), *groupID, cfg)
	if err != nil {
		log.Fatal(err)
	}
	defer group.Close()

	for {
		err = group.Consume(
			context.Background(),
			[]string{relay.TopicFor(*prefix, *chain)},
			Handler{},
		)
		if err != nil {
			log.Fatal(err)
		}
	}
}
