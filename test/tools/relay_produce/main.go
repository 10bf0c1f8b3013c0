package main

import (
	"flag"
	"log"
	"strings"

	"github.com/IBM/sarama"

	"github.com/CreditBoost360/CreditBoost-sub002/internal/ledger"
	"github.com/CreditBoost360/CreditBoost-sub002/internal/relay"
)

// publishes one hand-built relay message so a running relayer can be
// exercised without a live source chain
func main() {
	brokers := flag.String("brokers", "localhost:9092", "comma-separated kafka brokers")
	prefix := flag.String("prefix", "credit.relay.", "relay topic prefix")
	source := flag.Int64("source", 1, "source chain id")
	dest := flag.Int64("dest", 2, "destination chain id")
	owner := flag.String("owner", "test-owner", "record owner")
	score := flag.Int64("score", 700, "score to ship")
	update := flag.Int64("update", 1, "last_update of the delta")
	flag.Parse()

	cfg := sarama.NewConfig()
	cfg.Producer.Return.Successes = true
	cfg.Producer.RequiredAcks = sarama.WaitForAll

	producer, err := sarama.NewSyncProducer(strings.Split(*brokers, ","), cfg)
	if err != nil {
		log.Fatal(err)
	}
	defer producer.Close()

	m := relay.NewMessage(*source, *dest, ledger.Delta{
		Owner:      *owner,
		Score:      score,
		LastUpdate: *update,
	})
	raw, err := relay.Encode(m)
	if err != nil {
		log.Fatal(err)
	}

	partition, offset, err := producer.SendMessage(&sarama.ProducerMessage{
		Topic: relay.TopicFor(*prefix, *dest),
		Key:   sarama.StringEncoder(*owner),
		Value: sarama.ByteEncoder(raw),
	})
	if err != nil {
		log.Fatal(err)
	}

	log.Printf("sent id=%s to partition=%d offset=%d\n", m.ID.Hex(), partition, offset)
}
