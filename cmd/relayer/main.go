package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"golang.org/x/sync/errgroup"

	"github.com/CreditBoost360/CreditBoost-sub002/internal/config"
	"github.com/CreditBoost360/CreditBoost-sub002/internal/network"
	"github.com/CreditBoost360/CreditBoost-sub002/internal/relay"
	"github.com/CreditBoost360/CreditBoost-sub002/internal/submit"
	"github.com/CreditBoost360/CreditBoost-sub002/pkg/obs"
)

func main() {
	log.SetFlags(log.Ldate | log.Ltime | log.Lmicroseconds | log.Lshortfile)

	obs.Init("relayer")

	cfg, err := config.LoadRelayer()
	if err != nil {
		log.Fatal(err)
	}

	descs, err := network.LoadDescriptors(cfg.NetworksFile)
	if err != nil {
		log.Fatal(err)
	}
	reg, err := network.NewRegistry(descs, network.DialHTTP)
	if err != nil {
		log.Fatal(err)
	}

	sub := submit.NewManager(reg, submit.Config{
		Strategy:     submit.Strategy(cfg.GasStrategy),
		MaxRetries:   cfg.MaxRetries,
		RetryDelay:   cfg.RetryDelay,
		PollInterval: cfg.PollInterval,
	})

	router, err := relay.NewKafkaRouter(cfg.KafkaBrokers, cfg.TopicPrefix)
	if err != nil {
		log.Fatal(err)
	}
	defer router.Close()

	var history relay.Recorder = relay.NopRecorder{}
	if cfg.PGDSN != "" {
		pg, err := relay.NewPGRecorderFromEnv()
		if err != nil {
			log.Fatal(err)
		}
		defer pg.Close()
		history = pg
	}

	rl := relay.New(reg, sub, router, history)

	// every configured network gets a remote receive side plus a consumer
	// topic; the node's processed set keeps re-deliveries idempotent
	var topics []string
	for _, chainID := range reg.ChainIDs() {
		client, err := reg.Client(chainID)
		if err != nil {
			log.Fatal(err)
		}
		rl.AddEndpoint(&relay.RemoteEndpoint{
			Chain:  chainID,
			Sub:    sub,
			Client: client,
		})
		topics = append(topics, relay.TopicFor(cfg.TopicPrefix, chainID))
	}

	rcv, err := relay.NewReceiver(cfg.KafkaBrokers, cfg.KafkaGroup, topics, rl)
	if err != nil {
		log.Fatal(err)
	}
	defer rcv.Close()

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return rcv.Run(ctx)
	})

	obs.P("consuming %d topics, group=%s brokers=%s", len(topics), cfg.KafkaGroup, cfg.KafkaBrokers)
	if err := g.Wait(); err != nil && err != context.Canceled {
		log.Fatal(err)
	}
}
