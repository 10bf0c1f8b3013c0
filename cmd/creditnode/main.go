package main

import (
	"context"
	"flag"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/CreditBoost360/CreditBoost-sub002/internal/node"
	"github.com/CreditBoost360/CreditBoost-sub002/pkg/obs"
)

func main() {
	log.SetFlags(log.Ldate | log.Ltime | log.Lmicroseconds | log.Lshortfile)
	var (
		dbPath   = flag.String("db", "./data/creditnode.db", "rocksdb path")
		rpcAddr  = flag.String("rpc", ":8080", "rpc listen addr")
		chainID  = flag.Int64("chain", 1, "chain id of this network")
		contract = flag.String("contract", "credit-ledger", "ledger contract address")
		router   = flag.String("router", "relay-router", "relay router contract address")
		bureaus  = flag.String("bureaus", "", "csv of principals with the credit_bureau capability")
		det      = flag.Bool("det", false, "deterministic gas market")
		seed     = flag.Int64("seed", 1, "seed for deterministic mode")
		tick     = flag.Duration("tick", 1*time.Second, "block interval")
	)
	flag.Parse()

	obs.Init("creditnode")

	backend, err := node.OpenRocksBackend(*dbPath)
	if err != nil {
		log.Fatal(err)
	}
	defer backend.Close()

	n := node.New(node.Config{
		ChainID:        *chainID,
		LedgerContract: *contract,
		RelayRouter:    *router,
		Bureaus:        splitCSV(*bureaus),
		BlockInterval:  *tick,
		Deterministic:  *det,
		Seed:           *seed,
	}, backend)

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	srv := &http.Server{
		Addr:    *rpcAddr,
		Handler: node.NewServer(n).Handler(),
	}

	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		return n.Run(ctx)
	})

	g.Go(func() error {
		<-ctx.Done()
		shutCtx, shutCancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer shutCancel()
		return srv.Shutdown(shutCtx)
	})

	g.Go(func() error {
		obs.P("rpc listening on %s, chain_id=%d db=%s", *rpcAddr, *chainID, *dbPath)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			return err
		}
		return nil
	})

	if err := g.Wait(); err != nil && err != context.Canceled {
		log.Fatal(err)
	}
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
