package submit

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/CreditBoost360/CreditBoost-sub002/internal/network"
	"github.com/CreditBoost360/CreditBoost-sub002/internal/retry"
	"github.com/CreditBoost360/CreditBoost-sub002/pkg/hash"
)

const (
	DefaultMaxRetries   = 3 // total attempts
	DefaultRetryDelay   = 5 * time.Second
	DefaultPollInterval = 5 * time.Second
)

var (
	// ErrSubmissionFailed wraps the last transient error once attempts are
	// exhausted.
	ErrSubmissionFailed = errors.New("transaction submission failed")
	// ErrMonitorTimeout means monitoring gave up; the transaction may still
	// mine. The caller must reconcile state independently.
	ErrMonitorTimeout = errors.New("transaction monitoring timed out")
)

type Status string

const (
	StatusPending   Status = "pending"
	StatusConfirmed Status = "confirmed"
	StatusFailed    Status = "failed"
)

// PendingTx is owned by the Manager until it reaches a terminal status.
type PendingTx struct {
	TxHash        hash.Hash32
	ChainID       int64
	Status        Status
	Confirmations int64
	SubmittedAt   time.Time
	RetriesUsed   int
}

type Config struct {
	Strategy     Strategy
	MaxRetries   int
	RetryDelay   time.Duration
	PollInterval time.Duration
}

// Manager submits operations to a network with gas estimation, bounded
// retry and confirmation polling. Submissions for the same (network, owner)
// pair serialize on a keyed lock; everything else runs concurrently.
type Manager struct {
	reg *network.Registry
	cfg Config

	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

func NewManager(reg *network.Registry, cfg Config) *Manager {
	if cfg.Strategy == "" {
		cfg.Strategy = Average
	}
	if cfg.MaxRetries <= 0 {
		cfg.MaxRetries = DefaultMaxRetries
	}
	if cfg.RetryDelay <= 0 {
		cfg.RetryDelay = DefaultRetryDelay
	}
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = DefaultPollInterval
	}
	return &Manager{
		reg:   reg,
		cfg:   cfg,
		locks: make(map[string]*sync.Mutex),
	}
}

// Submit estimates gas, prices the transaction and sends it, resubmitting
// with a freshly recomputed gas price on transient failures. It returns once
// the network accepts the transaction into its pool; confirmation is the
// monitor's job.
func (m *Manager) Submit(ctx context.Context, chainID int64, op network.Operation) (*PendingTx, error) {
	client, err := m.reg.Client(chainID)
	if err != nil {
		return nil, err
	}
	desc := client.Descriptor()

	unlock := m.lockKey(chainID, serializationKey(op))
	defer unlock()

	estimate, err := client.EstimateGas(ctx, op)
	if err != nil {
		return nil, fmt.Errorf("estimate gas: %w", err)
	}
	gasLimit := bufferGas(estimate)

	var txHash hash.Hash32
	retries, err := retry.Do(ctx, retry.Policy{
		MaxAttempts: m.cfg.MaxRetries,
		BaseDelay:   m.cfg.RetryDelay,
		Fixed:       true,
		Classify: func(err error) retry.Class {
			if network.Terminal(err) {
				return retry.Fatal
			}
			return retry.Retryable
		},
		OnRetry: func(attempt int, wait time.Duration, err error) {
			log.Printf("[submit] resubmit: chain_id=%d method=%s attempt=%d wait=%s err=%v",
				chainID, op.Method, attempt, wait, err)
		},
	}, func(ctx context.Context) error {
		market, err := client.GasPrice(ctx)
		if err != nil {
			return fmt.Errorf("gas price: %w", err)
		}
		gasPrice := price(market, desc.GasMultiplier, m.cfg.Strategy)

		h, err := client.SendTransaction(ctx, op, gasLimit, gasPrice)
		if err != nil {
			return err
		}
		txHash = h
		return nil
	})
	if err != nil {
		if network.Terminal(err) || errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return nil, err
		}
		return nil, fmt.Errorf("%w: chain_id=%d method=%s attempts=%d: %v",
			ErrSubmissionFailed, chainID, op.Method, m.cfg.MaxRetries, err)
	}

	return &PendingTx{
		TxHash:      txHash,
		ChainID:     chainID,
		Status:      StatusPending,
		SubmittedAt: time.Now(),
		RetriesUsed: retries,
	}, nil
}

// serializationKey picks the owner the op touches; router ops fall back to
// the caller so one principal's router sends still serialize.
func serializationKey(op network.Operation) string {
	if op.Owner != "" {
		return op.Owner
	}
	return op.Caller
}

// lockKey serializes per (network, owner). Not a global lock: unrelated
// pairs never contend.
func (m *Manager) lockKey(chainID int64, owner string) (unlock func()) {
	key := fmt.Sprintf("%d/%s", chainID, owner)
	m.mu.Lock()
	l, ok := m.locks[key]
	if !ok {
		l = &sync.Mutex{}
		m.locks[key] = l
	}
	m.mu.Unlock()
	l.Lock()
	return l.Unlock
}
