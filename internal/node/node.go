// Package node is a self-contained simulated credit ledger network: one
// chain, one ledger contract, one relay router. It exists so the registry,
// submission manager and relay can be run and tested end to end without a
// real blockchain behind them.
package node

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"math/rand"
	"sync"
	"time"

	"github.com/CreditBoost360/CreditBoost-sub002/internal/ledger"
	"github.com/CreditBoost360/CreditBoost-sub002/internal/network"
	"github.com/CreditBoost360/CreditBoost-sub002/internal/relay"
	"github.com/CreditBoost360/CreditBoost-sub002/pkg/hash"
	"github.com/CreditBoost360/CreditBoost-sub002/pkg/rng"
)

// RPCError carries a wire error code understood by the HTTP client's
// sentinel mapping.
type RPCError struct {
	Code string
	Msg  string
}

func (e *RPCError) Error() string { return e.Code + ": " + e.Msg }

func rpcErr(code, format string, args ...any) *RPCError {
	return &RPCError{Code: code, Msg: fmt.Sprintf(format, args...)}
}

type Config struct {
	ChainID        int64
	LedgerContract string
	RelayRouter    string

	// Bureaus receive the credit_bureau capability at startup.
	Bureaus []string

	BlockInterval  time.Duration
	BaseGasPrice   uint64
	OpeningBalance uint64

	Deterministic bool
	Seed          int64
}

const baseOpGas = 21000

var methodGas = map[string]uint64{
	"createRecord":   32000,
	"updateScore":    8000,
	"addTransaction": 12000,
	"updateKYC":      9000,
	"verifyKYC":      7000,
	"grantAccess":    10000,
	"revokeAccess":   6000,
	"sendMessage":    15000,
	"deliverMessage": 20000,
}

type Node struct {
	cfg     Config
	backend Backend
	sm      *ledger.StateMachine
	caps    *ledger.Capabilities
	ep      *relay.LocalEndpoint

	gasRand *rand.Rand

	mu       sync.Mutex
	balances map[string]uint64
	txSeq    uint64
}

func New(cfg Config, backend Backend) *Node {
	if cfg.BlockInterval <= 0 {
		cfg.BlockInterval = time.Second
	}
	if cfg.BaseGasPrice == 0 {
		cfg.BaseGasPrice = 1_000_000_000 // 1 gwei
	}
	if cfg.OpeningBalance == 0 {
		cfg.OpeningBalance = 1 << 62
	}
	mode := rng.Real
	if cfg.Deterministic {
		mode = rng.Deterministic
	}
	rf := rng.New(mode, cfg.Seed)

	caps := ledger.NewCapabilities()
	for _, b := range cfg.Bureaus {
		caps.Grant(b, ledger.CapCreditBureau)
	}
	sm := ledger.NewStateMachine(backend.Records(), caps)

	return &Node{
		cfg:     cfg,
		backend: backend,
		sm:      sm,
		caps:    caps,
		ep: &relay.LocalEndpoint{
			Chain:     cfg.ChainID,
			SM:        sm,
			Processed: backend.Processed(),
		},
		gasRand:  rf.R("gas_market"),
		balances: make(map[string]uint64),
	}
}

func (n *Node) ChainID() int64 { return n.cfg.ChainID }

func (n *Node) StateMachine() *ledger.StateMachine { return n.sm }

// Run advances the head on a timer so confirmations accrue even without
// traffic. Blocks until ctx is done.
func (n *Node) Run(ctx context.Context) error {
	ticker := time.NewTicker(n.cfg.BlockInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			n.mu.Lock()
			if err := n.advanceHead(); err != nil {
				log.Printf("[node] advance head err: chain_id=%d err=%v", n.cfg.ChainID, err)
			}
			n.mu.Unlock()
		}
	}
}

// advanceHead must be called with mu held.
func (n *Node) advanceHead() error {
	head, err := n.backend.Head()
	if err != nil {
		return err
	}
	return n.backend.SetHead(head + 1)
}

// Fund sets a principal's gas balance. Tests use it to force the
// insufficient-funds path.
func (n *Node) Fund(principal string, balance uint64) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.balances[principal] = balance
}

func (n *Node) balanceOf(principal string) uint64 {
	if b, ok := n.balances[principal]; ok {
		return b
	}
	n.balances[principal] = n.cfg.OpeningBalance
	return n.cfg.OpeningBalance
}

func (n *Node) EstimateGas(op network.Operation) (uint64, error) {
	if err := n.checkContract(op); err != nil {
		return 0, err
	}
	cost, ok := methodGas[op.Method]
	if !ok {
		return 0, rpcErr(network.CodeInvalidNetwork, "unknown method %q", op.Method)
	}
	return baseOpGas + cost + 16*uint64(len(op.Args)), nil
}

// GasPrice reports the simulated market price: the base moved by up to
// plus or minus twenty percent per query.
func (n *Node) GasPrice() uint64 {
	n.mu.Lock()
	defer n.mu.Unlock()
	pct := uint64(80 + n.gasRand.Intn(41))
	return n.cfg.BaseGasPrice * pct / 100
}

// gasFloor is the acceptance threshold; prices below it are rejected as
// underpriced, which the submitter treats as transient.
func (n *Node) gasFloor() uint64 { return n.cfg.BaseGasPrice / 2 }

func (n *Node) checkContract(op network.Operation) error {
	switch op.Contract {
	case n.cfg.LedgerContract, n.cfg.RelayRouter:
		return nil
	}
	return rpcErr(network.CodeInvalidNetwork, "contract %q not deployed on chain_id=%d", op.Contract, n.cfg.ChainID)
}

// SendTransaction validates, executes and mines the operation into the next
// block. Ledger-level failures do not fail the send: the transaction mines
// with a reverted receipt, exactly as a real network behaves.
func (n *Node) SendTransaction(op network.Operation, gasLimit, gasPrice uint64) (hash.Hash32, error) {
	if err := n.checkContract(op); err != nil {
		return hash.Hash32{}, err
	}
	if op.Caller == "" {
		return hash.Hash32{}, rpcErr(network.CodeInvalidSignature, "missing caller")
	}
	if gasPrice < n.gasFloor() {
		return hash.Hash32{}, rpcErr(network.CodeUnderpriced, "gas_price=%d floor=%d", gasPrice, n.gasFloor())
	}

	n.mu.Lock()
	defer n.mu.Unlock()

	cost := gasLimit * gasPrice
	if n.balanceOf(op.Caller) < cost {
		return hash.Hash32{}, rpcErr(network.CodeInsufficientFunds,
			"caller=%s needs=%d has=%d", op.Caller, cost, n.balances[op.Caller])
	}

	n.txSeq++
	txHash := n.txHash(op, n.txSeq)

	ret, execErr := n.execute(op)

	gasUsed := gasLimit
	if est, err := n.EstimateGas(op); err == nil && est < gasUsed {
		gasUsed = est
	}
	n.balances[op.Caller] -= gasUsed * gasPrice

	if err := n.advanceHead(); err != nil {
		return hash.Hash32{}, err
	}
	head, err := n.backend.Head()
	if err != nil {
		return hash.Hash32{}, err
	}

	rcpt := &network.Receipt{
		TxHash:   txHash,
		BlockNum: head,
		GasUsed:  gasUsed,
		Return:   ret,
	}
	if execErr != nil {
		rcpt.Reverted = true
		rcpt.Revert = execErr.Error()
		log.Printf("[node] reverted: chain_id=%d tx=%s method=%s err=%v",
			n.cfg.ChainID, txHash.Hex(), op.Method, execErr)
	}
	if err := n.backend.PutReceipt(rcpt); err != nil {
		return hash.Hash32{}, err
	}
	return txHash, nil
}

func (n *Node) txHash(op network.Operation, seq uint64) hash.Hash32 {
	b := hash.NewBuilder()
	b.PutI64(n.cfg.ChainID)
	b.PutU64(seq)
	b.PutString(op.Contract)
	b.PutString(op.Method)
	b.PutString(op.Caller)
	b.PutString(op.Owner)
	b.PutBytes(op.Args)
	return b.Sum32()
}

func (n *Node) Receipt(txHash hash.Hash32) (*network.Receipt, bool, error) {
	return n.backend.GetReceipt(txHash)
}

func (n *Node) BlockNumber() (int64, error) {
	return n.backend.Head()
}

func (n *Node) GetRecord(owner string) (*ledger.Record, error) {
	return n.sm.Get(owner)
}

func (n *Node) IsProcessed(id hash.Hash32) (bool, error) {
	return n.backend.Processed().Contains(id)
}

type createRecordArgs struct {
	InitialScore int64                      `json:"initial_score"`
	History      []ledger.TransactionRecord `json:"history"`
}

type updateScoreArgs struct {
	NewScore int64 `json:"new_score"`
}

type addTransactionArgs struct {
	Entry ledger.TransactionRecord `json:"entry"`
}

type updateKYCArgs struct {
	KYCHash hash.Hash32 `json:"kyc_hash"`
}

type verifyKYCArgs struct {
	Verified bool `json:"verified"`
}

type grantAccessArgs struct {
	Institution  string `json:"institution"`
	DurationDays int    `json:"duration_days"`
	CanWrite     bool   `json:"can_write"`
}

type revokeAccessArgs struct {
	Institution string `json:"institution"`
}

type sendMessageArgs struct {
	DestChain int64  `json:"dest_chain"`
	MessageID string `json:"message_id"`
	Payload   []byte `json:"payload"`
}

// execute runs the contract call; the byte payload is the method's return
// value for methods that have one.
func (n *Node) execute(op network.Operation) ([]byte, error) {
	if op.Contract == n.cfg.RelayRouter {
		return nil, n.executeRouter(op)
	}
	return n.executeLedger(op)
}

func (n *Node) executeLedger(op network.Operation) ([]byte, error) {
	switch op.Method {
	case "createRecord":
		var a createRecordArgs
		if err := json.Unmarshal(op.Args, &a); err != nil {
			return nil, fmt.Errorf("bad args: %w", err)
		}
		_, err := n.sm.Create(op.Owner, a.InitialScore, a.History)
		return nil, err

	case "updateScore":
		var a updateScoreArgs
		if err := json.Unmarshal(op.Args, &a); err != nil {
			return nil, fmt.Errorf("bad args: %w", err)
		}
		_, err := n.sm.UpdateScore(op.Caller, op.Owner, a.NewScore)
		return nil, err

	case "addTransaction":
		var a addTransactionArgs
		if err := json.Unmarshal(op.Args, &a); err != nil {
			return nil, fmt.Errorf("bad args: %w", err)
		}
		_, err := n.sm.AddTransaction(op.Caller, op.Owner, a.Entry)
		return nil, err

	case "updateKYC":
		var a updateKYCArgs
		if err := json.Unmarshal(op.Args, &a); err != nil {
			return nil, fmt.Errorf("bad args: %w", err)
		}
		_, err := n.sm.UpdateKYC(op.Caller, op.Owner, a.KYCHash)
		return nil, err

	case "verifyKYC":
		var a verifyKYCArgs
		if err := json.Unmarshal(op.Args, &a); err != nil {
			return nil, fmt.Errorf("bad args: %w", err)
		}
		_, err := n.sm.VerifyKYC(op.Caller, op.Owner, a.Verified)
		return nil, err

	case "grantAccess":
		var a grantAccessArgs
		if err := json.Unmarshal(op.Args, &a); err != nil {
			return nil, fmt.Errorf("bad args: %w", err)
		}
		g, err := n.sm.GrantAccess(op.Caller, op.Owner, a.Institution, a.DurationDays, a.CanWrite)
		if err != nil {
			return nil, err
		}
		// the created grant is the method's return value
		return json.Marshal(g)

	case "revokeAccess":
		var a revokeAccessArgs
		if err := json.Unmarshal(op.Args, &a); err != nil {
			return nil, fmt.Errorf("bad args: %w", err)
		}
		return nil, n.sm.RevokeAccess(op.Caller, op.Owner, a.Institution)
	}
	return nil, fmt.Errorf("unknown ledger method %q", op.Method)
}

func (n *Node) executeRouter(op network.Operation) error {
	switch op.Method {
	case "sendMessage":
		// outbound intent only; the off-chain transport carries the payload
		var a sendMessageArgs
		if err := json.Unmarshal(op.Args, &a); err != nil {
			return fmt.Errorf("bad args: %w", err)
		}
		if a.DestChain == n.cfg.ChainID {
			return fmt.Errorf("dest_chain=%d is the local chain", a.DestChain)
		}
		log.Printf("[node] router send: chain_id=%d dst=%d id=%s", n.cfg.ChainID, a.DestChain, a.MessageID)
		return nil

	case "deliverMessage":
		m, err := relay.Decode(op.Args)
		if err != nil {
			return fmt.Errorf("bad args: %w", err)
		}
		if m.DestChain != n.cfg.ChainID {
			return fmt.Errorf("message dest_chain=%d, this is chain_id=%d", m.DestChain, n.cfg.ChainID)
		}
		_, err = n.ep.Deliver(context.Background(), m)
		return err
	}
	return fmt.Errorf("unknown router method %q", op.Method)
}
