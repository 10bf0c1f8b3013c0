package node

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"strings"

	"github.com/CreditBoost360/CreditBoost-sub002/internal/ledger"
	"github.com/CreditBoost360/CreditBoost-sub002/internal/network"
	"github.com/CreditBoost360/CreditBoost-sub002/pkg/hash"
)

// Server exposes the node over HTTP for the registry's dial-by-descriptor
// client.
type Server struct {
	n *Node
}

func NewServer(n *Node) *Server { return &Server{n: n} }

func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("/tx/estimate", s.handleEstimate)
	mux.HandleFunc("/tx/send", s.handleSend)
	mux.HandleFunc("/tx/receipt/", s.handleReceipt)
	mux.HandleFunc("/gas/price", s.handleGasPrice)
	mux.HandleFunc("/chain/head", s.handleChainHead)
	mux.HandleFunc("/record/", s.handleRecord)
	mux.HandleFunc("/relay/processed/", s.handleProcessed)

	return mux
}

// -------------------- helpers --------------------

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

type wireError struct {
	Code string `json:"code"`
	Msg  string `json:"msg"`
}

func writeErr(w http.ResponseWriter, err error) {
	var re *RPCError
	if errors.As(err, &re) {
		status := http.StatusBadRequest
		if re.Code == network.CodeNotFound {
			status = http.StatusNotFound
		}
		writeJSON(w, status, wireError{Code: re.Code, Msg: re.Msg})
		return
	}
	if errors.Is(err, ledger.ErrRecordNotFound) {
		writeJSON(w, http.StatusNotFound, wireError{Code: network.CodeNotFound, Msg: err.Error()})
		return
	}
	log.Printf("[rpc] internal err: %v", err)
	writeJSON(w, http.StatusInternalServerError, wireError{Code: "internal", Msg: err.Error()})
}

func badRequest(w http.ResponseWriter, msg string) {
	writeJSON(w, http.StatusBadRequest, wireError{Code: "bad_request", Msg: msg})
}

// -------------------- handlers --------------------

type estimateReq struct {
	Op network.Operation `json:"op"`
}

func (s *Server) handleEstimate(w http.ResponseWriter, r *http.Request) {
	var in estimateReq
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		badRequest(w, "bad body")
		return
	}
	gas, err := s.n.EstimateGas(in.Op)
	if err != nil {
		writeErr(w, err)
		return
	}
	writeJSON(w, 200, map[string]any{"gas": gas})
}

type sendReq struct {
	Op       network.Operation `json:"op"`
	GasLimit uint64            `json:"gas_limit"`
	GasPrice uint64            `json:"gas_price"`
}

func (s *Server) handleSend(w http.ResponseWriter, r *http.Request) {
	var in sendReq
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		badRequest(w, "bad body")
		return
	}
	txHash, err := s.n.SendTransaction(in.Op, in.GasLimit, in.GasPrice)
	if err != nil {
		writeErr(w, err)
		return
	}
	writeJSON(w, 200, map[string]any{"tx_hash": txHash})
}

func (s *Server) handleReceipt(w http.ResponseWriter, r *http.Request) {
	hexStr := strings.TrimPrefix(r.URL.Path, "/tx/receipt/")
	txHash, err := hash.Parse(hexStr)
	if err != nil {
		badRequest(w, "bad tx hash")
		return
	}
	rcpt, ok, err := s.n.Receipt(txHash)
	if err != nil {
		writeErr(w, err)
		return
	}
	if !ok {
		writeJSON(w, http.StatusNotFound, wireError{Code: network.CodeNotFound, Msg: "no receipt"})
		return
	}
	writeJSON(w, 200, rcpt)
}

func (s *Server) handleGasPrice(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, 200, map[string]any{"price": s.n.GasPrice()})
}

func (s *Server) handleChainHead(w http.ResponseWriter, r *http.Request) {
	head, err := s.n.BlockNumber()
	if err != nil {
		writeErr(w, err)
		return
	}
	writeJSON(w, 200, map[string]any{"head_num": head, "empty": head == 0})
}

func (s *Server) handleRecord(w http.ResponseWriter, r *http.Request) {
	owner := strings.TrimPrefix(r.URL.Path, "/record/")
	if owner == "" {
		badRequest(w, "missing owner")
		return
	}
	rec, err := s.n.GetRecord(owner)
	if err != nil {
		writeErr(w, err)
		return
	}
	writeJSON(w, 200, rec)
}

func (s *Server) handleProcessed(w http.ResponseWriter, r *http.Request) {
	hexStr := strings.TrimPrefix(r.URL.Path, "/relay/processed/")
	id, err := hash.Parse(hexStr)
	if err != nil {
		badRequest(w, "bad message id")
		return
	}
	done, err := s.n.IsProcessed(id)
	if err != nil {
		writeErr(w, err)
		return
	}
	writeJSON(w, 200, map[string]any{"processed": done})
}
