package network

import "errors"

var (
	ErrNetworkNotConfigured = errors.New("network not configured")
	ErrInvalidNetwork       = errors.New("invalid network")

	// Terminal submission failures; never retried.
	ErrInsufficientFunds = errors.New("insufficient funds")
	ErrInvalidSignature  = errors.New("invalid signature")

	// Transient submission failures; retried with a fresh gas price.
	ErrNonceRace      = errors.New("nonce already used")
	ErrUnderpricedGas = errors.New("gas price below network floor")
	ErrRPCUnavailable = errors.New("rpc unavailable")

	// ErrNotFound covers missing receipts/records on the remote node.
	ErrNotFound = errors.New("not found")
)

// Wire error codes used by the node RPC. The HTTP client maps them back to
// the sentinels above so retry classification works across the wire.
const (
	CodeInsufficientFunds = "insufficient_funds"
	CodeInvalidSignature  = "invalid_signature"
	CodeNonceRace         = "nonce_race"
	CodeUnderpriced       = "underpriced"
	CodeInvalidNetwork    = "invalid_network"
	CodeNotFound          = "not_found"
)

func SentinelForCode(code string) error {
	switch code {
	case CodeInsufficientFunds:
		return ErrInsufficientFunds
	case CodeInvalidSignature:
		return ErrInvalidSignature
	case CodeNonceRace:
		return ErrNonceRace
	case CodeUnderpriced:
		return ErrUnderpricedGas
	case CodeInvalidNetwork:
		return ErrInvalidNetwork
	case CodeNotFound:
		return ErrNotFound
	default:
		return ErrRPCUnavailable
	}
}

// Terminal reports whether a submission error must not be retried.
func Terminal(err error) bool {
	return errors.Is(err, ErrInsufficientFunds) ||
		errors.Is(err, ErrInvalidSignature) ||
		errors.Is(err, ErrInvalidNetwork)
}
