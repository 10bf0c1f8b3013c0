package relay

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"

	"github.com/CreditBoost360/CreditBoost-sub002/internal/ledger"
	"github.com/CreditBoost360/CreditBoost-sub002/pkg/hash"
)

type Status string

const (
	StatusSent      Status = "sent"
	StatusDelivered Status = "delivered"
	StatusProcessed Status = "processed"
	StatusFailed    Status = "failed"
)

// Message carries one record delta from a source network to a destination.
// ID is the idempotency key: a content hash over route, payload and nonce.
// Re-delivery with the same ID is a no-op on the receive side, never an
// error.
type Message struct {
	ID          hash.Hash32  `json:"id"`
	SourceChain int64        `json:"source_chain"`
	DestChain   int64        `json:"dest_chain"`
	Nonce       string       `json:"nonce"`
	Delta       ledger.Delta `json:"delta"`
	Status      Status       `json:"status"`
	SentAt      int64        `json:"sent_at"`
}

// NewMessage assigns a fresh nonce and computes the ID. Two sends of the
// same delta get distinct IDs on purpose: each send is its own logical
// delivery, and dedup guards re-delivery of one send, not re-sends.
func NewMessage(sourceChain, destChain int64, delta ledger.Delta) Message {
	nonce := uuid.NewString()
	return Message{
		ID:          ComputeID(sourceChain, destChain, delta, nonce),
		SourceChain: sourceChain,
		DestChain:   destChain,
		Nonce:       nonce,
		Delta:       delta,
		Status:      StatusSent,
		SentAt:      time.Now().Unix(),
	}
}

func ComputeID(sourceChain, destChain int64, delta ledger.Delta, nonce string) hash.Hash32 {
	b := hash.NewBuilder()
	b.PutI64(sourceChain)
	b.PutI64(destChain)
	b.PutBytes(delta.CanonicalBytes())
	b.PutString(nonce)
	return b.Sum32()
}

func Encode(m Message) ([]byte, error) { return json.Marshal(m) }

func Decode(raw []byte) (Message, error) {
	var m Message
	err := json.Unmarshal(raw, &m)
	return m, err
}
