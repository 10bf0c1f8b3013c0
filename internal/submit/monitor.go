package submit

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/CreditBoost360/CreditBoost-sub002/pkg/hash"
)

// Monitor polls for a receipt and resolves the transaction's terminal
// status. Cancellation stops polling but cannot un-mine an already-broadcast
// transaction; after ErrMonitorTimeout the caller reconciles independently.
func (m *Manager) Monitor(ctx context.Context, chainID int64, txHash hash.Hash32, confirmationsRequired int) (*PendingTx, error) {
	client, err := m.reg.Client(chainID)
	if err != nil {
		return nil, err
	}
	if confirmationsRequired < 0 {
		confirmationsRequired = client.Descriptor().RequiredConfirmations
	}

	pt := &PendingTx{
		TxHash:  txHash,
		ChainID: chainID,
		Status:  StatusPending,
	}

	ticker := time.NewTicker(m.cfg.PollInterval)
	defer ticker.Stop()

	for {
		rcpt, found, err := client.Receipt(ctx, txHash)
		if err != nil {
			log.Printf("[monitor] receipt poll err: chain_id=%d tx=%s err=%v", chainID, txHash.Hex(), err)
		} else if found {
			if rcpt.Reverted {
				pt.Status = StatusFailed
				log.Printf("[monitor] reverted: chain_id=%d tx=%s block=%d revert=%s",
					chainID, txHash.Hex(), rcpt.BlockNum, rcpt.Revert)
				return pt, nil
			}
			head, err := client.BlockNumber(ctx)
			if err != nil {
				log.Printf("[monitor] head poll err: chain_id=%d err=%v", chainID, err)
			} else {
				pt.Confirmations = head - rcpt.BlockNum
				if pt.Confirmations >= int64(confirmationsRequired) {
					pt.Status = StatusConfirmed
					return pt, nil
				}
			}
		}

		select {
		case <-ctx.Done():
			if errors.Is(ctx.Err(), context.DeadlineExceeded) {
				return pt, fmt.Errorf("%w: chain_id=%d tx=%s", ErrMonitorTimeout, chainID, txHash.Hex())
			}
			return pt, ctx.Err()
		case <-ticker.C:
		}
	}
}
