package ledger

import "errors"

var (
	ErrRecordAlreadyExists = errors.New("credit record already exists")
	ErrRecordNotFound      = errors.New("credit record not found")
	ErrAccessDenied        = errors.New("access denied")
	ErrAccessExpired       = errors.New("access grant expired")
	ErrAccessNotFound      = errors.New("access grant not found")
	ErrNoKYCDocument       = errors.New("no kyc document on record")
	ErrInvalidTransaction  = errors.New("invalid transaction record")
	ErrInvalidGrantPeriod  = errors.New("grant duration out of range")
)
