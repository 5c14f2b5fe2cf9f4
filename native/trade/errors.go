package trade

import (
	"errors"
	"fmt"
	"math/big"
)

// Sentinels for errors.Is checks; the typed errors below unwrap to these.
var (
	ErrNotFound              = errors.New("trade: not found")
	ErrUnauthorized          = errors.New("trade: unauthorized")
	ErrInvalidTransition     = errors.New("trade: invalid state transition")
	ErrAmountOutOfRange      = errors.New("trade: amount out of offer range")
	ErrInsufficientFunding   = errors.New("trade: insufficient funding")
	ErrExpired               = errors.New("trade: expired")
	ErrNotYetExpired         = errors.New("trade: not yet expired")
	ErrInvalidWinner         = errors.New("trade: invalid settlement winner")
	ErrMissingContact        = errors.New("trade: contact required")
	ErrCollaborator          = errors.New("trade: collaborator unavailable")
	ErrNoArbitrator          = errors.New("trade: no arbitrator registered for currency")
	ErrRandomIndexOutOfRange = errors.New("trade: random draw outside [0,99]")
)

// UnauthorizedError reports a caller that may not perform the attempted
// action.
type UnauthorizedError struct {
	Caller   [20]byte
	Expected [20]byte
}

func (e *UnauthorizedError) Error() string {
	return fmt.Sprintf("unauthorized: caller %x, expected %x", e.Caller, e.Expected)
}

func (e *UnauthorizedError) Unwrap() error { return ErrUnauthorized }

// InvalidTransitionError reports a state guard failure.
type InvalidTransitionError struct {
	From State
	To   State
}

func (e *InvalidTransitionError) Error() string {
	return fmt.Sprintf("invalid transition from %s to %s", e.From, e.To)
}

func (e *InvalidTransitionError) Unwrap() error { return ErrInvalidTransition }

// AmountOutOfRangeError reports a creation-time bound check failure.
type AmountOutOfRangeError struct {
	Amount *big.Int
	Min    *big.Int
	Max    *big.Int
}

func (e *AmountOutOfRangeError) Error() string {
	return fmt.Sprintf("amount %s outside offer range [%s, %s]", e.Amount, e.Min, e.Max)
}

func (e *AmountOutOfRangeError) Unwrap() error { return ErrAmountOutOfRange }

// InsufficientFundingError reports a funding attempt below the trade amount,
// carrying the required and sent quantities in the trade's denom.
type InsufficientFundingError struct {
	Required *big.Int
	Sent     *big.Int
}

func (e *InsufficientFundingError) Error() string {
	return fmt.Sprintf("insufficient funding: required %s, sent %s", e.Required, e.Sent)
}

func (e *InsufficientFundingError) Unwrap() error { return ErrInsufficientFunding }

// ExpiredError reports an operation against a trade whose deadline has passed.
type ExpiredError struct {
	CreatedAt int64
	ExpiresAt int64
}

func (e *ExpiredError) Error() string {
	return fmt.Sprintf("trade expired: created at %d, expired at %d", e.CreatedAt, e.ExpiresAt)
}

func (e *ExpiredError) Unwrap() error { return ErrExpired }

// NotYetExpiredError reports a refund attempted before the deadline.
type NotYetExpiredError struct {
	ExpiresAt int64
	Now       int64
}

func (e *NotYetExpiredError) Error() string {
	return fmt.Sprintf("refund not available until %d, current time %d", e.ExpiresAt, e.Now)
}

func (e *NotYetExpiredError) Unwrap() error { return ErrNotYetExpired }

// InvalidWinnerError reports a settlement winner that is neither party.
type InvalidWinnerError struct {
	Winner [20]byte
	Buyer  [20]byte
	Seller [20]byte
}

func (e *InvalidWinnerError) Error() string {
	return fmt.Sprintf("winner %x must be buyer %x or seller %x", e.Winner, e.Buyer, e.Seller)
}

func (e *InvalidWinnerError) Unwrap() error { return ErrInvalidWinner }

// MissingContactError reports a required off-chain contact field left blank.
type MissingContactError struct {
	Field string
}

func (e *MissingContactError) Error() string {
	return fmt.Sprintf("missing contact: %s", e.Field)
}

func (e *MissingContactError) Unwrap() error { return ErrMissingContact }

// CollaboratorError wraps a failed downstream query or notification.
type CollaboratorError struct {
	Collaborator string
	Err          error
}

func (e *CollaboratorError) Error() string {
	return fmt.Sprintf("collaborator %s unavailable: %v", e.Collaborator, e.Err)
}

func (e *CollaboratorError) Unwrap() error { return ErrCollaborator }
