package offer

import (
	"errors"
	"fmt"
	"math/big"
)

// storage abstracts the subset of state manager functionality required by the
// offer book.
type storage interface {
	KVGet(key []byte, out interface{}) (bool, error)
	KVPut(key []byte, value interface{}) error
}

var offerPrefix = []byte("offer/")

var (
	// ErrNotFound marks lookups for unknown offer ids.
	ErrNotFound = errors.New("offer: not found")

	errBookNotConfigured = errors.New("offer: book not configured")
)

// Book persists offers and serves the read-only lookups consumed by the trade
// engine.
type Book struct {
	state storage
}

// NewBook constructs an offer book bound to the supplied state backend.
func NewBook(state storage) *Book {
	return &Book{state: state}
}

type storedOffer struct {
	ID           string
	Owner        [20]byte
	Type         uint8
	MinAmount    *big.Int
	MaxAmount    *big.Int
	Denom        string
	FiatCurrency string
}

func offerKey(id string) []byte {
	return append(append([]byte(nil), offerPrefix...), []byte(id)...)
}

// Put validates and stores the supplied offer.
func (b *Book) Put(o *Offer) error {
	if b == nil || b.state == nil {
		return errBookNotConfigured
	}
	sanitized, err := Sanitize(o)
	if err != nil {
		return err
	}
	stored := storedOffer{
		ID:           sanitized.ID,
		Owner:        sanitized.Owner,
		Type:         uint8(sanitized.Type),
		MinAmount:    sanitized.MinAmount,
		MaxAmount:    sanitized.MaxAmount,
		Denom:        sanitized.Denom,
		FiatCurrency: sanitized.FiatCurrency,
	}
	return b.state.KVPut(offerKey(sanitized.ID), &stored)
}

// Get resolves an offer by id.
func (b *Book) Get(id string) (*Offer, error) {
	if b == nil || b.state == nil {
		return nil, errBookNotConfigured
	}
	var stored storedOffer
	ok, err := b.state.KVGet(offerKey(id), &stored)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	o := &Offer{
		ID:           stored.ID,
		Owner:        stored.Owner,
		Type:         Type(stored.Type),
		MinAmount:    stored.MinAmount,
		MaxAmount:    stored.MaxAmount,
		Denom:        stored.Denom,
		FiatCurrency: stored.FiatCurrency,
	}
	return Sanitize(o)
}
