package profile

import (
	"testing"

	"otcnet/core/state"
	storagedb "otcnet/storage"
)

func newTestLedger() *Ledger {
	return NewLedger(state.NewManager(storagedb.NewMemDB()))
}

func addr(b byte) [20]byte {
	var a [20]byte
	a[19] = b
	return a
}

func TestGetUnknownAddress(t *testing.T) {
	ledger := newTestLedger()
	profile, err := ledger.Get(addr(1))
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if profile.TradeCount != 0 || profile.Contact != "" {
		t.Fatalf("unknown address should be empty: %+v", profile)
	}
}

func TestIncrementTradeCount(t *testing.T) {
	ledger := newTestLedger()
	for i := 0; i < 3; i++ {
		if err := ledger.IncrementTradeCount(addr(1)); err != nil {
			t.Fatalf("increment: %v", err)
		}
	}
	profile, err := ledger.Get(addr(1))
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if profile.TradeCount != 3 {
		t.Fatalf("count %d, want 3", profile.TradeCount)
	}
}

func TestUpdateContact(t *testing.T) {
	ledger := newTestLedger()
	if err := ledger.UpdateContact(addr(1), "  maker@otc.example  "); err != nil {
		t.Fatalf("update: %v", err)
	}
	profile, err := ledger.Get(addr(1))
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if profile.Contact != "maker@otc.example" {
		t.Fatalf("contact %q not trimmed and stored", profile.Contact)
	}
	// A blank update keeps the existing contact.
	if err := ledger.UpdateContact(addr(1), "  "); err != nil {
		t.Fatalf("blank update: %v", err)
	}
	profile, err = ledger.Get(addr(1))
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if profile.Contact != "maker@otc.example" {
		t.Fatalf("blank update cleared contact: %q", profile.Contact)
	}
}

func TestLedgerNotConfigured(t *testing.T) {
	var ledger *Ledger
	if _, err := ledger.Get(addr(1)); err == nil {
		t.Fatalf("expected configuration error")
	}
	if err := ledger.IncrementTradeCount(addr(1)); err == nil {
		t.Fatalf("expected configuration error")
	}
}
