package trade

import (
	"errors"
	"math/big"
	"testing"

	"otcnet/core/state"
	storagedb "otcnet/storage"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	return NewStore(state.NewManager(storagedb.NewMemDB()))
}

func sampleTrade(id string) *Trade {
	t := &Trade{
		ID:           id,
		Contract:     ModuleAddress(),
		OfferID:      "sell-1",
		Buyer:        testAddr(0x02),
		Seller:       testAddr(0x01),
		Arbitrator:   testAddr(0xA3),
		Denom:        "uotc",
		Amount:       big.NewInt(500),
		FiatCurrency: "USD",
		CreatedAt:    1_000_000,
		ExpiresAt:    1_001_200,
	}
	t.advance(t.Buyer, StateRequestCreated, t.CreatedAt)
	return t
}

func TestNextSequence(t *testing.T) {
	store := newTestStore(t)
	for want := uint64(1); want <= 3; want++ {
		seq, err := store.NextSequence()
		if err != nil {
			t.Fatalf("next sequence: %v", err)
		}
		if seq != want {
			t.Fatalf("sequence %d, want %d", seq, want)
		}
	}
}

func TestTradeRoundTrip(t *testing.T) {
	store := newTestStore(t)
	original := sampleTrade("sell-1_1")
	original.advance(original.Seller, StateEscrowFunded, 1_000_100)
	original.ArbitratorBuyerContact = "buyer@otc.example"
	original.ArbitratorSellerContact = "seller@otc.example"
	if err := store.TradePut(original); err != nil {
		t.Fatalf("put: %v", err)
	}
	loaded, ok, err := store.TradeGet("sell-1_1")
	if err != nil || !ok {
		t.Fatalf("get: ok=%v err=%v", ok, err)
	}
	if loaded.ID != original.ID || loaded.State != StateEscrowFunded {
		t.Fatalf("unexpected trade %+v", loaded)
	}
	if loaded.Amount.Cmp(original.Amount) != 0 {
		t.Fatalf("amount %s, want %s", loaded.Amount, original.Amount)
	}
	if loaded.Buyer != original.Buyer || loaded.Seller != original.Seller || loaded.Arbitrator != original.Arbitrator {
		t.Fatalf("parties differ: %+v", loaded)
	}
	if loaded.CreatedAt != original.CreatedAt || loaded.ExpiresAt != original.ExpiresAt {
		t.Fatalf("timestamps differ: %+v", loaded)
	}
	if len(loaded.StateHistory) != 2 {
		t.Fatalf("history length %d, want 2", len(loaded.StateHistory))
	}
	if loaded.StateHistory[1].Actor != original.Seller || loaded.StateHistory[1].Timestamp != 1_000_100 {
		t.Fatalf("history entry differs: %+v", loaded.StateHistory[1])
	}
	if loaded.ArbitratorBuyerContact != "buyer@otc.example" || loaded.ArbitratorSellerContact != "seller@otc.example" {
		t.Fatalf("contacts differ: %+v", loaded)
	}
}

func TestTradeGetMissing(t *testing.T) {
	store := newTestStore(t)
	_, ok, err := store.TradeGet("nope")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if ok {
		t.Fatalf("expected missing trade")
	}
}

func TestTradePutRejectsInconsistentHistory(t *testing.T) {
	store := newTestStore(t)
	broken := sampleTrade("sell-1_1")
	broken.State = StateEscrowFunded // history tail still says RequestCreated
	if err := store.TradePut(broken); err == nil {
		t.Fatalf("expected history mismatch rejection")
	}
	empty := sampleTrade("sell-1_2")
	empty.StateHistory = nil
	if err := store.TradePut(empty); err == nil {
		t.Fatalf("expected empty history rejection")
	}
}

func TestTradeIndexDeduplicates(t *testing.T) {
	store := newTestStore(t)
	addr := testAddr(0x02)
	for i := 0; i < 2; i++ {
		if err := store.TradeIndex(RoleBuyer, addr, "sell-1_1"); err != nil {
			t.Fatalf("index: %v", err)
		}
	}
	if err := store.TradeIndex(RoleBuyer, addr, "sell-1_2"); err != nil {
		t.Fatalf("index: %v", err)
	}
	ids, err := store.TradesByRole(RoleBuyer, addr)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(ids) != 2 || ids[0] != "sell-1_1" || ids[1] != "sell-1_2" {
		t.Fatalf("unexpected index %v", ids)
	}
}

func TestArbitratorRegistry(t *testing.T) {
	store := newTestStore(t)
	first := Arbitrator{Address: testAddr(0x05), FiatCurrency: "usd"}
	second := Arbitrator{Address: testAddr(0x03), FiatCurrency: "USD"}
	for _, arb := range []Arbitrator{first, second} {
		if err := store.ArbitratorPut(arb); err != nil {
			t.Fatalf("put: %v", err)
		}
	}
	listed, err := store.ArbitratorsByFiat("Usd")
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(listed) != 2 {
		t.Fatalf("listed %d, want 2", len(listed))
	}
	// Sorted by address so the selection draw maps onto a stable order.
	if listed[0].Address != second.Address || listed[1].Address != first.Address {
		t.Fatalf("unexpected order %+v", listed)
	}

	currencies, err := store.ArbitratorCurrencies(first.Address)
	if err != nil {
		t.Fatalf("currencies: %v", err)
	}
	if len(currencies) != 1 || currencies[0] != "USD" {
		t.Fatalf("unexpected currencies %v", currencies)
	}

	if err := store.ArbitratorRemove(first.Address, "USD"); err != nil {
		t.Fatalf("remove: %v", err)
	}
	listed, err = store.ArbitratorsByFiat("USD")
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(listed) != 1 || listed[0].Address != second.Address {
		t.Fatalf("removal not reflected: %+v", listed)
	}
	currencies, err = store.ArbitratorCurrencies(first.Address)
	if err != nil {
		t.Fatalf("currencies: %v", err)
	}
	if len(currencies) != 0 {
		t.Fatalf("currency index not cleaned: %v", currencies)
	}
	if err := store.ArbitratorRemove(first.Address, "USD"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound on double remove, got %v", err)
	}
}

func TestArbitratorRegistryRequiresCurrency(t *testing.T) {
	store := newTestStore(t)
	if err := store.ArbitratorPut(Arbitrator{Address: testAddr(0x05)}); err == nil {
		t.Fatalf("expected rejection of blank currency")
	}
}

func TestPendingSwapLifecycle(t *testing.T) {
	store := newTestStore(t)
	if err := store.PendingSwapPut("swap-1", "sell-1_1"); err != nil {
		t.Fatalf("put: %v", err)
	}
	tradeID, ok, err := store.PendingSwapGet("swap-1")
	if err != nil || !ok || tradeID != "sell-1_1" {
		t.Fatalf("get: %q %v %v", tradeID, ok, err)
	}
	if err := store.PendingSwapClear("swap-1"); err != nil {
		t.Fatalf("clear: %v", err)
	}
	tradeID, _, err = store.PendingSwapGet("swap-1")
	if err != nil {
		t.Fatalf("get after clear: %v", err)
	}
	if tradeID != "" {
		t.Fatalf("cleared correlation still resolves to %q", tradeID)
	}
}
