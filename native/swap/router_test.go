package swap

import (
	"math/big"
	"testing"

	"otcnet/core/state"
	"otcnet/core/types"
	"otcnet/storage"
)

type recordingHandler struct {
	results []Result
}

func (h *recordingHandler) HandleSwapReply(result Result) error {
	h.results = append(h.results, result)
	return nil
}

func addr(b byte) [20]byte {
	var a [20]byte
	a[19] = b
	return a
}

func newTestRouter(t *testing.T) (*PoolRouter, *state.Manager, *recordingHandler) {
	t.Helper()
	manager := state.NewManager(storage.NewMemDB())
	router := NewPoolRouter(manager)
	handler := &recordingHandler{}
	router.SetReplyHandler(handler)
	return router, manager, handler
}

func fundPool(t *testing.T, manager *state.Manager, denom string, amount int64) {
	t.Helper()
	pool := PoolAddress(denom)
	account, err := manager.GetAccount(pool)
	if err != nil {
		t.Fatalf("get pool account: %v", err)
	}
	account.SetBalance(denom, big.NewInt(amount))
	if err := manager.PutAccount(pool, account); err != nil {
		t.Fatalf("put pool account: %v", err)
	}
}

func TestSwapDeliversProceedsAndReply(t *testing.T) {
	router, manager, handler := newTestRouter(t)
	router.SetRate("uatom", 3, 1)
	fundPool(t, manager, "uatom", 100)
	recipient := addr(9)

	req := Request{
		ID:        "swap-1",
		TradeID:   "sell-1_1",
		FromDenom: "uatom",
		ToDenom:   "uotc",
		Amount:    big.NewInt(10),
		Recipient: recipient,
	}
	if err := router.Swap(req); err != nil {
		t.Fatalf("swap: %v", err)
	}
	account, err := manager.GetAccount(recipient)
	if err != nil {
		t.Fatalf("get recipient: %v", err)
	}
	if account.Balance("uotc").Int64() != 30 {
		t.Fatalf("recipient holds %s, want 30", account.Balance("uotc"))
	}
	pool, err := manager.GetAccount(PoolAddress("uatom"))
	if err != nil {
		t.Fatalf("get pool: %v", err)
	}
	if pool.Balance("uatom").Int64() != 90 {
		t.Fatalf("pool holds %s, want 90", pool.Balance("uatom"))
	}
	if len(handler.results) != 1 {
		t.Fatalf("expected one reply, got %d", len(handler.results))
	}
	result := handler.results[0]
	if result.RequestID != "swap-1" || result.Err != nil {
		t.Fatalf("unexpected reply %+v", result)
	}
	if got := ReceivedAmount(result.Events, recipient, "uotc"); got.Int64() != 30 {
		t.Fatalf("reply reports %s received, want 30", got)
	}
}

func TestSwapFailureDeliveredThroughReply(t *testing.T) {
	router, _, handler := newTestRouter(t)
	// No rate and no pool inventory.
	req := Request{
		ID:        "swap-1",
		FromDenom: "uatom",
		ToDenom:   "uotc",
		Amount:    big.NewInt(10),
		Recipient: addr(9),
	}
	if err := router.Swap(req); err != nil {
		t.Fatalf("swap delivery: %v", err)
	}
	if len(handler.results) != 1 || handler.results[0].Err == nil {
		t.Fatalf("expected failed reply, got %+v", handler.results)
	}
}

func TestSwapRejectsInvalidRequest(t *testing.T) {
	router, _, _ := newTestRouter(t)
	if err := router.Swap(Request{FromDenom: "uatom", ToDenom: "uotc", Amount: big.NewInt(1)}); err == nil {
		t.Fatalf("expected missing id rejection")
	}
	if err := router.Swap(Request{ID: "x", FromDenom: "uatom", ToDenom: "uotc", Amount: big.NewInt(0)}); err == nil {
		t.Fatalf("expected zero amount rejection")
	}
}

func TestSwapRequiresHandler(t *testing.T) {
	manager := state.NewManager(storage.NewMemDB())
	router := NewPoolRouter(manager)
	req := Request{ID: "x", FromDenom: "uatom", ToDenom: "uotc", Amount: big.NewInt(1)}
	if err := router.Swap(req); err == nil {
		t.Fatalf("expected missing handler rejection")
	}
}

func TestReceivedAmountFiltersEvents(t *testing.T) {
	recipient := addr(9)
	other := addr(8)
	events := []types.Event{
		NewReceivedEvent(recipient, "uotc", big.NewInt(5)),
		NewReceivedEvent(recipient, "uotc", big.NewInt(7)),
		NewReceivedEvent(other, "uotc", big.NewInt(100)),
		NewReceivedEvent(recipient, "uatom", big.NewInt(100)),
		{Type: "unrelated"},
	}
	if got := ReceivedAmount(events, recipient, "uotc"); got.Int64() != 12 {
		t.Fatalf("received %s, want 12", got)
	}
	if got := ReceivedAmount(nil, recipient, "uotc"); got.Sign() != 0 {
		t.Fatalf("no events should parse to zero, got %s", got)
	}
}
