package state

import (
	"math/big"
	"testing"

	"otcnet/storage"
)

func addr(b byte) [20]byte {
	var a [20]byte
	a[19] = b
	return a
}

func newManager() *Manager {
	return NewManager(storage.NewMemDB())
}

func TestAccountRoundTrip(t *testing.T) {
	manager := newManager()
	account, err := manager.GetAccount(addr(1))
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if account.Balance("uotc").Sign() != 0 {
		t.Fatalf("fresh account should be empty")
	}
	account.SetBalance("uotc", big.NewInt(100))
	account.SetBalance("uatom", big.NewInt(50))
	if err := manager.PutAccount(addr(1), account); err != nil {
		t.Fatalf("put: %v", err)
	}
	loaded, err := manager.GetAccount(addr(1))
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if loaded.Balance("uotc").Int64() != 100 || loaded.Balance("uatom").Int64() != 50 {
		t.Fatalf("balances differ: %v", loaded.Balances)
	}
}

func TestPutAccountDropsZeroBalances(t *testing.T) {
	manager := newManager()
	account, _ := manager.GetAccount(addr(1))
	account.SetBalance("uotc", big.NewInt(0))
	if err := manager.PutAccount(addr(1), account); err != nil {
		t.Fatalf("put: %v", err)
	}
	loaded, err := manager.GetAccount(addr(1))
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if len(loaded.Balances) != 0 {
		t.Fatalf("zero balance persisted: %v", loaded.Balances)
	}
}

func TestTransfer(t *testing.T) {
	manager := newManager()
	account, _ := manager.GetAccount(addr(1))
	account.SetBalance("uotc", big.NewInt(100))
	if err := manager.PutAccount(addr(1), account); err != nil {
		t.Fatalf("put: %v", err)
	}
	if err := manager.Transfer(addr(1), addr(2), "uotc", big.NewInt(60)); err != nil {
		t.Fatalf("transfer: %v", err)
	}
	from, _ := manager.GetAccount(addr(1))
	to, _ := manager.GetAccount(addr(2))
	if from.Balance("uotc").Int64() != 40 || to.Balance("uotc").Int64() != 60 {
		t.Fatalf("balances after transfer: %s / %s", from.Balance("uotc"), to.Balance("uotc"))
	}
	if err := manager.Transfer(addr(1), addr(2), "uotc", big.NewInt(41)); err == nil {
		t.Fatalf("expected insufficient balance")
	}
	if err := manager.Transfer(addr(1), addr(2), "uotc", big.NewInt(-1)); err == nil {
		t.Fatalf("expected rejection of negative amount")
	}
	if err := manager.Transfer(addr(1), addr(2), "uotc", nil); err != nil {
		t.Fatalf("nil amount should be a no-op: %v", err)
	}
}

func TestBurnUpdatesLedger(t *testing.T) {
	manager := newManager()
	account, _ := manager.GetAccount(addr(1))
	account.SetBalance("uotc", big.NewInt(100))
	if err := manager.PutAccount(addr(1), account); err != nil {
		t.Fatalf("put: %v", err)
	}
	if err := manager.Burn(addr(1), "uotc", big.NewInt(30)); err != nil {
		t.Fatalf("burn: %v", err)
	}
	if err := manager.Burn(addr(1), "uotc", big.NewInt(20)); err != nil {
		t.Fatalf("burn: %v", err)
	}
	total, err := manager.BurnedTotal("uotc")
	if err != nil {
		t.Fatalf("burned total: %v", err)
	}
	if total.Int64() != 50 {
		t.Fatalf("burned %s, want 50", total)
	}
	remaining, _ := manager.GetAccount(addr(1))
	if remaining.Balance("uotc").Int64() != 50 {
		t.Fatalf("balance %s, want 50", remaining.Balance("uotc"))
	}
	if err := manager.Burn(addr(1), "uotc", big.NewInt(51)); err == nil {
		t.Fatalf("expected insufficient balance")
	}
}

func TestEscrowAccounting(t *testing.T) {
	manager := newManager()
	if err := manager.EscrowCredit("trade-1", "uotc", big.NewInt(500)); err != nil {
		t.Fatalf("credit: %v", err)
	}
	balance, err := manager.EscrowBalance("trade-1", "uotc")
	if err != nil {
		t.Fatalf("balance: %v", err)
	}
	if balance.Int64() != 500 {
		t.Fatalf("escrowed %s, want 500", balance)
	}
	if err := manager.EscrowDebit("trade-1", "uotc", big.NewInt(501)); err == nil {
		t.Fatalf("expected over-debit rejection")
	}
	if err := manager.EscrowDebit("trade-1", "uotc", big.NewInt(500)); err != nil {
		t.Fatalf("debit: %v", err)
	}
	balance, err = manager.EscrowBalance("trade-1", "uotc")
	if err != nil {
		t.Fatalf("balance: %v", err)
	}
	if balance.Sign() != 0 {
		t.Fatalf("escrowed %s, want 0", balance)
	}
	// Other trades are unaffected.
	other, err := manager.EscrowBalance("trade-2", "uotc")
	if err != nil {
		t.Fatalf("balance: %v", err)
	}
	if other.Sign() != 0 {
		t.Fatalf("unexpected escrow for trade-2: %s", other)
	}
}

func TestEscrowVaultAddressDeterministic(t *testing.T) {
	manager := newManager()
	if manager.EscrowVaultAddress("uotc") != manager.EscrowVaultAddress("UOTC") {
		t.Fatalf("vault derivation must normalise the denom")
	}
	if manager.EscrowVaultAddress("uotc") == manager.EscrowVaultAddress("uatom") {
		t.Fatalf("vaults for different denoms must differ")
	}
}

func TestKVListHelpers(t *testing.T) {
	manager := newManager()
	key := []byte("test/list")
	for _, value := range []string{"a", "b", "a"} {
		if err := manager.KVAppend(key, []byte(value)); err != nil {
			t.Fatalf("append: %v", err)
		}
	}
	var list [][]byte
	if err := manager.KVGetList(key, &list); err != nil {
		t.Fatalf("get list: %v", err)
	}
	if len(list) != 2 || string(list[0]) != "a" || string(list[1]) != "b" {
		t.Fatalf("unexpected list %q", list)
	}
	var missing [][]byte
	if err := manager.KVGetList([]byte("test/absent"), &missing); err != nil {
		t.Fatalf("get absent list: %v", err)
	}
	if len(missing) != 0 {
		t.Fatalf("absent list should be empty")
	}
}

func TestKVGetMissingKey(t *testing.T) {
	manager := newManager()
	var out uint64
	ok, err := manager.KVGet([]byte("absent"), &out)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if ok {
		t.Fatalf("expected miss")
	}
	if _, err := manager.KVGet(nil, &out); err == nil {
		t.Fatalf("expected empty key rejection")
	}
}
