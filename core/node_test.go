package core

import (
	"errors"
	"math/big"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"

	"otcnet/core/types"
	"otcnet/native/common"
	"otcnet/native/hub"
	"otcnet/native/incentives"
	"otcnet/native/offer"
	"otcnet/native/swap"
	"otcnet/native/trade"
	"otcnet/storage"
)

func addr(b byte) [20]byte {
	var a [20]byte
	a[19] = b
	return a
}

var (
	admin   = addr(0xA0)
	arbiter = addr(0xA3)
	seller  = addr(0x01)
	buyer   = addr(0x02)
)

func newTestNode(t *testing.T) (*Node, *int64) {
	t.Helper()
	node := NewNode(storage.NewMemDB(), nil)
	now := int64(1_000_000)
	node.SetNowFunc(func() int64 { return now })

	params := hub.DefaultParams()
	params.AdminAddress = admin
	params.TreasuryAddress = addr(0xA1)
	params.ChainFeeAddress = addr(0xA2)
	if err := node.SetParams(admin, params); err != nil {
		t.Fatalf("set params: %v", err)
	}
	if err := node.RegisterArbitrator(admin, trade.Arbitrator{Address: arbiter, FiatCurrency: "USD"}); err != nil {
		t.Fatalf("register arbitrator: %v", err)
	}
	if err := node.CreateOffer(seller, &offer.Offer{
		ID:           "sell-1",
		Type:         offer.TypeSell,
		MinAmount:    big.NewInt(100),
		MaxAmount:    big.NewInt(10_000),
		Denom:        "uotc",
		FiatCurrency: "USD",
	}); err != nil {
		t.Fatalf("create offer: %v", err)
	}
	if err := node.CreditGenesis(seller, "uotc", big.NewInt(1_000_000)); err != nil {
		t.Fatalf("credit genesis: %v", err)
	}
	return node, &now
}

func TestNodeHappyPath(t *testing.T) {
	node, now := newTestNode(t)
	created, err := node.CreateTrade(buyer, "sell-1", big.NewInt(500), "buyer@otc.example")
	if err != nil {
		t.Fatalf("create trade: %v", err)
	}
	coin := types.Coin{Denom: "uotc", Amount: big.NewInt(500)}
	if err := node.FundTrade(seller, created.ID, coin, "seller@otc.example"); err != nil {
		t.Fatalf("fund: %v", err)
	}
	if err := node.MarkFiatDeposited(buyer, created.ID); err != nil {
		t.Fatalf("deposit: %v", err)
	}
	if err := node.ReleaseTrade(seller, created.ID); err != nil {
		t.Fatalf("release: %v", err)
	}

	balance, err := node.Balance(buyer, "uotc")
	if err != nil {
		t.Fatalf("balance: %v", err)
	}
	if balance.Int64() != 496 {
		t.Fatalf("buyer payout %s, want 496", balance)
	}
	burned, err := node.BurnedTotal("uotc")
	if err != nil {
		t.Fatalf("burned: %v", err)
	}
	if burned.Int64() != 2 {
		t.Fatalf("burned %s, want 2", burned)
	}
	prof, err := node.Profile(seller)
	if err != nil {
		t.Fatalf("profile: %v", err)
	}
	if prof.TradeCount != 1 {
		t.Fatalf("trade count %d, want 1", prof.TradeCount)
	}
	if prof.Contact != "seller@otc.example" {
		t.Fatalf("seller contact %q not stored", prof.Contact)
	}
	trades, volume, err := node.Volume(buyer, "uotc", incentives.EpochDay(*now))
	if err != nil {
		t.Fatalf("volume: %v", err)
	}
	if trades != 1 || volume.Int64() != 500 {
		t.Fatalf("volume %d/%s, want 1/500", trades, volume)
	}
	events := node.RecentEvents()
	if len(events) == 0 {
		t.Fatalf("no events retained")
	}
	if events[len(events)-1].Type != trade.EventTypeTradeReleased {
		t.Fatalf("last event %q, want release", events[len(events)-1].Type)
	}
}

func TestNodeNonNativeBurnSwap(t *testing.T) {
	node, _ := newTestNode(t)
	if err := node.SetSwapRate(admin, "uatom", 3, 1); err != nil {
		t.Fatalf("set rate: %v", err)
	}
	if err := node.CreateOffer(seller, &offer.Offer{
		ID:           "sell-atom",
		Type:         offer.TypeSell,
		MinAmount:    big.NewInt(100),
		MaxAmount:    big.NewInt(10_000),
		Denom:        "uatom",
		FiatCurrency: "USD",
	}); err != nil {
		t.Fatalf("create offer: %v", err)
	}
	if err := node.CreditGenesis(seller, "uatom", big.NewInt(10_000)); err != nil {
		t.Fatalf("credit genesis: %v", err)
	}
	created, err := node.CreateTrade(buyer, "sell-atom", big.NewInt(500), "")
	if err != nil {
		t.Fatalf("create trade: %v", err)
	}
	coin := types.Coin{Denom: "uatom", Amount: big.NewInt(500)}
	if err := node.FundTrade(seller, created.ID, coin, ""); err != nil {
		t.Fatalf("fund: %v", err)
	}
	if err := node.MarkFiatDeposited(buyer, created.ID); err != nil {
		t.Fatalf("deposit: %v", err)
	}
	if err := node.ReleaseTrade(seller, created.ID); err != nil {
		t.Fatalf("release: %v", err)
	}
	// The 2 uatom burn share converts at 3:1 and burns as 6 uotc.
	burned, err := node.BurnedTotal("uotc")
	if err != nil {
		t.Fatalf("burned: %v", err)
	}
	if burned.Int64() != 6 {
		t.Fatalf("burned %s, want 6", burned)
	}
	moduleBalance, err := node.Balance(trade.ModuleAddress(), "uotc")
	if err != nil {
		t.Fatalf("module balance: %v", err)
	}
	if moduleBalance.Sign() != 0 {
		t.Fatalf("module retains %s after burn", moduleBalance)
	}
	series, err := testutil.GatherAndCount(prometheus.DefaultGatherer, "trade_burns_completed_total")
	if err != nil {
		t.Fatalf("gather metrics: %v", err)
	}
	if series == 0 {
		t.Fatalf("completed burn not counted")
	}
}

func TestNodeFailedReleaseRollsBack(t *testing.T) {
	node, _ := newTestNode(t)
	// No swap rate is configured for uatom, so the release's burn swap fails.
	if err := node.CreateOffer(seller, &offer.Offer{
		ID:           "sell-atom",
		Type:         offer.TypeSell,
		MinAmount:    big.NewInt(100),
		MaxAmount:    big.NewInt(10_000),
		Denom:        "uatom",
		FiatCurrency: "USD",
	}); err != nil {
		t.Fatalf("create offer: %v", err)
	}
	if err := node.CreditGenesis(seller, "uatom", big.NewInt(10_000)); err != nil {
		t.Fatalf("credit genesis: %v", err)
	}
	created, err := node.CreateTrade(buyer, "sell-atom", big.NewInt(500), "")
	if err != nil {
		t.Fatalf("create trade: %v", err)
	}
	coin := types.Coin{Denom: "uatom", Amount: big.NewInt(500)}
	if err := node.FundTrade(seller, created.ID, coin, ""); err != nil {
		t.Fatalf("fund: %v", err)
	}
	if err := node.MarkFiatDeposited(buyer, created.ID); err != nil {
		t.Fatalf("deposit: %v", err)
	}

	if err := node.ReleaseTrade(seller, created.ID); !errors.Is(err, trade.ErrCollaborator) {
		t.Fatalf("expected collaborator failure, got %v", err)
	}

	// The failed release leaves no trace: the trade is still fiat_deposited,
	// the escrow holds the full amount and nothing reached the swap pool or
	// the buyer.
	stored, err := node.GetTrade(created.ID)
	if err != nil {
		t.Fatalf("get trade: %v", err)
	}
	if stored.State != trade.StateFiatDeposited {
		t.Fatalf("state %s after failed release, want fiat_deposited", stored.State)
	}
	escrow, err := node.manager.EscrowBalance(created.ID, "uatom")
	if err != nil {
		t.Fatalf("escrow balance: %v", err)
	}
	if escrow.Int64() != 500 {
		t.Fatalf("escrow holds %s after failed release, want 500", escrow)
	}
	pool, err := node.Balance(swap.PoolAddress("uatom"), "uatom")
	if err != nil {
		t.Fatalf("pool balance: %v", err)
	}
	if pool.Sign() != 0 {
		t.Fatalf("failed release stranded %s in the pool", pool)
	}
	buyerBalance, err := node.Balance(buyer, "uatom")
	if err != nil {
		t.Fatalf("buyer balance: %v", err)
	}
	if buyerBalance.Sign() != 0 {
		t.Fatalf("buyer credited %s by failed release", buyerBalance)
	}
	events := node.RecentEvents()
	if len(events) == 0 || events[len(events)-1].Type == trade.EventTypeTradeReleased {
		t.Fatalf("failed release published events")
	}

	// Once the rate exists the same release succeeds end to end.
	if err := node.SetSwapRate(admin, "uatom", 3, 1); err != nil {
		t.Fatalf("set rate: %v", err)
	}
	if err := node.ReleaseTrade(seller, created.ID); err != nil {
		t.Fatalf("retried release: %v", err)
	}
	burned, err := node.BurnedTotal("uotc")
	if err != nil {
		t.Fatalf("burned: %v", err)
	}
	if burned.Int64() != 6 {
		t.Fatalf("burned %s after retry, want 6", burned)
	}
	buyerBalance, err = node.Balance(buyer, "uatom")
	if err != nil {
		t.Fatalf("buyer balance: %v", err)
	}
	if buyerBalance.Int64() != 496 {
		t.Fatalf("buyer payout %s after retry, want 496", buyerBalance)
	}
}

func TestNodeLazyExpirationPersists(t *testing.T) {
	node, now := newTestNode(t)
	created, err := node.CreateTrade(buyer, "sell-1", big.NewInt(500), "")
	if err != nil {
		t.Fatalf("create trade: %v", err)
	}
	*now = created.ExpiresAt + 1
	coin := types.Coin{Denom: "uotc", Amount: big.NewInt(500)}
	if err := node.FundTrade(seller, created.ID, coin, ""); !errors.Is(err, trade.ErrExpired) {
		t.Fatalf("expected expiry, got %v", err)
	}
	// The expired state survives the failed call.
	stored, err := node.GetTrade(created.ID)
	if err != nil {
		t.Fatalf("get trade: %v", err)
	}
	if stored.State != trade.StateRequestExpired {
		t.Fatalf("state %s after expired funding, want request_expired", stored.State)
	}
}

func TestNodePausedModules(t *testing.T) {
	node, _ := newTestNode(t)
	node.SetPausedModules([]string{"trade"})
	if _, err := node.CreateTrade(buyer, "sell-1", big.NewInt(500), ""); !errors.Is(err, common.ErrModulePaused) {
		t.Fatalf("expected pause rejection, got %v", err)
	}
	node.SetPausedModules(nil)
	if _, err := node.CreateTrade(buyer, "sell-1", big.NewInt(500), ""); err != nil {
		t.Fatalf("create after unpause: %v", err)
	}
}

func TestNodeDisputeFlow(t *testing.T) {
	node, _ := newTestNode(t)
	created, err := node.CreateTrade(buyer, "sell-1", big.NewInt(500), "")
	if err != nil {
		t.Fatalf("create trade: %v", err)
	}
	coin := types.Coin{Denom: "uotc", Amount: big.NewInt(500)}
	if err := node.FundTrade(seller, created.ID, coin, ""); err != nil {
		t.Fatalf("fund: %v", err)
	}
	if err := node.MarkFiatDeposited(buyer, created.ID); err != nil {
		t.Fatalf("deposit: %v", err)
	}
	if err := node.DisputeTrade(buyer, created.ID, "buyer@otc.example", "seller@otc.example"); err != nil {
		t.Fatalf("dispute: %v", err)
	}
	if err := node.SettleTrade(arbiter, created.ID, buyer); err != nil {
		t.Fatalf("settle: %v", err)
	}
	settled, err := node.GetTrade(created.ID)
	if err != nil {
		t.Fatalf("get trade: %v", err)
	}
	if settled.State != trade.StateSettledForTaker {
		t.Fatalf("state %s, want settled_for_taker", settled.State)
	}
	arbBalance, err := node.Balance(arbiter, "uotc")
	if err != nil {
		t.Fatalf("balance: %v", err)
	}
	if arbBalance.Int64() != 5 {
		t.Fatalf("arbitration fee %s, want 5", arbBalance)
	}
}

func TestNodeRefundFlow(t *testing.T) {
	node, now := newTestNode(t)
	created, err := node.CreateTrade(buyer, "sell-1", big.NewInt(500), "")
	if err != nil {
		t.Fatalf("create trade: %v", err)
	}
	coin := types.Coin{Denom: "uotc", Amount: big.NewInt(500)}
	if err := node.FundTrade(seller, created.ID, coin, ""); err != nil {
		t.Fatalf("fund: %v", err)
	}
	*now = created.ExpiresAt + 1
	if err := node.RefundTrade(buyer, created.ID); err != nil {
		t.Fatalf("refund: %v", err)
	}
	balance, err := node.Balance(seller, "uotc")
	if err != nil {
		t.Fatalf("balance: %v", err)
	}
	if balance.Int64() != 1_000_000 {
		t.Fatalf("seller balance %s after refund", balance)
	}
}

func TestNodeSetParamsAdminOnly(t *testing.T) {
	node, _ := newTestNode(t)
	params := hub.DefaultParams()
	params.AdminAddress = admin
	if err := node.SetParams(buyer, params); !errors.Is(err, errNotAdmin) {
		t.Fatalf("expected admin rejection, got %v", err)
	}
	if err := node.SetSwapRate(buyer, "uatom", 1, 1); !errors.Is(err, errNotAdmin) {
		t.Fatalf("expected admin rejection, got %v", err)
	}
}

func TestNodeOfferOwnership(t *testing.T) {
	node, _ := newTestNode(t)
	if err := node.CreateOffer(buyer, &offer.Offer{
		ID:           "buy-1",
		Type:         offer.TypeBuy,
		MinAmount:    big.NewInt(100),
		MaxAmount:    big.NewInt(10_000),
		Denom:        "uotc",
		FiatCurrency: "USD",
	}); err != nil {
		t.Fatalf("create offer: %v", err)
	}
	posted, err := node.GetOffer("buy-1")
	if err != nil {
		t.Fatalf("get offer: %v", err)
	}
	if posted.Owner != buyer {
		t.Fatalf("offer owner %x, want the caller", posted.Owner)
	}
}

var _ swap.ReplyHandler = (*trade.Engine)(nil)
