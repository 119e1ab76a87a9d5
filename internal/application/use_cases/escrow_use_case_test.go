package use_cases

import (
	"context"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp/cmpopts"
	"github.com/peterldowns/testy/assert"
	"github.com/peterldowns/testy/check"
	"github.com/shopspring/decimal"

	"github.com/gavelworks/auction-settlement-service/internal/application/auth"
	domainErrors "github.com/gavelworks/auction-settlement-service/internal/domain/errors"
	"github.com/gavelworks/auction-settlement-service/internal/domain/escrow"
	"github.com/gavelworks/auction-settlement-service/internal/domain/listing"
	"github.com/gavelworks/auction-settlement-service/internal/pkg/clock"
	"github.com/gavelworks/auction-settlement-service/internal/pkg/generator"
	"github.com/gavelworks/auction-settlement-service/internal/pkg/logger"
)

func newEscrowFixture(t *testing.T) (*EscrowUseCase, *fakeStore, *fakeGateway, *clock.MockClock) {
	t.Helper()
	store := newFakeStore()
	gateway := &fakeGateway{}
	clk := clock.NewMockClock(baseTime)
	uc := NewEscrowUseCase(store, store, gateway, store, generator.NewIDGenerator(), clk, logger.NewLogger())
	return uc, store, gateway, clk
}

func seedTransaction(t *testing.T, store *fakeStore) *escrow.Transaction {
	t.Helper()
	rates, err := fakeSettings{}.GetCommissionRates(context.Background())
	assert.NoError(t, err)
	breakdown, err := escrow.Calculate(decimal.NewFromInt(500), rates, decimal.Zero)
	assert.NoError(t, err)

	tx := escrow.NewTransaction("tx-1", "item-1", "buyer-1", "seller-1", breakdown, baseTime)
	created, err := store.CreateIfAbsent(context.Background(), tx)
	assert.NoError(t, err)
	assert.True(t, created)

	item, err := listing.NewQuickSaleItem("item-1", "seller-1", "brass lamp", decimal.NewFromInt(500), baseTime)
	assert.NoError(t, err)
	item.Status = listing.ItemStatusSold
	assert.NoError(t, store.CreateItem(context.Background(), item))
	return tx
}

var (
	buyer  = auth.Identity{ID: "buyer-1", Role: auth.RoleProfessional}
	seller = auth.Identity{ID: "seller-1", Role: auth.RoleIndividual}
	admin  = auth.Identity{ID: "ops", Role: auth.RoleAdmin}
)

func TestPayHoldsFunds(t *testing.T) {
	uc, store, _, _ := newEscrowFixture(t)
	ctx := context.Background()
	seedTransaction(t, store)

	tx, err := uc.Pay(ctx, buyer, "tx-1")
	assert.NoError(t, err)
	check.Equal(t, escrow.PaymentStatusHeld, tx.PaymentStatus)
	check.Equal(t, escrow.LifecycleAwaitingShipping, tx.LifecycleStatus)
	check.NotEqual(t, "", tx.PaymentIntentID)
	assert.NotNil(t, tx.PaidAt)

	stored, err := store.GetByID(ctx, "tx-1")
	assert.NoError(t, err)
	check.Equal(t, escrow.PaymentStatusHeld, stored.PaymentStatus)
}

func TestPayRejectsNonBuyer(t *testing.T) {
	uc, store, _, _ := newEscrowFixture(t)
	seedTransaction(t, store)

	_, err := uc.Pay(context.Background(), seller, "tx-1")
	check.Equal(t, domainErrors.ErrForbidden, err, cmpopts.EquateErrors())
}

func TestPayTwiceRejected(t *testing.T) {
	uc, store, _, _ := newEscrowFixture(t)
	ctx := context.Background()
	seedTransaction(t, store)

	_, err := uc.Pay(ctx, buyer, "tx-1")
	assert.NoError(t, err)
	_, err = uc.Pay(ctx, buyer, "tx-1")
	check.Equal(t, domainErrors.ErrPaymentNotPending, err, cmpopts.EquateErrors())
}

func TestPayConcurrentAuthorizationSingleWinner(t *testing.T) {
	uc, store, gateway, clk := newEscrowFixture(t)
	ctx := context.Background()
	seedTransaction(t, store)

	// A rival authorization lands between this call's read and its write.
	// The conditional update must reject the stale transition and leave the
	// rival's intent on the row.
	store.beforeTransactionWrite = func() {
		store.beforeTransactionWrite = nil
		store.mu.Lock()
		defer store.mu.Unlock()
		assert.NoError(t, store.transactions["tx-1"].AuthorizePayment("pi_rival", clk.Now()))
	}

	_, err := uc.Pay(ctx, buyer, "tx-1")
	check.Equal(t, domainErrors.ErrPaymentNotPending, err, cmpopts.EquateErrors())

	stored, err := store.GetByID(ctx, "tx-1")
	assert.NoError(t, err)
	check.Equal(t, escrow.PaymentStatusHeld, stored.PaymentStatus)
	check.Equal(t, "pi_rival", stored.PaymentIntentID)
	check.Equal(t, 1, len(gateway.intents))
}

func TestCancelConcurrentWithPaymentKeepsTransaction(t *testing.T) {
	uc, store, _, clk := newEscrowFixture(t)
	ctx := context.Background()
	seedTransaction(t, store)

	store.beforeTransactionWrite = func() {
		store.beforeTransactionWrite = nil
		store.mu.Lock()
		defer store.mu.Unlock()
		assert.NoError(t, store.transactions["tx-1"].AuthorizePayment("pi_rival", clk.Now()))
	}

	err := uc.Cancel(ctx, buyer, "tx-1")
	check.Equal(t, domainErrors.ErrPaymentNotPending, err, cmpopts.EquateErrors())

	stored, err := store.GetByID(ctx, "tx-1")
	assert.NoError(t, err)
	check.Equal(t, escrow.PaymentStatusHeld, stored.PaymentStatus)

	item, err := store.GetItemByID(ctx, "item-1")
	assert.NoError(t, err)
	check.Equal(t, listing.ItemStatusSold, item.Status)
}

func TestFullLifecycleReleasesFunds(t *testing.T) {
	uc, store, gateway, clk := newEscrowFixture(t)
	ctx := context.Background()
	seedTransaction(t, store)

	_, err := uc.Pay(ctx, buyer, "tx-1")
	assert.NoError(t, err)

	clk.Advance(24 * time.Hour)
	tx, err := uc.Ship(ctx, seller, "tx-1", "TRACK-42")
	assert.NoError(t, err)
	check.Equal(t, escrow.LifecycleInTransit, tx.LifecycleStatus)
	check.Equal(t, "TRACK-42", tx.TrackingNumber)

	clk.Advance(48 * time.Hour)
	tx, err = uc.Deliver(ctx, admin, "tx-1")
	assert.NoError(t, err)
	check.Equal(t, escrow.LifecycleDelivered, tx.LifecycleStatus)

	tx, err = uc.ConfirmDelivery(ctx, buyer, "tx-1")
	assert.NoError(t, err)
	check.Equal(t, escrow.PaymentStatusReleased, tx.PaymentStatus)
	check.Equal(t, escrow.LifecycleCompleted, tx.LifecycleStatus)
	assert.NotNil(t, tx.CompletedAt)
	check.Equal(t, 1, len(gateway.captured))
}

func TestConfirmDeliveryRequiresHeldFunds(t *testing.T) {
	uc, store, _, _ := newEscrowFixture(t)
	seedTransaction(t, store)

	_, err := uc.ConfirmDelivery(context.Background(), buyer, "tx-1")
	check.Equal(t, domainErrors.ErrPaymentNotHeld, err, cmpopts.EquateErrors())
}

func TestConfirmDeliveryCaptureFailureLeavesStateUntouched(t *testing.T) {
	uc, store, gateway, _ := newEscrowFixture(t)
	ctx := context.Background()
	seedTransaction(t, store)

	_, err := uc.Pay(ctx, buyer, "tx-1")
	assert.NoError(t, err)
	_, err = uc.Ship(ctx, seller, "tx-1", "TRACK-42")
	assert.NoError(t, err)

	gateway.failCapture = true
	_, err = uc.ConfirmDelivery(ctx, buyer, "tx-1")
	check.Error(t, err)

	stored, err := store.GetByID(ctx, "tx-1")
	assert.NoError(t, err)
	check.Equal(t, escrow.PaymentStatusHeld, stored.PaymentStatus)
	check.Equal(t, escrow.LifecycleInTransit, stored.LifecycleStatus)
}

func TestShipRequiresSeller(t *testing.T) {
	uc, store, _, _ := newEscrowFixture(t)
	ctx := context.Background()
	seedTransaction(t, store)

	_, err := uc.Pay(ctx, buyer, "tx-1")
	assert.NoError(t, err)

	_, err = uc.Ship(ctx, buyer, "tx-1", "TRACK-42")
	check.Equal(t, domainErrors.ErrForbidden, err, cmpopts.EquateErrors())
}

func TestCancelPendingDeletesAndRevertsItem(t *testing.T) {
	uc, store, _, _ := newEscrowFixture(t)
	ctx := context.Background()
	seedTransaction(t, store)

	err := uc.Cancel(ctx, buyer, "tx-1")
	assert.NoError(t, err)

	_, err = store.GetByID(ctx, "tx-1")
	check.Equal(t, domainErrors.ErrTransactionNotFound, err, cmpopts.EquateErrors())

	item, err := store.GetItemByID(ctx, "item-1")
	assert.NoError(t, err)
	check.Equal(t, listing.ItemStatusActive, item.Status)
}

func TestCancelAfterPaymentRejected(t *testing.T) {
	uc, store, _, _ := newEscrowFixture(t)
	ctx := context.Background()
	seedTransaction(t, store)

	_, err := uc.Pay(ctx, buyer, "tx-1")
	assert.NoError(t, err)

	err = uc.Cancel(ctx, buyer, "tx-1")
	check.Equal(t, domainErrors.ErrPaymentNotPending, err, cmpopts.EquateErrors())

	_, err = store.GetByID(ctx, "tx-1")
	check.NoError(t, err)
}

func TestDisputeFromHeldStates(t *testing.T) {
	uc, store, _, _ := newEscrowFixture(t)
	ctx := context.Background()
	seedTransaction(t, store)

	_, err := uc.Dispute(ctx, buyer, "tx-1")
	check.Equal(t, domainErrors.ErrInvalidTransition, err, cmpopts.EquateErrors())

	_, err = uc.Pay(ctx, buyer, "tx-1")
	assert.NoError(t, err)

	tx, err := uc.Dispute(ctx, seller, "tx-1")
	assert.NoError(t, err)
	check.Equal(t, escrow.LifecycleDisputed, tx.LifecycleStatus)
}

func TestDisputeRequiresParty(t *testing.T) {
	uc, store, _, _ := newEscrowFixture(t)
	ctx := context.Background()
	seedTransaction(t, store)
	_, err := uc.Pay(ctx, buyer, "tx-1")
	assert.NoError(t, err)

	_, err = uc.Dispute(ctx, auth.Identity{ID: "stranger", Role: auth.RoleProfessional}, "tx-1")
	check.Equal(t, domainErrors.ErrForbidden, err, cmpopts.EquateErrors())
}

func TestCheckoutCompletedCallbackIsIdempotent(t *testing.T) {
	uc, store, _, _ := newEscrowFixture(t)
	ctx := context.Background()
	seedTransaction(t, store)

	err := uc.ApplyCheckoutCompleted(ctx, "tx-1", "cs_1", "pi_1")
	assert.NoError(t, err)
	err = uc.ApplyCheckoutCompleted(ctx, "tx-1", "cs_1", "pi_1")
	assert.NoError(t, err)

	stored, err := store.GetByID(ctx, "tx-1")
	assert.NoError(t, err)
	check.Equal(t, escrow.PaymentStatusHeld, stored.PaymentStatus)
	check.Equal(t, "pi_1", stored.PaymentIntentID)
}

func TestCheckoutCompletedReplayAfterReleaseIsNoOp(t *testing.T) {
	uc, store, _, _ := newEscrowFixture(t)
	ctx := context.Background()
	seedTransaction(t, store)

	_, err := uc.Pay(ctx, buyer, "tx-1")
	assert.NoError(t, err)
	_, err = uc.Ship(ctx, seller, "tx-1", "TRACK-42")
	assert.NoError(t, err)
	_, err = uc.Deliver(ctx, admin, "tx-1")
	assert.NoError(t, err)
	_, err = uc.ConfirmDelivery(ctx, buyer, "tx-1")
	assert.NoError(t, err)

	// A late processor retry must be acknowledged, not rejected, or the
	// processor keeps retrying a finished escrow forever.
	err = uc.ApplyCheckoutCompleted(ctx, "tx-1", "cs_late", "pi_late")
	assert.NoError(t, err)

	stored, err := store.GetByID(ctx, "tx-1")
	assert.NoError(t, err)
	check.Equal(t, escrow.PaymentStatusReleased, stored.PaymentStatus)
	check.Equal(t, escrow.LifecycleCompleted, stored.LifecycleStatus)
	check.NotEqual(t, "pi_late", stored.PaymentIntentID)
}

func TestBeginCheckoutStoresSession(t *testing.T) {
	uc, store, gateway, _ := newEscrowFixture(t)
	ctx := context.Background()
	seedTransaction(t, store)

	tx, err := uc.BeginCheckout(ctx, buyer, "tx-1")
	assert.NoError(t, err)
	check.Equal(t, "cs_tx-1", tx.CheckoutSessionID)
	check.Equal(t, escrow.PaymentStatusPending, tx.PaymentStatus)
	check.Equal(t, 1, len(gateway.sessions))

	stored, err := store.GetByID(ctx, "tx-1")
	assert.NoError(t, err)
	check.Equal(t, "cs_tx-1", stored.CheckoutSessionID)

	assert.NoError(t, uc.ApplyCheckoutCompleted(ctx, "tx-1", stored.CheckoutSessionID, "pi_1"))
	stored, err = store.GetByID(ctx, "tx-1")
	assert.NoError(t, err)
	check.Equal(t, escrow.PaymentStatusHeld, stored.PaymentStatus)
}

func TestBeginCheckoutRequiresPendingPayment(t *testing.T) {
	uc, store, _, _ := newEscrowFixture(t)
	ctx := context.Background()
	seedTransaction(t, store)

	_, err := uc.BeginCheckout(ctx, seller, "tx-1")
	check.Equal(t, domainErrors.ErrForbidden, err, cmpopts.EquateErrors())

	_, err = uc.Pay(ctx, buyer, "tx-1")
	assert.NoError(t, err)

	_, err = uc.BeginCheckout(ctx, buyer, "tx-1")
	check.Equal(t, domainErrors.ErrPaymentNotPending, err, cmpopts.EquateErrors())
}

func TestGetVisibleToPartiesOnly(t *testing.T) {
	uc, store, _, _ := newEscrowFixture(t)
	ctx := context.Background()
	seedTransaction(t, store)

	_, err := uc.Get(ctx, buyer, "tx-1")
	check.NoError(t, err)
	_, err = uc.Get(ctx, seller, "tx-1")
	check.NoError(t, err)
	_, err = uc.Get(ctx, admin, "tx-1")
	check.NoError(t, err)
	_, err = uc.Get(ctx, auth.Identity{ID: "stranger", Role: auth.RoleProfessional}, "tx-1")
	check.Equal(t, domainErrors.ErrForbidden, err, cmpopts.EquateErrors())
}
