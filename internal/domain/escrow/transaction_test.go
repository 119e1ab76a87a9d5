package escrow

import (
	"testing"
	"time"

	"github.com/peterldowns/testy/assert"
	"github.com/peterldowns/testy/check"
	"github.com/shopspring/decimal"

	domainErrors "github.com/gavelworks/auction-settlement-service/internal/domain/errors"
)

func newTestTransaction(t *testing.T) *Transaction {
	t.Helper()

	breakdown, err := Calculate(decimal.NewFromInt(500), rates("0.03", "0.02"), decimal.Zero)
	assert.NoError(t, err)

	return NewTransaction("tx-1", "item-1", "buyer-1", "seller-1", breakdown, time.Now().UTC())
}

func TestNewTransaction_StartsPending(t *testing.T) {
	tx := newTestTransaction(t)

	check.Equal(t, PaymentStatusPending, tx.PaymentStatus)
	check.Equal(t, LifecyclePaymentPending, tx.LifecycleStatus)
	check.True(t, tx.FinalPrice.Equal(decimal.NewFromInt(500)))
}

func TestAuthorizePayment_HoldsFunds(t *testing.T) {
	tx := newTestTransaction(t)
	now := time.Now().UTC()

	check.NoError(t, tx.AuthorizePayment("pi_123", now))
	check.Equal(t, PaymentStatusHeld, tx.PaymentStatus)
	check.Equal(t, LifecycleAwaitingShipping, tx.LifecycleStatus)
	check.Equal(t, "pi_123", tx.PaymentIntentID)
	check.NotNil(t, tx.PaidAt)
}

func TestAuthorizePayment_RejectsDoubleAuthorization(t *testing.T) {
	tx := newTestTransaction(t)
	now := time.Now().UTC()

	check.NoError(t, tx.AuthorizePayment("pi_123", now))
	err := tx.AuthorizePayment("pi_456", now)
	check.True(t, err == domainErrors.ErrPaymentNotPending)
	check.Equal(t, "pi_123", tx.PaymentIntentID)
}

func TestMarkShipped_RequiresHeldFunds(t *testing.T) {
	tx := newTestTransaction(t)

	err := tx.MarkShipped("TRK-1", time.Now().UTC())
	check.True(t, err == domainErrors.ErrPaymentNotHeld)
}

func TestReleaseFunds_FromInTransit(t *testing.T) {
	tx := newTestTransaction(t)
	now := time.Now().UTC()

	assert.NoError(t, tx.AuthorizePayment("pi_123", now))
	assert.NoError(t, tx.MarkShipped("TRK-1", now))

	check.NoError(t, tx.ReleaseFunds(now))
	check.Equal(t, PaymentStatusReleased, tx.PaymentStatus)
	check.Equal(t, LifecycleCompleted, tx.LifecycleStatus)
	check.NotNil(t, tx.CompletedAt)
}

func TestReleaseFunds_FromDelivered(t *testing.T) {
	tx := newTestTransaction(t)
	now := time.Now().UTC()

	assert.NoError(t, tx.AuthorizePayment("pi_123", now))
	assert.NoError(t, tx.MarkShipped("TRK-1", now))
	assert.NoError(t, tx.MarkDelivered(now))

	check.NoError(t, tx.ReleaseFunds(now))
	check.Equal(t, LifecycleCompleted, tx.LifecycleStatus)
}

func TestReleaseFunds_RejectedBeforeShipping(t *testing.T) {
	tx := newTestTransaction(t)
	now := time.Now().UTC()

	assert.NoError(t, tx.AuthorizePayment("pi_123", now))

	err := tx.ReleaseFunds(now)
	check.True(t, err == domainErrors.ErrInvalidTransition)
}

func TestCanCancel_OnlyWhilePaymentPending(t *testing.T) {
	tx := newTestTransaction(t)
	check.NoError(t, tx.CanCancel())

	assert.NoError(t, tx.AuthorizePayment("pi_123", time.Now().UTC()))
	check.True(t, tx.CanCancel() == domainErrors.ErrPaymentNotPending)
}

func TestDispute_OnlyPostPayment(t *testing.T) {
	tx := newTestTransaction(t)
	check.True(t, tx.Dispute() == domainErrors.ErrInvalidTransition)

	assert.NoError(t, tx.AuthorizePayment("pi_123", time.Now().UTC()))
	check.NoError(t, tx.Dispute())
	check.Equal(t, LifecycleDisputed, tx.LifecycleStatus)
}

func TestIsParty(t *testing.T) {
	tx := newTestTransaction(t)

	check.True(t, tx.IsParty("buyer-1"))
	check.True(t, tx.IsParty("seller-1"))
	check.False(t, tx.IsParty("someone-else"))
}
