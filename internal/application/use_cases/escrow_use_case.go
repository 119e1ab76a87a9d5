package use_cases

import (
	"context"
	"errors"
	"fmt"

	"github.com/gavelworks/auction-settlement-service/internal/application/auth"
	"github.com/gavelworks/auction-settlement-service/internal/application/ports"
	domainErrors "github.com/gavelworks/auction-settlement-service/internal/domain/errors"
	"github.com/gavelworks/auction-settlement-service/internal/domain/escrow"
	"github.com/gavelworks/auction-settlement-service/internal/pkg/clock"
	"github.com/gavelworks/auction-settlement-service/internal/pkg/generator"
	"github.com/gavelworks/auction-settlement-service/internal/pkg/logger"
)

// EscrowUseCase drives a transaction through the payment and shipping
// lifecycle: authorize (funds held) → ship → deliver → confirm (funds
// released), with cancellation allowed only before any money moved.
type EscrowUseCase struct {
	transactionRepo ports.TransactionRepository
	uow             ports.UnitOfWork
	gateway         ports.PaymentGateway
	outboxRepo      ports.OutboxRepository
	idGen           *generator.IDGenerator
	clk             clock.Clock
	log             *logger.Logger
}

func NewEscrowUseCase(
	transactionRepo ports.TransactionRepository,
	uow ports.UnitOfWork,
	gateway ports.PaymentGateway,
	outboxRepo ports.OutboxRepository,
	idGen *generator.IDGenerator,
	clk clock.Clock,
	log *logger.Logger,
) *EscrowUseCase {
	return &EscrowUseCase{
		transactionRepo: transactionRepo,
		uow:             uow,
		gateway:         gateway,
		outboxRepo:      outboxRepo,
		idGen:           idGen,
		clk:             clk,
		log:             log,
	}
}

// Pay authorizes the buyer's payment with the processor. The funds are held,
// not captured; capture happens on delivery confirmation.
func (uc *EscrowUseCase) Pay(ctx context.Context, identity auth.Identity, transactionID string) (*escrow.Transaction, error) {
	transaction, err := uc.transactionRepo.GetByID(ctx, transactionID)
	if err != nil {
		return nil, err
	}
	if transaction.BuyerID != identity.ID && !identity.IsAdmin() {
		return nil, domainErrors.ErrForbidden
	}
	if transaction.PaymentStatus != escrow.PaymentStatusPending {
		return nil, domainErrors.ErrPaymentNotPending
	}

	customerID := transaction.ProcessorCustomerID
	if customerID == "" {
		customerID, err = uc.gateway.CreateCustomer(ctx, transaction.BuyerID, "")
		if err != nil {
			return nil, fmt.Errorf("%w: creating processor customer: %v", domainErrors.ErrUpstreamFailure, err)
		}
		transaction.ProcessorCustomerID = customerID
	}

	paymentIntentID, err := uc.gateway.CreatePaymentIntent(ctx, customerID, transaction.TotalCharged, transaction.ID)
	if err != nil {
		return nil, fmt.Errorf("%w: creating payment intent: %v", domainErrors.ErrUpstreamFailure, err)
	}

	fromPayment, fromLifecycle := transaction.PaymentStatus, transaction.LifecycleStatus
	if err := transaction.AuthorizePayment(paymentIntentID, uc.clk.Now()); err != nil {
		return nil, err
	}
	if err := uc.transactionRepo.Update(ctx, transaction, fromPayment, fromLifecycle); err != nil {
		if errors.Is(err, domainErrors.ErrInvalidTransition) {
			// Another authorization won the row. That one's intent stands;
			// this one is never captured.
			return nil, domainErrors.ErrPaymentNotPending
		}
		return nil, fmt.Errorf("%w: persisting payment authorization: %v", domainErrors.ErrUpstreamFailure, err)
	}

	confirmation := ports.NotificationEvent{
		ID:    uc.idGen.NewEventID(),
		Topic: ports.TopicPurchaseDone,
		Payload: mustJSON(map[string]string{
			"transaction_id": transaction.ID,
			"item_id":        transaction.ItemID,
			"user_id":        transaction.BuyerID,
			"total_charged":  transaction.TotalCharged.String(),
		}),
		CreatedAt: uc.clk.Now(),
	}
	if err := uc.outboxRepo.Append(ctx, confirmation); err != nil {
		uc.log.Error("Failed to queue purchase confirmation", "transaction_id", transaction.ID, "error", err)
	}

	uc.log.Info("Payment authorized", "transaction_id", transaction.ID, "payment_intent_id", paymentIntentID)
	return transaction, nil
}

// BeginCheckout opens a hosted checkout session at the processor for a
// pending transaction and records its id. The session's completion callback
// (ApplyCheckoutCompleted) is what eventually holds the funds.
func (uc *EscrowUseCase) BeginCheckout(ctx context.Context, identity auth.Identity, transactionID string) (*escrow.Transaction, error) {
	transaction, err := uc.transactionRepo.GetByID(ctx, transactionID)
	if err != nil {
		return nil, err
	}
	if transaction.BuyerID != identity.ID && !identity.IsAdmin() {
		return nil, domainErrors.ErrForbidden
	}
	if transaction.PaymentStatus != escrow.PaymentStatusPending {
		return nil, domainErrors.ErrPaymentNotPending
	}

	customerID := transaction.ProcessorCustomerID
	if customerID == "" {
		customerID, err = uc.gateway.CreateCustomer(ctx, transaction.BuyerID, "")
		if err != nil {
			return nil, fmt.Errorf("%w: creating processor customer: %v", domainErrors.ErrUpstreamFailure, err)
		}
		transaction.ProcessorCustomerID = customerID
	}

	sessionID, err := uc.gateway.CreateCheckoutSession(ctx, customerID, transaction.TotalCharged, transaction.ID)
	if err != nil {
		return nil, fmt.Errorf("%w: creating checkout session: %v", domainErrors.ErrUpstreamFailure, err)
	}
	transaction.CheckoutSessionID = sessionID

	// Statuses do not move here; the conditional write still fences out a
	// payment that authorized in the meantime.
	if err := uc.transactionRepo.Update(ctx, transaction, transaction.PaymentStatus, transaction.LifecycleStatus); err != nil {
		if errors.Is(err, domainErrors.ErrInvalidTransition) {
			return nil, domainErrors.ErrPaymentNotPending
		}
		return nil, fmt.Errorf("%w: persisting checkout session: %v", domainErrors.ErrUpstreamFailure, err)
	}

	uc.log.Info("Checkout session opened", "transaction_id", transaction.ID, "session_id", sessionID)
	return transaction, nil
}

// ApplyCheckoutCompleted handles the processor's checkout.session.completed
// callback. Replays are acknowledged as no-ops whenever the payment has
// already advanced past pending, no matter how far the escrow moved since.
func (uc *EscrowUseCase) ApplyCheckoutCompleted(ctx context.Context, transactionID, sessionID, paymentIntentID string) error {
	transaction, err := uc.transactionRepo.GetByID(ctx, transactionID)
	if err != nil {
		return err
	}
	switch transaction.PaymentStatus {
	case escrow.PaymentStatusHeld, escrow.PaymentStatusReleased, escrow.PaymentStatusRefunded:
		return nil
	}

	fromPayment, fromLifecycle := transaction.PaymentStatus, transaction.LifecycleStatus
	transaction.CheckoutSessionID = sessionID
	if err := transaction.AuthorizePayment(paymentIntentID, uc.clk.Now()); err != nil {
		return err
	}
	if err := uc.transactionRepo.Update(ctx, transaction, fromPayment, fromLifecycle); err != nil {
		if errors.Is(err, domainErrors.ErrInvalidTransition) {
			// Raced with a direct Pay. Funds are held either way.
			return nil
		}
		return fmt.Errorf("%w: persisting payment authorization: %v", domainErrors.ErrUpstreamFailure, err)
	}

	uc.log.Info("Checkout session completed", "transaction_id", transactionID, "session_id", sessionID)
	return nil
}

// ApplyPaymentFailed logs a failed payment callback. The transaction stays in
// payment_pending so the buyer can retry or cancel.
func (uc *EscrowUseCase) ApplyPaymentFailed(ctx context.Context, transactionID, reason string) error {
	transaction, err := uc.transactionRepo.GetByID(ctx, transactionID)
	if err != nil {
		return err
	}

	uc.log.Warn("Payment failed",
		"transaction_id", transaction.ID,
		"payment_status", string(transaction.PaymentStatus),
		"reason", reason,
	)
	return nil
}

func (uc *EscrowUseCase) Ship(ctx context.Context, identity auth.Identity, transactionID, trackingNumber string) (*escrow.Transaction, error) {
	transaction, err := uc.transactionRepo.GetByID(ctx, transactionID)
	if err != nil {
		return nil, err
	}
	if transaction.SellerID != identity.ID && !identity.IsAdmin() {
		return nil, domainErrors.ErrForbidden
	}

	fromPayment, fromLifecycle := transaction.PaymentStatus, transaction.LifecycleStatus
	if err := transaction.MarkShipped(trackingNumber, uc.clk.Now()); err != nil {
		return nil, err
	}
	if err := uc.transactionRepo.Update(ctx, transaction, fromPayment, fromLifecycle); err != nil {
		if errors.Is(err, domainErrors.ErrInvalidTransition) {
			return nil, err
		}
		return nil, fmt.Errorf("%w: persisting shipment: %v", domainErrors.ErrUpstreamFailure, err)
	}

	uc.log.Info("Transaction shipped", "transaction_id", transaction.ID, "tracking_number", trackingNumber)
	return transaction, nil
}

// Deliver records carrier-confirmed delivery. Only admins (the tracking
// simulation runs under system authority) may call it.
func (uc *EscrowUseCase) Deliver(ctx context.Context, identity auth.Identity, transactionID string) (*escrow.Transaction, error) {
	if !identity.IsAdmin() {
		return nil, domainErrors.ErrForbidden
	}

	transaction, err := uc.transactionRepo.GetByID(ctx, transactionID)
	if err != nil {
		return nil, err
	}
	fromPayment, fromLifecycle := transaction.PaymentStatus, transaction.LifecycleStatus
	if err := transaction.MarkDelivered(uc.clk.Now()); err != nil {
		return nil, err
	}
	if err := uc.transactionRepo.Update(ctx, transaction, fromPayment, fromLifecycle); err != nil {
		if errors.Is(err, domainErrors.ErrInvalidTransition) {
			return nil, err
		}
		return nil, fmt.Errorf("%w: persisting delivery: %v", domainErrors.ErrUpstreamFailure, err)
	}

	return transaction, nil
}

// ConfirmDelivery is the buyer's release trigger: capture the held funds at
// the processor, then complete the escrow. Capture failure leaves the
// transaction untouched.
func (uc *EscrowUseCase) ConfirmDelivery(ctx context.Context, identity auth.Identity, transactionID string) (*escrow.Transaction, error) {
	transaction, err := uc.transactionRepo.GetByID(ctx, transactionID)
	if err != nil {
		return nil, err
	}
	if transaction.BuyerID != identity.ID && !identity.IsAdmin() {
		return nil, domainErrors.ErrForbidden
	}
	if transaction.PaymentStatus != escrow.PaymentStatusHeld {
		return nil, domainErrors.ErrPaymentNotHeld
	}

	if err := uc.gateway.CapturePaymentIntent(ctx, transaction.PaymentIntentID); err != nil {
		return nil, fmt.Errorf("%w: capturing payment intent: %v", domainErrors.ErrUpstreamFailure, err)
	}

	fromPayment, fromLifecycle := transaction.PaymentStatus, transaction.LifecycleStatus
	if err := transaction.ReleaseFunds(uc.clk.Now()); err != nil {
		return nil, err
	}
	if err := uc.transactionRepo.Update(ctx, transaction, fromPayment, fromLifecycle); err != nil {
		if errors.Is(err, domainErrors.ErrInvalidTransition) {
			return nil, domainErrors.ErrPaymentNotHeld
		}
		return nil, fmt.Errorf("%w: persisting fund release: %v", domainErrors.ErrUpstreamFailure, err)
	}

	uc.log.Info("Funds released", "transaction_id", transaction.ID, "seller_payout", transaction.SellerPayout.String())
	return transaction, nil
}

// Cancel walks back a never-paid settlement: the transaction is deleted and
// the item returns to active, in one database transaction.
func (uc *EscrowUseCase) Cancel(ctx context.Context, identity auth.Identity, transactionID string) error {
	transaction, err := uc.transactionRepo.GetByID(ctx, transactionID)
	if err != nil {
		return err
	}
	if transaction.BuyerID != identity.ID && !identity.IsAdmin() {
		return domainErrors.ErrForbidden
	}
	if err := transaction.CanCancel(); err != nil {
		return err
	}

	txc, err := uc.uow.Begin(ctx)
	if err != nil {
		return fmt.Errorf("%w: %v", domainErrors.ErrUpstreamFailure, err)
	}
	defer func() {
		if err != nil {
			_ = txc.Rollback()
		}
	}()

	if err = txc.Transactions().Delete(ctx, transaction.ID, escrow.PaymentStatusPending); err != nil {
		if errors.Is(err, domainErrors.ErrInvalidTransition) {
			// A payment authorized between our read and the delete. The
			// transaction survives; money already moved.
			return domainErrors.ErrPaymentNotPending
		}
		return fmt.Errorf("%w: deleting transaction: %v", domainErrors.ErrUpstreamFailure, err)
	}
	if err = txc.Listings().RevertItemToActive(ctx, transaction.ItemID); err != nil {
		return fmt.Errorf("%w: reverting item: %v", domainErrors.ErrUpstreamFailure, err)
	}
	if err = txc.Commit(); err != nil {
		return fmt.Errorf("%w: committing cancellation: %v", domainErrors.ErrUpstreamFailure, err)
	}

	uc.log.Info("Transaction cancelled", "transaction_id", transaction.ID, "item_id", transaction.ItemID)
	return nil
}

func (uc *EscrowUseCase) Dispute(ctx context.Context, identity auth.Identity, transactionID string) (*escrow.Transaction, error) {
	transaction, err := uc.transactionRepo.GetByID(ctx, transactionID)
	if err != nil {
		return nil, err
	}
	if !transaction.IsParty(identity.ID) && !identity.IsAdmin() {
		return nil, domainErrors.ErrForbidden
	}

	fromPayment, fromLifecycle := transaction.PaymentStatus, transaction.LifecycleStatus
	if err := transaction.Dispute(); err != nil {
		return nil, err
	}
	if err := uc.transactionRepo.Update(ctx, transaction, fromPayment, fromLifecycle); err != nil {
		if errors.Is(err, domainErrors.ErrInvalidTransition) {
			return nil, err
		}
		return nil, fmt.Errorf("%w: persisting dispute: %v", domainErrors.ErrUpstreamFailure, err)
	}

	uc.log.Warn("Transaction disputed", "transaction_id", transaction.ID, "by", identity.ID)
	return transaction, nil
}

func (uc *EscrowUseCase) Get(ctx context.Context, identity auth.Identity, transactionID string) (*escrow.Transaction, error) {
	transaction, err := uc.transactionRepo.GetByID(ctx, transactionID)
	if err != nil {
		return nil, err
	}
	if !transaction.IsParty(identity.ID) && !identity.IsAdmin() {
		return nil, domainErrors.ErrForbidden
	}
	return transaction, nil
}

func (uc *EscrowUseCase) ListForUser(ctx context.Context, identity auth.Identity, limit, offset int) ([]*escrow.Transaction, error) {
	return uc.transactionRepo.GetByUser(ctx, identity.ID, limit, offset)
}
