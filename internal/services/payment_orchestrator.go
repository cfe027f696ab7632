package services

import (
	"context"
	"errors"
	"fmt"

	"campusride/internal/domain"
	"campusride/internal/domain/models"
	"campusride/internal/events"
	"campusride/internal/utils"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// PaymentOrchestrator runs reserve, accept and pay across the wallet and
// booking ledgers. The two ledgers do not share a transaction, so a failed
// booking commit after a debit is undone by a compensating credit.
// Confirmation holds the registry's passenger lock, so a cancel or an
// auto-accept never interleaves with a payment.
type PaymentOrchestrator struct {
	Wallet     *WalletLedger
	Bookings   *BookingLedger
	Requests   *ReservationRegistry
	Commission CommissionCalculator
	Clock      utils.Clock
	Logger     *zap.Logger
	Events     events.Publisher
}

func NewPaymentOrchestrator(wallet *WalletLedger, bookings *BookingLedger, requests *ReservationRegistry, commission CommissionCalculator, publisher events.Publisher, logger *zap.Logger) *PaymentOrchestrator {
	return &PaymentOrchestrator{
		Wallet:     wallet,
		Bookings:   bookings,
		Requests:   requests,
		Commission: commission,
		Logger:     utils.OrNop(logger),
		Events:     publisher,
	}
}

type PaymentResult struct {
	Booking  models.Booking  `json:"booking"`
	Balance  decimal.Decimal `json:"balance"`
	Split    CommissionSplit `json:"commission"`
	Replayed bool            `json:"replayed"`
}

// ProceedToPayment checks that the passenger's reservation for the ride can
// be paid and returns the booking to pay. It never mutates anything.
func (o *PaymentOrchestrator) ProceedToPayment(ctx context.Context, rideID, passenger string) (models.Booking, error) {
	passenger = domain.NormalizeEmail(passenger)
	b, err := o.payableBooking(ctx, rideID, passenger)
	if err != nil {
		return models.Booking{}, err
	}
	if err := checkPayable(b); err != nil {
		return models.Booking{}, err
	}
	return b, nil
}

func (o *PaymentOrchestrator) payableBooking(ctx context.Context, rideID, passenger string) (models.Booking, error) {
	req, err := o.Requests.ActiveRequest(ctx, passenger, rideID)
	if err != nil {
		return models.Booking{}, err
	}
	if req == nil {
		return models.Booking{}, domain.NotPayableError{Msg: "no reservation request for this ride"}
	}
	b, err := o.Bookings.Get(ctx, passenger, req.ID)
	if err != nil {
		if domain.IsNotFound(err) {
			return models.Booking{}, domain.NotPayableError{BookingID: req.ID, Msg: "booking missing"}
		}
		return models.Booking{}, err
	}
	if b.Status == models.BookingPaid {
		return b, nil
	}
	if req.Status != models.RequestAccepted {
		return models.Booking{}, domain.NotPayableError{BookingID: b.ID, Msg: "reservation request is " + string(req.Status)}
	}
	return b, nil
}

func checkPayable(b models.Booking) error {
	if b.Status != models.BookingAccepted {
		return domain.NotPayableError{BookingID: b.ID, Msg: "booking is " + string(b.Status)}
	}
	if b.PaymentStatus != models.PaymentUnpaid {
		return domain.NotPayableError{BookingID: b.ID, Msg: "booking is already " + string(b.PaymentStatus)}
	}
	return nil
}

// ConfirmPayment debits amount from the passenger's wallet and marks the
// booking paid. amount must equal the booking amount. The debit is keyed by
// booking id, so retries charge at most once, and a booking that is already
// paid is returned as is.
func (o *PaymentOrchestrator) ConfirmPayment(ctx context.Context, rideID, passenger string, amount decimal.Decimal) (PaymentResult, error) {
	passenger = domain.NormalizeEmail(passenger)
	amount, err := ValidateAmount(amount)
	if err != nil {
		return PaymentResult{}, err
	}

	unlock := o.Requests.lockPassenger(passenger)
	defer unlock()

	b, err := o.payableBooking(ctx, rideID, passenger)
	if err != nil {
		return PaymentResult{}, err
	}
	if b.Status == models.BookingPaid {
		return o.result(ctx, b, true)
	}
	if err := checkPayable(b); err != nil {
		return PaymentResult{}, err
	}
	if !amount.Equal(b.Amount) {
		return PaymentResult{}, domain.ValidationError{
			Field: "amount",
			Msg:   fmt.Sprintf("must equal the booking amount %s", b.Amount.StringFixed(2)),
		}
	}

	// An earlier attempt may have debited and stopped before the booking
	// commit; the keyed debit below replays it, so skip the balance check.
	prior, charged, err := o.Wallet.PriorDebit(ctx, passenger, b.ID)
	if err != nil {
		return PaymentResult{}, err
	}
	if charged && !prior.Amount.Equal(amount) {
		return PaymentResult{}, domain.ValidationError{
			Field: "amount",
			Msg:   fmt.Sprintf("booking already carries a debit of %s", prior.Amount.StringFixed(2)),
		}
	}
	if !charged {
		balance, err := o.Wallet.Balance(ctx, passenger)
		if err != nil {
			return PaymentResult{}, err
		}
		if balance.LessThan(amount) {
			return PaymentResult{}, domain.InsufficientFundsError{Owner: passenger, Balance: balance, Requested: amount}
		}
	}

	meta := map[string]string{
		metaDescription: "paiement trajet " + utils.FirstNonEmpty(b.Depart, rideID) + " - " + b.Destination,
		"booking_id":    b.ID,
		"ride_id":       rideID,
	}
	if _, err := o.Wallet.Debit(ctx, passenger, amount, meta, b.ID); err != nil {
		return PaymentResult{}, err
	}

	now := o.Clock.Now()
	paidStatus := models.BookingPaid
	paymentPaid := models.PaymentPaid
	paid := true
	method := models.PaymentWallet
	price := b.Amount
	patched, err := o.Bookings.Patch(ctx, passenger, b.ID, models.BookingPatch{
		Status:        &paidStatus,
		PaymentStatus: &paymentPaid,
		Paid:          &paid,
		PaymentMethod: &method,
		AmountPaid:    &amount,
		PricePaid:     &price,
		PaidAt:        &now,
	})
	if err != nil {
		return PaymentResult{}, o.compensate(ctx, passenger, rideID, b.ID, amount, err)
	}

	o.log().Info("payment confirmed",
		zap.String("booking_id", b.ID),
		zap.String("ride_id", rideID),
		zap.String("passenger", passenger),
		zap.String("amount", utils.FormatMoney(amount)),
	)
	events.Emit(ctx, o.Events, o.log(), events.Event{
		Type:      events.PaymentConfirmed,
		User:      passenger,
		BookingID: b.ID,
		RideID:    rideID,
		Amount:    utils.FormatMoney(amount),
	})
	return o.result(ctx, patched, false)
}

func (o *PaymentOrchestrator) compensate(ctx context.Context, passenger, rideID, bookingID string, amount decimal.Decimal, cause error) error {
	o.log().Error("booking commit failed after debit",
		zap.String("booking_id", bookingID),
		zap.String("passenger", passenger),
		zap.Error(cause),
	)
	events.Emit(ctx, o.Events, o.log(), events.Event{
		Type:      events.PaymentFailed,
		User:      passenger,
		BookingID: bookingID,
		RideID:    rideID,
		Amount:    utils.FormatMoney(amount),
	})

	_, cerr := o.Wallet.Compensate(ctx, passenger, amount, bookingID, map[string]string{
		"booking_id": bookingID,
		"ride_id":    rideID,
	})
	if cerr != nil {
		o.log().Error("compensating credit failed",
			zap.String("booking_id", bookingID),
			zap.String("passenger", passenger),
			zap.String("amount", utils.FormatMoney(amount)),
			zap.Error(cerr),
		)
		return domain.PaymentFailedError{BookingID: bookingID, Compensated: false, Err: errors.Join(cause, cerr)}
	}

	events.Emit(ctx, o.Events, o.log(), events.Event{
		Type:      events.PaymentCompensated,
		User:      passenger,
		BookingID: bookingID,
		RideID:    rideID,
		Amount:    utils.FormatMoney(amount),
	})
	return domain.PaymentFailedError{BookingID: bookingID, Compensated: true, Err: cause}
}

func (o *PaymentOrchestrator) result(ctx context.Context, b models.Booking, replayed bool) (PaymentResult, error) {
	balance, err := o.Wallet.Balance(ctx, b.PassengerEmail)
	if err != nil {
		return PaymentResult{}, err
	}
	price := b.Amount
	if b.PricePaid != nil {
		price = *b.PricePaid
	}
	split, err := o.Commission.Split(price)
	if err != nil {
		return PaymentResult{}, err
	}
	return PaymentResult{Booking: b, Balance: balance, Split: split, Replayed: replayed}, nil
}

func (o *PaymentOrchestrator) log() *zap.Logger { return utils.OrNop(o.Logger) }
