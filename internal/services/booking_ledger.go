package services

import (
	"context"
	"errors"
	"fmt"

	"campusride/internal/domain"
	"campusride/internal/domain/models"
	"campusride/internal/repositories"
	"campusride/internal/utils"

	"go.uber.org/zap"
)

// BookingLedger is the only writer of bookings. Mutations are serialized
// per passenger, which also serializes them per booking.
type BookingLedger struct {
	Store  repositories.BookingStore
	Clock  utils.Clock
	Logger *zap.Logger

	locks keyedMutex
	subs  subscribers[[]models.Booking]
}

func NewBookingLedger(store repositories.BookingStore, logger *zap.Logger) *BookingLedger {
	return &BookingLedger{Store: store, Logger: utils.OrNop(logger)}
}

var allowedTransitions = map[models.BookingStatus][]models.BookingStatus{
	models.BookingPending:  {models.BookingAccepted, models.BookingCancelled},
	models.BookingAccepted: {models.BookingPaid, models.BookingCancelled},
}

func canTransition(from, to models.BookingStatus) bool {
	if from == to {
		return true
	}
	for _, s := range allowedTransitions[from] {
		if s == to {
			return true
		}
	}
	return false
}

// Create inserts b. Missing status, payment method and payment status
// default to pending, none and unpaid.
func (l *BookingLedger) Create(ctx context.Context, b models.Booking) (models.Booking, error) {
	b, err := l.normalizeNew(b)
	if err != nil {
		return models.Booking{}, err
	}

	unlock := l.locks.Lock(b.PassengerEmail)
	defer unlock()

	if b.Status.Blocking() {
		active, err := l.activeLocked(ctx, b.PassengerEmail, b.RideID)
		if err != nil {
			return models.Booking{}, err
		}
		if active != nil {
			return models.Booking{}, domain.ConflictError{
				Resource: "booking",
				Reason:   domain.ReasonActiveBookingExists,
				Msg:      fmt.Sprintf("booking %s already holds ride %s", active.ID, b.RideID),
			}
		}
	}

	if err := l.Store.InsertBooking(ctx, b); err != nil {
		if errors.Is(err, repositories.ErrDuplicate) {
			return models.Booking{}, domain.ConflictError{Resource: "booking", Reason: domain.ReasonDuplicateID, Msg: "id " + b.ID + " already exists", Err: err}
		}
		return models.Booking{}, domain.InternalError{Msg: "failed to insert booking", Err: err}
	}
	l.log().Info("booking created",
		zap.String("booking_id", b.ID),
		zap.String("ride_id", b.RideID),
		zap.String("passenger", b.PassengerEmail),
		zap.String("status", string(b.Status)),
	)
	l.notifyLocked(ctx, b.PassengerEmail)
	return b.Clone(), nil
}

func (l *BookingLedger) normalizeNew(b models.Booking) (models.Booking, error) {
	b.ID = utils.TrimOrEmpty(b.ID)
	b.RideID = utils.TrimOrEmpty(b.RideID)
	b.PassengerEmail = domain.NormalizeEmail(b.PassengerEmail)
	b.OwnerEmail = domain.NormalizeEmail(b.OwnerEmail)
	switch {
	case b.ID == "":
		return b, domain.ValidationError{Field: "id", Msg: "required"}
	case b.RideID == "":
		return b, domain.ValidationError{Field: "rideId", Msg: "required"}
	case b.PassengerEmail == "":
		return b, domain.ValidationError{Field: "passengerEmail", Msg: "required"}
	case b.Amount.IsNegative():
		return b, domain.ValidationError{Field: "amount", Msg: "must not be negative"}
	}
	b.Amount = utils.Round2(b.Amount)

	if b.Status == "" {
		b.Status = models.BookingPending
	}
	if !b.Status.Valid() {
		return b, domain.ValidationError{Field: "status", Msg: "unknown status " + string(b.Status)}
	}
	if b.PaymentMethod == "" {
		b.PaymentMethod = models.PaymentNone
	}
	if !b.PaymentMethod.Valid() {
		return b, domain.ValidationError{Field: "paymentMethod", Msg: "unknown method " + string(b.PaymentMethod)}
	}
	if b.PaymentStatus == "" {
		b.PaymentStatus = models.PaymentUnpaid
		if b.Paid {
			b.PaymentStatus = models.PaymentPaid
		}
	}
	if err := checkPaymentConsistency(b); err != nil {
		return b, err
	}
	if b.CreatedAt.IsZero() {
		b.CreatedAt = l.Clock.Now()
	}
	if b.Status == models.BookingAccepted && b.AcceptedAt == nil {
		t := b.CreatedAt
		b.AcceptedAt = &t
	}
	return b, nil
}

// Patch merges the allowlisted fields of p into the passenger's booking.
// A booking owned by someone else is reported as not found.
func (l *BookingLedger) Patch(ctx context.Context, user, id string, p models.BookingPatch) (models.Booking, error) {
	user = domain.NormalizeEmail(user)
	unlock := l.locks.Lock(user)
	defer unlock()

	b, err := l.getOwnedLocked(ctx, user, id)
	if err != nil {
		return models.Booking{}, err
	}
	if p.Empty() {
		return b, nil
	}
	from := b.Status
	next, err := l.apply(b, p)
	if err != nil {
		return models.Booking{}, err
	}
	if err := l.Store.UpdateBooking(ctx, next); err != nil {
		if errors.Is(err, repositories.ErrNotFound) {
			return models.Booking{}, domain.NotFoundError{Resource: "booking", ID: id, Err: err}
		}
		return models.Booking{}, domain.InternalError{Msg: "failed to update booking", Err: err}
	}
	l.log().Info("booking patched",
		zap.String("booking_id", next.ID),
		zap.String("from", string(from)),
		zap.String("to", string(next.Status)),
		zap.String("payment_status", string(next.PaymentStatus)),
	)
	l.notifyLocked(ctx, user)
	return next.Clone(), nil
}

func (l *BookingLedger) apply(b models.Booking, p models.BookingPatch) (models.Booking, error) {
	now := l.Clock.Now()
	if p.Status != nil {
		to := *p.Status
		if !to.Valid() {
			return b, domain.ValidationError{Field: "status", Msg: "unknown status " + string(to)}
		}
		if !canTransition(b.Status, to) {
			return b, domain.ConflictError{
				Resource: "booking",
				Reason:   domain.ReasonInvalidTransition,
				Msg:      fmt.Sprintf("cannot move from %s to %s", b.Status, to),
			}
		}
		if to == models.BookingAccepted && b.AcceptedAt == nil {
			b.AcceptedAt = &now
		}
		b.Status = to
	}

	if p.PaymentMethod != nil {
		if !p.PaymentMethod.Valid() {
			return b, domain.ValidationError{Field: "paymentMethod", Msg: "unknown method " + string(*p.PaymentMethod)}
		}
		b.PaymentMethod = *p.PaymentMethod
	}
	switch {
	case p.PaymentStatus != nil && p.Paid != nil:
		b.PaymentStatus, b.Paid = *p.PaymentStatus, *p.Paid
	case p.PaymentStatus != nil:
		b.PaymentStatus = *p.PaymentStatus
		b.Paid = b.PaymentStatus == models.PaymentPaid
	case p.Paid != nil:
		b.Paid = *p.Paid
		b.PaymentStatus = models.PaymentUnpaid
		if b.Paid {
			b.PaymentStatus = models.PaymentPaid
		}
	}
	if p.AmountPaid != nil {
		if p.AmountPaid.IsNegative() {
			return b, domain.ValidationError{Field: "amountPaid", Msg: "must not be negative"}
		}
		v := utils.Round2(*p.AmountPaid)
		b.AmountPaid = &v
	}
	if p.PricePaid != nil {
		if p.PricePaid.IsNegative() {
			return b, domain.ValidationError{Field: "pricePaid", Msg: "must not be negative"}
		}
		v := utils.Round2(*p.PricePaid)
		b.PricePaid = &v
	}
	if p.PaidAt != nil {
		v := p.PaidAt.UTC()
		b.PaidAt = &v
	}
	if b.Status == models.BookingPaid && b.PaidAt == nil {
		b.PaidAt = &now
	}
	if p.MeetingPoint != nil {
		b.MeetingPoint = *p.MeetingPoint
	}
	if p.MeetingPointAddress != nil {
		b.MeetingPointAddress = *p.MeetingPointAddress
	}
	if p.MeetingPointLatLng != nil {
		v := *p.MeetingPointLatLng
		b.MeetingPointLatLng = &v
	}
	if p.Plate != nil {
		b.Plate = *p.Plate
	}
	if p.DriverPlate != nil {
		b.DriverPlate = *p.DriverPlate
	}
	if p.MaskedPlate != nil {
		b.MaskedPlate = *p.MaskedPlate
	}

	if err := checkPaymentConsistency(b); err != nil {
		return b, err
	}
	return b, nil
}

func checkPaymentConsistency(b models.Booking) error {
	switch b.PaymentStatus {
	case models.PaymentPaid, models.PaymentUnpaid:
	default:
		return domain.ValidationError{Field: "paymentStatus", Msg: "unknown payment status " + string(b.PaymentStatus)}
	}
	if b.Paid != (b.PaymentStatus == models.PaymentPaid) {
		return domain.ValidationError{Field: "paid", Msg: "must match paymentStatus"}
	}
	if b.Status == models.BookingPaid && !b.Paid {
		return domain.ValidationError{Field: "paymentStatus", Msg: "a paid booking must be marked paid"}
	}
	if b.Status == models.BookingCancelled && b.Paid {
		return domain.ValidationError{Field: "paid", Msg: "a cancelled booking cannot be paid"}
	}
	return nil
}

// Cancel moves a pending or accepted booking to cancelled. Terminal
// bookings are returned unchanged.
func (l *BookingLedger) Cancel(ctx context.Context, user, id string) (models.Booking, error) {
	user = domain.NormalizeEmail(user)
	unlock := l.locks.Lock(user)
	defer unlock()

	b, err := l.getOwnedLocked(ctx, user, id)
	if err != nil {
		return models.Booking{}, err
	}
	if b.Status.Terminal() {
		return b, nil
	}
	b.Status = models.BookingCancelled
	b.Paid = false
	b.PaymentStatus = models.PaymentUnpaid
	if err := l.Store.UpdateBooking(ctx, b); err != nil {
		return models.Booking{}, domain.InternalError{Msg: "failed to cancel booking", Err: err}
	}
	l.log().Info("booking cancelled", zap.String("booking_id", b.ID), zap.String("passenger", user))
	l.notifyLocked(ctx, user)
	return b.Clone(), nil
}

func (l *BookingLedger) Get(ctx context.Context, user, id string) (models.Booking, error) {
	return l.getOwnedLocked(ctx, domain.NormalizeEmail(user), id)
}

func (l *BookingLedger) getOwnedLocked(ctx context.Context, user, id string) (models.Booking, error) {
	b, err := l.Store.GetBooking(ctx, id)
	if err != nil {
		if errors.Is(err, repositories.ErrNotFound) {
			return models.Booking{}, domain.NotFoundError{Resource: "booking", ID: id, Err: err}
		}
		return models.Booking{}, domain.InternalError{Msg: "failed to load booking", Err: err}
	}
	if b.PassengerEmail != user {
		return models.Booking{}, domain.NotFoundError{Resource: "booking", ID: id}
	}
	return b, nil
}

// GetActiveBookingForRide returns the pending or accepted booking the user
// holds on ride, or nil.
func (l *BookingLedger) GetActiveBookingForRide(ctx context.Context, user, rideID string) (*models.Booking, error) {
	return l.activeLocked(ctx, domain.NormalizeEmail(user), rideID)
}

func (l *BookingLedger) activeLocked(ctx context.Context, user, rideID string) (*models.Booking, error) {
	list, err := l.ListByPassenger(ctx, user)
	if err != nil {
		return nil, err
	}
	for _, b := range list {
		if b.RideID == rideID && b.Status.Blocking() {
			out := b
			return &out, nil
		}
	}
	return nil, nil
}

func (l *BookingLedger) ListByPassenger(ctx context.Context, user string) ([]models.Booking, error) {
	list, err := l.Store.ListBookingsByPassenger(ctx, domain.NormalizeEmail(user))
	if err != nil {
		return nil, domain.InternalError{Msg: "failed to list bookings", Err: err}
	}
	return list, nil
}

// SubscribeBookingsByPassenger delivers the current list to cb right away
// and again after every mutation of the user's bookings.
func (l *BookingLedger) SubscribeBookingsByPassenger(ctx context.Context, user string, cb func([]models.Booking)) (func(), error) {
	user = domain.NormalizeEmail(user)
	unlock := l.locks.Lock(user)
	defer unlock()

	list, err := l.ListByPassenger(ctx, user)
	if err != nil {
		return nil, err
	}
	unsubscribe := l.subs.add(user, cb)
	cb(list)
	return unsubscribe, nil
}

func (l *BookingLedger) notifyLocked(ctx context.Context, user string) {
	if !l.subs.has(user) {
		return
	}
	list, err := l.ListByPassenger(ctx, user)
	if err != nil {
		l.log().Warn("booking subscribers not notified", zap.String("passenger", user), zap.Error(err))
		return
	}
	l.subs.notify(user, list, cloneBookings)
}

func (l *BookingLedger) log() *zap.Logger { return utils.OrNop(l.Logger) }

func cloneBookings(in []models.Booking) []models.Booking {
	out := make([]models.Booking, len(in))
	for i, b := range in {
		out[i] = b.Clone()
	}
	return out
}
