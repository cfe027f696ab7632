package services

import (
	"context"
	"errors"
	"time"

	"campusride/internal/domain"
	"campusride/internal/domain/models"
	"campusride/internal/events"
	"campusride/internal/repositories"
	"campusride/internal/scheduler"
	"campusride/internal/utils"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

const DefaultAutoAcceptDelay = 10 * time.Second

// ReservationRegistry tracks reservation requests. Each request is paired
// with a booking that shares its id; the registry keeps both in step.
type ReservationRegistry struct {
	Store           repositories.ReservationStore
	Bookings        *BookingLedger
	Scheduler       scheduler.Scheduler
	Rides           RideDirectory
	AutoAcceptDelay time.Duration
	Clock           utils.Clock
	NewID           func() string
	Logger          *zap.Logger
	Events          events.Publisher

	locks keyedMutex
}

func NewReservationRegistry(store repositories.ReservationStore, bookings *BookingLedger, sched scheduler.Scheduler, publisher events.Publisher, logger *zap.Logger) *ReservationRegistry {
	return &ReservationRegistry{
		Store:           store,
		Bookings:        bookings,
		Scheduler:       sched,
		AutoAcceptDelay: DefaultAutoAcceptDelay,
		Logger:          utils.OrNop(logger),
		Events:          publisher,
	}
}

// LogReservationRequest records the passenger's intent to ride and opens a
// pending booking. It returns nil without changing anything when the
// passenger already has a live request or a blocking booking for the ride.
func (r *ReservationRegistry) LogReservationRequest(ctx context.Context, passenger string, ride models.Ride, note string) (*models.ReservationRequest, error) {
	passenger = domain.NormalizeEmail(passenger)
	switch {
	case passenger == "":
		return nil, domain.ValidationError{Field: "passengerEmail", Msg: "required"}
	case ride.ID == "":
		return nil, domain.ValidationError{Field: "rideId", Msg: "required"}
	case domain.NormalizeEmail(ride.OwnerEmail) == passenger:
		return nil, domain.ValidationError{Field: "rideId", Msg: "cannot reserve your own ride"}
	}
	if r.Rides != nil && r.Rides.HasRideDeparted(ride, r.Clock.Now()) {
		return nil, domain.ValidationError{Field: "rideId", Msg: "ride has already departed"}
	}

	unlock := r.locks.Lock(passenger)
	defer unlock()

	existing, err := r.liveRequestLocked(ctx, passenger, ride.ID)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return nil, nil
	}
	active, err := r.Bookings.GetActiveBookingForRide(ctx, passenger, ride.ID)
	if err != nil {
		return nil, err
	}
	if active != nil {
		return nil, nil
	}

	req := models.ReservationRequest{
		ID:             r.newID(),
		RideID:         ride.ID,
		PassengerEmail: passenger,
		Status:         models.RequestPending,
		Note:           utils.TrimOrEmpty(note),
		CreatedAt:      r.Clock.Now(),
	}
	if err := r.Store.InsertRequest(ctx, req); err != nil {
		return nil, domain.InternalError{Msg: "failed to store reservation request", Err: err}
	}

	_, err = r.Bookings.Create(ctx, models.Booking{
		ID:                  req.ID,
		RideID:              ride.ID,
		PassengerEmail:      passenger,
		OwnerEmail:          ride.OwnerEmail,
		Amount:              ride.Price,
		CreatedAt:           req.CreatedAt,
		Depart:              ride.Depart,
		Destination:         ride.Destination,
		DepartureAt:         ride.DepartureAt,
		MeetingPointAddress: ride.MeetingPointAddress,
		MeetingPointLatLng:  ride.MeetingPointLatLng,
		DriverPlate:         ride.Plate,
		MaskedPlate:         utils.MaskPlate(ride.Plate),
	})
	if err != nil {
		if derr := r.Store.DeleteRequest(ctx, req.ID); derr != nil {
			r.log().Error("orphan reservation request left behind", zap.String("request_id", req.ID), zap.Error(derr))
		}
		return nil, err
	}

	if r.Scheduler != nil {
		if err := r.Scheduler.Schedule(ctx, req.ID, r.AutoAcceptDelay); err != nil {
			r.rollbackUnscheduled(ctx, passenger, req.ID)
			return nil, domain.InternalError{Msg: "failed to schedule auto-accept", Err: err}
		}
	}

	r.log().Info("reservation requested",
		zap.String("request_id", req.ID),
		zap.String("ride_id", ride.ID),
		zap.String("passenger", passenger),
	)
	events.Emit(ctx, r.Events, r.log(), events.Event{
		Type:      events.ReservationRequested,
		User:      passenger,
		BookingID: req.ID,
		RideID:    ride.ID,
		Amount:    utils.FormatMoney(ride.Price),
	})
	return &req, nil
}

// rollbackUnscheduled undoes a request whose auto-accept could not be
// scheduled, so the passenger is free to ask again.
func (r *ReservationRegistry) rollbackUnscheduled(ctx context.Context, passenger, id string) {
	if _, err := r.Bookings.Cancel(ctx, passenger, id); err != nil && !domain.IsNotFound(err) {
		r.log().Error("unscheduled booking left pending", zap.String("request_id", id), zap.Error(err))
	}
	if err := r.Store.DeleteRequest(ctx, id); err != nil && !errors.Is(err, repositories.ErrNotFound) {
		r.log().Error("unscheduled reservation request left behind", zap.String("request_id", id), zap.Error(err))
	}
}

// MarkReservationCancelled cancels the passenger's live request for the
// ride and its booking. Nothing to cancel is not an error.
func (r *ReservationRegistry) MarkReservationCancelled(ctx context.Context, passenger, rideID string) error {
	return r.cancel(ctx, passenger, rideID, false)
}

// RemoveReservationRequest drops the live request entirely. The paired
// booking is cancelled, never deleted.
func (r *ReservationRegistry) RemoveReservationRequest(ctx context.Context, passenger, rideID string) error {
	return r.cancel(ctx, passenger, rideID, true)
}

func (r *ReservationRegistry) cancel(ctx context.Context, passenger, rideID string, remove bool) error {
	passenger = domain.NormalizeEmail(passenger)
	unlock := r.locks.Lock(passenger)
	defer unlock()

	req, err := r.liveRequestLocked(ctx, passenger, rideID)
	if err != nil || req == nil {
		return err
	}

	booking, err := r.Bookings.Get(ctx, passenger, req.ID)
	switch {
	case err == nil && booking.Status == models.BookingPaid:
		return domain.ConflictError{Resource: "reservation", Reason: domain.ReasonInvalidTransition, Msg: "booking is already paid"}
	case err != nil && !domain.IsNotFound(err):
		return err
	}

	if r.Scheduler != nil {
		if err := r.Scheduler.Cancel(ctx, req.ID); err != nil {
			r.log().Warn("auto-accept not cancelled", zap.String("request_id", req.ID), zap.Error(err))
		}
	}

	if remove {
		if err := r.Store.DeleteRequest(ctx, req.ID); err != nil && !errors.Is(err, repositories.ErrNotFound) {
			return domain.InternalError{Msg: "failed to remove reservation request", Err: err}
		}
	} else {
		req.Status = models.RequestCancelled
		if err := r.Store.UpdateRequest(ctx, *req); err != nil {
			return domain.InternalError{Msg: "failed to cancel reservation request", Err: err}
		}
	}

	if _, err := r.Bookings.Cancel(ctx, passenger, req.ID); err != nil && !domain.IsNotFound(err) {
		return err
	}

	r.log().Info("reservation cancelled",
		zap.String("request_id", req.ID),
		zap.String("ride_id", rideID),
		zap.Bool("removed", remove),
	)
	events.Emit(ctx, r.Events, r.log(), events.Event{
		Type:      events.ReservationCancelled,
		User:      passenger,
		BookingID: req.ID,
		RideID:    rideID,
	})
	return nil
}

// AcceptIfPending moves a request and its booking to accepted. It does
// nothing unless the request is still pending, so a late timer cannot undo
// a cancellation. A booking already accepted by an earlier run that failed
// before updating the request is left as is and the request catches up.
func (r *ReservationRegistry) AcceptIfPending(ctx context.Context, id string) error {
	req, err := r.Store.GetRequest(ctx, id)
	if errors.Is(err, repositories.ErrNotFound) {
		return nil
	}
	if err != nil {
		return domain.InternalError{Msg: "failed to load reservation request", Err: err}
	}

	unlock := r.locks.Lock(req.PassengerEmail)
	defer unlock()

	req, err = r.Store.GetRequest(ctx, id)
	if errors.Is(err, repositories.ErrNotFound) {
		return nil
	}
	if err != nil {
		return domain.InternalError{Msg: "failed to load reservation request", Err: err}
	}
	if req.Status != models.RequestPending {
		return nil
	}

	booking, err := r.Bookings.Get(ctx, req.PassengerEmail, req.ID)
	if err != nil {
		if domain.IsNotFound(err) {
			return nil
		}
		return err
	}
	switch booking.Status {
	case models.BookingPending:
		accepted := models.BookingAccepted
		unpaid := models.PaymentUnpaid
		if _, err := r.Bookings.Patch(ctx, req.PassengerEmail, req.ID, models.BookingPatch{
			Status:        &accepted,
			PaymentStatus: &unpaid,
		}); err != nil {
			return err
		}
	case models.BookingAccepted:
	default:
		return nil
	}
	req.Status = models.RequestAccepted
	if err := r.Store.UpdateRequest(ctx, req); err != nil {
		return domain.InternalError{Msg: "failed to accept reservation request", Err: err}
	}

	r.log().Info("reservation accepted", zap.String("request_id", req.ID), zap.String("ride_id", req.RideID))
	events.Emit(ctx, r.Events, r.log(), events.Event{
		Type:      events.ReservationAccepted,
		User:      req.PassengerEmail,
		BookingID: req.ID,
		RideID:    req.RideID,
	})
	return nil
}

// ActiveRequest returns the passenger's live request for the ride, or nil.
func (r *ReservationRegistry) ActiveRequest(ctx context.Context, passenger, rideID string) (*models.ReservationRequest, error) {
	return r.liveRequestLocked(ctx, domain.NormalizeEmail(passenger), rideID)
}

func (r *ReservationRegistry) liveRequestLocked(ctx context.Context, passenger, rideID string) (*models.ReservationRequest, error) {
	list, err := r.ListRequests(ctx, passenger)
	if err != nil {
		return nil, err
	}
	for i := len(list) - 1; i >= 0; i-- {
		if list[i].RideID == rideID && list[i].Status != models.RequestCancelled {
			out := list[i]
			return &out, nil
		}
	}
	return nil, nil
}

func (r *ReservationRegistry) ListRequests(ctx context.Context, passenger string) ([]models.ReservationRequest, error) {
	list, err := r.Store.ListRequestsByPassenger(ctx, domain.NormalizeEmail(passenger))
	if err != nil {
		return nil, domain.InternalError{Msg: "failed to list reservation requests", Err: err}
	}
	return list, nil
}

// lockPassenger takes the per-passenger lock shared by cancel, accept and
// payment confirmation.
func (r *ReservationRegistry) lockPassenger(passenger string) func() {
	return r.locks.Lock(passenger)
}

func (r *ReservationRegistry) newID() string {
	if r.NewID != nil {
		return r.NewID()
	}
	return uuid.NewString()
}

func (r *ReservationRegistry) log() *zap.Logger { return utils.OrNop(r.Logger) }
