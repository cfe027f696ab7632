package services

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"campusride/internal/domain"
	"campusride/internal/domain/models"
	"campusride/internal/events"
	"campusride/internal/repositories"
	"campusride/internal/scheduler"
)

type registryFixture struct {
	store    *repositories.MemoryStore
	bookings *BookingLedger
	registry *ReservationRegistry
	sched    *scheduler.Manual
	events   *events.Recorder
	ride     models.Ride
}

// hookedRequestStore runs beforeUpdate ahead of every request update and
// fails the update when it returns an error.
type hookedRequestStore struct {
	*repositories.MemoryStore
	beforeUpdate func(models.ReservationRequest) error
}

func (s *hookedRequestStore) UpdateRequest(ctx context.Context, r models.ReservationRequest) error {
	if s.beforeUpdate != nil {
		if err := s.beforeUpdate(r); err != nil {
			return err
		}
	}
	return s.MemoryStore.UpdateRequest(ctx, r)
}

// flakyScheduler refuses to arm keys while down is set.
type flakyScheduler struct {
	*scheduler.Manual
	mu   sync.Mutex
	down bool
}

func (s *flakyScheduler) Schedule(ctx context.Context, key string, delay time.Duration) error {
	s.mu.Lock()
	down := s.down
	s.mu.Unlock()
	if down {
		return errors.New("queue unavailable")
	}
	return s.Manual.Schedule(ctx, key, delay)
}

func (s *flakyScheduler) setDown(v bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.down = v
}

func newRegistryFixture() registryFixture {
	store := repositories.NewMemoryStore()
	clock := fixedClock()
	bookings := NewBookingLedger(store, nil)
	bookings.Clock = clock

	sched := scheduler.NewManual()
	rec := &events.Recorder{}
	reg := NewReservationRegistry(store, bookings, sched, rec, nil)
	reg.Clock = clock
	reg.NewID = seqIDs("req")
	sched.Handle(reg.AcceptIfPending)

	ride := models.Ride{
		ID:                  "ride-1",
		OwnerEmail:          "driver@campus.edu",
		Depart:              "Gare Centrale",
		Destination:         "Campus Nord",
		DepartureAt:         time.Date(2025, 3, 20, 8, 0, 0, 0, time.UTC),
		Price:               dec("37.50"),
		MeetingPointAddress: "Parking P2",
		Plate:               "AB-123-CD",
	}
	return registryFixture{store: store, bookings: bookings, registry: reg, sched: sched, events: rec, ride: ride}
}

func TestLogReservationRequestCreatesPairedBooking(t *testing.T) {
	f := newRegistryFixture()
	ctx := context.Background()

	req, err := f.registry.LogReservationRequest(ctx, "Ana@Campus.edu", f.ride, " window seat ")
	if err != nil || req == nil {
		t.Fatalf("log: req=%v err=%v", req, err)
	}
	if req.Status != models.RequestPending || req.PassengerEmail != "ana@campus.edu" || req.Note != "window seat" {
		t.Fatalf("unexpected request %+v", req)
	}

	b, err := f.bookings.Get(ctx, "ana@campus.edu", req.ID)
	if err != nil {
		t.Fatalf("paired booking missing: %v", err)
	}
	if b.Status != models.BookingPending || !b.Amount.Equal(dec("37.50")) || b.MaskedPlate != "******-CD" {
		t.Fatalf("unexpected booking %+v", b)
	}
	if !f.sched.Armed(req.ID) || f.sched.Delay(req.ID) != DefaultAutoAcceptDelay {
		t.Fatalf("auto-accept not armed")
	}
	if types := f.events.Types(); len(types) != 1 || types[0] != events.ReservationRequested {
		t.Fatalf("unexpected events %v", types)
	}
}

func TestLogReservationRequestIsNoopWhenLive(t *testing.T) {
	f := newRegistryFixture()
	ctx := context.Background()
	first, _ := f.registry.LogReservationRequest(ctx, "ana@campus.edu", f.ride, "")

	again, err := f.registry.LogReservationRequest(ctx, "ana@campus.edu", f.ride, "")
	if err != nil || again != nil {
		t.Fatalf("expected nil request, got %+v err=%v", again, err)
	}
	list, _ := f.registry.ListRequests(ctx, "ana@campus.edu")
	if len(list) != 1 || list[0].ID != first.ID {
		t.Fatalf("unexpected requests %+v", list)
	}
	bookings, _ := f.bookings.ListByPassenger(ctx, "ana@campus.edu")
	if len(bookings) != 1 {
		t.Fatalf("expected one booking, got %d", len(bookings))
	}
}

func TestLogReservationRequestRejectsOwnRideAndDeparted(t *testing.T) {
	f := newRegistryFixture()
	ctx := context.Background()
	if _, err := f.registry.LogReservationRequest(ctx, "driver@campus.edu", f.ride, ""); !domain.IsValidation(err) {
		t.Fatalf("expected ValidationError for own ride, got %v", err)
	}

	f.registry.Rides = NewStaticRideDirectory()
	f.registry.Clock = func() time.Time { return f.ride.DepartureAt.Add(time.Hour) }
	if _, err := f.registry.LogReservationRequest(ctx, "ana@campus.edu", f.ride, ""); !domain.IsValidation(err) {
		t.Fatalf("expected ValidationError for departed ride, got %v", err)
	}
}

func TestAutoAcceptMovesRequestAndBooking(t *testing.T) {
	f := newRegistryFixture()
	ctx := context.Background()
	req, _ := f.registry.LogReservationRequest(ctx, "ana@campus.edu", f.ride, "")

	if ok, err := f.sched.Fire(ctx, req.ID); !ok || err != nil {
		t.Fatalf("fire: ok=%v err=%v", ok, err)
	}
	live, _ := f.registry.ActiveRequest(ctx, "ana@campus.edu", f.ride.ID)
	if live == nil || live.Status != models.RequestAccepted {
		t.Fatalf("request not accepted: %+v", live)
	}
	b, _ := f.bookings.Get(ctx, "ana@campus.edu", req.ID)
	if b.Status != models.BookingAccepted || b.PaymentStatus != models.PaymentUnpaid || b.AcceptedAt == nil {
		t.Fatalf("booking not accepted: %+v", b)
	}
}

func TestAutoAcceptAfterCancelIsNoop(t *testing.T) {
	f := newRegistryFixture()
	ctx := context.Background()
	req, _ := f.registry.LogReservationRequest(ctx, "ana@campus.edu", f.ride, "")

	if err := f.registry.MarkReservationCancelled(ctx, "ana@campus.edu", f.ride.ID); err != nil {
		t.Fatalf("cancel: %v", err)
	}
	if f.sched.Armed(req.ID) {
		t.Fatalf("timer should be disarmed by cancellation")
	}
	// A queue may still deliver the task after cancellation.
	if err := f.sched.FireAnyway(ctx, req.ID); err != nil {
		t.Fatalf("stale fire: %v", err)
	}

	stored, _ := f.store.GetRequest(ctx, req.ID)
	if stored.Status != models.RequestCancelled {
		t.Fatalf("request status %s", stored.Status)
	}
	b, _ := f.bookings.Get(ctx, "ana@campus.edu", req.ID)
	if b.Status != models.BookingCancelled {
		t.Fatalf("booking status %s", b.Status)
	}
}

func TestAcceptIfPendingUnknownIDIsNoop(t *testing.T) {
	f := newRegistryFixture()
	if err := f.registry.AcceptIfPending(context.Background(), "missing"); err != nil {
		t.Fatalf("expected nil, got %v", err)
	}
}

func TestCancelIsIdempotentAndAllowsRebooking(t *testing.T) {
	f := newRegistryFixture()
	ctx := context.Background()
	if err := f.registry.MarkReservationCancelled(ctx, "ana@campus.edu", f.ride.ID); err != nil {
		t.Fatalf("cancel with nothing to cancel: %v", err)
	}

	_, _ = f.registry.LogReservationRequest(ctx, "ana@campus.edu", f.ride, "")
	_ = f.registry.MarkReservationCancelled(ctx, "ana@campus.edu", f.ride.ID)
	if err := f.registry.MarkReservationCancelled(ctx, "ana@campus.edu", f.ride.ID); err != nil {
		t.Fatalf("second cancel: %v", err)
	}

	again, err := f.registry.LogReservationRequest(ctx, "ana@campus.edu", f.ride, "")
	if err != nil || again == nil {
		t.Fatalf("rebooking after cancel failed: %+v err=%v", again, err)
	}
	active, _ := f.bookings.GetActiveBookingForRide(ctx, "ana@campus.edu", f.ride.ID)
	if active == nil || active.ID != again.ID {
		t.Fatalf("expected new booking to be active, got %+v", active)
	}
}

func TestRemoveReservationRequestDeletesEntry(t *testing.T) {
	f := newRegistryFixture()
	ctx := context.Background()
	req, _ := f.registry.LogReservationRequest(ctx, "ana@campus.edu", f.ride, "")

	if err := f.registry.RemoveReservationRequest(ctx, "ana@campus.edu", f.ride.ID); err != nil {
		t.Fatalf("remove: %v", err)
	}
	if _, err := f.store.GetRequest(ctx, req.ID); err != repositories.ErrNotFound {
		t.Fatalf("request should be gone, got %v", err)
	}
	b, _ := f.bookings.Get(ctx, "ana@campus.edu", req.ID)
	if b.Status != models.BookingCancelled {
		t.Fatalf("booking should be cancelled, got %s", b.Status)
	}
	if err := f.registry.RemoveReservationRequest(ctx, "ana@campus.edu", f.ride.ID); err != nil {
		t.Fatalf("second remove: %v", err)
	}
}

func TestCancelRefusedOncePaid(t *testing.T) {
	f := newRegistryFixture()
	ctx := context.Background()
	req, _ := f.registry.LogReservationRequest(ctx, "ana@campus.edu", f.ride, "")
	_, _ = f.sched.Fire(ctx, req.ID)

	paidStatus := models.BookingPaid
	paid := models.PaymentPaid
	if _, err := f.bookings.Patch(ctx, "ana@campus.edu", req.ID, models.BookingPatch{Status: &paidStatus, PaymentStatus: &paid}); err != nil {
		t.Fatalf("patch: %v", err)
	}
	err := f.registry.MarkReservationCancelled(ctx, "ana@campus.edu", f.ride.ID)
	if domain.ReasonOf(err) != domain.ReasonInvalidTransition {
		t.Fatalf("expected InvalidTransition, got %v", err)
	}
}

func TestAutoAcceptResumesAfterRequestUpdateFails(t *testing.T) {
	f := newRegistryFixture()
	ctx := context.Background()
	failures := 1
	f.registry.Store = &hookedRequestStore{
		MemoryStore: f.store,
		beforeUpdate: func(r models.ReservationRequest) error {
			if r.Status == models.RequestAccepted && failures > 0 {
				failures--
				return errors.New("request store unavailable")
			}
			return nil
		},
	}

	req, err := f.registry.LogReservationRequest(ctx, "ana@campus.edu", f.ride, "")
	if err != nil || req == nil {
		t.Fatalf("log: %v", err)
	}
	if _, err := f.sched.Fire(ctx, req.ID); err == nil {
		t.Fatalf("expected the first accept to fail")
	}
	b, _ := f.bookings.Get(ctx, "ana@campus.edu", req.ID)
	stored, _ := f.store.GetRequest(ctx, req.ID)
	if b.Status != models.BookingAccepted || stored.Status != models.RequestPending {
		t.Fatalf("expected accepted booking with pending request, got %s / %s", b.Status, stored.Status)
	}

	// The queue redelivers the task.
	if err := f.sched.FireAnyway(ctx, req.ID); err != nil {
		t.Fatalf("redelivery: %v", err)
	}
	stored, _ = f.store.GetRequest(ctx, req.ID)
	if stored.Status != models.RequestAccepted {
		t.Fatalf("request should catch up to accepted, got %s", stored.Status)
	}
	b, _ = f.bookings.Get(ctx, "ana@campus.edu", req.ID)
	if b.Status != models.BookingAccepted || b.PaymentStatus != models.PaymentUnpaid {
		t.Fatalf("booking changed on redelivery: %+v", b)
	}
	accepted := 0
	for _, typ := range f.events.Types() {
		if typ == events.ReservationAccepted {
			accepted++
		}
	}
	if accepted != 1 {
		t.Fatalf("expected one accepted event, got %d", accepted)
	}
}

func TestLogReservationRequestRollsBackWhenNotScheduled(t *testing.T) {
	f := newRegistryFixture()
	ctx := context.Background()
	sched := &flakyScheduler{Manual: f.sched, down: true}
	f.registry.Scheduler = sched

	req, err := f.registry.LogReservationRequest(ctx, "ana@campus.edu", f.ride, "")
	if domain.ReasonOf(err) != domain.ReasonInternal || req != nil {
		t.Fatalf("expected Internal error, got req=%+v err=%v", req, err)
	}
	live, _ := f.registry.ActiveRequest(ctx, "ana@campus.edu", f.ride.ID)
	if live != nil {
		t.Fatalf("no live request should remain, got %+v", live)
	}
	if active, _ := f.bookings.GetActiveBookingForRide(ctx, "ana@campus.edu", f.ride.ID); active != nil {
		t.Fatalf("no active booking should remain, got %+v", active)
	}

	sched.setDown(false)
	again, err := f.registry.LogReservationRequest(ctx, "ana@campus.edu", f.ride, "")
	if err != nil || again == nil {
		t.Fatalf("retry after scheduler recovers: req=%v err=%v", again, err)
	}
	if !f.sched.Armed(again.ID) {
		t.Fatalf("auto-accept should be armed for %s", again.ID)
	}
}
