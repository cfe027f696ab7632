package services

import (
	"context"
	"sort"
	"sync"
	"time"

	"campusride/internal/domain"
	"campusride/internal/domain/models"
	"campusride/internal/utils"
)

// RideDirectory is the read side of the ride catalogue this core depends on.
type RideDirectory interface {
	GetRide(ctx context.Context, id string) (models.Ride, error)
	HasRideDeparted(ride models.Ride, now time.Time) bool
}

// StaticRideDirectory keeps rides in memory. Rides are registered by the
// HTTP API or by tests.
type StaticRideDirectory struct {
	mu    sync.RWMutex
	rides map[string]models.Ride
}

func NewStaticRideDirectory(rides ...models.Ride) *StaticRideDirectory {
	d := &StaticRideDirectory{rides: map[string]models.Ride{}}
	for _, r := range rides {
		_ = d.Register(r)
	}
	return d
}

func (d *StaticRideDirectory) Register(r models.Ride) error {
	r.ID = utils.TrimOrEmpty(r.ID)
	r.OwnerEmail = domain.NormalizeEmail(r.OwnerEmail)
	switch {
	case r.ID == "":
		return domain.ValidationError{Field: "id", Msg: "required"}
	case r.OwnerEmail == "":
		return domain.ValidationError{Field: "ownerEmail", Msg: "required"}
	case r.Price.IsNegative():
		return domain.ValidationError{Field: "price", Msg: "must not be negative"}
	case r.Seats < 0:
		return domain.ValidationError{Field: "seats", Msg: "must not be negative"}
	}
	r.Price = utils.Round2(r.Price)
	if r.MeetingPointLatLng != nil {
		v := *r.MeetingPointLatLng
		r.MeetingPointLatLng = &v
	}

	d.mu.Lock()
	defer d.mu.Unlock()
	d.rides[r.ID] = r
	return nil
}

func (d *StaticRideDirectory) GetRide(_ context.Context, id string) (models.Ride, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	r, ok := d.rides[id]
	if !ok {
		return models.Ride{}, domain.NotFoundError{Resource: "ride", ID: id}
	}
	if r.MeetingPointLatLng != nil {
		v := *r.MeetingPointLatLng
		r.MeetingPointLatLng = &v
	}
	return r, nil
}

func (d *StaticRideDirectory) List() []models.Ride {
	d.mu.RLock()
	defer d.mu.RUnlock()
	out := make([]models.Ride, 0, len(d.rides))
	for _, r := range d.rides {
		out = append(out, r)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].DepartureAt.Before(out[j].DepartureAt) })
	return out
}

// HasRideDeparted is false for rides without a departure time.
func (d *StaticRideDirectory) HasRideDeparted(ride models.Ride, now time.Time) bool {
	if ride.DepartureAt.IsZero() {
		return false
	}
	return !now.Before(ride.DepartureAt)
}
