package services

import (
	"math"

	"campusride/internal/domain/models"
	"campusride/internal/utils"
)

// ResolveMeetingPoint picks what the passenger is shown. Coordinates come
// from the booking, then the ride, and are dropped when out of range. The
// address falls back booking address, booking meeting point, ride address,
// ride departure. Either argument may be nil.
func ResolveMeetingPoint(b *models.Booking, r *models.Ride) models.MeetingPoint {
	var mp models.MeetingPoint

	switch {
	case b != nil && ValidLatLng(b.MeetingPointLatLng):
		v := *b.MeetingPointLatLng
		mp.LatLng = &v
	case r != nil && ValidLatLng(r.MeetingPointLatLng):
		v := *r.MeetingPointLatLng
		mp.LatLng = &v
	}

	var candidates []string
	if b != nil {
		candidates = append(candidates, b.MeetingPointAddress, b.MeetingPoint)
	}
	if r != nil {
		candidates = append(candidates, r.MeetingPointAddress, r.Depart)
	}
	mp.Address = utils.FirstNonEmpty(candidates...)
	return mp
}

func ValidLatLng(p *models.LatLng) bool {
	if p == nil {
		return false
	}
	if math.IsNaN(p.Lat) || math.IsInf(p.Lat, 0) || math.IsNaN(p.Lng) || math.IsInf(p.Lng, 0) {
		return false
	}
	return p.Lat >= -90 && p.Lat <= 90 && p.Lng >= -180 && p.Lng <= 180
}
