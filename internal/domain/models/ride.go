package models

import (
	"time"

	"github.com/shopspring/decimal"
)

type LatLng struct {
	Lat float64 `json:"lat"`
	Lng float64 `json:"lng"`
}

// MeetingPoint is derived, never stored.
type MeetingPoint struct {
	Address string  `json:"address"`
	LatLng  *LatLng `json:"latLng"`
}

// Ride mirrors the subset of the ride directory record this core reads.
type Ride struct {
	ID                  string          `json:"id"`
	OwnerEmail          string          `json:"ownerEmail"`
	Depart              string          `json:"depart"`
	Destination         string          `json:"destination"`
	DepartureAt         time.Time       `json:"departureAt"`
	Price               decimal.Decimal `json:"price"`
	Seats               int             `json:"seats"`
	MeetingPointAddress string          `json:"meetingPointAddress,omitempty"`
	MeetingPointLatLng  *LatLng         `json:"meetingPointLatLng,omitempty"`
	Plate               string          `json:"plate,omitempty"`
}
