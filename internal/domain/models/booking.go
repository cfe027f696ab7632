package models

import (
	"time"

	"github.com/shopspring/decimal"
)

type BookingStatus string

const (
	BookingPending   BookingStatus = "pending"
	BookingAccepted  BookingStatus = "accepted"
	BookingPaid      BookingStatus = "paid"
	BookingCancelled BookingStatus = "cancelled"
)

// Terminal reports whether no further transition is allowed.
func (s BookingStatus) Terminal() bool {
	return s == BookingPaid || s == BookingCancelled
}

// Blocking reports whether the booking holds the passenger's slot on a ride.
func (s BookingStatus) Blocking() bool {
	return s == BookingPending || s == BookingAccepted
}

func (s BookingStatus) Valid() bool {
	switch s {
	case BookingPending, BookingAccepted, BookingPaid, BookingCancelled:
		return true
	}
	return false
}

type PaymentMethod string

const (
	PaymentNone   PaymentMethod = "none"
	PaymentWallet PaymentMethod = "wallet"
	PaymentCard   PaymentMethod = "card"
	PaymentPass   PaymentMethod = "pass"
)

func (m PaymentMethod) Valid() bool {
	switch m {
	case PaymentNone, PaymentWallet, PaymentCard, PaymentPass:
		return true
	}
	return false
}

type PaymentStatus string

const (
	PaymentUnpaid PaymentStatus = "unpaid"
	PaymentPaid   PaymentStatus = "paid"
)

// Booking is the authoritative lifecycle record of one reservation.
type Booking struct {
	ID                  string           `json:"id"`
	RideID              string           `json:"rideId"`
	PassengerEmail      string           `json:"passengerEmail"`
	OwnerEmail          string           `json:"ownerEmail"`
	Status              BookingStatus    `json:"status"`
	Paid                bool             `json:"paid"`
	PaymentMethod       PaymentMethod    `json:"paymentMethod"`
	PaymentStatus       PaymentStatus    `json:"paymentStatus"`
	Amount              decimal.Decimal  `json:"amount"`
	AmountPaid          *decimal.Decimal `json:"amountPaid,omitempty"`
	PricePaid           *decimal.Decimal `json:"pricePaid,omitempty"`
	CreatedAt           time.Time        `json:"createdAt"`
	AcceptedAt          *time.Time       `json:"acceptedAt,omitempty"`
	PaidAt              *time.Time       `json:"paidAt,omitempty"`
	Depart              string           `json:"depart"`
	Destination         string           `json:"destination"`
	DepartureAt         time.Time        `json:"departureAt"`
	MeetingPoint        string           `json:"meetingPoint"`
	MeetingPointAddress string           `json:"meetingPointAddress"`
	MeetingPointLatLng  *LatLng          `json:"meetingPointLatLng,omitempty"`
	Plate               string           `json:"plate,omitempty"`
	DriverPlate         string           `json:"driverPlate,omitempty"`
	MaskedPlate         string           `json:"maskedPlate,omitempty"`
}

// Clone copies pointer fields so callers cannot reach ledger state.
func (b Booking) Clone() Booking {
	out := b
	if b.AmountPaid != nil {
		v := *b.AmountPaid
		out.AmountPaid = &v
	}
	if b.PricePaid != nil {
		v := *b.PricePaid
		out.PricePaid = &v
	}
	if b.AcceptedAt != nil {
		v := *b.AcceptedAt
		out.AcceptedAt = &v
	}
	if b.PaidAt != nil {
		v := *b.PaidAt
		out.PaidAt = &v
	}
	if b.MeetingPointLatLng != nil {
		v := *b.MeetingPointLatLng
		out.MeetingPointLatLng = &v
	}
	return out
}

// BookingPatch supports PATCH-style updates via key presence. Only the
// fields below may ever be merged into a stored booking.
type BookingPatch struct {
	Status              *BookingStatus   `json:"status,omitempty"`
	Paid                *bool            `json:"paid,omitempty"`
	PaymentMethod       *PaymentMethod   `json:"paymentMethod,omitempty"`
	PaymentStatus       *PaymentStatus   `json:"paymentStatus,omitempty"`
	PaidAt              *time.Time       `json:"paidAt,omitempty"`
	AmountPaid          *decimal.Decimal `json:"amountPaid,omitempty"`
	PricePaid           *decimal.Decimal `json:"pricePaid,omitempty"`
	MeetingPoint        *string          `json:"meetingPoint,omitempty"`
	MeetingPointAddress *string          `json:"meetingPointAddress,omitempty"`
	MeetingPointLatLng  *LatLng          `json:"meetingPointLatLng,omitempty"`
	Plate               *string          `json:"plate,omitempty"`
	DriverPlate         *string          `json:"driverPlate,omitempty"`
	MaskedPlate         *string          `json:"maskedPlate,omitempty"`
}

// Empty reports whether the patch carries no field at all.
func (p BookingPatch) Empty() bool {
	return p.Status == nil && p.Paid == nil && p.PaymentMethod == nil &&
		p.PaymentStatus == nil && p.PaidAt == nil && p.AmountPaid == nil &&
		p.PricePaid == nil && p.MeetingPoint == nil && p.MeetingPointAddress == nil &&
		p.MeetingPointLatLng == nil && p.Plate == nil && p.DriverPlate == nil &&
		p.MaskedPlate == nil
}
