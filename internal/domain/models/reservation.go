package models

import "time"

type RequestStatus string

const (
	RequestPending   RequestStatus = "pending"
	RequestAccepted  RequestStatus = "accepted"
	RequestCancelled RequestStatus = "cancelled"
)

// ReservationRequest is a passenger's declared intent to book a ride,
// tracked independently of payment. Its id is also the paired booking id.
type ReservationRequest struct {
	ID             string        `json:"id"`
	RideID         string        `json:"rideId"`
	PassengerEmail string        `json:"passengerEmail"`
	Status         RequestStatus `json:"status"`
	Note           string        `json:"note,omitempty"`
	CreatedAt      time.Time     `json:"createdAt"`
}
