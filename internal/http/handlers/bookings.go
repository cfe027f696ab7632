package handlers

import (
	"net/http"

	"campusride/internal/domain/models"
	"campusride/internal/http/middleware"
	"campusride/internal/services"

	"github.com/gin-gonic/gin"
)

type bookingDetail struct {
	models.Booking
	ResolvedMeetingPoint models.MeetingPoint `json:"resolvedMeetingPoint"`
}

func (a *API) ListBookings(c *gin.Context) {
	user, ok := currentUser(c)
	if !ok {
		return
	}
	list, err := a.Bookings.ListByPassenger(c.Request.Context(), user)
	if err != nil {
		RespondDomainError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": list})
}

func (a *API) GetBooking(c *gin.Context) {
	user, ok := currentUser(c)
	if !ok {
		return
	}
	ctx := c.Request.Context()
	b, err := a.Bookings.Get(ctx, user, c.Param("id"))
	if err != nil {
		RespondDomainError(c, err)
		return
	}
	var ride *models.Ride
	if r, err := a.Rides.GetRide(ctx, b.RideID); err == nil {
		ride = &r
	}
	c.JSON(http.StatusOK, bookingDetail{Booking: b, ResolvedMeetingPoint: services.ResolveMeetingPoint(&b, ride)})
}

// touchesPayment reports whether p writes any field owned by the payment flow.
func touchesPayment(p models.BookingPatch) bool {
	if p.Status != nil && *p.Status == models.BookingPaid {
		return true
	}
	return p.Paid != nil || p.PaymentStatus != nil || p.PaymentMethod != nil ||
		p.AmountPaid != nil || p.PricePaid != nil || p.PaidAt != nil
}

// PatchBooking merges the whitelisted fields into the caller's booking.
// Payment fields are written by the payment flow only; admins may repair them.
func (a *API) PatchBooking(c *gin.Context) {
	user, ok := currentUser(c)
	if !ok {
		return
	}
	var patch models.BookingPatch
	if !BindJSONOrError(c, &patch) {
		return
	}
	if touchesPayment(patch) {
		if !middleware.HasRole(c, middleware.RoleAdmin) {
			respondError(c, http.StatusForbidden, "forbidden", "payment fields are set by the payment flow", nil)
			return
		}
	}
	b, err := a.Bookings.Patch(c.Request.Context(), user, c.Param("id"), patch)
	if err != nil {
		RespondDomainError(c, err)
		return
	}
	c.JSON(http.StatusOK, b)
}

// CancelBooking cancels through the reservation registry so the request and
// its pending auto-accept go away with the booking.
func (a *API) CancelBooking(c *gin.Context) {
	user, ok := currentUser(c)
	if !ok {
		return
	}
	ctx := c.Request.Context()
	b, err := a.Bookings.Get(ctx, user, c.Param("id"))
	if err != nil {
		RespondDomainError(c, err)
		return
	}
	live, err := a.Requests.ActiveRequest(ctx, user, b.RideID)
	if err != nil {
		RespondDomainError(c, err)
		return
	}
	if live != nil && live.ID == b.ID {
		if err := a.Requests.MarkReservationCancelled(ctx, user, b.RideID); err != nil {
			RespondDomainError(c, err)
			return
		}
	}
	out, err := a.Bookings.Cancel(ctx, user, b.ID)
	if err != nil {
		RespondDomainError(c, err)
		return
	}
	c.JSON(http.StatusOK, out)
}

func (a *API) BookingReceipt(c *gin.Context) {
	user, ok := currentUser(c)
	if !ok {
		return
	}
	pdf, filename, err := a.receipts(middleware.GetRequestID(c)).PaymentReceipt(c.Request.Context(), user, c.Param("id"))
	if err != nil {
		RespondDomainError(c, err)
		return
	}
	sendPDF(c, filename, pdf)
}
