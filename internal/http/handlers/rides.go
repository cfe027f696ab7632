package handlers

import (
	"net/http"
	"strings"

	"campusride/internal/domain/models"
	"campusride/internal/services"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

func (a *API) ListRides(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"data": a.Rides.List()})
}

// CreateRide publishes a ride owned by the caller.
func (a *API) CreateRide(c *gin.Context) {
	user, ok := currentUser(c)
	if !ok {
		return
	}
	var ride models.Ride
	if !BindJSONOrError(c, &ride) {
		return
	}
	ride.OwnerEmail = user
	if strings.TrimSpace(ride.ID) == "" {
		ride.ID = uuid.NewString()
	}
	if err := a.Rides.Register(ride); err != nil {
		RespondDomainError(c, err)
		return
	}
	stored, err := a.Rides.GetRide(c.Request.Context(), ride.ID)
	if err != nil {
		RespondDomainError(c, err)
		return
	}
	c.JSON(http.StatusCreated, stored)
}

func (a *API) GetRide(c *gin.Context) {
	ride, err := a.Rides.GetRide(c.Request.Context(), c.Param("id"))
	if err != nil {
		RespondDomainError(c, err)
		return
	}
	c.JSON(http.StatusOK, ride)
}

// RideMeetingPoint resolves where the caller meets the driver. The caller's
// latest live or paid booking on the ride overrides the ride's own point.
func (a *API) RideMeetingPoint(c *gin.Context) {
	user, ok := currentUser(c)
	if !ok {
		return
	}
	ctx := c.Request.Context()
	ride, err := a.Rides.GetRide(ctx, c.Param("id"))
	if err != nil {
		RespondDomainError(c, err)
		return
	}
	list, err := a.Bookings.ListByPassenger(ctx, user)
	if err != nil {
		RespondDomainError(c, err)
		return
	}
	var latest *models.Booking
	for i := range list {
		b := &list[i]
		if b.RideID != ride.ID || b.Status == models.BookingCancelled {
			continue
		}
		if latest == nil || b.CreatedAt.After(latest.CreatedAt) {
			latest = b
		}
	}
	c.JSON(http.StatusOK, services.ResolveMeetingPoint(latest, &ride))
}
