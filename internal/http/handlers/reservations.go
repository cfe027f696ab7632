package handlers

import (
	"errors"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"
)

type reservationRequest struct {
	Note string `json:"note"`
}

// RequestReservation logs the caller's intent to ride. A request that is
// already live is not duplicated; the response then says created=false.
func (a *API) RequestReservation(c *gin.Context) {
	user, ok := currentUser(c)
	if !ok {
		return
	}
	var body reservationRequest
	if c.Request.ContentLength != 0 {
		if err := c.ShouldBindJSON(&body); err != nil && !errors.Is(err, io.EOF) {
			respondError(c, http.StatusBadRequest, "invalid_payload", "invalid payload", err.Error())
			return
		}
	}
	ctx := c.Request.Context()
	ride, err := a.Rides.GetRide(ctx, c.Param("id"))
	if err != nil {
		RespondDomainError(c, err)
		return
	}
	req, err := a.Requests.LogReservationRequest(ctx, user, ride, body.Note)
	if err != nil {
		RespondDomainError(c, err)
		return
	}
	if req == nil {
		c.JSON(http.StatusOK, gin.H{"created": false, "request": nil})
		return
	}
	c.JSON(http.StatusCreated, gin.H{"created": true, "request": req})
}

func (a *API) CancelReservation(c *gin.Context) {
	user, ok := currentUser(c)
	if !ok {
		return
	}
	if err := a.Requests.MarkReservationCancelled(c.Request.Context(), user, c.Param("id")); err != nil {
		RespondDomainError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (a *API) RemoveReservation(c *gin.Context) {
	user, ok := currentUser(c)
	if !ok {
		return
	}
	if err := a.Requests.RemoveReservationRequest(c.Request.Context(), user, c.Param("id")); err != nil {
		RespondDomainError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (a *API) ListReservations(c *gin.Context) {
	user, ok := currentUser(c)
	if !ok {
		return
	}
	list, err := a.Requests.ListRequests(c.Request.Context(), user)
	if err != nil {
		RespondDomainError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": list})
}
