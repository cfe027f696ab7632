package handlers

import (
	"errors"
	"net/http"

	"campusride/internal/domain"
	"campusride/internal/http/middleware"

	"github.com/gin-gonic/gin"
)

// ErrorResponse standardizes error payloads.
type ErrorResponse struct {
	Error     string `json:"error"`
	Code      string `json:"code,omitempty"`
	Reason    string `json:"reason,omitempty"`
	Details   any    `json:"details,omitempty"`
	RequestID string `json:"request_id,omitempty"`
}

func respondError(c *gin.Context, status int, code, message string, details any) {
	respondReason(c, status, code, "", message, details)
}

func respondReason(c *gin.Context, status int, code, reason, message string, details any) {
	if code == "" {
		code = http.StatusText(status)
	}
	c.AbortWithStatusJSON(status, ErrorResponse{
		Error:     message,
		Code:      code,
		Reason:    reason,
		Details:   details,
		RequestID: middleware.GetRequestID(c),
	})
}

// RespondDomainError maps domain errors to HTTP responses. The reason field
// carries the stable business reason clients branch on.
func RespondDomainError(c *gin.Context, err error) {
	reason := domain.ReasonOf(err)
	switch {
	case domain.IsPaymentFailed(err):
		var pf domain.PaymentFailedError
		errors.As(err, &pf)
		msg := "payment could not be completed, the wallet was refunded"
		if !pf.Compensated {
			_ = c.Error(err)
			msg = "payment could not be completed, the refund is pending"
		}
		respondReason(c, http.StatusServiceUnavailable, "payment_failed", reason, msg, gin.H{"bookingId": pf.BookingID, "compensated": pf.Compensated})
	case domain.IsValidation(err):
		respondReason(c, http.StatusBadRequest, "validation_error", reason, err.Error(), nil)
	case domain.IsNotFound(err):
		respondReason(c, http.StatusNotFound, "not_found", reason, err.Error(), nil)
	case domain.IsConflict(err):
		respondReason(c, http.StatusConflict, "conflict", reason, err.Error(), nil)
	case domain.IsInsufficientFunds(err):
		respondReason(c, http.StatusPaymentRequired, "insufficient_funds", reason, err.Error(), nil)
	case domain.IsNotPayable(err):
		respondReason(c, http.StatusUnprocessableEntity, "not_payable", reason, err.Error(), nil)
	default:
		_ = c.Error(err)
		respondReason(c, http.StatusInternalServerError, "internal_error", domain.ReasonInternal, "internal error", nil)
	}
}
