package domain

import (
	"errors"
	"fmt"

	"github.com/shopspring/decimal"
)

// Reason codes returned to callers that branch on business-rule failures.
const (
	ReasonValidation          = "ValidationError"
	ReasonInsufficientFunds   = "InsufficientFunds"
	ReasonNotFound            = "NotFound"
	ReasonDuplicateID         = "DuplicateId"
	ReasonActiveBookingExists = "ActiveBookingExists"
	ReasonInvalidTransition   = "InvalidTransition"
	ReasonNotPayable          = "NotPayable"
	ReasonPaymentFailed       = "PaymentFailed"
	ReasonInternal            = "Internal"
)

type NotFoundError struct {
	Resource string
	ID       string
	Err      error
}

func (e NotFoundError) Error() string {
	switch {
	case e.Resource != "" && e.ID != "":
		return fmt.Sprintf("%s %q not found", e.Resource, e.ID)
	case e.Resource != "":
		return fmt.Sprintf("%s not found", e.Resource)
	default:
		return "not found"
	}
}

func (e NotFoundError) Unwrap() error { return e.Err }

type ValidationError struct {
	Field string
	Msg   string
	Err   error
}

func (e ValidationError) Error() string {
	if e.Msg != "" && e.Field != "" {
		return fmt.Sprintf("%s: %s", e.Field, e.Msg)
	}
	if e.Msg != "" {
		return e.Msg
	}
	if e.Field != "" {
		return fmt.Sprintf("invalid %s", e.Field)
	}
	return "validation error"
}

func (e ValidationError) Unwrap() error { return e.Err }

// ConflictError covers duplicate ids, a second blocking booking for the
// same ride and rejected status transitions. Reason tells them apart.
type ConflictError struct {
	Resource string
	Reason   string
	Msg      string
	Err      error
}

func (e ConflictError) Error() string {
	switch {
	case e.Msg != "" && e.Resource != "":
		return fmt.Sprintf("%s conflict: %s", e.Resource, e.Msg)
	case e.Msg != "":
		return e.Msg
	case e.Resource != "":
		return fmt.Sprintf("%s conflict", e.Resource)
	default:
		return "conflict"
	}
}

func (e ConflictError) Unwrap() error { return e.Err }

type InsufficientFundsError struct {
	Owner     string
	Balance   decimal.Decimal
	Requested decimal.Decimal
}

func (e InsufficientFundsError) Error() string {
	return fmt.Sprintf("insufficient funds: balance %s, requested %s", e.Balance.StringFixed(2), e.Requested.StringFixed(2))
}

// NotPayableError reports which payment precondition did not hold.
type NotPayableError struct {
	BookingID string
	Msg       string
}

func (e NotPayableError) Error() string {
	if e.Msg == "" {
		return "booking is not payable"
	}
	return "booking is not payable: " + e.Msg
}

// PaymentFailedError is returned after a committed debit had to be
// compensated because the booking commit failed.
type PaymentFailedError struct {
	BookingID   string
	Compensated bool
	Err         error
}

func (e PaymentFailedError) Error() string {
	state := "compensated"
	if !e.Compensated {
		state = "compensation failed"
	}
	if e.Err == nil {
		return fmt.Sprintf("payment failed for booking %s (%s)", e.BookingID, state)
	}
	return fmt.Sprintf("payment failed for booking %s (%s): %v", e.BookingID, state, e.Err)
}

func (e PaymentFailedError) Unwrap() error { return e.Err }

type InternalError struct {
	Msg string
	Err error
}

func (e InternalError) Error() string {
	if e.Msg != "" {
		return e.Msg
	}
	return "internal error"
}

func (e InternalError) Unwrap() error { return e.Err }

func IsNotFound(err error) bool {
	var target NotFoundError
	return errors.As(err, &target)
}

func IsValidation(err error) bool {
	var target ValidationError
	return errors.As(err, &target)
}

func IsConflict(err error) bool {
	var target ConflictError
	return errors.As(err, &target)
}

func IsInsufficientFunds(err error) bool {
	var target InsufficientFundsError
	return errors.As(err, &target)
}

func IsNotPayable(err error) bool {
	var target NotPayableError
	return errors.As(err, &target)
}

func IsPaymentFailed(err error) bool {
	var target PaymentFailedError
	return errors.As(err, &target)
}

func IsInternal(err error) bool {
	var target InternalError
	return errors.As(err, &target)
}

// ReasonOf maps an error to its stable reason code. Nil maps to "".
func ReasonOf(err error) string {
	if err == nil {
		return ""
	}
	if IsPaymentFailed(err) {
		return ReasonPaymentFailed
	}
	var conflict ConflictError
	if errors.As(err, &conflict) {
		if conflict.Reason != "" {
			return conflict.Reason
		}
		return ReasonDuplicateID
	}
	switch {
	case IsValidation(err):
		return ReasonValidation
	case IsInsufficientFunds(err):
		return ReasonInsufficientFunds
	case IsNotFound(err):
		return ReasonNotFound
	case IsNotPayable(err):
		return ReasonNotPayable
	default:
		return ReasonInternal
	}
}
