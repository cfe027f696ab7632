package handlers

import (
	"net/http"

	"campusride/internal/domain"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
)

type confirmPaymentRequest struct {
	Amount *decimal.Decimal `json:"amount"`
}

// ProceedToPayment returns what the caller is about to pay without
// touching the wallet.
func (a *API) ProceedToPayment(c *gin.Context) {
	user, ok := currentUser(c)
	if !ok {
		return
	}
	ctx := c.Request.Context()
	b, err := a.Payments.ProceedToPayment(ctx, c.Param("id"), user)
	if err != nil {
		RespondDomainError(c, err)
		return
	}
	split, err := a.Commission.Split(b.Amount)
	if err != nil {
		RespondDomainError(c, err)
		return
	}
	balance, err := a.Wallet.Balance(ctx, user)
	if err != nil {
		RespondDomainError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"booking": b, "commission": split, "balance": balance})
}

func (a *API) ConfirmPayment(c *gin.Context) {
	user, ok := currentUser(c)
	if !ok {
		return
	}
	var req confirmPaymentRequest
	if !BindJSONOrError(c, &req) {
		return
	}
	if req.Amount == nil {
		RespondDomainError(c, domain.ValidationError{Field: "amount", Msg: "required"})
		return
	}
	res, err := a.Payments.ConfirmPayment(c.Request.Context(), c.Param("id"), user, *req.Amount)
	if err != nil {
		RespondDomainError(c, err)
		return
	}
	c.JSON(http.StatusOK, res)
}
