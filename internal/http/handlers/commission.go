package handlers

import (
	"net/http"
	"strings"

	"campusride/internal/domain"
	"campusride/internal/services"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
)

// CommissionPreview splits ?price= with the configured rate, or with ?rate= when
// the caller previews another one.
func (a *API) CommissionPreview(c *gin.Context) {
	price, err := decimal.NewFromString(strings.TrimSpace(c.Query("price")))
	if err != nil {
		RespondDomainError(c, domain.ValidationError{Field: "price", Msg: "must be a decimal number"})
		return
	}
	calc := a.Commission
	if raw := strings.TrimSpace(c.Query("rate")); raw != "" {
		rate, err := decimal.NewFromString(raw)
		if err != nil {
			RespondDomainError(c, domain.ValidationError{Field: "rate", Msg: "must be a decimal number"})
			return
		}
		if calc, err = services.NewCommissionCalculator(rate); err != nil {
			RespondDomainError(c, err)
			return
		}
	}
	split, err := calc.Split(price)
	if err != nil {
		RespondDomainError(c, err)
		return
	}
	c.JSON(http.StatusOK, split)
}
