package services

import (
	"campusride/internal/domain"
	"campusride/internal/utils"

	"github.com/shopspring/decimal"
)

// Fee is the platform share of price, rounded to cents.
func Fee(price, rate decimal.Decimal) decimal.Decimal {
	return utils.Round2(price.Mul(rate))
}

// DriverNet is what remains for the driver once the fee is taken.
func DriverNet(price, rate decimal.Decimal) decimal.Decimal {
	return utils.Round2(price.Sub(Fee(price, rate)))
}

type CommissionSplit struct {
	Price     decimal.Decimal `json:"price"`
	Rate      decimal.Decimal `json:"rate"`
	Fee       decimal.Decimal `json:"fee"`
	DriverNet decimal.Decimal `json:"driverNet"`
}

// CommissionCalculator applies a configured rate.
type CommissionCalculator struct {
	Rate decimal.Decimal
}

func NewCommissionCalculator(rate decimal.Decimal) (CommissionCalculator, error) {
	if err := ValidateRate(rate); err != nil {
		return CommissionCalculator{}, err
	}
	return CommissionCalculator{Rate: rate}, nil
}

func ValidateRate(rate decimal.Decimal) error {
	if rate.IsNegative() || rate.GreaterThan(decimal.NewFromInt(1)) {
		return domain.ValidationError{Field: "rate", Msg: "must be between 0 and 1"}
	}
	return nil
}

func (c CommissionCalculator) Split(price decimal.Decimal) (CommissionSplit, error) {
	if price.IsNegative() {
		return CommissionSplit{}, domain.ValidationError{Field: "price", Msg: "must not be negative"}
	}
	return CommissionSplit{
		Price:     price,
		Rate:      c.Rate,
		Fee:       Fee(price, c.Rate),
		DriverNet: DriverNet(price, c.Rate),
	}, nil
}
