package services

import (
	"errors"
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/baharkarakas/betsave-core/internal/config"
)

var ErrInvalidAmount = errors.New("amount must be a positive integer")

// SavingsFor returns amount × fraction rounded half away from zero.
func SavingsFor(amount int64, fraction decimal.Decimal) (int64, error) {
	if amount <= 0 {
		return 0, ErrInvalidAmount
	}
	if err := config.CheckFraction(fraction); err != nil {
		return 0, err
	}
	s := decimal.NewFromInt(amount).Mul(fraction).Round(0)
	if s.Sign() <= 0 {
		return 0, fmt.Errorf("%w: savings for %d rounds to %s", ErrInvalidAmount, amount, s)
	}
	return s.IntPart(), nil
}
