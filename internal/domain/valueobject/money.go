package valueobject

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/cutflow/cutflow-backend/internal/pkg/apperror"
)

// MaxOrderAmount верхняя граница суммы заказа.
var MaxOrderAmount = decimal.NewFromInt(100_000_000)

var hundred = decimal.NewFromInt(100)

// NewAmount проверяет денежную сумму и округляет её до копеек.
func NewAmount(amount decimal.Decimal) (decimal.Decimal, error) {
	if !amount.IsPositive() {
		return decimal.Zero, apperror.New(apperror.ErrCodeValidation, "сумма должна быть положительной")
	}
	if amount.GreaterThan(MaxOrderAmount) {
		return decimal.Zero, apperror.Newf(apperror.ErrCodeValidation, "сумма не может превышать %s", MaxOrderAmount.String())
	}
	if !amount.Equal(amount.Round(2)) {
		return decimal.Zero, apperror.New(apperror.ErrCodeValidation, "сумма может содержать не более двух знаков после запятой")
	}
	return amount, nil
}

// ToMinorUnits переводит сумму в минимальные единицы валюты (пайсы, центы).
func ToMinorUnits(amount decimal.Decimal) int64 {
	return amount.Mul(hundred).Round(0).IntPart()
}

// FromMinorUnits переводит минимальные единицы обратно в сумму.
func FromMinorUnits(minor int64) decimal.Decimal {
	return decimal.New(minor, -2)
}

// DepositPolicy определяет размер и срок внесения депозита за отклик.
type DepositPolicy struct {
	Percent decimal.Decimal
	Minimum decimal.Decimal
	Window  time.Duration
}

// NewDepositPolicy собирает политику из конфигурации.
func NewDepositPolicy(percent, minimum float64, window time.Duration) (DepositPolicy, error) {
	if percent < 0 || percent > 100 {
		return DepositPolicy{}, fmt.Errorf("deposit policy: процент %v вне диапазона", percent)
	}
	if minimum < 0 {
		return DepositPolicy{}, fmt.Errorf("deposit policy: минимум не может быть отрицательным")
	}
	return DepositPolicy{
		Percent: decimal.NewFromFloat(percent),
		Minimum: decimal.NewFromFloat(minimum).Round(2),
		Window:  window,
	}, nil
}

// Amount возвращает депозит для заказа: процент от суммы, но не меньше минимума и не больше самой суммы.
func (p DepositPolicy) Amount(orderAmount decimal.Decimal) decimal.Decimal {
	deposit := orderAmount.Mul(p.Percent).Div(hundred).Round(2)
	if deposit.LessThan(p.Minimum) {
		deposit = p.Minimum
	}
	if deposit.GreaterThan(orderAmount) {
		deposit = orderAmount
	}
	return deposit
}

// Deadline возвращает крайний срок внесения депозита.
func (p DepositPolicy) Deadline(now time.Time) time.Time {
	return now.Add(p.Window)
}
