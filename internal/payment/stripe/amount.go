package stripe

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

var zeroDecimalCurrencies = map[string]struct{}{
	"BIF": {},
	"CLP": {},
	"DJF": {},
	"GNF": {},
	"JPY": {},
	"KMF": {},
	"KRW": {},
	"MGA": {},
	"PYG": {},
	"RWF": {},
	"UGX": {},
	"VND": {},
	"VUV": {},
	"XAF": {},
	"XOF": {},
	"XPF": {},
}

// ToMinorAmount 主币金额转换为最小币种单位
func ToMinorAmount(amount decimal.Decimal, currency string) (int64, error) {
	if amount.LessThanOrEqual(decimal.Zero) {
		return 0, fmt.Errorf("%w: amount must be greater than zero", ErrConfigInvalid)
	}
	minor := amount.Shift(int32(CurrencyScale(currency)))
	if !minor.Equal(minor.Truncate(0)) {
		return 0, fmt.Errorf("%w: amount precision is invalid", ErrConfigInvalid)
	}
	return minor.IntPart(), nil
}

// FromMinorAmount 最小币种单位转换为主币金额字符串
func FromMinorAmount(minor int64, currency string) string {
	scale := CurrencyScale(currency)
	return decimal.NewFromInt(minor).Shift(int32(-scale)).StringFixed(int32(scale))
}

// CurrencyScale 币种小数位
func CurrencyScale(currency string) int {
	upper := strings.ToUpper(strings.TrimSpace(currency))
	if _, ok := zeroDecimalCurrencies[upper]; ok {
		return 0
	}
	return 2
}

// ApplicationFee 按百分比计算平台抽成：round(amount * p / 100)，单位为最小币种单位
func ApplicationFee(amountMinor int64, percentage decimal.Decimal) int64 {
	if amountMinor <= 0 || percentage.LessThanOrEqual(decimal.Zero) {
		return 0
	}
	fee := decimal.NewFromInt(amountMinor).Mul(percentage).Div(decimal.NewFromInt(100)).Round(0)
	if fee.GreaterThan(decimal.NewFromInt(amountMinor)) {
		return amountMinor
	}
	return fee.IntPart()
}
