package models

import "github.com/shopspring/decimal"

// ToMinorUnits переводит сумму в основных единицах в минорные (копейки, центы)
// с округлением до ближайшей минорной единицы (половина - вверх).
func ToMinorUnits(major decimal.Decimal) int64 {
	return major.Shift(2).Round(0).IntPart()
}

// ToMajorUnits переводит минорные единицы в основные.
func ToMajorUnits(minor int64) decimal.Decimal {
	return decimal.New(minor, -2)
}
