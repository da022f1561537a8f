package model

import "github.com/shopspring/decimal"

var hundred = decimal.NewFromInt(100)

// 金額は小数2桁で保持する
func RoundMoney(d decimal.Decimal) decimal.Decimal {
	return d.Round(2)
}

// round(amount * 100)
func MinorUnits(d decimal.Decimal) int64 {
	return d.Mul(hundred).Round(0).IntPart()
}

func FromMinorUnits(minor int64) decimal.Decimal {
	return decimal.New(minor, -2)
}
