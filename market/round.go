package market

import "github.com/shopspring/decimal"

// Round 按银行家舍入（half-even）保留 places 位小数。
func Round(v float64, places int32) float64 {
	return decimal.NewFromFloat(v).RoundBank(places).InexactFloat64()
}
