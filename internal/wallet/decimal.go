package wallet

import (
	"math"

	"github.com/shopspring/decimal"
)

// DustQuantity 以下的持仓视为已清空。
const DustQuantity = 1e-6

var decDust = decimal.NewFromFloat(DustQuantity)

func decFromFloat(val float64) decimal.Decimal {
	if math.IsNaN(val) || math.IsInf(val, 0) {
		return decimal.Zero
	}
	return decimal.NewFromFloat(val)
}

func decToFloat(val decimal.Decimal) float64 {
	f, _ := val.Float64()
	return f
}
