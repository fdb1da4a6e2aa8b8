package engine

import (
	"github.com/shopspring/decimal"

	"github.com/kelmah-platform/kelmah-payout-service/internal/data"
)

// Processing fee rates per rail. Mobile-money cashouts cost more than processor transfers, mirroring what the rails
// charge the platform.
var feeRates = map[data.PayoutProvider]decimal.Decimal{
	data.PayoutProviderMTNMoMo:      decimal.NewFromFloat(0.015),
	data.PayoutProviderVodafoneCash: decimal.NewFromFloat(0.015),
	data.PayoutProviderAirtelTigo:   decimal.NewFromFloat(0.015),
	data.PayoutProviderPaystack:     decimal.NewFromFloat(0.01),
}

// FeeRate returns the processing fee rate for the given provider.
func FeeRate(p data.PayoutProvider) decimal.Decimal {
	if rate, ok := feeRates[p]; ok {
		return rate
	}
	return decimal.Zero
}

// calculateFeeMinor returns the processing fee in currency minor units, rounded half-up to a whole minor unit.
func calculateFeeMinor(amountMinor int64, p data.PayoutProvider) int64 {
	fee := decimal.New(amountMinor, 0).Mul(FeeRate(p)).Round(0)
	return fee.IntPart()
}
