package data

import (
	"fmt"
	"strings"
)

// PayoutProvider identifies the external payment rail that moves the money.
type PayoutProvider string

const (
	PayoutProviderMTNMoMo      PayoutProvider = "mtn_momo"
	PayoutProviderVodafoneCash PayoutProvider = "vodafone_cash"
	PayoutProviderAirtelTigo   PayoutProvider = "airteltigo"
	PayoutProviderPaystack     PayoutProvider = "paystack"
)

// PayoutProviders returns a list of all supported payout providers.
func PayoutProviders() []PayoutProvider {
	return []PayoutProvider{PayoutProviderMTNMoMo, PayoutProviderVodafoneCash, PayoutProviderAirtelTigo, PayoutProviderPaystack}
}

// Validate validates the payout provider.
func (p PayoutProvider) Validate() error {
	switch PayoutProvider(strings.ToLower(string(p))) {
	case PayoutProviderMTNMoMo, PayoutProviderVodafoneCash, PayoutProviderAirtelTigo, PayoutProviderPaystack:
		return nil
	default:
		return fmt.Errorf("invalid payout provider: %s", p)
	}
}

// ToPayoutProvider converts a string to a PayoutProvider.
func ToPayoutProvider(s string) (PayoutProvider, error) {
	err := PayoutProvider(s).Validate()
	if err != nil {
		return "", err
	}
	return PayoutProvider(strings.ToLower(s)), nil
}
