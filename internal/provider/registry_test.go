package provider

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kelmah-platform/kelmah-payout-service/internal/data"
)

func Test_Registry(t *testing.T) {
	mtnDispatcher := &MockDispatcher{ProviderName: data.PayoutProviderMTNMoMo}
	paystackDispatcher := &MockDispatcher{ProviderName: data.PayoutProviderPaystack}
	registry := NewRegistry(mtnDispatcher, paystackDispatcher)

	t.Run("ForProvider returns the registered dispatcher", func(t *testing.T) {
		dispatcher, err := registry.ForProvider(data.PayoutProviderMTNMoMo)
		require.NoError(t, err)
		assert.Same(t, mtnDispatcher, dispatcher)
	})

	t.Run("ForProvider errors on an unregistered provider", func(t *testing.T) {
		_, err := registry.ForProvider(data.PayoutProviderVodafoneCash)
		assert.ErrorContains(t, err, `no dispatcher registered for provider "vodafone_cash"`)
	})

	t.Run("Providers lists registered providers in canonical order", func(t *testing.T) {
		assert.Equal(t, []data.PayoutProvider{data.PayoutProviderMTNMoMo, data.PayoutProviderPaystack}, registry.Providers())
	})
}
