package provider

import (
	"fmt"

	"github.com/kelmah-platform/kelmah-payout-service/internal/data"
)

// Registry is the lookup table of rail dispatchers, keyed by provider. Adding a provider means registering one more
// Dispatcher; the queue engine never branches on provider names.
type Registry struct {
	dispatchers map[data.PayoutProvider]Dispatcher
}

func NewRegistry(dispatchers ...Dispatcher) *Registry {
	r := &Registry{dispatchers: make(map[data.PayoutProvider]Dispatcher, len(dispatchers))}
	for _, d := range dispatchers {
		r.dispatchers[d.Provider()] = d
	}
	return r
}

// ForProvider returns the dispatcher registered for the given provider.
func (r *Registry) ForProvider(p data.PayoutProvider) (Dispatcher, error) {
	dispatcher, ok := r.dispatchers[p]
	if !ok {
		return nil, fmt.Errorf("no dispatcher registered for provider %q", p)
	}
	return dispatcher, nil
}

// Providers returns the providers with a registered dispatcher.
func (r *Registry) Providers() []data.PayoutProvider {
	providers := make([]data.PayoutProvider, 0, len(r.dispatchers))
	for _, p := range data.PayoutProviders() {
		if _, ok := r.dispatchers[p]; ok {
			providers = append(providers, p)
		}
	}
	return providers
}
