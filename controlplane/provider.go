package controlplane

import (
	"context"
	"sync"

	"github.com/aponysus/hostkit/policy"
)

// PolicyProvider supplies an EffectivePolicy for a PolicyKey.
type PolicyProvider interface {
	// GetEffectivePolicy returns the normalized policy for key.
	GetEffectivePolicy(ctx context.Context, key policy.PolicyKey) (policy.EffectivePolicy, error)
}

// StaticProvider is an in-process PolicyProvider backed by a map and an optional default.
// Set and the lookups may be used concurrently.
type StaticProvider struct {
	mu       sync.RWMutex
	Policies map[policy.PolicyKey]policy.EffectivePolicy
	Default  policy.EffectivePolicy
}

// NewStaticProvider returns a provider whose fallback is def.
func NewStaticProvider(def policy.EffectivePolicy) *StaticProvider {
	return &StaticProvider{
		Policies: make(map[policy.PolicyKey]policy.EffectivePolicy),
		Default:  def,
	}
}

// Set registers pol under key, replacing any earlier entry.
func (p *StaticProvider) Set(key policy.PolicyKey, pol policy.EffectivePolicy) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.Policies == nil {
		p.Policies = make(map[policy.PolicyKey]policy.EffectivePolicy)
	}
	p.Policies[key] = pol
}

func (p *StaticProvider) GetEffectivePolicy(_ context.Context, key policy.PolicyKey) (policy.EffectivePolicy, error) {
	if p == nil {
		return policy.DefaultPolicyFor(key).Normalize()
	}

	p.mu.RLock()
	pol, ok := p.Policies[key]
	def := p.Default
	p.mu.RUnlock()

	if !ok {
		if def.IsZero() {
			return policy.DefaultPolicyFor(key).Normalize()
		}
		pol = def
	}

	pol.Key = key
	if pol.Meta.Source == "" || pol.Meta.Source == policy.PolicySourceUnknown {
		pol.Meta.Source = policy.PolicySourceStatic
	}
	return pol.Normalize()
}
