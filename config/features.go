package config

import (
	"context"

	"github.com/goliatone/go-featuregate/gate"
)

// Gate returns a gate.FeatureGate backed by the features section.
func (f Features) Gate() gate.FeatureGate {
	return staticGate{
		gate.FeatureUsersSignup: f.SignupEnabled,
	}
}

type staticGate map[string]bool

// Enabled reports unknown keys as enabled.
func (s staticGate) Enabled(ctx context.Context, key string, opts ...gate.ResolveOption) (bool, error) {
	enabled, ok := s[key]
	if !ok {
		return true, nil
	}
	return enabled, nil
}
