package config

import (
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
	"github.com/stretchr/testify/assert"
)

// Invalid or missing routing parameters must fall back to defaults so a
// partially filled config file never disables the routing engine.
func TestProperty_RoutingDefaultsFallback(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 100

	properties := gopter.NewProperties(parameters)

	properties.Property("non-positive hop limit falls back to 5", prop.ForAll(
		func(hops int) bool {
			cfg := &Config{}
			cfg.Routing.MaxRedirectHops = hops
			applyDefaults(cfg)
			return cfg.Routing.MaxRedirectHops == 5
		},
		gen.IntRange(-1000, 0),
	))

	properties.Property("out-of-range overload threshold falls back to 0.9", prop.ForAll(
		func(t float64) bool {
			cfg := &Config{}
			cfg.Routing.OverloadThreshold = t
			applyDefaults(cfg)
			return cfg.Routing.OverloadThreshold == 0.9
		},
		gen.OneConstOf(-0.5, 0.0, 1.5, 100.0),
	))

	properties.Property("thresholds always end up ordered after defaults", prop.ForAll(
		func(overload, release float64) bool {
			cfg := &Config{}
			cfg.Routing.OverloadThreshold = overload
			cfg.Routing.ReleaseThreshold = release
			applyDefaults(cfg)
			if err := validate(cfg); err != nil {
				// Rejected configs are fine, they never reach GlobalConfig.
				return cfg.Routing.ReleaseThreshold >= cfg.Routing.OverloadThreshold
			}
			return cfg.Routing.ReleaseThreshold < cfg.Routing.OverloadThreshold
		},
		gen.Float64Range(-1, 2),
		gen.Float64Range(-1, 2),
	))

	properties.TestingRun(t)
}

func TestApplyDefaults_ZeroConfig(t *testing.T) {
	cfg := &Config{}
	applyDefaults(cfg)

	assert.Equal(t, 5, cfg.Routing.MaxRedirectHops)
	assert.Equal(t, 0.9, cfg.Routing.OverloadThreshold)
	assert.Equal(t, 0.6, cfg.Routing.ReleaseThreshold)
	assert.Equal(t, 60, cfg.Routing.RebalanceInterval)
	assert.Equal(t, 10, cfg.Queue.Concurrency)
	assert.NoError(t, validate(cfg))
}
