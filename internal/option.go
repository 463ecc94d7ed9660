package internal

import (
	"github.com/starford/chainval/internal/validation"
)

// Option is a functional option for configuring the application.
type Option func(*application)

type application struct {
	config  *Config
	rules   []validation.Descriptor
	version string
}

// WithConfig sets the application configuration.
func WithConfig(cfg *Config) Option {
	return func(a *application) {
		a.config = cfg
	}
}

// WithRules sets the rule descriptors. Without it the rules are loaded from
// the configured rules path.
func WithRules(rules []validation.Descriptor) Option {
	return func(a *application) {
		a.rules = rules
	}
}

// WithVersion sets the version reported by the server.
func WithVersion(v string) Option {
	return func(a *application) {
		a.version = v
	}
}
