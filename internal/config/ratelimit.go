package config

import (
	"fmt"
	"time"
)

// Policy is a fixed-window budget: at most Max attempts per Window.
type Policy struct {
	Max    int
	Window time.Duration
}

// RateLimitConfig holds the three budgets applied by the auth flows.
// Registration is throttled per client IP; login is throttled per client IP
// and, independently, per normalized email address.
type RateLimitConfig struct {
	Enabled bool `envconfig:"ENABLED" default:"true"`

	RegisterMax    int           `envconfig:"REGISTER_MAX" default:"5"`
	RegisterWindow time.Duration `envconfig:"REGISTER_WINDOW" default:"1h"`

	LoginIPMax    int           `envconfig:"LOGIN_IP_MAX" default:"10"`
	LoginIPWindow time.Duration `envconfig:"LOGIN_IP_WINDOW" default:"15m"`

	LoginEmailMax    int           `envconfig:"LOGIN_EMAIL_MAX" default:"5"`
	LoginEmailWindow time.Duration `envconfig:"LOGIN_EMAIL_WINDOW" default:"15m"`

	SweepInterval time.Duration `envconfig:"SWEEP_INTERVAL" default:"1m"`
}

// Register returns the per-IP registration budget.
func (r RateLimitConfig) Register() Policy {
	return Policy{Max: r.RegisterMax, Window: r.RegisterWindow}
}

// LoginIP returns the per-IP login budget.
func (r RateLimitConfig) LoginIP() Policy {
	return Policy{Max: r.LoginIPMax, Window: r.LoginIPWindow}
}

// LoginEmail returns the per-email login budget.
func (r RateLimitConfig) LoginEmail() Policy {
	return Policy{Max: r.LoginEmailMax, Window: r.LoginEmailWindow}
}

func (r RateLimitConfig) validate() error {
	for name, p := range map[string]Policy{
		"register":    r.Register(),
		"login ip":    r.LoginIP(),
		"login email": r.LoginEmail(),
	} {
		if p.Max < 1 {
			return fmt.Errorf("rate limit %s: max must be >= 1", name)
		}
		if p.Window <= 0 {
			return fmt.Errorf("rate limit %s: window must be positive", name)
		}
	}
	if r.SweepInterval <= 0 {
		return fmt.Errorf("rate limit sweep interval must be positive")
	}
	return nil
}
