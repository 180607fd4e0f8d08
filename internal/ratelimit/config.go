// internal/ratelimit/config.go
package ratelimit

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Rule configures one endpoint's limit.
type Rule struct {
	MaxRequests   int `yaml:"max_requests"`
	WindowSeconds int `yaml:"window_seconds"`
}

func (r Rule) Window() time.Duration {
	return time.Duration(r.WindowSeconds) * time.Second
}

// Config holds the per-endpoint limits.
type Config struct {
	OTPSend    Rule `yaml:"otp_send"`
	OTPVerify  Rule `yaml:"otp_verify"`
	Exchange   Rule `yaml:"exchange"`
	LoginBonus Rule `yaml:"login_bonus"`
}

// DefaultConfig mirrors the limits observed in production.
func DefaultConfig() Config {
	return Config{
		OTPSend:    Rule{MaxRequests: 3, WindowSeconds: 300},
		OTPVerify:  Rule{MaxRequests: 5, WindowSeconds: 300},
		Exchange:   Rule{MaxRequests: 5, WindowSeconds: 60},
		LoginBonus: Rule{MaxRequests: 3, WindowSeconds: 60},
	}
}

// LoadConfig reads limits from a YAML file, falling back to defaults
// for any rule the file leaves unset.
func LoadConfig(path string) (Config, error) {
	cfg := DefaultConfig()
	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("read rate limit config: %w", err)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("parse rate limit config: %w", err)
	}
	return cfg, nil
}

// NewFromRule builds a limiter for one rule.
func NewFromRule(r Rule) *SlidingWindow {
	return New(r.MaxRequests, r.Window())
}
