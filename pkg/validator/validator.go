// Package validator holds named field validators shared by the services.
package validator

import (
	"fmt"
	"net/mail"
	"net/url"
	"regexp"
	"strings"
	"sync"
)

// ValidatorFunc checks one value. Empty strings pass; required checks are the
// caller's job.
type ValidatorFunc func(value string, config map[string]any) error

// Registry holds registered validators
type Registry struct {
	validators map[string]ValidatorFunc
	mu         sync.RWMutex
}

var (
	defaultRegistry *Registry
	once            sync.Once

	nonDigits = regexp.MustCompile(`[^\d]`)
)

// GetRegistry returns the singleton validator registry
func GetRegistry() *Registry {
	once.Do(func() {
		defaultRegistry = NewRegistry()
	})
	return defaultRegistry
}

// NewRegistry returns a registry with the built-in validators.
func NewRegistry() *Registry {
	r := &Registry{validators: make(map[string]ValidatorFunc)}
	r.registerBuiltins()
	return r
}

// Register adds a validator to the registry
func (r *Registry) Register(name string, fn ValidatorFunc) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.validators[name] = fn
}

// Get returns a validator by name
func (r *Registry) Get(name string) (ValidatorFunc, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	fn, ok := r.validators[name]
	return fn, ok
}

// Validate runs a named validator
func (r *Registry) Validate(name, value string, config map[string]any) error {
	fn, ok := r.Get(name)
	if !ok {
		return fmt.Errorf("validator '%s' not found", name)
	}
	return fn(value, config)
}

// Validate runs a named validator from the default registry.
func Validate(name, value string) error {
	return GetRegistry().Validate(name, value, nil)
}

// ValidateWith runs a named validator from the default registry with config.
func ValidateWith(name, value string, config map[string]any) error {
	return GetRegistry().Validate(name, value, config)
}

func (r *Registry) registerBuiltins() {
	r.Register("email", func(value string, _ map[string]any) error {
		if value == "" {
			return nil
		}
		addr, err := mail.ParseAddress(value)
		if err != nil || addr.Address != value {
			return fmt.Errorf("invalid email address")
		}
		return nil
	})

	// Absolute http(s) URL, as used for webhook targets.
	r.Register("url", func(value string, _ map[string]any) error {
		if value == "" {
			return nil
		}
		u, err := url.Parse(strings.TrimSpace(value))
		if err != nil || u.Host == "" {
			return fmt.Errorf("must be an absolute URL")
		}
		if u.Scheme != "http" && u.Scheme != "https" {
			return fmt.Errorf("scheme must be http or https")
		}
		return nil
	})

	// Allow digits, spaces, dashes, parentheses, and plus
	r.Register("phone", func(value string, _ map[string]any) error {
		if value == "" {
			return nil
		}
		digits := nonDigits.ReplaceAllString(value, "")
		if len(digits) < 7 || len(digits) > 15 {
			return fmt.Errorf("phone number must have 7-15 digits")
		}
		if strings.Trim(value, "0123456789 -()+.") != "" {
			return fmt.Errorf("phone number contains invalid characters")
		}
		return nil
	})

	r.Register("length", func(value string, config map[string]any) error {
		n := len([]rune(value))
		if min, ok := config["min"].(int); ok && n < min {
			return fmt.Errorf("must be at least %d characters", min)
		}
		if max, ok := config["max"].(int); ok && n > max {
			return fmt.Errorf("must be at most %d characters", max)
		}
		return nil
	})
}
