package config

import (
	"fmt"
	"strings"

	"github.com/felixgeelhaar/plansmith/internal/errors"
	"github.com/felixgeelhaar/plansmith/internal/provider"
)

// ValidationError describes one invalid setting
type ValidationError struct {
	Field   string
	Value   any
	Message string
}

func (e ValidationError) String() string {
	return fmt.Sprintf("%s: %s (got %v)", e.Field, e.Message, e.Value)
}

var validLogLevels = []string{"debug", "info", "warn", "warning", "error"}

// Validate checks the whole configuration and reports every problem at once
func (c *Config) Validate() error {
	var errs []ValidationError
	errs = append(errs, c.validateBackend()...)
	errs = append(errs, c.validateLog()...)
	errs = append(errs, c.validateStore()...)
	errs = append(errs, c.validateServer()...)

	var msgs []string
	for _, e := range errs {
		msgs = append(msgs, e.String())
	}
	if err := c.Pipeline.Validate(); err != nil {
		msgs = append(msgs, "pipeline: "+describe(err))
	}
	if err := c.Telemetry.Validate(); err != nil {
		msgs = append(msgs, "telemetry: "+err.Error())
	}

	if len(msgs) == 0 {
		return nil
	}
	return errors.New(errors.ErrCodeConfigInvalid, "invalid configuration: "+strings.Join(msgs, "; ")).
		WithSuggestion("Check plansmith.yaml and PLANSMITH_* environment variables")
}

func describe(err error) string {
	if pe, ok := err.(*errors.PlanError); ok {
		return pe.Message
	}
	return err.Error()
}

func (c *Config) validateBackend() []ValidationError {
	var errs []ValidationError
	switch c.Backend.Name {
	case BackendHeuristic:
	case BackendLLM:
		if err := provider.ValidateProvidersConfig(c.ProvidersConfig()); err != nil {
			errs = append(errs, ValidationError{Field: "providers", Value: len(c.Providers), Message: describe(err)})
		}
		if name := c.Backend.Provider; name != "" && !c.hasProvider(name) {
			errs = append(errs, ValidationError{Field: "backend.provider", Value: name, Message: "no enabled provider with this name"})
		}
	default:
		errs = append(errs, ValidationError{
			Field:   "backend.name",
			Value:   c.Backend.Name,
			Message: "must be heuristic or llm",
		})
	}
	if c.Backend.MaxTokens < 0 {
		errs = append(errs, ValidationError{Field: "backend.max_tokens", Value: c.Backend.MaxTokens, Message: "must not be negative"})
	}
	return errs
}

func (c *Config) hasProvider(name string) bool {
	for _, p := range c.Providers {
		if p.Name == name && p.Enabled {
			return true
		}
	}
	return false
}

func (c *Config) validateLog() []ValidationError {
	var errs []ValidationError
	level := strings.ToLower(c.Log.Level)
	valid := false
	for _, l := range validLogLevels {
		if level == l {
			valid = true
		}
	}
	if !valid {
		errs = append(errs, ValidationError{Field: "log.level", Value: c.Log.Level, Message: "must be debug, info, warn or error"})
	}
	switch strings.ToLower(c.Log.Format) {
	case "text", "json":
	default:
		errs = append(errs, ValidationError{Field: "log.format", Value: c.Log.Format, Message: "must be text or json"})
	}
	return errs
}

func (c *Config) validateStore() []ValidationError {
	if strings.TrimSpace(c.Store.Path) == "" {
		return []ValidationError{{Field: "store.path", Value: c.Store.Path, Message: "must not be empty"}}
	}
	return nil
}

func (c *Config) validateServer() []ValidationError {
	var errs []ValidationError
	if c.Server.Addr == "" {
		errs = append(errs, ValidationError{Field: "server.addr", Value: c.Server.Addr, Message: "must not be empty"})
	}
	if c.Server.ReadTimeout < 0 || c.Server.WriteTimeout < 0 || c.Server.ShutdownTimeout < 0 {
		errs = append(errs, ValidationError{Field: "server", Value: "timeouts", Message: "timeouts must not be negative"})
	}
	return errs
}
