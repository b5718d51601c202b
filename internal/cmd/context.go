package cmd

import (
	"context"
	"time"

	"github.com/spf13/cobra"

	"github.com/felixgeelhaar/plansmith/internal/config"
	"github.com/felixgeelhaar/plansmith/internal/log"
	"github.com/felixgeelhaar/plansmith/internal/telemetry"
	"github.com/felixgeelhaar/plansmith/internal/version"
)

// CommandContext holds what every command needs: the resolved
// configuration and a logger. Global flags override the file and
// environment values.
type CommandContext struct {
	Config *config.Config
	Logger *log.Logger

	shutdownTracing func(context.Context) error
}

type commandContextKey struct{}

// newCommandContext loads configuration, applies global flags and starts
// tracing. The context is stored on the command so that the root post-run
// hook can flush traces.
func newCommandContext(cmd *cobra.Command) (*CommandContext, error) {
	path, _ := cmd.Flags().GetString(flagConfig)
	cfg, err := config.Load(path)
	if err != nil {
		return nil, err
	}

	overrides := []struct {
		flag   string
		target *string
	}{
		{flagLogLevel, &cfg.Log.Level},
		{flagLogFormat, &cfg.Log.Format},
		{flagBackend, &cfg.Backend.Name},
		{flagProvider, &cfg.Backend.Provider},
	}
	changed := false
	for _, o := range overrides {
		if cmd.Flags().Changed(o.flag) {
			*o.target, _ = cmd.Flags().GetString(o.flag)
			changed = true
		}
	}
	if changed {
		if err := cfg.Validate(); err != nil {
			return nil, err
		}
	}

	if cfg.Telemetry.ServiceVersion == "" || cfg.Telemetry.ServiceVersion == "dev" {
		cfg.Telemetry.ServiceVersion = version.Short()
	}

	lc := cfg.LoggerConfig()
	lc.Output = cmd.ErrOrStderr()
	logger := log.New(lc)
	log.SetDefaultLogger(logger)

	shutdown, err := telemetry.InitProvider(cmd.Context(), cfg.Telemetry)
	if err != nil {
		return nil, err
	}

	cc := &CommandContext{Config: cfg, Logger: logger, shutdownTracing: shutdown}
	cmd.SetContext(context.WithValue(cmd.Context(), commandContextKey{}, cc))
	return cc, nil
}

// closeCommandContext flushes traces of the command, if it created a context
func closeCommandContext(cmd *cobra.Command) error {
	ctx := cmd.Context()
	if ctx == nil {
		return nil
	}
	cc, ok := ctx.Value(commandContextKey{}).(*CommandContext)
	if !ok || cc.shutdownTracing == nil {
		return nil
	}
	flushCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
	defer cancel()
	return cc.shutdownTracing(flushCtx)
}
