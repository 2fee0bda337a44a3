package cli

import (
	"context"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/rshade/tcocalc/internal/config"
	"github.com/rshade/tcocalc/internal/logging"
)

// commandLoggingConfig returns the logging section with the --debug override
// applied. Debug output always goes to the terminal.
func commandLoggingConfig(cmd *cobra.Command) config.LoggingConfig {
	lc := config.GetLoggingConfig()
	if debug, _ := cmd.Flags().GetBool("debug"); debug {
		lc.Level = "debug"
		lc.Format = "console"
		lc.File = ""
	}
	return lc
}

// setupLogging builds the CLI logger and stores it, a trace id and the audit
// logger in the command context. Every engine call made by the command logs
// and audits under that trace id.
func setupLogging(cmd *cobra.Command) logging.LogPathResult {
	lc := commandLoggingConfig(cmd)
	stderr := cmd.ErrOrStderr()

	if lc.File != "" {
		if err := config.EnsureLogDir(); err != nil {
			_, _ = fmt.Fprintf(stderr, "Warning: could not create log directory: %v\n", err)
		}
	}

	result := logging.NewLoggerWithPath(lc.ToLoggingConfig())
	logger = logging.ComponentLogger(result.Logger, "cli")
	reportLogDestination(stderr, result)

	ctx := commandContext(cmd.Context(), lc)
	cmd.SetContext(ctx)

	logger.Debug().Ctx(ctx).
		Str("command", cmd.CommandPath()).
		Str("api_url", config.GetGlobalConfig().API.BaseURL).
		Str("trace_id", logging.TraceIDFromContext(ctx)).
		Msg("command started")

	return result
}

func commandContext(parent context.Context, lc config.LoggingConfig) context.Context {
	ctx := logging.ContextWithTraceID(parent, logging.GetOrGenerateTraceID(parent))
	ctx = logger.WithContext(ctx)
	audit := logging.NewAuditLogger(logging.AuditLoggerConfig{
		Enabled: lc.Audit.Enabled,
		File:    lc.Audit.File,
	})
	return logging.ContextWithAuditLogger(ctx, audit)
}

func reportLogDestination(w io.Writer, result logging.LogPathResult) {
	switch {
	case result.UsingFile:
		logging.PrintLogPathMessage(w, result.FilePath)
	case result.FallbackUsed:
		logging.PrintFallbackWarning(w, result.FallbackReason)
	}
}

// cleanupLogging closes the audit logger, then the log file.
func cleanupLogging(cmd *cobra.Command, logResult *logging.LogPathResult) error {
	if err := logging.AuditLoggerFromContext(cmd.Context()).Close(); err != nil {
		return fmt.Errorf("closing audit log: %w", err)
	}
	if logResult == nil {
		return nil
	}
	return logResult.Close()
}
