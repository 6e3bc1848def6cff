package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"hazard-reporter/internal/app"
	"hazard-reporter/internal/common/config"
	"hazard-reporter/internal/common/errors"
	"hazard-reporter/internal/common/logger"
	"hazard-reporter/internal/location"
)

// env is what every command runs against. It is built in the root's
// PersistentPreRunE and torn down in PersistentPostRun.
type env struct {
	configPath string
	logLevel   string
	debug      bool

	// newApp is replaced in tests.
	newApp func(ctx context.Context, cfg *config.Config, log logger.Logger, notifier location.Notifier) (*app.App, error)
	// loadConfig is replaced in tests.
	loadConfig func(path string) (*config.Config, error)

	app  *app.App
	errs *errors.ErrorHandler
}

func loadConfig(path string) (*config.Config, error) {
	if path != "" {
		return config.LoadFromFile(path)
	}
	return config.Load()
}

// Execute runs the hazardctl CLI. The assembled app is closed even when a
// command fails, so pending session writes are flushed.
func Execute(ctx context.Context) error {
	e := &env{newApp: app.New, loadConfig: loadConfig}
	defer e.close()
	return e.execute(ctx, newRootCmd(e))
}

func (e *env) execute(ctx context.Context, root *cobra.Command) error {
	cmd, err := root.ExecuteContextC(ctx)
	if cmd == nil {
		cmd = root
	}
	if err != nil && e.errs != nil {
		e.errs.Handle(cmd.CommandPath(), err)
	}
	return err
}

func (e *env) close() {
	if e.app != nil {
		e.app.Close()
		e.app = nil
	}
}

func newRootCmd(e *env) *cobra.Command {
	root := &cobra.Command{
		Use:   "hazardctl",
		Short: "Report and find hazards near you",
		Long:  "hazardctl signs you in, works out where you are and lets you report, find and vote on hazards.",
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := e.loadConfig(e.configPath)
			if err != nil {
				return err
			}
			if e.debug {
				cfg.Logging.Level = "debug"
			} else if e.logLevel != "" {
				cfg.Logging.Level = e.logLevel
			}
			log := logger.NewStructured(cfg.Logging.Level, cfg.Logging.Format, cfg.Logging.Output)
			e.errs = errors.NewErrorHandler(log)

			notices := cmd.ErrOrStderr()
			a, err := e.newApp(cmd.Context(), cfg, log, location.NotifierFunc(func(message string) {
				fmt.Fprintln(notices, message)
			}))
			if err != nil {
				return err
			}
			e.app = a
			return nil
		},
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			e.close()
		},
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	root.PersistentFlags().StringVar(&e.configPath, "config", "", "Config file (default: configs/config.yaml)")
	root.PersistentFlags().BoolVar(&e.debug, "debug", false, "Enable debug logging")
	root.PersistentFlags().StringVar(&e.logLevel, "log-level", "", "Log level (debug, info, warn, error)")

	root.AddCommand(
		newLocateCmd(e),
		newSearchCmd(e),
		newLoginCmd(e),
		newSignUpCmd(e),
		newLogoutCmd(e),
		newSessionCmd(e),
		newHazardsCmd(e),
	)
	return root
}

// UserMessage renders err for the terminal. Structured errors show their
// user-facing message.
func UserMessage(err error) string {
	if stdErr, ok := errors.AsStandardError(err); ok {
		return stdErr.Message
	}
	return err.Error()
}

func printJSON(w io.Writer, v interface{}) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal output: %w", err)
	}
	_, err = fmt.Fprintln(w, string(data))
	return err
}
