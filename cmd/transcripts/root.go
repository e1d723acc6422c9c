package main

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/spf13/cobra"

	"github.com/therealutkarshpriyadarshi/sourcing/internal/config"
	"github.com/therealutkarshpriyadarshi/sourcing/internal/logging"
	"github.com/therealutkarshpriyadarshi/sourcing/internal/sourcing"
	"github.com/therealutkarshpriyadarshi/sourcing/internal/tracing"
	"github.com/therealutkarshpriyadarshi/sourcing/internal/transcript"
)

// commandContext carries lazily loaded configuration shared by subcommands
type commandContext struct {
	configFlag string
	tokenFlag  string
	verbose    bool

	cfg    *config.Config
	logger *logging.Logger
	tracer io.Closer

	newAPI func(cfg *config.Config, logger *logging.Logger) transcript.API
}

func newCommandContext() *commandContext {
	c := &commandContext{}
	c.newAPI = func(cfg *config.Config, logger *logging.Logger) transcript.API {
		var opts []sourcing.Option
		if c.tokenFlag != "" {
			opts = append(opts, sourcing.WithAuthToken(c.tokenFlag))
		}
		return sourcing.NewClient(cfg.Client, logger, opts...)
	}
	return c
}

func (c *commandContext) ensureConfig() (*config.Config, error) {
	if c.cfg != nil {
		return c.cfg, nil
	}

	path := c.configFlag
	if path == "" {
		path = "config.yaml"
	}
	cfg, err := config.LoadOrDefault(path)
	if err != nil {
		return nil, err
	}
	c.cfg = cfg
	return cfg, nil
}

func (c *commandContext) ensureLogger() (*logging.Logger, error) {
	if c.logger != nil {
		return c.logger, nil
	}

	cfg, err := c.ensureConfig()
	if err != nil {
		return nil, err
	}

	level := cfg.Logging.Level
	if c.verbose {
		level = "debug"
	}
	// stdout carries command output
	output := cfg.Logging.Output
	if output == "" || output == "stdout" {
		output = "stderr"
	}

	logger, err := logging.NewLogger(logging.Config{
		Level:      level,
		Format:     "console",
		Output:     output,
		TimeFormat: time.RFC3339,
		Service:    "transcripts",
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create logger: %w", err)
	}
	c.logger = logger
	return logger, nil
}

// openEditor reads the content record and its transcript catalog
func (c *commandContext) openEditor(ctx context.Context, cmd *cobra.Command, contentID string) (*transcript.Editor, error) {
	cfg, err := c.ensureConfig()
	if err != nil {
		return nil, err
	}
	logger, err := c.ensureLogger()
	if err != nil {
		return nil, err
	}

	editor := transcript.NewEditor(
		c.newAPI(cfg, logger),
		contentRef(contentID),
		transcript.WithLogger(logger),
		transcript.WithNotifier(newWriterNotifier(cmd.ErrOrStderr())),
		transcript.WithValidator(transcript.NewRulesValidator(cfg.Transcripts.AllowedExtensions, cfg.Transcripts.MaxFileSize)),
	)
	if err := editor.Open(ctx); err != nil {
		return nil, err
	}
	return editor, nil
}

func newRootCommand() *cobra.Command {
	return newRootCommandWithContext(newCommandContext())
}

func newRootCommandWithContext(ctx *commandContext) *cobra.Command {
	rootCmd := &cobra.Command{
		Use:           "transcripts",
		Short:         "Manage content transcripts",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			closer, err := tracing.Init(cfg.Tracing)
			if err != nil {
				return fmt.Errorf("failed to initialize tracing: %w", err)
			}
			ctx.tracer = closer
			return nil
		},
		PersistentPostRunE: func(cmd *cobra.Command, args []string) error {
			if ctx.logger != nil {
				ctx.logger.Close()
			}
			if ctx.tracer != nil {
				return ctx.tracer.Close()
			}
			return nil
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmd.Help()
		},
	}

	rootCmd.PersistentFlags().StringVarP(&ctx.configFlag, "config", "c", "", "Configuration file path")
	rootCmd.PersistentFlags().StringVar(&ctx.tokenFlag, "token", "", "Bearer token for the content service (overrides client.authToken)")
	rootCmd.PersistentFlags().BoolVarP(&ctx.verbose, "verbose", "v", false, "Enable debug logging")

	rootCmd.AddCommand(newShowCommand(ctx))
	rootCmd.AddCommand(newDownloadCommand(ctx))
	rootCmd.AddCommand(newLanguagesCommand())
	rootCmd.AddCommand(newCommitCommand(ctx))
	rootCmd.AddCommand(newWatchCommand(ctx))
	rootCmd.AddCommand(newTokenCommand(ctx))

	return rootCmd
}

// writerNotifier prints user-facing editor messages
type writerNotifier struct {
	w io.Writer
}

func newWriterNotifier(w io.Writer) *writerNotifier {
	return &writerNotifier{w: w}
}

func (n *writerNotifier) Warn(msg string) {
	fmt.Fprintf(n.w, "warning: %s\n", msg)
}

func (n *writerNotifier) Error(msg string) {
	fmt.Fprintf(n.w, "error: %s\n", msg)
}
