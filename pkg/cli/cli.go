package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/telekom/autofix-notifier/pkg/config"
	"github.com/telekom/autofix-notifier/pkg/system"
)

// Options configures the root command.
type Options struct {
	ConfigPath   string
	Debug        bool
	OutputWriter io.Writer
	InputReader  io.Reader
}

// DefaultOptions reads defaults from the environment.
func DefaultOptions() Options {
	return Options{
		ConfigPath:   getEnvString(config.ConfigPathEnv, ""),
		Debug:        getEnvBool("AUTOFIX_NOTIFIER_DEBUG", false),
		OutputWriter: os.Stdout,
		InputReader:  os.Stdin,
	}
}

type runtimeState struct {
	configPath string
	debug      bool
	cfg        config.Config
	logger     *zap.Logger
	writer     io.Writer
	reader     io.Reader
}

type runtimeKey struct{}

func NewRootCommand(opts Options) *cobra.Command {
	rt := &runtimeState{
		configPath: opts.ConfigPath,
		debug:      opts.Debug,
		writer:     opts.OutputWriter,
		reader:     opts.InputReader,
	}

	root := &cobra.Command{
		Use:           "autofix-notifier",
		Short:         "Autofix email notification dispatcher",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			if rt.writer == nil {
				rt.writer = cmd.OutOrStdout()
			}
			if rt.reader == nil {
				rt.reader = cmd.InOrStdin()
			}
			if cmd.Name() == "version" {
				return nil
			}

			logger, err := system.NewLogger(rt.debug)
			if err != nil {
				return fmt.Errorf("failed to build logger: %w", err)
			}
			rt.logger = logger

			cfg, err := config.Load(rt.configPath)
			if err != nil {
				return err
			}
			rt.cfg = cfg
			return nil
		},
		PersistentPostRun: func(*cobra.Command, []string) {
			if rt.logger != nil {
				_ = rt.logger.Sync()
			}
		},
	}

	root.PersistentFlags().StringVar(&rt.configPath, "config", rt.configPath, "Path to the notifier configuration file")
	root.PersistentFlags().BoolVar(&rt.debug, "debug", rt.debug, "Enable debug level logging")

	root.SetContext(context.WithValue(context.Background(), runtimeKey{}, rt))

	root.AddCommand(
		NewServeCommand(),
		NewSendCommand(),
		NewRenderCommand(),
		NewVersionCommand(),
	)

	return root
}

// Execute runs the command tree for args with the environment defaults.
func Execute(ctx context.Context, args []string) error {
	root := NewRootCommand(DefaultOptions())
	root.SetArgs(args)
	rt, _ := root.Context().Value(runtimeKey{}).(*runtimeState)
	return root.ExecuteContext(context.WithValue(ctx, runtimeKey{}, rt))
}

func getRuntime(cmd *cobra.Command) (*runtimeState, error) {
	rt, ok := cmd.Context().Value(runtimeKey{}).(*runtimeState)
	if !ok || rt == nil {
		return nil, errors.New("runtime not initialized")
	}
	return rt, nil
}

func (c *runtimeState) Print(log *zap.SugaredLogger) {
	log.Infow("Notifier configuration",
		"config_path", c.configPath,
		"debug", c.debug,
		"listen_address", c.cfg.Server.ListenAddress,
		"tls", c.cfg.Server.TLSCertFile != "",
		"rate_limit", c.cfg.Server.RateLimit.Rate,
		"rate_burst", c.cfg.Server.RateLimit.Burst,
		"mail_delivery", c.cfg.Mail.Delivery,
		"mail_template_dir", c.cfg.Mail.TemplateDir,
		"common_fix_fire_and_forget", c.cfg.Mail.CommonFixFireAndForget,
		"audit_kafka_brokers", c.cfg.Audit.Kafka.Brokers,
		"audit_kafka_topic", c.cfg.Audit.Kafka.Topic,
		"properties", len(c.cfg.Properties),
	)
}

// getEnvString returns the value of an environment variable, or the provided default if not set.
func getEnvString(key, defaultVal string) string {
	if val, ok := os.LookupEnv(key); ok {
		return val
	}
	return defaultVal
}

// getEnvBool returns the value of an environment variable as a bool, or the provided default if not set.
// Valid true values are "true", "1", "yes" (case-insensitive).
func getEnvBool(key string, defaultVal bool) bool {
	if val, ok := os.LookupEnv(key); ok {
		switch strings.ToLower(val) {
		case "true", "1", "yes":
			return true
		case "false", "0", "no":
			return false
		}
	}
	return defaultVal
}
