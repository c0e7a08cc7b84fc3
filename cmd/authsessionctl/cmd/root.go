package cmd

import (
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/phsym/console-slog"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/MrEthical07/authsession"
)

// Execute runs the CLI and exits non-zero on failure.
func Execute() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

type rootOptions struct {
	v        *viper.Viper
	envFiles []string
	verbose  bool
	logger   *slog.Logger
}

func newRootCmd() *cobra.Command {
	opts := &rootOptions{v: viper.New()}

	rootCmd := &cobra.Command{
		Use:           "authsessionctl",
		Short:         "Operate the 3-D Secure authentication session store",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			level := slog.LevelInfo
			if opts.verbose {
				level = slog.LevelDebug
			}
			if opts.v.GetBool("pretty_logs") {
				opts.logger = slog.New(console.NewHandler(cmd.ErrOrStderr(), &console.HandlerOptions{Level: level}))
			} else {
				opts.logger = slog.New(slog.NewTextHandler(cmd.ErrOrStderr(), &slog.HandlerOptions{Level: level}))
			}
			return nil
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmd.Help()
		},
	}

	opts.v.SetEnvPrefix("AUTHSESSION")
	opts.v.AutomaticEnv()

	flags := rootCmd.PersistentFlags()
	flags.StringSliceVarP(&opts.envFiles, "env-file", "e", nil, "dotenv files to load before reading AUTHSESSION_* variables")
	flags.BoolVarP(&opts.verbose, "verbose", "v", false, "verbose output")
	flags.String("backend", "", "storage backend: memory, redis, valkey or supabase")
	flags.String("redis-addr", "", "redis address")
	flags.String("valkey-addr", "", "valkey address")
	flags.Bool("pretty-logs", true, "colored console logs")
	_ = opts.v.BindPFlag("backend", flags.Lookup("backend"))
	_ = opts.v.BindPFlag("redis_addr", flags.Lookup("redis-addr"))
	_ = opts.v.BindPFlag("valkey_addr", flags.Lookup("valkey-addr"))
	_ = opts.v.BindPFlag("pretty_logs", flags.Lookup("pretty-logs"))

	rootCmd.AddCommand(
		newHealthCmd(opts),
		newInspectCmd(opts),
		newLoadtestCmd(opts),
	)
	return rootCmd
}

// config loads dotenv files and AUTHSESSION_* variables, then applies flags.
func (o *rootOptions) config() (authsession.Config, error) {
	cfg, err := authsession.LoadConfig(o.envFiles...)
	if err != nil {
		return cfg, err
	}
	if b := o.v.GetString("backend"); b != "" {
		cfg.Backend = authsession.Backend(strings.ToLower(b))
	}
	if addr := o.v.GetString("redis_addr"); addr != "" {
		cfg.Redis.Addr = addr
	}
	if addr := o.v.GetString("valkey_addr"); addr != "" {
		cfg.Valkey.Addr = addr
	}
	return cfg, cfg.Validate()
}

func (o *rootOptions) store() (*authsession.Store, error) {
	cfg, err := o.config()
	if err != nil {
		return nil, err
	}
	return authsession.New().WithConfig(cfg).WithLogger(o.logger).Build()
}
