// Package cli wires the sitecapture commands: mirror for one-off captures
// and serve for the HTTP API. Flags, SITECAPTURE_* environment variables and
// an optional sitecapture.yaml are merged through viper.
package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

const envPrefix = "SITECAPTURE"

// app carries the state shared by every command of one invocation.
type app struct {
	v      *viper.Viper
	log    *logrus.Logger
	out    io.Writer
	errOut io.Writer
}

// NewRootCmd builds the command tree. Output goes to out, logs to errOut.
func NewRootCmd(out, errOut io.Writer) *cobra.Command {
	a := &app{v: viper.New(), log: logrus.New(), out: out, errOut: errOut}

	root := &cobra.Command{
		Use:           "sitecapture",
		Short:         "Capture web pages and their assets for offline viewing",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return a.init(cmd)
		},
	}
	root.SetOut(out)
	root.SetErr(errOut)

	pf := root.PersistentFlags()
	pf.String("config", "", "config file (default ./sitecapture.yaml)")
	pf.String("log-level", "info", "log level: debug, info, warn, error")
	pf.Bool("log-json", false, "emit logs as JSON")

	root.AddCommand(newMirrorCmd(a), newServeCmd(a))
	return root
}

// init loads configuration sources and sets up logging for cmd.
func (a *app) init(cmd *cobra.Command) error {
	if err := a.v.BindPFlags(cmd.Flags()); err != nil {
		return fmt.Errorf("bind flags: %w", err)
	}
	a.v.SetEnvPrefix(envPrefix)
	a.v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	a.v.AutomaticEnv()

	if path := a.v.GetString("config"); path != "" {
		a.v.SetConfigFile(path)
	} else {
		a.v.SetConfigName("sitecapture")
		a.v.SetConfigType("yaml")
		a.v.AddConfigPath(".")
	}
	if err := a.v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return fmt.Errorf("read config: %w", err)
		}
	}

	return a.setupLogger()
}

func (a *app) setupLogger() error {
	level, err := logrus.ParseLevel(a.v.GetString("log-level"))
	if err != nil {
		return fmt.Errorf("invalid log level: %w", err)
	}
	a.log.SetLevel(level)
	a.log.SetOutput(a.errOut)
	if a.v.GetBool("log-json") {
		a.log.SetFormatter(&logrus.JSONFormatter{})
	} else {
		a.log.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	}
	return nil
}

// Execute runs the root command with a context cancelled on SIGINT or SIGTERM.
func Execute() error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	return NewRootCmd(os.Stdout, os.Stderr).ExecuteContext(ctx)
}
