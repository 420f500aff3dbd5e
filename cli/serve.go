package cli

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/lukemcguire/sitecapture/api"
	"github.com/lukemcguire/sitecapture/mirror"
)

const shutdownTimeout = 10 * time.Second

func newServeCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the mirror HTTP API",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return a.runServe(cmd.Context())
		},
	}

	defaults := mirror.DefaultConfig("")
	f := cmd.Flags()
	f.String("listen", ":8080", "address to listen on")
	f.StringP("out", "o", defaults.OutputRoot, "directory output folders are created in")
	f.Int("concurrency", defaults.Concurrency, "simultaneous asset downloads per job")
	f.Float64("rate-limit", 0, "asset requests per second per job (0 = unlimited)")
	f.Duration("timeout", defaults.PageTimeout, "page fetch timeout")
	f.Bool("robots", false, "refuse pages disallowed by robots.txt")
	f.Bool("insecure", false, "skip TLS certificate verification for every job")
	f.String("user-agent", defaults.UserAgent, "User-Agent header")
	return cmd
}

func (a *app) runServe(ctx context.Context) error {
	base := mirror.DefaultConfig("")
	base.OutputRoot = a.v.GetString("out")
	base.Concurrency = a.v.GetInt("concurrency")
	base.RateLimit = a.v.GetFloat64("rate-limit")
	base.PageTimeout = a.v.GetDuration("timeout")
	base.RespectRobots = a.v.GetBool("robots")
	base.InsecureSkipVerify = a.v.GetBool("insecure")
	base.UserAgent = a.v.GetString("user-agent")
	base.Logger = a.log

	if !a.log.IsLevelEnabled(logrus.DebugLevel) {
		gin.SetMode(gin.ReleaseMode)
	}

	s := api.NewServer(ctx, base)
	srv := &http.Server{
		Addr:              a.v.GetString("listen"),
		Handler:           s.Router(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		a.log.WithField("addr", srv.Addr).Info("API listening")
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("serve: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	s.Wait()
	a.log.Info("API stopped")
	return nil
}
