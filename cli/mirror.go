package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"

	"github.com/lukemcguire/sitecapture/mirror"
	"github.com/lukemcguire/sitecapture/result"
	"github.com/lukemcguire/sitecapture/tui"
)

const updateBuffer = 256

func newMirrorCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "mirror <url>",
		Short: "Download a page with its images, scripts, stylesheets, videos and fonts",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.runMirror(cmd.Context(), args[0])
		},
	}

	defaults := mirror.DefaultConfig("")
	f := cmd.Flags()
	f.StringP("label", "l", defaults.Label, "product label, slugified into the output folder name")
	f.StringP("out", "o", defaults.OutputRoot, "directory the output folder is created in")
	f.Int("preview-limit", 0, "keep at most this many assets per category (0 = all)")
	f.Int("css-ref-limit", 0, "process at most this many references per stylesheet (0 = all)")
	f.Bool("insecure", false, "skip TLS certificate verification")
	f.Bool("render", false, "request JavaScript rendering (not supported, logs a warning)")
	f.Bool("no-tui", false, "print plain log lines instead of the interactive UI")
	f.String("report", "", "write per-asset outcomes to this file (.json, .csv or .yaml)")
	f.Int("concurrency", defaults.Concurrency, "simultaneous asset downloads")
	f.Float64("rate-limit", 0, "asset requests per second (0 = unlimited)")
	f.Int("retries", defaults.RetryPolicy.MaxRetries, "retries for transient page fetch errors")
	f.Duration("retry-delay", defaults.RetryPolicy.BaseDelay, "base delay between page fetch retries")
	f.Duration("timeout", defaults.PageTimeout, "page fetch timeout")
	f.Bool("robots", false, "refuse pages disallowed by robots.txt")
	f.String("user-agent", defaults.UserAgent, "User-Agent header")
	return cmd
}

// mirrorConfig builds the engine configuration from merged settings.
func (a *app) mirrorConfig(pageURL string) mirror.Config {
	cfg := mirror.DefaultConfig(pageURL)
	cfg.Label = a.v.GetString("label")
	cfg.OutputRoot = a.v.GetString("out")
	cfg.MaxPerCategory = a.v.GetInt("preview-limit")
	cfg.MaxStylesheetRefs = a.v.GetInt("css-ref-limit")
	cfg.InsecureSkipVerify = a.v.GetBool("insecure")
	cfg.Render = a.v.GetBool("render")
	cfg.Concurrency = a.v.GetInt("concurrency")
	cfg.RateLimit = a.v.GetFloat64("rate-limit")
	cfg.PageTimeout = a.v.GetDuration("timeout")
	cfg.RespectRobots = a.v.GetBool("robots")
	cfg.UserAgent = a.v.GetString("user-agent")
	cfg.RetryPolicy = mirror.RetryPolicy{
		MaxRetries: a.v.GetInt("retries"),
		BaseDelay:  a.v.GetDuration("retry-delay"),
		MaxDelay:   30 * time.Second,
	}
	cfg.Logger = a.log
	return cfg
}

func (a *app) runMirror(ctx context.Context, pageURL string) error {
	cfg := a.mirrorConfig(pageURL)

	var (
		res    *result.Result
		report *result.Report
		err    error
	)
	if a.v.GetBool("no-tui") {
		res, report, err = a.runPlain(ctx, cfg)
	} else {
		res, report, err = a.runTUI(ctx, cfg)
	}

	if path := a.v.GetString("report"); path != "" && report != nil {
		if werr := writeReport(path, report); werr != nil {
			a.log.WithError(werr).Error("Failed to write report")
		}
	}
	if err != nil {
		return err
	}
	if res == nil {
		return mirror.ErrCanceled
	}
	return nil
}

func (a *app) runPlain(ctx context.Context, cfg mirror.Config) (*result.Result, *result.Report, error) {
	rec := mirror.NewRecorder()
	m, err := mirror.New(cfg, rec)
	if err != nil {
		return nil, nil, err
	}

	res, err := m.Run(ctx)
	report := rec.Report(res)
	if err != nil {
		return nil, report, fmt.Errorf("mirror: %w", err)
	}
	result.PrintResult(a.out, res, report)
	return res, report, nil
}

func (a *app) runTUI(ctx context.Context, cfg mirror.Config) (*result.Result, *result.Report, error) {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	updates := make(chan mirror.Update, updateBuffer)
	lines := make(chan string, updateBuffer)
	a.log.SetOutput(io.Discard)
	a.log.AddHook(tui.NewLogHook(lines))

	cancels := &mirror.AssetCancels{}
	cfg.AssetCanceled = cancels.Canceled

	rec := mirror.NewRecorder()
	m, err := mirror.New(cfg, mirror.MultiObserver{rec, mirror.NewChanObserver(ctx, updates)})
	if err != nil {
		return nil, nil, err
	}

	model := tui.NewModel(ctx, cancel, m, rec, cfg.PageURL, updates, lines).WithAssetCancels(cancels)
	final, err := tea.NewProgram(model, tea.WithOutput(a.out)).Run()
	if err != nil {
		return nil, nil, fmt.Errorf("run interface: %w", err)
	}

	fm, ok := final.(tui.Model)
	if !ok {
		return nil, nil, errors.New("unexpected interface model")
	}
	if fm.Cancelled() {
		return nil, fm.GetReport(), mirror.ErrCanceled
	}
	return fm.GetResult(), fm.GetReport(), fm.GetErr()
}

func writeReport(path string, report *result.Report) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create report: %w", err)
	}
	if err := result.Write(f, report, result.FormatFromPath(path)); err != nil {
		_ = f.Close()
		return err
	}
	return f.Close()
}
