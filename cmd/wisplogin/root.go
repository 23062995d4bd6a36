package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"runtime"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/entrhq/wisplogin/pkg/batch"
	"github.com/entrhq/wisplogin/pkg/browser"
	"github.com/entrhq/wisplogin/pkg/config"
	"github.com/entrhq/wisplogin/pkg/logging"
	"github.com/entrhq/wisplogin/pkg/login"
	"github.com/entrhq/wisplogin/pkg/metrics"
	"github.com/entrhq/wisplogin/pkg/notify"
)

const version = "0.1.0"

// Flag names double as viper keys.
const (
	flagConfig         = "config"
	flagChatID         = "chat-id"
	flagLogLevel       = "log-level"
	flagMetricsFile    = "metrics-file"
	flagMaxConcurrency = "max-concurrency"
	flagHeaded         = "headed"
	flagSkipInstall    = "skip-install"
)

// Secrets are bound to the environment only so they never show up in
// process listings or shell history.
const (
	keyAccounts = "accounts"
	keyBotToken = "bot-token"
)

// browserRuntime is the part of browser.Runtime the command drives.
type browserRuntime interface {
	browser.Launcher
	Initialize(skipInstall bool) error
	Shutdown() error
}

var newRuntime = func() browserRuntime { return browser.NewRuntime() }

func newRootCmd(v *viper.Viper) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "wisplogin",
		Short: "Log every configured Wispbyte account in and report the result",
		Long: `wisplogin opens a headless Chromium session per account, logs in to the
Wispbyte console, verifies the session and prints a masked report. The same
report is sent to Telegram when TG_BOT_TOKEN and TG_CHAT_ID are set.

Accounts are read from WISP_ACCOUNTS as a comma-separated list of
email:password pairs.`,
		Version:      version,
		Args:         cobra.NoArgs,
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := buildConfig(v)
			if err != nil {
				return err
			}
			return run(cmd.Context(), cfg, cmd.OutOrStdout(), cmd.ErrOrStderr())
		},
	}

	flags := cmd.Flags()
	flags.String(flagConfig, "", "path to a YAML configuration file")
	flags.String(flagChatID, "", "Telegram chat id (env "+config.EnvChatID+")")
	flags.String(flagLogLevel, "", "log level: debug, info, warn or error")
	flags.String(flagMetricsFile, "", "write Prometheus metrics to this textfile after the run")
	flags.Int(flagMaxConcurrency, 0, "maximum simultaneous logins (0 = all at once)")
	flags.Bool(flagHeaded, false, "show the browser window")
	flags.Bool(flagSkipInstall, false, "do not download the Playwright driver and browser")

	cobra.CheckErr(v.BindPFlags(flags))

	// Explicit names are not prefixed
	cobra.CheckErr(v.BindEnv(keyAccounts, config.EnvAccounts))
	cobra.CheckErr(v.BindEnv(keyBotToken, config.EnvBotToken))
	cobra.CheckErr(v.BindEnv(flagChatID, config.EnvChatID))

	v.SetEnvPrefix("WISPLOGIN")
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	return cmd
}

// buildConfig layers flags and environment over the optional file over
// the defaults.
func buildConfig(v *viper.Viper) (*config.Config, error) {
	cfg := config.DefaultConfig()
	if path := v.GetString(flagConfig); path != "" {
		loaded, err := config.LoadFile(path)
		if err != nil {
			return nil, err
		}
		cfg = loaded
	}

	if s := v.GetString(keyAccounts); s != "" {
		cfg.Accounts = s
	}
	if s := v.GetString(keyBotToken); s != "" {
		cfg.Telegram.BotToken = s
	}
	if s := v.GetString(flagChatID); s != "" {
		cfg.Telegram.ChatID = s
	}
	if s := v.GetString(flagLogLevel); s != "" {
		cfg.Logging.Level = s
	}
	if s := v.GetString(flagMetricsFile); s != "" {
		cfg.Metrics.TextfilePath = s
	}
	if n := v.GetInt(flagMaxConcurrency); n > 0 {
		cfg.Batch.MaxConcurrency = n
	}
	if v.GetBool(flagHeaded) {
		cfg.Browser.Headless = false
	}
	if v.GetBool(flagSkipInstall) {
		cfg.Browser.SkipInstall = true
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if err := logging.SetLevel(cfg.Logging.Level); err != nil {
		return nil, err
	}
	return cfg, nil
}

// run executes one batch. Per-account failures, an unusable account list
// and a browser runtime that will not start are all reported, not
// returned.
func run(ctx context.Context, cfg *config.Config, stdout, stderr io.Writer) error {
	valid := batch.CountValid(cfg.Accounts)
	fmt.Fprintf(stderr, "[%s] wisplogin %s starting\n", time.Now().Format("2006-01-02 15:04:05"), version)
	fmt.Fprintf(stderr, "Go: %s, valid accounts: %d\n", runtime.Version(), valid)

	mainLog, err := logging.NewLogger("wisplogin")
	if err != nil {
		fmt.Fprintf(stderr, "warning: log file unavailable: %v\n", err)
	}
	defer mainLog.Close()

	rt := newRuntime()
	defer func() {
		if err := rt.Shutdown(); err != nil {
			mainLog.Warnf("browser runtime shutdown: %v", err)
		}
	}()

	// No driver download when there is nothing to log in. A runtime that
	// fails to start still yields a report: every Launch fails, so every
	// account ends up in the failed section.
	if valid > 0 {
		if err := rt.Initialize(cfg.Browser.SkipInstall); err != nil {
			mainLog.Errorf("failed to start browser runtime: %v", err)
		}
	}

	collector := metrics.New()
	driver, err := login.NewDriver(rt, cfg.Browser,
		login.WithLogger(mainLog.With("component", "login")),
		login.WithObserver(collector),
	)
	if err != nil {
		return err
	}

	orchestrator := batch.New(cfg, driver, notify.NewTelegram(cfg.Telegram, mainLog.With("component", "notify")),
		batch.WithOutput(stdout),
		batch.WithLogger(mainLog.With("component", "batch")),
		batch.WithRecorder(collector),
	)

	if _, err := orchestrator.Run(ctx); err != nil {
		if errors.Is(err, batch.ErrNoAccounts) {
			return nil
		}
		return err
	}
	return nil
}
