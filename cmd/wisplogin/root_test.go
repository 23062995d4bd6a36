package main

import (
	"bytes"
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/entrhq/wisplogin/pkg/browser"
	"github.com/entrhq/wisplogin/pkg/config"
	"github.com/entrhq/wisplogin/pkg/logging"
)

// isolate clears every variable the command reads so the host
// environment cannot leak into a test.
func isolate(t *testing.T) {
	t.Helper()
	t.Setenv("HOME", t.TempDir())
	for _, key := range []string{
		config.EnvAccounts, config.EnvBotToken, config.EnvChatID,
		"WISPLOGIN_LOG_LEVEL", "WISPLOGIN_METRICS_FILE", "WISPLOGIN_MAX_CONCURRENCY",
		"WISPLOGIN_HEADED", "WISPLOGIN_SKIP_INSTALL", "WISPLOGIN_CONFIG",
	} {
		t.Setenv(key, "")
	}
	t.Cleanup(func() { _ = logging.SetLevel("info") })
}

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "wisplogin.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0600))
	return path
}

func TestBuildConfig_Environment(t *testing.T) {
	isolate(t)
	t.Setenv(config.EnvAccounts, "a@x.com:p1")
	t.Setenv(config.EnvBotToken, "123:abc")
	t.Setenv(config.EnvChatID, "-100")
	t.Setenv("WISPLOGIN_MAX_CONCURRENCY", "3")

	v := viper.New()
	newRootCmd(v)

	cfg, err := buildConfig(v)
	require.NoError(t, err)

	assert.Equal(t, "a@x.com:p1", cfg.Accounts)
	assert.Equal(t, "123:abc", cfg.Telegram.BotToken)
	assert.Equal(t, "-100", cfg.Telegram.ChatID)
	assert.Equal(t, 3, cfg.Batch.MaxConcurrency)
	assert.True(t, cfg.Browser.Headless)
}

func TestBuildConfig_FlagsOverrideEnvironment(t *testing.T) {
	isolate(t)
	t.Setenv(config.EnvChatID, "-100")

	v := viper.New()
	cmd := newRootCmd(v)
	require.NoError(t, cmd.Flags().Set(flagChatID, "-200"))
	require.NoError(t, cmd.Flags().Set(flagHeaded, "true"))

	cfg, err := buildConfig(v)
	require.NoError(t, err)

	assert.Equal(t, "-200", cfg.Telegram.ChatID)
	assert.False(t, cfg.Browser.Headless)
}

func TestRootCmd_SecretsAreEnvironmentOnly(t *testing.T) {
	isolate(t)
	cmd := newRootCmd(viper.New())

	assert.Nil(t, cmd.Flags().Lookup("accounts"))
	assert.Nil(t, cmd.Flags().Lookup("bot-token"))

	cmd.SetOut(&bytes.Buffer{})
	cmd.SetErr(&bytes.Buffer{})
	cmd.SetArgs([]string{"--accounts", "a@x.com:p1"})
	assert.Error(t, cmd.Execute())
}

func TestBuildConfig_FileThenOverrides(t *testing.T) {
	isolate(t)
	path := writeConfig(t, `
telegram:
  chat_id: from-file
browser:
  max_retries: 5
logging:
  level: debug
metrics:
  textfile_path: /tmp/from-file.prom
`)
	t.Setenv(config.EnvChatID, "")

	v := viper.New()
	cmd := newRootCmd(v)
	require.NoError(t, cmd.Flags().Set(flagConfig, path))
	require.NoError(t, cmd.Flags().Set(flagLogLevel, "warn"))

	cfg, err := buildConfig(v)
	require.NoError(t, err)

	assert.Equal(t, "from-file", cfg.Telegram.ChatID)
	assert.Equal(t, 5, cfg.Browser.MaxRetries)
	assert.Equal(t, "warn", cfg.Logging.Level)
	assert.Equal(t, "/tmp/from-file.prom", cfg.Metrics.TextfilePath)
	assert.Equal(t, config.DefaultLoginURL, cfg.Browser.LoginURL, "defaults survive partial files")
}

func TestBuildConfig_Errors(t *testing.T) {
	tests := []struct {
		name  string
		setup func(t *testing.T, cmd flagSetter)
	}{
		{
			name: "missing file",
			setup: func(t *testing.T, cmd flagSetter) {
				require.NoError(t, cmd.Set(flagConfig, filepath.Join(t.TempDir(), "nope.yaml")))
			},
		},
		{
			name: "invalid value",
			setup: func(t *testing.T, cmd flagSetter) {
				require.NoError(t, cmd.Set(flagConfig, writeConfig(t, "browser:\n  max_retries: -1\n")))
			},
		},
		{
			name: "unknown log level",
			setup: func(t *testing.T, cmd flagSetter) {
				require.NoError(t, cmd.Set(flagLogLevel, "chatty"))
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			isolate(t)
			v := viper.New()
			cmd := newRootCmd(v)
			tt.setup(t, cmd.Flags())

			_, err := buildConfig(v)
			assert.Error(t, err)
		})
	}
}

type flagSetter interface {
	Set(name, value string) error
}

func TestExecute_NoAccountsNotifiesAndExitsCleanly(t *testing.T) {
	isolate(t)

	received := make(chan string, 1)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.NoError(t, r.ParseForm())
		received <- r.PostForm.Get("text")
		_, _ = w.Write([]byte(`{"ok":true}`))
	}))
	defer srv.Close()

	t.Setenv(config.EnvBotToken, "t")
	t.Setenv(config.EnvChatID, "c")
	path := writeConfig(t, "telegram:\n  api_base: "+srv.URL+"\n")

	var stdout, stderr bytes.Buffer
	cmd := newRootCmd(viper.New())
	cmd.SetOut(&stdout)
	cmd.SetErr(&stderr)
	cmd.SetArgs([]string{"--config", path})

	require.NoError(t, cmd.ExecuteContext(context.Background()))

	select {
	case text := <-received:
		assert.Equal(t, "Failed: WISP_ACCOUNTS is not configured", text)
	default:
		t.Fatal("expected a configuration error notification")
	}
	assert.Contains(t, stderr.String(), "valid accounts: 0")
	assert.Empty(t, stdout.String())
}

func TestExecute_RejectsArguments(t *testing.T) {
	isolate(t)

	cmd := newRootCmd(viper.New())
	cmd.SetOut(&bytes.Buffer{})
	cmd.SetErr(&bytes.Buffer{})
	cmd.SetArgs([]string{"unexpected"})

	assert.Error(t, cmd.Execute())
}

// failingRuntime stands in for a Playwright install that cannot start.
type failingRuntime struct {
	launches  int32
	shutdowns int32
}

func (r *failingRuntime) Initialize(bool) error {
	return errors.New("please install the driver (v1.52.0) first")
}

func (r *failingRuntime) Launch(string, browser.LaunchOptions) (browser.Engine, error) {
	atomic.AddInt32(&r.launches, 1)
	return nil, errors.New("browser runtime not initialized")
}

func (r *failingRuntime) Shutdown() error {
	atomic.AddInt32(&r.shutdowns, 1)
	return nil
}

func TestExecute_RuntimeStartFailureStillReports(t *testing.T) {
	isolate(t)

	rt := &failingRuntime{}
	prev := newRuntime
	newRuntime = func() browserRuntime { return rt }
	t.Cleanup(func() { newRuntime = prev })

	received := make(chan string, 2)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.NoError(t, r.ParseForm())
		received <- r.PostForm.Get("text")
		_, _ = w.Write([]byte(`{"ok":true}`))
	}))
	defer srv.Close()

	t.Setenv(config.EnvAccounts, "a@x.com:p1,b@y.com:p2")
	t.Setenv(config.EnvBotToken, "t")
	t.Setenv(config.EnvChatID, "c")
	path := writeConfig(t, "telegram:\n  api_base: "+srv.URL+"\n")

	var stdout, stderr bytes.Buffer
	cmd := newRootCmd(viper.New())
	cmd.SetOut(&stdout)
	cmd.SetErr(&stderr)
	cmd.SetArgs([]string{"--config", path, "--skip-install"})

	require.NoError(t, cmd.ExecuteContext(context.Background()))

	assert.Equal(t, int32(2), atomic.LoadInt32(&rt.launches))
	assert.Equal(t, int32(1), atomic.LoadInt32(&rt.shutdowns))

	assert.Contains(t, stdout.String(), "Result: 0 succeeded | 2 failed")
	assert.Contains(t, stdout.String(), " - a****@x.com")
	assert.Contains(t, stdout.String(), " - b****@y.com")
	assert.NotContains(t, stdout.String(), "p1")

	select {
	case text := <-received:
		assert.Contains(t, text, "Failed accounts:")
		assert.Contains(t, text, "Result: 0 succeeded | 2 failed")
	default:
		t.Fatal("expected the report to be sent")
	}
}
