package config

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/stretchr/testify/require"

	logx "reviewbot/pkg/logx"
)

func setCreds(t *testing.T, practicum, tg, chat string) {
	t.Helper()
	t.Setenv(EnvPracticumToken, practicum)
	t.Setenv(EnvTelegramToken, tg)
	t.Setenv(EnvTelegramChatID, chat)
}

func TestLoadCredentials(t *testing.T) {
	setCreds(t, "p-token", " t-token ", "-100123")
	c, err := LoadCredentials()
	require.NoError(t, err)
	require.Equal(t, "p-token", c.PracticumToken)
	require.Equal(t, "t-token", c.TelegramToken)

	target, err := c.ChatTarget()
	require.NoError(t, err)
	require.EqualValues(t, -100123, target.ChatID)
}

func TestLoadCredentialsNamesEveryMissingVariable(t *testing.T) {
	setCreds(t, "", "   ", "")
	_, err := LoadCredentials()
	require.Error(t, err)
	require.True(t, errors.Is(err, ErrConfigMissing))
	require.Contains(t, err.Error(), EnvPracticumToken)
	require.Contains(t, err.Error(), EnvTelegramToken)
	require.Contains(t, err.Error(), EnvTelegramChatID)
}

func TestCredentialsMissing(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name string
		c    Credentials
		want []string
	}{
		{"all set", Credentials{"a", "b", "1"}, nil},
		{"practicum", Credentials{"", "b", "1"}, []string{EnvPracticumToken}},
		{"telegram", Credentials{"a", " ", "1"}, []string{EnvTelegramToken}},
		{"chat", Credentials{"a", "b", ""}, []string{EnvTelegramChatID}},
		{"none", Credentials{}, []string{EnvPracticumToken, EnvTelegramToken, EnvTelegramChatID}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			require.Equal(t, tt.want, tt.c.Missing())
		})
	}
}

func TestCredentialsInvalidChat(t *testing.T) {
	t.Parallel()
	err := Credentials{"a", "b", "not a chat"}.Validate()
	require.True(t, errors.Is(err, ErrConfigInvalid))
	require.False(t, errors.Is(err, ErrConfigMissing))
}

func TestLoadDotEnv(t *testing.T) {
	const key = "REVIEWBOT_DOTENV_TEST_KEY"
	t.Cleanup(func() { _ = os.Unsetenv(key) })

	dir := t.TempDir()
	path := filepath.Join(dir, ".env")
	require.NoError(t, os.WriteFile(path, []byte(key+"=from-file\n"), 0o600))

	require.NoError(t, LoadDotEnv(path))
	require.Equal(t, "from-file", os.Getenv(key))

	require.NoError(t, LoadDotEnv(filepath.Join(dir, "absent.env")))
}

func TestSettingsPath(t *testing.T) {
	t.Setenv(EnvConfigPath, "")
	p, explicit := SettingsPath()
	require.Equal(t, DefaultConfigPath, p)
	require.False(t, explicit)

	t.Setenv(EnvConfigPath, "/etc/reviewbot.yaml")
	p, explicit = SettingsPath()
	require.Equal(t, "/etc/reviewbot.yaml", p)
	require.True(t, explicit)
}

func TestDecodeYAMLKeepsDefaults(t *testing.T) {
	t.Parallel()
	cfg, err := Decode("settings.yaml", []byte(`
practicum:
  poll_interval: "5m"
notifier:
  dedup_window: "1h"
  retry_max: 2
`))
	require.NoError(t, err)
	require.Equal(t, "5m", cfg.Practicum.PollInterval)
	require.Equal(t, DefaultEndpoint, cfg.Practicum.Endpoint)
	require.Equal(t, "30s", cfg.Practicum.Timeout)
	require.Equal(t, "1h", cfg.Notifier.DedupWindow)
	require.Equal(t, 2, cfg.Notifier.RetryMax)
	require.Equal(t, "DEBUG", cfg.Logging.Level)
	require.True(t, cfg.Logging.Console)
}

func TestDecodeJSONAndEmptyYAML(t *testing.T) {
	t.Parallel()
	cfg, err := Decode("settings.json", []byte(`{"storage":{"driver":"sqlite","path":"/tmp/x.db"}}`))
	require.NoError(t, err)
	require.Equal(t, "sqlite", cfg.Storage.Driver)

	cfg, err = Decode("settings.yml", []byte("# nothing here\n"))
	require.NoError(t, err)
	require.Equal(t, Defaults(), cfg)
}

func TestDecodeRejects(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name, path, body, want string
	}{
		{"unknown key", "c.yaml", "practicum:\n  endpont: x\n", "endpont"},
		{"trailing json", "c.json", `{} {}`, "trailing"},
		{"bad duration", "c.yaml", "practicum:\n  timeout: soon\n", "practicum.timeout"},
		{"negative duration", "c.yaml", "notifier:\n  retry_base: -1s\n", "notifier.retry_base"},
		{"bad driver", "c.yaml", "storage:\n  driver: redis\n", "storage.driver"},
		{"bad endpoint", "c.yaml", "practicum:\n  endpoint: not-a-url\n", "practicum.endpoint"},
		{"empty interval", "c.yaml", "practicum:\n  poll_interval: \"\"\n", "poll_interval"},
		{"bad addr", "c.yaml", "observability:\n  enabled: true\n  addr: nope\n", "observability.addr"},
		{"broken yaml", "c.yaml", "practicum: [\n", "yaml"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			_, err := Decode(tt.path, []byte(tt.body))
			require.Error(t, err)
			require.True(t, errors.Is(err, ErrConfigInvalid), "%v", err)
			require.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestValidateCollectsAllErrors(t *testing.T) {
	t.Parallel()
	cfg := Defaults()
	cfg.Practicum.Timeout = "x"
	cfg.Notifier.RetryMax = -1
	err := cfg.Validate()
	require.ErrorContains(t, err, "practicum.timeout")
	require.ErrorContains(t, err, "notifier.retry_max")
}

func TestParseDurationOrDefault(t *testing.T) {
	t.Parallel()
	d, err := ParseDurationOrDefault("x", "", time.Second)
	require.NoError(t, err)
	require.Equal(t, time.Second, d)

	d, err = ParseDurationOrDefault("x", "0s", time.Second)
	require.NoError(t, err)
	require.Equal(t, time.Second, d)

	d, err = ParseDurationOrDefault("x", "2m", time.Second)
	require.NoError(t, err)
	require.Equal(t, 2*time.Minute, d)

	_, err = ParseDurationOrDefault("a.b", "bogus", time.Second)
	require.ErrorContains(t, err, "a.b")
	require.True(t, errors.Is(err, ErrConfigInvalid))
}

func TestParseDurationField(t *testing.T) {
	t.Parallel()
	d, err := ParseDurationField("x", "  ")
	require.NoError(t, err)
	require.Zero(t, d)

	d, err = ParseDurationField("x", " 90s ")
	require.NoError(t, err)
	require.Equal(t, 90*time.Second, d)

	_, err = ParseDurationField("notifier.retry_base", "-1s")
	require.ErrorIs(t, err, ErrNegativeDuration)
	require.ErrorContains(t, err, "notifier.retry_base: got -1s")
	require.True(t, errors.Is(err, ErrConfigInvalid))
}

func TestManagerOptionalFile(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()

	m := NewManager(filepath.Join(dir, "config.yaml"), true, logx.Nop())
	cfg, err := m.Load(context.Background())
	require.NoError(t, err)
	require.Equal(t, Defaults(), cfg)
	require.Same(t, cfg, m.Get())

	m = NewManager(filepath.Join(dir, "config.yaml"), false, logx.Nop())
	_, err = m.Load(context.Background())
	require.Error(t, err)
	require.True(t, errors.Is(err, ErrConfigInvalid))
}

func TestManagerValidatorRejects(t *testing.T) {
	t.Parallel()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("practicum:\n  poll_interval: whenever\n"), 0o600))

	m := NewManager(path, false, logx.Nop())
	m.SetValidator(func(_ context.Context, cfg *Config) error {
		if cfg.Practicum.PollInterval == "whenever" {
			return errors.New("practicum.poll_interval: unsupported")
		}
		return nil
	})
	_, err := m.Load(context.Background())
	require.ErrorContains(t, err, "unsupported")
	require.True(t, errors.Is(err, ErrConfigInvalid))
	require.Nil(t, m.Get())
}

func TestManagerWatchPublishesReload(t *testing.T) {
	t.Parallel()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("logging:\n  level: INFO\n"), 0o600))

	m := NewManager(path, false, logx.Nop())
	m.debounce = 20 * time.Millisecond
	_, err := m.Load(context.Background())
	require.NoError(t, err)

	ch := m.Subscribe(1)
	defer m.Unsubscribe(ch)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		_ = m.Watch(ctx)
	}()
	defer func() {
		cancel()
		<-done
	}()

	// Keep rewriting until the watcher is up and sees a change.
	var got *Config
	require.Eventually(t, func() bool {
		select {
		case got = <-ch:
			return true
		default:
			_ = os.WriteFile(path, []byte("logging:\n  level: WARN\n"), 0o600)
			return false
		}
	}, 5*time.Second, 50*time.Millisecond)
	require.Equal(t, "WARN", got.Logging.Level)
	require.Equal(t, "WARN", m.Get().Logging.Level)
}

func TestPublishKeepsLatest(t *testing.T) {
	t.Parallel()
	m := NewManager("unused.yaml", true, logx.Nop())
	ch := m.Subscribe(1)

	a, b := Defaults(), Defaults()
	b.Logging.Level = "ERROR"
	m.publish(a)
	m.publish(b)

	require.Same(t, b, <-ch)
	m.Unsubscribe(ch)
	_, ok := <-ch
	require.False(t, ok)
}

func TestSummarizeChange(t *testing.T) {
	t.Parallel()
	oldCfg, newCfg := Defaults(), Defaults()
	changed, _, restart := SummarizeChange(oldCfg, newCfg)
	require.Empty(t, changed)
	require.Empty(t, restart)

	newCfg.Practicum.PollInterval = "1m"
	newCfg.Storage.Driver = "file"
	newCfg.Observability.Token = "secret"
	changed, attrs, restart := SummarizeChange(oldCfg, newCfg)
	require.Equal(t, []string{"practicum", "storage", "observability"}, changed)
	require.Equal(t, []string{"storage"}, restart)
	require.NotEmpty(t, attrs)
}
