package config

import (
	"os"
	"strings"

	"github.com/cockroachdb/errors"
	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"

	kit "reviewbot/internal/transport"
)

var (
	// ErrConfigMissing marks absent required environment variables.
	ErrConfigMissing = errors.New("missing required configuration")
	// ErrConfigInvalid marks values that are present but unusable.
	ErrConfigInvalid = errors.New("invalid configuration")
)

// Environment variable names.
const (
	EnvPracticumToken = "PRACTICUM_TOKEN"
	EnvTelegramToken  = "TELEGRAM_TOKEN"
	EnvTelegramChatID = "TELEGRAM_CHAT_ID"
	EnvConfigPath     = "REVIEWBOT_CONFIG"

	DefaultConfigPath = "./config.yaml"
)

// Credentials are the three secrets the bot cannot run without. Values are
// never logged.
type Credentials struct {
	PracticumToken string `envconfig:"PRACTICUM_TOKEN"`
	TelegramToken  string `envconfig:"TELEGRAM_TOKEN"`
	TelegramChatID string `envconfig:"TELEGRAM_CHAT_ID"`
}

// LoadDotEnv loads KEY=VALUE pairs from the given files (default ".env")
// into the process environment. Variables already set win, and a missing
// file is not an error.
func LoadDotEnv(paths ...string) error {
	if len(paths) == 0 {
		paths = []string{".env"}
	}
	for _, p := range paths {
		if err := godotenv.Load(p); err != nil && !errors.Is(err, os.ErrNotExist) {
			return errors.Wrapf(err, "load %s", p)
		}
	}
	return nil
}

// LoadCredentials reads Credentials from the environment and validates them.
// On error the returned Credentials still hold whatever was found.
func LoadCredentials() (Credentials, error) {
	var c Credentials
	if err := envconfig.Process("", &c); err != nil {
		return c, errors.Mark(errors.Wrap(err, "read environment"), ErrConfigInvalid)
	}
	c.PracticumToken = strings.TrimSpace(c.PracticumToken)
	c.TelegramToken = strings.TrimSpace(c.TelegramToken)
	c.TelegramChatID = strings.TrimSpace(c.TelegramChatID)
	return c, c.Validate()
}

// Missing lists the names of every absent variable, in declaration order.
// Whitespace-only counts as absent.
func (c Credentials) Missing() []string {
	var out []string
	if strings.TrimSpace(c.PracticumToken) == "" {
		out = append(out, EnvPracticumToken)
	}
	if strings.TrimSpace(c.TelegramToken) == "" {
		out = append(out, EnvTelegramToken)
	}
	if strings.TrimSpace(c.TelegramChatID) == "" {
		out = append(out, EnvTelegramChatID)
	}
	return out
}

// Validate checks all three values in one pass so a single diagnostic names
// everything that is missing.
func (c Credentials) Validate() error {
	if missing := c.Missing(); len(missing) > 0 {
		return errors.Mark(
			errors.Newf("missing required environment variables: %s", strings.Join(missing, ", ")),
			ErrConfigMissing,
		)
	}
	if _, err := c.ChatTarget(); err != nil {
		return err
	}
	return nil
}

// ChatTarget parses TelegramChatID.
func (c Credentials) ChatTarget() (kit.ChatTarget, error) {
	t, err := kit.ParseChatTarget(c.TelegramChatID)
	if err != nil {
		return kit.ChatTarget{}, errors.Mark(errors.Wrap(err, EnvTelegramChatID), ErrConfigInvalid)
	}
	return t, nil
}

// SettingsPath returns the settings file location and whether the operator
// chose it explicitly. An explicit path must exist; the default may not.
func SettingsPath() (path string, explicit bool) {
	var env struct {
		Path string `envconfig:"REVIEWBOT_CONFIG"`
	}
	_ = envconfig.Process("", &env)
	if p := strings.TrimSpace(env.Path); p != "" {
		return p, true
	}
	return DefaultConfigPath, false
}
