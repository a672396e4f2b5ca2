package main

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/require"

	"reviewbot/internal/config"
)

func setEnv(t *testing.T, practicum, tg, chat string) {
	t.Helper()
	t.Setenv(config.EnvPracticumToken, practicum)
	t.Setenv(config.EnvTelegramToken, tg)
	t.Setenv(config.EnvTelegramChatID, chat)
	t.Setenv(config.EnvConfigPath, "")
}

func TestRunExitsWhenSecretsMissing(t *testing.T) {
	cases := []struct {
		name            string
		practicum, tg   string
		chat            string
		missing, absent []string
	}{
		{
			name:    "all",
			missing: []string{config.EnvPracticumToken, config.EnvTelegramToken, config.EnvTelegramChatID},
		},
		{
			name: "practicum", tg: "t", chat: "42",
			missing: []string{config.EnvPracticumToken},
			absent:  []string{config.EnvTelegramToken, config.EnvTelegramChatID},
		},
		{
			name: "telegram token", practicum: "p", chat: "42",
			missing: []string{config.EnvTelegramToken},
			absent:  []string{config.EnvPracticumToken, config.EnvTelegramChatID},
		},
		{
			name: "chat id whitespace", practicum: "p", tg: "t", chat: "   ",
			missing: []string{config.EnvTelegramChatID},
			absent:  []string{config.EnvPracticumToken, config.EnvTelegramToken},
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			setEnv(t, tc.practicum, tc.tg, tc.chat)
			var out bytes.Buffer

			require.Equal(t, 1, run(&out))

			log := out.String()
			require.Contains(t, log, "missing required environment variables")
			for _, name := range tc.missing {
				require.Contains(t, log, name)
			}
			for _, name := range tc.absent {
				require.NotContains(t, log, name)
			}
			// stopped before the app was built
			require.NotContains(t, log, "app started")
		})
	}
}

func TestRunExitsOnInvalidChatID(t *testing.T) {
	setEnv(t, "p", "t", "not a chat")
	var out bytes.Buffer

	require.Equal(t, 1, run(&out))
	require.Contains(t, out.String(), "invalid environment")
	require.Contains(t, out.String(), config.EnvTelegramChatID)
}
