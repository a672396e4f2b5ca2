package main

import (
	"context"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/cockroachdb/errors"

	"reviewbot/internal/app"
	"reviewbot/internal/config"
	logx "reviewbot/pkg/logx"
)

func main() {
	os.Exit(run(logx.Stdout()))
}

// run returns the process exit code. Bootstrap logs go to out.
func run(out io.Writer) int {
	boot := logx.NewConsoleTo(out, "DEBUG").With(logx.String("comp", "main"))

	if err := config.LoadDotEnv(); err != nil {
		boot.Warn("failed to load .env", logx.Err(err))
	}
	creds, err := config.LoadCredentials()
	if err != nil {
		if errors.Is(err, config.ErrConfigMissing) {
			boot.Critical("missing required environment variables", logx.Any("missing", creds.Missing()))
		} else {
			boot.Critical("invalid environment", logx.Err(err))
		}
		return 1
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	path, explicit := config.SettingsPath()
	cfgm := config.NewManager(path, !explicit, boot.With(logx.String("comp", "config")))

	a, err := app.New(ctx, creds, cfgm)
	if err != nil {
		boot.Critical("startup failed", logx.String("settings", path), logx.Err(err))
		return 1
	}
	if err := a.Start(ctx); err != nil {
		boot.Critical("start failed", logx.Err(err))
		return 1
	}

	<-a.Done()
	stopCtx, stopCancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer stopCancel()
	_ = a.Stop(stopCtx)

	if err := a.Err(); err != nil {
		boot.Critical("fatal error", logx.Err(err))
		return 1
	}
	return 0
}
