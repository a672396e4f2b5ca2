// Package systemd speaks the sd_notify protocol. Every call is a no-op when
// the process is not started by systemd (NOTIFY_SOCKET unset).
package systemd

import (
	"time"

	"github.com/coreos/go-systemd/v22/daemon"

	logx "reviewbot/pkg/logx"
)

type Notifier struct {
	log logx.Logger
}

func New(log logx.Logger) *Notifier {
	if log.IsZero() {
		log = logx.Nop()
	}
	return &Notifier{log: log}
}

func (n *Notifier) notify(state string) bool {
	ok, err := daemon.SdNotify(false, state)
	if err != nil {
		n.log.Debug("sd_notify failed", logx.String("state", state), logx.Err(err))
		return false
	}
	return ok
}

// Ready reports READY=1. It returns false when no notify socket exists.
func (n *Notifier) Ready() bool { return n.notify(daemon.SdNotifyReady) }

// Watchdog pings WATCHDOG=1.
func (n *Notifier) Watchdog() { n.notify(daemon.SdNotifyWatchdog) }

func (n *Notifier) Stopping() { n.notify(daemon.SdNotifyStopping) }

func (n *Notifier) Status(msg string) { n.notify("STATUS=" + msg) }

// WatchdogInterval returns the unit's WatchdogSec, or 0 if disabled.
func WatchdogInterval() time.Duration {
	d, err := daemon.SdWatchdogEnabled(false)
	if err != nil {
		return 0
	}
	return d
}
