package app

import (
	"context"
	"time"

	"github.com/coreos/go-systemd/v22/daemon"

	logx "github.com/bareos/bareos-sub019/pkg/logx"
)

// sdNotifier reports state to systemd. Outside a Type=notify unit every
// call is a no-op.
type sdNotifier struct {
	log logx.Logger
}

func (n sdNotifier) notify(state string) {
	sent, err := daemon.SdNotify(false, state)
	if err != nil {
		n.log.Debug("sd_notify failed", logx.String("state", state), logx.Err(err))
		return
	}
	if sent {
		n.log.Debug("sd_notify sent", logx.String("state", state))
	}
}

func (n sdNotifier) ready() { n.notify(daemon.SdNotifyReady) }
func (n sdNotifier) reloading() { n.notify(daemon.SdNotifyReloading) }
func (n sdNotifier) stopping() { n.notify(daemon.SdNotifyStopping) }

// watchdog pings at half the configured interval until ctx is done. It
// returns at once when the unit has no WatchdogSec.
func (n sdNotifier) watchdog(ctx context.Context) {
	interval, err := daemon.SdWatchdogEnabled(false)
	if err != nil || interval <= 0 {
		return
	}
	t := time.NewTicker(interval / 2)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			n.notify(daemon.SdNotifyWatchdog)
		}
	}
}
