// Package notifier sends desktop notifications about live reloads
package notifier

import (
	"fmt"
	"time"

	"github.com/gen2brain/beeep"
	"github.com/phantomssr/phantom/pkg/interfaces"
	"github.com/phantomssr/phantom/pkg/logger"
	"github.com/phantomssr/phantom/pkg/types"
)

// SendFunc delivers one notification. beeep.Notify by default.
type SendFunc func(title, message, icon string) error

// ReloadNotifier reports reloads and supervisor failures on the desktop
type ReloadNotifier struct {
	enabled      bool
	successSound string
	failureSound string
	send         SendFunc
	beep         func() error
	logger       logger.Logger
}

var _ interfaces.ReloadNotifier = (*ReloadNotifier)(nil)

// Config represents notification configuration
type Config struct {
	Enabled      bool
	SuccessSound string
	FailureSound string
}

// FromTypes converts the file configuration. A nil config is disabled.
func FromTypes(c *types.NotificationConfig) Config {
	if c == nil {
		return Config{}
	}
	return Config{
		Enabled:      c.IsEnabled(),
		SuccessSound: c.SuccessSound,
		FailureSound: c.FailureSound,
	}
}

// New creates a notifier that uses beeep
func New(config Config, log logger.Logger) *ReloadNotifier {
	return NewWithSender(config, log, beeep.Notify)
}

// NewWithSender creates a notifier that delivers through send
func NewWithSender(config Config, log logger.Logger, send SendFunc) *ReloadNotifier {
	if log == nil {
		log = logger.NewNopLogger()
	}
	return &ReloadNotifier{
		enabled:      config.Enabled,
		successSound: config.SuccessSound,
		failureSound: config.FailureSound,
		send:         send,
		beep: func() error {
			return beeep.Beep(beeep.DefaultFreq, beeep.DefaultDuration)
		},
		logger: log.WithComponent("notifier"),
	}
}

// NotifyReload reports a completed pipeline restart
func (n *ReloadNotifier) NotifyReload(generation int, duration time.Duration) {
	if !n.enabled {
		return
	}

	title := "👻 Phantom reloaded"
	message := fmt.Sprintf("Assets reloaded in %s (generation %d)", formatDuration(duration), generation)

	n.sendNotification(title, message, n.successSound)
}

// NotifyReloadFailure reports a restart that could not load the new assets
func (n *ReloadNotifier) NotifyReloadFailure(err error) {
	if !n.enabled {
		return
	}

	title := "❌ Reload Failed"
	message := fmt.Sprintf("Still serving previous assets: %v", err)

	n.sendNotification(title, message, n.failureSound)
}

// NotifySupervisorStopped reports that live reload is off until restart
func (n *ReloadNotifier) NotifySupervisorStopped(err error) {
	if !n.enabled {
		return
	}

	title := "⚠️ Live Reload Stopped"
	message := fmt.Sprintf("Asset check failed, serving stale assets: %v", err)

	n.sendNotification(title, message, n.failureSound)
}

func (n *ReloadNotifier) sendNotification(title, message, soundName string) {
	if err := n.send(title, message, ""); err != nil {
		n.logger.Debug("Failed to send notification", logger.WithError(err))
		n.logger.Info(fmt.Sprintf("%s: %s", title, message))
	}

	if soundName != "" && n.beep != nil {
		if err := n.beep(); err != nil {
			n.logger.Debug("Failed to play sound", logger.WithError(err))
		}
	}
}

func formatDuration(d time.Duration) string {
	if d < time.Second {
		return fmt.Sprintf("%dms", d.Milliseconds())
	}
	if d < time.Minute {
		return fmt.Sprintf("%.1fs", d.Seconds())
	}
	return fmt.Sprintf("%dm%ds", int(d.Minutes()), int(d.Seconds())%60)
}
