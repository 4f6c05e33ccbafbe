package notifier_test

import (
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/phantomssr/phantom/pkg/logger"
	"github.com/phantomssr/phantom/pkg/notifier"
	"github.com/phantomssr/phantom/pkg/types"
)

type sent struct {
	title   string
	message string
}

func recordingSender(out *[]sent) notifier.SendFunc {
	return func(title, message, icon string) error {
		*out = append(*out, sent{title: title, message: message})
		return nil
	}
}

func TestNotifier_Reload(t *testing.T) {
	var got []sent
	n := notifier.NewWithSender(notifier.Config{Enabled: true}, logger.CreateLoggerWithOutput("", "info", nil), recordingSender(&got))

	n.NotifyReload(3, 1500*time.Millisecond)

	if len(got) != 1 {
		t.Fatalf("expected 1 notification, got %d", len(got))
	}
	if !strings.Contains(got[0].message, "1.5s") || !strings.Contains(got[0].message, "generation 3") {
		t.Errorf("unexpected message %q", got[0].message)
	}
}

func TestNotifier_Failures(t *testing.T) {
	var got []sent
	n := notifier.NewWithSender(notifier.Config{Enabled: true}, nil, recordingSender(&got))

	n.NotifyReloadFailure(errors.New("bundle missing"))
	n.NotifySupervisorStopped(errors.New("permission denied"))

	if len(got) != 2 {
		t.Fatalf("expected 2 notifications, got %d", len(got))
	}
	if !strings.Contains(got[0].message, "bundle missing") {
		t.Errorf("unexpected reload failure message %q", got[0].message)
	}
	if !strings.Contains(got[1].title, "Live Reload Stopped") {
		t.Errorf("unexpected supervisor title %q", got[1].title)
	}
}

func TestNotifier_Disabled(t *testing.T) {
	var got []sent
	n := notifier.NewWithSender(notifier.Config{Enabled: false}, nil, recordingSender(&got))

	n.NotifyReload(1, time.Second)
	n.NotifyReloadFailure(errors.New("x"))
	n.NotifySupervisorStopped(errors.New("y"))

	if len(got) != 0 {
		t.Errorf("expected no notifications when disabled, got %d", len(got))
	}
}

func TestNotifier_SendErrorIsNotFatal(t *testing.T) {
	n := notifier.NewWithSender(notifier.Config{Enabled: true}, nil, func(title, message, icon string) error {
		return errors.New("no notification daemon")
	})

	n.NotifyReload(1, 20*time.Millisecond)
}

func TestFromTypes(t *testing.T) {
	enabled := true
	tests := []struct {
		name   string
		config *types.NotificationConfig
		want   bool
	}{
		{name: "nil config", config: nil, want: false},
		{name: "unset enabled", config: &types.NotificationConfig{}, want: false},
		{name: "explicitly enabled", config: &types.NotificationConfig{Enabled: &enabled, SuccessSound: "Glass"}, want: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := notifier.FromTypes(tt.config).Enabled; got != tt.want {
				t.Errorf("expected enabled=%v, got %v", tt.want, got)
			}
		})
	}
}
