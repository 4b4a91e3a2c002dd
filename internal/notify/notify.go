// Package notify sends desktop notifications about committed sessions.
package notify

import (
	"fmt"
	"io"
	"log/slog"

	"github.com/gen2brain/beeep"
)

const appName = "matterclock"

type Notifier struct {
	enabled bool
	logger  *slog.Logger
	send    func(title, message string) error
}

func New(enabled bool, logger *slog.Logger) *Notifier {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &Notifier{
		enabled: enabled,
		logger:  logger,
		send: func(title, message string) error {
			return beeep.Notify(title, message, "")
		},
	}
}

// Committed reports a successful commit.
func (n *Notifier) Committed(matterID string, minutes int) {
	n.notify(fmt.Sprintf("Logged %d min to %s", minutes, matterID))
}

// CommitFailed reports a failed commit. The session is still running.
func (n *Notifier) CommitFailed(err error) {
	n.notify(fmt.Sprintf("Stop failed, your time is not lost: %v", err))
}

func (n *Notifier) notify(message string) {
	if !n.enabled {
		return
	}
	if err := n.send(appName, message); err != nil {
		n.logger.Debug("notification failed", "error", err)
	}
}
