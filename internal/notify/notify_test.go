package notify

import (
	"errors"
	"strings"
	"testing"
)

func TestNotifier_WhenDisabled_ShouldNotSend(t *testing.T) {
	n := New(false, nil)
	sent := 0
	n.send = func(title, message string) error { sent++; return nil }

	n.Committed("m-1", 30)
	if sent != 0 {
		t.Errorf("expected no notifications, got %d", sent)
	}
}

func TestNotifier_WhenEnabled_ShouldDescribeOutcome(t *testing.T) {
	n := New(true, nil)
	var messages []string
	n.send = func(title, message string) error {
		messages = append(messages, message)
		return errors.New("no dbus")
	}

	n.Committed("m-1", 30)
	n.CommitFailed(errors.New("503"))

	if len(messages) != 2 {
		t.Fatalf("expected 2 notifications, got %d", len(messages))
	}
	if !strings.Contains(messages[0], "30 min to m-1") {
		t.Errorf("unexpected message %q", messages[0])
	}
	if !strings.Contains(messages[1], "not lost") {
		t.Errorf("unexpected message %q", messages[1])
	}
}
