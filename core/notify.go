package core

import "github.com/sirupsen/logrus"

// Notifier is the user-facing alert channel. Repository operations report
// success or failure through it in addition to their structured return
// values, so a user-initiated action never finishes silently.
type Notifier interface {
	Alert(title, message string)
}

// LogNotifier writes alerts to the log. It is the default when no UI is
// attached to the host.
type LogNotifier struct{}

func (LogNotifier) Alert(title, message string) {
	logrus.WithField("title", title).Info(message)
}
