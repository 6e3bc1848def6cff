package location

import "hazard-reporter/internal/common/logger"

// Notifier shows a short notice to the user.
type Notifier interface {
	Notify(message string)
}

// NotifierFunc adapts a function to Notifier.
type NotifierFunc func(message string)

func (f NotifierFunc) Notify(message string) { f(message) }

// LogNotifier writes notices to the log, for hosts without a user in front
// of them.
type LogNotifier struct {
	Logger logger.Logger
}

func (n LogNotifier) Notify(message string) {
	n.Logger.Info("User notice", map[string]interface{}{"notice": message})
}

const (
	noticeServicesDisabled = "Location services are disabled. Enable them in your device settings for a precise location."
	noticeUsingIP          = "Precise location unavailable. Using an approximate location based on your network."
	noticeUsingCountry     = "Approximate location unavailable. Using your country to place the map."
)
