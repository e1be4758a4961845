// Package notifications delivers scan summaries through Shoutrrr service
// URLs. Delivery is best effort: a failed notification is logged and
// never affects the scan result.
package notifications

import (
	"log"

	"github.com/nicholas-fedor/shoutrrr"
	"github.com/sirupsen/logrus"

	shoutrrrTypes "github.com/nicholas-fedor/shoutrrr/pkg/types"
)

// router abstracts the Shoutrrr sender for testability.
type router interface {
	Send(message string, params *shoutrrrTypes.Params) []error
}

// Notifier sends summaries to the configured service URLs.
type Notifier struct {
	urls   []string
	router router
}

// NewNotifier builds a notifier for the given Shoutrrr URLs. With no URLs
// it returns nil, which disables notifications.
func NewNotifier(urls []string) (*Notifier, error) {
	if len(urls) == 0 {
		return nil, nil
	}

	logger := log.New(logrus.StandardLogger().WriterLevel(logrus.TraceLevel), "Shoutrrr: ", 0)

	sender, err := shoutrrr.NewSender(logger, urls...)
	if err != nil {
		return nil, err
	}

	return &Notifier{urls: urls, router: sender}, nil
}

// SendSummary delivers a scan summary to every configured service.
// Failures are logged per service and otherwise ignored.
func (n *Notifier) SendSummary(summary string) {
	if n == nil || summary == "" {
		return
	}

	params := &shoutrrrTypes.Params{}
	params.SetTitle("Fleetwatch")

	for i, err := range n.router.Send(summary, params) {
		if err != nil {
			logrus.WithError(err).
				WithField("url_index", i).
				Error("Failed to send notification")
		}
	}
}
