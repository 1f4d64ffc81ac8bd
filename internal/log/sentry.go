package log

import (
	"time"

	"github.com/getsentry/sentry-go"
	sentrylogrus "github.com/getsentry/sentry-go/logrus"
	"github.com/rotisserie/eris"
	"github.com/sirupsen/logrus"
)

const sentryFlushTimeout = 2 * time.Second

// SentrySettings configures optional error forwarding to Sentry.
type SentrySettings struct {
	DSN         string
	Environment string
}

// InitSentry attaches a Sentry hook for error-and-above log entries. With an
// empty DSN it is a no-op, so local runs need no Sentry account. The returned
// flush func must run before process exit.
func InitSentry(logger *logrus.Logger, settings SentrySettings) (func(), error) {
	if settings.DSN == "" {
		return func() {}, nil
	}

	client, err := sentry.NewClient(sentry.ClientOptions{
		Dsn:         settings.DSN,
		Environment: settings.Environment,
	})
	if err != nil {
		return nil, eris.Wrap(err, "initializing sentry client")
	}

	hub := sentry.NewHub(client, sentry.NewScope())

	hook := sentrylogrus.NewLogHookFromClient([]logrus.Level{
		logrus.ErrorLevel,
		logrus.FatalLevel,
		logrus.PanicLevel,
	}, client)
	logger.AddHook(hook)

	flush := func() {
		hub.Flush(sentryFlushTimeout)
	}

	return flush, nil
}
