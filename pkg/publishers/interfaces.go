package publishers

import (
	"context"

	"github.com/samvad-hq/briteverify-go/pkg/briteverify"
)

// Publisher delivers verification events to a downstream sink (SQS, SNS,
// Pub/Sub, HTTP).
type Publisher interface {
	ID() string
	Type() string
	Publish(ctx context.Context, evt Event) error
}

// Closer is implemented by publishers holding client resources.
type Closer interface {
	Close() error
}

// Logger is the logging surface publishers write to.
type Logger = briteverify.Logger

func ensureLogger(log Logger) Logger {
	if log == nil {
		return briteverify.NopLogger{}
	}
	return log
}
