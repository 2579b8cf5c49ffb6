package vault

import (
	"io"
	"time"

	"github.com/sirupsen/logrus"
)

type options struct {
	params KDFParams
	log    logrus.FieldLogger
	now    func() time.Time
}

// Option configures a Store.
type Option func(*options)

// WithKDFParams sets the scrypt parameters of a new store. Open ignores it
// and uses the parameters recorded in the file.
func WithKDFParams(p KDFParams) Option {
	return func(o *options) { o.params = p }
}

// WithLogger sets the logger for lifecycle events. Secrets are never logged.
func WithLogger(l logrus.FieldLogger) Option {
	return func(o *options) { o.log = l }
}

// WithClock replaces time.Now for entry timestamps.
func WithClock(now func() time.Time) Option {
	return func(o *options) { o.now = now }
}

func buildOptions(opts []Option) options {
	o := options{params: DefaultKDFParams(), now: time.Now}
	for _, opt := range opts {
		opt(&o)
	}
	if o.log == nil {
		l := logrus.New()
		l.SetOutput(io.Discard)
		o.log = l
	}
	return o
}
