package sqlfs

import (
	"github.com/mwantia/ninep"
	"github.com/mwantia/ninep/log"
)

type Options struct {
	User   string
	Group  string
	IoUnit ninep.IoUnit
	Logger *log.Logger
}

type Option func(*Options) error

func newDefaultOptions() *Options {
	return &Options{
		User:   "none",
		Group:  "none",
		Logger: log.Discard(),
	}
}

// WithUser sets the owner and group seeded for the root directory. Only
// effective when the database is created; an existing root row is kept.
func WithUser(user, group string) Option {
	return func(opts *Options) error {
		opts.User = user
		opts.Group = group
		return nil
	}
}

// WithIoUnit sets the advisory transfer size reported by Open.
func WithIoUnit(iounit ninep.IoUnit) Option {
	return func(opts *Options) error {
		opts.IoUnit = iounit
		return nil
	}
}

// WithLogger attaches a logger; mutations are logged at Debug.
func WithLogger(logger *log.Logger) Option {
	return func(opts *Options) error {
		opts.Logger = logger.Named("sqlfs")
		return nil
	}
}
