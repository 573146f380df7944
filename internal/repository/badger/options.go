package badger

import "time"

// Options holds configuration for the Badger snapshot repository
type Options struct {
	// Path is the directory BadgerDB stores its files in
	Path string

	// InMemory keeps all data in memory; Path is ignored
	InMemory bool

	// KeyPrefix is prepended to every snapshot key
	KeyPrefix string

	// GCInterval is how often value log garbage collection runs. Zero disables it.
	GCInterval time.Duration
}

// Option configures Options
type Option func(*Options)

// DefaultOptions returns the default repository options
func DefaultOptions() *Options {
	return &Options{
		Path:       "./data/badger",
		KeyPrefix:  "flowsync:snapshot:",
		GCInterval: 10 * time.Minute,
	}
}

// WithPath sets the storage directory
func WithPath(path string) Option {
	return func(o *Options) {
		o.Path = path
	}
}

// WithInMemory enables in-memory mode
func WithInMemory(inMemory bool) Option {
	return func(o *Options) {
		o.InMemory = inMemory
	}
}

// WithKeyPrefix sets the key prefix
func WithKeyPrefix(prefix string) Option {
	return func(o *Options) {
		o.KeyPrefix = prefix
	}
}

// WithGCInterval sets the garbage collection interval
func WithGCInterval(interval time.Duration) Option {
	return func(o *Options) {
		o.GCInterval = interval
	}
}
