package download

import (
	"errors"
	"hash"
)

// Option configures [Save].
type Option func(*options) error

type options struct {
	checksum     *checksumVerifier
	progress     bool
	skipExisting bool
}

// WithChecksum verifies the written export against expected, the
// hex-encoded digest produced by h (e.g. sha256.New()).
func WithChecksum(h hash.Hash, expected string) Option {
	return func(opts *options) error {
		if h == nil {
			return errors.New("hash must not be nil")
		}
		if expected == "" {
			return errors.New("expected checksum must not be empty")
		}
		opts.checksum = &checksumVerifier{hash: h, expected: expected}
		return nil
	}
}

// WithProgress logs write progress at most once per second.
func WithProgress() Option {
	return func(opts *options) error {
		opts.progress = true
		return nil
	}
}

// WithSkipExisting leaves an existing destPath untouched and returns nil.
func WithSkipExisting() Option {
	return func(opts *options) error {
		opts.skipExisting = true
		return nil
	}
}
