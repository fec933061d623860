package throttle

import (
	"errors"
)

var (
	ErrMustNotBeZero = errors.New("must be greater than zero")
	ErrWaitingFailed = errors.New("limiter waiting failed")
	ErrContextEnded  = errors.New("throttle context ended")
)

// Config holds the requests per second and burst
// capacity applied to calls against the API.
type Config struct {
	RPS   int
	Burst int
}
