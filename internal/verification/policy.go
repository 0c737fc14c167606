package verification

import (
	"errors"
	"fmt"
	"time"

	"github.com/frahmantamala/moviemix/internal"
	"github.com/sethvargo/go-retry"
)

const (
	BackoffConstant    = "constant"
	BackoffExponential = "exponential"
	BackoffFibonacci   = "fibonacci"
)

// Policy is the polling budget: MaxAttempts gateway calls spaced by a
// backoff curve starting at Delay. AttemptTimeout bounds each gateway call.
type Policy struct {
	MaxAttempts    int
	Delay          time.Duration
	Backoff        string
	MaxDelay       time.Duration
	AttemptTimeout time.Duration
}

func DefaultPolicy() Policy {
	return Policy{
		MaxAttempts:    internal.DefaultVerifyAttempts,
		Delay:          internal.DefaultVerifyDelay,
		Backoff:        BackoffConstant,
		AttemptTimeout: internal.DefaultVerifyAttemptTimeout,
	}
}

func PolicyFromConfig(cfg internal.VerificationConfig) Policy {
	p := Policy{
		MaxAttempts:    cfg.MaxAttempts,
		Delay:          cfg.Delay,
		Backoff:        cfg.Backoff,
		MaxDelay:       cfg.MaxDelay,
		AttemptTimeout: cfg.AttemptTimeout,
	}
	if p.Backoff == "" {
		p.Backoff = BackoffConstant
	}
	return p
}

func (p Policy) Validate() error {
	if p.MaxAttempts < 1 {
		return errors.New("max attempts must be at least 1")
	}
	if p.Delay <= 0 {
		return errors.New("delay must be positive")
	}
	switch p.Backoff {
	case BackoffConstant, BackoffExponential, BackoffFibonacci:
	default:
		return fmt.Errorf("unknown backoff %q", p.Backoff)
	}
	if p.MaxDelay != 0 && p.MaxDelay < p.Delay {
		return errors.New("max delay must be at least delay")
	}
	if p.AttemptTimeout < 0 {
		return errors.New("attempt timeout cannot be negative")
	}
	return nil
}

// NewBackoff yields the MaxAttempts-1 waits between attempts, then stops.
func (p Policy) NewBackoff() retry.Backoff {
	var b retry.Backoff
	switch p.Backoff {
	case BackoffExponential:
		b = retry.NewExponential(p.Delay)
	case BackoffFibonacci:
		b = retry.NewFibonacci(p.Delay)
	default:
		b = retry.NewConstant(p.Delay)
	}
	if p.MaxDelay > 0 {
		b = retry.WithCappedDuration(p.MaxDelay, b)
	}
	return retry.WithMaxRetries(uint64(p.MaxAttempts-1), b)
}

// Schedule lists the waits the policy produces.
func (p Policy) Schedule() []time.Duration {
	b := p.NewBackoff()
	delays := make([]time.Duration, 0, p.MaxAttempts-1)
	for {
		d, stop := b.Next()
		if stop {
			return delays
		}
		delays = append(delays, d)
	}
}

// Budget is the longest a verification can run: every wait plus every
// attempt hitting AttemptTimeout. Zero when attempts are unbounded.
func (p Policy) Budget() time.Duration {
	if p.AttemptTimeout <= 0 {
		return 0
	}
	total := time.Duration(p.MaxAttempts) * p.AttemptTimeout
	for _, d := range p.Schedule() {
		total += d
	}
	return total
}
