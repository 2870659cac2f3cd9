// Copyright Mia srl
// SPDX-License-Identifier: AGPL-3.0-only or Commercial

package cooldown

import (
	"context"
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"
	"golang.org/x/time/rate"
)

const (
	// FixedPolicy waits the same interval after every failure.
	FixedPolicy = "fixed"
	// ExponentialPolicy doubles the wait after each consecutive failure up to a maximum.
	ExponentialPolicy = "exponential"
	// TokenBucketPolicy allows at most one failure per interval, letting isolated failures through.
	TokenBucketPolicy = "token-bucket"
)

// Policies returns the names accepted by New.
func Policies() []string {
	return []string{FixedPolicy, ExponentialPolicy, TokenBucketPolicy}
}

// Policy decides how long the caller stays idle after a failed call to a remote source.
type Policy interface {
	// Wait blocks for the cooldown period or until ctx is done, returning ctx.Err() in the latter case.
	Wait(ctx context.Context) error
	// Reset is called after a successful call and restores the initial state of the policy.
	Reset()
}

// UnknownPolicyError is returned by New for names outside of Policies.
type UnknownPolicyError struct {
	Name string
}

func (e *UnknownPolicyError) Error() string {
	return fmt.Sprintf("unknown cooldown policy %q, valid values are: %s", e.Name, strings.Join(Policies(), ", "))
}

// New returns the policy identified by name. interval is the base cooldown and maxInterval caps
// the exponential growth.
func New(name string, interval, maxInterval time.Duration) (Policy, error) {
	if interval < 0 {
		return nil, fmt.Errorf("cooldown interval must not be negative, got %s", interval)
	}

	switch strings.ToLower(name) {
	case FixedPolicy:
		return NewFixed(interval), nil
	case ExponentialPolicy:
		return NewExponential(interval, max(interval, maxInterval)), nil
	case TokenBucketPolicy:
		return NewTokenBucket(interval), nil
	default:
		return nil, &UnknownPolicyError{Name: name}
	}
}

// IsValid reports whether name identifies a known policy.
func IsValid(name string) bool {
	return slices.Contains(Policies(), strings.ToLower(name))
}

type sleepFunc func(ctx context.Context, d time.Duration) error

func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}

	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

var _ Policy = &Fixed{}

// Fixed waits a constant interval.
type Fixed struct {
	interval time.Duration
	sleep    sleepFunc
}

// NewFixed returns a policy waiting interval after every failure.
func NewFixed(interval time.Duration) *Fixed {
	return &Fixed{interval: interval, sleep: sleep}
}

func (f *Fixed) Wait(ctx context.Context) error {
	return f.sleep(ctx, f.interval)
}

func (f *Fixed) Reset() {}

var _ Policy = &Exponential{}

// Exponential doubles the wait on each consecutive failure without jitter.
type Exponential struct {
	backoff *backoff.ExponentialBackOff
	sleep   sleepFunc
}

// NewExponential returns a policy starting at initial and never waiting more than maxInterval.
func NewExponential(initial, maxInterval time.Duration) *Exponential {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = initial
	b.MaxInterval = maxInterval
	b.Multiplier = 2
	b.RandomizationFactor = 0
	b.MaxElapsedTime = 0
	b.Reset()

	return &Exponential{backoff: b, sleep: sleep}
}

func (e *Exponential) Wait(ctx context.Context) error {
	next := e.backoff.NextBackOff()
	if next == backoff.Stop {
		next = e.backoff.MaxInterval
	}

	return e.sleep(ctx, next)
}

func (e *Exponential) Reset() {
	e.backoff.Reset()
}

var _ Policy = &TokenBucket{}

// TokenBucket lets one failure through immediately and then spaces the following ones by interval.
type TokenBucket struct {
	limiter *rate.Limiter
}

// NewTokenBucket returns a policy refilling a single token every interval.
func NewTokenBucket(interval time.Duration) *TokenBucket {
	limit := rate.Inf
	if interval > 0 {
		limit = rate.Every(interval)
	}

	return &TokenBucket{limiter: rate.NewLimiter(limit, 1)}
}

func (t *TokenBucket) Wait(ctx context.Context) error {
	return t.limiter.Wait(ctx)
}

func (t *TokenBucket) Reset() {}
