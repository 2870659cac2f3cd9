// Copyright Mia srl
// SPDX-License-Identifier: AGPL-3.0-only or Commercial

package fake

import (
	"context"
	"sync"

	"github.com/mia-platform/malbacklog/internal/cooldown"
)

var _ cooldown.Policy = &Policy{}

// Policy is a cooldown.Policy that never sleeps and records its invocations.
type Policy struct {
	lock   sync.Mutex
	waits  int
	resets int
	err    error
}

// NewPolicy returns a recording policy.
func NewPolicy() *Policy {
	return &Policy{}
}

// WithError makes every Wait return err.
func (p *Policy) WithError(err error) *Policy {
	p.lock.Lock()
	defer p.lock.Unlock()

	p.err = err
	return p
}

func (p *Policy) Wait(ctx context.Context) error {
	p.lock.Lock()
	defer p.lock.Unlock()

	p.waits++
	if p.err != nil {
		return p.err
	}
	return ctx.Err()
}

func (p *Policy) Reset() {
	p.lock.Lock()
	defer p.lock.Unlock()

	p.resets++
}

// Waits returns how many times Wait has been called.
func (p *Policy) Waits() int {
	p.lock.Lock()
	defer p.lock.Unlock()

	return p.waits
}

// Resets returns how many times Reset has been called.
func (p *Policy) Resets() int {
	p.lock.Lock()
	defer p.lock.Unlock()

	return p.resets
}
