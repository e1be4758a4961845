// Package ratelimit enforces a minimum spacing between outbound calls per
// registry class. Every network-facing component waits on the shared
// limiter before issuing a request, so upstream registries see a bounded,
// predictable request rate regardless of fleet size.
package ratelimit

import (
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/justpow98/fleetwatch/pkg/types"
)

// Minimum spacing between calls, per registry class. Unauthenticated
// Docker Hub and GHCR quotas are the tightest, so their classes carry the
// widest spacing.
const (
	dockerHubSpacing = 2 * time.Second
	ghcrSpacing      = 3 * time.Second
	gitHubAPISpacing = 1 * time.Second
	defaultSpacing   = 500 * time.Millisecond
)

// Clock abstracts time for the limiter so tests can run on virtual time.
type Clock interface {
	Now() time.Time
	Sleep(d time.Duration)
}

// systemClock is the production Clock backed by the runtime.
type systemClock struct{}

func (systemClock) Now() time.Time        { return time.Now() }
func (systemClock) Sleep(d time.Duration) { time.Sleep(d) }

// Limiter tracks the last request timestamp per registry class and blocks
// callers until the class spacing has elapsed. The wait-then-stamp
// sequence is one atomic unit: the mutex is held across both, so a
// parallel caller of the same class serializes behind it.
type Limiter struct {
	mu      sync.Mutex
	clock   Clock
	spacing map[types.RegistryClass]time.Duration
	last    map[types.RegistryClass]time.Time
}

// New returns a limiter on the system clock with the standard spacings.
func New() *Limiter {
	return NewWithClock(systemClock{})
}

// NewWithClock returns a limiter driven by the given clock. Tests inject a
// virtual clock here to make waits deterministic.
func NewWithClock(clock Clock) *Limiter {
	return &Limiter{
		clock: clock,
		spacing: map[types.RegistryClass]time.Duration{
			types.RegistryDockerHub: dockerHubSpacing,
			types.RegistryGHCR:      ghcrSpacing,
			types.RegistryGitHubAPI: gitHubAPISpacing,
			types.RegistryDefault:   defaultSpacing,
		},
		last: make(map[types.RegistryClass]time.Time),
	}
}

// Wait blocks until the minimum spacing since the last call of the class
// has elapsed, then records the new timestamp. Unknown classes fall back
// to the default spacing.
func (l *Limiter) Wait(class types.RegistryClass) {
	l.mu.Lock()
	defer l.mu.Unlock()

	spacing, ok := l.spacing[class]
	if !ok {
		spacing = l.spacing[types.RegistryDefault]
	}

	if last, ok := l.last[class]; ok {
		elapsed := l.clock.Now().Sub(last)
		if wait := spacing - elapsed; wait > 0 {
			logrus.WithFields(logrus.Fields{
				"registry": class,
				"wait":     wait,
			}).Debug("Rate limiting outbound request")
			l.clock.Sleep(wait)
		}
	}

	l.last[class] = l.clock.Now()
}

// Spacing reports the configured minimum spacing for a class, falling back
// to the default spacing for unknown classes.
func (l *Limiter) Spacing(class types.RegistryClass) time.Duration {
	l.mu.Lock()
	defer l.mu.Unlock()

	if spacing, ok := l.spacing[class]; ok {
		return spacing
	}

	return l.spacing[types.RegistryDefault]
}
