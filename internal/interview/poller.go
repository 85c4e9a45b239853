package interview

import (
	"context"
	"fmt"
	"math"
	"math/rand/v2"
	"time"

	"github.com/fadilmartias/questy/internal/apperr"
	"github.com/fadilmartias/questy/pkg/log"
)

type PollerOptions struct {
	Interval    time.Duration
	BackoffBase time.Duration
	BackoffMax  time.Duration
	// MaxWait bounds the time spent waiting for a question without a
	// successful poll.
	MaxWait time.Duration
}

// Poller drives Tick for one session while it waits for a question. Run
// returns once a question is on screen, the session ended, the wait ceiling
// was hit or ctx was cancelled.
type Poller struct {
	session *Session
	opts    PollerOptions
	logger  log.Logger
}

func NewPoller(session *Session, opts PollerOptions, logger log.Logger) *Poller {
	if opts.Interval <= 0 {
		opts.Interval = 3 * time.Second
	}
	if opts.BackoffBase <= 0 {
		opts.BackoffBase = opts.Interval
	}
	if opts.BackoffMax < opts.BackoffBase {
		opts.BackoffMax = opts.BackoffBase
	}
	return &Poller{session: session, opts: opts, logger: logger}
}

func (p *Poller) Run(ctx context.Context) error {
	delay := time.Duration(0)
	for {
		if !p.session.awaiting() {
			return nil
		}

		timer := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-p.session.Kicked():
			timer.Stop()
		case <-timer.C:
		}

		err := p.session.Tick(ctx)
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if err != nil {
			failures := p.session.failures()
			delay = calculateBackoff(p.opts.BackoffBase, p.opts.BackoffMax, failures)
			p.logger.Warn().Err(err).Int("failures", failures).Dur("retry_in", delay).Msg("[Poller] poll failed")
		} else {
			delay = p.opts.Interval
		}

		if p.opts.MaxWait > 0 {
			if stalled := p.session.stalledFor(); stalled >= p.opts.MaxWait {
				terr := apperr.Timeout(fmt.Sprintf("No question received for %s", stalled.Round(time.Second)), err)
				p.session.fail(terr)
				p.logger.Error().Err(terr).Msg("[Poller] giving up")
				return terr
			}
		}
	}
}

// calculateBackoff doubles base per consecutive failure, caps at max and
// spreads the result by ±12.5%.
func calculateBackoff(base, max time.Duration, attempt int) time.Duration {
	if attempt < 1 {
		attempt = 1
	}
	delay := time.Duration(float64(base) * math.Pow(2, float64(attempt-1)))
	if delay > max || delay <= 0 {
		delay = max
	}

	jitter := time.Duration(float64(delay) * 0.25)
	delay = delay - jitter/2 + time.Duration(rand.Float64()*float64(jitter))

	return delay
}
