package relay

import (
	"context"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/fadilmartias/questy/pkg/log"
	"github.com/go-resty/resty/v2"
)

// Forwarder posts payloads to the workflow webhooks, retrying transport
// errors and 5xx replies until timeout elapses.
type Forwarder struct {
	client  *resty.Client
	timeout time.Duration
	logger  log.Logger
}

func NewForwarder(timeout time.Duration, logger log.Logger) *Forwarder {
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	return &Forwarder{
		client:  resty.New().SetTimeout(timeout).SetHeader("Content-Type", "application/json"),
		timeout: timeout,
		logger:  logger,
	}
}

func (f *Forwarder) Post(ctx context.Context, url string, payload any) error {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = min(250*time.Millisecond, f.timeout/10)
	b.MaxElapsedTime = f.timeout

	attempt := 0
	op := func() error {
		attempt++
		resp, err := f.client.R().SetContext(ctx).SetBody(payload).Post(url)
		if err != nil {
			return err
		}
		if resp.StatusCode() >= 500 {
			return fmt.Errorf("webhook returned %d", resp.StatusCode())
		}
		if resp.IsError() {
			return backoff.Permanent(fmt.Errorf("webhook returned %d: %s", resp.StatusCode(), resp.String()))
		}
		return nil
	}
	notify := func(err error, wait time.Duration) {
		f.logger.Warn().Err(err).Int("attempt", attempt).Dur("retry_in", wait).Str("url", url).Msg("forward failed")
	}
	return backoff.RetryNotify(op, backoff.WithContext(b, ctx), notify)
}
