package verify

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/rs/zerolog"
)

const (
	DefaultAttempts = 15
	DefaultDelay    = 2 * time.Second
)

// Checker polls a URL until it answers HTTP 200 or the retry budget runs
// out. Fixed count and delay: this is a smoke check, not a backoff client.
type Checker struct {
	Client   *http.Client
	Attempts int
	Delay    time.Duration
	Logger   zerolog.Logger
}

func NewChecker(logger zerolog.Logger) *Checker {
	return &Checker{
		Client:   &http.Client{Timeout: 5 * time.Second},
		Attempts: DefaultAttempts,
		Delay:    DefaultDelay,
		Logger:   logger.With().Str("component", "verify").Logger(),
	}
}

// WaitHealthy returns nil on the first 200 response and stops polling
// immediately. Every attempt is preceded by the fixed delay, so success on
// attempt N is observed after roughly N delays; the services this checks
// were started moments ago and never answer instantly anyway. Exhausting
// the budget returns an error the caller treats as a warning, not a
// failure.
func (c *Checker) WaitHealthy(ctx context.Context, url string) error {
	for attempt := 1; attempt <= c.Attempts; attempt++ {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(c.Delay):
		}

		req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
		if err != nil {
			return fmt.Errorf("build health check request: %w", err)
		}
		resp, err := c.Client.Do(req)
		if err != nil {
			c.Logger.Debug().Int("attempt", attempt).Err(err).Msg("health check not reachable yet")
			continue
		}
		resp.Body.Close()

		if resp.StatusCode == http.StatusOK {
			c.Logger.Info().Int("attempt", attempt).Str("url", url).Msg("panel is answering")
			return nil
		}
		c.Logger.Debug().Int("attempt", attempt).Int("status", resp.StatusCode).Msg("health check not healthy yet")
	}
	return fmt.Errorf("%s did not answer HTTP 200 within %d attempts", url, c.Attempts)
}
