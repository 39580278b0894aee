package booking

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/bytedance/sonic"
	"github.com/google/uuid"
	"golang.org/x/time/rate"

	"github.com/ant0n-grachev/telegram-reservation-bot/types"
)

const DefaultTimeout = 15 * time.Second

type Status string

const (
	StatusSuccess  Status = "success"
	StatusRejected Status = "rejected"
	StatusFailed   Status = "failed"
)

// Result classifies one submission attempt. Err is set only for StatusFailed.
type Result struct {
	Status     Status
	StatusCode int
	AttemptID  string
	Err        error
}

var ErrIncomplete = errors.New("reservation is incomplete")

type Submitter struct {
	endpoint string
	venue    Venue
	client   *http.Client
	timeout  time.Duration
	limiter  *rate.Limiter
}

type Option func(*Submitter)

func WithHTTPClient(client *http.Client) Option {
	return func(s *Submitter) {
		s.client = client
	}
}

// WithTimeout bounds one attempt including reading the response.
func WithTimeout(timeout time.Duration) Option {
	return func(s *Submitter) {
		s.timeout = timeout
	}
}

// WithRatePerMinute throttles outbound submissions across all sessions.
// Zero disables throttling.
func WithRatePerMinute(n int) Option {
	return func(s *Submitter) {
		if n <= 0 {
			s.limiter = nil
			return
		}
		s.limiter = rate.NewLimiter(rate.Every(time.Minute/time.Duration(n)), n)
	}
}

func NewSubmitter(endpoint string, venue Venue, opts ...Option) *Submitter {
	if endpoint == "" {
		endpoint = DefaultEndpoint
	}
	s := &Submitter{
		endpoint: endpoint,
		venue:    venue,
		client:   http.DefaultClient,
		timeout:  DefaultTimeout,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(s)
		}
	}
	return s
}

// Submit sends form once. It never retries.
func (s *Submitter) Submit(ctx context.Context, form types.Reservation) Result {
	res := Result{AttemptID: uuid.NewString()}
	if !form.Complete() {
		return s.failed(res, ErrIncomplete)
	}

	body, err := sonic.Marshal(NewRequest(form, s.venue))
	if err != nil {
		return s.failed(res, fmt.Errorf("failed to marshal booking request: %w", err))
	}

	if s.limiter != nil {
		if err := s.limiter.Wait(ctx); err != nil {
			return s.failed(res, fmt.Errorf("rate limit wait: %w", err))
		}
	}

	if s.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.timeout)
		defer cancel()
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.endpoint, bytes.NewReader(body))
	if err != nil {
		return s.failed(res, err)
	}
	req.Header.Set("accept", "*/*")
	req.Header.Set("content-type", "application/json")
	req.Header.Set("origin", s.venue.Origin)
	req.Header.Set("referer", s.venue.Origin+"/")
	req.Header.Set("user-agent", s.venue.UserAgent)
	req.Header.Set("x-request-id", res.AttemptID)

	slog.Info("Submitting reservation", "attempt", res.AttemptID, "date", form.Date, "time", form.Time, "people", form.People)
	resp, err := s.client.Do(req)
	if err != nil {
		return s.failed(res, err)
	}
	defer resp.Body.Close()

	res.StatusCode = resp.StatusCode
	if resp.StatusCode == http.StatusOK {
		_, _ = io.Copy(io.Discard, resp.Body)
		res.Status = StatusSuccess
		slog.Info("Reservation accepted", "attempt", res.AttemptID)
		return res
	}

	snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
	res.Status = StatusRejected
	slog.Warn("Reservation rejected", "attempt", res.AttemptID, "status", resp.StatusCode, "body", string(snippet))
	return res
}

func (s *Submitter) failed(res Result, err error) Result {
	res.Status = StatusFailed
	res.Err = err
	slog.Error("Reservation submission failed", "attempt", res.AttemptID, "error", err)
	return res
}
