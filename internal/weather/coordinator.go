package weather

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/atomic"

	"github.com/i474232898/skywatch/internal/logger"
)

// Ordering decides how concurrent fetch completions update the current outcome.
type Ordering string

const (
	// OrderLastWrite lets whichever fetch resolves last win, even if it was
	// issued first.
	OrderLastWrite Ordering = "last-write"
	// OrderSequenced drops completions older than the current outcome.
	OrderSequenced Ordering = "sequenced"
)

// ErrClosed is returned by FetchWeather once Shutdown has been called.
var ErrClosed = errors.New("coordinator is shutting down")

// Coordinator turns a city search into exactly one published Outcome.
type Coordinator struct {
	provider Provider
	reach    Reachability
	store    OutcomeStore
	log      *logger.Logger
	ordering Ordering
	now      func() time.Time

	seq atomic.Uint64

	// mu orders inflight.Add against Shutdown's Wait.
	mu       sync.Mutex
	closed   bool
	inflight sync.WaitGroup
}

// Option configures a Coordinator.
type Option func(*Coordinator)

// WithOrdering sets the completion ordering policy.
func WithOrdering(o Ordering) Option {
	return func(c *Coordinator) { c.ordering = o }
}

// WithLogger sets the logger used for fault diagnostics.
func WithLogger(l *logger.Logger) Option {
	return func(c *Coordinator) { c.log = l.Named("coordinator") }
}

// NewCoordinator creates a new Coordinator.
func NewCoordinator(provider Provider, reach Reachability, store OutcomeStore, opts ...Option) *Coordinator {
	c := &Coordinator{
		provider: provider,
		reach:    reach,
		store:    store,
		log:      logger.Nop(),
		ordering: OrderLastWrite,
		now:      func() time.Time { return time.Now().UTC() },
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// FetchWeather starts a fetch for city and returns its request ID. The
// connectivity check runs synchronously; the network call runs on its own
// goroutine and publishes its outcome when it resolves. city must already
// be trimmed and non-empty. After Shutdown it returns ErrClosed and
// publishes nothing.
func (c *Coordinator) FetchWeather(city, credential string) (string, error) {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return "", ErrClosed
	}
	c.inflight.Add(1)
	c.mu.Unlock()

	id := uuid.NewString()
	seq := c.seq.Inc()

	if !c.reach.InternetReachable() {
		defer c.inflight.Done()
		c.log.Warn("no internet connection; skipping provider call",
			logger.String("request_id", id),
			logger.String("city", city))
		c.publish(Failure(FailureNoConnectivity), id, seq, city)
		return id, nil
	}

	go func() {
		defer c.inflight.Done()
		c.publish(c.fetch(id, city, credential), id, seq, city)
	}()
	return id, nil
}

// fetch performs the provider call and converts every result into an
// outcome. It never panics.
func (c *Coordinator) fetch(id, city, credential string) (out Outcome) {
	start := c.now()
	defer func() {
		if r := recover(); r != nil {
			c.log.Error("provider call panicked",
				logger.String("request_id", id),
				logger.String("city", city),
				logger.String("provider", c.provider.Name()),
				logger.Any("panic", r))
			out = Failure(FailureInvalidCity)
		}
	}()

	report, err := c.provider.CurrentByCity(context.Background(), city, credential)
	if err != nil {
		c.log.Error("error fetching weather data",
			logger.String("request_id", id),
			logger.String("city", city),
			logger.String("provider", c.provider.Name()),
			logger.Duration("elapsed", c.now().Sub(start)),
			logger.Error(err))
		return Failure(FailureInvalidCity)
	}

	if !report.OK() {
		c.log.Info("provider rejected city",
			logger.String("request_id", id),
			logger.String("city", city),
			logger.Int("code", report.Code),
			logger.String("message", report.Message))
		return Failure(FailureInvalidCity)
	}

	c.log.Debug("weather fetched",
		logger.String("request_id", id),
		logger.String("city", report.Snapshot.City),
		logger.Duration("elapsed", c.now().Sub(start)))
	return Success(report.Snapshot)
}

func (c *Coordinator) publish(o Outcome, id string, seq uint64, city string) {
	o.RequestID = id
	o.Seq = seq
	o.City = city
	o.ResolvedAt = c.now()

	if c.ordering == OrderSequenced {
		if !c.store.PublishIfNewer(o) {
			c.log.Debug("dropping stale outcome",
				logger.String("request_id", id),
				logger.Uint64("seq", seq))
		}
		return
	}
	c.store.Publish(o)
}

// Current returns the current outcome.
func (c *Coordinator) Current() Outcome {
	return c.store.Current()
}

// Subscribe delegates to the underlying store.
func (c *Coordinator) Subscribe() (<-chan Outcome, func()) {
	return c.store.Subscribe()
}

// Shutdown stops accepting fetches and waits for the in-flight ones to
// publish, or for ctx to be done.
func (c *Coordinator) Shutdown(ctx context.Context) error {
	c.mu.Lock()
	c.closed = true
	c.mu.Unlock()
	return c.Wait(ctx)
}

// Wait blocks until every in-flight fetch has published or ctx is done.
// Fetches may still be started while Wait runs; use Shutdown to stop them.
func (c *Coordinator) Wait(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		c.inflight.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("waiting for in-flight fetches: %w", ctx.Err())
	}
}
