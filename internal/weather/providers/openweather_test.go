package providers

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/sony/gobreaker"
	"go.uber.org/atomic"

	"github.com/i474232898/skywatch/internal/logger"
	"github.com/i474232898/skywatch/internal/netcheck"
	"github.com/i474232898/skywatch/internal/store"
	"github.com/i474232898/skywatch/internal/weather"
)

const parisPayload = `{
	"cod": 200,
	"name": "Paris",
	"main": {"temp": 21.5, "humidity": 65, "pressure": 1012},
	"weather": [{"main": "Clear", "description": "clear sky"}],
	"wind": {"speed": 3.6},
	"clouds": {"all": 40},
	"visibility": 10000,
	"sys": {"sunrise": 1718167800, "sunset": 1718224800}
}`

func newTestProvider(t *testing.T, h http.HandlerFunc, timeout time.Duration) *OpenWeatherProvider {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)

	client := &http.Client{Timeout: timeout}
	return NewOpenWeatherProvider(client, OpenWeatherConfig{BaseURL: srv.URL}, logger.Nop())
}

func TestCurrentByCitySendsQuery(t *testing.T) {
	queries := make(chan map[string]string, 1)
	p := newTestProvider(t, func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		queries <- map[string]string{"q": q.Get("q"), "appid": q.Get("appid"), "units": q.Get("units")}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(parisPayload))
	}, time.Second)

	report, err := p.CurrentByCity(context.Background(), "São Paulo", "secret")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !report.OK() {
		t.Fatalf("expected OK report, got code %d", report.Code)
	}

	gotQuery := <-queries
	want := map[string]string{"q": "São Paulo", "appid": "secret", "units": "metric"}
	for k, v := range want {
		if gotQuery[k] != v {
			t.Errorf("query %s: expected %q, got %q", k, v, gotQuery[k])
		}
	}
}

func TestCurrentByCityParsesSnapshot(t *testing.T) {
	p := newTestProvider(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(parisPayload))
	}, time.Second)

	report, err := p.CurrentByCity(context.Background(), "Paris", "k")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	s := report.Snapshot
	if s.City != "Paris" || s.TemperatureC != 21.5 || s.HumidityPct != 65 || s.PressureHpa != 1012 {
		t.Fatalf("unexpected main fields: %+v", s)
	}
	if s.Condition != "clear sky" || s.WindSpeedMS != 3.6 || s.CloudinessPct != 40 || s.VisibilityM != 10000 {
		t.Fatalf("unexpected secondary fields: %+v", s)
	}
	if s.Sunrise != 1718167800 || s.Sunset != 1718224800 {
		t.Fatalf("unexpected sun times: %+v", s)
	}
}

func TestCurrentByCityNotFound(t *testing.T) {
	p := newTestProvider(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		w.Write([]byte(`{"cod":"404","message":"city not found"}`))
	}, time.Second)

	report, err := p.CurrentByCity(context.Background(), "Atlantis", "k")
	if err != nil {
		t.Fatalf("a 404 payload is a provider answer, not a fault: %v", err)
	}
	if report.OK() || report.Code != 404 {
		t.Fatalf("expected code 404, got %d", report.Code)
	}
	if report.Message != "city not found" {
		t.Fatalf("unexpected message %q", report.Message)
	}
}

func TestCurrentByCityFaults(t *testing.T) {
	tests := []struct {
		name    string
		handler http.HandlerFunc
		wantErr error
	}{
		{
			name: "server error",
			handler: func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(http.StatusInternalServerError)
			},
			wantErr: errServerError,
		},
		{
			name: "rate limited",
			handler: func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(http.StatusTooManyRequests)
			},
			wantErr: errRateLimited,
		},
		{
			name: "not json",
			handler: func(w http.ResponseWriter, r *http.Request) {
				w.Write([]byte("<html>gateway</html>"))
			},
			wantErr: errMalformedPayload,
		},
		{
			name: "success without weather section",
			handler: func(w http.ResponseWriter, r *http.Request) {
				w.Write([]byte(`{"cod":200,"name":"Paris","main":{"temp":1}}`))
			},
			wantErr: errMalformedPayload,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := newTestProvider(t, tt.handler, time.Second)
			_, err := p.CurrentByCity(context.Background(), "Paris", "k")
			if !errors.Is(err, tt.wantErr) {
				t.Fatalf("expected %v, got %v", tt.wantErr, err)
			}
		})
	}
}

func TestCurrentByCityTimeout(t *testing.T) {
	release := make(chan struct{})
	p := newTestProvider(t, func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	}, 50*time.Millisecond)
	defer close(release)

	if _, err := p.CurrentByCity(context.Background(), "Paris", "k"); err == nil {
		t.Fatalf("expected timeout error")
	}
}

func TestCurrentByCityMissingKey(t *testing.T) {
	var called atomic.Bool
	p := newTestProvider(t, func(w http.ResponseWriter, r *http.Request) {
		called.Store(true)
	}, time.Second)

	_, err := p.CurrentByCity(context.Background(), "Paris", "")
	if !errors.Is(err, errMissingKey) {
		t.Fatalf("expected missing key error, got %v", err)
	}
	if called.Load() {
		t.Fatalf("no request should be sent without a key")
	}
}

func TestStatusCodeDecoding(t *testing.T) {
	tests := []struct {
		in   string
		want int
		err  bool
	}{
		{in: `200`, want: 200},
		{in: `"404"`, want: 404},
		{in: `null`, want: 0},
		{in: `"abc"`, err: true},
	}
	for _, tt := range tests {
		var c statusCode
		err := c.UnmarshalJSON([]byte(tt.in))
		if tt.err {
			if err == nil {
				t.Errorf("%s: expected error", tt.in)
			}
			continue
		}
		if err != nil || int(c) != tt.want {
			t.Errorf("%s: expected %d, got %d (err %v)", tt.in, tt.want, c, err)
		}
	}
}

func TestRetriesUntilSuccess(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Inc() == 1 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		w.Write([]byte(parisPayload))
	}))
	defer srv.Close()

	p := NewOpenWeatherProvider(srv.Client(), OpenWeatherConfig{BaseURL: srv.URL, MaxRetries: 1}, logger.Nop())
	p.httpCfg.Backoff.InitialInterval = time.Millisecond

	report, err := p.CurrentByCity(context.Background(), "Paris", "k")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !strings.EqualFold(report.Snapshot.City, "paris") || calls.Load() != 2 {
		t.Fatalf("expected success on second attempt, got %q after %d calls", report.Snapshot.City, calls.Load())
	}
}

func TestBreakerOpensAfterServerErrors(t *testing.T) {
	var hits atomic.Int32
	p := newTestProvider(t, func(w http.ResponseWriter, r *http.Request) {
		hits.Inc()
		w.WriteHeader(http.StatusInternalServerError)
	}, time.Second)

	// The breaker trips after more than five consecutive failures.
	for i := 0; i < 6; i++ {
		if _, err := p.CurrentByCity(context.Background(), "Paris", "k"); !errors.Is(err, errServerError) {
			t.Fatalf("call %d: expected server error, got %v", i+1, err)
		}
	}
	if p.circuit.State() != gobreaker.StateOpen {
		t.Fatalf("expected open breaker, got %s", p.circuit.State())
	}

	before := hits.Load()
	if _, err := p.CurrentByCity(context.Background(), "Paris", "k"); !errors.Is(err, errCircuitOpen) {
		t.Fatalf("expected circuit open error, got %v", err)
	}
	if hits.Load() != before {
		t.Fatalf("open breaker must not reach the server")
	}

	// An open breaker surfaces to the user as an invalid city.
	c := weather.NewCoordinator(p, netcheck.Static(true), store.NewMemoryStore())
	if _, err := c.FetchWeather("Paris", "k"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := c.Wait(ctx); err != nil {
		t.Fatalf("fetch did not resolve: %v", err)
	}
	if got := c.Current(); got.State != weather.StateFailure || got.Reason != "invalid city" {
		t.Fatalf("expected invalid city failure, got %+v", got)
	}
	if hits.Load() != before {
		t.Fatalf("open breaker must not reach the server")
	}
}

func TestBreakerIgnoresNotFound(t *testing.T) {
	p := newTestProvider(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		w.Write([]byte(`{"cod":"404","message":"city not found"}`))
	}, time.Second)

	for i := 0; i < 20; i++ {
		report, err := p.CurrentByCity(context.Background(), "Atlantis", "k")
		if err != nil {
			t.Fatalf("call %d: unexpected error: %v", i+1, err)
		}
		if report.Code != 404 {
			t.Fatalf("call %d: expected code 404, got %d", i+1, report.Code)
		}
	}
	if p.circuit.State() != gobreaker.StateClosed {
		t.Fatalf("city-not-found answers must keep the breaker closed, got %s", p.circuit.State())
	}
}
