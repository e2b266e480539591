package weather

import (
	"context"
)

// CodeOK is the status code OpenWeatherMap embeds in a successful payload.
const CodeOK = 200

// Report is a provider's answer to one current-weather request.
// Snapshot is only meaningful when OK reports true.
type Report struct {
	Code     int
	Message  string
	Snapshot WeatherSnapshot
}

// OK reports whether the embedded status code is the success code.
func (r Report) OK() bool { return r.Code == CodeOK }

// Provider abstracts a "current weather by city name" data source.
type Provider interface {
	Name() string
	CurrentByCity(ctx context.Context, city, credential string) (Report, error)
}

// Reachability answers whether an internet-capable network is active.
// Implementations must not block.
type Reachability interface {
	InternetReachable() bool
}

// OutcomeStore holds the current outcome and fans publications out to observers.
type OutcomeStore interface {
	Publish(o Outcome)
	PublishIfNewer(o Outcome) bool
	Current() Outcome
	Subscribe() (<-chan Outcome, func())
}
