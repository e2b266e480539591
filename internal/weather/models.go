package weather

import (
	"time"
)

// Failure reasons shown to the user. Every fault other than missing
// connectivity collapses into MsgInvalidCity.
const (
	MsgNoConnectivity = "no internet connection"
	MsgInvalidCity    = "invalid city"
)

// State is the variant of an Outcome.
type State string

const (
	StateEmpty   State = "empty"
	StateSuccess State = "success"
	StateFailure State = "failure"
)

// FailureKind classifies a failed outcome.
type FailureKind string

const (
	FailureNone           FailureKind = ""
	FailureNoConnectivity FailureKind = "no_connectivity"
	FailureInvalidCity    FailureKind = "invalid_city"
)

// WeatherSnapshot is the parsed current weather for one city at fetch time.
// It is only built from a complete provider payload.
type WeatherSnapshot struct {
	City          string  `json:"city"`
	TemperatureC  float64 `json:"temperatureC"`
	HumidityPct   int     `json:"humidityPercent"`
	Condition     string  `json:"condition"`
	WindSpeedMS   float64 `json:"windSpeed"`
	CloudinessPct int     `json:"cloudinessPercent"`
	PressureHpa   int     `json:"pressureHpa"`
	VisibilityM   int     `json:"visibilityMeters"`
	Sunrise       int64   `json:"sunrise"` // unix seconds
	Sunset        int64   `json:"sunset"`  // unix seconds
}

// SunriseTime returns Sunrise as a UTC time.
func (s WeatherSnapshot) SunriseTime() time.Time {
	return time.Unix(s.Sunrise, 0).UTC()
}

// SunsetTime returns Sunset as a UTC time.
func (s WeatherSnapshot) SunsetTime() time.Time {
	return time.Unix(s.Sunset, 0).UTC()
}

// Outcome is the result of one fetch attempt. Snapshot is set only for
// StateSuccess, Reason and Kind only for StateFailure.
type Outcome struct {
	State      State            `json:"state"`
	Snapshot   *WeatherSnapshot `json:"snapshot,omitempty"`
	Reason     string           `json:"reason,omitempty"`
	Kind       FailureKind      `json:"kind,omitempty"`
	City       string           `json:"city,omitempty"`
	RequestID  string           `json:"requestId,omitempty"`
	Seq        uint64           `json:"seq"`
	ResolvedAt time.Time        `json:"resolvedAt"`
}

// Empty is the outcome before any fetch has resolved.
func Empty() Outcome {
	return Outcome{State: StateEmpty}
}

// Success wraps a snapshot.
func Success(snapshot WeatherSnapshot) Outcome {
	return Outcome{State: StateSuccess, Snapshot: &snapshot}
}

// Failure builds a failed outcome with the user-facing reason for kind.
func Failure(kind FailureKind) Outcome {
	reason := MsgInvalidCity
	if kind == FailureNoConnectivity {
		reason = MsgNoConnectivity
	}
	return Outcome{State: StateFailure, Reason: reason, Kind: kind}
}

// IsEmpty reports whether no fetch has resolved yet.
func (o Outcome) IsEmpty() bool { return o.State == StateEmpty }
