// Package view renders weather outcomes into the texts shown on the
// weather card.
package view

import (
	"fmt"
	"strconv"
	"strings"
	"time"
	"unicode"
	"unicode/utf8"

	"github.com/i474232898/skywatch/internal/weather"
)

// Card is the rendered form of an Outcome.
type Card struct {
	State      weather.State       `json:"state"`
	Message    string              `json:"message,omitempty"`
	Kind       weather.FailureKind `json:"kind,omitempty"`
	City       string              `json:"city,omitempty"`
	RequestID  string              `json:"requestId,omitempty"`
	ResolvedAt *time.Time          `json:"resolvedAt,omitempty"`
	Weather    *Fields             `json:"weather,omitempty"`
}

// Fields holds one display string per weather card.
type Fields struct {
	City        string `json:"city"`
	Temperature string `json:"temperature"`
	Humidity    string `json:"humidity"`
	Condition   string `json:"condition"`
	WindSpeed   string `json:"windSpeed"`
	Cloudiness  string `json:"cloudiness"`
	Pressure    string `json:"pressure"`
	Visibility  string `json:"visibility"`
	Sunrise     string `json:"sunrise"`
	Sunset      string `json:"sunset"`
}

// Render converts o into a Card, formatting clock times in loc.
func Render(o weather.Outcome, loc *time.Location) Card {
	card := Card{State: o.State}
	if o.IsEmpty() {
		return card
	}

	card.City = o.City
	card.RequestID = o.RequestID
	if !o.ResolvedAt.IsZero() {
		ts := o.ResolvedAt
		card.ResolvedAt = &ts
	}

	switch o.State {
	case weather.StateFailure:
		card.Message = o.Reason
		card.Kind = o.Kind
	case weather.StateSuccess:
		if o.Snapshot != nil {
			f := RenderSnapshot(*o.Snapshot, loc)
			card.Weather = &f
		}
	}
	return card
}

// RenderSnapshot formats every field of s.
func RenderSnapshot(s weather.WeatherSnapshot, loc *time.Location) Fields {
	if loc == nil {
		loc = time.Local
	}
	return Fields{
		City:        s.City,
		Temperature: Temperature(s.TemperatureC),
		Humidity:    fmt.Sprintf("%d%%", s.HumidityPct),
		Condition:   capitalize(s.Condition),
		WindSpeed:   decimal(s.WindSpeedMS) + " m/s",
		Cloudiness:  fmt.Sprintf("%d%%", s.CloudinessPct),
		Pressure:    fmt.Sprintf("%d hPa", s.PressureHpa),
		Visibility:  fmt.Sprintf("%d km", s.VisibilityM/1000),
		Sunrise:     clock(s.SunriseTime(), loc),
		Sunset:      clock(s.SunsetTime(), loc),
	}
}

// Temperature renders Celsius with its Fahrenheit equivalent, e.g.
// "21.5°C (70.7°F)".
func Temperature(celsius float64) string {
	return fmt.Sprintf("%.1f°C (%.1f°F)", celsius, Fahrenheit(celsius))
}

// Fahrenheit converts Celsius to Fahrenheit.
func Fahrenheit(celsius float64) float64 {
	return celsius*9/5 + 32
}

// decimal prints the shortest exact form of v with at least one fractional
// digit, so 3 reads "3.0" and 3.6 reads "3.6".
func decimal(v float64) string {
	s := strconv.FormatFloat(v, 'f', -1, 64)
	if !strings.ContainsAny(s, ".NI") {
		s += ".0"
	}
	return s
}

func clock(t time.Time, loc *time.Location) string {
	return t.In(loc).Format("03:04 PM")
}

func capitalize(s string) string {
	r, size := utf8.DecodeRuneInString(s)
	if r == utf8.RuneError {
		return s
	}
	return string(unicode.ToTitle(r)) + s[size:]
}
