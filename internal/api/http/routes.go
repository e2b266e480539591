package httpapi

import (
	"errors"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/utils"

	"github.com/i474232898/skywatch/internal/view"
	"github.com/i474232898/skywatch/internal/weather"
)

// maxWait bounds how long GET /weather/current may hold a request open.
const maxWait = 30 * time.Second

var validate = validator.New()

var errInvalidCity = errors.New("please enter a valid city name")

// Coordinator is the part of weather.Coordinator the routes depend on.
type Coordinator interface {
	FetchWeather(city, credential string) (string, error)
	Current() weather.Outcome
	Subscribe() (<-chan weather.Outcome, func())
}

// Options configures the routes.
type Options struct {
	// Credential is passed to every fetch.
	Credential string
	// Location is used to format sunrise and sunset.
	Location *time.Location
}

// RegisterRoutes wires the HTTP handlers into the Fiber app.
func RegisterRoutes(app *fiber.App, coord Coordinator, opts Options) {
	loc := opts.Location
	if loc == nil {
		loc = time.Local
	}

	v1 := app.Group("/api/v1")

	v1.Post("/weather/search", func(c *fiber.Ctx) error {
		var req searchRequest
		if err := req.bind(c); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, err.Error())
		}

		id, err := coord.FetchWeather(req.City, opts.Credential)
		if errors.Is(err, weather.ErrClosed) {
			return fiber.NewError(fiber.StatusServiceUnavailable, err.Error())
		}
		if err != nil {
			return err
		}
		return c.Status(fiber.StatusAccepted).JSON(fiber.Map{
			"requestId": id,
			"city":      req.City,
		})
	})

	v1.Get("/weather/current", func(c *fiber.Ctx) error {
		wait, err := parseWait(c.Query("wait"))
		if err != nil {
			return fiber.NewError(fiber.StatusBadRequest, err.Error())
		}

		if wait > 0 {
			updates, cancel := coord.Subscribe()
			defer cancel()

			timer := time.NewTimer(wait)
			defer timer.Stop()

			select {
			case <-updates:
			case <-timer.C:
			case <-c.Context().Done():
			}
		}

		return c.JSON(view.Render(coord.Current(), loc))
	})
}

// searchRequest holds the city typed into the search box.
type searchRequest struct {
	City string `json:"city" validate:"required"`
}

// bind reads the city from a JSON body or the "city" query parameter and
// trims it. Whitespace-only input fails validation. The city outlives the
// request, so it is copied out of fiber's reusable buffers.
func (r *searchRequest) bind(c *fiber.Ctx) error {
	if len(c.Body()) > 0 {
		if err := c.BodyParser(r); err != nil {
			return errInvalidCity
		}
	}
	if r.City == "" {
		r.City = c.Query("city")
	}
	r.City = utils.CopyString(strings.TrimSpace(r.City))

	if err := validate.Struct(r); err != nil {
		return errInvalidCity
	}
	return nil
}

// parseWait accepts a Go duration ("5s") or whole seconds ("5").
func parseWait(s string) (time.Duration, error) {
	if s == "" {
		return 0, nil
	}

	d, err := time.ParseDuration(s)
	if err != nil {
		d, err = time.ParseDuration(s + "s")
		if err != nil {
			return 0, errors.New("invalid wait; use a duration such as 5s")
		}
	}
	if d < 0 {
		return 0, errors.New("wait must not be negative")
	}
	if d > maxWait {
		d = maxWait
	}
	return d, nil
}
