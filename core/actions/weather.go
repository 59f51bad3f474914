package actions

import (
	"context"
	"fmt"
	"regexp"
	"strings"
)

// WeatherSource provides the current conditions for a location.
type WeatherSource interface {
	Current(ctx context.Context, location string) (string, error)
}

// WeatherParams are the arguments of the weather lookup action.
type WeatherParams struct {
	Location string `json:"location" jsonschema:"description=Location for weather information"`
}

var defaultWeatherFillers = []string{
	"Checking the weather for you.",
	"Let me fetch the current weather conditions.",
	"Weather update coming right up.",
}

var locationSanitizer = regexp.MustCompile(`[^a-zA-Z0-9\s]+`)

// NewWeatherAction builds the weather lookup action. Lookup failures are
// reported as a user-facing apology naming the requested location; they
// never escape as errors.
func NewWeatherAction(source WeatherSource, opts ...Option) Action {
	opts = append([]Option{WithFillers(defaultWeatherFillers...)}, opts...)

	return New(
		"get_weather",
		"Retrieve weather information for a specified location.",
		func(ctx context.Context, params WeatherParams) (string, error) {
			location := strings.TrimSpace(locationSanitizer.ReplaceAllString(params.Location, ""))

			conditions, err := source.Current(ctx, location)
			if err != nil {
				logger.WarnContext(ctx, "weather lookup failed", "location", location, "error", err)
				return fmt.Sprintf("Sorry, I couldn't retrieve the weather for %s.", location), nil
			}

			return conditions, nil
		},
		opts...,
	)
}
