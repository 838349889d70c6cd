package weather

import (
	"context"
	"fmt"
	"strings"

	"github.com/harun/skycast/pkg/tool"
	"github.com/rs/zerolog/log"
)

// Report status values
const (
	StatusSuccess = "success"
	StatusError   = "error"
)

// Report is the structured outcome of a weather lookup. Unknown cities are
// reported through Status/ErrorMessage, never as a Go error.
type Report struct {
	Status       string `json:"status"`
	Report       string `json:"report,omitempty"`
	ErrorMessage string `json:"error_message,omitempty"`
}

// reports maps normalized city names to canned weather reports.
// Read-only for the lifetime of the process.
var reports = map[string]string{
	"newyork": "The weather in New York is sunny with a temperature of 25°C.",
	"london":  "The weather in London is cloudy with a temperature of 15°C.",
	"tokyo":   "The weather in Tokyo is rainy with a temperature of 18°C.",
}

// normalize lowercases the city name and removes spaces
func normalize(city string) string {
	return strings.ReplaceAll(strings.ToLower(city), " ", "")
}

// Lookup returns the weather report for a city. Total function: misses come
// back as an error report carrying the original, non-normalized input.
func Lookup(city string) Report {
	key := normalize(city)

	log.Debug().Str("city", city).Str("key", key).Msg("Weather lookup")

	if report, ok := reports[key]; ok {
		return Report{Status: StatusSuccess, Report: report}
	}

	return Report{
		Status:       StatusError,
		ErrorMessage: fmt.Sprintf("Weather information for '%s' is not available.", city),
	}
}

// Cities returns the normalized city keys with known reports
func Cities() []string {
	cities := make([]string, 0, len(reports))
	for city := range reports {
		cities = append(cities, city)
	}
	return cities
}

// Definition returns the get_weather tool definition for agent use
func Definition() tool.Definition {
	return tool.Definition{
		Name:        "get_weather",
		Description: "Retrieves the current weather report for a specified city.",
		Parameters: []tool.Parameter{
			{
				Name:        "city",
				Type:        "string",
				Description: "The name of the city for which to retrieve the weather report.",
				Required:    true,
			},
		},
		Handler: func(ctx context.Context, params map[string]interface{}) (interface{}, error) {
			city, _ := params["city"].(string)
			return Lookup(city), nil
		},
	}
}

// Register adds the weather tool to a registry
func Register(registry *tool.Registry) error {
	if registry == nil {
		return fmt.Errorf("tool registry is required")
	}
	return registry.Register(Definition())
}
