package routing

import (
	"net/http"

	"distance-matrix-batch/internal/config"
	"distance-matrix-batch/internal/ports"

	"github.com/pkg/errors"
)

// New builds the provider selected by cfg.Provider.
func New(cfg config.Routing) (ports.RouteProvider, error) {
	// Zero timeout waits for the service indefinitely.
	session := &http.Client{Timeout: cfg.Timeout}

	switch cfg.Provider {
	case "google":
		return NewGoogleProvider(session, cfg.APIKey, cfg.BaseURL, GoogleOptions{
			TrafficModel:  cfg.TrafficModel,
			DepartureTime: cfg.DepartureTime,
			Units:         cfg.Units,
			Language:      cfg.Language,
		})
	case "ors":
		return NewORSProvider(session, cfg.APIKey, cfg.BaseURL, cfg.Profile, cfg.Units)
	default:
		return nil, errors.Errorf("unknown routing provider %q", cfg.Provider)
	}
}
