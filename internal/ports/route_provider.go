package ports

import (
	"context"
	"distance-matrix-batch/internal/domain"
	"encoding/json"

	"github.com/pkg/errors"
)

// Two points to route between, as read from the input row.
type RouteQuery struct {
	FromLat string
	FromLon string
	ToLat   string
	ToLon   string
}

// Origin returns the "lat, long" text of the start point.
func (q RouteQuery) Origin() string { return q.FromLat + ", " + q.FromLon }

// Destination returns the "lat, long" text of the end point.
func (q RouteQuery) Destination() string { return q.ToLat + ", " + q.ToLon }

// Coordinates parses both points. Providers that need numeric input call this.
func (q RouteQuery) Coordinates() (from, to domain.Coordinates, err error) {
	from, err = domain.ParseCoordinates(q.FromLat, q.FromLon)
	if err != nil {
		return from, to, errors.Wrap(err, "origin")
	}

	to, err = domain.ParseCoordinates(q.ToLat, q.ToLon)
	if err != nil {
		return from, to, errors.Wrap(err, "destination")
	}

	return from, to, nil
}

// First leg of the first route returned by the routing service.
// Raw holds the whole first route as received, compact JSON.
type RouteResult struct {
	DistanceText    string
	DurationText    string
	DistanceMeters  int
	DurationSeconds int
	Raw             json.RawMessage
}

// Contract for retrieving a driving route between two points.
type RouteProvider interface {
	// Route returns the first leg of the first driving route. Errors are
	// tagged with a domain.Cause.
	Route(ctx context.Context, q RouteQuery) (RouteResult, error)
}
