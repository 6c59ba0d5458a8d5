package routing

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/url"
	"strings"

	"distance-matrix-batch/internal/domain"
	"distance-matrix-batch/internal/platform/obs"
	"distance-matrix-batch/internal/ports"

	"github.com/pkg/errors"
)

const googleBaseURL = "https://maps.googleapis.com"

// Directions API statuses other than OK.
var (
	ErrZeroResults    = errors.New("directions: no route between origin and destination")
	ErrNotFound       = errors.New("directions: origin or destination could not be geocoded")
	ErrOverQueryLimit = errors.New("directions: over query limit")
	ErrRequestDenied  = errors.New("directions: request denied")
	ErrInvalidRequest = errors.New("directions: invalid request")
	ErrUnknownError   = errors.New("directions: unknown server error")
)

var googleStatusErrors = map[string]error{
	"ZERO_RESULTS":     ErrZeroResults,
	"NOT_FOUND":        ErrNotFound,
	"OVER_QUERY_LIMIT": ErrOverQueryLimit,
	"REQUEST_DENIED":   ErrRequestDenied,
	"INVALID_REQUEST":  ErrInvalidRequest,
	"UNKNOWN_ERROR":    ErrUnknownError,
}

// GoogleOptions are the optional Directions request parameters. Empty values
// are not sent.
type GoogleOptions struct {
	TrafficModel  string
	DepartureTime string
	Units         string
	Language      string
}

// GoogleProvider implements RouteProvider with the Google Maps Directions API.
// The provider is safe for concurrent use.
type GoogleProvider struct {
	client
	apiKey  string
	baseURL string
	opts    GoogleOptions
}

func NewGoogleProvider(session *http.Client, apiKey, baseURL string, opts GoogleOptions) (*GoogleProvider, error) {
	if apiKey == "" {
		return nil, errors.New("google api key is empty")
	}
	if baseURL == "" {
		baseURL = googleBaseURL
	}

	return &GoogleProvider{
		client:  client{session: session},
		apiKey:  apiKey,
		baseURL: strings.TrimRight(baseURL, "/"),
		opts:    opts,
	}, nil
}

type textValue struct {
	Text  string `json:"text"`
	Value *int   `json:"value"`
}

type directionsResponse struct {
	Status       string            `json:"status"`
	ErrorMessage string            `json:"error_message"`
	Routes       []json.RawMessage `json:"routes"`
}

type directionsRoute struct {
	Legs []struct {
		Distance *textValue `json:"distance"`
		Duration *textValue `json:"duration"`
	} `json:"legs"`
}

func (g *GoogleProvider) Route(ctx context.Context, q ports.RouteQuery) (_ ports.RouteResult, err error) {
	defer obs.Time(ctx, "google.Route")(&err)

	params := url.Values{}
	params.Set("origin", q.Origin())
	params.Set("destination", q.Destination())
	params.Set("mode", "driving")
	params.Set("key", g.apiKey)
	if g.opts.TrafficModel != "" {
		params.Set("traffic_model", g.opts.TrafficModel)
	}
	if g.opts.DepartureTime != "" {
		params.Set("departure_time", g.opts.DepartureTime)
	}
	if g.opts.Units != "" {
		params.Set("units", g.opts.Units)
	}
	if g.opts.Language != "" {
		params.Set("language", g.opts.Language)
	}

	req, err := g.newRequest(ctx, http.MethodGet, g.baseURL+"/maps/api/directions/json?"+params.Encode(), nil)
	if err != nil {
		return ports.RouteResult{}, domain.Fail(domain.CauseInput, err)
	}

	var resp directionsResponse
	if err := g.getJSON(req, &resp); err != nil {
		return ports.RouteResult{}, errors.Wrapf(err, "google directions %q -> %q", q.Origin(), q.Destination())
	}

	return parseDirections(resp)
}

func parseDirections(resp directionsResponse) (ports.RouteResult, error) {
	if resp.Status != "OK" {
		statusErr, ok := googleStatusErrors[resp.Status]
		if !ok {
			statusErr = errors.Errorf("directions: unexpected status %q", resp.Status)
		}
		if resp.ErrorMessage != "" {
			statusErr = errors.Wrap(statusErr, resp.ErrorMessage)
		}
		return ports.RouteResult{}, domain.Fail(domain.CauseService, statusErr)
	}

	if len(resp.Routes) == 0 {
		return ports.RouteResult{}, domain.Fail(domain.CauseService, ErrZeroResults)
	}

	var route directionsRoute
	if err := json.Unmarshal(resp.Routes[0], &route); err != nil {
		return ports.RouteResult{}, domain.Fail(domain.CauseParse, errors.Wrap(err, "decode route"))
	}
	if len(route.Legs) == 0 {
		return ports.RouteResult{}, domain.Fail(domain.CauseParse, errors.New("route has no legs"))
	}

	leg := route.Legs[0]
	if leg.Distance == nil || leg.Duration == nil || leg.Duration.Value == nil {
		return ports.RouteResult{}, domain.Fail(domain.CauseParse, errors.New("leg lacks distance or duration"))
	}
	if strings.TrimSpace(leg.Distance.Text) == "" || strings.TrimSpace(leg.Duration.Text) == "" {
		return ports.RouteResult{}, domain.Fail(domain.CauseParse, errors.New("leg has empty distance or duration text"))
	}

	var raw bytes.Buffer
	if err := json.Compact(&raw, resp.Routes[0]); err != nil {
		return ports.RouteResult{}, domain.Fail(domain.CauseParse, errors.Wrap(err, "compact route"))
	}

	result := ports.RouteResult{
		DistanceText:    leg.Distance.Text,
		DurationText:    leg.Duration.Text,
		DurationSeconds: *leg.Duration.Value,
		Raw:             raw.Bytes(),
	}
	if leg.Distance.Value != nil {
		result.DistanceMeters = *leg.Distance.Value
	}

	return result, nil
}
