package routing

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"strings"

	"distance-matrix-batch/internal/domain"
	"distance-matrix-batch/internal/platform/obs"
	"distance-matrix-batch/internal/ports"

	"github.com/pkg/errors"
)

const (
	orsBaseURL = "https://api.openrouteservice.org"
	orsProfile = "driving-car"
)

// ORSProvider implements RouteProvider using the OpenRouteService directions
// endpoint. Display texts are formatted locally from meters and seconds.
type ORSProvider struct {
	client
	baseURL string
	profile string
	units   string
}

func NewORSProvider(session *http.Client, apiKey, baseURL, profile, units string) (*ORSProvider, error) {
	if apiKey == "" {
		return nil, errors.New("ORS api key is empty")
	}
	if baseURL == "" {
		baseURL = orsBaseURL
	}
	if profile == "" {
		profile = orsProfile
	}

	header := http.Header{}
	header.Set("Authorization", apiKey)

	return &ORSProvider{
		client:  client{session: session, header: header},
		baseURL: strings.TrimRight(baseURL, "/"),
		profile: profile,
		units:   units,
	}, nil
}

type orsDirectionsRequest struct {
	Coordinates [][]float64 `json:"coordinates"`
}

type orsDirectionsResponse struct {
	Routes []json.RawMessage `json:"routes"`
}

type orsRoute struct {
	Segments []struct {
		Distance *float64 `json:"distance"`
		Duration *float64 `json:"duration"`
	} `json:"segments"`
}

func (o *ORSProvider) Route(ctx context.Context, q ports.RouteQuery) (_ ports.RouteResult, err error) {
	defer obs.Time(ctx, "ors.Route")(&err)

	from, to, err := q.Coordinates()
	if err != nil {
		return ports.RouteResult{}, domain.Fail(domain.CauseInput, err)
	}

	body, err := json.Marshal(orsDirectionsRequest{
		Coordinates: [][]float64{from.CoordsToList(), to.CoordsToList()},
	})
	if err != nil {
		return ports.RouteResult{}, domain.Fail(domain.CauseInput, errors.Wrap(err, "marshal ORS directions request"))
	}

	req, err := o.newRequest(ctx, http.MethodPost, o.baseURL+"/v2/directions/"+o.profile, bytes.NewReader(body))
	if err != nil {
		return ports.RouteResult{}, domain.Fail(domain.CauseInput, err)
	}

	var resp orsDirectionsResponse
	if err := o.getJSON(req, &resp); err != nil {
		return ports.RouteResult{}, errors.Wrapf(err, "ORS directions %q -> %q", q.Origin(), q.Destination())
	}

	return o.parse(resp)
}

func (o *ORSProvider) parse(resp orsDirectionsResponse) (ports.RouteResult, error) {
	if len(resp.Routes) == 0 {
		return ports.RouteResult{}, domain.Fail(domain.CauseService, errors.New("ORS returned no routes"))
	}

	var route orsRoute
	if err := json.Unmarshal(resp.Routes[0], &route); err != nil {
		return ports.RouteResult{}, domain.Fail(domain.CauseParse, errors.Wrap(err, "decode ORS route"))
	}
	if len(route.Segments) == 0 {
		return ports.RouteResult{}, domain.Fail(domain.CauseParse, errors.New("ORS route has no segments"))
	}

	seg := route.Segments[0]
	if seg.Distance == nil || seg.Duration == nil {
		return ports.RouteResult{}, domain.Fail(domain.CauseParse, errors.New("ORS segment lacks distance or duration"))
	}

	var raw bytes.Buffer
	if err := json.Compact(&raw, resp.Routes[0]); err != nil {
		return ports.RouteResult{}, domain.Fail(domain.CauseParse, errors.Wrap(err, "compact ORS route"))
	}

	meters := int(*seg.Distance + 0.5)
	seconds := int(*seg.Duration + 0.5)

	return ports.RouteResult{
		DistanceText:    FormatDistance(meters, o.units),
		DurationText:    FormatDuration(seconds),
		DistanceMeters:  meters,
		DurationSeconds: seconds,
		Raw:             raw.Bytes(),
	}, nil
}
