package domain

import (
	"math"
	"strconv"
	"strings"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geo"
	"github.com/pkg/errors"
)

// Immutable geographic coordinates (longitude, latitude).
type Coordinates struct {
	Lon float64
	Lat float64
}

// Return coordinates as [lon, lat] for external API compatibility.
func (c Coordinates) CoordsToList() []float64 { return []float64{c.Lon, c.Lat} }

// Point returns the coordinates as an orb point (x=lon, y=lat).
func (c Coordinates) Point() orb.Point { return orb.Point{c.Lon, c.Lat} }

// ParseCoordinates parses a latitude/longitude pair of decimal strings.
// A comma decimal separator ("33,7") is accepted.
func ParseCoordinates(lat, lon string) (Coordinates, error) {
	la, err := parseDegrees(lat)
	if err != nil {
		return Coordinates{}, errors.Wrapf(err, "parse latitude %q", lat)
	}
	lo, err := parseDegrees(lon)
	if err != nil {
		return Coordinates{}, errors.Wrapf(err, "parse longitude %q", lon)
	}

	if la < -90 || la > 90 {
		return Coordinates{}, errors.Errorf("latitude %v out of range [-90, 90]", la)
	}
	if lo < -180 || lo > 180 {
		return Coordinates{}, errors.Errorf("longitude %v out of range [-180, 180]", lo)
	}

	return Coordinates{Lon: lo, Lat: la}, nil
}

func parseDegrees(s string) (float64, error) {
	s = strings.TrimSpace(strings.ReplaceAll(s, ",", "."))
	if s == "" {
		return 0, errors.New("empty value")
	}

	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, errors.WithStack(err)
	}
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, errors.Errorf("not a finite number: %q", s)
	}

	return v, nil
}

// StraightLineMeters returns the great-circle distance between a and b in meters.
func StraightLineMeters(a, b Coordinates) float64 {
	return geo.Distance(a.Point(), b.Point())
}
