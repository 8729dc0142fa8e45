package geo

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"
)

// EarthRadiusMeters is the mean Earth radius used by DistanceMeters.
const EarthRadiusMeters = 6371 * 1000.0

// DistanceMeters returns the great-circle distance between two points given
// in degrees, using the haversine formula on a spherical Earth.
func DistanceMeters(lat1, lon1, lat2, lon2 float64) float64 {
	phi1 := toRadians(lat1)
	phi2 := toRadians(lat2)
	dPhi := toRadians(lat2 - lat1)
	dLambda := toRadians(lon2 - lon1)

	a := math.Sin(dPhi/2)*math.Sin(dPhi/2) +
		math.Cos(phi1)*math.Cos(phi2)*math.Sin(dLambda/2)*math.Sin(dLambda/2)
	c := 2 * math.Atan2(math.Sqrt(a), math.Sqrt(1-a))
	return EarthRadiusMeters * c
}

func toRadians(deg float64) float64 {
	return deg * math.Pi / 180
}

// decimalWrapper is the extended-JSON shape the backend uses for Decimal128 fields.
type decimalWrapper struct {
	NumberDecimal *string `json:"$numberDecimal"`
}

// ParseCoordinate normalizes a coordinate as sent by the backend into a float.
// Accepted encodings: a JSON number, a numeric string, and {"$numberDecimal": "..."}.
func ParseCoordinate(raw json.RawMessage) (float64, error) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return 0, fmt.Errorf("empty coordinate")
	}

	switch raw[0] {
	case '{':
		var w decimalWrapper
		if err := json.Unmarshal(raw, &w); err != nil {
			return 0, fmt.Errorf("failed to decode decimal coordinate: %w", err)
		}
		if w.NumberDecimal == nil {
			return 0, fmt.Errorf("coordinate object has no $numberDecimal field")
		}
		return parseFloat(*w.NumberDecimal)
	case '"':
		var s string
		if err := json.Unmarshal(raw, &s); err != nil {
			return 0, fmt.Errorf("failed to decode coordinate string: %w", err)
		}
		return parseFloat(s)
	default:
		var f float64
		if err := json.Unmarshal(raw, &f); err != nil {
			return 0, fmt.Errorf("failed to decode coordinate number: %w", err)
		}
		return f, nil
	}
}

func parseFloat(s string) (float64, error) {
	f, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil {
		return 0, fmt.Errorf("invalid coordinate '%s': %w", s, err)
	}
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, fmt.Errorf("invalid coordinate '%s'", s)
	}
	return f, nil
}
