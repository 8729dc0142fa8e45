package model

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"

	"github.com/harrisonrobin/fieldtask/pkg/geo"
)

// Ref is a reference from one document to another. The backend sends either
// a bare id string or a populated object.
type Ref struct {
	ID   string `json:"_id"`
	Name string `json:"name,omitempty"`
}

// Empty reports whether the reference points nowhere.
func (r Ref) Empty() bool {
	return r.ID == ""
}

// Label returns something printable for the referenced document.
func (r Ref) Label() string {
	if r.Name != "" {
		return r.Name
	}
	if r.ID != "" {
		return r.ID
	}
	return "N/A"
}

// MarshalJSON writes the reference as an object, or null when empty.
func (r Ref) MarshalJSON() ([]byte, error) {
	if r.Empty() {
		return []byte("null"), nil
	}
	type ref Ref
	return json.Marshal(ref(r))
}

// UnmarshalJSON accepts null, "id" and {"_id"|"id", "name"|"title"|"order_number"}.
func (r *Ref) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	*r = Ref{}
	if len(b) == 0 || bytes.Equal(b, []byte("null")) {
		return nil
	}
	if b[0] == '"' {
		return json.Unmarshal(b, &r.ID)
	}
	var obj struct {
		ID          string `json:"_id"`
		LegacyID    string `json:"id"`
		Name        string `json:"name"`
		Title       string `json:"title"`
		OrderNumber string `json:"order_number"`
	}
	if err := json.Unmarshal(b, &obj); err != nil {
		return fmt.Errorf("failed to decode reference: %w", err)
	}
	r.ID = firstNonEmpty(obj.ID, obj.LegacyID)
	r.Name = firstNonEmpty(obj.Name, obj.Title, obj.OrderNumber)
	return nil
}

// Coordinate is a latitude or longitude in degrees.
type Coordinate float64

// Float returns the coordinate as a float64; nil reads as ok=false.
func (c *Coordinate) Float() (float64, bool) {
	if c == nil {
		return 0, false
	}
	return float64(*c), true
}

// MarshalJSON writes a plain JSON number.
func (c Coordinate) MarshalJSON() ([]byte, error) {
	return []byte(strconv.FormatFloat(float64(c), 'f', -1, 64)), nil
}

// UnmarshalJSON accepts plain numbers and {"$numberDecimal": "..."}.
func (c *Coordinate) UnmarshalJSON(b []byte) error {
	f, err := geo.ParseCoordinate(b)
	if err != nil {
		return err
	}
	*c = Coordinate(f)
	return nil
}

// CoordinatePtr is a convenience for building projects in code.
func CoordinatePtr(f float64) *Coordinate {
	c := Coordinate(f)
	return &c
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
