package telemetry

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"
)

// Number is a lenient JSON numeric field. It accepts numbers, finite numeric
// strings, booleans and null; anything else fails decoding.
type Number struct {
	Value float64
	Set   bool
}

func (n *Number) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		*n = Number{}
		return nil
	}

	switch data[0] {
	case '"':
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		f, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
		if err != nil {
			return fmt.Errorf("could not convert string to float: %q", s)
		}
		// ParseFloat accepts "NaN" and "Inf", which JSON cannot carry back out
		if math.IsNaN(f) || math.IsInf(f, 0) {
			return fmt.Errorf("non-finite number not allowed: %q", s)
		}
		*n = Number{Value: f, Set: true}
		return nil
	case 't', 'f':
		var b bool
		if err := json.Unmarshal(data, &b); err != nil {
			return err
		}
		if b {
			*n = Number{Value: 1, Set: true}
		} else {
			*n = Number{Value: 0, Set: true}
		}
		return nil
	}

	var f float64
	if err := json.Unmarshal(data, &f); err != nil {
		return fmt.Errorf("expected a number, got %s", string(data))
	}
	*n = Number{Value: f, Set: true}
	return nil
}

// Or returns the decoded value, or def when the field was absent or null.
func (n Number) Or(def float64) float64 {
	if !n.Set {
		return def
	}
	return n.Value
}

// Decode reads a JSON object from body into dst. An empty body leaves dst
// untouched so every field keeps its default.
func Decode(body []byte, dst any) error {
	if len(bytes.TrimSpace(body)) == 0 {
		return nil
	}
	if err := json.Unmarshal(body, dst); err != nil {
		return fmt.Errorf("decode payload: %w", err)
	}
	return nil
}
