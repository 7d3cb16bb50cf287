// Package locationcodec reads and writes the event_location field. A location is either free
// text or a "geo::" prefixed, URL-encoded JSON payload carrying an address and its coordinates.
package locationcodec

import (
	"encoding/json"
	"net/url"
	"strconv"
	"strings"

	"github.com/lintang-b-s/eventradar/pkg/util"
)

const (
	Prefix        = "geo::"
	EncodeVersion = 1

	// max rounds of URL-decoding tried while looking for the prefix or the payload
	maxDecodeRounds = 3
)

type Payload struct {
	Address   string  `json:"address"`
	Longitude float64 `json:"longitude"`
	Latitude  float64 `json:"latitude"`
}

type rawPayload struct {
	V         int     `json:"v"`
	Address   string  `json:"address"`
	Longitude float64 `json:"longitude"`
	Latitude  float64 `json:"latitude"`
}

type DecodedLocation struct {
	Address   string
	Longitude *float64
	Latitude  *float64
	IsEncoded bool
}

// HasCoordinates reports whether both coordinates were present and finite.
func (d *DecodedLocation) HasCoordinates() bool {
	return d != nil && d.Longitude != nil && d.Latitude != nil
}

// Encode returns "geo::" + the URL-encoded JSON payload.
func Encode(p Payload) (string, error) {
	b, err := json.Marshal(rawPayload{
		V:         EncodeVersion,
		Address:   p.Address,
		Longitude: p.Longitude,
		Latitude:  p.Latitude,
	})
	if err != nil {
		return "", err
	}
	return Prefix + escapeComponent(string(b)), nil
}

// Decode parses an event_location value. nil for an empty value.
func Decode(value string) *DecodedLocation {
	if value == "" {
		return nil
	}

	resolved, ok := resolvePrefixed(value)
	if !ok {
		return &DecodedLocation{Address: value}
	}

	payload := decodeWithFallbacks(strings.TrimPrefix(resolved, Prefix))
	if payload == nil {
		return &DecodedLocation{Address: resolved}
	}

	address := value
	if a, ok := payload["address"].(string); ok {
		address = a
	}

	return &DecodedLocation{
		Address:   address,
		Longitude: numberField(payload["longitude"]),
		Latitude:  numberField(payload["latitude"]),
		IsEncoded: true,
	}
}

// DisplayText returns the human readable address of an event_location value, "" when empty.
func DisplayText(value string) string {
	d := Decode(value)
	if d == nil {
		return ""
	}
	return d.Address
}

func resolvePrefixed(value string) (string, bool) {
	current := value
	for i := 0; i < maxDecodeRounds; i++ {
		if strings.HasPrefix(current, Prefix) {
			return current, true
		}
		next, err := url.PathUnescape(current)
		if err != nil {
			return "", false
		}
		current = next
	}
	return current, strings.HasPrefix(current, Prefix)
}

func decodeWithFallbacks(value string) map[string]any {
	attempts := []string{value}
	current := value
	for i := 0; i < maxDecodeRounds; i++ {
		next, err := url.PathUnescape(current)
		if err != nil {
			break
		}
		current = next
		attempts = append(attempts, current)
	}

	for _, candidate := range attempts {
		var parsed map[string]any
		if err := json.Unmarshal([]byte(candidate), &parsed); err == nil && parsed != nil {
			return parsed
		}
	}
	return nil
}

// numberField accepts JSON numbers and numeric strings. nil when missing or not finite.
func numberField(v any) *float64 {
	var f float64
	switch x := v.(type) {
	case float64:
		f = x
	case string:
		parsed, err := strconv.ParseFloat(strings.TrimSpace(x), 64)
		if err != nil {
			return nil
		}
		f = parsed
	default:
		return nil
	}
	if !util.IsFinite(f) {
		return nil
	}
	return &f
}

// escapeComponent escapes like encodeURIComponent: spaces become %20, not '+'.
func escapeComponent(s string) string {
	return strings.ReplaceAll(url.QueryEscape(s), "+", "%20")
}
