// Package tags normalizes raw OSM way tag dictionaries into the typed
// fields the rest of the pipeline relies on: maxspeed (km/h), lanes,
// oneway/reverseway, and — for rail ways — rail_type/electrified/gauge/
// usage/name. See spec §4.1.
package tags

import (
	"fmt"
	"math"
	"strconv"
	"strings"
)

// delimiters splits a compound tag value ("50|60", "3;4") into fragments.
const delimiters = "+^:;,|-"

// BadTagError reports a tag value with an unsupported type for the field
// being parsed. It is always recovered locally by the caller: the field
// falls back to its class default.
type BadTagError struct {
	Field string
	Value any
}

func (e *BadTagError) Error() string {
	return fmt.Sprintf("bad tag value for %s: %v (%T)", e.Field, e.Value, e.Value)
}

// Normalized holds the typed fields a Way carries after normalization.
type Normalized struct {
	Maxspeed   int
	Lanes      int
	Oneway     bool
	Reverseway bool

	// Rail-only fields, nil/"unknown" when not applicable or absent.
	RailType    string
	Electrified string
	Gauge       *string
	Usage       string
	Name        string
}

// Defaults is the interface Normalize needs from pkg/config, kept narrow so
// this package has no import-time dependency on config's concrete type.
type Defaults interface {
	MaxspeedFor(class string) int
	LanesFor(class string) int
	OnewayDefaultFor(class string) bool
}

// Normalize parses raw into typed fields for a way of the given highway (or
// railway) class. It never aborts: each field that fails to parse falls
// back to its configured default and contributes one *BadTagError to the
// returned (possibly multi-)error, which the caller logs and discards.
func Normalize(raw map[string]any, class string, isRoundabout, isRail bool, d Defaults) (*Normalized, error) {
	var errs []error

	n := &Normalized{}

	maxspeed, err := parseMaxspeed(raw["maxspeed"], class, d)
	if err != nil {
		errs = append(errs, err)
	}
	n.Maxspeed = maxspeed

	lanes, err := parseLanes(raw["lanes"], class, d)
	if err != nil {
		errs = append(errs, err)
	}
	n.Lanes = lanes

	oneway, reverseway, err := parseOneway(raw["oneway"], class, isRoundabout, d)
	if err != nil {
		errs = append(errs, err)
	}
	n.Oneway = oneway
	n.Reverseway = reverseway

	if isRail {
		n.RailType = stringOr(raw["rail_type"], "unknown")
		n.Electrified = stringOr(raw["electrified"], "unknown")
		n.Usage = stringOr(raw["usage"], "unknown")
		n.Name = stringOr(raw["name"], "unknown")
		if g, ok := raw["gauge"]; ok {
			if s, ok := g.(string); ok && s != "" {
				n.Gauge = &s
			}
		}
	}

	return n, joinErrs(errs)
}

func joinErrs(errs []error) error {
	switch len(errs) {
	case 0:
		return nil
	case 1:
		return errs[0]
	default:
		msgs := make([]string, len(errs))
		for i, e := range errs {
			msgs[i] = e.Error()
		}
		return fmt.Errorf("%s", strings.Join(msgs, "; "))
	}
}

func stringOr(v any, def string) string {
	if s, ok := v.(string); ok && s != "" {
		return s
	}
	return def
}

func parseMaxspeed(v any, class string, d Defaults) (int, error) {
	if v == nil {
		return d.MaxspeedFor(class), nil
	}
	switch t := v.(type) {
	case int:
		return t, nil
	case int64:
		return int(t), nil
	case float64:
		return int(math.Round(t)), nil
	case string:
		s := t
		if idx := strings.Index(s, "conditional"); idx >= 0 {
			s = s[:idx]
		}
		fragments := strings.FieldsFunc(s, func(r rune) bool {
			return strings.ContainsRune(delimiters, r)
		})
		var sum float64
		var count int
		for _, f := range fragments {
			f = strings.TrimSpace(f)
			if f == "" {
				continue
			}
			isMph := strings.HasSuffix(f, "mph")
			numPart := extractNumericPrefix(strings.TrimSuffix(f, "mph"))
			if numPart == "" {
				continue
			}
			val, err := strconv.ParseFloat(numPart, 64)
			if err != nil {
				continue
			}
			if isMph {
				val *= 1.60934
			}
			sum += val
			count++
		}
		if count == 0 {
			return d.MaxspeedFor(class), nil
		}
		return int(math.Round(sum / float64(count))), nil
	default:
		return d.MaxspeedFor(class), &BadTagError{Field: "maxspeed", Value: v}
	}
}

func parseLanes(v any, class string, d Defaults) (int, error) {
	if v == nil {
		return d.LanesFor(class), nil
	}
	switch t := v.(type) {
	case int:
		return clampMin1(t), nil
	case int64:
		return clampMin1(int(t)), nil
	case float64:
		return clampMin1(int(math.Round(t))), nil
	case string:
		fragments := strings.FieldsFunc(t, func(r rune) bool {
			return strings.ContainsRune(delimiters, r)
		})
		var sum float64
		var count int
		for _, f := range fragments {
			numPart := extractNumericPrefix(strings.TrimSpace(f))
			if numPart == "" {
				continue
			}
			val, err := strconv.ParseFloat(numPart, 64)
			if err != nil {
				continue
			}
			sum += val
			count++
		}
		if count == 0 {
			return d.LanesFor(class), nil
		}
		return clampMin1(int(math.Round(sum / float64(count)))), nil
	default:
		return d.LanesFor(class), &BadTagError{Field: "lanes", Value: v}
	}
}

func clampMin1(n int) int {
	if n < 1 {
		return 1
	}
	return n
}

var truthyOneway = map[string]bool{"yes": true, "true": true, "1": true, "-1": true}
var falsyOneway = map[string]bool{"no": true, "false": true, "0": true}

func parseOneway(v any, class string, isRoundabout bool, d Defaults) (oneway, reverseway bool, err error) {
	if isRoundabout {
		return true, false, nil
	}
	if v == nil {
		return d.OnewayDefaultFor(class), false, nil
	}

	var s string
	switch t := v.(type) {
	case string:
		s = t
	case int:
		s = strconv.Itoa(t)
	case int64:
		s = strconv.FormatInt(t, 10)
	default:
		return d.OnewayDefaultFor(class), false, &BadTagError{Field: "oneway", Value: v}
	}

	reverseway = s == "-1"
	if truthyOneway[s] {
		return true, reverseway, nil
	}
	if falsyOneway[s] {
		return false, false, nil
	}
	return d.OnewayDefaultFor(class), false, nil
}

// extractNumericPrefix returns the leading run of digits (with an optional
// single decimal point) in s, or "" if s has no leading digit.
func extractNumericPrefix(s string) string {
	s = strings.TrimSpace(s)
	end := 0
	seenDot := false
	for end < len(s) {
		c := s[end]
		if c >= '0' && c <= '9' {
			end++
			continue
		}
		if c == '.' && !seenDot {
			seenDot = true
			end++
			continue
		}
		break
	}
	return s[:end]
}
