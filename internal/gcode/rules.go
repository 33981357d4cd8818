package gcode

import (
	"errors"
	"regexp"
	"strconv"
	"strings"
)

// timeRule is one print-time signal. value extracts the raw number from a
// match; scale converts it to seconds.
type timeRule struct {
	name  string
	re    *regexp.Regexp
	scale float64
	value func(m []string) (float64, error)
}

// timeRules are tried in order; the first rule yielding a value wins.
var timeRules = []timeRule{
	{name: "cura", re: regexp.MustCompile(`(?i);TIME:\s*(\d+)`), scale: 1, value: firstGroup},
	{name: "print-time", re: regexp.MustCompile(`(?i);\s*Print time:\s*(\d+)`), scale: 1, value: firstGroup},
	{name: "estimated", re: regexp.MustCompile(`(?i);\s*Estimated printing time[^=:]*:\s*(.+)$`), scale: 1, value: durationGroup},
	{name: "m73", re: regexp.MustCompile(`(?i)\bM73\s+P\d+\s+R(\d+)`), scale: 60, value: firstGroup},
	{name: "elapsed", re: regexp.MustCompile(`(?i);TIME_ELAPSED:\s*([-+]?\d*\.?\d+)`), scale: 1, value: firstGroup},
	{name: "estimated-mode", re: regexp.MustCompile(`(?i);\s*estimated printing time[^=]*=\s*(.+)$`), scale: 1, value: durationGroup},
}

// matchTime returns the seconds carried by line and the name of the rule that
// produced them.
func matchTime(line string) (float64, string, bool) {
	for _, rule := range timeRules {
		m := rule.re.FindStringSubmatch(line)
		if m == nil {
			continue
		}
		v, err := rule.value(m)
		if err != nil {
			continue
		}
		return v * rule.scale, rule.name, true
	}
	return 0, "", false
}

func firstGroup(m []string) (float64, error) {
	return strconv.ParseFloat(m[1], 64)
}

var durationPart = regexp.MustCompile(`(?i)(\d+(?:\.\d+)?)\s*([dhms])`)

var unitSeconds = map[string]float64{"d": 86400, "h": 3600, "m": 60, "s": 1}

// durationGroup parses "1d 2h 3m 4s" style estimates. When the text holds
// several "=" separated forms, the last one is used.
func durationGroup(m []string) (float64, error) {
	text := m[1]
	if i := strings.LastIndex(text, "="); i >= 0 {
		text = text[i+1:]
	}

	parts := durationPart.FindAllStringSubmatch(text, -1)
	if len(parts) == 0 {
		return 0, errors.New("no duration units")
	}

	total := 0.0
	for _, p := range parts {
		n, err := strconv.ParseFloat(p[1], 64)
		if err != nil {
			return 0, err
		}
		total += n * unitSeconds[strings.ToLower(p[2])]
	}
	return total, nil
}

var (
	filamentMarker = regexp.MustCompile(`(?i);\s*filament used`)
	filamentLength = regexp.MustCompile(`(?i);\s*filament used\s*:\s*([-+]?\d*\.?\d+)\s*(mm|m)\b`)
	filamentBraced = regexp.MustCompile(`(?i);\s*filament used\s*\[mm\]\s*=\s*([-+]?\d*\.?\d+)`)
)

// matchFilament reports whether line is a filament-usage comment and, when it
// carries a readable length, that length in millimetres.
func matchFilament(line string) (mm float64, ok bool, marker bool) {
	if !filamentMarker.MatchString(line) {
		return 0, false, false
	}

	if m := filamentLength.FindStringSubmatch(line); m != nil {
		v, err := strconv.ParseFloat(m[1], 64)
		if err != nil {
			return 0, false, true
		}
		if strings.EqualFold(m[2], "m") {
			v *= 1000
		}
		return v, true, true
	}

	if m := filamentBraced.FindStringSubmatch(line); m != nil {
		v, err := strconv.ParseFloat(m[1], 64)
		if err != nil {
			return 0, false, true
		}
		return v, true, true
	}

	return 0, false, true
}
