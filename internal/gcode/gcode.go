// Package gcode extracts print time and filament usage from slicer output.
//
// Slicers disagree on how they announce estimates, so the scanner tries a
// fixed list of comment dialects and falls back to summing extrusion moves.
package gcode

import (
	"os"
	"strconv"
	"strings"
)

// MillimetersPerGram converts filament length to mass for 1.75 mm PLA-like
// filament.
const MillimetersPerGram = 330.0

// Extract is the best-effort result of scanning one toolpath file.
type Extract struct {
	// TimeSeconds is nil when no time signal was found.
	TimeSeconds *float64
	// TimeSource names the rule that set TimeSeconds.
	TimeSource string
	// FilamentMm is zero when neither metadata nor extrusion moves were found.
	FilamentMm float64
	// FilamentFromMetadata is false when FilamentMm was accumulated from moves.
	FilamentFromMetadata bool
}

// HasTime reports whether a print time was found.
func (e Extract) HasTime() bool { return e.TimeSeconds != nil }

// HasFilament reports whether any filament usage was found.
func (e Extract) HasFilament() bool { return e.FilamentMm > 0 }

// Partial reports whether only one of the two signals was found.
func (e Extract) Partial() bool { return e.HasTime() != e.HasFilament() }

// Hours returns the print time in hours.
func (e Extract) Hours() (float64, bool) {
	if e.TimeSeconds == nil {
		return 0, false
	}
	return *e.TimeSeconds / 3600.0, true
}

// Grams returns the filament usage converted to grams.
func (e Extract) Grams() float64 {
	return Grams(e.FilamentMm)
}

// Grams converts a filament length in millimetres to grams.
func Grams(mm float64) float64 {
	return mm / MillimetersPerGram
}

// IngestFile reads a toolpath file from disk, unwrapping it when its name
// denotes a container.
func IngestFile(path string) (Extract, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return Extract{}, &IOError{Path: path, Err: err}
	}
	return Ingest(raw, IsContainer(path))
}

// Ingest unwraps, decodes and scans raw toolpath bytes. ErrNoData is returned
// when the scan found neither a time nor any filament usage.
func Ingest(raw []byte, isContainer bool) (Extract, error) {
	data := raw
	if isContainer {
		var err error
		if data, err = unwrap(raw); err != nil {
			return Extract{}, err
		}
	}

	text, err := decode(data)
	if err != nil {
		return Extract{}, err
	}

	extract := Scan(text)
	if !extract.HasTime() && !extract.HasFilament() {
		return Extract{}, ErrNoData
	}
	return extract, nil
}

// scanner carries state across the lines of one file.
type scanner struct {
	timeSeconds    *float64
	timeSource     string
	filamentMm     *float64
	absoluteE      bool
	currentE       float64
	totalExtrusion float64
}

// Scan walks the toolpath text in a single pass.
func Scan(text string) Extract {
	s := &scanner{absoluteE: true}
	for line := range strings.Lines(text) {
		s.line(strings.TrimSpace(line))
	}
	return s.finalize()
}

func (s *scanner) line(line string) {
	if line == "" {
		return
	}

	if s.timeSeconds == nil {
		if v, source, ok := matchTime(line); ok {
			s.timeSeconds = &v
			s.timeSource = source
		}
	}

	if mm, ok, marker := matchFilament(line); marker {
		if ok {
			s.filamentMm = &mm
		}
		return
	}

	code, _, _ := strings.Cut(line, ";")
	code, _, _ = strings.Cut(code, "*")
	fields := words(code)
	if len(fields) > 0 && isLineNumber(fields[0]) {
		fields = fields[1:]
	}
	if len(fields) == 0 {
		return
	}

	switch normalizeCommand(fields[0]) {
	case "M82":
		s.absoluteE = true
	case "M83":
		s.absoluteE = false
	case "G92":
		e, found, err := axisValue(fields[1:], 'E')
		if err != nil {
			return
		}
		if found {
			s.currentE = e
		} else if len(fields) == 1 {
			s.currentE = 0
		}
	case "G0", "G1", "G2", "G3":
		e, found, err := axisValue(fields[1:], 'E')
		if err != nil || !found {
			return
		}
		s.extrude(e)
	}
}

func (s *scanner) extrude(e float64) {
	extrusion := e
	if s.absoluteE {
		extrusion = e - s.currentE
	}
	if extrusion > 0 {
		s.totalExtrusion += extrusion
	}

	if s.absoluteE {
		s.currentE = e
	} else {
		s.currentE += e
	}
}

func (s *scanner) finalize() Extract {
	out := Extract{TimeSeconds: s.timeSeconds, TimeSource: s.timeSource}
	if s.filamentMm != nil && *s.filamentMm > 0 {
		out.FilamentMm = *s.filamentMm
		out.FilamentFromMetadata = true
		return out
	}
	out.FilamentMm = s.totalExtrusion
	return out
}

// words splits a command into letter-prefixed words. Spaces between words
// are optional, so "G1X10E5" and "G1 X10 E5" yield the same words.
func words(code string) []string {
	compact := strings.Join(strings.Fields(strings.ToUpper(code)), "")

	var out []string
	for i := 0; i < len(compact); {
		j := i + 1
		for j < len(compact) && !isLetter(compact[j]) {
			j++
		}
		out = append(out, compact[i:j])
		i = j
	}
	return out
}

func isLetter(c byte) bool {
	return c >= 'A' && c <= 'Z'
}

// axisValue returns the first value of axis among fields.
func axisValue(fields []string, axis byte) (float64, bool, error) {
	for _, f := range fields {
		if len(f) == 0 || f[0] != axis {
			continue
		}
		v, err := strconv.ParseFloat(f[1:], 64)
		if err != nil {
			return 0, true, err
		}
		return v, true, nil
	}
	return 0, false, nil
}

// normalizeCommand turns "G01" into "G1".
func normalizeCommand(word string) string {
	if len(word) < 2 {
		return word
	}
	n, err := strconv.Atoi(word[1:])
	if err != nil {
		return word
	}
	return word[:1] + strconv.Itoa(n)
}

func isLineNumber(word string) bool {
	if len(word) < 2 || word[0] != 'N' {
		return false
	}
	_, err := strconv.Atoi(word[1:])
	return err == nil
}
