package pricing

import (
	"fmt"
	"math"
	"strconv"
	"strings"
)

// FormInputs holds the job fields exactly as the user typed them.
type FormInputs struct {
	CostPerKwh string
	Wattage    string
	Hours      string
	ItemCount  string
	Spools     []SpoolForm
}

// SpoolForm holds the raw fields of one spool entry.
type SpoolForm struct {
	Name   string
	Cost   string
	Weight string
	Used   string
}

// OverusePolicy decides what happens when a spool's used weight exceeds its
// total weight.
type OverusePolicy string

const (
	OveruseBlock OverusePolicy = "block"
	OveruseWarn  OverusePolicy = "warn"
)

// ParseOverusePolicy maps a configuration value to a policy, defaulting to
// OveruseBlock.
func ParseOverusePolicy(raw string) (OverusePolicy, error) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "", string(OveruseBlock):
		return OveruseBlock, nil
	case string(OveruseWarn):
		return OveruseWarn, nil
	default:
		return OveruseBlock, fmt.Errorf("unknown overuse policy %q", raw)
	}
}

// Options tunes validation.
type Options struct {
	Overuse OverusePolicy
}

// ValidationError is implemented by every error Parse returns.
type ValidationError interface {
	error
	FieldName() string
}

// ParseError reports a field that is not a number.
type ParseError struct {
	Field string
	Whole bool
}

func (e *ParseError) Error() string {
	if e.Whole {
		return fmt.Sprintf("please enter a valid whole number for %s", e.Field)
	}
	return fmt.Sprintf("please enter a valid number for %s", e.Field)
}

func (e *ParseError) FieldName() string { return e.Field }

// RangeError reports a number outside its allowed domain.
type RangeError struct {
	Field  string
	Reason string
}

func (e *RangeError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Reason)
}

func (e *RangeError) FieldName() string { return e.Field }

// Parse validates form values and converts them to JobInputs. The first
// failing field is reported: basic fields first, then spools in list order.
func Parse(form FormInputs, opts Options) (JobInputs, error) {
	in, _, err := parse(form, opts)
	return in, err
}

func parse(form FormInputs, opts Options) (JobInputs, []string, error) {
	var (
		in  JobInputs
		err error
	)

	if in.Power.CostPerKwh, err = parseNonNegativeFloat(form.CostPerKwh, "Power Cost"); err != nil {
		return JobInputs{}, nil, err
	}
	if in.Power.Wattage, err = parseNonNegativeFloat(form.Wattage, "Power Usage"); err != nil {
		return JobInputs{}, nil, err
	}
	if in.Power.Hours, err = parseNonNegativeFloat(form.Hours, "Print Time"); err != nil {
		return JobInputs{}, nil, err
	}
	if in.ItemCount, err = parsePositiveInt(form.ItemCount, "Number of Items"); err != nil {
		return JobInputs{}, nil, err
	}

	var warnings []string
	in.Spools = make([]SpoolRecord, 0, len(form.Spools))
	for _, sf := range form.Spools {
		spool, err := parseSpool(sf)
		if err != nil {
			return JobInputs{}, nil, err
		}
		if spool.UsedWeightGrams > spool.TotalWeightGrams {
			if opts.Overuse != OveruseWarn {
				return JobInputs{}, nil, &RangeError{Field: spool.Name, Reason: "used exceeds total"}
			}
			warnings = append(warnings, overuseWarning(spool.Name, spool.UsedWeightGrams, spool.TotalWeightGrams))
		}
		in.Spools = append(in.Spools, spool)
	}

	return in, warnings, nil
}

func parseSpool(sf SpoolForm) (SpoolRecord, error) {
	spool := SpoolRecord{Name: sf.Name}

	var err error
	if spool.SpoolCost, err = parseNonNegativeFloat(sf.Cost, fmt.Sprintf("Spool Cost (%s)", sf.Name)); err != nil {
		return SpoolRecord{}, err
	}
	if spool.TotalWeightGrams, err = parseNonNegativeFloat(sf.Weight, fmt.Sprintf("Spool Weight (%s)", sf.Name)); err != nil {
		return SpoolRecord{}, err
	}
	if spool.UsedWeightGrams, err = parseNonNegativeFloat(sf.Used, fmt.Sprintf("Used Weight (%s)", sf.Name)); err != nil {
		return SpoolRecord{}, err
	}

	return spool, nil
}

func parseNonNegativeFloat(raw, field string) (float64, error) {
	value, err := strconv.ParseFloat(strings.TrimSpace(raw), 64)
	if err != nil || math.IsNaN(value) || math.IsInf(value, 0) {
		return 0, &ParseError{Field: field}
	}
	if value < 0 {
		return 0, &RangeError{Field: field, Reason: "must be >= 0"}
	}
	return value, nil
}

func parsePositiveInt(raw, field string) (int, error) {
	value, err := strconv.Atoi(strings.TrimSpace(raw))
	if err != nil {
		return 0, &ParseError{Field: field, Whole: true}
	}
	if value <= 0 {
		return 0, &RangeError{Field: field, Reason: "must be > 0"}
	}
	return value, nil
}
