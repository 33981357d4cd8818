package pricing

import (
	"fmt"
	"math"
)

// gramsPerStandardSpool is the cost basis of every spool, independent of the
// weight left on the roll.
const gramsPerStandardSpool = 1000.0

// PowerProfile holds the electricity inputs of a print.
type PowerProfile struct {
	CostPerKwh float64
	Wattage    float64
	Hours      float64
}

// EnergyCost returns the electricity cost of the print.
func (p PowerProfile) EnergyCost() float64 {
	return (p.Wattage / 1000.0) * p.Hours * p.CostPerKwh
}

// SpoolRecord represents one filament spool consumed by the job.
type SpoolRecord struct {
	Name             string
	SpoolCost        float64
	TotalWeightGrams float64
	UsedWeightGrams  float64
}

// CostPerGram is the spool price spread over a standard 1000 g roll.
func (s SpoolRecord) CostPerGram() float64 {
	return s.SpoolCost / gramsPerStandardSpool
}

// UsedCost is the cost of the filament taken from this spool.
func (s SpoolRecord) UsedCost() float64 {
	return s.UsedWeightGrams * s.CostPerGram()
}

// RemainingWeight is the spool weight after the job, floored at zero.
func (s SpoolRecord) RemainingWeight() float64 {
	return math.Max(s.TotalWeightGrams-s.UsedWeightGrams, 0)
}

// JobInputs groups the validated inputs of a cost computation.
type JobInputs struct {
	Power     PowerProfile
	ItemCount int
	Spools    []SpoolRecord
}

// SpoolCost is the per-spool line of a Result.
type SpoolCost struct {
	Name string
	Cost float64
}

// Result contains the cost breakdown of one computation. UpdatedWeights holds
// the depleted total weight of each spool, in input order, for the caller to
// apply.
type Result struct {
	EnergyCost     float64
	FilamentCost   float64
	TotalCost      float64
	PerItemCost    float64
	Spools         []SpoolCost
	UpdatedWeights []float64
	Warnings       []string
}

// Calculate computes the cost breakdown from validated inputs. It has no side
// effects; ItemCount must be positive.
func Calculate(in JobInputs) Result {
	energyCost := in.Power.EnergyCost()

	spools := make([]SpoolCost, 0, len(in.Spools))
	updated := make([]float64, 0, len(in.Spools))
	filamentCost := 0.0
	for _, s := range in.Spools {
		cost := s.UsedCost()
		filamentCost += cost
		spools = append(spools, SpoolCost{Name: s.Name, Cost: cost})
		updated = append(updated, s.RemainingWeight())
	}

	total := energyCost + filamentCost

	return Result{
		EnergyCost:     energyCost,
		FilamentCost:   filamentCost,
		TotalCost:      total,
		PerItemCost:    total / float64(in.ItemCount),
		Spools:         spools,
		UpdatedWeights: updated,
	}
}

// ComputeCost validates the raw form values and computes the cost breakdown.
// No result is produced when any field fails validation.
func ComputeCost(form FormInputs, opts Options) (Result, error) {
	in, warnings, err := parse(form, opts)
	if err != nil {
		return Result{}, err
	}

	result := Calculate(in)
	result.Warnings = warnings
	return result, nil
}

// ApplyDepletion returns a copy of spools with each total weight reduced by
// its used weight. The input slice is not modified.
func ApplyDepletion(spools []SpoolRecord) []SpoolRecord {
	out := make([]SpoolRecord, len(spools))
	for i, s := range spools {
		s.TotalWeightGrams = s.RemainingWeight()
		out[i] = s
	}
	return out
}

func overuseWarning(name string, used, total float64) string {
	return fmt.Sprintf("%s: used weight %.2fg exceeds remaining %.2fg", name, used, total)
}
