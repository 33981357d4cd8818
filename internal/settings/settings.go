// Package settings holds the working document of the calculator: the basic
// fields and the ordered spool entries, all kept as the strings the user
// typed so that saving and loading reproduces them exactly.
package settings

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/shopspring/decimal"

	"github.com/Simplici0/printcost/internal/gcode"
	"github.com/Simplici0/printcost/internal/pricing"
)

// Basic holds the job-wide fields.
type Basic struct {
	PowerCost  string `json:"power_cost"`
	PowerUsage string `json:"power_usage"`
	PrintTime  string `json:"print_time"`
	NumItems   string `json:"num_items"`
}

// Spool holds the fields of one filament spool entry.
type Spool struct {
	Name   string `json:"name"`
	Cost   string `json:"cost"`
	Weight string `json:"weight"`
	Used   string `json:"used"`
}

// Document is the whole settings record.
type Document struct {
	Basic  Basic   `json:"basic"`
	Spools []Spool `json:"spools"`
}

// Default returns the document a fresh or reset calculator starts with.
func Default() Document {
	return Document{
		Basic: Basic{
			PowerCost:  "0.15",
			PowerUsage: "120",
			PrintTime:  "4.5",
			NumItems:   "1",
		},
		Spools: []Spool{defaultSpool(1)},
	}
}

func defaultSpool(n int) Spool {
	return Spool{
		Name:   fmt.Sprintf("Spool %d", n),
		Cost:   "25.00",
		Weight: "1000",
		Used:   "75",
	}
}

// Clone returns a deep copy of d.
func (d Document) Clone() Document {
	out := d
	out.Spools = append([]Spool(nil), d.Spools...)
	return out
}

// AddSpool appends a spool with default values.
func (d *Document) AddSpool() {
	d.Spools = append(d.Spools, defaultSpool(len(d.Spools)+1))
}

// RemoveSpool removes the spool at index i.
func (d *Document) RemoveSpool(i int) error {
	if i < 0 || i >= len(d.Spools) {
		return fmt.Errorf("spool index %d out of range", i)
	}
	d.Spools = append(d.Spools[:i], d.Spools[i+1:]...)
	return nil
}

// FormInputs maps the document to the cost engine input.
func (d Document) FormInputs() pricing.FormInputs {
	spools := make([]pricing.SpoolForm, 0, len(d.Spools))
	for _, s := range d.Spools {
		spools = append(spools, pricing.SpoolForm{Name: s.Name, Cost: s.Cost, Weight: s.Weight, Used: s.Used})
	}
	return pricing.FormInputs{
		CostPerKwh: d.Basic.PowerCost,
		Wattage:    d.Basic.PowerUsage,
		Hours:      d.Basic.PrintTime,
		ItemCount:  d.Basic.NumItems,
		Spools:     spools,
	}
}

// ApplyDepletion replaces every spool weight with the updated weights of a
// cost result. Nothing changes when the lengths differ.
func (d *Document) ApplyDepletion(weights []float64) error {
	if len(weights) != len(d.Spools) {
		return fmt.Errorf("got %d updated weights for %d spools", len(weights), len(d.Spools))
	}
	for i, w := range weights {
		d.Spools[i].Weight = formatNumber(w, weightPlaces)
	}
	return nil
}

// ApplyExtract seeds the print time and the first spool's used weight from a
// scanned toolpath. Signals the extract lacks leave their fields untouched.
func (d *Document) ApplyExtract(e gcode.Extract) {
	if hours, ok := e.Hours(); ok {
		d.Basic.PrintTime = formatNumber(hours, hoursPlaces)
	}
	if e.HasFilament() {
		if len(d.Spools) == 0 {
			d.AddSpool()
		}
		d.Spools[0].Used = formatNumber(e.Grams(), gramsPlaces)
	}
}

// Decimal places kept when numbers are written back into the document.
const (
	weightPlaces = 9
	hoursPlaces  = 7
	gramsPlaces  = 3
)

// formatNumber renders v rounded to places without trailing zeros, e.g. 925,
// 1.5 and 987.655.
func formatNumber(v float64, places int32) string {
	return decimal.NewFromFloat(v).Round(places).String()
}

// Load decodes a whole document from r.
func Load(r io.Reader) (Document, error) {
	var raw struct {
		Basic  *Basic   `json:"basic"`
		Spools *[]Spool `json:"spools"`
	}
	if err := json.NewDecoder(r).Decode(&raw); err != nil {
		return Document{}, fmt.Errorf("decode settings: %w", err)
	}
	if raw.Basic == nil {
		return Document{}, errors.New("settings: missing basic section")
	}
	if raw.Spools == nil {
		return Document{}, errors.New("settings: missing spools section")
	}
	return Document{Basic: *raw.Basic, Spools: *raw.Spools}, nil
}

// Save encodes d to w as indented JSON.
func Save(w io.Writer, d Document) error {
	if d.Spools == nil {
		d.Spools = []Spool{}
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(d); err != nil {
		return fmt.Errorf("encode settings: %w", err)
	}
	return nil
}

// LoadFile reads a document from path.
func LoadFile(path string) (Document, error) {
	f, err := os.Open(path)
	if err != nil {
		return Document{}, err
	}
	defer f.Close()

	return Load(f)
}

// SaveFile writes d to path, replacing any existing file.
func SaveFile(path string, d Document) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := Save(f, d); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}
