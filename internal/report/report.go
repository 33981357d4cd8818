package report

import (
	"bufio"
	"fmt"
	"io"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/Simplici0/printcost/internal/pricing"
	"github.com/Simplici0/printcost/internal/settings"
)

// Format is an export file convention. Both formats carry the same text.
type Format string

const (
	FormatText Format = "txt"
	FormatCSV  Format = "csv"
)

// ParseFormat maps a query value to a Format, defaulting to FormatText.
func ParseFormat(raw string) (Format, error) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "", string(FormatText):
		return FormatText, nil
	case string(FormatCSV):
		return FormatCSV, nil
	default:
		return "", fmt.Errorf("unsupported export format %q", raw)
	}
}

// Extension returns the file extension including the dot.
func (f Format) Extension() string {
	return "." + string(f)
}

// ContentType returns the MIME type used when serving the export.
func (f Format) ContentType() string {
	if f == FormatCSV {
		return "text/csv; charset=utf-8"
	}
	return "text/plain; charset=utf-8"
}

// Money renders an amount rounded to cents, e.g. "$1.96".
func Money(v float64) string {
	return "$" + decimal.NewFromFloat(v).StringFixed(2)
}

// Summary holds the four result strings shown to the user.
type Summary struct {
	PowerCost    string
	FilamentCost string
	TotalCost    string
	CostPerItem  string
}

// Summarize renders a cost result. The filament string lists every spool on
// its own line after the total.
func Summarize(res pricing.Result) Summary {
	var filament strings.Builder
	filament.WriteString(Money(res.FilamentCost))
	for _, s := range res.Spools {
		fmt.Fprintf(&filament, "\n%s: %s", s.Name, Money(s.Cost))
	}

	return Summary{
		PowerCost:    Money(res.EnergyCost),
		FilamentCost: filament.String(),
		TotalCost:    Money(res.TotalCost),
		CostPerItem:  Money(res.PerItemCost),
	}
}

// Write renders the results report for doc and its computed summary.
func Write(w io.Writer, doc settings.Document, sum Summary) error {
	bw := bufio.NewWriter(w)

	fmt.Fprintln(bw, "3D Print Cost Calculator - Results")
	fmt.Fprintln(bw, strings.Repeat("-", 40))
	fmt.Fprintln(bw)

	fmt.Fprintln(bw, "Basic Information:")
	fmt.Fprintf(bw, "Power Cost per kWh: $%s\n", doc.Basic.PowerCost)
	fmt.Fprintf(bw, "Power Usage: %s watts\n", doc.Basic.PowerUsage)
	fmt.Fprintf(bw, "Print Time: %s hours\n", doc.Basic.PrintTime)
	fmt.Fprintf(bw, "Number of Items: %s\n", doc.Basic.NumItems)
	fmt.Fprintln(bw)

	fmt.Fprintln(bw, "Filament Spools:")
	for _, s := range doc.Spools {
		fmt.Fprintf(bw, "%s:\n", s.Name)
		fmt.Fprintf(bw, "  Cost: $%s\n", s.Cost)
		fmt.Fprintf(bw, "  Weight: %sg\n", s.Weight)
		fmt.Fprintf(bw, "  Used: %sg\n", s.Used)
	}
	fmt.Fprintln(bw)

	fmt.Fprintln(bw, "Results:")
	fmt.Fprintf(bw, "Power Cost: %s\n", sum.PowerCost)
	fmt.Fprintf(bw, "Total Filament Cost: %s\n", sum.FilamentCost)
	fmt.Fprintf(bw, "Total Cost: %s\n", sum.TotalCost)
	fmt.Fprintf(bw, "Cost per Item: %s\n", sum.CostPerItem)

	return bw.Flush()
}
