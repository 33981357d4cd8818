package main

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/go-chi/chi/v5"

	"github.com/Simplici0/printcost/internal/gcode"
	"github.com/Simplici0/printcost/internal/pricing"
	"github.com/Simplici0/printcost/internal/settings"
)

var errIncompleteSpools = errors.New("spool fields are incomplete")

// parseDocumentForm reads the working document from the posted form. Values
// are kept as typed; validation belongs to the cost engine.
func parseDocumentForm(r *http.Request) (settings.Document, error) {
	if err := r.ParseForm(); err != nil {
		return settings.Document{}, fmt.Errorf("invalid form: %w", err)
	}

	doc := settings.Document{
		Basic: settings.Basic{
			PowerCost:  strings.TrimSpace(r.PostFormValue("power_cost")),
			PowerUsage: strings.TrimSpace(r.PostFormValue("power_usage")),
			PrintTime:  strings.TrimSpace(r.PostFormValue("print_time")),
			NumItems:   strings.TrimSpace(r.PostFormValue("num_items")),
		},
		Spools: []settings.Spool{},
	}

	names := r.PostForm["spool_name"]
	costs := r.PostForm["spool_cost"]
	weights := r.PostForm["spool_weight"]
	used := r.PostForm["spool_used"]
	if len(costs) != len(names) || len(weights) != len(names) || len(used) != len(names) {
		return settings.Document{}, errIncompleteSpools
	}

	for i := range names {
		name := strings.TrimSpace(names[i])
		if name == "" {
			name = fmt.Sprintf("Spool %d", i+1)
		}
		doc.Spools = append(doc.Spools, settings.Spool{
			Name:   name,
			Cost:   strings.TrimSpace(costs[i]),
			Weight: strings.TrimSpace(weights[i]),
			Used:   strings.TrimSpace(used[i]),
		})
	}

	return doc, nil
}

// hasDocumentFields reports whether the request carries the calculator form.
func hasDocumentFields(r *http.Request) bool {
	if err := r.ParseForm(); err != nil {
		return false
	}
	_, ok := r.PostForm["power_cost"]
	return ok
}

func parseSpoolIndex(r *http.Request) (int, error) {
	index, err := strconv.Atoi(chi.URLParam(r, "index"))
	if err != nil || index < 0 {
		return 0, fmt.Errorf("invalid spool index %q", chi.URLParam(r, "index"))
	}
	return index, nil
}

// userMessage maps an engine or ingestion error to the text shown on the form.
func userMessage(err error) string {
	var (
		validationErr pricing.ValidationError
		containerErr  *gcode.ContainerError
		decodeErr     *gcode.DecodeError
		ioErr         *gcode.IOError
	)

	switch {
	case errors.As(err, &validationErr):
		return capitalize(validationErr.Error())
	case errors.Is(err, gcode.ErrNoData):
		return "No print time or filament usage was found in the file."
	case errors.As(err, &containerErr):
		return "Could not read the project archive: " + containerErr.Reason + "."
	case errors.As(err, &decodeErr):
		return "The file could not be decoded as text."
	case errors.As(err, &ioErr):
		return capitalize(ioErr.Error())
	case errors.Is(err, errIncompleteSpools):
		return "Every spool needs a name, cost, weight and used weight."
	default:
		return "Something went wrong, please try again."
	}
}

func capitalize(s string) string {
	r, size := utf8.DecodeRuneInString(s)
	if r == utf8.RuneError {
		return s
	}
	return string(unicode.ToUpper(r)) + s[size:]
}
