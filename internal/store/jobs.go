package store

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/Simplici0/printcost/internal/pricing"
	"github.com/Simplici0/printcost/internal/settings"
)

// Totals is the stored roll-up of a job.
type Totals struct {
	EnergyCost   float64 `json:"energy_cost"`
	FilamentCost float64 `json:"filament_cost"`
	Total        float64 `json:"total"`
	PerItemCost  float64 `json:"per_item_cost"`
}

// SpoolLine is the stored per-spool line of a job.
type SpoolLine struct {
	Name           string  `json:"name"`
	Cost           float64 `json:"cost"`
	RemainingGrams float64 `json:"remaining_grams"`
}

// Job is one computed cost snapshot.
type Job struct {
	ID        int64
	Reference string
	CreatedAt string
	Title     string
	Notes     string
	Inputs    settings.Document
	Totals    Totals
	Spools    []SpoolLine
}

// JobListItem is the summary row of the job history.
type JobListItem struct {
	Reference string
	CreatedAt string
	Title     string
	Total     float64
}

// NewJob builds a snapshot of inputs and their computed result.
func NewJob(title, notes string, inputs settings.Document, res pricing.Result) Job {
	lines := make([]SpoolLine, len(res.Spools))
	for i, s := range res.Spools {
		lines[i] = SpoolLine{Name: s.Name, Cost: s.Cost}
		if i < len(res.UpdatedWeights) {
			lines[i].RemainingGrams = res.UpdatedWeights[i]
		}
	}

	return Job{
		Reference: uuid.NewString(),
		Title:     title,
		Notes:     notes,
		Inputs:    inputs.Clone(),
		Totals: Totals{
			EnergyCost:   res.EnergyCost,
			FilamentCost: res.FilamentCost,
			Total:        res.TotalCost,
			PerItemCost:  res.PerItemCost,
		},
		Spools: lines,
	}
}

// Result rebuilds the cost result recorded with the job.
func (j Job) Result() pricing.Result {
	res := pricing.Result{
		EnergyCost:   j.Totals.EnergyCost,
		FilamentCost: j.Totals.FilamentCost,
		TotalCost:    j.Totals.Total,
		PerItemCost:  j.Totals.PerItemCost,
	}
	for _, line := range j.Spools {
		res.Spools = append(res.Spools, pricing.SpoolCost{Name: line.Name, Cost: line.Cost})
		res.UpdatedWeights = append(res.UpdatedWeights, line.RemainingGrams)
	}
	return res
}

// SaveCalculation records job and replaces the working document with
// depleted in one transaction. Neither change is visible if either fails.
func (s *Store) SaveCalculation(job Job, depleted settings.Document) (Job, error) {
	inputs, err := encodeDocument(job.Inputs)
	if err != nil {
		return Job{}, err
	}
	totals, err := json.Marshal(job.Totals)
	if err != nil {
		return Job{}, fmt.Errorf("encode totals: %w", err)
	}
	if job.Spools == nil {
		job.Spools = []SpoolLine{}
	}
	breakdown, err := json.Marshal(job.Spools)
	if err != nil {
		return Job{}, fmt.Errorf("encode breakdown: %w", err)
	}

	tx, err := s.db.Begin()
	if err != nil {
		return Job{}, fmt.Errorf("begin calculation transaction: %w", err)
	}

	result, err := tx.Exec(`
		INSERT INTO jobs (reference, title, notes, inputs_json, totals_json, breakdown_json)
		VALUES (?, ?, ?, ?, ?, ?)
	`, job.Reference, job.Title, job.Notes, inputs, string(totals), string(breakdown))
	if err != nil {
		_ = tx.Rollback()
		return Job{}, fmt.Errorf("insert job: %w", err)
	}

	if err := saveDocument(tx, depleted); err != nil {
		_ = tx.Rollback()
		return Job{}, err
	}

	if err := tx.Commit(); err != nil {
		return Job{}, fmt.Errorf("commit calculation transaction: %w", err)
	}

	if job.ID, err = result.LastInsertId(); err != nil {
		return Job{}, fmt.Errorf("read job id: %w", err)
	}
	return job, nil
}

// ListJobs returns jobs newest first, optionally filtered by title or notes.
func (s *Store) ListJobs(query string) ([]JobListItem, error) {
	search := "%" + escapeLike(query) + "%"
	rows, err := s.db.Query(`
		SELECT
			reference,
			created_at,
			COALESCE(title, ''),
			totals_json
		FROM jobs
		WHERE (? = '' OR COALESCE(title, '') LIKE ? ESCAPE '\' OR COALESCE(notes, '') LIKE ? ESCAPE '\')
		ORDER BY datetime(created_at) DESC, id DESC
	`, query, search, search)
	if err != nil {
		return nil, fmt.Errorf("query jobs: %w", err)
	}
	defer rows.Close()

	jobs := make([]JobListItem, 0)
	for rows.Next() {
		var item JobListItem
		var totalsJSON string
		if err := rows.Scan(&item.Reference, &item.CreatedAt, &item.Title, &totalsJSON); err != nil {
			return nil, fmt.Errorf("scan job: %w", err)
		}
		item.Total = extractTotalFromJSON(totalsJSON)
		jobs = append(jobs, item)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate jobs: %w", err)
	}

	return jobs, nil
}

// GetJob returns the stored snapshot without recomputing it.
func (s *Store) GetJob(reference string) (Job, error) {
	var job Job
	var inputsJSON, totalsJSON, breakdown string
	err := s.db.QueryRow(`
		SELECT id, reference, created_at, COALESCE(title, ''), COALESCE(notes, ''), inputs_json, totals_json, breakdown_json
		FROM jobs
		WHERE reference = ?
	`, reference).Scan(&job.ID, &job.Reference, &job.CreatedAt, &job.Title, &job.Notes, &inputsJSON, &totalsJSON, &breakdown)
	if errors.Is(err, sql.ErrNoRows) {
		return Job{}, ErrNotFound
	}
	if err != nil {
		return Job{}, fmt.Errorf("query job %s: %w", reference, err)
	}

	if job.Inputs, err = decodeDocument(inputsJSON); err != nil {
		return Job{}, err
	}
	if err := json.Unmarshal([]byte(totalsJSON), &job.Totals); err != nil {
		return Job{}, fmt.Errorf("decode totals: %w", err)
	}
	if err := json.Unmarshal([]byte(breakdown), &job.Spools); err != nil {
		return Job{}, fmt.Errorf("decode breakdown: %w", err)
	}
	return job, nil
}

func extractTotalFromJSON(totalsJSON string) float64 {
	var totals Totals
	if err := json.Unmarshal([]byte(totalsJSON), &totals); err != nil {
		return 0
	}
	return totals.Total
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, "%", `\%`, "_", `\_`)

// escapeLike quotes the LIKE wildcards in s so it matches literally under
// ESCAPE '\'.
func escapeLike(s string) string {
	return likeEscaper.Replace(s)
}
