package main

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"go.uber.org/zap"

	"github.com/Simplici0/printcost/internal/gcode"
	"github.com/Simplici0/printcost/internal/logger"
	"github.com/Simplici0/printcost/internal/pricing"
	"github.com/Simplici0/printcost/internal/report"
	"github.com/Simplici0/printcost/internal/settings"
	"github.com/Simplici0/printcost/internal/store"
)

const (
	// defaultMaxUpload caps one uploaded file. Larger files are refused, never
	// scanned in part.
	defaultMaxUpload = 512 << 20
	multipartMemory  = 32 << 20
)

var errUploadTooLarge = errors.New("upload exceeds size limit")

type baseViewData struct {
	ErrorMessage   string
	SuccessMessage string
	Warnings       []string
}

type homeViewData struct {
	baseViewData
	Document settings.Document
	Last     *lastResult
	Title    string
	Notes    string
}

func (s *server) handleHome(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()

	doc, err := s.currentDocument()
	if err != nil {
		http.Error(w, "failed to load document", http.StatusInternalServerError)
		return
	}
	s.renderHome(w, http.StatusOK, homeViewData{Document: doc})
}

func (s *server) handleCalculate(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()

	doc, err := parseDocumentForm(r)
	if err != nil {
		current, _ := s.currentDocument()
		s.renderHome(w, http.StatusBadRequest, homeViewData{
			baseViewData: baseViewData{ErrorMessage: userMessage(err)},
			Document:     current,
		})
		return
	}

	view := homeViewData{
		Document: doc,
		Title:    strings.TrimSpace(r.PostFormValue("title")),
		Notes:    strings.TrimSpace(r.PostFormValue("notes")),
	}

	res, err := pricing.ComputeCost(doc.FormInputs(), s.opts)
	if err != nil {
		view.ErrorMessage = userMessage(err)
		s.renderHome(w, http.StatusUnprocessableEntity, view)
		return
	}

	depleted := doc.Clone()
	if err := depleted.ApplyDepletion(res.UpdatedWeights); err != nil {
		logger.Error("apply depletion", zap.Error(err))
		http.Error(w, "failed to update spool weights", http.StatusInternalServerError)
		return
	}

	job, err := s.store.SaveCalculation(store.NewJob(view.Title, view.Notes, doc, res), depleted)
	if err != nil {
		logger.Error("save calculation", zap.Error(err))
		http.Error(w, "failed to save calculation", http.StatusInternalServerError)
		return
	}

	s.last = &lastResult{
		Reference: job.Reference,
		Inputs:    doc,
		Result:    res,
		Summary:   report.Summarize(res),
	}
	logger.Info("job calculated",
		zap.String("reference", job.Reference),
		zap.Float64("total", res.TotalCost),
		zap.Int("spools", len(res.Spools)),
	)

	s.renderHome(w, http.StatusOK, homeViewData{
		baseViewData: baseViewData{
			SuccessMessage: "Cost calculated. Spool weights were updated.",
			Warnings:       res.Warnings,
		},
		Document: depleted,
	})
}

func (s *server) handleAddSpool(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.editDocument(w, r, func(doc *settings.Document) error {
		doc.AddSpool()
		return nil
	})
}

func (s *server) handleRemoveSpool(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()

	index, err := parseSpoolIndex(r)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	s.editDocument(w, r, func(doc *settings.Document) error {
		return doc.RemoveSpool(index)
	})
}

// editDocument applies edit to the posted form, or to the stored document
// when no form was posted, and saves the outcome.
func (s *server) editDocument(w http.ResponseWriter, r *http.Request, edit func(*settings.Document) error) {
	var (
		doc settings.Document
		err error
	)
	if hasDocumentFields(r) {
		doc, err = parseDocumentForm(r)
	} else {
		doc, err = s.currentDocument()
	}
	if err != nil {
		http.Error(w, userMessage(err), http.StatusBadRequest)
		return
	}

	if err := edit(&doc); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	if err := s.store.SaveDocument(doc); err != nil {
		logger.Error("save document", zap.Error(err))
		http.Error(w, "failed to save document", http.StatusInternalServerError)
		return
	}
	http.Redirect(w, r, "/", http.StatusSeeOther)
}

func (s *server) handleReset(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.store.SaveDocument(settings.Default()); err != nil {
		logger.Error("reset document", zap.Error(err))
		http.Error(w, "failed to reset document", http.StatusInternalServerError)
		return
	}
	s.last = nil
	http.Redirect(w, r, "/", http.StatusSeeOther)
}

// importFile ingests a toolpath file from disk into the current document.
func (s *server) importFile(path string) (gcode.Extract, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	doc, err := s.currentDocument()
	if err != nil {
		return gcode.Extract{}, err
	}
	extract, err := gcode.IngestFile(path)
	if err != nil {
		return gcode.Extract{}, err
	}
	doc.ApplyExtract(extract)
	if err := s.store.SaveDocument(doc); err != nil {
		return gcode.Extract{}, fmt.Errorf("save document: %w", err)
	}
	return extract, nil
}

func (s *server) handleGcodeUpload(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()

	doc, err := s.currentDocument()
	if err != nil {
		http.Error(w, "failed to load document", http.StatusInternalServerError)
		return
	}

	raw, filename, err := s.readUpload(r, "gcode")
	if err != nil {
		status, message := s.uploadFailure(err, "Choose a G-code or 3MF file to import.")
		s.renderHome(w, status, homeViewData{
			baseViewData: baseViewData{ErrorMessage: message},
			Document:     doc,
		})
		return
	}
	if !gcode.IsContainer(filename) && !gcode.IsToolpath(filename) {
		s.renderHome(w, http.StatusBadRequest, homeViewData{
			baseViewData: baseViewData{ErrorMessage: fmt.Sprintf("Unsupported file type: %s", filename)},
			Document:     doc,
		})
		return
	}

	extract, err := gcode.Ingest(raw, gcode.IsContainer(filename))
	if err != nil {
		logger.Warn("gcode import failed", zap.String("file", filename), zap.Error(err))
		s.renderHome(w, http.StatusUnprocessableEntity, homeViewData{
			baseViewData: baseViewData{ErrorMessage: userMessage(err)},
			Document:     doc,
		})
		return
	}

	doc.ApplyExtract(extract)
	if err := s.store.SaveDocument(doc); err != nil {
		logger.Error("save document", zap.Error(err))
		http.Error(w, "failed to save document", http.StatusInternalServerError)
		return
	}

	logger.Info("gcode imported",
		zap.String("file", filename),
		zap.String("time_source", extract.TimeSource),
		zap.Float64("filament_mm", extract.FilamentMm),
	)

	view := homeViewData{
		baseViewData: baseViewData{SuccessMessage: fmt.Sprintf("Imported %s.", filename)},
		Document:     doc,
	}
	switch {
	case !extract.HasTime():
		view.Warnings = append(view.Warnings, "No print time was found; the print time field was left unchanged.")
	case !extract.HasFilament():
		view.Warnings = append(view.Warnings, "No filament usage was found; the spool fields were left unchanged.")
	}
	s.renderHome(w, http.StatusOK, view)
}

func (s *server) handleSettingsExport(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()

	doc, err := s.currentDocument()
	if err != nil {
		http.Error(w, "failed to load document", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Content-Disposition", `attachment; filename="printcost-settings.json"`)
	if err := settings.Save(w, doc); err != nil {
		logger.Error("export settings", zap.Error(err))
	}
}

func (s *server) handleSettingsImport(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()

	current, err := s.currentDocument()
	if err != nil {
		http.Error(w, "failed to load document", http.StatusInternalServerError)
		return
	}

	raw, _, err := s.readUpload(r, "settings")
	if err != nil {
		status, message := s.uploadFailure(err, "Choose a settings file to import.")
		s.renderHome(w, status, homeViewData{
			baseViewData: baseViewData{ErrorMessage: message},
			Document:     current,
		})
		return
	}

	doc, err := settings.Load(bytes.NewReader(raw))
	if err != nil {
		s.renderHome(w, http.StatusUnprocessableEntity, homeViewData{
			baseViewData: baseViewData{ErrorMessage: "The settings file is not valid: " + err.Error()},
			Document:     current,
		})
		return
	}

	if err := s.store.SaveDocument(doc); err != nil {
		logger.Error("save document", zap.Error(err))
		http.Error(w, "failed to save document", http.StatusInternalServerError)
		return
	}
	s.renderHome(w, http.StatusOK, homeViewData{
		baseViewData: baseViewData{SuccessMessage: "Settings imported."},
		Document:     doc,
	})
}

// currentDocument returns the stored working document, falling back to the
// defaults on a fresh database.
func (s *server) currentDocument() (settings.Document, error) {
	doc, err := s.store.CurrentDocument()
	if errors.Is(err, store.ErrNotFound) {
		return settings.Default(), nil
	}
	if err != nil {
		logger.Error("load document", zap.Error(err))
		return settings.Document{}, err
	}
	return doc, nil
}

func (s *server) renderHome(w http.ResponseWriter, status int, view homeViewData) {
	view.Last = s.last
	s.renderTemplate(w, status, "home.html", view)
}

// readUpload returns the whole uploaded file named field. A file larger than
// the server limit yields errUploadTooLarge.
func (s *server) readUpload(r *http.Request, field string) ([]byte, string, error) {
	if err := r.ParseMultipartForm(multipartMemory); err != nil {
		return nil, "", fmt.Errorf("parse multipart form: %w", err)
	}

	file, header, err := r.FormFile(field)
	if err != nil {
		return nil, "", fmt.Errorf("read form file %s: %w", field, err)
	}
	defer file.Close()

	raw, err := io.ReadAll(io.LimitReader(file, s.maxUpload+1))
	if err != nil {
		return nil, "", fmt.Errorf("read upload %s: %w", header.Filename, err)
	}
	if int64(len(raw)) > s.maxUpload {
		return nil, header.Filename, fmt.Errorf("%s: %w", header.Filename, errUploadTooLarge)
	}
	return raw, header.Filename, nil
}

func (s *server) uploadFailure(err error, missing string) (int, string) {
	if errors.Is(err, errUploadTooLarge) {
		logger.Warn("upload refused", zap.Int64("limit_bytes", s.maxUpload), zap.Error(err))
		return http.StatusRequestEntityTooLarge, fmt.Sprintf("The file is larger than the upload limit of %s.", formatBytes(s.maxUpload))
	}
	return http.StatusBadRequest, missing
}

func formatBytes(n int64) string {
	if n >= 1<<20 && n%(1<<20) == 0 {
		return fmt.Sprintf("%d MiB", n>>20)
	}
	return fmt.Sprintf("%d bytes", n)
}
