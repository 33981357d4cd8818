package main

import (
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/Simplici0/printcost/internal/logger"
	"github.com/Simplici0/printcost/internal/report"
	"github.com/Simplici0/printcost/internal/settings"
	"github.com/Simplici0/printcost/internal/store"
)

type profilesViewData struct {
	baseViewData
	Profiles []store.Profile
}

type jobsViewData struct {
	baseViewData
	Query string
	Jobs  []store.JobListItem
}

type jobDetailViewData struct {
	baseViewData
	Job     store.Job
	Summary report.Summary
}

func (s *server) handleProfilesList(w http.ResponseWriter, r *http.Request) {
	s.renderProfiles(w, http.StatusOK, baseViewData{})
}

func (s *server) handleProfileSave(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := r.ParseForm(); err != nil {
		http.Error(w, "invalid form", http.StatusBadRequest)
		return
	}

	name := strings.TrimSpace(r.PostFormValue("name"))
	if name == "" {
		s.renderProfiles(w, http.StatusBadRequest, baseViewData{ErrorMessage: "Profile name is required."})
		return
	}

	doc, err := s.currentDocument()
	if err != nil {
		http.Error(w, "failed to load document", http.StatusInternalServerError)
		return
	}
	if err := s.store.SaveProfile(name, doc); err != nil {
		logger.Error("save profile", zap.String("name", name), zap.Error(err))
		http.Error(w, "failed to save profile", http.StatusInternalServerError)
		return
	}

	s.renderProfiles(w, http.StatusOK, baseViewData{SuccessMessage: "Profile " + name + " saved."})
}

func (s *server) handleProfileLoad(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()

	name := chi.URLParam(r, "name")
	doc, err := s.store.LoadProfile(name)
	if errors.Is(err, store.ErrNotFound) {
		http.Error(w, "profile not found", http.StatusNotFound)
		return
	}
	if err != nil {
		logger.Error("load profile", zap.String("name", name), zap.Error(err))
		http.Error(w, "failed to load profile", http.StatusInternalServerError)
		return
	}

	if err := s.store.SaveDocument(doc); err != nil {
		logger.Error("save document", zap.Error(err))
		http.Error(w, "failed to save document", http.StatusInternalServerError)
		return
	}
	http.Redirect(w, r, "/", http.StatusSeeOther)
}

func (s *server) handleProfileDelete(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")
	err := s.store.DeleteProfile(name)
	if errors.Is(err, store.ErrNotFound) {
		http.Error(w, "profile not found", http.StatusNotFound)
		return
	}
	if err != nil {
		logger.Error("delete profile", zap.String("name", name), zap.Error(err))
		http.Error(w, "failed to delete profile", http.StatusInternalServerError)
		return
	}
	http.Redirect(w, r, "/profiles", http.StatusSeeOther)
}

func (s *server) renderProfiles(w http.ResponseWriter, status int, base baseViewData) {
	profiles, err := s.store.ListProfiles()
	if err != nil {
		logger.Error("list profiles", zap.Error(err))
		http.Error(w, "failed to load profiles", http.StatusInternalServerError)
		return
	}
	s.renderTemplate(w, status, "profiles.html", profilesViewData{baseViewData: base, Profiles: profiles})
}

// handleExport downloads the report of the most recent calculation.
func (s *server) handleExport(w http.ResponseWriter, r *http.Request) {
	format, err := report.ParseFormat(r.URL.Query().Get("format"))
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	s.mu.Lock()
	last := s.last
	s.mu.Unlock()

	if last == nil {
		http.Error(w, "calculate a job before exporting results", http.StatusConflict)
		return
	}

	writeReport(w, format, "printcost-results", last.Inputs, last.Summary)
}

func (s *server) handleJobsList(w http.ResponseWriter, r *http.Request) {
	query := strings.TrimSpace(r.URL.Query().Get("q"))
	jobs, err := s.store.ListJobs(query)
	if err != nil {
		logger.Error("list jobs", zap.Error(err))
		http.Error(w, "failed to load jobs", http.StatusInternalServerError)
		return
	}

	s.renderTemplate(w, http.StatusOK, "jobs.html", jobsViewData{
		Query: query,
		Jobs:  jobs,
	})
}

func (s *server) handleJobDetail(w http.ResponseWriter, r *http.Request) {
	job, ok := s.lookupJob(w, r)
	if !ok {
		return
	}

	s.renderTemplate(w, http.StatusOK, "job.html", jobDetailViewData{
		Job:     job,
		Summary: report.Summarize(job.Result()),
	})
}

// handleJobText renders the stored snapshot as a plain-text report without
// recomputing it.
func (s *server) handleJobText(w http.ResponseWriter, r *http.Request) {
	job, ok := s.lookupJob(w, r)
	if !ok {
		return
	}

	format, err := report.ParseFormat(r.URL.Query().Get("format"))
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	writeReport(w, format, "printcost-"+job.Reference, job.Inputs, report.Summarize(job.Result()))
}

func (s *server) lookupJob(w http.ResponseWriter, r *http.Request) (store.Job, bool) {
	reference := chi.URLParam(r, "reference")
	job, err := s.store.GetJob(reference)
	if errors.Is(err, store.ErrNotFound) {
		http.Error(w, "job not found", http.StatusNotFound)
		return store.Job{}, false
	}
	if err != nil {
		logger.Error("load job", zap.String("reference", reference), zap.Error(err))
		http.Error(w, "failed to load job", http.StatusInternalServerError)
		return store.Job{}, false
	}
	return job, true
}

func writeReport(w http.ResponseWriter, format report.Format, basename string, doc settings.Document, sum report.Summary) {
	w.Header().Set("Content-Type", format.ContentType())
	w.Header().Set("Content-Disposition", fmt.Sprintf(`attachment; filename="%s%s"`, basename, format.Extension()))
	if err := report.Write(w, doc, sum); err != nil {
		logger.Error("write report", zap.Error(err))
	}
}
