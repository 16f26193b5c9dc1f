package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/mkoziy/acat/internal/models"
	"github.com/mkoziy/acat/internal/repositories"
)

type importRunView struct {
	*models.ImportRun
	SuccessRate     float64 `json:"success_rate"`
	DurationDisplay string  `json:"duration_display"`
}

type importRunList struct {
	pageInfo
	Results []importRunView `json:"results"`
}

func newImportRunView(run *models.ImportRun) importRunView {
	return importRunView{
		ImportRun:       run,
		SuccessRate:     run.SuccessRate(),
		DurationDisplay: run.DurationDisplay(),
	}
}

func (s *Server) handleStatistics(w http.ResponseWriter, r *http.Request) {
	stats, err := repositories.GetStatistics(r.Context(), s.db)
	if err != nil {
		s.respondError(w, r, err, http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, stats)
}

func (s *Server) handleListImportRuns(w http.ResponseWriter, r *http.Request) {
	page, pageNum, size, err := parsePage(r)
	if err != nil {
		s.respondError(w, r, err, http.StatusBadRequest)
		return
	}

	runs, total, err := repositories.ListImportRuns(r.Context(), s.db, page)
	if err != nil {
		s.respondError(w, r, err, http.StatusInternalServerError)
		return
	}

	views := make([]importRunView, 0, len(runs))
	for _, run := range runs {
		views = append(views, newImportRunView(run))
	}
	writeJSON(w, http.StatusOK, importRunList{pageInfo: newPageInfo(total, pageNum, size), Results: views})
}

func (s *Server) handleGetImportRun(w http.ResponseWriter, r *http.Request) {
	run, err := repositories.GetImportRun(r.Context(), s.db, chi.URLParam(r, "runID"))
	if err != nil {
		s.respondLookupError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, newImportRunView(run))
}
