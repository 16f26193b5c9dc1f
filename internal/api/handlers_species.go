package api

import (
	"net/http"

	"github.com/mkoziy/acat/internal/models"
	"github.com/mkoziy/acat/internal/repositories"
)

const recentOccurrences = 10

type speciesList struct {
	pageInfo
	Results []*models.Species `json:"results"`
}

type speciesDetail struct {
	*models.Species
	RecentOccurrences []*models.Occurrence `json:"recent_occurrences"`
}

func (s *Server) handleListSpecies(w http.ResponseWriter, r *http.Request) {
	page, pageNum, size, err := parsePage(r)
	if err != nil {
		s.respondError(w, r, err, http.StatusBadRequest)
		return
	}

	filter, err := speciesFilter(r)
	if err != nil {
		s.respondError(w, r, err, http.StatusBadRequest)
		return
	}

	species, total, err := repositories.ListSpecies(r.Context(), s.db, filter, page)
	if err != nil {
		s.respondError(w, r, err, http.StatusInternalServerError)
		return
	}
	if species == nil {
		species = []*models.Species{}
	}
	writeJSON(w, http.StatusOK, speciesList{pageInfo: newPageInfo(total, pageNum, size), Results: species})
}

func (s *Server) handleGetSpecies(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		s.respondError(w, r, err, http.StatusBadRequest)
		return
	}

	sp, err := repositories.GetSpeciesByID(r.Context(), s.db, id)
	if err != nil {
		s.respondLookupError(w, r, err)
		return
	}

	recent, _, err := repositories.ListOccurrences(r.Context(), s.db,
		repositories.OccurrenceFilter{SpeciesID: id},
		repositories.Page{Limit: recentOccurrences})
	if err != nil {
		s.respondError(w, r, err, http.StatusInternalServerError)
		return
	}
	for _, occ := range recent {
		occ.Species = nil
	}
	if recent == nil {
		recent = []*models.Occurrence{}
	}
	writeJSON(w, http.StatusOK, speciesDetail{Species: sp, RecentOccurrences: recent})
}
