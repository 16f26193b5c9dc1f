package api

import (
	"net/http"
	"strconv"

	"github.com/twpayne/go-geom/encoding/geojson"

	"github.com/mkoziy/acat/internal/models"
	"github.com/mkoziy/acat/internal/repositories"
)

// MaxMapFeatures caps the GeoJSON map payload.
const MaxMapFeatures = 5000

type occurrenceList struct {
	pageInfo
	Results []*models.Occurrence `json:"results"`
}

func (s *Server) handleListOccurrences(w http.ResponseWriter, r *http.Request) {
	filter, err := occurrenceFilter(r)
	if err != nil {
		s.respondError(w, r, err, http.StatusBadRequest)
		return
	}
	page, pageNum, size, err := parsePage(r)
	if err != nil {
		s.respondError(w, r, err, http.StatusBadRequest)
		return
	}

	occurrences, total, err := repositories.ListOccurrences(r.Context(), s.db, filter, page)
	if err != nil {
		s.respondError(w, r, err, http.StatusInternalServerError)
		return
	}
	if occurrences == nil {
		occurrences = []*models.Occurrence{}
	}
	writeJSON(w, http.StatusOK, occurrenceList{pageInfo: newPageInfo(total, pageNum, size), Results: occurrences})
}

func (s *Server) handleGetOccurrence(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		s.respondError(w, r, err, http.StatusBadRequest)
		return
	}

	occ, err := repositories.GetOccurrenceByID(r.Context(), s.db, id)
	if err != nil {
		s.respondLookupError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, occ)
}

// handleMapData returns up to MaxMapFeatures located occurrences as a GeoJSON
// FeatureCollection.
func (s *Server) handleMapData(w http.ResponseWriter, r *http.Request) {
	filter, err := occurrenceFilter(r)
	if err != nil {
		s.respondError(w, r, err, http.StatusBadRequest)
		return
	}
	// The map has no free-text or province facets.
	filter.Search, filter.Province = "", ""

	occurrences, _, err := repositories.ListOccurrences(r.Context(), s.db, filter, repositories.Page{Limit: MaxMapFeatures})
	if err != nil {
		s.respondError(w, r, err, http.StatusInternalServerError)
		return
	}

	fc := &geojson.FeatureCollection{Features: make([]*geojson.Feature, 0, len(occurrences))}
	for _, occ := range occurrences {
		if occ.Location == nil {
			continue
		}
		fc.Features = append(fc.Features, occurrenceFeature(occ))
	}

	w.Header().Set("Content-Type", "application/geo+json")
	writeJSON(w, http.StatusOK, fc)
}

func occurrenceFeature(occ *models.Occurrence) *geojson.Feature {
	props := map[string]interface{}{
		"id":              occ.ID,
		"gbif_id":         occ.GBIFID,
		"locality":        occ.Locality,
		"basis_of_record": occ.BasisOfRecord,
		"event_date":      nil,
	}
	if occ.EventDate != nil {
		props["event_date"] = occ.EventDate.Format("2006-01-02")
	}
	if sp := occ.Species; sp != nil {
		props["species"] = sp.ScientificName
		props["family"] = sp.Family
	}
	return &geojson.Feature{
		ID:         strconv.FormatInt(occ.ID, 10),
		Geometry:   occ.Location.Geom(),
		Properties: props,
	}
}
