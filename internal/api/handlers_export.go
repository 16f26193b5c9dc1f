package api

import (
	"encoding/csv"
	"fmt"
	"net/http"
	"strconv"

	"github.com/mkoziy/acat/internal/logging"
	"github.com/mkoziy/acat/internal/models"
	"github.com/mkoziy/acat/internal/repositories"
)

const exportBatchSize = 1000

var speciesExportHeader = []string{
	"Taxon Key", "Reino", "Filo", "Clase", "Orden", "Familia",
	"Género", "Especie", "Nombre Científico", "Nombre Común",
	"Registros de Presencia", "RLCVS", "CITES", "UICN", "Endémica ACAT",
}

var occurrenceExportHeader = []string{
	"GBIF ID", "Especie", "Familia", "Latitud", "Longitud",
	"Fecha", "Año", "Localidad", "Provincia", "Tipo de Registro",
}

func (s *Server) handleExportSpecies(w http.ResponseWriter, r *http.Request) {
	cw := startCSV(w, "especies_acat.csv", speciesExportHeader)

	err := repositories.EachSpecies(r.Context(), s.db, exportBatchSize, func(sp *models.Species) error {
		var rlcvs, cites, iucn string
		endemic := "No"
		if cs := sp.ConservationStatus; cs != nil {
			rlcvs, cites, iucn = string(cs.RLCVSStatus), string(cs.CITESStatus), string(cs.IUCNStatus)
			if cs.EndemicToACAT {
				endemic = "Sí"
			}
		}
		return cw.Write([]string{
			strconv.FormatInt(sp.TaxonKey, 10),
			sp.Kingdom,
			sp.Phylum,
			sp.Class,
			sp.Order,
			sp.Family,
			sp.Genus,
			sp.Species,
			sp.ScientificName,
			deref(sp.CommonName),
			strconv.Itoa(sp.OccurrenceCount),
			rlcvs,
			cites,
			iucn,
			endemic,
		})
	})
	finishCSV(r, cw, err)
}

func (s *Server) handleExportOccurrences(w http.ResponseWriter, r *http.Request) {
	cw := startCSV(w, "registros_presencia_acat.csv", occurrenceExportHeader)

	err := repositories.EachOccurrence(r.Context(), s.db, exportBatchSize, func(occ *models.Occurrence) error {
		var name, family string
		if occ.Species != nil {
			name, family = occ.Species.ScientificName, occ.Species.Family
		}
		date := ""
		if occ.EventDate != nil {
			date = occ.EventDate.Format("2006-01-02")
		}
		year := ""
		if occ.Year != nil {
			year = strconv.Itoa(*occ.Year)
		}
		return cw.Write([]string{
			strconv.FormatInt(occ.GBIFID, 10),
			name,
			family,
			strconv.FormatFloat(occ.DecimalLatitude, 'f', -1, 64),
			strconv.FormatFloat(occ.DecimalLongitude, 'f', -1, 64),
			date,
			year,
			occ.Locality,
			occ.StateProvince,
			occ.BasisOfRecord,
		})
	})
	finishCSV(r, cw, err)
}

func startCSV(w http.ResponseWriter, filename string, header []string) *csv.Writer {
	w.Header().Set("Content-Type", "text/csv; charset=utf-8")
	w.Header().Set("Content-Disposition", fmt.Sprintf(`attachment; filename="%s"`, filename))
	w.Header().Set("X-Content-Type-Options", "nosniff")

	cw := csv.NewWriter(w)
	_ = cw.Write(header)
	return cw
}

// finishCSV flushes the export. Headers are already sent, so failures can
// only be logged.
func finishCSV(r *http.Request, cw *csv.Writer, err error) {
	cw.Flush()
	if err == nil {
		err = cw.Error()
	}
	if err != nil {
		logging.FromContext(r.Context()).Error("csv export failed", "path", r.URL.Path, "error", err)
	}
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
