package api

import (
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/mkoziy/acat/internal/repositories"
)

const (
	defaultPageSize = 20
	maxPageSize     = 100
	// maxPage keeps (page-1)*page_size far from int overflow.
	maxPage = 1_000_000
)

// pageInfo is the paging envelope shared by list endpoints.
type pageInfo struct {
	Count    int `json:"count"`
	Page     int `json:"page"`
	PageSize int `json:"page_size"`
	NumPages int `json:"num_pages"`
}

func newPageInfo(total, page, size int) pageInfo {
	pages := 0
	if size > 0 {
		pages = (total + size - 1) / size
	}
	return pageInfo{Count: total, Page: page, PageSize: size, NumPages: pages}
}

// parsePage reads page (1-based) and page_size.
func parsePage(r *http.Request) (repositories.Page, int, int, error) {
	page, err := queryInt(r, "page", 1)
	if err != nil {
		return repositories.Page{}, 0, 0, err
	}
	size, err := queryInt(r, "page_size", defaultPageSize)
	if err != nil {
		return repositories.Page{}, 0, 0, err
	}
	if page < 1 {
		page = 1
	}
	if page > maxPage {
		return repositories.Page{}, 0, 0, &badRequest{msg: fmt.Sprintf("invalid page: %d exceeds %d", page, maxPage)}
	}
	if size < 1 {
		size = defaultPageSize
	}
	if size > maxPageSize {
		size = maxPageSize
	}
	return repositories.Page{Limit: size, Offset: (page - 1) * size}, page, size, nil
}

func queryInt(r *http.Request, key string, def int) (int, error) {
	raw := strings.TrimSpace(r.URL.Query().Get(key))
	if raw == "" {
		return def, nil
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return 0, &badRequest{msg: fmt.Sprintf("invalid %s: %q", key, raw)}
	}
	return v, nil
}

func pathID(r *http.Request, key string) (int64, error) {
	raw := chi.URLParam(r, key)
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		return 0, &badRequest{msg: fmt.Sprintf("invalid %s: %q", key, raw)}
	}
	return id, nil
}

// parseBBox reads "min_lon,min_lat,max_lon,max_lat". Malformed boxes are
// ignored rather than rejected.
func parseBBox(raw string) *[4]float64 {
	parts := strings.Split(raw, ",")
	if len(parts) != 4 {
		return nil
	}
	var box [4]float64
	for i, p := range parts {
		v, err := strconv.ParseFloat(strings.TrimSpace(p), 64)
		if err != nil {
			return nil
		}
		box[i] = v
	}
	if box[0] > box[2] || box[1] > box[3] {
		return nil
	}
	return &box
}

func speciesFilter(r *http.Request) (repositories.SpeciesFilter, error) {
	q := r.URL.Query()
	filter := repositories.SpeciesFilter{
		Kingdom:      strings.TrimSpace(q.Get("kingdom")),
		Family:       strings.TrimSpace(q.Get("family")),
		Genus:        strings.TrimSpace(q.Get("genus")),
		Search:       strings.TrimSpace(q.Get("search")),
		Conservation: strings.TrimSpace(q.Get("conservation")),
	}
	switch filter.Conservation {
	case "", repositories.ConservationThreatened, repositories.ConservationEndemic:
		return filter, nil
	default:
		return filter, &badRequest{msg: fmt.Sprintf("invalid conservation: %q (expected threatened or endemic)", filter.Conservation)}
	}
}

func occurrenceFilter(r *http.Request) (repositories.OccurrenceFilter, error) {
	q := r.URL.Query()
	filter := repositories.OccurrenceFilter{
		Family:   strings.TrimSpace(q.Get("family")),
		Province: strings.TrimSpace(q.Get("province")),
		Search:   strings.TrimSpace(q.Get("search")),
		BBox:     parseBBox(q.Get("bbox")),
	}

	speciesKey := "species_id"
	if q.Get(speciesKey) == "" && q.Get("species") != "" {
		speciesKey = "species"
	}
	speciesID, err := queryInt(r, speciesKey, 0)
	if err != nil {
		return filter, err
	}
	filter.SpeciesID = int64(speciesID)

	if filter.Year, err = queryInt(r, "year", 0); err != nil {
		return filter, err
	}
	return filter, nil
}
