package gbif

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/mkoziy/acat/internal/models"
	"github.com/mkoziy/acat/internal/repositories"
	"github.com/mkoziy/acat/internal/testutil"
)

// mockLimiter is a no-op limiter for tests.
type mockLimiter struct{}

func (mockLimiter) Wait(_ context.Context) error { return nil }
func (mockLimiter) Allow() bool                  { return true }
func (mockLimiter) Reserve() time.Duration       { return 0 }
func (mockLimiter) RetryAfter(int) time.Duration { return time.Millisecond }
func (mockLimiter) Reset()                       {}

func writeNames(w http.ResponseWriter, end bool, names ...VernacularName) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(vernacularPage{EndOfRecords: end, Results: names})
}

func TestPickVernacularName(t *testing.T) {
	names := []VernacularName{
		{VernacularName: "Jaguar", Language: "eng"},
		{VernacularName: "  ", Language: "spa"},
		{VernacularName: "Tigre", Language: "spa"},
		{VernacularName: "Jaguar", Language: "spa", Preferred: true},
	}

	if got, ok := PickVernacularName(names, nil); !ok || got != "Jaguar" {
		t.Fatalf("expected preferred Spanish name, got %q %v", got, ok)
	}
	if got, ok := PickVernacularName(names[:3], []string{"es"}); !ok || got != "Tigre" {
		t.Fatalf("expected first Spanish name via alias, got %q %v", got, ok)
	}
	if got, ok := PickVernacularName(names[:1], nil); !ok || got != "Jaguar" {
		t.Fatalf("expected English fallback, got %q %v", got, ok)
	}
	if _, ok := PickVernacularName(names, []string{"fra"}); ok {
		t.Fatalf("expected no match for French")
	}
}

func TestClientVernacularNamesPaginates(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/species/5219426/vernacularNames" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		switch atomic.AddInt32(&calls, 1) {
		case 1:
			writeNames(w, false, VernacularName{VernacularName: "Jaguar", Language: "eng"})
		default:
			if got := r.URL.Query().Get("offset"); got != "1" {
				t.Errorf("expected offset 1, got %s", got)
			}
			writeNames(w, true, VernacularName{VernacularName: "Tigre", Language: "spa"})
		}
	}))
	defer srv.Close()

	client := NewClient(mockLimiter{}, WithBaseURL(srv.URL+"/"))
	names, err := client.VernacularNames(context.Background(), 5219426)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(names) != 2 || atomic.LoadInt32(&calls) != 2 {
		t.Fatalf("expected 2 names over 2 pages, got %d names in %d calls", len(names), calls)
	}
}

func TestClientRetriesThrottledResponses(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&calls, 1) < 3 {
			w.Header().Set("Retry-After", "0")
			w.WriteHeader(http.StatusTooManyRequests)
			return
		}
		writeNames(w, true, VernacularName{VernacularName: "Aguacate", Language: "spa"})
	}))
	defer srv.Close()

	client := NewClient(mockLimiter{}, WithBaseURL(srv.URL), WithMaxRetries(3))
	names, err := client.VernacularNames(context.Background(), 1)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(names) != 1 || atomic.LoadInt32(&calls) != 3 {
		t.Fatalf("expected success on third call, got %d names in %d calls", len(names), calls)
	}
}

func TestClientGivesUpOnClientErrors(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		http.Error(w, "not found", http.StatusNotFound)
	}))
	defer srv.Close()

	client := NewClient(mockLimiter{}, WithBaseURL(srv.URL))
	_, err := client.VernacularNames(context.Background(), 1)

	var statusErr *StatusError
	if !errors.As(err, &statusErr) || statusErr.StatusCode != http.StatusNotFound {
		t.Fatalf("expected 404 StatusError, got %v", err)
	}
	if atomic.LoadInt32(&calls) != 1 {
		t.Fatalf("404 must not be retried, got %d calls", calls)
	}
}

func TestClientUsesConfiguredHTTPClient(t *testing.T) {
	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	}))
	defer srv.Close()
	defer close(release)

	client := NewClient(mockLimiter{},
		WithBaseURL(srv.URL),
		WithHTTPClient(&http.Client{Timeout: 50 * time.Millisecond}),
		WithMaxRetries(0),
	)

	start := time.Now()
	_, err := client.VernacularNames(context.Background(), 1)
	if err == nil {
		t.Fatalf("expected timeout error")
	}
	if elapsed := time.Since(start); elapsed > 5*time.Second {
		t.Fatalf("request was not bound by the client timeout, took %s", elapsed)
	}
}

type fakeSource map[int64][]VernacularName

func (f fakeSource) VernacularNames(_ context.Context, taxonKey int64) ([]VernacularName, error) {
	names, ok := f[taxonKey]
	if !ok {
		return nil, fmt.Errorf("taxon %d: %w", taxonKey, &StatusError{StatusCode: http.StatusNotFound})
	}
	return names, nil
}

func TestEnricherFillsMissingCommonNames(t *testing.T) {
	db := testutil.NewDB(t)
	store := repositories.NewStore(db)
	ctx := context.Background()

	named := "Aguacate"
	for _, sp := range []*models.Species{
		{TaxonKey: 1, Genus: "Panthera", Species: "onca"},
		{TaxonKey: 2, Genus: "Persea", Species: "americana", CommonName: &named},
		{TaxonKey: 3, Genus: "Ara", Species: "macao"},
		{TaxonKey: 4, Genus: "Bradypus", Species: "variegatus"},
	} {
		if err := store.CreateSpecies(ctx, sp); err != nil {
			t.Fatalf("seed species: %v", err)
		}
	}

	source := fakeSource{
		1: {{VernacularName: "Jaguar", Language: "spa"}},
		3: {{VernacularName: "Scarlet macaw", Language: "fra"}},
	}

	dry, err := NewEnricher(db, source).Run(ctx, EnrichOptions{DryRun: true})
	if err != nil {
		t.Fatalf("dry run: %v", err)
	}
	if dry.Updated != 1 {
		t.Fatalf("expected 1 dry-run update, got %+v", dry)
	}
	if sp, _ := store.FindSpecies(ctx, 1); sp.CommonName != nil {
		t.Fatalf("dry run must not write, got %q", *sp.CommonName)
	}

	stats, err := NewEnricher(db, source).Run(ctx, EnrichOptions{})
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if stats.Checked != 3 || stats.Updated != 1 || stats.NotFound != 1 || stats.Errors != 1 {
		t.Fatalf("unexpected stats %+v", stats)
	}

	sp, err := store.FindSpecies(ctx, 1)
	if err != nil || sp.CommonName == nil || *sp.CommonName != "Jaguar" {
		t.Fatalf("expected Jaguar, got %+v (%v)", sp, err)
	}
	if sp.ScientificName != "Panthera onca" {
		t.Fatalf("taxonomy must be untouched, got %q", sp.ScientificName)
	}

	limited, err := NewEnricher(db, source).Run(ctx, EnrichOptions{Limit: 1})
	if err != nil {
		t.Fatalf("limited run: %v", err)
	}
	if limited.Checked != 1 {
		t.Fatalf("expected limit to cap lookups, got %+v", limited)
	}
}
