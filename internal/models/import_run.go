package models

import (
	"fmt"
	"time"

	"github.com/uptrace/bun"
)

// ImportType selects which phases an import run executes.
type ImportType string

const (
	ImportSpecies     ImportType = "species"
	ImportOccurrences ImportType = "occurrences"
	ImportFull        ImportType = "full"
)

// ParseImportType validates a user supplied import type.
func ParseImportType(s string) (ImportType, error) {
	switch t := ImportType(s); t {
	case ImportSpecies, ImportOccurrences, ImportFull:
		return t, nil
	default:
		return "", fmt.Errorf("invalid import type %q: expected species, occurrences or full", s)
	}
}

// IncludesSpecies reports whether the species phase runs.
func (t ImportType) IncludesSpecies() bool {
	return t == ImportSpecies || t == ImportFull
}

// IncludesOccurrences reports whether the occurrence phase runs.
func (t ImportType) IncludesOccurrences() bool {
	return t == ImportOccurrences || t == ImportFull
}

// ImportStatus is the lifecycle state of an ImportRun.
type ImportStatus string

const (
	StatusStarted ImportStatus = "started"
	StatusSuccess ImportStatus = "success"
	StatusError   ImportStatus = "error"
	// StatusPartial is accepted by the schema but no import path assigns it.
	StatusPartial ImportStatus = "partial"
)

// ImportRun records one invocation of the Darwin Core importer.
type ImportRun struct {
	bun.BaseModel `bun:"table:biodiversity_data_import_log,alias:ir"`

	ID               int64        `bun:"id,pk,autoincrement" json:"id"`
	RunID            string       `bun:"run_id,unique,notnull" json:"run_id"`
	ImportType       ImportType   `bun:"import_type,notnull" json:"import_type"`
	Status           ImportStatus `bun:"status,notnull" json:"status"`
	RecordsProcessed int          `bun:"records_processed,notnull,default:0" json:"records_processed"`
	RecordsCreated   int          `bun:"records_created,notnull,default:0" json:"records_created"`
	RecordsUpdated   int          `bun:"records_updated,notnull,default:0" json:"records_updated"`
	RecordsErrors    int          `bun:"records_errors,notnull,default:0" json:"records_errors"`
	SourceFile       string       `bun:"source_file,notnull,default:''" json:"source_file"`
	FileSize         *int64       `bun:"file_size" json:"file_size,omitempty"`
	StartedAt        time.Time    `bun:"started_at,notnull" json:"started_at"`
	CompletedAt      *time.Time   `bun:"completed_at" json:"completed_at,omitempty"`
	DurationSeconds  *float64     `bun:"duration_seconds" json:"duration_seconds,omitempty"`
	LogMessages      string       `bun:"log_messages,notnull,default:''" json:"log_messages"`
	ErrorDetails     string       `bun:"error_details,notnull,default:''" json:"error_details"`
	ConfigSnapshot   *string      `bun:"config_snapshot" json:"config_snapshot,omitempty"`
	DryRun           bool         `bun:"dry_run,notnull,default:false" json:"dry_run"`
	CreatedAt        time.Time    `bun:"created_at,nullzero,notnull,default:current_timestamp" json:"created_at"`
}

// Finish stamps the terminal status, completion time and duration.
func (r *ImportRun) Finish(status ImportStatus, at time.Time) {
	r.Status = status
	r.CompletedAt = &at
	d := at.Sub(r.StartedAt).Seconds()
	r.DurationSeconds = &d
}

// Duration returns the run duration, or zero while it is still running.
func (r *ImportRun) Duration() time.Duration {
	if r.DurationSeconds == nil {
		return 0
	}
	return time.Duration(*r.DurationSeconds * float64(time.Second))
}

// DurationDisplay renders the duration the way the run listing shows it.
func (r *ImportRun) DurationDisplay() string {
	if r.DurationSeconds == nil {
		return "-"
	}
	total := int(*r.DurationSeconds)
	hours, minutes, seconds := total/3600, (total%3600)/60, total%60
	if hours > 0 {
		return fmt.Sprintf("%dh %dm %ds", hours, minutes, seconds)
	}
	if minutes > 0 {
		return fmt.Sprintf("%dm %ds", minutes, seconds)
	}
	return fmt.Sprintf("%ds", seconds)
}

// SuccessRate is the share of processed records that did not error, in percent.
func (r *ImportRun) SuccessRate() float64 {
	if r.RecordsProcessed == 0 {
		return 0
	}
	return float64(r.RecordsProcessed-r.RecordsErrors) / float64(r.RecordsProcessed) * 100
}

// IsTerminal reports whether the run has finished.
func (r *ImportRun) IsTerminal() bool {
	return r.Status != StatusStarted
}
