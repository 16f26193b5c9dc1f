package importer

import (
	"strings"
)

// ImportStats accumulates the outcome of one import phase.
// Processed always equals Created + Updated + Errored.
type ImportStats struct {
	Processed int
	Created   int
	Updated   int
	Errored   int
	Messages  []string
}

// Record counts a successfully upserted record.
func (s *ImportStats) Record(result UpsertResult) {
	s.Processed++
	switch result {
	case Created:
		s.Created++
	case Updated:
		s.Updated++
	}
}

// Fail counts a rejected record and keeps its message.
func (s *ImportStats) Fail(err error) {
	s.Processed++
	s.Errored++
	if err != nil {
		s.Messages = append(s.Messages, err.Error())
	}
}

// Merge adds other into s.
func (s *ImportStats) Merge(other ImportStats) {
	s.Processed += other.Processed
	s.Created += other.Created
	s.Updated += other.Updated
	s.Errored += other.Errored
	s.Messages = append(s.Messages, other.Messages...)
}

// Log joins the collected messages one per line.
func (s ImportStats) Log() string {
	return strings.Join(s.Messages, "\n")
}
