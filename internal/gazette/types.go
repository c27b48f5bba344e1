// Package gazette defines core types shared across the monitoring pipeline.
package gazette

import (
	"sort"
	"strings"
	"time"
)

// Match labels rendered for each identifier type that fired.
const (
	LabelName         = "NAME"
	LabelRegistration = "REGISTRATION"
	LabelTaxID        = "TAX_ID"
)

// Source names used in logs and metrics.
const (
	SourceExtra = "extra"
	SourceDaily = "daily"
)

// WatchedPerson is a configured individual tracked by name and optional identifiers.
type WatchedPerson struct {
	FullName           string `json:"full_name" mapstructure:"full_name"`
	RegistrationNumber string `json:"registration_number,omitempty" mapstructure:"registration_number"`
	TaxID              string `json:"tax_id,omitempty" mapstructure:"tax_id"`
}

// HasIdentifier reports whether at least one field can be matched. Fields
// holding only whitespace count as empty.
func (p WatchedPerson) HasIdentifier() bool {
	return strings.TrimSpace(p.FullName) != "" ||
		strings.TrimSpace(p.RegistrationNumber) != "" ||
		strings.TrimSpace(p.TaxID) != ""
}

// Document is a gazette issue. Location is the canonical fetch URL and the
// identity used for history; Title is display-only.
type Document struct {
	Location string `json:"location"`
	Title    string `json:"title"`
}

// Finding records that a watched person was detected on a page of a document.
type Finding struct {
	Person                WatchedPerson `json:"person"`
	Page                  int           `json:"page"`
	Document              Document      `json:"document"`
	MatchedByName         bool          `json:"matched_by_name"`
	MatchedByRegistration bool          `json:"matched_by_registration"`
	MatchedByTaxID        bool          `json:"matched_by_tax_id"`

	// ArchiveURI points at the archived copy of Document, when archiving is on.
	ArchiveURI string `json:"archive_uri,omitempty"`
}

// Labels returns the identifier types that matched, in a fixed order.
func (f Finding) Labels() []string {
	labels := make([]string, 0, 3)
	if f.MatchedByName {
		labels = append(labels, LabelName)
	}
	if f.MatchedByRegistration {
		labels = append(labels, LabelRegistration)
	}
	if f.MatchedByTaxID {
		labels = append(labels, LabelTaxID)
	}
	return labels
}

// Scan is the outcome of handing one document to the processor.
type Scan struct {
	Document Document
	Source   string
	// Fetched is true when the bytes were downloaded and parsed into pages.
	Fetched    bool
	Skipped    bool
	Pages      int
	ArchiveURI string
	Findings   []Finding
	Err        error
}

// Findings flattens the findings of every scan, preserving order.
func Findings(scans []Scan) []Finding {
	var out []Finding
	for _, s := range scans {
		out = append(out, s.Findings...)
	}
	return out
}

// Report is the aggregated result handed to notifiers.
type Report struct {
	RunID       string    `json:"run_id"`
	GeneratedAt time.Time `json:"generated_at"`
	Groups      []Group   `json:"groups"`
	Total       int       `json:"total"`
}

// Group holds every finding for one watched person.
type Group struct {
	FullName string    `json:"full_name"`
	Findings []Finding `json:"findings"`
}

// Message is the rendered notification.
type Message struct {
	Subject  string
	HTMLBody string
	Report   Report
}

// HistorySet is the set of document locations already processed.
type HistorySet map[string]struct{}

// NewHistorySet builds a set from the given locations.
func NewHistorySet(locations ...string) HistorySet {
	set := make(HistorySet, len(locations))
	for _, loc := range locations {
		set.Add(loc)
	}
	return set
}

// Has reports whether the location was recorded.
func (h HistorySet) Has(location string) bool {
	_, ok := h[location]
	return ok
}

// Add records a location and reports whether it was new.
func (h HistorySet) Add(location string) bool {
	if location == "" || h.Has(location) {
		return false
	}
	h[location] = struct{}{}
	return true
}

// Sorted returns the locations in lexical order.
func (h HistorySet) Sorted() []string {
	out := make([]string, 0, len(h))
	for loc := range h {
		out = append(out, loc)
	}
	sort.Strings(out)
	return out
}

// Clone returns an independent copy.
func (h HistorySet) Clone() HistorySet {
	out := make(HistorySet, len(h))
	for loc := range h {
		out[loc] = struct{}{}
	}
	return out
}

// RecordPolicy decides which processed documents are committed to history.
type RecordPolicy string

// Record policies.
const (
	// RecordMatched commits only documents that produced a finding.
	RecordMatched RecordPolicy = "matched"
	// RecordScanned commits every document that was downloaded and parsed.
	RecordScanned RecordPolicy = "scanned"
)

// Valid reports whether p is a known policy.
func (p RecordPolicy) Valid() bool {
	return p == RecordMatched || p == RecordScanned
}
