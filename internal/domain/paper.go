package domain

import (
	"time"

	"github.com/google/uuid"
)

// DateKeyFormat is the layout for day keys used by the daily feed,
// fetched_date and promoted_dates.
const DateKeyFormat = "2006-01-02"

// DateKey returns the UTC day key for a point in time.
func DateKey(t time.Time) string {
	return t.UTC().Format(DateKeyFormat)
}

// DomainTag identifies a topical domain a paper is classified into.
type DomainTag string

// The fixed set of topical domains the service tracks.
const (
	DomainArtificialIntelligence    DomainTag = "artificial_intelligence"
	DomainComputerVision            DomainTag = "computer_vision"
	DomainNaturalLanguageProcessing DomainTag = "natural_language_processing"
	DomainDataScience               DomainTag = "data_science"
	DomainCybersecurity             DomainTag = "cybersecurity"
	DomainDistributedSystems        DomainTag = "distributed_systems"
	DomainQuantumComputing          DomainTag = "quantum_computing"
	DomainSoftwareEngineering       DomainTag = "software_engineering"
)

// AllDomains returns the tracked domain tags in stable order.
func AllDomains() []DomainTag {
	return []DomainTag{
		DomainArtificialIntelligence,
		DomainComputerVision,
		DomainNaturalLanguageProcessing,
		DomainDataScience,
		DomainCybersecurity,
		DomainDistributedSystems,
		DomainQuantumComputing,
		DomainSoftwareEngineering,
	}
}

// SkipReason explains why a fetched record was rejected before storage.
type SkipReason string

// Skip reasons reported by the record filter.
const (
	SkipNoAbstract SkipReason = "no_abstract"
	SkipNotEnglish SkipReason = "not_english"
	SkipNoDomain   SkipReason = "no_domain"
	SkipTooShort   SkipReason = "too_short"
)

// Author represents a paper author.
type Author struct {
	Name string `json:"name"`
}

// PaperDocument represents a stored paper in the daily feed.
type PaperDocument struct {
	ID            uuid.UUID
	SourceID      string
	Title         string
	Abstract      string
	Authors       []Author
	PublishedDate string
	DownloadURL   string
	FulltextURLs  []string
	DOI           string
	// PageCount is the known page count; 0 means unknown.
	PageCount int
	Keywords  []string
	Domains   []DomainTag
	// FetchedDate is the day key of the run that stored this document.
	FetchedDate string
	FetchedAt   time.Time
	// PromotedDates lists day keys on which this document was re-surfaced
	// into the daily feed.
	PromotedDates []string
	// PromotedFrom holds the original fetched_date when this row is a
	// promoted copy, empty otherwise.
	PromotedFrom string
}

// HasPageCount reports whether the page count is known.
func (p *PaperDocument) HasPageCount() bool {
	return p.PageCount > 0
}

// PromotedClone returns a copy of the document dated to the given day,
// recording where it was promoted from. The clone gets a fresh row id and
// an empty promotion history.
func (p *PaperDocument) PromotedClone(day string, now time.Time) PaperDocument {
	clone := *p
	clone.ID = uuid.New()
	clone.FetchedDate = day
	clone.FetchedAt = now
	clone.PromotedDates = nil
	clone.PromotedFrom = p.FetchedDate
	return clone
}

// UpsertResult describes the effect of storing a document.
type UpsertResult int

// Upsert outcomes.
const (
	// UpsertUnchanged means a row with the same source id and identical
	// content already existed; nothing was written.
	UpsertUnchanged UpsertResult = iota
	// UpsertCreated means a new row was inserted.
	UpsertCreated
	// UpsertUpdated means an existing row's content was replaced.
	UpsertUpdated
)

// String implements fmt.Stringer.
func (r UpsertResult) String() string {
	switch r {
	case UpsertCreated:
		return "created"
	case UpsertUpdated:
		return "updated"
	case UpsertUnchanged:
		return "unchanged"
	default:
		return "unknown"
	}
}

// Stored reports whether the upsert wrote anything.
func (r UpsertResult) Stored() bool {
	return r == UpsertCreated || r == UpsertUpdated
}

// UpdateStats records the outcome of one fetch cycle.
type UpdateStats struct {
	ID uuid.UUID
	// RunAt is when the fetch cycle recorded its stats.
	RunAt time.Time
	// TotalPapers is the number of new or changed documents the run stored.
	TotalPapers int
	// DomainStats counts stored documents per domain tag for this run.
	DomainStats map[string]int
}
