package httpserver

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/researchfeed/paper-feed-service/internal/domain"
)

// paperResponse is the JSON shape of a stored paper.
type paperResponse struct {
	ID            string           `json:"id"`
	SourceID      string           `json:"source_id"`
	Title         string           `json:"title"`
	Abstract      string           `json:"abstract,omitempty"`
	Authors       []authorResponse `json:"authors,omitempty"`
	PublishedDate string           `json:"published_date,omitempty"`
	DownloadURL   string           `json:"download_url,omitempty"`
	FulltextURLs  []string         `json:"fulltext_urls,omitempty"`
	DOI           string           `json:"doi,omitempty"`
	PageCount     int              `json:"page_count,omitempty"`
	Keywords      []string         `json:"keywords,omitempty"`
	Domains       []string         `json:"domains"`
	FetchedDate   string           `json:"fetched_date"`
	Promoted      bool             `json:"promoted,omitempty"`
	PromotedFrom  string           `json:"promoted_from,omitempty"`
}

type authorResponse struct {
	Name string `json:"name"`
}

type listPapersResponse struct {
	Papers []paperResponse `json:"papers"`
	Date   string          `json:"date"`
	Count  int             `json:"count"`
}

type listDomainsResponse struct {
	Domains []string `json:"domains"`
}

// statsResponse reports feed counts and the most recent run.
type statsResponse struct {
	PapersToday int64            `json:"papers_today"`
	TotalPapers int64            `json:"total_papers"`
	LastRun     *lastRunResponse `json:"last_run,omitempty"`
}

type lastRunResponse struct {
	RunAt       time.Time      `json:"run_at"`
	TotalPapers int            `json:"total_papers"`
	DomainStats map[string]int `json:"domain_stats"`
}

func domainPaperToResponse(p *domain.PaperDocument) paperResponse {
	authors := make([]authorResponse, len(p.Authors))
	for i, a := range p.Authors {
		authors[i] = authorResponse{Name: a.Name}
	}

	tags := make([]string, len(p.Domains))
	for i, d := range p.Domains {
		tags[i] = string(d)
	}

	return paperResponse{
		ID:            p.ID.String(),
		SourceID:      p.SourceID,
		Title:         p.Title,
		Abstract:      p.Abstract,
		Authors:       authors,
		PublishedDate: p.PublishedDate,
		DownloadURL:   p.DownloadURL,
		FulltextURLs:  p.FulltextURLs,
		DOI:           p.DOI,
		PageCount:     p.PageCount,
		Keywords:      p.Keywords,
		Domains:       tags,
		FetchedDate:   p.FetchedDate,
		Promoted:      p.PromotedFrom != "",
		PromotedFrom:  p.PromotedFrom,
	}
}

// writeJSON writes a JSON response with the given status code.
func writeJSON(w http.ResponseWriter, statusCode int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		// Best-effort; headers already sent.
		_ = err
	}
}

// writeError writes a JSON error response.
func writeError(w http.ResponseWriter, statusCode int, message string) {
	writeJSON(w, statusCode, map[string]string{
		"error": message,
	})
}

// writeDomainError maps domain errors to HTTP status codes and writes a JSON
// error response. Internal error details are not leaked to clients.
func writeDomainError(w http.ResponseWriter, err error) {
	if err == nil {
		return
	}

	switch {
	case errors.Is(err, domain.ErrNotFound):
		writeError(w, http.StatusNotFound, "resource not found")
	case errors.Is(err, domain.ErrInvalidInput):
		writeError(w, http.StatusBadRequest, "invalid input")
	case errors.Is(err, domain.ErrAlreadyExists):
		writeError(w, http.StatusConflict, "resource already exists")
	case errors.Is(err, domain.ErrStoreUnavailable):
		writeError(w, http.StatusServiceUnavailable, "service unavailable")
	default:
		writeError(w, http.StatusInternalServerError, "internal server error")
	}
}
