package httpserver

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/researchfeed/paper-feed-service/internal/domain"
)

// Pagination bounds for the feed endpoint. A domain-filtered feed defaults
// to a smaller page than the full daily feed.
const (
	defaultFeedLimit = 100
	domainFeedLimit  = 10
	maxFeedLimit     = 1000
)

// listPapers handles GET /api/v1/papers.
// It returns the feed for a day: papers fetched on it plus papers promoted
// onto it. The day defaults to today (UTC); `date`, `domain` and `limit`
// query parameters narrow the result.
func (s *Server) listPapers(w http.ResponseWriter, r *http.Request) {
	day := domain.DateKey(s.nowFn())
	if dateParam := r.URL.Query().Get("date"); dateParam != "" {
		if _, err := time.Parse(domain.DateKeyFormat, dateParam); err != nil {
			writeError(w, http.StatusBadRequest, "invalid date format: expected YYYY-MM-DD")
			return
		}
		day = dateParam
	}

	var domainTag domain.DomainTag
	if domainParam := r.URL.Query().Get("domain"); domainParam != "" {
		tag := domain.DomainTag(domainParam)
		if !isTrackedDomain(tag) {
			writeError(w, http.StatusBadRequest, "unknown domain")
			return
		}
		domainTag = tag
	}

	limit := defaultFeedLimit
	if domainTag != "" {
		limit = domainFeedLimit
	}
	if limitParam := r.URL.Query().Get("limit"); limitParam != "" {
		parsed, err := strconv.Atoi(limitParam)
		if err != nil || parsed < 1 {
			writeError(w, http.StatusBadRequest, "limit must be a positive integer")
			return
		}
		limit = parsed
	}
	if limit > maxFeedLimit {
		limit = maxFeedLimit
	}

	papers, err := s.papers.QueryByDay(r.Context(), day, domainTag, limit)
	if err != nil {
		writeDomainError(w, err)
		return
	}

	responses := make([]paperResponse, len(papers))
	for i, p := range papers {
		responses[i] = domainPaperToResponse(p)
	}

	writeJSON(w, http.StatusOK, listPapersResponse{
		Papers: responses,
		Date:   day,
		Count:  len(responses),
	})
}

// getPaper handles GET /api/v1/papers/{sourceID}.
func (s *Server) getPaper(w http.ResponseWriter, r *http.Request) {
	sourceID := chi.URLParam(r, "sourceID")
	if sourceID == "" {
		writeError(w, http.StatusBadRequest, "source id is required")
		return
	}

	paper, err := s.papers.GetBySourceID(r.Context(), sourceID)
	if err != nil {
		writeDomainError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, domainPaperToResponse(paper))
}

// listDomains handles GET /api/v1/domains.
func (s *Server) listDomains(w http.ResponseWriter, r *http.Request) {
	tags := domain.AllDomains()
	names := make([]string, len(tags))
	for i, t := range tags {
		names[i] = string(t)
	}
	writeJSON(w, http.StatusOK, listDomainsResponse{Domains: names})
}

// getStats handles GET /api/v1/stats.
// It reports today's feed size, the total stored count and the most recent
// run's statistics. A service that has never run reports no last run rather
// than an error.
func (s *Server) getStats(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	day := domain.DateKey(s.nowFn())

	papersToday, err := s.papers.CountByDay(ctx, day)
	if err != nil {
		writeDomainError(w, err)
		return
	}

	totalPapers, err := s.papers.CountAll(ctx)
	if err != nil {
		writeDomainError(w, err)
		return
	}

	resp := statsResponse{
		PapersToday: papersToday,
		TotalPapers: totalPapers,
	}

	lastRun, err := s.stats.Latest(ctx)
	switch {
	case err == nil:
		resp.LastRun = &lastRunResponse{
			RunAt:       lastRun.RunAt,
			TotalPapers: lastRun.TotalPapers,
			DomainStats: lastRun.DomainStats,
		}
	case errors.Is(err, domain.ErrNotFound):
		// No runs recorded yet.
	default:
		writeDomainError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, resp)
}

// isTrackedDomain reports whether the tag is one of the tracked domains.
func isTrackedDomain(tag domain.DomainTag) bool {
	for _, t := range domain.AllDomains() {
		if t == tag {
			return true
		}
	}
	return false
}
