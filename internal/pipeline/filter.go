package pipeline

import (
	"fmt"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/abadojack/whatlanggo"

	"github.com/researchfeed/paper-feed-service/internal/domain"
	"github.com/researchfeed/paper-feed-service/internal/papersource/core"
)

const (
	// maxAbstractLen is the stored abstract length in runes.
	maxAbstractLen = 500

	// minEnglishLen is the minimum trimmed abstract length for language
	// identification to be attempted at all.
	minEnglishLen = 50

	// langSampleLen is how many leading runes feed the language detector.
	langSampleLen = 500

	// maxKeywords is the stored keyword cap per document.
	maxKeywords = 5

	// untitledFallback stands in for records without a title.
	untitledFallback = "Untitled"
)

// Filter applies the ordered relevance checks to fetched records and builds
// the documents to store.
type Filter struct {
	minPageCount int
}

// NewFilter creates a filter rejecting records whose known page count falls
// below minPageCount.
func NewFilter(minPageCount int) *Filter {
	return &Filter{minPageCount: minPageCount}
}

// Evaluate runs the filter checks against a fetched record in order: abstract
// present, English, in-scope domain, page count. Checks short-circuit; the
// returned reason names the first failure. On success it returns the document
// ready for storage, stamped with the run's day key and fetch time.
func (f *Filter) Evaluate(w *core.Work, fetchedDate string, fetchedAt time.Time) (*domain.PaperDocument, domain.SkipReason, bool) {
	if w.Abstract == "" {
		return nil, domain.SkipNoAbstract, false
	}

	if !isEnglish(w.Abstract) {
		return nil, domain.SkipNotEnglish, false
	}

	tags := Classify(w.Title, w.Abstract, w.Keywords)
	if len(tags) == 0 {
		return nil, domain.SkipNoDomain, false
	}

	// A page count is only disqualifying when it is known. Unknown (0) and
	// unparseable counts pass through; so do negative results from reversed
	// ranges, which are preserved by the parser and stored as unknown.
	pageCount := ExtractPageCount(w)
	if pageCount > 0 && pageCount < f.minPageCount {
		return nil, domain.SkipTooShort, false
	}

	return f.buildDocument(w, tags, pageCount, fetchedDate, fetchedAt), "", true
}

// buildDocument maps a record that passed all checks into its stored form.
func (f *Filter) buildDocument(w *core.Work, tags []domain.DomainTag, pageCount int, fetchedDate string, fetchedAt time.Time) *domain.PaperDocument {
	title := w.Title
	if title == "" {
		title = untitledFallback
	}

	publishedDate := w.PublishedDate
	if publishedDate == "" {
		publishedDate = fetchedDate
	}

	authors := make([]domain.Author, 0, len(w.Authors))
	for _, a := range w.Authors {
		if a.Name == "" {
			continue
		}
		authors = append(authors, domain.Author{Name: a.Name})
	}

	keywords := w.Keywords
	if len(keywords) > maxKeywords {
		keywords = keywords[:maxKeywords]
	}

	if pageCount < 0 {
		pageCount = 0
	}

	return &domain.PaperDocument{
		SourceID:      SourceID(w),
		Title:         title,
		Abstract:      truncateRunes(w.Abstract, maxAbstractLen),
		Authors:       authors,
		PublishedDate: publishedDate,
		DownloadURL:   w.DownloadURL,
		FulltextURLs:  w.SourceFulltextURLs,
		DOI:           w.DOI,
		PageCount:     pageCount,
		Keywords:      keywords,
		Domains:       tags,
		FetchedDate:   fetchedDate,
		FetchedAt:     fetchedAt,
	}
}

// SourceID derives the stable store key for a fetched record.
func SourceID(w *core.Work) string {
	return fmt.Sprintf("core:%d", w.ID)
}

// ExtractPageCount determines a record's page count. It prefers the explicit
// pageCount field, then parses the pages range. 0 means unknown. Reversed
// ranges ("25-10") produce their literal negative difference.
func ExtractPageCount(w *core.Work) int {
	if w.PageCount != nil {
		return *w.PageCount
	}
	if w.Pages != "" {
		return parsePageRange(string(w.Pages))
	}
	return 0
}

// parsePageRange parses a "start-end" range into end-start, or a bare number
// into itself. Anything else parses to 0.
func parsePageRange(s string) int {
	if strings.Contains(s, "-") {
		parts := strings.Split(s, "-")
		if len(parts) != 2 {
			return 0
		}
		start, err := strconv.Atoi(strings.TrimSpace(parts[0]))
		if err != nil {
			return 0
		}
		end, err := strconv.Atoi(strings.TrimSpace(parts[1]))
		if err != nil {
			return 0
		}
		return end - start
	}

	n, err := strconv.Atoi(strings.TrimSpace(s))
	if err != nil {
		return 0
	}
	return n
}

// isEnglish reports whether the text is identified as English. Texts shorter
// than minEnglishLen after trimming are too thin to identify and fail the
// check; identification itself runs over the leading langSampleLen runes.
func isEnglish(text string) bool {
	if utf8.RuneCountInString(strings.TrimSpace(text)) < minEnglishLen {
		return false
	}

	info := whatlanggo.Detect(truncateRunes(text, langSampleLen))
	return info.Lang == whatlanggo.Eng
}

// truncateRunes cuts s to at most n runes without splitting a character.
func truncateRunes(s string, n int) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	runes := []rune(s)
	return string(runes[:n])
}
