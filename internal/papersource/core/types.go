package core

import "encoding/json"

// SearchResponse is the envelope of a CORE v3 works search response.
type SearchResponse struct {
	TotalHits int64  `json:"totalHits"`
	Limit     int    `json:"limit"`
	Offset    int    `json:"offset"`
	Results   []Work `json:"results"`
}

// Work is a single record in a works search response.
type Work struct {
	ID            int64        `json:"id"`
	Title         string       `json:"title"`
	Abstract      string       `json:"abstract"`
	Authors       []WorkAuthor `json:"authors"`
	PublishedDate string       `json:"publishedDate"`
	YearPublished int          `json:"yearPublished"`
	DownloadURL   string       `json:"downloadUrl"`
	// SourceFulltextURLs lists mirrors hosting the full text.
	SourceFulltextURLs []string `json:"sourceFulltextUrls"`
	DOI                string   `json:"doi"`
	// PageCount is nil when the field is absent from the record.
	PageCount *int `json:"pageCount"`
	// Pages holds the raw page range, e.g. "115-142".
	Pages    PageRange `json:"pages"`
	Keywords []string  `json:"keywords"`
}

// WorkAuthor is an author entry on a work.
type WorkAuthor struct {
	Name string `json:"name"`
}

// PageRange holds the "pages" field, which CORE returns as either a string
// ("115-142") or a bare number.
type PageRange string

// UnmarshalJSON implements json.Unmarshaler.
func (p *PageRange) UnmarshalJSON(data []byte) error {
	if len(data) == 0 || string(data) == "null" {
		*p = ""
		return nil
	}
	if data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*p = PageRange(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return err
	}
	*p = PageRange(n.String())
	return nil
}
