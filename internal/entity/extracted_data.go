package entity

import "time"

// ExtractedRecord is the structured payload produced by a successful extraction.
type ExtractedRecord interface {
	Kind() ContentKind
	IsEmpty() bool
}

// ExtractedArticle is an article awaiting review.
type ExtractedArticle struct {
	Title           string `json:"title,omitempty"`
	Content         string `json:"content,omitempty"`
	Excerpt         string `json:"excerpt,omitempty"`
	FeaturedImage   string `json:"featuredImage,omitempty"`
	MetaTitle       string `json:"metaTitle,omitempty"`
	MetaDescription string `json:"metaDescription,omitempty"`
	Language        string `json:"language,omitempty"`
	SourceURL       string `json:"sourceUrl"`
}

func (a *ExtractedArticle) Kind() ContentKind { return KindArticle }

// IsEmpty reports whether no selector-driven field was filled.
// Derived fields (meta, language) and the source URL do not count.
func (a *ExtractedArticle) IsEmpty() bool {
	return a.Title == "" && a.Content == "" && a.Excerpt == "" && a.FeaturedImage == ""
}

// ExtractedProduct is a catalog entry awaiting review.
type ExtractedProduct struct {
	Name        string   `json:"name,omitempty"`
	Price       *float64 `json:"price,omitempty"`
	Description string   `json:"description,omitempty"`
	Images      []string `json:"images,omitempty"`
	SourceURL   string   `json:"sourceUrl"`
}

func (p *ExtractedProduct) Kind() ContentKind { return KindProduct }

func (p *ExtractedProduct) IsEmpty() bool {
	return p.Name == "" && p.Price == nil && p.Description == "" && len(p.Images) == 0
}

// FetchedPage is the raw result of a successful fetch.
type FetchedPage struct {
	RequestedURL string
	FinalURL     string
	StatusCode   int
	ContentType  string
	Body         string // decoded to UTF-8
	FetchedAt    time.Time
	Duration     time.Duration
}
