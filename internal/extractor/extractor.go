package extractor

import (
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/abadojack/whatlanggo"
	"github.com/kennygrant/sanitize"

	"github.com/user/content-crawler/internal/entity"
	"github.com/user/content-crawler/pkg/utils"
)

var defaultImageAttributes = []string{"src", "data-src", "data-lazy-src"}

// Tags and attributes kept in rich article content.
var (
	contentTags = []string{
		"h1", "h2", "h3", "h4", "h5", "h6", "p", "br", "hr", "div", "span",
		"b", "i", "u", "strong", "em", "small", "sub", "sup", "mark",
		"ul", "ol", "li", "dl", "dt", "dd", "blockquote", "pre", "code",
		"a", "img", "figure", "figcaption", "table", "thead", "tbody", "tr", "th", "td",
	}
	contentAttributes = []string{"href", "src", "alt", "title"}
)

// languageSnippetWords bounds the body text fed to language detection.
const languageSnippetWords = 100

// Request is one page to turn into a record.
type Request struct {
	Kind      entity.ContentKind
	HTML      string
	BaseURL   string // final page URL after redirects
	SourceURL string // normalized job URL stored on the record
	Config    *entity.SelectorConfig
}

// Extractor turns HTML into article or product records using a selector config.
// It holds no per-page state and is safe for concurrent use.
type Extractor struct {
	imageAttributes []string
}

func New() *Extractor {
	return &Extractor{imageAttributes: defaultImageAttributes}
}

// Extract parses the page, strips configured elements and resolves every field
// of the requested kind. A page on which no field matched is an error.
func (e *Extractor) Extract(req Request) (entity.ExtractedRecord, error) {
	cfg := req.Config
	if cfg == nil || !cfg.HasKind(req.Kind) {
		return nil, &entity.ExtractionError{Reason: entity.ReasonMissingSelectorConfig, Detail: "no selectors for " + string(req.Kind)}
	}

	base, err := url.Parse(req.BaseURL)
	if err != nil {
		return nil, &entity.ExtractionError{Reason: entity.ReasonParseFailed, Detail: "base url: " + err.Error()}
	}

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(req.HTML))
	if err != nil {
		return nil, &entity.ExtractionError{Reason: entity.ReasonParseFailed, Detail: err.Error()}
	}

	if href, ok := doc.Find("base[href]").First().Attr("href"); ok {
		if ref, err := url.Parse(strings.TrimSpace(href)); err == nil {
			base = base.ResolveReference(ref)
		}
	}

	for _, sel := range cfg.RemoveElements {
		doc.Find(sel).Remove()
	}

	p := &page{
		doc:        doc,
		base:       base,
		cfg:        cfg,
		imageAttrs: e.imageAttributes,
	}
	if cfg.Image != nil && len(cfg.Image.Attributes) > 0 {
		p.imageAttrs = cfg.Image.Attributes
	}

	var record entity.ExtractedRecord
	switch req.Kind {
	case entity.KindArticle:
		record = p.article(cfg.Selectors.Article, req.SourceURL)
	case entity.KindProduct:
		record = p.product(cfg.Selectors.Product, req.SourceURL)
	}

	if record.IsEmpty() {
		return nil, &entity.ExtractionError{Reason: entity.ReasonNoContentMatched}
	}
	return record, nil
}

// page carries the parsed document through field resolution.
type page struct {
	doc        *goquery.Document
	base       *url.URL
	cfg        *entity.SelectorConfig
	imageAttrs []string
}

func (p *page) article(sel *entity.ArticleSelectors, sourceURL string) *entity.ExtractedArticle {
	a := &entity.ExtractedArticle{
		Title:         p.transform(entity.FieldTitle, p.text(sel.Title)),
		Content:       p.transform(entity.FieldContent, p.rich(sel.Content)),
		Excerpt:       p.transform(entity.FieldExcerpt, p.text(sel.Excerpt)),
		FeaturedImage: p.imageURL(p.transform(entity.FieldFeaturedImage, p.image(sel.FeaturedImage))),
		SourceURL:     sourceURL,
	}

	if a.FeaturedImage == "" && p.cfg.Image != nil {
		if extra := p.images(p.cfg.Image.Selector); len(extra) > 0 {
			a.FeaturedImage = extra[0]
		}
	}

	plain := collapseWhitespace(sanitize.HTML(a.Content))
	p.deriveSEO(a, plain)
	a.Language = detectLanguage(a.Title, a.Excerpt, plain)
	return a
}

func (p *page) product(sel *entity.ProductSelectors, sourceURL string) *entity.ExtractedProduct {
	pr := &entity.ExtractedProduct{
		Name:        p.transform(entity.FieldName, p.text(sel.Name)),
		Description: p.transform(entity.FieldDescription, p.text(sel.Description)),
		SourceURL:   sourceURL,
	}

	if raw := p.transform(entity.FieldPrice, p.text(sel.Price)); raw != "" {
		locale, dec := numberHints(p.cfg.TransformsFor(entity.FieldPrice))
		if v, ok := ParsePrice(raw, locale, dec); ok {
			pr.Price = &v
		}
	}

	images := p.images(sel.Images)
	if p.cfg.Image != nil {
		images = append(images, p.images(p.cfg.Image.Selector)...)
	}
	pr.Images = dedupe(images)
	return pr
}

func (p *page) transform(field, value string) string {
	return applyTransforms(value, p.cfg.TransformsFor(field))
}

// text returns the first non-empty value among the alternatives, reading an
// attribute or the collapsed text of the first matching element.
func (p *page) text(fs entity.FieldSelector) string {
	for _, sel := range fs {
		s := p.doc.Find(sel.CSS).First()
		if s.Length() == 0 {
			continue
		}
		var v string
		if sel.IsAttr() {
			v = strings.TrimSpace(s.AttrOr(sel.Attr, ""))
		} else {
			v = collapseWhitespace(s.Text())
		}
		if v != "" {
			return v
		}
	}
	return ""
}

// rich is text for fields that keep markup: text selectors yield the
// sanitized inner HTML of the element.
func (p *page) rich(fs entity.FieldSelector) string {
	for _, sel := range fs {
		s := p.doc.Find(sel.CSS).First()
		if s.Length() == 0 {
			continue
		}
		if sel.IsAttr() {
			if v := strings.TrimSpace(s.AttrOr(sel.Attr, "")); v != "" {
				return v
			}
			continue
		}
		inner, err := s.Html()
		if err != nil {
			continue
		}
		clean, err := sanitize.HTMLAllowing(inner, contentTags, contentAttributes)
		if err != nil {
			continue
		}
		if clean = strings.TrimSpace(clean); collapseWhitespace(sanitize.HTML(clean)) != "" {
			return clean
		}
	}
	return ""
}

// image reads a single raw image reference, looking at the preferred image
// attributes when the selector does not name one.
func (p *page) image(fs entity.FieldSelector) string {
	for _, sel := range fs {
		s := p.doc.Find(sel.CSS).First()
		if s.Length() == 0 {
			continue
		}
		if v := p.imageValue(s, sel); v != "" {
			return v
		}
	}
	return ""
}

// images collects every match of the first alternative that yields any,
// resolved and filtered by the image host whitelist.
func (p *page) images(fs entity.FieldSelector) []string {
	for _, sel := range fs {
		var out []string
		p.doc.Find(sel.CSS).Each(func(_ int, s *goquery.Selection) {
			raw := p.transform(entity.FieldImages, p.imageValue(s, sel))
			if u := p.imageURL(raw); u != "" {
				out = append(out, u)
			}
		})
		if len(out) > 0 {
			return out
		}
	}
	return nil
}

func (p *page) imageValue(s *goquery.Selection, sel entity.Selector) string {
	if sel.IsAttr() {
		return strings.TrimSpace(s.AttrOr(sel.Attr, ""))
	}
	for _, attr := range p.imageAttrs {
		if v := strings.TrimSpace(s.AttrOr(attr, "")); v != "" {
			return v
		}
	}
	return collapseWhitespace(s.Text())
}

// imageURL resolves raw against the page base and applies the host whitelist.
func (p *page) imageURL(raw string) string {
	abs := p.absolute(raw)
	if abs == "" || !p.hostAllowed(abs) {
		return ""
	}
	return abs
}

// absolute resolves a reference to an http(s) URL, or returns "".
func (p *page) absolute(raw string) string {
	if raw == "" {
		return ""
	}
	abs, err := utils.ToAbsoluteURL(p.base, raw)
	if err != nil {
		return ""
	}
	if !strings.HasPrefix(abs, "http://") && !strings.HasPrefix(abs, "https://") {
		return ""
	}
	return abs
}

func (p *page) hostAllowed(abs string) bool {
	if p.cfg.Image == nil || len(p.cfg.Image.AllowedHosts) == 0 {
		return true
	}
	host := utils.Host(abs)
	for _, allowed := range p.cfg.Image.AllowedHosts {
		allowed = strings.ToLower(strings.TrimSpace(allowed))
		if host == allowed || strings.HasSuffix(host, "."+allowed) {
			return true
		}
	}
	return false
}

// deriveSEO fills meta fields from configured selectors, falling back to the
// title and excerpt (or body text) cut to the configured lengths.
func (p *page) deriveSEO(a *entity.ExtractedArticle, plainContent string) {
	seo := p.cfg.SEO
	if seo == nil {
		return
	}

	a.MetaTitle = p.text(seo.MetaTitle)
	if a.MetaTitle == "" {
		a.MetaTitle = truncate(a.Title, seo.TitleMaxLength)
	}
	a.MetaTitle = p.transform(entity.FieldMetaTitle, a.MetaTitle)

	a.MetaDescription = p.text(seo.MetaDescription)
	if a.MetaDescription == "" {
		desc := a.Excerpt
		if desc == "" {
			desc = plainContent
		}
		a.MetaDescription = truncate(desc, seo.DescriptionMaxLength)
	}
	a.MetaDescription = p.transform(entity.FieldMetaDescription, a.MetaDescription)
}

// detectLanguage returns the ISO 639-3 code of the article text, or "".
func detectLanguage(title, excerpt, body string) string {
	words := strings.Fields(body)
	if len(words) > languageSnippetWords {
		words = words[:languageSnippetWords]
	}
	text := strings.TrimSpace(title + " " + excerpt + " " + strings.Join(words, " "))
	if text == "" {
		return ""
	}
	return whatlanggo.Detect(text).Lang.Iso6393()
}

func dedupe(in []string) []string {
	if len(in) == 0 {
		return nil
	}
	seen := make(map[string]struct{}, len(in))
	out := in[:0]
	for _, v := range in {
		if _, ok := seen[v]; ok {
			continue
		}
		seen[v] = struct{}{}
		out = append(out, v)
	}
	return out
}
