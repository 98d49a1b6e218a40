package entity

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strings"

	"github.com/andybalholm/cascadia"
)

// Field names addressable by selectors and transforms.
const (
	FieldTitle           = "title"
	FieldContent         = "content"
	FieldExcerpt         = "excerpt"
	FieldFeaturedImage   = "featuredImage"
	FieldName            = "name"
	FieldPrice           = "price"
	FieldDescription     = "description"
	FieldImages          = "images"
	FieldMetaTitle       = "metaTitle"
	FieldMetaDescription = "metaDescription"
)

var attrSuffix = regexp.MustCompile(`^(.*?)::attr\(\s*([^()\s]+)\s*\)\s*$`)

// Selector addresses either the text of the first matching element or,
// when Attr is set, one of its attributes.
type Selector struct {
	CSS  string
	Attr string
}

// TextSelector reads the element's text content.
func TextSelector(css string) Selector { return Selector{CSS: css} }

// AttrSelector reads the named attribute of the element.
func AttrSelector(css, attr string) Selector { return Selector{CSS: css, Attr: attr} }

// IsAttr reports whether the selector reads an attribute.
func (s Selector) IsAttr() bool { return s.Attr != "" }

func (s Selector) String() string {
	if s.IsAttr() {
		return fmt.Sprintf("%s::attr(%s)", s.CSS, s.Attr)
	}
	return s.CSS
}

// ParseSelector parses the `css` or `css::attr(name)` expression form and
// checks that the CSS part compiles.
func ParseSelector(expr string) (Selector, error) {
	expr = strings.TrimSpace(expr)
	if expr == "" {
		return Selector{}, fmt.Errorf("empty selector")
	}

	sel := Selector{CSS: expr}
	if m := attrSuffix.FindStringSubmatch(expr); m != nil {
		sel = Selector{CSS: strings.TrimSpace(m[1]), Attr: m[2]}
	} else if strings.Contains(expr, "::attr") {
		return Selector{}, fmt.Errorf("malformed attribute accessor in %q", expr)
	}

	if sel.CSS == "" {
		return Selector{}, fmt.Errorf("missing css before attribute accessor in %q", expr)
	}
	if _, err := cascadia.ParseGroup(sel.CSS); err != nil {
		return Selector{}, fmt.Errorf("invalid css %q: %w", sel.CSS, err)
	}
	return sel, nil
}

// MustSelector is ParseSelector for built-in expressions.
func MustSelector(expr string) Selector {
	sel, err := ParseSelector(expr)
	if err != nil {
		panic(err)
	}
	return sel
}

// FieldSelector is an ordered list of alternatives; the first that yields a value wins.
type FieldSelector []Selector

// Fields builds a FieldSelector from expressions, panicking on invalid input.
func Fields(exprs ...string) FieldSelector {
	fs := make(FieldSelector, 0, len(exprs))
	for _, e := range exprs {
		fs = append(fs, MustSelector(e))
	}
	return fs
}

// UnmarshalJSON accepts a single expression or a list of expressions.
func (f *FieldSelector) UnmarshalJSON(data []byte) error {
	var exprs []string
	var single string
	if err := json.Unmarshal(data, &single); err == nil {
		exprs = []string{single}
	} else if err := json.Unmarshal(data, &exprs); err != nil {
		return fmt.Errorf("selector must be a string or a list of strings")
	}

	out := make(FieldSelector, 0, len(exprs))
	for _, e := range exprs {
		sel, err := ParseSelector(e)
		if err != nil {
			return err
		}
		out = append(out, sel)
	}
	*f = out
	return nil
}

func (f FieldSelector) MarshalJSON() ([]byte, error) {
	exprs := make([]string, 0, len(f))
	for _, s := range f {
		exprs = append(exprs, s.String())
	}
	return json.Marshal(exprs)
}

// ArticleSelectors holds the selectors for article extraction.
type ArticleSelectors struct {
	Title         FieldSelector `json:"title,omitempty"`
	Content       FieldSelector `json:"content,omitempty"`
	Excerpt       FieldSelector `json:"excerpt,omitempty"`
	FeaturedImage FieldSelector `json:"featuredImage,omitempty"`
}

func (a *ArticleSelectors) empty() bool {
	return len(a.Title) == 0 && len(a.Content) == 0 && len(a.Excerpt) == 0 && len(a.FeaturedImage) == 0
}

// ProductSelectors holds the selectors for product extraction.
type ProductSelectors struct {
	Name        FieldSelector `json:"name,omitempty"`
	Price       FieldSelector `json:"price,omitempty"`
	Description FieldSelector `json:"description,omitempty"`
	Images      FieldSelector `json:"images,omitempty"`
}

func (p *ProductSelectors) empty() bool {
	return len(p.Name) == 0 && len(p.Price) == 0 && len(p.Description) == 0 && len(p.Images) == 0
}

// Selectors maps content kinds to their field selectors. A nil variant means
// the source cannot extract that kind.
type Selectors struct {
	Article *ArticleSelectors `json:"article,omitempty"`
	Product *ProductSelectors `json:"product,omitempty"`
}

// UnmarshalJSON rejects unknown kinds and field names.
func (s *Selectors) UnmarshalJSON(data []byte) error {
	var raw map[string]map[string]FieldSelector
	if err := json.Unmarshal(data, &raw); err != nil {
		return &SelectorConfigError{Field: "selectors", Reason: err.Error()}
	}

	var out Selectors
	for kind, fields := range raw {
		switch ContentKind(kind) {
		case KindArticle:
			a := &ArticleSelectors{}
			for name, fs := range fields {
				switch name {
				case FieldTitle:
					a.Title = fs
				case FieldContent:
					a.Content = fs
				case FieldExcerpt:
					a.Excerpt = fs
				case FieldFeaturedImage:
					a.FeaturedImage = fs
				default:
					return &SelectorConfigError{Field: "selectors.article." + name, Reason: "unknown field"}
				}
			}
			out.Article = a
		case KindProduct:
			p := &ProductSelectors{}
			for name, fs := range fields {
				switch name {
				case FieldName:
					p.Name = fs
				case FieldPrice:
					p.Price = fs
				case FieldDescription:
					p.Description = fs
				case FieldImages:
					p.Images = fs
				default:
					return &SelectorConfigError{Field: "selectors.product." + name, Reason: "unknown field"}
				}
			}
			out.Product = p
		default:
			return &SelectorConfigError{Field: "selectors." + kind, Reason: "unknown content kind"}
		}
	}
	*s = out
	return nil
}

// TransformType names a post-processing directive.
type TransformType string

const (
	TransformTrim               TransformType = "trim"
	TransformStripHTML          TransformType = "strip_html"
	TransformCollapseWhitespace TransformType = "collapse_whitespace"
	TransformNumber             TransformType = "number"
	TransformCurrency           TransformType = "currency"
	TransformTruncate           TransformType = "truncate"
)

// Transform is one post-processing step for a field.
type Transform struct {
	Type             TransformType `json:"type"`
	Locale           string        `json:"locale,omitempty"`
	DecimalSeparator string        `json:"decimalSeparator,omitempty"`
	MaxLength        int           `json:"maxLength,omitempty"`
}

// UnmarshalJSON accepts the bare type name as shorthand.
func (t *Transform) UnmarshalJSON(data []byte) error {
	var name string
	if err := json.Unmarshal(data, &name); err == nil {
		*t = Transform{Type: TransformType(name)}
		return nil
	}
	type plain Transform
	var p plain
	if err := json.Unmarshal(data, &p); err != nil {
		return err
	}
	*t = Transform(p)
	return nil
}

func (t Transform) validate(field string) error {
	switch t.Type {
	case TransformTrim, TransformStripHTML, TransformCollapseWhitespace:
	case TransformNumber, TransformCurrency:
		if field != FieldPrice {
			return &SelectorConfigError{Field: "transforms." + field, Reason: fmt.Sprintf("%s only applies to numeric fields", t.Type)}
		}
		if t.DecimalSeparator != "" && t.DecimalSeparator != "." && t.DecimalSeparator != "," {
			return &SelectorConfigError{Field: "transforms." + field, Reason: "decimalSeparator must be \".\" or \",\""}
		}
	case TransformTruncate:
		if t.MaxLength <= 0 {
			return &SelectorConfigError{Field: "transforms." + field, Reason: "truncate needs a positive maxLength"}
		}
	default:
		return &SelectorConfigError{Field: "transforms." + field, Reason: fmt.Sprintf("unknown transform %q", t.Type)}
	}
	return nil
}

// SEOConfig holds hints for deriving meta title and description.
type SEOConfig struct {
	MetaTitle            FieldSelector `json:"metaTitle,omitempty"`
	MetaDescription      FieldSelector `json:"metaDescription,omitempty"`
	TitleMaxLength       int           `json:"titleMaxLength,omitempty"`
	DescriptionMaxLength int           `json:"descriptionMaxLength,omitempty"`
}

// ImageConfig controls how image URLs are read and which hosts are accepted.
type ImageConfig struct {
	Selector     FieldSelector `json:"selector,omitempty"`
	Attributes   []string      `json:"attributes,omitempty"`
	AllowedHosts []string      `json:"allowedHosts,omitempty"`
}

// SelectorConfig is the validated extraction configuration of one crawl source.
type SelectorConfig struct {
	Selectors      Selectors              `json:"selectors"`
	RemoveElements []string               `json:"removeElements,omitempty"`
	Transforms     map[string][]Transform `json:"transforms,omitempty"`
	SEO            *SEOConfig             `json:"seoConfig,omitempty"`
	Image          *ImageConfig           `json:"imageConfig,omitempty"`
	RequestHeaders map[string]string      `json:"requestHeaders,omitempty"`
	RenderJS       bool                   `json:"renderJs,omitempty"`
}

var transformableFields = map[string]struct{}{
	FieldTitle: {}, FieldContent: {}, FieldExcerpt: {}, FieldFeaturedImage: {},
	FieldName: {}, FieldPrice: {}, FieldDescription: {}, FieldImages: {},
	FieldMetaTitle: {}, FieldMetaDescription: {},
}

// Validate checks the parts that JSON decoding does not.
func (c *SelectorConfig) Validate() error {
	if c.Selectors.Article != nil && c.Selectors.Article.empty() {
		c.Selectors.Article = nil
	}
	if c.Selectors.Product != nil && c.Selectors.Product.empty() {
		c.Selectors.Product = nil
	}

	for i, expr := range c.RemoveElements {
		if _, err := cascadia.ParseGroup(expr); err != nil {
			return &SelectorConfigError{Field: fmt.Sprintf("removeElements[%d]", i), Reason: err.Error()}
		}
	}

	for field, ts := range c.Transforms {
		if _, ok := transformableFields[field]; !ok {
			return &SelectorConfigError{Field: "transforms." + field, Reason: "unknown field"}
		}
		for _, t := range ts {
			if err := t.validate(field); err != nil {
				return err
			}
		}
	}

	if c.SEO != nil && (c.SEO.TitleMaxLength < 0 || c.SEO.DescriptionMaxLength < 0) {
		return &SelectorConfigError{Field: "seoConfig", Reason: "max lengths must not be negative"}
	}

	for name := range c.RequestHeaders {
		if strings.TrimSpace(name) == "" || strings.ContainsAny(name, " :\r\n") {
			return &SelectorConfigError{Field: "requestHeaders", Reason: fmt.Sprintf("invalid header name %q", name)}
		}
	}
	return nil
}

// HasKind reports whether the config can extract records of kind k.
func (c *SelectorConfig) HasKind(k ContentKind) bool {
	switch k {
	case KindArticle:
		return c.Selectors.Article != nil
	case KindProduct:
		return c.Selectors.Product != nil
	}
	return false
}

// TransformsFor returns the directives configured for a field.
func (c *SelectorConfig) TransformsFor(field string) []Transform {
	return c.Transforms[field]
}
