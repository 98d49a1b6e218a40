package entity

// DefaultSelectorConfig covers common article and product markup so jobs can
// run before any source is configured.
func DefaultSelectorConfig() *SelectorConfig {
	return &SelectorConfig{
		Selectors: Selectors{
			Article: &ArticleSelectors{
				Title: Fields(
					"article h1",
					"h1",
					"meta[property='og:title']::attr(content)",
					"title",
				),
				Content: Fields(
					"[itemprop='articleBody']",
					".entry-content",
					".post-content",
					".article-content",
					"article",
					"main",
				),
				Excerpt: Fields(
					"meta[name='description']::attr(content)",
					"meta[property='og:description']::attr(content)",
					"p.lead",
				),
				FeaturedImage: Fields(
					"meta[property='og:image']::attr(content)",
					"article img::attr(src)",
				),
			},
			Product: &ProductSelectors{
				Name: Fields(
					"[itemprop='name']",
					"h1",
					"meta[property='og:title']::attr(content)",
				),
				Price: Fields(
					"[itemprop='price']::attr(content)",
					"meta[property='product:price:amount']::attr(content)",
					".price",
					".product-price",
				),
				Description: Fields(
					"[itemprop='description']",
					".product-description",
					"meta[name='description']::attr(content)",
				),
				Images: Fields(
					".product-gallery img::attr(src)",
					"[itemprop='image']::attr(src)",
					"meta[property='og:image']::attr(content)",
				),
			},
		},
		RemoveElements: []string{
			"script, style, noscript, iframe",
			".ad, .ads, .advertisement, .ad-banner",
			".share, .social-share, .sharing",
			"nav, footer",
		},
		Transforms: map[string][]Transform{
			FieldExcerpt: {{Type: TransformTruncate, MaxLength: 300}},
		},
		SEO: &SEOConfig{
			TitleMaxLength:       70,
			DescriptionMaxLength: 160,
		},
	}
}
