// Package model defines domain entities for the application.
package model

import (
	"math"
	"net/url"
	"regexp"
	"sort"
	"strings"
)

// Pricing describes how a product is sold.
type Pricing struct {
	Model         string   `json:"model"`
	StartingPrice *float64 `json:"starting_price"`
	FreeTrial     bool     `json:"free_trial"`
}

// Review is a single user review attached to a product.
type Review struct {
	ID     string   `json:"id"`
	Author string   `json:"author"`
	Rating *float64 `json:"rating"` // 1-5, nil when not rated
	Title  string   `json:"title"`
	Body   string   `json:"body"`
	Pros   []string `json:"pros"`
	Cons   []string `json:"cons"`
	Date   string   `json:"date"`
}

// Product is the catalog's unit of record.
type Product struct {
	ID       string `json:"id" validate:"required,max=100"`
	Slug     string `json:"slug,omitempty" validate:"omitempty,max=100,slug"`
	Name     string `json:"name" validate:"required,max=200"`
	Category string `json:"category"`
	Tagline  string `json:"tagline"`
	Logo     string `json:"logo,omitempty"`

	Pricing Pricing `json:"pricing"`

	Platforms    []string `json:"platforms"`
	BestFor      []string `json:"best_for"`
	KeyFeatures  []string `json:"key_features"`
	Integrations []string `json:"integrations"`
	Pros         []string `json:"pros"`
	Cons         []string `json:"cons"`
	UseCases     []string `json:"use_cases"`

	API           bool `json:"api"`
	Featured      bool `json:"featured"`
	SponsoredRank *int `json:"sponsored_rank"` // lower sorts first, nil = not sponsored

	Website      string `json:"website,omitempty" validate:"omitempty,httpurl"`
	WebsiteURL   string `json:"website_url,omitempty" validate:"omitempty,httpurl"`
	AffiliateURL string `json:"affiliate_url,omitempty" validate:"omitempty,httpurl"`

	LastUpdated string `json:"last_updated"`

	// Derived from Reviews on every save.
	Rating      *float64 `json:"rating"`
	ReviewCount int      `json:"review_count"`
	Reviews     []Review `json:"reviews"`
}

// Review rating bounds.
const (
	MinRating = 1.0
	MaxRating = 5.0
)

var slugInvalidChars = regexp.MustCompile(`[^a-z0-9]+`)

// Slugify lower-cases the value and collapses every run of non [a-z0-9]
// characters into a single hyphen.
func Slugify(value string) string {
	slug := strings.ToLower(strings.TrimSpace(value))
	slug = slugInvalidChars.ReplaceAllString(slug, "-")
	return strings.Trim(slug, "-")
}

var slugPattern = regexp.MustCompile(`^[a-z0-9-]+$`)

// IsValidSlug reports whether slug is non-empty lower-kebab-case.
func IsValidSlug(slug string) bool {
	return slugPattern.MatchString(slug)
}

// IsHTTPURL reports whether raw is an absolute http or https URL with a host.
func IsHTTPURL(raw string) bool {
	parsed, err := url.Parse(strings.TrimSpace(raw))
	if err != nil {
		return false
	}
	if parsed.Scheme != "http" && parsed.Scheme != "https" {
		return false
	}
	return parsed.Host != ""
}

// PublicSlug returns the identifier used in public URLs: the slug when set,
// otherwise the id.
func (p *Product) PublicSlug() string {
	if p.Slug != "" {
		return p.Slug
	}
	return p.ID
}

// Destination returns the outbound URL for the product.
// The affiliate URL takes precedence over the website fields.
func (p *Product) Destination() string {
	for _, candidate := range []string{p.AffiliateURL, p.WebsiteURL, p.Website} {
		if trimmed := strings.TrimSpace(candidate); trimmed != "" {
			return trimmed
		}
	}
	return ""
}

// ClampRating bounds a review rating to [MinRating, MaxRating].
func ClampRating(rating float64) float64 {
	return math.Max(MinRating, math.Min(MaxRating, rating))
}

// RecomputeRating derives Rating and ReviewCount from Reviews.
// Reviews without a rating are excluded from both the mean and the count.
func (p *Product) RecomputeRating() {
	var total float64
	count := 0
	for _, review := range p.Reviews {
		if review.Rating == nil {
			continue
		}
		total += *review.Rating
		count++
	}

	p.ReviewCount = count
	if count == 0 {
		p.Rating = nil
		return
	}

	mean := math.Round(total/float64(count)*10) / 10
	p.Rating = &mean
}

// SortForDisplay orders products the way the storefront lists them:
// sponsored products by ascending rank first, then everything else by name.
func SortForDisplay(products []Product) {
	sort.SliceStable(products, func(i, j int) bool {
		a, b := products[i].SponsoredRank, products[j].SponsoredRank
		switch {
		case a != nil && b != nil && *a != *b:
			return *a < *b
		case a != nil && b == nil:
			return true
		case a == nil && b != nil:
			return false
		}
		return strings.ToLower(products[i].Name) < strings.ToLower(products[j].Name)
	})
}

// SplitList splits a comma-delimited value into trimmed, non-empty items.
func SplitList(value string) []string {
	parts := strings.Split(value, ",")
	items := make([]string, 0, len(parts))
	for _, part := range parts {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			items = append(items, trimmed)
		}
	}
	return items
}
