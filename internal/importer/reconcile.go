package importer

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/kamazennext/catalog/internal/model"
)

// fallbackSlug is used when neither slug nor name yields any slug characters.
const fallbackSlug = "tool"

// reconciler upserts rows into one in-memory catalog.
type reconciler struct {
	products []model.Product
	bySlug   map[string]int   // lower(slug) and lower(id) -> index
	byName   map[string][]int // lower(name) -> indexes
	ids      map[string]bool
	slugs    map[string]bool
	today    string
}

func newReconciler(products []model.Product, now time.Time) *reconciler {
	r := &reconciler{
		products: products,
		bySlug:   make(map[string]int, len(products)),
		byName:   make(map[string][]int, len(products)),
		ids:      make(map[string]bool, len(products)),
		slugs:    make(map[string]bool, len(products)),
		today:    now.UTC().Format("2006-01-02"),
	}

	// Slugs take precedence over ids that happen to look the same.
	for i := range products {
		if slug := strings.ToLower(products[i].Slug); slug != "" {
			r.bySlug[slug] = i
			r.slugs[slug] = true
		}
	}
	for i := range products {
		r.index(i)
	}

	return r
}

// index registers product i in the lookup maps without overriding earlier
// entries.
func (r *reconciler) index(i int) {
	p := r.products[i]
	if p.ID != "" {
		r.ids[p.ID] = true
		if _, ok := r.bySlug[strings.ToLower(p.ID)]; !ok {
			r.bySlug[strings.ToLower(p.ID)] = i
		}
	}
	if slug := strings.ToLower(p.Slug); slug != "" {
		r.slugs[slug] = true
		if _, ok := r.bySlug[slug]; !ok {
			r.bySlug[slug] = i
		}
	}
	if name := strings.ToLower(p.Name); name != "" {
		for _, existing := range r.byName[name] {
			if existing == i {
				return
			}
		}
		r.byName[name] = append(r.byName[name], i)
	}
}

// unindex drops the slug and name keys product i held as before and no longer
// holds, so later rows in the batch cannot match it by a stale identity.
func (r *reconciler) unindex(i int, before model.Product) {
	p := r.products[i]

	if old := strings.ToLower(before.Slug); old != "" && old != strings.ToLower(p.Slug) {
		delete(r.slugs, old)
		if owner, ok := r.bySlug[old]; ok && owner == i && old != strings.ToLower(p.ID) {
			delete(r.bySlug, old)
		}
	}

	if old := strings.ToLower(before.Name); old != "" && old != strings.ToLower(p.Name) {
		kept := r.byName[old][:0]
		for _, existing := range r.byName[old] {
			if existing != i {
				kept = append(kept, existing)
			}
		}
		if len(kept) == 0 {
			delete(r.byName, old)
		} else {
			r.byName[old] = kept
		}
	}
}

// outcome of applying one row.
type outcome int

const (
	outcomeCreated outcome = iota
	outcomeUpdated
	outcomeSkipped
)

// apply merges one validated row. Matching is by slug first, then by name;
// an unmatched row creates a product with a unique id and slug. A name shared
// by several products is ambiguous and the row is skipped.
func (r *reconciler) apply(row Row) (outcome, string) {
	name, _ := row.Get(ColName)
	explicitSlug, hasSlug := row.Get(ColSlug)

	slug := explicitSlug
	if !hasSlug {
		slug = model.Slugify(name)
	}

	idx, matched := -1, false
	if slug != "" {
		idx, matched = r.bySlug[strings.ToLower(slug)]
	}
	if !matched {
		switch candidates := r.byName[strings.ToLower(name)]; len(candidates) {
		case 0:
		case 1:
			idx, matched = candidates[0], true
		default:
			return outcomeSkipped, fmt.Sprintf("Row %d: name %q matches %d products; add a slug to pick one", row.Line, name, len(candidates))
		}
	}

	if !matched {
		p := model.Product{}
		applyFields(&p, row)

		base := slug
		if base == "" {
			base = fallbackSlug
		}
		p.ID = uniqueValue(base, func(v string) bool { return r.ids[v] || r.bySlugTaken(v) })
		p.Slug = uniqueValue(base, func(v string) bool { return r.slugs[v] || r.bySlugTaken(v) })
		if p.LastUpdated == "" {
			p.LastUpdated = r.today
		}

		r.products = append(r.products, p)
		r.index(len(r.products) - 1)
		return outcomeCreated, ""
	}

	p := &r.products[idx]
	before := *p

	applyFields(p, row)

	switch {
	case hasSlug:
		p.Slug = explicitSlug
	case p.Slug == "" && slug != "":
		p.Slug = uniqueValue(slug, func(v string) bool { return r.slugs[v] || r.bySlugTaken(v) })
	}
	r.unindex(idx, before)
	r.index(idx)

	return outcomeUpdated, ""
}

// bySlugTaken reports whether v already resolves to a product by slug or id.
func (r *reconciler) bySlugTaken(v string) bool {
	_, ok := r.bySlug[strings.ToLower(v)]
	return ok
}

// uniqueValue returns base, or base-2, base-3, ... until taken reports false.
func uniqueValue(base string, taken func(string) bool) string {
	candidate := base
	for suffix := 2; taken(candidate); suffix++ {
		candidate = base + "-" + strconv.Itoa(suffix)
	}
	return candidate
}

// applyFields copies every non-empty cell of row onto p. Cells that are
// absent or empty leave the existing value untouched.
func applyFields(p *model.Product, row Row) {
	if v, ok := row.Get(ColName); ok {
		p.Name = v
	}
	if v, ok := row.Get(ColCategory); ok {
		p.Category = v
	}
	if v, ok := row.Get(ColTagline); ok {
		p.Tagline = v
	}
	if v, ok := row.Get(ColWebsiteURL); ok {
		p.Website = v
		p.WebsiteURL = v
	}
	if v, ok := row.Get(ColAffiliateURL); ok {
		p.AffiliateURL = v
	}
	if v, ok := row.Get(ColLogoURL); ok {
		p.Logo = v
	}
	if v, ok := row.Get(ColPricingModel); ok {
		p.Pricing.Model = strings.ToLower(v)
	}
	if v, ok := ParseBool(row.Values[ColAPIAvailable]); ok {
		p.API = v
	}
	if v, ok := row.Get(ColPlatforms); ok {
		p.Platforms = model.SplitList(v)
	}
	if v, ok := row.Get(ColBestFor); ok {
		p.BestFor = model.SplitList(v)
	}
	if v, ok := row.Get(ColKeyFeatures); ok {
		p.KeyFeatures = model.SplitList(v)
	}
	for _, column := range []string{ColFeaturedRank, ColSponsoredRank} {
		if v, ok := row.Get(column); ok {
			if rank, err := strconv.Atoi(v); err == nil {
				p.SponsoredRank = &rank
			}
		}
	}
	if v, ok := row.Get(ColLastUpdated); ok {
		p.LastUpdated = v
	}
}
