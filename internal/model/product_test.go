package model

import (
	"testing"
)

func floatPtr(v float64) *float64 { return &v }

func intPtr(v int) *int { return &v }

func TestProduct_RecomputeRating(t *testing.T) {
	t.Parallel()

	p := &Product{
		Reviews: []Review{
			{ID: "r1", Rating: floatPtr(4)},
			{ID: "r2", Rating: floatPtr(5)},
			{ID: "r3", Rating: floatPtr(3)},
		},
	}
	p.RecomputeRating()

	if p.Rating == nil || *p.Rating != 4.0 {
		t.Fatalf("Rating = %v, want 4.0", p.Rating)
	}
	if p.ReviewCount != 3 {
		t.Errorf("ReviewCount = %d, want 3", p.ReviewCount)
	}

	// An unrated review changes neither the mean nor the count.
	p.Reviews = append(p.Reviews, Review{ID: "r4"})
	p.RecomputeRating()

	if p.Rating == nil || *p.Rating != 4.0 {
		t.Errorf("Rating = %v after unrated review, want 4.0", p.Rating)
	}
	if p.ReviewCount != 3 {
		t.Errorf("ReviewCount = %d after unrated review, want 3", p.ReviewCount)
	}
}

func TestProduct_RecomputeRating_RoundsToOneDecimal(t *testing.T) {
	t.Parallel()

	p := &Product{Reviews: []Review{
		{Rating: floatPtr(4)},
		{Rating: floatPtr(4)},
		{Rating: floatPtr(5)},
	}}
	p.RecomputeRating()

	if p.Rating == nil || *p.Rating != 4.3 {
		t.Errorf("Rating = %v, want 4.3", p.Rating)
	}
}

func TestProduct_RecomputeRating_NoReviews(t *testing.T) {
	t.Parallel()

	stale := 2.5
	p := &Product{Rating: &stale, ReviewCount: 9}
	p.RecomputeRating()

	if p.Rating != nil {
		t.Errorf("Rating = %v, want nil", *p.Rating)
	}
	if p.ReviewCount != 0 {
		t.Errorf("ReviewCount = %d, want 0", p.ReviewCount)
	}
}

func TestProduct_Destination(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		product Product
		want    string
	}{
		{"affiliate_wins", Product{AffiliateURL: "https://aff.example", WebsiteURL: "https://site.example"}, "https://aff.example"},
		{"website_url", Product{WebsiteURL: "https://site.example", Website: "https://old.example"}, "https://site.example"},
		{"website", Product{Website: "https://old.example"}, "https://old.example"},
		{"blank_affiliate_ignored", Product{AffiliateURL: "  ", Website: "https://old.example"}, "https://old.example"},
		{"none", Product{}, ""},
	}

	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			if got := test.product.Destination(); got != test.want {
				t.Errorf("Destination() = %q, want %q", got, test.want)
			}
		})
	}
}

func TestSlugify(t *testing.T) {
	t.Parallel()

	tests := map[string]string{
		"ZenNext CRM":        "zennext-crm",
		"  Marketing / SEO ": "marketing-seo",
		"already-a-slug":     "already-a-slug",
		"!!!":                "",
		"Tool 2.0":           "tool-2-0",
	}

	for input, want := range tests {
		if got := Slugify(input); got != want {
			t.Errorf("Slugify(%q) = %q, want %q", input, got, want)
		}
	}
}

func TestIsValidSlug(t *testing.T) {
	t.Parallel()

	if !IsValidSlug("zen-crm-2") {
		t.Error("expected zen-crm-2 to be valid")
	}
	for _, bad := range []string{"", "Zen", "zen crm", "zen_crm"} {
		if IsValidSlug(bad) {
			t.Errorf("expected %q to be invalid", bad)
		}
	}
}

func TestSortForDisplay(t *testing.T) {
	t.Parallel()

	products := []Product{
		{ID: "c", Name: "Charlie"},
		{ID: "b", Name: "bravo", SponsoredRank: intPtr(2)},
		{ID: "a", Name: "Alpha"},
		{ID: "d", Name: "Delta", SponsoredRank: intPtr(1)},
	}
	SortForDisplay(products)

	want := []string{"d", "b", "a", "c"}
	for i, id := range want {
		if products[i].ID != id {
			t.Fatalf("position %d = %s, want %s (order %v)", i, products[i].ID, id, products)
		}
	}
}

func TestSplitList(t *testing.T) {
	t.Parallel()

	got := SplitList(" Web, iOS ,, Android ")
	want := []string{"Web", "iOS", "Android"}
	if len(got) != len(want) {
		t.Fatalf("SplitList len = %d, want %d", len(got), len(want))
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("SplitList[%d] = %q, want %q", i, got[i], want[i])
		}
	}
}

func TestIsHTTPURL(t *testing.T) {
	t.Parallel()

	tests := []struct {
		raw  string
		want bool
	}{
		{"https://example.com/a?b=c", true},
		{"http://example.com:8080", true},
		{"ftp://bad", false},
		{"/relative/path", false},
		{"https://", false},
		{"javascript:alert(1)", false},
		{"", false},
	}

	for _, test := range tests {
		if got := IsHTTPURL(test.raw); got != test.want {
			t.Errorf("IsHTTPURL(%q) = %v, want %v", test.raw, got, test.want)
		}
	}
}
