package importer

import (
	"testing"
	"time"

	"github.com/kamazennext/catalog/internal/model"
)

func row(line int, values map[string]string) Row {
	return Row{Line: line, Values: values}
}

func TestReconciler_RenamedProductLeavesOldIdentity(t *testing.T) {
	t.Parallel()

	rec := newReconciler([]model.Product{
		{ID: "p1", Slug: "alpha-old", Name: "Alpha"},
	}, time.Date(2026, 5, 6, 0, 0, 0, 0, time.UTC))

	// Matched by name; moves the product to a new slug and name.
	if got, reason := rec.apply(row(2, map[string]string{ColName: "Alpha", ColSlug: "alpha-new"})); got != outcomeUpdated {
		t.Fatalf("row 2 outcome = %v (%s), want updated", got, reason)
	}
	if got, reason := rec.apply(row(3, map[string]string{ColName: "Alpha Prime", ColSlug: "alpha-new"})); got != outcomeUpdated {
		t.Fatalf("row 3 outcome = %v (%s), want updated", got, reason)
	}

	// The freed slug and name now describe a different product.
	if got, reason := rec.apply(row(4, map[string]string{ColName: "Beta", ColSlug: "alpha-old"})); got != outcomeCreated {
		t.Fatalf("row 4 outcome = %v (%s), want created", got, reason)
	}
	if got, reason := rec.apply(row(5, map[string]string{ColName: "Alpha"})); got != outcomeCreated {
		t.Fatalf("row 5 outcome = %v (%s), want created", got, reason)
	}

	if len(rec.products) != 3 {
		t.Fatalf("products = %d, want 3", len(rec.products))
	}
	renamed := rec.products[0]
	if renamed.Slug != "alpha-new" || renamed.Name != "Alpha Prime" {
		t.Errorf("renamed product = %q/%q, want alpha-new/Alpha Prime", renamed.Slug, renamed.Name)
	}
	if got := rec.products[1]; got.Slug != "alpha-old" || got.Name != "Beta" {
		t.Errorf("row 4 product = %q/%q, want alpha-old/Beta", got.Slug, got.Name)
	}
	if got := rec.products[2]; got.Slug != "alpha" || got.Name != "Alpha" {
		t.Errorf("row 5 product = %q/%q, want alpha/Alpha", got.Slug, got.Name)
	}
}

func TestReconciler_SlugChangeKeepsIDMatch(t *testing.T) {
	t.Parallel()

	rec := newReconciler([]model.Product{
		{ID: "zen", Slug: "zen", Name: "Zen"},
	}, time.Now())

	if got, _ := rec.apply(row(2, map[string]string{ColName: "Zen", ColSlug: "zen-crm"})); got != outcomeUpdated {
		t.Fatalf("outcome = %v, want updated", got)
	}
	// "zen" is still the product's id.
	if got, _ := rec.apply(row(3, map[string]string{ColName: "Zen CRM", ColSlug: "zen"})); got != outcomeUpdated {
		t.Fatalf("outcome = %v, want updated through the id", got)
	}
	if len(rec.products) != 1 {
		t.Errorf("products = %d, want 1", len(rec.products))
	}
}
