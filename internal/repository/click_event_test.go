package repository

import (
	"testing"
	"time"

	"github.com/kamazennext/catalog/internal/ledger"
)

func TestBuildWhere(t *testing.T) {
	tests := []struct {
		name      string
		filter    ledger.Filter
		wantWhere string
		wantArgs  int
	}{
		{"empty", ledger.Filter{}, "", 0},
		{"product only", ledger.Filter{ProductID: "zen"}, "\n\t\tWHERE product_id = $1", 1},
		{
			"all fields",
			ledger.Filter{
				Start:     time.Date(2026, 5, 1, 0, 0, 0, 0, time.UTC),
				End:       time.Date(2026, 5, 3, 0, 0, 0, 0, time.UTC),
				ProductID: "zen",
				FromPage:  "home",
			},
			"\n\t\tWHERE ts >= $1 AND ts < $2 AND product_id = $3 AND from_page = $4",
			4,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			where, args := buildWhere(tt.filter)
			if where != tt.wantWhere {
				t.Errorf("where = %q, want %q", where, tt.wantWhere)
			}
			if len(args) != tt.wantArgs {
				t.Errorf("args = %d, want %d", len(args), tt.wantArgs)
			}
		})
	}
}

func TestBuildWhere_EndIsInclusive(t *testing.T) {
	_, args := buildWhere(ledger.Filter{End: time.Date(2026, 5, 3, 15, 0, 0, 0, time.UTC)})

	upper, ok := args[0].(time.Time)
	if !ok {
		t.Fatalf("arg is %T", args[0])
	}
	if want := time.Date(2026, 5, 4, 0, 0, 0, 0, time.UTC); !upper.Equal(want) {
		t.Errorf("upper bound = %v, want %v", upper, want)
	}
}

func TestNullableString(t *testing.T) {
	if nullableString("") != nil {
		t.Error("empty string should map to NULL")
	}
	if nullableString("x") != "x" {
		t.Error("non-empty string should pass through")
	}
}
