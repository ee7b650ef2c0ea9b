package ledger

import (
	"errors"
	"strings"
	"testing"
	"unicode/utf8"
	"time"

	"github.com/kamazennext/catalog/internal/model"
)

func TestHashIP(t *testing.T) {
	t.Parallel()

	// sha256("kz_click_salt_v1" + "203.0.113.9") is stable.
	a := HashIP("kz_click_salt_v1", "203.0.113.9")
	b := HashIP("kz_click_salt_v1", "203.0.113.9")
	if a != b {
		t.Error("same salt and IP should produce the same hash")
	}
	if len(a) != 64 {
		t.Errorf("hash length = %d, want 64", len(a))
	}
	if HashIP("other-salt", "203.0.113.9") == a {
		t.Error("salt must change the hash")
	}
	if HashIP("kz_click_salt_v1", "203.0.113.10") == a {
		t.Error("different IPs should produce different hashes")
	}
	if strings.Contains(a, "203") {
		t.Error("hash leaks the raw address")
	}
}

func TestSanitizeReferrer(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		input    string
		expected string
	}{
		{"strip utm params", "https://example.com/page?utm_source=test&utm_medium=email", "https://example.com/page"},
		{"strip fragment", "https://example.com/page#section", "https://example.com/page"},
		{"strip both", "https://example.com/path?query=1#section", "https://example.com/path"},
		{"empty", "", ""},
		{"unparseable", "://example.com", ""},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			if got := SanitizeReferrer(tt.input); got != tt.expected {
				t.Errorf("SanitizeReferrer(%q) = %q, want %q", tt.input, got, tt.expected)
			}
		})
	}
}

func TestSanitizeReferrer_Truncate(t *testing.T) {
	t.Parallel()

	result := SanitizeReferrer("https://example.com/" + strings.Repeat("a", 600))
	if len(result) != 500 {
		t.Errorf("Sanitized referrer length = %d, want 500", len(result))
	}
}

func TestTruncateUserAgent(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		input   string
		wantLen int
	}{
		{"short UA", "Mozilla/5.0", 11},
		{"exact 500", strings.Repeat("x", 500), 500},
		{"over 500", strings.Repeat("x", 600), 500},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			if got := TruncateUserAgent(tt.input); len(got) != tt.wantLen {
				t.Errorf("TruncateUserAgent length = %d, want %d", len(got), tt.wantLen)
			}
		})
	}
}

func TestNewEvent_ValidUTF8(t *testing.T) {
	t.Parallel()

	ua := strings.Repeat("a", 499) + "é"
	event := NewEvent("zen", "https://zen.example/", "\xff", "zen", Request{
		FromPage:  "\xff",
		Referrer:  "https://ref.example/" + strings.Repeat("b", 480) + "ééé",
		UserAgent: ua,
		ClientIP:  "203.0.113.9",
	}, "salt", time.Now())

	for name, value := range map[string]string{
		"user_agent":   event.UserAgent,
		"from_page":    event.FromPage,
		"referrer":     event.Referrer,
		"utm_campaign": event.UTMCampaign,
	} {
		if !utf8.ValidString(value) {
			t.Errorf("%s is not valid UTF-8: %q", name, value)
		}
		if len(value) > 500 {
			t.Errorf("%s length = %d, want <= 500", name, len(value))
		}
	}
	if event.UserAgent != strings.Repeat("a", 499) {
		t.Errorf("user agent should drop the split rune, got length %d", len(event.UserAgent))
	}
	if event.FromPage != "\uFFFD" {
		t.Errorf("from_page = %q, want the replacement character", event.FromPage)
	}
	if err := Validate(event); err != nil {
		t.Errorf("Validate: %v", err)
	}
}

func TestNewEvent(t *testing.T) {
	t.Parallel()

	now := time.Date(2026, 5, 1, 12, 0, 0, 0, time.FixedZone("CET", 3600))
	event := NewEvent("zen", "https://zen.example/?utm_source=kamazennext", "home", "zen", Request{
		FromPage:  "home",
		Referrer:  "https://kamazennext.example/crm?q=1",
		UserAgent: "Mozilla/5.0",
		ClientIP:  "203.0.113.9",
	}, "salt", now)

	if err := Validate(event); err != nil {
		t.Fatalf("Validate: %v", err)
	}
	if event.Timestamp.Location() != time.UTC || !event.Timestamp.Equal(now) {
		t.Errorf("timestamp = %v", event.Timestamp)
	}
	if event.Referrer != "https://kamazennext.example/crm" {
		t.Errorf("referrer = %q", event.Referrer)
	}
	if event.IPHash != HashIP("salt", "203.0.113.9") {
		t.Errorf("ip_hash = %q", event.IPHash)
	}
	if len(event.ID) != 26 {
		t.Errorf("id = %q, want a ULID", event.ID)
	}
}

func TestValidate(t *testing.T) {
	t.Parallel()

	valid := model.ClickEvent{
		ID:             "01J0000000000000000000000A",
		Timestamp:      time.Now(),
		ProductID:      "zen",
		DestinationURL: "https://zen.example",
		IPHash:         HashIP("s", "ip"),
	}

	tests := []struct {
		name   string
		mutate func(*model.ClickEvent)
	}{
		{"missing id", func(e *model.ClickEvent) { e.ID = "" }},
		{"missing product", func(e *model.ClickEvent) { e.ProductID = "" }},
		{"zero timestamp", func(e *model.ClickEvent) { e.Timestamp = time.Time{} }},
		{"missing destination", func(e *model.ClickEvent) { e.DestinationURL = "" }},
		{"short hash", func(e *model.ClickEvent) { e.IPHash = "abc" }},
		{"non-hex hash", func(e *model.ClickEvent) { e.IPHash = strings.Repeat("z", 64) }},
		{"long user agent", func(e *model.ClickEvent) { e.UserAgent = strings.Repeat("x", 501) }},
	}

	if err := Validate(valid); err != nil {
		t.Fatalf("valid event rejected: %v", err)
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			event := valid
			tt.mutate(&event)
			if err := Validate(event); !errors.Is(err, ErrInvalidEvent) {
				t.Errorf("err = %v, want ErrInvalidEvent", err)
			}
		})
	}
}
