package ledger

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"net/url"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/oklog/ulid/v2"

	"github.com/kamazennext/catalog/internal/model"
)

const maxMetaLength = 500

// Request carries the visitor metadata captured for a click.
type Request struct {
	FromPage  string
	Referrer  string
	UserAgent string
	ClientIP  string
}

// NewEvent builds the ClickEvent for a resolved redirect. The client IP is
// only kept as HashIP(salt, ip).
func NewEvent(productID, destination, campaign, content string, req Request, salt string, now time.Time) model.ClickEvent {
	ts := now.UTC()
	return model.ClickEvent{
		ID:             ulid.MustNew(ulid.Timestamp(ts), ulid.DefaultEntropy()).String(),
		Timestamp:      ts,
		ProductID:      productID,
		FromPage:       truncate(req.FromPage, maxMetaLength),
		Referrer:       SanitizeReferrer(req.Referrer),
		UserAgent:      TruncateUserAgent(req.UserAgent),
		IPHash:         HashIP(salt, req.ClientIP),
		DestinationURL: strings.ToValidUTF8(destination, "\uFFFD"),
		UTMCampaign:    truncate(campaign, maxMetaLength),
		UTMContent:     truncate(content, maxMetaLength),
	}
}

// HashIP returns the hex SHA-256 of salt followed by ip.
func HashIP(salt, ip string) string {
	hash := sha256.Sum256([]byte(salt + ip))
	return hex.EncodeToString(hash[:])
}

// SanitizeReferrer cleans and truncates the referrer URL.
// Strips query parameters and fragments for privacy.
func SanitizeReferrer(ref string) string {
	if ref == "" {
		return ""
	}

	parsed, err := url.Parse(ref)
	if err != nil {
		return ""
	}

	parsed.RawQuery = ""
	parsed.ForceQuery = false
	parsed.Fragment = ""

	return truncate(parsed.String(), maxMetaLength)
}

// TruncateUserAgent truncates user agent to at most 500 bytes of valid UTF-8.
func TruncateUserAgent(ua string) string {
	return truncate(ua, maxMetaLength)
}

// truncate returns value as valid UTF-8 of at most limit bytes, cut on a
// rune boundary. Invalid sequences become U+FFFD so Postgres TEXT accepts it.
func truncate(value string, limit int) string {
	value = strings.ToValidUTF8(value, "\uFFFD")
	if len(value) <= limit {
		return value
	}
	cut := limit
	for cut > 0 && !utf8.RuneStart(value[cut]) {
		cut--
	}
	return value[:cut]
}

// Validate checks the fields every backend relies on.
func Validate(event model.ClickEvent) error {
	if event.ID == "" {
		return fmt.Errorf("%w: id is required", ErrInvalidEvent)
	}
	if event.ProductID == "" {
		return fmt.Errorf("%w: product_id is required", ErrInvalidEvent)
	}
	if event.Timestamp.IsZero() {
		return fmt.Errorf("%w: timestamp must be set", ErrInvalidEvent)
	}
	if event.DestinationURL == "" {
		return fmt.Errorf("%w: destination_url is required", ErrInvalidEvent)
	}
	if len(event.IPHash) != sha256.Size*2 || !isHex(event.IPHash) {
		return fmt.Errorf("%w: ip_hash must be %d hex chars", ErrInvalidEvent, sha256.Size*2)
	}
	if len(event.Referrer) > maxMetaLength {
		return fmt.Errorf("%w: referrer too long", ErrInvalidEvent)
	}
	if len(event.UserAgent) > maxMetaLength {
		return fmt.Errorf("%w: user_agent too long", ErrInvalidEvent)
	}
	return nil
}

func isHex(value string) bool {
	for i := 0; i < len(value); i++ {
		ch := value[i]
		if (ch >= '0' && ch <= '9') || (ch >= 'a' && ch <= 'f') || (ch >= 'A' && ch <= 'F') {
			continue
		}
		return false
	}
	return true
}
