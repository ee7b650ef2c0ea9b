package importer

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/kamazennext/catalog/internal/model"
)

// CSV column names.
const (
	ColName          = "name"
	ColCategory      = "category"
	ColTagline       = "tagline"
	ColWebsiteURL    = "website_url"
	ColSlug          = "slug"
	ColPricingModel  = "pricing_model"
	ColAPIAvailable  = "api_available"
	ColPlatforms     = "platforms"
	ColAffiliateURL  = "affiliate_url"
	ColFeaturedRank  = "featured_rank"
	ColSponsoredRank = "sponsored_rank"
	ColLastUpdated   = "last_updated"
	ColBestFor       = "best_for"
	ColKeyFeatures   = "key_features"
	ColLogoURL       = "logo_url"
)

// DefaultRequiredColumns are the columns every upload must carry.
var DefaultRequiredColumns = []string{ColName, ColCategory, ColWebsiteURL}

// knownColumns are read from an upload; anything else is ignored.
var knownColumns = map[string]bool{
	ColName: true, ColCategory: true, ColTagline: true, ColWebsiteURL: true,
	ColSlug: true, ColPricingModel: true, ColAPIAvailable: true, ColPlatforms: true,
	ColAffiliateURL: true, ColFeaturedRank: true, ColSponsoredRank: true,
	ColLastUpdated: true, ColBestFor: true, ColKeyFeatures: true, ColLogoURL: true,
}

var urlColumns = []string{ColWebsiteURL, ColAffiliateURL, ColLogoURL}

const utf8BOM = "\ufeff"

// Row is one accepted data row. Values holds the trimmed cell of every known
// column present in the header, including empty ones.
type Row struct {
	Line   int               `json:"line"`
	Values map[string]string `json:"values"`
}

// Get returns the value of column and whether it is non-empty.
func (r Row) Get(column string) (string, bool) {
	v := r.Values[column]
	return v, v != ""
}

// RowError is a row-scoped validation failure.
type RowError struct {
	Line   int    `json:"line"`
	Reason string `json:"reason"`
}

// String formats the error the way the admin report shows it.
func (e RowError) String() string {
	return fmt.Sprintf("Row %d: %s", e.Line, e.Reason)
}

// ValidationError rejects a whole upload.
type ValidationError struct {
	Messages []string
}

func (e *ValidationError) Error() string {
	return "import validation failed: " + strings.Join(e.Messages, "; ")
}

// Unwrap lets errors.Is match ErrValidationFailed.
func (e *ValidationError) Unwrap() error {
	return ErrValidationFailed
}

// parsedUpload is the outcome of reading a CSV table.
type parsedUpload struct {
	Accepted []Row
	Rejected []RowError
}

// parseCSV reads a header row and the data rows below it. Blank rows are
// skipped; line numbers count the header as line 1.
func parseCSV(r io.Reader, required []string, maxRows int) (*parsedUpload, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1
	reader.TrimLeadingSpace = true

	header, err := reader.Read()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return nil, &ValidationError{Messages: []string{"CSV file is empty."}}
		}
		return nil, &ValidationError{Messages: []string{fmt.Sprintf("Unable to read CSV header: %v", err)}}
	}

	columns := make(map[string]int, len(header))
	for i, name := range header {
		if i == 0 {
			name = strings.TrimPrefix(name, utf8BOM)
		}
		key := strings.ToLower(strings.TrimSpace(name))
		if key == "" || !knownColumns[key] {
			continue
		}
		if _, dup := columns[key]; !dup {
			columns[key] = i
		}
	}

	var missing []string
	for _, column := range required {
		if _, ok := columns[column]; !ok {
			missing = append(missing, "Missing required column: "+column)
		}
	}
	if len(missing) > 0 {
		return nil, &ValidationError{Messages: missing}
	}

	upload := &parsedUpload{}
	for {
		record, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			var parseErr *csv.ParseError
			if errors.As(err, &parseErr) {
				upload.Rejected = append(upload.Rejected, RowError{Line: parseErr.StartLine, Reason: parseErr.Err.Error()})
				continue
			}
			return nil, &ValidationError{Messages: []string{fmt.Sprintf("Unable to read CSV: %v", err)}}
		}

		if isBlankRecord(record) {
			continue
		}

		line, _ := reader.FieldPos(0)

		if maxRows > 0 && len(upload.Accepted)+len(upload.Rejected) >= maxRows {
			return nil, &ValidationError{Messages: []string{fmt.Sprintf("Too many rows: the limit is %d.", maxRows)}}
		}

		row := Row{Line: line, Values: make(map[string]string, len(columns))}
		for column, idx := range columns {
			if idx < len(record) {
				row.Values[column] = strings.TrimSpace(record[idx])
			} else {
				row.Values[column] = ""
			}
		}

		if reasons := validateRow(row, required); len(reasons) > 0 {
			upload.Rejected = append(upload.Rejected, RowError{Line: line, Reason: strings.Join(reasons, "; ")})
			continue
		}
		upload.Accepted = append(upload.Accepted, row)
	}

	return upload, nil
}

func isBlankRecord(record []string) bool {
	for _, cell := range record {
		if strings.TrimSpace(cell) != "" {
			return false
		}
	}
	return true
}

// validateRow returns the reasons a row cannot be imported.
func validateRow(row Row, required []string) []string {
	var reasons []string

	for _, column := range required {
		if _, ok := row.Get(column); !ok {
			reasons = append(reasons, "missing "+column)
		}
	}

	for _, column := range urlColumns {
		if v, ok := row.Get(column); ok && !model.IsHTTPURL(v) {
			reasons = append(reasons, column+" is not a valid http(s) URL")
		}
	}

	if v, ok := row.Get(ColSlug); ok && !model.IsValidSlug(v) {
		reasons = append(reasons, "slug must be lower-kebab-case")
	}

	for _, column := range []string{ColFeaturedRank, ColSponsoredRank} {
		if v, ok := row.Get(column); ok {
			if _, err := strconv.Atoi(v); err != nil {
				reasons = append(reasons, column+" must be an integer")
			}
		}
	}

	return reasons
}

// ParseBool reads a boolean-like cell: 1/true/yes/y (any case) are true,
// any other non-empty value is false, and empty means unset.
func ParseBool(value string) (bool, bool) {
	normalized := strings.ToLower(strings.TrimSpace(value))
	if normalized == "" {
		return false, false
	}
	switch normalized {
	case "1", "true", "yes", "y":
		return true, true
	}
	return false, true
}
