// Package importer implements the two-phase CSV import: an upload is
// validated into a preview plus a single-use token, and committing the token
// upserts the accepted rows into the catalog in one write.
package importer

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/kamazennext/catalog/internal/catalog"
	"github.com/kamazennext/catalog/internal/metrics"
	"github.com/kamazennext/catalog/internal/model"
)

// Import errors.
var (
	ErrValidationFailed = errors.New("import validation failed")
	ErrTokenInvalid     = errors.New("import token is invalid or already used")
)

const (
	// DefaultPreviewRows is how many accepted rows a preview echoes back.
	DefaultPreviewRows = 10

	// DefaultTokenTTL bounds how long a preview can be committed.
	DefaultTokenTTL = 30 * time.Minute

	tokenBytes = 16
)

// Catalog is the part of the catalog store the importer writes through.
type Catalog interface {
	Update(ctx context.Context, fn catalog.UpdateFunc) error
}

// Options configures a Service.
type Options struct {
	RequiredColumns []string // defaults to DefaultRequiredColumns
	PreviewRows     int
	TokenTTL        time.Duration
	MaxRows         int // zero means unlimited

	Logger  *slog.Logger
	Metrics metrics.Recorder
	Now     func() time.Time
}

// Preview is returned after a successful upload.
type Preview struct {
	Token    string     `json:"token"`
	Accepted int        `json:"accepted"`
	Rejected int        `json:"rejected"`
	Rows     []Row      `json:"rows"`
	Errors   []RowError `json:"errors"`
}

// Result summarizes a commit.
type Result struct {
	Created int      `json:"created"`
	Updated int      `json:"updated"`
	Skipped int      `json:"skipped"`
	Reasons []string `json:"reasons"`
}

// Service runs previews and commits.
type Service struct {
	catalog  Catalog
	sessions SessionStore
	required []string
	preview  int
	ttl      time.Duration
	maxRows  int
	logger   *slog.Logger
	metrics  metrics.Recorder
	now      func() time.Time
}

// NewService creates an import Service.
func NewService(cat Catalog, sessions SessionStore, opts Options) *Service {
	if sessions == nil {
		sessions = NewMemoryStore()
	}

	required := opts.RequiredColumns
	if len(required) == 0 {
		required = DefaultRequiredColumns
	}

	previewRows := opts.PreviewRows
	if previewRows <= 0 {
		previewRows = DefaultPreviewRows
	}

	ttl := opts.TokenTTL
	if ttl <= 0 {
		ttl = DefaultTokenTTL
	}

	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}

	recorder := opts.Metrics
	if recorder == nil {
		recorder = metrics.NewNoop()
	}

	now := opts.Now
	if now == nil {
		now = time.Now
	}

	return &Service{
		catalog:  cat,
		sessions: sessions,
		required: required,
		preview:  previewRows,
		ttl:      ttl,
		maxRows:  opts.MaxRows,
		logger:   logger.With("component", "importer"),
		metrics:  recorder,
		now:      now,
	}
}

// Preview validates an upload and stores its accepted rows for sessionID,
// replacing any earlier pending import of that session.
func (s *Service) Preview(ctx context.Context, sessionID string, r io.Reader) (*Preview, error) {
	if sessionID == "" {
		return nil, errors.New("session id is required")
	}

	upload, err := parseCSV(r, s.required, s.maxRows)
	if err != nil {
		s.metrics.IncImportPreview("rejected")
		return nil, err
	}

	if len(upload.Accepted) == 0 {
		s.metrics.IncImportPreview("rejected")
		messages := []string{"No valid rows found."}
		for _, rowErr := range upload.Rejected {
			messages = append(messages, rowErr.String())
		}
		return nil, &ValidationError{Messages: messages}
	}

	token, err := newToken()
	if err != nil {
		return nil, fmt.Errorf("generate import token: %w", err)
	}

	pending := PendingImport{
		TokenHash: hashToken(token),
		Rows:      upload.Accepted,
		Rejected:  len(upload.Rejected),
		CreatedAt: s.now().UTC(),
	}
	if err := s.sessions.Put(ctx, sessionID, pending, s.ttl); err != nil {
		return nil, fmt.Errorf("store pending import: %w", err)
	}

	rows := upload.Accepted
	if len(rows) > s.preview {
		rows = rows[:s.preview]
	}

	errs := upload.Rejected
	if errs == nil {
		errs = []RowError{}
	}

	s.metrics.IncImportPreview("accepted")
	s.logger.Info("import previewed",
		"accepted", len(upload.Accepted),
		"rejected", len(upload.Rejected),
	)

	return &Preview{
		Token:    token,
		Accepted: len(upload.Accepted),
		Rejected: len(upload.Rejected),
		Rows:     rows,
		Errors:   errs,
	}, nil
}

// Commit consumes token and applies the pending rows of sessionID in one
// catalog write. A consumed token stays consumed even if the write fails.
func (s *Service) Commit(ctx context.Context, sessionID, token string) (*Result, error) {
	if sessionID == "" || token == "" {
		s.metrics.IncImportCommit("token_invalid")
		return nil, ErrTokenInvalid
	}

	pending, err := s.sessions.Take(ctx, sessionID, hashToken(token))
	if err != nil {
		if errors.Is(err, ErrPendingNotFound) {
			s.metrics.IncImportCommit("token_invalid")
			return nil, ErrTokenInvalid
		}
		s.metrics.IncImportCommit("failed")
		return nil, fmt.Errorf("take pending import: %w", err)
	}

	result := &Result{Reasons: []string{}}
	err = s.catalog.Update(ctx, func(products []model.Product) ([]model.Product, error) {
		// Rebuilt on every call so a result never mixes two attempts.
		*result = Result{Reasons: []string{}}

		rec := newReconciler(products, s.now())
		for _, row := range pending.Rows {
			switch outcome, reason := rec.apply(row); outcome {
			case outcomeCreated:
				result.Created++
			case outcomeUpdated:
				result.Updated++
			case outcomeSkipped:
				result.Skipped++
				result.Reasons = append(result.Reasons, reason)
			}
		}
		return rec.products, nil
	})
	if err != nil {
		s.metrics.IncImportCommit("failed")
		s.logger.Error("import commit failed", "error", err)
		return nil, fmt.Errorf("commit import: %w", err)
	}

	s.metrics.IncImportCommit("success")
	s.metrics.AddImportRows("created", result.Created)
	s.metrics.AddImportRows("updated", result.Updated)
	s.metrics.AddImportRows("skipped", result.Skipped)
	s.logger.Info("import committed",
		"created", result.Created,
		"updated", result.Updated,
		"skipped", result.Skipped,
	)

	return result, nil
}

// newToken returns 32 hex characters from crypto/rand.
func newToken() (string, error) {
	b := make([]byte, tokenBytes)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return hex.EncodeToString(b), nil
}

// hashToken is what the session store keeps instead of the raw token.
func hashToken(token string) string {
	sum := sha256.Sum256([]byte(token))
	return hex.EncodeToString(sum[:])
}
