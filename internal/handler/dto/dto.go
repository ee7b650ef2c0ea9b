// Package dto provides Data Transfer Objects for API requests and responses.
package dto

import (
	"time"

	"github.com/kamazennext/catalog/internal/catalog"
	"github.com/kamazennext/catalog/internal/model"
)

// ErrorResponse represents an API error.
type ErrorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code"`
}

// ValidationErrorResponse is an ErrorResponse with per-field or per-row detail.
type ValidationErrorResponse struct {
	Error    string            `json:"error"`
	Code     string            `json:"code"`
	Fields   map[string]string `json:"fields,omitempty"`
	Messages []string          `json:"messages,omitempty"`
}

// ProductListResponse wraps a catalog listing.
type ProductListResponse struct {
	Data  []model.Product `json:"data"`
	Total int             `json:"total"`
}

// NewProductListResponse never returns a nil Data slice.
func NewProductListResponse(products []model.Product) *ProductListResponse {
	if products == nil {
		products = []model.Product{}
	}
	return &ProductListResponse{Data: products, Total: len(products)}
}

// BackupResponse describes one catalog snapshot.
type BackupResponse struct {
	Name      string    `json:"name"`
	Size      int64     `json:"size"`
	CreatedAt time.Time `json:"created_at"`
}

// BackupListResponse lists snapshots, newest first.
type BackupListResponse struct {
	Data []BackupResponse `json:"data"`
}

// ToBackupListResponse converts store backups to their wire form.
func ToBackupListResponse(backups []catalog.BackupInfo) *BackupListResponse {
	out := make([]BackupResponse, len(backups))
	for i, b := range backups {
		out[i] = BackupResponse{Name: b.Name, Size: b.Size, CreatedAt: b.CreatedAt}
	}
	return &BackupListResponse{Data: out}
}

// ImportCommitRequest carries the token returned by a preview.
type ImportCommitRequest struct {
	Token string `json:"token"`
}

// ClicksResponse is the admin click report.
type ClicksResponse struct {
	Start       string                    `json:"start,omitempty"`
	End         string                    `json:"end,omitempty"`
	ProductID   string                    `json:"product_id,omitempty"`
	FromPage    string                    `json:"from_page,omitempty"`
	TotalClicks int64                     `json:"total_clicks"`
	Totals      []model.ProductClickTotal `json:"totals"`
	Recent      []model.ClickEvent        `json:"recent"`
}
