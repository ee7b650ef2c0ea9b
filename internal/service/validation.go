package service

import (
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/go-playground/validator/v10"

	"github.com/kamazennext/catalog/internal/model"
)

var (
	validate     *validator.Validate
	validateOnce sync.Once
)

// validatorInstance returns the shared validator with the catalog rules
// registered. The validator caches struct metadata, so one instance is reused.
func validatorInstance() *validator.Validate {
	validateOnce.Do(func() {
		validate = validator.New(validator.WithRequiredStructEnabled())

		// Registration only fails for empty tags or nil funcs.
		_ = validate.RegisterValidation("slug", func(fl validator.FieldLevel) bool {
			return model.IsValidSlug(fl.Field().String())
		})
		_ = validate.RegisterValidation("httpurl", func(fl validator.FieldLevel) bool {
			return model.IsHTTPURL(fl.Field().String())
		})
	})
	return validate
}

// ValidationError lists the field problems that make a product unsaveable.
type ValidationError struct {
	Fields map[string]string
}

func (e *ValidationError) Error() string {
	parts := make([]string, 0, len(e.Fields))
	for field, msg := range e.Fields {
		parts = append(parts, field+": "+msg)
	}
	return "invalid product: " + strings.Join(parts, ", ")
}

// Unwrap lets errors.Is match ErrInvalidProduct.
func (e *ValidationError) Unwrap() error {
	return ErrInvalidProduct
}

// validateProduct runs the struct rules on p.
func validateProduct(p *model.Product) error {
	err := validatorInstance().Struct(p)
	if err == nil {
		return nil
	}

	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) {
		return fmt.Errorf("%w: %w", ErrInvalidProduct, err)
	}

	out := &ValidationError{Fields: make(map[string]string, len(fieldErrs))}
	for _, fe := range fieldErrs {
		out.Fields[jsonFieldName(fe.Field())] = fieldMessage(fe)
	}
	return out
}

func fieldMessage(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "is required"
	case "max":
		return "must be at most " + fe.Param() + " characters"
	case "slug":
		return "must be lower-kebab-case"
	case "httpurl":
		return "must be an absolute http(s) URL"
	default:
		return "failed " + fe.Tag() + " validation"
	}
}

// jsonFieldName maps a Go field name to its wire name.
func jsonFieldName(field string) string {
	switch field {
	case "ID":
		return "id"
	case "WebsiteURL":
		return "website_url"
	case "AffiliateURL":
		return "affiliate_url"
	default:
		return strings.ToLower(field)
	}
}
