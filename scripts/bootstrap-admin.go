package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/goccy/go-json"

	"github.com/kamazennext/catalog/internal/auth"
	"github.com/kamazennext/catalog/internal/catalog"
	"github.com/kamazennext/catalog/internal/model"
)

type output struct {
	AdminUser    string `json:"admin_user"`
	PasswordHash string `json:"password_hash"`
	CatalogPath  string `json:"catalog_path,omitempty"`
	Products     int    `json:"products"`
}

func main() {
	var (
		user        = flag.String("user", "admin", "Admin user name")
		password    = flag.String("password", "", "Admin password (read from stdin when empty)")
		catalogPath = flag.String("catalog", os.Getenv("CATALOG_PATH"), "Catalog file to create when missing")
		format      = flag.String("format", "plain", "Output format: plain, env or json")
	)
	flag.Parse()

	secret := *password
	if secret == "" {
		data, err := io.ReadAll(io.LimitReader(os.Stdin, 1024))
		if err != nil {
			fmt.Fprintln(os.Stderr, "read password:", err)
			os.Exit(1)
		}
		secret = strings.TrimRight(string(data), "\r\n")
	}
	if secret == "" {
		fmt.Fprintln(os.Stderr, "a password is required (-password or stdin)")
		os.Exit(1)
	}

	hash, err := auth.HashPassword(secret)
	if err != nil {
		fmt.Fprintln(os.Stderr, "hash password:", err)
		os.Exit(1)
	}

	out := output{AdminUser: *user, PasswordHash: hash}

	if *catalogPath != "" {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

		count, err := ensureCatalog(ctx, *catalogPath)
		if err != nil {
			fmt.Fprintln(os.Stderr, "prepare catalog:", err)
			os.Exit(1)
		}
		out.CatalogPath = *catalogPath
		out.Products = count
	}

	switch strings.ToLower(*format) {
	case "plain":
		fmt.Println(out.PasswordHash)
	case "env":
		fmt.Printf("ADMIN_USER=%s\n", out.AdminUser)
		fmt.Printf("ADMIN_PASSWORD_HASH='%s'\n", out.PasswordHash)
		if out.CatalogPath != "" {
			fmt.Printf("CATALOG_PATH=%s\n", out.CatalogPath)
		}
	case "json":
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		_ = enc.Encode(out)
	default:
		fmt.Fprintln(os.Stderr, "invalid format; use plain, env or json")
		os.Exit(1)
	}
}

// ensureCatalog writes an empty catalog when none exists and reports how
// many products the file holds. A corrupt file is left untouched.
func ensureCatalog(ctx context.Context, path string) (int, error) {
	store, err := catalog.New(catalog.Options{
		Path:   path,
		Logger: slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelWarn})),
	})
	if err != nil {
		return 0, err
	}

	products, err := store.Load(ctx)
	switch {
	case err == nil:
		return len(products), nil
	case errors.Is(err, catalog.ErrNotFound):
		if err := store.Save(ctx, []model.Product{}); err != nil {
			return 0, fmt.Errorf("create %s: %w", path, err)
		}
		return 0, nil
	default:
		return 0, err
	}
}
