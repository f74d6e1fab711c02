package handlers

import (
	"encoding/json"
	"net/http"
	"time"

	"server/internal/domain"
	"server/internal/payments"
	"server/internal/storage"

	"github.com/rs/zerolog"
)

// App bundles the dependencies every handler needs.
type App struct {
	Jobs     domain.RenderJobRepository
	Store    storage.ArtifactStore
	Payments payments.Gateway
	Logger   zerolog.Logger

	PriceCents    int64
	Currency      string
	PublicBaseURL string
	UploadTTL     time.Duration
	DownloadTTL   time.Duration
}

func (a *App) json(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func (a *App) error(w http.ResponseWriter, code int, slug, message string) {
	a.json(w, code, map[string]any{
		"error":   slug,
		"message": message,
	})
}
