package httpapi

import (
	"net/http"
	"time"

	"server/internal/http/handlers"
	appmw "server/internal/middleware"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

// RouterOptions carries the middleware knobs the router needs beyond the
// handler container itself.
type RouterOptions struct {
	DefaultLocale  string
	CountryLookup  appmw.CountryLookup
	AllowedOrigins []string
}

func NewRouter(app *handlers.App, opts RouterOptions) http.Handler {
	r := chi.NewRouter()

	r.Use(
		appmw.RequestID,
		middleware.RealIP,
		middleware.Recoverer,
		appmw.Logger(app.Logger),
		appmw.CORS(opts.AllowedOrigins),
		appmw.I18N(opts.DefaultLocale, opts.CountryLookup),
	)

	r.Get("/v1/healthz", app.Health)

	r.Route("/renders", func(r chi.Router) {
		// Session creation is the only endpoint that spends money
		// downstream, so it gets its own rate limit.
		r.With(appmw.RateLimit(10, time.Minute)).Post("/create-session", app.RendersCreateSession)
		r.Get("/{id}", app.RendersStatus)
	})

	r.Post("/webhooks/payment", app.PaymentWebhook)

	return r
}
