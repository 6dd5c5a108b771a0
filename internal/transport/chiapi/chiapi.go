// ABOUTME: chi binding of the admin API, reusing the net/http handlers with chi path parameters
// ABOUTME: Adds chi's request id and real-ip middleware ahead of request logging and recovery

package chiapi

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/2389/modeladmin/internal/api"
	"github.com/2389/modeladmin/internal/transport"
	"github.com/2389/modeladmin/internal/transport/httpapi"
)

// NewRouter returns a chi router serving the admin API under /api.
func NewRouter(svc *api.Service, cookie transport.Cookie, logger *slog.Logger) http.Handler {
	if logger == nil {
		logger = slog.Default()
	}
	logger = logger.With("component", "chiapi")
	h := httpapi.New(svc, httpapi.Options{
		Cookie: cookie,
		Logger: logger,
		Param:  chi.URLParam,
	})

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(func(next http.Handler) http.Handler { return httpapi.Recover(logger, next) })
	r.Use(func(next http.Handler) http.Handler { return httpapi.RequestLog(logger, next) })

	r.Route("/api", func(r chi.Router) {
		r.Post("/sign-in", h.SignIn)
		r.Post("/sign-out", h.SignOut)
		r.Get("/me", h.Me)
		r.Get("/configuration", h.Configuration)
		r.Get("/openapi.json", h.OpenAPI)

		r.Get("/list/{model}", h.List)
		r.Get("/get/{model}/{id}", h.Get)
		r.Get("/retrieve/{model}/{id}", h.Get)
		r.Post("/add/{model}", h.Add)
		r.Patch("/change/{model}/{id}", h.Change)
		r.Delete("/delete/{model}/{id}", h.Delete)
		r.Post("/action/{model}/{action}", h.Action)
		r.Post("/export/{model}", h.Export)
		r.Patch("/change-password/{id}", h.ChangePassword)

		r.NotFound(h.NotFound)
		r.MethodNotAllowed(methodNotAllowed)
	})
	return r
}

func methodNotAllowed(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusMethodNotAllowed)
	_, _ = w.Write([]byte(`{"detail":"Method not allowed"}` + "\n"))
}
