package httpx

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/render"
)

// Routes is implemented by each resource handler.
type Routes interface {
	Register(r chi.Router)
	RegisterAdmin(r chi.Router)
}

func NewRouter(adminToken string, routes ...Routes) *chi.Mux {
	r := chi.NewRouter()
	r.Use(middleware.RequestID, middleware.RealIP, middleware.Logger, middleware.Recoverer)
	r.Use(middleware.Timeout(30 * time.Second))
	r.Use(render.SetContentType(render.ContentTypeJSON))
	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})

	for _, rt := range routes {
		rt.Register(r)
	}
	r.Route("/admin", func(r chi.Router) {
		r.Use(RequireAdmin(adminToken))
		for _, rt := range routes {
			rt.RegisterAdmin(r)
		}
	})
	return r
}
