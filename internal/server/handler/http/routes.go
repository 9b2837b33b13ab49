package http

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"github.com/atinyakov/GophMaps/internal/middleware"
)

// RootPath is where the portal REST API is mounted.
const RootPath = "/sharing/rest"

// NewRouter constructs and returns an HTTP handler that serves the portal API.
//
// Routes (under /sharing/rest):
//
//	POST /community/users                       → authHandler.Register
//	GET  /oauth2/authorize                      → authHandler.AuthorizeForm
//	POST /oauth2/authorize                      → authHandler.Authorize
//	GET  /community/self                        → authHandler.Self (token)
//	POST /content/users/{user}/addItem          → itemHandler.Create (token, owner)
//	GET  /content/users/{user}/items            → itemHandler.List (token, owner)
//	POST /content/users/{user}/items/{id}/update → itemHandler.Update (token, owner)
//	POST /content/users/{user}/items/{id}/delete → itemHandler.Delete (token, owner)
//	GET  /content/items/{id}                    → itemHandler.Get (optional token)
//	GET  /content/items/{id}/data               → itemHandler.Data (optional token)
func NewRouter(
	authHandler *AuthHandler,
	itemHandler *ItemHandler,
	tokens middleware.TokenParser,
	logger *zap.Logger,
) http.Handler {
	r := chi.NewRouter()

	r.Use(chiMiddleware.RequestID)
	r.Use(chiMiddleware.Recoverer)
	// Log each request and its metadata
	r.Use(middleware.WithRequestLogging(logger))

	jsonOnly := chiMiddleware.AllowContentType("application/json")

	r.Route(RootPath, func(r chi.Router) {
		// Public endpoints
		r.With(jsonOnly).Post("/community/users", authHandler.Register)
		r.Get("/oauth2/authorize", authHandler.AuthorizeForm)
		r.With(chiMiddleware.AllowContentType("application/x-www-form-urlencoded")).
			Post("/oauth2/authorize", authHandler.Authorize)

		r.With(middleware.RequireToken(tokens)).Get("/community/self", authHandler.Self)

		// User content: the token owner only
		r.Route("/content/users/{user}", func(r chi.Router) {
			r.Use(middleware.RequireToken(tokens))
			r.Use(RequireOwner)
			r.With(jsonOnly).Post("/addItem", itemHandler.Create)
			r.Get("/items", itemHandler.List)
			r.With(jsonOnly).Post("/items/{id}/update", itemHandler.Update)
			r.Post("/items/{id}/delete", itemHandler.Delete)
		})

		// Item reads: anonymous for public items
		r.Group(func(r chi.Router) {
			r.Use(middleware.OptionalToken(tokens))
			r.Get("/content/items/{id}", itemHandler.Get)
			r.Get("/content/items/{id}/data", itemHandler.Data)
		})
	})

	return r
}
