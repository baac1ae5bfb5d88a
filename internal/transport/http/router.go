package http

import (
	"net/http"

	"github.com/dept-site-api/internal/application/account"
	"github.com/dept-site-api/internal/application/auth"
	fileapp "github.com/dept-site-api/internal/application/file"
	"github.com/dept-site-api/internal/config"
	"github.com/dept-site-api/internal/transport/http/handler"
	appmiddleware "github.com/dept-site-api/internal/transport/http/middleware"
	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"golang.org/x/time/rate"
)

// NewRouter builds the application router. The returned close func stops
// background work owned by the router.
func NewRouter(cfg *config.Config, deps *Deps) (http.Handler, func()) {
	r := chi.NewRouter()
	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.Recoverer)
	r.Use(deps.Metrics.Middleware)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   cfg.AllowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		AllowCredentials: false,
		MaxAge:           300,
	}))

	// 5 requests/second, burst of 10, on the code and login endpoints.
	sensitiveRL := appmiddleware.NewRateLimiter(rate.Limit(5), 10)

	h := deps.Authorizer.Hierarchy()
	authSvc := auth.NewService(auth.ServiceDeps{
		Codes:    deps.Codes,
		Accounts: deps.AccountRepo,
		Mailer:   deps.Mailer,
		Tokens:   deps.JWTProvider,
		BaseRole: h.Base(),
		OnMail:   deps.Metrics.ObserveMail,
	})
	accountSvc := account.NewService(deps.AccountRepo, deps.Authorizer)
	fileSvc := fileapp.NewService(deps.S3Store, deps.FileRepo, deps.Authorizer)

	healthH := handler.NewHealthHandler()
	authH := handler.NewAuthHandler(authSvc)
	accountH := handler.NewAccountHandler(accountSvc)
	fileH := handler.NewFileHandler(fileSvc)

	elevated := appmiddleware.RequireRoles(deps.Authorizer, deps.Metrics.ObserveAuthz, h.AtLeast(h.Elevated())...)

	r.Handle("/metrics", deps.Metrics.Handler())

	r.Route("/v1", func(r chi.Router) {
		// ── Public ───────────────────────────────────────────────────────────
		r.Get("/health-check/{action}", healthH.Ping)
		r.With(sensitiveRL.Limit).Post("/auth/codes", authH.RequestCode)
		r.With(sensitiveRL.Limit).Post("/auth/codes/confirm", authH.ConfirmCode)
		r.Post("/auth/register", authH.Register)
		r.Post("/auth/password-reset", authH.ResetPassword)
		r.With(sensitiveRL.Limit).Post("/sessions/login", authH.Login)

		// ── Authenticated ────────────────────────────────────────────────────
		r.Group(func(r chi.Router) {
			r.Use(appmiddleware.Auth(deps.JWTProvider))

			r.Get("/accounts/me", accountH.Me)
			r.Get("/files", fileH.ListMine)
			r.Post("/files", fileH.Upload)
			r.Get("/files/{id}", fileH.Get)
			r.Get("/files/{id}/content", fileH.Download)
			r.Delete("/files/{id}", fileH.Delete)

			// ── Elevated roles ───────────────────────────────────────────────
			r.Group(func(r chi.Router) {
				r.Use(elevated)

				r.Get("/accounts", accountH.List)
				r.Get("/accounts/creatable-roles", accountH.CreatableRoles)
				r.Get("/accounts/{id}", accountH.Get)
				r.Post("/accounts", accountH.Create)
				r.Put("/accounts/{id}", accountH.Update)
				r.Delete("/accounts/{id}", accountH.Delete)
			})
		})
	})

	return r, sensitiveRL.Close
}
