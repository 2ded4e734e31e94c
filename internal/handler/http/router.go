package http

import (
	"log/slog"
	"net/http"
	"os"

	"github.com/fleetdesk/payroll-backend-go/internal/handler/http/middleware"
	"github.com/fleetdesk/payroll-backend-go/internal/pkg/jwt"
	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/go-chi/httplog/v3"
	"github.com/go-chi/jwtauth/v5"
)

type RouterOptions struct {
	Logger         *slog.Logger
	AllowedOrigins []string
	Metrics        http.Handler
}

func NewRouter(JWTService jwt.Service, salaryHandler SalaryHandler, opts RouterOptions) *chi.Mux {
	r := chi.NewRouter()

	allowedOrigins := opts.AllowedOrigins
	if len(allowedOrigins) == 0 {
		allowedOrigins = []string{"http://localhost:3000"}
	}
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   allowedOrigins,
		AllowCredentials: true,
		AllowedMethods:   []string{"GET", "POST", "PATCH", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-CSRF-Token"},
		ExposedHeaders:   []string{"Link"},
		MaxAge:           300,
	}))

	if opts.Logger != nil {
		r.Use(httplog.RequestLogger(opts.Logger, &httplog.Options{
			Level:  slog.LevelInfo,
			Schema: httplog.SchemaECS,
		}))
	}

	r.Use(chiMiddleware.AllowContentEncoding("application/json"))
	r.Use(chiMiddleware.CleanPath)
	r.Use(chiMiddleware.Recoverer)
	r.Use(chiMiddleware.Heartbeat("/"))

	if opts.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", opts.Metrics)
	}

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(jwtauth.Verifier(JWTService.JWTAuth()))
		r.Use(middleware.OptionalAuth)

		r.Route("/salaries", func(r chi.Router) {
			r.Get("/", salaryHandler.List)
			r.Post("/", salaryHandler.Create)
			r.Get("/summary", salaryHandler.Summary)
			r.Get("/sofer/{soferId}", salaryHandler.ListByDriver)

			r.Post("/process-automatic", salaryHandler.ProcessAutomatic)
			r.Post("/calculate", salaryHandler.Calculate)
			r.Post("/calculate-diurna", salaryHandler.CalculateDiurna)

			r.Route("/{id}", func(r chi.Router) {
				r.Get("/", salaryHandler.Get)
				r.Patch("/", salaryHandler.Update)
				r.Get("/history", salaryHandler.History)
				r.Post("/finalize", salaryHandler.Finalize)
				r.Post("/plateste", salaryHandler.MarkPaid)
				r.Post("/bonus", salaryHandler.AddBonus)
				r.Post("/deducere", salaryHandler.AddDeduction)
			})
		})
	})
	return r
}

// NewLogger builds the JSON slog logger used by the request logger and the
// rest of the service.
func NewLogger(app, version, env string, level slog.Level) *slog.Logger {
	logFormat := httplog.SchemaECS.Concise(env != "development")
	return slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level:       level,
		ReplaceAttr: logFormat.ReplaceAttr,
	})).With(
		slog.String("app", app),
		slog.String("version", version),
		slog.String("env", env),
	)
}
