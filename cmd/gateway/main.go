package main

import (
	"context"
	"log"
	"net/http"
	"sync/atomic"
	"time"

	api "github.com/lingoprep/lingoprep-lms/internal/api/http"
	auth "github.com/lingoprep/lingoprep-lms/internal/auth/middleware"
	"github.com/lingoprep/lingoprep-lms/internal/bands"
	"github.com/lingoprep/lingoprep-lms/internal/config"
	"github.com/lingoprep/lingoprep-lms/internal/db"
	"github.com/lingoprep/lingoprep-lms/internal/exam"
	"github.com/lingoprep/lingoprep-lms/internal/rbac"
	syncx "github.com/lingoprep/lingoprep-lms/internal/sync"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
)

// bandTable holds the active band conversion table; admin updates swap the
// snapshot, in-flight submits keep the one they started with.
type bandTable struct{ p atomic.Pointer[bands.Table] }

func (b *bandTable) Current() *bands.Table { return b.p.Load() }
func (b *bandTable) Reload(t *bands.Table) { b.p.Store(t) }
func (b *bandTable) Lookup(et, st string, raw float64) (float64, bool) {
	return b.p.Load().Lookup(et, st, raw)
}

func main() {
	cfg := config.FromEnv()

	// --- DB ---
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	dbh, err := db.Open(ctx, db.Driver(cfg.DBDriver), cfg.DBDSN)
	if err != nil {
		log.Fatalf("db open failed: %v", err)
	}

	// --- Band table ---
	if cfg.SeedBandTable {
		if err := bands.SeedSQL(ctx, dbh); err != nil {
			log.Fatalf("band table seed failed: %v", err)
		}
	}
	table, err := bands.LoadSQL(ctx, dbh)
	if err != nil {
		log.Fatalf("band table load failed: %v", err)
	}
	bt := &bandTable{}
	bt.Reload(table)

	store := exam.NewSQLStore(dbh, cfg.DBDriver, exam.NewEngine(bt))

	// --- Auth ---
	authSvc := auth.NewAuthService(cfg.AuthSecret)
	loginCfg := auth.LoginConfig{
		AdminUser:     cfg.AdminUser,
		AdminPassHash: cfg.AdminPassHash,
		DevLogin:      cfg.Mode == config.ModeOffline,
	}

	// --- Router ---
	r := chi.NewRouter()
	r.Use(middleware.RequestID, middleware.RealIP, middleware.Logger, middleware.Recoverer)
	r.Use(middleware.Timeout(30 * time.Second))

	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   cfg.CORSOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Authorization", "Content-Type"},
		ExposedHeaders:   []string{"Content-Length"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	r.Post("/auth/login", auth.LoginHandler(authSvc, loginCfg))

	// Protected API (JWT → role in context → RBAC)
	r.Group(func(pr chi.Router) {
		pr.Use(auth.JWTMiddleware(authSvc))

		pr.With(rbac.Require("exam:create")).
			Put("/exams/{examID}", api.PutExamHandler(store))
		pr.With(rbac.Require("exam:view")).
			Get("/exams/{examID}", api.GetExamHandler(store))

		pr.With(rbac.Require("attempt:create")).
			Post("/attempts", api.CreateAttemptHandler(store))
		pr.With(rbac.RequireAny("attempt:view-own", "attempt:view-all")).
			Get("/attempts", api.ListAttemptsHandler(store))
		pr.With(rbac.Require("attempt:save")).
			Put("/attempts/{attemptID}/sections/{sectionID}/answers", api.SaveAnswersHandler(store))
		pr.With(rbac.Require("attempt:submit")).
			Post("/attempts/{attemptID}/submit", api.SubmitAttemptHandler(store))
		pr.With(rbac.RequireAny("attempt:view-own", "attempt:view-all")).
			Get("/attempts/{attemptID}", api.GetAttemptHandler(store))
		pr.With(rbac.RequireAny("attempt:view-own", "attempt:view-all")).
			Get("/attempts/{attemptID}/results", api.GetResultsHandler(store))
		pr.With(rbac.Require("attempt:grade")).
			Post("/attempts/{attemptID}/grades", api.ApplyManualGradesHandler(store))

		pr.With(rbac.Require("bands:view")).
			Get("/bands/{examType}", api.GetBandTableHandler(bt))
		pr.With(rbac.Require("bands:write")).
			Put("/bands/{examType}", api.PutBandTableHandler(dbh, bt))

		pr.With(rbac.Require("events:view")).
			Get("/events", api.ListEventsHandler(dbh, syncx.NewEventRepo()))
	})

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(200) })
	r.Get("/readyz", func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(200) })

	log.Printf("listening on %s (mode=%s, db=%s)", cfg.HTTPAddr, cfg.Mode, cfg.DBDriver)
	log.Fatal(http.ListenAndServe(cfg.HTTPAddr, r))
}
