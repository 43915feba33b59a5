package http

import (
	"net/http"

	"devpulse/internal/auth"
	"devpulse/internal/config"
	"devpulse/internal/credential"
	"devpulse/internal/delivery"
	"devpulse/internal/http/handler"
	mw "devpulse/internal/http/middleware"
	"devpulse/internal/jobs"
	"devpulse/internal/metrics"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"gorm.io/gorm"
)

// Deps bundles the engine services the API sits in front of.
type Deps struct {
	Users     *auth.Store
	Creds     *credential.Manager
	CredStore *credential.Store
	Jobs      *jobs.Repo
	Tweets    *delivery.Repo
	Delivery  *delivery.Client
	Metrics   *metrics.Aggregator
	Github    *metrics.GithubClient
	LeetCode  *metrics.LeetCodeClient
}

func NewRouter(cfg config.Config, db *gorm.DB, jwtSvc *auth.JWT, deps Deps) http.Handler {
	r := chi.NewRouter()

	r.Use(chimw.RequestID)
	r.Use(chimw.RealIP)
	r.Use(chimw.Recoverer)

	if len(cfg.CORSAllowedOrigins) > 0 {
		r.Use(mw.CORS(cfg.CORSAllowedOrigins, cfg.CORSAllowCredentials))
	}

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})

	ah := &handler.AuthHandler{DB: db, JWT: jwtSvc}
	r.Post("/auth/register", ah.Register)
	r.Post("/auth/login", ah.Login)

	ch := &handler.ConnectHandler{
		DB:       db,
		Creds:    deps.Creds,
		Store:    deps.CredStore,
		Delivery: deps.Delivery,
		Github:   deps.Github,
		LeetCode: deps.LeetCode,
	}
	// The provider redirects here; the state parameter carries the identity.
	r.Get("/connect/twitter/callback", ch.TwitterCallback)

	th := &handler.TweetHandler{
		Jobs:            deps.Jobs,
		Tweets:          deps.Tweets,
		Users:           deps.Users,
		Creds:           deps.CredStore,
		Delivery:        deps.Delivery,
		DefaultCron:     cfg.DefaultCron,
		DefaultTimezone: cfg.DefaultTimezone,
	}
	me := &handler.MeHandler{DB: db, Metrics: deps.Metrics}

	r.Group(func(r chi.Router) {
		r.Use(auth.RequireAuth(jwtSvc))

		r.Get("/me", me.Me)
		r.Get("/dashboard", me.Dashboard)

		r.Post("/connect/twitter", ch.TwitterStart)
		r.Post("/connect/github", ch.SetGithub)
		r.Post("/connect/leetcode", ch.SetLeetCode)

		r.Route("/tweets", func(r chi.Router) {
			r.Get("/", th.List)
			r.Post("/test", th.Test)
			r.Get("/jobs", th.ListJobs)
			r.Post("/schedule", th.Schedule)
			r.Delete("/schedule", th.Unschedule)
		})
	})

	return r
}
