package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"devpulse/internal/auth"
	"devpulse/internal/config"
	"devpulse/internal/credential"
	"devpulse/internal/db"
	"devpulse/internal/delivery"
	httpx "devpulse/internal/http"
	"devpulse/internal/jobs"
	"devpulse/internal/metrics"
	"devpulse/internal/pipeline"
)

func main() {
	cfg, _ := config.Load()

	log := logrus.New()
	if level, err := logrus.ParseLevel(cfg.LogLevel); err == nil {
		log.SetLevel(level)
	}

	gdb, err := db.Connect(cfg.DatabaseURL)
	if err != nil {
		log.Fatal(err)
	}
	if err := db.AutoMigrateAndIndexes(gdb); err != nil {
		log.Fatal(err)
	}

	ctx, cancel := context.WithCancel(context.Background())

	credStore := &credential.Store{DB: gdb}
	states := credential.NewStateStore(10 * time.Minute)
	go states.Sweep(ctx, time.Minute)

	creds := &credential.Manager{
		Store:        credStore,
		States:       states,
		Log:          log,
		ClientID:     cfg.TwitterClientID,
		ClientSecret: cfg.TwitterClientSecret,
		RedirectURI:  cfg.TwitterCallbackURL,
	}

	tweetRepo := &delivery.Repo{DB: gdb}
	deliveryClient := &delivery.Client{
		Tokens:  creds,
		Records: tweetRepo,
		Log:     log,
	}

	github := &metrics.GithubClient{}
	leetcode := &metrics.LeetCodeClient{}
	aggregator := &metrics.Aggregator{Github: github, LeetCode: leetcode, Log: log}

	userStore := &auth.Store{DB: gdb}
	jobsRepo := &jobs.Repo{DB: gdb}
	pipe := &pipeline.Pipeline{
		Users:   userStore,
		Metrics: aggregator,
		Deliver: deliveryClient,
		Records: tweetRepo,
		Log:     log,
	}
	pool := &jobs.Pool{
		ID:           "worker-" + uuid.NewString(),
		Store:        jobsRepo,
		Runner:       pipe,
		Workers:      cfg.WorkerCount,
		PollInterval: cfg.PollInterval,
		Log:          log,
	}
	go pool.Run(ctx)

	jwtSvc := auth.NewJWT(cfg.JWTSecret)
	r := httpx.NewRouter(cfg, gdb, jwtSvc, httpx.Deps{
		Users:     userStore,
		Creds:     creds,
		CredStore: credStore,
		Jobs:      jobsRepo,
		Tweets:    tweetRepo,
		Delivery:  deliveryClient,
		Metrics:   aggregator,
		Github:    github,
		LeetCode:  leetcode,
	})

	srv := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           r,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		log.Infof("listening on %s", cfg.HTTPAddr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal(err)
		}
	}()

	// graceful shutdown
	ch := make(chan os.Signal, 1)
	signal.Notify(ch, syscall.SIGINT, syscall.SIGTERM)
	<-ch

	cancel()
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	_ = srv.Shutdown(shutdownCtx)
}
