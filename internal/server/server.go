package server

import (
	"context"
	stderrors "errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-contrib/pprof"
	"github.com/gin-gonic/gin"
	"github.com/go-co-op/gocron/v2"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/errgroup"

	"github.com/victornm/codequest/internal/accounts"
	"github.com/victornm/codequest/internal/api"
	"github.com/victornm/codequest/internal/challenge"
	"github.com/victornm/codequest/internal/conversation"
	"github.com/victornm/codequest/internal/event"
	"github.com/victornm/codequest/internal/leaderboard"
	"github.com/victornm/codequest/internal/storage/memory"
	"github.com/victornm/codequest/internal/storage/postgres"
	"github.com/victornm/codequest/internal/submission"
	"github.com/victornm/codequest/internal/telemetry"
)

type Config struct {
	HTTP struct {
		Port int32
	}

	Postgres struct {
		// Addr empty means in-memory storage, for local development only.
		Addr string
		User string
		Pass string
		Name string
	}

	Redis struct {
		// Addrs empty disables the challenge cache.
		Addrs  []string
		Pass   string
		Prefix string
	}

	Accounts struct {
		BaseURL string
	}

	Conversation struct {
		RegistrationGraceSeconds int
		SessionTTLMinutes        int
	}

	Challenge struct {
		CacheTTLSeconds int
	}
}

// storage is what the services collectively need from a storage backend.
// Both the postgres and the in-memory implementations satisfy it.
type storage interface {
	challenge.Store
	submission.Store
	leaderboard.Store
}

type Server struct {
	c Config

	eb *event.Bus

	infra struct {
		redis    redis.UniversalClient
		postgres *pgxpool.Pool
	}

	store storage

	service struct {
		challenge    *challenge.Service
		submission   *submission.Service
		leaderboard  *leaderboard.Service
		accounts     *accounts.Client
		conversation *conversation.Service
	}

	http  *http.Server
	sched gocron.Scheduler
}

func Init(c Config) (*Server, error) {
	s := &Server{c: c}

	s.eb = event.NewBus()
	telemetry.ObserveBus(s.eb)

	if err := s.initInfra(); err != nil {
		return nil, fmt.Errorf("server: init infra: %w", err)
	}

	s.initService()
	s.initAPI()

	if err := s.initJanitor(); err != nil {
		return nil, fmt.Errorf("server: init janitor: %w", err)
	}

	return s, nil
}

func (s *Server) initInfra() error {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	var eg errgroup.Group

	eg.Go(func() error {
		if len(s.c.Redis.Addrs) == 0 {
			slog.Warn("server: no redis configured, challenge cache disabled")
			return nil
		}

		r := redis.NewUniversalClient(&redis.UniversalOptions{
			Addrs:    s.c.Redis.Addrs,
			Password: s.c.Redis.Pass,
		})

		if err := telemetry.MonitorRedis(r); err != nil {
			return fmt.Errorf("redis: %w", err)
		}

		if err := r.Ping(ctx).Err(); err != nil {
			return fmt.Errorf("redis: %w", err)
		}

		s.infra.redis = r
		return nil
	})

	eg.Go(func() error {
		if s.c.Postgres.Addr == "" {
			slog.Warn("server: no postgres configured, using in-memory storage")
			s.store = memory.NewStorage()
			return nil
		}

		cc, err := pgxpool.ParseConfig(fmt.Sprintf("postgres://%s:%s@%s/%s",
			s.c.Postgres.User, s.c.Postgres.Pass, s.c.Postgres.Addr, s.c.Postgres.Name))
		if err != nil {
			return fmt.Errorf("postgres: %w", err)
		}

		db, err := pgxpool.NewWithConfig(ctx, cc)
		if err != nil {
			return fmt.Errorf("postgres: %w", err)
		}

		if err := db.Ping(ctx); err != nil {
			return fmt.Errorf("postgres: %w", err)
		}

		st := postgres.NewStorage(db)
		if err := st.Bootstrap(ctx); err != nil {
			return fmt.Errorf("postgres: %w", err)
		}

		s.infra.postgres = db
		s.store = st
		return nil
	})

	return eg.Wait()
}

func (s *Server) initService() {
	s.service.challenge = challenge.NewService(challenge.Config{
		Store:    s.store,
		Redis:    s.infra.redis,
		Prefix:   s.c.Redis.Prefix,
		CacheTTL: time.Duration(s.c.Challenge.CacheTTLSeconds) * time.Second,
	})

	s.service.submission = submission.NewService(submission.Config{
		Challenges: s.service.challenge,
		Store:      s.store,
		EventBus:   s.eb,
	})

	s.service.leaderboard = leaderboard.NewService(leaderboard.Config{
		Store: s.store,
	})

	s.service.accounts = accounts.NewClient(accounts.Config{
		BaseURL: s.c.Accounts.BaseURL,
	})

	s.service.conversation = conversation.NewService(conversation.Config{
		Accounts:          s.service.accounts,
		Pipeline:          s.service.submission,
		Leaderboard:       s.service.leaderboard,
		Challenges:        s.service.challenge,
		EventBus:          s.eb,
		RegistrationGrace: time.Duration(s.c.Conversation.RegistrationGraceSeconds) * time.Second,
	})
}

func (s *Server) initAPI() {
	e := gin.New()
	e.GET("/metrics", gin.WrapH(promhttp.Handler()))
	pprof.Register(e, "/debug/pprof")
	e.Use(gin.Recovery())

	api.New(api.Config{
		Router:       e,
		Challenge:    s.service.challenge,
		Submission:   s.service.submission,
		Leaderboard:  s.service.leaderboard,
		Conversation: s.service.conversation,
	})

	s.http = &http.Server{
		Addr:              fmt.Sprintf(":%d", s.c.HTTP.Port),
		Handler:           e,
		ReadHeaderTimeout: 60 * time.Second,
	}
}

// initJanitor schedules the conversation-session sweep: sessions idle past
// the TTL are dropped, mid-flow or not.
func (s *Server) initJanitor() error {
	ttl := time.Duration(s.c.Conversation.SessionTTLMinutes) * time.Minute
	if ttl <= 0 {
		ttl = 30 * time.Minute
	}

	sched, err := gocron.NewScheduler()
	if err != nil {
		return err
	}

	_, err = sched.NewJob(
		gocron.DurationJob(time.Minute),
		gocron.NewTask(func() {
			if n := s.service.conversation.EvictIdleSessions(ttl); n > 0 {
				slog.Info("server: evicted idle conversation sessions", "count", n)
			}
		}),
	)
	if err != nil {
		return err
	}

	s.sched = sched
	return nil
}

func (s *Server) Start() {
	ctx := context.TODO()

	s.sched.Start()

	slog.InfoContext(ctx, fmt.Sprintf("server: HTTP listening on port %d", s.c.HTTP.Port))
	if err := s.http.ListenAndServe(); err != nil && !stderrors.Is(err, http.ErrServerClosed) {
		slog.ErrorContext(ctx, "server: shutdown with error", "error", err)
	}
}

func (s *Server) Shutdown() {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := s.http.Shutdown(ctx); err != nil {
		slog.ErrorContext(ctx, "server: shutdown HTTP failed", "error", err)
	}

	if err := s.sched.Shutdown(); err != nil {
		slog.ErrorContext(ctx, "server: shutdown scheduler failed", "error", err)
	}

	s.eb.Stop()

	if s.infra.postgres != nil {
		s.infra.postgres.Close()
	}

	slog.InfoContext(ctx, "server: shutdown completed")
}
