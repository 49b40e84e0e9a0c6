package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"cloud.google.com/go/firestore"
	firebase "firebase.google.com/go/v4"
	"github.com/dgraph-io/badger/v4"
	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	resendgo "github.com/resend/resend-go/v2"
	"go.opentelemetry.io/otel"
	"golang.org/x/time/rate"
	"google.golang.org/api/option"

	"github.com/nvbf/tournament-desk/config"
	"github.com/nvbf/tournament-desk/models"
	auth "github.com/nvbf/tournament-desk/pkg/auth"
	"github.com/nvbf/tournament-desk/pkg/metrics"
	"github.com/nvbf/tournament-desk/repos/realtime"
	resend "github.com/nvbf/tournament-desk/repos/resend"
	"github.com/nvbf/tournament-desk/repos/store"

	"github.com/nvbf/tournament-desk/services/authkey"
	"github.com/nvbf/tournament-desk/services/mutation"
	"github.com/nvbf/tournament-desk/services/session"
	sync "github.com/nvbf/tournament-desk/services/sync"
	"github.com/nvbf/tournament-desk/services/tournament"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "Fatal error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	configFile := os.Getenv("CONFIG_FILE")
	if configFile == "" {
		configFile = "config.yaml"
	}
	cfg, err := config.LoadConfig(configFile)
	if err != nil {
		return fmt.Errorf("config error: %w", err)
	}
	log := cfg.NewLogger().With(slog.String("session_id", cfg.SessionID))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var (
		firestoreClient *firestore.Client
		firebaseApp     *firebase.App
	)
	if cfg.FirebaseProjectID != "" {
		credentialsOption := option.WithCredentialsJSON([]byte(cfg.FirebaseCredentialsJSON))

		firestoreClient, err = firestore.NewClient(ctx, cfg.FirebaseProjectID, credentialsOption)
		if err != nil {
			return fmt.Errorf("failed to create Firestore client: %w", err)
		}
		defer firestoreClient.Close()

		firebaseApp, err = firebase.NewApp(ctx, &firebase.Config{ProjectID: cfg.FirebaseProjectID}, credentialsOption)
		if err != nil {
			return fmt.Errorf("error initializing app: %w", err)
		}
	}

	records, keys, closeStore, err := openStore(cfg, firestoreClient, log)
	if err != nil {
		return err
	}
	defer closeStore()

	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	m := metrics.NewMetrics(registry)
	tracer := otel.Tracer("github.com/nvbf/tournament-desk")

	newChannel, closeTransport := channelFactory(cfg, log)
	defer closeTransport()

	deskChannel, err := newChannel(cfg.SessionID)
	if err != nil {
		return fmt.Errorf("failed to open channel: %w", err)
	}
	defer deskChannel.Close()

	var roles []models.Role
	if cfg.DefaultRole != "" {
		roles = append(roles, models.Role(cfg.DefaultRole))
	}
	sess := session.New(cfg.SessionID, roles...)

	state := tournament.NewState()
	tournamentService := tournament.NewTournamentService(state, records, log)

	producer := mutation.NewProducer(mutation.ProducerOptions{
		State:    state,
		Store:    records,
		Notifier: mutation.NewLogNotifier(log),
		Metrics:  m,
		Log:      log,
	})
	dispatcher := mutation.NewDispatcher(producer, cfg.QueueSize, tracer, log)
	defer dispatcher.Stop()

	syncService := sync.NewSyncService(sync.Options{
		Channel:   deskChannel,
		State:     state,
		Store:     records,
		Scheduler: dispatcher,
		Metrics:   m,
		Log:       log,
	})
	dispatcher.AddListener(syncService)
	if err := syncService.Start(); err != nil {
		return fmt.Errorf("failed to start sync: %w", err)
	}

	secret := cfg.KeySigningSecret
	if secret == "" {
		secret = uuid.NewString()
		log.Warn("KEY_SIGNING_SECRET not set, grants only verify inside this process")
	}
	signer := authkey.NewGrantSigner(secret, nil)

	var relay authkey.KeyRelay
	if cfg.ResendKey != "" {
		relay = resend.NewService(resendgo.NewClient(cfg.ResendKey), cfg.ResendFrom, cfg.HostURL, log)
	}
	exchange := authkey.NewExchange(authkey.ExchangeOptions{
		Channel:       deskChannel,
		Session:       sess,
		Signer:        signer,
		Relay:         relay,
		RedeemTimeout: cfg.RedeemTimeout,
		Tracer:        tracer,
		Metrics:       m,
		Log:           log,
	})
	if err := exchange.Start(); err != nil {
		return fmt.Errorf("failed to start key exchange: %w", err)
	}

	if cfg.AuthorityEnabled {
		authorityChannel, err := newChannel(cfg.SessionID + "-authority")
		if err != nil {
			return fmt.Errorf("failed to open authority channel: %w", err)
		}
		defer authorityChannel.Close()

		authority := authkey.NewAuthority(authkey.AuthorityOptions{
			Channel:     authorityChannel,
			Keys:        keys,
			Signer:      signer,
			TTL:         cfg.KeyTTL,
			RedeemRate:  rate.Limit(cfg.RedeemRate),
			RedeemBurst: cfg.RedeemBurst,
			Metrics:     m,
			Log:         log,
		})
		if err := authority.Start(); err != nil {
			return fmt.Errorf("failed to start key authority: %w", err)
		}
		log.Info("Key authority running")
	}

	router := gin.New()
	router.Use(gin.Recovery())
	if origins := cfg.AllowOrigins(); len(origins) > 0 {
		corsConfig := cors.DefaultConfig()
		corsConfig.AllowOrigins = origins
		corsConfig.AllowCredentials = true
		corsConfig.AllowMethods = []string{"GET", "POST", "DELETE", "OPTIONS"}
		corsConfig.AllowHeaders = []string{"Origin", "Content-Length", "Content-Type", "Authorization", "Access-Control-Allow-Origin"}
		router.Use(cors.New(corsConfig))
	}
	if firebaseApp != nil {
		verifier, err := auth.NewFirebaseVerifier(ctx, firebaseApp)
		if err != nil {
			return fmt.Errorf("failed to initialize Firebase Auth: %w", err)
		}
		router.Use(auth.AuthMiddleware(verifier, sess, log))
	}
	router.GET("/metrics", gin.WrapH(promhttp.HandlerFor(registry, promhttp.HandlerOpts{})))

	selected := func(*gin.Context) string {
		id, _ := state.Current()
		return id
	}

	tournamentRouter := router.Group("/tournament/v1")
	tournamentRouter.Use(auth.RequirePermission(sess, models.PermissionView, auth.ParamOr("tournament_id", selected)))

	mutationRouter := router.Group("/mutations/v1")
	mutationRouter.Use(auth.RequirePermission(sess, models.PermissionMutate, selected))

	syncRouter := router.Group("/sync/v1")
	syncRouter.Use(auth.RequirePermission(sess, models.PermissionView, selected))

	authRouter := router.Group("/auth/v1")

	tournament.NewHTTPHandler(tournament.HTTPOptions{
		Service: tournamentService,
		Router:  tournamentRouter,
	})

	mutation.NewHTTPHandler(mutation.HTTPOptions{
		Service: dispatcher,
		Router:  mutationRouter,
	})

	sync.NewHTTPHandler(sync.HTTPOptions{
		Service: syncService,
		Router:  syncRouter,
	})

	authkey.NewHTTPHandler(authkey.HTTPOptions{
		Service: exchange,
		Router:  authRouter,
	})

	server := &http.Server{Addr: ":" + cfg.Port, Handler: router}
	serveErr := make(chan error, 1)
	go func() {
		log.Info("Listening", slog.String("port", cfg.Port))
		serveErr <- server.ListenAndServe()
	}()

	select {
	case err := <-serveErr:
		if !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server failed: %w", err)
		}
	case <-ctx.Done():
		log.Info("Shutting down")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return server.Shutdown(shutdownCtx)
}

func openStore(cfg *config.Config, firestoreClient *firestore.Client, log *slog.Logger) (store.RecordStore, store.KeyStore, func(), error) {
	switch cfg.StoreBackend {
	case config.StoreFirestore:
		s := store.NewFirestoreStore(firestoreClient, log)
		return s, s, func() {}, nil
	case config.StoreMemory:
		s := store.NewMemoryStore()
		return s, s, func() {}, nil
	default:
		db, err := badger.Open(badger.DefaultOptions(cfg.BadgerPath).WithLoggingLevel(badger.WARNING))
		if err != nil {
			return nil, nil, nil, fmt.Errorf("database opening failed: %w", err)
		}
		s := store.NewBadgerStore(db, log)
		return s, s, func() {
			log.Info("Closing BadgerDB...")
			_ = db.Close()
		}, nil
	}
}

// channelFactory opens sessions on NATS when a URL is configured, otherwise on one in-process GoChannel.
func channelFactory(cfg *config.Config, log *slog.Logger) (func(sessionID string) (realtime.Channel, error), func()) {
	if cfg.NATSURL != "" {
		return func(sessionID string) (realtime.Channel, error) {
			bus, err := realtime.NewNATS(cfg.NATSURL, cfg.ChannelPrefix, sessionID, log)
			if err != nil {
				return nil, err
			}
			return bus, nil
		}, func() {}
	}
	pubSub := realtime.NewGoChannel(log)
	return func(sessionID string) (realtime.Channel, error) {
		return realtime.NewInProcess(pubSub, cfg.ChannelPrefix, sessionID, log), nil
	}, func() { _ = pubSub.Close() }
}
