package main

import (
	"context"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"

	"social-canvas/assets"
	"social-canvas/auth"
	"social-canvas/backend"
	"social-canvas/canvas"
	"social-canvas/catalog"
	"social-canvas/core"
	"social-canvas/handlers/api/canvases"
	"social-canvas/handlers/api/catalogs"
	"social-canvas/handlers/api/health"
	"social-canvas/handlers/api/profile"
	"social-canvas/handlers/canvasbridge"
	"social-canvas/handlers/session"
	authMiddleware "social-canvas/middleware"
	"social-canvas/realtime"
	"social-canvas/stores"
)

// tokenTemplate names the signing template for backend-scoped tokens.
const tokenTemplate = "supabase"

func setupRouter(
	supplier *auth.Supplier,
	repo *catalog.Repository,
	canvasSvc *canvas.Service,
	notify core.Notifier,
	assetDir string,
) *chi.Mux {
	r := chi.NewRouter()
	r.Use(chimiddleware.Logger)

	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"https://*", "http://*"},
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "Content-Length", "Origin", "Host", "Connection", "Accept-Encoding", "Accept-Language", "X-Requested-With"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	r.Route("/api/v1", func(r chi.Router) {
		r.Group(func(r chi.Router) {
			r.Use(authMiddleware.AuthToken)
			r.Route("/catalogs", func(r chi.Router) {
				r.Get("/", catalogs.HandleList(repo))
				r.Post("/", catalogs.HandleCreate(repo))
				r.Delete("/{id}", catalogs.HandleDelete(repo))
			})
			r.Route("/canvases/{name}", func(r chi.Router) {
				r.Get("/", canvases.HandleLoad(canvasSvc))
				r.Put("/", canvases.HandleSave(canvasSvc))
				r.Get("/bridge", canvasbridge.HandleSession(canvasSvc, notify))
			})
			r.Post("/profile/sync", profile.HandleSync(repo))
		})

		r.Post("/session", session.HandleSignIn(supplier, repo))
		r.Delete("/session", session.HandleSignOut(supplier))
		r.Get("/health", health.HandleCheck(repo))
	})

	if assetDir != "" {
		r.Handle("/assets/*", http.StripPrefix("/assets/", http.FileServer(http.Dir(assetDir))))
	}

	return r
}

func waitForShutdown(server *http.Server, supplier *auth.Supplier, channel *realtime.Channel) {
	signalC := make(chan os.Signal, 1)
	signal.Notify(signalC, os.Interrupt, syscall.SIGHUP, syscall.SIGINT, syscall.SIGTERM, syscall.SIGQUIT)
	<-signalC

	logrus.Info("Shutting down...")
	supplier.Stop()
	if channel != nil {
		channel.Close()
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := server.Shutdown(ctx); err != nil {
		logrus.WithError(err).Error("server shutdown failed")
	}
}

func main() {
	if err := godotenv.Load(); err != nil {
		logrus.Info("No .env file found")
	}

	listenAddress := flag.String("listen", "127.0.0.1:3002", "The address to listen on.")
	logLevel := flag.String("loglevel", "info", "The log level (debug, info, warn, error).")
	flag.Parse()

	level, err := logrus.ParseLevel(*logLevel)
	if err != nil {
		logrus.Fatalf("Invalid log level: %v", err)
	}
	logrus.SetLevel(level)
	logrus.SetFormatter(&logrus.TextFormatter{
		FullTimestamp: true,
	})

	backendURL := os.Getenv("BACKEND_URL")
	backendKey := os.Getenv("BACKEND_PUBLISHABLE_KEY")
	if backendURL == "" || backendKey == "" {
		logrus.Fatal("BACKEND_URL and BACKEND_PUBLISHABLE_KEY must be set")
	}

	provider := auth.InitProvider()
	cache := auth.InitCache()
	supplier := auth.NewSupplier(provider, tokenTemplate, cache)

	restClient := backend.NewRESTClient(backendURL, backendKey)
	supplier.AddSink(restClient)

	var channel *realtime.Channel
	if realtimeURL := os.Getenv("REALTIME_URL"); realtimeURL != "" {
		channel = realtime.NewChannel(realtimeURL, backendKey)
		supplier.AddSink(channel)
	}

	db := backend.WithAuthRetry(restClient, supplier)

	notify := core.LogNotifier{}
	repo := catalog.NewRepository(db, notify)

	bucket := assets.GetBucketStore()
	canvasStore := stores.GetCanvasStore(db)
	canvasSvc := canvas.NewService(canvasStore, assets.NewRewriter(bucket))

	// Filesystem-backed assets are served by this process.
	assetDir := ""
	if fs, ok := bucket.(interface{ BasePath() string }); ok {
		assetDir = fs.BasePath()
	}

	r := setupRouter(supplier, repo, canvasSvc, notify, assetDir)

	if channel != nil {
		go func() {
			err := channel.Subscribe(context.Background(), "public", "catalog", func(ev realtime.Event) {
				logrus.WithFields(logrus.Fields{
					"type":  ev.Type,
					"table": ev.Table,
				}).Debug("catalog change received")
			})
			if err != nil {
				logrus.WithError(err).Warn("realtime subscription ended")
			}
		}()
	}

	server := &http.Server{Addr: *listenAddress, Handler: r}
	logrus.WithField("addr", *listenAddress).Info("starting host")
	go func() {
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logrus.WithField("event", "start server").Fatal(err)
		}
	}()

	waitForShutdown(server, supplier, channel)
}
