package main

import (
	"flag"
	"io"
	"io/fs"
	"net/http"
	"net/url"
	"os"
	"os/signal"
	"syscall"

	"tshirt-studio/compositor"
	"tshirt-studio/core"
	"tshirt-studio/handlers/api/designs"
	"tshirt-studio/handlers/api/revisions"
	"tshirt-studio/handlers/websocket"
	"tshirt-studio/middleware"
	"tshirt-studio/stores"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"
)

func allowOrigin(r *http.Request, origin string) bool {
	if origin == "" {
		return false
	}

	parsed, err := url.Parse(origin)
	if err != nil {
		return false
	}

	switch parsed.Scheme {
	case "http", "https":
		switch parsed.Hostname() {
		case "localhost", "127.0.0.1", "::1":
			return true
		}
	}
	return false
}

func setupRouter(store stores.Store, notifier designs.Notifier, comp *compositor.Compositor) *chi.Mux {
	r := chi.NewRouter()
	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.Logger)
	r.Use(chimiddleware.Recoverer)

	r.Use(cors.Handler(cors.Options{
		AllowOriginFunc:  allowOrigin,
		AllowedMethods:   []string{"GET", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "Content-Length"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	// Revision history is only kept by the sqlite store
	revisionStore, hasRevisions := store.(core.RevisionStore)
	if hasRevisions {
		logrus.Info("Revision API routes registered")
	} else {
		logrus.Warn("Revision API not available - requires SQLite storage")
	}

	r.Route("/api/v2", func(r chi.Router) {
		r.Use(middleware.AuthJWT)

		r.Get("/designs", designs.HandleListDesigns(store))
		r.Route("/designs/{designId}", func(r chi.Router) {
			r.Get("/", designs.HandleGetDesign(store))
			r.Put("/", designs.HandleSaveDesign(store, notifier))
			r.Delete("/", designs.HandleDeleteDesign(store))
			r.Get("/preview.png", designs.HandlePreview(store, comp))
			if hasRevisions {
				r.Get("/revisions", revisions.HandleListRevisions(revisionStore))
			}
		})
		if hasRevisions {
			r.Get("/revisions/{revisionId}", revisions.HandleGetRevision(revisionStore))
		}
	})

	return r
}

func waitForShutdown(notifier *websocket.Notifier, store stores.Store) {
	signals := make(chan os.Signal, 1)
	signal.Notify(signals, os.Interrupt, syscall.SIGHUP, syscall.SIGINT, syscall.SIGTERM, syscall.SIGQUIT)

	s := <-signals
	logrus.WithField("signal", s.String()).Info("Shutting down")
	notifier.Close()
	if closer, ok := store.(io.Closer); ok {
		if err := closer.Close(); err != nil {
			logrus.WithError(err).Warn("Failed to close store")
		}
	}
	os.Exit(0)
}

func main() {
	if err := godotenv.Load(); err != nil {
		logrus.Info("No .env file found")
	}

	listenAddress := flag.String("listen", ":3002", "The address to listen on.")
	logLevel := flag.String("loglevel", "info", "The log level (debug, info, warn, error).")
	assetDir := flag.String("assets", "", "Directory with garment images; empty uses the built-in silhouettes.")
	remoteImages := flag.Bool("remote-images", false, "Fetch http(s) image references when rendering previews.")
	flag.Parse()

	level, err := logrus.ParseLevel(*logLevel)
	if err != nil {
		logrus.Fatalf("Invalid log level: %v", err)
	}
	logrus.SetLevel(level)
	logrus.SetFormatter(&logrus.TextFormatter{
		FullTimestamp: true,
	})

	middleware.InitAuth()
	store := stores.GetStore()

	var assets fs.FS
	if *assetDir != "" {
		assets = os.DirFS(*assetDir)
		logrus.WithField("assets", *assetDir).Info("Serving garment images from directory")
	}
	loader := compositor.NewLoader(assets)
	loader.AllowRemote = *remoteImages
	comp := compositor.New(loader, logrus.StandardLogger())

	notifier := websocket.NewNotifier()
	r := setupRouter(store, notifier, comp)
	r.Mount("/socket.io/", notifier.Server().ServeHandler(nil))

	logrus.WithField("addr", *listenAddress).Info("starting server")
	go func() {
		if err := http.ListenAndServe(*listenAddress, r); err != nil {
			logrus.WithField("event", "start server").Fatal(err)
		}
	}()

	logrus.Debug("Server is running in the background")
	waitForShutdown(notifier, store)
}
