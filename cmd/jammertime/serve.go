package main

import (
	"context"
	"database/sql"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	_ "jammertime/docs"
	"jammertime/internal/config"
	"jammertime/internal/handlers"
	"jammertime/internal/logger"
	"jammertime/internal/repository"
	"jammertime/internal/repository/db"
	"jammertime/internal/server"
	"jammertime/internal/service"
)

const shutdownTimeout = 10 * time.Second

func newServeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			app, log, err := loadApp(cmd)
			if err != nil {
				return err
			}
			return serve(app, log)
		},
	}
}

func serve(app config.App, log *logger.Logger) error {
	conn, err := openDB(app, log)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := conn.Close(); cerr != nil {
			log.Errorw("failed to close sqlite", "err", cerr)
		}
	}()

	loc, err := app.Location()
	if err != nil {
		return err
	}
	if app.Auth.SigningKey == "" {
		log.Warnw("auth_signing_key_missing", "hint", "set auth.signing_key or JAMMERTIME_AUTH_SIGNING_KEY; sign-in will fail")
	}

	repos := repository.NewRepository(conn)
	services := service.NewService(repos, service.Options{
		Calc:       app.Calc,
		CSV:        ingestOptions(app, loc),
		TimeZone:   app.TimeZone,
		SigningKey: app.Auth.SigningKey,
		TokenTTL:   app.Auth.TokenTTL,
		Log:        log,
	})
	apiHandler := handlers.NewHandler(services, log.Named("http"))

	srv := &server.Server{}
	runHTTPServer(srv, app.Port, apiHandler, log)
	log.Infow("server_started", "port", app.Port, "db", app.DBPath)

	waitForShutdown(srv, services, log)
	return nil
}

// openDB initializes the SQLite database using configuration.
func openDB(app config.App, log *logger.Logger) (*sql.DB, error) {
	path := app.DBPath
	if path == "" {
		log.Infow("db.path not set in config; using default file", "default", "jammertime.db")
		path = "jammertime.db"
	}
	return db.InitDB(path)
}

// runHTTPServer runs the HTTP server in a separate goroutine.
func runHTTPServer(srv *server.Server, port string, handler *handlers.Handler, log *logger.Logger) {
	go func() {
		if port == "" {
			port = "8080"
		}
		if err := srv.Run(port, handler.InitRoutes()); err != nil {
			log.Fatalw("error starting server", "err", err)
		}
	}()
}

// waitForShutdown blocks until SIGINT/SIGTERM, then stops accepting requests
// and cancels in-flight runs.
func waitForShutdown(srv *server.Server, services *service.Service, log *logger.Logger) {
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Infow("shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		log.Errorw("server forced to shutdown", "err", err)
	}
	services.Runs.Close()
}
