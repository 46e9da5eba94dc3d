package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"kataba/internal/api"
	"kataba/internal/conversations"
	"kataba/internal/metrics"
	"kataba/internal/users"
	"kataba/pkg/db"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

const shutdownTimeout = 10 * time.Second

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP API",
	RunE: func(cmd *cobra.Command, _ []string) error {
		cfg := loadConfig()

		database, err := db.NewDB(cfg)
		if err != nil {
			logrus.Errorf("failed to connect to database: %v", err)
			return err
		}
		defer database.Close()

		if err := db.Migrate(cmd.Context(), database); err != nil {
			logrus.Errorf("failed to migrate database: %v", err)
			return err
		}

		userService := users.NewService(users.NewRepository(database))
		conversationService := conversations.NewService(conversations.NewRepository(database))
		recorder := metrics.NewRecorder()

		apiHandler := api.NewHandler(
			userService,
			conversationService,
			newProvider(cfg),
			recorder,
			api.Options{
				JWTSigningKey:     cfg.JWTSigningKey,
				JWTTTL:            cfg.JWTTTL,
				MaxGuestMessages:  cfg.MaxGuestMessages,
				GuestSessionTTL:   cfg.GuestSessionTTL,
				CompletionTimeout: cfg.CompletionTimeout,
				PersistTimeout:    cfg.PersistTimeout,
			},
		)

		sweepCtx, stopSweep := context.WithCancel(cmd.Context())
		defer stopSweep()
		go apiHandler.SweepGuestSessions(sweepCtx)

		server := &http.Server{
			Addr:              cfg.Addr(),
			Handler:           apiHandler.Routes(cfg.CORSOrigin),
			ReadHeaderTimeout: 10 * time.Second,
		}

		serverErr := make(chan error, 1)
		go func() {
			logrus.Infof("server listening on %s", cfg.Addr())
			if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				serverErr <- err
			}
			close(serverErr)
		}()

		quit := make(chan os.Signal, 1)
		signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

		select {
		case err := <-serverErr:
			if err != nil {
				logrus.Errorf("server failed: %v", err)
				return err
			}
		case <-quit:
		}

		logrus.Info("shutting down server")

		ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()

		if err := server.Shutdown(ctx); err != nil {
			logrus.Errorf("failed to stop server: %v", err)
			return err
		}
		apiHandler.Wait()

		logrus.Info("server stopped")
		return nil
	},
}

func init() {
	serveCmd.Flags().String("port", "", "port to listen on, overrides SERVER_PORT")
	if err := viper.BindPFlag("port", serveCmd.Flags().Lookup("port")); err != nil {
		panic(err)
	}
}
