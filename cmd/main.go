package main

import (
	"context"
	"database/sql"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"smart_ventilation/internal/handlers"
	"smart_ventilation/internal/logger"
	"smart_ventilation/internal/mqtt"
	"smart_ventilation/internal/repository"
	"smart_ventilation/internal/server"
	"smart_ventilation/internal/service"

	"github.com/spf13/viper"
)

const defaultPollTick = 30 * time.Second

func main() {
	// load config.yml first so the log level can come from it
	if err := loadConfig(); err != nil {
		logger.Get(logger.InfoLevel).Fatalw("error reading config", "err", err)
	}
	log := logger.Get(viper.GetString("log.level"))

	// open DB
	db, err := openDB(log)
	if err != nil {
		log.Fatalw("failed to init sqlite", "err", err)
	}
	defer func() {
		if cerr := db.Close(); cerr != nil {
			log.Fatalw("failed to close sqlite", "err", cerr)
		}
	}()

	// wire dependencies
	repos := repository.NewRepository(db)
	services := service.NewService(repos, serviceOptions(), log)
	apiHandler := handlers.NewHandler(services, log)

	// context for background goroutines
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// optional MQTT bridge
	if err := startMQTT(ctx, services, log); err != nil {
		log.Fatalw("failed to start mqtt bridge", "err", err)
	}

	// cloud poller (no-op unless a device is configured)
	go services.Poller.Run(ctx, pollTick())

	// start HTTP server
	srv := &server.Server{}
	runHTTPServer(srv, viper.GetString("port"), apiHandler, log)

	// graceful shutdown
	waitForShutdown(cancel, srv, log)
}

func loadConfig() error {
	viper.AddConfigPath("configs") // configs/config.yml
	viper.SetConfigName("config")
	return viper.ReadInConfig()
}

// serviceOptions maps the config file onto the service wiring knobs.
func serviceOptions() service.Options {
	return service.Options{
		SigningKey:   viper.GetString("auth.signing_key"),
		GasThreshold: viper.GetFloat64("ingest.gas_threshold"),
		Cloud: service.CloudConfig{
			BaseURL:      viper.GetString("cloud.base_url"),
			TokenURL:     viper.GetString("cloud.token_url"),
			ClientID:     viper.GetString("cloud.client_id"),
			ClientSecret: viper.GetString("cloud.client_secret"),
			RefreshToken: viper.GetString("cloud.refresh_token"),
			ThingID:      viper.GetString("cloud.thing_id"),
		},
		PollDeviceID: viper.GetString("cloud.poll_device_id"),
	}
}

func pollTick() time.Duration {
	if d := viper.GetDuration("cloud.poll_interval"); d > 0 {
		return d
	}
	return defaultPollTick
}

// openDB initializes the SQLite database using configuration.
func openDB(log *logger.Logger) (*sql.DB, error) {
	dbPath := viper.GetString("db.path")
	if dbPath == "" {
		log.Infow("db.path not set in config; using default file", "default", "app.db")
		dbPath = "app.db"
	}
	return repository.InitDB(dbPath)
}

// startMQTT connects the broker bridge when mqtt.host is configured: inbound
// telemetry feeds the ingest pipeline, and fan updates are republished.
func startMQTT(ctx context.Context, services *service.Service, log *logger.Logger) error {
	cfg := mqtt.Config{
		Host:     viper.GetString("mqtt.host"),
		Port:     viper.GetInt("mqtt.port"),
		User:     viper.GetString("mqtt.user"),
		Password: viper.GetString("mqtt.password"),
		ClientID: viper.GetString("mqtt.client_id"),
	}
	if cfg.Host == "" {
		log.Infow("mqtt.host not set in config; bridge disabled")
		return nil
	}

	client, err := mqtt.Connect(ctx, cfg)
	if err != nil {
		return err
	}
	if err := mqtt.NewConsumer(client, services.Ingest, log).Subscribe(ctx); err != nil {
		return err
	}

	// republish every fan update for downstream consumers
	pub := mqtt.NewPublisher(client, log)
	updates, unsubscribe := services.Hub.Subscribe()
	go func() {
		defer unsubscribe()
		for {
			select {
			case <-ctx.Done():
				return
			case u, ok := <-updates:
				if !ok {
					return
				}
				pub.Publish(u)
			}
		}
	}()

	log.Infow("mqtt bridge started", "host", cfg.Host, "port", cfg.Port)
	return nil
}

// runHTTPServer runs the HTTP server in a separate goroutine.
func runHTTPServer(srv *server.Server, port string, handler *handlers.Handler, log *logger.Logger) {
	go func() {
		if port == "" {
			port = "8080"
		}
		if err := srv.Run(port, handler.InitRoutes()); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalw("error starting server", "err", err)
		}
	}()
}

// waitForShutdown listens for termination signals and performs graceful shutdown.
func waitForShutdown(cancel context.CancelFunc, srv *server.Server, log *logger.Logger) {
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Infow("shutting down server...")

	// stop background goroutines
	cancel()

	// allow in-flight requests to complete
	ctx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(ctx); err != nil {
		log.Fatalw("server forced to shutdown", "err", err)
	}
}
