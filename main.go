package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"github.com/spf13/pflag"
	"github.com/yeremiapane/restaurant-table-cart/config"
	"github.com/yeremiapane/restaurant-table-cart/database"
	"github.com/yeremiapane/restaurant-table-cart/events"
	"github.com/yeremiapane/restaurant-table-cart/kds"
	"github.com/yeremiapane/restaurant-table-cart/router"
	"github.com/yeremiapane/restaurant-table-cart/services"
	"github.com/yeremiapane/restaurant-table-cart/utils"
)

func main() {
	seed := pflag.Bool("seed", false, "insert the demo restaurant, tables, products and admin user")
	pflag.Parse()

	// Load .env file di awal sebelum apapun
	if err := godotenv.Load(); err != nil {
		fmt.Fprintf(os.Stderr, "Warning: .env file not found: %v\n", err)
	}

	cfg := config.MustLoad()
	utils.InitLogger(cfg.Log.Level, cfg.Log.Format)
	utils.ConfigureJWT(cfg.Auth.JWTSecret, cfg.Auth.TokenTTL)

	if cfg.Server.GinMode == gin.ReleaseMode {
		gin.SetMode(gin.ReleaseMode)
	}

	db, err := config.InitDB(cfg)
	if err != nil {
		utils.ErrorLogger.Fatalf("Failed to connect to database: %v", err)
	}
	if err := database.Migrate(db, cfg.Database.Driver, cfg.Database.Migrations); err != nil {
		utils.ErrorLogger.Fatalf("Failed to migrate: %v", err)
	}
	if *seed {
		if _, err := database.DemoSeed.Apply(context.Background(), db); err != nil {
			utils.ErrorLogger.Fatalf("Failed to seed: %v", err)
		}
	}

	hub := kds.Default()
	publisher, closePublisher, err := buildPublisher(cfg, hub)
	if err != nil {
		utils.ErrorLogger.Fatalf("Failed to set up event stream: %v", err)
	}
	defer closePublisher()

	deps := services.Deps{DB: db, Events: publisher}
	sessions, err := services.NewSessionService(deps, cfg.Session.Secret)
	if err != nil {
		utils.ErrorLogger.Fatalf("Failed to init sessions: %v", err)
	}
	admission, err := services.NewAdmissionService(deps, cfg.Approval.TTL)
	if err != nil {
		utils.ErrorLogger.Fatalf("Failed to init admission: %v", err)
	}
	orders := services.NewOrderService(deps, sessions, admission, services.NewDBCatalog(db))
	lifecycle := services.NewLifecycleService(deps, sessions)

	sweeper := services.NewApprovalSweeper(db, cfg.Approval.TTL)
	sweeper.Start()
	defer sweeper.Stop()

	r := router.SetupRouter(router.Options{
		DB:             db,
		Orders:         orders,
		Admission:      admission,
		Lifecycle:      lifecycle,
		Hub:            hub,
		AllowedOrigin:  cfg.Server.AllowedOrigin,
		TrustedProxies: cfg.Server.TrustedProxies,
		RateRequests:   cfg.RateLimit.Requests,
		RateWindow:     cfg.RateLimit.Window,
	})

	srv := &http.Server{
		Addr:              ":" + cfg.Server.Port,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	go func() {
		utils.InfoLogger.Printf("Listening on port %s", cfg.Server.Port)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			utils.ErrorLogger.Fatal(err)
		}
	}()

	<-ctx.Done()
	utils.InfoLogger.Println("Shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		utils.ErrorLogger.Printf("Shutdown: %v", err)
	}
}

// buildPublisher always feeds the websocket hub and adds the configured
// external stream.
func buildPublisher(cfg *config.Config, hub *kds.Hub) (events.Publisher, func(), error) {
	noop := func() {}
	switch cfg.Events.Driver {
	case "kafka":
		kp, err := events.NewKafkaPublisher(cfg.Events.Brokers, cfg.Events.Topic)
		if err != nil {
			return nil, noop, err
		}
		utils.InfoLogger.Printf("Publishing events to kafka topic %s", cfg.Events.Topic)
		return events.Fanout{hub, kp}, func() { _ = kp.Close() }, nil
	case "nats":
		np, err := events.NewNATSPublisher(cfg.Events.NATSURL, cfg.Events.Topic)
		if err != nil {
			return nil, noop, err
		}
		utils.InfoLogger.Printf("Publishing events to nats subject %s.*", cfg.Events.Topic)
		return events.Fanout{hub, np}, func() { _ = np.Close() }, nil
	case "none", "":
		return events.Fanout{hub}, noop, nil
	default:
		return nil, noop, fmt.Errorf("unknown events driver %q", cfg.Events.Driver)
	}
}
