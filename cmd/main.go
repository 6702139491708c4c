package main

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	_ "uvchamber/docs"
	"uvchamber/internal/control"
	"uvchamber/internal/hal"
	"uvchamber/internal/hal/serialhw"
	"uvchamber/internal/hal/simhw"
	"uvchamber/internal/handlers"
	"uvchamber/internal/logger"
	"uvchamber/internal/metrics"
	"uvchamber/internal/repository"
	"uvchamber/internal/repository/db"
	"uvchamber/internal/server"
	"uvchamber/internal/service"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/viper"
)

// @title        UV Chamber API
// @version      1.0
// @description  Control and monitoring API for a 405nm UV curing chamber.

// @securityDefinitions.apikey BearerAuth
// @in                         header
// @name                       Authorization
// @description                Type "Bearer" followed by a space and the JWT.

// @BasePath /
func main() {
	// .env first so the log level and secrets can come from it
	_ = godotenv.Load()

	log := logger.Get(envOr("LOG_LEVEL", logger.InfoLevel))

	// load configs/config.yml
	if err := loadConfig(); err != nil {
		log.Fatalw("error reading config", "err", err)
	}

	// open DB
	database, err := openDB(log)
	if err != nil {
		log.Fatalw("failed to init sqlite", "err", err)
	}
	defer func() {
		if cerr := database.Close(); cerr != nil {
			log.Errorw("failed to close sqlite", "err", cerr)
		}
	}()

	repos := repository.NewRepository(database)

	// hardware: simulated chamber or the serial driver board
	hw, err := buildHAL(log)
	if err != nil {
		log.Fatalw("failed to init hardware", "err", err)
	}
	defer func() {
		if cerr := hw.close(); cerr != nil {
			log.Errorw("failed to close hardware", "err", cerr)
		}
	}()

	// The panel must be dark before the control loop takes over.
	if err := hw.pwm.Off(); err != nil {
		log.Fatalw("failed to force panel off at boot", "err", err)
	}

	met := metrics.New(prometheus.DefaultRegisterer)
	recorder := service.NewRecorder(repos.EventRepo, hw.ann, met, log)

	ctrl := control.NewController(control.Config{
		Clock:           control.NewWallClock(),
		Door:            hw.door,
		PWM:             hw.pwm,
		Log:             log,
		DebounceMs:      uint32(viper.GetInt("control.debounce_ms")),
		IrradianceMWcm2: viper.GetFloat64("chamber.irradiance_mw_cm2"),
		Sink:            recorder.Sink(),
	})

	key, err := signingKey()
	if err != nil {
		log.Fatalw("auth misconfigured", "err", err)
	}
	services := service.NewService(service.Deps{
		Controller: ctrl,
		Repos:      repos,
		Standard: service.StandardDefaults{
			DurationMs:   viper.GetInt64("standard.duration_ms"),
			IntensityPct: viper.GetFloat64("standard.intensity_pct"),
		},
		Auth: service.AuthConfig{
			SigningKey: key,
			TokenTTL:   viper.GetDuration("auth.token_ttl"),
		},
	})

	apiHandler := handlers.NewHandler(services, log)
	if hw.sim != nil {
		apiHandler.AttachSimDoor(hw.sim)
	}

	// context for background goroutines
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// start the control loop
	tick := time.Duration(viper.GetInt("control.tick_ms")) * time.Millisecond
	go service.NewRunner(ctrl, met).Run(ctx, tick)

	// start HTTP server
	srv := &server.Server{}
	runHTTPServer(srv, viper.GetString("port"), apiHandler, log)

	// graceful shutdown
	waitForShutdown(cancel, ctrl, srv, log)
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func loadConfig() error {
	viper.AddConfigPath("configs") // configs/config.yml
	viper.SetConfigName("config")

	viper.SetDefault("hal.kind", "sim")
	viper.SetDefault("control.tick_ms", 25)
	viper.SetDefault("control.debounce_ms", 50)
	viper.SetDefault("chamber.irradiance_mw_cm2", 100)
	viper.SetDefault("standard.duration_ms", 60_000)
	viper.SetDefault("standard.intensity_pct", 50)
	viper.SetDefault("auth.token_ttl", "1h")

	return viper.ReadInConfig()
}

// signingKey resolves the JWT secret: environment first, config fallback.
// There is no built-in default; a missing key is a deployment error.
func signingKey() (string, error) {
	if key := os.Getenv("UVCHAMBER_SIGNING_KEY"); key != "" {
		return key, nil
	}
	if key := viper.GetString("auth.signing_key"); key != "" {
		return key, nil
	}
	return "", fmt.Errorf("no signing key: set UVCHAMBER_SIGNING_KEY or auth.signing_key")
}

// openDB initializes the SQLite database using configuration.
func openDB(log *logger.Logger) (*sql.DB, error) {
	dbPath := viper.GetString("db.path")
	if dbPath == "" {
		log.Infow("db.path not set in config; using default file", "default", "chamber.db")
		dbPath = "chamber.db"
	}
	return db.InitDB(dbPath)
}

// hardware bundles the HAL handles main wires into the controller. sim is
// non-nil only for the simulated chamber, which unlocks the dev endpoint.
type hardware struct {
	door  hal.DoorSensor
	pwm   hal.PWMOutput
	ann   hal.Annunciator
	sim   *simhw.Chamber
	close func() error
}

// buildHAL selects the hardware backing from hal.kind: "sim" runs the
// in-memory chamber, "serial" opens the line to the driver board.
func buildHAL(log *logger.Logger) (hardware, error) {
	var hw hardware
	switch kind := viper.GetString("hal.kind"); kind {
	case "sim":
		ch := simhw.New(simhw.Config{
			AmbientC:  float32(viper.GetFloat64("sim.ambient_c")),
			HeatRiseC: float32(viper.GetFloat64("sim.heat_rise_c")),
			TauS:      float32(viper.GetFloat64("sim.tau_s")),
			StepMs:    viper.GetInt("sim.step_ms"),
		})
		log.Infow("using simulated chamber")
		hw = hardware{door: ch, pwm: ch, ann: ch, sim: ch, close: ch.Close}
	case "serial":
		link, err := serialhw.Open(serialhw.Config{
			Port:       viper.GetString("serial.port"),
			BaudRate:   viper.GetInt("serial.baud"),
			StaleAfter: viper.GetDuration("serial.stale_after"),
		}, log.Named("serial"))
		if err != nil {
			return hardware{}, err
		}
		log.Infow("using serial driver board", "port", viper.GetString("serial.port"))
		hw = hardware{door: link, pwm: link, ann: link, close: link.Close}
	default:
		return hardware{}, fmt.Errorf("unknown hal.kind %q (want sim or serial)", kind)
	}

	if viper.GetBool("chamber.buzzer_disabled") {
		hw.ann = hal.SilentAnnunciator{}
	}
	return hw, nil
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

// waitForShutdown listens for termination signals and performs graceful shutdown.
func waitForShutdown(cancel context.CancelFunc, ctrl *control.Controller, srv *server.Server, log *logger.Logger) {
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Infow("shutting down server...")

	// stop background goroutines
	cancel()

	// Abort any active run now so the panel is dark before the hardware
	// handle closes. Refused harmlessly when nothing runs.
	_ = ctrl.Stop()

	// allow in-flight requests to complete
	ctx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(ctx); err != nil {
		log.Errorw("server forced to shutdown", "err", err)
	}
}
