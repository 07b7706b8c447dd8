package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/DavidGamba/go-getoptions"
	"github.com/cyverse-de/configurate"
	"github.com/cyverse-de/go-mod/otelutils"
	"github.com/cyverse-de/project-notifications/api"
	"github.com/cyverse-de/project-notifications/common"
	"github.com/cyverse-de/project-notifications/db"
	"github.com/cyverse-de/project-notifications/digest"
	"github.com/cyverse-de/project-notifications/dispatcher"
	"github.com/cyverse-de/project-notifications/email"
	"github.com/cyverse-de/project-notifications/handlers"
	"github.com/cyverse-de/project-notifications/handlerset"
	"github.com/cyverse-de/project-notifications/model"
	"github.com/cyverse-de/project-notifications/preferences"
	"github.com/cyverse-de/project-notifications/registry"
	"github.com/cyverse-de/project-notifications/reminders"
	"github.com/cyverse-de/project-notifications/schedule"
	"github.com/gin-gonic/gin"

	_ "github.com/lib/pq"
)

var log = common.Log

// shutdownTimeout bounds each step of a graceful shutdown.
const shutdownTimeout = 30 * time.Second

// commandLineOptionValues represents the values of the command-line options that were passed on the command line when
// this service was invoked.
type commandLineOptionValues struct {
	Config string
}

func parseCommandLine() *commandLineOptionValues {
	optionValues := &commandLineOptionValues{}
	opt := getoptions.New()

	// Default option values.
	defaultConfigPath := "/etc/iplant/de/project-notifications.yml"

	// Define the command-line options.
	opt.Bool("help", false, opt.Alias("h", "?"))
	opt.StringVar(&optionValues.Config, "config", defaultConfigPath,
		opt.Alias("c"),
		opt.Description("the path to the configuration file"))

	// Parse the command line, handling requests for help and usage errors.
	_, err := opt.Parse(os.Args[1:])
	if opt.Called("help") {
		fmt.Fprint(os.Stderr, opt.Help())
		os.Exit(0)
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %s\n\n", err)
		fmt.Fprint(os.Stderr, opt.Help(getoptions.HelpSynopsis))
		os.Exit(1)
	}

	return optionValues
}

// addJob registers a scheduled job, exiting if the schedule is invalid.
func addJob(scheduler *schedule.Scheduler, name, spec string, job schedule.Job) {
	if err := scheduler.AddJob(name, spec, job); err != nil {
		log.Fatal(err)
	}
}

func main() {
	// Parse the command-line.
	optionValues := parseCommandLine()

	// Read in the configuration file.
	cfg, err := configurate.InitDefaults(optionValues.Config, defaultConfig)
	if err != nil {
		log.Fatal(err)
	}

	// Initialize logging.
	if err = common.SetLogLevel(cfg.GetString("log.level")); err != nil {
		log.Fatal(err)
	}
	gin.SetMode(gin.ReleaseMode)

	// Initialize tracing.
	tracerCtx, cancel := context.WithCancel(context.Background())
	defer cancel()
	shutdownTracer := otelutils.TracerProviderFromEnv(tracerCtx, common.ServiceName, func(e error) { log.Fatal(e) })
	defer shutdownTracer()

	// Validate the settings that have no usable defaults.
	transport, err := emailTransport(cfg)
	if err != nil {
		log.Fatal(err)
	}
	httpSettings, err := serverSettings(cfg)
	if err != nil {
		log.Fatal(err)
	}

	// Establish the database connection.
	sqlDB, err := db.InitDatabase("postgres", cfg.GetString("db.uri"))
	if err != nil {
		log.Fatal(err)
	}
	dbClient := db.NewClient(sqlDB)

	// The connection registry starts out empty.
	connections := registry.New(dbClient, registryBufferSize(cfg))

	// Connect to the AMQP broker if ingestion or e-mail delivery needs it.
	var amqpHandlers *handlerset.HandlerSet
	var publisher email.Publisher
	if cfg.GetBool("amqp.enabled") || transport == transportAMQP {
		amqpHandlers, err = handlerset.New(amqpSettings(cfg))
		if err != nil {
			log.Fatal(err)
		}
		publisher = amqpHandlers
	}

	// Set up e-mail delivery.
	sender, err := emailSender(cfg, transport, publisher)
	if err != nil {
		log.Fatal(err)
	}
	mailer := email.NewAsync(sender, durationOr(cfg, "email.send_timeout", email.DefaultSendTimeout))

	// Create the notification dispatcher.
	gate := preferences.NewGate(dbClient)
	notifications, err := dispatcher.New(dbClient, connections, gate, mailer, cfg.GetString("links.base_url"))
	if err != nil {
		log.Fatal(err)
	}

	// Register the scheduled jobs.
	scheduler, err := schedule.New(cfg.GetString("schedule.timezone"), common.SystemClock)
	if err != nil {
		log.Fatal(err)
	}
	aggregator := digest.NewAggregator(dbClient, gate, mailer)
	checker := reminders.NewChecker(dbClient, notifications)

	addJob(scheduler, "daily-digest", cfg.GetString("schedule.daily_digest"), func(ctx context.Context, now time.Time) {
		if _, err := aggregator.Run(ctx, model.Daily, now); err != nil {
			log.WithError(err).Error("daily digest failed")
		}
	})
	addJob(scheduler, "weekly-digest", cfg.GetString("schedule.weekly_digest"), func(ctx context.Context, now time.Time) {
		if _, err := aggregator.Run(ctx, model.Weekly, now); err != nil {
			log.WithError(err).Error("weekly digest failed")
		}
	})
	addJob(scheduler, "due-date-check", cfg.GetString("schedule.due_date_check"), func(ctx context.Context, now time.Time) {
		if _, err := checker.Run(ctx, now); err != nil {
			log.WithError(err).Error("due-date check failed")
		}
	})
	scheduler.Start()

	// Start consuming producer events.
	if amqpHandlers != nil && cfg.GetBool("amqp.enabled") {
		amqpHandlers.AddHandlers(handlers.InitMessageHandlers(notifications, connections))
		amqpHandlers.Listen()
	}

	// Start the HTTP server. Closing the registry ends every open event stream so that the server can drain.
	server := &http.Server{
		Addr:              cfg.GetString("http.listen"),
		Handler:           api.New(httpSettings, notifications, gate, connections, dbClient).Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	server.RegisterOnShutdown(connections.Close)

	serverErrors := make(chan error, 1)
	go func() {
		log.Infof("listening on %s", server.Addr)
		serverErrors <- server.ListenAndServe()
	}()

	// Wait for a signal or a server failure.
	signals := make(chan os.Signal, 1)
	signal.Notify(signals, syscall.SIGINT, syscall.SIGTERM)
	select {
	case sig := <-signals:
		log.Infof("received %s; shutting down", sig)
	case err = <-serverErrors:
		log.WithError(err).Error("the HTTP server stopped unexpectedly")
	}

	// Shut everything down in order.
	ctx, cancelShutdown := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancelShutdown()

	if err = server.Shutdown(ctx); err != nil {
		log.WithError(err).Error("unable to shut down the HTTP server cleanly")
	}
	if err = scheduler.Stop(ctx); err != nil {
		log.WithError(err).Error("unable to stop the scheduler cleanly")
	}
	if amqpHandlers != nil {
		amqpHandlers.Close()
	}
	connections.Close()
	mailer.Wait()
	if err = dbClient.Close(); err != nil {
		log.WithError(err).Error("unable to close the database connection")
	}

	log.Info("shutdown complete")
}
