package server

import (
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-playground/validator"
	"github.com/gorilla/mux"
	"github.com/spf13/viper"
	"github.com/vitalguard/vitalguard/server/alerting"
	"github.com/vitalguard/vitalguard/server/gstorage"
	"github.com/vitalguard/vitalguard/server/logger"
	"github.com/vitalguard/vitalguard/server/models"
	"github.com/vitalguard/vitalguard/server/notifier"
	"github.com/vitalguard/vitalguard/server/prefgate"
	"github.com/vitalguard/vitalguard/server/twilio"
	"github.com/vitalguard/vitalguard/server/work"
	"github.com/vitalguard/vitalguard/shared"
)

var (
	logg     = logger.NewLogger()
	validate = validator.New()

	serverConfig   *shared.ServerConfig
	alertService   *alerting.Service
	gStorageClient *gstorage.GStorage
	dataDir        string
)

func init() {
	fatalOnError(RegisterValidators(validate))
}

// Start brings up the whole engine: encrypted sqlite store, worker pool,
// alert service & the HTTP API. Blocks until SIGINT/SIGTERM.
func Start(config *viper.Viper, devMode bool) {
	serverConfig = unmarshalledConfig(config)

	dataDir = configDirectory(devMode)
	fatalOnError(models.AutoMigrate(serverConfig.Sqlite.PassPhrase, dataDir))

	location, err := time.LoadLocation(serverConfig.Vitalguard.Cron.TimeZone)
	if err != nil {
		logg.Warnf("unknown timezone %q, using UTC: %v", serverConfig.Vitalguard.Cron.TimeZone, err)
		location = time.UTC
	}

	workerPool := work.NewWorkerAdapter(serverConfig.Vitalguard.Cron.TimeZone)
	smsClient := twilio.NewClient(serverConfig.Twilio, devMode)
	alertService = alerting.NewService(
		prefgate.NewGate(location),
		notifier.NewChannelNotifier(smsClient),
		workerPool,
	)

	backupEnabled := sqliteBackupEnabled(serverConfig)
	if backupEnabled {
		gStorageClient, err = gstorage.NewGStorage(serverConfig.Google.ApplicationCredentials)
		fatalOnError(err)
	}

	if err := alertService.RearmOpenAlerts(); err != nil {
		logg.Error(err)
	}

	registerJobHandlers(workerPool)
	enqueueJobs(workerPool, serverConfig, backupEnabled)
	fatalOnError(workerPool.Start())

	httpServer := &http.Server{
		Addr:    fmt.Sprintf(":%v", serverConfig.Vitalguard.Listener.Port),
		Handler: newRouter(),
	}
	go serve(httpServer)

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	<-sigChan

	cleanup(workerPool, httpServer, backupEnabled)
}

func newRouter() *mux.Router {
	router := mux.NewRouter()
	router.Use(loggingMiddleware)

	router.HandleFunc("/", healthCheckHandler).Methods("GET")

	api := router.PathPrefix("/api").Subrouter()
	api.Use(jsonContentTypeMiddleware)

	api.HandleFunc("/sensor-data", createSensorDataHandler).Methods("POST")
	api.HandleFunc("/sensor-data/{uid}", findSensorDataHandler).Methods("GET")

	api.HandleFunc("/emergency-alerts", createEmergencyAlertHandler).Methods("POST")
	api.HandleFunc("/emergency-alerts/{uid}", findEmergencyAlertsHandler).Methods("GET")
	api.HandleFunc("/emergency-alerts/{id}/acknowledge", acknowledgeAlertHandler).Methods("PATCH")
	api.HandleFunc("/emergency-alerts/{id}/resolve", resolveAlertHandler).Methods("PATCH")

	api.HandleFunc("/fall-detection", createFallAlertHandler).Methods("POST")
	api.HandleFunc("/fall-detection/{uid}", findFallAlertsHandler).Methods("GET")
	api.HandleFunc("/fall-detection/{id}/false-alarm", falseAlarmAlertHandler).Methods("PATCH")
	api.HandleFunc("/fall-detection/{id}/resolve", resolveAlertHandler).Methods("PATCH")

	api.HandleFunc("/all-alerts/{uid}", findAllAlertsHandler).Methods("GET")
	api.HandleFunc("/stats/{uid}", statsHandler).Methods("GET")
	api.HandleFunc("/unresolved-alerts/{uid}", unresolvedAlertsHandler).Methods("GET")
	api.HandleFunc("/cleanup-alerts/{uid}", cleanupAlertsHandler).Methods("DELETE")

	api.HandleFunc("/alert-preferences/{uid}", findAlertPreferencesHandler).Methods("GET")
	api.HandleFunc("/alert-preferences/{uid}", updateAlertPreferencesHandler).Methods("POST")

	api.HandleFunc("/emergency-contacts/{uid}", findEmergencyContactsHandler).Methods("GET")
	api.HandleFunc("/emergency-contacts/{uid}", createEmergencyContactHandler).Methods("POST")
	api.HandleFunc("/emergency-contacts/{uid}/{index}", deleteEmergencyContactHandler).Methods("DELETE")

	api.HandleFunc("/test-notification/{uid}", testNotificationHandler).Methods("POST")
	api.HandleFunc("/notification-summary/{uid}", notificationSummaryHandler).Methods("GET")

	return router
}
