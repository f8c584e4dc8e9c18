package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator"
	"github.com/gorilla/mux"
	"github.com/spf13/viper"
	"github.com/vitalguard/vitalguard/server/models"
	"github.com/vitalguard/vitalguard/server/work"
	"github.com/vitalguard/vitalguard/shared"
	"github.com/vitalguard/vitalguard/utils"
	"gorm.io/gorm"
)

// ---------------------------------------------------------------------------------//
// Handler Helper functions
// --------------------------------------------------------------------------------//

func writeResponse(rw http.ResponseWriter, payLoad ResponsePayload, statusCode int) {
	if statusCode >= http.StatusInternalServerError {
		logg.Error(payLoad.Errors)
	} else if statusCode >= http.StatusBadRequest {
		logg.Info(payLoad.Errors)
	}

	rw.WriteHeader(statusCode)
	json.NewEncoder(rw).Encode(payLoad)
}

func findAlertsByOrigin(rw http.ResponseWriter, r *http.Request, origins ...string) {
	vars := mux.Vars(r)
	limit := queryInt(r, "limit", 0)

	alerts, err := models.FetchAlerts(vars["uid"], limit, origins...)
	if err != nil {
		writeResponse(rw, ResponsePayload{Errors: []string{err.Error()}}, http.StatusInternalServerError)
		return
	}

	json.NewEncoder(rw).Encode(ResponsePayload{Success: true, Data: alerts})
}

func transitionAlert(rw http.ResponseWriter, r *http.Request, transition func(uint) (*models.Alert, error)) {
	vars := mux.Vars(r)

	alertID, err := strconv.ParseUint(vars["id"], 10, 64)
	if err != nil {
		writeResponse(rw, ResponsePayload{Errors: []string{"alert id must be a number"}}, http.StatusBadRequest)
		return
	}

	alert, err := transition(uint(alertID))
	if errors.Is(err, gorm.ErrRecordNotFound) {
		writeResponse(rw, ResponsePayload{Errors: []string{"no alert found"}}, http.StatusNotFound)
		return
	}
	if err != nil {
		writeResponse(rw, ResponsePayload{Errors: []string{err.Error()}}, http.StatusInternalServerError)
		return
	}

	json.NewEncoder(rw).Encode(ResponsePayload{Success: true, Data: alert})
}

func queryInt(r *http.Request, name string, defaultValue int) int {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return defaultValue
	}

	value, err := strconv.Atoi(raw)
	if err != nil {
		return defaultValue
	}

	return value
}

func retentionDays() int {
	if serverConfig == nil || serverConfig.Vitalguard.Retention.MaxAgeInDays <= 0 {
		return DEFAULT_RETENTION_DAYS
	}

	return serverConfig.Vitalguard.Retention.MaxAgeInDays
}

func RegisterValidators(validate *validator.Validate) error {
	return validate.RegisterValidation("time_stamp", func(fl validator.FieldLevel) bool {
		timeSegments := strings.Split(fl.Field().String(), ":")
		if len(timeSegments) < 2 {
			return false
		}

		hour, err := strconv.Atoi(timeSegments[0])
		if err != nil {
			return false
		}

		minute, err := strconv.Atoi(timeSegments[1])
		if err != nil {
			return false
		}

		err = validate.Var(hour, "min=0,max=23")
		if err != nil {
			return false
		}

		err = validate.Var(minute, "min=0,max=59")
		return err == nil
	})
}

// ---------------------------------------------------------------------------------//
// Server Helper functions
// --------------------------------------------------------------------------------//

func unmarshalledConfig(config *viper.Viper) *shared.ServerConfig {
	serverConfig := shared.ServerConfig{}

	fatalOnError(config.Unmarshal(&serverConfig))

	err := validate.Struct(serverConfig)
	if err != nil {
		fatalOnError(fmt.Errorf("invalid server config: %v", err))
	}

	return &serverConfig
}

func sqliteBackupEnabled(config *shared.ServerConfig) bool {
	enabled, ok := config.Google.Storage.EnableSqliteBackupAndSync.(bool)
	return ok && enabled
}

func serve(server *http.Server) {
	logg.Infof("Vitalguard server is listening on port:%v", server.Addr)
	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logg.Fatal(err)
	}
}

func cleanup(workerPool *work.WorkerPoolAdapter, server *http.Server, backupDb bool) {
	// Stop pending escalations & queued work before the db goes away
	alertService.Stop()
	workerPool.Stop()

	if backupDb {
		if err := backupSqliteDb(nil); err != nil {
			logg.Error(err)
		}
	}

	ctxShutDown, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := server.Shutdown(ctxShutDown); err != nil {
		logg.Fatalf("Vitalguard server shutdown failed:%+s", err)
	}

	logg.Infof("Vitalguard server stopped properly")
}

// configDirectory retrieves the directory vitalguard keeps its data in,
// or logs an error message and then calls os.Exit if it's unable to.
func configDirectory(devMode bool) string {
	// Use 'vitalguard' folder in home directory for prod
	configFolderName := "vitalguard"
	rootDir, err := os.UserHomeDir()
	fatalOnError(err)

	// Use 'dev' folder in current directory for dev mode
	if devMode {
		configFolderName = "dev"
		rootDir, err = os.Getwd()
		fatalOnError(err)
	}

	configDir := filepath.Join(rootDir, configFolderName)

	err = utils.CreateDirIfNotExist(configDir)
	fatalOnError(err)

	return configDir
}

func fatalOnError(err error) {
	if err != nil {
		logg.Fatal(err)
	}
}
