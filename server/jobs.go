package server

import (
	"time"

	"github.com/vitalguard/vitalguard/server/models"
	"github.com/vitalguard/vitalguard/server/work"
	"github.com/vitalguard/vitalguard/shared"
)

const (
	CLEANUP_OLD_ALERTS_HANDLER = "cleanupOldAlerts"
	BACKUP_SQLITE_DB_HANDLER   = "backupSqliteDb"

	// Fallbacks when the config leaves the schedules out
	DEFAULT_CLEANUP_SCHEDULE = "0 3 * * *"
	DEFAULT_BACKUP_SCHEDULE  = "0 4 * * *"
)

// cleanupOldAlerts purges resolved & false-alarm alerts past the retention
// window, across all users.
func cleanupOldAlerts(map[string]interface{}) error {
	cutoff := time.Now().AddDate(0, 0, -retentionDays())

	deleted, err := models.PurgeOldAlertsForAllUsers(cutoff)
	if err != nil {
		return err
	}

	logg.Infof("retention cleanup removed %v alert(s) older than %v day(s)", deleted, retentionDays())
	return nil
}

// backupSqliteDb uploads the encrypted db file to google cloud storage.
func backupSqliteDb(map[string]interface{}) error {
	dbFilePath, err := models.DbFilePath(dataDir)
	if err != nil {
		return err
	}

	err = gStorageClient.UploadFile(
		serverConfig.Google.Storage.Bucket,
		serverConfig.Google.Storage.Prefix,
		dbFilePath,
	)
	if err != nil {
		return err
	}

	logg.Infof("sqlite db backed up to gs://%v", serverConfig.Google.Storage.Bucket)
	return nil
}

func registerJobHandlers(wpa *work.WorkerPoolAdapter) {
	err := wpa.Register(CLEANUP_OLD_ALERTS_HANDLER, cleanupOldAlerts)
	if err != nil {
		logg.Error(err)
	}

	err = wpa.Register(BACKUP_SQLITE_DB_HANDLER, backupSqliteDb)
	if err != nil {
		logg.Error(err)
	}
}

func enqueueJobs(wpa *work.WorkerPoolAdapter, config *shared.ServerConfig, backupEnabled bool) {
	cleanupSchedule := config.Vitalguard.Retention.CleanupSchedule
	if cleanupSchedule == "" {
		cleanupSchedule = DEFAULT_CLEANUP_SCHEDULE
	}

	wpa.PeriodicallyPerform(cleanupSchedule, work.JobParams{
		Name:    CLEANUP_OLD_ALERTS_HANDLER,
		Handler: CLEANUP_OLD_ALERTS_HANDLER,
		Args:    map[string]interface{}{},
	})

	if !backupEnabled {
		return
	}

	backupSchedule := config.Google.Storage.SqliteBackupSchedule
	if backupSchedule == "" {
		backupSchedule = DEFAULT_BACKUP_SCHEDULE
	}

	wpa.PeriodicallyPerform(backupSchedule, work.JobParams{
		Name:    BACKUP_SQLITE_DB_HANDLER,
		Handler: BACKUP_SQLITE_DB_HANDLER,
		Args:    map[string]interface{}{},
	})
}
