package models

import (
	"errors"
	"fmt"
	"log"
	"os"
	"path/filepath"

	sqliteEncrypt "github.com/Daskott/gorm-sqlite-cipher"
	"github.com/vitalguard/vitalguard/server/logger"
	"github.com/vitalguard/vitalguard/utils"
	"gorm.io/gorm"
	gormLogger "gorm.io/gorm/logger"
)

const DB_NAME = "vitalguard.db"

var logg = logger.NewLogger()
var db *gorm.DB

// AutoMigrate opens the encrypted sqlite db, migrates the schema
// and inserts seed data(alert & job statuses).
func AutoMigrate(passPhrase string, dbRootDir string) error {
	dsn, err := dbDSN(passPhrase, dbRootDir)
	if err != nil {
		return fmt.Errorf("failed to set sqlite DSN: %v", err)
	}

	if err := openDB(dsn); err != nil {
		return err
	}

	return migrateAndSeed()
}

// InitializeTestDb sets up a shared in-memory db for package tests.
// Each call re-runs migrations against a fresh schema.
func InitializeTestDb() {
	err := openDB("file::memory:?cache=shared")
	if err != nil {
		log.Panicf("failed to open test database: %v", err)
	}

	db.Migrator().DropTable(
		&AlertStatus{}, &Alert{}, &AlertPreference{}, &EmergencyContact{},
		&EscalationEvent{}, &SensorReading{}, &JobStatus{}, &Job{},
	)

	if err := migrateAndSeed(); err != nil {
		log.Panicf("failed to migrate test database: %v", err)
	}
}

// DbDirectory returns(and creates if missing) the directory holding the sqlite file.
func DbDirectory(dbRootDir string) (string, error) {
	dbDir := filepath.Join(dbRootDir, "db")

	err := utils.CreateDirIfNotExist(dbDir)
	if err != nil {
		return "", err
	}

	return dbDir, nil
}

func DbFilePath(dbRootDir string) (string, error) {
	dbDir, err := DbDirectory(dbRootDir)
	if err != nil {
		return "", err
	}

	return filepath.Join(dbDir, DB_NAME), nil
}

// ---------------------------------------------------------------------------------//
// Helper functions
// --------------------------------------------------------------------------------//

func openDB(dsn string) error {
	var err error

	db, err = gorm.Open(sqliteEncrypt.Open(dsn), &gorm.Config{
		Logger: gormLogger.New(
			log.New(os.Stdout, "\r\n", log.LstdFlags),
			gormLogger.Config{
				LogLevel:                  gormLogger.Silent,
				IgnoreRecordNotFoundError: true,
				Colorful:                  false,
			},
		),
	})
	if err != nil {
		return fmt.Errorf("failed to connect database: %v", err)
	}

	return nil
}

func migrateAndSeed() error {
	err := db.AutoMigrate(
		&AlertStatus{}, &JobStatus{}, &Job{},
		&SensorReading{}, &Alert{}, &EscalationEvent{},
		&AlertPreference{}, &EmergencyContact{},
	)
	if err != nil {
		return err
	}

	populateDBWithSeedData()

	return nil
}

func populateDBWithSeedData() {
	if err := db.First(&AlertStatus{}).Error; errors.Is(err, gorm.ErrRecordNotFound) {
		logg.Info("Inserting seed data into 'AlertStatus'")
		db.Create(&[]AlertStatus{
			{Name: OPEN_ALERT}, {Name: ACKNOWLEDGED_ALERT},
			{Name: RESOLVED_ALERT}, {Name: FALSE_ALARM_ALERT},
		})
	}

	if err := db.First(&JobStatus{}).Error; errors.Is(err, gorm.ErrRecordNotFound) {
		logg.Info("Inserting seed data into 'JobStatus'")
		db.Create(&[]JobStatus{
			{Name: ENQUEUED_JOB}, {Name: IN_PROGRESS_JOB},
			{Name: SUCCESSFUL_JOB}, {Name: DEAD_JOB},
		})
	}
}

func dbDSN(passPhrase string, dbRootDir string) (string, error) {
	dbFilePath, err := DbFilePath(dbRootDir)
	if err != nil {
		return "", err
	}

	return fmt.Sprintf(
		"file:%v?_pragma_key=%s&_pragma_cipher_page_size=4096&_journal_mode=WAL",
		dbFilePath,
		passPhrase,
	), nil
}
