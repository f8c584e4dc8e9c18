package models

import "time"

// SensorReading is one telemetry snapshot from a monitoring device.
// Immutable once written.
type SensorReading struct {
	BaseModel
	UserID         string    `json:"user_id" gorm:"not null;index"`
	UserEmail      string    `json:"user_email"`
	DeviceType     string    `json:"device_type" gorm:"default:'Arduino_R4_WiFi_ESP32S3'"`
	MonitoringRole string    `json:"monitoring_role" gorm:"default:'patient'"`
	Temperature    float64   `json:"temperature"`
	Humidity       float64   `json:"humidity"`
	HeartRate      float64   `json:"heart_rate"`
	SpO2           float64   `json:"sp_o2"`
	RecordedAt     time.Time `json:"recorded_at" gorm:"not null;index"`
}

// VitalAverages holds the rolling means a dashboard displays.
type VitalAverages struct {
	Temperature float64 `json:"temperature"`
	Humidity    float64 `json:"humidity"`
	HeartRate   float64 `json:"heart_rate"`
	SpO2        float64 `json:"sp_o2"`
}

func CreateSensorReading(reading *SensorReading) error {
	return db.Create(reading).Error
}

// FetchSensorReadings returns the newest readings for a user. A non-nil
// 'since' restricts results to readings recorded after it.
func FetchSensorReadings(userID string, limit int, since *time.Time) ([]SensorReading, error) {
	readings := []SensorReading{}

	query := db.Scopes(forUser(userID), withLimit(limit)).Order("recorded_at DESC")
	if since != nil {
		query = query.Where("recorded_at >= ?", *since)
	}

	err := query.Find(&readings).Error
	if err != nil {
		return nil, err
	}

	return readings, nil
}

func LatestSensorReading(userID string) (*SensorReading, error) {
	reading := SensorReading{}
	err := db.Scopes(forUser(userID)).Order("recorded_at DESC").First(&reading).Error
	if err != nil {
		return nil, err
	}

	return &reading, nil
}

func CountSensorReadings(userID string) (int64, error) {
	var count int64
	err := db.Model(&SensorReading{}).Scopes(forUser(userID)).Count(&count).Error
	return count, err
}

// SensorReadingAverages computes per-metric means over readings recorded
// since the given time. Returns the sample count alongside the averages.
func SensorReadingAverages(userID string, since time.Time) (*VitalAverages, int64, error) {
	readings := []SensorReading{}

	err := db.Scopes(forUser(userID)).Where("recorded_at >= ?", since).Find(&readings).Error
	if err != nil {
		return nil, 0, err
	}

	averages := VitalAverages{}
	if len(readings) == 0 {
		return &averages, 0, nil
	}

	for _, reading := range readings {
		averages.Temperature += reading.Temperature
		averages.Humidity += reading.Humidity
		averages.HeartRate += reading.HeartRate
		averages.SpO2 += reading.SpO2
	}

	n := float64(len(readings))
	averages.Temperature /= n
	averages.Humidity /= n
	averages.HeartRate /= n
	averages.SpO2 /= n

	return &averages, int64(len(readings)), nil
}
