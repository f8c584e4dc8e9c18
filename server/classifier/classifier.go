// Package classifier maps a vitals reading onto severity tiers using the
// medical thresholds the monitoring devices are calibrated against.
package classifier

// Severity tiers, ordered normal < warning < critical.
const (
	NORMAL_SEVERITY   = "normal"
	WARNING_SEVERITY  = "warning"
	CRITICAL_SEVERITY = "critical"

	// EMERGENCY_SEVERITY is an alias tier used by fall alerts; it ranks
	// with critical everywhere severities are compared.
	EMERGENCY_SEVERITY = "emergency"
)

const (
	TEMPERATURE_METRIC = "temperature"
	HEART_RATE_METRIC  = "heart_rate"
	SPO2_METRIC        = "sp_o2"
)

var severityRank = map[string]int{
	NORMAL_SEVERITY:    0,
	WARNING_SEVERITY:   1,
	CRITICAL_SEVERITY:  2,
	EMERGENCY_SEVERITY: 2,
}

// Reading is the vitals snapshot handed in by telemetry ingestion.
type Reading struct {
	Temperature float64
	HeartRate   float64
	SpO2        float64
}

// Verdict is the per-metric severity breakdown plus the overall tier,
// which is the maximum across metrics.
type Verdict struct {
	Overall     string
	Temperature string
	HeartRate   string
	SpO2        string
}

// Classify is pure & total for all finite inputs.
func Classify(reading Reading) Verdict {
	verdict := Verdict{
		Temperature: classifyTemperature(reading.Temperature),
		HeartRate:   classifyHeartRate(reading.HeartRate),
		SpO2:        classifySpO2(reading.SpO2),
	}

	verdict.Overall = MaxSeverity(verdict.Temperature, verdict.HeartRate, verdict.SpO2)

	return verdict
}

// WarrantsAlert reports whether the verdict is anything above normal.
func (v Verdict) WarrantsAlert() bool {
	return v.Overall != NORMAL_SEVERITY
}

// Breakdown returns the per-metric severities keyed by metric name.
func (v Verdict) Breakdown() map[string]string {
	return map[string]string{
		TEMPERATURE_METRIC: v.Temperature,
		HEART_RATE_METRIC:  v.HeartRate,
		SPO2_METRIC:        v.SpO2,
	}
}

// AtLeastCritical reports whether a severity ranks with critical/emergency.
func AtLeastCritical(severity string) bool {
	return severityRank[severity] >= severityRank[CRITICAL_SEVERITY]
}

// MaxSeverity returns the highest tier among the given severities.
// Unknown severities rank as normal.
func MaxSeverity(severities ...string) string {
	max := NORMAL_SEVERITY
	for _, severity := range severities {
		if severityRank[severity] > severityRank[max] {
			max = severity
		}
	}

	return max
}

// ---------------------------------------------------------------------------------//
// Helper functions
// --------------------------------------------------------------------------------//

// Thresholds are strict comparisons: 39.0 exactly is warning territory for
// temperature, not critical; 38.5 exactly is normal.
func classifyTemperature(temp float64) string {
	switch {
	case temp > 39.0 || temp < 35.0:
		return CRITICAL_SEVERITY
	case temp > 38.5 || temp < 35.5:
		return WARNING_SEVERITY
	}

	return NORMAL_SEVERITY
}

func classifyHeartRate(bpm float64) string {
	switch {
	case bpm > 130 || bpm < 50:
		return CRITICAL_SEVERITY
	case bpm > 120 || bpm < 60:
		return WARNING_SEVERITY
	}

	return NORMAL_SEVERITY
}

func classifySpO2(spO2 float64) string {
	switch {
	case spO2 < 88:
		return CRITICAL_SEVERITY
	case spO2 < 92:
		return WARNING_SEVERITY
	}

	return NORMAL_SEVERITY
}
