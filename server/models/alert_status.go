package models

const (
	OPEN_ALERT         = "open"
	ACKNOWLEDGED_ALERT = "acknowledged"
	RESOLVED_ALERT     = "resolved"
	FALSE_ALARM_ALERT  = "false_alarm"
)

// TerminalAlertStatusMap holds the statuses no further transition is legal from.
var TerminalAlertStatusMap = map[string]bool{
	ACKNOWLEDGED_ALERT: true,
	RESOLVED_ALERT:     true,
	FALSE_ALARM_ALERT:  true,
}

type AlertStatus struct {
	BaseModel
	Name   string  `json:"name"`
	Alerts []Alert `json:"-" gorm:"constraint:OnUpdate:CASCADE,OnDelete:SET NULL;"`
}

func FindAlertStatus(name string) (*AlertStatus, error) {
	alertStatus := AlertStatus{}
	err := db.Select("id", "name").First(&alertStatus, "name = ?", name).Error
	if err != nil {
		return nil, err
	}

	return &alertStatus, nil
}
