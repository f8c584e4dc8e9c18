package shared

type ServerConfig struct {
	Sqlite     SqliteConfig     `mapstructure:"sqlite" validate:"required"`
	Vitalguard VitalguardConfig `mapstructure:"vitalguard" validate:"required"`
	Twilio     TwilioConfig     `mapstructure:"twilio"`
	Google     GoogleConfig     `mapstructure:"google"`
}

type SqliteConfig struct {
	PassPhrase string `mapstructure:"passPhrase" validate:"required"`
}

type VitalguardConfig struct {
	Cron      CronConfig      `mapstructure:"cron" validate:"required"`
	Listener  ListenerConfig  `mapstructure:"listener" validate:"required"`
	Retention RetentionConfig `mapstructure:"retention"`
}

type CronConfig struct {
	// TimeZone is used for every clock decision the engine makes,
	// including quiet-hours membership.
	TimeZone string `mapstructure:"timeZone" validate:"required"`
}

type ListenerConfig struct {
	Port int `mapstructure:"port" validate:"required"`
}

type RetentionConfig struct {
	// Resolved/false-alarm alerts older than MaxAgeInDays are purged
	// by the periodic cleanup job.
	MaxAgeInDays    int    `mapstructure:"maxAgeInDays"`
	CleanupSchedule string `mapstructure:"cleanupSchedule"`
}

type TwilioConfig struct {
	AccountSid          string `mapstructure:"accountSid"`
	AuthToken           string `mapstructure:"authToken"`
	MessagingServiceSid string `mapstructure:"messagingServiceSid"`
	FromNumber          string `mapstructure:"fromNumber"`
}

type GoogleConfig struct {
	ApplicationCredentials string        `mapstructure:"applicationCredentials"`
	Storage                StorageConfig `mapstructure:"storage"`
}

type StorageConfig struct {
	Bucket                    string      `mapstructure:"bucket" validate:"required_with=EnableSqliteBackupAndSync"`
	Prefix                    string      `mapstructure:"prefix"`
	SqliteBackupSchedule      string      `mapstructure:"sqliteBackupSchedule" validate:"required_with=EnableSqliteBackupAndSync"`
	EnableSqliteBackupAndSync interface{} `mapstructure:"enableSqliteBackupAndSync" validate:"omitempty,bool"`
}
