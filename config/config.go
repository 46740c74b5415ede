package config

import (
	"fmt"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
)

// DBConfig beschreibt eine PostgreSQL-Verbindung.
type DBConfig struct {
	Host     string `envconfig:"HOST" required:"true"`
	Port     int    `envconfig:"PORT" default:"5432"`
	User     string `envconfig:"USER" required:"true"`
	Password string `envconfig:"PASSWORD" required:"true"`
	Name     string `envconfig:"NAME" required:"true"`
	SSLMode  string `envconfig:"SSLMODE" default:"disable"`
}

// DSN gibt den Data Source Name für die PostgreSQL-Verbindung zurück.
func (d DBConfig) DSN() string {
	return fmt.Sprintf("host=%s user=%s password=%s dbname=%s port=%d sslmode=%s",
		d.Host, d.User, d.Password, d.Name, d.Port, d.SSLMode)
}

// Config enthält alle Konfigurationsparameter des Review-Service.
type Config struct {
	DB DBConfig `envconfig:"REVIEW_DB"`

	HTTPPort string `envconfig:"HTTP_PORT" default:"4242"`
	// Leerer Key deaktiviert die API-Key-Prüfung.
	APISecretKey string `envconfig:"API_SECRET_KEY"`
	// Leeres Secret deaktiviert die Bearer-Prüfung samt Deny-List.
	JWTSecret string `envconfig:"JWT_SECRET"`
	// Ohne Redis wird die Deny-List prozesslokal gehalten.
	RedisURL string `envconfig:"REDIS_URL"`

	SearchServiceURL string        `envconfig:"SEARCH_SERVICE_URL" default:"http://localhost:4343"`
	RemoteTimeout    time.Duration `envconfig:"REMOTE_TIMEOUT" default:"10s"`

	SearchJobSchedule   string `envconfig:"SEARCH_JOB_SCHEDULE" default:"@every 30s"`
	SearchJobMaxRetries int    `envconfig:"SEARCH_JOB_MAX_RETRIES" default:"5"`
	SearchJobBatchSize  int    `envconfig:"SEARCH_JOB_BATCH_SIZE" default:"10"`

	S3 S3Config `envconfig:"S3"`
}

// S3Config hält die Zugangsdaten für den Report-Export. Ein leerer Bucket deaktiviert den Export.
type S3Config struct {
	Key    string `envconfig:"KEY"`
	Secret string `envconfig:"SECRET"`
	URL    string `envconfig:"URL"`
	Region string `envconfig:"REGION" default:"eu-central-1"`
	Bucket string `envconfig:"BUCKET"`
}

// Enabled meldet, ob ein Export-Ziel konfiguriert ist.
func (s S3Config) Enabled() bool {
	return s.Bucket != "" && s.URL != ""
}

// SearchConfig enthält die Konfiguration des Search-Service.
type SearchConfig struct {
	DB DBConfig `envconfig:"SEARCH_DB"`

	HTTPPort         string        `envconfig:"SEARCH_HTTP_PORT" default:"4343"`
	APISecretKey     string        `envconfig:"API_SECRET_KEY"`
	ReviewServiceURL string        `envconfig:"REVIEW_SERVICE_URL" default:"http://localhost:4242"`
	RemoteTimeout    time.Duration `envconfig:"REMOTE_TIMEOUT" default:"10s"`

	// Leere URL nutzt den öffentlichen Europe PMC Endpunkt.
	EuropePMCURL  string        `envconfig:"EUROPEPMC_URL"`
	ImportTimeout time.Duration `envconfig:"IMPORT_TIMEOUT" default:"60s"`
	ImportLimit   int           `envconfig:"IMPORT_LIMIT" default:"25"`
}

// BackupConfig enthält die Konfiguration des Backup-Jobs.
type BackupConfig struct {
	Databases []string `envconfig:"BACKUP_DATABASES" required:"true"`
	PGHost    string   `envconfig:"POSTGRES_HOST" required:"true"`
	PGUser    string   `envconfig:"POSTGRES_USER" required:"true"`
	PGPass    string   `envconfig:"POSTGRES_PASSWORD" required:"true"`

	Bucket      string `envconfig:"BACKUP_S3_BUCKET" required:"true"`
	Endpoint    string `envconfig:"BACKUP_S3_ENDPOINT" required:"true"`
	AccessKey   string `envconfig:"BACKUP_S3_ACCESS_KEY" required:"true"`
	SecretKey   string `envconfig:"BACKUP_S3_SECRET_KEY" required:"true"`
	Region      string `envconfig:"BACKUP_S3_REGION" required:"true"`
	KeepBackups int    `envconfig:"KEEP_BACKUPS" default:"4"`
}

// Load lädt die Konfiguration des Review-Service aus den Umgebungsvariablen.
func Load() (*Config, error) {
	_ = godotenv.Load()
	var c Config
	err := envconfig.Process("", &c)
	return &c, err
}

// LoadSearch lädt die Konfiguration des Search-Service.
func LoadSearch() (*SearchConfig, error) {
	_ = godotenv.Load()
	var c SearchConfig
	err := envconfig.Process("", &c)
	return &c, err
}

// LoadBackup lädt die Konfiguration des Backup-Jobs.
func LoadBackup() (*BackupConfig, error) {
	_ = godotenv.Load()
	var c BackupConfig
	err := envconfig.Process("", &c)
	return &c, err
}
