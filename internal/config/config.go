package config

import (
	"github.com/spf13/viper"
)

// Config is populated from environment variables; in a cluster deployment the
// DB connection, AWS settings and queue URLs come in through the pod env.
type Config struct {
	DBHost         string `mapstructure:"DB_HOST"`
	DBPort         string `mapstructure:"DB_PORT"`
	DBUser         string `mapstructure:"DB_USER"`
	DBPassword     string `mapstructure:"DB_PASSWORD"`
	DBName         string `mapstructure:"DB_NAME"`
	ServerPort     string `mapstructure:"SERVER_PORT"`
	AWSRegion      string `mapstructure:"AWS_REGION"`
	AWSEndpoint    string `mapstructure:"AWS_ENDPOINT"`
	NotifyQueueURL string `mapstructure:"NOTIFY_SQS_QUEUE_URL"`
	SyncQueueURL   string `mapstructure:"SYNC_SQS_QUEUE_URL"`
	IdentityAPIURL string `mapstructure:"IDENTITY_API_URL"`
	OTLPEndpoint   string `mapstructure:"OTLP_ENDPOINT"`
	IsLocalDev     bool   `mapstructure:"LOCAL_DEV"`
}

// LoadConfig reads configuration from environment variables.
func LoadConfig() (config Config, err error) {
	viper.SetDefault("DB_HOST", "db")
	viper.SetDefault("DB_PORT", "5432")
	viper.SetDefault("DB_USER", "user")
	viper.SetDefault("DB_PASSWORD", "password")
	viper.SetDefault("DB_NAME", "attendance_db")
	viper.SetDefault("SERVER_PORT", "8080")
	viper.SetDefault("AWS_REGION", "us-east-1")
	viper.SetDefault("AWS_ENDPOINT", "http://localstack:4566")
	viper.SetDefault("NOTIFY_SQS_QUEUE_URL", "http://localstack:4566/000000000000/attendance-notify-queue")
	viper.SetDefault("SYNC_SQS_QUEUE_URL", "http://localstack:4566/000000000000/attendance-sync-queue")
	viper.SetDefault("IDENTITY_API_URL", "http://localhost:8081/")
	viper.SetDefault("OTLP_ENDPOINT", "jaeger:4317")
	viper.SetDefault("LOCAL_DEV", false)

	// Read in environment variables that match the keys.
	viper.AutomaticEnv()

	err = viper.Unmarshal(&config)
	return
}
