package config

import (
	"fmt"
	"net"
	"net/url"
	"os"
	"strconv"
	"time"

	"github.com/ilyakaznacheev/cleanenv"
)

// Config is the deployment configuration set read from the .env file.
// It is loaded once per invocation and passed by value afterwards.
type Config struct {
	DomainName string `env:"DOMAIN_NAME" required:"true" env-description:"public domain name of the deployment"`
	PublicIP   string `env:"PUBLIC_IP" required:"true" env-description:"public ip address advertised for SIP and RTP"`

	Postgres Postgres
	Redis    Redis
	SIP      SIP
	SSL      SSL
	Backup   Backup
	S3       S3
	Compose  Compose
}

type Postgres struct {
	Host     string `env:"POSTGRES_HOST" env-default:"localhost" env-description:"postgres host used for readiness checks"`
	Port     int    `env:"POSTGRES_PORT" env-default:"5432" env-description:"postgres port"`
	User     string `env:"POSTGRES_USER" env-default:"somleng" env-description:"postgres user"`
	Password string `env:"POSTGRES_PASSWORD" required:"true" env-description:"postgres password"`
	Database string `env:"POSTGRES_DB" env-default:"somleng_api_production" env-description:"postgres database name"`
	Service  string `env:"POSTGRES_SERVICE" env-default:"postgres" env-description:"compose service running postgres"`
}

type Redis struct {
	Host     string `env:"REDIS_HOST" env-default:"localhost" env-description:"redis host used for readiness checks"`
	Port     int    `env:"REDIS_PORT" env-default:"6379" env-description:"redis port"`
	Password string `env:"REDIS_PASSWORD" env-description:"redis password"`
	Service  string `env:"REDIS_SERVICE" env-default:"redis" env-description:"compose service running redis"`
}

type SIP struct {
	Port         int    `env:"SIP_PORT" env-default:"5060" env-description:"sip signalling port"`
	RTPPortRange string `env:"RTP_PORT_RANGE" env-default:"10000-20000" env-description:"rtp media port range"`
}

type SSL struct {
	Email       string `env:"SSL_EMAIL" env-description:"contact email for LetsEncrypt"`
	Dir         string `env:"SSL_DIR" env-default:"ssl" env-description:"directory holding key, certificate and dh params"`
	Staging     bool   `env:"SSL_STAGING" env-default:"false" env-description:"use the LetsEncrypt staging environment"`
	RenewScript string `env:"SSL_RENEW_SCRIPT" env-default:"/usr/local/bin/cpaasctl-renew-certs" env-description:"location of the certificate renewal helper"`
}

type Backup struct {
	Dir                 string   `env:"BACKUP_DIR" env-default:"backups" env-description:"local backup directory"`
	KeepLocal           int      `env:"BACKUP_KEEP_LOCAL" env-default:"7" env-description:"number of local archives to keep"`
	RemoteRetentionDays int      `env:"BACKUP_REMOTE_RETENTION_DAYS" env-default:"30" env-description:"remote archives older than this are deleted"`
	ConfigPaths         []string `env:"BACKUP_CONFIG_PATHS" env-default:"configs" env-description:"comma separated config paths to archive"`
	LogPaths            []string `env:"BACKUP_LOG_PATHS" env-default:"logs" env-description:"comma separated log paths to archive"`
}

type S3 struct {
	Bucket          string `env:"S3_BUCKET" env-description:"bucket for backup uploads, empty disables upload"`
	Endpoint        string `env:"S3_ENDPOINT" env-description:"custom endpoint for S3 compatible storage"`
	Region          string `env:"S3_REGION" env-default:"us-east-1" env-description:"storage region"`
	AccessKeyID     string `env:"S3_ACCESS_KEY_ID" env-description:"storage access key"`
	SecretAccessKey string `env:"S3_SECRET_ACCESS_KEY" env-description:"storage secret key"`
	Prefix          string `env:"S3_PREFIX" env-default:"backups/" env-description:"key prefix for uploaded archives"`
	UsePathStyle    bool   `env:"S3_PATH_STYLE" env-default:"true" env-description:"use path style addressing"`
}

type Compose struct {
	File    string `env:"COMPOSE_FILE" env-default:"docker-compose.yml" env-description:"compose file"`
	Project string `env:"COMPOSE_PROJECT_NAME" env-default:"somleng" env-description:"compose project name"`
}

// Load reads the configuration file. The file name must end with .env
func Load(path string) (Config, error) {
	var cfg Config

	if err := cleanenv.ReadConfig(path, &cfg); err != nil {
		return Config{}, fmt.Errorf("could not read configuration file %s: %w", path, err)
	}

	return cfg, nil
}

// Describe returns the list of supported environment keys with their descriptions
func Describe() (string, error) {
	header := "Supported environment keys:"

	return cleanenv.GetDescription(&Config{}, &header)
}

// PostgresDSN returns the connection string used for readiness checks
func (c Config) PostgresDSN() string {
	u := url.URL{
		Scheme:   "postgres",
		User:     url.UserPassword(c.Postgres.User, c.Postgres.Password),
		Host:     net.JoinHostPort(c.Postgres.Host, strconv.Itoa(c.Postgres.Port)),
		Path:     "/" + c.Postgres.Database,
		RawQuery: "sslmode=disable",
	}

	return u.String()
}

func (c Config) RedisAddr() string {
	return net.JoinHostPort(c.Redis.Host, strconv.Itoa(c.Redis.Port))
}

func (c Config) RemoteRetention() time.Duration {
	return time.Duration(c.Backup.RemoteRetentionDays) * 24 * time.Hour
}

// UploadEnabled reports whether backups are pushed to object storage
func (c Config) UploadEnabled() bool {
	return c.S3.Bucket != ""
}

// Expand replaces ${DOMAIN_NAME}, ${PUBLIC_IP} and ${SIP_PORT} in s
func (c Config) Expand(s string) string {
	return os.Expand(s, func(key string) string {
		switch key {
		case "DOMAIN_NAME":
			return c.DomainName
		case "PUBLIC_IP":
			return c.PublicIP
		case "SIP_PORT":
			return strconv.Itoa(c.SIP.Port)
		default:
			return "${" + key + "}"
		}
	})
}
