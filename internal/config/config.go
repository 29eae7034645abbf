package config

import (
	"fmt"
	"github.com/ilyakaznacheev/cleanenv"
	"log"
	"sync"
	"time"
)

type Config struct {
	Env      string `yaml:"env" env:"TEXTDESK_ENV" env-default:"local"`
	Telegram struct {
		ApiKey  string `yaml:"api_key" env:"TELEGRAM_API_KEY" env-default:""`
		AdminId int64  `yaml:"admin_id" env-default:"0"`
		BotName string `yaml:"bot_name" env-default:"TextDeskAlerts"`
		Enabled bool   `yaml:"enabled" env-default:"false"`
	} `yaml:"telegram"`
	Admin struct {
		Username      string        `yaml:"username" env-default:"admin"`
		Password      string        `yaml:"password" env:"ADMIN_PASSWORD" env-default:""`
		SessionSecret string        `yaml:"session_secret" env:"ADMIN_SESSION_SECRET" env-default:""`
		SessionTTL    time.Duration `yaml:"session_ttl" env-default:"12h"`
	} `yaml:"admin"`
	Mongo struct {
		Enabled  bool   `yaml:"enabled" env-default:"false"`
		Host     string `yaml:"host" env-default:"127.0.0.1"`
		Port     string `yaml:"port" env-default:"27017"`
		User     string `yaml:"user" env-default:"admin"`
		Password string `yaml:"password" env:"MONGO_PASSWORD" env-default:"pass"`
		Database string `yaml:"database" env-default:"textdesk"`
	} `yaml:"mongo"`
	Redis struct {
		Enabled bool          `yaml:"enabled" env-default:"false"`
		URL     string        `yaml:"url" env:"REDIS_URL" env-default:"redis://127.0.0.1:6379/0"`
		LockTTL time.Duration `yaml:"lock_ttl" env-default:"30s"`
	} `yaml:"redis"`
	Storage struct {
		Backend       string `yaml:"backend" env-default:"gridfs"`
		PublicBaseURL string `yaml:"public_base_url" env-default:"http://127.0.0.1:9100"`
		S3            struct {
			Bucket       string `yaml:"bucket" env-default:""`
			Region       string `yaml:"region" env-default:"us-east-1"`
			Endpoint     string `yaml:"endpoint" env-default:""`
			AccessKeyID  string `yaml:"access_key_id" env:"S3_ACCESS_KEY_ID" env-default:""`
			SecretKey    string `yaml:"secret_key" env:"S3_SECRET_KEY" env-default:""`
			UsePathStyle bool   `yaml:"use_path_style" env-default:"false"`
			PublicURL    string `yaml:"public_url" env-default:""`
		} `yaml:"s3"`
		GCS struct {
			Bucket          string `yaml:"bucket" env-default:""`
			CredentialsFile string `yaml:"credentials_file" env-default:""`
		} `yaml:"gcs"`
	} `yaml:"storage"`
	Provider struct {
		BaseURL           string        `yaml:"base_url" env-default:"https://platform.ringcentral.com"`
		TokenURL          string        `yaml:"token_url" env-default:"https://platform.ringcentral.com/restapi/oauth/token"`
		ClientID          string        `yaml:"client_id" env:"PROVIDER_CLIENT_ID" env-default:""`
		ClientSecret      string        `yaml:"client_secret" env:"PROVIDER_CLIENT_SECRET" env-default:""`
		OwnNumber         string        `yaml:"own_number" env-default:""`
		VerificationToken string        `yaml:"verification_token" env:"PROVIDER_VERIFICATION_TOKEN" env-default:""`
		PageSize          int           `yaml:"page_size" env-default:"100"`
		SyncHours         int           `yaml:"sync_hours" env-default:"24"`
		Timeout           time.Duration `yaml:"timeout" env-default:"20s"`
	} `yaml:"provider"`
	Relay struct {
		Timeout  time.Duration `yaml:"timeout" env-default:"30s"`
		MaxBytes int64         `yaml:"max_bytes" env-default:"1572864"`
	} `yaml:"relay"`
	Jobs struct {
		Timeout time.Duration `yaml:"timeout" env-default:"5m"`
	} `yaml:"jobs"`
	Listen struct {
		BindIP string `yaml:"bind_ip" env-default:"127.0.0.1"`
		Port   string `yaml:"port" env-default:"9100"`
		ApiKey string `yaml:"key" env:"TEXTDESK_API_KEY" env-default:""`
	} `yaml:"listen"`
}

var instance *Config
var once sync.Once

func MustLoad(path string) *Config {
	var err error
	once.Do(func() {
		instance = &Config{}
		if err = cleanenv.ReadConfig(path, instance); err != nil {
			desc, _ := cleanenv.GetDescription(instance, nil)
			err = fmt.Errorf("%s; %s", err, desc)
			instance = nil
			log.Fatal(err)
		}
		if err = instance.Validate(); err != nil {
			log.Fatal(err)
		}
	})
	return instance
}

// Validate rejects configurations the service cannot run with.
func (c *Config) Validate() error {
	if c.Provider.OwnNumber == "" {
		return fmt.Errorf("provider.own_number is required")
	}
	switch c.Storage.Backend {
	case "gridfs":
		if !c.Mongo.Enabled {
			return fmt.Errorf("storage backend gridfs requires mongo.enabled")
		}
	case "s3":
		if c.Storage.S3.Bucket == "" {
			return fmt.Errorf("storage.s3.bucket is required")
		}
	case "gcs":
		if c.Storage.GCS.Bucket == "" {
			return fmt.Errorf("storage.gcs.bucket is required")
		}
	case "memory":
	default:
		return fmt.Errorf("unknown storage backend %q", c.Storage.Backend)
	}
	if c.Admin.Password != "" && c.Admin.SessionSecret == "" {
		return fmt.Errorf("admin.session_secret is required when admin.password is set")
	}
	return nil
}
