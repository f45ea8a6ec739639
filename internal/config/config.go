package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

type Config struct {
	GeneralParams    GeneralParams
	HttpServerParams HttpServerParams
	MainDBParams     MainDBParams
	S3Params         S3Params
	RecordingParams  RecordingParams
	ClientParams     ClientParams
}

type GeneralParams struct {
	Env       string `validate:"oneof=dev prod test"`
	LogLevel  string `validate:"omitempty,oneof=debug info warn error"`
	SecretKey string
}

type HttpServerParams struct {
	Address string `validate:"required"`
	Port    string `validate:"required,numeric"`
}

type MainDBParams struct {
	Username string `validate:"required"`
	Password string `validate:"required"`
	Name     string `validate:"required"`
	Port     int    `validate:"required,min=1,max=65535"`
	Host     string `validate:"required"`
	Timeout  int    `validate:"min=0"`
}

type S3Params struct {
	Endpoint        string `validate:"required"`
	AccessKeyID     string `validate:"required"`
	SecretAccessKey string `validate:"required"`
	UseSSL          bool
	BucketName      string        `validate:"required"`
	PresignTTL      time.Duration `validate:"min=0"`
}

// RecordingParams tune the reference recording service
type RecordingParams struct {
	SessionTTL      time.Duration `validate:"gt=0"`
	ScriptCacheSize int           `validate:"min=1"`
	ScriptCacheTTL  time.Duration `validate:"gt=0"`
	AccessTokenTTL  time.Duration `validate:"gt=0"`
	MaxUploadBytes  int64         `validate:"gt=0"`
	ShutdownTimeout time.Duration `validate:"gt=0"`
}

// ClientParams configure the contributor CLI
type ClientParams struct {
	APIBaseURL     string `validate:"required,url"`
	AuthToken      string
	TokenFile      string
	RequestTimeout time.Duration `validate:"gt=0"`
	CaptureTool    string        `validate:"required"`
	CaptureDevice  string
	SampleRate     int `validate:"min=8000,max=192000"`
	Channels       int `validate:"min=1,max=2"`
	BitDepth       int `validate:"oneof=8 16 24 32"`
	PreviewDir     string
	// KeepDir receives takes the contributor chose to keep after a failed upload
	KeepDir string `validate:"required"`
}

type ConfigManager struct {
	v      *viper.Viper
	config *Config
}

// flagKeys maps command-line flags onto config keys
var flagKeys = map[string]string{
	"env":            "general_params.env",
	"log-level":      "general_params.log_level",
	"api-url":        "client_params.api_base_url",
	"token":          "client_params.auth_token",
	"token-file":     "client_params.token_file",
	"timeout":        "client_params.request_timeout",
	"capture-tool":   "client_params.capture_tool",
	"capture-device": "client_params.capture_device",
	"preview-dir":    "client_params.preview_dir",
	"keep-dir":       "client_params.keep_dir",
	"http-address":   "http_server_params.http_server_address",
	"http-port":      "http_server_params.http_server_port",
}

// RegisterClientFlags declares the flags the contributor CLI understands
func RegisterClientFlags(fs *pflag.FlagSet) {
	fs.String("env", "", "environment: dev, prod or test")
	fs.String("log-level", "", "log level override")
	fs.String("api-url", "", "recording service base URL")
	fs.String("token", "", "bearer token")
	fs.String("token-file", "", "file holding the bearer token")
	fs.Duration("timeout", 0, "request timeout")
	fs.String("capture-tool", "", "arecord binary")
	fs.String("capture-device", "", "ALSA capture device")
	fs.String("preview-dir", "", "directory for local preview files")
	fs.String("keep-dir", "", "directory for takes kept after a failed upload")
}

// RegisterServerFlags declares the flags the recording service understands
func RegisterServerFlags(fs *pflag.FlagSet) {
	fs.String("env", "", "environment: dev, prod or test")
	fs.String("log-level", "", "log level override")
	fs.String("http-address", "", "listen address")
	fs.String("http-port", "", "listen port")
}

// NewConfigManager creates new config manager that handles
// all viper config options and loads a config from yaml.
// An empty configPath relies on defaults, APP_ env vars and flags.
func NewConfigManager(configPath string, flags *pflag.FlagSet) (*ConfigManager, error) {
	v := viper.New()
	setDefaults(v)

	v.AutomaticEnv()
	v.SetEnvPrefix("APP")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	if configPath != "" {
		v.SetConfigFile(configPath)
		v.SetConfigType("yaml")

		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
	}

	if flags != nil {
		for name, key := range flagKeys {
			if f := flags.Lookup(name); f != nil {
				if err := v.BindPFlag(key, f); err != nil {
					return nil, fmt.Errorf("failed to bind flag %s: %w", name, err)
				}
			}
		}
	}

	cm := &ConfigManager{v: v}
	cm.loadConfig()

	return cm, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("general_params.env", "dev")
	v.SetDefault("general_params.log_level", "")

	v.SetDefault("http_server_params.http_server_address", "0.0.0.0")
	v.SetDefault("http_server_params.http_server_port", "8080")

	v.SetDefault("main_db_params.db_port", 5432)
	v.SetDefault("main_db_params.db_timeout", 5)

	v.SetDefault("s3_params.bucket_name", "recordings")
	v.SetDefault("s3_params.presign_ttl", 15*time.Minute)

	v.SetDefault("recording_params.session_ttl", 30*time.Minute)
	v.SetDefault("recording_params.script_cache_size", 64)
	v.SetDefault("recording_params.script_cache_ttl", 5*time.Minute)
	v.SetDefault("recording_params.access_token_ttl", 24*time.Hour)
	v.SetDefault("recording_params.max_upload_bytes", 64<<20)
	v.SetDefault("recording_params.shutdown_timeout", 10*time.Second)

	v.SetDefault("client_params.api_base_url", "http://localhost:8080")
	v.SetDefault("client_params.request_timeout", 60*time.Second)
	v.SetDefault("client_params.capture_tool", "arecord")
	v.SetDefault("client_params.sample_rate", 16000)
	v.SetDefault("client_params.channels", 1)
	v.SetDefault("client_params.bit_depth", 16)
	v.SetDefault("client_params.keep_dir", ".")
}

// Extracting data from yaml file and loading into Config
func (cm *ConfigManager) loadConfig() {
	cm.config = &Config{
		GeneralParams: GeneralParams{
			Env:       cm.v.GetString("general_params.env"),
			LogLevel:  cm.v.GetString("general_params.log_level"),
			SecretKey: cm.v.GetString("general_params.secret_key"),
		},
		HttpServerParams: HttpServerParams{
			Address: cm.v.GetString("http_server_params.http_server_address"),
			Port:    cm.v.GetString("http_server_params.http_server_port"),
		},
		MainDBParams: MainDBParams{
			Username: cm.v.GetString("main_db_params.db_username"),
			Password: cm.v.GetString("main_db_params.db_password"),
			Name:     cm.v.GetString("main_db_params.db_name"),
			Port:     cm.v.GetInt("main_db_params.db_port"),
			Host:     cm.v.GetString("main_db_params.db_host"),
			Timeout:  cm.v.GetInt("main_db_params.db_timeout"),
		},
		S3Params: S3Params{
			Endpoint:        cm.v.GetString("s3_params.endpoint"),
			AccessKeyID:     cm.v.GetString("s3_params.access_key_id"),
			SecretAccessKey: cm.v.GetString("s3_params.secret_access_key"),
			UseSSL:          cm.v.GetBool("s3_params.use_ssl"),
			BucketName:      cm.v.GetString("s3_params.bucket_name"),
			PresignTTL:      cm.v.GetDuration("s3_params.presign_ttl"),
		},
		RecordingParams: RecordingParams{
			SessionTTL:      cm.v.GetDuration("recording_params.session_ttl"),
			ScriptCacheSize: cm.v.GetInt("recording_params.script_cache_size"),
			ScriptCacheTTL:  cm.v.GetDuration("recording_params.script_cache_ttl"),
			AccessTokenTTL:  cm.v.GetDuration("recording_params.access_token_ttl"),
			MaxUploadBytes:  cm.v.GetInt64("recording_params.max_upload_bytes"),
			ShutdownTimeout: cm.v.GetDuration("recording_params.shutdown_timeout"),
		},
		ClientParams: ClientParams{
			APIBaseURL:     cm.v.GetString("client_params.api_base_url"),
			AuthToken:      cm.v.GetString("client_params.auth_token"),
			TokenFile:      cm.v.GetString("client_params.token_file"),
			RequestTimeout: cm.v.GetDuration("client_params.request_timeout"),
			CaptureTool:    cm.v.GetString("client_params.capture_tool"),
			CaptureDevice:  cm.v.GetString("client_params.capture_device"),
			SampleRate:     cm.v.GetInt("client_params.sample_rate"),
			Channels:       cm.v.GetInt("client_params.channels"),
			BitDepth:       cm.v.GetInt("client_params.bit_depth"),
			PreviewDir:     cm.v.GetString("client_params.preview_dir"),
			KeepDir:        cm.v.GetString("client_params.keep_dir"),
		},
	}
}

// Geting config instance
func (cm *ConfigManager) GetConfig() *Config {
	return cm.config
}

// Compiling a string to connect to main_db
func (db *MainDBParams) GetDSN() string {
	return fmt.Sprintf(
		"postgres://%s:%s@%s:%d/%s?connect_timeout=%d&sslmode=disable",
		db.Username,
		db.Password,
		db.Host,
		db.Port,
		db.Name,
		db.Timeout,
	)
}

func (h *HttpServerParams) GetAddress() string {
	return fmt.Sprintf(
		"%s:%s",
		h.Address,
		h.Port,
	)
}

var validate = validator.New(validator.WithRequiredStructEnabled())

// ValidateServer checks everything the recording service needs
func (c *Config) ValidateServer() error {
	if c.GeneralParams.SecretKey == "" {
		return fmt.Errorf("parameter secret_key is required")
	}
	return validateSections(map[string]any{
		"general_params":     c.GeneralParams,
		"http_server_params": c.HttpServerParams,
		"main_db_params":     c.MainDBParams,
		"s3_params":          c.S3Params,
		"recording_params":   c.RecordingParams,
	})
}

// ValidateClient checks everything the contributor CLI needs
func (c *Config) ValidateClient() error {
	return validateSections(map[string]any{
		"general_params": c.GeneralParams,
		"client_params":  c.ClientParams,
	})
}

func validateSections(sections map[string]any) error {
	var errs []error
	for name, section := range sections {
		if err := validate.Struct(section); err != nil {
			var verrs validator.ValidationErrors
			if errors.As(err, &verrs) {
				for _, fe := range verrs {
					errs = append(errs, fmt.Errorf("%s: %s failed %q", name, fe.Field(), fe.Tag()))
				}
				continue
			}
			errs = append(errs, fmt.Errorf("%s: %w", name, err))
		}
	}
	return errors.Join(errs...)
}
