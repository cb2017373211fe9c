// Package config holds the host configuration: file-backed settings through
// viper with flag and environment overrides layered on top.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/reeledit/reeledit/pkg/logger"
)

const (
	Host        = "host"
	Port        = "port"
	LogLevel    = "log_level"
	FPS         = "fps"
	AspectRatio = "aspect_ratio"

	RemoteURL = "remote_url"
	UploadURL = "upload_url"

	FFProbePath  = "ffprobe_path"
	ProbeTimeout = "probe_timeout"

	Database = "database"
)

type flagStruct struct {
	configFilePath string
}

var flags flagStruct

func init() {
	pflag.String(Host, "127.0.0.1", "ip address to bind")
	pflag.Int(Port, 9480, "port to serve from")
	pflag.StringVarP(&flags.configFilePath, "config", "c", "", "config file to use")
}

type Config struct {
	main      *viper.Viper
	overrides *viper.Viper
}

var instance *Config

func GetInstance() *Config {
	if instance == nil {
		panic("config not initialized")
	}
	return instance
}

// Initialize loads the configuration, called once at startup.
func Initialize() (*Config, error) {
	cfg := &Config{
		main:      viper.New(),
		overrides: viper.New(),
	}

	cfg.initOverrides()
	cfg.setDefaults()

	if err := cfg.initConfig(); err != nil {
		return nil, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	instance = cfg
	return instance, nil
}

// InitializeEmpty is used by tests to get a config backed by defaults only.
func InitializeEmpty() *Config {
	cfg := &Config{
		main:      viper.New(),
		overrides: viper.New(),
	}
	cfg.setDefaults()
	instance = cfg
	return instance
}

func bindEnv(v *viper.Viper, key string) {
	if err := v.BindEnv(key); err != nil {
		panic(fmt.Sprintf("unable to set environment key (%v): %v", key, err))
	}
}

func (i *Config) initOverrides() {
	v := i.overrides

	if err := v.BindPFlags(pflag.CommandLine); err != nil {
		logger.Infof("failed to bind flags: %v", err)
	}

	v.SetEnvPrefix("reeledit")  // will be uppercased automatically
	bindEnv(v, Host)            // REELEDIT_HOST
	bindEnv(v, Port)            // REELEDIT_PORT
	bindEnv(v, RemoteURL)       // REELEDIT_REMOTE_URL
	bindEnv(v, UploadURL)       // REELEDIT_UPLOAD_URL
	bindEnv(v, FFProbePath)     // REELEDIT_FFPROBE_PATH
	bindEnv(v, Database)        // REELEDIT_DATABASE
	bindEnv(v, "config")        // REELEDIT_CONFIG
}

func (i *Config) setDefaults() {
	v := i.main

	v.SetDefault(LogLevel, "info")
	v.SetDefault(FPS, 30.0)
	v.SetDefault(AspectRatio, "16:9")
	v.SetDefault(ProbeTimeout, 5)
	v.SetDefault(Database, filepath.Join(configDir(), "reeledit.sqlite"))
}

func (i *Config) initConfig() error {
	v := i.main

	v.SetConfigType("yml")

	configFile := flags.configFilePath
	if configFile == "" {
		configFile = os.Getenv("REELEDIT_CONFIG_FILE")
	}

	if configFile != "" {
		v.SetConfigFile(configFile)
	} else {
		v.AddConfigPath(".")
		v.AddConfigPath(configDir())
		v.SetConfigName("config")
	}

	if err := v.ReadInConfig(); err != nil {
		// a missing config file is fine; defaults and overrides apply
		var notFound viper.ConfigFileNotFoundError
		var pathErr *os.PathError
		if !errors.As(err, &notFound) && !errors.As(err, &pathErr) {
			return fmt.Errorf("reading config: %w", err)
		}
	}

	return nil
}

func configDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "."
	}
	return filepath.Join(home, ".reeledit")
}

func (i *Config) viperWith(key string) *viper.Viper {
	if i.overrides.IsSet(key) {
		return i.overrides
	}
	return i.main
}

func (i *Config) GetString(key string) string {
	return i.viperWith(key).GetString(key)
}

func (i *Config) Set(key string, value interface{}) {
	i.main.Set(key, value)
}

func (i *Config) GetHost() string {
	return i.viperWith(Host).GetString(Host)
}

func (i *Config) GetPort() int {
	return i.viperWith(Port).GetInt(Port)
}

func (i *Config) GetLogLevel() string {
	return i.viperWith(LogLevel).GetString(LogLevel)
}

func (i *Config) GetFPS() float64 {
	return i.viperWith(FPS).GetFloat64(FPS)
}

func (i *Config) GetAspectRatio() string {
	return i.viperWith(AspectRatio).GetString(AspectRatio)
}

func (i *Config) GetRemoteURL() string {
	return i.viperWith(RemoteURL).GetString(RemoteURL)
}

func (i *Config) GetUploadURL() string {
	return i.viperWith(UploadURL).GetString(UploadURL)
}

func (i *Config) GetFFProbePath() string {
	return i.viperWith(FFProbePath).GetString(FFProbePath)
}

func (i *Config) GetProbeTimeout() time.Duration {
	return time.Duration(i.viperWith(ProbeTimeout).GetInt(ProbeTimeout)) * time.Second
}

func (i *Config) GetDatabasePath() string {
	return i.viperWith(Database).GetString(Database)
}

func (i *Config) Validate() error {
	if i.GetFPS() <= 0 {
		return fmt.Errorf("fps must be positive, got %v", i.GetFPS())
	}
	if i.GetRemoteURL() == "" {
		logger.Warnf("no remote url configured; saving is disabled until one is set")
	}
	return nil
}
