// Copyright (c) 2023-2025 RapidaAI
// Author: Prashant Srivastav <prashant@rapida.ai>
//
// Licensed under GPL-2.0 with Rapida Additional Terms.
// See LICENSE.md or contact sales@rapida.ai for commercial usage.

package config

import (
	"log"
	"os"

	"github.com/go-playground/validator/v10"
	"github.com/spf13/viper"
)

// Media core config structure
type MediaConfig struct {
	Name     string `mapstructure:"service_name" validate:"required"`
	Version  string `mapstructure:"version" validate:"required"`
	LogLevel string `mapstructure:"log_level" validate:"required"`

	// ICE
	StunServers        []string `mapstructure:"stun_servers" validate:"required,min=1"`
	TurnServer         string   `mapstructure:"turn_server"`
	TurnUsername       string   `mapstructure:"turn_username"`
	TurnPassword       string   `mapstructure:"turn_password"`
	ICETransportPolicy string   `mapstructure:"ice_transport_policy" validate:"oneof=all relay"`

	// recognition provider selection and listen options
	RecognitionProvider string `mapstructure:"recognition_provider" validate:"oneof=google deepgram"`
	ListenLanguage      string `mapstructure:"listen_language" validate:"required"`
	ListenModel         string `mapstructure:"listen_model"`
	ListenRegion        string `mapstructure:"listen_region"`
	GoogleProjectID     string `mapstructure:"google_project_id"`
	DeepgramAPIKey      string `mapstructure:"deepgram_api_key"`

	// media pipeline tunables
	QueueCapacity       int     `mapstructure:"queue_capacity" validate:"required,gt=0"`
	RingCapacity        int     `mapstructure:"ring_capacity" validate:"required,gt=0"`
	ChunkDurationMs     int     `mapstructure:"chunk_duration_ms" validate:"required,gt=0"`
	MinFillFrames       int     `mapstructure:"min_fill_frames" validate:"gte=0"`
	ConfidenceThreshold float64 `mapstructure:"confidence_threshold" validate:"gte=0,lte=1"`
	InterimResults      bool    `mapstructure:"interim_results"`

	// restart policy
	MaxRestartAttempts int `mapstructure:"max_restart_attempts" validate:"required,gt=0"`
	RestartBackoffMs   int `mapstructure:"restart_backoff_ms" validate:"required,gt=0"`
	RestartBackoffMax  int `mapstructure:"restart_backoff_max_ms" validate:"required,gt=0"`
	StallTimeoutSec    int `mapstructure:"stall_timeout_sec" validate:"required,gt=0"`
}

// reading config and intializing configs for application
func InitConfig() (*viper.Viper, error) {
	vConfig := viper.NewWithOptions(viper.KeyDelimiter("__"))

	vConfig.AddConfigPath(".")
	vConfig.SetConfigName(".env")
	path := os.Getenv("ENV_PATH")
	if path != "" {
		log.Printf("env path %v", path)
		vConfig.SetConfigFile(path)
	}
	vConfig.SetConfigType("env")
	vConfig.AutomaticEnv()

	setDefault(vConfig)
	if err := vConfig.ReadInConfig(); err != nil && !os.IsNotExist(err) {
		log.Printf("Reading from env varaibles.")
	}

	return vConfig, nil
}

func setDefault(v *viper.Viper) {
	// setting all default values
	// keeping watch on https://github.com/spf13/viper/issues/188

	v.SetDefault("SERVICE_NAME", "media-core")
	v.SetDefault("VERSION", "0.0.1")
	v.SetDefault("LOG_LEVEL", "debug")

	v.SetDefault("STUN_SERVERS", []string{"stun:stun.l.google.com:19302", "stun:stun1.l.google.com:19302"})
	v.SetDefault("TURN_SERVER", "")
	v.SetDefault("TURN_USERNAME", "")
	v.SetDefault("TURN_PASSWORD", "")
	v.SetDefault("ICE_TRANSPORT_POLICY", "all")

	v.SetDefault("RECOGNITION_PROVIDER", "google")
	v.SetDefault("LISTEN_LANGUAGE", "en-US")
	v.SetDefault("LISTEN_MODEL", "long")
	v.SetDefault("LISTEN_REGION", "global")
	v.SetDefault("GOOGLE_PROJECT_ID", "")
	v.SetDefault("DEEPGRAM_API_KEY", "")

	v.SetDefault("QUEUE_CAPACITY", 500)
	v.SetDefault("RING_CAPACITY", 75)
	v.SetDefault("CHUNK_DURATION_MS", 250)
	v.SetDefault("MIN_FILL_FRAMES", 25)
	v.SetDefault("CONFIDENCE_THRESHOLD", 0.7)
	v.SetDefault("INTERIM_RESULTS", true)

	v.SetDefault("MAX_RESTART_ATTEMPTS", 10)
	v.SetDefault("RESTART_BACKOFF_MS", 500)
	v.SetDefault("RESTART_BACKOFF_MAX_MS", 15000)
	v.SetDefault("STALL_TIMEOUT_SEC", 30)
}

// Getting media config from viper
func GetMediaConfig(v *viper.Viper) (*MediaConfig, error) {
	var config MediaConfig
	err := v.Unmarshal(&config)
	if err != nil {
		log.Printf("%+v\n", err)
		return nil, err
	}

	// valdating the media config
	validate := validator.New()
	err = validate.Struct(&config)
	if err != nil {
		log.Printf("%+v\n", err)
		return nil, err
	}
	return &config, nil
}
