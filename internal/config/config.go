package config

import (
	"fmt"
	"os"

	"github.com/rs/zerolog/log"
	"github.com/spf13/viper"

	"github.com/NooksApp/accelerator-core/internal/domain"
)

// CallPolicy holds the admission and subscription knobs. Set once at load,
// immutable afterwards.
type CallPolicy struct {
	ConnectionLimit int    `mapstructure:"connection_limit"` // 0 means unlimited
	AutoSubscribe   bool   `mapstructure:"auto_subscribe"`
	SubscribeOnly   bool   `mapstructure:"subscribe_only"`
	Container       string `mapstructure:"container"`        // default camera container
	ScreenContainer string `mapstructure:"screen_container"` // screen-share container
}

// Modules toggles the optional feature modules.
type Modules struct {
	TextChat      bool `mapstructure:"text_chat"`
	ScreenSharing bool `mapstructure:"screen_sharing"`
	Annotation    bool `mapstructure:"annotation"`
	Archiving     bool `mapstructure:"archiving"`
}

type Config struct {
	Mode         string             `mapstructure:"mode"`
	Port         int                `mapstructure:"port"`
	Secret       string             `mapstructure:"secret"`
	SignalingURL string             `mapstructure:"signaling_url"`
	Credentials  domain.Credentials `mapstructure:"credentials"`
	Call         CallPolicy         `mapstructure:"call"`
	Modules      Modules            `mapstructure:"modules"`
}

func Load() (*Config, error) {
	v := viper.New()
	v.SetConfigType("yaml")

	env := os.Getenv("CONFIG_ENV")
	if env == "" {
		env = "dev"
	}
	fileName := fmt.Sprintf("config/config.%s.yaml", env)

	v.SetConfigFile(fileName)
	v.AddConfigPath(".")
	v.AddConfigPath("./config")

	v.SetDefault("mode", "release")
	v.SetDefault("port", 8080)
	v.SetDefault("signaling_url", "ws://localhost:9090/ws")
	v.SetDefault("call.auto_subscribe", true)
	v.SetDefault("call.subscribe_only", false)
	v.SetDefault("call.connection_limit", 0)
	v.SetDefault("call.container", "videoContainer")
	v.SetDefault("call.screen_container", "screenContainer")
	v.SetDefault("modules.text_chat", true)
	v.SetDefault("modules.screen_sharing", true)

	if err := v.ReadInConfig(); err != nil {
		log.Warn().Str("module", "config").Str("file", fileName).Msg("config file not found, using defaults")
	} else {
		log.Info().Str("module", "config").Str("file", fileName).Msg("loaded config")
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	if err := cfg.Credentials.Validate(); err != nil {
		return nil, fmt.Errorf("invalid credentials: %w", err)
	}
	return &cfg, nil
}
