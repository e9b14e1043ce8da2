package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/Netflix/go-env"
)

// Config holds all gateway settings, loaded once at startup.
type Config struct {
	AppID            string  `env:"APP_ID,required=true"`
	MaxRetries       int     `env:"MAX_RETRIES,default=3"`
	MaxJitterSeconds float64 `env:"MAX_JITTER_SECONDS,default=2.0"`
	BodyLimitBytes   int     `env:"BODY_LIMIT_BYTES,default=65536"`
	APIPort          int     `env:"API_PORT,default=8080"`
	LogLevel         string  `env:"LOG_LEVEL,default=info"`

	FCMAPIURL   string `env:"FCM_API_URL,default=https://fcm.googleapis.com/fcm/send"`
	FCMAdminKey string `env:"FCM_ADMIN_KEY,required=true"`

	APNSAPIURL    string `env:"APNS_API_URL,default=https://api.push.apple.com"`
	APNSAuthToken string `env:"APNS_AUTH_TOKEN"`
	APNSTopic     string `env:"APNS_TOPIC"`

	Notification NotificationConfig
}

// NotificationConfig holds the visible-notification text templates. The title
// substitutes the literal "<count>" with the decimal unread count.
type NotificationConfig struct {
	Title            string `env:"NOTIFICATION_TITLE,default=<count> new messages"`
	Body             string `env:"NOTIFICATION_BODY,default=Open the app to read them"`
	Sound            string `env:"NOTIFICATION_SOUND,default=default"`
	Icon             string `env:"NOTIFICATION_ICON,default=notifications_icon"`
	Tag              string `env:"NOTIFICATION_TAG,default=im.corvid.default_notification"`
	AndroidChannelID string `env:"NOTIFICATION_ANDROID_CHANNEL_ID,default=im.corvid.app.message"`
	ClickAction      string `env:"NOTIFICATION_CLICK_ACTION,default=FLUTTER_NOTIFICATION_CLICK"`
}

func Load() (*Config, error) {
	var cfg Config
	_, err := env.UnmarshalFromEnviron(&cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) validate() error {
	if strings.TrimSpace(c.AppID) == "" {
		return fmt.Errorf("APP_ID must not be blank")
	}
	if c.MaxRetries < 0 {
		return fmt.Errorf("MAX_RETRIES must not be negative, got %d", c.MaxRetries)
	}
	if c.MaxJitterSeconds < 0 {
		return fmt.Errorf("MAX_JITTER_SECONDS must not be negative, got %f", c.MaxJitterSeconds)
	}
	if c.BodyLimitBytes <= 0 {
		return fmt.Errorf("BODY_LIMIT_BYTES must be positive, got %d", c.BodyLimitBytes)
	}
	if !strings.Contains(c.Notification.Title, "<count>") {
		return fmt.Errorf("NOTIFICATION_TITLE must contain the <count> placeholder")
	}
	return nil
}

// MaxJitter returns the jitter ceiling as a duration. Zero disables jittering.
func (c *Config) MaxJitter() time.Duration {
	return time.Duration(c.MaxJitterSeconds * float64(time.Second))
}
