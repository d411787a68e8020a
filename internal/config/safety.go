package config

import (
	"fmt"
	"time"
)

type SafetyConfig struct {
	TriggerPhrases   []string           `yaml:"trigger_phrases"`
	SpeechLanguage   string             `yaml:"speech_language"`
	LocationSource   string             `yaml:"location_source"` // client, static, none
	LocationTimeout  time.Duration      `yaml:"location_timeout"`
	StaticLatitude   float64            `yaml:"static_latitude"`
	StaticLongitude  float64            `yaml:"static_longitude"`
	DispatchDelay    time.Duration      `yaml:"dispatch_delay"`
	DispatchTimeout  time.Duration      `yaml:"dispatch_timeout"`
	ContactChannel   string             `yaml:"contact_channel"`   // simulated, sms
	AuthorityChannel string             `yaml:"authority_channel"` // simulated, sms, call
	ChatReplyDelay   time.Duration      `yaml:"chat_reply_delay"`
	SessionTTL       time.Duration      `yaml:"session_ttl"`
	NoticeHistory    int                `yaml:"notice_history"`
	Protected        []ProtectedContact `yaml:"protected_contacts"`
}

type ProtectedContact struct {
	Name         string `yaml:"name"`
	Phone        string `yaml:"phone"`
	Relationship string `yaml:"relationship"`
}

func loadSafetyConfig() *SafetyConfig {
	return &SafetyConfig{
		TriggerPhrases:   getEnvAsSlice("TRIGGER_PHRASES", []string{"danger", "help me", "emergency"}),
		SpeechLanguage:   getEnv("SPEECH_LANGUAGE", "en-US"),
		LocationSource:   getEnv("LOCATION_SOURCE", "client"),
		LocationTimeout:  getEnvAsDuration("LOCATION_TIMEOUT", 10*time.Second),
		StaticLatitude:   getEnvAsFloat64("LOCATION_STATIC_LAT", 0),
		StaticLongitude:  getEnvAsFloat64("LOCATION_STATIC_LNG", 0),
		DispatchDelay:    getEnvAsDuration("DISPATCH_SIMULATED_DELAY", 2*time.Second),
		DispatchTimeout:  getEnvAsDuration("DISPATCH_TIMEOUT", 30*time.Second),
		ContactChannel:   getEnv("DISPATCH_CONTACT_CHANNEL", "simulated"),
		AuthorityChannel: getEnv("DISPATCH_AUTHORITY_CHANNEL", "simulated"),
		ChatReplyDelay:   getEnvAsDuration("CHAT_REPLY_DELAY", 1500*time.Millisecond),
		SessionTTL:       getEnvAsDuration("SESSION_TTL", 30*time.Minute),
		NoticeHistory:    getEnvAsInt("NOTICE_HISTORY", 50),
		Protected: []ProtectedContact{
			{
				Name:         getEnv("POLICE_NAME", "Emergency Police"),
				Phone:        getEnv("POLICE_NUMBER", "112"),
				Relationship: "Police",
			},
			{
				Name:         getEnv("HELPLINE_NAME", "Women Helpline"),
				Phone:        getEnv("HELPLINE_NUMBER", "181"),
				Relationship: "Helpline",
			},
		},
	}
}

// Validate rejects settings the dispatcher cannot run with.
func (c *SafetyConfig) Validate() error {
	switch c.LocationSource {
	case "client", "static", "none":
	default:
		return fmt.Errorf("unknown location source %q", c.LocationSource)
	}
	switch c.ContactChannel {
	case "simulated", "sms":
	default:
		return fmt.Errorf("unknown contact channel %q", c.ContactChannel)
	}
	switch c.AuthorityChannel {
	case "simulated", "sms", "call":
	default:
		return fmt.Errorf("unknown authority channel %q", c.AuthorityChannel)
	}
	if c.LocationTimeout <= 0 {
		return fmt.Errorf("location timeout must be positive")
	}
	return nil
}
