package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "SafeHer", cfg.App.Name)
	assert.Equal(t, []string{"danger", "help me", "emergency"}, cfg.Safety.TriggerPhrases)
	assert.Equal(t, 10*time.Second, cfg.Safety.LocationTimeout)
	assert.Equal(t, 1500*time.Millisecond, cfg.Safety.ChatReplyDelay)
	assert.Equal(t, "simulated", cfg.Safety.ContactChannel)
	assert.False(t, cfg.Redis.Enabled)

	require.Len(t, cfg.Safety.Protected, 2)
	assert.Equal(t, ProtectedContact{Name: "Emergency Police", Phone: "112", Relationship: "Police"}, cfg.Safety.Protected[0])
	assert.Equal(t, ProtectedContact{Name: "Women Helpline", Phone: "181", Relationship: "Helpline"}, cfg.Safety.Protected[1])
}

func TestLoadFromEnvironment(t *testing.T) {
	t.Setenv("TRIGGER_PHRASES", " bachao , help me ,,")
	t.Setenv("POLICE_NUMBER", "100")
	t.Setenv("LOCATION_TIMEOUT", "3s")
	t.Setenv("LOCATION_STATIC_LAT", "12.5")
	t.Setenv("REDIS_ENABLED", "true")
	t.Setenv("APP_PORT", "not-a-number")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, []string{"bachao", "help me"}, cfg.Safety.TriggerPhrases)
	assert.Equal(t, "100", cfg.Safety.Protected[0].Phone)
	assert.Equal(t, 3*time.Second, cfg.Safety.LocationTimeout)
	assert.Equal(t, 12.5, cfg.Safety.StaticLatitude)
	assert.True(t, cfg.Redis.Enabled)
	assert.Equal(t, 8080, cfg.App.Port)
}

func TestLoadRejectsUnknownChannels(t *testing.T) {
	cases := map[string]string{
		"DISPATCH_CONTACT_CHANNEL":   "pigeon",
		"DISPATCH_AUTHORITY_CHANNEL": "fax",
		"LOCATION_SOURCE":            "gps",
	}
	for key, value := range cases {
		t.Run(key, func(t *testing.T) {
			t.Setenv(key, value)
			_, err := Load()
			assert.Error(t, err)
		})
	}
}

func TestValidateRequiresPositiveLocationTimeout(t *testing.T) {
	c := loadSafetyConfig()
	c.LocationTimeout = 0
	assert.Error(t, c.Validate())
}
