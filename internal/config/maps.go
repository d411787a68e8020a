package config

type MapsConfig struct {
	GoogleMaps *GoogleMapsConfig `yaml:"google_maps"`
	LinkFormat string            `yaml:"link_format"`
}

type GoogleMapsConfig struct {
	APIKey string `yaml:"api_key"`
}

func loadMapsConfig() *MapsConfig {
	return &MapsConfig{
		GoogleMaps: &GoogleMapsConfig{
			APIKey: getEnv("GOOGLE_MAPS_API_KEY", ""),
		},
		LinkFormat: getEnv("MAPS_LINK_FORMAT", "https://maps.google.com/?q=%.6f,%.6f"),
	}
}

// ReverseGeocodingEnabled reports whether coordinates should be annotated with an address.
func (c *MapsConfig) ReverseGeocodingEnabled() bool {
	return c.GoogleMaps != nil && c.GoogleMaps.APIKey != ""
}
