package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/beekhof/eventsync/internal/errors"
)

const (
	// DefaultCalendarID is the calendar events are listed from and inserted into.
	DefaultCalendarID = "primary"
	// DefaultTimeZone is attached to every created event. It is not derived
	// from the location's country.
	DefaultTimeZone = "America/Los_Angeles"
	// DefaultRadiusMiles is the store search radius.
	DefaultRadiusMiles = 25
)

// GoogleCredentials represents the structure of Google OAuth credentials JSON file.
type GoogleCredentials struct {
	Installed struct {
		ClientID     string `json:"client_id"`
		ClientSecret string `json:"client_secret"`
	} `json:"installed"`
	Web struct {
		ClientID     string `json:"client_id"`
		ClientSecret string `json:"client_secret"`
	} `json:"web"`
}

// LoadGoogleCredentials loads Google OAuth credentials from a JSON file.
func LoadGoogleCredentials(path string) (clientID, clientSecret string, err error) {
	const op errors.Op = "config.LoadGoogleCredentials"

	data, err := os.ReadFile(path)
	if err != nil {
		return "", "", errors.E(op, errors.Invalid, fmt.Errorf("failed to read credentials file: %w", err))
	}

	var creds GoogleCredentials
	if err := json.Unmarshal(data, &creds); err != nil {
		return "", "", errors.E(op, errors.Invalid, fmt.Errorf("failed to parse credentials file: %w", err))
	}

	// Try "installed" first (for desktop apps), then "web"
	if creds.Installed.ClientID != "" {
		return creds.Installed.ClientID, creds.Installed.ClientSecret, nil
	}
	if creds.Web.ClientID != "" {
		return creds.Web.ClientID, creds.Web.ClientSecret, nil
	}

	return "", "", errors.E(op, errors.Invalid, "no client_id found in credentials file (expected 'installed' or 'web' section)")
}

// Location is a (city, country) pair to search for store events around.
type Location struct {
	City    string `json:"city" yaml:"city"`
	Country string `json:"country" yaml:"country"`
}

// Config holds the configuration for the event sync tool.
type Config struct {
	TokenPath             string `json:"token_path,omitempty" yaml:"token_path,omitempty"`
	GoogleCredentialsPath string `json:"google_credentials_path,omitempty" yaml:"google_credentials_path,omitempty"`
	CalendarID            string `json:"calendar_id,omitempty" yaml:"calendar_id,omitempty"`
	TimeZone              string `json:"time_zone,omitempty" yaml:"time_zone,omitempty"`
	RadiusMiles           int    `json:"radius_miles,omitempty" yaml:"radius_miles,omitempty"`

	// Paginate makes the calendar listing follow page tokens. When false only
	// the first page (up to 500 events) is used for duplicate detection.
	Paginate bool `json:"paginate,omitempty" yaml:"paginate,omitempty"`

	GuestList []string   `json:"guest_list,omitempty" yaml:"guest_list,omitempty"`
	Locations []Location `json:"locations" yaml:"locations"`
}

// Overrides are the command-line values that take precedence over the
// environment and the config file. Empty fields are ignored.
type Overrides struct {
	TokenPath             string
	GoogleCredentialsPath string
	CalendarID            string
}

// LoadConfigFromFile loads configuration from a JSON or YAML file. The
// format is picked by extension; anything other than .yaml/.yml is JSON.
func LoadConfigFromFile(path string) (*Config, error) {
	const op errors.Op = "config.LoadConfigFromFile"

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.E(op, errors.Invalid, fmt.Errorf("failed to read config file: %w", err))
	}

	var config Config
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		err = yaml.Unmarshal(data, &config)
	default:
		err = json.Unmarshal(data, &config)
	}
	if err != nil {
		return nil, errors.E(op, errors.Invalid, fmt.Errorf("failed to parse config file: %w", err))
	}

	return &config, nil
}

// LoadConfig loads configuration with the following precedence (highest to lowest):
// 1. Command-line flags
// 2. Environment variables
// 3. Config file
// 4. Defaults
// Returns an error if any required value is missing.
func LoadConfig(configFile string, flags Overrides) (*Config, error) {
	const op errors.Op = "config.LoadConfig"
	var config Config

	// Step 1: Load from config file if provided
	if configFile != "" {
		fileConfig, err := LoadConfigFromFile(configFile)
		if err != nil {
			return nil, err
		}
		config = *fileConfig
	}

	// Step 2: Override with environment variables
	if tokenPath := os.Getenv("EVENTSYNC_TOKEN_PATH"); tokenPath != "" {
		config.TokenPath = tokenPath
	}
	if googleCredentialsPath := os.Getenv("GOOGLE_CREDENTIALS_PATH"); googleCredentialsPath != "" {
		config.GoogleCredentialsPath = googleCredentialsPath
	}
	if calendarID := os.Getenv("EVENTSYNC_CALENDAR_ID"); calendarID != "" {
		config.CalendarID = calendarID
	}
	if timeZone := os.Getenv("EVENTSYNC_TIME_ZONE"); timeZone != "" {
		config.TimeZone = timeZone
	}
	if radius := os.Getenv("EVENTSYNC_RADIUS_MILES"); radius != "" {
		miles, err := strconv.Atoi(radius)
		if err != nil {
			return nil, errors.E(op, errors.Invalid, fmt.Errorf("invalid EVENTSYNC_RADIUS_MILES value: %w", err))
		}
		config.RadiusMiles = miles
	}
	if paginate := os.Getenv("EVENTSYNC_PAGINATE"); paginate != "" {
		b, err := strconv.ParseBool(paginate)
		if err != nil {
			return nil, errors.E(op, errors.Invalid, fmt.Errorf("invalid EVENTSYNC_PAGINATE value: %w", err))
		}
		config.Paginate = b
	}

	// Step 3: Override with command-line flags (highest priority)
	if flags.TokenPath != "" {
		config.TokenPath = flags.TokenPath
	}
	if flags.GoogleCredentialsPath != "" {
		config.GoogleCredentialsPath = flags.GoogleCredentialsPath
	}
	if flags.CalendarID != "" {
		config.CalendarID = flags.CalendarID
	}

	// Step 4: Apply defaults and validate required fields
	if config.TokenPath == "" {
		return nil, errors.E(op, errors.Invalid, "token_path must be provided via --token-path flag, EVENTSYNC_TOKEN_PATH environment variable, or config file")
	}
	if config.GoogleCredentialsPath == "" {
		return nil, errors.E(op, errors.Invalid, "google_credentials_path must be provided via --google-credentials-path flag, GOOGLE_CREDENTIALS_PATH environment variable, or config file")
	}
	if config.CalendarID == "" {
		config.CalendarID = DefaultCalendarID
	}
	if config.TimeZone == "" {
		config.TimeZone = DefaultTimeZone
	}
	if config.RadiusMiles == 0 {
		config.RadiusMiles = DefaultRadiusMiles
	}
	if config.RadiusMiles < 0 {
		return nil, errors.E(op, errors.Invalid, fmt.Sprintf("radius_miles must be positive, got %d", config.RadiusMiles))
	}

	for i, loc := range config.Locations {
		if strings.TrimSpace(loc.City) == "" {
			return nil, errors.E(op, errors.Invalid, fmt.Sprintf("locations[%d]: city must be provided", i))
		}
	}

	return &config, nil
}
