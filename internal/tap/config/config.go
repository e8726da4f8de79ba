// Package config loads the tap orchestrator's configuration from
// flags with environment-variable overrides, following the teacher's
// internal/signaling/config and internal/ui/config loaders.
package config

import (
	"flag"
	"os"
	"strconv"
)

// Config holds the orchestrator's runtime configuration.
type Config struct {
	HTTPBindAddr string
	HTTPPort     int

	CTLBaseURL string
	CTLUser    string
	CTLPass    string
	CTLPrefix  string
	AppName    string // stasis application name

	ExternalMediaPrefix string // channel name prefix identifying re-entrant external-media channels
	ExternalMediaFormat string // e.g. "slin16"

	FGWBaseURL string // e.g. http://fgw:8081
	FGWRTPHost string // RTP host advertised to the PBX for the framed backend
	PortMin    int
	PortMax    int

	SGWBaseURL     string // e.g. http://sgw:8082, used for /register,/unregister
	SGWRTPHostIn   string // host:port the PBX should send "in" direction RTP to
	SGWRTPHostOut  string // host:port the PBX should send "out" direction RTP to

	BridgeAddRetryAttempts int
	BridgeAddRetryDelayMS  int

	LogLevel string
}

// Load reads flags, then applies environment overrides, matching the
// teacher's config.Load pattern.
func Load() *Config {
	cfg := &Config{
		ExternalMediaPrefix:    "UnicastRTP/",
		ExternalMediaFormat:    "slin16",
		BridgeAddRetryAttempts: 5,
		BridgeAddRetryDelayMS:  200,
	}

	flag.StringVar(&cfg.HTTPBindAddr, "http-bind", "0.0.0.0", "HTTP control bind address")
	flag.IntVar(&cfg.HTTPPort, "http-port", 8080, "HTTP control port")
	flag.StringVar(&cfg.CTLBaseURL, "ctl-base-url", "http://localhost:8088", "PBX stasis control API base URL")
	flag.StringVar(&cfg.CTLUser, "ctl-user", "", "PBX stasis control API username")
	flag.StringVar(&cfg.CTLPass, "ctl-pass", "", "PBX stasis control API password")
	flag.StringVar(&cfg.CTLPrefix, "ctl-prefix", "/ari", "PBX stasis control API path prefix")
	flag.StringVar(&cfg.AppName, "app-name", "calltap", "stasis application name")
	flag.StringVar(&cfg.FGWBaseURL, "fgw-base-url", "http://localhost:8081", "framed gateway base URL")
	flag.StringVar(&cfg.FGWRTPHost, "fgw-rtp-host", "", "RTP host advertised to the PBX for the framed backend")
	flag.IntVar(&cfg.PortMin, "port-min", 30000, "minimum RTP port (inclusive)")
	flag.IntVar(&cfg.PortMax, "port-max", 30999, "maximum RTP port (inclusive)")
	flag.StringVar(&cfg.SGWBaseURL, "sgw-base-url", "http://localhost:8082", "streaming gateway base URL")
	flag.StringVar(&cfg.SGWRTPHostIn, "sgw-rtp-host-in", "", "host:port the PBX sends 'in' direction RTP to")
	flag.StringVar(&cfg.SGWRTPHostOut, "sgw-rtp-host-out", "", "host:port the PBX sends 'out' direction RTP to")
	flag.StringVar(&cfg.LogLevel, "loglevel", "info", "log level (debug, info, warn, error)")
	flag.Parse()

	if v := os.Getenv("TAP_HTTP_PORT"); v != "" {
		if p, err := strconv.Atoi(v); err == nil {
			cfg.HTTPPort = p
		}
	}
	if v := os.Getenv("TAP_CTL_BASE_URL"); v != "" {
		cfg.CTLBaseURL = v
	}
	if v := os.Getenv("TAP_CTL_USER"); v != "" {
		cfg.CTLUser = v
	}
	if v := os.Getenv("TAP_CTL_PASS"); v != "" {
		cfg.CTLPass = v
	}
	if v := os.Getenv("TAP_APP_NAME"); v != "" {
		cfg.AppName = v
	}
	if v := os.Getenv("TAP_FGW_BASE_URL"); v != "" {
		cfg.FGWBaseURL = v
	}
	if v := os.Getenv("TAP_SGW_BASE_URL"); v != "" {
		cfg.SGWBaseURL = v
	}
	if v := os.Getenv("TAP_LOGLEVEL"); v != "" {
		cfg.LogLevel = v
	}

	return cfg
}
