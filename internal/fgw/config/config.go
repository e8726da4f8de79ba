// Package config loads the framed-TCP gateway's configuration from
// flags with environment-variable overrides, following the teacher's
// internal/signaling/config and internal/ui/config loaders.
package config

import (
	"flag"
	"os"
	"strconv"
	"time"
)

// Config holds the framed gateway's runtime configuration.
type Config struct {
	HTTPBindAddr string
	HTTPPort     int

	RTPBindAddr string // address the UDP listeners bind to (spec.md §4.3: "0.0.0.0")
	RTPHost     string // host advertised to the PBX for external-media
	RTPPortMin  int
	RTPPortMax  int

	DownstreamAddr string // TCP peer the gateway forwards framed audio to

	InactivityTimeout time.Duration
	WatchdogInterval  time.Duration

	WavDumpEnabled bool
	WavDumpDir     string
	WavDumpSeconds int

	LogLevel string
}

// Load reads flags, then applies environment overrides, matching the
// teacher's config.Load pattern.
func Load() *Config {
	cfg := &Config{
		InactivityTimeout: 8 * time.Second,
		WatchdogInterval:  2 * time.Second,
		WavDumpSeconds:    5,
	}

	flag.StringVar(&cfg.HTTPBindAddr, "http-bind", "0.0.0.0", "HTTP control bind address")
	flag.IntVar(&cfg.HTTPPort, "http-port", 8081, "HTTP control port")
	flag.StringVar(&cfg.RTPBindAddr, "rtp-bind", "0.0.0.0", "RTP UDP bind address")
	flag.StringVar(&cfg.RTPHost, "rtp-host", "", "RTP host advertised to the PBX")
	flag.IntVar(&cfg.RTPPortMin, "rtp-port-min", 30000, "minimum RTP port (inclusive)")
	flag.IntVar(&cfg.RTPPortMax, "rtp-port-max", 30999, "maximum RTP port (inclusive)")
	flag.StringVar(&cfg.DownstreamAddr, "downstream", "127.0.0.1:9100", "downstream TCP speech backend address")
	flag.BoolVar(&cfg.WavDumpEnabled, "wavdump", false, "enable diagnostic WAV dump of first few seconds of each call")
	flag.StringVar(&cfg.WavDumpDir, "wavdump-dir", "/tmp/fgw-wavdump", "directory for diagnostic WAV dumps")
	flag.StringVar(&cfg.LogLevel, "loglevel", "info", "log level (debug, info, warn, error)")
	flag.Parse()

	if v := os.Getenv("FGW_HTTP_PORT"); v != "" {
		if p, err := strconv.Atoi(v); err == nil {
			cfg.HTTPPort = p
		}
	}
	if v := os.Getenv("FGW_RTP_HOST"); v != "" {
		cfg.RTPHost = v
	}
	if v := os.Getenv("FGW_RTP_PORT_MIN"); v != "" {
		if p, err := strconv.Atoi(v); err == nil {
			cfg.RTPPortMin = p
		}
	}
	if v := os.Getenv("FGW_RTP_PORT_MAX"); v != "" {
		if p, err := strconv.Atoi(v); err == nil {
			cfg.RTPPortMax = p
		}
	}
	if v := os.Getenv("FGW_DOWNSTREAM"); v != "" {
		cfg.DownstreamAddr = v
	}
	if v := os.Getenv("FGW_WAVDUMP"); v != "" {
		cfg.WavDumpEnabled = v == "1" || v == "true"
	}
	if v := os.Getenv("FGW_LOGLEVEL"); v != "" {
		cfg.LogLevel = v
	}
	if cfg.RTPHost == "" {
		cfg.RTPHost = cfg.RTPBindAddr
	}

	return cfg
}
