// Package config loads the streaming gateway's configuration from
// flags with environment-variable overrides, following the teacher's
// internal/signaling/config and internal/ui/config loaders.
package config

import (
	"flag"
	"os"
	"strconv"
	"time"
)

// Config holds the streaming gateway's runtime configuration.
type Config struct {
	HTTPBindAddr string
	HTTPPort     int // widget + control HTTP port

	RTPBindAddrIn  string // direction "in" RTP listen address
	RTPBindAddrOut string // direction "out" RTP listen address

	UpstreamURL   string // cloud speech streaming endpoint base URL
	UpstreamToken string // bearer-style auth token
	Language      string
	InterimResults bool
	Punctuate      bool
	SmartFormat    bool
	Diarize        bool
	ByteSwap       bool // swap PCM sample endianness before forwarding

	SessionCap int // concurrent-session admission cap

	RoleMode string // "caller-in" or "agent-in"

	PendingTTL        time.Duration
	InactivityTimeout time.Duration
	WatchdogInterval  time.Duration
	BootBufferFrames  int

	ReconnectBase time.Duration
	ReconnectMax  time.Duration
	ReconnectJitter time.Duration

	AssistantEnabled    bool
	AssistantEngine     string
	AssistantURL        string
	AssistantAuthHeader string
	AssistantSpeaker    string
	AssistantInterval   time.Duration
	AssistantTailChars  int
	AssistantMinChars   int

	LogLevel string
}

// Load reads flags, then applies environment overrides, matching the
// teacher's config.Load pattern.
func Load() *Config {
	cfg := &Config{
		PendingTTL:        4 * time.Second,
		InactivityTimeout: 8 * time.Second,
		WatchdogInterval:  2 * time.Second,
		BootBufferFrames:  50,
		ReconnectBase:     500 * time.Millisecond,
		ReconnectMax:      8 * time.Second,
		ReconnectJitter:   200 * time.Millisecond,
		AssistantInterval: 10 * time.Second,
		AssistantTailChars: 4000,
		AssistantMinChars:  40,
	}

	flag.StringVar(&cfg.HTTPBindAddr, "http-bind", "0.0.0.0", "HTTP control/widget bind address")
	flag.IntVar(&cfg.HTTPPort, "http-port", 8082, "HTTP control/widget port")
	flag.StringVar(&cfg.RTPBindAddrIn, "rtp-bind-in", "0.0.0.0:40000", "RTP bind address for the 'in' direction")
	flag.StringVar(&cfg.RTPBindAddrOut, "rtp-bind-out", "0.0.0.0:40001", "RTP bind address for the 'out' direction")
	flag.StringVar(&cfg.UpstreamURL, "upstream-url", "", "cloud speech streaming endpoint base URL")
	flag.StringVar(&cfg.UpstreamToken, "upstream-token", "", "bearer-style auth token for the upstream endpoint")
	flag.StringVar(&cfg.Language, "language", "en-US", "speech recognition language")
	flag.BoolVar(&cfg.InterimResults, "interim-results", true, "request interim (non-final) transcripts")
	flag.BoolVar(&cfg.Punctuate, "punctuate", true, "request automatic punctuation")
	flag.BoolVar(&cfg.SmartFormat, "smart-format", true, "request smart formatting")
	flag.BoolVar(&cfg.Diarize, "diarize", false, "request speaker diarization")
	flag.BoolVar(&cfg.ByteSwap, "byteswap", false, "byte-swap PCM samples before forwarding upstream")
	flag.IntVar(&cfg.SessionCap, "session-cap", 200, "maximum concurrent SGW sessions")
	flag.StringVar(&cfg.RoleMode, "role-mode", "caller-in", "role mapping: caller-in or agent-in")
	flag.BoolVar(&cfg.AssistantEnabled, "assistant-enabled", false, "enable generative assistant sampling")
	flag.StringVar(&cfg.AssistantEngine, "assistant-engine", "", "label for the configured assistant engine")
	flag.StringVar(&cfg.AssistantURL, "assistant-url", "", "generative assistant endpoint URL")
	flag.StringVar(&cfg.AssistantAuthHeader, "assistant-auth-header", "", "Authorization header value for assistant requests")
	flag.StringVar(&cfg.AssistantSpeaker, "assistant-speaker", "Assistant", "speaker name published for assistant replies")
	flag.StringVar(&cfg.LogLevel, "loglevel", "info", "log level (debug, info, warn, error)")
	flag.Parse()

	if v := os.Getenv("SGW_HTTP_PORT"); v != "" {
		if p, err := strconv.Atoi(v); err == nil {
			cfg.HTTPPort = p
		}
	}
	if v := os.Getenv("SGW_RTP_BIND_IN"); v != "" {
		cfg.RTPBindAddrIn = v
	}
	if v := os.Getenv("SGW_RTP_BIND_OUT"); v != "" {
		cfg.RTPBindAddrOut = v
	}
	if v := os.Getenv("SGW_UPSTREAM_URL"); v != "" {
		cfg.UpstreamURL = v
	}
	if v := os.Getenv("SGW_UPSTREAM_TOKEN"); v != "" {
		cfg.UpstreamToken = v
	}
	if v := os.Getenv("SGW_SESSION_CAP"); v != "" {
		if p, err := strconv.Atoi(v); err == nil {
			cfg.SessionCap = p
		}
	}
	if v := os.Getenv("SGW_ROLE_MODE"); v != "" {
		cfg.RoleMode = v
	}
	if v := os.Getenv("SGW_BYTESWAP"); v != "" {
		cfg.ByteSwap = v == "1" || v == "true"
	}
	if v := os.Getenv("SGW_ASSISTANT_ENABLED"); v != "" {
		cfg.AssistantEnabled = v == "1" || v == "true"
	}
	if v := os.Getenv("SGW_ASSISTANT_URL"); v != "" {
		cfg.AssistantURL = v
	}
	if v := os.Getenv("SGW_LOGLEVEL"); v != "" {
		cfg.LogLevel = v
	}

	return cfg
}
