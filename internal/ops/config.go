// Package ops loads and resolves the daemon's JSON configuration.
// FileConfig mirrors the file layout; Loaded carries validated values
// with defaults applied, ready to hand to the multiplexer.
package ops

import (
	"encoding/json"
	"fmt"
	"os"
	"time"

	"main/pkg/websocket"
)

const (
	defaultListenAddr       = ":8080"
	defaultQueueSize        = 256
	defaultHandshakeTimeout = 5 * time.Second
	defaultRecentLimit      = 50
)

// FileConfig mirrors the JSON config layout.
type FileConfig struct {
	Listen  ListenConfig  `json:"listen"`
	Control ControlConfig `json:"control"`
	Limits  LimitsConfig  `json:"limits"`
	History HistoryConfig `json:"history"`
}

// ListenConfig defines the public endpoint.
type ListenConfig struct {
	Addr string `json:"addr"`
}

// ControlConfig defines the local admin surface.
type ControlConfig struct {
	SocketPath string `json:"socketPath"`
}

// LimitsConfig captures optional runtime limits. Pointers distinguish
// "absent" from an explicit zero.
type LimitsConfig struct {
	MaxPayload         *int `json:"maxPayload"`
	QueueSize          *int `json:"queueSize"`
	HandshakeTimeoutMs *int `json:"handshakeTimeoutMs"`
}

// HistoryConfig describes the optional Postgres message history.
type HistoryConfig struct {
	Enabled     bool   `json:"enabled"`
	Host        string `json:"host"`
	Port        int    `json:"port"`
	User        string `json:"user"`
	Password    string `json:"password"`
	Database    string `json:"database"`
	SSLMode     string `json:"sslMode"`
	RecentLimit int    `json:"recentLimit"`
}

// Limits are the resolved runtime limits.
type Limits struct {
	MaxPayload       int
	QueueSize        int
	HandshakeTimeout time.Duration
}

// Loaded is the resolved configuration ready for use.
type Loaded struct {
	ListenAddr    string
	ControlSocket string
	Limits        Limits
	History       HistoryConfig
}

// Default returns the configuration used when no file is given.
func Default() Loaded {
	return Loaded{
		ListenAddr: defaultListenAddr,
		Limits: Limits{
			MaxPayload:       websocket.MaxPayload,
			QueueSize:        defaultQueueSize,
			HandshakeTimeout: defaultHandshakeTimeout,
		},
		History: HistoryConfig{RecentLimit: defaultRecentLimit},
	}
}

// Load reads a JSON config file and resolves it.
func Load(path string) (Loaded, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Loaded{}, err
	}
	var cfg FileConfig
	if err := json.Unmarshal(data, &cfg); err != nil {
		return Loaded{}, err
	}
	limits, err := resolveLimits(cfg.Limits)
	if err != nil {
		return Loaded{}, err
	}
	history, err := resolveHistory(cfg.History)
	if err != nil {
		return Loaded{}, err
	}
	loaded := Loaded{
		ListenAddr:    cfg.Listen.Addr,
		ControlSocket: cfg.Control.SocketPath,
		Limits:        limits,
		History:       history,
	}
	if loaded.ListenAddr == "" {
		loaded.ListenAddr = defaultListenAddr
	}
	return loaded, nil
}

func resolveLimits(cfg LimitsConfig) (Limits, error) {
	limits := Limits{
		MaxPayload:       websocket.MaxPayload,
		QueueSize:        defaultQueueSize,
		HandshakeTimeout: defaultHandshakeTimeout,
	}
	if cfg.MaxPayload != nil {
		if *cfg.MaxPayload <= 0 || *cfg.MaxPayload > websocket.MaxPayload {
			return Limits{}, fmt.Errorf("maxPayload must be in (0, %d]", websocket.MaxPayload)
		}
		limits.MaxPayload = *cfg.MaxPayload
	}
	if cfg.QueueSize != nil {
		if *cfg.QueueSize <= 0 {
			return Limits{}, fmt.Errorf("queueSize must be > 0")
		}
		limits.QueueSize = *cfg.QueueSize
	}
	if cfg.HandshakeTimeoutMs != nil {
		if *cfg.HandshakeTimeoutMs <= 0 {
			return Limits{}, fmt.Errorf("handshakeTimeoutMs must be > 0")
		}
		limits.HandshakeTimeout = time.Duration(*cfg.HandshakeTimeoutMs) * time.Millisecond
	}
	return limits, nil
}

func resolveHistory(cfg HistoryConfig) (HistoryConfig, error) {
	if cfg.RecentLimit < 0 {
		return HistoryConfig{}, fmt.Errorf("recentLimit must be >= 0")
	}
	if cfg.RecentLimit == 0 {
		cfg.RecentLimit = defaultRecentLimit
	}
	if !cfg.Enabled {
		return cfg, nil
	}
	if cfg.Database == "" {
		return HistoryConfig{}, fmt.Errorf("history enabled without a database name")
	}
	return cfg, nil
}
