package boundary

import (
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/BurntSushi/toml"

	"github.com/pearlryder/CellProfiler/comm"
)

// Options configures one router instance.
type Options struct {
	// RequestBind and AnnounceBind are listen specs; port 0 resolves at
	// Start.
	RequestBind  string
	AnnounceBind string

	// Heartbeat bounds the announce interval: a subscriber converges to
	// the current registry within one heartbeat even if it missed the
	// change notification.
	Heartbeat time.Duration

	// JoinTimeout bounds how long Shutdown waits for the I/O goroutine.
	JoinTimeout time.Duration

	Limits comm.Limits

	// DebugAddr enables the operational HTTP surface when non-empty.
	DebugAddr        string
	DebugCORSOrigins []string
}

func DefaultOptions() Options {
	return Options{
		RequestBind:  "127.0.0.1:0",
		AnnounceBind: "127.0.0.1:0",
		Heartbeat:    time.Second,
		JoinTimeout:  5 * time.Second,
		Limits:       comm.DefaultLimits(),
	}
}

// boundary config.toml key mapping to router options.
type fileConfig struct {
	RequestBind   string   `toml:"request_bind"`
	AnnounceBind  string   `toml:"announce_bind"`
	Heartbeat     string   `toml:"heartbeat"`
	JoinTimeout   string   `toml:"join_timeout"`
	MaxFrames     int      `toml:"max_frames"`
	MaxFrameBytes int64    `toml:"max_frame_bytes"`
	DebugAddr     string   `toml:"debug_addr"`
	DebugCORS     []string `toml:"debug_cors_origins"`
}

// LoadOptions overlays a TOML file onto the defaults. Only keys the
// file defines are applied.
func LoadOptions(path string) (Options, error) {
	opts := DefaultOptions()

	var raw fileConfig
	meta, err := toml.DecodeFile(path, &raw)
	if err != nil {
		return Options{}, fmt.Errorf("load boundary config: %w", err)
	}

	if meta.IsDefined("request_bind") {
		opts.RequestBind = strings.TrimSpace(raw.RequestBind)
	}
	if meta.IsDefined("announce_bind") {
		opts.AnnounceBind = strings.TrimSpace(raw.AnnounceBind)
	}
	if meta.IsDefined("heartbeat") {
		d, err := time.ParseDuration(strings.TrimSpace(raw.Heartbeat))
		if err != nil {
			return Options{}, fmt.Errorf("load boundary config: heartbeat: %w", err)
		}
		if d <= 0 {
			return Options{}, fmt.Errorf("load boundary config: heartbeat must be positive")
		}
		opts.Heartbeat = d
	}
	if meta.IsDefined("join_timeout") {
		d, err := time.ParseDuration(strings.TrimSpace(raw.JoinTimeout))
		if err != nil {
			return Options{}, fmt.Errorf("load boundary config: join_timeout: %w", err)
		}
		opts.JoinTimeout = d
	}
	if meta.IsDefined("max_frames") {
		if raw.MaxFrames <= 0 {
			return Options{}, fmt.Errorf("load boundary config: max_frames must be positive")
		}
		opts.Limits.MaxFrames = raw.MaxFrames
	}
	if meta.IsDefined("max_frame_bytes") {
		if raw.MaxFrameBytes <= 0 {
			return Options{}, fmt.Errorf("load boundary config: max_frame_bytes must be positive")
		}
		if raw.MaxFrameBytes > math.MaxUint32 {
			return Options{}, fmt.Errorf("load boundary config: max_frame_bytes exceeds %d", uint32(math.MaxUint32))
		}
		opts.Limits.MaxFrameBytes = uint32(raw.MaxFrameBytes)
	}
	if meta.IsDefined("debug_addr") {
		opts.DebugAddr = strings.TrimSpace(raw.DebugAddr)
	}
	if meta.IsDefined("debug_cors_origins") {
		origins := make([]string, 0, len(raw.DebugCORS))
		for _, entry := range raw.DebugCORS {
			if origin := strings.TrimSpace(entry); origin != "" {
				origins = append(origins, origin)
			}
		}
		opts.DebugCORSOrigins = origins
	}

	return opts, nil
}
