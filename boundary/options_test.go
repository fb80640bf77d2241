package boundary

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "boundary.toml")
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func TestLoadOptionsOverlay(t *testing.T) {
	path := writeConfig(t, `
request_bind = "127.0.0.1:9410"
heartbeat = "250ms"
max_frames = 32
debug_addr = "127.0.0.1:9411"
debug_cors_origins = ["http://localhost:3000", "  "]
`)
	opts, err := LoadOptions(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if opts.RequestBind != "127.0.0.1:9410" {
		t.Fatalf("request_bind: %q", opts.RequestBind)
	}
	if opts.Heartbeat != 250*time.Millisecond {
		t.Fatalf("heartbeat: %v", opts.Heartbeat)
	}
	if opts.Limits.MaxFrames != 32 {
		t.Fatalf("max_frames: %d", opts.Limits.MaxFrames)
	}
	if opts.DebugAddr != "127.0.0.1:9411" {
		t.Fatalf("debug_addr: %q", opts.DebugAddr)
	}
	if len(opts.DebugCORSOrigins) != 1 || opts.DebugCORSOrigins[0] != "http://localhost:3000" {
		t.Fatalf("cors origins: %v", opts.DebugCORSOrigins)
	}

	// Undefined keys keep their defaults.
	def := DefaultOptions()
	if opts.AnnounceBind != def.AnnounceBind {
		t.Fatalf("announce_bind: %q", opts.AnnounceBind)
	}
	if opts.JoinTimeout != def.JoinTimeout {
		t.Fatalf("join_timeout: %v", opts.JoinTimeout)
	}
	if opts.Limits.MaxFrameBytes != def.Limits.MaxFrameBytes {
		t.Fatalf("max_frame_bytes: %d", opts.Limits.MaxFrameBytes)
	}
}

func TestLoadOptionsBadHeartbeat(t *testing.T) {
	path := writeConfig(t, `heartbeat = "soon"`)
	if _, err := LoadOptions(path); err == nil {
		t.Fatalf("expected error for unparsable heartbeat")
	}
	path = writeConfig(t, `heartbeat = "-1s"`)
	if _, err := LoadOptions(path); err == nil {
		t.Fatalf("expected error for negative heartbeat")
	}
}

func TestLoadOptionsFrameBytesRange(t *testing.T) {
	path := writeConfig(t, `max_frame_bytes = 5000000000`)
	if _, err := LoadOptions(path); err == nil {
		t.Fatalf("expected error for max_frame_bytes beyond uint32 range")
	}
	path = writeConfig(t, `max_frame_bytes = -1`)
	if _, err := LoadOptions(path); err == nil {
		t.Fatalf("expected error for negative max_frame_bytes")
	}
}

func TestLoadOptionsMissingFile(t *testing.T) {
	if _, err := LoadOptions(filepath.Join(t.TempDir(), "absent.toml")); err == nil {
		t.Fatalf("expected error for missing file")
	}
}
