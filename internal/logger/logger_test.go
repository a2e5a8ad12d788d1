package logger

import (
	"bytes"
	"context"
	"encoding/json"
	"strings"
	"testing"

	"github.com/rs/zerolog"
)

func TestNew(t *testing.T) {
	log := New()
	if log.GetLevel() != zerolog.InfoLevel {
		t.Errorf("Expected info level, got %s", log.GetLevel())
	}
}

func TestNewWithOptions(t *testing.T) {
	tests := []struct {
		name      string
		opts      Options
		wantLevel zerolog.Level
	}{
		{name: "defaults", opts: Options{}, wantLevel: zerolog.InfoLevel},
		{name: "debug", opts: Options{Level: "debug"}, wantLevel: zerolog.DebugLevel},
		{name: "upper case warn", opts: Options{Level: " WARN "}, wantLevel: zerolog.WarnLevel},
		{name: "unknown level", opts: Options{Level: "verbose"}, wantLevel: zerolog.InfoLevel},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tt.opts.Writer = &bytes.Buffer{}
			log := NewWithOptions(tt.opts)
			if log.GetLevel() != tt.wantLevel {
				t.Errorf("level = %s, want %s", log.GetLevel(), tt.wantLevel)
			}
		})
	}
}

func TestNewWithOptions_JSONFormat(t *testing.T) {
	buf := &bytes.Buffer{}
	log := NewWithOptions(Options{Format: FormatJSON, Writer: buf})

	log.Info().Str("session_id", "session_1_abc").Msg("stored")

	var entry map[string]interface{}
	if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
		t.Fatalf("Expected JSON output, got %q: %v", buf.String(), err)
	}
	if entry["session_id"] != "session_1_abc" {
		t.Errorf("Expected session_id field, got %v", entry)
	}
	if _, ok := entry["caller"]; !ok {
		t.Error("Expected caller field")
	}
}

func TestNewWithOptions_ConsoleFormat(t *testing.T) {
	buf := &bytes.Buffer{}
	log := NewWithOptions(Options{Format: FormatConsole, Writer: buf})

	log.Info().Msg("console message")

	if !strings.Contains(buf.String(), "console message") {
		t.Errorf("Expected output to contain 'console message', got: %s", buf.String())
	}
	if json.Valid(buf.Bytes()) {
		t.Error("Expected human-readable output, got JSON")
	}
}

func TestNewWithWriter(t *testing.T) {
	buf := &bytes.Buffer{}
	log := NewWithWriter(buf)

	log.Info().Msg("test message")

	if !strings.Contains(buf.String(), "test message") {
		t.Errorf("Expected output to contain 'test message', got: %s", buf.String())
	}
}

func TestFromContext(t *testing.T) {
	buf := &bytes.Buffer{}
	testLog := NewWithWriter(buf)
	ctx := WithContext(context.Background(), testLog)

	retrievedLog := FromContext(ctx)
	retrievedLog.Info().Msg("test")

	if buf.Len() == 0 {
		t.Error("Expected log output from retrieved logger")
	}
}

func TestFromContext_DefaultLogger(t *testing.T) {
	log := FromContext(context.Background())

	if log.GetLevel() == zerolog.Disabled {
		t.Error("Expected default logger to be enabled")
	}
}

func TestFromContextOr(t *testing.T) {
	ctxBuf := &bytes.Buffer{}
	fallbackBuf := &bytes.Buffer{}
	fallback := NewWithWriter(fallbackBuf)

	fallbackLog := FromContextOr(context.Background(), fallback)
	fallbackLog.Info().Msg("fallback")
	if fallbackBuf.Len() == 0 {
		t.Error("Expected fallback logger when the context has none")
	}

	ctx := WithContext(context.Background(), NewWithWriter(ctxBuf))
	ctxLog := FromContextOr(ctx, fallback)
	ctxLog.Info().Msg("request")
	if ctxBuf.Len() == 0 {
		t.Error("Expected context logger to be preferred")
	}
}

func TestWithFields(t *testing.T) {
	buf := &bytes.Buffer{}
	log := NewWithWriter(buf)

	logWithFields := WithFields(log, map[string]interface{}{
		"request_id": "123",
		"filename":   "bs.xlsx",
	})
	logWithFields.Info().Msg("test message")

	output := buf.String()
	if !strings.Contains(output, `"request_id":"123"`) {
		t.Errorf("Expected output to contain request_id field, got: %s", output)
	}
	if !strings.Contains(output, `"filename":"bs.xlsx"`) {
		t.Errorf("Expected output to contain filename field, got: %s", output)
	}
}
