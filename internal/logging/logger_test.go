package logging

import (
	"context"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
)

func TestParseLevel(t *testing.T) {
	tests := []struct {
		input string
		want  zerolog.Level
	}{
		{"trace", zerolog.TraceLevel},
		{"debug", zerolog.DebugLevel},
		{"info", zerolog.InfoLevel},
		{"warn", zerolog.WarnLevel},
		{"error", zerolog.ErrorLevel},
		{"bogus", zerolog.InfoLevel},
		{"", zerolog.InfoLevel},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, ParseLevel(tt.input), "level %q", tt.input)
	}
}

func TestNewHonorsLevel(t *testing.T) {
	log := New(Config{Level: zerolog.WarnLevel, Format: "json"})
	assert.Equal(t, zerolog.WarnLevel, log.GetLevel())
}

func TestContextRoundtrip(t *testing.T) {
	log := New(Config{Level: zerolog.DebugLevel, Format: "json"})

	ctx := WithContext(context.Background(), log)
	got := FromContext(ctx)
	assert.Equal(t, zerolog.DebugLevel, got.GetLevel())

	// Without a logger attached, zerolog hands back a disabled one.
	empty := FromContext(context.Background())
	assert.Equal(t, zerolog.Disabled, empty.GetLevel())
}

func TestNewFromEnv(t *testing.T) {
	t.Setenv("SESSIONKIT_LOG_LEVEL", "error")
	t.Setenv("SESSIONKIT_LOG_FORMAT", "json")

	log := NewFromEnv()
	assert.Equal(t, zerolog.ErrorLevel, log.GetLevel())
}
