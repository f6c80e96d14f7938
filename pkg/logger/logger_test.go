package logger

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zapcore"
)

func Test_TestObserved_NamedWith(t *testing.T) {
	t.Parallel()

	lggr, logs := TestObserved(t, zapcore.InfoLevel)
	child := lggr.Named("orchestrator").With("session", "abc")

	child.Debugw("hidden")
	child.Infow("state changed", "state", "COMPILING")

	require.Equal(t, 1, logs.Len())
	entry := logs.All()[0]
	assert.Equal(t, "state changed", entry.Message)
	assert.Equal(t, "abc", entry.ContextMap()["session"])
	assert.Equal(t, "COMPILING", entry.ContextMap()["state"])
	assert.Contains(t, child.Name(), "orchestrator")
}

func Test_ParseLevel(t *testing.T) {
	t.Parallel()

	tests := []struct {
		give    string
		want    zapcore.Level
		wantErr bool
	}{
		{give: "", want: zapcore.InfoLevel},
		{give: "debug", want: zapcore.DebugLevel},
		{give: "warn", want: zapcore.WarnLevel},
		{give: "loud", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.give, func(t *testing.T) {
			t.Parallel()

			got, err := ParseLevel(tt.give)
			if tt.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func Test_New(t *testing.T) {
	t.Parallel()

	cfg := Config{Level: zapcore.WarnLevel, Development: true}
	lggr, err := cfg.New()
	require.NoError(t, err)
	require.NotNil(t, lggr)

	assert.NotNil(t, Nop())
}
