package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPipeline(t *testing.T) {
	t.Parallel()

	reg := prometheus.NewRegistry()
	p, err := NewPipeline(reg)
	require.NoError(t, err)

	p.SessionEnded(ModeLive, "DONE")
	p.SessionEnded(ModeLive, "DONE")
	p.SessionEnded(ModeSimulated, "FAILED")
	p.StageCompleted("COMPILING", 300*time.Millisecond)
	p.CompileCacheHit()

	assert.InDelta(t, 2, testutil.ToFloat64(p.sessions.WithLabelValues(ModeLive, "DONE")), 0)
	assert.InDelta(t, 1, testutil.ToFloat64(p.sessions.WithLabelValues(ModeSimulated, "FAILED")), 0)
	assert.InDelta(t, 1, testutil.ToFloat64(p.cacheHits), 0)
	assert.Equal(t, 1, testutil.CollectAndCount(p.stageDuration))
}

func TestNewPipeline_DuplicateRegistration(t *testing.T) {
	t.Parallel()

	reg := prometheus.NewRegistry()
	_, err := NewPipeline(reg)
	require.NoError(t, err)

	_, err = NewPipeline(reg)
	require.Error(t, err)
}

func TestPipeline_Nil(t *testing.T) {
	t.Parallel()

	var p *Pipeline
	assert.NotPanics(t, func() {
		p.SessionEnded(ModeLive, "DONE")
		p.StageCompleted("COMPILING", time.Second)
		p.CompileCacheHit()
	})
}
