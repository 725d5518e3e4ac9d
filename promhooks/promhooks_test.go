package promhooks

import (
	"errors"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	promclient "github.com/prometheus/client_model/go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func value(t *testing.T, c prometheus.Counter) float64 {
	t.Helper()
	m := &promclient.Metric{}
	require.NoError(t, c.Write(m))
	return m.GetCounter().GetValue()
}

func TestHooksCountEvents(t *testing.T) {
	h := New(prometheus.NewRegistry())

	h.CorruptEntry("blog:5", "wire")
	h.CorruptEntry("blog:6", "wire")
	h.CorruptEntry("blog:count", "counter")
	h.CounterUpdateFailed("remove", 2, errors.New("down"))
	h.VersionStoreError("blog:1", errors.New("down"))
	h.CollectionGap("blog", 10, 7)
	h.CollectionGap("blog", 3, 3)
	h.Relocated("blog", 9, 1)

	assert.Equal(t, 2.0, value(t, h.corrupt.WithLabelValues("wire")))
	assert.Equal(t, 1.0, value(t, h.corrupt.WithLabelValues("counter")))
	assert.Equal(t, 1.0, value(t, h.counterFailed.WithLabelValues("remove")))
	assert.Equal(t, 1.0, value(t, h.versionErrors))
	assert.Equal(t, 2.0, value(t, h.gaps.WithLabelValues("blog")))
	assert.Equal(t, 3.0, value(t, h.missingEntries.WithLabelValues("blog")))
	assert.Equal(t, 1.0, value(t, h.relocations.WithLabelValues("blog")))
}

func TestDuplicateRegistrationPanics(t *testing.T) {
	reg := prometheus.NewRegistry()
	New(reg)
	assert.Panics(t, func() { New(reg) })
}
