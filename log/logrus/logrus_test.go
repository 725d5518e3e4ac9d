package logrus

import (
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/unkn0wn-root/rwcache"
)

func TestLoggerForwardsFieldsAndLevel(t *testing.T) {
	base, hook := test.NewNullLogger()
	base.SetLevel(logrus.DebugLevel)
	l := New(base, "blog")

	l.Warn("corrupt entry", rwcache.Fields{"key": "5", "reason": "wire"})

	require.Len(t, hook.Entries, 1)
	e := hook.LastEntry()
	assert.Equal(t, logrus.WarnLevel, e.Level)
	assert.Equal(t, "corrupt entry", e.Message)
	assert.Equal(t, "5", e.Data["key"])
	assert.Equal(t, "blog", e.Data["cache"])

	l.Debug("no fields", nil)
	assert.Len(t, hook.Entries, 2)
}
