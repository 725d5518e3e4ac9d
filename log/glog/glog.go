// Package glog adapts github.com/golang/glog to rwcache.Logger. Debug records go
// to verbosity level V(2).
package glog

import (
	"fmt"
	"sort"
	"strings"

	"github.com/golang/glog"

	"github.com/unkn0wn-root/rwcache"
)

var _ rwcache.Logger = Logger{}

type Logger struct{}

func (Logger) Debug(msg string, f rwcache.Fields) {
	if glog.V(2) {
		glog.InfoDepth(1, format(msg, f))
	}
}
func (Logger) Info(msg string, f rwcache.Fields)  { glog.InfoDepth(1, format(msg, f)) }
func (Logger) Warn(msg string, f rwcache.Fields)  { glog.WarningDepth(1, format(msg, f)) }
func (Logger) Error(msg string, f rwcache.Fields) { glog.ErrorDepth(1, format(msg, f)) }

func format(msg string, f rwcache.Fields) string {
	if len(f) == 0 {
		return msg
	}
	keys := make([]string, 0, len(f))
	for k := range f {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var b strings.Builder
	b.WriteString(msg)
	for _, k := range keys {
		fmt.Fprintf(&b, " %s=%v", k, f[k])
	}
	return b.String()
}
