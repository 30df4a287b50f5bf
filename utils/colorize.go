package utils

import (
	"fmt"
	"strings"
	"sync/atomic"
)

var noColorize atomic.Bool

// SetNoColorize toggles colouring of all pretty-printed output.
func SetNoColorize(b bool) {
	noColorize.Store(b)
}

// CanColorize wraps a colouring function so that it degrades to plain
// formatting when colouring is disabled.
func CanColorize(col func(...interface{}) string) func(...interface{}) string {
	return func(is ...interface{}) string {
		if noColorize.Load() {
			return fmt.Sprintf(strings.Repeat("%v", len(is)), is...)
		}
		return col(is...)
	}
}
