package monitoring

import (
	"fmt"
	"testing"
)

func TestSetLogger(t *testing.T) {
	defer SetLogger(nil)

	var captured []string
	SetLogger(func(format string, v ...interface{}) {
		captured = append(captured, fmt.Sprintf(format, v...))
	})

	Logf("received %d packets", 42)
	if len(captured) != 1 || captured[0] != "received 42 packets" {
		t.Errorf("captured = %v", captured)
	}

	SetLogger(nil)
	Logf("should be discarded")
	if len(captured) != 1 {
		t.Errorf("nil logger still captured output: %v", captured)
	}
}

func TestDebugfGating(t *testing.T) {
	defer SetLogger(nil)
	defer SetDebug(false)

	var captured []string
	SetLogger(func(format string, v ...interface{}) {
		captured = append(captured, fmt.Sprintf(format, v...))
	})

	SetDebug(false)
	Debugf("hidden")
	if len(captured) != 0 {
		t.Errorf("Debugf logged while disabled: %v", captured)
	}

	SetDebug(true)
	Debugf("visible %s", "now")
	if len(captured) != 1 || captured[0] != "visible now" {
		t.Errorf("captured = %v", captured)
	}
}
