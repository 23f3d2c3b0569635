package logger

import (
	"bytes"
	"strings"
	"testing"
)

func TestEpochThrottling(t *testing.T) {
	lg := New(100, 10)
	var buf bytes.Buffer
	lg.SetOutput(&buf)

	lg.LogTrainStart()
	buf.Reset()
	for epoch := 0; epoch < 20; epoch++ {
		lg.LogTrainEpoch(epoch, 1.0)
	}

	if got := strings.Count(buf.String(), "\n"); got != 2 {
		t.Errorf("emitted %d epoch reports, want 2 (epochs 0 and 10)", got)
	}
}

func TestEveryEpochWhenUnthrottled(t *testing.T) {
	lg := New(5, 0)
	var buf bytes.Buffer
	lg.SetOutput(&buf)

	lg.LogTrainStart()
	buf.Reset()
	for epoch := 0; epoch < 5; epoch++ {
		lg.LogTrainEpoch(epoch, 0.5)
	}
	if got := strings.Count(buf.String(), "loss"); got != 5 {
		t.Errorf("emitted %d reports, want 5", got)
	}
}

func TestErrorCallbackLogged(t *testing.T) {
	lg := New(10, 1)
	var buf bytes.Buffer
	lg.SetOutput(&buf)
	calls := 0
	lg.SetErrorFn(func() float64 {
		calls++
		return 0.123
	})

	lg.LogTrainStart()
	lg.LogTrainEpoch(0, 2.0)
	lg.LogTrainEnd(10, 1.0)

	if calls != 2 {
		t.Errorf("error callback evaluated %d times, want 2", calls)
	}
	if !strings.Contains(buf.String(), "val_err") {
		t.Error("val_err field missing from output")
	}
}
