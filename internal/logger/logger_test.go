package logger

import (
	"bytes"
	"log"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func captureOutput(t *testing.T) *bytes.Buffer {
	t.Helper()
	var buf bytes.Buffer
	log.SetOutput(&buf)
	t.Cleanup(func() {
		log.SetOutput(os.Stderr)
		SetVerbosity(int(Info))
	})
	return &buf
}

func TestVerbosityFiltersLevels(t *testing.T) {
	buf := captureOutput(t)
	SetVerbosity(int(Info))

	Errorf("e %d", 1)
	Infof("i %d", 2)
	Debugf("d %d", 3)
	Tracef("t %d", 4)

	out := buf.String()
	for _, want := range []string{"[ERROR] e 1", "[INFO]  i 2"} {
		if !strings.Contains(out, want) {
			t.Fatalf("missing %q in %q", want, out)
		}
	}
	for _, unwanted := range []string{"d 3", "t 4"} {
		if strings.Contains(out, unwanted) {
			t.Fatalf("unexpected %q in %q", unwanted, out)
		}
	}
}

func TestLogLinePointsAtCaller(t *testing.T) {
	buf := captureOutput(t)
	Infof("where am I")
	if !strings.Contains(buf.String(), "logger_test.go") {
		t.Fatalf("expected caller file in %q", buf.String())
	}
}

func TestSetVerbosityClamps(t *testing.T) {
	t.Cleanup(func() { SetVerbosity(int(Info)) })

	SetVerbosity(42)
	if Verbosity() != Trace {
		t.Fatalf("got %v, want Trace", Verbosity())
	}
	SetVerbosity(-3)
	if Verbosity() != Error {
		t.Fatalf("got %v, want Error", Verbosity())
	}
}

func TestConfigureWritesFile(t *testing.T) {
	t.Cleanup(func() {
		log.SetOutput(os.Stderr)
		SetVerbosity(int(Info))
	})
	path := filepath.Join(t.TempDir(), "ivcalc.log")

	closer, err := Configure(Options{Verbosity: int(Debug), File: path, MaxSizeMB: 1})
	if err != nil {
		t.Fatalf("configure: %v", err)
	}
	Debugf("to file")
	if err := closer.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}

	b, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read log file: %v", err)
	}
	if !strings.Contains(string(b), "[DEBUG] to file") {
		t.Fatalf("log file content %q", string(b))
	}
}
