package glog

import (
	"bytes"
	"strings"
	"testing"

	aglog "github.com/aristanetworks/glog"

	"github.com/jguida941/adaptive-hashmap-core/logger"
)

func TestGlogImplementsLogger(t *testing.T) {
	var _ logger.Logger = (*Glog)(nil)
}

func TestGlogInfoAtDefaultLevel(t *testing.T) {
	b := &bytes.Buffer{}
	aglog.SetOutput(b)

	// InfoLevel defaults to 0, which glog.V always passes regardless of the
	// -v flag (only positive verbosity levels are gated).
	g := &Glog{}
	g.Infof("hello %s", "world")

	if !strings.Contains(b.String(), "hello world") {
		t.Fatalf("expected log output to contain message, got %q", b.String())
	}
}

func TestGlogErrorf(t *testing.T) {
	b := &bytes.Buffer{}
	aglog.SetOutput(b)

	g := &Glog{}
	g.Errorf("failed: %v", "boom")

	if !strings.Contains(b.String(), "failed: boom") {
		t.Fatalf("expected error output to contain message, got %q", b.String())
	}
}
