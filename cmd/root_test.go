package cmd

import (
	"bytes"
	"os"
	"strings"
	"testing"

	"github.com/sirupsen/logrus"

	"github.com/daniloc96/google-group-membership-sync/internal/config"
	"github.com/daniloc96/google-group-membership-sync/internal/models"
)

func TestConfigureLoggingWritesToStdout(t *testing.T) {
	logger := logrus.StandardLogger()
	originalOut, originalFormatter, originalLevel := logger.Out, logger.Formatter, logger.Level
	t.Cleanup(func() {
		logger.SetOutput(originalOut)
		logger.SetFormatter(originalFormatter)
		logger.SetLevel(originalLevel)
	})

	configureLogging(&config.Config{Log: config.LogConfig{Level: "debug", Format: "text"}})

	if logger.Out != os.Stdout {
		t.Fatalf("expected logs on stdout, got %v", logger.Out)
	}
	if logger.Level != logrus.DebugLevel {
		t.Fatalf("expected debug level, got %s", logger.Level)
	}
}

func TestPrintGroupReportListsMembership(t *testing.T) {
	logger := logrus.StandardLogger()
	originalOut, originalLevel := logger.Out, logger.Level
	t.Cleanup(func() {
		logger.SetOutput(originalOut)
		logger.SetLevel(originalLevel)
	})

	buf := &bytes.Buffer{}
	logger.SetOutput(buf)
	logger.SetLevel(logrus.InfoLevel)

	printGroupReport(&models.GroupSyncResult{
		GroupID:   10,
		GroupName: "team@acme.com",
		OrgSlug:   "acme",
		State:     models.StateDone,
		Before:    []string{"a@acme.com"},
		After:     []string{"b@acme.com"},
	})

	out := buf.String()
	for _, want := range []string{"Members before sync (1)", "1. a@acme.com", "Members after sync (1)", "1. b@acme.com"} {
		if !strings.Contains(out, want) {
			t.Fatalf("expected report to contain %q, got:\n%s", want, out)
		}
	}
}
