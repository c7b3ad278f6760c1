package logger_test

import (
	"bytes"
	"strings"
	"testing"

	"github.com/exeforge/exeforge/pkg/logger"
)

func TestCreateLogger(t *testing.T) {
	log := logger.CreateLogger("", "info")
	if log == nil {
		t.Fatal("expected logger to be created")
	}
}

func TestLogger_Levels(t *testing.T) {
	var buf bytes.Buffer
	log := logger.CreateLoggerWithOutput("", "debug", &buf)

	log.Debug("debug message")
	log.Info("info message")
	log.Warn("warn message")
	log.Error("error message")

	output := buf.String()
	for _, want := range []string{"debug message", "info message", "warn message", "error message"} {
		if !strings.Contains(output, want) {
			t.Errorf("expected output to contain %q, got:\n%s", want, output)
		}
	}
}

func TestLogger_LevelFiltering(t *testing.T) {
	var buf bytes.Buffer
	log := logger.CreateLoggerWithOutput("", "error", &buf)

	log.Info("should be filtered")
	log.Error("should appear")

	output := buf.String()
	if strings.Contains(output, "should be filtered") {
		t.Error("info message leaked through error-level filter")
	}
	if !strings.Contains(output, "should appear") {
		t.Error("error message missing from output")
	}
}

func TestLogger_WithJob(t *testing.T) {
	var buf bytes.Buffer
	log := logger.CreateLoggerWithOutput("", "info", &buf)

	jobLog := log.WithJob("job-42")
	jobLog.Info("hello from job")

	output := buf.String()
	if !strings.Contains(output, "job-42") {
		t.Errorf("expected job prefix in output, got:\n%s", output)
	}
	if !strings.Contains(output, "hello from job") {
		t.Errorf("expected message in output, got:\n%s", output)
	}
}

func TestLogger_Fields(t *testing.T) {
	var buf bytes.Buffer
	log := logger.CreateLoggerWithOutput("", "info", &buf)

	log.Info("with fields", logger.WithField("script", "app.py"))

	output := buf.String()
	if !strings.Contains(output, "script=app.py") {
		t.Errorf("expected field in output, got:\n%s", output)
	}
}

func TestLogger_Success(t *testing.T) {
	var buf bytes.Buffer
	log := logger.CreateLoggerWithOutput("", "info", &buf)

	log.Success("done")

	if !strings.Contains(buf.String(), "done") {
		t.Errorf("expected success message in output, got:\n%s", buf.String())
	}
}
