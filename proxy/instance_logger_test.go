package proxy

import (
	"bytes"
	"os"
	"strings"
	"testing"

	"github.com/sirupsen/logrus"
)

func TestInstanceLogger(t *testing.T) {
	var buf bytes.Buffer
	logrus.SetOutput(&buf)
	logrus.SetLevel(logrus.DebugLevel)
	defer func() {
		logrus.SetOutput(os.Stderr)
		logrus.SetLevel(logrus.InfoLevel)
	}()

	logger := NewInstanceLogger(":8080", "test")

	logger.Info("info msg")
	if !strings.Contains(buf.String(), "info msg") {
		t.Error("Info failed")
	}
	if !strings.Contains(buf.String(), "instance_name=test") {
		t.Errorf("instance field missing: %q", buf.String())
	}
	buf.Reset()

	logger.Debugf("debugf %s", "msg")
	if !strings.Contains(buf.String(), "debugf msg") {
		t.Error("Debugf failed")
	}
	buf.Reset()

	logger.Warnf("warnf %s", "msg")
	if !strings.Contains(buf.String(), "warnf msg") {
		t.Error("Warnf failed")
	}
	buf.Reset()

	if logger.GetEntry() == nil {
		t.Error("GetEntry returned nil")
	}

	unnamed := NewInstanceLogger(":8081", "")
	if !strings.HasPrefix(unnamed.InstanceName, "proxy-") {
		t.Errorf("default name = %q", unnamed.InstanceName)
	}
}

func TestInstanceLoggerWithFile(t *testing.T) {
	tmpfile, err := os.CreateTemp(t.TempDir(), "logtest")
	if err != nil {
		t.Fatal(err)
	}
	tmpfile.Close()

	fileLogger := NewInstanceLoggerWithFile(":8081", "filetest", tmpfile.Name())
	fileLogger.Info("file msg")
	if err := fileLogger.Close(); err != nil {
		t.Fatal(err)
	}

	content, err := os.ReadFile(tmpfile.Name())
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(string(content), "file msg") {
		t.Error("File logger didn't write to file")
	}
}
