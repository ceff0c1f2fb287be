package logger

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestFileOutput(t *testing.T) {
	path := filepath.Join(t.TempDir(), "filedrop.log")

	l := New(Config{Level: "debug", Format: "json", File: path})
	l.Debugf("room %s closed", "r1")
	l.Sync()

	b, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("error reading log file: %v", err)
	}
	if !strings.Contains(string(b), "room r1 closed") {
		t.Fatalf("log line not written: %s", b)
	}
}

func TestLevel(t *testing.T) {
	path := filepath.Join(t.TempDir(), "filedrop.log")

	l := New(Config{Level: "error", File: path})
	l.Infof("not logged")
	l.Errorf("logged")
	l.Sync()

	b, _ := os.ReadFile(path)
	if strings.Contains(string(b), "not logged") {
		t.Fatal("info line written at error level")
	}
	if !strings.Contains(string(b), "logged") {
		t.Fatal("error line missing")
	}
}
