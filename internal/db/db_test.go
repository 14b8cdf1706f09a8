package db

import (
	"bytes"
	"encoding/json"
	"errors"
	"strings"
	"testing"

	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

type widget struct {
	ID   uint
	Name string
}

func TestConnectLogsThroughLogrus(t *testing.T) {
	var buf bytes.Buffer
	log := logrus.New()
	log.SetOutput(&buf)
	log.SetFormatter(&logrus.JSONFormatter{})

	gdb, err := Connect("sqlite", ":memory:", log)
	if err != nil {
		t.Fatalf("Connect() error = %v", err)
	}
	if err := gdb.AutoMigrate(&widget{}); err != nil {
		t.Fatalf("migrate: %v", err)
	}

	var w widget
	if err := gdb.First(&w, 42).Error; !errors.Is(err, gorm.ErrRecordNotFound) {
		t.Fatalf("First() error = %v, want ErrRecordNotFound", err)
	}
	if buf.Len() != 0 {
		t.Fatalf("missing row was logged: %s", buf.String())
	}

	if err := gdb.Exec("SELECT * FROM no_such_table").Error; err == nil {
		t.Fatal("expected error for unknown table")
	}
	line := strings.TrimSpace(buf.String())
	if !strings.Contains(line, "no_such_table") {
		t.Fatalf("failed query not logged: %q", line)
	}
	var entry map[string]any
	if err := json.Unmarshal([]byte(strings.Split(line, "\n")[0]), &entry); err != nil {
		t.Fatalf("log line is not JSON: %v (%q)", err, line)
	}
	if entry["component"] != "gorm" || entry["level"] != "warning" {
		t.Errorf("log entry = %v", entry)
	}
}

func TestConnectUnknownDriver(t *testing.T) {
	if _, err := Connect("mysql", "x", nil); err == nil {
		t.Fatal("expected error for unsupported driver")
	}
}
