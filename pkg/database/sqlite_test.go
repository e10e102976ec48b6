package database

import (
	"strings"
	"testing"
	"time"
)

func TestBuildDSN(t *testing.T) {
	dsn := buildDSN(Config{Path: "data/intranet.db", BusyTimeout: 10 * time.Second})

	if !strings.HasPrefix(dsn, "file:data%2Fintranet.db?") {
		t.Errorf("buildDSN() = %q, want file: prefix with escaped path", dsn)
	}
	for _, param := range []string{"_journal_mode=WAL", "_busy_timeout=10000", "_foreign_keys=on"} {
		if !strings.Contains(dsn, param) {
			t.Errorf("buildDSN() = %q, missing %q", dsn, param)
		}
	}
}

func TestBuildDSNDefaultBusyTimeout(t *testing.T) {
	dsn := buildDSN(Config{Path: "test.db"})

	if !strings.Contains(dsn, "_busy_timeout=5000") {
		t.Errorf("buildDSN() = %q, want default 5s busy timeout", dsn)
	}
}
