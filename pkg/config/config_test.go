package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoadDotEnvKeepsExistingVariables(t *testing.T) {
	dir := t.TempDir()
	file := filepath.Join(dir, ".env")
	if err := os.WriteFile(file, []byte("SITERIGHT_TEST_A=from-file\nSITERIGHT_TEST_B=from-file\n"), 0o600); err != nil {
		t.Fatalf("write env file: %v", err)
	}
	t.Setenv("SITERIGHT_TEST_A", "from-env")
	t.Setenv("SITERIGHT_TEST_B", "")
	os.Unsetenv("SITERIGHT_TEST_B")

	if err := LoadDotEnv(filepath.Join(dir, "missing.env"), file); err != nil {
		t.Fatalf("load: %v", err)
	}
	if got := GetString("SITERIGHT_TEST_A", ""); got != "from-env" {
		t.Fatalf("expected environment to win, got %q", got)
	}
	if got := GetString("SITERIGHT_TEST_B", ""); got != "from-file" {
		t.Fatalf("expected file value, got %q", got)
	}
}

func TestGettersFallBackOnBadValues(t *testing.T) {
	t.Setenv("SITERIGHT_TEST_INT", "nope")
	t.Setenv("SITERIGHT_TEST_SECS", "3")
	if got := GetInt("SITERIGHT_TEST_INT", 7); got != 7 {
		t.Fatalf("expected fallback 7, got %d", got)
	}
	if got := GetSeconds("SITERIGHT_TEST_SECS", 1); got != 3*time.Second {
		t.Fatalf("expected 3s, got %v", got)
	}
}

func TestGetListSplitsAndTrims(t *testing.T) {
	t.Setenv("SITERIGHT_TEST_LIST", " 10.0.0.1, ,192.168.0.0/16 ")
	got := GetList("SITERIGHT_TEST_LIST")
	if len(got) != 2 || got[0] != "10.0.0.1" || got[1] != "192.168.0.0/16" {
		t.Fatalf("unexpected list %q", got)
	}
	if GetList("SITERIGHT_TEST_LIST_UNSET") != nil {
		t.Fatal("expected nil for unset variable")
	}
}
