package slaveenv

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"golang.org/x/crypto/bcrypt"
)

func TestBootstrapWithoutToken(t *testing.T) {
	root := filepath.Join(t.TempDir(), "env")

	token, err := Bootstrap(root, 7777, false)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if token != "" {
		t.Errorf("expected no token, got %q", token)
	}

	content, err := os.ReadFile(filepath.Join(root, confFileName))
	if err != nil {
		t.Fatalf("reading conf file: %v", err)
	}
	if !strings.Contains(string(content), "TOXICSLAVE_SERVER_PORT=7777") {
		t.Errorf("conf file missing rendered port: %s", content)
	}
	if !strings.Contains(string(content), accessTokenTag) {
		t.Errorf("conf file should still carry the unreplaced placeholder: %s", content)
	}
}

func TestBootstrapWithToken(t *testing.T) {
	root := filepath.Join(t.TempDir(), "env")

	token, err := Bootstrap(root, 7777, true)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if token == "" {
		t.Fatal("expected a non-empty token")
	}

	content, err := os.ReadFile(filepath.Join(root, confFileName))
	if err != nil {
		t.Fatalf("reading conf file: %v", err)
	}
	if strings.Contains(string(content), accessTokenTag) {
		t.Errorf("placeholder should have been replaced: %s", content)
	}
}

func TestCreateTokenEncryptsAndReplaces(t *testing.T) {
	conffile := filepath.Join(t.TempDir(), "toxicslave.conf")
	if err := os.WriteFile(conffile, []byte("ACCESS_TOKEN="+accessTokenTag+"\n"), 0o600); err != nil {
		t.Fatalf("writing fixture conf: %v", err)
	}

	token, err := CreateToken(conffile, false)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	content, err := os.ReadFile(conffile)
	if err != nil {
		t.Fatalf("reading conf file: %v", err)
	}
	if strings.Contains(string(content), accessTokenTag) {
		t.Errorf("placeholder should have been replaced: %s", content)
	}

	line := strings.TrimPrefix(strings.TrimSpace(string(content)), "ACCESS_TOKEN=")
	if err := bcrypt.CompareHashAndPassword([]byte(line), []byte(token)); err != nil {
		t.Errorf("stored hash does not match returned plaintext token: %v", err)
	}
}
