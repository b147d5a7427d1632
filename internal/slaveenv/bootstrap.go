// Package slaveenv scaffolds a toxicslave work directory: it renders the
// config template into a fresh root dir and mints/encrypts access
// tokens, grounded on toxicslave/cmds.py's create/create_token commands.
package slaveenv

import (
	"crypto/rand"
	"embed"
	"encoding/base64"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"text/template"

	"golang.org/x/crypto/bcrypt"
)

//go:embed templates/toxicslave.conf.tmpl
var templatesFS embed.FS

const (
	confFileName   = "toxicslave.conf"
	accessTokenTag = "{{ACCESS_TOKEN}}"
)

// templateData is the set of knobs the conf template renders.
type templateData struct {
	Port int
}

// Bootstrap creates rootDir and writes toxicslave.conf into it from the
// packaged template. If withToken is true, it also mints an access token
// and bcrypt-encrypts it into the written file, returning the plaintext
// token for the operator to record (it is never written back out in the
// clear).
func Bootstrap(rootDir string, port int, withToken bool) (string, error) {
	if err := os.MkdirAll(rootDir, 0o755); err != nil {
		return "", fmt.Errorf("creating root dir: %w", err)
	}

	destFile := filepath.Join(rootDir, confFileName)
	if err := renderConf(destFile, templateData{Port: port}); err != nil {
		return "", fmt.Errorf("rendering config template: %w", err)
	}

	if !withToken {
		return "", nil
	}
	return CreateToken(destFile, false)
}

func renderConf(destFile string, data templateData) error {
	tmpl, err := template.ParseFS(templatesFS, "templates/toxicslave.conf.tmpl")
	if err != nil {
		return err
	}

	f, err := os.OpenFile(destFile, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o600)
	if err != nil {
		return err
	}
	defer f.Close()

	return tmpl.Execute(f, data)
}

// CreateToken generates a random URL-safe access token, bcrypt-encrypts
// it, and replaces the ACCESS_TOKEN placeholder in conffile with the
// encrypted value. It returns the plaintext token.
func CreateToken(conffile string, showEncrypted bool) (string, error) {
	accessToken, err := newURLSafeToken()
	if err != nil {
		return "", fmt.Errorf("generating access token: %w", err)
	}

	encrypted, err := bcryptString(accessToken)
	if err != nil {
		return "", fmt.Errorf("encrypting access token: %w", err)
	}

	content, err := os.ReadFile(conffile)
	if err != nil {
		return "", fmt.Errorf("reading %s: %w", conffile, err)
	}

	updated := strings.Replace(string(content), accessTokenTag, encrypted, 1)
	if err := os.WriteFile(conffile, []byte(updated), 0o600); err != nil {
		return "", fmt.Errorf("writing %s: %w", conffile, err)
	}

	if showEncrypted {
		fmt.Printf("Created encrypted token: %s\n", encrypted)
	}
	fmt.Printf("Created access token: %s\n", accessToken)

	return accessToken, nil
}

// newURLSafeToken mirrors Python's secrets.token_urlsafe(): 32 random
// bytes, base64 URL-safe encoded without padding.
func newURLSafeToken() (string, error) {
	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(buf), nil
}

func bcryptString(s string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(s), bcrypt.DefaultCost)
	if err != nil {
		return "", err
	}
	return string(hash), nil
}

