package tls

import (
	"crypto/tls"
	"crypto/x509"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestSelfSignedRoundTrip(t *testing.T) {
	dir := t.TempDir()
	files := Files{
		Cert: filepath.Join(dir, "certs", "server.crt"),
		Key:  filepath.Join(dir, "certs", "server.key"),
	}
	if !files.Enabled() {
		t.Fatal("expected files to be enabled")
	}
	if err := GenerateSelfSignedCert(files.Cert, files.Key, "shopbench", time.Hour, "10.0.0.7", "bench.local"); err != nil {
		t.Fatalf("GenerateSelfSignedCert: %v", err)
	}

	info, err := os.Stat(files.Key)
	if err != nil {
		t.Fatalf("stat key: %v", err)
	}
	if info.Mode().Perm() != 0600 {
		t.Errorf("expected key mode 0600, got %v", info.Mode().Perm())
	}

	cfg, err := LoadServerConfig(files)
	if err != nil {
		t.Fatalf("LoadServerConfig: %v", err)
	}
	if cfg.MinVersion != tls.VersionTLS12 {
		t.Errorf("expected TLS 1.2 minimum")
	}
	if cfg.ClientAuth != tls.NoClientCert {
		t.Errorf("expected no client auth without CA")
	}

	leaf, err := x509.ParseCertificate(cfg.Certificates[0].Certificate[0])
	if err != nil {
		t.Fatalf("parse certificate: %v", err)
	}
	if err := leaf.VerifyHostname("bench.local"); err != nil {
		t.Errorf("expected bench.local SAN: %v", err)
	}
	if err := leaf.VerifyHostname("10.0.0.7"); err != nil {
		t.Errorf("expected 10.0.0.7 SAN: %v", err)
	}

	// the certificate doubles as its own CA
	files.CA = files.Cert
	cfg, err = LoadServerConfig(files)
	if err != nil {
		t.Fatalf("LoadServerConfig with CA: %v", err)
	}
	if cfg.ClientAuth != tls.RequireAndVerifyClientCert {
		t.Errorf("expected mutual TLS with CA")
	}
}

func TestLoadServerConfigMissingFiles(t *testing.T) {
	dir := t.TempDir()
	_, err := LoadServerConfig(Files{Cert: filepath.Join(dir, "a"), Key: filepath.Join(dir, "b")})
	if err == nil {
		t.Fatal("expected error for missing files")
	}
}
