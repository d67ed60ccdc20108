// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package config

import (
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/tls"
	"crypto/x509"
	"crypto/x509/pkix"
	"encoding/pem"
	"errors"
	"math/big"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/bureau-foundation/qtstream/lib/datastream"
)

const quasselYAML = `
types:
  - name: NetworkId
    alias: Int
  - name: BufferInfo
    fields:
      - {name: id, type: Int}
      - {name: network, type: NetworkId}
      - {name: type, type: Short}
      - {name: name, type: QByteArray}
shape: user:BufferInfo
raw: false
max_packet_size: 1048576
address: ${QTSTREAM_TEST_HOST:-localhost}:4242
`

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("writing %s: %v", name, err)
	}
	return path
}

func TestLoadFileYAML(t *testing.T) {
	cfg, err := LoadFile(writeFile(t, "qtstream.yaml", quasselYAML))
	if err != nil {
		t.Fatalf("LoadFile: %v", err)
	}
	if cfg.MaxPacketSize != 1<<20 {
		t.Errorf("max_packet_size: got %d", cfg.MaxPacketSize)
	}
	if cfg.Address != "localhost:4242" {
		t.Errorf("address: got %q, want the default expansion", cfg.Address)
	}

	registry, err := cfg.Registry()
	if err != nil {
		t.Fatalf("Registry: %v", err)
	}
	if got := strings.Join(registry.Names(), ","); got != "BufferInfo,NetworkId" {
		t.Errorf("Names: got %s", got)
	}
	buffer, err := registry.Lookup("BufferInfo")
	if err != nil {
		t.Fatalf("Lookup: %v", err)
	}
	fields := buffer.FieldList()
	if len(fields) != 4 || fields[1].UserType != "NetworkId" || fields[3].Type != datastream.TypeByteArray {
		t.Errorf("BufferInfo fields: got %+v", fields)
	}

	shape, err := cfg.MessageShape()
	if err != nil {
		t.Fatalf("MessageShape: %v", err)
	}
	if shape != datastream.UserShape("BufferInfo") {
		t.Errorf("shape: got %v", shape)
	}
}

func TestLoadFileExpandsFromEnvironment(t *testing.T) {
	t.Setenv("QTSTREAM_TEST_HOST", "core.example")
	cfg, err := LoadFile(writeFile(t, "qtstream.yml", quasselYAML))
	if err != nil {
		t.Fatalf("LoadFile: %v", err)
	}
	if cfg.Address != "core.example:4242" {
		t.Errorf("address: got %q", cfg.Address)
	}
}

func TestLoadFileJSONC(t *testing.T) {
	t.Parallel()
	content := `{
		// Same protocol, JSONC spelling.
		"types": [
			{"name": "NetworkId", "alias": "QInt"},
			{"name": "Pair", "fields": [
				{"name": "left", "type": "user:NetworkId"},
				{"name": "right", "type": "NetworkId"}, /* bare names resolve too */
			]},
		],
		"shape": "QString",
		"raw": true,
	}`
	cfg, err := LoadFile(writeFile(t, "qtstream.jsonc", content))
	if err != nil {
		t.Fatalf("LoadFile: %v", err)
	}
	if !cfg.Raw {
		t.Error("raw: got false")
	}
	registry, err := cfg.Registry()
	if err != nil {
		t.Fatalf("Registry: %v", err)
	}
	if !registry.IsComposite("Pair") || registry.IsComposite("NetworkId") {
		t.Error("IsComposite: wrong classification")
	}
	shape, err := cfg.MessageShape()
	if err != nil || shape != datastream.TypeShape(datastream.TypeString) {
		t.Errorf("MessageShape: got %v, %v", shape, err)
	}
}

func TestLoadFileRejects(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name    string
		file    string
		content string
		want    string
	}{
		{"unknown key", "a.yaml", "shape: variant\nframing: raw\n", "framing"},
		{"unknown json key", "a.json", `{"adress": "x"}`, "adress"},
		{"unknown base type", "a.yaml", "types:\n  - name: X\n    alias: QPixmap\n", "QPixmap"},
		{"undefined reference", "a.yaml", "types:\n  - name: X\n    fields:\n      - {name: a, type: Missing}\n", "Missing"},
		{"alias and fields", "a.yaml", "types:\n  - name: X\n    alias: Int\n    fields:\n      - {name: a, type: Int}\n", "mutually exclusive"},
		{"empty definition", "a.yaml", "types:\n  - name: X\n", "alias or at least one field"},
		{"duplicate", "a.yaml", "types:\n  - {name: X, alias: Int}\n  - {name: X, alias: Bool}\n", "defined twice"},
		{"nameless", "a.yaml", "types:\n  - {alias: Int}\n", "name is required"},
		{"undefined shape", "a.yaml", "shape: user:Nope\n", "Nope"},
		{"bad shape", "a.yaml", "shape: QWidget\n", "QWidget"},
		{"negative limit", "a.yaml", "max_packet_size: -1\n", "max_packet_size"},
		{"half a key pair", "a.yaml", "tls:\n  cert: c.pem\n", "cert and key"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			_, err := LoadFile(writeFile(t, tt.file, tt.content))
			if err == nil {
				t.Fatal("LoadFile succeeded")
			}
			if !strings.Contains(err.Error(), tt.want) {
				t.Errorf("error %q does not mention %q", err, tt.want)
			}
		})
	}
}

func TestLoadFileEmpty(t *testing.T) {
	t.Parallel()
	cfg, err := LoadFile(writeFile(t, "empty.yaml", ""))
	if err != nil {
		t.Fatalf("LoadFile: %v", err)
	}
	if shape, _ := cfg.MessageShape(); shape != datastream.VariantShape() {
		t.Errorf("default shape: got %v", shape)
	}
}

func TestLoadRequiresEnvironment(t *testing.T) {
	t.Setenv(EnvironmentVariable, "")
	_, err := Load()
	if err == nil || !strings.HasPrefix(err.Error(), "QTSTREAM_CONFIG environment variable not set") {
		t.Fatalf("Load: got %v", err)
	}

	t.Setenv(EnvironmentVariable, writeFile(t, "qtstream.yaml", quasselYAML))
	if _, err := Load(); err != nil {
		t.Fatalf("Load with %s set: %v", EnvironmentVariable, err)
	}
}

func TestLoadFileMissing(t *testing.T) {
	t.Parallel()
	_, err := LoadFile(filepath.Join(t.TempDir(), "absent.yaml"))
	if !errors.Is(err, os.ErrNotExist) {
		t.Errorf("LoadFile: got %v, want os.ErrNotExist", err)
	}
}

// writeKeyPair writes a self-signed certificate and key into directory.
func writeKeyPair(t *testing.T, directory string) {
	t.Helper()
	key, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	if err != nil {
		t.Fatalf("GenerateKey: %v", err)
	}
	template := &x509.Certificate{
		SerialNumber:          big.NewInt(1),
		Subject:               pkix.Name{CommonName: "qtstream test"},
		NotBefore:             time.Now().Add(-time.Hour),
		NotAfter:              time.Now().Add(time.Hour),
		IsCA:                  true,
		BasicConstraintsValid: true,
		KeyUsage:              x509.KeyUsageDigitalSignature | x509.KeyUsageCertSign,
	}
	certificate, err := x509.CreateCertificate(rand.Reader, template, template, &key.PublicKey, key)
	if err != nil {
		t.Fatalf("CreateCertificate: %v", err)
	}
	keyBytes, err := x509.MarshalECPrivateKey(key)
	if err != nil {
		t.Fatalf("MarshalECPrivateKey: %v", err)
	}
	certificatePEM := pem.EncodeToMemory(&pem.Block{Type: "CERTIFICATE", Bytes: certificate})
	keyPEM := pem.EncodeToMemory(&pem.Block{Type: "EC PRIVATE KEY", Bytes: keyBytes})
	for name, data := range map[string][]byte{"cert.pem": certificatePEM, "key.pem": keyPEM} {
		if err := os.WriteFile(filepath.Join(directory, name), data, 0o600); err != nil {
			t.Fatalf("writing %s: %v", name, err)
		}
	}
}

func TestTLSConfigs(t *testing.T) {
	t.Parallel()
	directory := t.TempDir()
	writeKeyPair(t, directory)
	path := filepath.Join(directory, "qtstream.yaml")
	content := "address: core.example:4243\ntls:\n  cert: cert.pem\n  key: key.pem\n  ca: cert.pem\n"
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatal(err)
	}
	cfg, err := LoadFile(path)
	if err != nil {
		t.Fatalf("LoadFile: %v", err)
	}
	if cfg.TLS.Cert != filepath.Join(directory, "cert.pem") {
		t.Errorf("cert path not anchored at the config directory: %q", cfg.TLS.Cert)
	}

	client, err := cfg.ClientTLS(cfg.Address)
	if err != nil {
		t.Fatalf("ClientTLS: %v", err)
	}
	if client.ServerName != "core.example" || client.RootCAs == nil || len(client.Certificates) != 1 {
		t.Errorf("ClientTLS: got server name %q, roots %v, %d certificates",
			client.ServerName, client.RootCAs != nil, len(client.Certificates))
	}

	server, err := cfg.ServerTLS()
	if err != nil {
		t.Fatalf("ServerTLS: %v", err)
	}
	if server.ClientAuth != tls.RequireAndVerifyClientCert || len(server.Certificates) != 1 {
		t.Errorf("ServerTLS: client auth %v, %d certificates", server.ClientAuth, len(server.Certificates))
	}
}

func TestTLSAbsent(t *testing.T) {
	t.Parallel()
	cfg := &Config{}
	if config, err := cfg.ClientTLS("x:1"); config != nil || err != nil {
		t.Errorf("ClientTLS without tls: got %v, %v", config, err)
	}
	if config, err := cfg.ServerTLS(); config != nil || err != nil {
		t.Errorf("ServerTLS without tls: got %v, %v", config, err)
	}
	cfg.TLS = &TLSConfig{InsecureSkipVerify: true}
	if _, err := cfg.ServerTLS(); err == nil {
		t.Error("ServerTLS without a certificate succeeded")
	}
}

func TestHostOf(t *testing.T) {
	t.Parallel()
	for address, want := range map[string]string{
		"core.example:4242": "core.example",
		"[::1]:4242":        "::1",
		"unix:/run/q.sock":  "",
	} {
		if got := hostOf(address); got != want {
			t.Errorf("hostOf(%q): got %q, want %q", address, got, want)
		}
	}
}
