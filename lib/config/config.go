// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package config

import (
	"bytes"
	"crypto/tls"
	"crypto/x509"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/tidwall/jsonc"
	"gopkg.in/yaml.v3"

	"github.com/bureau-foundation/qtstream/lib/datastream"
)

// EnvironmentVariable names the configuration file when no --config
// flag is given.
const EnvironmentVariable = "QTSTREAM_CONFIG"

// Config describes the protocol a qtstream session speaks: the user
// types its messages carry, the shape of each message body, and where
// and how to connect.
type Config struct {
	// Types defines the application's user types in declaration
	// order. Field types may refer to types defined later.
	Types []TypeConfig `yaml:"types" json:"types"`

	// Shape is the layout of every message body: "variant" (the
	// default), a base type name such as "QString", or "user:<Name>".
	Shape string `yaml:"shape" json:"shape"`

	// Raw disables the 4-byte length prefix on each message.
	Raw bool `yaml:"raw" json:"raw"`

	// MaxPacketSize overrides the framing limit when positive.
	MaxPacketSize int `yaml:"max_packet_size" json:"max_packet_size"`

	// Address is the default peer: "host:port" or "unix:/path".
	Address string `yaml:"address" json:"address"`

	// TLS, when present, wraps connections in TLS.
	TLS *TLSConfig `yaml:"tls" json:"tls"`
}

// TypeConfig defines one user type: either an alias of a base type or
// an ordered list of fields.
type TypeConfig struct {
	Name   string        `yaml:"name" json:"name"`
	Alias  string        `yaml:"alias" json:"alias"`
	Fields []FieldConfig `yaml:"fields" json:"fields"`
}

// FieldConfig is one member of a composite user type. Type is a base
// type name, or the name of another user type (optionally written
// "user:<Name>").
type FieldConfig struct {
	Name string `yaml:"name" json:"name"`
	Type string `yaml:"type" json:"type"`
}

// TLSConfig names the certificate material for TLS connections. Paths
// are relative to the configuration file.
type TLSConfig struct {
	// Cert and Key are a PEM certificate and private key. Required
	// for listening; optional client credentials when dialing.
	Cert string `yaml:"cert" json:"cert"`
	Key  string `yaml:"key" json:"key"`

	// CA is a PEM bundle of roots to verify the peer against. Empty
	// means the system pool when dialing and no client verification
	// when listening.
	CA string `yaml:"ca" json:"ca"`

	// ServerName overrides the name verified in the server's
	// certificate. It defaults to the host part of the address.
	ServerName string `yaml:"server_name" json:"server_name"`

	// InsecureSkipVerify disables server certificate verification.
	InsecureSkipVerify bool `yaml:"insecure_skip_verify" json:"insecure_skip_verify"`
}

// Load loads the file named by QTSTREAM_CONFIG. There is no search
// path: if the variable is unset, Load fails.
func Load() (*Config, error) {
	path := os.Getenv(EnvironmentVariable)
	if path == "" {
		return nil, fmt.Errorf("%s environment variable not set; "+
			"set it to the path of your qtstream config file, or use --config flag", EnvironmentVariable)
	}
	return LoadFile(path)
}

// LoadFile loads and validates the configuration at path. Files ending
// in .json or .jsonc are JSON with comments and trailing commas;
// anything else is YAML. Unknown keys are rejected.
//
// ${VAR} and ${VAR:-default} in address and TLS paths are expanded
// from the environment, and relative TLS paths are resolved against
// the directory holding the file.
func LoadFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config: %w", err)
	}
	var cfg *Config
	switch strings.ToLower(filepath.Ext(path)) {
	case ".json", ".jsonc":
		cfg, err = ParseJSONC(data)
	default:
		cfg, err = ParseYAML(data)
	}
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	cfg.expandVariables(filepath.Dir(path))
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return cfg, nil
}

// ParseYAML decodes a YAML configuration without validating it.
func ParseYAML(data []byte) (*Config, error) {
	cfg := &Config{}
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("parsing config: %w", err)
	}
	return cfg, nil
}

// ParseJSONC decodes a JSON-with-comments configuration without
// validating it.
func ParseJSONC(data []byte) (*Config, error) {
	cfg := &Config{}
	decoder := json.NewDecoder(bytes.NewReader(jsonc.ToJSON(data)))
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}
	return cfg, nil
}

// Validate checks everything that can be checked without opening
// files: type definitions, the shape, and the packet limit.
func (c *Config) Validate() error {
	var errs []error
	if c.MaxPacketSize < 0 {
		errs = append(errs, fmt.Errorf("max_packet_size must not be negative, got %d", c.MaxPacketSize))
	}
	if _, err := c.Registry(); err != nil {
		errs = append(errs, err)
	}
	if _, err := c.MessageShape(); err != nil {
		errs = append(errs, err)
	}
	if c.TLS != nil && (c.TLS.Cert == "") != (c.TLS.Key == "") {
		errs = append(errs, fmt.Errorf("tls: cert and key must be given together"))
	}
	return errors.Join(errs...)
}

// Registry builds a registry from Types. It fails on duplicate or
// empty names, on a type that is neither an alias nor a field list,
// on unknown base types, and on references to undefined user types.
func (c *Config) Registry() (*datastream.Registry, error) {
	registry := datastream.NewRegistry()
	seen := make(map[string]bool, len(c.Types))
	for index, typeConfig := range c.Types {
		if typeConfig.Name == "" {
			return nil, fmt.Errorf("types[%d]: name is required", index)
		}
		if seen[typeConfig.Name] {
			return nil, fmt.Errorf("types[%d]: %q defined twice", index, typeConfig.Name)
		}
		seen[typeConfig.Name] = true

		definition, err := typeConfig.definition()
		if err != nil {
			return nil, fmt.Errorf("types[%d] %q: %w", index, typeConfig.Name, err)
		}
		registry.Register(typeConfig.Name, definition)
	}
	if err := registry.Check(); err != nil {
		return nil, err
	}
	return registry, nil
}

func (t TypeConfig) definition() (datastream.Definition, error) {
	switch {
	case t.Alias != "" && len(t.Fields) > 0:
		return datastream.Definition{}, fmt.Errorf("alias and fields are mutually exclusive")
	case t.Alias != "":
		base, err := datastream.ParseType(t.Alias)
		if err != nil {
			return datastream.Definition{}, err
		}
		return datastream.Alias(base), nil
	case len(t.Fields) == 0:
		return datastream.Definition{}, fmt.Errorf("needs an alias or at least one field")
	}

	fields := make([]datastream.FieldDef, len(t.Fields))
	for index, field := range t.Fields {
		if field.Type == "" {
			return datastream.Definition{}, fmt.Errorf("field %d (%q): type is required", index, field.Name)
		}
		if name, ok := strings.CutPrefix(field.Type, "user:"); ok {
			fields[index] = datastream.FieldOfUser(field.Name, name)
			continue
		}
		if base, err := datastream.ParseType(field.Type); err == nil && base != datastream.TypeUserType {
			fields[index] = datastream.FieldOf(field.Name, base)
			continue
		}
		// Anything else must name a user type; Registry.Check
		// rejects it if none is defined.
		fields[index] = datastream.FieldOfUser(field.Name, field.Type)
	}
	return datastream.Fields(fields...), nil
}

// MessageShape parses Shape. A user shape must name a type defined in
// Types.
func (c *Config) MessageShape() (datastream.Shape, error) {
	shape, err := datastream.ParseShape(c.Shape)
	if err != nil {
		return datastream.Shape{}, err
	}
	if name, ok := strings.CutPrefix(shape.String(), "user:"); ok {
		for _, typeConfig := range c.Types {
			if typeConfig.Name == name {
				return shape, nil
			}
		}
		return datastream.Shape{}, fmt.Errorf("shape %q: %w: %q", c.Shape, datastream.ErrUnregisteredType, name)
	}
	return shape, nil
}

// ClientTLS returns the TLS configuration for dialing address, or nil
// when TLS is not configured.
func (c *Config) ClientTLS(address string) (*tls.Config, error) {
	if c.TLS == nil {
		return nil, nil
	}
	config := &tls.Config{
		MinVersion:         tls.VersionTLS12,
		ServerName:         c.TLS.ServerName,
		InsecureSkipVerify: c.TLS.InsecureSkipVerify,
	}
	if config.ServerName == "" {
		config.ServerName = hostOf(address)
	}
	if c.TLS.CA != "" {
		pool, err := loadPool(c.TLS.CA)
		if err != nil {
			return nil, err
		}
		config.RootCAs = pool
	}
	if c.TLS.Cert != "" {
		certificate, err := tls.LoadX509KeyPair(c.TLS.Cert, c.TLS.Key)
		if err != nil {
			return nil, fmt.Errorf("tls: loading certificate: %w", err)
		}
		config.Certificates = []tls.Certificate{certificate}
	}
	return config, nil
}

// ServerTLS returns the TLS configuration for accepting connections,
// or nil when TLS is not configured. A CA bundle turns on mandatory
// client certificate verification.
func (c *Config) ServerTLS() (*tls.Config, error) {
	if c.TLS == nil {
		return nil, nil
	}
	if c.TLS.Cert == "" {
		return nil, fmt.Errorf("tls: listening requires cert and key")
	}
	certificate, err := tls.LoadX509KeyPair(c.TLS.Cert, c.TLS.Key)
	if err != nil {
		return nil, fmt.Errorf("tls: loading certificate: %w", err)
	}
	config := &tls.Config{
		MinVersion:   tls.VersionTLS12,
		Certificates: []tls.Certificate{certificate},
	}
	if c.TLS.CA != "" {
		pool, err := loadPool(c.TLS.CA)
		if err != nil {
			return nil, err
		}
		config.ClientCAs = pool
		config.ClientAuth = tls.RequireAndVerifyClientCert
	}
	return config, nil
}

func loadPool(path string) (*x509.CertPool, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("tls: reading CA bundle: %w", err)
	}
	pool := x509.NewCertPool()
	if !pool.AppendCertsFromPEM(data) {
		return nil, fmt.Errorf("tls: %s contains no PEM certificates", path)
	}
	return pool, nil
}

// hostOf returns the host part of a "host:port" address.
func hostOf(address string) string {
	if strings.HasPrefix(address, "unix:") {
		return ""
	}
	if index := strings.LastIndex(address, ":"); index >= 0 {
		address = address[:index]
	}
	return strings.TrimSuffix(strings.TrimPrefix(address, "["), "]")
}

// expandVariables expands ${VAR} and ${VAR:-default} in the address
// and TLS paths, and anchors relative TLS paths at directory.
func (c *Config) expandVariables(directory string) {
	c.Address = expandVars(c.Address)
	if c.TLS == nil {
		return
	}
	for _, path := range []*string{&c.TLS.Cert, &c.TLS.Key, &c.TLS.CA} {
		*path = expandVars(*path)
		if *path != "" && !filepath.IsAbs(*path) {
			*path = filepath.Join(directory, *path)
		}
	}
}

var varPattern = regexp.MustCompile(`\$\{([^}:]+)(?::-([^}]*))?\}`)

func expandVars(s string) string {
	return varPattern.ReplaceAllStringFunc(s, func(match string) string {
		parts := varPattern.FindStringSubmatch(match)
		if value := os.Getenv(parts[1]); value != "" {
			return value
		}
		return parts[2]
	})
}
