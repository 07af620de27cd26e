package main

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/caarlos0/env/v11"
	"gopkg.in/yaml.v3"

	"github.com/duosecurity/duo-universal-go/pkg/duo"
)

// Config holds the process settings of the demo, read from the environment.
type Config struct {
	Port          string        `env:"PORT"                 envDefault:"8080"`
	DuoConfigFile string        `env:"DUO_CONFIG_FILE"      envDefault:"duo.yaml"`
	HashKey       string        `env:"COOKIE_HASH_KEY,notEmpty"`
	EncryptKey    string        `env:"COOKIE_ENCRYPT_KEY"`
	Insecure      bool          `env:"INSECURE_COOKIES"     envDefault:"false"`
	Timeout       time.Duration `env:"DUO_TIMEOUT"          envDefault:"10s"`
}

func FromEnvVars() (*Config, error) {
	cfg := new(Config)
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("parse env: %w", err)
	}
	return cfg, nil
}

// DuoConfig is the application registration issued by Duo, kept in a
// YAML file next to the demo:
//
//	client_id: DIXXXXXXXXXXXXXXXXXX
//	client_secret: deadbeefdeadbeefdeadbeefdeadbeefdeadbeef
//	api_hostname: api-XXXXXXXX.duosecurity.com
//	redirect_uri: http://localhost:8080/duo-callback
//	failmode: closed
//
// Values are kept untyped so the client can report values that are
// not strings.
type DuoConfig map[string]any

var ErrInvalidFailmode = errors.New("failmode must be open or closed")

func LoadDuoConfig(path string) (DuoConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return ParseDuoConfig(data)
}

func ParseDuoConfig(data []byte) (DuoConfig, error) {
	cfg := make(DuoConfig)
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parse duo config: %w", err)
	}
	return cfg, nil
}

// Client creates the Duo client of this registration.
func (c DuoConfig) Client(options ...duo.Option) (*duo.Client, error) {
	return duo.NewClientFromValues(c["client_id"], c["client_secret"], c["api_hostname"], c["redirect_uri"], options...)
}

// FailOpen reports whether users may log in without Duo while Duo is unavailable.
func (c DuoConfig) FailOpen() (bool, error) {
	mode, ok := c["failmode"]
	if !ok {
		return false, nil
	}
	switch mode {
	case "open":
		return true, nil
	case "closed":
		return false, nil
	default:
		return false, ErrInvalidFailmode
	}
}
