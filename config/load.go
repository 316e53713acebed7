package config

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/goccy/go-json"
	"github.com/pelletier/go-toml/v2"
	"gopkg.in/yaml.v3"
)

// Load reads the config file at path, choosing the decoder by file suffix,
// and fills defaults for everything left unset.
func Load(path string) (Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return Config{}, err
	}
	defer f.Close()

	conf, err := Decode(f, filepath.Ext(path))
	if err != nil {
		return Config{}, fmt.Errorf("decode %s: %w", path, err)
	}

	return conf, nil
}

// Decode decodes a config document in the format named by ext
// (".toml", ".yaml", ".yml" or ".json").
func Decode(r io.Reader, ext string) (conf Config, err error) {
	switch strings.ToLower(ext) {
	case ".toml":
		err = toml.NewDecoder(r).Decode(&conf)
	case ".yaml", ".yml":
		err = yaml.NewDecoder(r).Decode(&conf)
		if errors.Is(err, io.EOF) {
			err = nil
		}
	case ".json":
		err = json.NewDecoder(r).Decode(&conf)
	default:
		return Config{}, fmt.Errorf("unknown config format %q", ext)
	}

	if err != nil {
		return Config{}, err
	}

	conf.SetDefaults()
	return conf, nil
}

func (c *Config) SetDefaults() {
	if c.Provider.Endpoint == "" {
		c.Provider.Endpoint = DefaultEndpoint
	}
	if !strings.HasSuffix(c.Provider.Endpoint, "/") {
		c.Provider.Endpoint += "/"
	}
	if c.Provider.Lang == "" {
		c.Provider.Lang = DefaultLang
	}
	if c.Session.Path == "" {
		c.Session.Path = DefaultSessionPath
	}
	if len(c.Address.Sources) == 0 {
		c.Address.Sources = []IPSource{{Type: "echo", Source: DefaultEchoAddress}}
	}
}

const envPrefix = "DPDDNS_"

// ApplyEnv overrides account and domain settings from DPDDNS_* variables, so
// credentials can stay out of the config file.
func (c *Config) ApplyEnv(lookup func(string) (string, bool)) error {
	strs := map[string]*string{
		"LOGIN_EMAIL":    &c.Account.Email,
		"LOGIN_PASSWORD": &c.Account.Password,
		"DOMAIN":         &c.Domain.Domain,
		"SUBDOMAIN":      &c.Domain.Subdomain,
		"SESSION_PATH":   &c.Session.Path,
	}
	for name, dst := range strs {
		if v, ok := lookup(envPrefix + name); ok {
			*dst = v
		}
	}

	if v, ok := lookup(envPrefix + "OTP"); ok {
		otp, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("bad %sOTP: %w", envPrefix, err)
		}
		c.Account.OTP = otp
	}

	return nil
}

func (c *Config) Validate() error {
	var errs []error
	if c.Account.Email == "" {
		errs = append(errs, errors.New("account.email is required"))
	}
	if c.Account.Password == "" {
		errs = append(errs, errors.New("account.password is required"))
	}
	if c.Domain.Domain == "" {
		errs = append(errs, errors.New("domain.domain is required"))
	}
	if c.Domain.Subdomain == "" {
		errs = append(errs, errors.New("domain.subdomain is required"))
	}
	return errors.Join(errs...)
}
