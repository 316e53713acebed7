package config

import (
	"dpddns/common"

	"go.uber.org/zap/zapcore"
)

const (
	DefaultEndpoint    = "https://dnsapi.cn/"
	DefaultLang        = "cn"
	DefaultSessionPath = "ddns.cookies"
	DefaultEchoAddress = "ns1.dnspod.net:6666"
)

type Config struct {
	Service  Service   `toml:"service" json:"service" yaml:"service"`
	Log      Log       `toml:"log" json:"log" yaml:"log"`
	Account  Account   `toml:"account" json:"account" yaml:"account"`
	Provider Provider  `toml:"provider" json:"provider" yaml:"provider"`
	Session  Session   `toml:"session" json:"session" yaml:"session"`
	Address  IPAddress `toml:"address" json:"address" yaml:"address"`
	Domain   Domain    `toml:"domain" json:"domain" yaml:"domain"`
}

type Service struct {
	Name        string          `toml:"name" json:"name" yaml:"name"`
	RefreshRate common.Duration `toml:"refresh_rate" json:"refresh_rate" yaml:"refresh_rate"`
}

type Log struct {
	Level     *zapcore.Level `toml:"level" json:"level" yaml:"level"`
	Encoding  *string        `toml:"encoding" json:"encoding" yaml:"encoding"`
	InfoPath  *[]string      `toml:"info_path" json:"info_path" yaml:"info_path"`
	ErrorPath *[]string      `toml:"error_path" json:"error_path" yaml:"error_path"`
}

// Account holds the DNSPod login. OTP marks accounts with D-token / two-factor
// enabled, which need a one-time code whenever no valid session is stored.
type Account struct {
	Email    string `toml:"email" json:"email" yaml:"email"`
	Password string `toml:"password" json:"password" yaml:"password"`
	OTP      bool   `toml:"otp" json:"otp" yaml:"otp"`
}

type Provider struct {
	Endpoint  string          `toml:"endpoint" json:"endpoint" yaml:"endpoint"`
	Lang      string          `toml:"lang" json:"lang" yaml:"lang"`
	UserAgent string          `toml:"user_agent" json:"user_agent" yaml:"user_agent"`
	Timeout   common.Duration `toml:"timeout" json:"timeout" yaml:"timeout"`
}

type Session struct {
	Path string `toml:"path" json:"path" yaml:"path"`
}

type IPAddress struct {
	Sources []IPSource `toml:"sources" json:"sources" yaml:"sources"`
}

type IPSource struct {
	Type   string         `toml:"type" json:"type" yaml:"type"`
	Source string         `toml:"source" json:"source" yaml:"source"`
	Config map[string]any `toml:"config,omitempty" json:"config,omitempty" yaml:"config,omitempty"`
}

type IPSourceEchoConfig struct {
	Timeout common.Duration `mapstructure:"timeout"`
	Size    int             `mapstructure:"size"`
}

type IPSourceSimpleConfig struct {
	Type    common.Family   `mapstructure:"type"`
	Timeout common.Duration `mapstructure:"timeout"`
}

type Domain struct {
	Domain    string `toml:"domain" json:"domain" yaml:"domain"`
	Subdomain string `toml:"subdomain" json:"subdomain" yaml:"subdomain"`
}
