package config

import (
	"net/url"
	"time"

	"github.com/kelseyhightower/envconfig"
)

const (
	DefaultStockEndpoint = "https://stock.adobe.io/Rest/Media/1/Search/Files"
	DefaultIMSURL        = "https://ims-na1.adobelogin.com"
)

// ActionEnv is the environment of the stock-search action.
type ActionEnv struct {
	BindAddr      string        `envconfig:"BIND_ADDR" default:":8080"`
	StockAPIKey   string        `envconfig:"STOCK_API_KEY"`
	StockXProduct string        `envconfig:"STOCK_X_PRODUCT"`
	StockEndpoint string        `envconfig:"STOCK_ENDPOINT" default:"https://stock.adobe.io/Rest/Media/1/Search/Files"`
	IMSURL        string        `envconfig:"IMS_URL" default:"https://ims-na1.adobelogin.com"`
	IMSClientID   string        `envconfig:"IMS_CLIENT_ID"`
	IdentityAddr  string        `envconfig:"IDENTITY_ADDR"`
	HTTPTimeout   time.Duration `envconfig:"HTTP_TIMEOUT" default:"0s"`
	LogJSON       bool          `envconfig:"LOG_JSON" default:"false"`
	LogLevel      string        `envconfig:"LOG_LEVEL" default:"info"`
}

func (c *ActionEnv) Validate() error {
	if c.BindAddr == "" {
		return ErrInvalid("bind address is required")
	}
	if c.StockAPIKey == "" || c.StockXProduct == "" {
		return ErrInvalid("STOCK_API_KEY/STOCK_X_PRODUCT are required")
	}
	if u, err := url.Parse(c.StockEndpoint); err != nil || u.Scheme == "" || u.Host == "" {
		return ErrInvalid("STOCK_ENDPOINT must be an absolute URL")
	}
	if c.IdentityAddr == "" {
		if u, err := url.Parse(c.IMSURL); err != nil || u.Scheme == "" || u.Host == "" {
			return ErrInvalid("IMS_URL must be an absolute URL")
		}
	}
	if c.HTTPTimeout < 0 {
		return ErrInvalid("HTTP_TIMEOUT must not be negative")
	}
	return nil
}

type invalidErr string

func (e invalidErr) Error() string { return string(e) }
func ErrInvalid(msg string) error  { return invalidErr(msg) }

func LoadActionEnv() (ActionEnv, error) {
	var cfg ActionEnv
	if err := envconfig.Process("", &cfg); err != nil {
		return cfg, err
	}
	return cfg, cfg.Validate()
}
