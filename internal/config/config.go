package config

import (
	"os"
	"strconv"
	"time"
)

type Config struct {
	Addr      string
	DBPath    string
	StorePath string

	// SiteURL est la racine du site; la frame du lecteur et l'endpoint
	// AJAX en dérivent.
	SiteURL   string
	UserAgent string
	Referrer  string

	FetchTimeout time.Duration
	SessionTTL   time.Duration
}

func Default() Config {
	return Config{
		Addr:         envOr("ICEDL_ADDR", "127.0.0.1:8080"),
		DBPath:       envOr("ICEDL_DB_PATH", "icedl.db"),
		StorePath:    envOr("ICEDL_STORE_PATH", "icedl-session"),
		SiteURL:      envOr("ICEDL_SITE_URL", "http://www.icefilms.info/"),
		UserAgent:    envOr("ICEDL_USER_AGENT", ""),
		Referrer:     envOr("ICEDL_REFERRER", ""),
		FetchTimeout: envDurationOr("ICEDL_FETCH_TIMEOUT", 20*time.Second),
		SessionTTL:   envDurationOr("ICEDL_SESSION_TTL", 0),
	}
}

// AjaxURL est l'endpoint XHR du lecteur, dérivé de SiteURL.
func (c Config) AjaxURL() string {
	base := c.SiteURL
	if base == "" {
		return ""
	}
	if base[len(base)-1] != '/' {
		base += "/"
	}
	return base + "membersonly/components/com_iceplayer/video.php"
}

func envOr(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func envDurationOr(key string, def time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	if d, err := time.ParseDuration(v); err == nil {
		return d
	}
	if secs, err := strconv.Atoi(v); err == nil {
		return time.Duration(secs) * time.Second
	}
	return def
}
