// Package util provides small helpers shared across the proxy internals.
package util

import (
	"net/http"
	"net/url"

	"github.com/antigravity-tools/agproxy/internal/config"
	log "github.com/sirupsen/logrus"
	"golang.org/x/net/proxy"
)

// SetProxy configures the client's transport for the configured outbound
// proxy. HTTP and HTTPS proxies go through the standard transport proxy
// hook; SOCKS5 gets a dedicated dialer. An unusable proxy URL is logged and
// ignored so a bad config cannot take the listener down.
func SetProxy(cfg *config.UpstreamProxyConfig, client *http.Client) *http.Client {
	if cfg == nil || !cfg.Enabled || cfg.URL == "" {
		return client
	}

	proxyURL, err := url.Parse(cfg.URL)
	if err != nil {
		log.Warnf("ignoring invalid upstream proxy url %q: %v", cfg.URL, err)
		return client
	}

	transport := &http.Transport{}
	switch proxyURL.Scheme {
	case "socks5", "socks5h":
		var auth *proxy.Auth
		if user := proxyURL.User; user != nil {
			password, _ := user.Password()
			auth = &proxy.Auth{User: user.Username(), Password: password}
		}
		dialer, err := proxy.SOCKS5("tcp", proxyURL.Host, auth, proxy.Direct)
		if err != nil {
			log.Warnf("ignoring unusable socks5 proxy %q: %v", cfg.URL, err)
			return client
		}
		transport.Dial = dialer.Dial
	case "http", "https":
		transport.Proxy = http.ProxyURL(proxyURL)
	default:
		log.Warnf("ignoring upstream proxy with unsupported scheme %q", proxyURL.Scheme)
		return client
	}

	client.Transport = transport
	return client
}
