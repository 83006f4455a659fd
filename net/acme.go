// Package net provides common HTTP utilities.
package net

import (
	"bytes"
	"crypto/tls"
	"crypto/x509"
	"fmt"
	"io"
	"net/http"
	"os"
	"runtime"
	"time"
)

const (
	version       = "0.3.0"
	userAgentBase = "sgrant.acmeclient"
	defaultLocale = "en-us"
)

// Config holds the networking options for an ACMENet instance.
type Config struct {
	// An optional file path to one or more PEM encoded CA certificates used
	// as trust roots for HTTPS requests to the ACME server. If empty the
	// default system roots are used.
	CABundlePath string
	// The Accept-Language header sent with every request. Defaults to
	// "en-us".
	AcceptLanguage string
	// An optional overall request timeout. Zero means no timeout.
	Timeout time.Duration
}

// ACMENet makes HTTP GET/POST/HEAD requests to an ACME server.
type ACMENet struct {
	httpClient     *http.Client
	acceptLanguage string
}

// New creates an ACMENet from the given Config.
func New(config Config) (*ACMENet, error) {
	var caBundle *x509.CertPool
	if config.CABundlePath != "" {
		pemBundle, err := os.ReadFile(config.CABundlePath)
		if err != nil {
			return nil, err
		}

		caBundle = x509.NewCertPool()
		caBundle.AppendCertsFromPEM(pemBundle)
	}

	locale := config.AcceptLanguage
	if locale == "" {
		locale = defaultLocale
	}

	return &ACMENet{
		httpClient: &http.Client{
			Timeout: config.Timeout,
			Transport: &http.Transport{
				Proxy: http.ProxyFromEnvironment,
				TLSClientConfig: &tls.Config{
					RootCAs: caBundle,
				},
			},
		},
		acceptLanguage: locale,
	}, nil
}

// NetResponse holds the results from calling Do with an HTTP Request.
type NetResponse struct {
	// The HTTP Response object from making the request.
	Response *http.Response
	// The response body.
	RespBody []byte
}

// Do performs an HTTP request, returning a pointer to a NetResponse instance
// or an error. User-Agent and Accept-Language headers are automatically
// added to the request. The body of the HTTP Response is read into the
// NetResponse and can not be read again.
func (c *ACMENet) Do(req *http.Request) (*NetResponse, error) {
	ua := fmt.Sprintf("%s %s (%s; %s)",
		userAgentBase, version, runtime.GOOS, runtime.GOARCH)
	req.Header.Set("User-Agent", ua)
	req.Header.Set("Accept-Language", c.acceptLanguage)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}

	return &NetResponse{
		Response: resp,
		RespBody: respBody,
	}, nil
}

// HeadURL sends a HEAD request to the given URL.
func (c *ACMENet) HeadURL(url string) (*http.Response, error) {
	req, err := http.NewRequest("HEAD", url, nil)
	if err != nil {
		return nil, err
	}
	resp, err := c.Do(req)
	if err != nil {
		return nil, err
	}
	return resp.Response, nil
}

// PostRequest constructs a POST request to the given URL with the given JWS
// body. Signed ACME requests always carry Content-Type
// application/jose+json. An optional accept overrides the Accept header,
// used when downloading certificate chains.
func (c *ACMENet) PostRequest(url string, body []byte, accept string) (*http.Request, error) {
	req, err := http.NewRequest("POST", url, bytes.NewBuffer(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/jose+json")
	if accept != "" {
		req.Header.Set("Accept", accept)
	}
	return req, nil
}

// PostURL POSTs the given URL with the given body. This is a wrapper
// combining PostRequest and Do.
func (c *ACMENet) PostURL(url string, body []byte, accept string) (*NetResponse, error) {
	req, err := c.PostRequest(url, body, accept)
	if err != nil {
		return nil, err
	}
	return c.Do(req)
}

// GetRequest constructs a GET request to the given URL.
func (c *ACMENet) GetRequest(url string) (*http.Request, error) {
	return http.NewRequest("GET", url, nil)
}

// GetURL GETs the given URL. This is a wrapper combining GetRequest and Do.
func (c *ACMENet) GetURL(url string) (*NetResponse, error) {
	req, err := c.GetRequest(url)
	if err != nil {
		return nil, err
	}
	return c.Do(req)
}
