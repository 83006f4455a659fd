package client

import (
	"crypto"
	"crypto/x509"
	"encoding/pem"
	"errors"
	"mime"
	"net/http"
	"strings"
	"time"

	"github.com/sgrant/acmeclient/acme"
	"github.com/sgrant/acmeclient/acme/codec"
	"github.com/sgrant/acmeclient/acme/jsondoc"
	"github.com/sgrant/acmeclient/acme/keys"
)

// The documentation link relation used by rate limit problem responses.
const documentationRel = "urn:ietf:params:acme:documentation"

// How many times a request is retransmitted after the server rejected its
// nonce with badNonce.
const maxBadNonceRetries = 3

// Connection performs requests against an ACME server and exposes the parts
// of the last response the protocol cares about: the JSON body, the
// Location and Link headers, the Replay-Nonce and Retry-After values, and
// PEM certificate chains.
//
// A Connection is a short-lived helper obtained from Session.Connect.
// Discarding it never discards session state.
type Connection struct {
	session *Session
	resp    *http.Response
	body    []byte
}

// SendRequest performs an unsigned GET request. It is only used for the
// directory resource; everything else is POST-as-GET.
func (c *Connection) SendRequest(url string) error {
	resp, err := c.session.net.GetURL(url)
	if err != nil {
		return &acme.NetworkError{URL: url, Err: err}
	}
	c.capture(resp.Response, resp.RespBody)

	if resp.Response.StatusCode >= 400 {
		return c.responseError()
	}
	return nil
}

// SendSignedRequest sends claims to url in a JWS signed with the login's
// account key, identified by its account URL ("kid").
func (c *Connection) SendSignedRequest(url string, claims *jsondoc.Builder, login *Login) error {
	payload, err := claims.Bytes()
	if err != nil {
		return err
	}
	return c.sendSigned(url, payload, login.Signer(), keys.SignOptions{KeyID: login.AccountURL()}, "")
}

// SendSignedRequestWithKey sends claims to url in a JWS signed with the
// given key, embedded in the protected header as a JWK. Used for newAccount
// and for revocation with the certificate's key.
func (c *Connection) SendSignedRequestWithKey(url string, claims *jsondoc.Builder, signer crypto.Signer) error {
	payload, err := claims.Bytes()
	if err != nil {
		return err
	}
	return c.sendSigned(url, payload, signer, keys.SignOptions{EmbedKey: true}, "")
}

// SendSignedRawRequest sends a pre-serialized payload (such as the inner JWS
// of a key rollover) to url in a JWS signed with the login's account key.
func (c *Connection) SendSignedRawRequest(url string, payload []byte, login *Login) error {
	return c.sendSigned(url, payload, login.Signer(), keys.SignOptions{KeyID: login.AccountURL()}, "")
}

// SendSignedPostAsGet fetches url with a POST-as-GET request: a JWS with an
// empty payload signed by the login's account key.
// See https://tools.ietf.org/html/rfc8555#section-6.3
func (c *Connection) SendSignedPostAsGet(url string, login *Login) error {
	return c.sendSigned(url, []byte{}, login.Signer(), keys.SignOptions{KeyID: login.AccountURL()}, "")
}

// SendCertificateRequest fetches a certificate chain with a POST-as-GET
// request accepting application/pem-certificate-chain.
func (c *Connection) SendCertificateRequest(url string, login *Login) error {
	return c.sendSigned(url, []byte{}, login.Signer(), keys.SignOptions{KeyID: login.AccountURL()},
		acme.PEM_CHAIN_CONTENT_TYPE)
}

// sendSigned signs payload and POSTs it to targetURL, retrying with a fresh
// nonce when the server rejects the request with badNonce. The same payload,
// URL and key are reused for every attempt.
func (c *Connection) sendSigned(targetURL string, payload []byte, signer crypto.Signer, opts keys.SignOptions, accept string) error {
	opts.NonceSource = c.session

	for attempt := 0; ; attempt++ {
		signedBody, err := keys.Sign(targetURL, payload, signer, opts)
		if err != nil {
			return err
		}

		resp, err := c.session.net.PostURL(targetURL, signedBody, accept)
		if err != nil {
			// The nonce was consumed when signing and no response arrived to
			// replace it; the next request fetches a fresh one.
			return &acme.NetworkError{URL: targetURL, Err: err}
		}
		c.capture(resp.Response, resp.RespBody)

		if resp.Response.StatusCode < 400 {
			return nil
		}

		respErr := c.responseError()
		var serverErr *acme.ServerError
		if errors.As(respErr, &serverErr) &&
			serverErr.IsType(acme.ErrorBadNonce) &&
			attempt < maxBadNonceRetries {
			// The failed response carried a fresh Replay-Nonce that capture
			// already stored; re-sign and retransmit.
			continue
		}
		return respErr
	}
}

// capture stores the response for the accessors below and feeds its
// Replay-Nonce header back into the session's nonce slot.
func (c *Connection) capture(resp *http.Response, body []byte) {
	c.resp = resp
	c.body = body
	c.session.SetNonce(resp.Header.Get(acme.REPLAY_NONCE_HEADER))
}

// StatusCode returns the HTTP status of the last response.
func (c *Connection) StatusCode() int {
	if c.resp == nil {
		return 0
	}
	return c.resp.StatusCode
}

// JSON parses the last response body as a JSON document. An empty body
// yields an absent marker.
func (c *Connection) JSON() (*jsondoc.Value, error) {
	if len(c.body) == 0 {
		return jsondoc.Empty("$"), nil
	}
	return jsondoc.Parse(c.body)
}

// Certificates parses the last response body as a PEM certificate chain,
// ordered as served (end-entity certificate first).
func (c *Connection) Certificates() ([]*x509.Certificate, error) {
	var chain []*x509.Certificate
	rest := c.body
	for {
		var block *pem.Block
		block, rest = pem.Decode(rest)
		if block == nil {
			break
		}
		if block.Type != "CERTIFICATE" {
			return nil, acme.Protocolf("unexpected %q PEM block in certificate chain", block.Type)
		}
		cert, err := x509.ParseCertificate(block.Bytes)
		if err != nil {
			return nil, acme.Protocolf("invalid certificate in chain: %s", err)
		}
		chain = append(chain, cert)
	}

	if len(chain) == 0 {
		return nil, acme.Protocolf("response contained no certificates")
	}
	return chain, nil
}

// Location returns the Location header of the last response.
func (c *Connection) Location() (string, bool) {
	if c.resp == nil {
		return "", false
	}
	location := c.resp.Header.Get(acme.LOCATION_HEADER)
	return location, location != ""
}

// Links returns the URLs of all Link headers with the given relation.
func (c *Connection) Links(relation string) []string {
	if c.resp == nil {
		return nil
	}

	var links []string
	for _, header := range c.resp.Header.Values(acme.LINK_HEADER) {
		for _, link := range strings.Split(header, ",") {
			parts := strings.Split(link, ";")
			if len(parts) < 2 {
				continue
			}
			target := strings.TrimSpace(parts[0])
			if !strings.HasPrefix(target, "<") || !strings.HasSuffix(target, ">") {
				continue
			}
			for _, param := range parts[1:] {
				param = strings.TrimSpace(param)
				if param == `rel="`+relation+`"` || param == "rel="+relation {
					links = append(links, strings.Trim(target, "<>"))
				}
			}
		}
	}
	return links
}

// ReplayNonce returns the Replay-Nonce header of the last response.
func (c *Connection) ReplayNonce() (string, bool) {
	if c.resp == nil {
		return "", false
	}
	nonce := c.resp.Header.Get(acme.REPLAY_NONCE_HEADER)
	return nonce, nonce != ""
}

// RetryAfter returns the instant indicated by the last response's
// Retry-After header.
func (c *Connection) RetryAfter() (time.Time, bool) {
	if c.resp == nil {
		return time.Time{}, false
	}
	when, err := codec.ParseRetryAfter(c.resp.Header.Get(acme.RETRY_AFTER_HEADER), time.Now())
	if err != nil || when.IsZero() {
		return time.Time{}, false
	}
	return when, true
}

// responseError translates a failed response into a typed error: a problem
// document becomes the error kind selected by its type URN, anything else
// a protocol error with a body preview.
func (c *Connection) responseError() error {
	status := c.resp.StatusCode

	contentType := c.resp.Header.Get("Content-Type")
	if mediaType, _, err := mime.ParseMediaType(contentType); err == nil &&
		mediaType == acme.PROBLEM_CONTENT_TYPE {
		if doc, err := jsondoc.Parse(c.body); err == nil {
			if problem, err := doc.AsProblem(); err == nil {
				if problem.Status == 0 {
					problem.Status = status
				}
				retryAfter, _ := c.RetryAfter()
				return acme.ProblemError(problem, retryAfter, c.Links(documentationRel))
			}
		}
	}

	preview := string(c.body)
	if len(preview) > 200 {
		preview = preview[:200]
	}
	return acme.Protocolf("server returned HTTP status %d: %s", status, preview)
}
