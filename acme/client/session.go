// Package client provides the low-level ACME v2 protocol machinery: the
// Session (directory and nonce state), the Login (account identity) and the
// Connection (signed request I/O).
package client

import (
	"crypto"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/sgrant/acmeclient/acme"
	"github.com/sgrant/acmeclient/acme/jsondoc"
	acmenet "github.com/sgrant/acmeclient/net"
)

// BuiltinProviders maps well known CA names to their directory URLs. Entries
// in Config.Providers are merged over these at session construction.
var BuiltinProviders = map[string]string{
	"letsencrypt":         "https://acme-v02.api.letsencrypt.org/directory",
	"letsencrypt-staging": "https://acme-staging-v02.api.letsencrypt.org/directory",
	"pebble":              "https://localhost:14000/dir",
}

// Config contains the options provided to NewSession.
type Config struct {
	// A fully qualified URL for the ACME server's directory resource, or the
	// name of a provider from BuiltinProviders/Providers. Mandatory.
	DirectoryURL string
	// Additional provider name to directory URL mappings consulted before
	// BuiltinProviders when resolving DirectoryURL.
	Providers map[string]string
	// An optional file path to one or more PEM encoded CA certificates used
	// as HTTPS trust roots for the ACME server. Empty means system roots.
	CACert string
	// The Accept-Language preference sent to the server.
	AcceptLanguage string
	// An optional overall HTTP request timeout.
	Timeout time.Duration
}

// normalize validates a Config and resolves provider shorthand names.
func (conf *Config) normalize() error {
	conf.DirectoryURL = strings.TrimSpace(conf.DirectoryURL)

	if conf.DirectoryURL == "" {
		return fmt.Errorf("DirectoryURL must not be empty")
	}

	if resolved, ok := conf.Providers[conf.DirectoryURL]; ok {
		conf.DirectoryURL = resolved
	} else if resolved, ok := BuiltinProviders[conf.DirectoryURL]; ok {
		conf.DirectoryURL = resolved
	}

	parsed, err := url.Parse(conf.DirectoryURL)
	if err != nil {
		return fmt.Errorf("DirectoryURL invalid: %s", err.Error())
	}
	if parsed.Scheme != "http" && parsed.Scheme != "https" {
		return fmt.Errorf("DirectoryURL %q is not an HTTP/HTTPS URL", conf.DirectoryURL)
	}

	return nil
}

// Session holds the state shared by all requests to one ACME server: the
// directory URL, the lazily fetched directory document, and the single-slot
// anti-replay nonce cache.
//
// A Session is not safe for concurrent use. Requests through one Session are
// strictly serial; callers wanting concurrency create one Session per
// goroutine.
type Session struct {
	directoryURL *url.URL
	net          *acmenet.ACMENet
	directory    *jsondoc.Value
	nonce        string
}

// NewSession creates a Session from the given Config. The directory is not
// fetched until first use.
func NewSession(config Config) (*Session, error) {
	if err := config.normalize(); err != nil {
		return nil, err
	}

	net, err := acmenet.New(acmenet.Config{
		CABundlePath:   config.CACert,
		AcceptLanguage: config.AcceptLanguage,
		Timeout:        config.Timeout,
	})
	if err != nil {
		return nil, err
	}

	// The err is safe to discard, normalize parsed the URL above.
	dirURL, _ := url.Parse(config.DirectoryURL)

	return &Session{
		directoryURL: dirURL,
		net:          net,
	}, nil
}

// DirectoryURL returns the server's directory URL.
func (s *Session) DirectoryURL() *url.URL {
	return s.directoryURL
}

// Connect returns a Connection for performing one or more requests against
// this session's server. Releasing a Connection leaves session state (the
// directory cache and the nonce slot) untouched.
func (s *Session) Connect() *Connection {
	return &Connection{session: s}
}

// NewLogin binds an existing account URL and its key pair to this Session.
func (s *Session) NewLogin(accountURL string, signer crypto.Signer) *Login {
	return &Login{
		session:    s,
		accountURL: accountURL,
		signer:     signer,
	}
}

// Directory returns the server's directory document, fetching it on first
// use. The directory is never refetched implicitly; call UpdateDirectory for
// an explicit refresh.
func (s *Session) Directory() (*jsondoc.Value, error) {
	if s.directory == nil {
		if err := s.UpdateDirectory(); err != nil {
			return nil, err
		}
	}
	return s.directory, nil
}

// UpdateDirectory fetches the directory resource and replaces the cached
// copy.
func (s *Session) UpdateDirectory() error {
	conn := s.Connect()
	if err := conn.SendRequest(s.directoryURL.String()); err != nil {
		return err
	}

	doc, err := conn.JSON()
	if err != nil {
		return err
	}

	s.directory = doc
	return nil
}

// ResourceURL returns the directory URL for the given resource kind
// (newNonce, newAccount, newOrder, newAuthz, revokeCert, keyChange). The
// server omitting the entry is an error; use HasResource to probe optional
// endpoints.
func (s *Session) ResourceURL(kind string) (string, error) {
	dir, err := s.Directory()
	if err != nil {
		return "", err
	}

	member, ok := dir.Optional(kind)
	if !ok {
		return "", acme.Protocolf("server directory is missing a %q entry", kind)
	}
	resourceURL, err := member.AsURL()
	if err != nil {
		return "", err
	}
	return resourceURL.String(), nil
}

// HasResource reports whether the server's directory advertises the given
// resource kind.
func (s *Session) HasResource(kind string) bool {
	dir, err := s.Directory()
	if err != nil {
		return false
	}
	_, ok := dir.Optional(kind)
	return ok
}

// Meta returns the directory's meta object. An absent meta yields a marker
// whose optional lookups all report absent.
func (s *Session) Meta() *jsondoc.Value {
	dir, err := s.Directory()
	if err != nil {
		return jsondoc.Empty("$." + acme.META_KEY)
	}
	return dir.Get(acme.META_KEY)
}

// TermsOfService returns the URL of the server's current terms of service,
// if it publishes one.
func (s *Session) TermsOfService() (string, bool) {
	return s.metaString("termsOfService")
}

// Website returns the URL of the CA's website, if published.
func (s *Session) Website() (string, bool) {
	return s.metaString("website")
}

// CaaIdentities returns the CAA identities the CA recognizes.
func (s *Session) CaaIdentities() []string {
	member, ok := s.Meta().Optional("caaIdentities")
	if !ok {
		return nil
	}
	identities, err := member.AsStrings()
	if err != nil {
		return nil
	}
	return identities
}

// ExternalAccountRequired reports whether the CA requires an external
// account binding on newAccount requests.
func (s *Session) ExternalAccountRequired() bool {
	member, ok := s.Meta().Optional("externalAccountRequired")
	if !ok {
		return false
	}
	required, err := member.AsBool()
	return err == nil && required
}

// AutoRenewalEnabled reports whether the CA advertises short-term automatic
// renewal (STAR, RFC 8739) in its directory metadata.
func (s *Session) AutoRenewalEnabled() bool {
	_, ok := s.Meta().Optional("auto-renewal")
	return ok
}

func (s *Session) metaString(key string) (string, bool) {
	member, ok := s.Meta().Optional(key)
	if !ok {
		return "", false
	}
	value, err := member.AsString()
	if err != nil {
		return "", false
	}
	return value, true
}

// Nonce satisfies the JWS NonceSource interface from the session's
// single-slot nonce cache. The cached nonce is consumed; if the slot is
// empty a fresh nonce is fetched from the newNonce endpoint first. The slot
// is refilled from the Replay-Nonce header of the next response.
func (s *Session) Nonce() (string, error) {
	if s.nonce == "" {
		if err := s.refreshNonce(); err != nil {
			return "", err
		}
	}

	nonce := s.nonce
	s.nonce = ""
	return nonce, nil
}

// SetNonce stores a nonce in the session's slot, replacing any cached value.
func (s *Session) SetNonce(nonce string) {
	if nonce != "" {
		s.nonce = nonce
	}
}

// refreshNonce fetches a new nonce from the ACME server's newNonce endpoint
// and stores it in the slot.
// See https://tools.ietf.org/html/rfc8555#section-7.2
func (s *Session) refreshNonce() error {
	nonceURL, err := s.ResourceURL(acme.NEW_NONCE_ENDPOINT)
	if err != nil {
		return err
	}

	resp, err := s.net.HeadURL(nonceURL)
	if err != nil {
		return &acme.NetworkError{URL: nonceURL, Err: err}
	}

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusNoContent {
		return acme.Protocolf("%q returned HTTP status %d, expected %d or %d",
			acme.NEW_NONCE_ENDPOINT, resp.StatusCode, http.StatusOK, http.StatusNoContent)
	}

	nonce := resp.Header.Get(acme.REPLAY_NONCE_HEADER)
	if nonce == "" {
		return acme.Protocolf("%q returned no %q header value",
			acme.NEW_NONCE_ENDPOINT, acme.REPLAY_NONCE_HEADER)
	}

	s.nonce = nonce
	return nil
}
