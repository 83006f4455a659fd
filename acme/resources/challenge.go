package resources

import (
	"crypto"
	"crypto/rand"
	"crypto/x509"
	"crypto/x509/pkix"
	"encoding/asn1"
	"fmt"
	"math/big"
	"time"

	"github.com/sgrant/acmeclient/acme"
	"github.com/sgrant/acmeclient/acme/client"
	"github.com/sgrant/acmeclient/acme/codec"
	"github.com/sgrant/acmeclient/acme/jsondoc"
	"github.com/sgrant/acmeclient/acme/keys"
)

// Challenge type constants specified by RFC 8555 section 8 and RFC 8737.
const (
	TypeHTTP01    = "http-01"
	TypeDNS01     = "dns-01"
	TypeTLSALPN01 = "tls-alpn-01"
)

// The ALPN protocol name used when presenting a tls-alpn-01 validation
// certificate. See https://tools.ietf.org/html/rfc8737#section-4
const ACMETLS1Protocol = "acme-tls/1"

// IDPEACMEIdentifier is the OID of the acmeValidation certificate extension
// used by tls-alpn-01.
var IDPEACMEIdentifier = asn1.ObjectIdentifier{1, 3, 6, 1, 5, 5, 7, 1, 31}

// DNS01RecordName returns the name of the TXT record that publishes a
// dns-01 challenge response for the given host.
func DNS01RecordName(host string) string {
	return "_acme-challenge." + host
}

// HTTP01ResourcePath returns the well-known path the http-01 challenge
// response for token must be served under.
func HTTP01ResourcePath(token string) string {
	return "/.well-known/acme-challenge/" + token
}

// Challenge represents an action the client must take to prove control of
// an identifier. The challenge variant is discriminated by the Type tag;
// the typed helper methods (HTTP01Authorization, DNS01Digest,
// TLSALPN01Validation, ...) verify the tag before deriving a response.
// KeyAuthorization only requires a token and does not check the tag.
//
// See https://tools.ietf.org/html/rfc8555#section-7.1.5
type Challenge struct {
	Resource
	// The Type of the challenge: "http-01", "dns-01" or "tls-alpn-01" for
	// the variants this library can derive responses for.
	Type string
	// The Status of the challenge.
	Status acme.Status
	// The Token used for constructing the challenge response.
	Token string
	// The time the server validated the challenge, for valid challenges.
	Validated time.Time
	// The problem that made the challenge invalid, if the server rejected
	// it.
	Error *acme.Problem
}

// NewChallenge binds a challenge URL of the given expected type to a login.
func NewChallenge(login *client.Login, challengeURL, challengeType string) *Challenge {
	return &Challenge{
		Resource: newResource(login, challengeURL),
		Type:     challengeType,
	}
}

// Update fetches the challenge's current server-side state.
func (c *Challenge) Update() error {
	doc, err := c.fetch()
	if err != nil {
		return err
	}
	return c.unmarshal(doc)
}

func (c *Challenge) unmarshal(doc *jsondoc.Value) error {
	wireType, err := doc.Get("type").AsString()
	if err != nil {
		return err
	}
	// A challenge never changes type; a mismatch means the URL does not
	// belong to this challenge.
	if c.Type != "" && c.Type != wireType {
		return acme.Protocolf("challenge %s has type %q, expected %q",
			c.Location(), wireType, c.Type)
	}
	c.Type = wireType

	if c.Status, err = doc.Get("status").AsStatus(); err != nil {
		return err
	}

	if token, ok := doc.Optional("token"); ok {
		if c.Token, err = token.AsString(); err != nil {
			return err
		}
	}
	if validated, ok := doc.Optional("validated"); ok {
		if c.Validated, err = validated.AsInstant(); err != nil {
			return err
		}
	}
	c.Error = nil
	if problem, ok := doc.Optional("error"); ok {
		if c.Error, err = problem.AsProblem(); err != nil {
			return err
		}
	}
	return nil
}

// Trigger tells the server the challenge response is in place by POSTing an
// empty JSON object to the challenge URL. The authorization's state is not
// checked first; the server is the authority on whether the challenge can
// still be attempted.
func (c *Challenge) Trigger() error {
	conn := c.Login().Session().Connect()
	if err := conn.SendSignedRequest(c.Location(), jsondoc.NewBuilder(), c.Login()); err != nil {
		return err
	}

	doc, err := c.applyResponse(conn)
	if err != nil {
		return err
	}
	return c.unmarshal(doc)
}

// Poll updates the challenge until it is valid or invalid, honoring the
// server's Retry-After header, for at most timeout. An invalid challenge
// returns the server's problem as a ServerError when one was reported.
func (c *Challenge) Poll(timeout time.Duration) error {
	deadline := time.Now().Add(timeout)
	for {
		if err := c.requireLoadedOrUpdate(); err != nil {
			return err
		}
		switch c.Status {
		case acme.StatusValid:
			return nil
		case acme.StatusInvalid:
			if c.Error != nil {
				return &acme.ServerError{Problem: c.Error}
			}
			return fmt.Errorf("challenge %s failed validation", c.Location())
		}
		if !c.waitRetryAfter(deadline) {
			return fmt.Errorf("challenge %s was not validated before the deadline", c.Location())
		}
		if err := c.Update(); err != nil {
			return err
		}
	}
}

func (c *Challenge) requireLoadedOrUpdate() error {
	if c.Loaded() {
		return nil
	}
	return c.Update()
}

// requireToken checks the challenge carries a token and has the expected
// type tag before a response is derived from it.
func (c *Challenge) requireToken(challengeType string) error {
	if c.Type != challengeType {
		return acme.Protocolf("challenge %s is of type %q, not %q",
			c.Location(), c.Type, challengeType)
	}
	if c.Token == "" {
		return &acme.NotLoadedError{Location: c.Location()}
	}
	return nil
}

// KeyAuthorization derives the key authorization for this challenge's
// token: token || "." || thumbprint(accountKey). It is a pure function of
// the token and the account key.
func (c *Challenge) KeyAuthorization() (string, error) {
	if c.Token == "" {
		return "", &acme.NotLoadedError{Location: c.Location()}
	}
	return keys.KeyAuthorization(c.Login().Signer(), c.Token)
}

// HTTP01Authorization returns the body to serve under the http-01
// well-known path for this challenge. The challenge must be of type
// http-01.
func (c *Challenge) HTTP01Authorization() (string, error) {
	if err := c.requireToken(TypeHTTP01); err != nil {
		return "", err
	}
	return c.KeyAuthorization()
}

// DNS01Digest returns the TXT record value for a dns-01 challenge:
// base64url(SHA-256(key authorization)).
func (c *Challenge) DNS01Digest() (string, error) {
	if err := c.requireToken(TypeDNS01); err != nil {
		return "", err
	}
	keyAuth, err := c.KeyAuthorization()
	if err != nil {
		return "", err
	}
	return codec.Base64URLEncode(codec.SHA256([]byte(keyAuth))), nil
}

// TLSALPN01Validation returns the raw acmeValidation digest for
// a tls-alpn-01 challenge: SHA-256(key authorization), 32 bytes.
func (c *Challenge) TLSALPN01Validation() ([]byte, error) {
	if err := c.requireToken(TypeTLSALPN01); err != nil {
		return nil, err
	}
	keyAuth, err := c.KeyAuthorization()
	if err != nil {
		return nil, err
	}
	return codec.SHA256([]byte(keyAuth)), nil
}

// TLSALPN01Certificate builds the self-signed validation certificate for
// a tls-alpn-01 challenge: a certificate for the identifier being validated
// carrying the acmeValidation digest in a critical extension, to be
// presented during TLS handshakes negotiating the acme-tls/1 ALPN protocol.
// See https://tools.ietf.org/html/rfc8737#section-3
func (c *Challenge) TLSALPN01Certificate(host string, signer crypto.Signer) ([]byte, error) {
	digest, err := c.TLSALPN01Validation()
	if err != nil {
		return nil, err
	}

	// The extension value is the DER encoding of an OCTET STRING holding
	// the digest.
	extValue, err := asn1.Marshal(digest)
	if err != nil {
		return nil, err
	}

	serial, err := rand.Int(rand.Reader, new(big.Int).Lsh(big.NewInt(1), 128))
	if err != nil {
		return nil, err
	}

	template := &x509.Certificate{
		SerialNumber: serial,
		Subject:      pkix.Name{CommonName: host},
		DNSNames:     []string{host},
		NotBefore:    time.Now().Add(-time.Hour),
		NotAfter:     time.Now().Add(24 * time.Hour),
		ExtraExtensions: []pkix.Extension{
			{
				Id:       IDPEACMEIdentifier,
				Critical: true,
				Value:    extValue,
			},
		},
	}

	return x509.CreateCertificate(rand.Reader, template, template, signer.Public(), signer)
}
