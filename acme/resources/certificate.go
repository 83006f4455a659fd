package resources

import (
	"crypto"
	"crypto/x509"
	"fmt"
	"io"

	"github.com/sgrant/acmeclient/acme"
	"github.com/sgrant/acmeclient/acme/client"
	"github.com/sgrant/acmeclient/acme/codec"
	"github.com/sgrant/acmeclient/acme/jsondoc"
)

// Certificate represents an issued certificate and its chain. The chain is
// downloaded lazily and is immutable once fetched; for renewal a new order
// must be placed.
type Certificate struct {
	Resource
	chain      []*x509.Certificate
	alternates []string
}

// NewCertificate binds a certificate download URL to a login.
func NewCertificate(login *client.Login, certURL string) *Certificate {
	return &Certificate{Resource: newResource(login, certURL)}
}

// Download fetches the certificate chain. The chain is downloaded lazily by
// the accessors, so calling Download is only needed to force the fetch. If
// the chain was already downloaded nothing happens.
func (c *Certificate) Download() error {
	if c.chain != nil {
		return nil
	}

	conn := c.Login().Session().Connect()
	if err := conn.SendCertificateRequest(c.Location(), c.Login()); err != nil {
		return err
	}

	chain, err := conn.Certificates()
	if err != nil {
		return err
	}
	c.chain = chain
	c.alternates = conn.Links("alternate")
	return nil
}

// Leaf returns the end-entity certificate, without the issuer chain.
func (c *Certificate) Leaf() (*x509.Certificate, error) {
	if err := c.Download(); err != nil {
		return nil, err
	}
	return c.chain[0], nil
}

// Chain returns the end-entity certificate followed by the intermediates
// needed to build a path to a trusted root.
func (c *Certificate) Chain() ([]*x509.Certificate, error) {
	if err := c.Download(); err != nil {
		return nil, err
	}
	return c.chain, nil
}

// Alternates returns the URLs of alternate certificate chains the server
// offered via Link: rel="alternate" headers.
func (c *Certificate) Alternates() ([]string, error) {
	if err := c.Download(); err != nil {
		return nil, err
	}
	return c.alternates, nil
}

// WritePEM writes the certificate chain to w in PEM format, end-entity
// certificate first.
func (c *Certificate) WritePEM(w io.Writer) error {
	chain, err := c.Chain()
	if err != nil {
		return err
	}
	for _, cert := range chain {
		if err := codec.WritePEM(w, "CERTIFICATE", cert.Raw); err != nil {
			return err
		}
	}
	return nil
}

// Revoke revokes this certificate, signed by the account key. An optional
// single revocation reason may be given.
// See https://tools.ietf.org/html/rfc8555#section-7.6
func (c *Certificate) Revoke(reason ...acme.RevocationReason) error {
	leaf, err := c.Leaf()
	if err != nil {
		return err
	}
	login := c.Login()
	return revoke(login.Session(), leaf, reason, func(revokeURL string, claims *jsondoc.Builder) error {
		conn := login.Session().Connect()
		return conn.SendSignedRequest(revokeURL, claims, login)
	})
}

// RevokeWithKey revokes a certificate using the certificate's own key pair
// instead of an account key, for when the account key was lost. The request
// is signed by the given key with an embedded JWK.
func RevokeWithKey(session *client.Session, certSigner crypto.Signer, cert *x509.Certificate, reason ...acme.RevocationReason) error {
	return revoke(session, cert, reason, func(revokeURL string, claims *jsondoc.Builder) error {
		conn := session.Connect()
		return conn.SendSignedRequestWithKey(revokeURL, claims, certSigner)
	})
}

func revoke(session *client.Session, cert *x509.Certificate, reason []acme.RevocationReason, send func(string, *jsondoc.Builder) error) error {
	if len(reason) > 1 {
		return fmt.Errorf("at most one revocation reason may be given")
	}

	revokeURL, err := session.ResourceURL(acme.REVOKE_CERT_ENDPOINT)
	if err != nil {
		return err
	}

	claims := jsondoc.NewBuilder()
	claims.PutBase64("certificate", cert.Raw)
	if len(reason) == 1 {
		claims.Put("reason", int(reason[0]))
	}

	return send(revokeURL, claims)
}
