package resources

import (
	"crypto"
	"fmt"
	"net"
	"time"

	"github.com/sgrant/acmeclient/acme"
	"github.com/sgrant/acmeclient/acme/client"
	"github.com/sgrant/acmeclient/acme/csr"
	"github.com/sgrant/acmeclient/acme/jsondoc"
)

// OrderConfig describes a certificate order: the identifiers to include and
// the optional requested validity interval.
type OrderConfig struct {
	Identifiers []acme.Identifier
	NotBefore   time.Time
	NotAfter    time.Time
}

// Order represents a collection of identifiers an account wants
// a certificate for.
//
// See https://tools.ietf.org/html/rfc8555#section-7.1.3
type Order struct {
	Resource
	// The Status of the Order.
	Status acme.Status
	// The identifiers the order covers.
	Identifiers []acme.Identifier
	// URLs of the Authorization resources the server requires for the
	// order's identifiers.
	AuthorizationURLs []string
	// The URL used to finalize the order with a CSR once it is ready.
	FinalizeURL string
	// The URL to download the issued certificate from. Present once the
	// order status is valid.
	CertificateURL string
	// The requested validity interval, when one was requested.
	NotBefore time.Time
	NotAfter  time.Time
	// The time at which the server considers the order expired.
	Expires time.Time
	// The problem that made the order invalid, if the server reported one.
	Error *acme.Problem
}

// NewOrderResource binds an existing order URL to a login.
func NewOrderResource(login *client.Login, orderURL string) *Order {
	return &Order{Resource: newResource(login, orderURL)}
}

// Update fetches the order's current server-side state. Fetch is the same
// operation under the name RFC 8555 uses.
func (o *Order) Update() error {
	doc, err := o.fetch()
	if err != nil {
		return err
	}
	return o.unmarshal(doc)
}

// Fetch is an alias for Update.
func (o *Order) Fetch() error {
	return o.Update()
}

func (o *Order) unmarshal(doc *jsondoc.Value) error {
	var err error
	if o.Status, err = doc.Get("status").AsStatus(); err != nil {
		return err
	}

	identifierDocs, err := doc.Get("identifiers").AsArray()
	if err != nil {
		return err
	}
	o.Identifiers = o.Identifiers[:0]
	for _, identifierDoc := range identifierDocs {
		identifier, err := identifierDoc.AsIdentifier()
		if err != nil {
			return err
		}
		o.Identifiers = append(o.Identifiers, identifier)
	}

	if o.AuthorizationURLs, err = doc.Get("authorizations").AsStrings(); err != nil {
		return err
	}
	if finalize, ok := doc.Optional("finalize"); ok {
		finalizeURL, err := finalize.AsURL()
		if err != nil {
			return err
		}
		o.FinalizeURL = finalizeURL.String()
	}
	o.CertificateURL = ""
	if certificate, ok := doc.Optional("certificate"); ok {
		certificateURL, err := certificate.AsURL()
		if err != nil {
			return err
		}
		o.CertificateURL = certificateURL.String()
	}
	for key, target := range map[string]*time.Time{
		"notBefore": &o.NotBefore,
		"notAfter":  &o.NotAfter,
		"expires":   &o.Expires,
	} {
		if member, ok := doc.Optional(key); ok {
			if *target, err = member.AsInstant(); err != nil {
				return err
			}
		}
	}
	o.Error = nil
	if problem, ok := doc.Optional("error"); ok {
		if o.Error, err = problem.AsProblem(); err != nil {
			return err
		}
	}
	return nil
}

// Status predicates.

func (o *Order) IsPending() bool    { return o.Status == acme.StatusPending }
func (o *Order) IsReady() bool      { return o.Status == acme.StatusReady }
func (o *Order) IsProcessing() bool { return o.Status == acme.StatusProcessing }
func (o *Order) IsValid() bool      { return o.Status == acme.StatusValid }
func (o *Order) IsInvalid() bool    { return o.Status == acme.StatusInvalid }

// IsFailed reports whether the order can no longer complete.
func (o *Order) IsFailed() bool {
	return o.Status == acme.StatusInvalid || o.Error != nil
}

// Authorizations returns Authorization resources for the order's
// authorization URLs. The returned resources are unloaded.
func (o *Order) Authorizations() ([]*Authorization, error) {
	if err := o.requireLoaded(); err != nil {
		return nil, err
	}
	authorizations := make([]*Authorization, len(o.AuthorizationURLs))
	for i, authzURL := range o.AuthorizationURLs {
		authorizations[i] = NewAuthorization(o.Login(), authzURL)
	}
	return authorizations, nil
}

// Finalize submits a DER encoded CSR to the order's finalize URL. The
// response is the updated order.
// See https://tools.ietf.org/html/rfc8555#section-7.4
func (o *Order) Finalize(csrDER []byte) error {
	if err := o.requireLoaded(); err != nil {
		return err
	}
	if o.FinalizeURL == "" {
		return fmt.Errorf("order %s has no finalize URL", o.Location())
	}

	claims := jsondoc.NewBuilder()
	claims.PutBase64("csr", csrDER)

	conn := o.Login().Session().Connect()
	if err := conn.SendSignedRequest(o.FinalizeURL, claims, o.Login()); err != nil {
		return err
	}

	doc, err := o.applyResponse(conn)
	if err != nil {
		return err
	}
	return o.unmarshal(doc)
}

// Execute builds a CSR covering the order's identifiers, signs it with the
// given certificate key, and finalizes the order with it. The certificate
// key must not be the account key.
func (o *Order) Execute(certSigner crypto.Signer) error {
	if err := o.requireLoaded(); err != nil {
		return err
	}

	var config csr.Config
	for _, identifier := range o.Identifiers {
		switch identifier.Type {
		case acme.IdentifierDNS:
			config.Domains = append(config.Domains, identifier.Value)
		case acme.IdentifierIP:
			ip := net.ParseIP(identifier.Value)
			if ip == nil {
				return fmt.Errorf("order %s has invalid IP identifier %q",
					o.Location(), identifier.Value)
			}
			config.IPs = append(config.IPs, ip)
		default:
			return fmt.Errorf("order %s has unsupported identifier type %q",
				o.Location(), identifier.Type)
		}
	}

	csrDER, err := config.Sign(certSigner)
	if err != nil {
		return err
	}
	return o.Finalize(csrDER)
}

// Certificate returns the issued certificate resource. The order must be
// valid and carry a certificate URL.
func (o *Order) Certificate() (*Certificate, error) {
	if err := o.requireLoaded(); err != nil {
		return nil, err
	}
	if !o.IsValid() || o.CertificateURL == "" {
		return nil, fmt.Errorf("order %s has no certificate yet (status %q)",
			o.Location(), o.Status)
	}
	return NewCertificate(o.Login(), o.CertificateURL), nil
}

// Poll updates the order until it is valid or invalid, honoring the
// server's Retry-After header, for at most timeout.
func (o *Order) Poll(timeout time.Duration) error {
	deadline := time.Now().Add(timeout)
	for {
		if !o.Loaded() {
			if err := o.Update(); err != nil {
				return err
			}
		}
		switch o.Status {
		case acme.StatusValid:
			return nil
		case acme.StatusInvalid:
			if o.Error != nil {
				return &acme.ServerError{Problem: o.Error}
			}
			return fmt.Errorf("order %s failed", o.Location())
		}
		if !o.waitRetryAfter(deadline) {
			return fmt.Errorf("order %s did not complete before the deadline", o.Location())
		}
		if err := o.Update(); err != nil {
			return err
		}
	}
}
