package resources

import (
	"crypto"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/sgrant/acmeclient/acme"
	"github.com/sgrant/acmeclient/acme/client"
	"github.com/sgrant/acmeclient/acme/jsondoc"
	"github.com/sgrant/acmeclient/acme/keys"
)

// ExternalAccountBinding carries the CA-provided credentials that tie a new
// ACME account to an account in the CA's own systems.
// See https://tools.ietf.org/html/rfc8555#section-7.3.4
type ExternalAccountBinding struct {
	// The key identifier issued by the CA.
	KeyIdentifier string
	// The MAC key issued by the CA, already decoded from base64url.
	MACKey []byte
}

// AccountConfig contains the options for registering an account.
type AccountConfig struct {
	// Contact URLs for the account, e.g. "mailto:admin@example.org".
	Contacts []string
	// Whether the user agreed to the CA's terms of service. Most CAs refuse
	// registration without it.
	TermsOfServiceAgreed bool
	// If true the server only returns an existing account for the key and
	// never creates one.
	OnlyReturnExisting bool
	// External account binding credentials, when the CA requires them.
	ExternalAccountBinding *ExternalAccountBinding
}

// Account represents an account on the ACME server.
//
// See https://tools.ietf.org/html/rfc8555#section-7.1.2
type Account struct {
	Resource
	// The status of the account: valid, deactivated or revoked.
	Status acme.Status
	// The contact URLs registered for the account.
	Contact []string
	// Whether the account holder agreed to the terms of service.
	TermsOfServiceAgreed bool
	// The URL of the account's orders list, when the server provides one.
	OrdersURL string
	// Whether the account carries an external account binding.
	ExternalAccountBound bool
}

// Register creates (or, with OnlyReturnExisting, locates) an account on the
// server. The request is signed with the account key embedded as a JWK
// because no account URL exists yet. On success the returned Account is
// bound to a fresh Login for the location the server assigned.
// See https://tools.ietf.org/html/rfc8555#section-7.3
func Register(session *client.Session, signer crypto.Signer, config AccountConfig) (*Account, error) {
	newAccountURL, err := session.ResourceURL(acme.NEW_ACCOUNT_ENDPOINT)
	if err != nil {
		return nil, err
	}

	claims := jsondoc.NewBuilder()
	if config.TermsOfServiceAgreed {
		claims.Put("termsOfServiceAgreed", true)
	}
	if len(config.Contacts) > 0 {
		claims.Put("contact", config.Contacts)
	}
	if config.OnlyReturnExisting {
		claims.Put("onlyReturnExisting", true)
	}
	if eab := config.ExternalAccountBinding; eab != nil {
		binding, err := keys.SignExternalAccountBinding(
			newAccountURL, eab.KeyIdentifier, eab.MACKey, signer.Public())
		if err != nil {
			return nil, err
		}
		claims.Put("externalAccountBinding", json.RawMessage(binding))
	}

	conn := session.Connect()
	if err := conn.SendSignedRequestWithKey(newAccountURL, claims, signer); err != nil {
		return nil, err
	}

	// RFC 8555 requires the Location header on newAccount responses; it is
	// the account's URL.
	location, ok := conn.Location()
	if !ok {
		return nil, acme.Protocolf("newAccount response carried no %s header",
			acme.LOCATION_HEADER)
	}

	account := NewAccount(session.NewLogin(location, signer))
	doc, err := account.applyResponse(conn)
	if err != nil {
		return nil, err
	}
	if doc.IsPresent() {
		if err := account.unmarshal(doc); err != nil {
			return nil, err
		}
	}
	return account, nil
}

// FindAccount locates the existing account for the given key without
// creating one.
func FindAccount(session *client.Session, signer crypto.Signer) (*Account, error) {
	return Register(session, signer, AccountConfig{OnlyReturnExisting: true})
}

// NewAccount binds an already registered account URL to its Login.
func NewAccount(login *client.Login) *Account {
	return &Account{Resource: newResource(login, login.AccountURL())}
}

// Update fetches the account's current server-side state.
func (a *Account) Update() error {
	doc, err := a.fetch()
	if err != nil {
		return err
	}
	return a.unmarshal(doc)
}

func (a *Account) unmarshal(doc *jsondoc.Value) error {
	var err error
	if a.Status, err = doc.Get("status").AsStatus(); err != nil {
		return err
	}
	a.Contact = nil
	if contact, ok := doc.Optional("contact"); ok {
		if a.Contact, err = contact.AsStrings(); err != nil {
			return err
		}
	}
	a.TermsOfServiceAgreed = false
	if agreed, ok := doc.Optional("termsOfServiceAgreed"); ok {
		if a.TermsOfServiceAgreed, err = agreed.AsBool(); err != nil {
			return err
		}
	}
	a.OrdersURL = ""
	if orders, ok := doc.Optional("orders"); ok {
		ordersURL, err := orders.AsURL()
		if err != nil {
			return err
		}
		a.OrdersURL = ordersURL.String()
	}
	_, a.ExternalAccountBound = doc.Optional("externalAccountBinding")
	return nil
}

// ModifyConfig describes the account fields Modify can change.
type ModifyConfig struct {
	// Replacement contact URLs. Nil leaves the contacts unchanged; an empty
	// non-nil slice removes them.
	Contacts []string
	// Set to agree to the current terms of service.
	AgreeToTermsOfService bool
}

// Modify updates the account on the server.
// See https://tools.ietf.org/html/rfc8555#section-7.3.2
func (a *Account) Modify(config ModifyConfig) error {
	claims := jsondoc.NewBuilder()
	if config.Contacts != nil {
		claims.Put("contact", config.Contacts)
	}
	if config.AgreeToTermsOfService {
		claims.Put("termsOfServiceAgreed", true)
	}

	conn := a.Login().Session().Connect()
	if err := conn.SendSignedRequest(a.Location(), claims, a.Login()); err != nil {
		return err
	}

	doc, err := a.applyResponse(conn)
	if err != nil {
		return err
	}
	return a.unmarshal(doc)
}

// Deactivate permanently deactivates the account. The server will no longer
// accept requests from it.
func (a *Account) Deactivate() error {
	claims := jsondoc.NewBuilder()
	claims.Put("status", string(acme.StatusDeactivated))

	conn := a.Login().Session().Connect()
	if err := conn.SendSignedRequest(a.Location(), claims, a.Login()); err != nil {
		return err
	}

	doc, err := a.applyResponse(conn)
	if err != nil {
		return err
	}
	return a.unmarshal(doc)
}

// KeyChange rolls the account over to a new key pair: an inner JWS signed
// by the new key carries the account URL and the old key, and becomes the
// payload of an outer JWS signed with the current key. On success the
// account's Login signs with the new key.
// See https://tools.ietf.org/html/rfc8555#section-7.3.5
func (a *Account) KeyChange(newSigner crypto.Signer) error {
	login := a.Login()
	session := login.Session()

	keyChangeURL, err := session.ResourceURL(acme.KEY_CHANGE_ENDPOINT)
	if err != nil {
		return err
	}

	inner, err := keys.SignKeyChange(keyChangeURL, login.AccountURL(), login.Signer(), newSigner)
	if err != nil {
		return err
	}

	conn := session.Connect()
	if err := conn.SendSignedRawRequest(keyChangeURL, inner, login); err != nil {
		return err
	}

	login.ReplaceSigner(newSigner)
	return nil
}

// PreAuthorize asks the server for an authorization for the given
// identifier ahead of any order. Servers advertise support through the
// optional newAuthz directory entry.
// See https://tools.ietf.org/html/rfc8555#section-7.4.1
func (a *Account) PreAuthorize(identifier acme.Identifier) (*Authorization, error) {
	session := a.Login().Session()
	if !session.HasResource(acme.NEW_AUTHZ_ENDPOINT) {
		return nil, fmt.Errorf("server does not support pre-authorization")
	}
	newAuthzURL, err := session.ResourceURL(acme.NEW_AUTHZ_ENDPOINT)
	if err != nil {
		return nil, err
	}

	claims := jsondoc.NewBuilder()
	identifierClaim := claims.Object("identifier")
	identifierClaim.Put("type", identifier.Type)
	identifierClaim.Put("value", identifier.Value)

	conn := session.Connect()
	if err := conn.SendSignedRequest(newAuthzURL, claims, a.Login()); err != nil {
		return nil, err
	}

	location, ok := conn.Location()
	if !ok {
		return nil, acme.Protocolf("newAuthz response carried no %s header",
			acme.LOCATION_HEADER)
	}

	authorization := NewAuthorization(a.Login(), location)
	doc, err := authorization.applyResponse(conn)
	if err != nil {
		return nil, err
	}
	if doc.IsPresent() {
		if err := authorization.unmarshal(doc); err != nil {
			return nil, err
		}
	}
	return authorization, nil
}

// NewOrder places a new certificate order for the configured identifiers.
// See https://tools.ietf.org/html/rfc8555#section-7.4
func (a *Account) NewOrder(config OrderConfig) (*Order, error) {
	if len(config.Identifiers) == 0 {
		return nil, fmt.Errorf("order has no identifiers")
	}

	session := a.Login().Session()
	newOrderURL, err := session.ResourceURL(acme.NEW_ORDER_ENDPOINT)
	if err != nil {
		return nil, err
	}

	claims := jsondoc.NewBuilder()
	claims.Put("identifiers", config.Identifiers)
	if !config.NotBefore.IsZero() {
		claims.PutInstant("notBefore", config.NotBefore)
	}
	if !config.NotAfter.IsZero() {
		claims.PutInstant("notAfter", config.NotAfter)
	}

	conn := session.Connect()
	if err := conn.SendSignedRequest(newOrderURL, claims, a.Login()); err != nil {
		return nil, err
	}
	if conn.StatusCode() != http.StatusCreated {
		return nil, acme.Protocolf("newOrder returned HTTP status %d, expected %d",
			conn.StatusCode(), http.StatusCreated)
	}

	location, ok := conn.Location()
	if !ok {
		return nil, acme.Protocolf("newOrder response carried no %s header",
			acme.LOCATION_HEADER)
	}

	order := NewOrderResource(a.Login(), location)
	doc, err := order.applyResponse(conn)
	if err != nil {
		return nil, err
	}
	if err := order.unmarshal(doc); err != nil {
		return nil, err
	}
	return order, nil
}

// OrderCertificate is a one-shot convenience combining NewOrder and
// Execute. It only succeeds against servers that consider the account
// already authorized for every identifier (e.g. through pre-authorization
// or cached valid authorizations); otherwise the finalize step fails and
// the order is returned with the error for the caller to inspect.
func (a *Account) OrderCertificate(config OrderConfig, certSigner crypto.Signer) (*Order, error) {
	order, err := a.NewOrder(config)
	if err != nil {
		return nil, err
	}
	if err := order.Execute(certSigner); err != nil {
		return order, err
	}
	return order, nil
}

// Orders fetches the account's order list and returns the order URLs.
// See https://tools.ietf.org/html/rfc8555#section-7.1.2.1
func (a *Account) Orders() ([]string, error) {
	if err := a.requireLoaded(); err != nil {
		return nil, err
	}
	if a.OrdersURL == "" {
		return nil, fmt.Errorf("server exposes no orders list for account %s", a.Location())
	}

	conn := a.Login().Session().Connect()
	if err := conn.SendSignedPostAsGet(a.OrdersURL, a.Login()); err != nil {
		return nil, err
	}
	doc, err := conn.JSON()
	if err != nil {
		return nil, err
	}
	return doc.Get("orders").AsStrings()
}
