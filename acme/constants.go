// Package acme provides ACME protocol constants, statuses, problem documents
// and the error types shared by the rest of the library. See RFC 8555.
package acme

const (
	// Directory constants
	// See https://tools.ietf.org/html/rfc8555#section-9.7.5

	// The ACME directory key for the newNonce endpoint.
	NEW_NONCE_ENDPOINT = "newNonce"
	// The ACME directory key for the newAccount endpoint.
	NEW_ACCOUNT_ENDPOINT = "newAccount"
	// The ACME directory key for the newOrder endpoint.
	NEW_ORDER_ENDPOINT = "newOrder"
	// The ACME directory key for the optional newAuthz endpoint.
	NEW_AUTHZ_ENDPOINT = "newAuthz"
	// The ACME directory key for the revokeCert endpoint.
	REVOKE_CERT_ENDPOINT = "revokeCert"
	// The ACME directory key for the keyChange endpoint.
	KEY_CHANGE_ENDPOINT = "keyChange"
	// The ACME directory key holding directory metadata.
	META_KEY = "meta"

	// The HTTP response header used by ACME to communicate a fresh nonce. See
	// https://tools.ietf.org/html/rfc8555#section-6.5.1
	REPLAY_NONCE_HEADER = "Replay-Nonce"
	// The HTTP response header carrying the canonical URL of a newly created
	// resource.
	LOCATION_HEADER = "Location"
	// The HTTP response header carrying related resource URLs.
	LINK_HEADER = "Link"
	// The HTTP response header used for polling back-pressure.
	RETRY_AFTER_HEADER = "Retry-After"

	// The media type for JWS request bodies. See
	// https://tools.ietf.org/html/rfc8555#section-6.2
	JOSE_JSON_CONTENT_TYPE = "application/jose+json"
	// The media type for problem documents. See RFC 7807.
	PROBLEM_CONTENT_TYPE = "application/problem+json"
	// The media type for downloaded certificate chains. See
	// https://tools.ietf.org/html/rfc8555#section-7.4.2
	PEM_CHAIN_CONTENT_TYPE = "application/pem-certificate-chain"
)

// RevocationReason is an RFC 5280 CRLReason code used when revoking
// a certificate. See https://tools.ietf.org/html/rfc5280#section-5.3.1
type RevocationReason int

const (
	ReasonUnspecified          RevocationReason = 0
	ReasonKeyCompromise        RevocationReason = 1
	ReasonCACompromise         RevocationReason = 2
	ReasonAffiliationChanged   RevocationReason = 3
	ReasonSuperseded           RevocationReason = 4
	ReasonCessationOfOperation RevocationReason = 5
	ReasonCertificateHold      RevocationReason = 6
	ReasonRemoveFromCRL        RevocationReason = 8
	ReasonPrivilegeWithdrawn   RevocationReason = 9
	ReasonAACompromise         RevocationReason = 10
)

// Identifier is a subject identifier that can be included in a certificate.
//
// See:
// https://tools.ietf.org/html/rfc8555#section-7.5
// https://tools.ietf.org/html/rfc8555#section-9.7.7
//
// A DNS type identifier used in a NewOrder request is allowed to contain
// a wildcard prefix (e.g. "*."). A DNS type identifier in an Authorization is
// *not* allowed to contain a wildcard prefix and instead has the Wildcard
// field of the Authorization set to true with the identifier value
// represented without the "*." prefix.
type Identifier struct {
	// The Type of the Identifier value ("dns" or "ip").
	Type string `json:"type"`
	// The Identifier value.
	Value string `json:"value"`
}

const (
	// IdentifierDNS is the identifier type for fully qualified domain names.
	IdentifierDNS = "dns"
	// IdentifierIP is the identifier type for IP addresses. See RFC 8738.
	IdentifierIP = "ip"
)

// DNS returns a DNS type Identifier for the given domain name.
func DNS(domain string) Identifier {
	return Identifier{Type: IdentifierDNS, Value: domain}
}

// IP returns an IP type Identifier for the given address.
func IP(address string) Identifier {
	return Identifier{Type: IdentifierIP, Value: address}
}

// String returns "type=value" for logging.
func (id Identifier) String() string {
	return id.Type + "=" + id.Value
}
