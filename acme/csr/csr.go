// Package csr builds PKCS#10 certificate signing requests for ACME order
// finalization.
package csr

import (
	"crypto"
	"crypto/ecdsa"
	"crypto/rand"
	"crypto/rsa"
	"crypto/x509"
	"crypto/x509/pkix"
	"errors"
	"fmt"
	"io"
	"net"

	"github.com/sgrant/acmeclient/acme/codec"
)

// Config describes the subject of a certificate signing request. The first
// domain becomes the Common Name; every domain is added to the Subject
// Alternative Name extension as a dNSName and every IP as an iPAddress. IDN
// domain names are ACE encoded automatically; wildcard domains keep their
// "*." prefix.
type Config struct {
	Domains []string
	IPs     []net.IP

	// Optional subject RDN fields.
	Organization       string
	OrganizationalUnit string
	Locality           string
	State              string
	Country            string
}

// Sign builds the CSR described by the Config and signs it with the given
// key, returning the DER encoding. RSA keys sign with SHA256WithRSA, ECDSA
// keys with ECDSAWithSHA256. At least one domain or IP must be present.
func (cfg Config) Sign(signer crypto.Signer) ([]byte, error) {
	if len(cfg.Domains) == 0 && len(cfg.IPs) == 0 {
		return nil, errors.New("csr: no domain or IP address was set")
	}

	aceDomains := make([]string, len(cfg.Domains))
	for i, domain := range cfg.Domains {
		ace, err := codec.ToACE(domain)
		if err != nil {
			return nil, err
		}
		aceDomains[i] = ace
	}

	subject := pkix.Name{}
	if len(aceDomains) > 0 {
		subject.CommonName = aceDomains[0]
	}
	if cfg.Organization != "" {
		subject.Organization = []string{cfg.Organization}
	}
	if cfg.OrganizationalUnit != "" {
		subject.OrganizationalUnit = []string{cfg.OrganizationalUnit}
	}
	if cfg.Locality != "" {
		subject.Locality = []string{cfg.Locality}
	}
	if cfg.State != "" {
		subject.Province = []string{cfg.State}
	}
	if cfg.Country != "" {
		subject.Country = []string{cfg.Country}
	}

	template := x509.CertificateRequest{
		Subject:     subject,
		DNSNames:    aceDomains,
		IPAddresses: cfg.IPs,
	}

	switch signer.(type) {
	case *rsa.PrivateKey:
		template.SignatureAlgorithm = x509.SHA256WithRSA
	case *ecdsa.PrivateKey:
		template.SignatureAlgorithm = x509.ECDSAWithSHA256
	default:
		return nil, fmt.Errorf("csr: unsupported key type %T", signer)
	}

	return x509.CreateCertificateRequest(rand.Reader, &template, signer)
}

// WritePEM writes a DER encoded CSR to w in PEM form.
func WritePEM(w io.Writer, der []byte) error {
	return codec.WritePEM(w, "CERTIFICATE REQUEST", der)
}
