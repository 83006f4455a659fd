package csr

import (
	"bytes"
	"crypto/x509"
	"net"
	"strings"
	"testing"

	"github.com/sgrant/acmeclient/acme/keys"
)

func signAndParse(t *testing.T, config Config, keyType string) *x509.CertificateRequest {
	t.Helper()
	signer, err := keys.NewSigner(keyType)
	if err != nil {
		t.Fatalf("NewSigner: %s", err)
	}
	der, err := config.Sign(signer)
	if err != nil {
		t.Fatalf("Sign: %s", err)
	}
	parsed, err := x509.ParseCertificateRequest(der)
	if err != nil {
		t.Fatalf("ParseCertificateRequest: %s", err)
	}
	if err := parsed.CheckSignature(); err != nil {
		t.Fatalf("CheckSignature: %s", err)
	}
	return parsed
}

func TestSignDomains(t *testing.T) {
	parsed := signAndParse(t, Config{Domains: []string{"a.com", "b.com"}}, "ecdsa")

	if parsed.Subject.CommonName != "a.com" {
		t.Errorf("CN = %q, want a.com", parsed.Subject.CommonName)
	}
	if len(parsed.DNSNames) != 2 || parsed.DNSNames[0] != "a.com" || parsed.DNSNames[1] != "b.com" {
		t.Errorf("SANs = %v", parsed.DNSNames)
	}
	if parsed.SignatureAlgorithm != x509.ECDSAWithSHA256 {
		t.Errorf("signature algorithm = %s", parsed.SignatureAlgorithm)
	}
}

func TestSignIDN(t *testing.T) {
	parsed := signAndParse(t, Config{Domains: []string{"bücher.de"}}, "ecdsa")

	if parsed.Subject.CommonName != "xn--bcher-kva.de" {
		t.Errorf("CN = %q", parsed.Subject.CommonName)
	}
	if len(parsed.DNSNames) != 1 || parsed.DNSNames[0] != "xn--bcher-kva.de" {
		t.Errorf("SANs = %v", parsed.DNSNames)
	}
}

func TestSignIPs(t *testing.T) {
	parsed := signAndParse(t, Config{
		Domains: []string{"example.org"},
		IPs:     []net.IP{net.ParseIP("192.0.2.7"), net.ParseIP("2001:db8::1")},
	}, "ecdsa")

	if len(parsed.IPAddresses) != 2 {
		t.Fatalf("IP SANs = %v", parsed.IPAddresses)
	}
	if !parsed.IPAddresses[0].Equal(net.ParseIP("192.0.2.7")) {
		t.Errorf("first IP SAN = %s", parsed.IPAddresses[0])
	}
}

func TestSignIPOnly(t *testing.T) {
	parsed := signAndParse(t, Config{IPs: []net.IP{net.ParseIP("192.0.2.7")}}, "ecdsa")
	if parsed.Subject.CommonName != "" {
		t.Errorf("IP-only CSR has CN %q", parsed.Subject.CommonName)
	}
}

func TestSignRSA(t *testing.T) {
	parsed := signAndParse(t, Config{Domains: []string{"example.org"}}, "rsa")
	if parsed.SignatureAlgorithm != x509.SHA256WithRSA {
		t.Errorf("signature algorithm = %s", parsed.SignatureAlgorithm)
	}
}

func TestSignSubjectFields(t *testing.T) {
	parsed := signAndParse(t, Config{
		Domains:      []string{"example.org"},
		Organization: "Example Org",
		Locality:     "Exampleton",
		Country:      "XX",
	}, "ecdsa")

	if len(parsed.Subject.Organization) != 1 || parsed.Subject.Organization[0] != "Example Org" {
		t.Errorf("O = %v", parsed.Subject.Organization)
	}
	if len(parsed.Subject.Locality) != 1 || parsed.Subject.Locality[0] != "Exampleton" {
		t.Errorf("L = %v", parsed.Subject.Locality)
	}
	if len(parsed.Subject.Country) != 1 || parsed.Subject.Country[0] != "XX" {
		t.Errorf("C = %v", parsed.Subject.Country)
	}
}

func TestSignNoIdentifiers(t *testing.T) {
	signer, _ := keys.NewSigner("ecdsa")
	if _, err := (Config{}).Sign(signer); err == nil {
		t.Errorf("expected an error for a CSR without identifiers")
	}
}

func TestWritePEM(t *testing.T) {
	signer, _ := keys.NewSigner("ecdsa")
	der, err := Config{Domains: []string{"example.org"}}.Sign(signer)
	if err != nil {
		t.Fatalf("Sign: %s", err)
	}

	var buf bytes.Buffer
	if err := WritePEM(&buf, der); err != nil {
		t.Fatalf("WritePEM: %s", err)
	}
	if !strings.Contains(buf.String(), "-----BEGIN CERTIFICATE REQUEST-----") {
		t.Errorf("unexpected PEM output:\n%s", buf.String())
	}
}
