package resources

import (
	"bytes"
	"crypto/x509"
	"encoding/asn1"
	"errors"
	"net/http"
	"testing"
	"time"

	"github.com/sgrant/acmeclient/acme"
	"github.com/sgrant/acmeclient/acme/acmetest"
	"github.com/sgrant/acmeclient/acme/client"
	"github.com/sgrant/acmeclient/acme/codec"
	"github.com/sgrant/acmeclient/acme/keys"
)

// offlineLogin builds a login that never touches the network, for testing
// pure response derivations.
func offlineLogin(t *testing.T) *client.Login {
	t.Helper()
	session, err := client.NewSession(client.Config{DirectoryURL: "https://ca.invalid/dir"})
	if err != nil {
		t.Fatalf("NewSession: %s", err)
	}
	return session.NewLogin("https://ca.invalid/acct/1", newTestSigner(t))
}

func TestChallengeResponseDerivations(t *testing.T) {
	login := offlineLogin(t)
	thumb, err := keys.Thumbprint(login.Signer())
	if err != nil {
		t.Fatalf("Thumbprint: %s", err)
	}
	keyAuth := "token123." + thumb

	t.Run("http-01", func(t *testing.T) {
		challenge := NewChallenge(login, "https://ca.invalid/chall/1", TypeHTTP01)
		challenge.Token = "token123"

		body, err := challenge.HTTP01Authorization()
		if err != nil {
			t.Fatalf("HTTP01Authorization: %s", err)
		}
		if body != keyAuth {
			t.Errorf("http-01 body = %q, want %q", body, keyAuth)
		}
		if got := HTTP01ResourcePath("token123"); got != "/.well-known/acme-challenge/token123" {
			t.Errorf("resource path = %q", got)
		}
	})

	t.Run("dns-01", func(t *testing.T) {
		challenge := NewChallenge(login, "https://ca.invalid/chall/2", TypeDNS01)
		challenge.Token = "token123"

		digest, err := challenge.DNS01Digest()
		if err != nil {
			t.Fatalf("DNS01Digest: %s", err)
		}
		expected := codec.Base64URLEncode(codec.SHA256([]byte(keyAuth)))
		if digest != expected {
			t.Errorf("dns-01 digest = %q, want %q", digest, expected)
		}
		if got := DNS01RecordName("ex.org"); got != "_acme-challenge.ex.org" {
			t.Errorf("record name = %q", got)
		}
	})

	t.Run("tls-alpn-01", func(t *testing.T) {
		challenge := NewChallenge(login, "https://ca.invalid/chall/3", TypeTLSALPN01)
		challenge.Token = "token123"

		validation, err := challenge.TLSALPN01Validation()
		if err != nil {
			t.Fatalf("TLSALPN01Validation: %s", err)
		}
		if len(validation) != 32 {
			t.Fatalf("acmeValidation has %d bytes, want 32", len(validation))
		}
		if !bytes.Equal(validation, codec.SHA256([]byte(keyAuth))) {
			t.Errorf("acmeValidation mismatch")
		}
	})

	t.Run("type mismatch", func(t *testing.T) {
		challenge := NewChallenge(login, "https://ca.invalid/chall/4", TypeDNS01)
		challenge.Token = "token123"

		_, err := challenge.HTTP01Authorization()
		var protocolErr *acme.ProtocolError
		if !errors.As(err, &protocolErr) {
			t.Errorf("err = %v (%T)", err, err)
		}
	})

	t.Run("no token", func(t *testing.T) {
		challenge := NewChallenge(login, "https://ca.invalid/chall/5", TypeHTTP01)
		if _, err := challenge.KeyAuthorization(); err == nil {
			t.Errorf("expected an error without a token")
		}
	})
}

func TestTLSALPN01Certificate(t *testing.T) {
	login := offlineLogin(t)
	challenge := NewChallenge(login, "https://ca.invalid/chall/1", TypeTLSALPN01)
	challenge.Token = "token123"

	certSigner := newTestSigner(t)
	der, err := challenge.TLSALPN01Certificate("ex.org", certSigner)
	if err != nil {
		t.Fatalf("TLSALPN01Certificate: %s", err)
	}

	cert, err := x509.ParseCertificate(der)
	if err != nil {
		t.Fatalf("ParseCertificate: %s", err)
	}
	if len(cert.DNSNames) != 1 || cert.DNSNames[0] != "ex.org" {
		t.Errorf("SANs = %v", cert.DNSNames)
	}

	validation, _ := challenge.TLSALPN01Validation()
	expectedValue, _ := asn1.Marshal(validation)
	found := false
	for _, ext := range cert.Extensions {
		if ext.Id.Equal(IDPEACMEIdentifier) {
			found = true
			if !ext.Critical {
				t.Errorf("acmeValidation extension is not critical")
			}
			if !bytes.Equal(ext.Value, expectedValue) {
				t.Errorf("acmeValidation value mismatch")
			}
		}
	}
	if !found {
		t.Errorf("certificate has no acmeValidation extension")
	}
}

func TestChallengeTriggerAndPoll(t *testing.T) {
	server := acmetest.NewServer()
	defer server.Close()
	server.HandleDirectory(nil)

	challengeJSON := func(status string) map[string]interface{} {
		return map[string]interface{}{
			"type":   "http-01",
			"url":    server.URL("/chall/1"),
			"token":  "tok",
			"status": status,
		}
	}
	server.Handle("/chall/1", func(w http.ResponseWriter, r *http.Request) {
		_, _, payload, err := acmetest.ReadJWS(r)
		if err != nil {
			t.Errorf("ReadJWS: %s", err)
		}
		switch server.RequestCount("/chall/1") {
		case 1:
			// The trigger request posts an empty JSON object.
			if string(payload) != "{}" {
				t.Errorf("trigger payload = %q, want {}", payload)
			}
			w.Header().Set("Retry-After", "0")
			acmetest.WriteJSON(w, http.StatusOK, challengeJSON("processing"))
		default:
			// Poll requests are POST-as-GET with an empty payload.
			if len(payload) != 0 {
				t.Errorf("poll payload = %q, want empty", payload)
			}
			acmetest.WriteJSON(w, http.StatusOK, challengeJSON("valid"))
		}
	})

	session := newTestSession(t, server)
	login := session.NewLogin(server.URL("/acct/1"), newTestSigner(t))
	challenge := NewChallenge(login, server.URL("/chall/1"), TypeHTTP01)

	if err := challenge.Trigger(); err != nil {
		t.Fatalf("Trigger: %s", err)
	}
	if challenge.Status != acme.StatusProcessing {
		t.Errorf("status after trigger = %q", challenge.Status)
	}

	if err := challenge.Poll(5 * time.Second); err != nil {
		t.Fatalf("Poll: %s", err)
	}
	if challenge.Status != acme.StatusValid {
		t.Errorf("status after poll = %q", challenge.Status)
	}
}

func TestChallengeUpdateTypeMismatch(t *testing.T) {
	server := acmetest.NewServer()
	defer server.Close()
	server.HandleDirectory(nil)
	server.Handle("/chall/1", func(w http.ResponseWriter, r *http.Request) {
		acmetest.WriteJSON(w, http.StatusOK, map[string]interface{}{
			"type":   "dns-01",
			"url":    server.URL("/chall/1"),
			"token":  "tok",
			"status": "pending",
		})
	})

	session := newTestSession(t, server)
	login := session.NewLogin(server.URL("/acct/1"), newTestSigner(t))
	challenge := NewChallenge(login, server.URL("/chall/1"), TypeHTTP01)

	err := challenge.Update()
	var protocolErr *acme.ProtocolError
	if !errors.As(err, &protocolErr) {
		t.Fatalf("err = %v (%T)", err, err)
	}
}

func TestChallengeInvalidCarriesProblem(t *testing.T) {
	server := acmetest.NewServer()
	defer server.Close()
	server.HandleDirectory(nil)
	server.Handle("/chall/1", func(w http.ResponseWriter, r *http.Request) {
		acmetest.WriteJSON(w, http.StatusOK, map[string]interface{}{
			"type":   "http-01",
			"url":    server.URL("/chall/1"),
			"token":  "tok",
			"status": "invalid",
			"error": map[string]interface{}{
				"type":   "urn:ietf:params:acme:error:unauthorized",
				"detail": "expected response was not found",
			},
		})
	})

	session := newTestSession(t, server)
	login := session.NewLogin(server.URL("/acct/1"), newTestSigner(t))
	challenge := NewChallenge(login, server.URL("/chall/1"), TypeHTTP01)

	err := challenge.Poll(5 * time.Second)
	var serverErr *acme.ServerError
	if !errors.As(err, &serverErr) || !serverErr.IsType(acme.ErrorUnauthorized) {
		t.Fatalf("err = %v", err)
	}
	if challenge.Error == nil {
		t.Errorf("challenge.Error is nil")
	}
}
