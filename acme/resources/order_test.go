package resources

import (
	"crypto/x509"
	"encoding/base64"
	"encoding/json"
	"errors"
	"net/http"
	"testing"
	"time"

	"github.com/sgrant/acmeclient/acme"
	"github.com/sgrant/acmeclient/acme/acmetest"
)

func TestNewOrder(t *testing.T) {
	server := acmetest.NewServer()
	defer server.Close()
	server.HandleDirectory(nil)

	orderURL := server.URL("/order/1")
	server.Handle(acmetest.NewOrderPath, func(w http.ResponseWriter, r *http.Request) {
		_, _, payload, _ := acmetest.ReadJWS(r)
		var claims struct {
			Identifiers []acme.Identifier `json:"identifiers"`
		}
		_ = json.Unmarshal(payload, &claims)
		if len(claims.Identifiers) != 1 || claims.Identifiers[0] != acme.DNS("ex.org") {
			t.Errorf("identifiers claim = %v", claims.Identifiers)
		}

		w.Header().Set("Location", orderURL)
		acmetest.WriteJSON(w, http.StatusCreated, map[string]interface{}{
			"status":         "pending",
			"identifiers":    []map[string]string{{"type": "dns", "value": "ex.org"}},
			"authorizations": []string{server.URL("/authz/1")},
			"finalize":       server.URL("/order/1/finalize"),
			"expires":        "2026-09-01T00:00:00Z",
		})
	})

	session := newTestSession(t, server)
	account := NewAccount(session.NewLogin(server.URL("/acct/1"), newTestSigner(t)))

	order, err := account.NewOrder(OrderConfig{
		Identifiers: []acme.Identifier{acme.DNS("ex.org")},
	})
	if err != nil {
		t.Fatalf("NewOrder: %s", err)
	}

	if order.Location() != orderURL {
		t.Errorf("order URL = %q", order.Location())
	}
	if !order.IsPending() {
		t.Errorf("status = %q", order.Status)
	}
	if len(order.AuthorizationURLs) != 1 || order.AuthorizationURLs[0] != server.URL("/authz/1") {
		t.Errorf("authorizations = %v", order.AuthorizationURLs)
	}
	if order.FinalizeURL != server.URL("/order/1/finalize") {
		t.Errorf("finalize = %q", order.FinalizeURL)
	}
	if order.CertificateURL != "" {
		t.Errorf("pending order has certificate URL %q", order.CertificateURL)
	}
}

func TestNewOrderNoIdentifiers(t *testing.T) {
	server := acmetest.NewServer()
	defer server.Close()
	server.HandleDirectory(nil)

	session := newTestSession(t, server)
	account := NewAccount(session.NewLogin(server.URL("/acct/1"), newTestSigner(t)))
	if _, err := account.NewOrder(OrderConfig{}); err == nil {
		t.Errorf("expected an error for an order without identifiers")
	}
}

func TestNewOrderValidityInterval(t *testing.T) {
	server := acmetest.NewServer()
	defer server.Close()
	server.HandleDirectory(nil)

	server.Handle(acmetest.NewOrderPath, func(w http.ResponseWriter, r *http.Request) {
		_, _, payload, _ := acmetest.ReadJWS(r)
		var claims map[string]interface{}
		_ = json.Unmarshal(payload, &claims)
		if claims["notBefore"] != "2026-09-01T00:00:00Z" {
			t.Errorf("notBefore = %v", claims["notBefore"])
		}
		if claims["notAfter"] != "2026-12-01T00:00:00Z" {
			t.Errorf("notAfter = %v", claims["notAfter"])
		}

		w.Header().Set("Location", server.URL("/order/1"))
		acmetest.WriteJSON(w, http.StatusCreated, map[string]interface{}{
			"status":         "pending",
			"identifiers":    []map[string]string{{"type": "dns", "value": "ex.org"}},
			"authorizations": []string{server.URL("/authz/1")},
			"finalize":       server.URL("/order/1/finalize"),
		})
	})

	session := newTestSession(t, server)
	account := NewAccount(session.NewLogin(server.URL("/acct/1"), newTestSigner(t)))

	_, err := account.NewOrder(OrderConfig{
		Identifiers: []acme.Identifier{acme.DNS("ex.org")},
		NotBefore:   time.Date(2026, 9, 1, 0, 0, 0, 0, time.UTC),
		NotAfter:    time.Date(2026, 12, 1, 0, 0, 0, 0, time.UTC),
	})
	if err != nil {
		t.Fatalf("NewOrder: %s", err)
	}
}

func TestOrderExecuteAndCertificate(t *testing.T) {
	server := acmetest.NewServer()
	defer server.Close()
	server.HandleDirectory(nil)

	orderURL := server.URL("/order/1")
	readyOrder := map[string]interface{}{
		"status":         "ready",
		"identifiers":    []map[string]string{{"type": "dns", "value": "ex.org"}},
		"authorizations": []string{server.URL("/authz/1")},
		"finalize":       server.URL("/order/1/finalize"),
	}
	server.Handle("/order/1", func(w http.ResponseWriter, r *http.Request) {
		acmetest.WriteJSON(w, http.StatusOK, readyOrder)
	})
	server.Handle("/order/1/finalize", func(w http.ResponseWriter, r *http.Request) {
		_, _, payload, _ := acmetest.ReadJWS(r)
		var claims struct {
			CSR string `json:"csr"`
		}
		if err := json.Unmarshal(payload, &claims); err != nil {
			t.Errorf("finalize payload: %s", err)
		}
		der, err := base64.RawURLEncoding.DecodeString(claims.CSR)
		if err != nil {
			t.Errorf("csr claim is not base64url: %s", err)
		}
		parsed, err := x509.ParseCertificateRequest(der)
		if err != nil {
			t.Errorf("csr claim is not a CSR: %s", err)
		} else if len(parsed.DNSNames) != 1 || parsed.DNSNames[0] != "ex.org" {
			t.Errorf("CSR SANs = %v", parsed.DNSNames)
		}

		acmetest.WriteJSON(w, http.StatusOK, map[string]interface{}{
			"status":         "valid",
			"identifiers":    []map[string]string{{"type": "dns", "value": "ex.org"}},
			"authorizations": []string{server.URL("/authz/1")},
			"finalize":       server.URL("/order/1/finalize"),
			"certificate":    server.URL("/cert/1"),
		})
	})

	session := newTestSession(t, server)
	login := session.NewLogin(server.URL("/acct/1"), newTestSigner(t))
	order := NewOrderResource(login, orderURL)

	// Finalizing before the order was loaded is a usage error.
	if err := order.Execute(newTestSigner(t)); err == nil {
		t.Errorf("expected an error before Update")
	}

	if err := order.Update(); err != nil {
		t.Fatalf("Update: %s", err)
	}
	if !order.IsReady() {
		t.Fatalf("status = %q", order.Status)
	}

	// A certificate is not available before finalization.
	if _, err := order.Certificate(); err == nil {
		t.Errorf("expected an error before finalization")
	}

	if err := order.Execute(newTestSigner(t)); err != nil {
		t.Fatalf("Execute: %s", err)
	}
	if !order.IsValid() {
		t.Errorf("status after finalize = %q", order.Status)
	}

	cert, err := order.Certificate()
	if err != nil {
		t.Fatalf("Certificate: %s", err)
	}
	if cert.Location() != server.URL("/cert/1") {
		t.Errorf("certificate URL = %q", cert.Location())
	}
}

func TestOrderPoll(t *testing.T) {
	server := acmetest.NewServer()
	defer server.Close()
	server.HandleDirectory(nil)

	baseOrder := func(status string) map[string]interface{} {
		return map[string]interface{}{
			"status":         status,
			"identifiers":    []map[string]string{{"type": "dns", "value": "ex.org"}},
			"authorizations": []string{server.URL("/authz/1")},
			"finalize":       server.URL("/order/1/finalize"),
		}
	}
	server.Handle("/order/1", func(w http.ResponseWriter, r *http.Request) {
		if server.RequestCount("/order/1") < 3 {
			w.Header().Set("Retry-After", "0")
			acmetest.WriteJSON(w, http.StatusOK, baseOrder("processing"))
			return
		}
		acmetest.WriteJSON(w, http.StatusOK, baseOrder("valid"))
	})

	session := newTestSession(t, server)
	order := NewOrderResource(session.NewLogin(server.URL("/acct/1"), newTestSigner(t)), server.URL("/order/1"))

	if err := order.Poll(5 * time.Second); err != nil {
		t.Fatalf("Poll: %s", err)
	}
	if !order.IsValid() {
		t.Errorf("status = %q", order.Status)
	}
	if got := server.RequestCount("/order/1"); got != 3 {
		t.Errorf("order fetched %d times, want 3", got)
	}
}

func TestOrderPollFailure(t *testing.T) {
	server := acmetest.NewServer()
	defer server.Close()
	server.HandleDirectory(nil)

	server.Handle("/order/1", func(w http.ResponseWriter, r *http.Request) {
		acmetest.WriteJSON(w, http.StatusOK, map[string]interface{}{
			"status":         "invalid",
			"identifiers":    []map[string]string{{"type": "dns", "value": "ex.org"}},
			"authorizations": []string{server.URL("/authz/1")},
			"error": map[string]interface{}{
				"type":   "urn:ietf:params:acme:error:unauthorized",
				"detail": "authorization expired",
			},
		})
	})

	session := newTestSession(t, server)
	order := NewOrderResource(session.NewLogin(server.URL("/acct/1"), newTestSigner(t)), server.URL("/order/1"))

	err := order.Poll(5 * time.Second)
	var serverErr *acme.ServerError
	if !errors.As(err, &serverErr) || !serverErr.IsType(acme.ErrorUnauthorized) {
		t.Fatalf("err = %v", err)
	}
	if !order.IsFailed() {
		t.Errorf("IsFailed = false")
	}
}
