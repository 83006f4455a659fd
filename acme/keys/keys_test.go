package keys

import (
	"crypto"
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/rsa"
	"encoding/json"
	"fmt"
	"strings"
	"testing"

	jose "github.com/go-jose/go-jose/v4"

	"github.com/sgrant/acmeclient/acme/codec"
)

func TestSigAlgForSigner(t *testing.T) {
	rsaKey, _ := rsa.GenerateKey(rand.Reader, 2048)
	p256Key, _ := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	p384Key, _ := ecdsa.GenerateKey(elliptic.P384(), rand.Reader)
	p521Key, _ := ecdsa.GenerateKey(elliptic.P521(), rand.Reader)
	p224Key, _ := ecdsa.GenerateKey(elliptic.P224(), rand.Reader)
	smallRSAKey, _ := rsa.GenerateKey(rand.Reader, 1024)

	tests := []struct {
		name     string
		signer   crypto.Signer
		expected jose.SignatureAlgorithm
		wantErr  bool
	}{
		{"rsa 2048", rsaKey, jose.RS256, false},
		{"ec p-256", p256Key, jose.ES256, false},
		{"ec p-384", p384Key, jose.ES384, false},
		{"ec p-521", p521Key, jose.ES512, false},
		{"ec p-224", p224Key, "", true},
		{"rsa 1024", smallRSAKey, "", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			alg, err := SigAlgForSigner(tt.signer)
			if tt.wantErr {
				if err == nil {
					t.Fatalf("expected an error, got %q", alg)
				}
				return
			}
			if err != nil {
				t.Fatalf("SigAlgForSigner: %s", err)
			}
			if alg != tt.expected {
				t.Errorf("alg = %q, want %q", alg, tt.expected)
			}
		})
	}
}

// The RFC 7638 thumbprint must equal base64url(sha256(canonical JWK)):
// members sorted lexicographically with no whitespace.
func TestThumbprintCanonical(t *testing.T) {
	t.Run("ec p-256", func(t *testing.T) {
		key, _ := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)

		coordSize := 32
		canonical := fmt.Sprintf(`{"crv":"P-256","kty":"EC","x":"%s","y":"%s"}`,
			codec.Base64URLEncode(padLeft(key.X.Bytes(), coordSize)),
			codec.Base64URLEncode(padLeft(key.Y.Bytes(), coordSize)))
		expected := codec.Base64URLEncode(codec.SHA256([]byte(canonical)))

		thumb, err := Thumbprint(key)
		if err != nil {
			t.Fatalf("Thumbprint: %s", err)
		}
		if thumb != expected {
			t.Errorf("thumbprint %q != canonical %q", thumb, expected)
		}
	})

	t.Run("rsa", func(t *testing.T) {
		key, _ := rsa.GenerateKey(rand.Reader, 2048)

		canonical := fmt.Sprintf(`{"e":"%s","kty":"RSA","n":"%s"}`,
			codec.Base64URLEncode(bigEndianInt(key.E)),
			codec.Base64URLEncode(key.N.Bytes()))
		expected := codec.Base64URLEncode(codec.SHA256([]byte(canonical)))

		thumb, err := Thumbprint(key)
		if err != nil {
			t.Fatalf("Thumbprint: %s", err)
		}
		if thumb != expected {
			t.Errorf("thumbprint %q != canonical %q", thumb, expected)
		}
	})

	t.Run("deterministic", func(t *testing.T) {
		key, _ := ecdsa.GenerateKey(elliptic.P384(), rand.Reader)
		first, err := Thumbprint(key)
		if err != nil {
			t.Fatalf("Thumbprint: %s", err)
		}
		second, _ := Thumbprint(key)
		if first != second {
			t.Errorf("thumbprint is not deterministic: %q != %q", first, second)
		}
	})
}

func TestKeyAuthorization(t *testing.T) {
	key, _ := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	thumb, _ := Thumbprint(key)

	keyAuth, err := KeyAuthorization(key, "token123")
	if err != nil {
		t.Fatalf("KeyAuthorization: %s", err)
	}
	if keyAuth != "token123."+thumb {
		t.Errorf("key authorization = %q", keyAuth)
	}
}

func TestJWKSerialization(t *testing.T) {
	key, _ := ecdsa.GenerateKey(elliptic.P521(), rand.Reader)
	jwk := JWKForSigner(key)

	raw, err := jwk.MarshalJSON()
	if err != nil {
		t.Fatalf("MarshalJSON: %s", err)
	}
	var members map[string]string
	if err := json.Unmarshal(raw, &members); err != nil {
		t.Fatalf("unmarshal JWK: %s", err)
	}
	if members["kty"] != "EC" || members["crv"] != "P-521" {
		t.Errorf("JWK members = %v", members)
	}
	// P-521 coordinates are 66 octets, so their base64url is fixed at 88
	// characters (left-padded with zeros when short).
	for _, member := range []string{"x", "y"} {
		if len(members[member]) != 88 {
			t.Errorf("JWK %q member has length %d, want 88", member, len(members[member]))
		}
	}
}

func TestNewSigner(t *testing.T) {
	tests := []struct {
		keyType string
		wantErr bool
	}{
		{"rsa", false},
		{"ecdsa", false},
		{"ecdsa-p384", false},
		{"ecdsa-p521", false},
		{"dsa", true},
		{"", true},
	}

	for _, tt := range tests {
		t.Run(tt.keyType, func(t *testing.T) {
			signer, err := NewSigner(tt.keyType)
			if tt.wantErr {
				if err == nil {
					t.Fatalf("expected an error")
				}
				return
			}
			if err != nil {
				t.Fatalf("NewSigner(%q): %s", tt.keyType, err)
			}
			if _, err := SigAlgForSigner(signer); err != nil {
				t.Errorf("generated key unsupported: %s", err)
			}
		})
	}
}

func TestSignerPEMRoundTrip(t *testing.T) {
	for _, keyType := range []string{"rsa", "ecdsa"} {
		t.Run(keyType, func(t *testing.T) {
			signer, err := NewSigner(keyType)
			if err != nil {
				t.Fatalf("NewSigner: %s", err)
			}

			pemText, err := SignerToPEM(signer)
			if err != nil {
				t.Fatalf("SignerToPEM: %s", err)
			}
			if !strings.Contains(pemText, "PRIVATE KEY-----") {
				t.Errorf("unexpected PEM: %s", pemText)
			}

			restored, err := SignerFromPEM([]byte(pemText))
			if err != nil {
				t.Fatalf("SignerFromPEM: %s", err)
			}

			origThumb, _ := Thumbprint(signer)
			restoredThumb, _ := Thumbprint(restored)
			if origThumb != restoredThumb {
				t.Errorf("restored key differs from original")
			}
		})
	}
}

func padLeft(b []byte, size int) []byte {
	if len(b) >= size {
		return b
	}
	padded := make([]byte, size)
	copy(padded[size-len(b):], b)
	return padded
}

func bigEndianInt(n int) []byte {
	var out []byte
	for n > 0 {
		out = append([]byte{byte(n & 0xff)}, out...)
		n >>= 8
	}
	return out
}
