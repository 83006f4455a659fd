// Package keys offers utility functions for working with crypto.Signers,
// JWS, JWKs and PEM serialization.
package keys

import (
	"crypto"
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/rsa"
	"crypto/x509"
	"encoding/pem"
	"fmt"

	jose "github.com/go-jose/go-jose/v4"

	"github.com/sgrant/acmeclient/acme/codec"
)

// SigAlgForSigner returns the JWS signature algorithm for the given key:
// RS256 for RSA, ES256/ES384/ES512 for ECDSA on P-256/P-384/P-521. Any other
// key type or curve is unsupported and returns an error.
func SigAlgForSigner(signer crypto.Signer) (jose.SignatureAlgorithm, error) {
	switch k := signer.(type) {
	case *rsa.PrivateKey:
		if k.N.BitLen() < 2048 {
			return "", fmt.Errorf("unsupported RSA key size %d, need at least 2048 bits", k.N.BitLen())
		}
		return jose.RS256, nil
	case *ecdsa.PrivateKey:
		switch k.Curve {
		case elliptic.P256():
			return jose.ES256, nil
		case elliptic.P384():
			return jose.ES384, nil
		case elliptic.P521():
			return jose.ES512, nil
		default:
			return "", fmt.Errorf("unsupported ECDSA curve %q", k.Curve.Params().Name)
		}
	default:
		return "", fmt.Errorf("unsupported key type %T", signer)
	}
}

// JWKForPublic wraps a public key as a JWK.
func JWKForPublic(publicKey crypto.PublicKey) jose.JSONWebKey {
	return jose.JSONWebKey{Key: publicKey}
}

// JWKForSigner wraps a signer's public key as a JWK.
func JWKForSigner(signer crypto.Signer) jose.JSONWebKey {
	return JWKForPublic(signer.Public())
}

// ThumbprintBytes computes the RFC 7638 SHA-256 thumbprint of the signer's
// public key.
func ThumbprintBytes(signer crypto.Signer) ([]byte, error) {
	jwk := JWKForSigner(signer)
	return jwk.Thumbprint(crypto.SHA256)
}

// Thumbprint computes the base64url encoded RFC 7638 thumbprint of the
// signer's public key.
func Thumbprint(signer crypto.Signer) (string, error) {
	thumb, err := ThumbprintBytes(signer)
	if err != nil {
		return "", err
	}
	return codec.Base64URLEncode(thumb), nil
}

// KeyAuthorization computes the key authorization for a challenge token:
// token || "." || thumbprint(accountKey).
// See https://tools.ietf.org/html/rfc8555#section-8.1
func KeyAuthorization(signer crypto.Signer, token string) (string, error) {
	thumb, err := Thumbprint(signer)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%s.%s", token, thumb), nil
}

// NewSigner generates a fresh private key. Supported key types are "rsa"
// (2048 bit), "ecdsa" (P-256), "ecdsa-p384" and "ecdsa-p521".
func NewSigner(keyType string) (crypto.Signer, error) {
	switch keyType {
	case "rsa":
		return rsa.GenerateKey(rand.Reader, 2048)
	case "ecdsa":
		return ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	case "ecdsa-p384":
		return ecdsa.GenerateKey(elliptic.P384(), rand.Reader)
	case "ecdsa-p521":
		return ecdsa.GenerateKey(elliptic.P521(), rand.Reader)
	default:
		return nil, fmt.Errorf("unknown key type: %q", keyType)
	}
}

// MarshalSigner serializes a private key to DER along with a type tag that
// UnmarshalSigner understands.
func MarshalSigner(signer crypto.Signer) ([]byte, string, error) {
	switch k := signer.(type) {
	case *ecdsa.PrivateKey:
		keyBytes, err := x509.MarshalECPrivateKey(k)
		return keyBytes, "ecdsa", err
	case *rsa.PrivateKey:
		return x509.MarshalPKCS1PrivateKey(k), "rsa", nil
	default:
		return nil, "", fmt.Errorf("signer was unknown type: %T", k)
	}
}

// UnmarshalSigner reverses MarshalSigner.
func UnmarshalSigner(keyBytes []byte, keyType string) (crypto.Signer, error) {
	switch keyType {
	case "ecdsa":
		return x509.ParseECPrivateKey(keyBytes)
	case "rsa":
		return x509.ParsePKCS1PrivateKey(keyBytes)
	default:
		return nil, fmt.Errorf("unknown key type %q", keyType)
	}
}

// SignerToPEM serializes a private key to PEM.
func SignerToPEM(signer crypto.Signer) (string, error) {
	var keyBytes []byte
	var keyHeader string
	var err error
	switch k := signer.(type) {
	case *ecdsa.PrivateKey:
		keyBytes, err = x509.MarshalECPrivateKey(k)
		keyHeader = "EC PRIVATE KEY"
	case *rsa.PrivateKey:
		keyBytes = x509.MarshalPKCS1PrivateKey(k)
		keyHeader = "RSA PRIVATE KEY"
	default:
		err = fmt.Errorf("unknown key type: %T", k)
	}
	if err != nil {
		return "", err
	}
	pemBytes := pem.EncodeToMemory(&pem.Block{
		Type:  keyHeader,
		Bytes: keyBytes,
	})
	return string(pemBytes), nil
}

// SignerFromPEM parses a PEM encoded EC, PKCS#1 or PKCS#8 private key.
func SignerFromPEM(pemBytes []byte) (crypto.Signer, error) {
	block, _ := pem.Decode(pemBytes)
	if block == nil {
		return nil, fmt.Errorf("no PEM block found")
	}
	switch block.Type {
	case "EC PRIVATE KEY":
		return x509.ParseECPrivateKey(block.Bytes)
	case "RSA PRIVATE KEY":
		return x509.ParsePKCS1PrivateKey(block.Bytes)
	case "PRIVATE KEY":
		key, err := x509.ParsePKCS8PrivateKey(block.Bytes)
		if err != nil {
			return nil, err
		}
		signer, ok := key.(crypto.Signer)
		if !ok {
			return nil, fmt.Errorf("PKCS#8 key of type %T is not a signer", key)
		}
		return signer, nil
	default:
		return nil, fmt.Errorf("unsupported PEM block type %q", block.Type)
	}
}
