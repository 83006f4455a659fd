package keys

import (
	"crypto"
	"encoding/json"
	"errors"
	"fmt"

	jose "github.com/go-jose/go-jose/v4"
)

// SignOptions control how Sign builds the protected header of a JWS.
type SignOptions struct {
	// If true, embed the signer's public key as a JWK in the protected
	// header instead of using a Key ID. Needed for newAccount and for
	// revocations signed with the certificate key. Mutually exclusive with
	// a non-empty KeyID.
	EmbedKey bool
	// The account URL to use as the JWS "kid" header for authenticated
	// requests. Mutually exclusive with EmbedKey.
	KeyID string
	// NonceSource provides the anti-replay nonce for the protected header.
	NonceSource jose.NonceSource
}

func (opts SignOptions) validate() error {
	if opts.KeyID != "" && opts.EmbedKey {
		return errors.New("sign: cannot specify both KeyID and EmbedKey")
	}
	if opts.KeyID == "" && !opts.EmbedKey {
		return errors.New("sign: must specify a KeyID or EmbedKey")
	}
	if opts.NonceSource == nil {
		return errors.New("sign: must specify a NonceSource")
	}
	return nil
}

// Sign produces the flattened JSON serialization of a JWS over payload with
// a protected header carrying alg, nonce, the target url, and either the
// account kid or an embedded JWK. An empty payload produces the empty
// payload of a POST-as-GET request.
//
// ECDSA signatures use the fixed-length r||s form required by JWS, not DER.
func Sign(targetURL string, payload []byte, signer crypto.Signer, opts SignOptions) ([]byte, error) {
	if err := opts.validate(); err != nil {
		return nil, err
	}

	alg, err := SigAlgForSigner(signer)
	if err != nil {
		return nil, err
	}

	joseOpts := &jose.SignerOptions{
		NonceSource: opts.NonceSource,
		EmbedJWK:    opts.EmbedKey,
		ExtraHeaders: map[jose.HeaderKey]interface{}{
			"url": targetURL,
		},
	}

	var signingKey jose.SigningKey
	if opts.EmbedKey {
		signingKey = jose.SigningKey{
			Algorithm: alg,
			Key:       signer,
		}
	} else {
		signingKey = jose.SigningKey{
			Algorithm: alg,
			Key: &jose.JSONWebKey{
				Key:   signer,
				KeyID: opts.KeyID,
			},
		}
	}

	joseSigner, err := jose.NewSigner(signingKey, joseOpts)
	if err != nil {
		return nil, err
	}

	signed, err := joseSigner.Sign(payload)
	if err != nil {
		return nil, err
	}

	return []byte(signed.FullSerialize()), nil
}

// SignKeyChange builds the nested JWS of an account key rollover request:
// an inner JWS signed by the new key, with the account URL and the old key's
// JWK as payload, has no nonce and is itself the payload of the outer JWS
// the caller sends. See https://tools.ietf.org/html/rfc8555#section-7.3.5
func SignKeyChange(keyChangeURL, accountURL string, oldSigner, newSigner crypto.Signer) ([]byte, error) {
	alg, err := SigAlgForSigner(newSigner)
	if err != nil {
		return nil, err
	}

	oldKey := JWKForSigner(oldSigner)
	payload := struct {
		Account string          `json:"account"`
		OldKey  jose.JSONWebKey `json:"oldKey"`
	}{
		Account: accountURL,
		OldKey:  oldKey,
	}
	payloadJSON, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("cannot marshal key change payload: %s", err)
	}

	innerSigner, err := jose.NewSigner(
		jose.SigningKey{Algorithm: alg, Key: newSigner},
		&jose.SignerOptions{
			EmbedJWK: true,
			ExtraHeaders: map[jose.HeaderKey]interface{}{
				"url": keyChangeURL,
			},
		})
	if err != nil {
		return nil, err
	}

	inner, err := innerSigner.Sign(payloadJSON)
	if err != nil {
		return nil, err
	}
	return []byte(inner.FullSerialize()), nil
}

// SignExternalAccountBinding builds the externalAccountBinding claim for
// a newAccount request: a JWS over the account public key's JWK, signed
// HS256 with the CA-provided MAC key, kid set to the CA-provided key
// identifier, and no nonce.
// See https://tools.ietf.org/html/rfc8555#section-7.3.4
func SignExternalAccountBinding(newAccountURL, keyIdentifier string, macKey []byte, accountKey crypto.PublicKey) ([]byte, error) {
	jwk := JWKForPublic(accountKey)
	payload, err := jwk.MarshalJSON()
	if err != nil {
		return nil, fmt.Errorf("cannot serialize account key as JWK: %s", err)
	}

	signer, err := jose.NewSigner(
		jose.SigningKey{
			Algorithm: jose.HS256,
			Key:       macKey,
		},
		&jose.SignerOptions{
			// go-jose only emits a kid from the signing key for asymmetric
			// keys, so the MAC key identifier is set as an explicit header.
			ExtraHeaders: map[jose.HeaderKey]interface{}{
				"kid": keyIdentifier,
				"url": newAccountURL,
			},
		})
	if err != nil {
		return nil, err
	}

	signed, err := signer.Sign(payload)
	if err != nil {
		return nil, err
	}
	return []byte(signed.FullSerialize()), nil
}
