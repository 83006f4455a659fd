package jsondoc

import (
	"bytes"
	"crypto"
	"encoding/json"
	"fmt"
	"time"

	jose "github.com/go-jose/go-jose/v4"

	"github.com/sgrant/acmeclient/acme/codec"
)

// Builder accumulates the key/value pairs of a JSON object, preserving
// insertion order in the serialized output. It is used to construct JWS
// payloads, where a stable serialization keeps requests reproducible.
type Builder struct {
	keys   []string
	values map[string]interface{}
}

// NewBuilder returns an empty Builder.
func NewBuilder() *Builder {
	return &Builder{values: map[string]interface{}{}}
}

// Put sets a key to a value. Re-putting an existing key replaces its value
// but keeps its original position.
func (b *Builder) Put(key string, value interface{}) *Builder {
	if _, exists := b.values[key]; !exists {
		b.keys = append(b.keys, key)
	}
	b.values[key] = value
	return b
}

// PutInstant sets a key to an RFC 3339 UTC timestamp.
func (b *Builder) PutInstant(key string, t time.Time) *Builder {
	return b.Put(key, t.UTC().Format(time.RFC3339))
}

// PutSeconds sets a key to a duration expressed as integral seconds.
func (b *Builder) PutSeconds(key string, d time.Duration) *Builder {
	return b.Put(key, int64(d/time.Second))
}

// PutBase64 sets a key to the unpadded base64url encoding of data.
func (b *Builder) PutBase64(key string, data []byte) *Builder {
	return b.Put(key, codec.Base64URLEncode(data))
}

// PutKey sets a key to the JWK serialization of a public key.
func (b *Builder) PutKey(key string, publicKey crypto.PublicKey) error {
	jwk := jose.JSONWebKey{Key: publicKey}
	raw, err := jwk.MarshalJSON()
	if err != nil {
		return fmt.Errorf("cannot serialize key as JWK: %s", err)
	}
	b.Put(key, json.RawMessage(raw))
	return nil
}

// Object creates a nested object under key and returns its Builder.
func (b *Builder) Object(key string) *Builder {
	sub := NewBuilder()
	b.Put(key, sub)
	return sub
}

// Array sets a key to an array of values.
func (b *Builder) Array(key string, values ...interface{}) *Builder {
	return b.Put(key, values)
}

// Bytes serializes the builder to compact JSON with keys in insertion order.
func (b *Builder) Bytes() ([]byte, error) {
	var buf bytes.Buffer
	if err := b.write(&buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func (b *Builder) write(buf *bytes.Buffer) error {
	buf.WriteByte('{')
	for i, key := range b.keys {
		if i > 0 {
			buf.WriteByte(',')
		}
		encodedKey, err := json.Marshal(key)
		if err != nil {
			return err
		}
		buf.Write(encodedKey)
		buf.WriteByte(':')

		switch v := b.values[key].(type) {
		case *Builder:
			if err := v.write(buf); err != nil {
				return err
			}
		default:
			encoded, err := json.Marshal(v)
			if err != nil {
				return fmt.Errorf("cannot serialize %q: %s", key, err)
			}
			buf.Write(encoded)
		}
	}
	buf.WriteByte('}')
	return nil
}

// String returns the compact JSON text, or a placeholder if serialization
// fails.
func (b *Builder) String() string {
	raw, err := b.Bytes()
	if err != nil {
		return "{}"
	}
	return string(raw)
}
