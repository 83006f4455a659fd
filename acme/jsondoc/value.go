// Package jsondoc provides a small immutable JSON document model used for
// ACME server responses, with typed accessors that produce protocol errors
// naming the JSON path on schema violations, and an insertion-ordered builder
// for JWS payloads.
package jsondoc

import (
	"bytes"
	"encoding/json"
	"net/url"
	"strconv"
	"time"

	"github.com/sgrant/acmeclient/acme"
)

// Value is a single node of a parsed JSON document. A Value may be absent,
// which is distinct from a present JSON null. Values are immutable.
type Value struct {
	path    string
	raw     interface{}
	present bool
}

// Parse reads a JSON document from data. Numbers are kept in their wire form
// so integer precision is not lost.
func Parse(data []byte) (*Value, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()

	var raw interface{}
	if err := dec.Decode(&raw); err != nil {
		return nil, acme.Protocolf("invalid JSON document: %s", err)
	}
	return &Value{path: "$", raw: raw, present: true}, nil
}

// Empty returns an absent marker rooted at the given path.
func Empty(path string) *Value {
	return &Value{path: path}
}

// Path returns the dotted JSON path of this value, for error messages.
func (v *Value) Path() string {
	return v.path
}

// IsPresent reports whether this value exists in the document. A JSON null is
// present.
func (v *Value) IsPresent() bool {
	return v != nil && v.present
}

// IsNull reports whether this value is a present JSON null.
func (v *Value) IsNull() bool {
	return v.IsPresent() && v.raw == nil
}

// Get returns the named member of an object value. A missing member (or
// a non-object receiver) yields an absent marker whose accessors fail with
// a protocol error naming the path.
func (v *Value) Get(key string) *Value {
	childPath := v.path + "." + key
	if !v.IsPresent() {
		return Empty(childPath)
	}
	obj, ok := v.raw.(map[string]interface{})
	if !ok {
		return Empty(childPath)
	}
	raw, ok := obj[key]
	if !ok {
		return Empty(childPath)
	}
	return &Value{path: childPath, raw: raw, present: true}
}

// Optional returns the named member and whether it is present and non-null.
func (v *Value) Optional(key string) (*Value, bool) {
	member := v.Get(key)
	return member, member.IsPresent() && !member.IsNull()
}

func (v *Value) missing() error {
	return acme.Protocolf("required JSON value %s is missing", v.path)
}

// AsObject returns the member names of an object value.
func (v *Value) AsObject() ([]string, error) {
	if !v.IsPresent() {
		return nil, v.missing()
	}
	obj, ok := v.raw.(map[string]interface{})
	if !ok {
		return nil, acme.Protocolf("JSON value %s is not an object", v.path)
	}
	keys := make([]string, 0, len(obj))
	for key := range obj {
		keys = append(keys, key)
	}
	return keys, nil
}

// AsArray returns the elements of an array value. An absent value yields an
// empty slice so callers can range over optional lists.
func (v *Value) AsArray() ([]*Value, error) {
	if !v.IsPresent() {
		return nil, nil
	}
	arr, ok := v.raw.([]interface{})
	if !ok {
		return nil, acme.Protocolf("JSON value %s is not an array", v.path)
	}
	values := make([]*Value, len(arr))
	for i, raw := range arr {
		values[i] = &Value{
			path:    v.path + "[" + strconv.Itoa(i) + "]",
			raw:     raw,
			present: true,
		}
	}
	return values, nil
}

// AsString returns a string value.
func (v *Value) AsString() (string, error) {
	if !v.IsPresent() {
		return "", v.missing()
	}
	s, ok := v.raw.(string)
	if !ok {
		return "", acme.Protocolf("JSON value %s is not a string", v.path)
	}
	return s, nil
}

// AsInt returns an integer value.
func (v *Value) AsInt() (int64, error) {
	if !v.IsPresent() {
		return 0, v.missing()
	}
	num, ok := v.raw.(json.Number)
	if !ok {
		return 0, acme.Protocolf("JSON value %s is not a number", v.path)
	}
	n, err := num.Int64()
	if err != nil {
		return 0, acme.Protocolf("JSON value %s is not an integer: %s", v.path, err)
	}
	return n, nil
}

// AsBool returns a boolean value.
func (v *Value) AsBool() (bool, error) {
	if !v.IsPresent() {
		return false, v.missing()
	}
	b, ok := v.raw.(bool)
	if !ok {
		return false, acme.Protocolf("JSON value %s is not a boolean", v.path)
	}
	return b, nil
}

// AsInstant parses an RFC 3339 timestamp value.
func (v *Value) AsInstant() (time.Time, error) {
	s, err := v.AsString()
	if err != nil {
		return time.Time{}, err
	}
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return time.Time{}, acme.Protocolf("JSON value %s is not an RFC 3339 date: %s", v.path, err)
	}
	return t, nil
}

// AsSeconds interprets an integer value as a duration in seconds.
func (v *Value) AsSeconds() (time.Duration, error) {
	n, err := v.AsInt()
	if err != nil {
		return 0, err
	}
	return time.Duration(n) * time.Second, nil
}

// AsURL parses a string value as an absolute URL.
func (v *Value) AsURL() (*url.URL, error) {
	s, err := v.AsString()
	if err != nil {
		return nil, err
	}
	u, err := url.Parse(s)
	if err != nil || !u.IsAbs() {
		return nil, acme.Protocolf("JSON value %s is not an absolute URL: %q", v.path, s)
	}
	return u, nil
}

// AsStatus parses a string value as a Status. Unrecognized statuses parse to
// StatusUnknown rather than failing.
func (v *Value) AsStatus() (acme.Status, error) {
	s, err := v.AsString()
	if err != nil {
		return acme.StatusUnknown, err
	}
	return acme.ParseStatus(s), nil
}

// AsIdentifier decodes an object value as an ACME identifier.
func (v *Value) AsIdentifier() (acme.Identifier, error) {
	idType, err := v.Get("type").AsString()
	if err != nil {
		return acme.Identifier{}, err
	}
	idValue, err := v.Get("value").AsString()
	if err != nil {
		return acme.Identifier{}, err
	}
	return acme.Identifier{Type: idType, Value: idValue}, nil
}

// AsProblem decodes an object value as an RFC 7807 problem document.
func (v *Value) AsProblem() (*acme.Problem, error) {
	if !v.IsPresent() {
		return nil, v.missing()
	}
	raw, err := json.Marshal(v.raw)
	if err != nil {
		return nil, acme.Protocolf("JSON value %s is not a problem document: %s", v.path, err)
	}
	var problem acme.Problem
	if err := json.Unmarshal(raw, &problem); err != nil {
		return nil, acme.Protocolf("JSON value %s is not a problem document: %s", v.path, err)
	}
	return &problem, nil
}

// AsStrings returns an array value's elements as strings.
func (v *Value) AsStrings() ([]string, error) {
	values, err := v.AsArray()
	if err != nil {
		return nil, err
	}
	strs := make([]string, len(values))
	for i, elem := range values {
		s, err := elem.AsString()
		if err != nil {
			return nil, err
		}
		strs[i] = s
	}
	return strs, nil
}

