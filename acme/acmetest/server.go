// Package acmetest provides a small in-process ACME server mock for tests.
// It only speaks HTTP and the problem document taxonomy; everything else is
// scripted by the test that owns it.
package acmetest

import (
	"encoding/base64"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
)

// Server is an httptest.Server with ACME conveniences: every response
// carries a fresh Replay-Nonce, the standard directory endpoints have
// well-known paths, and per-path request counts are recorded.
type Server struct {
	*httptest.Server
	mux          *http.ServeMux
	nonceCounter int
	requests     map[string]int
}

// Standard endpoint paths served by HandleDirectory.
const (
	DirectoryPath  = "/directory"
	NewNoncePath   = "/new-nonce"
	NewAccountPath = "/new-account"
	NewOrderPath   = "/new-order"
	NewAuthzPath   = "/new-authz"
	RevokeCertPath = "/revoke-cert"
	KeyChangePath  = "/key-change"
)

// NewServer starts a mock server with a newNonce endpoint. Close it when
// the test is done.
func NewServer() *Server {
	s := &Server{
		mux:      http.NewServeMux(),
		requests: map[string]int{},
	}
	s.Server = httptest.NewServer(http.HandlerFunc(s.serve))

	s.Handle(NewNoncePath, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	})
	return s
}

func (s *Server) serve(w http.ResponseWriter, r *http.Request) {
	s.requests[r.URL.Path]++
	s.nonceCounter++
	w.Header().Set("Replay-Nonce", fmt.Sprintf("nonce-%d", s.nonceCounter))
	s.mux.ServeHTTP(w, r)
}

// Handle registers a handler for path.
func (s *Server) Handle(path string, handler http.HandlerFunc) {
	s.mux.HandleFunc(path, handler)
}

// URL returns the absolute URL of a path on the mock server.
func (s *Server) URL(path string) string {
	return s.Server.URL + path
}

// RequestCount returns how many requests path has received.
func (s *Server) RequestCount(path string) int {
	return s.requests[path]
}

// LastNonce returns the most recently issued nonce value.
func (s *Server) LastNonce() string {
	return fmt.Sprintf("nonce-%d", s.nonceCounter)
}

// HandleDirectory serves a directory document referencing the standard
// endpoint paths, with meta merged in when non-nil.
func (s *Server) HandleDirectory(meta map[string]interface{}) {
	s.Handle(DirectoryPath, func(w http.ResponseWriter, r *http.Request) {
		directory := map[string]interface{}{
			"newNonce":   s.URL(NewNoncePath),
			"newAccount": s.URL(NewAccountPath),
			"newOrder":   s.URL(NewOrderPath),
			"newAuthz":   s.URL(NewAuthzPath),
			"revokeCert": s.URL(RevokeCertPath),
			"keyChange":  s.URL(KeyChangePath),
		}
		if meta != nil {
			directory["meta"] = meta
		}
		WriteJSON(w, http.StatusOK, directory)
	})
}

// WriteJSON writes obj as a JSON response with the given status.
func WriteJSON(w http.ResponseWriter, status int, obj interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(obj)
}

// WriteProblem writes a problem+json response for the given ACME error type
// suffix.
func WriteProblem(w http.ResponseWriter, status int, typeSuffix, detail string) {
	w.Header().Set("Content-Type", "application/problem+json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]interface{}{
		"type":   "urn:ietf:params:acme:error:" + typeSuffix,
		"detail": detail,
		"status": status,
	})
}

// JWSEnvelope is the flattened serialization of a received JWS.
type JWSEnvelope struct {
	Protected string `json:"protected"`
	Payload   string `json:"payload"`
	Signature string `json:"signature"`
}

// ReadJWS decodes the flattened JWS from a request body and returns the
// envelope, the decoded protected header and the decoded payload. Requests
// with an empty payload (POST-as-GET) return an empty payload.
func ReadJWS(r *http.Request) (*JWSEnvelope, map[string]interface{}, []byte, error) {
	var envelope JWSEnvelope
	if err := json.NewDecoder(r.Body).Decode(&envelope); err != nil {
		return nil, nil, nil, err
	}

	headerBytes, err := base64.RawURLEncoding.DecodeString(envelope.Protected)
	if err != nil {
		return nil, nil, nil, err
	}
	var header map[string]interface{}
	if err := json.Unmarshal(headerBytes, &header); err != nil {
		return nil, nil, nil, err
	}

	payload, err := base64.RawURLEncoding.DecodeString(envelope.Payload)
	if err != nil {
		return nil, nil, nil, err
	}
	return &envelope, header, payload, nil
}
