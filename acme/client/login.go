package client

import "crypto"

// Login binds an account URL and its key pair to a Session. Every signed
// request that uses the account identity flows through a Login; it is the
// only authority a signing request trusts to identify an account.
//
// The account URL and Session are fixed for the Login's lifetime. The key
// reference changes only through a successful key rollover.
type Login struct {
	session    *Session
	accountURL string
	signer     crypto.Signer
}

// Session returns the Session this Login is bound to.
func (l *Login) Session() *Session {
	return l.session
}

// AccountURL returns the account's canonical URL, used as the JWS "kid".
func (l *Login) AccountURL() string {
	return l.accountURL
}

// Signer returns the account's private key.
func (l *Login) Signer() crypto.Signer {
	return l.signer
}

// ReplaceSigner swaps the account key reference after a successful key
// rollover. It must not be called for any other purpose; the server only
// accepts signatures from the key it has on record.
func (l *Login) ReplaceSigner(newSigner crypto.Signer) {
	l.signer = newSigner
}
