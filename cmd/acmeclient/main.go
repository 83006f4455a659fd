// acmeclient provides a developer-oriented command-line shell interface for
// interacting with an ACME server.
package main

import (
	"flag"
	"os"

	acmeclient "github.com/sgrant/acmeclient/acme/client"
	acmeshell "github.com/sgrant/acmeclient/shell"
)

const (
	DIRECTORY_DEFAULT    = "letsencrypt-staging"
	CA_DEFAULT           = ""
	AUTOREGISTER_DEFAULT = true
	CONTACT_DEFAULT      = ""
	ACCOUNT_DEFAULT      = ""
	HTTP_PORT_DEFAULT    = 5002
	TLS_PORT_DEFAULT     = 5001
	DNS_PORT_DEFAULT     = 5252
)

func main() {
	directory := flag.String(
		"directory",
		DIRECTORY_DEFAULT,
		"Directory URL for the ACME server, or a provider name "+
			"(letsencrypt, letsencrypt-staging, pebble)")

	caCert := flag.String(
		"ca",
		CA_DEFAULT,
		"CA certificate(s) for verifying ACME server HTTPS, empty for system roots")

	autoRegister := flag.Bool(
		"autoregister",
		AUTOREGISTER_DEFAULT,
		"Create an ACME account automatically at startup if required")

	email := flag.String(
		"contact",
		CONTACT_DEFAULT,
		"Optional contact email address for the auto-registered ACME account")

	acctPath := flag.String(
		"account",
		ACCOUNT_DEFAULT,
		"Optional JSON filepath to save/restore the auto-registered ACME account to")

	httpPort := flag.Int(
		"httpPort",
		HTTP_PORT_DEFAULT,
		"HTTP-01 challenge server port")

	tlsPort := flag.Int(
		"tlsPort",
		TLS_PORT_DEFAULT,
		"TLS-ALPN-01 challenge server port")

	dnsPort := flag.Int(
		"dnsPort",
		DNS_PORT_DEFAULT,
		"DNS-01 challenge server port")

	pebble := flag.Bool(
		"pebble",
		false,
		"Use Pebble defaults")

	flag.Parse()

	if *pebble {
		pebbleDirectory := "pebble"
		directory = &pebbleDirectory
		pebbleBaseDir := os.Getenv("GOPATH")
		pebbleCA := pebbleBaseDir + "/src/github.com/letsencrypt/pebble/test/certs/pebble.minica.pem"
		caCert = &pebbleCA
	}

	opts := &acmeshell.Options{
		Config: acmeclient.Config{
			DirectoryURL: *directory,
			CACert:       *caCert,
		},
		ContactEmail: *email,
		AccountPath:  *acctPath,
		AutoRegister: *autoRegister,
		HTTPPort:     *httpPort,
		TLSPort:      *tlsPort,
		DNSPort:      *dnsPort,
	}

	shell := acmeshell.New(opts)
	shell.Run()
}
