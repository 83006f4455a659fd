// Package shell provides an interactive command shell for working with an
// ACME server through this library.
package shell

import (
	"crypto"
	"fmt"
	"log"
	"os"

	"github.com/abiosoft/ishell"
	"github.com/abiosoft/readline"
	"github.com/letsencrypt/challtestsrv"

	"github.com/sgrant/acmeclient/acme/client"
	"github.com/sgrant/acmeclient/acme/keys"
	"github.com/sgrant/acmeclient/acme/resources"
	acmecmd "github.com/sgrant/acmeclient/cmd"
	"github.com/sgrant/acmeclient/shell/commands"
)

// Options configures an ACMEShell: the session configuration plus the ports
// the embedded challenge response server answers on and the optional
// account persistence settings.
type Options struct {
	client.Config
	// An optional contact email address used when auto-registering.
	ContactEmail string
	// An optional file path to save/restore the active account to.
	AccountPath string
	// If true an account is registered at startup when none was restored.
	AutoRegister bool
	// Port number the ACME server validates HTTP-01 challenges over.
	HTTPPort int
	// Port number the ACME server validates TLS-ALPN-01 challenges over.
	TLSPort int
	// Port number the ACME server validates DNS-01 challenges over.
	DNSPort int
}

// ACMEShell is an ishell.Shell instance tailored for ACME, sharing
// a Session, the active account and a challenge response server with its
// commands.
type ACMEShell struct {
	*ishell.Shell
	state *commands.State
}

// New creates an ACMEShell from the given Options. The shell and its
// challenge server are not started until Run is called.
func New(opts *Options) *ACMEShell {
	shell := ishell.NewWithConfig(&readline.Config{
		Prompt: commands.BasePrompt,
	})

	challSrv, err := challtestsrv.New(challtestsrv.Config{
		HTTPOneAddrs:    []string{fmt.Sprintf(":%d", opts.HTTPPort)},
		TLSALPNOneAddrs: []string{fmt.Sprintf(":%d", opts.TLSPort)},
		DNSOneAddrs:     []string{fmt.Sprintf(":%d", opts.DNSPort)},
		Log:             log.New(os.Stdout, "challRespSrv: ", log.Ldate|log.Ltime),
	})
	acmecmd.FailOnError(err, "Unable to create challenge test server")

	session, err := client.NewSession(opts.Config)
	acmecmd.FailOnError(err, "Unable to create ACME session")

	state := &commands.State{
		Session:  session,
		CertKeys: map[string]crypto.Signer{},
		ChallSrv: challSrv,
	}
	setupAccount(state, opts)

	shell.Set(commands.StateKey, state)
	commands.AddCommands(shell)

	return &ACMEShell{
		Shell: shell,
		state: state,
	}
}

// setupAccount restores a saved account or registers a fresh one according
// to the Options.
func setupAccount(state *commands.State, opts *Options) {
	if opts.AccountPath != "" {
		account, err := resources.RestoreAccount(opts.AccountPath, state.Session)
		if err == nil {
			state.Account = account
			log.Printf("Restored account with ID %q\n", account.Location())
			return
		}
		if !opts.AutoRegister {
			acmecmd.FailOnError(err, "Unable to restore account")
		}
		log.Printf("No account restored\n")
	}

	if !opts.AutoRegister {
		log.Printf("AutoRegister is disabled\n")
		return
	}

	signer, err := keys.NewSigner("ecdsa")
	acmecmd.FailOnError(err, "Unable to generate account key")

	config := resources.AccountConfig{TermsOfServiceAgreed: true}
	if opts.ContactEmail != "" {
		config.Contacts = []string{"mailto:" + opts.ContactEmail}
	}

	account, err := resources.Register(state.Session, signer, config)
	acmecmd.FailOnError(err, "Unable to register account")
	state.Account = account
	log.Printf("Created account with ID %q\n", account.Location())

	if opts.AccountPath != "" {
		err := resources.SaveAccount(opts.AccountPath, account)
		acmecmd.FailOnError(err, "Unable to save account")
		log.Printf("Saved account data to %q\n", opts.AccountPath)
	}
}

// Run starts the ACMEShell, dropping into an interactive session that
// blocks on user input until it is time to exit. The challenge server is
// started before the shell and shut down after the session ends.
func (shell *ACMEShell) Run() {
	go shell.state.ChallSrv.Run()

	shell.Println("Welcome to ACME Shell")
	shell.Shell.Run()
	shell.Println("Goodbye!")
	shell.state.ChallSrv.Shutdown()
}
