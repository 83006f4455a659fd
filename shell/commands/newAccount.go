package commands

import (
	"flag"
	"strings"

	"github.com/abiosoft/ishell"

	"github.com/sgrant/acmeclient/acme/codec"
	"github.com/sgrant/acmeclient/acme/keys"
	"github.com/sgrant/acmeclient/acme/resources"
)

type newAccountOptions struct {
	contacts string
	keyType  string
	noTOS    bool
	eabKID   string
	eabHMAC  string
}

var newAccountOpts newAccountOptions

func init() {
	newAccountFlags := flag.NewFlagSet("newAccount", flag.ContinueOnError)
	newAccountFlags.StringVar(&newAccountOpts.contacts, "contacts", "",
		"Comma separated contact email addresses")
	newAccountFlags.StringVar(&newAccountOpts.keyType, "keyType", "ecdsa",
		"Account key type (rsa, ecdsa, ecdsa-p384, ecdsa-p521)")
	newAccountFlags.BoolVar(&newAccountOpts.noTOS, "noTOS", false,
		"Do not agree to the server's terms of service")
	newAccountFlags.StringVar(&newAccountOpts.eabKID, "eabKID", "",
		"External account binding key identifier")
	newAccountFlags.StringVar(&newAccountOpts.eabHMAC, "eabHMAC", "",
		"External account binding MAC key (base64url)")

	RegisterCommand(
		&ishell.Cmd{
			Name:     "newAccount",
			Aliases:  []string{"newAcct", "register"},
			Help:     "Register a new account and make it the active account",
			LongHelp: "Register a new ACME account with a freshly generated key pair.",
		},
		newAccountHandler,
		newAccountFlags)
}

func newAccountHandler(c *ishell.Context, leftovers []string) {
	state := GetState(c)

	signer, err := keys.NewSigner(newAccountOpts.keyType)
	if err != nil {
		c.Printf("newAccount: %s\n", err)
		return
	}

	config := resources.AccountConfig{
		TermsOfServiceAgreed: !newAccountOpts.noTOS,
	}
	if newAccountOpts.contacts != "" {
		for _, email := range strings.Split(newAccountOpts.contacts, ",") {
			config.Contacts = append(config.Contacts, "mailto:"+strings.TrimSpace(email))
		}
	}
	if newAccountOpts.eabKID != "" {
		macKey, err := codec.Base64URLDecode(newAccountOpts.eabHMAC)
		if err != nil {
			c.Printf("newAccount: invalid -eabHMAC value: %s\n", err)
			return
		}
		config.ExternalAccountBinding = &resources.ExternalAccountBinding{
			KeyIdentifier: newAccountOpts.eabKID,
			MACKey:        macKey,
		}
	}

	account, err := resources.Register(state.Session, signer, config)
	if err != nil {
		c.Printf("newAccount: %s\n", err)
		return
	}

	state.Account = account
	c.Printf("Created account with ID %q (status %q)\n",
		account.Location(), account.Status)
}
