package commands

import (
	"flag"

	"github.com/abiosoft/ishell"

	"github.com/sgrant/acmeclient/acme/keys"
	"github.com/sgrant/acmeclient/acme/resources"
)

type finalizeOptions struct {
	keyType string
}

var finalizeOpts finalizeOptions

func init() {
	finalizeFlags := flag.NewFlagSet("finalize", flag.ContinueOnError)
	finalizeFlags.StringVar(&finalizeOpts.keyType, "keyType", "ecdsa",
		"Certificate key type (rsa, ecdsa, ecdsa-p384, ecdsa-p521)")

	RegisterCommand(
		&ishell.Cmd{
			Name:     "finalize",
			Help:     "Finalize a ready order with a freshly keyed CSR",
			LongHelp: "finalize [-keyType type] <order index or URL>",
		},
		finalizeHandler,
		finalizeFlags)
}

func finalizeHandler(c *ishell.Context, leftovers []string) {
	account := RequireAccount(c)
	if account == nil {
		return
	}
	state := GetState(c)

	if len(leftovers) != 1 {
		c.Printf("finalize: you must specify an order index or URL\n")
		return
	}
	orderURL, err := OrderURLFromArg(state, leftovers[0])
	if err != nil {
		c.Printf("finalize: %s\n", err)
		return
	}

	order := resources.NewOrderResource(account.Login(), orderURL)
	if err := order.Update(); err != nil {
		c.Printf("finalize: %s\n", err)
		return
	}

	// The certificate key must not be the account key.
	certSigner, err := keys.NewSigner(finalizeOpts.keyType)
	if err != nil {
		c.Printf("finalize: %s\n", err)
		return
	}

	if err := order.Execute(certSigner); err != nil {
		c.Printf("finalize: %s\n", err)
		return
	}

	state.CertKeys[order.Location()] = certSigner
	c.Printf("Order %s finalized (status %q)\n", order.Location(), order.Status)
}
