package commands

import (
	"flag"

	"github.com/abiosoft/ishell"

	"github.com/sgrant/acmeclient/acme"
	"github.com/sgrant/acmeclient/acme/resources"
)

type revokeOptions struct {
	reason    int
	domainKey bool
}

var revokeOpts revokeOptions

func init() {
	revokeFlags := flag.NewFlagSet("revoke", flag.ContinueOnError)
	revokeFlags.IntVar(&revokeOpts.reason, "reason", -1,
		"RFC 5280 revocation reason code, -1 for none")
	revokeFlags.BoolVar(&revokeOpts.domainKey, "domainKey", false,
		"Sign the revocation with the certificate key instead of the account key")

	RegisterCommand(
		&ishell.Cmd{
			Name:     "revoke",
			Help:     "Revoke the certificate of a finalized order",
			LongHelp: "revoke [-reason N] [-domainKey] <order index or URL>",
		},
		revokeHandler,
		revokeFlags)
}

func revokeHandler(c *ishell.Context, leftovers []string) {
	account := RequireAccount(c)
	if account == nil {
		return
	}
	state := GetState(c)

	if len(leftovers) != 1 {
		c.Printf("revoke: you must specify an order index or URL\n")
		return
	}
	orderURL, err := OrderURLFromArg(state, leftovers[0])
	if err != nil {
		c.Printf("revoke: %s\n", err)
		return
	}

	order := resources.NewOrderResource(account.Login(), orderURL)
	if err := order.Update(); err != nil {
		c.Printf("revoke: %s\n", err)
		return
	}
	cert, err := order.Certificate()
	if err != nil {
		c.Printf("revoke: %s\n", err)
		return
	}

	var reasons []acme.RevocationReason
	if revokeOpts.reason >= 0 {
		reasons = append(reasons, acme.RevocationReason(revokeOpts.reason))
	}

	if revokeOpts.domainKey {
		certSigner, ok := state.CertKeys[order.Location()]
		if !ok {
			c.Printf("revoke: no certificate key known for order %s\n", order.Location())
			return
		}
		leaf, err := cert.Leaf()
		if err != nil {
			c.Printf("revoke: %s\n", err)
			return
		}
		err = resources.RevokeWithKey(state.Session, certSigner, leaf, reasons...)
		if err != nil {
			c.Printf("revoke: %s\n", err)
			return
		}
	} else if err := cert.Revoke(reasons...); err != nil {
		c.Printf("revoke: %s\n", err)
		return
	}

	c.Printf("Certificate for order %s revoked\n", order.Location())
}
