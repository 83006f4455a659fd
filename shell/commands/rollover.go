package commands

import (
	"flag"

	"github.com/abiosoft/ishell"

	"github.com/sgrant/acmeclient/acme/keys"
)

type rolloverOptions struct {
	keyType string
}

var rolloverOpts rolloverOptions

func init() {
	rolloverFlags := flag.NewFlagSet("rollover", flag.ContinueOnError)
	rolloverFlags.StringVar(&rolloverOpts.keyType, "keyType", "ecdsa",
		"New account key type (rsa, ecdsa, ecdsa-p384, ecdsa-p521)")

	RegisterCommand(
		&ishell.Cmd{
			Name:     "rollover",
			Aliases:  []string{"keyChange", "keyRollover"},
			Help:     "Switch the active account to a new key pair",
			LongHelp: "rollover [-keyType type]",
		},
		rolloverHandler,
		rolloverFlags)
}

func rolloverHandler(c *ishell.Context, leftovers []string) {
	account := RequireAccount(c)
	if account == nil {
		return
	}

	newSigner, err := keys.NewSigner(rolloverOpts.keyType)
	if err != nil {
		c.Printf("rollover: %s\n", err)
		return
	}

	if err := account.KeyChange(newSigner); err != nil {
		c.Printf("rollover: %s\n", err)
		return
	}
	c.Printf("Rollover for %q completed\n", account.Location())
}
