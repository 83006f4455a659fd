package commands

import (
	"github.com/abiosoft/ishell"

	"github.com/sgrant/acmeclient/acme/resources"
)

func init() {
	RegisterCommand(
		&ishell.Cmd{
			Name:     "getAuthz",
			Help:     "Fetch an authorization and print its challenges",
			LongHelp: "getAuthz <authorization URL>",
		},
		getAuthzHandler,
		nil)
}

func getAuthzHandler(c *ishell.Context, leftovers []string) {
	account := RequireAccount(c)
	if account == nil {
		return
	}

	if len(leftovers) != 1 || !OkURL(leftovers[0]) {
		c.Printf("getAuthz: you must specify an authorization URL\n")
		return
	}

	authz := resources.NewAuthorization(account.Login(), leftovers[0])
	if err := authz.Update(); err != nil {
		c.Printf("getAuthz: %s\n", err)
		return
	}

	c.Printf("Authorization %s\n", authz.Location())
	c.Printf("  identifier: %s\n", authz.Identifier)
	c.Printf("  status: %s\n", authz.Status)
	if authz.Wildcard {
		c.Printf("  wildcard: true\n")
	}
	for _, challenge := range authz.Challenges {
		c.Printf("  challenge: %s (%s, status %s)\n",
			challenge.Type, challenge.Location(), challenge.Status)
		if challenge.Error != nil {
			c.Printf("    error: %s\n", challenge.Error)
		}
	}
}
