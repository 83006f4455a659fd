package commands

import (
	"flag"
	"strings"

	"github.com/abiosoft/ishell"

	"github.com/sgrant/acmeclient/acme"
	"github.com/sgrant/acmeclient/acme/resources"
)

type newOrderOptions struct {
	ips string
}

var newOrderOpts newOrderOptions

func init() {
	newOrderFlags := flag.NewFlagSet("newOrder", flag.ContinueOnError)
	newOrderFlags.StringVar(&newOrderOpts.ips, "ips", "",
		"Comma separated IP address identifiers to include in the order")

	RegisterCommand(
		&ishell.Cmd{
			Name:     "newOrder",
			Help:     "Create a new order for one or more domains",
			LongHelp: "newOrder [-ips a,b] domain [domain ...]",
		},
		newOrderHandler,
		newOrderFlags)
}

func newOrderHandler(c *ishell.Context, leftovers []string) {
	account := RequireAccount(c)
	if account == nil {
		return
	}
	state := GetState(c)

	var identifiers []acme.Identifier
	for _, domain := range leftovers {
		identifiers = append(identifiers, acme.DNS(domain))
	}
	if newOrderOpts.ips != "" {
		for _, address := range strings.Split(newOrderOpts.ips, ",") {
			identifiers = append(identifiers, acme.IP(strings.TrimSpace(address)))
		}
	}
	if len(identifiers) == 0 {
		c.Printf("newOrder: you must specify at least one domain or IP\n")
		return
	}

	order, err := account.NewOrder(resources.OrderConfig{Identifiers: identifiers})
	if err != nil {
		c.Printf("newOrder: %s\n", err)
		return
	}

	state.Orders = append(state.Orders, order.Location())
	c.Printf("Created new order with ID %q (index %d, status %q)\n",
		order.Location(), len(state.Orders)-1, order.Status)
	for _, authzURL := range order.AuthorizationURLs {
		c.Printf("  authorization: %s\n", authzURL)
	}
}
