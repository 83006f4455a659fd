package commands

import (
	"github.com/abiosoft/ishell"

	"github.com/sgrant/acmeclient/acme/resources"
)

func init() {
	RegisterCommand(
		&ishell.Cmd{
			Name:     "getOrder",
			Help:     "Fetch an order and print its state",
			LongHelp: "getOrder <order index or URL>",
		},
		getOrderHandler,
		nil)
}

func getOrderHandler(c *ishell.Context, leftovers []string) {
	account := RequireAccount(c)
	if account == nil {
		return
	}
	state := GetState(c)

	if len(leftovers) != 1 {
		c.Printf("getOrder: you must specify an order index or URL\n")
		return
	}
	orderURL, err := OrderURLFromArg(state, leftovers[0])
	if err != nil {
		c.Printf("getOrder: %s\n", err)
		return
	}

	order := resources.NewOrderResource(account.Login(), orderURL)
	if err := order.Update(); err != nil {
		c.Printf("getOrder: %s\n", err)
		return
	}

	c.Printf("Order %s\n", order.Location())
	c.Printf("  status: %s\n", order.Status)
	for _, identifier := range order.Identifiers {
		c.Printf("  identifier: %s\n", identifier)
	}
	for _, authzURL := range order.AuthorizationURLs {
		c.Printf("  authorization: %s\n", authzURL)
	}
	if order.FinalizeURL != "" {
		c.Printf("  finalize: %s\n", order.FinalizeURL)
	}
	if order.CertificateURL != "" {
		c.Printf("  certificate: %s\n", order.CertificateURL)
	}
	if order.Error != nil {
		c.Printf("  error: %s\n", order.Error)
	}
}
