package commands

import (
	"flag"
	"time"

	"github.com/abiosoft/ishell"

	"github.com/sgrant/acmeclient/acme/resources"
)

type pollOptions struct {
	kind    string
	timeout time.Duration
}

var pollOpts pollOptions

func init() {
	pollFlags := flag.NewFlagSet("poll", flag.ContinueOnError)
	pollFlags.StringVar(&pollOpts.kind, "kind", "order",
		"Resource kind to poll (order, authz, challenge)")
	pollFlags.DurationVar(&pollOpts.timeout, "timeout", 2*time.Minute,
		"How long to poll before giving up")

	RegisterCommand(
		&ishell.Cmd{
			Name:     "poll",
			Help:     "Poll a resource until it reaches a final state",
			LongHelp: "poll [-kind order|authz|challenge] [-timeout 2m] <index or URL>",
		},
		pollHandler,
		pollFlags)
}

func pollHandler(c *ishell.Context, leftovers []string) {
	account := RequireAccount(c)
	if account == nil {
		return
	}
	state := GetState(c)

	if len(leftovers) != 1 {
		c.Printf("poll: you must specify a resource index or URL\n")
		return
	}

	switch pollOpts.kind {
	case "order":
		orderURL, err := OrderURLFromArg(state, leftovers[0])
		if err != nil {
			c.Printf("poll: %s\n", err)
			return
		}
		order := resources.NewOrderResource(account.Login(), orderURL)
		if err := order.Poll(pollOpts.timeout); err != nil {
			c.Printf("poll: %s\n", err)
			return
		}
		c.Printf("Order %s is %q\n", order.Location(), order.Status)
	case "authz":
		authz := resources.NewAuthorization(account.Login(), leftovers[0])
		if err := authz.Poll(pollOpts.timeout); err != nil {
			c.Printf("poll: %s\n", err)
			return
		}
		c.Printf("Authorization %s is %q\n", authz.Location(), authz.Status)
	case "challenge":
		challenge := resources.NewChallenge(account.Login(), leftovers[0], "")
		if err := challenge.Poll(pollOpts.timeout); err != nil {
			c.Printf("poll: %s\n", err)
			return
		}
		c.Printf("Challenge %s is %q\n", challenge.Location(), challenge.Status)
	default:
		c.Printf("poll: unknown resource kind %q\n", pollOpts.kind)
	}
}
