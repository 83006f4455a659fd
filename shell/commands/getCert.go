package commands

import (
	"flag"
	"os"

	"github.com/abiosoft/ishell"

	"github.com/sgrant/acmeclient/acme/resources"
)

type getCertOptions struct {
	outPath string
}

var getCertOpts getCertOptions

func init() {
	getCertFlags := flag.NewFlagSet("getCert", flag.ContinueOnError)
	getCertFlags.StringVar(&getCertOpts.outPath, "out", "",
		"Write the PEM chain to this file instead of printing it")

	RegisterCommand(
		&ishell.Cmd{
			Name:     "getCert",
			Help:     "Download the certificate chain of a valid order",
			LongHelp: "getCert [-out file] <order index or URL>",
		},
		getCertHandler,
		getCertFlags)
}

func getCertHandler(c *ishell.Context, leftovers []string) {
	account := RequireAccount(c)
	if account == nil {
		return
	}
	state := GetState(c)

	if len(leftovers) != 1 {
		c.Printf("getCert: you must specify an order index or URL\n")
		return
	}
	orderURL, err := OrderURLFromArg(state, leftovers[0])
	if err != nil {
		c.Printf("getCert: %s\n", err)
		return
	}

	order := resources.NewOrderResource(account.Login(), orderURL)
	if err := order.Update(); err != nil {
		c.Printf("getCert: %s\n", err)
		return
	}

	cert, err := order.Certificate()
	if err != nil {
		c.Printf("getCert: %s\n", err)
		return
	}
	if err := cert.Download(); err != nil {
		c.Printf("getCert: %s\n", err)
		return
	}

	out := os.Stdout
	if getCertOpts.outPath != "" {
		out, err = os.Create(getCertOpts.outPath)
		if err != nil {
			c.Printf("getCert: %s\n", err)
			return
		}
		defer out.Close()
	}
	if err := cert.WritePEM(out); err != nil {
		c.Printf("getCert: %s\n", err)
		return
	}

	if alternates, err := cert.Alternates(); err == nil {
		for _, alternate := range alternates {
			c.Printf("alternate chain: %s\n", alternate)
		}
	}
}
