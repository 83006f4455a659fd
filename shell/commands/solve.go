package commands

import (
	"flag"
	"strings"

	"github.com/abiosoft/ishell"

	"github.com/sgrant/acmeclient/acme/resources"
)

type solveOptions struct {
	challType    string
	printKeyAuth bool
	noTrigger    bool
}

var solveOpts solveOptions

func init() {
	solveFlags := flag.NewFlagSet("solve", flag.ContinueOnError)
	solveFlags.StringVar(&solveOpts.challType, "challengeType", resources.TypeHTTP01,
		"Challenge type to solve (http-01, dns-01, tls-alpn-01)")
	solveFlags.BoolVar(&solveOpts.printKeyAuth, "printKeyAuth", false,
		"Print the calculated key authorization")
	solveFlags.BoolVar(&solveOpts.noTrigger, "noTrigger", false,
		"Publish the response but do not trigger the challenge")

	RegisterCommand(
		&ishell.Cmd{
			Name:     "solve",
			Aliases:  []string{"solveChallenge"},
			Help:     "Publish a challenge response and trigger the challenge",
			LongHelp: "solve [-challengeType type] <authorization URL>",
		},
		solveHandler,
		solveFlags)
}

func solveHandler(c *ishell.Context, leftovers []string) {
	account := RequireAccount(c)
	if account == nil {
		return
	}
	state := GetState(c)

	if len(leftovers) != 1 || !OkURL(leftovers[0]) {
		c.Printf("solve: you must specify an authorization URL\n")
		return
	}

	authz := resources.NewAuthorization(account.Login(), leftovers[0])
	if err := authz.Update(); err != nil {
		c.Printf("solve: error getting authz: %s\n", err)
		return
	}

	challenge, err := authz.FindChallenge(solveOpts.challType)
	if err != nil {
		c.Printf("solve: %s\n", err)
		return
	}

	keyAuth, err := challenge.KeyAuthorization()
	if err != nil {
		c.Printf("solve: error computing key authorization: %s\n", err)
		return
	}
	if solveOpts.printKeyAuth {
		c.Printf("key authorization:\n%s\n", keyAuth)
	}

	host := authz.Identifier.Value
	switch strings.ToLower(solveOpts.challType) {
	case resources.TypeHTTP01:
		state.ChallSrv.AddHTTPOneChallenge(challenge.Token, keyAuth)
	case resources.TypeDNS01:
		digest, err := challenge.DNS01Digest()
		if err != nil {
			c.Printf("solve: %s\n", err)
			return
		}
		state.ChallSrv.AddDNSOneChallenge(resources.DNS01RecordName(host)+".", digest)
		c.Printf("TXT %s = %s\n", resources.DNS01RecordName(host), digest)
	case resources.TypeTLSALPN01:
		state.ChallSrv.AddTLSALPNChallenge(host, keyAuth)
	default:
		c.Printf("solve: unknown challenge type %q\n", solveOpts.challType)
		return
	}

	if solveOpts.noTrigger {
		c.Printf("Response published, challenge not triggered\n")
		return
	}

	if err := challenge.Trigger(); err != nil {
		c.Printf("solve: error triggering challenge: %s\n", err)
		return
	}
	c.Printf("Challenge %s triggered (status %q)\n",
		challenge.Location(), challenge.Status)
}
