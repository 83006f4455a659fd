// Package commands holds the interactive shell commands and the state they
// share.
package commands

import (
	"crypto"
	"encoding/json"
	"flag"
	"fmt"
	"net/url"
	"strconv"

	"github.com/abiosoft/ishell"
	"github.com/letsencrypt/challtestsrv"

	"github.com/sgrant/acmeclient/acme/client"
	"github.com/sgrant/acmeclient/acme/resources"
)

const (
	// The base prompt used for shell commands.
	BasePrompt = "[ ACME ] > "
	// The ishell context key the shared State is stored under.
	StateKey = "acmeState"
)

// State is the mutable state the shell commands operate on: the session,
// the active account, the certificate keys generated for orders, and the
// challenge response server.
type State struct {
	Session *client.Session
	Account *resources.Account
	// Certificate keys by order URL, generated by the finalize command and
	// used again by revoke -domainKey.
	CertKeys map[string]crypto.Signer
	// URLs of orders created in this shell session, newest last.
	Orders []string
	// The embedded challenge response server the solve command publishes
	// responses on.
	ChallSrv *challtestsrv.ChallSrv
}

// shellContext is a common interface to retrieve objects from an
// ishell.Shell or an ishell.Context.
type shellContext interface {
	Get(string) interface{}
}

// GetState reads the shared *State from the shellContext or panics.
func GetState(c shellContext) *State {
	raw := c.Get(StateKey)
	if raw == nil {
		panic(fmt.Sprintf("nil %q value in shellContext", StateKey))
	}
	state, ok := raw.(*State)
	if !ok {
		panic(fmt.Sprintf("%q value in shellContext was not a *State", StateKey))
	}
	return state
}

// RequireAccount returns the active account or prints an instruction and
// returns nil when none is registered yet.
func RequireAccount(c *ishell.Context) *resources.Account {
	state := GetState(c)
	if state.Account == nil {
		c.Printf("no active account, run newAccount first\n")
		return nil
	}
	return state.Account
}

// OkURL reports whether urlStr is a valid HTTP/HTTPS URL.
func OkURL(urlStr string) bool {
	result, err := url.Parse(urlStr)
	if err != nil {
		return false
	}
	return result.Scheme == "http" || result.Scheme == "https"
}

// OrderURLFromArg resolves a command argument to an order URL: either an
// index into the orders created this session, or a literal URL.
func OrderURLFromArg(state *State, arg string) (string, error) {
	if index, err := strconv.Atoi(arg); err == nil {
		if index < 0 || index >= len(state.Orders) {
			return "", fmt.Errorf("order index %d is out of range, have %d orders",
				index, len(state.Orders))
		}
		return state.Orders[index], nil
	}
	if !OkURL(arg) {
		return "", fmt.Errorf("%q is not an order index or URL", arg)
	}
	return arg, nil
}

// PrintJSON renders an object as indented JSON.
func PrintJSON(ob interface{}) (string, error) {
	bytes, err := json.MarshalIndent(ob, "", "  ")
	if err != nil {
		return "", err
	}
	return string(bytes), nil
}

var commands []*ishell.Cmd

// AddCommands registers every shell command with the given shell.
func AddCommands(shell *ishell.Shell) {
	for _, cmd := range commands {
		shell.AddCmd(cmd)
	}
}

// CommandHandler is a command implementation invoked with the arguments
// left over after flag parsing.
type CommandHandler func(c *ishell.Context, leftovers []string)

// RegisterCommand wires a command's flags and handler together and adds it
// to the command registry. Commands call this from their init functions.
func RegisterCommand(cmd *ishell.Cmd, handler CommandHandler, flags *flag.FlagSet) {
	if flags == nil {
		flags = flag.NewFlagSet(cmd.Name, flag.ContinueOnError)
	}
	cmd.Func = wrapHandler(cmd.Name, handler, flags)
	commands = append(commands, cmd)
}

func wrapHandler(name string, handler CommandHandler, flags *flag.FlagSet) func(*ishell.Context) {
	return func(c *ishell.Context) {
		err := flags.Parse(c.Args)
		if err != nil && err != flag.ErrHelp {
			c.Printf("%s: error parsing input flags: %v\n", name, err)
			return
		} else if err == flag.ErrHelp {
			// The -h help text was already printed.
			return
		}

		handler(c, flags.Args())
	}
}
