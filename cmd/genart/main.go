// Command genart creates, mutates, renders and archives genart formulas.
//
// Usage:
//
//	genart <command> [flags]
//
// Formulas are passed as share codes (-code) or as 288-byte binary files
// (-gimp). Run "genart help" for the list of commands.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"sort"

	"github.com/gogpu/genart"
)

// command is one subcommand.
type command struct {
	summary string
	run     func(a *app, fs *flag.FlagSet, args []string) error
}

var commands = map[string]command{
	"random":   {"print the share code of a random formula", (*app).random},
	"mutate":   {"print share codes of mutants of a formula", (*app).mutate},
	"render":   {"render a formula to PNG", (*app).render},
	"export":   {"write a formula as a 288-byte binary file", (*app).export},
	"import":   {"print the share code of a 288-byte binary file", (*app).importGimp},
	"sheet":    {"render a formula's mutants as a numbered contact sheet", (*app).sheet},
	"save":     {"archive a formula in a database", (*app).save},
	"list":     {"list archived formulas, newest first", (*app).list},
	"lineage":  {"show an archived formula and its ancestors", (*app).lineage},
	"describe": {"show the steps and liveness of a formula", (*app).describe},
}

// app carries the command environment so tests can capture output.
type app struct {
	ctx     context.Context
	stdout  io.Writer
	stderr  io.Writer
	verbose *bool
}

func main() {
	log.SetFlags(0)
	log.SetPrefix("genart: ")

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	a := &app{ctx: ctx, stdout: os.Stdout, stderr: os.Stderr}
	if err := a.run(os.Args[1:]); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			os.Exit(2)
		}
		log.Fatal(err)
	}
}

func (a *app) run(args []string) error {
	if len(args) == 0 || args[0] == "help" || args[0] == "-h" || args[0] == "--help" {
		a.usage()
		if len(args) == 0 {
			return flag.ErrHelp
		}
		return nil
	}

	name := args[0]
	cmd, ok := commands[name]
	if !ok {
		a.usage()
		return fmt.Errorf("unknown command %q", name)
	}

	fs := flag.NewFlagSet("genart "+name, flag.ContinueOnError)
	fs.SetOutput(a.stderr)
	a.verbose = fs.Bool("v", false, "log debug output to stderr")

	// Commands register their own flags, then call a.parse.
	return cmd.run(a, fs, args[1:])
}

func (a *app) usage() {
	fmt.Fprintln(a.stderr, "usage: genart <command> [flags]")
	fmt.Fprintln(a.stderr)
	fmt.Fprintln(a.stderr, "commands:")
	names := make([]string, 0, len(commands))
	for name := range commands {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		fmt.Fprintf(a.stderr, "  %-9s %s\n", name, commands[name].summary)
	}
}

// parse parses fs and applies the shared -v flag.
func (a *app) parse(fs *flag.FlagSet, args []string) error {
	if err := fs.Parse(args); err != nil {
		return err
	}
	if a.verbose != nil && *a.verbose {
		genart.SetLogger(slog.New(slog.NewTextHandler(a.stderr, &slog.HandlerOptions{
			Level: slog.LevelDebug,
		})))
	}
	return nil
}
