// mapcheck validates a maps root before it is handed to the arena.
package main

import (
	"fmt"
	"io"
	"os"
	"strconv"

	"github.com/pixil98/go-errors"
	"github.com/pixil98/go-arena/internal/display"
	"github.com/pixil98/go-arena/internal/maps"
	flag "github.com/spf13/pflag"
)

func main() {
	os.Exit(run(os.Args[1:], os.Stdout, os.Stderr))
}

func run(args []string, stdout, stderr io.Writer) int {
	fs := flag.NewFlagSet("mapcheck", flag.ContinueOnError)
	fs.SetOutput(stderr)
	root := fs.StringP("root", "r", "maps", "maps root to validate")
	rotation := fs.StringSlice("rotation", nil, "rotation keys that must be playable")
	quiet := fs.BoolP("quiet", "q", false, "only report problems")
	if err := fs.Parse(args); err != nil {
		return 2
	}

	defs, err := check(*root, *rotation)
	if !*quiet && len(defs) > 0 {
		fmt.Fprint(stdout, summarize(defs))
	}
	if err != nil {
		fmt.Fprintln(stderr, err)
		return 1
	}
	if !*quiet {
		fmt.Fprintf(stdout, "%d map(s) ok\n", len(defs))
	}
	return 0
}

// check loads every available map under root and confirms each rotation key
// is one of them. Every problem is collected, not just the first.
func check(root string, rotation []string) ([]*maps.Definition, error) {
	keys, err := maps.ListAvailable(root)
	if err != nil {
		return nil, err
	}

	el := errors.NewErrorList()
	if len(keys) == 0 {
		el.Add(fmt.Errorf("%w under %s", maps.ErrNotFound, root))
	}

	catalog := maps.NewCatalog(root)
	var defs []*maps.Definition
	for _, key := range keys {
		def, err := catalog.Load(key)
		if err != nil {
			el.Add(err)
			continue
		}
		defs = append(defs, def)
	}

	for _, key := range rotation {
		if !catalog.IsAvailable(key) {
			el.Add(fmt.Errorf("rotation entry %q is not an available map", key))
		}
	}

	return defs, el.Err()
}

func summarize(defs []*maps.Definition) string {
	t := display.NewTable("KEY", "NAME", "PLAYERS", "LIMIT", "TEAMS")
	for _, d := range defs {
		t.AddRow(
			d.DirID,
			d.Name,
			fmt.Sprintf("%d-%d", d.MinPlayers, d.MaxPlayers),
			strconv.Itoa(d.TimeLimit)+"s",
			strconv.Itoa(len(d.SpawnPoints)),
		)
	}
	return t.String()
}
