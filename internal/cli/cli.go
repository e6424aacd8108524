package cli

import (
	"fmt"
	"os"

	goflags "github.com/jessevdk/go-flags"
)

// commands holds references to all subcommand structs for inspection/testing.
type commands struct {
	Watch    *WatchCommand
	Status   *StatusCommand
	Search   *SearchCommand
	Open     *OpenCommand
	Decode   *DecodeCommand
	Backfill *BackfillCommand
	Prune    *PruneCommand
	Purge    *PurgeCommand
}

// buildParser constructs the go-flags parser with all subcommands registered.
func buildParser(version string) (*goflags.Parser, *GlobalFlags, *commands) {
	var globals GlobalFlags

	parser := goflags.NewParser(&globals, goflags.Default)
	parser.Name = "afterglow"
	parser.LongDescription = "Capture, archive and search macOS notifications before they disappear."

	cmds := &commands{
		Watch:    &WatchCommand{globals: &globals, version: version},
		Status:   &StatusCommand{globals: &globals, version: version},
		Search:   &SearchCommand{globals: &globals, version: version},
		Open:     &OpenCommand{globals: &globals, version: version},
		Decode:   &DecodeCommand{globals: &globals, version: version},
		Backfill: &BackfillCommand{globals: &globals, version: version},
		Prune:    &PruneCommand{globals: &globals, version: version},
		Purge:    &PurgeCommand{globals: &globals, version: version},
	}

	parser.AddCommand("watch", "Capture notifications until interrupted", "Run the history poller and banner scanner, archiving and printing new notifications. SIGHUP forgets known records and re-reads the history database.", cmds.Watch)
	parser.AddCommand("status", "Show permissions and archive statistics", "Show permission state, archive statistics, and configuration summary.", cmds.Status)
	parser.AddCommand("search", "Search archived notifications", "Search archived notifications by keyword, with optional filters.", cmds.Search)
	parser.AddCommand("open", "Print one archived notification", "Print the full stored content of a specific notification.", cmds.Open)
	parser.AddCommand("decode", "Decode payload files", "Decode raw notification payload files and print the extracted content.", cmds.Decode)
	parser.AddCommand("backfill", "Archive the current history", "Read the notification history database once and archive every record.", cmds.Backfill)
	parser.AddCommand("prune", "Apply retention pruning", "Remove archived notifications older than the retention period.", cmds.Prune)
	parser.AddCommand("purge", "Delete ALL archived data", "Delete ALL archived notifications. Destructive operation with safety prompt.", cmds.Purge)

	return parser, &globals, cmds
}

// Run is the main entry point for the CLI using os.Args.
func Run(version string) error {
	return RunWithArgs(version, nil)
}

// RunWithArgs parses the given args (or os.Args if nil) and executes the matched subcommand.
func RunWithArgs(version string, args []string) error {
	// Handle --version before parser (go-flags requires a subcommand, but
	// --version is valid without one).
	checkArgs := args
	if checkArgs == nil {
		checkArgs = os.Args[1:]
	}
	for _, arg := range checkArgs {
		if arg == "--version" {
			fmt.Printf("afterglow %s\n", version)
			return nil
		}
		if arg == "--" {
			break
		}
	}

	parser, _, _ := buildParser(version)

	var err error
	if args != nil {
		_, err = parser.ParseArgs(args)
	} else {
		_, err = parser.Parse()
	}

	if err != nil {
		if flagsErr, ok := err.(*goflags.Error); ok {
			if flagsErr.Type == goflags.ErrHelp {
				return nil
			}
		}
		return err
	}

	return nil
}
