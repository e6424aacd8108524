package cli

import (
	"io"

	"github.com/runnerr0/afterglow/internal/storage"
)

// GlobalFlags holds flags available to all subcommands.
type GlobalFlags struct {
	Config  string `long:"config" description:"Path to config file" default:""`
	JSON    bool   `long:"json" description:"Output in JSON format"`
	Verbose bool   `long:"verbose" description:"Enable verbose output"`
	Version bool   `long:"version" description:"Show version and exit"`
	DBPath  string `long:"db-path" description:"Path to the archive database (overrides config)"`
}

// WatchCommand runs the capture pipeline until interrupted.
type WatchCommand struct {
	Quiet     bool   `long:"quiet" description:"Archive without printing notifications"`
	NoPoller  bool   `long:"no-poller" description:"Disable the history database poller"`
	NoScanner bool   `long:"no-scanner" description:"Disable the banner scanner"`
	LogLevel  string `long:"log-level" description:"Override log level"`

	globals *GlobalFlags
	version string
}

// StatusCommand shows permissions, archive statistics and a config summary.
type StatusCommand struct {
	globals *GlobalFlags
	version string
}

// SearchCommand searches archived notifications.
type SearchCommand struct {
	Query  string   `long:"query" short:"q" description:"Search text (or pass as arguments)"`
	Since  string   `long:"since" description:"Only notifications newer than duration (e.g., 7d, 24h, 2w)" default:"30d"`
	Until  string   `long:"until" description:"Only notifications older than duration"`
	App    []string `long:"app" description:"Filter by app bundle id (repeatable)"`
	Source string   `long:"source" description:"Filter by source: history | banner"`
	Limit  int      `long:"limit" description:"Maximum results" default:"20"`
	Offset int      `long:"offset" description:"Skip first N results" default:"0"`

	globals *GlobalFlags
	version string
}

// OpenCommand prints one archived notification.
type OpenCommand struct {
	ID        string `long:"id" description:"Notification ID (required)"`
	Format    string `long:"format" description:"Output format: full | md | json | body" default:"full"`
	SaveImage string `long:"save-image" description:"Write the attachment image to this path"`

	globals *GlobalFlags
	version string
}

// DecodeCommand decodes raw notification payload files.
type DecodeCommand struct {
	globals *GlobalFlags
	version string
}

// BackfillCommand archives what the history database currently holds.
type BackfillCommand struct {
	Limit int `long:"limit" description:"Maximum records to read" default:"500"`

	globals *GlobalFlags
	version string
}

// PruneCommand removes notifications past the retention period.
type PruneCommand struct {
	OlderThan string `long:"older-than" description:"Override retention period (e.g., 30d)"`
	DryRun    bool   `long:"dry-run" description:"Show what would be pruned without deleting"`

	globals *GlobalFlags
	version string
	store   storage.Store // injectable for testing; nil means open the archive
}

// PurgeCommand deletes every archived notification after confirmation.
type PurgeCommand struct {
	All   bool `long:"all" description:"Required flag to confirm purge intent"`
	Force bool `long:"force" description:"Skip safety confirmation prompt"`

	globals *GlobalFlags
	version string
	store   storage.Store // injectable for testing; nil means open the archive
	in      io.Reader     // confirmation input; nil means stdin
}
