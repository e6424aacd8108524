package cli

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/runnerr0/afterglow/internal/storage"
)

// Execute implements the go-flags Commander interface for SearchCommand.
func (c *SearchCommand) Execute(args []string) error {
	cfg, err := loadConfig(c.globals)
	if err != nil {
		return err
	}
	store, _, err := openStore(c.globals, cfg)
	if err != nil {
		return err
	}
	defer store.Close()

	return c.executeWithStore(store, args)
}

// executeWithStore runs the search against a provided store (for testing).
func (c *SearchCommand) executeWithStore(store storage.Store, args []string) error {
	query := c.Query
	if query == "" && len(args) > 0 {
		query = strings.Join(args, " ")
	}

	switch c.Source {
	case "", "history", "banner":
	default:
		return fmt.Errorf("invalid --source %q: use history or banner", c.Source)
	}

	now := time.Now()
	var since time.Time
	if c.Since != "" {
		dur, err := parseDuration(c.Since)
		if err != nil {
			return fmt.Errorf("invalid --since value %q: %w", c.Since, err)
		}
		since = now.Add(-dur)
	}

	var until time.Time
	if c.Until != "" {
		dur, err := parseDuration(c.Until)
		if err != nil {
			return fmt.Errorf("invalid --until value %q: %w", c.Until, err)
		}
		until = now.Add(-dur)
	}

	sq := storage.SearchQuery{
		Query:  query,
		Apps:   c.App,
		Source: c.Source,
		Since:  since,
		Until:  until,
		Limit:  c.Limit,
		Offset: c.Offset,
	}

	ctx := context.Background()
	results, err := store.SearchNotifications(ctx, sq)
	if err != nil {
		return fmt.Errorf("search failed: %w", err)
	}

	if c.globals != nil && c.globals.JSON {
		return c.printJSON(query, results)
	}
	return c.printHuman(query, results)
}

func (c *SearchCommand) printHuman(query string, results []storage.Record) error {
	window := "all time"
	if c.Since != "" {
		window = "since " + c.Since
	}

	if len(results) == 0 {
		if query != "" {
			fmt.Printf("No results found for %q (%s)\n", query, window)
		} else {
			fmt.Printf("No results found (%s)\n", window)
		}
		return nil
	}

	resultWord := plural(len(results), "result", "results")
	if query != "" {
		fmt.Printf("Found %d %s for %q (%s)\n\n", len(results), resultWord, query, window)
	} else {
		fmt.Printf("Found %d %s (%s)\n\n", len(results), resultWord, window)
	}

	for i, r := range results {
		title := r.Title
		if title == "" {
			title = "(no title)"
		}
		fmt.Printf("%d. %s", i+1+c.Offset, title)
		if r.Subtitle != "" {
			fmt.Printf(" (%s)", r.Subtitle)
		}
		fmt.Println()

		if r.Body != "" {
			fmt.Printf("   %s\n", oneLine(r.Body, 100))
		}

		meta := r.Delivered.Local().Format("2006-01-02 15:04")
		if r.AppID != "" {
			meta += " | " + r.AppID
		}
		meta += " | " + r.Source
		if r.ID != "" {
			meta += " | " + r.ID
		}
		fmt.Printf("   %s\n", meta)

		if i < len(results)-1 {
			fmt.Println()
		}
	}

	return nil
}

type jsonResult struct {
	ID        string `json:"id"`
	App       string `json:"app"`
	Title     string `json:"title"`
	Subtitle  string `json:"subtitle,omitempty"`
	Body      string `json:"body"`
	Delivered string `json:"delivered"`
	Source    string `json:"source"`
	HasImage  bool   `json:"has_image"`
}

type jsonSearchOutput struct {
	Count   int          `json:"count"`
	Query   string       `json:"query"`
	Results []jsonResult `json:"results"`
}

func (c *SearchCommand) printJSON(query string, results []storage.Record) error {
	out := jsonSearchOutput{
		Count:   len(results),
		Query:   query,
		Results: make([]jsonResult, len(results)),
	}

	for i, r := range results {
		out.Results[i] = jsonResult{
			ID:        r.ID,
			App:       r.AppID,
			Title:     r.Title,
			Subtitle:  r.Subtitle,
			Body:      r.Body,
			Delivered: r.Delivered.UTC().Format(time.RFC3339),
			Source:    r.Source,
			HasImage:  r.HasImage,
		}
	}

	return printJSON(out)
}

// oneLine collapses whitespace and truncates s to n runes.
func oneLine(s string, n int) string {
	s = strings.Join(strings.Fields(s), " ")
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-1]) + "…"
}
