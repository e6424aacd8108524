package cli

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/runnerr0/afterglow/internal/storage"
)

// Execute implements the go-flags Commander interface for OpenCommand.
func (c *OpenCommand) Execute(args []string) error {
	if c.ID == "" {
		return fmt.Errorf("--id is required for open command")
	}

	cfg, err := loadConfig(c.globals)
	if err != nil {
		return err
	}
	store, _, err := openStore(c.globals, cfg)
	if err != nil {
		return err
	}
	defer store.Close()

	return c.executeWithStore(store)
}

// executeWithStore prints the notification from a provided store (for testing).
func (c *OpenCommand) executeWithStore(store storage.Store) error {
	if c.ID == "" {
		return fmt.Errorf("--id is required for open command")
	}
	ctx := context.Background()

	rec, err := store.GetNotification(ctx, c.ID)
	if errors.Is(err, storage.ErrNotFound) {
		return fmt.Errorf("notification not found: %s", c.ID)
	}
	if err != nil {
		return err
	}

	if c.SaveImage != "" {
		if err := c.saveImage(ctx, store, rec); err != nil {
			return err
		}
	}

	if c.globals != nil && c.globals.JSON {
		return c.outputJSON(rec)
	}

	switch c.Format {
	case "body", "raw":
		if rec.Body == "" {
			fmt.Println("No body captured")
		} else {
			fmt.Println(rec.Body)
		}
	case "json":
		return c.outputJSON(rec)
	case "md":
		c.outputMarkdown(rec)
	case "", "full":
		c.outputFull(rec)
	default:
		return fmt.Errorf("unknown format %q: use full, md, json or body", c.Format)
	}
	return nil
}

func (c *OpenCommand) saveImage(ctx context.Context, store storage.Store, rec *storage.Record) error {
	if !rec.HasImage {
		return fmt.Errorf("notification %s has no image", rec.ID)
	}
	img, err := store.GetImage(ctx, rec.ID)
	if err != nil {
		return fmt.Errorf("load image: %w", err)
	}
	if err := os.WriteFile(c.SaveImage, img.Data, 0o644); err != nil {
		return fmt.Errorf("write image: %w", err)
	}
	fmt.Fprintf(os.Stderr, "Saved image (%d bytes) to %s\n", len(img.Data), c.SaveImage)
	return nil
}

func (c *OpenCommand) outputFull(rec *storage.Record) {
	fmt.Println(rec.ID)
	fmt.Printf("App:        %s\n", rec.AppID)
	fmt.Printf("Title:      %s\n", rec.Title)
	if rec.Subtitle != "" {
		fmt.Printf("Subtitle:   %s\n", rec.Subtitle)
	}
	fmt.Printf("Delivered:  %s\n", rec.Delivered.Local().Format("2006-01-02 15:04:05"))
	fmt.Printf("Captured:   %s\n", rec.CapturedAt.Local().Format("2006-01-02 15:04:05"))
	fmt.Printf("Source:     %s\n", rec.Source)
	if rec.HasImage {
		fmt.Println("Image:      yes")
	}
	fmt.Println()
	fmt.Println("--- Body ---")
	if rec.Body == "" {
		fmt.Println("No body captured")
	} else {
		fmt.Println(rec.Body)
	}
}

func (c *OpenCommand) outputMarkdown(rec *storage.Record) {
	fmt.Println("---")
	fmt.Printf("id: %s\n", rec.ID)
	fmt.Printf("app: %s\n", rec.AppID)
	fmt.Printf("title: %s\n", rec.Title)
	if rec.Subtitle != "" {
		fmt.Printf("subtitle: %s\n", rec.Subtitle)
	}
	fmt.Printf("delivered: %s\n", rec.Delivered.UTC().Format(time.RFC3339))
	fmt.Printf("source: %s\n", rec.Source)
	fmt.Printf("has_image: %t\n", rec.HasImage)
	fmt.Println("---")
	fmt.Println()
	if rec.Body == "" {
		fmt.Println("No body captured")
	} else {
		fmt.Println(rec.Body)
	}
}

func (c *OpenCommand) outputJSON(rec *storage.Record) error {
	return printJSON(map[string]any{
		"id":          rec.ID,
		"app":         rec.AppID,
		"title":       rec.Title,
		"subtitle":    rec.Subtitle,
		"body":        rec.Body,
		"delivered":   rec.Delivered.UTC().Format(time.RFC3339),
		"captured_at": rec.CapturedAt.UTC().Format(time.RFC3339),
		"source":      rec.Source,
		"has_image":   rec.HasImage,
	})
}
