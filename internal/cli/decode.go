package cli

import (
	"fmt"
	"io"
	"os"

	"github.com/runnerr0/afterglow/internal/decode"
)

type decodeResult struct {
	File       string `json:"file"`
	Strategy   string `json:"strategy"`
	Title      string `json:"title"`
	Subtitle   string `json:"subtitle,omitempty"`
	Body       string `json:"body"`
	ImageBytes int    `json:"image_bytes"`
}

// Execute implements the go-flags Commander interface for DecodeCommand.
// Each argument is a payload file; "-" reads stdin.
func (c *DecodeCommand) Execute(args []string) error {
	if len(args) == 0 {
		return fmt.Errorf("decode requires at least one payload file (or - for stdin)")
	}

	results := make([]decodeResult, 0, len(args))
	for _, name := range args {
		payload, err := readPayload(name)
		if err != nil {
			return err
		}
		content, strategy := decode.DecodeWith(payload)
		results = append(results, decodeResult{
			File:       name,
			Strategy:   strategy,
			Title:      content.Title,
			Subtitle:   content.Subtitle,
			Body:       content.Body,
			ImageBytes: len(content.Image),
		})
	}

	if c.globals != nil && c.globals.JSON {
		return printJSON(results)
	}
	for i, r := range results {
		if i > 0 {
			fmt.Println()
		}
		fmt.Println(r.File)
		if r.Strategy == "" {
			fmt.Println("  no title or body found")
			continue
		}
		fmt.Printf("  Strategy:  %s\n", r.Strategy)
		fmt.Printf("  Title:     %s\n", r.Title)
		if r.Subtitle != "" {
			fmt.Printf("  Subtitle:  %s\n", r.Subtitle)
		}
		fmt.Printf("  Body:      %s\n", r.Body)
		if r.ImageBytes > 0 {
			fmt.Printf("  Image:     %d bytes\n", r.ImageBytes)
		}
	}
	return nil
}

func readPayload(name string) ([]byte, error) {
	if name == "-" {
		b, err := io.ReadAll(os.Stdin)
		if err != nil {
			return nil, fmt.Errorf("read stdin: %w", err)
		}
		return b, nil
	}
	b, err := os.ReadFile(name)
	if err != nil {
		return nil, fmt.Errorf("read payload: %w", err)
	}
	return b, nil
}
