// Command askdocs ingests documents and answers questions about them.
package main

import (
	"context"
	"fmt"
	"os"

	"github.com/custodia-labs/askdocs/internal/adapters/driving/cli"
	"github.com/custodia-labs/askdocs/internal/app"
)

// Version information (set by goreleaser).
var version = "dev"

func main() {
	cli.SetVersion(version)
	cli.SetLoader(load)

	if err := cli.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func load(ctx context.Context, req cli.LoadRequest) (*cli.Services, error) {
	if !req.Pipeline {
		settings, _, err := app.LoadSettings(req.ConfigPath)
		if err != nil {
			return nil, err
		}
		return &cli.Services{Settings: settings}, nil
	}

	a, err := app.New(ctx, app.Options{
		ConfigPath:    req.ConfigPath,
		SkipGenerator: !req.Generator,
	})
	if err != nil {
		return nil, err
	}
	return &cli.Services{
		Query:     a.Query,
		Ingestion: a.Ingestion,
		Settings:  a.Settings,
		Close:     a.Close,
	}, nil
}
