// Package main provides the outlook-mcp CLI entry point.
package main

import (
	"context"
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/inboxtools/outlook-mcp/config"
	"github.com/inboxtools/outlook-mcp/graph"
	"github.com/inboxtools/outlook-mcp/mcp"
	"github.com/inboxtools/outlook-mcp/resolver"
	"github.com/inboxtools/outlook-mcp/store"
	"github.com/inboxtools/outlook-mcp/tools"
)

const version = "0.1.0"

func main() {
	// Load .env file if present (ignore "file not found" errors)
	if err := godotenv.Load(); err != nil {
		if !os.IsNotExist(err) {
			fmt.Fprintf(os.Stderr, "Warning: failed to load .env file: %v\n", err)
		}
	}

	rootCmd := &cobra.Command{
		Use:   "outlook-mcp",
		Short: "MCP server exposing mail search with bounded previews",
		Long: `An MCP (Model Context Protocol) server that exposes mail search and
drill-down tools over stdio.

Search responses are bounded previews; full result sets are cached under
opaque references and resolved on demand, so large payloads never cross the
constrained channel twice.`,
	}

	rootCmd.AddCommand(serveCmd())
	rootCmd.AddCommand(toolsCmd())

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Serve MCP over stdin/stdout",
		RunE: func(cmd *cobra.Command, args []string) error {
			settings, err := config.Load()
			if err != nil {
				return err
			}

			registry, res, stop, err := buildRegistry(settings)
			if err != nil {
				return err
			}
			defer stop()

			server := mcp.NewServer("outlook-mcp", version, registry, res)
			return server.Serve(context.Background(), os.Stdin, os.Stdout)
		},
	}
}

func toolsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "tools",
		Short: "List available tools",
		RunE: func(cmd *cobra.Command, args []string) error {
			settings, err := config.Load()
			if err != nil {
				return err
			}

			registry, _, stop, err := buildRegistry(settings)
			if err != nil {
				return err
			}
			defer stop()

			fmt.Println(registry.Description())
			return nil
		},
	}
}

// buildRegistry wires caches, upstream client, and tools. The returned stop
// function terminates the cache sweeps; the long-running serve path holds it
// until process exit.
func buildRegistry(settings config.Settings) (*tools.Registry, *resolver.Resolver, func(), error) {
	searches, err := store.NewSearchCache(settings.Cache.SearchOptions())
	if err != nil {
		return nil, nil, nil, err
	}
	attachments, err := store.NewAttachmentCache(settings.Cache.AttachmentOptions())
	if err != nil {
		searches.Stop()
		return nil, nil, nil, err
	}
	stop := func() {
		searches.Stop()
		attachments.Stop()
	}

	client := graph.NewClient(
		settings.Graph.BaseURL,
		graph.StaticTokenSource(settings.Graph.AccessToken),
		settings.Graph.Timeout(),
	)
	dispatcher := graph.NewDispatcher(client)

	limits := tools.Limits{
		PerQuery: settings.Preview.PerQueryLimit,
		Total:    settings.Preview.TotalLimit,
	}
	registry, err := tools.NewMailRegistry(dispatcher, client, searches, attachments, limits)
	if err != nil {
		stop()
		return nil, nil, nil, err
	}

	return registry, resolver.New(searches, attachments), stop, nil
}
