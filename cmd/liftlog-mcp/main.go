// Command liftlog-mcp serves the LiftLog MCP tools over stdio, backed by a
// remote LiftLog server's REST API.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"

	"github.com/mark3labs/mcp-go/server"
	"github.com/meltforce/liftlog/internal/client"
	"github.com/meltforce/liftlog/internal/config"
	"github.com/meltforce/liftlog/internal/mcp"
)

// Version is set at build time via -ldflags.
var Version = "dev"

func main() {
	configPath := flag.String("config", "liftlog-cli.yaml", "path to config file (optional)")
	serverURL := flag.String("server", "", "LiftLog server URL, overrides client.server_url")
	flag.Parse()

	if *serverURL != "" {
		os.Setenv("LIFTLOG_CLIENT_SERVER_URL", *serverURL)
	}
	cfg, err := config.LoadClient(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	// stdout carries the protocol.
	log := config.NewLogger(os.Stderr, cfg.Log.Level)

	api := client.NewHTTPClient(cfg.Client.ServerURL)
	me, err := api.Me(context.Background())
	if err != nil {
		log.Error("cannot reach LiftLog server", "url", cfg.Client.ServerURL, "error", err)
		os.Exit(1)
	}
	log.Info("serving MCP over stdio", "server", cfg.Client.ServerURL, "user", me.Login)

	s := mcp.New(api, Version, log)
	if err := server.ServeStdio(s, server.WithStdioContextFunc(func(ctx context.Context) context.Context {
		return mcp.WithUserID(ctx, me.UserID)
	})); err != nil {
		log.Error("mcp server stopped", "error", err)
		os.Exit(1)
	}
}
