// Dexedit CLI - an editing session over an APK-style bytecode archive.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/tliron/commonlog"

	"dexedit/config"
	"dexedit/dex"
	"dexedit/protocol"
	"dexedit/smali"
)

const version = "0.1.0"

func main() {
	verbose := flag.Bool("v", false, "Verbose logging on stderr")
	mcpMode := flag.Bool("mcp", false, "Serve the MCP tool surface on stdio instead of the line protocol")
	configDir := flag.String("config", "", "Directory to search for dexedit.toml (default: working directory)")
	archive := flag.String("open", "", "Archive to open on startup")
	showVersion := flag.Bool("version", false, "Print version and exit")

	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: dexedit [options]\n\n")
		fmt.Fprintf(os.Stderr, "Reads one JSON command per line on stdin and writes one JSON response per line.\n\n")
		fmt.Fprintf(os.Stderr, "Options:\n")
		flag.PrintDefaults()
		fmt.Fprintf(os.Stderr, "\nExamples:\n")
		fmt.Fprintf(os.Stderr, "  dexedit                       # Line protocol on stdio\n")
		fmt.Fprintf(os.Stderr, "  dexedit -open app.apk         # Open an archive before the first command\n")
		fmt.Fprintf(os.Stderr, "  dexedit -mcp                  # MCP stdio server exposing dex_* tools\n")
		fmt.Fprintf(os.Stderr, "\nProtocol:\n")
		fmt.Fprintf(os.Stderr, "  {\"command\": \"open\", \"args\": [\"app.apk\"]}\n")
		fmt.Fprintf(os.Stderr, "  {\"command\": \"get\", \"args\": [\"Lcom/example/Main;\"]}\n")
	}
	flag.Parse()

	if *showVersion {
		fmt.Printf("dexedit %s\n", version)
		return
	}

	verbosity := 0
	if *verbose {
		verbosity = 1
	}
	commonlog.Configure(verbosity, nil)

	dir := *configDir
	if dir == "" {
		dir = "."
	}
	cfg, err := config.FindAndLoad(dir)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error loading configuration: %v\n", err)
		os.Exit(1)
	}

	doc := dex.NewDocument(smali.NewCodec(),
		dex.WithHistoryCap(cfg.History.Cap),
		dex.WithAutoCheckpoint(cfg.History.AutoCheckpoint),
	)
	session := protocol.NewSession(doc, cfg)
	defer session.Close()

	if *archive != "" {
		if res := session.Dispatch("open", []string{*archive}); !res.Success {
			fmt.Fprintf(os.Stderr, "Error opening %s: %s\n", *archive, res.Error)
			os.Exit(1)
		}
	}

	if *mcpMode {
		srv := mcp.NewServer(&mcp.Implementation{Name: "dexedit", Version: version}, nil)
		session.RegisterMCP(srv)
		if err := srv.Run(context.Background(), &mcp.StdioTransport{}); err != nil {
			fmt.Fprintf(os.Stderr, "MCP server error: %v\n", err)
			os.Exit(1)
		}
		return
	}

	if err := session.Loop(os.Stdin, os.Stdout); err != nil {
		fmt.Fprintf(os.Stderr, "Session error: %v\n", err)
		os.Exit(1)
	}
}
