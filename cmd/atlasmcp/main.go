// atlasmcp: Jira and Confluence as editable text documents over MCP.
//
// Usage:
//
//	atlasmcp serve                  # Start MCP server (stdio transport)
//	atlasmcp open page 123456       # Print the document of an entity
//	atlasmcp save page doc.md       # Save an edited document
//	atlasmcp config                 # Show the resolved configuration
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/mark3labs/mcp-go/server"

	"github.com/HendryAvila/atlasmcp/internal/config"
	"github.com/HendryAvila/atlasmcp/internal/logging"
	"github.com/HendryAvila/atlasmcp/internal/mirror"
	atlasserver "github.com/HendryAvila/atlasmcp/internal/server"
)

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	var err error
	switch os.Args[1] {
	case "serve":
		err = run()
	case "open":
		err = runOpen(os.Args[2:])
	case "save":
		err = runSave(os.Args[2:])
	case "config":
		err = runConfig()
	case "--help", "-h", "help":
		printUsage()
		os.Exit(0)
	case "--version", "-v", "version":
		fmt.Printf("atlasmcp v%s\n", atlasserver.Version)
		os.Exit(0)
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n\n", os.Args[1])
		printUsage()
		os.Exit(1)
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// setup loads the configuration and builds the stderr logger. stdout is
// reserved for the MCP transport.
func setup() (*config.Config, logging.Logger, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, nil, fmt.Errorf("loading config: %w", err)
	}
	level, err := logging.ParseLevel(cfg.LogLevel)
	if err != nil {
		return nil, nil, err
	}
	format, err := logging.ParseFormat(cfg.LogFormat)
	if err != nil {
		return nil, nil, err
	}
	return cfg, logging.New(os.Stderr, level, logging.WithFormat(format)), nil
}

func run() error {
	cfg, log, err := setup()
	if err != nil {
		return err
	}

	s, cleanup, err := atlasserver.New(cfg, log)
	if err != nil {
		return fmt.Errorf("creating server: %w", err)
	}
	defer cleanup()

	// Graceful shutdown on interrupt.
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	err = server.NewStdioServer(s).Listen(ctx, os.Stdin, os.Stdout)
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

func runOpen(args []string) error {
	if len(args) != 2 {
		return errors.New("usage: atlasmcp open <issue|page> <id>")
	}
	kind, err := mirror.ParseKind(args[0])
	if err != nil {
		return err
	}
	cfg, log, err := setup()
	if err != nil {
		return err
	}

	opened, err := atlasserver.NewCoordinator(cfg, log).Open(context.Background(), kind, args[1])
	if err != nil {
		return err
	}
	_, err = io.WriteString(os.Stdout, opened.Text)
	return err
}

// runSave saves a document file ("-" reads stdin). On success the file is
// rewritten with the refreshed document so it can be edited again.
func runSave(args []string) error {
	if len(args) != 2 {
		return errors.New("usage: atlasmcp save <issue|page> <file|->")
	}
	kind, err := mirror.ParseKind(args[0])
	if err != nil {
		return err
	}
	path := args[1]

	var data []byte
	if path == "-" {
		data, err = io.ReadAll(os.Stdin)
	} else {
		data, err = os.ReadFile(path)
	}
	if err != nil {
		return fmt.Errorf("reading document: %w", err)
	}

	cfg, log, err := setup()
	if err != nil {
		return err
	}

	res, err := atlasserver.NewCoordinator(cfg, log).Save(context.Background(), kind, string(data))
	if res == nil {
		return err
	}
	fmt.Fprintln(os.Stderr, res.Message)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Warning: %v\n", err)
	}
	if res.Text != "" && path != "-" {
		if werr := os.WriteFile(path, []byte(res.Text), 0o644); werr != nil {
			return fmt.Errorf("updating %s: %w", path, werr)
		}
	}
	return nil
}

func runConfig() error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	mask := func(s string) string {
		if s == "" {
			return "(not set)"
		}
		return "********"
	}
	orNone := func(s string) string {
		if s == "" {
			return "(none)"
		}
		return s
	}
	fmt.Printf("Jira:        %s as %s, token %s\n", orNone(cfg.Jira.BaseURL), orNone(cfg.Jira.Email), mask(cfg.Jira.APIToken))
	fmt.Printf("Confluence:  %s as %s, token %s\n", orNone(cfg.Confluence.BaseURL), orNone(cfg.Confluence.Email), mask(cfg.Confluence.APIToken))
	fmt.Printf("Mirror dir:  %s\n", cfg.MirrorDir)
	fmt.Printf("Journal dir: %s\n", cfg.JournalDir)
	fmt.Printf("Log level:   %s\n", cfg.LogLevel)
	fmt.Printf("Log format:  %s\n", cfg.LogFormat)
	fmt.Printf("HTTP timeout: %s\n", cfg.HTTPTimeout)
	fmt.Printf("User config: %s\n", orNone(cfg.UserFile))
	fmt.Printf("Project config: %s\n", orNone(cfg.ProjectFile))
	return nil
}

func printUsage() {
	fmt.Fprintf(os.Stderr, `atlasmcp v%s: Jira and Confluence as editable documents over MCP

Usage:
  atlasmcp serve                    Start the MCP server (stdio transport)
  atlasmcp open <issue|page> <id>   Print the document of an issue or page
  atlasmcp save <issue|page> <file> Save an edited document ("-" reads stdin)
  atlasmcp config                   Show the resolved configuration
  atlasmcp version                  Print the version

Configuration:
  JIRA_BASE_URL, JIRA_EMAIL, JIRA_API_TOKEN (or ATLASMCP_JIRA_*),
  optional CONFLUENCE_* overrides, a .env file, ~/.atlasmcp/config.yaml
  and .atlasmcp/config.yaml in the project.

  Add to your AI tool's MCP config:

  {
    "mcpServers": {
      "atlasmcp": {
        "command": "atlasmcp",
        "args": ["serve"]
      }
    }
  }
`, atlasserver.Version)
}
