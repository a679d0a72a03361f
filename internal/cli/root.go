// Package cli implements the agentmem CLI commands.
package cli

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/hupe1980/agentmem/store/sqlite"
)

var dbPath string

// RootCmd is the top-level command.
var RootCmd = &cobra.Command{
	Use:   "agentmem",
	Short: "Event-sourced memory runtime for AI agents",
	Long:  "agentmem runs agent threads over immutable, event-sourced memory: versioned states, LLM-driven compaction and subagent orchestration. SQLite-backed, single binary.",
}

func init() {
	RootCmd.PersistentFlags().StringVarP(&dbPath, "db", "d", "", "Database path (default: $AGENTMEM_DB or ~/.agentmem/agentmem.db)")
	RootCmd.AddCommand(runCmd)
	RootCmd.AddCommand(inspectCmd)
}

func getDBPath() string {
	if dbPath != "" {
		return dbPath
	}
	if env := os.Getenv("AGENTMEM_DB"); env != "" {
		return env
	}
	home, _ := os.UserHomeDir()
	return filepath.Join(home, ".agentmem", "agentmem.db")
}

func openStore() (*sqlite.Store, error) {
	return sqlite.New(getDBPath())
}

func exitErr(msg string, err error) {
	fmt.Fprintf(os.Stderr, "error: %s: %v\n", msg, err)
	os.Exit(1)
}
