// Package main provides the ledger CLI for inspecting and maintaining the
// persisted interaction history.
//
// Usage:
//
//	# Dump the full history for a correspondent as JSON
//	ledger dump sarah@example.com
//
//	# Count stored interactions for a correspondent
//	ledger count sarah@example.com
//
//	# Remove a correspondent's history, or the entire ledger
//	ledger clear sarah@example.com
//	ledger clear all
package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"os"

	"github.com/sonukumar047/email-assistant/triagecore/config"
	"github.com/sonukumar047/email-assistant/triagecore/history"
	"github.com/sonukumar047/email-assistant/triagecore/logging"
)

const (
	cmdDump  = "dump"
	cmdCount = "count"
	cmdClear = "clear"
)

func main() {
	ledgerPath := flag.String("ledger", "", "path to the ledger file (defaults to the configured path)")
	configPath := flag.String("config", "", "path to YAML config file")
	flag.Parse()

	args := flag.Args()
	if len(args) < 1 {
		printUsage()
		os.Exit(1)
	}

	cfg := config.Default()
	if *configPath != "" {
		loaded, err := config.Load(*configPath)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
			os.Exit(1)
		}
		cfg = loaded
	}
	path := cfg.LedgerPath
	if *ledgerPath != "" {
		path = *ledgerPath
	}

	store := history.NewStore(path, cfg.MaxHistory, logging.Nop())

	cmd := args[0]
	switch cmd {
	case cmdDump:
		handleDump(store, args[1:])
	case cmdCount:
		handleCount(store, args[1:])
	case cmdClear:
		handleClear(store, args[1:])
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n", cmd)
		printUsage()
		os.Exit(1)
	}
}

func printUsage() {
	fmt.Fprintln(os.Stderr, `Usage: ledger [-ledger path] [-config path] <command> <key>

Commands:
  dump <key>    Print stored interactions for a correspondent as JSON
  count <key>   Print the number of stored interactions
  clear <key>   Remove a correspondent's history ('all' clears everything)

Examples:
  ledger dump sarah@example.com
  ledger count sarah@example.com
  ledger clear all`)
}

func handleDump(store *history.Store, args []string) {
	key := requireKey(args)
	records := store.Load(key)

	encoder := json.NewEncoder(os.Stdout)
	encoder.SetIndent("", "  ")
	if err := encoder.Encode(records); err != nil {
		fmt.Fprintf(os.Stderr, "Error encoding records: %v\n", err)
		os.Exit(1)
	}
}

func handleCount(store *history.Store, args []string) {
	key := requireKey(args)
	fmt.Println(store.Count(key))
}

func handleClear(store *history.Store, args []string) {
	key := requireKey(args)

	var err error
	if key == "all" {
		err = store.ClearAll()
	} else {
		err = store.Clear(key)
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error clearing ledger: %v\n", err)
		os.Exit(1)
	}
	fmt.Printf("Memory cleared for: %s\n", key)
}

func requireKey(args []string) string {
	if len(args) < 1 || args[0] == "" {
		printUsage()
		os.Exit(1)
	}
	return args[0]
}
