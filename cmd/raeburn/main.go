// Command raeburn is the CLI surface described as an external collaborator
// contract in §6: its subcommands map 1-to-1 onto the orchestrator's run
// and the memory store's dump_all/load_dump. Exit code 0 on success,
// non-zero on any propagated error.
//
// Usage:
//
//	raeburn route --input "summarize the ticket" [--agent generalist] [--priority 1]
//	raeburn dump --out dump.json
//	raeburn load --in dump.json
//	raeburn version
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"time"

	"go.uber.org/zap"

	"github.com/Raebu/RaeburnBrainMonorepo/config"
	"github.com/Raebu/RaeburnBrainMonorepo/internal/logging"
	"github.com/Raebu/RaeburnBrainMonorepo/memory"
	"github.com/Raebu/RaeburnBrainMonorepo/orchestrator"
	"github.com/Raebu/RaeburnBrainMonorepo/registry"
)

var (
	Version   = "dev"
	BuildTime = "unknown"
)

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	var err error
	switch os.Args[1] {
	case "route":
		err = runRoute(os.Args[2:])
	case "dump":
		err = runDump(os.Args[2:])
	case "load":
		err = runLoad(os.Args[2:])
	case "version":
		fmt.Printf("raeburn %s (built %s)\n", Version, BuildTime)
	case "help", "-h", "--help":
		printUsage()
	default:
		fmt.Fprintf(os.Stderr, "unknown command: %s\n", os.Args[1])
		printUsage()
		os.Exit(1)
	}

	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func printUsage() {
	fmt.Fprintln(os.Stderr, `raeburn commands:
  route   --input TEXT [--agent ROLE] [--priority N]   run the orchestrator pipeline once
  dump    --out FILE                                   write every memory entry to FILE
  load    --in FILE                                     upsert memory entries from FILE
  version                                                print build info`)
}

func buildOrchestrator(logger *zap.Logger) (*orchestrator.Orchestrator, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}

	descriptors, err := registry.LoadFile(cfg.ConfigDir)
	if err != nil {
		return nil, fmt.Errorf("load registry: %w", err)
	}
	reg := registry.New(descriptors, registry.CredentialsFromEnv(), logger)

	store := memory.New(memory.Config{BaseDir: cfg.MemoryDir, ShardingEnabled: true}, logger)

	o := orchestrator.New(reg, store, nil, cfg.OrchestratorMode, logger)
	o.Weights = cfg.ScoreWeights
	o.JudgeBackend = cfg.JudgeBackend
	o.ParallelEnabled = cfg.ParallelEnabled
	return o, nil
}

func runRoute(args []string) error {
	fs := flag.NewFlagSet("route", flag.ContinueOnError)
	input := fs.String("input", "", "user input text")
	agent := fs.String("agent", "generalist", "agent role")
	priority := fs.Int("priority", 1, "task priority")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *input == "" {
		return fmt.Errorf("--input is required")
	}

	logger := logging.New(logging.DefaultConfig())
	defer logger.Sync()

	o, err := buildOrchestrator(logger)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(context.Background(), 60*time.Second)
	defer cancel()

	result, err := o.Run(ctx, orchestrator.Task{UserInput: *input, AgentRole: *agent, Priority: *priority})
	if err != nil {
		return fmt.Errorf("run: %w", err)
	}

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(result)
}

func runDump(args []string) error {
	fs := flag.NewFlagSet("dump", flag.ContinueOnError)
	out := fs.String("out", "", "output file")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *out == "" {
		return fmt.Errorf("--out is required")
	}

	cfg, err := config.Load()
	if err != nil {
		return err
	}
	store := memory.New(memory.Config{BaseDir: cfg.MemoryDir, ShardingEnabled: true}, nil)

	entries, err := store.DumpAll()
	if err != nil {
		return fmt.Errorf("dump_all: %w", err)
	}

	raw, err := json.MarshalIndent(entries, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(*out, raw, 0o644)
}

func runLoad(args []string) error {
	fs := flag.NewFlagSet("load", flag.ContinueOnError)
	in := fs.String("in", "", "input file")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *in == "" {
		return fmt.Errorf("--in is required")
	}

	raw, err := os.ReadFile(*in)
	if err != nil {
		return err
	}
	var entries []memory.Entry
	if err := json.Unmarshal(raw, &entries); err != nil {
		return fmt.Errorf("parse dump: %w", err)
	}

	cfg, err := config.Load()
	if err != nil {
		return err
	}
	store := memory.New(memory.Config{BaseDir: cfg.MemoryDir, ShardingEnabled: true}, nil)
	if err := store.LoadDump(entries); err != nil {
		return fmt.Errorf("load_dump: %w", err)
	}
	fmt.Printf("loaded %d entries\n", len(entries))
	return nil
}
