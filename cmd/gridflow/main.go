// Command gridflow validates, exports, and inspects tabular workflow
// declarations without running them.
//
// Usage:
//
//	gridflow validate --sheet workflow.csv          # parse and validate
//	gridflow export --sheet workflow.csv --graph g  # print a graph snapshot
//	gridflow route --prompt "..." [--task-type t]   # preview a routing decision
//	gridflow version
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/gridflow/gridflow/llm"
	"github.com/gridflow/gridflow/workflow"
)

var (
	Version   = "dev"
	BuildTime = "unknown"
	GitCommit = "unknown"
)

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	var err error
	switch os.Args[1] {
	case "validate":
		err = runValidate(os.Args[2:])
	case "export":
		err = runExport(os.Args[2:])
	case "route":
		err = runRoute(os.Args[2:])
	case "version":
		fmt.Printf("gridflow %s (built %s, commit %s)\n", Version, BuildTime, GitCommit)
	case "help", "-h", "--help":
		printUsage()
	default:
		fmt.Fprintf(os.Stderr, "unknown command: %s\n\n", os.Args[1])
		printUsage()
		os.Exit(1)
	}

	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func printUsage() {
	fmt.Print(`gridflow - tabular workflow toolchain

Commands:
  validate   Parse a workflow sheet and report declaration problems
  export     Print a validated graph as a YAML or JSON snapshot
  route      Preview the model routing decision for a prompt
  version    Show version information

Run "gridflow <command> -h" for command flags.
`)
}

func runValidate(args []string) error {
	fs := flag.NewFlagSet("validate", flag.ExitOnError)
	sheetPath := fs.String("sheet", "", "path to the workflow CSV sheet")
	verbose := fs.Bool("verbose", false, "enable debug logging")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *sheetPath == "" {
		return fmt.Errorf("--sheet is required")
	}

	logger := newLogger(*verbose)
	defer logger.Sync()

	sheet, err := workflow.ParseCSVFile(*sheetPath)
	if err != nil {
		return err
	}

	set, warnings, err := workflow.NewBuilder(workflow.BuilderOptions{Logger: logger}).Build(sheet)
	if err != nil {
		return err
	}

	for _, w := range warnings {
		fmt.Printf("warning: %v\n", w)
	}
	for _, name := range sheet.GraphNames() {
		graph := set[name]
		fmt.Printf("graph %s: %d nodes, entry %s\n", name, graph.Len(), graph.Entry())
	}
	return nil
}

func runExport(args []string) error {
	fs := flag.NewFlagSet("export", flag.ExitOnError)
	sheetPath := fs.String("sheet", "", "path to the workflow CSV sheet")
	graphName := fs.String("graph", "", "graph to export (default: first on the sheet)")
	format := fs.String("format", "yaml", "output format: yaml or json")
	outPath := fs.String("out", "", "output file (default: stdout)")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *sheetPath == "" {
		return fmt.Errorf("--sheet is required")
	}

	sheet, err := workflow.ParseCSVFile(*sheetPath)
	if err != nil {
		return err
	}
	set, _, err := workflow.NewBuilder(workflow.BuilderOptions{}).Build(sheet)
	if err != nil {
		return err
	}

	name := *graphName
	if name == "" {
		names := sheet.GraphNames()
		if len(names) == 0 {
			return fmt.Errorf("sheet declares no graphs")
		}
		name = names[0]
	}
	graph, ok := set.Graph(name)
	if !ok {
		return fmt.Errorf("graph %q is not on the sheet", name)
	}

	var text string
	switch *format {
	case "yaml":
		text, err = graph.Definition().ToYAML()
	case "json":
		text, err = graph.Definition().ToJSON()
	default:
		return fmt.Errorf("unsupported format: %s", *format)
	}
	if err != nil {
		return err
	}

	if *outPath == "" {
		fmt.Print(text)
		return nil
	}
	return os.WriteFile(*outPath, []byte(text), 0o644)
}

func runRoute(args []string) error {
	fs := flag.NewFlagSet("route", flag.ExitOnError)
	prompt := fs.String("prompt", "", "prompt text to score")
	taskType := fs.String("task-type", "general", "task type for keyword scoring")
	contextSize := fs.Int("context-size", 0, "context size (prior turns or input fields)")
	configPath := fs.String("config", "", "router config file (default: built-in defaults)")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *prompt == "" {
		return fmt.Errorf("--prompt is required")
	}

	cfg := llm.DefaultRouterConfig()
	if *configPath != "" {
		var err error
		cfg, err = llm.LoadRouterConfig(*configPath)
		if err != nil {
			return err
		}
	}

	router := llm.NewRouter(cfg, llm.RouterOptions{})
	decision, err := router.Route(context.Background(), llm.TaskProfile{
		TaskType:    *taskType,
		Prompt:      *prompt,
		ContextSize: *contextSize,
	})
	if err != nil {
		return err
	}

	out, err := json.MarshalIndent(decision, "", "  ")
	if err != nil {
		return err
	}
	fmt.Println(string(out))
	return nil
}

func newLogger(verbose bool) *zap.Logger {
	cfg := zap.NewProductionConfig()
	cfg.Encoding = "console"
	cfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	if verbose {
		cfg.Level = zap.NewAtomicLevelAt(zapcore.DebugLevel)
	}
	logger, err := cfg.Build()
	if err != nil {
		return zap.NewNop()
	}
	return logger
}
