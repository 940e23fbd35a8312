package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/urfave/cli/v3"

	"github.com/kbukum/taskflow/engine"
	"github.com/kbukum/taskflow/graph"
)

func runCommand() *cli.Command {
	return &cli.Command{
		Name:      "run",
		Usage:     "Execute a task graph and print the result as JSON",
		ArgsUsage: "GRAPH (a .json/.yaml file, or - for stdin)",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "scheduler",
				Aliases: []string{"s"},
				Usage:   "multithreading, multiprocessing, cluster or a Redis address (default: sequential)",
				Sources: cli.EnvVars("TASKFLOW_SCHEDULER"),
			},
			&cli.StringSliceFlag{Name: "option", Aliases: []string{"o"}, Usage: "Scheduler option key=value"},
			&cli.StringSliceFlag{Name: "output", Usage: "Requested output id[:name[:new_name]], * for every node"},
			&cli.BoolFlag{Name: "no-merge", Usage: "Keep one result bucket per node id"},
			&cli.StringSliceFlag{Name: "input", Aliases: []string{"i"}, Usage: "Input [node:]name=value"},
			&cli.StringSliceFlag{Name: "varinfo", Usage: "Variable info key=value"},
			&cli.StringFlag{Name: "job-id", Usage: "Job id reported in events (default: random)"},
			&cli.StringFlag{Name: "representation", Usage: "Graph representation: json or yaml (default: detected)"},
		},
		Action: runGraph,
	}
}

func runGraph(ctx context.Context, cmd *cli.Command) error {
	if cmd.Args().Len() != 1 {
		return fmt.Errorf("run expects exactly one graph argument")
	}
	cfg, log, flush, err := setup(ctx, cmd)
	if err != nil {
		return err
	}
	defer flush()

	src, err := graphSource(cmd.Args().First(), cmd.String("representation"), cmd.Root().Reader)
	if err != nil {
		return err
	}
	outputs, err := parseOutputs(cmd.StringSlice("output"))
	if err != nil {
		return err
	}
	inputs, err := parseInputs(cmd.StringSlice("input"))
	if err != nil {
		return err
	}
	varinfo, err := parseKeyValues("varinfo", cmd.StringSlice("varinfo"))
	if err != nil {
		return err
	}

	scheduler, schedulerOptions := cfg.Scheduler.Name, cfg.Scheduler.Options
	if cmd.IsSet("scheduler") {
		scheduler, schedulerOptions = cmd.String("scheduler"), nil
	}
	flagOptions, err := parseKeyValues("option", cmd.StringSlice("option"))
	if err != nil {
		return err
	}
	if len(flagOptions) > 0 {
		merged := make(map[string]any, len(schedulerOptions)+len(flagOptions))
		for k, v := range schedulerOptions {
			merged[k] = v
		}
		for k, v := range flagOptions {
			merged[k] = v
		}
		schedulerOptions = merged
	}

	var execinfo map[string]any
	if id := cmd.String("job-id"); id != "" {
		execinfo = map[string]any{"job_id": id}
	}

	result, err := engine.Execute(ctx, src,
		engine.WithLogger(log),
		engine.WithLoadOptions(graph.LoadOptions{Representation: cmd.String("representation")}),
		engine.WithInputs(inputs...),
		engine.WithOutputs(outputs...),
		engine.WithMergeOutputs(!cmd.Bool("no-merge")),
		engine.WithVarInfo(varinfo),
		engine.WithExecInfo(execinfo),
		engine.WithScheduler(scheduler),
		engine.WithSchedulerOptions(schedulerOptions),
	)
	if err != nil {
		return err
	}

	enc := json.NewEncoder(cmd.Root().Writer)
	enc.SetIndent("", "  ")
	return enc.Encode(result)
}

func graphSource(arg, representation string, stdin io.Reader) (graph.Source, error) {
	if arg != "-" {
		return graph.File(arg), nil
	}
	if stdin == nil {
		stdin = os.Stdin
	}
	data, err := io.ReadAll(stdin)
	if err != nil {
		return nil, fmt.Errorf("read graph from stdin: %w", err)
	}
	return graph.Bytes(data, representation), nil
}
