package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/mohammad-safakhou/ragrouter/internal/agent/core"
	"github.com/mohammad-safakhou/ragrouter/internal/agent/telemetry"
	"github.com/spf13/cobra"
)

func (a *app) askCMD() *cobra.Command {
	var (
		asJSON      bool
		strictLocal bool
		fast        bool
		files       []string
		quiet       bool
	)
	ask := &cobra.Command{
		Use:   "ask [question]",
		Short: "Answer one question and print the answer with citations",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			svc, err := core.NewServices(ctx, a.cfg, telemetry.NewTelemetry(a.logger), a.logger)
			if err != nil {
				return err
			}
			defer svc.Close()

			var opts []core.ExecuteOption
			if !quiet && !asJSON {
				opts = append(opts, core.WithProgress(func(stage string) {
					fmt.Fprintln(cmd.ErrOrStderr(), stage)
				}))
			}
			res, err := svc.Orchestrator.Execute(ctx, core.Query{
				Text:        strings.Join(args, " "),
				StrictLocal: strictLocal,
				FastMode:    fast,
				Files:       files,
			}, opts...)
			if errors.Is(err, core.ErrEmptyQuery) {
				return fmt.Errorf("question is empty")
			}
			if err != nil {
				return err
			}
			if asJSON {
				enc := json.NewEncoder(cmd.OutOrStdout())
				enc.SetIndent("", "  ")
				return enc.Encode(res)
			}
			printResult(cmd.OutOrStdout(), res)
			return nil
		},
	}
	ask.Flags().BoolVar(&asJSON, "json", false, "print the full workflow result as JSON")
	ask.Flags().BoolVar(&strictLocal, "strict-local", false, "answer from the local knowledge base only")
	ask.Flags().BoolVar(&fast, "fast", false, "skip web search")
	ask.Flags().StringSliceVarP(&files, "file", "f", nil, "attach a local file (repeatable); bypasses routing")
	ask.Flags().BoolVarP(&quiet, "quiet", "q", false, "do not print progress stages")
	return ask
}

func printResult(w io.Writer, res core.WorkflowResult) {
	fmt.Fprintln(w, res.Answer)
	if len(res.Citations) > 0 {
		fmt.Fprintln(w)
		fmt.Fprintln(w, "Sources:")
		for _, c := range res.Citations {
			fmt.Fprintln(w, "  "+c)
		}
	}
	if len(res.FailedTools) > 0 {
		ids := make([]string, len(res.FailedTools))
		for i, id := range res.FailedTools {
			ids[i] = string(id)
		}
		fmt.Fprintf(w, "\nUnavailable: %s\n", strings.Join(ids, ", "))
	}
	fmt.Fprintf(w, "\n(%d ms, %d context items)\n", res.LatencyMS, res.ContextCount)
}
