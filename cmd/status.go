package main

import (
	"context"
	"fmt"
	"time"

	"github.com/mohammad-safakhou/ragrouter/internal/agent/core"
	"github.com/mohammad-safakhou/ragrouter/repository"
	"github.com/spf13/cobra"
)

func (a *app) statusCMD() *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Check cache, knowledge base and LLM configuration",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := context.WithTimeout(cmd.Context(), 10*time.Second)
			defer cancel()
			out := cmd.OutOrStdout()
			healthy := true
			report := func(name string, err error) {
				if err != nil {
					healthy = false
					fmt.Fprintf(out, "%-10s FAIL  %v\n", name, err)
					return
				}
				fmt.Fprintf(out, "%-10s ok\n", name)
			}

			cache, err := repository.NewCache(ctx, a.cfg.Cache, a.cfg.Storage.Redis, a.logger)
			if err == nil {
				err = cache.Ping(ctx)
				_ = cache.Close()
			}
			report("cache", err)

			store, err := core.NewKnowledgeStore(a.cfg.Knowledge, nil, a.logger)
			if err == nil {
				stats, serr := store.Stats()
				_ = store.Close()
				if serr == nil {
					fmt.Fprintf(out, "%-10s ok    %d chunks, %d vectors\n", "knowledge", stats.Chunks, stats.Vectors)
				} else {
					report("knowledge", serr)
				}
			} else {
				report("knowledge", err)
			}

			_, err = core.NewLLMProvider(a.cfg.LLM, a.logger)
			report("llm", err)

			if !healthy {
				return fmt.Errorf("one or more components are unavailable")
			}
			return nil
		},
	}
}
