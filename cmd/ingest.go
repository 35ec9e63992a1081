package main

import (
	"fmt"

	"github.com/mohammad-safakhou/ragrouter/internal/agent/core"
	"github.com/mohammad-safakhou/ragrouter/knowledge/ingest"
	"github.com/mohammad-safakhou/ragrouter/provider"
	"github.com/mohammad-safakhou/ragrouter/tools/web_fetch"
	"github.com/spf13/cobra"
)

func (a *app) ingestCMD() *cobra.Command {
	ingestCmd := &cobra.Command{
		Use:   "ingest [file|url]...",
		Short: "Chunk and index local files or fetched pages into the knowledge base",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			var llm provider.Provider
			if a.cfg.Knowledge.UseVectors {
				p, err := core.NewLLMProvider(a.cfg.LLM, a.logger)
				if err != nil {
					return err
				}
				llm = p
			}
			store, err := core.NewKnowledgeStore(a.cfg.Knowledge, llm, a.logger)
			if err != nil {
				return err
			}
			defer store.Close()
			fetcher, err := web_fetch.NewWebFetcher(a.cfg.Tools.WebFetch, 0)
			if err != nil {
				return err
			}

			docs, skipped := ingest.Collect(ctx, args, core.NewAttachmentParser(a.cfg, 0, a.logger), fetcher, a.logger)
			for _, s := range skipped {
				fmt.Fprintln(cmd.ErrOrStderr(), "skipped:", s)
			}
			if len(docs) == 0 {
				return fmt.Errorf("nothing to ingest")
			}
			resp, err := store.Ingest(ctx, docs)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "indexed %d documents, %d chunks, %d vectors\n", resp.Documents, resp.Chunks, resp.Vectors)
			return nil
		},
	}
	return ingestCmd
}
