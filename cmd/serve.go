package main

import (
	srv "github.com/mohammad-safakhou/ragrouter/internal/server"
	"github.com/spf13/cobra"
)

func (a *app) serveCMD() *cobra.Command {
	var addr string
	serve := &cobra.Command{
		Use:   "serve",
		Short: "Run HTTP API server",
		RunE: func(cmd *cobra.Command, args []string) error {
			if addr != "" {
				a.cfg.Server.Address = addr
			}
			return srv.Run(cmd.Context(), a.cfg, a.logger)
		},
	}
	serve.Flags().StringVar(&addr, "addr", "", "listen address (overrides server.address)")
	return serve
}
