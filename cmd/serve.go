package main

import (
	"github.com/spf13/cobra"

	"github.com/MIFUNEKINSKi/cloudclearing/internal/cache"
	"github.com/MIFUNEKINSKi/cloudclearing/internal/config"
	"github.com/MIFUNEKINSKi/cloudclearing/internal/server"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the introspection HTTP server",
	RunE: func(cmd *cobra.Command, _ []string) error {
		static, err := config.LoadStatic(cfg.Regions.File)
		if err != nil {
			return err
		}

		c, err := cache.Open(cfg.Cache.Path, cfg.Cache.TTL)
		if err != nil {
			return err
		}
		defer c.Close()

		st, err := initStore(cmd.Context())
		if err != nil {
			return err
		}
		defer st.Close()

		return server.New(static, st, c).ListenAndServe(cfg.Server.Port)
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)
}
