package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"todo-assistant/internal/repository"
	"todo-assistant/internal/service"
)

func newSessionsCommand(configPath *string) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "sessions",
		Short: "Manage chat sessions",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "sweep",
		Short: "Deactivate expired chat sessions once",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, log, db, err := bootstrap(*configPath)
			if err != nil {
				return err
			}
			if sqlDB, err := db.DB(); err == nil {
				defer sqlDB.Close()
			}

			sessions := service.NewSessionService(repository.NewSessionRepository(db), cfg.SessionTTL, log)
			n, err := sessions.SweepExpired(cmd.Context())
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "deactivated %d expired session(s)\n", n)
			return nil
		},
	})
	return cmd
}
