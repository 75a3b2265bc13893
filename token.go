package main

import (
	"fmt"
	"time"

	"aegisnet/internal/config"
	"aegisnet/internal/middleware"
	"aegisnet/internal/services"

	"github.com/spf13/cobra"
)

// newTokenCommand issues agent tokens offline; there is no HTTP endpoint for it
func newTokenCommand(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "token <agent_id>",
		Short: "Generate a bearer token for an agent",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			agentID := args[0]
			if !middleware.ValidAgentID(agentID) {
				return fmt.Errorf("invalid agent id %q: use letters, digits, '-', '_' or '.'", agentID)
			}

			cfg, err := config.Load(*configPath)
			if err != nil {
				return err
			}
			auth, err := services.NewAuthService(cfg.Auth.Secret, cfg.Auth.TokenExpiry, nil)
			if err != nil {
				return err
			}
			token, expires, err := auth.GenerateToken(agentID)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "agent:   %s\n", agentID)
			fmt.Fprintf(out, "expires: %s\n", expires.Format(time.RFC3339))
			fmt.Fprintf(out, "token:   %s\n", token)
			return nil
		},
	}
}
