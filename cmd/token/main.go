package main

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/noah-isme/discussion-api/internal/models"
	"github.com/noah-isme/discussion-api/internal/service"
	"github.com/noah-isme/discussion-api/pkg/config"
)

type tokenIssuer interface {
	IssueToken(actor models.Actor, name string) (string, time.Time, error)
}

func main() {
	if err := newRootCmd(loadIssuer).Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func loadIssuer() (tokenIssuer, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	if cfg.Env == config.EnvProduction {
		return nil, fmt.Errorf("refusing to issue development tokens with ENV=%s", cfg.Env)
	}
	return service.NewAuthService(nil, service.AuthConfig{
		AccessTokenSecret: cfg.JWT.Secret,
		AccessTokenExpiry: cfg.JWT.Expiration,
		Issuer:            cfg.JWT.Issuer,
	}), nil
}

func newRootCmd(load func() (tokenIssuer, error)) *cobra.Command {
	root := &cobra.Command{
		Use:           "token",
		Short:         "Issue bearer tokens for local development",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.AddCommand(issueCmd(load))
	return root
}

func issueCmd(load func() (tokenIssuer, error)) *cobra.Command {
	var (
		userID     string
		capability string
		name       string
	)
	cmd := &cobra.Command{
		Use:   "issue",
		Short: "Sign an access token for a user and capability",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			parsed := models.ParseCapability(capability)
			if string(parsed) != capability {
				return fmt.Errorf("unknown capability %q (want moderator, student or other)", capability)
			}
			issuer, err := load()
			if err != nil {
				return err
			}
			token, expiresAt, err := issuer.IssueToken(models.Actor{ID: userID, Capability: parsed}, name)
			if err != nil {
				return err
			}
			cmd.Println(token)
			cmd.PrintErrf("expires %s\n", expiresAt.Format(time.RFC3339))
			return nil
		},
	}
	cmd.Flags().StringVar(&userID, "user", "", "user id carried in the token")
	cmd.Flags().StringVar(&capability, "capability", string(models.CapabilityStudent), "capability tag")
	cmd.Flags().StringVar(&name, "name", "", "display name")
	_ = cmd.MarkFlagRequired("user")
	return cmd
}
