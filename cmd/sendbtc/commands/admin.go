package commands

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/congo-pay/sendbtc/internal/auth"
)

// token issues an HS256 access token signed with the server's JWT_SECRET.
func tokenCmd() *cobra.Command {
	var (
		account string
		secret  string
		ttl     time.Duration
	)
	cmd := &cobra.Command{
		Use:   "token",
		Short: "Issue an access token for an account",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if secret == "" {
				secret = os.Getenv("JWT_SECRET")
			}
			if secret == "" {
				return fmt.Errorf("secret required (--secret or JWT_SECRET)")
			}
			token, err := auth.IssueAccessToken(account, ttl, []byte(secret))
			if err != nil {
				return err
			}
			_, err = fmt.Fprintln(cmd.OutOrStdout(), token)
			return err
		},
	}
	cmd.Flags().StringVar(&account, "account", "", "account id placed in the sub claim")
	cmd.Flags().StringVar(&secret, "secret", "", "signing secret (default $JWT_SECRET)")
	cmd.Flags().DurationVar(&ttl, "ttl", time.Hour, "token lifetime")
	_ = cmd.MarkFlagRequired("account")
	return cmd
}

func hashPINCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "hash-pin <pin>",
		Short: "Print the bcrypt hash to use as SPENDING_PIN_HASH",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			hash, err := auth.HashPIN(args[0])
			if err != nil {
				return err
			}
			_, err = fmt.Fprintln(cmd.OutOrStdout(), hash)
			return err
		},
	}
}
