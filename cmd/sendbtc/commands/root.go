package commands

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/congo-pay/sendbtc/internal/apiclient"
	"github.com/congo-pay/sendbtc/internal/logging"
)

type options struct {
	apiURL  string
	token   string
	timeout time.Duration
	verbose bool

	client *apiclient.Client
}

// Execute runs the CLI with os.Args.
func Execute() error {
	return NewRoot().Execute()
}

// NewRoot builds the command tree.
func NewRoot() *cobra.Command {
	opts := &options{}
	root := &cobra.Command{
		Use:           "sendbtc",
		Short:         "Prepare and submit bitcoin payments",
		SilenceUsage:  true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if opts.apiURL == "" {
				opts.apiURL = envOr("SENDBTC_API", "http://127.0.0.1:8080")
			}
			if opts.token == "" {
				opts.token = os.Getenv("SENDBTC_TOKEN")
			}
			opts.client = apiclient.New(opts.apiURL, opts.token, opts.timeout)
			if opts.verbose {
				opts.client.Logger = logging.NewText(cmd.ErrOrStderr(), "debug")
			}
			return nil
		},
	}

	root.PersistentFlags().StringVar(&opts.apiURL, "api", "", "API base URL (default $SENDBTC_API or http://127.0.0.1:8080)")
	root.PersistentFlags().StringVar(&opts.token, "token", "", "bearer token (default $SENDBTC_TOKEN)")
	root.PersistentFlags().DurationVar(&opts.timeout, "timeout", 45*time.Second, "request timeout")
	root.PersistentFlags().BoolVarP(&opts.verbose, "verbose", "v", false, "log API calls to stderr")

	root.AddCommand(
		quoteCmd(opts),
		submitCmd(opts),
		sendCmd(opts),
		statusCmd(opts),
		historyCmd(opts),
		balanceCmd(opts),
		recipientCmd(opts),
		tokenCmd(),
		hashPINCmd(),
	)
	return root
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func printJSON(w io.Writer, raw []byte) error {
	var buf bytes.Buffer
	if err := json.Indent(&buf, raw, "", "  "); err != nil {
		_, err = fmt.Fprintln(w, string(raw))
		return err
	}
	_, err := fmt.Fprintln(w, buf.String())
	return err
}
