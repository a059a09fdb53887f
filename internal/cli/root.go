// Package cli implements the glicoflow command-line client on cobra.
package cli

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/sakif/glicoflow/internal/client"
)

// app is the state shared by every subcommand.
type app struct {
	serverURL string
	tokenPath string
	in        *bufio.Reader
}

// NewRootCmd builds the command tree.
func NewRootCmd(version, buildDate string) *cobra.Command {
	a := &app{}

	defaultServer := client.DefaultBaseURL
	if v, ok := os.LookupEnv("GLICOFLOW_SERVER"); ok && v != "" {
		defaultServer = v
	}

	root := &cobra.Command{
		Use:           "glicoflow",
		Short:         "Track blood glucose readings from the terminal",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			a.in = bufio.NewReader(cmd.InOrStdin())
			if a.tokenPath == "" {
				p, err := client.DefaultTokenPath()
				if err != nil {
					return err
				}
				a.tokenPath = p
			}
			return nil
		},
	}
	root.PersistentFlags().StringVar(&a.serverURL, "server", defaultServer, "server base URL (env GLICOFLOW_SERVER)")
	root.PersistentFlags().StringVar(&a.tokenPath, "token-file", "", "session token file (default ~/.glicoflow_token)")

	root.AddCommand(
		newVersionCmd(version, buildDate),
		a.newRegisterCmd(),
		a.newLoginCmd(),
		a.newLogoutCmd(),
		a.newWhoamiCmd(),
		a.newAddCmd(),
		a.newListCmd(),
		a.newStatsCmd(),
		a.newDailyCmd(),
		a.newReportCmd(),
	)
	return root
}

func newVersionCmd(version, buildDate string) *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Show version info",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "glicoflow %s (%s)\n", version, buildDate)
		},
	}
}

// anonClient is for commands that need no session.
func (a *app) anonClient() *client.Client {
	return client.New(a.serverURL)
}

// authedClient loads the stored session.
func (a *app) authedClient() (*client.Client, error) {
	tok, err := client.LoadToken(a.tokenPath)
	if err != nil {
		if errors.Is(err, client.ErrNoToken) {
			return nil, errors.New("not logged in: run `glicoflow login` first")
		}
		return nil, err
	}
	return client.New(a.serverURL, client.WithToken(tok)), nil
}

// prompt prints label and reads one trimmed line.
func (a *app) prompt(cmd *cobra.Command, label string) (string, error) {
	fmt.Fprint(cmd.OutOrStdout(), label)
	line, err := a.in.ReadString('\n')
	if err != nil && !(errors.Is(err, io.EOF) && line != "") {
		return "", fmt.Errorf("reading %s: %w", strings.TrimSuffix(strings.TrimSpace(label), ":"), err)
	}
	return strings.TrimSpace(line), nil
}

// promptPassword reads a password without echo when stdin is a terminal,
// and as a plain line otherwise (pipes, tests).
func (a *app) promptPassword(cmd *cobra.Command, label string) (string, error) {
	if f, ok := cmd.InOrStdin().(*os.File); ok && term.IsTerminal(int(f.Fd())) {
		fmt.Fprint(cmd.OutOrStdout(), label)
		pass, err := term.ReadPassword(int(f.Fd()))
		fmt.Fprintln(cmd.OutOrStdout())
		if err != nil {
			return "", fmt.Errorf("reading password: %w", err)
		}
		return string(pass), nil
	}
	line, err := a.prompt(cmd, label)
	if err != nil {
		return "", err
	}
	return line, nil
}

// stringArgOrPrompt returns args[0] if present, else prompts for it.
func (a *app) stringArgOrPrompt(cmd *cobra.Command, args []string, label string) (string, error) {
	if len(args) > 0 {
		return args[0], nil
	}
	return a.prompt(cmd, label)
}

func commandContext(cmd *cobra.Command) context.Context {
	if ctx := cmd.Context(); ctx != nil {
		return ctx
	}
	return context.Background()
}
