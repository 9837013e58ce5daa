package main

import (
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"telegram-order-bot/internal/manifest"
)

const defaultManifest = "render.yaml"

var (
	green  = color.New(color.FgGreen)
	red    = color.New(color.FgRed)
	yellow = color.New(color.FgYellow)
	bold   = color.New(color.Bold)
)

// errProblems is returned after the problems were already printed, so cobra
// only sets the exit code.
var errProblems = errors.New("manifest has problems")

type lookupFunc func(string) (string, bool)

func newRootCmd(out, errOut io.Writer, lookup lookupFunc) *cobra.Command {
	root := &cobra.Command{
		Use:   "manifestctl",
		Short: "Lint the deployment manifest",
		Long: `manifestctl checks render.yaml before it reaches the hosting platform.

COMMANDS
  validate [file]                  Parse and lint the manifest
  env [file] --service NAME        List declared variables missing from the environment`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.SetOut(out)
	root.SetErr(errOut)
	root.AddCommand(newValidateCmd(), newEnvCmd(lookup))
	return root
}

func manifestPath(args []string) string {
	if len(args) > 0 {
		return args[0]
	}
	return defaultManifest
}

func newValidateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "validate [file]",
		Short: "Parse and lint the manifest",
		Long: `Parse the manifest and report every problem found:
  - malformed YAML and duplicate keys (with line numbers)
  - missing required service fields, unknown types and runtimes
  - env vars without exactly one value source, duplicate env keys

Examples:
  manifestctl validate
  manifestctl validate deploy/render.yaml`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			path := manifestPath(args)
			m, err := manifest.Load(path)
			if err == nil {
				err = m.Validate()
			}
			if err != nil {
				printProblems(cmd.ErrOrStderr(), path, err)
				return errProblems
			}
			green.Fprintf(cmd.OutOrStdout(), "✓ %s is valid (%d service(s), %d group(s))\n", path, len(m.Services), len(m.EnvVarGroups))
			return nil
		},
	}
}

func newEnvCmd(lookup lookupFunc) *cobra.Command {
	var service string
	cmd := &cobra.Command{
		Use:   "env [file]",
		Short: "List declared variables missing from the environment",
		Long: `Compare the variables a service declares (including those imported
from env var groups) with the current process environment.

Examples:
  manifestctl env --service telegram-order-bot
  TELEGRAM_BOT_TOKEN=x manifestctl env render.yaml -s telegram-order-bot`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			path := manifestPath(args)
			m, err := manifest.Load(path)
			if err != nil {
				printProblems(cmd.ErrOrStderr(), path, err)
				return errProblems
			}
			if service == "" {
				if len(m.Services) != 1 {
					return errors.New("--service is required when the manifest declares several services")
				}
				service = m.Services[0].Name
			}
			missing, err := m.CheckEnv(service, lookup)
			if err != nil {
				return err
			}
			w := cmd.OutOrStdout()
			if len(missing) == 0 {
				green.Fprintf(w, "✓ all variables of %s are set\n", service)
				return nil
			}
			bold.Fprintf(w, "%s: %d variable(s) missing\n", service, len(missing))
			for _, k := range missing {
				yellow.Fprintf(w, "  ⚠ %s\n", k)
			}
			return errProblems
		},
	}
	cmd.Flags().StringVarP(&service, "service", "s", "", "Service name from the manifest")
	return cmd
}

func printProblems(w io.Writer, path string, err error) {
	bold.Fprintf(w, "%s:\n", path)
	for _, line := range strings.Split(err.Error(), "\n") {
		if line = strings.TrimSpace(line); line != "" {
			red.Fprintf(w, "  ✗ %s\n", line)
		}
	}
	_, _ = fmt.Fprintln(w)
}
