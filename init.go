package main

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/phobologic/codescope/internal/config"
)

const configHeader = `# codescope configuration.
# Values here override the built-in defaults; CODESCOPE_* environment
# variables and command-line flags override this file.
`

func newInitCmd() *cobra.Command {
	var dryRun, force bool
	cmd := &cobra.Command{
		Use:   "init [dir]",
		Short: "Write a " + configFileName + " with the default settings",
		Long: `Write a ` + configFileName + ` file holding every recognized option at its
default value. codescope picks the file up automatically when analyzing that
directory. dir defaults to the current directory.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			dir := "."
			if len(args) > 0 {
				dir = args[0]
			}
			return runInit(cmd, dir, dryRun, force)
		},
	}
	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "print the file instead of writing it")
	cmd.Flags().BoolVar(&force, "force", false, "overwrite an existing file")
	return cmd
}

func runInit(cmd *cobra.Command, dir string, dryRun, force bool) error {
	body, err := generateConfig()
	if err != nil {
		return err
	}
	if dryRun {
		_, _ = fmt.Fprint(cmd.OutOrStdout(), body)
		return nil
	}

	path := filepath.Join(dir, configFileName)
	if !force {
		if _, err := os.Stat(path); err == nil {
			return fmt.Errorf("%s already exists (use --force to overwrite)", path)
		} else if !errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("checking %s: %w", path, err)
		}
	}
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		return fmt.Errorf("writing %s: %w", path, err)
	}
	_, _ = fmt.Fprintf(cmd.ErrOrStderr(), "wrote %s\n", path)
	return nil
}

// generateConfig renders the defaults with a short header.
func generateConfig() (string, error) {
	data, err := config.Marshal(config.Default())
	if err != nil {
		return "", err
	}
	return configHeader + string(data), nil
}
