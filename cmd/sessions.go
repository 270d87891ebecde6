package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/tablescout/tablescout/internal/model"
)

var sessionsCmd = &cobra.Command{
	Use:   "sessions",
	Short: "Inspect and refresh platform login sessions",
}

var sessionsStatusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show login state for every platform",
	RunE: func(cmd *cobra.Command, args []string) error {
		env, err := initApp(cmd.Context())
		if err != nil {
			return err
		}
		defer env.Close()

		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(env.Sessions.Status())
	},
}

var sessionsLoginCmd = &cobra.Command{
	Use:   "login <platform>",
	Short: "Log in to a platform, reusing the session if still fresh",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		platform, err := parsePlatform(args[0])
		if err != nil {
			return err
		}

		env, err := initApp(cmd.Context())
		if err != nil {
			return err
		}
		defer env.Close()

		sess, release, err := env.Sessions.Acquire(cmd.Context(), platform)
		if err != nil {
			cmd.SilenceUsage = true
			return eris.Wrapf(err, "login %s", platform)
		}
		release()

		fmt.Fprintf(os.Stdout, "%s: logged in (last login %s)\n",
			platform, sess.LastLoginAt.Format("2006-01-02 15:04:05"))
		return nil
	},
}

func parsePlatform(raw string) (model.Platform, error) {
	for _, p := range model.AllPlatforms {
		if string(p) == raw {
			return p, nil
		}
	}
	return "", eris.Errorf("unknown platform %q", raw)
}

func init() {
	sessionsCmd.AddCommand(sessionsStatusCmd)
	sessionsCmd.AddCommand(sessionsLoginCmd)
	rootCmd.AddCommand(sessionsCmd)
}
