package client

import (
	"encoding/json"
	"fmt"
	"net/url"

	"github.com/spf13/cobra"
)

// NewPositionsCommand constructs the `positions` command group.
func NewPositionsCommand(baseURL BaseURLFunc) *cobra.Command {
	posCmd := &cobra.Command{Use: "positions", Short: "Durable reader positions"}
	posCmd.AddCommand(newPositionsCommitCommand(baseURL), newPositionsGetCommand(baseURL))
	return posCmd
}

// newPositionsCommitCommand constructs the `positions commit` subcommand.
func newPositionsCommitCommand(baseURL BaseURLFunc) *cobra.Command {
	commitCmd := &cobra.Command{
		Use:   "commit",
		Short: "Commit a group's consumed position",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ns, _ := cmd.Flags().GetString("namespace")
			logName, _ := cmd.Flags().GetString("log")
			group, _ := cmd.Flags().GetString("group")
			position, _ := cmd.Flags().GetUint64("position")
			if err := postJSON(baseURL()+"/v1/positions/commit", map[string]any{
				"namespace": ns, "log": logName, "group": group, "position": position,
			}, nil); err != nil {
				return err
			}
			_, _ = fmt.Fprintln(cmd.OutOrStdout(), "status:", "OK")
			return nil
		},
	}
	commitCmd.Flags().StringP("namespace", "n", "default", "Namespace")
	commitCmd.Flags().String("log", "", "Log name")
	commitCmd.Flags().String("group", "", "Consumer group")
	commitCmd.Flags().Uint64("position", 0, "Consumed count to commit")
	return commitCmd
}

// newPositionsGetCommand constructs the `positions get` subcommand.
func newPositionsGetCommand(baseURL BaseURLFunc) *cobra.Command {
	getCmd := &cobra.Command{
		Use:   "get",
		Short: "Get a group's stored position",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ns, _ := cmd.Flags().GetString("namespace")
			logName, _ := cmd.Flags().GetString("log")
			group, _ := cmd.Flags().GetString("group")
			u := fmt.Sprintf("%s/v1/positions?namespace=%s&log=%s&group=%s",
				baseURL(), url.QueryEscape(ns), url.QueryEscape(logName), url.QueryEscape(group))
			var out map[string]any
			if err := getJSON(u, &out); err != nil {
				return err
			}
			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(out)
		},
	}
	getCmd.Flags().StringP("namespace", "n", "default", "Namespace")
	getCmd.Flags().String("log", "", "Log name")
	getCmd.Flags().String("group", "", "Consumer group")
	return getCmd
}
