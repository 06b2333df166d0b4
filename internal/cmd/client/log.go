// Package client contains Cobra CLI commands for ledger.
package client

import (
	"bufio"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/spf13/cobra"

	"github.com/rzbill/ledger/internal/notification"
)

// NewLogCommand constructs the `log` command group and subcommands.
func NewLogCommand(baseURL BaseURLFunc) *cobra.Command {
	logCmd := &cobra.Command{Use: "log", Short: "Log operations"}

	logCmd.AddCommand(
		newLogCreateCommand(baseURL),
		newLogListCommand(baseURL),
		newLogAppendCommand(baseURL),
		newLogSectionCommand(baseURL),
		newLogReadCommand(baseURL),
		newLogFollowCommand(baseURL),
	)

	return logCmd
}

// newLogCreateCommand constructs the `log create` subcommand.
func newLogCreateCommand(baseURL BaseURLFunc) *cobra.Command {
	createCmd := &cobra.Command{
		Use:   "create",
		Short: "Create a log",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ns, _ := cmd.Flags().GetString("namespace")
			name, _ := cmd.Flags().GetString("name")
			backing, _ := cmd.Flags().GetString("backing")
			arraySize, _ := cmd.Flags().GetUint64("array-size")
			sectionSize, _ := cmd.Flags().GetUint64("section-size")
			if name == "" {
				return fmt.Errorf("log name is required")
			}
			var out map[string]any
			if err := postJSON(baseURL()+"/v1/logs/create", map[string]any{
				"namespace": ns, "log": name, "backing": backing,
				"arraySize": arraySize, "sectionSize": sectionSize,
			}, &out); err != nil {
				return err
			}
			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(out)
		},
	}
	createCmd.Flags().StringP("namespace", "n", "default", "Namespace")
	createCmd.Flags().String("name", "", "Log name")
	createCmd.Flags().String("backing", "bigarray", "Backing: bigarray|sequence")
	createCmd.Flags().Uint64("array-size", 0, "Partition capacity (0 = server default)")
	createCmd.Flags().Uint64("section-size", 0, "Notification page size (0 = server default)")
	return createCmd
}

// newLogListCommand constructs the `log list` subcommand.
func newLogListCommand(baseURL BaseURLFunc) *cobra.Command {
	listCmd := &cobra.Command{
		Use:   "list",
		Short: "List logs in a namespace",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ns, _ := cmd.Flags().GetString("namespace")
			var out map[string]any
			if err := getJSON(baseURL()+"/v1/logs/list?namespace="+url.QueryEscape(ns), &out); err != nil {
				return err
			}
			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(out)
		},
	}
	listCmd.Flags().StringP("namespace", "n", "default", "Namespace")
	return listCmd
}

// newLogAppendCommand constructs the `log append` subcommand.
func newLogAppendCommand(baseURL BaseURLFunc) *cobra.Command {
	appendCmd := &cobra.Command{
		Use:   "append",
		Short: "Append an item to a log",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ns, _ := cmd.Flags().GetString("namespace")
			logName, _ := cmd.Flags().GetString("log")
			topic, _ := cmd.Flags().GetString("topic")
			data, _ := cmd.Flags().GetString("data")
			position, _ := cmd.Flags().GetInt64("position")

			body := map[string]any{
				"namespace": ns, "log": logName, "topic": topic, "data": []byte(data),
			}
			if position >= 0 {
				body["position"] = position
			}
			var out struct {
				Position uint64 `json:"position"`
			}
			if err := postJSON(baseURL()+"/v1/logs/append", body, &out); err != nil {
				return err
			}
			_, _ = fmt.Fprintf(cmd.OutOrStdout(), "position: %d\n", out.Position)
			return nil
		},
	}
	appendCmd.Flags().StringP("namespace", "n", "default", "Namespace")
	appendCmd.Flags().String("log", "", "Log name")
	appendCmd.Flags().String("topic", "", "Item topic")
	appendCmd.Flags().String("data", "", "Payload data")
	appendCmd.Flags().Int64("position", -1, "Exact position for a conditional write (-1 = next)")
	return appendCmd
}

// newLogSectionCommand constructs the `log section` subcommand.
func newLogSectionCommand(baseURL BaseURLFunc) *cobra.Command {
	sectionCmd := &cobra.Command{
		Use:   "section",
		Short: "Fetch one section of a log",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ns, _ := cmd.Flags().GetString("namespace")
			logName, _ := cmd.Flags().GetString("log")
			id, _ := cmd.Flags().GetString("id")
			u := fmt.Sprintf("%s/v1/logs/section?namespace=%s&log=%s&id=%s",
				baseURL(), url.QueryEscape(ns), url.QueryEscape(logName), url.QueryEscape(id))
			var sec notification.Section
			if err := getJSON(u, &sec); err != nil {
				return err
			}
			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(sec)
		},
	}
	sectionCmd.Flags().StringP("namespace", "n", "default", "Namespace")
	sectionCmd.Flags().String("log", "", "Log name")
	sectionCmd.Flags().String("id", notification.CurrentID, "Section id (\"first,last\" or \"current\")")
	return sectionCmd
}

// newLogReadCommand constructs the `log read` subcommand. It walks the linked
// sections with a resumable reader, the same way a remote consumer would.
func newLogReadCommand(baseURL BaseURLFunc) *cobra.Command {
	readCmd := &cobra.Command{
		Use:   "read",
		Short: "Read all notifications after a position",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ns, _ := cmd.Flags().GetString("namespace")
			logName, _ := cmd.Flags().GetString("log")
			from, _ := cmd.Flags().GetUint64("from")
			skipGaps, _ := cmd.Flags().GetBool("skip-gaps")

			remote := notification.NewRemoteLog(baseURL(), ns, logName, nil)
			opts := []notification.ReaderOption{notification.WithPosition(from)}
			if skipGaps {
				opts = append(opts, notification.WithSkipGaps())
			}
			reader := notification.NewReader(remote, opts...)
			items, err := reader.Read(cmd.Context())
			if err != nil {
				return err
			}
			enc := json.NewEncoder(cmd.OutOrStdout())
			for _, n := range items {
				_ = enc.Encode(n)
			}
			_, _ = fmt.Fprintf(cmd.OutOrStdout(), "position: %d\n", reader.Position())
			return nil
		},
	}
	readCmd.Flags().StringP("namespace", "n", "default", "Namespace")
	readCmd.Flags().String("log", "", "Log name")
	readCmd.Flags().Uint64("from", 0, "Resume after this notification id")
	readCmd.Flags().Bool("skip-gaps", false, "Drop gap placeholders instead of printing null")
	return readCmd
}

// newLogFollowCommand constructs the `log follow` subcommand.
func newLogFollowCommand(baseURL BaseURLFunc) *cobra.Command {
	followCmd := &cobra.Command{
		Use:   "follow",
		Short: "Tail a log over SSE",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ns, _ := cmd.Flags().GetString("namespace")
			logName, _ := cmd.Flags().GetString("log")
			from, _ := cmd.Flags().GetUint64("from")
			filter, _ := cmd.Flags().GetString("filter")

			u := fmt.Sprintf("%s/v1/logs/follow?namespace=%s&log=%s&from=%d&filter=%s",
				baseURL(), url.QueryEscape(ns), url.QueryEscape(logName), from, url.QueryEscape(filter))
			req, err := http.NewRequestWithContext(cmd.Context(), http.MethodGet, u, nil)
			if err != nil {
				return err
			}
			resp, err := http.DefaultClient.Do(req)
			if err != nil {
				return err
			}
			defer resp.Body.Close()
			if resp.StatusCode >= 300 {
				return httpError(resp)
			}

			out := cmd.OutOrStdout()
			scanner := bufio.NewScanner(resp.Body)
			for scanner.Scan() {
				line := scanner.Text()
				if strings.HasPrefix(line, "data: ") {
					_, _ = fmt.Fprintln(out, strings.TrimPrefix(line, "data: "))
				}
			}
			if err := scanner.Err(); err != nil && cmd.Context().Err() == nil {
				return err
			}
			return nil
		},
	}
	followCmd.Flags().StringP("namespace", "n", "default", "Namespace")
	followCmd.Flags().String("log", "", "Log name")
	followCmd.Flags().Uint64("from", 0, "Resume after this notification id")
	followCmd.Flags().String("filter", "", "CEL filter (server-side)")
	return followCmd
}
