package main

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"
)

var addCmd = &cobra.Command{
	Use:   "add <url>",
	Short: "Enqueue a music URL for download",
	Args:  cobra.ExactArgs(1),
	RunE:  runAdd,
}

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List downloads",
	RunE:  runList,
}

var showCmd = &cobra.Command{
	Use:   "show <id>",
	Short: "Show one download with its media",
	Args:  cobra.ExactArgs(1),
	RunE:  runShow,
}

var logsCmd = &cobra.Command{
	Use:   "logs <id>",
	Short: "Show lifecycle events for a download",
	Args:  cobra.ExactArgs(1),
	RunE:  runLogs,
}

var cancelCmd = &cobra.Command{
	Use:   "cancel <id>",
	Short: "Cancel a pending or running download",
	Args:  cobra.ExactArgs(1),
	RunE:  runCancel,
}

var retryCmd = &cobra.Command{
	Use:   "retry <id>",
	Short: "Re-queue a failed or cancelled download",
	Args:  cobra.ExactArgs(1),
	RunE:  runRetry,
}

var moveCmd = &cobra.Command{
	Use:   "move <id>",
	Short: "Move a completed download to the library",
	Args:  cobra.ExactArgs(1),
	RunE:  runMove,
}

var statsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show queue statistics and worker state",
	RunE:  runStats,
}

func init() {
	rootCmd.AddCommand(addCmd, listCmd, showCmd, logsCmd, cancelCmd, retryCmd, moveCmd, statsCmd)

	listCmd.Flags().StringP("status", "s", "", "Filter by status (pending, in_progress, completed, failed, cancelled)")
	listCmd.Flags().Int("page", 1, "Page number")
	listCmd.Flags().Int("page-size", 20, "Page size (max 100)")

	logsCmd.Flags().Int("page", 1, "Page number")
	logsCmd.Flags().Int("limit", 50, "Entries per page (max 100)")
}

func parseID(arg string) (int64, error) {
	id, err := strconv.ParseInt(arg, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid id %q", arg)
	}
	return id, nil
}

func runAdd(cmd *cobra.Command, args []string) error {
	resp, err := NewClient(serverURL).Enqueue(args[0])
	if err != nil {
		return fmt.Errorf("enqueue failed: %w", err)
	}

	if jsonOutput {
		printJSON(resp)
		return nil
	}
	fmt.Printf("Enqueued download %d (%s)\n", resp.DownloadID, resp.Status)
	return nil
}

func runList(cmd *cobra.Command, args []string) error {
	status, _ := cmd.Flags().GetString("status")
	page, _ := cmd.Flags().GetInt("page")
	pageSize, _ := cmd.Flags().GetInt("page-size")

	resp, err := NewClient(serverURL).Downloads(status, page, pageSize)
	if err != nil {
		return fmt.Errorf("list failed: %w", err)
	}

	if jsonOutput {
		printJSON(resp)
		return nil
	}

	if len(resp.Downloads) == 0 {
		fmt.Println("No downloads")
		return nil
	}

	fmt.Printf("Downloads (%d total):\n\n", resp.Total)
	fmt.Printf("  %-5s %-12s %-9s %s\n", "ID", "STATUS", "PROGRESS", "URL")
	fmt.Println("  " + strings.Repeat("-", 72))
	for _, d := range resp.Downloads {
		url := d.URL
		if len(url) > 44 {
			url = url[:41] + "..."
		}
		fmt.Printf("  %-5d %-12s %7d%%  %s\n", d.ID, d.Status, d.Progress, url)
	}
	return nil
}

func runShow(cmd *cobra.Command, args []string) error {
	id, err := parseID(args[0])
	if err != nil {
		return err
	}
	resp, err := NewClient(serverURL).Download(id)
	if err != nil {
		return fmt.Errorf("fetch failed: %w", err)
	}

	if jsonOutput {
		printJSON(resp)
		return nil
	}

	d := resp.Download
	fmt.Printf("Download %d\n", d.ID)
	fmt.Printf("  URL:      %s\n", d.URL)
	fmt.Printf("  Status:   %s (%d%%)\n", d.Status, d.Progress)
	fmt.Printf("  Created:  %s\n", d.CreatedAt.Format("2006-01-02 15:04:05"))
	if d.StartedAt != nil {
		fmt.Printf("  Started:  %s\n", d.StartedAt.Format("2006-01-02 15:04:05"))
	}
	if d.FinishedAt != nil {
		fmt.Printf("  Finished: %s\n", d.FinishedAt.Format("2006-01-02 15:04:05"))
	}
	if d.FilePath != nil {
		fmt.Printf("  File:     %s\n", *d.FilePath)
	}
	if d.ErrorMessage != nil {
		fmt.Printf("  Error:    %s\n", *d.ErrorMessage)
	}
	if m := resp.Media; m != nil {
		fmt.Printf("  Media:    %s", m.Title)
		if m.Artist != "" {
			fmt.Printf(" - %s", m.Artist)
		}
		if m.Year != 0 {
			fmt.Printf(" (%d)", m.Year)
		}
		fmt.Printf(" [%s/%s]\n", m.Provider, m.Kind)
	}
	return nil
}

func runLogs(cmd *cobra.Command, args []string) error {
	id, err := parseID(args[0])
	if err != nil {
		return err
	}
	page, _ := cmd.Flags().GetInt("page")
	limit, _ := cmd.Flags().GetInt("limit")

	resp, err := NewClient(serverURL).Logs(id, page, limit)
	if err != nil {
		return fmt.Errorf("logs fetch failed: %w", err)
	}

	if jsonOutput {
		printJSON(resp)
		return nil
	}

	if len(resp.Logs) == 0 {
		fmt.Println("No log entries")
		return nil
	}
	for _, e := range resp.Logs {
		fmt.Printf("%s  %-20s %s\n",
			e.Timestamp.Format("2006-01-02 15:04:05"), e.Type, e.Message)
	}
	return nil
}

func runCancel(cmd *cobra.Command, args []string) error {
	return runAction(args[0], "cancel", func(c *Client, id int64) (*ActionResponse, error) {
		return c.Cancel(id)
	})
}

func runRetry(cmd *cobra.Command, args []string) error {
	return runAction(args[0], "retry", func(c *Client, id int64) (*ActionResponse, error) {
		return c.Retry(id)
	})
}

func runMove(cmd *cobra.Command, args []string) error {
	return runAction(args[0], "move", func(c *Client, id int64) (*ActionResponse, error) {
		return c.Move(id)
	})
}

func runAction(arg, name string, action func(*Client, int64) (*ActionResponse, error)) error {
	id, err := parseID(arg)
	if err != nil {
		return err
	}
	resp, err := action(NewClient(serverURL), id)
	if err != nil {
		return fmt.Errorf("%s failed: %w", name, err)
	}

	if jsonOutput {
		printJSON(resp)
		return nil
	}
	if resp.DestPath != "" {
		fmt.Printf("Download %d moved to %s\n", id, resp.DestPath)
	} else {
		fmt.Printf("Download %d: %s ok\n", id, name)
	}
	return nil
}

func runStats(cmd *cobra.Command, args []string) error {
	resp, err := NewClient(serverURL).Stats()
	if err != nil {
		return fmt.Errorf("stats fetch failed: %w", err)
	}

	if jsonOutput {
		printJSON(resp)
		return nil
	}

	fmt.Printf("Queue: %d downloads\n", resp.Total)
	for _, status := range []string{"pending", "in_progress", "completed", "failed", "cancelled"} {
		if n := resp.ByStatus[status]; n > 0 {
			fmt.Printf("  %-12s %d\n", status, n)
		}
	}
	if w := resp.Worker; w != nil {
		fmt.Printf("Worker: running=%v processed=%d errors=%d\n",
			w.IsRunning, w.ProcessedCount, w.ErrorCount)
		if w.CurrentDownloadID != nil {
			fmt.Printf("  currently processing download %d\n", *w.CurrentDownloadID)
		}
	}
	return nil
}
