package main

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"github.com/traceboard/traceboard/client"
)

func newAuditCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "audit",
		Short: "Query and verify the audit ledger",
	}

	cmd.AddCommand(auditListCmd())
	cmd.AddCommand(auditVerifyCmd())
	return cmd
}

func auditListCmd() *cobra.Command {
	var (
		workspaceID string
		actorID     string
		action      string
		resourceID  string
		since       string
		until       string
		limit       int
		offset      int
		global      bool
	)

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List audit ledger entries, most recent first",
		Run: func(cmd *cobra.Command, args []string) {
			opts := &client.AuditQueryOptions{
				WorkspaceID: workspaceID,
				ActorUserID: actorID,
				Action:      action,
				ResourceID:  resourceID,
				Limit:       limit,
				Offset:      offset,
			}
			for _, pair := range []struct {
				value string
				flag  string
				dst   **time.Time
			}{{since, "since", &opts.Since}, {until, "until", &opts.Until}} {
				if pair.value == "" {
					continue
				}
				ts, err := time.Parse(time.RFC3339, pair.value)
				if err != nil {
					fatal("parsing --"+pair.flag, err)
				}
				*pair.dst = &ts
			}

			list := apiClient.Audit.List
			if global {
				list = apiClient.Audit.GlobalList
			}
			entries, hasMore, err := list(context.Background(), opts)
			if err != nil {
				fatal("audit list", err)
			}

			if flagFmt == "table" {
				headers := []string{"ID", "ACTION", "RESOURCE", "WORKSPACE", "CREATED_AT", "RECORD_HASH"}
				var rows [][]string
				for _, e := range entries {
					ws := e.WorkspaceName
					if ws == "" && e.WorkspaceID != nil {
						ws = *e.WorkspaceID
					}
					rows = append(rows, []string{
						strconv.FormatInt(e.ID, 10),
						e.Action,
						e.ResourceID,
						ws,
						e.CreatedAt.Format("2006-01-02 15:04:05"),
						shorten(e.RecordHash),
					})
				}
				formatTable(headers, rows)
				if hasMore {
					fmt.Println("(more entries available, use --offset)")
				}
				return
			}
			output(map[string]any{"data": entries, "has_more": hasMore}, "")
		},
	}

	cmd.Flags().StringVar(&workspaceID, "workspace", "", "Filter by workspace ID")
	cmd.Flags().StringVar(&actorID, "actor", "", "Filter by actor user ID")
	cmd.Flags().StringVar(&action, "action", "", "Filter by action")
	cmd.Flags().StringVar(&resourceID, "resource", "", "Filter by resource ID")
	cmd.Flags().StringVar(&since, "since", "", "Entries created at or after this RFC3339 timestamp")
	cmd.Flags().StringVar(&until, "until", "", "Entries created at or before this RFC3339 timestamp")
	cmd.Flags().IntVar(&limit, "limit", 0, "Max results (server caps at 1000)")
	cmd.Flags().IntVar(&offset, "offset", 0, "Pagination offset")
	cmd.Flags().BoolVar(&global, "global", false, "Use the cross-workspace admin view (requires a global key)")
	return cmd
}

func auditVerifyCmd() *cobra.Command {
	var workspaceID string

	cmd := &cobra.Command{
		Use:   "verify",
		Short: "Recompute the hash chain and report any breaks",
		Run: func(cmd *cobra.Command, args []string) {
			resp, err := apiClient.Audit.Verify(context.Background(), workspaceID)
			if err != nil {
				fatal("audit verify", err)
			}

			if flagFmt == "table" && len(resp.Breaks) > 0 {
				headers := []string{"ENTRY_ID", "FIELD", "EXPECTED", "ACTUAL"}
				var rows [][]string
				for _, b := range resp.Breaks {
					rows = append(rows, []string{
						strconv.FormatInt(b.EntryID, 10),
						b.Field,
						shorten(b.Expected),
						shorten(b.Actual),
					})
				}
				formatTable(headers, rows)
				return
			}
			output(resp, resp.Status)
		},
	}

	cmd.Flags().StringVar(&workspaceID, "workspace", "", "Report breaks for this workspace only")
	return cmd
}
