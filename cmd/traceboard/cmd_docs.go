package main

import (
	"context"

	"github.com/spf13/cobra"

	"github.com/traceboard/traceboard/client"
)

func newDocCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "doc",
		Short: "Manage workspace documents",
	}

	cmd.AddCommand(docCreateCmd())
	cmd.AddCommand(docGetCmd())
	cmd.AddCommand(docDeleteCmd())
	return cmd
}

func docCreateCmd() *cobra.Command {
	var title, body string

	cmd := &cobra.Command{
		Use:   "create <workspace-id>",
		Short: "Create a document (audited atomically)",
		Args:  cobra.ExactArgs(1),
		Run: func(cmd *cobra.Command, args []string) {
			doc, err := apiClient.Documents.Create(context.Background(), args[0], client.CreateDocumentRequest{
				Title: title,
				Body:  body,
			})
			if err != nil {
				fatal("doc create", err)
			}
			output(doc, doc.ID)
		},
	}

	cmd.Flags().StringVar(&title, "title", "", "Document title (required)")
	cmd.Flags().StringVar(&body, "body", "", "Document body")
	cmd.MarkFlagRequired("title") //nolint:errcheck // flag exists.
	return cmd
}

func docGetCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "get <workspace-id> <doc-id>",
		Short: "Fetch a document",
		Args:  cobra.ExactArgs(2),
		Run: func(cmd *cobra.Command, args []string) {
			doc, err := apiClient.Documents.Get(context.Background(), args[0], args[1])
			if err != nil {
				fatal("doc get", err)
			}
			output(doc, doc.ID)
		},
	}
}

func docDeleteCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "delete <workspace-id> <doc-id>",
		Short: "Delete a document (audited atomically)",
		Args:  cobra.ExactArgs(2),
		Run: func(cmd *cobra.Command, args []string) {
			if err := apiClient.Documents.Delete(context.Background(), args[0], args[1]); err != nil {
				fatal("doc delete", err)
			}
			output(map[string]bool{"deleted": true}, args[1])
		},
	}
}
