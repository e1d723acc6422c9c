package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/therealutkarshpriyadarshi/sourcing/pkg/models"
)

func contentRef(id string) models.Content {
	return models.Content{Identifier: id}
}

func newShowCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "show <content-id>",
		Short: "Show the transcripts of a content record",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			editor, err := ctx.openEditor(cmd.Context(), cmd, args[0])
			if err != nil {
				return err
			}
			defer editor.Close()

			content := editor.Content()
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Content %s (version %s)\n", content.Identifier, orDash(content.VersionKey))
			fmt.Fprintln(out, renderEntries(editor))
			return nil
		},
	}
}

func newDownloadCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "download <content-id> <asset-id>",
		Short: "Print the download URL of a transcript",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			editor, err := ctx.openEditor(cmd.Context(), cmd, args[0])
			if err != nil {
				return err
			}
			defer editor.Close()

			url, err := editor.DownloadURL(args[1])
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), url)
			return nil
		},
	}
}

func newLanguagesCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "languages",
		Short: "List the supported transcript languages",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			fmt.Fprintln(cmd.OutOrStdout(), strings.Join(models.Languages, "\n"))
			return nil
		},
	}
}
