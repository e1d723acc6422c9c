package main

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/samber/lo"
	"github.com/spf13/cobra"

	"github.com/therealutkarshpriyadarshi/sourcing/internal/transcript"
)

// changeSet lists the edits applied to an editor before committing
type changeSet struct {
	uploads  []assignment // language=path
	relabels []assignment // old=new
	drops    []string
}

type assignment struct {
	key   string
	value string
}

func parseAssignments(flag string, values []string) ([]assignment, error) {
	out := make([]assignment, 0, len(values))
	for _, v := range values {
		key, value, ok := strings.Cut(v, "=")
		key, value = strings.TrimSpace(key), strings.TrimSpace(value)
		if !ok || key == "" || value == "" {
			return nil, fmt.Errorf("invalid --%s %q, expected KEY=VALUE", flag, v)
		}
		out = append(out, assignment{key: key, value: value})
	}
	return out, nil
}

func indexOfLanguage(entries []transcript.Entry, language string) int {
	_, i, _ := lo.FindIndexOf(entries, func(e transcript.Entry) bool {
		return e.Language == language
	})
	return i
}

// freeEntry returns an untouched entry, adding one when none is left
func freeEntry(editor *transcript.Editor) int {
	_, i, ok := lo.FindIndexOf(editor.Entries(), func(e transcript.Entry) bool {
		return e.Language == "" && e.FileName == "" && e.Identifier == ""
	})
	if !ok {
		return editor.AddEntry(nil)
	}
	return i
}

// apply performs drops, then relabels, then uploads
func (cs changeSet) apply(editor *transcript.Editor) error {
	for _, lang := range cs.drops {
		i := indexOfLanguage(editor.Entries(), lang)
		if i < 0 {
			return fmt.Errorf("no %s transcript to drop", lang)
		}
		if err := editor.SelectLanguage(i, ""); err != nil {
			return err
		}
	}

	for _, r := range cs.relabels {
		i := indexOfLanguage(editor.Entries(), r.key)
		if i < 0 {
			return fmt.Errorf("no %s transcript to relabel", r.key)
		}
		if err := editor.SelectLanguage(i, r.value); err != nil {
			return err
		}
	}

	for _, u := range cs.uploads {
		file, err := transcript.ReadFile(u.value)
		if err != nil {
			return err
		}

		i := indexOfLanguage(editor.Entries(), u.key)
		if i < 0 {
			i = freeEntry(editor)
			if err := editor.SelectLanguage(i, u.key); err != nil {
				return err
			}
		}
		if err := editor.AttachFile(i, file); err != nil {
			return err
		}
	}

	// an empty list is never committed, so dropping everything would be a no-op
	if len(cs.drops) > 0 && !lo.ContainsBy(editor.Entries(), transcript.Entry.Committable) {
		return errors.New("cannot drop every transcript: the content would keep its current transcripts")
	}
	return nil
}

func newCommitCommand(ctx *commandContext) *cobra.Command {
	var (
		uploads  []string
		relabels []string
		drops    []string
		dryRun   bool
	)

	cmd := &cobra.Command{
		Use:   "commit <content-id>",
		Short: "Upload transcript files and update the transcripts of a content record",
		Example: `  transcripts commit do_123 --transcript Hindi=hi.srt --transcript Tamil=ta.srt
  transcripts commit do_123 --relabel Hindi=Urdu --drop English`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cs := changeSet{drops: drops}
			var err error
			if cs.uploads, err = parseAssignments("transcript", uploads); err != nil {
				return err
			}
			if cs.relabels, err = parseAssignments("relabel", relabels); err != nil {
				return err
			}

			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			runCtx := cmd.Context()
			if cfg.Transcripts.CommitTimeout > 0 {
				var cancel context.CancelFunc
				runCtx, cancel = context.WithTimeout(runCtx, cfg.Transcripts.CommitTimeout)
				defer cancel()
			}

			editor, err := ctx.openEditor(runCtx, cmd, args[0])
			if err != nil {
				return err
			}

			if err := cs.apply(editor); err != nil {
				editor.Close()
				return err
			}

			out := cmd.OutOrStdout()
			fmt.Fprintln(out, renderEntries(editor))
			if dryRun {
				editor.Close()
				fmt.Fprintln(out, "Dry run, nothing committed")
				return nil
			}

			result, err := editor.Commit(runCtx)
			if err != nil {
				var branchErr *transcript.BranchError
				if errors.As(err, &branchErr) {
					return fmt.Errorf("commit failed for entry %d (%s) at %s: %w",
						branchErr.Index, branchErr.Language, branchErr.Step, branchErr.Err)
				}
				return fmt.Errorf("commit failed: %w", err)
			}

			if result.Content == nil {
				fmt.Fprintln(out, "Nothing to commit")
				return nil
			}
			fmt.Fprintf(out, "Committed %d transcripts to %s (version %s)\n",
				len(result.Transcripts), result.Content.Identifier, result.Content.VersionKey)
			fmt.Fprintln(out, renderTranscripts(result.Transcripts))
			return nil
		},
	}

	cmd.Flags().StringArrayVarP(&uploads, "transcript", "t", nil, "Transcript file to upload as LANGUAGE=PATH (repeatable)")
	cmd.Flags().StringArrayVar(&relabels, "relabel", nil, "Change the language of a transcript as OLD=NEW (repeatable)")
	cmd.Flags().StringArrayVar(&drops, "drop", nil, "Language whose transcript is removed from the content (repeatable)")
	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "Show the resulting entries without committing")

	return cmd
}
