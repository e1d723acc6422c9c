package main

import (
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/spf13/cobra"

	"github.com/therealutkarshpriyadarshi/sourcing/internal/metrics"
	"github.com/therealutkarshpriyadarshi/sourcing/internal/queue"
	"github.com/therealutkarshpriyadarshi/sourcing/pkg/models"
)

// eventPrinter writes one line per transcript event
type eventPrinter struct {
	mu      sync.Mutex
	w       io.Writer
	verbose bool
}

func (p *eventPrinter) handle(event *models.TranscriptEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	_, err := fmt.Fprintf(p.w, "%s %s content=%s version=%s transcripts=%d\n",
		event.Timestamp.UTC().Format(time.RFC3339), event.Event,
		event.ContentID, orDash(event.VersionKey), len(event.Transcripts))
	if err != nil {
		return err
	}
	if p.verbose && len(event.Transcripts) > 0 {
		_, err = fmt.Fprintln(p.w, renderTranscripts(event.Transcripts))
	}
	return err
}

func newWatchCommand(ctx *commandContext) *cobra.Command {
	var details bool

	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Print transcript update events as they are published",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			logger, err := ctx.ensureLogger()
			if err != nil {
				return err
			}

			q, err := queue.New(cfg.Queue)
			if err != nil {
				return err
			}
			defer q.Close()

			var probes *metrics.Server
			if cfg.Metrics.Enabled {
				probes = metrics.NewServer(cfg.Metrics.Port, logger)
				go func() {
					if err := probes.Run(cmd.Context()); err != nil {
						logger.ErrorWithErr("Metrics server stopped", err)
					}
				}()
			}

			if depth, err := q.Depth(); err == nil {
				fmt.Fprintf(cmd.ErrOrStderr(), "%d events waiting\n", depth)
			}

			printer := &eventPrinter{w: cmd.OutOrStdout(), verbose: details}
			if err := q.ConsumeTranscriptEvents(cmd.Context(), logger, printer.handle); err != nil {
				return err
			}
			if probes != nil {
				probes.SetReady(true)
			}

			<-cmd.Context().Done()
			return nil
		},
	}

	cmd.Flags().BoolVar(&details, "details", false, "Print the transcript list of each event")
	return cmd
}
