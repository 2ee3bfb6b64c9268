package main

import (
	"context"
	"fmt"
	"io"
	"strconv"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"docqa-client/internal/bootstrap"
	"docqa-client/internal/model"
)

var (
	uploadWait    bool
	uploadTimeout time.Duration
	journalLimit  int
)

var docsCmd = &cobra.Command{
	Use:   "docs",
	Short: "List uploaded documents",
	RunE: func(cmd *cobra.Command, args []string) error {
		return withApp(cmd, func(ctx context.Context, a *bootstrap.App) error {
			docs, err := a.Documents.Refresh(ctx)
			if err != nil {
				return err
			}
			printDocuments(cmd.OutOrStdout(), docs)
			return nil
		})
	},
}

var docsShowCmd = &cobra.Command{
	Use:   "show ID",
	Short: "Show one document as the server reports it",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		id, err := parseID(args[0], "document")
		if err != nil {
			return err
		}
		return withApp(cmd, func(ctx context.Context, a *bootstrap.App) error {
			doc, err := a.Documents.Get(ctx, id)
			if err != nil {
				return err
			}
			printDocuments(cmd.OutOrStdout(), []model.Document{*doc})
			return nil
		})
	},
}

var uploadCmd = &cobra.Command{
	Use:   "upload FILE...",
	Short: "Upload up to 5 PDF or TXT files",
	Args:  cobra.RangeArgs(1, 5),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withApp(cmd, func(ctx context.Context, a *bootstrap.App) error {
			out := cmd.OutOrStdout()
			if uploadWait {
				unsubscribe := a.Poller.Subscribe(func(u model.StatusUpdate) {
					fmt.Fprintf(out, "document %d: %s %d%%\n", u.DocumentID, u.Status.Phase(), u.Status.Progress())
				})
				defer unsubscribe()
			}

			docs, err := a.Documents.UploadPaths(ctx, args)
			printDocuments(out, docs)
			if err != nil || !uploadWait {
				return err
			}

			ids := make([]uint, 0, len(docs))
			for _, doc := range docs {
				ids = append(ids, doc.ID)
			}
			waitCtx, cancel := context.WithTimeout(ctx, uploadTimeout)
			defer cancel()
			settled, err := a.Documents.WaitSettled(waitCtx, ids)
			if err != nil {
				return fmt.Errorf("wait for processing failed: %w", err)
			}
			printDocuments(out, settled)
			return nil
		})
	},
}

var deleteCmd = &cobra.Command{
	Use:   "delete ID",
	Short: "Delete a document",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		id, err := parseID(args[0], "document")
		if err != nil {
			return err
		}
		return withApp(cmd, func(ctx context.Context, a *bootstrap.App) error {
			if err := a.Documents.Delete(ctx, id); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "deleted document %d\n", id)
			return nil
		})
	},
}

var journalCmd = &cobra.Command{
	Use:   "journal",
	Short: "Show documents that finished processing, newest first",
	RunE: func(cmd *cobra.Command, args []string) error {
		return withApp(cmd, func(ctx context.Context, a *bootstrap.App) error {
			events, err := a.Journal.Recent(journalLimit)
			if err != nil {
				return err
			}
			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "OBSERVED\tDOCUMENT\tFILENAME\tPHASE")
			for _, ev := range events {
				fmt.Fprintf(w, "%s\t%d\t%s\t%s\n", ev.ObservedAt.Local().Format(time.DateTime), ev.DocumentID, ev.Filename, ev.Phase)
			}
			return w.Flush()
		})
	},
}

func init() {
	docsCmd.AddCommand(docsShowCmd)
	uploadCmd.Flags().BoolVarP(&uploadWait, "wait", "w", false, "wait until every uploaded document is processed")
	uploadCmd.Flags().DurationVar(&uploadTimeout, "timeout", 10*time.Minute, "how long --wait may block")
	journalCmd.Flags().IntVarP(&journalLimit, "limit", "n", 50, "number of events to show")
}

func parseID(arg, kind string) (uint, error) {
	id, err := strconv.ParseUint(arg, 10, 64)
	if err != nil || id == 0 {
		return 0, fmt.Errorf("invalid %s id %q", kind, arg)
	}
	return uint(id), nil
}

func printDocuments(out io.Writer, docs []model.Document) {
	if len(docs) == 0 {
		return
	}
	w := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tFILENAME\tSTATUS\tPROGRESS")
	for _, doc := range docs {
		fmt.Fprintf(w, "%d\t%s\t%s\t%d%%\n", doc.ID, doc.Filename, describePhase(doc), doc.Status().Progress())
	}
	_ = w.Flush()
}

func describePhase(doc model.Document) string {
	switch doc.Phase() {
	case model.PhaseDone:
		return "ready"
	case model.PhaseFailed:
		return "failed"
	default:
		if doc.ProcessingStatus == "" {
			return string(model.StatusPending)
		}
		return string(doc.ProcessingStatus)
	}
}
