package main

import (
	"context"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"docqa-client/internal/app"
	"docqa-client/internal/bootstrap"
	"docqa-client/internal/citation"
	"docqa-client/internal/model"
)

const snippetLength = 160

var askCmd = &cobra.Command{
	Use:   "ask QUESTION...",
	Short: "Ask a question about the uploaded documents",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withApp(cmd, func(ctx context.Context, a *bootstrap.App) error {
			answer, err := a.Queries.Ask(ctx, strings.Join(args, " "))
			if err != nil {
				return err
			}
			renderAnswer(cmd.OutOrStdout(), answer)
			return nil
		})
	},
}

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "List previous questions",
	RunE: func(cmd *cobra.Command, args []string) error {
		return withApp(cmd, func(ctx context.Context, a *bootstrap.App) error {
			records, err := a.Queries.History(ctx)
			if err != nil {
				return err
			}
			for _, r := range records {
				printRecord(cmd.OutOrStdout(), r)
			}
			return nil
		})
	},
}

var historyShowCmd = &cobra.Command{
	Use:   "show ID",
	Short: "Show one previous question",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		id, err := parseID(args[0], "query")
		if err != nil {
			return err
		}
		return withApp(cmd, func(ctx context.Context, a *bootstrap.App) error {
			record, err := a.Queries.Record(ctx, id)
			if err != nil {
				return err
			}
			printRecord(cmd.OutOrStdout(), *record)
			return nil
		})
	},
}

func init() {
	historyCmd.AddCommand(historyShowCmd)
}

func printRecord(out io.Writer, r model.QueryRecord) {
	when := color.New(color.Faint).SprintFunc()
	question := color.New(color.Bold).SprintFunc()
	fmt.Fprintf(out, "%s %s\n%s\n\n", when(r.CreatedAt.Local().Format(time.DateTime)), question(r.QueryText), r.Response)
}

// renderAnswer prints the answer with resolved citations highlighted and
// numbered, followed by the list of cited passages.
func renderAnswer(out io.Writer, answer *app.Answer) {
	cited := color.New(color.FgCyan, color.Bold).SprintFunc()
	unresolved := color.New(color.FgYellow).SprintFunc()
	heading := color.New(color.FgGreen, color.Bold).SprintFunc()

	numbers := make(map[int]int, len(answer.Cited))
	for _, seg := range answer.Segments {
		if seg.Kind == citation.KindCitation && seg.Source != nil {
			if _, ok := numbers[seg.Index]; !ok {
				numbers[seg.Index] = len(numbers) + 1
			}
		}
	}

	var b strings.Builder
	for _, seg := range answer.Segments {
		switch {
		case seg.Kind == citation.KindText:
			b.WriteString(seg.Value)
		case seg.Source != nil:
			b.WriteString(cited(fmt.Sprintf("%s[%d]", seg.Value, numbers[seg.Index])))
		default:
			b.WriteString(unresolved(seg.Value))
		}
	}
	fmt.Fprintln(out, b.String())

	if len(answer.Cited) == 0 {
		return
	}
	fmt.Fprintln(out)
	fmt.Fprintln(out, heading("Sources"))
	for i, src := range answer.Cited {
		fmt.Fprintf(out, "%d. %s\n", i+1, src.Label())
		if snippet := snippet(src.Content); snippet != "" {
			fmt.Fprintf(out, "   %s\n", snippet)
		}
	}
}

func snippet(content string) string {
	content = strings.Join(strings.Fields(content), " ")
	runes := []rune(content)
	if len(runes) <= snippetLength {
		return content
	}
	return string(runes[:snippetLength]) + "..."
}
