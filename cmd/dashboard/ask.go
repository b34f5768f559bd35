package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/charmbracelet/glamour"
	"github.com/spf13/cobra"

	"availability-dashboard/internal/agent"
	"availability-dashboard/internal/app"
	"availability-dashboard/internal/chart"
)

var (
	askJSON bool
	askPNG  string
)

var askCmd = &cobra.Command{
	Use:   "ask [question]",
	Short: "Ask a single question and print the answer",
	Long: `Sends one question through the same pipeline as the HTTP API.

Examples:
  dashboard ask "What is the average availability by hour?"
  dashboard ask --png hourly.png "Show the hourly trend"
  dashboard ask --json "When was availability lowest?" > answer.json`,
	Args: cobra.MinimumNArgs(1),
	RunE: runAsk,
}

func init() {
	askCmd.Flags().BoolVar(&askJSON, "json", false, "print the API response document instead of rendered text")
	askCmd.Flags().StringVar(&askPNG, "png", "", "write a PNG preview of the chart to this file")
}

func runAsk(cmd *cobra.Command, args []string) error {
	ctx, cancel := context.WithTimeout(cmd.Context(), cfg.LLMTimeout)
	defer cancel()

	a, err := app.New(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer a.Close()
	res, err := a.Agent.Ask(ctx, agent.Request{Question: strings.Join(args, " "), Source: "cli"})
	if err != nil {
		return err
	}

	if askPNG != "" && res.Chart != nil {
		img, err := chart.RenderPNG(res.Chart)
		if err != nil {
			return err
		}
		if err := os.WriteFile(askPNG, img, 0o644); err != nil {
			return fmt.Errorf("write chart: %w", err)
		}
	}

	out := cmd.OutOrStdout()
	if askJSON {
		doc := map[string]any{"explanation": res.Explanation, "chart_json": nil, "error": nil}
		if res.Chart != nil {
			raw, err := res.Chart.JSON()
			if err != nil {
				return err
			}
			doc["chart_json"] = string(raw)
		}
		if res.Err != nil {
			doc["error"] = res.ErrorText()
		}
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(doc)
	}

	if res.Err != nil {
		return res.Err
	}
	fmt.Fprint(out, renderAnswer(res, isTerminal(os.Stdout)))
	return nil
}

// renderAnswer formats the answer as markdown, rendered with glamour when
// writing to a terminal.
func renderAnswer(res *agent.Result, tty bool) string {
	var b strings.Builder
	b.WriteString(res.Explanation)
	b.WriteString("\n")
	switch {
	case res.Chart != nil:
		fmt.Fprintf(&b, "\n**Chart:** %s (%s, %d trace(s))\n",
			res.Chart.Layout.Title.Text, res.Spec.ChartType, len(res.Chart.Data))
		if askPNG != "" {
			fmt.Fprintf(&b, "\nPreview written to `%s`\n", askPNG)
		}
	case res.ChartErr != nil:
		fmt.Fprintf(&b, "\n_No chart: %s_\n", res.ChartErr.Error())
	}
	if !tty {
		return b.String()
	}
	r, err := glamour.NewTermRenderer(glamour.WithAutoStyle(), glamour.WithWordWrap(80))
	if err != nil {
		return b.String()
	}
	rendered, err := r.Render(b.String())
	if err != nil {
		return b.String()
	}
	return rendered
}

func isTerminal(f *os.File) bool {
	fi, err := f.Stat()
	return err == nil && fi.Mode()&os.ModeCharDevice != 0
}
