package main

import (
	"context"
	"fmt"
	"strings"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	"go.uber.org/zap"

	"availability-dashboard/internal/agent"
)

// AskParams are the arguments of the ask_availability tool.
type AskParams struct {
	Question string `json:"question" mcp:"Natural-language question about store availability"`
}

// SummaryParams has no fields; dataset_summary takes no arguments.
type SummaryParams struct{}

// availabilityTools exposes the agent as MCP tools.
type availabilityTools struct {
	agent  *agent.Agent
	logger *zap.Logger
}

func textResult(text string, isError bool) *mcp.CallToolResultFor[any] {
	return &mcp.CallToolResultFor[any]{
		IsError: isError,
		Content: []mcp.Content{&mcp.TextContent{Text: text}},
	}
}

// Ask answers one question. The chart, when present, is appended as the
// Plotly figure JSON so the caller can render it.
func (t *availabilityTools) Ask(ctx context.Context, _ *mcp.ServerSession, params *mcp.CallToolParamsFor[AskParams]) (*mcp.CallToolResultFor[any], error) {
	res, err := t.agent.Ask(ctx, agent.Request{Question: params.Arguments.Question, Source: "mcp"})
	if err != nil {
		return textResult(err.Error(), true), nil
	}
	if res.Err != nil {
		return textResult(res.ErrorText(), true), nil
	}

	var b strings.Builder
	b.WriteString(res.Explanation)
	switch {
	case res.Chart != nil:
		raw, err := res.Chart.JSON()
		if err != nil {
			t.logger.Error("encode chart", zap.String("request_id", res.RequestID), zap.Error(err))
			break
		}
		fmt.Fprintf(&b, "\n\nChart (%s):\n%s", res.Spec.ChartType, raw)
	case res.ChartErr != nil:
		fmt.Fprintf(&b, "\n\nNo chart: %s", res.ChartErr.Error())
	}
	return textResult(b.String(), false), nil
}

// Summary returns the dataset description the model is prompted with.
func (t *availabilityTools) Summary(_ context.Context, _ *mcp.ServerSession, _ *mcp.CallToolParamsFor[SummaryParams]) (*mcp.CallToolResultFor[any], error) {
	return textResult(t.agent.Dataset().SummaryText(), false), nil
}

func newServer(tools *availabilityTools) *mcp.Server {
	server := mcp.NewServer(&mcp.Implementation{
		Name:    "availability-dashboard-mcp",
		Version: "1.0.0",
	}, nil)

	mcp.AddTool(server, &mcp.Tool{
		Name:        "ask_availability",
		Description: "Answers a question about the store availability time series, with an optional Plotly chart",
	}, tools.Ask)

	mcp.AddTool(server, &mcp.Tool{
		Name:        "dataset_summary",
		Description: "Describes the loaded availability dataset: columns, date range and value statistics",
	}, tools.Summary)

	return server
}
