package main

import (
	"context"
	"errors"
	"testing"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"availability-dashboard/internal/agent"
	"availability-dashboard/internal/dataset/datasettest"
	"availability-dashboard/internal/llm"
)

type stubClient struct {
	reply string
	err   error
}

func (s stubClient) Generate(context.Context, []llm.Message) (llm.Response, error) {
	return llm.Response{Content: s.reply}, s.err
}

func newTools(t *testing.T, c llm.Client) *availabilityTools {
	return &availabilityTools{agent: agent.New(c, datasettest.New(t), nil, nil), logger: zap.NewNop()}
}

func text(t *testing.T, res *mcp.CallToolResultFor[any]) string {
	t.Helper()
	require.Len(t, res.Content, 1)
	tc, ok := res.Content[0].(*mcp.TextContent)
	require.True(t, ok)
	return tc.Text
}

func TestAskTool(t *testing.T) {
	tools := newTools(t, stubClient{reply: `{"explanation": "Evenings are busiest.",
		"chart_spec": {"chart_type": "bar", "data_code": "df.groupby('hour')['value'].mean().reset_index()", "x": "hour"}}`})

	res, err := tools.Ask(context.Background(), nil, &mcp.CallToolParamsFor[AskParams]{Arguments: AskParams{Question: "busiest hour?"}})
	require.NoError(t, err)
	assert.False(t, res.IsError)
	out := text(t, res)
	assert.Contains(t, out, "Evenings are busiest.")
	assert.Contains(t, out, "Chart (bar):")
	assert.Contains(t, out, `"type":"bar"`)
}

func TestAskTool_Errors(t *testing.T) {
	cases := map[string]struct {
		client   llm.Client
		question string
		want     string
	}{
		"empty question": {stubClient{reply: `{}`}, "  ", "query cannot be empty"},
		"prose reply":    {stubClient{reply: "just text"}, "q", "LLM returned invalid JSON"},
		"model down":     {stubClient{err: errors.New("timeout")}, "q", "timeout"},
	}
	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			res, err := newTools(t, tc.client).Ask(context.Background(), nil,
				&mcp.CallToolParamsFor[AskParams]{Arguments: AskParams{Question: tc.question}})
			require.NoError(t, err)
			assert.True(t, res.IsError)
			assert.Contains(t, text(t, res), tc.want)
		})
	}
}

func TestSummaryTool(t *testing.T) {
	tools := newTools(t, stubClient{})
	res, err := tools.Summary(context.Background(), nil, &mcp.CallToolParamsFor[SummaryParams]{})
	require.NoError(t, err)
	assert.Contains(t, text(t, res), "DATASET SUMMARY")
}

func TestNewServerRegistersTools(t *testing.T) {
	assert.NotNil(t, newServer(newTools(t, stubClient{})))
}
