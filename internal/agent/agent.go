// Package agent turns a natural-language question about the availability
// dataset into an explanation and, when the model asks for one, a chart.
// Each question costs exactly one model call.
package agent

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"availability-dashboard/internal/chart"
	"availability-dashboard/internal/dataset"
	"availability-dashboard/internal/llm"
	"availability-dashboard/internal/shaping"
	"availability-dashboard/internal/storage"
)

// Request is one question together with the turns that preceded it.
type Request struct {
	Question string
	History  []llm.Message
	// Source names the front door (http, telegram, cli, mcp) for the query log.
	Source string
	ChatID int64
}

// Result is the answer envelope. When Err is set the explanation is empty
// and there is no chart.
type Result struct {
	RequestID   string
	Explanation string
	Spec        *chart.Spec
	Chart       *chart.Figure
	// Err is a failure that replaced the answer.
	Err *Error
	// ChartErr is a shaping or build failure that only dropped the chart.
	ChartErr *Error
	// RawResponse is the model reply as received.
	RawResponse string
	Model       string
	TotalTokens int
}

// ErrorText is the user-facing error string, empty on success.
func (r *Result) ErrorText() string {
	if r.Err == nil {
		return ""
	}
	return r.Err.Error()
}

type Agent struct {
	client   llm.Client
	data     *dataset.Dataset
	prompt   string
	recorder storage.Recorder
	logger   *zap.Logger
	now      func() time.Time
}

// New builds an agent over data. The system prompt is rendered once here.
// A nil recorder or logger disables query logging or log output.
func New(client llm.Client, data *dataset.Dataset, recorder storage.Recorder, logger *zap.Logger) *Agent {
	if recorder == nil {
		recorder = storage.Nop{}
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Agent{
		client:   client,
		data:     data,
		prompt:   SystemPrompt(data.SummaryText()),
		recorder: recorder,
		logger:   logger.Named("agent"),
		now:      time.Now,
	}
}

func (a *Agent) Dataset() *dataset.Dataset { return a.data }

// Ask answers req. The only error it returns is ErrEmptyQuestion; every
// pipeline failure is reported inside the Result. Deadlines come from ctx.
func (a *Agent) Ask(ctx context.Context, req Request) (*Result, error) {
	question := strings.TrimSpace(req.Question)
	if question == "" {
		return nil, ErrEmptyQuestion
	}

	start := a.now()
	res := &Result{RequestID: uuid.NewString()}
	log := a.logger.With(zap.String("request_id", res.RequestID), zap.String("source", req.Source))

	a.answer(ctx, log, question, req.History, res)

	elapsed := a.now().Sub(start)
	fields := []zap.Field{zap.Duration("duration", elapsed), zap.Bool("chart", res.Chart != nil)}
	if res.Spec != nil {
		fields = append(fields, zap.String("chart_type", string(res.Spec.ChartType)))
	}
	if res.Err != nil {
		log.Error("query failed", append(fields, zap.Stringer("error_kind", res.Err.Kind), zap.Error(res.Err))...)
	} else {
		log.Info("query answered", fields...)
	}

	a.record(log, req, question, res, elapsed)
	return res, nil
}

func (a *Agent) answer(ctx context.Context, log *zap.Logger, question string, prior []llm.Message, res *Result) {
	resp, err := a.client.Generate(ctx, a.messages(question, prior))
	if err != nil {
		res.Err = &Error{Kind: AgentFailure, Err: fmt.Errorf("llm call: %w", err)}
		return
	}
	res.RawResponse, res.Model, res.TotalTokens = resp.Content, resp.Model, resp.TotalTokens

	ans, err := ParseAnswer(resp.Content)
	if err != nil {
		res.Err = err.(*Error)
		return
	}
	res.Explanation = ans.Explanation

	spec, ok, err := ans.Spec()
	if !ok {
		return
	}
	if err != nil {
		res.ChartErr = &Error{Kind: ChartBuildError, Err: err, Raw: resp.Content}
		log.Warn("chart spec rejected", zap.Error(err))
		return
	}
	spec = spec.WithDefaults()
	res.Spec = &spec

	fig, cerr := a.BuildChart(spec)
	if cerr != nil {
		res.ChartErr = cerr
		log.Warn("chart dropped",
			zap.Stringer("error_kind", cerr.Kind),
			zap.String("data_code", spec.DataCode),
			zap.Error(cerr))
		return
	}
	res.Chart = fig
}

// messages lays out the system prompt, the prior user and assistant turns
// and the new question. Prior turns with other roles are ignored.
func (a *Agent) messages(question string, prior []llm.Message) []llm.Message {
	msgs := make([]llm.Message, 0, len(prior)+2)
	msgs = append(msgs, llm.Message{Role: llm.RoleSystem, Content: a.prompt})
	for _, m := range prior {
		if m.Role == llm.RoleUser || m.Role == llm.RoleAssistant {
			msgs = append(msgs, m)
		}
	}
	return append(msgs, llm.Message{Role: llm.RoleUser, Content: question})
}

// BuildChart shapes the dataset with spec.DataCode and builds the figure.
// The returned error is a DataShapingError or a ChartBuildError.
func (a *Agent) BuildChart(spec chart.Spec) (fig *chart.Figure, cerr *Error) {
	spec = spec.WithDefaults()
	table, err := shaping.Eval(a.data.Frame(), spec.DataCode)
	if err != nil {
		return nil, &Error{Kind: DataShapingError, Err: err}
	}

	defer func() {
		if r := recover(); r != nil {
			fig, cerr = nil, &Error{Kind: ChartBuildError, Err: fmt.Errorf("build %s chart: %v", spec.ChartType, r)}
		}
	}()
	fig, err = chart.Build(spec, table)
	if err != nil {
		return nil, &Error{Kind: ChartBuildError, Err: err}
	}
	return fig, nil
}

func (a *Agent) record(log *zap.Logger, req Request, question string, res *Result, elapsed time.Duration) {
	ev := storage.Event{
		Timestamp:   a.now().UTC(),
		RequestID:   res.RequestID,
		Source:      req.Source,
		ChatID:      req.ChatID,
		Question:    question,
		Explanation: res.Explanation,
		HasChart:    res.Chart != nil,
		Model:       res.Model,
		TotalTokens: res.TotalTokens,
		DurationMS:  elapsed.Milliseconds(),
	}
	if res.Spec != nil {
		ev.ChartType = string(res.Spec.ChartType)
	}
	switch {
	case res.Err != nil:
		ev.ErrorKind, ev.Error = res.Err.Kind.String(), res.Err.Error()
	case res.ChartErr != nil:
		ev.ErrorKind, ev.Error = res.ChartErr.Kind.String(), res.ChartErr.Error()
	}
	if err := a.recorder.AppendEvent(ev); err != nil {
		log.Warn("failed to record query", zap.Error(err))
	}
}
