package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"go.uber.org/zap"

	"availability-dashboard/internal/agent"
	"availability-dashboard/internal/analytics"
	"availability-dashboard/internal/chart"
	"availability-dashboard/internal/dataset"
	"availability-dashboard/internal/llm"
)

const defaultPreviewRows = 20

type queryRequest struct {
	Query       string        `json:"query"`
	ChatHistory []historyTurn `json:"chat_history"`
}

type historyTurn struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type queryResponse struct {
	Explanation string  `json:"explanation"`
	ChartJSON   *string `json:"chart_json"`
	Error       *string `json:"error"`
}

type detail struct {
	Detail string `json:"detail"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeDetail(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, detail{Detail: msg})
}

func (s *Server) handleRoot(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok", "service": serviceName})
}

func (s *Server) handleSummary(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.data.Summary())
}

func (s *Server) handleSummaryText(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"summary": s.data.SummaryText()})
}

func (s *Server) handlePreview(w http.ResponseWriter, r *http.Request) {
	rows := defaultPreviewRows
	if v := r.URL.Query().Get("rows"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			writeDetail(w, http.StatusBadRequest, "rows must be an integer")
			return
		}
		rows = n
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"data":       s.data.Preview(rows),
		"total_rows": s.data.Summary().TotalRows,
	})
}

func (s *Server) handleFiltered(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	p := dataset.FilterParams{
		DateStart: q.Get("date_start"),
		DateEnd:   q.Get("date_end"),
		Resample:  q.Get("resample"),
	}
	for name, dst := range map[string]**int{"hour_start": &p.HourStart, "hour_end": &p.HourEnd} {
		v := q.Get(name)
		if v == "" {
			continue
		}
		h, err := strconv.Atoi(v)
		if err != nil {
			writeDetail(w, http.StatusBadRequest, name+" must be an integer")
			return
		}
		*dst = &h
	}

	out, err := s.data.Filter(p)
	if err != nil {
		writeDetail(w, http.StatusBadRequest, err.Error())
		return
	}
	var kpis any = struct{}{}
	if out.KPIs != nil {
		kpis = out.KPIs
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"time_series": out.TimeSeries,
		"kpis":        kpis,
		"heatmap":     out.Heatmap,
		"hourly_avg":  out.HourlyAvg,
	})
}

func (s *Server) handleQuery(w http.ResponseWriter, r *http.Request) {
	var req queryRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes)).Decode(&req); err != nil {
		writeDetail(w, http.StatusBadRequest, "Invalid JSON request: "+err.Error())
		return
	}

	history := make([]llm.Message, 0, len(req.ChatHistory))
	for _, t := range req.ChatHistory {
		role := llm.RoleAssistant
		if t.Role == "" || t.Role == llm.RoleUser {
			role = llm.RoleUser
		}
		history = append(history, llm.Message{Role: role, Content: t.Content})
	}

	ctx := r.Context()
	if s.opts.QueryTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.opts.QueryTimeout)
		defer cancel()
	}
	res, err := s.agent.Ask(ctx, agent.Request{Question: req.Query, History: history, Source: "http"})
	if errors.Is(err, agent.ErrEmptyQuestion) {
		writeDetail(w, http.StatusBadRequest, "Query cannot be empty.")
		return
	}
	if err != nil {
		writeDetail(w, http.StatusInternalServerError, err.Error())
		return
	}
	if res.Err != nil {
		writeDetail(w, http.StatusInternalServerError, res.ErrorText())
		return
	}

	resp := queryResponse{Explanation: res.Explanation}
	if res.Chart != nil {
		raw, err := res.Chart.JSON()
		if err != nil {
			s.logger.Error("encode chart", zap.String("request_id", res.RequestID), zap.Error(err))
		} else {
			text := string(raw)
			resp.ChartJSON = &text
		}
	}
	writeJSON(w, http.StatusOK, resp)
}

// handleChartPNG renders a chart spec posted by the client, for frontends
// that want a static image.
func (s *Server) handleChartPNG(w http.ResponseWriter, r *http.Request) {
	var spec chart.Spec
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes)).Decode(&spec); err != nil {
		writeDetail(w, http.StatusBadRequest, "Invalid chart spec: "+err.Error())
		return
	}
	fig, cerr := s.agent.BuildChart(spec)
	if cerr != nil {
		writeDetail(w, http.StatusUnprocessableEntity, cerr.Kind.String()+": "+cerr.Error())
		return
	}
	img, err := chart.RenderPNG(fig)
	if err != nil {
		writeDetail(w, http.StatusUnprocessableEntity, err.Error())
		return
	}
	w.Header().Set("Content-Type", "image/png")
	w.Header().Set("Content-Length", strconv.Itoa(len(img)))
	_, _ = w.Write(img)
}

func (s *Server) handleDailyAnalytics(w http.ResponseWriter, r *http.Request) {
	day := s.now().UTC()
	if v := r.URL.Query().Get("date"); v != "" {
		d, err := time.Parse("2006-01-02", v)
		if err != nil {
			writeDetail(w, http.StatusBadRequest, "date must be YYYY-MM-DD")
			return
		}
		day = d
	}
	stats, err := analytics.DailyReport(s.recorder, day)
	if err != nil {
		s.logger.Error("daily analytics", zap.Error(err))
		writeDetail(w, http.StatusInternalServerError, "could not read the query log")
		return
	}
	writeJSON(w, http.StatusOK, stats)
}
