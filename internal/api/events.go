package api

import (
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/memberguard/memberguard/internal/chread"
	"go.uber.org/zap"
)

func (d *Dependencies) handleListEvents(w http.ResponseWriter, r *http.Request) {
	if d.Reader == nil {
		writeJSON(w, http.StatusServiceUnavailable, ErrorResp{Detail: "ClickHouse not configured"})
		return
	}

	q := r.URL.Query()
	projectID := q.Get("project_id")
	if projectID == "" {
		writeJSON(w, http.StatusBadRequest, ErrorResp{Detail: "project_id query parameter is required"})
		return
	}

	params := chread.ListEventsParams{
		ProjectID: projectID,
		Page:      queryInt(q, "page", 1),
		PageSize:  queryInt(q, "page_size", 50),
	}
	if params.PageSize > 200 {
		params.PageSize = 200
	}
	if params.Page < 1 {
		params.Page = 1
	}

	if v := q.Get("verdict"); v != "" {
		params.Verdict = &v
	}
	if v := q.Get("member_kind"); v != "" {
		params.MemberKind = &v
	}
	if v := q.Get("context_type"); v != "" {
		params.ContextType = &v
	}
	if v := q.Get("user_id"); v != "" {
		params.UserID = &v
	}
	if v := q.Get("is_shadow"); v != "" {
		b := v == "true" || v == "1"
		params.IsShadow = &b
	}
	if v := q.Get("start_time"); v != "" {
		if t, err := time.Parse(time.RFC3339, v); err == nil {
			params.StartTime = &t
		}
	}
	if v := q.Get("end_time"); v != "" {
		if t, err := time.Parse(time.RFC3339, v); err == nil {
			params.EndTime = &t
		}
	}

	events, total, err := d.Reader.ListEvents(r.Context(), params)
	if err != nil {
		d.Logger.Error("failed to list events", zap.Error(err))
		writeJSON(w, http.StatusInternalServerError, ErrorResp{Detail: "Failed to list events"})
		return
	}

	resp := EventListResp{
		Events:   make([]AccessEventResp, 0, len(events)),
		Total:    total,
		Page:     params.Page,
		PageSize: params.PageSize,
	}
	for _, e := range events {
		resp.Events = append(resp.Events, eventRowToResp(e))
	}

	writeJSON(w, http.StatusOK, resp)
}

func (d *Dependencies) handleGetEvent(w http.ResponseWriter, r *http.Request) {
	if d.Reader == nil {
		writeJSON(w, http.StatusServiceUnavailable, ErrorResp{Detail: "ClickHouse not configured"})
		return
	}

	requestID := r.PathValue("request_id")
	projectID := r.URL.Query().Get("project_id")
	if projectID == "" {
		writeJSON(w, http.StatusBadRequest, ErrorResp{Detail: "project_id query parameter is required"})
		return
	}

	event, err := d.Reader.GetEvent(r.Context(), projectID, requestID)
	if err != nil {
		d.Logger.Error("failed to get event", zap.Error(err))
		writeJSON(w, http.StatusInternalServerError, ErrorResp{Detail: "Failed to get event"})
		return
	}
	if event == nil {
		writeJSON(w, http.StatusNotFound, ErrorResp{Detail: "Event not found."})
		return
	}

	writeJSON(w, http.StatusOK, eventRowToResp(*event))
}

func (d *Dependencies) handleGetAnalytics(w http.ResponseWriter, r *http.Request) {
	if d.Reader == nil {
		writeJSON(w, http.StatusServiceUnavailable, ErrorResp{Detail: "ClickHouse not configured"})
		return
	}

	q := r.URL.Query()
	projectID := q.Get("project_id")
	if projectID == "" {
		writeJSON(w, http.StatusBadRequest, ErrorResp{Detail: "project_id query parameter is required"})
		return
	}

	days := queryInt(q, "days", 7)
	if days < 1 {
		days = 1
	}
	if days > 90 {
		days = 90
	}

	result, err := d.Reader.GetAnalytics(r.Context(), projectID, days)
	if err != nil {
		d.Logger.Error("failed to get analytics", zap.Error(err))
		writeJSON(w, http.StatusInternalServerError, ErrorResp{Detail: "Failed to get analytics"})
		return
	}

	writeJSON(w, http.StatusOK, AnalyticsResp{
		Summary: SummaryStatsResp{
			TotalChecks: result.Summary.TotalChecks,
			Denies:      result.Summary.Denies,
			Allows:      result.Summary.Allows,
		},
		DeniesOverTime:   toTimeSeriesResp(result.DeniesOverTime),
		TopDeniedMembers: toMemberCountResp(result.TopDeniedMembers),
		TopContextTypes:  toTypeCountResp(result.TopContextTypes),
		ShadowReport: ShadowReportResp{
			Total:     result.ShadowReport.Total,
			WouldDeny: result.ShadowReport.WouldDeny,
		},
		LatencyPercentiles: LatencyPercentilesResp{
			P50: result.LatencyPercentiles.P50,
			P95: result.LatencyPercentiles.P95,
			P99: result.LatencyPercentiles.P99,
		},
	})
}

// eventRowToResp converts a ClickHouse EventRow to the API response.
func eventRowToResp(e chread.EventRow) AccessEventResp {
	return AccessEventResp{
		RequestID:     e.RequestID,
		ProjectID:     e.ProjectID,
		ContextType:   e.ContextType,
		MemberKind:    e.MemberKind,
		MemberName:    nilIfEmpty(e.MemberName),
		ParamTypes:    e.ParamTypes,
		Verdict:       e.Verdict,
		IsShadow:      e.IsShadow == 1,
		Matched:       e.Matched == 1,
		Polarity:      e.Polarity,
		Reason:        nilIfEmpty(e.Reason),
		UserID:        nilIfEmpty(e.UserID),
		SessionID:     nilIfEmpty(e.SessionID),
		TenantID:      nilIfEmpty(e.TenantID),
		ClientTraceID: nilIfEmpty(e.ClientTraceID),
		LatencyMs:     e.LatencyMs,
		Timestamp:     e.Timestamp,
	}
}

func nilIfEmpty(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

func queryInt(q url.Values, key string, defaultVal int) int {
	v := q.Get(key)
	if v == "" {
		return defaultVal
	}
	i, err := strconv.Atoi(v)
	if err != nil {
		return defaultVal
	}
	return i
}

func toTimeSeriesResp(buckets []chread.TimeSeriesBucket) []TimeSeriesBucketResp {
	out := make([]TimeSeriesBucketResp, len(buckets))
	for i, b := range buckets {
		out[i] = TimeSeriesBucketResp{Hour: b.Hour, Count: b.Count}
	}
	return out
}

func toMemberCountResp(members []chread.MemberCount) []MemberCountResp {
	out := make([]MemberCountResp, len(members))
	for i, m := range members {
		out[i] = MemberCountResp{
			ContextType: m.ContextType,
			MemberKind:  m.MemberKind,
			MemberName:  m.MemberName,
			Count:       m.Count,
		}
	}
	return out
}

func toTypeCountResp(types []chread.TypeCount) []TypeCountResp {
	out := make([]TypeCountResp, len(types))
	for i, t := range types {
		out[i] = TypeCountResp{ContextType: t.ContextType, Count: t.Count}
	}
	return out
}
