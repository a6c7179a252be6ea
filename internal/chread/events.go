// Package chread provides read access to the ClickHouse access_events
// table for the events and analytics API endpoints. Writes go through
// internal/storage; this side is query-only.
package chread

import (
	"context"
	"crypto/tls"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/ClickHouse/clickhouse-go/v2"
	"github.com/ClickHouse/clickhouse-go/v2/lib/driver"
	"go.uber.org/zap"
)

// Reader provides read access to the ClickHouse access_events table.
type Reader struct {
	conn   driver.Conn
	logger *zap.Logger
}

// NewReader opens a ClickHouse connection for read queries.
func NewReader(dsn string, logger *zap.Logger) (*Reader, error) {
	opts, err := clickhouse.ParseDSN(dsn)
	if err != nil {
		return nil, fmt.Errorf("NewReader: %w", err)
	}
	if opts.TLS == nil {
		opts.TLS = &tls.Config{}
	}

	conn, err := clickhouse.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("NewReader: %w", err)
	}
	if err := conn.Ping(context.Background()); err != nil {
		return nil, fmt.Errorf("NewReader: %w", err)
	}

	return &Reader{conn: conn, logger: logger}, nil
}

// Close closes the ClickHouse connection.
func (r *Reader) Close() error {
	return r.conn.Close()
}

// EventRow represents a single row from the access_events table.
type EventRow struct {
	RequestID     string
	ProjectID     string
	Timestamp     time.Time
	ContextType   string
	MemberKind    string
	MemberName    string
	ParamTypes    []string
	Verdict       string
	IsShadow      uint8
	Matched       uint8
	Polarity      string
	Reason        string
	UserID        string
	SessionID     string
	TenantID      string
	ClientTraceID string
	LatencyMs     float32
}

// ListEventsParams holds filters and pagination for event listing.
type ListEventsParams struct {
	ProjectID   string
	Verdict     *string
	MemberKind  *string
	ContextType *string
	UserID      *string
	IsShadow    *bool
	StartTime   *time.Time
	EndTime     *time.Time
	Page        int
	PageSize    int
}

const eventColumns = "request_id, project_id, timestamp, " +
	"context_type, member_kind, member_name, param_types, " +
	"verdict, is_shadow, matched, polarity, reason, " +
	"user_id, session_id, tenant_id, client_trace_id, latency_ms"

func scanEventRow(scan func(dest ...any) error) (EventRow, error) {
	var e EventRow
	err := scan(
		&e.RequestID, &e.ProjectID, &e.Timestamp,
		&e.ContextType, &e.MemberKind, &e.MemberName, &e.ParamTypes,
		&e.Verdict, &e.IsShadow, &e.Matched, &e.Polarity, &e.Reason,
		&e.UserID, &e.SessionID, &e.TenantID, &e.ClientTraceID, &e.LatencyMs,
	)
	return e, err
}

// ListEvents returns paginated, filtered access events and the total count.
func (r *Reader) ListEvents(ctx context.Context, params ListEventsParams) ([]EventRow, int, error) {
	conditions := []string{"project_id = @project_id"}
	args := []any{
		clickhouse.Named("project_id", params.ProjectID),
	}

	if params.Verdict != nil {
		conditions = append(conditions, "verdict = @verdict")
		args = append(args, clickhouse.Named("verdict", *params.Verdict))
	}
	if params.MemberKind != nil {
		conditions = append(conditions, "member_kind = @member_kind")
		args = append(args, clickhouse.Named("member_kind", *params.MemberKind))
	}
	if params.ContextType != nil {
		conditions = append(conditions, "context_type = @context_type")
		args = append(args, clickhouse.Named("context_type", *params.ContextType))
	}
	if params.UserID != nil {
		conditions = append(conditions, "user_id = @user_id")
		args = append(args, clickhouse.Named("user_id", *params.UserID))
	}
	if params.IsShadow != nil {
		var v uint8
		if *params.IsShadow {
			v = 1
		}
		conditions = append(conditions, "is_shadow = @is_shadow")
		args = append(args, clickhouse.Named("is_shadow", v))
	}
	if params.StartTime != nil {
		conditions = append(conditions, "timestamp >= @start_time")
		args = append(args, clickhouse.Named("start_time", *params.StartTime))
	}
	if params.EndTime != nil {
		conditions = append(conditions, "timestamp <= @end_time")
		args = append(args, clickhouse.Named("end_time", *params.EndTime))
	}

	where := strings.Join(conditions, " AND ")
	offset := (params.Page - 1) * params.PageSize

	// Count query
	var total uint64
	countQuery := fmt.Sprintf("SELECT count() FROM access_events WHERE %s", where)
	if err := r.conn.QueryRow(ctx, countQuery, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("ListEvents count: %w", err)
	}

	// Data query
	dataQuery := fmt.Sprintf(
		"SELECT "+eventColumns+" FROM access_events WHERE %s "+
			"ORDER BY timestamp DESC "+
			"LIMIT @limit OFFSET @offset",
		where,
	)
	args = append(args,
		clickhouse.Named("limit", uint32(params.PageSize)),
		clickhouse.Named("offset", uint32(offset)),
	)

	rows, err := r.conn.Query(ctx, dataQuery, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("ListEvents query: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var events []EventRow
	for rows.Next() {
		e, err := scanEventRow(rows.Scan)
		if err != nil {
			return nil, 0, fmt.Errorf("ListEvents scan: %w", err)
		}
		events = append(events, e)
	}

	return events, int(total), rows.Err()
}

// GetEvent returns a single event by project ID and request ID, or nil
// if not found.
func (r *Reader) GetEvent(ctx context.Context, projectID, requestID string) (*EventRow, error) {
	row := r.conn.QueryRow(ctx,
		"SELECT "+eventColumns+" FROM access_events "+
			"WHERE project_id = @project_id AND request_id = @request_id",
		clickhouse.Named("project_id", projectID),
		clickhouse.Named("request_id", requestID),
	)

	e, err := scanEventRow(row.Scan)
	if err != nil {
		// ClickHouse doesn't return sql.ErrNoRows, so check for empty result
		return nil, fmt.Errorf("GetEvent: %w", err)
	}
	if e.RequestID == "" {
		return nil, nil
	}
	return &e, nil
}

// SummaryStats holds aggregate counts.
type SummaryStats struct {
	TotalChecks int `json:"total_checks"`
	Denies      int `json:"denies"`
	Allows      int `json:"allows"`
}

// TimeSeriesBucket holds an hourly count.
type TimeSeriesBucket struct {
	Hour  string `json:"hour"`
	Count int    `json:"count"`
}

// MemberCount holds one denied member and its count.
type MemberCount struct {
	ContextType string `json:"context_type"`
	MemberKind  string `json:"member_kind"`
	MemberName  string `json:"member_name"`
	Count       int    `json:"count"`
}

// TypeCount holds a context type and its count.
type TypeCount struct {
	ContextType string `json:"context_type"`
	Count       int    `json:"count"`
}

// ShadowReportStats holds shadow mode analysis.
type ShadowReportStats struct {
	Total     int `json:"total"`
	WouldDeny int `json:"would_deny"`
}

// LatencyStats holds latency percentiles.
type LatencyStats struct {
	P50 float64 `json:"p50"`
	P95 float64 `json:"p95"`
	P99 float64 `json:"p99"`
}

// AnalyticsResult holds all analytics aggregations.
type AnalyticsResult struct {
	Summary            SummaryStats       `json:"summary"`
	DeniesOverTime     []TimeSeriesBucket `json:"denies_over_time"`
	TopDeniedMembers   []MemberCount      `json:"top_denied_members"`
	TopContextTypes    []TypeCount        `json:"top_context_types"`
	ShadowReport       ShadowReportStats  `json:"shadow_report"`
	LatencyPercentiles LatencyStats       `json:"latency_percentiles"`
}

// GetAnalytics returns aggregated analytics for a project over the
// given number of days.
func (r *Reader) GetAnalytics(ctx context.Context, projectID string, days int) (*AnalyticsResult, error) {
	now := time.Now().UTC()
	rangeStart := now.Add(-time.Duration(days) * 24 * time.Hour)
	dayStart := now.Add(-24 * time.Hour)

	baseArgs := []any{
		clickhouse.Named("project_id", projectID),
		clickhouse.Named("range_start", rangeStart),
	}

	result := &AnalyticsResult{}

	// Summary counts
	var totalChecks, denies, allows uint64
	err := r.conn.QueryRow(ctx,
		"SELECT count() as total_checks, "+
			"countIf(verdict = 'deny') as denies, "+
			"countIf(verdict = 'allow') as allows "+
			"FROM access_events "+
			"WHERE project_id = @project_id AND timestamp >= @range_start",
		baseArgs...,
	).Scan(&totalChecks, &denies, &allows)
	if err != nil {
		return nil, fmt.Errorf("GetAnalytics summary: %w", err)
	}
	result.Summary = SummaryStats{
		TotalChecks: int(totalChecks),
		Denies:      int(denies),
		Allows:      int(allows),
	}

	// Denies over time (hourly)
	dotRows, err := r.conn.Query(ctx,
		"SELECT toStartOfHour(timestamp) as hour, count() as count "+
			"FROM access_events "+
			"WHERE project_id = @project_id AND verdict = 'deny' "+
			"AND timestamp >= @range_start "+
			"GROUP BY hour ORDER BY hour",
		baseArgs...,
	)
	if err != nil {
		return nil, fmt.Errorf("GetAnalytics denies_over_time: %w", err)
	}
	defer func() { _ = dotRows.Close() }()
	for dotRows.Next() {
		var hour time.Time
		var count uint64
		if err := dotRows.Scan(&hour, &count); err != nil {
			return nil, fmt.Errorf("GetAnalytics denies_over_time scan: %w", err)
		}
		result.DeniesOverTime = append(result.DeniesOverTime, TimeSeriesBucket{
			Hour:  hour.Format(time.RFC3339),
			Count: int(count),
		})
	}

	// Top denied members
	memRows, err := r.conn.Query(ctx,
		"SELECT context_type, member_kind, member_name, count() as count "+
			"FROM access_events "+
			"WHERE project_id = @project_id AND verdict = 'deny' "+
			"AND timestamp >= @range_start "+
			"GROUP BY context_type, member_kind, member_name "+
			"ORDER BY count DESC LIMIT 10",
		baseArgs...,
	)
	if err != nil {
		return nil, fmt.Errorf("GetAnalytics top_denied_members: %w", err)
	}
	defer func() { _ = memRows.Close() }()
	for memRows.Next() {
		var mc MemberCount
		var count uint64
		if err := memRows.Scan(&mc.ContextType, &mc.MemberKind, &mc.MemberName, &count); err != nil {
			return nil, fmt.Errorf("GetAnalytics top_denied_members scan: %w", err)
		}
		mc.Count = int(count)
		result.TopDeniedMembers = append(result.TopDeniedMembers, mc)
	}

	// Top context types (all verdicts — shows what the templates touch)
	typeRows, err := r.conn.Query(ctx,
		"SELECT context_type, count() as count "+
			"FROM access_events "+
			"WHERE project_id = @project_id AND timestamp >= @range_start "+
			"GROUP BY context_type ORDER BY count DESC LIMIT 10",
		baseArgs...,
	)
	if err != nil {
		return nil, fmt.Errorf("GetAnalytics top_context_types: %w", err)
	}
	defer func() { _ = typeRows.Close() }()
	for typeRows.Next() {
		var tc TypeCount
		var count uint64
		if err := typeRows.Scan(&tc.ContextType, &count); err != nil {
			return nil, fmt.Errorf("GetAnalytics top_context_types scan: %w", err)
		}
		tc.Count = int(count)
		result.TopContextTypes = append(result.TopContextTypes, tc)
	}

	// Shadow report
	var shadowTotal, wouldDeny uint64
	err = r.conn.QueryRow(ctx,
		"SELECT count() as total, "+
			"countIf(verdict = 'deny') as would_deny "+
			"FROM access_events "+
			"WHERE project_id = @project_id AND is_shadow = 1 "+
			"AND timestamp >= @range_start",
		baseArgs...,
	).Scan(&shadowTotal, &wouldDeny)
	if err != nil {
		return nil, fmt.Errorf("GetAnalytics shadow_report: %w", err)
	}
	result.ShadowReport = ShadowReportStats{
		Total: int(shadowTotal), WouldDeny: int(wouldDeny),
	}

	// Latency percentiles (last 24h)
	var p50, p95, p99 float64
	err = r.conn.QueryRow(ctx,
		"SELECT quantile(0.5)(latency_ms) as p50, "+
			"quantile(0.95)(latency_ms) as p95, "+
			"quantile(0.99)(latency_ms) as p99 "+
			"FROM access_events "+
			"WHERE project_id = @project_id AND timestamp >= @day_start",
		clickhouse.Named("project_id", projectID),
		clickhouse.Named("day_start", dayStart),
	).Scan(&p50, &p95, &p99)
	if err != nil {
		return nil, fmt.Errorf("GetAnalytics latency: %w", err)
	}
	result.LatencyPercentiles = LatencyStats{
		P50: safeFloat(p50), P95: safeFloat(p95), P99: safeFloat(p99),
	}

	return result, nil
}

// safeFloat maps NaN (empty quantile input) to 0 for JSON encoding.
func safeFloat(f float64) float64 {
	if math.IsNaN(f) {
		return 0
	}
	return f
}
