package tracing

import (
	"context"

	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"
)

// Span attribute keys.
const (
	AttrTeamKey        = "linear.team.key"
	AttrIssueID        = "linear.issue.identifier"
	AttrWorkspace      = "linear.workspace"
	AttrCacheHit       = "registry.cache.hit"
	AttrProbeOutcome   = "registry.probe.outcome"
	AttrWorkspaceCount = "registry.workspace.count"
	AttrMCPToolName    = "mcp.tool.name"
)

// Span names.
const (
	SpanResolveTeam    = "registry.resolve_team"
	SpanProbe          = "registry.probe"
	SpanListWorkspaces = "registry.list_workspaces"
	SpanPrefixMCP      = "mcp.tool."
)

// Probe outcomes recorded on probe spans and metrics.
const (
	ProbeFound    = "found"
	ProbeNotFound = "not_found"
	ProbeError    = "error"
)

// NoopTracer returns a tracer that records nothing.
func NoopTracer() trace.Tracer {
	return noop.NewTracerProvider().Tracer("noop")
}

// End records err on span (if any) and ends it.
func End(span trace.Span, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	} else {
		span.SetStatus(codes.Ok, "")
	}
	span.End()
}

// TraceIDFromContext returns the active trace ID, or "" when none is recording.
func TraceIDFromContext(ctx context.Context) string {
	sc := trace.SpanContextFromContext(ctx)
	if !sc.HasTraceID() {
		return ""
	}
	return sc.TraceID().String()
}
