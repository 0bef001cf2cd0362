// Package workspace routes Linear requests to the workspace credential that
// owns a team key.
//
// A Registry holds the configured workspaces in order, creates one remote
// client per workspace on first use, and resolves team keys or issue
// identifiers to the owning workspace's client. Resolved keys are cached for
// the life of the process; a cache miss probes each workspace in
// configuration order and the first workspace that knows the key wins. Team
// keys are assumed unique across workspaces and never to move between them.
package workspace

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/singleflight"

	"github.com/zjrosen/linearmcp/internal/cachemanager"
	"github.com/zjrosen/linearmcp/internal/linear"
	"github.com/zjrosen/linearmcp/internal/log"
	"github.com/zjrosen/linearmcp/internal/metrics"
	"github.com/zjrosen/linearmcp/internal/tracing"
)

// TeamClient is the per-workspace remote capability the registry hands out.
// *linear.Client satisfies it.
type TeamClient interface {
	// GetTeamByKey returns nil, nil when the workspace has no such team.
	GetTeamByKey(ctx context.Context, key string) (*linear.Team, error)
	ListTeams(ctx context.Context) ([]linear.Team, error)
	GetIssue(ctx context.Context, identifier string) (*linear.Issue, error)
	Close() error
}

var _ TeamClient = (*linear.Client)(nil)

// Workspace is one configured credential.
type Workspace struct {
	Name   string
	APIKey string
}

// ClientFactory builds the client for a workspace. It is called at most once
// per workspace between CloseAll calls.
type ClientFactory func(ws Workspace) TeamClient

// LinearClientFactory returns a factory producing *linear.Client values that
// share one endpoint and timeout.
func LinearClientFactory(apiURL string, timeout time.Duration) ClientFactory {
	return func(ws Workspace) TeamClient {
		return linear.NewClient(ws.APIKey, linear.WithAPIURL(apiURL), linear.WithTimeout(timeout))
	}
}

// TeamCache maps upper-cased team keys to workspace names.
type TeamCache = cachemanager.CacheManager[string, string]

// NewTeamCache returns an empty, never-expiring team cache.
func NewTeamCache() TeamCache {
	return cachemanager.NewInMemoryCacheManager[string, string]("team-workspace", cachemanager.NoExpiration, 0)
}

// Registry resolves team keys to workspace clients. Safe for concurrent use.
type Registry struct {
	workspaces []Workspace
	index      map[string]int

	factory      ClientFactory
	tracer       trace.Tracer
	metrics      *metrics.Registry
	probeTimeout time.Duration

	mu      sync.Mutex
	clients map[string]TeamClient
	created []string // creation order, so CloseAll is deterministic

	teams  TeamCache
	probes singleflight.Group
}

// Option configures a Registry.
type Option func(*Registry)

// WithClientFactory overrides how workspace clients are built.
func WithClientFactory(f ClientFactory) Option {
	return func(r *Registry) {
		if f != nil {
			r.factory = f
		}
	}
}

// WithTeamCache supplies the team-key cache.
func WithTeamCache(c TeamCache) Option {
	return func(r *Registry) {
		if c != nil {
			r.teams = c
		}
	}
}

// WithTracer records resolution spans on t.
func WithTracer(t trace.Tracer) Option {
	return func(r *Registry) {
		if t != nil {
			r.tracer = t
		}
	}
}

// ProbeTimeout is the default bound for probing n workspaces whose clients
// time out after perCall: one call per workspace plus one spare.
func ProbeTimeout(n int, perCall time.Duration) time.Duration {
	return time.Duration(n+1) * perCall
}

// WithProbeTimeout bounds one shared probe sequence. Probes outlive the
// caller that started them, so they are never cancelled by a caller's context.
func WithProbeTimeout(d time.Duration) Option {
	return func(r *Registry) {
		if d > 0 {
			r.probeTimeout = d
		}
	}
}

// WithMetrics records resolution counters on m.
func WithMetrics(m *metrics.Registry) Option {
	return func(r *Registry) {
		r.metrics = m
	}
}

// New creates a Registry over workspaces, kept in the given order. Names must
// be non-empty and unique.
func New(workspaces []Workspace, opts ...Option) (*Registry, error) {
	if len(workspaces) == 0 {
		return nil, ErrNoWorkspaces
	}

	r := &Registry{
		workspaces:   make([]Workspace, len(workspaces)),
		index:        make(map[string]int, len(workspaces)),
		factory:      LinearClientFactory(linear.DefaultAPIURL, linear.DefaultTimeout),
		tracer:       tracing.NoopTracer(),
		probeTimeout: ProbeTimeout(len(workspaces), linear.DefaultTimeout),
		clients:      make(map[string]TeamClient),
		teams:        NewTeamCache(),
	}
	copy(r.workspaces, workspaces)
	for i, ws := range r.workspaces {
		if ws.Name == "" {
			return nil, fmt.Errorf("workspace %d: name is required", i)
		}
		if _, dup := r.index[ws.Name]; dup {
			return nil, fmt.Errorf("workspace %q configured more than once", ws.Name)
		}
		r.index[ws.Name] = i
	}

	for _, opt := range opts {
		opt(r)
	}
	return r, nil
}

// WorkspaceNames returns the configured names in configuration order.
func (r *Registry) WorkspaceNames() []string {
	names := make([]string, len(r.workspaces))
	for i, ws := range r.workspaces {
		names[i] = ws.Name
	}
	return names
}

// GetClient returns the client for name, creating it on first use.
func (r *Registry) GetClient(name string) (TeamClient, error) {
	i, ok := r.index[name]
	if !ok {
		return nil, &UnknownWorkspaceError{Name: name, Available: r.WorkspaceNames()}
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if c, ok := r.clients[name]; ok {
		return c, nil
	}
	c := r.factory(r.workspaces[i])
	r.clients[name] = c
	r.created = append(r.created, name)
	r.metrics.ClientCreated(name)
	log.Debug(log.CatRegistry, "created workspace client", "workspace", name)
	return c, nil
}

// Resolution is a resolved team key with its owning workspace and client.
type Resolution struct {
	TeamKey   string
	Workspace string
	Client    TeamClient
}

// ResolveClientForTeam returns the client of the workspace that owns teamKey.
// The key is case-insensitive.
func (r *Registry) ResolveClientForTeam(ctx context.Context, teamKey string) (TeamClient, error) {
	res, err := r.ResolveTeam(ctx, teamKey)
	if err != nil {
		return nil, err
	}
	return res.Client, nil
}

// ResolveClientForIssue extracts the team key from an identifier such as
// "FAVRES-123" and resolves it. Malformed identifiers fail without probing.
func (r *Registry) ResolveClientForIssue(ctx context.Context, identifier string) (TeamClient, error) {
	res, err := r.ResolveIssue(ctx, identifier)
	if err != nil {
		return nil, err
	}
	return res.Client, nil
}

// ResolveTeam is ResolveClientForTeam that also reports the workspace name.
func (r *Registry) ResolveTeam(ctx context.Context, teamKey string) (Resolution, error) {
	name, err := r.ResolveWorkspaceForTeam(ctx, teamKey)
	if err != nil {
		return Resolution{}, err
	}
	client, err := r.GetClient(name)
	if err != nil {
		return Resolution{}, err
	}
	return Resolution{TeamKey: NormalizeTeamKey(teamKey), Workspace: name, Client: client}, nil
}

// ResolveIssue is ResolveClientForIssue that also reports the workspace name.
func (r *Registry) ResolveIssue(ctx context.Context, identifier string) (Resolution, error) {
	teamKey, _, err := ParseIssueIdentifier(identifier)
	if err != nil {
		return Resolution{}, err
	}
	return r.ResolveTeam(ctx, teamKey)
}

// ResolveWorkspaceForTeam returns the name of the workspace that owns teamKey.
func (r *Registry) ResolveWorkspaceForTeam(ctx context.Context, teamKey string) (name string, err error) {
	key := NormalizeTeamKey(teamKey)

	ctx, span := r.tracer.Start(ctx, tracing.SpanResolveTeam,
		trace.WithAttributes(attribute.String(tracing.AttrTeamKey, key)))
	defer func() {
		if name != "" {
			span.SetAttributes(attribute.String(tracing.AttrWorkspace, name))
		}
		tracing.End(span, err)
	}()

	if cached, ok := r.cachedWorkspace(ctx, key); ok {
		span.SetAttributes(attribute.Bool(tracing.AttrCacheHit, true))
		r.metrics.CacheHit()
		return cached, nil
	}
	span.SetAttributes(attribute.Bool(tracing.AttrCacheHit, false))
	r.metrics.CacheMiss()

	if err := ctx.Err(); err != nil {
		return "", fmt.Errorf("resolve team %s: %w", key, err)
	}

	// Concurrent misses for one key share a single probe sequence. It runs
	// detached from every caller; each caller waits only as long as its own
	// context allows.
	ch := r.probes.DoChan(key, func() (any, error) {
		probeCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), r.probeTimeout)
		defer cancel()
		return r.probe(probeCtx, key)
	})
	select {
	case <-ctx.Done():
		return "", fmt.Errorf("resolve team %s: %w", key, ctx.Err())
	case res := <-ch:
		if res.Err != nil {
			return "", res.Err
		}
		return res.Val.(string), nil
	}
}

// cachedWorkspace looks key up, ignoring entries that name an unconfigured workspace.
func (r *Registry) cachedWorkspace(ctx context.Context, key string) (string, bool) {
	name, ok := r.teams.Get(ctx, key)
	if !ok {
		return "", false
	}
	if _, configured := r.index[name]; !configured {
		log.Warn(log.CatRegistry, "dropping cache entry for unconfigured workspace", "team", key, "workspace", name)
		_ = r.teams.Delete(ctx, key)
		r.metrics.CacheSize(r.teams.Count())
		return "", false
	}
	return name, true
}

// probe asks each workspace in order whether it knows key. Remote failures
// are logged and skipped; only cancellation of ctx stops the search early.
func (r *Registry) probe(ctx context.Context, key string) (string, error) {
	for _, ws := range r.workspaces {
		if err := ctx.Err(); err != nil {
			return "", fmt.Errorf("resolve team %s: %w", key, err)
		}

		found, err := r.probeWorkspace(ctx, ws.Name, key)
		if err != nil {
			if ctx.Err() != nil {
				return "", fmt.Errorf("resolve team %s: %w", key, ctx.Err())
			}
			log.Warn(log.CatRegistry, "probe failed, trying next workspace",
				"team", key, "workspace", ws.Name, "error", err)
			continue
		}
		if found {
			r.teams.Set(ctx, key, ws.Name, cachemanager.NoExpiration)
			r.metrics.CacheSize(r.teams.Count())
			log.Debug(log.CatRegistry, "resolved team", "team", key, "workspace", ws.Name)
			return ws.Name, nil
		}
	}

	return "", &TeamNotFoundError{TeamKey: key, Searched: r.WorkspaceNames()}
}

func (r *Registry) probeWorkspace(ctx context.Context, name, key string) (found bool, err error) {
	ctx, span := r.tracer.Start(ctx, tracing.SpanProbe,
		trace.WithAttributes(
			attribute.String(tracing.AttrWorkspace, name),
			attribute.String(tracing.AttrTeamKey, key),
		))

	outcome := tracing.ProbeNotFound
	defer func() {
		span.SetAttributes(attribute.String(tracing.AttrProbeOutcome, outcome))
		r.metrics.Probe(name, outcome)
		tracing.End(span, err)
	}()

	client, err := r.GetClient(name)
	if err != nil {
		outcome = tracing.ProbeError
		return false, err
	}
	team, err := client.GetTeamByKey(ctx, key)
	if err != nil {
		outcome = tracing.ProbeError
		return false, err
	}
	if team == nil {
		return false, nil
	}
	outcome = tracing.ProbeFound
	return true, nil
}

// TeamSummary is one team in a workspace report.
type TeamSummary struct {
	Key  string `json:"key" yaml:"key"`
	Name string `json:"name" yaml:"name"`
	ID   string `json:"id" yaml:"id"`
}

// WorkspaceTeams is the listing outcome for one workspace. Error is set and
// Teams is empty when the listing failed.
type WorkspaceTeams struct {
	Workspace string        `json:"workspace" yaml:"workspace"`
	Teams     []TeamSummary `json:"teams" yaml:"teams"`
	Error     string        `json:"error,omitempty" yaml:"error,omitempty"`
}

// Report is the result of ListAllWorkspacesWithTeams.
type Report struct {
	Workspaces []WorkspaceTeams `json:"workspaces" yaml:"workspaces"`
}

// Failed returns the workspaces whose listing failed.
func (r Report) Failed() []string {
	var out []string
	for _, ws := range r.Workspaces {
		if ws.Error != "" {
			out = append(out, ws.Workspace)
		}
	}
	return out
}

// ListAllWorkspacesWithTeams lists the teams of every workspace in order and
// caches each returned key. A failing workspace is reported with its error and
// an empty team list; the remaining workspaces are still listed.
func (r *Registry) ListAllWorkspacesWithTeams(ctx context.Context) Report {
	ctx, span := r.tracer.Start(ctx, tracing.SpanListWorkspaces,
		trace.WithAttributes(attribute.Int(tracing.AttrWorkspaceCount, len(r.workspaces))))
	defer span.End()

	report := Report{Workspaces: make([]WorkspaceTeams, 0, len(r.workspaces))}
	for _, ws := range r.workspaces {
		entry := WorkspaceTeams{Workspace: ws.Name, Teams: []TeamSummary{}}

		teams, err := r.listTeams(ctx, ws.Name)
		if err != nil {
			log.Warn(log.CatRegistry, "listing teams failed", "workspace", ws.Name, "error", err)
			entry.Error = err.Error()
			r.metrics.Listing(ws.Name, false)
			report.Workspaces = append(report.Workspaces, entry)
			continue
		}

		for _, team := range teams {
			r.teams.Set(ctx, NormalizeTeamKey(team.Key), ws.Name, cachemanager.NoExpiration)
			entry.Teams = append(entry.Teams, TeamSummary{Key: team.Key, Name: team.Name, ID: team.ID})
		}
		r.metrics.Listing(ws.Name, true)
		r.metrics.CacheSize(r.teams.Count())
		report.Workspaces = append(report.Workspaces, entry)
	}
	return report
}

func (r *Registry) listTeams(ctx context.Context, name string) ([]linear.Team, error) {
	client, err := r.GetClient(name)
	if err != nil {
		return nil, err
	}
	return client.ListTeams(ctx)
}

// CachedTeams returns a snapshot of the team-key cache.
func (r *Registry) CachedTeams(ctx context.Context) map[string]string {
	return r.teams.Items(ctx)
}

// ClientCount returns how many workspace clients currently exist.
func (r *Registry) ClientCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.clients)
}

// CloseAll closes every created client once and forgets them. The registry
// stays usable; clients are recreated on next access. Close errors are joined
// and returned after every client has been closed.
func (r *Registry) CloseAll() error {
	r.mu.Lock()
	clients := r.clients
	order := r.created
	r.clients = make(map[string]TeamClient)
	r.created = nil
	r.mu.Unlock()

	var errs []error
	for _, name := range order {
		if err := clients[name].Close(); err != nil {
			log.ErrorErr(log.CatRegistry, "closing workspace client", err, "workspace", name)
			errs = append(errs, fmt.Errorf("close %s: %w", name, err))
		}
	}
	return errors.Join(errs...)
}
