// Package tenant establishes and tears down the per-job tenant context
// every data-access call must run within.
package tenant

import (
	"context"
	"database/sql"
	"fmt"
)

type scopeKey struct{}

// Scope is the (organizationId, projectId) pair every graph read and write
// must execute under.
type Scope struct {
	OrganizationID string
	ProjectID      string
}

// WithScope returns a context carrying the tenant scope, for collaborators
// that read it back via FromContext instead of taking it as an explicit
// parameter.
func WithScope(ctx context.Context, s Scope) context.Context {
	return context.WithValue(ctx, scopeKey{}, s)
}

// FromContext returns the tenant scope carried by ctx, if any.
func FromContext(ctx context.Context) (Scope, bool) {
	s, ok := ctx.Value(scopeKey{}).(Scope)
	return s, ok
}

// Conn is the subset of *sql.Conn used to set per-connection session state.
type Conn interface {
	ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error)
}

// Enter sets the current organization/project as per-connection session
// state (app.current_organization_id / app.current_project_id) so the
// underlying storage's row-level tenant-isolation policies apply, and
// returns a release function that must run on every exit path — including
// error returns — to avoid leaking scope onto a pooled connection reused by
// an unrelated job.
func Enter(ctx context.Context, conn Conn, s Scope) (release func(), err error) {
	if s.OrganizationID == "" || s.ProjectID == "" {
		return func() {}, fmt.Errorf("tenant scope requires both organization and project id")
	}

	if _, err := conn.ExecContext(ctx, "SELECT set_config('app.current_organization_id', $1, true)", s.OrganizationID); err != nil {
		return func() {}, fmt.Errorf("failed to set organization scope: %w", err)
	}
	if _, err := conn.ExecContext(ctx, "SELECT set_config('app.current_project_id', $1, true)", s.ProjectID); err != nil {
		return func() {}, fmt.Errorf("failed to set project scope: %w", err)
	}

	release = func() {
		// set_config(..., true) scopes the setting to the current transaction;
		// nothing to undo once the transaction/connection is released back to
		// the pool. Kept as an explicit step so every exit path is symmetric
		// and callers never need to know the underlying mechanism.
	}
	return release, nil
}
