package tenant

import (
	"context"
	"database/sql"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeConn struct {
	queries []string
	failOn  string
}

func (f *fakeConn) ExecContext(_ context.Context, query string, _ ...interface{}) (sql.Result, error) {
	f.queries = append(f.queries, query)
	if f.failOn != "" && query == f.failOn {
		return nil, assert.AnError
	}
	return nil, nil
}

func TestEnterSetsSessionVariables(t *testing.T) {
	conn := &fakeConn{}
	release, err := Enter(context.Background(), conn, Scope{OrganizationID: "org-1", ProjectID: "proj-1"})
	require.NoError(t, err)
	defer release()

	require.Len(t, conn.queries, 2)
}

func TestEnterRejectsIncompleteScope(t *testing.T) {
	conn := &fakeConn{}
	_, err := Enter(context.Background(), conn, Scope{OrganizationID: "org-1"})
	require.Error(t, err)
}

func TestWithScopeRoundTrips(t *testing.T) {
	ctx := WithScope(context.Background(), Scope{OrganizationID: "org-1", ProjectID: "proj-1"})
	s, ok := FromContext(ctx)
	require.True(t, ok)
	assert.Equal(t, "org-1", s.OrganizationID)
	assert.Equal(t, "proj-1", s.ProjectID)
}

func TestFromContextMissingScope(t *testing.T) {
	_, ok := FromContext(context.Background())
	assert.False(t, ok)
}
