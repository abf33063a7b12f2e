package postgres

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/jackc/pgx/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/weft-io/weft/internal/provider"
)

func TestNormalizePrivileges(t *testing.T) {
	tests := []struct {
		name    string
		input   []string
		want    []string
		wantErr bool
	}{
		{"uppercases and trims", []string{" connect ", "create"}, []string{"CONNECT", "CREATE"}, false},
		{"all", []string{"ALL"}, []string{"ALL"}, false},
		{"empty", nil, nil, true},
		{"table privilege rejected", []string{"SELECT"}, nil, true},
		{"injection rejected", []string{"CONNECT; DROP TABLE users"}, nil, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := normalizePrivileges(tt.input)
			if tt.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestNoRows(t *testing.T) {
	assert.True(t, noRows(pgx.ErrNoRows))
	assert.True(t, noRows(fmt.Errorf("scan failed: %w", pgx.ErrNoRows)))
	assert.False(t, noRows(errors.New("connection refused")))
	assert.False(t, noRows(nil))
}

func TestQuoteLiteral(t *testing.T) {
	assert.Equal(t, "'plain'", quoteLiteral("plain"))
	assert.Equal(t, "'it''s'", quoteLiteral("it's"))
	assert.Equal(t, "''''", quoteLiteral("'"))
	assert.Equal(t, "''", quoteLiteral(""))
}

func TestConfigure_RequiresDSN(t *testing.T) {
	p := New()

	resp, err := p.Configure(context.Background(), &provider.ConfigureRequest{
		ConfigJSON: []byte(`{}`),
	})
	require.NoError(t, err)
	require.Len(t, resp.Diagnostics, 1)
	assert.Equal(t, provider.SeverityError, resp.Diagnostics[0].Severity)
}

func TestConfigure_StoresDSN(t *testing.T) {
	p := New()

	resp, err := p.Configure(context.Background(), &provider.ConfigureRequest{
		ConfigJSON: []byte(`{"dsn":"postgres://admin:pw@db:5432/postgres"}`),
	})
	require.NoError(t, err)
	assert.Empty(t, resp.Diagnostics)
	assert.Equal(t, "postgres://admin:pw@db:5432/postgres", p.dsn)
}

func TestPlan_CreateWhenNoPriorState(t *testing.T) {
	p := New()

	resp, err := p.Plan(context.Background(), &provider.PlanRequest{
		Type:              "postgres_role",
		Name:              "app",
		DesiredConfigJSON: []byte(`{"name":"app","login":true}`),
	})
	require.NoError(t, err)
	assert.Equal(t, provider.ActionCreate, resp.Action)
}

func TestPlan_DetectsChangedAttributes(t *testing.T) {
	p := New()

	resp, err := p.Plan(context.Background(), &provider.PlanRequest{
		Type:              "postgres_role",
		Name:              "app",
		DesiredConfigJSON: []byte(`{"name":"app","login":false}`),
		PriorStateJSON:    []byte(`{"name":"app","login":true}`),
	})
	require.NoError(t, err)
	assert.Equal(t, provider.ActionUpdate, resp.Action)
	assert.Equal(t, []string{"login"}, resp.ChangedAttributes)
}
