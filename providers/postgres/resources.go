package postgres

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"

	"github.com/weft-io/weft/internal/provider"
)

// grantablePrivileges are the database-level privileges a grant may
// name.
var grantablePrivileges = map[string]bool{
	"CONNECT":   true,
	"CREATE":    true,
	"TEMPORARY": true,
	"ALL":       true,
}

func unmarshalStrict(data []byte, v any) error {
	dec := json.NewDecoder(bytes.NewReader(data))
	return dec.Decode(v)
}

type roleConfig struct {
	Name     string `json:"name"`
	Password string `json:"password"`
	Login    bool   `json:"login"`
}

type roleState struct {
	Name  string `json:"name"`
	Login bool   `json:"login"`
}

func (p *Provider) applyRole(ctx context.Context, req *provider.ApplyRequest) (*provider.ApplyResponse, error) {
	var desired roleConfig
	if err := unmarshalStrict(req.DesiredConfigJSON, &desired); err != nil {
		return nil, fmt.Errorf("failed to unmarshal desired: %w", err)
	}

	conn, err := p.connect(ctx)
	if err != nil {
		return nil, err
	}
	defer conn.Close(ctx)

	option := "NOLOGIN"
	if desired.Login {
		option = "LOGIN"
	}

	// Role names cannot be bound parameters; sanitize the identifier.
	ident := pgx.Identifier{desired.Name}.Sanitize()

	var stmt string
	if req.Action == provider.ActionUpdate {
		stmt = fmt.Sprintf("ALTER ROLE %s %s", ident, option)
	} else {
		stmt = fmt.Sprintf("CREATE ROLE %s %s", ident, option)
	}
	if desired.Password != "" {
		stmt += fmt.Sprintf(" PASSWORD %s", quoteLiteral(desired.Password))
	}

	if _, err := conn.Exec(ctx, stmt); err != nil {
		return nil, fmt.Errorf("failed to apply role %s: %w", desired.Name, err)
	}

	state := roleState{Name: desired.Name, Login: desired.Login}
	stateJSON, _ := json.Marshal(state)
	return &provider.ApplyResponse{NewStateJSON: stateJSON}, nil
}

func (p *Provider) readRole(ctx context.Context, req *provider.ReadRequest) (*provider.ReadResponse, error) {
	var current roleState
	if err := unmarshalStrict(req.CurrentStateJSON, &current); err != nil {
		return nil, fmt.Errorf("failed to unmarshal current state: %w", err)
	}

	conn, err := p.connect(ctx)
	if err != nil {
		return nil, err
	}
	defer conn.Close(ctx)

	var login bool
	err = conn.QueryRow(ctx,
		`SELECT rolcanlogin FROM pg_roles WHERE rolname = $1`, current.Name).Scan(&login)
	if noRows(err) {
		return &provider.ReadResponse{Exists: false}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read role %s: %w", current.Name, err)
	}

	current.Login = login
	stateJSON, _ := json.Marshal(current)
	return &provider.ReadResponse{Exists: true, NewStateJSON: stateJSON}, nil
}

func (p *Provider) deleteRole(ctx context.Context, req *provider.DeleteRequest) (*provider.DeleteResponse, error) {
	var prior roleState
	if err := unmarshalStrict(req.CurrentStateJSON, &prior); err != nil {
		return nil, fmt.Errorf("failed to unmarshal current state: %w", err)
	}

	conn, err := p.connect(ctx)
	if err != nil {
		return nil, err
	}
	defer conn.Close(ctx)

	stmt := fmt.Sprintf("DROP ROLE IF EXISTS %s", pgx.Identifier{prior.Name}.Sanitize())
	if _, err := conn.Exec(ctx, stmt); err != nil {
		return nil, fmt.Errorf("failed to drop role %s: %w", prior.Name, err)
	}
	return &provider.DeleteResponse{}, nil
}

type databaseConfig struct {
	Name  string `json:"name"`
	Owner string `json:"owner"`
}

type databaseState struct {
	Name  string `json:"name"`
	Owner string `json:"owner,omitempty"`
}

func (p *Provider) applyDatabase(ctx context.Context, req *provider.ApplyRequest) (*provider.ApplyResponse, error) {
	var desired databaseConfig
	if err := unmarshalStrict(req.DesiredConfigJSON, &desired); err != nil {
		return nil, fmt.Errorf("failed to unmarshal desired: %w", err)
	}

	conn, err := p.connect(ctx)
	if err != nil {
		return nil, err
	}
	defer conn.Close(ctx)

	ident := pgx.Identifier{desired.Name}.Sanitize()

	if req.Action == provider.ActionUpdate {
		if desired.Owner != "" {
			stmt := fmt.Sprintf("ALTER DATABASE %s OWNER TO %s",
				ident, pgx.Identifier{desired.Owner}.Sanitize())
			if _, err := conn.Exec(ctx, stmt); err != nil {
				return nil, fmt.Errorf("failed to alter database %s: %w", desired.Name, err)
			}
		}
	} else {
		stmt := fmt.Sprintf("CREATE DATABASE %s", ident)
		if desired.Owner != "" {
			stmt += fmt.Sprintf(" OWNER %s", pgx.Identifier{desired.Owner}.Sanitize())
		}
		if _, err := conn.Exec(ctx, stmt); err != nil {
			return nil, fmt.Errorf("failed to create database %s: %w", desired.Name, err)
		}
	}

	state := databaseState{Name: desired.Name, Owner: desired.Owner}
	stateJSON, _ := json.Marshal(state)
	return &provider.ApplyResponse{NewStateJSON: stateJSON}, nil
}

func (p *Provider) readDatabase(ctx context.Context, req *provider.ReadRequest) (*provider.ReadResponse, error) {
	var current databaseState
	if err := unmarshalStrict(req.CurrentStateJSON, &current); err != nil {
		return nil, fmt.Errorf("failed to unmarshal current state: %w", err)
	}

	conn, err := p.connect(ctx)
	if err != nil {
		return nil, err
	}
	defer conn.Close(ctx)

	var owner string
	err = conn.QueryRow(ctx, `
		SELECT pg_get_userbyid(datdba) FROM pg_database WHERE datname = $1`,
		current.Name).Scan(&owner)
	if noRows(err) {
		return &provider.ReadResponse{Exists: false}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read database %s: %w", current.Name, err)
	}

	current.Owner = owner
	stateJSON, _ := json.Marshal(current)
	return &provider.ReadResponse{Exists: true, NewStateJSON: stateJSON}, nil
}

func (p *Provider) deleteDatabase(ctx context.Context, req *provider.DeleteRequest) (*provider.DeleteResponse, error) {
	var prior databaseState
	if err := unmarshalStrict(req.CurrentStateJSON, &prior); err != nil {
		return nil, fmt.Errorf("failed to unmarshal current state: %w", err)
	}

	conn, err := p.connect(ctx)
	if err != nil {
		return nil, err
	}
	defer conn.Close(ctx)

	stmt := fmt.Sprintf("DROP DATABASE IF EXISTS %s", pgx.Identifier{prior.Name}.Sanitize())
	if _, err := conn.Exec(ctx, stmt); err != nil {
		return nil, fmt.Errorf("failed to drop database %s: %w", prior.Name, err)
	}
	return &provider.DeleteResponse{}, nil
}

type grantConfig struct {
	Role       string   `json:"role"`
	Database   string   `json:"database"`
	Privileges []string `json:"privileges"`
}

type grantState struct {
	Role       string   `json:"role"`
	Database   string   `json:"database"`
	Privileges []string `json:"privileges"`
}

func (p *Provider) applyGrant(ctx context.Context, req *provider.ApplyRequest) (*provider.ApplyResponse, error) {
	var desired grantConfig
	if err := unmarshalStrict(req.DesiredConfigJSON, &desired); err != nil {
		return nil, fmt.Errorf("failed to unmarshal desired: %w", err)
	}

	privs, err := normalizePrivileges(desired.Privileges)
	if err != nil {
		return nil, err
	}

	conn, err := p.connect(ctx)
	if err != nil {
		return nil, err
	}
	defer conn.Close(ctx)

	roleIdent := pgx.Identifier{desired.Role}.Sanitize()
	dbIdent := pgx.Identifier{desired.Database}.Sanitize()

	// An update re-grants from scratch so removed privileges are
	// actually revoked.
	if req.Action == provider.ActionUpdate {
		revoke := fmt.Sprintf("REVOKE ALL ON DATABASE %s FROM %s", dbIdent, roleIdent)
		if _, err := conn.Exec(ctx, revoke); err != nil {
			return nil, fmt.Errorf("failed to revoke privileges: %w", err)
		}
	}

	grant := fmt.Sprintf("GRANT %s ON DATABASE %s TO %s",
		strings.Join(privs, ", "), dbIdent, roleIdent)
	if _, err := conn.Exec(ctx, grant); err != nil {
		return nil, fmt.Errorf("failed to grant privileges: %w", err)
	}

	state := grantState{Role: desired.Role, Database: desired.Database, Privileges: privs}
	stateJSON, _ := json.Marshal(state)
	return &provider.ApplyResponse{NewStateJSON: stateJSON}, nil
}

func (p *Provider) deleteGrant(ctx context.Context, req *provider.DeleteRequest) (*provider.DeleteResponse, error) {
	var prior grantState
	if err := unmarshalStrict(req.CurrentStateJSON, &prior); err != nil {
		return nil, fmt.Errorf("failed to unmarshal current state: %w", err)
	}

	conn, err := p.connect(ctx)
	if err != nil {
		return nil, err
	}
	defer conn.Close(ctx)

	stmt := fmt.Sprintf("REVOKE ALL ON DATABASE %s FROM %s",
		pgx.Identifier{prior.Database}.Sanitize(),
		pgx.Identifier{prior.Role}.Sanitize())
	if _, err := conn.Exec(ctx, stmt); err != nil {
		return nil, fmt.Errorf("failed to revoke privileges: %w", err)
	}
	return &provider.DeleteResponse{}, nil
}

// noRows matches pgx.ErrNoRows even when the driver wraps it.
func noRows(err error) bool {
	return errors.Is(err, pgx.ErrNoRows)
}

func normalizePrivileges(privileges []string) ([]string, error) {
	if len(privileges) == 0 {
		return nil, fmt.Errorf("grant requires at least one privilege")
	}
	var out []string
	for _, priv := range privileges {
		upper := strings.ToUpper(strings.TrimSpace(priv))
		if !grantablePrivileges[upper] {
			return nil, fmt.Errorf("unsupported privilege %q", priv)
		}
		out = append(out, upper)
	}
	return out, nil
}

// quoteLiteral escapes a string literal for inline use where bound
// parameters are not allowed.
func quoteLiteral(s string) string {
	return "'" + strings.ReplaceAll(s, "'", "''") + "'"
}
