package catalog

import (
	"context"
	"database/sql"

	"github.com/shishobooks/jellytweak/pkg/errcodes"
)

// Statement is a prepared statement that is bound and executed once per row
// of a phase. Close must be called on every exit path of the phase.
type Statement struct {
	name  string
	query string
	stmt  *sql.Stmt
}

// Prepare compiles query once for repeated execution. The name identifies the
// statement in errors.
func (svc *Service) Prepare(ctx context.Context, name, query string) (*Statement, error) {
	stmt, err := svc.db.DB.PrepareContext(ctx, query)
	if err != nil {
		return nil, errcodes.Store("prepare", name, err)
	}
	return &Statement{name: name, query: query, stmt: stmt}, nil
}

func (s *Statement) Name() string {
	return s.name
}

func (s *Statement) Query() string {
	return s.query
}

// Exec binds args, executes the statement and returns the number of rows it
// changed.
func (s *Statement) Exec(ctx context.Context, args ...interface{}) (int64, error) {
	res, err := s.stmt.ExecContext(ctx, args...)
	if err != nil {
		return 0, errcodes.Store("exec", s.name, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, errcodes.Store("exec", s.name, err)
	}
	return n, nil
}

// Close releases the statement. Calling it again is a no-op.
func (s *Statement) Close() error {
	if s.stmt == nil {
		return nil
	}
	err := s.stmt.Close()
	s.stmt = nil
	if err != nil {
		return errcodes.Store("finalize", s.name, err)
	}
	return nil
}
