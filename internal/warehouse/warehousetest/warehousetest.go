// Package warehousetest provides a scripted in-memory warehouse for tests.
package warehousetest

import (
	"context"
	"fmt"
	"sync"

	"github.com/paramean/targeting/internal/warehouse"
)

// Session answers statements by name from canned rows and records every
// statement it sees, in order.
type Session struct {
	mu         sync.Mutex
	Rows       map[string][][]any
	Errors     map[string]error
	Statements []warehouse.Statement
	Released   bool
}

// NewSession creates an empty scripted session.
func NewSession() *Session {
	return &Session{Rows: map[string][][]any{}, Errors: map[string]error{}}
}

// On scripts the rows returned for statements named name.
func (s *Session) On(name string, rows ...[]any) *Session {
	s.Rows[name] = rows
	return s
}

// Fail makes statements named name return err.
func (s *Session) Fail(name string, err error) *Session {
	s.Errors[name] = err
	return s
}

// Names returns the names of executed statements in execution order.
func (s *Session) Names() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	names := make([]string, len(s.Statements))
	for i, st := range s.Statements {
		names[i] = st.Name
	}
	return names
}

// Statement returns the last executed statement with the given name.
func (s *Session) Statement(name string) (warehouse.Statement, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := len(s.Statements) - 1; i >= 0; i-- {
		if s.Statements[i].Name == name {
			return s.Statements[i], true
		}
	}
	return warehouse.Statement{}, false
}

func (s *Session) Dialect() warehouse.Dialect { return warehouse.Postgres }

func (s *Session) Query(ctx context.Context, stmt warehouse.Statement, fn func(warehouse.Scanner) error) error {
	s.mu.Lock()
	s.Statements = append(s.Statements, stmt)
	rows := s.Rows[stmt.Name]
	err := s.Errors[stmt.Name]
	s.mu.Unlock()

	if err != nil {
		return err
	}
	for _, row := range rows {
		if err := fn(rowScanner(row)); err != nil {
			return err
		}
	}
	return nil
}

func (s *Session) Release() {
	s.mu.Lock()
	s.Released = true
	s.mu.Unlock()
}

// Warehouse hands out the same scripted session on every Acquire.
type Warehouse struct {
	Session    *Session
	AcquireErr error
	HealthErr  error
}

func (w *Warehouse) Acquire(ctx context.Context) (warehouse.Session, error) {
	if w.AcquireErr != nil {
		return nil, w.AcquireErr
	}
	return w.Session, nil
}

func (w *Warehouse) Health(ctx context.Context) error { return w.HealthErr }

func (w *Warehouse) Close() {}

type rowScanner []any

func (r rowScanner) Scan(dest ...any) error {
	if len(dest) != len(r) {
		return fmt.Errorf("scan: row has %d columns, %d destinations", len(r), len(dest))
	}
	for i, d := range dest {
		if err := assign(d, r[i]); err != nil {
			return fmt.Errorf("scan column %d: %w", i, err)
		}
	}
	return nil
}

// assign copies src into dest. A nil src sets pointer destinations to nil,
// the way drivers scan SQL NULL.
func assign(dest, src any) error {
	switch d := dest.(type) {
	case **int64:
		if src == nil {
			*d = nil
			return nil
		}
		var v int64
		if err := assign(&v, src); err != nil {
			return err
		}
		*d = &v
	case **float64:
		if src == nil {
			*d = nil
			return nil
		}
		var v float64
		if err := assign(&v, src); err != nil {
			return err
		}
		*d = &v
	case *string:
		s, ok := src.(string)
		if !ok {
			return fmt.Errorf("cannot assign %T to string", src)
		}
		*d = s
	case *int64:
		switch v := src.(type) {
		case int:
			*d = int64(v)
		case int64:
			*d = v
		default:
			return fmt.Errorf("cannot assign %T to int64", src)
		}
	case *float64:
		switch v := src.(type) {
		case int:
			*d = float64(v)
		case int64:
			*d = float64(v)
		case float64:
			*d = v
		default:
			return fmt.Errorf("cannot assign %T to float64", src)
		}
	default:
		return fmt.Errorf("unsupported destination %T", dest)
	}
	return nil
}
