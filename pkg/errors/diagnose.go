package errors

import (
	stdErrors "errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/lib/pq"
)

// pgFailure is the driver-neutral part of a Postgres error.
type pgFailure struct {
	SQLState   string
	Constraint string
	Table      string
	Detail     string
}

func postgresFailure(err error) (pgFailure, bool) {
	var pgxErr *pgconn.PgError
	if stdErrors.As(err, &pgxErr) {
		return pgFailure{SQLState: pgxErr.Code, Constraint: pgxErr.ConstraintName, Table: pgxErr.TableName, Detail: pgxErr.Detail}, true
	}
	var pqErr *pq.Error
	if stdErrors.As(err, &pqErr) {
		return pgFailure{SQLState: string(pqErr.Code), Constraint: pqErr.Constraint, Table: pqErr.Table, Detail: pqErr.Detail}, true
	}
	return pgFailure{}, false
}

// Classify picks a code for an error that carries none. Serialization
// failures, deadlocks and dropped connections are retryable; unique and check
// violations (a stock guard tripping) are conflicts.
func Classify(err error) Code {
	if typed := As(err); typed != nil {
		return typed.Code()
	}
	failure, ok := postgresFailure(err)
	if !ok {
		return CodeInternal
	}
	switch {
	case failure.SQLState == "40001", failure.SQLState == "40P01", strings.HasPrefix(failure.SQLState, "08"):
		return CodeDependency
	case failure.SQLState == "23505", failure.SQLState == "23514":
		return CodeConflict
	default:
		return CodeInternal
	}
}

// LogFields flattens err into structured log fields: the code, the unwrap
// chain, and the Postgres failure when one is in the chain.
func LogFields(err error) map[string]any {
	if err == nil {
		return map[string]any{}
	}
	var chain []string
	for e := err; e != nil; e = stdErrors.Unwrap(e) {
		chain = append(chain, fmt.Sprintf("%T", e))
	}
	fields := map[string]any{
		"error":       err.Error(),
		"error_code":  Classify(err),
		"error_chain": chain,
	}
	if failure, ok := postgresFailure(err); ok {
		fields["pg_sqlstate"] = failure.SQLState
		if failure.Constraint != "" {
			fields["pg_constraint"] = failure.Constraint
		}
		if failure.Table != "" {
			fields["pg_table"] = failure.Table
		}
		if failure.Detail != "" {
			fields["pg_detail"] = failure.Detail
		}
	}
	return fields
}
