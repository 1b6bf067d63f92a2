package errors

import (
	"fmt"
	"testing"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/lib/pq"
)

func TestDumpCapturesPgxDiagnostics(t *testing.T) {
	pgErr := &pgconn.PgError{Code: "23505", ConstraintName: "ux_wallets_user_id", TableName: "wallets"}
	err := Wrap(CodeDependency, fmt.Errorf("insert wallet: %w", pgErr), "create wallet")

	dump := Dump(err)
	if dump.Code != CodeDependency {
		t.Fatalf("expected dependency code, got %s", dump.Code)
	}
	if dump.PGCode != "23505" || dump.PGConstraint != "ux_wallets_user_id" {
		t.Fatalf("unexpected pg fields %+v", dump)
	}
	if len(dump.Chain) != 3 {
		t.Fatalf("expected 3 chain entries, got %d", len(dump.Chain))
	}
	fields := dump.LogFields()
	if fields["pg_table"] != "wallets" {
		t.Fatalf("expected pg_table in fields, got %v", fields)
	}
}

func TestPGCodeFromLibPQ(t *testing.T) {
	err := fmt.Errorf("wrapped: %w", &pq.Error{Code: "23514"})
	if got := PGCode(err); got != "23514" {
		t.Fatalf("expected 23514, got %q", got)
	}
	if got := PGCode(fmt.Errorf("plain")); got != "" {
		t.Fatalf("expected empty code, got %q", got)
	}
	if _, ok := Dump(fmt.Errorf("plain")).LogFields()["pg_code"]; ok {
		t.Fatal("empty pg_code should be omitted")
	}
}
