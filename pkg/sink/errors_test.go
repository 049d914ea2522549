package sink

import (
	"errors"
	"fmt"
	"testing"

	"github.com/ruslano69/tdtp-sink/pkg/dialect"
)

func TestIsRetryable(t *testing.T) {
	table := dialect.TableID{Name: "t"}
	writeErr := &WriteError{Table: table, Err: errors.New("deadlock")}

	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"nil", nil, false},
		{"plain", errors.New("boom"), false},
		{"write", writeErr, true},
		{"wrapped write", fmt.Errorf("max retry attempts (3) exceeded: %w", writeErr), true},
		{"connection", &ConnectionError{Attempts: 3, Err: errors.New("refused")}, true},
		{"resolution", &ResolutionError{Record: "t-0@1", Err: ErrEmptyDestination}, false},
		{"record", &RecordError{Record: "t-0@1", Err: errors.New("no schema")}, false},
		{"schema", &TableAlterOrCreateError{Table: table, Msg: "missing"}, false},
		{"write with failed rollback", errors.Join(writeErr, &RollbackError{Err: errors.New("conn lost")}), true},
	}

	for _, tt := range tests {
		if got := IsRetryable(tt.err); got != tt.want {
			t.Errorf("%s: IsRetryable() = %v, want %v", tt.name, got, tt.want)
		}
	}
}

func TestErrorMessages(t *testing.T) {
	err := &TableAlterOrCreateError{Table: dialect.TableID{Schema: "s", Name: "t"}, Msg: "failed to create table", Err: errors.New("denied")}
	if got := err.Error(); got != "table s.t: failed to create table: denied" {
		t.Errorf("Unexpected message: %s", got)
	}

	werr := &WriteError{Err: errors.New("commit failed")}
	if got := werr.Error(); got != "failed to write batch: commit failed" {
		t.Errorf("Unexpected message: %s", got)
	}
}
