package db

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"chronoplan/internal/domain"
)

func TestClassify(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want domain.ErrorKind
	}{
		{name: "no rows", err: pgx.ErrNoRows, want: domain.KindNotFound},
		{name: "wrapped no rows", err: fmt.Errorf("select: %w", pgx.ErrNoRows), want: domain.KindNotFound},
		{name: "deadline", err: context.DeadlineExceeded, want: domain.KindNetwork},
		{name: "pg error", err: &pgconn.PgError{Code: "42P01"}, want: domain.KindUnknown},
		{name: "already classified", err: domain.E(domain.KindUpload, "put", nil), want: domain.KindUpload},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := domain.KindOf(Classify("op", tt.err)); got != tt.want {
				t.Fatalf("Classify() kind = %s, want %s", got, tt.want)
			}
		})
	}
	if Classify("op", nil) != nil {
		t.Fatalf("nil должен оставаться nil")
	}
}

func TestIsUniqueViolation(t *testing.T) {
	if !IsUniqueViolation(fmt.Errorf("insert: %w", &pgconn.PgError{Code: "23505"})) {
		t.Fatalf("ожидали нарушение уникальности")
	}
	if IsUniqueViolation(errors.New("other")) {
		t.Fatalf("не ожидали нарушение уникальности")
	}
}
