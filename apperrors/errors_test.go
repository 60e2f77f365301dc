package apperrors

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"
)

func TestErrorUnwrapsToKindSentinel(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		sentinel error
		kind     Kind
	}{
		{"validation", Validation("bad input", map[string]string{"team1_id": "required"}), ErrValidation, KindValidation},
		{"duplicate", DuplicateEvaluation("p1", "j1"), ErrDuplicateEvaluation, KindDuplicateEvaluation},
		{"locked", PostingLocked("p1", "completed", "posting is completed"), ErrPostingLocked, KindPostingLocked},
		{"entrants", InsufficientEntrants(1), ErrInsufficientEntrants, KindInsufficientEntrants},
		{"teams", InsufficientTeams(0), ErrInsufficientTeams, KindInsufficientTeams},
		{"not found", NotFound("posting", "p1"), ErrNotFound, KindNotFound},
		{"store", StoreUnavailable("insert evaluation", errors.New("disk full")), ErrStoreUnavailable, KindStoreUnavailable},
		{"conflict", Conflict("stale version"), ErrConflict, KindConflict},
		{"internal", Internal(errors.New("boom")), ErrInternal, KindInternal},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if !errors.Is(tt.err, tt.sentinel) {
				t.Errorf("errors.Is(%v, sentinel) = false", tt.err)
			}
			if got := KindOf(tt.err); got != tt.kind {
				t.Errorf("KindOf = %q, want %q", got, tt.kind)
			}
			wrapped := fmt.Errorf("service: %w", tt.err)
			if got := KindOf(wrapped); got != tt.kind {
				t.Errorf("KindOf(wrapped) = %q, want %q", got, tt.kind)
			}
		})
	}
}

func TestKindOfPlainErrors(t *testing.T) {
	if got := KindOf(nil); got != "" {
		t.Errorf("KindOf(nil) = %q, want empty", got)
	}
	if got := KindOf(errors.New("plain")); got != KindInternal {
		t.Errorf("KindOf(plain) = %q, want internal", got)
	}
	if got := KindOf(fmt.Errorf("%w: extra", ErrNotFound)); got != KindNotFound {
		t.Errorf("KindOf(wrapped sentinel) = %q, want not_found", got)
	}
}

func TestStoreUnavailableKeepsCause(t *testing.T) {
	err := StoreUnavailable("load posting", context.DeadlineExceeded)
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Error("cause is not reachable through errors.Is")
	}
	if !Retryable(err) {
		t.Error("store_unavailable should be retryable")
	}
	if Retryable(DuplicateEvaluation("p", "j")) {
		t.Error("duplicate evaluation must not be retryable")
	}
}

func TestErrorMessageIncludesFields(t *testing.T) {
	err := Validation("invalid posting", map[string]string{
		"team2_id": "must differ from team1_id",
		"location": "location and virtual_link are mutually exclusive",
	})
	msg := err.Error()
	if !strings.HasPrefix(msg, "invalid posting (location:") {
		t.Errorf("unexpected message %q", msg)
	}
	if !strings.Contains(msg, "team2_id: must differ from team1_id") {
		t.Errorf("message %q misses team2_id detail", msg)
	}
}

func TestWithRefDoesNotMutateOriginal(t *testing.T) {
	base := NotFound("team", "t1")
	withRef := base.WithRef("tournament_id", "x")

	if _, ok := base.Refs["tournament_id"]; ok {
		t.Error("WithRef mutated the original error")
	}
	if withRef.Refs["team_id"] != "t1" || withRef.Refs["tournament_id"] != "x" {
		t.Errorf("refs = %v", withRef.Refs)
	}
}

func TestFieldErrors(t *testing.T) {
	fe := FieldErrors{}
	if err := fe.Err("noop"); err != nil {
		t.Fatalf("empty FieldErrors returned %v", err)
	}

	fe.Check(false, "theme", "required")
	fe.Check(false, "theme", "second reason is ignored")
	fe.Check(true, "location", "never added")

	err := fe.Err("invalid input")
	var appErr *Error
	if !errors.As(err, &appErr) {
		t.Fatalf("expected *Error, got %T", err)
	}
	if appErr.Kind != KindValidation {
		t.Errorf("kind = %q", appErr.Kind)
	}
	if len(appErr.Fields) != 1 || appErr.Fields["theme"] != "required" {
		t.Errorf("fields = %v", appErr.Fields)
	}
}
