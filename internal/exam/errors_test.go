package exam

import (
	"errors"
	"strings"
	"testing"

	"github.com/google/uuid"
)

func TestErrorKinds(t *testing.T) {
	cause := errors.New("connection reset")
	id := uuid.New()

	tests := []struct {
		name string
		err  error
		kind error
	}{
		{"transition", &TransitionError{Op: "start", Status: StatusCompleted}, ErrInvalidTransition},
		{"validation", &ValidationError{Field: "answer", Reason: "out of range"}, ErrValidation},
		{"persistence", &PersistenceError{Op: "save", ExamID: id, Err: cause}, ErrPersistence},
		{"persistence cause", &PersistenceError{Op: "save", ExamID: id, Err: cause}, cause},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if !errors.Is(tt.err, tt.kind) {
				t.Fatalf("%v does not match %v", tt.err, tt.kind)
			}
		})
	}

	if errors.Is(&ValidationError{}, ErrInvalidTransition) {
		t.Fatalf("validation error must not match the transition kind")
	}

	msg := (&PersistenceError{Op: "save", ExamID: id, Err: cause}).Error()
	if !strings.Contains(msg, id.String()) {
		t.Fatalf("persistence error should name the exam: %q", msg)
	}
}
