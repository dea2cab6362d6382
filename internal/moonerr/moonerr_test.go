package moonerr

import (
	"errors"
	"testing"

	"go.uber.org/zap"
)

func TestClassifyWrapsError(t *testing.T) {
	base := errors.New("boom")
	e := Classify(KindPipelineFailure, "videnc", base)
	if !errors.Is(e, base) {
		t.Error("Classify should preserve Unwrap chain")
	}
	if e.Kind != KindPipelineFailure || e.Component != "videnc" {
		t.Errorf("unexpected fields: %+v", e)
	}
}

func TestReporterNoopWithoutDSN(t *testing.T) {
	r, err := NewReporter(zap.NewNop(), "", "test")
	if err != nil {
		t.Fatalf("NewReporter: %v", err)
	}
	// Should not panic even though Sentry was never initialized.
	r.Report(Classify(KindPipelineFailure, "test", errors.New("x")))
	r.Flush()
}

func TestKindStrings(t *testing.T) {
	kinds := []Kind{KindTransientIO, KindProtocolViolation, KindPipelineFailure, KindClientTermination, KindHostTermination}
	seen := make(map[string]bool)
	for _, k := range kinds {
		s := k.String()
		if s == "" || s == "unknown" {
			t.Errorf("kind %d stringified as %q", k, s)
		}
		if seen[s] {
			t.Errorf("duplicate string %q", s)
		}
		seen[s] = true
	}
}
