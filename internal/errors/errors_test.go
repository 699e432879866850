package errors

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestFatalKinds(t *testing.T) {
	require.True(t, KindExtractorUnavailable.Fatal())
	require.True(t, KindIndexNotBuilt.Fatal())
	require.True(t, KindStoreUnavailable.Fatal())
	require.True(t, KindStoreConflict.Fatal())
	require.True(t, KindCancelled.Fatal())

	require.False(t, KindInputUnreadable.Fatal())
	require.False(t, KindExtractorSkipped.Fatal())
	require.False(t, KindSketchEmpty.Fatal())
}

func TestErrorUnwrap(t *testing.T) {
	cause := errors.New("boom")
	e := New(KindInputUnreadable, "hash", cause).WithDoc("r//a.go@b1").WithReason("not found")

	require.Equal(t, cause, e.Unwrap())
	require.True(t, errors.Is(e, cause))
	require.Contains(t, e.Error(), "r//a.go@b1")
	require.Contains(t, e.Error(), "boom")
}

func TestErrorWithoutDocKey(t *testing.T) {
	e := New(KindStoreUnavailable, "hash", errors.New("conn refused"))
	require.NotContains(t, e.Error(), "failed for")
}

func TestSkipSummaryGroupsByKindAndReason(t *testing.T) {
	s := NewSkipSummary()
	s.Add(New(KindExtractorSkipped, "hash", nil).WithReason("no extractor for .md"))
	s.Add(New(KindExtractorSkipped, "hash", nil).WithReason("no extractor for .md"))
	s.Add(New(KindSketchEmpty, "hash", nil))

	require.Equal(t, 3, s.Total())
	counts := s.Counts()
	require.Equal(t, 2, counts["extractor_skipped: no extractor for .md"])
	require.Equal(t, 1, counts["sketch_empty"])
}

func TestSkipSummaryCountsIsACopy(t *testing.T) {
	s := NewSkipSummary()
	s.Add(New(KindSketchEmpty, "hash", nil))

	counts := s.Counts()
	counts["sketch_empty"] = 999

	require.Equal(t, 1, s.Counts()["sketch_empty"])
}
