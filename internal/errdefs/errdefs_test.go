package errdefs

import (
	"errors"
	"fmt"
	"io"
	"testing"
)

func TestKindsSurviveWrapping(t *testing.T) {
	testCases := []struct {
		name string
		err  error
		is   func(error) bool
		kind error
	}{
		{"config", Configf("fps must be positive, got %d", 0), IsConfig, ErrConfig},
		{"asset", Asset(io.ErrUnexpectedEOF, "decode photo"), IsAsset, ErrAsset},
		{"not found", NotFoundf("template %q", "x"), IsNotFound, ErrNotFound},
		{"state", Statef("AddFrame after Finish"), IsState, ErrState},
		{"encoding", Encoding(io.ErrShortWrite, "write frame"), IsEncoding, ErrEncoding},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			wrapped := fmt.Errorf("render template1: %w", tc.err)
			if !tc.is(wrapped) {
				t.Fatalf("predicate failed for %v", wrapped)
			}
			if !errors.Is(wrapped, tc.kind) {
				t.Fatalf("errors.Is(%v, %v) = false", wrapped, tc.kind)
			}
		})
	}
}

func TestKindsAreDistinct(t *testing.T) {
	err := Configf("bad")
	if IsAsset(err) || IsNotFound(err) || IsState(err) || IsEncoding(err) {
		t.Fatalf("config error matched another kind: %v", err)
	}
}

func TestCauseIsReachable(t *testing.T) {
	err := Asset(io.ErrUnexpectedEOF, "decode background %s", "frame1.png")
	if !errors.Is(err, io.ErrUnexpectedEOF) {
		t.Fatalf("cause lost: %v", err)
	}
	want := "asset error: decode background frame1.png: unexpected EOF"
	if err.Error() != want {
		t.Errorf("Error() = %q, want %q", err.Error(), want)
	}
}
