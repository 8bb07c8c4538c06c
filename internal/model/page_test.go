package model

import "testing"

// TestFailureClass tests classification of recorded failure reasons.
func TestFailureClass(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		reason string
		want   string
	}{
		{name: "fetch error", reason: FailureReason(ReasonFetch, "dial tcp: i/o timeout"), want: "fetch"},
		{name: "status error", reason: FailureReason(ReasonStatus, "404 Not Found"), want: "status"},
		{name: "content type", reason: FailureReason(ReasonContentType, "application/pdf"), want: "content-type"},
		{name: "parse error", reason: FailureReason(ReasonParse, "unexpected EOF"), want: "parse"},
		{name: "unknown prefix", reason: "weird: something", want: "other"},
		{name: "no prefix", reason: "something went wrong", want: "other"},
		{name: "empty", reason: "", want: "other"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			if got := FailureClass(tt.reason); got != tt.want {
				t.Errorf("FailureClass(%q) = %q, want %q", tt.reason, got, tt.want)
			}
		})
	}
}
