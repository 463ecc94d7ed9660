package checksum

import (
	"strings"
	"testing"
)

func TestSum(t *testing.T) {
	// SHA-256 of the empty input.
	const empty = "e3b0c44298fc1c149afbf4c8996fb92427ae41e4649b934ca495991b7852b855"
	if got := Sum(nil); got != empty {
		t.Errorf("Sum(nil) = %q, want %q", got, empty)
	}
	if Sum([]byte("a")) == Sum([]byte("b")) {
		t.Error("different inputs share a checksum")
	}
}

func TestMatches(t *testing.T) {
	data := []byte("[core]\nmode=tag\n")
	sum := Sum(data)
	for _, want := range []string{sum, `"` + sum + `"`, strings.ToUpper(sum), " " + sum + " "} {
		if !Matches(data, want) {
			t.Errorf("Matches(%q) = false", want)
		}
	}
	if Matches(data, "stale") || Matches(data, "") {
		t.Error("Matches accepted a wrong checksum")
	}
}
