package testutil

import (
	"strings"
	"testing"

	"github.com/davecgh/go-spew/spew"
	"github.com/pmezard/go-difflib/difflib"
)

var spewConfig = spew.ConfigState{
	Indent:                  "  ",
	DisableMethods:          true,
	DisableCapacities:       true,
	DisablePointerAddresses: true,
	SortKeys:                true,
}

// AssertEqualText compares two multi-line strings and, on mismatch, fails
// the test with a unified diff instead of testify's one-line dump.
func AssertEqualText(t *testing.T, exp, act string) bool {
	t.Helper()
	if exp == act {
		return true
	}
	diff, _ := difflib.GetUnifiedDiffString(difflib.UnifiedDiff{
		A:        difflib.SplitLines(exp),
		B:        difflib.SplitLines(act),
		FromFile: "Expected",
		ToFile:   "Actual",
		Context:  1,
	})
	t.Errorf("Text diff:\n%s", diff)
	return false
}

// AssertEqualValues spew-dumps both values and compares the dumps, showing
// a unified diff on mismatch.  Useful for deeply nested structures where
// the point of divergence is hard to spot.
func AssertEqualValues(t *testing.T, exp, act interface{}) bool {
	t.Helper()
	expStr := spewConfig.Sdump(exp)
	actStr := spewConfig.Sdump(act)
	if expStr == actStr {
		return true
	}
	diff, _ := difflib.GetUnifiedDiffString(difflib.UnifiedDiff{
		A:        difflib.SplitLines(expStr),
		B:        difflib.SplitLines(actStr),
		FromFile: "Expected",
		ToFile:   "Actual",
		Context:  1,
	})
	t.Errorf("Value diff:\n%s", diff)
	return false
}

// NormalizeLines trims trailing whitespace from every line and drops blank
// lines at either end, so rendered-config comparisons aren't hostage to
// incidental whitespace.
func NormalizeLines(s string) string {
	lines := strings.Split(s, "\n")
	for i := range lines {
		lines[i] = strings.TrimRight(lines[i], " \t")
	}
	out := strings.Join(lines, "\n")
	return strings.Trim(out, "\n")
}
