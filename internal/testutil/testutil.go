// Package testutil provides shared test helpers and fixtures.
package testutil

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

// AssertNoError fails the test if err is not nil.
func AssertNoError(t *testing.T, err error) {
	t.Helper()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

// AssertError fails the test if err is nil.
func AssertError(t *testing.T, err error) {
	t.Helper()
	if err == nil {
		t.Fatal("expected error, got nil")
	}
}

// AssertErrorIs fails the test unless errors.Is(err, target).
func AssertErrorIs(t *testing.T, err, target error) {
	t.Helper()
	if !errors.Is(err, target) {
		t.Fatalf("expected error %v, got %v", target, err)
	}
}

// WriteFile writes body to name inside a fresh temp directory and returns
// the full path.
func WriteFile(t *testing.T, name, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatalf("write %s: %v", path, err)
	}
	return path
}

// ASCIIGrid renders rows of cell values as an ESRI ASCII grid with the
// lower left corner at (xll, yll).
func ASCIIGrid(xll, yll, cellSize float64, rows [][]string) string {
	var b strings.Builder
	ncols := 0
	if len(rows) > 0 {
		ncols = len(rows[0])
	}
	fmt.Fprintf(&b, "ncols %d\nnrows %d\n", ncols, len(rows))
	fmt.Fprintf(&b, "xllcorner %g\nyllcorner %g\ncellsize %g\n", xll, yll, cellSize)
	for _, r := range rows {
		b.WriteString(strings.Join(r, " "))
		b.WriteByte('\n')
	}
	return b.String()
}
