package core

import (
	"context"
	"fmt"
	"strings"
	"testing"
)

// buildCSV returns a file with n data rows in the given delimiter.
func buildCSV(n int, delim string) []byte {
	var b strings.Builder
	b.WriteString(strings.Join([]string{"id", "email", "name", "note"}, delim))
	b.WriteString("\n")
	for i := 0; i < n; i++ {
		fmt.Fprintf(&b, "%d%suser%d@example.com%sUser %d%s\"quoted%s value\"\n", i, delim, i, delim, i, delim, delim)
	}
	return []byte(b.String())
}

// ============================================================================
// Session Benchmarks
// ============================================================================

// BenchmarkOpen measures the full pipeline for a mid-sized file.
func BenchmarkOpen(b *testing.B) {
	registerTestTarget(b)
	svc := NewService(ServiceConfig{}, nil)
	data := buildCSV(5000, ",")
	ctx := context.Background()

	b.SetBytes(int64(len(data)))
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		snap, err := svc.Open(ctx, OpenRequest{TargetKey: testTargetKey, FileName: "bench.csv", Data: data})
		if err != nil {
			b.Fatal(err)
		}
		_ = svc.Close(ctx, snap.ID)
	}
}

// BenchmarkSetOptions measures a re-parse after a header toggle.
func BenchmarkSetOptions(b *testing.B) {
	registerTestTarget(b)
	svc := NewService(ServiceConfig{}, nil)
	ctx := context.Background()

	snap, err := svc.Open(ctx, OpenRequest{TargetKey: testTargetKey, FileName: "bench.csv", Data: buildCSV(5000, ";")})
	if err != nil {
		b.Fatal(err)
	}

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		hasHeaders := i%2 == 0
		if _, err := svc.SetOptions(ctx, snap.ID, OptionsPatch{HasHeaders: &hasHeaders}); err != nil {
			b.Fatal(err)
		}
	}
}

// BenchmarkAnalyzeFiles measures parallel analysis of several files.
func BenchmarkAnalyzeFiles(b *testing.B) {
	registerTestTarget(b)
	svc := NewService(ServiceConfig{AnalyzeParallelism: 4}, nil)
	ctx := context.Background()

	files := make([]OpenRequest, 8)
	for i := range files {
		files[i] = OpenRequest{TargetKey: testTargetKey, FileName: fmt.Sprintf("f%d.csv", i), Data: buildCSV(1000, "\t")}
	}

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if _, err := svc.AnalyzeFiles(ctx, files); err != nil {
			b.Fatal(err)
		}
	}
}
