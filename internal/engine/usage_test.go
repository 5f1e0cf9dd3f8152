package engine

import "testing"

func TestUsageAccumulatorRecordTurn(t *testing.T) {
	var acc UsageAccumulator

	if _, ok := acc.Latest(); ok {
		t.Fatal("fresh accumulator should have no latest usage")
	}

	acc.RecordTurn(Usage{InputTokens: 10, OutputTokens: 5})
	acc.RecordTurn(Usage{InputTokens: 3, ThinkingTokens: 7, CacheReadTokens: 2, CacheCreationTokens: 1})

	latest, ok := acc.Latest()
	if !ok {
		t.Fatal("latest usage missing after record")
	}
	if latest.InputTokens != 3 || latest.ThinkingTokens != 7 {
		t.Fatalf("latest=%+v", latest)
	}

	totals := acc.Totals()
	want := Usage{InputTokens: 13, OutputTokens: 5, ThinkingTokens: 7, CacheReadTokens: 2, CacheCreationTokens: 1}
	if totals != want {
		t.Fatalf("totals=%+v want %+v", totals, want)
	}
}

func TestUsageAccumulatorZeroContribution(t *testing.T) {
	var acc UsageAccumulator
	acc.RecordTurn(Usage{InputTokens: 4})
	acc.RecordTurn(Usage{})
	if totals := acc.Totals(); totals.InputTokens != 4 {
		t.Fatalf("zero usage changed totals: %+v", totals)
	}
}

func TestUsageAccumulatorReset(t *testing.T) {
	var acc UsageAccumulator
	acc.RecordTurn(Usage{InputTokens: 4, OutputTokens: 2})
	acc.Reset()
	if !acc.Totals().IsZero() {
		t.Fatalf("totals after reset: %+v", acc.Totals())
	}
	if _, ok := acc.Latest(); ok {
		t.Fatal("latest should be cleared by reset")
	}
}
