package transcript

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestRecordTrimsTextAndKeepsConfidence(t *testing.T) {
	ledger := NewLedger()

	got := ledger.Record("  hello  ", 0.92)
	require.Equal(t, Utterance{Text: "hello", Confidence: 0.92}, got)

	latest, ok := ledger.Latest()
	require.True(t, ok)
	require.Equal(t, "hello", latest)
	require.Equal(t, []Utterance{{Text: "hello", Confidence: 0.92}}, ledger.History())
}

func TestLatestEmptyLedger(t *testing.T) {
	ledger := NewLedger()

	latest, ok := ledger.Latest()
	require.False(t, ok)
	require.Empty(t, latest)
	require.Empty(t, ledger.History())
	require.Zero(t, ledger.Len())
}

func TestRecordEvictsOldestBeyondCapacity(t *testing.T) {
	ledger := NewLedger()

	for i := 1; i <= 20; i++ {
		ledger.Record(fmt.Sprintf("utterance %d", i), float64(i)/100)
		require.LessOrEqual(t, ledger.Len(), Capacity)
	}

	history := ledger.History()
	require.Len(t, history, Capacity)
	for i, u := range history {
		require.Equal(t, fmt.Sprintf("utterance %d", 20-i), u.Text)
	}

	latest, ok := ledger.Latest()
	require.True(t, ok)
	require.Equal(t, history[0].Text, latest)
}

func TestRecordAcceptsEmptyText(t *testing.T) {
	ledger := NewLedger()
	ledger.Record("first", 0.5)
	ledger.Record("   ", 0)

	latest, ok := ledger.Latest()
	require.True(t, ok)
	require.Empty(t, latest)
	require.Equal(t, []Utterance{{Text: "", Confidence: 0}, {Text: "first", Confidence: 0.5}}, ledger.History())
}

func TestHistoryReturnsCopy(t *testing.T) {
	ledger := NewLedger()
	ledger.Record("one", 1)

	history := ledger.History()
	history[0].Text = "mutated"

	require.Equal(t, "one", ledger.History()[0].Text)
}
