package notify_test

import (
	"bytes"
	"context"
	"math"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alejandrodnm/nestrader/internal/adapters/notify"
	"github.com/alejandrodnm/nestrader/internal/domain"
)

func TestConsole_NotifyIteration_QuietUnlessVerbose(t *testing.T) {
	var buf bytes.Buffer
	n := notify.NewConsoleWriter(&buf, false)

	require.NoError(t, n.NotifyIteration(context.Background(), domain.IterationStats{Iteration: 1, MeanReward: 100}))
	assert.Empty(t, buf.String())

	require.NoError(t, n.NotifyIteration(context.Background(), domain.IterationStats{Iteration: 2, MeanReward: 100, Skipped: true}))
	assert.Contains(t, buf.String(), "SKIPPED")
}

func TestConsole_NotifyIteration_Verbose(t *testing.T) {
	var buf bytes.Buffer
	n := notify.NewConsoleWriter(&buf, true)

	require.NoError(t, n.NotifyIteration(context.Background(), domain.IterationStats{
		Iteration: 7, MeanReward: 10050.5, StdReward: 12.25, MinReward: 10000, MaxReward: 10100, Duration: 1500 * time.Millisecond,
	}))

	out := buf.String()
	assert.Contains(t, out, "it    7")
	assert.Contains(t, out, "mean=$10050.50")
	assert.Contains(t, out, "std=12.2500")
}

func TestConsole_NotifyReport_ShowsDelta(t *testing.T) {
	var buf bytes.Buffer
	n := notify.NewConsoleWriter(&buf, false)
	ctx := context.Background()

	require.NoError(t, n.NotifyReport(ctx, domain.ProgressReport{Iteration: 10, Fitness: 10000}))
	require.NoError(t, n.NotifyReport(ctx, domain.ProgressReport{Iteration: 20, Fitness: 9950}))

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 2)
	assert.NotContains(t, lines[0], "Δ")
	assert.Contains(t, lines[1], "Δ -$50.00")
}

func TestConsole_PrintSummary(t *testing.T) {
	var buf bytes.Buffer
	n := notify.NewConsoleWriter(&buf, false)
	ctx := context.Background()

	require.NoError(t, n.NotifyReport(ctx, domain.ProgressReport{Iteration: 10, Fitness: 10000}))
	require.NoError(t, n.NotifyReport(ctx, domain.ProgressReport{Iteration: 20, Fitness: 10500}))

	n.PrintSummary(domain.TrainingRun{
		ID: "abc", Status: domain.RunStatusFinished, FinalFitness: 10500, PopulationSize: 15,
	}, []domain.IterationStats{{Iteration: 1}, {Iteration: 2, Skipped: true}})

	out := buf.String()
	assert.Contains(t, out, "run abc [FINISHED]")
	assert.Contains(t, out, "+$500.00")
	assert.Contains(t, out, "Iterations: 2 (1 skipped)")
	assert.Contains(t, out, "Best fitness: $10500.00 at iteration 20")
	assert.Contains(t, out, "Final fitness: $10500.00")
}

func TestConsole_PrintSummary_NoReports(t *testing.T) {
	var buf bytes.Buffer
	n := notify.NewConsoleWriter(&buf, false)

	n.PrintSummary(domain.TrainingRun{ID: "abc", Status: domain.RunStatusFailed, FinalFitness: math.NaN()}, nil)

	out := buf.String()
	assert.Contains(t, out, "No progress reports recorded")
	assert.NotContains(t, out, "Final fitness")
}

func TestConsole_PrintEpisode(t *testing.T) {
	var buf bytes.Buffer
	n := notify.NewConsoleWriter(&buf, false)

	n.PrintEpisode(domain.EpisodeOutcome{
		Fitness: 10123.45,
		Steps:   4,
		Trace: domain.Trace{
			Closes: []float64{10, 11, 12, 13},
			Actions: []domain.Action{
				{Class: domain.ActionBuy, Magnitude: 5},
				domain.NoOp,
				{Class: domain.ActionSell, Magnitude: 3},
				domain.NoOp,
			},
			Buys:  []int{0},
			Sells: []int{2},
		},
	})

	out := buf.String()
	assert.Contains(t, out, "4 steps, final value $10123.45")
	assert.Contains(t, out, "buys: 1  sells: 1")
	assert.Less(t, strings.Index(out, "BUY"), strings.Index(out, "SELL"))
	assert.Contains(t, out, "12.00")
}

func TestConsole_PrintEpisode_NoTrades(t *testing.T) {
	var buf bytes.Buffer
	n := notify.NewConsoleWriter(&buf, false)

	n.PrintEpisode(domain.EpisodeOutcome{Fitness: 10000, Steps: 3})
	assert.Contains(t, buf.String(), "No trades.")
}
