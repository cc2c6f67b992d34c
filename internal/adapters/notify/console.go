package notify

import (
	"context"
	"fmt"
	"io"
	"math"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/olekukonko/tablewriter"

	"github.com/alejandrodnm/nestrader/internal/domain"
)

// Console implementa ports.ProgressNotifier.
// Guarda los reportes recibidos para imprimir el resumen final.
type Console struct {
	out     io.Writer
	verbose bool

	mu      sync.Mutex
	reports []reportRow
}

type reportRow struct {
	iteration int
	fitness   float64
	at        time.Time
}

// NewConsole crea un notificador que escribe a stdout.
func NewConsole(verbose bool) *Console {
	return &Console{out: os.Stdout, verbose: verbose}
}

// NewConsoleWriter crea un notificador para tests.
func NewConsoleWriter(w io.Writer, verbose bool) *Console {
	return &Console{out: w, verbose: verbose}
}

// NotifyIteration imprime una línea por iteración en modo verbose.
// Las iteraciones saltadas se imprimen siempre.
func (c *Console) NotifyIteration(_ context.Context, st domain.IterationStats) error {
	if !c.verbose && !st.Skipped {
		return nil
	}
	now := time.Now().Format("15:04:05")
	if st.Skipped {
		fmt.Fprintf(c.out, "[%s] it %4d  mean=%s  std=%s  SKIPPED (degenerate batch)\n",
			now, st.Iteration, money(st.MeanReward), num(st.StdReward))
		return nil
	}
	fmt.Fprintf(c.out, "[%s] it %4d  mean=%s  std=%s  min=%s  max=%s  %s\n",
		now, st.Iteration, money(st.MeanReward), num(st.StdReward),
		money(st.MinReward), money(st.MaxReward), st.Duration.Round(time.Millisecond))
	return nil
}

// NotifyReport imprime el fitness sin ruido y la variación respecto al reporte anterior.
func (c *Console) NotifyReport(_ context.Context, r domain.ProgressReport) error {
	c.mu.Lock()
	prev, hasPrev := c.last()
	c.reports = append(c.reports, reportRow{iteration: r.Iteration, fitness: r.Fitness, at: time.Now()})
	c.mu.Unlock()

	delta := ""
	if hasPrev {
		delta = "  Δ " + signedMoney(r.Fitness-prev.fitness)
	}
	fmt.Fprintf(c.out, "[%s] iter %d  fitness %s%s\n",
		time.Now().Format("15:04:05"), r.Iteration, money(r.Fitness), delta)
	return nil
}

// PrintSummary imprime la tabla de reportes y las estadísticas del run.
func (c *Console) PrintSummary(run domain.TrainingRun, iterations []domain.IterationStats) {
	c.mu.Lock()
	reports := append([]reportRow(nil), c.reports...)
	c.mu.Unlock()

	fmt.Fprintf(c.out, "\n=== TRAINING SUMMARY — run %s [%s] ===\n", run.ID, run.Status)
	fmt.Fprintf(c.out, "  σ=%.4f  α=%.4f  population=%d  time_frame=%d  state_size=%d\n",
		run.Sigma, run.LearningRate, run.PopulationSize, run.TimeFrame, run.StateSize)

	if len(reports) == 0 {
		fmt.Fprintln(c.out, "\n  No progress reports recorded.")
	} else {
		table := tablewriter.NewWriter(c.out)
		table.Header("#", "Iteration", "Fitness", "Δ prev", "Δ first")
		first := reports[0].fitness
		for i, r := range reports {
			dPrev := "-"
			if i > 0 {
				dPrev = signedMoney(r.fitness - reports[i-1].fitness)
			}
			table.Append(
				fmt.Sprintf("%d", i+1),
				fmt.Sprintf("%d", r.iteration),
				money(r.fitness),
				dPrev,
				signedMoney(r.fitness-first),
			)
		}
		table.Render()
	}

	skipped, total := 0, time.Duration(0)
	for _, it := range iterations {
		if it.Skipped {
			skipped++
		}
		total += it.Duration
	}
	fmt.Fprintf(c.out, "\n  Iterations: %d (%d skipped)  total time: %s\n",
		len(iterations), skipped, total.Round(time.Millisecond))
	if best, ok := bestReport(reports); ok {
		fmt.Fprintf(c.out, "  Best fitness: %s at iteration %d\n", money(best.fitness), best.iteration)
	}
	if !math.IsNaN(run.FinalFitness) && run.Status == domain.RunStatusFinished {
		fmt.Fprintf(c.out, "  Final fitness: %s\n", money(run.FinalFitness))
	}
	fmt.Fprintln(c.out)
}

// PrintEpisode imprime la traza diagnóstica de un episodio: las compras y
// ventas marcadas con el precio de cierre del paso.
func (c *Console) PrintEpisode(outcome domain.EpisodeOutcome) {
	tr := outcome.Trace
	fmt.Fprintf(c.out, "\n=== EPISODE — %d steps, final value %s ===\n", outcome.Steps, money(outcome.Fitness))
	fmt.Fprintf(c.out, "  buys: %d  sells: %d\n", len(tr.Buys), len(tr.Sells))

	markers := mergeMarkers(tr.Buys, tr.Sells)
	if len(markers) == 0 {
		fmt.Fprintln(c.out, "  No trades.")
		fmt.Fprintln(c.out)
		return
	}

	table := tablewriter.NewWriter(c.out)
	table.Header("Step", "Side", "Shares", "Close")
	for _, m := range markers {
		shares, closePx := "-", "-"
		if m.step < len(tr.Actions) {
			shares = fmt.Sprintf("%d", tr.Actions[m.step].Magnitude)
		}
		if m.step < len(tr.Closes) {
			closePx = fmt.Sprintf("%.2f", tr.Closes[m.step])
		}
		table.Append(fmt.Sprintf("%d", m.step), m.side, shares, closePx)
	}
	table.Render()
	fmt.Fprintln(c.out)
}

// --- helpers ---

func (c *Console) last() (reportRow, bool) {
	if len(c.reports) == 0 {
		return reportRow{}, false
	}
	return c.reports[len(c.reports)-1], true
}

type marker struct {
	step int
	side string
}

// mergeMarkers une compras y ventas ordenadas por paso.
func mergeMarkers(buys, sells []int) []marker {
	out := make([]marker, 0, len(buys)+len(sells))
	i, j := 0, 0
	for i < len(buys) || j < len(sells) {
		if j >= len(sells) || (i < len(buys) && buys[i] <= sells[j]) {
			out = append(out, marker{step: buys[i], side: domain.ActionBuy.String()})
			i++
			continue
		}
		out = append(out, marker{step: sells[j], side: domain.ActionSell.String()})
		j++
	}
	return out
}

func bestReport(reports []reportRow) (reportRow, bool) {
	var best reportRow
	found := false
	for _, r := range reports {
		if math.IsNaN(r.fitness) {
			continue
		}
		if !found || r.fitness > best.fitness {
			best, found = r, true
		}
	}
	return best, found
}

func money(v float64) string {
	if math.IsNaN(v) {
		return "NaN"
	}
	return fmt.Sprintf("$%.2f", v)
}

func signedMoney(v float64) string {
	if math.IsNaN(v) {
		return "NaN"
	}
	s := fmt.Sprintf("$%.2f", math.Abs(v))
	if v < 0 {
		return "-" + s
	}
	return "+" + s
}

func num(v float64) string {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return strings.ToUpper(fmt.Sprint(v))
	}
	return fmt.Sprintf("%.4f", v)
}
