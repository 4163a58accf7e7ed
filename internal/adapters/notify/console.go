package notify

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/olekukonko/tablewriter"

	"github.com/alejandrodnm/careersim/internal/domain"
)

// Console implementa ports.Notifier escribiendo al terminal.
// Modo compacto: una línea por turno. Modo tabla: histórico y métricas
// completas.
type Console struct {
	out   io.Writer
	table bool
}

// NewConsole crea un notificador que escribe a stdout.
func NewConsole(table bool) *Console {
	return &Console{out: os.Stdout, table: table}
}

// NewConsoleWriter crea un notificador para tests.
func NewConsoleWriter(w io.Writer, table bool) *Console {
	return &Console{out: w, table: table}
}

// NotifySnapshot imprime el resultado de cerrar un turno.
func (c *Console) NotifySnapshot(_ context.Context, session *domain.Session, snap *domain.Snapshot) error {
	if c.table {
		c.printTurnTable(session)
		return nil
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "[turn %d/%d] %s → %s ret %+.2f%% value $%.2f",
		snap.TurnN, len(session.Turns),
		snap.Range.Start.Format("2006-01-02"), snap.Range.End.Format("2006-01-02"),
		snap.TurnReturn*100, snap.PortfolioValue)
	for _, e := range snap.EventsApplied {
		fmt.Fprintf(&sb, " | %s %s %+.1f%%", e.Name, eventTarget(e), e.ImpactPct*100)
	}
	if session.Closed {
		sb.WriteString(" | career finished")
	}
	fmt.Fprintln(c.out, sb.String())
	return nil
}

// NotifyReport imprime las métricas del informe y el score.
func (c *Console) NotifyReport(_ context.Context, report *domain.Report) error {
	fmt.Fprintf(c.out, "session %s vs %s | score %.2f/10 %s (%d/%d turns)\n",
		report.SessionID, report.BenchmarkTicker,
		report.Score, strings.Repeat("★", report.Stars),
		report.TurnsClosed, report.TurnsTotal)

	table := tablewriter.NewWriter(c.out)
	table.Header("Curve", "TotRet", "CAGR", "Vol", "MaxDD")
	table.Append("portfolio", pct(report.Portfolio.Metrics.TotalReturn),
		pct(report.Portfolio.Metrics.CAGR), pct(report.Portfolio.Metrics.VolAnnual),
		pct(report.Portfolio.Metrics.MaxDrawdown))
	table.Append("benchmark", pct(report.Benchmark.Metrics.TotalReturn),
		pct(report.Benchmark.Metrics.CAGR), pct(report.Benchmark.Metrics.VolAnnual),
		pct(report.Benchmark.Metrics.MaxDrawdown))
	table.Render()

	ir := "n/a"
	if report.Tracking.InformationRatio != nil {
		ir = fmt.Sprintf("%.2f", *report.Tracking.InformationRatio)
	}
	fmt.Fprintf(c.out, "active %s | tracking error %s | information ratio %s\n",
		pct(report.Tracking.ActiveReturn), pct(report.Tracking.TrackingError), ir)

	for _, w := range report.Warnings {
		fmt.Fprintf(c.out, "  ! %s\n", w)
	}
	return nil
}

// NotifyRanking imprime el leaderboard.
func (c *Console) NotifyRanking(_ context.Context, entries []domain.RankingEntry) error {
	if len(entries) == 0 {
		fmt.Fprintln(c.out, "ranking is empty")
		return nil
	}

	table := tablewriter.NewWriter(c.out)
	table.Header("#", "Player", "Difficulty", "Score", "Stars", "TotRet", "Date")
	for i, e := range entries {
		table.Append(
			fmt.Sprintf("%d", i+1),
			truncate(e.Player, 20),
			e.Difficulty,
			fmt.Sprintf("%.2f", e.Score),
			strings.Repeat("★", e.Stars),
			pct(e.TotalReturn),
			e.CreatedAt.Format("2006-01-02"),
		)
	}
	table.Render()
	return nil
}

// printTurnTable imprime el histórico completo de turnos cerrados.
func (c *Console) printTurnTable(session *domain.Session) {
	table := tablewriter.NewWriter(c.out)
	table.Header("Turn", "Range", "Ret", "MktRet", "Value", "DCA", "Events", "Next")

	for _, snap := range session.Snapshots {
		table.Append(
			fmt.Sprintf("%d", snap.TurnN),
			fmt.Sprintf("%s..%s", snap.Range.Start.Format("06-01-02"), snap.Range.End.Format("06-01-02")),
			pct(snap.TurnReturn),
			pct(snap.TurnReturnMarket),
			fmt.Sprintf("$%.2f", snap.PortfolioValue),
			fmt.Sprintf("$%.0f", snap.DCAInTurn),
			fmt.Sprintf("%d", len(snap.EventsApplied)),
			allocLabel(snap.NextSuggested),
		)
	}
	table.Render()
	fmt.Fprintf(c.out, "capital $%.2f (%+.2f%% cum) | created %s\n",
		session.CapitalCurrent, session.CumReturn*100,
		session.CreatedAt.Format(time.RFC3339))
}

func eventTarget(e domain.Event) string {
	if e.Target == "" {
		return string(e.Scope)
	}
	return fmt.Sprintf("%s:%s", e.Scope, e.Target)
}

func allocLabel(a domain.Allocation) string {
	if len(a) == 0 {
		return "-"
	}
	parts := make([]string, 0, len(a))
	for _, p := range a {
		parts = append(parts, fmt.Sprintf("%s %.0f%%", p.Ticker, p.Weight*100))
	}
	return truncate(strings.Join(parts, " "), 40)
}

func pct(v float64) string {
	return fmt.Sprintf("%+.2f%%", v*100)
}

func truncate(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen-3] + "..."
}
