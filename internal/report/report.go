package report

import (
	"fmt"
	"strings"

	"charm.land/lipgloss/v2"

	"github.com/abhisek/jeseci/internal/gems"
	"github.com/abhisek/jeseci/internal/mastery"
	"github.com/abhisek/jeseci/internal/skillgraph"
	"github.com/abhisek/jeseci/internal/store"
)

// Bar renders a horizontal bar of width cells filled to percent (0..1).
func Bar(percent float64, width int) string {
	if width < 4 {
		width = 4
	}
	filled := int(float64(width) * percent)
	if filled > width {
		filled = width
	}
	if filled < 0 {
		filled = 0
	}
	return barFilled.Render(strings.Repeat(" ", filled)) +
		barEmpty.Render(strings.Repeat(" ", width-filled))
}

// pad right-pads s to width display cells.
func pad(s string, width int) string {
	if w := lipgloss.Width(s); w < width {
		return s + strings.Repeat(" ", width-w)
	}
	return s
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n-3] + "..."
}

// Mastery renders one row per catalog concept in topological order with
// the learner's score, status, attempts and confidence.
func Mastery(learner string, g *skillgraph.Graph, nodes []mastery.Node) string {
	byID := make(map[string]mastery.Node, len(nodes))
	for _, n := range nodes {
		byID[n.ConceptID] = n
	}

	var b strings.Builder
	b.WriteString(Title.Render("Mastery for "+learner) + "\n\n")
	b.WriteString(Header.Render(fmt.Sprintf("%-24s  %-22s  %-12s  %8s  %10s", "Concept", "Score", "Status", "Attempts", "Confidence")) + "\n")
	b.WriteString(Hint.Render(strings.Repeat("─", 84)) + "\n")

	for _, c := range g.TopologicalOrder() {
		n, ok := byID[c.ID]
		if !ok {
			continue
		}
		score := Bar(n.Mastery, 16) + fmt.Sprintf(" %3d%%", int(n.Mastery*100))
		b.WriteString(pad(Body.Render(truncate(c.Name, 24)), 24) + "  ")
		b.WriteString(pad(score, 22) + "  ")
		b.WriteString(pad(statusStyle(n.Status).Render(string(n.Status)), 12) + "  ")
		b.WriteString(Body.Render(fmt.Sprintf("%8d  %10.2f", n.Attempts, n.Confidence)) + "\n")
	}
	return b.String()
}

// Engagement renders the learner's streak summary.
func Engagement(sum gems.Summary) string {
	lines := []string{
		fmt.Sprintf("Answers      %d", sum.Answers),
		fmt.Sprintf("Streak       %d (best %d)", sum.Streak, sum.BestStreak),
		fmt.Sprintf("Next streak  %d", gems.NextStreakThreshold(sum.Streak)),
		fmt.Sprintf("Mastered     %d", len(sum.EverMastered)),
	}
	return Card.Render(Body.Render(strings.Join(lines, "\n")))
}

// Usage renders aggregated generator usage.
func Usage(u store.LLMUsage) string {
	if u.Requests == 0 {
		return Hint.Render("No generator requests recorded.")
	}
	lines := []string{
		fmt.Sprintf("Requests   %d", u.Requests),
		fmt.Sprintf("Failures   %d", u.Failures),
		fmt.Sprintf("Tokens in  %d", u.InputTokens),
		fmt.Sprintf("Tokens out %d", u.OutputTokens),
	}
	return Card.Render(Body.Render(strings.Join(lines, "\n")))
}
