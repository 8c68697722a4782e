package discord

import (
	"fmt"
	"strings"

	"github.com/rewired-gh/paceoracle/internal/models"
	"github.com/rewired-gh/paceoracle/internal/projection"
)

const divider = "━━━━━━━━━━━━━━━━━━━━━━━━"

var momentumLabels = map[projection.Momentum]string{
	projection.MomentumOnFire:           "🔥 ON FIRE",
	projection.MomentumHeatingUp:        "⚡ HEATING UP",
	projection.MomentumCoolingOff:       "❄️ COOLING OFF",
	projection.MomentumSlowingDown:      "📉 SLOWING DOWN",
	projection.MomentumSteady:           "➡️ STEADY",
	projection.MomentumInsufficientData: "📊 DATA",
}

var reliabilityLabels = map[projection.Reliability]string{
	projection.ReliabilityReliable:    "✅ RELIABLE",
	projection.ReliabilityStrongUp:    "📈 STRONG UP",
	projection.ReliabilityCautionDown: "⚠️ CAUTION DOWN",
	projection.ReliabilityRisky:       "🎲 RISKY",
}

// formatMessage renders an alert as Discord markdown.
func (c *Client) formatMessage(a models.Alert) string {
	var b strings.Builder
	fmt.Fprintf(&b, "⏰ **%s**\n\n", a.CreatedAt.In(c.loc).Format("01/02/2006, 03:04 PM"))

	switch a.Kind {
	case models.AlertReserved:
		fmt.Fprintf(&b, "🟢 **Game reserved for tracking** (%s)\n\n", projection.PeriodLabel(a.Quarter))
		fmt.Fprintf(&b, "**%s vs. %s**\n", a.HomeName, a.AwayName)
		b.WriteString("Sampling starts in Q2. Projection alerts start in Q3.")
	case models.AlertStall:
		fmt.Fprintf(&b, "⚠️ **Feed stalled** (%s). Releasing slot.\n\n", projection.PeriodLabel(a.Quarter))
		fmt.Fprintf(&b, "**%s vs. %s**\n", a.HomeName, a.AwayName)
		writeClock(&b, a)
	case models.AlertOverLocked:
		writeOverLocked(&b, a)
	case models.AlertFinal:
		writeFinal(&b, a)
	case models.AlertDecisionWindow:
		writeDecision(&b, a)
	case models.AlertPeriodic:
		writePeriodic(&b, a)
	default:
		b.WriteString(a.Title)
	}
	return b.String()
}

func writeClock(b *strings.Builder, a models.Alert) {
	fmt.Fprintf(b, "⏱️ %s, %d:%02d | 📊 %d (%d-%d)\n",
		projection.PeriodLabel(a.Quarter), a.Minute, a.Second, a.TotalScore(), a.HomeScore, a.AwayScore)
}

func writeOverLocked(b *strings.Builder, a models.Alert) {
	b.WriteString("✅ **OVER LOCKED**\n\n")
	fmt.Fprintf(b, "**%s vs. %s**\n", a.HomeName, a.AwayName)
	if a.Decision != nil && a.Decision.Total.Line != nil {
		fmt.Fprintf(b, "Current: %d > Line: %s\n\n", a.TotalScore(), fmtLine(a.Decision.Total.Line))
	}
	b.WriteString("Winner! 🎉\n")
	b.WriteString(divider)
}

func writeFinal(b *strings.Builder, a models.Alert) {
	b.WriteString("🏁 **FINAL**\n\n")
	fmt.Fprintf(b, "**%s vs. %s**\n", a.HomeName, a.AwayName)
	fmt.Fprintf(b, "FINAL (%s): %d-%d (Total: %d)\n", projection.PeriodLabel(a.Quarter), a.HomeScore, a.AwayScore, a.TotalScore())

	if d := a.Decision; d != nil {
		b.WriteString("\n")
		writeGrade(b, "Game total", d.Total, float64(a.TotalScore()))
		writeGrade(b, a.HomeName, d.Home, float64(a.HomeScore))
		writeGrade(b, a.AwayName, d.Away, float64(a.AwayScore))
	}
	b.WriteString(divider)
}

func writeGrade(b *strings.Builder, label string, call models.SideCall, actual float64) {
	result := call.Grade(actual)
	if result == models.ResultNone {
		return
	}
	fmt.Fprintf(b, "%s: %s %s → **%s**\n", label, call.Recommendation, fmtLine(call.Line), result)
}

func writeDecision(b *strings.Builder, a models.Alert) {
	b.WriteString("🎯🚨 **BETTING DECISION WINDOW** 🚨🎯\n\n")
	fmt.Fprintf(b, "**%s vs. %s**\n", a.HomeName, a.AwayName)
	writeClock(b, a)
	b.WriteString("\n🏁 **FINAL CALL: Place wager now!**\n\n")
	b.WriteString(divider + "\n\n")

	d := a.Decision
	if d == nil {
		b.WriteString("No decision recorded.")
		return
	}

	fmt.Fprintf(b, "💰 **GAME TOTAL (%d)**\n\n", a.TotalScore())
	fmt.Fprintf(b, "Avg: **%.1f** | Line: **%s**\n", d.Total.Projection, fmtLine(d.Total.Line))
	fmt.Fprintf(b, "Diff: %s pts | 🎯 **REC: %s**\n\n", fmtDiff(d.Total), fmtRec(d.Total))
	b.WriteString(divider + "\n\n")

	if d.Home.Line != nil && d.Away.Line != nil {
		b.WriteString("💰 **TEAM TOTALS**\n\n")
		fmt.Fprintf(b, "**%s** (%d) | Line: **%s** | Avg: **%.1f**\n", a.HomeName, a.HomeScore, fmtLine(d.Home.Line), d.Home.Projection)
		fmt.Fprintf(b, "Diff: %s | 🎯 **REC: %s**\n\n", fmtDiff(d.Home), fmtRec(d.Home))
		fmt.Fprintf(b, "**%s** (%d) | Line: **%s** | Avg: **%.1f**\n", a.AwayName, a.AwayScore, fmtLine(d.Away.Line), d.Away.Projection)
		fmt.Fprintf(b, "Diff: %s | 🎯 **REC: %s**\n\n", fmtDiff(d.Away), fmtRec(d.Away))
		b.WriteString(divider + "\n\n")
	}

	b.WriteString("🧪 **EXPERIMENTAL BLENDED PROJECTION** (⚠️ Beta)\n\n")
	writeBlended(b, "TOTAL", d.BlendedTotal)
	writeBlended(b, a.HomeName, d.BlendedHome)
	writeBlended(b, a.AwayName, d.BlendedAway)
	b.WriteString(divider)
}

func writeBlended(b *strings.Builder, label string, call models.SideCall) {
	fmt.Fprintf(b, "**%s:** Blend %.1f | Line %s | Diff %s | 🎯 **BET %s**\n\n",
		label, call.Projection, fmtLine(call.Line), fmtDiff(call), fmtRec(call))
}

func writePeriodic(b *strings.Builder, a models.Alert) {
	fmt.Fprintf(b, "**%s vs. %s**\n", a.HomeName, a.AwayName)
	writeClock(b, a)
	b.WriteString("\n" + divider + "\n\n")

	p := a.Projections
	if p == nil {
		b.WriteString("No projections yet.")
		return
	}

	homeTag, awayTag := leaderTags(a.Leader)
	b.WriteString("📊 **PROJECTIONS**\n\n")
	fmt.Fprintf(b, "**%s** (%d) %s%s\n", a.HomeName, a.HomeScore, momentumLabel(a.HomeMomentum), homeTag)
	fmt.Fprintf(b, "Raw: %.1f | Avg: **%.1f**\n", p.Home.Raw, p.Home.Avg)
	fmt.Fprintf(b, "Line: **%s** | Diff: %s\n\n", fmtLine(a.HomeLine), fmtDiff(models.SideCall{Projection: p.Home.Avg, Line: a.HomeLine}))
	fmt.Fprintf(b, "**%s** (%d) %s%s\n", a.AwayName, a.AwayScore, momentumLabel(a.AwayMomentum), awayTag)
	fmt.Fprintf(b, "Raw: %.1f | Avg: **%.1f**\n", p.Away.Raw, p.Away.Avg)
	fmt.Fprintf(b, "Line: **%s** | Diff: %s\n\n", fmtLine(a.AwayLine), fmtDiff(models.SideCall{Projection: p.Away.Avg, Line: a.AwayLine}))
	b.WriteString(divider + "\n\n")

	var total *float64
	if a.Odds != nil {
		total = &a.Odds.TotalLine
	}
	fmt.Fprintf(b, "💰 **GAME TOTAL (%d)**\n\n", a.TotalScore())
	fmt.Fprintf(b, "Raw: %.1f | Avg: **%.1f**\n", p.Total.Raw, p.Total.Avg)
	fmt.Fprintf(b, "Line: **%s** | Diff: %s pts\n\n", fmtLine(total), fmtDiff(models.SideCall{Projection: p.Total.Avg, Line: total}))

	fmt.Fprintf(b, "Samples: %d", a.Samples)
	if label, ok := reliabilityLabels[a.Reliability]; ok && a.Samples >= projection.TrendWindow {
		fmt.Fprintf(b, " | **Reliability: %s**", label)
	}
	b.WriteString("\n\n" + divider)
}

func leaderTags(l projection.Leader) (home, away string) {
	switch l {
	case projection.LeaderHome:
		return " | 👑 LEADER", " | 🎯 UNDERDOG"
	case projection.LeaderAway:
		return " | 🎯 UNDERDOG", " | 👑 LEADER"
	}
	return "", ""
}

func momentumLabel(m projection.Momentum) string {
	if label, ok := momentumLabels[m]; ok {
		return label
	}
	return string(m)
}

func fmtLine(line *float64) string {
	if line == nil {
		return "N/A"
	}
	return fmt.Sprintf("%.1f", *line)
}

func fmtDiff(call models.SideCall) string {
	diff, ok := call.Diff()
	if !ok {
		return "N/A"
	}
	return fmt.Sprintf("%+.1f", diff)
}

func fmtRec(call models.SideCall) string {
	if call.Recommendation == models.RecommendNoBet || call.Line == nil {
		return "NO BET"
	}
	return fmt.Sprintf("%s %s ✅", call.Recommendation, fmtLine(call.Line))
}
