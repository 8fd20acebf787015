package monitor

import (
	"fmt"
	"strings"

	"finscope/internal/application"
	"finscope/internal/application/port"
	"finscope/internal/domain"
)

const (
	ansiReset    = "\033[0m"
	ansiRed      = "\033[31m"
	ansiGreen    = "\033[32m"
	ansiYellow   = "\033[33m"
	ansiDim      = "\033[2m"
	ansiClearEOL = "\033[K"
)

func colorize(s, c string) string { return c + s + ansiReset }

func dirColor(d Dir) string {
	switch d {
	case DirUp:
		return ansiGreen
	case DirDown:
		return ansiRed
	default:
		return ansiYellow
	}
}

func signColor(v float64) string {
	switch {
	case v > 0:
		return ansiGreen
	case v < 0:
		return ansiRed
	default:
		return ansiYellow
	}
}

type Formatter struct{}

func NewFormatter() *Formatter { return &Formatter{} }

type RenderMode int

const (
	RenderLive RenderMode = iota
	RenderSnapshot
)

// Render produces one line. Live lines start with \r and clear to end of
// line; snapshot lines add movers and the portfolio summary.
func (f *Formatter) Render(st *State, fr Frame, mode RenderMode) string {
	var sb strings.Builder
	if mode == RenderLive {
		sb.WriteString("\r")
	}
	sb.WriteString(colorize("[FINSCOPE] ", ansiDim))

	parts := 0
	if fr.CryptoStatus != nil {
		writeStatus(&sb, application.FeedBinance, *fr.CryptoStatus)
		for _, p := range fr.Crypto {
			writeRow(&sb, p.Symbol, p.Price, p.ChangePercent, st.Dir(domain.ClassCrypto, p.Symbol))
		}
		parts++
	}
	if fr.StockStatus != nil {
		if parts > 0 {
			sb.WriteString(colorize("  ||  ", ansiDim))
		}
		writeStatus(&sb, application.FeedFinnhub, *fr.StockStatus)
		for _, p := range fr.Stocks {
			writeRow(&sb, domain.DisplayName(p.Symbol), p.Price, p.ChangePercent, st.Dir(domain.ClassStocks, p.Symbol))
		}
	}

	if mode == RenderSnapshot {
		if len(fr.Movers) > 0 {
			sb.WriteString(colorize("  ||  movers", ansiDim))
			for _, m := range fr.Movers {
				sb.WriteString(" ")
				sb.WriteString(colorize(fmt.Sprintf("%s %s", m.Symbol, domain.FormatPercentage(m.ChangePercent)), signColor(m.ChangePercent)))
			}
		}
		if v := fr.Valuation; v != nil {
			pl, _ := v.PL.Float64()
			pct, _ := v.PLPercent.Float64()
			total, _ := v.TotalValue.Float64()
			sb.WriteString(colorize("  ||  portfolio ", ansiDim))
			sb.WriteString(domain.FormatCurrency(total))
			sb.WriteString(" ")
			sb.WriteString(colorize(fmt.Sprintf("P&L %s (%s)", domain.FormatCurrency(pl), domain.FormatPercentage(pct)), signColor(pl)))
		}
	}

	if mode == RenderLive {
		sb.WriteString(ansiClearEOL)
	}
	return sb.String()
}

func writeStatus(sb *strings.Builder, feed string, st port.FeedStatus) {
	label := feed + ":" + st.State
	col := ansiDim
	switch {
	case st.Degraded:
		label += "!"
		col = ansiRed
	case st.State != "open":
		col = ansiYellow
	}
	sb.WriteString(colorize(label, col))
}

func writeRow(sb *strings.Builder, label string, price, pct float64, d Dir) {
	sb.WriteString(" ")
	sb.WriteString(label)
	sb.WriteString(" ")
	sb.WriteString(colorize(domain.FormatCurrency(price), dirColor(d)))
	sb.WriteString(" ")
	sb.WriteString(colorize(domain.FormatPercentage(pct), signColor(pct)))
}
