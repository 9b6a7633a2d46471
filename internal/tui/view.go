package tui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/fjod/storefront/internal/client"
	"github.com/fjod/storefront/internal/domain"
	"github.com/shopspring/decimal"
)

var (
	titleStyle    = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#5B8DEF"))
	mutedStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("#888888"))
	selectedStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#FFFFFF"))
	pendingStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("#F7B801"))
	failedStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("#FF6B6B"))
	infoStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("#4CAF50"))
	totalStyle    = lipgloss.NewStyle().Bold(true)
	boxStyle      = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("#444444")).
			Padding(0, 1)
)

func (a *App) View() string {
	sections := []string{titleStyle.Render("⬡ STOREFRONT · cart")}

	switch {
	case a.loading && a.store.IsEmpty():
		sections = append(sections, mutedStyle.Render("loading cart..."))
	case a.store.IsEmpty():
		sections = append(sections, mutedStyle.Render("Your cart is empty."))
	default:
		sections = append(sections, boxStyle.Render(a.renderLines()), a.renderTotals())
	}

	sections = append(sections, a.renderAddress())

	if a.placing {
		sections = append(sections, a.spinner.View()+" placing order...")
	} else if a.flash != "" {
		style := infoStyle
		if a.flashKind == flashError {
			style = failedStyle
		}
		sections = append(sections, style.Render(a.flash))
	}

	sections = append(sections, a.help.View(a.keys))
	return lipgloss.JoinVertical(lipgloss.Left, sections...)
}

func (a *App) renderLines() string {
	lines := a.store.Lines()
	nameWidth := 12
	for _, l := range lines {
		nameWidth = max(nameWidth, lipgloss.Width(l.Item.Name))
	}

	rows := make([]string, 0, len(lines)+1)
	rows = append(rows, mutedStyle.Render(fmt.Sprintf("  %-*s %5s %10s %10s", nameWidth, "item", "qty", "price", "subtotal")))
	for i, l := range lines {
		cursor := "  "
		if i == a.cursor {
			cursor = "> "
		}
		row := fmt.Sprintf("%s%-*s %5d %10s %10s %s",
			cursor, nameWidth, l.Item.Name, l.Quantity(),
			money(l.Item.UnitPrice),
			money(l.Item.UnitPrice.Mul(decimal.NewFromInt(int64(l.Quantity())))),
			lineMarker(l))
		if i == a.cursor {
			row = selectedStyle.Render(row)
		}
		rows = append(rows, row)
	}
	return strings.Join(rows, "\n")
}

func lineMarker(l client.Line) string {
	switch l.State {
	case client.LinePending:
		return pendingStyle.Render("saving")
	case client.LineFailed:
		return failedStyle.Render("not saved")
	default:
		return ""
	}
}

func (a *App) renderTotals() string {
	t := a.store.Totals()
	shipping := money(t.Shipping)
	if t.Shipping.IsZero() {
		shipping = "free"
	}
	rows := []string{
		fmt.Sprintf("%-10s %12s", "items", money(t.ItemsTotal)),
		fmt.Sprintf("%-10s %12s", "tax", money(t.Tax)),
		fmt.Sprintf("%-10s %12s", "shipping", shipping),
		totalStyle.Render(fmt.Sprintf("%-10s %12s", "total", money(t.GrandTotal))),
	}
	return strings.Join(rows, "\n")
}

func (a *App) renderAddress() string {
	addr := a.composer.Draft().Address
	if addr == (domain.ShippingAddress{}) {
		return mutedStyle.Render("ship to: (no address set)")
	}
	return mutedStyle.Render(fmt.Sprintf("ship to: %s, %s %s, %s · %s",
		addr.Address, addr.PostalCode, addr.City, addr.Country, addr.Phone))
}

func money(d decimal.Decimal) string {
	return d.StringFixed(2)
}
