package tui

import (
	"strconv"
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/devbush/submanager/internal/domain"
)

var (
	selectedStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("212")).Bold(true)
	normalStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("252"))
	hintStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("241"))
	onStyle       = lipgloss.NewStyle().Foreground(lipgloss.Color("42"))
	offStyle      = lipgloss.NewStyle().Foreground(lipgloss.Color("245"))
	headerStyle   = lipgloss.NewStyle().Border(lipgloss.NormalBorder(), false, false, true, false).
			BorderForeground(lipgloss.Color("63")).MarginBottom(1)
)

// MenuOption is one action of the main menu. Hint is shown under the
// highlighted option.
type MenuOption struct {
	Label string
	Value string
	Hint  string
}

// MenuHeader describes the account the menu acts on
type MenuHeader struct {
	Account   *domain.Account
	Discovery bool
	Retention int
}

// MenuModel is the bubbletea model for the main menu
type MenuModel struct {
	header   MenuHeader
	options  []MenuOption
	cursor   int
	selected string
}

// NewMenuModel creates a new menu
func NewMenuModel(header MenuHeader, options []MenuOption) MenuModel {
	return MenuModel{
		header:  header,
		options: options,
	}
}

func (m MenuModel) Init() tea.Cmd {
	return nil
}

func (m MenuModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	key, ok := msg.(tea.KeyMsg)
	if !ok {
		return m, nil
	}

	switch key.String() {
	case "up", "k":
		m.cursor = (m.cursor + len(m.options) - 1) % max(len(m.options), 1)
	case "down", "j", "tab":
		m.cursor = (m.cursor + 1) % max(len(m.options), 1)
	case "enter":
		if len(m.options) > 0 {
			m.selected = m.options[m.cursor].Value
		}
		return m, tea.Quit
	case "q", "esc", "ctrl+c":
		return m, tea.Quit
	}
	return m, nil
}

func (m MenuModel) renderHeader() string {
	var b strings.Builder
	if acc := m.header.Account; acc != nil && acc.Username != "" {
		b.WriteString(titleStyle.Render("@" + string(acc.Username)))
		b.WriteString("  ")
		b.WriteString(hintStyle.Render(acc.ProfileURL()))
	} else {
		b.WriteString(offStyle.Render("no account configured"))
	}
	b.WriteString("\n")

	b.WriteString(labelStyle.Render("Discovery"))
	if m.header.Discovery {
		b.WriteString(onStyle.Render("on"))
		if m.header.Retention > 0 {
			b.WriteString(hintStyle.Render(" (keeps new accounts " + strconv.Itoa(m.header.Retention) + " days)"))
		}
	} else {
		b.WriteString(offStyle.Render("off"))
	}
	return headerStyle.Render(b.String())
}

func (m MenuModel) View() string {
	var b strings.Builder
	b.WriteString(m.renderHeader())
	b.WriteString("\n")

	for i, opt := range m.options {
		if i != m.cursor {
			b.WriteString("  " + normalStyle.Render(opt.Label) + "\n")
			continue
		}
		b.WriteString("> " + selectedStyle.Render(opt.Label) + "\n")
		if opt.Hint != "" {
			b.WriteString("    " + hintStyle.Render(opt.Hint) + "\n")
		}
	}

	b.WriteString("\n")
	b.WriteString(hintStyle.Render("↑/↓ move • enter select • q quit"))
	b.WriteString("\n")
	return b.String()
}

// Selected returns the selected value, empty when cancelled
func (m MenuModel) Selected() string {
	return m.selected
}

// RunMenu displays the menu and returns the selection
func RunMenu(header MenuHeader, options []MenuOption) (string, error) {
	finalModel, err := tea.NewProgram(NewMenuModel(header, options)).Run()
	if err != nil {
		return "", err
	}
	return finalModel.(MenuModel).Selected(), nil
}
