// # internal/dialog/dialog.go
package dialog

import (
	"context"
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/list"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/sahilm/fuzzy"

	"rustfuse/internal/catalog"
	"rustfuse/internal/core/errors"
	"rustfuse/internal/policy"
)

var (
	titleStyle = lipgloss.NewStyle().
			MarginLeft(2).
			Foreground(lipgloss.Color("#3B82F6")).
			Bold(true).
			Render

	docStyle = lipgloss.NewStyle().Margin(1, 2)

	codeStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#94A3B8")).
			MarginLeft(4)

	statusStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#64748B")).
			Italic(true)
)

// Dialog prompts the operator for every candidate the configuration
// left open. One bubbletea program runs per candidate; quitting it
// cancels the whole run.
type Dialog struct {
	cat *catalog.Catalog
}

func New(cat *catalog.Catalog) *Dialog {
	return &Dialog{cat: cat}
}

func (d *Dialog) Decide(ctx context.Context, cand policy.Candidate) (policy.Decision, error) {
	m := newModel(cand, d.usageLines(cand))
	p := tea.NewProgram(m, tea.WithAltScreen(), tea.WithContext(ctx))
	final, err := p.Run()
	if err != nil {
		return policy.DecideExclude, errors.Wrap(err, errors.CodeInternal, "dialog failed")
	}
	res, ok := final.(model)
	if !ok || res.cancelled {
		return policy.DecideExclude, errors.AddContext(
			errors.New(errors.CodeOperatorCancelled, "dialog quit, run aborted"),
			errors.CtxItem, cand.Member.Name)
	}
	return res.decision, nil
}

func (d *Dialog) usageLines(cand policy.Candidate) []string {
	lines := make([]string, 0, len(cand.Usages))
	for _, id := range cand.Usages {
		if it, ok := d.cat.ItemByID(id); ok {
			lines = append(lines, fmt.Sprintf("%s (%s:%d)",
				it.Path(), it.Location.File, it.Location.Line))
		}
	}
	return lines
}

type choice struct {
	title, desc string
	decision    policy.Decision
}

func (c choice) Title() string       { return c.title }
func (c choice) Description() string { return c.desc }
func (c choice) FilterValue() string { return c.title + c.desc }

type model struct {
	cand   policy.Candidate
	usages []string

	choices   list.Model
	showCode  bool
	showUsage bool

	decision  policy.Decision
	cancelled bool
}

func newModel(cand policy.Candidate, usages []string) model {
	block := cand.Member.Owner.Name
	items := []list.Item{
		choice{"Include item", cand.Member.QualifiedName(), policy.DecideInclude},
		choice{"Exclude item", cand.Member.QualifiedName(), policy.DecideExclude},
		choice{"Include all items of block", block, policy.DecideIncludeBlock},
		choice{"Exclude all items of block", block, policy.DecideExcludeBlock},
	}
	choices := list.New(items, list.NewDefaultDelegate(), 48, 14)
	choices.Title = "Decide: " + cand.Member.QualifiedName()
	choices.SetShowStatusBar(false)
	choices.SetFilteringEnabled(true)
	choices.Filter = fuzzyFilter

	return model{cand: cand, usages: usages, choices: choices}
}

// fuzzyFilter ranks list entries with fuzzy matching instead of the
// default prefix filter, so "exall" still finds "Exclude all items".
func fuzzyFilter(term string, targets []string) []list.Rank {
	matches := fuzzy.Find(term, targets)
	ranks := make([]list.Rank, 0, len(matches))
	for _, m := range matches {
		ranks = append(ranks, list.Rank{
			Index:          m.Index,
			MatchedIndexes: m.MatchedIndexes,
		})
	}
	return ranks
}

func (m model) Init() tea.Cmd {
	return nil
}

func (m model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		if m.choices.FilterState() == list.Filtering {
			break
		}
		switch msg.Type {
		case tea.KeyEsc:
			m.cancelled = true
			return m, tea.Quit
		case tea.KeyEnter:
			if c, ok := m.choices.SelectedItem().(choice); ok {
				m.decision = c.decision
				return m, tea.Quit
			}
		case tea.KeyRunes:
			switch string(msg.Runes) {
			case "q":
				m.cancelled = true
				return m, tea.Quit
			case "c":
				m.showCode = !m.showCode
				return m, nil
			case "u":
				m.showUsage = !m.showUsage
				return m, nil
			}
		}
	case tea.WindowSizeMsg:
		h, v := docStyle.GetFrameSize()
		m.choices.SetSize(msg.Width-h, msg.Height-v-6)
	}

	var cmd tea.Cmd
	m.choices, cmd = m.choices.Update(msg)
	return m, cmd
}

func (m model) View() string {
	header := titleStyle("Impl item needs a decision")
	help := statusStyle.Render("enter decide | c code | u usage | / filter | esc abort")

	body := m.choices.View()
	if m.showCode {
		body += "\n\n" + codeStyle.Render(m.cand.Member.Source)
	}
	if m.showUsage {
		usage := "no recorded call sites"
		if len(m.usages) > 0 {
			usage = strings.Join(m.usages, "\n")
		}
		body += "\n\n" + codeStyle.Render(usage)
	}

	return docStyle.Render(header + "\n" + help + "\n\n" + body)
}
