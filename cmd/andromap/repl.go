package main

import (
	"fmt"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"

	"github.com/nsoload/andromap"
)

var (
	resultStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("42"))
	errorStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("203"))
	promptStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("39")).Bold(true)
)

func replCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "repl <library.so>",
		Short: "Interactively browse and resolve a library's exported symbols",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			lib, err := andromap.OpenLibrary(args[0])
			if err != nil {
				return err
			}
			defer lib.Close()

			p := tea.NewProgram(newReplModel(lib))
			_, err = p.Run()
			return err
		},
	}
}

type historyLine struct {
	symbol string
	body   string
	isErr  bool
}

type replModel struct {
	lib     *andromap.LoadedLibrary
	input   textinput.Model
	history []historyLine
}

func newReplModel(lib *andromap.LoadedLibrary) replModel {
	ti := textinput.New()
	ti.Placeholder = "symbol name"
	ti.Focus()
	ti.Prompt = "andromap> "
	return replModel{lib: lib, input: ti}
}

func (m replModel) Init() tea.Cmd {
	return textinput.Blink
}

func (m replModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.Type {
		case tea.KeyCtrlC, tea.KeyEsc:
			return m, tea.Quit
		case tea.KeyEnter:
			name := m.input.Value()
			m.input.SetValue("")
			if name == "" {
				return m, nil
			}
			addr, err := m.lib.LoadSymbol(name)
			if err != nil {
				m.history = append(m.history, historyLine{symbol: name, body: err.Error(), isErr: true})
			} else {
				m.history = append(m.history, historyLine{symbol: name, body: fmt.Sprintf("%#x", addr)})
			}
			return m, nil
		}
	}
	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

func (m replModel) View() string {
	out := fmt.Sprintf("%s (%s)\n\n", m.lib.Path, m.lib.ID)
	for _, h := range m.history {
		line := fmt.Sprintf("  %-32s %s\n", h.symbol, h.body)
		if h.isErr {
			out += errorStyle.Render(line)
		} else {
			out += resultStyle.Render(line)
		}
	}
	out += "\n" + promptStyle.Render(m.input.View())
	return out
}
