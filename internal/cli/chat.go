package cli

import (
	"context"
	"fmt"
	"os"
	"strings"

	"charm.land/bubbles/v2/spinner"
	"charm.land/bubbles/v2/textinput"
	tea "charm.land/bubbletea/v2"
	"github.com/charmbracelet/lipgloss"
	"github.com/raphaelgruber/coursechat/internal/client"
	"github.com/raphaelgruber/coursechat/internal/service"
	"github.com/spf13/cobra"
	"golang.org/x/term"
)

var chatServer string

var chatCmd = &cobra.Command{
	Use:   "chat",
	Short: "Chat interactively with the course assistant",
	Args:  cobra.NoArgs,
	RunE:  runChat,
}

func init() {
	chatCmd.Flags().StringVar(&chatServer, "server", "", "chat with a running coursechat-server instead of the local pipeline")
}

func runChat(cmd *cobra.Command, args []string) error {
	if !term.IsTerminal(int(os.Stdin.Fd())) {
		return fmt.Errorf("chat needs an interactive terminal, use 'coursechat ask' instead")
	}

	var q querier
	if chatServer != "" {
		q = client.New(chatServer)
	} else {
		assistant, err := getAssistant(context.Background())
		if err != nil {
			return err
		}
		q = assistant
	}

	_, err := tea.NewProgram(newChatModel(q)).Run()
	return err
}

// chatTheme holds the color scheme for the chat display.
type chatTheme struct {
	User      lipgloss.Color
	Assistant lipgloss.Color
	Source    lipgloss.Color
	Error     lipgloss.Color
}

var defaultChatTheme = chatTheme{
	User:      lipgloss.Color("#5FAFD7"), // light blue
	Assistant: lipgloss.Color("#00D787"), // green
	Source:    lipgloss.Color("#6C6C6C"), // dim gray
	Error:     lipgloss.Color("#FF005F"), // red
}

func (t chatTheme) userStyle() lipgloss.Style {
	return lipgloss.NewStyle().Foreground(t.User).Bold(true)
}

func (t chatTheme) assistantStyle() lipgloss.Style {
	return lipgloss.NewStyle().Foreground(t.Assistant).Bold(true)
}

func (t chatTheme) sourceStyle() lipgloss.Style {
	return lipgloss.NewStyle().Foreground(t.Source).Italic(true)
}

func (t chatTheme) errorStyle() lipgloss.Style {
	return lipgloss.NewStyle().Foreground(t.Error)
}

// answerMsg carries the assistant's reply back into the update loop.
type answerMsg struct {
	resp *service.QueryResponse
	err  error
}

// chatModel is the bubbletea model for the interactive chat.
type chatModel struct {
	assistant querier
	input     textinput.Model
	spin      spinner.Model
	theme     chatTheme
	lines     []string
	sessionID string
	waiting   bool
	quitting  bool
}

// newChatModel creates the chat model with a focused input field.
func newChatModel(assistant querier) chatModel {
	ti := textinput.New()
	ti.Placeholder = "Ask about your courses"
	ti.CharLimit = 500
	ti.Focus()

	sp := spinner.New()
	sp.Spinner = spinner.Dot

	return chatModel{
		assistant: assistant,
		input:     ti,
		spin:      sp,
		theme:     defaultChatTheme,
	}
}

// Init returns the initial command.
func (m chatModel) Init() tea.Cmd {
	return textinput.Blink
}

// Update handles messages and returns the updated model.
func (m chatModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyPressMsg:
		switch msg.String() {
		case "ctrl+c", "esc":
			m.quitting = true
			return m, tea.Quit
		case "enter":
			question := strings.TrimSpace(m.input.Value())
			if m.waiting || question == "" {
				return m, nil
			}
			m.lines = append(m.lines, m.theme.userStyle().Render("You: ")+question)
			m.input.SetValue("")
			m.waiting = true
			return m, tea.Batch(m.spin.Tick, m.query(question))
		}

	case spinner.TickMsg:
		if m.waiting {
			var cmd tea.Cmd
			m.spin, cmd = m.spin.Update(msg)
			return m, cmd
		}
		return m, nil

	case answerMsg:
		m.waiting = false
		if msg.err != nil {
			m.lines = append(m.lines, m.theme.errorStyle().Render(fmt.Sprintf("Error: %v", msg.err)))
			return m, nil
		}
		m.sessionID = msg.resp.SessionID
		m.lines = append(m.lines, m.theme.assistantStyle().Render("Assistant: ")+msg.resp.Answer)
		for _, src := range msg.resp.Sources {
			label := src.Label
			if src.Link != nil {
				label = fmt.Sprintf("%s (%s)", src.Label, *src.Link)
			}
			m.lines = append(m.lines, m.theme.sourceStyle().Render("  source: "+label))
		}
		return m, nil
	}

	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

// View renders the conversation and the input line.
func (m chatModel) View() tea.View {
	if m.quitting {
		return tea.NewView("")
	}

	var b strings.Builder
	for _, line := range m.lines {
		b.WriteString(line)
		b.WriteString("\n")
	}
	if m.waiting {
		b.WriteString(m.spin.View() + " thinking...\n")
	} else {
		b.WriteString("\n" + m.input.View() + "\n")
	}
	b.WriteString(m.theme.sourceStyle().Render("enter to send, esc to quit"))
	return tea.NewView(b.String())
}

// query asks the assistant in the background so Update never blocks.
func (m chatModel) query(question string) tea.Cmd {
	sessionID := m.sessionID
	return func() tea.Msg {
		resp, err := m.assistant.Query(context.Background(), question, sessionID)
		return answerMsg{resp: resp, err: err}
	}
}
