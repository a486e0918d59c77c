package main

import (
	"fmt"
	"log/slog"
	"maps"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/atotto/clipboard"
	"github.com/charmbracelet/bubbles/textarea"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/google/uuid"
	"github.com/jwebster45206/novel-engine/internal/config"
	"github.com/jwebster45206/novel-engine/internal/handlers"
	"github.com/jwebster45206/novel-engine/pkg/battle"
	"github.com/jwebster45206/novel-engine/pkg/content"
	"github.com/jwebster45206/novel-engine/pkg/state"
	"github.com/muesli/reflow/wordwrap"
)

const (
	PlaceHolderText = "Enter to continue, a number to choose, /help for commands"
	playtimeEvery   = 30 * time.Second
)

type entryKind int

const (
	entryScene entryKind = iota
	entryLine
	entryChoices
	entryBattle
	entryInfo
	entryError
)

// entry is one item of the story log. The log is kept unrendered so it can
// be wrapped again when the window is resized.
type entry struct {
	kind       entryKind
	atmosphere content.Atmosphere
	speaker    string
	text       string
}

// ConsoleUI is the BubbleTea model that runs the player.
// https://github.com/charmbracelet/bubbletea
type ConsoleUI struct {
	config    *config.ConsoleConfig
	api       *apiClient
	logger    *slog.Logger
	sessionID uuid.UUID
	view      state.View
	entries   []entry

	storyViewport viewport.Model
	metaViewport  viewport.Model
	textarea      textarea.Model
	ready         bool
	width         int
	height        int

	busy            bool
	tickPending     bool // a battleTickMsg is scheduled
	pendingPlaytime int64
	showQuitModal   bool
}

type sessionMsg struct {
	op  string
	res *handlers.SessionResponse
	err error
}

type infoMsg struct {
	text string
	err  error
}

type battleTickMsg struct{}

type playtimeTickMsg struct{}

var (
	storyPanelStyle = lipgloss.NewStyle().
			PaddingTop(1).
			PaddingLeft(3)

	metaPanelStyle = lipgloss.NewStyle().
			PaddingTop(1).
			PaddingRight(2)

	titleStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("205")). // pink
			Bold(true)

	speakerStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("212")). // purple
			Bold(true)

	narratorStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("250")).
			Italic(true)

	choiceStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("39")) // teal

	battleStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("214")) // yellow

	errorStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("196")) // red

	promptStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("240")) // dark grey

	separatorStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("240"))

	modalStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("62")).
			Padding(1, 2).
			Background(lipgloss.Color("235")).
			Foreground(lipgloss.Color("255"))

	modalTitleStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("205")).
			Bold(true).
			Align(lipgloss.Center)
)

// atmosphereColors themes scene headers by mood.
var atmosphereColors = map[content.Atmosphere]lipgloss.Color{
	content.AtmosphereNeutral: lipgloss.Color("252"),
	content.AtmosphereWindows: lipgloss.Color("33"),
	content.AtmosphereLinux:   lipgloss.Color("214"),
	content.AtmosphereChaos:   lipgloss.Color("160"),
	content.AtmosphereVictory: lipgloss.Color("46"),
}

func sceneStyle(a content.Atmosphere) lipgloss.Style {
	color, ok := atmosphereColors[a]
	if !ok {
		color = atmosphereColors[content.AtmosphereNeutral]
	}
	return lipgloss.NewStyle().Foreground(color).Bold(true)
}

func NewConsoleUI(cfg *config.ConsoleConfig, api *apiClient, session *handlers.SessionResponse, logger *slog.Logger) ConsoleUI {
	ta := textarea.New()
	ta.Placeholder = PlaceHolderText
	ta.Focus()
	ta.Prompt = promptStyle.Render(":: ")
	ta.CharLimit = 200
	ta.SetWidth(50)
	ta.SetHeight(1)
	ta.ShowLineNumbers = false

	storyVp := viewport.New(50, 20)
	storyVp.MouseWheelEnabled = true

	m := ConsoleUI{
		config:        cfg,
		api:           api,
		logger:        logger,
		sessionID:     session.SessionID,
		textarea:      ta,
		storyViewport: storyVp,
		metaViewport:  viewport.New(20, 20),
	}
	m.entries = append(m.entries, sceneEntry(session.View))
	m.entries = append(m.entries, stateEntries(session.View)...)
	m.view = session.View
	m.tickPending = m.view.Mode == state.ModeBattle
	return m
}

func sceneEntry(v state.View) entry {
	return entry{kind: entryScene, atmosphere: v.Atmosphere, text: v.SceneTitle}
}

// stateEntries describes what the player is looking at in v.
func stateEntries(v state.View) []entry {
	var out []entry
	switch v.Mode {
	case state.ModeDialogue:
		if v.Dialogue != nil {
			out = append(out, entry{kind: entryLine, speaker: v.Dialogue.SpeakerName, text: v.Dialogue.Text})
		}
		if v.Ended {
			out = append(out, entry{kind: entryInfo, text: "THE END. Type /reset to play again."})
		}
	case state.ModeChoices:
		var b strings.Builder
		for _, c := range v.Choices {
			fmt.Fprintf(&b, "[%d] %s", c.ID, c.Text)
			if c.Consequence != "" {
				fmt.Fprintf(&b, " (%s)", c.Consequence)
			}
			b.WriteString("\n")
		}
		out = append(out, entry{kind: entryChoices, text: strings.TrimSuffix(b.String(), "\n")})
	case state.ModeBattle:
		out = append(out, entry{kind: entryBattle, text: "The battle begins!"})
	}
	return out
}

func phaseEntry(p *battle.PhaseResult) entry {
	if p.Step == nil {
		return entry{kind: entryBattle, text: "The battle is over."}
	}
	actor := "Your side"
	if p.Step.Side == content.SideEnemy {
		actor = "The enemy"
	}
	name := p.Step.Name
	if name == "" {
		name = "an attack"
	}
	text := fmt.Sprintf("%s uses %s for %d damage", actor, name, p.Step.Damage)
	if p.Step.Heal > 0 {
		text += fmt.Sprintf(" and heals %d", p.Step.Heal)
	}
	text += fmt.Sprintf(". Ally %d HP, enemy %d HP.", p.Health.Ally, p.Health.Enemy)
	return entry{kind: entryBattle, text: text}
}

func renderEntry(e entry, width int) string {
	if width < 10 {
		width = 10
	}
	switch e.kind {
	case entryScene:
		title := strings.ToUpper(e.text)
		return sceneStyle(e.atmosphere).Render("== "+title+" ==") + "\n"
	case entryLine:
		if e.speaker == "" || strings.EqualFold(e.speaker, content.SpeakerNarrator) {
			return narratorStyle.Render(wordwrap.String(e.text, width))
		}
		prefix := e.speaker + ": "
		wrapped := wordwrap.String(e.text, width-len(prefix))
		return speakerStyle.Render(prefix) + strings.ReplaceAll(wrapped, "\n", "\n"+strings.Repeat(" ", len(prefix)))
	case entryChoices:
		return choiceStyle.Render(wordwrap.String(e.text, width))
	case entryBattle:
		return battleStyle.Render(wordwrap.String(e.text, width))
	case entryError:
		return errorStyle.Render(wordwrap.String("Error: "+e.text, width))
	default:
		return promptStyle.Render(wordwrap.String(e.text, width))
	}
}

// writeStoryContent renders the story log for the current viewport width
func (m *ConsoleUI) writeStoryContent() {
	width := m.storyViewport.Width - 4
	var b strings.Builder
	b.WriteString(titleStyle.Render("NOVEL ENGINE") + "\n\n")
	for _, e := range m.entries {
		b.WriteString(renderEntry(e, width) + "\n\n")
	}
	m.storyViewport.SetContent(b.String())
	m.storyViewport.GotoBottom()
}

func healthBar(hp, width int) string {
	filled := hp * width / battle.MaxHP
	return strings.Repeat("█", filled) + strings.Repeat("░", width-filled)
}

func writeMetadata(id uuid.UUID, v state.View) string {
	var b strings.Builder
	b.WriteString(titleStyle.Render("SESSION") + "\n\n")
	b.WriteString("ID:\n" + id.String()[:8] + "...\n\n")
	b.WriteString("Scene:\n" + v.SceneTitle + "\n\n")
	b.WriteString(fmt.Sprintf("Mood: %s\n", v.Atmosphere))
	b.WriteString(fmt.Sprintf("Music: ♪ %s\n", v.Track))
	path := string(v.Path)
	if path == "" {
		path = "undecided"
	}
	b.WriteString(fmt.Sprintf("Path: %s\n", path))
	b.WriteString(fmt.Sprintf("Playtime: %s\n\n", time.Duration(v.PlaytimeSeconds)*time.Second))

	if v.Battle != nil {
		b.WriteString("Battle:\n")
		b.WriteString(fmt.Sprintf("Ally  %s %3d\n", healthBar(v.Battle.Health.Ally, 10), v.Battle.Health.Ally))
		b.WriteString(fmt.Sprintf("Enemy %s %3d\n", healthBar(v.Battle.Health.Enemy, 10), v.Battle.Health.Enemy))
		b.WriteString(fmt.Sprintf("Phase %d/%d\n\n", v.Battle.Phase, v.Battle.TotalSteps))
	}

	if len(v.Flags) > 0 {
		b.WriteString("Flags:\n")
		for _, k := range slices.Sorted(maps.Keys(v.Flags)) {
			b.WriteString(fmt.Sprintf("• %s: %v\n", k, v.Flags[k]))
		}
	} else {
		b.WriteString("Flags:\nNone set\n")
	}

	b.WriteString("\nCommands:\n")
	b.WriteString("• Enter: Continue\n")
	b.WriteString("• 1-9: Choose\n")
	b.WriteString("• /help: Help\n")
	b.WriteString("• Ctrl+C: Quit\n")
	return b.String()
}

func (m ConsoleUI) Init() tea.Cmd {
	cmds := []tea.Cmd{textarea.Blink, playtimeTick()}
	if m.tickPending {
		cmds = append(cmds, battleTickCmd(m.config.BattleTick))
	}
	return tea.Batch(cmds...)
}

func (m *ConsoleUI) layout() {
	storyWidth := int(float64(m.width)*0.72) - 4
	metaWidth := m.width - storyWidth - 6

	m.storyViewport.Width = storyWidth - 2
	m.storyViewport.Height = m.height - 5
	m.metaViewport.Width = metaWidth - 2
	m.metaViewport.Height = m.height - 2
	m.textarea.SetWidth(storyWidth - 4)
}

func (m ConsoleUI) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	if m.showQuitModal {
		return m.updateQuitModal(msg)
	}

	var (
		tiCmd tea.Cmd
		vpCmd tea.Cmd
	)

	switch msg := msg.(type) {
	case tea.MouseMsg:
		m.storyViewport, vpCmd = m.storyViewport.Update(msg)
		return m, vpCmd

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.layout()
		m.ready = true
		m.writeStoryContent()
		m.metaViewport.SetContent(writeMetadata(m.sessionID, m.view))

	case tea.KeyMsg:
		switch msg.Type {
		case tea.KeyCtrlC, tea.KeyEsc:
			m.showQuitModal = true
			return m, nil
		case tea.KeyEnter:
			input := strings.TrimSpace(m.textarea.Value())
			m.textarea.Reset()
			if strings.HasPrefix(input, "/") {
				return m.handleCommand(input)
			}
			if m.busy {
				return m, nil
			}
			return m.act(input)
		}

	case sessionMsg:
		m.busy = false
		return m.applySession(msg)

	case infoMsg:
		if msg.err != nil {
			m.logger.Warn("Command failed", "error", msg.err)
			m.entries = append(m.entries, entry{kind: entryError, text: msg.err.Error()})
		} else {
			m.entries = append(m.entries, entry{kind: entryInfo, text: msg.text})
		}
		m.writeStoryContent()
		return m, nil

	case battleTickMsg:
		m.tickPending = false
		if m.view.Mode != state.ModeBattle {
			return m, nil
		}
		if m.busy {
			// Another request is in flight; try again on the next tick.
			return m, m.battleTick()
		}
		return m.act("")

	case playtimeTickMsg:
		m.pendingPlaytime += int64(playtimeEvery / time.Second)
		if m.busy {
			return m, playtimeTick()
		}
		seconds := m.pendingPlaytime
		m.pendingPlaytime = 0
		m.busy = true
		return m, tea.Batch(m.run("playtime", func() (*handlers.SessionResponse, error) {
			if err := m.api.addPlaytime(m.sessionID, seconds); err != nil {
				return nil, err
			}
			return m.api.getSession(m.sessionID)
		}), playtimeTick())
	}

	m.textarea, tiCmd = m.textarea.Update(msg)
	m.storyViewport, vpCmd = m.storyViewport.Update(msg)
	return m, tea.Batch(tiCmd, vpCmd)
}

// act performs the default action for the current mode. In choices mode the
// input must be a choice number.
func (m ConsoleUI) act(input string) (tea.Model, tea.Cmd) {
	id := m.sessionID
	switch m.view.Mode {
	case state.ModeDialogue:
		if m.view.Ended {
			return m, nil
		}
		m.busy = true
		return m, m.run("advance", func() (*handlers.SessionResponse, error) { return m.api.advance(id) })
	case state.ModeChoices:
		choiceID, err := strconv.Atoi(input)
		if err != nil {
			m.entries = append(m.entries, entry{kind: entryInfo, text: "Type the number of a choice and press Enter."})
			m.writeStoryContent()
			return m, nil
		}
		m.busy = true
		return m, m.run("choice", func() (*handlers.SessionResponse, error) { return m.api.choose(id, choiceID) })
	case state.ModeBattle:
		m.busy = true
		if m.view.Battle != nil && m.view.Battle.Complete {
			return m, m.run("battle/complete", func() (*handlers.SessionResponse, error) { return m.api.battleComplete(id) })
		}
		return m, m.run("battle/next", func() (*handlers.SessionResponse, error) { return m.api.battleNext(id) })
	}
	return m, nil
}

func (m ConsoleUI) run(op string, fn func() (*handlers.SessionResponse, error)) tea.Cmd {
	return func() tea.Msg {
		res, err := fn()
		return sessionMsg{op: op, res: res, err: err}
	}
}

// battleTick schedules the next battle phase unless one is already pending.
func (m *ConsoleUI) battleTick() tea.Cmd {
	if m.tickPending {
		return nil
	}
	m.tickPending = true
	return battleTickCmd(m.config.BattleTick)
}

func battleTickCmd(every time.Duration) tea.Cmd {
	return tea.Tick(every, func(time.Time) tea.Msg {
		return battleTickMsg{}
	})
}

func playtimeTick() tea.Cmd {
	return tea.Tick(playtimeEvery, func(time.Time) tea.Msg {
		return playtimeTickMsg{}
	})
}

// applySession folds an API response into the story log.
func (m ConsoleUI) applySession(msg sessionMsg) (tea.Model, tea.Cmd) {
	if msg.err != nil {
		m.logger.Warn("Session operation failed", "operation", msg.op, "error", msg.err)
		m.entries = append(m.entries, entry{kind: entryError, text: msg.err.Error()})
		m.writeStoryContent()
		return m, nil
	}

	prev := m.view
	next := msg.res.View
	m.view = next
	m.metaViewport.SetContent(writeMetadata(m.sessionID, next))

	if msg.op == "playtime" {
		if next.Mode == state.ModeBattle {
			return m, m.battleTick()
		}
		return m, nil
	}

	if msg.res.Phase != nil {
		m.entries = append(m.entries, phaseEntry(msg.res.Phase))
	}

	sceneChanged := prev.SceneID != next.SceneID || (msg.res.Transition != nil && msg.res.Transition.SceneChanged)
	if sceneChanged {
		m.entries = append(m.entries, sceneEntry(next))
	}
	moved := sceneChanged || prev.Mode != next.Mode ||
		(next.Dialogue != nil && (prev.Dialogue == nil || prev.Dialogue.Index != next.Dialogue.Index))
	if moved {
		m.entries = append(m.entries, stateEntries(next)...)
	}
	m.writeStoryContent()

	if next.Mode == state.ModeBattle {
		if next.Battle != nil && next.Battle.Complete && prev.Battle != nil && prev.Battle.Complete {
			// Completion had nowhere to go; stop ticking.
			return m, nil
		}
		return m, m.battleTick()
	}
	return m, nil
}

func (m ConsoleUI) handleCommand(input string) (tea.Model, tea.Cmd) {
	fields := strings.Fields(strings.ToLower(input))
	id := m.sessionID
	slot := func() (int, bool) {
		if len(fields) < 2 {
			return 0, false
		}
		n, err := strconv.Atoi(fields[1])
		return n, err == nil
	}

	switch fields[0] {
	case "/help":
		m.entries = append(m.entries, entry{kind: entryInfo, text: `Commands:
• Enter - Continue the dialogue or the battle
• <number> Enter - Pick a choice
• /save N - Save into slot N (1-10)
• /load N - Load slot N
• /saves - List save slots
• /reset - Start over
• /copy - Copy the session id to the clipboard
• /quit - Quit`})

	case "/save":
		n, ok := slot()
		if !ok {
			m.entries = append(m.entries, entry{kind: entryInfo, text: "Usage: /save N"})
			break
		}
		m.writeStoryContent()
		return m, func() tea.Msg {
			save, err := m.api.save(id, n)
			if err != nil {
				return infoMsg{err: err}
			}
			return infoMsg{text: fmt.Sprintf("Saved to slot %d (%s).", save.Slot, save.SceneTitle)}
		}

	case "/load":
		n, ok := slot()
		if !ok {
			m.entries = append(m.entries, entry{kind: entryInfo, text: "Usage: /load N"})
			break
		}
		if m.busy {
			return m, nil
		}
		m.busy = true
		return m, m.run("load", func() (*handlers.SessionResponse, error) { return m.api.load(id, n) })

	case "/saves":
		return m, func() tea.Msg {
			saves, err := m.api.listSaves(id)
			if err != nil {
				return infoMsg{err: err}
			}
			if len(saves) == 0 {
				return infoMsg{text: "No saves yet."}
			}
			var b strings.Builder
			for _, s := range saves {
				fmt.Fprintf(&b, "[%d] %s, %s played, saved %s\n", s.Slot, s.SceneTitle,
					time.Duration(s.PlaytimeSeconds)*time.Second, s.SavedAt.Local().Format(time.DateTime))
			}
			return infoMsg{text: strings.TrimSuffix(b.String(), "\n")}
		}

	case "/reset":
		if m.busy {
			return m, nil
		}
		m.busy = true
		return m, m.run("reset", func() (*handlers.SessionResponse, error) { return m.api.reset(id) })

	case "/copy":
		if err := clipboard.WriteAll(id.String()); err != nil {
			m.entries = append(m.entries, entry{kind: entryError, text: "clipboard unavailable: " + err.Error()})
		} else {
			m.entries = append(m.entries, entry{kind: entryInfo, text: "Session id copied to clipboard."})
		}

	case "/quit":
		return m, tea.Quit

	default:
		m.entries = append(m.entries, entry{kind: entryInfo, text: "Unknown command. Type /help."})
	}

	m.writeStoryContent()
	return m, nil
}

func (m ConsoleUI) updateQuitModal(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.layout()

	case tea.KeyMsg:
		switch msg.Type {
		case tea.KeyCtrlC, tea.KeyEsc, tea.KeyEnter:
			return m, tea.Quit
		default:
			switch msg.String() {
			case "y", "Y":
				return m, tea.Quit
			case "n", "N":
				m.showQuitModal = false
				m.textarea.Focus()
				return m, textarea.Blink
			}
		}
	}

	return m, nil
}

func (m ConsoleUI) renderQuitModal() string {
	if m.width == 0 || m.height == 0 {
		return "Loading..."
	}

	var b strings.Builder
	b.WriteString(modalTitleStyle.Render("Quit Game?"))
	b.WriteString("\n\n")
	b.WriteString("Your progress is kept on the server. Resume later with the session id.")
	b.WriteString("\n\n")
	b.WriteString(promptStyle.Render("Press Y to quit, N to continue, or Ctrl+C to force quit"))

	modal := modalStyle.Width(50).Render(b.String())
	return lipgloss.Place(m.width, m.height, lipgloss.Center, lipgloss.Center, modal, lipgloss.WithWhitespaceChars(" "))
}

func (m ConsoleUI) View() string {
	if m.showQuitModal {
		return m.renderQuitModal()
	}

	if !m.ready {
		return "\n  Initializing..."
	}

	storyWidth := int(float64(m.width)*0.72) - 4
	metaWidth := m.width - storyWidth - 6

	storyPanel := storyPanelStyle.Width(storyWidth).Height(m.height - 2).Render(
		lipgloss.JoinVertical(lipgloss.Left,
			m.storyViewport.View(),
			separatorStyle.Render(strings.Repeat("─", max(storyWidth-4, 1))),
			m.textarea.View(),
		),
	)

	metaPanel := metaPanelStyle.Width(metaWidth).Height(m.height - 2).Render(
		m.metaViewport.View(),
	)

	return lipgloss.JoinHorizontal(lipgloss.Top, storyPanel, metaPanel)
}
