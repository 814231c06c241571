// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/Thermoquad/autothrottle/pkg/mglservo"
	"github.com/Thermoquad/autothrottle/pkg/throttle"
	"github.com/charmbracelet/bubbles/progress"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
)

//////////////////////////////////////////////////////////////
// Constants
//////////////////////////////////////////////////////////////

const (
	maxControlLogEntries = 100
	eventLogHeight       = 8
	positionBarWidth     = 40
)

//////////////////////////////////////////////////////////////
// Types
//////////////////////////////////////////////////////////////

type controlLogEntry struct {
	timestamp time.Time
	message   string
	isError   bool
}

// controlModel is the Bubble Tea model for the control TUI. It is the only
// caller of the controller while running, one command per tick.
type controlModel struct {
	ctl      *throttle.Controller
	cfg      throttle.Config
	connInfo string
	interval time.Duration
	start    time.Time

	// Command selection
	fullThrottle bool
	pending      *mglservo.PositionCommand // one-shot target, sent on the next tick
	targetInput  textinput.Model

	// Last exchange
	inFlight    bool
	lastCommand mglservo.PositionCommand
	lastStatus  *mglservo.AckStatus
	lastErr     error
	overTorque  bool

	positionBar progress.Model
	eventLog    []controlLogEntry

	// UI state
	width    int
	height   int
	quitting bool
}

//////////////////////////////////////////////////////////////
// Messages
//////////////////////////////////////////////////////////////

type controlTickMsg time.Time

type commandResultMsg struct {
	cmd    mglservo.PositionCommand
	status *mglservo.AckStatus
	err    error
}

//////////////////////////////////////////////////////////////
// Model Initialization
//////////////////////////////////////////////////////////////

func initialControlModel(ctl *throttle.Controller, connInfo string, interval time.Duration) controlModel {
	ti := textinput.New()
	ti.Placeholder = "position"
	ti.CharLimit = 6
	ti.Width = 10

	bar := progress.New(
		progress.WithDefaultGradient(),
		progress.WithWidth(positionBarWidth),
		progress.WithoutPercentage(),
	)

	return controlModel{
		ctl:         ctl,
		cfg:         ctl.Config(),
		connInfo:    connInfo,
		interval:    interval,
		start:       time.Now(),
		targetInput: ti,
		positionBar: bar,
		eventLog:    make([]controlLogEntry, 0),
		width:       80,
		height:      24,
	}
}

//////////////////////////////////////////////////////////////
// Bubble Tea Interface
//////////////////////////////////////////////////////////////

func (m controlModel) Init() tea.Cmd {
	return controlTickCmd(m.interval)
}

func controlTickCmd(interval time.Duration) tea.Cmd {
	return tea.Tick(interval, func(t time.Time) tea.Msg {
		return controlTickMsg(t)
	})
}

// sendCommand runs one exchange off the UI goroutine
func sendCommand(ctl *throttle.Controller, cmd mglservo.PositionCommand) tea.Cmd {
	return func() tea.Msg {
		status, err := ctl.Command(cmd)
		return commandResultMsg{cmd: cmd, status: status, err: err}
	}
}

func (m controlModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		return m.handleKeyMsg(msg)

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.positionBar.Width = min(positionBarWidth, max(10, m.width-40))

	case controlTickMsg:
		// A slow servo must not queue up commands; skip the tick instead
		if m.inFlight {
			return m, controlTickCmd(m.interval)
		}
		cmd := m.nextCommand()
		m.inFlight = true
		m.lastCommand = cmd
		return m, tea.Batch(sendCommand(m.ctl, cmd), controlTickCmd(m.interval))

	case commandResultMsg:
		m.applyResult(msg)

	default:
		// Cursor blink and similar input messages
		if m.targetInput.Focused() {
			var cmd tea.Cmd
			m.targetInput, cmd = m.targetInput.Update(msg)
			return m, cmd
		}
	}

	return m, nil
}

func (m controlModel) handleKeyMsg(msg tea.KeyMsg) (controlModel, tea.Cmd) {
	if m.targetInput.Focused() {
		switch msg.String() {
		case "ctrl+c":
			m.quitting = true
			return m, tea.Quit
		case "esc":
			m.targetInput.Blur()
			m.targetInput.Reset()
			return m, nil
		case "enter":
			m.submitTarget()
			return m, nil
		}

		var cmd tea.Cmd
		m.targetInput, cmd = m.targetInput.Update(msg)
		return m, cmd
	}

	switch msg.String() {
	case "q", "ctrl+c":
		m.quitting = true
		return m, tea.Quit

	case "c":
		m.fullThrottle = !m.fullThrottle
		if m.fullThrottle {
			m.addLogEntry(fmt.Sprintf("Full throttle engaged (position %d)", m.cfg.FullPosition), false)
		} else {
			m.addLogEntry("Full throttle released", false)
		}

	case "enter":
		return m, m.targetInput.Focus()

	case "p":
		if m.lastStatus == nil {
			m.addLogEntry("No position reported yet", false)
		} else {
			m.addLogEntry(fmt.Sprintf("Position: %d", m.lastStatus.Position), false)
		}

	case "t":
		m.addLogEntry(fmt.Sprintf("Elapsed: %s", time.Since(m.start).Truncate(time.Millisecond)), false)
	}

	return m, nil
}

// submitTarget queues the typed position for the next tick
func (m *controlModel) submitTarget() {
	value := strings.TrimSpace(m.targetInput.Value())
	m.targetInput.Blur()
	m.targetInput.Reset()
	if value == "" {
		return
	}

	position, err := parsePosition(value)
	if err != nil {
		m.addLogEntry(err.Error(), true)
		return
	}

	cmd := mglservo.MoveTo(position)
	m.pending = &cmd
	m.addLogEntry(fmt.Sprintf("Target queued: %s", cmd), false)
}

// nextCommand picks the command for this tick. A queued target wins once,
// then full throttle if engaged, otherwise a poll.
func (m *controlModel) nextCommand() mglservo.PositionCommand {
	if m.pending != nil {
		cmd := *m.pending
		m.pending = nil
		return cmd
	}
	if m.fullThrottle {
		return mglservo.MoveTo(m.cfg.FullPosition)
	}
	return mglservo.Poll()
}

// applyResult records an exchange. Repeated identical failures and steady
// flag states are logged only on change.
func (m *controlModel) applyResult(msg commandResultMsg) {
	m.inFlight = false

	if errors.Is(msg.err, throttle.ErrControllerClosed) {
		return
	}
	if msg.err != nil {
		if m.lastErr == nil || m.lastErr.Error() != msg.err.Error() {
			m.addLogEntry(fmt.Sprintf("%s failed: %v", msg.cmd, msg.err), true)
		}
		m.lastErr = msg.err
		return
	}

	if m.lastErr != nil {
		m.addLogEntry("Servo responding", false)
		m.lastErr = nil
	}

	prev := m.lastStatus
	status := msg.status
	m.lastStatus = status

	if status.Slipping && (prev == nil || !prev.Slipping) {
		m.addLogEntry("Clutch slipping", true)
	}
	if status.VoltageAlarm && (prev == nil || !prev.VoltageAlarm) {
		m.addLogEntry(fmt.Sprintf("Voltage alarm (voltage %d)", status.Voltage), true)
	}

	over := m.ctl.OverTorque(status)
	if over && !m.overTorque {
		m.addLogEntry(fmt.Sprintf("Over torque: %d > %d", status.Torque, m.cfg.OverTorque), true)
	} else if !over && m.overTorque {
		m.addLogEntry("Torque back within limit", false)
	}
	m.overTorque = over
}

func (m controlModel) View() string {
	if m.quitting {
		return "Shutting down...\n"
	}

	var s strings.Builder

	titleStyle := lipgloss.NewStyle().
		Bold(true).
		Foreground(lipgloss.Color("12")).
		Background(lipgloss.Color("235")).
		Padding(0, 1)

	headerStyle := lipgloss.NewStyle().
		Foreground(lipgloss.Color("241"))

	labelStyle := lipgloss.NewStyle().
		Foreground(lipgloss.Color("12")).
		Bold(true)

	valueStyle := lipgloss.NewStyle().
		Foreground(lipgloss.Color("10"))

	errorStyle := lipgloss.NewStyle().
		Foreground(lipgloss.Color("9")).
		Bold(true)

	warningStyle := lipgloss.NewStyle().
		Foreground(lipgloss.Color("11"))

	boxStyle := lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(lipgloss.Color("240")).
		Padding(0, 1)

	s.WriteString(titleStyle.Render("AUTOTHROTTLE CONTROL"))
	s.WriteString("\n")
	s.WriteString(headerStyle.Render(fmt.Sprintf("%s | Servo %d | every %s",
		m.connInfo, m.cfg.ServoNumber, m.interval)))
	s.WriteString("\n\n")

	s.WriteString(boxStyle.Width(m.width - 4).Render(m.renderServo(labelStyle, valueStyle, errorStyle, headerStyle)))
	s.WriteString("\n")
	s.WriteString(m.renderStatisticsBar(labelStyle, valueStyle, errorStyle, boxStyle))
	s.WriteString("\n")
	s.WriteString(m.renderEventLog(labelStyle, warningStyle, errorStyle, headerStyle, boxStyle))
	s.WriteString("\n")
	s.WriteString(headerStyle.Render("c: full throttle | enter: target | p: log position | t: log time | q: quit"))
	s.WriteString("\n")

	return s.String()
}

func (m controlModel) renderServo(labelStyle, valueStyle, errorStyle, headerStyle lipgloss.Style) string {
	var s strings.Builder

	mode := valueStyle.Render("POLL")
	if m.fullThrottle {
		mode = errorStyle.Render("FULL THROTTLE")
	}
	s.WriteString(fmt.Sprintf("%s %s  %s %s\n",
		labelStyle.Render("SERVO"), headerStyle.Render("|"),
		labelStyle.Render("Mode:"), mode))

	status := m.lastStatus
	if status == nil {
		s.WriteString(headerStyle.Render("Waiting for acknowledgement..."))
		s.WriteString("\n")
	} else {
		s.WriteString(fmt.Sprintf("%s %s %s\n",
			labelStyle.Render("Position:"),
			valueStyle.Render(fmt.Sprintf("%5d / %d", status.Position, m.cfg.FullPosition)),
			m.positionBar.ViewAs(positionFraction(status.Position, m.cfg.FullPosition))))

		torque := valueStyle.Render(fmt.Sprintf("%d", status.Torque))
		if m.overTorque {
			torque = errorStyle.Render(fmt.Sprintf("%d OVER", status.Torque))
		}
		s.WriteString(fmt.Sprintf("%s %s %s  %s %s\n",
			labelStyle.Render("Torque:"), torque,
			headerStyle.Render(fmt.Sprintf("(limit %d)", m.cfg.OverTorque)),
			labelStyle.Render("Voltage:"), valueStyle.Render(fmt.Sprintf("%d", status.Voltage))))

		s.WriteString(fmt.Sprintf("%s %s %s %s\n",
			labelStyle.Render("Flags:"),
			renderFlag("ENGAGED", status.Engaged, valueStyle, headerStyle),
			renderFlag("SLIPPING", status.Slipping, errorStyle, headerStyle),
			renderFlag("VOLTAGE ALARM", status.VoltageAlarm, errorStyle, headerStyle)))
	}

	if m.lastErr != nil {
		s.WriteString(errorStyle.Render(fmt.Sprintf("Last error: %v", m.lastErr)))
		s.WriteString("\n")
	}

	target := headerStyle.Render("(press enter)")
	if m.targetInput.Focused() {
		target = m.targetInput.View()
	} else if m.pending != nil {
		target = valueStyle.Render(m.pending.String())
	}
	s.WriteString(fmt.Sprintf("%s %s", labelStyle.Render("Target:"), target))

	return s.String()
}

func (m controlModel) renderStatisticsBar(labelStyle, valueStyle, errorStyle, boxStyle lipgloss.Style) string {
	stats := m.ctl.Statistics()
	if stats == nil {
		return ""
	}
	c := stats.Snapshot()

	errCount := valueStyle.Render("0")
	if c.Errors() > 0 {
		errCount = errorStyle.Render(fmt.Sprintf("%d", c.Errors()))
	}

	content := fmt.Sprintf("%s %s  %s %s  %s %s  %s %s  %s %s",
		labelStyle.Render("Commands:"), valueStyle.Render(fmt.Sprintf("%d", c.Commands)),
		labelStyle.Render("Acks:"), valueStyle.Render(fmt.Sprintf("%.1f%%", c.SuccessRate())),
		labelStyle.Render("Timeouts:"), valueStyle.Render(fmt.Sprintf("%d", c.Timeouts)),
		labelStyle.Render("Errors:"), errCount,
		labelStyle.Render("Rate:"), valueStyle.Render(fmt.Sprintf("%.1f cmd/s", c.CommandRate())),
	)

	return boxStyle.Width(m.width - 4).Render(content)
}

func (m controlModel) renderEventLog(labelStyle, warningStyle, errorStyle, headerStyle, boxStyle lipgloss.Style) string {
	var s strings.Builder
	s.WriteString(labelStyle.Render("EVENTS"))
	s.WriteString("\n")

	if len(m.eventLog) == 0 {
		s.WriteString(headerStyle.Render("  (no events yet)"))
		return boxStyle.Width(m.width - 4).Render(s.String())
	}

	startIdx := max(0, len(m.eventLog)-eventLogHeight)
	for _, entry := range m.eventLog[startIdx:] {
		icon := "i"
		style := warningStyle
		if entry.isError {
			icon = "x"
			style = errorStyle
		}
		s.WriteString(fmt.Sprintf("%s %s %s\n",
			headerStyle.Render(entry.timestamp.Format("15:04:05.000")),
			style.Render(icon),
			entry.message))
	}

	return boxStyle.Width(m.width - 4).Render(strings.TrimSuffix(s.String(), "\n"))
}

//////////////////////////////////////////////////////////////
// Helpers
//////////////////////////////////////////////////////////////

func (m *controlModel) addLogEntry(message string, isError bool) {
	m.eventLog = append(m.eventLog, controlLogEntry{
		timestamp: time.Now(),
		message:   message,
		isError:   isError,
	})

	if len(m.eventLog) > maxControlLogEntries {
		m.eventLog = m.eventLog[len(m.eventLog)-maxControlLogEntries:]
	}
}

// positionFraction maps a position onto the bar, clamped to [0, 1]
func positionFraction(position, full uint16) float64 {
	if full == 0 {
		return 0
	}
	return min(1, float64(position)/float64(full))
}

func renderFlag(name string, set bool, on, off lipgloss.Style) string {
	if set {
		return on.Render(name)
	}
	return off.Render(strings.ToLower(name))
}
