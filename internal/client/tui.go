package client

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/log"

	"bargain/internal/negotiation"
	"bargain/internal/server"
)

type phase int

const (
	phaseJoining phase = iota
	phaseWaiting
	phaseNegotiating
	phaseEnded
)

// serverMsg delivers one message from the game server into the update loop.
type serverMsg struct {
	msg *server.Message
}

// disconnectedMsg signals that the connection dropped.
type disconnectedMsg struct{}

// Model is the Bubble Tea model for an interactive negotiation.
type Model struct {
	client *Client
	logger *log.Logger
	group  int

	input textinput.Model

	phase        phase
	playerID     string
	pairID       string
	role         negotiation.Role
	batna        int
	currentTurn  negotiation.Role
	currentRound int

	// Offer currently awaiting this player's verdict, nil otherwise.
	pendingOffer *negotiation.OfferReceivedEvent

	history  []string
	errMsg   string
	quitting bool
}

// NewModel creates the TUI model and joins the given group on startup.
func NewModel(c *Client, group int, logger *log.Logger) *Model {
	ti := textinput.New()
	ti.Placeholder = "offer <A> <B>  |  accept / too_low / better_offer / not_accept"
	ti.Focus()
	ti.CharLimit = 64
	ti.Width = 60
	ti.Prompt = "> "

	return &Model{
		client: c,
		logger: logger.WithPrefix("tui"),
		group:  group,
		input:  ti,
		phase:  phaseJoining,
	}
}

// Init implements tea.Model
func (m *Model) Init() tea.Cmd {
	if err := m.client.Send(server.MessageTypeJoinGame, server.JoinGameData{GroupNumber: m.group}); err != nil {
		m.errMsg = err.Error()
	}
	return m.waitForServer()
}

func (m *Model) waitForServer() tea.Cmd {
	return func() tea.Msg {
		msg, ok := <-m.client.Incoming()
		if !ok {
			return disconnectedMsg{}
		}
		return serverMsg{msg: msg}
	}
}

// Update implements tea.Model
func (m *Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "ctrl+c", "esc":
			m.quitting = true
			return m, tea.Quit
		case "enter":
			m.handleInput(strings.TrimSpace(m.input.Value()))
			m.input.SetValue("")
			return m, nil
		}

	case serverMsg:
		m.handleServer(msg.msg)
		return m, m.waitForServer()

	case disconnectedMsg:
		m.errMsg = "Connection to server lost"
		m.quitting = true
		return m, tea.Quit
	}

	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

func (m *Model) handleInput(value string) {
	if value == "" {
		return
	}
	if m.phase != phaseNegotiating {
		m.errMsg = "No negotiation in progress"
		return
	}
	m.errMsg = ""

	fields := strings.Fields(value)

	if m.pendingOffer != nil {
		response := negotiation.Response(fields[0])
		if !response.Valid() {
			m.errMsg = "Respond with accept, too_low, better_offer or not_accept"
			return
		}
		err := m.client.Send(server.MessageTypeSubmitResponse, server.SubmitResponseData{
			PairID:   m.pairID,
			PlayerID: m.playerID,
			Response: string(response),
			OfferA:   m.pendingOffer.OfferA,
			OfferB:   m.pendingOffer.OfferB,
		})
		if err != nil {
			m.errMsg = err.Error()
			return
		}
		m.pendingOffer = nil
		return
	}

	// Treat "offer 400 600" and "400 600" the same.
	if fields[0] == "offer" {
		fields = fields[1:]
	}
	if len(fields) != 2 {
		m.errMsg = "Enter an offer as two amounts, e.g. 400 600"
		return
	}
	offerA, errA := strconv.Atoi(fields[0])
	offerB, errB := strconv.Atoi(fields[1])
	if errA != nil || errB != nil {
		m.errMsg = "Offer amounts must be whole numbers"
		return
	}

	err := m.client.Send(server.MessageTypeSubmitOffer, server.SubmitOfferData{
		PairID:   m.pairID,
		PlayerID: m.playerID,
		OfferA:   offerA,
		OfferB:   offerB,
	})
	if err != nil {
		m.errMsg = err.Error()
	}
}

func (m *Model) handleServer(msg *server.Message) {
	switch msg.Type {
	case server.MessageTypeJoined:
		data, err := Decode[server.JoinedData](msg)
		if err != nil {
			m.errMsg = err.Error()
			return
		}
		m.playerID = data.PlayerID
		m.appendLog(fmt.Sprintf("Joined as %s (group %d)", data.PlayerID, data.GroupNumber))

	case server.MessageTypeWaitingForPair:
		m.phase = phaseWaiting
		data, _ := Decode[negotiation.WaitingForPairEvent](msg)
		m.appendLog(data.Message)

	case server.MessageTypePairFound:
		data, err := Decode[negotiation.PairFoundEvent](msg)
		if err != nil {
			m.errMsg = err.Error()
			return
		}
		m.phase = phaseNegotiating
		m.pairID = data.PairID
		m.role = data.Role
		m.batna = data.BATNA
		m.currentTurn = data.CurrentTurn
		m.currentRound = 1
		m.appendLog(fmt.Sprintf("Matched into %s as person %s, fallback payout %d", data.PairID, data.Role, data.BATNA))

	case server.MessageTypeOfferSent:
		data, _ := Decode[negotiation.OfferSentEvent](msg)
		m.appendLog(fmt.Sprintf("You offered %d / %d, waiting for your partner", data.OfferA, data.OfferB))

	case server.MessageTypeOfferReceived:
		data, err := Decode[negotiation.OfferReceivedEvent](msg)
		if err != nil {
			m.errMsg = err.Error()
			return
		}
		m.pendingOffer = &data
		m.appendLog(fmt.Sprintf("Person %s offers: %d for A, %d for B", data.Proposer, data.OfferA, data.OfferB))

	case server.MessageTypeTurnUpdated:
		data, err := Decode[negotiation.TurnUpdatedEvent](msg)
		if err != nil {
			m.errMsg = err.Error()
			return
		}
		m.currentTurn = data.CurrentTurn
		m.currentRound = data.CurrentRound
		m.appendLog(fmt.Sprintf("Round %d: person %s responded %s, now %s proposes",
			data.LastOffer.RoundNumber, data.LastOffer.Proposer.Other(), data.LastResponse, data.CurrentTurn))

	case server.MessageTypeGameEnded:
		data, err := Decode[negotiation.GameEndedEvent](msg)
		if err != nil {
			m.errMsg = err.Error()
			return
		}
		m.phase = phaseEnded
		m.pendingOffer = nil
		m.appendLog(fmt.Sprintf("%s after %d round(s): payout A = %d, payout B = %d",
			data.Result.Reason, len(data.Rounds), data.Result.PayoutA, data.Result.PayoutB))

	case server.MessageTypeReconnected:
		data, err := Decode[negotiation.ReconnectedEvent](msg)
		if err != nil {
			m.errMsg = err.Error()
			return
		}
		m.phase = phaseNegotiating
		m.pairID = data.PairID
		m.role = data.Role
		m.batna = data.BATNA
		m.currentTurn = data.CurrentTurn
		m.currentRound = data.CurrentRound
		m.appendLog(fmt.Sprintf("Restored session %s at round %d", data.PairID, data.CurrentRound))

	case server.MessageTypeOpponentDisconnected:
		data, _ := Decode[negotiation.OpponentDisconnectedEvent](msg)
		m.appendLog(data.Message)

	case server.MessageTypeError:
		data, _ := Decode[server.ErrorData](msg)
		m.errMsg = data.Message

	default:
		m.logger.Debug("Unhandled message", "type", msg.Type)
	}
}

func (m *Model) appendLog(line string) {
	m.history = append(m.history, line)
	if len(m.history) > 12 {
		m.history = m.history[len(m.history)-12:]
	}
}

// View implements tea.Model
func (m *Model) View() string {
	if m.quitting {
		return ""
	}

	var b strings.Builder

	b.WriteString(headerStyle.Render("Bargaining Game") + "\n\n")

	switch m.phase {
	case phaseJoining:
		b.WriteString(dimStyle.Render("Connecting...") + "\n")
	case phaseWaiting:
		b.WriteString(statusStyle.Render("Waiting for a partner...") + "\n")
	case phaseNegotiating:
		b.WriteString(statusStyle.Render(fmt.Sprintf("Pair %s - you are person %s - fallback payout %d", m.pairID, m.role, m.batna)) + "\n")
		b.WriteString(fmt.Sprintf("Round %d - ", m.currentRound))
		if m.currentTurn == m.role {
			b.WriteString(turnStyle.Render("your turn to propose") + "\n")
		} else {
			b.WriteString(dimStyle.Render(fmt.Sprintf("person %s proposes", m.currentTurn)) + "\n")
		}
	case phaseEnded:
		b.WriteString(statusStyle.Render("Negotiation finished") + "\n")
	}

	b.WriteString("\n")
	for _, line := range m.history {
		b.WriteString(logStyle.Render(line) + "\n")
	}

	if m.errMsg != "" {
		b.WriteString("\n" + errorStyle.Render(m.errMsg) + "\n")
	}

	if m.phase == phaseNegotiating {
		b.WriteString("\n" + m.input.View() + "\n")
	}
	b.WriteString("\n" + dimStyle.Render("esc to quit") + "\n")

	return b.String()
}
