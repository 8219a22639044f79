package cpu

import (
	"fmt"
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/davecgh/go-spew/spew"
)

type model struct {
	cpu    *Cpu
	prevPC uint16
}

// r gives the program a bounded slice of cycles per press so an endless
// loop stays interruptible.
const runBudget = 100000

// Init is the first function that will be called. It returns an optional
// initial command. To not perform an initial command return nil.
func (m model) Init() tea.Cmd {
	return nil
}

// step executes a single instruction even though the machine is held in
// the paused state while the debugger is attached.
func (m *model) step() {
	m.cpu.Flags.Halt = 0
	m.cpu.Step()
	m.cpu.Flags.Halt = 1
}

// Update is called when a message is received. Use it to inspect messages
// and, in response, update the model and/or send a command.
func (m model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "q":
			return m, tea.Quit

		case " ", "j":
			m.prevPC = m.cpu.PC
			m.step()

		case "r":
			m.prevPC = m.cpu.PC
			for i := 0; i < runBudget && m.cpu.Flags.Exit == -1 && !m.cpu.Flags.Blok; i++ {
				m.step()
			}
			// frame boundary; a blocked program resumes on the next r
			m.cpu.Flags.Blok = false
		}
	}
	return m, nil
}

// renderPage renders a row of eight words as a line. The current PC is
// highlighted.
func (m model) renderPage(start uint16) string {
	s := fmt.Sprintf("%04x | ", start)
	for i := uint16(0); i < 8; i++ {
		w := m.cpu.Bus.Read(start + i)
		if start+i == m.cpu.PC {
			s += fmt.Sprintf("[%04x] ", w)
		} else {
			s += fmt.Sprintf(" %04x  ", w)
		}
	}
	return s
}

func (m model) status() string {
	c := m.cpu
	return fmt.Sprintf(`
PC: %04x (%04x)
 A: %04x   B: %04x
 C: %04x   D: %04x
 X: %04x   Y: %04x
halt: %d  exit: %d  blok: %v
cycles: %d
call stack: %v
data stack: %v
`,
		c.PC, m.prevPC,
		c.Registers.A, c.Registers.B,
		c.Registers.C, c.Registers.D,
		c.Registers.X, c.Registers.Y,
		c.Flags.Halt, c.Flags.Exit, c.Flags.Blok,
		c.CycleCount,
		c.callStack,
		c.dataStack,
	)
}

func (m model) pageTable() string {
	header := "addr | "
	for b := range 8 {
		header += fmt.Sprintf("  %01x    ", b)
	}

	rows := []string{header}

	// the top of memory, then a window around the pc
	near := m.cpu.PC &^ 0x7
	offsets := []uint16{
		0, 8, 16, 24, 32,
		near,
		near + 8*1,
		near + 8*2,
		near + 8*3,
		near + 8*4,
	}
	for _, i := range offsets {
		rows = append(rows, m.renderPage(i))
	}
	return strings.Join(rows, "\n")
}

// View renders the program's UI, which is just a string. The view is
// rendered after every Update.
func (m model) View() string {
	return lipgloss.JoinVertical(
		lipgloss.Left,
		lipgloss.JoinHorizontal(
			lipgloss.Top,
			m.pageTable(),
			m.status(),
		),
		"",
		spew.Sdump(Opcodes[byte(m.cpu.Bus.Read(m.cpu.PC)&0x00FF)]),
	)
}

// Debug pauses the machine and starts an interactive stepping TUI over
// it: space/j single-steps, r runs, q detaches. The machine stays paused
// after detach.
func (c *Cpu) Debug() error {
	c.Flags.Halt = 1
	_, err := tea.NewProgram(model{cpu: c}).Run()
	return err
}
