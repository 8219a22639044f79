// Package cpu implements the QCPU, a 16-bit virtual machine with six
// general registers, a call stack, a data stack, and a host-provided
// syscall table.

package cpu

import (
	"errors"
	"io"
	"log"
	"os"

	"qcpu/mask"
	"qcpu/mem"
)

// An AddressingMode tells the Cpu how to interpret an operand word: as a
// literal value, as a memory cell by absolute index, as a memory cell
// named by a register, or as a register by index.
//
// Two bits per operand; four operand slots fit in the high byte of the
// instruction word.
type AddressingMode byte

const (
	Immediate AddressingMode = 0b00
	Absolute  AddressingMode = 0b01
	Indirect  AddressingMode = 0b10
	Register  AddressingMode = 0b11
)

// An Arg pairs an operand word with the addressing mode decoded from the
// instruction's high byte. Args are rebuilt on every step and consumed
// by Read and Write.
type Arg struct {
	Value uint16
	Mode  AddressingMode
}

// Registers are the six general 16-bit registers, indexed 0..5 in the
// order a, b, c, d, x, y. By convention syscalls take their argument in
// x, but nothing enforces that.
type Registers struct {
	A uint16
	B uint16
	C uint16
	D uint16
	X uint16
	Y uint16
}

// Flags are the three control fields gating the fetch loop.
type Flags struct {
	Halt int16 // 0 = running, 1 = paused by the debugger
	Exit int16 // -1 until the program executes ext; then its exit code
	Blok bool  // yield until the host releases at the frame boundary
}

// A Syscall is a host callback invoked by the sys instruction. It
// receives the Cpu it was dispatched from rather than capturing one, so
// bindings never form a reference cycle with the machine they drive.
// The Arg is the original sys operand, for inspection.
type Syscall func(c *Cpu, arg Arg)

// Both stacks reject pushes past this depth. A program that legitimately
// nests a thousand calls deep is not one of ours.
const stackDepth = 1024

// The Cpu has no memory of its own; it interfaces with a Bus that
// provides it. Everything mutable lives in the one value, so two
// machines never share state by accident.
type Cpu struct {
	Bus *mem.Bus

	Registers Registers
	Flags     Flags

	// The PC is the word address of the next instruction. It is never
	// range-checked here; the Bus wraps it.
	PC uint16

	// CycleCount increments once per executed step, paused/blocked
	// steps excluded.
	CycleCount int64

	callStack []uint16
	dataStack []uint16
	syscalls  map[uint16]Syscall

	// recoverable runtime errors (write to immediate, bad register
	// index, empty stack pop, missing syscall) are reported here and
	// execution continues; a wedged program should stay observable in
	// the debugger rather than tear the process down
	log *log.Logger
}

// New returns a zeroed Cpu connected to the given Bus. Diagnostics go to
// stderr until SetOutput redirects them.
func New(bus *mem.Bus) *Cpu {
	c := &Cpu{
		Bus:      bus,
		syscalls: make(map[uint16]Syscall),
		log:      log.New(os.Stderr, "", 0),
	}
	c.Reset()
	return c
}

// SetOutput redirects the diagnostic channel.
func (c *Cpu) SetOutput(w io.Writer) {
	c.log.SetOutput(w)
}

// Reset returns the machine to power-on state: memory, registers, flags,
// stacks, pc and cycle count all zeroed, exit back to its -1 sentinel.
// Syscall bindings survive; they belong to the host, not the program.
func (c *Cpu) Reset() {
	if c.Bus != nil {
		c.Bus.Clear()
	}
	c.Registers = Registers{}
	c.Flags = Flags{Exit: -1}
	c.PC = 0
	c.CycleCount = 0
	c.callStack = c.callStack[:0]
	c.dataStack = c.dataStack[:0]
}

// Load resets the machine and copies a little-endian byte image into
// memory starting at word 0. An image larger than memory is rejected; an
// odd-length image loads without its trailing byte (reported, not
// fatal).
func (c *Cpu) Load(image []byte) error {
	c.Reset()
	err := c.Bus.LoadImage(image)
	if errors.Is(err, mem.ErrOddImage) {
		c.log.Println("image has odd length, dropping trailing byte")
		return nil
	}
	return err
}

// Step runs a single fetch/decode/execute cycle. It is a no-op while the
// machine is paused, blocked on the host, or exited.
func (c *Cpu) Step() {
	if c.Flags.Halt != 0 || c.Flags.Blok || c.Flags.Exit != -1 {
		return
	}

	// low byte opcode, high byte the four 2-bit addressing modes
	word := c.Bus.Read(c.PC)
	high := byte(word >> 8)
	op, ok := Opcodes[byte(word&0x00FF)]
	c.PC++
	if !ok {
		c.log.Printf("unknown opcode: %#02x", byte(word&0x00FF))
		c.CycleCount++
		return
	}

	args := make([]Arg, op.Arity)
	for i := range args {
		args[i] = Arg{
			Value: c.Bus.Read(c.PC + uint16(i)),
			Mode:  AddressingMode(mask.Pair(high, i)),
		}
	}
	c.PC += op.Arity
	c.CycleCount++

	op.Instruction(c, args)
}

// Run drives Step until the program exits. The display frame boundary
// collapses to one loop iteration here, so a blocking syscall is
// released before the next step and no step is skipped. Returns
// immediately if the machine is paused.
func (c *Cpu) Run() {
	for c.Flags.Exit == -1 && c.Flags.Halt == 0 {
		c.Step()
		c.Flags.Blok = false
	}
}

// Bind registers a host callback for a syscall id. Binding an id twice
// replaces the earlier callback.
func (c *Cpu) Bind(id uint16, fn Syscall) {
	c.syscalls[id] = fn
}

// Read resolves an operand to a value: immediates are themselves,
// absolutes index memory, indirects index memory through a register, and
// registers read the register file.
func (c *Cpu) Read(from Arg) uint16 {
	switch from.Mode {
	case Absolute:
		return c.Bus.Read(from.Value)
	case Indirect:
		return c.Bus.Read(c.ReadReg(from.Value))
	case Register:
		return c.ReadReg(from.Value)
	default: // Immediate
		return from.Value
	}
}

// Write stores a value through an operand. Writing to an immediate has
// no destination; it is reported and dropped.
func (c *Cpu) Write(to Arg, val uint16) {
	switch to.Mode {
	case Absolute:
		c.Bus.Write(to.Value, val)
	case Indirect:
		c.Bus.Write(c.ReadReg(to.Value), val)
	case Register:
		c.WriteReg(to.Value, val)
	default: // Immediate
		c.log.Printf("cannot write to immediate value: %d", to.Value)
	}
}

// ReadReg returns the register at index 0..5. Any other index is
// reported and reads as zero.
func (c *Cpu) ReadReg(from uint16) uint16 {
	switch from {
	case 0:
		return c.Registers.A
	case 1:
		return c.Registers.B
	case 2:
		return c.Registers.C
	case 3:
		return c.Registers.D
	case 4:
		return c.Registers.X
	case 5:
		return c.Registers.Y
	default:
		c.log.Printf("unknown register: %d", from)
		return 0
	}
}

// WriteReg stores to the register at index 0..5. Any other index is
// reported and the write dropped.
func (c *Cpu) WriteReg(to uint16, val uint16) {
	switch to {
	case 0:
		c.Registers.A = val
	case 1:
		c.Registers.B = val
	case 2:
		c.Registers.C = val
	case 3:
		c.Registers.D = val
	case 4:
		c.Registers.X = val
	case 5:
		c.Registers.Y = val
	default:
		c.log.Printf("unknown register: %d", to)
	}
}
