// Package asm implements the QCPU symbolic assembler: a line-oriented
// source dialect in, a packed little-endian word image out.
//
// The pipeline is Tokenize -> BuildLabelTable -> Convert -> Write, with
// Assemble composing all four. Addresses are assigned while tokenizing,
// so by the time anything is encoded every label already knows its final
// word offset.

package asm

import (
	"encoding/binary"
	"io"
	"log"
	"os"
	"strings"

	"qcpu/cpu"
)

type opcode struct {
	value byte
	arity int
}

// mnemonics is derived from the cpu's opcode table, so the encoder can
// never disagree with the decoder about an instruction's arity.
var mnemonics = make(map[string]opcode)

func init() {
	for value, op := range cpu.Opcodes {
		mnemonics[op.Name] = opcode{value: value, arity: int(op.Arity)}
	}
}

func isMnemonic(s string) bool {
	_, ok := mnemonics[s]
	return ok
}

// modeBits maps an argument's token type to its 2-bit addressing-mode
// field. Label references encode as whichever mode their spelling
// picked: bare names are immediates, $names are absolutes.
var modeBits = map[TokenType]uint16{
	Immediate:               0b00,
	ImmediateLabelReference: 0b00,
	Absolute:                0b01,
	AbsoluteLabelReference:  0b01,
	Indirect:                0b10,
	Register:                0b11,
}

var registerIndex = map[string]uint16{
	"a": 0, "b": 1, "c": 2, "d": 3, "x": 4, "y": 5,
}

// An Assembler turns source text into a byte image. The zero-ish value
// from New is ready to use; the only state it carries between calls is
// where diagnostics go.
type Assembler struct {
	log *log.Logger
}

func New() *Assembler {
	return &Assembler{log: log.New(os.Stderr, "", 0)}
}

// SetOutput redirects diagnostics (unrecognised-token reports).
func (a *Assembler) SetOutput(w io.Writer) {
	a.log.SetOutput(w)
}

// BuildLabelTable maps each named label to its word address. Anonymous +
// and - anchors are not stored; they resolve positionally in Convert.
func (a *Assembler) BuildLabelTable(tokens []Token) map[string]int {
	table := make(map[string]int)
	for _, t := range tokens {
		if t.Type == Label && t.Data != "+" && t.Data != "-" {
			table[t.Data] = t.Address
		}
	}
	return table
}

// Convert encodes the token stream into words, each written at its
// token's address. Addresses skipped by .org or .ds stay zero; the
// result is sized to the highest address seen.
func (a *Assembler) Convert(tokens []Token, labels map[string]int) ([]uint16, error) {
	if len(tokens) == 0 {
		return nil, nil
	}

	max := 0
	for _, t := range tokens {
		if t.Address > max {
			max = t.Address
		}
	}
	memory := make([]uint16, max+1)

	for i, t := range tokens {
		var word uint16

		switch t.Type {
		case Op:
			op := mnemonics[t.Data]
			if i+1+op.arity > len(tokens) {
				return nil, fatal(t.Line, t.Data, "missing operand")
			}
			var modes [4]uint16
			for j, arg := range tokens[i+1 : i+1+op.arity] {
				modes[j] = modeBits[arg.Type]
			}
			word = modes[0]<<14 | modes[1]<<12 | modes[2]<<10 | modes[3]<<8 | uint16(op.value)

		case Register:
			word = registerIndex[t.Data]

		case ImmediateLabelReference, AbsoluteLabelReference:
			w, err := resolveLabel(tokens, i, labels)
			if err != nil {
				return nil, err
			}
			word = w

		case Immediate:
			n, err := parseNumber(t.Data)
			if err != nil {
				return nil, fatal(t.Line, t.Data, "unable to parse number")
			}
			word = n

		case Absolute:
			n, err := parseNumber(strings.TrimPrefix(t.Data, "$"))
			if err != nil {
				return nil, fatal(t.Line, t.Data, "unable to parse number")
			}
			word = n

		case Indirect:
			name := strings.ToLower(strings.Trim(t.Data, "[]"))
			idx, ok := registerIndex[name]
			if !ok {
				return nil, fatal(t.Line, t.Data, "unknown register")
			}
			word = idx

		default:
			// labels annotate an address but emit nothing
			continue
		}

		memory[t.Address] = word
	}

	return memory, nil
}

// resolveLabel resolves the reference at tokens[i]. A bare or $-prefixed
// name looks up the label table. The anonymous forms are positional: +
// binds to the next + anchor after the reference, - to the closest -
// anchor before it.
func resolveLabel(tokens []Token, i int, labels map[string]int) (uint16, error) {
	t := tokens[i]
	name := strings.TrimPrefix(t.Data, "$")

	switch name {
	case "-":
		for j := i - 1; j >= 0; j-- {
			if tokens[j].Type == Label && tokens[j].Data == "-" {
				return uint16(tokens[j].Address), nil
			}
		}
		return 0, fatal(t.Line, t.Data, "no preceding anonymous label")

	case "+":
		for j := i + 1; j < len(tokens); j++ {
			if tokens[j].Type == Label && tokens[j].Data == "+" {
				return uint16(tokens[j].Address), nil
			}
		}
		return 0, fatal(t.Line, t.Data, "no following anonymous label")
	}

	addr, ok := labels[name]
	if !ok {
		return 0, fatal(t.Line, t.Data, "couldn't find label")
	}
	return uint16(addr), nil
}

// Write lays the words out as bytes, low byte first.
func (a *Assembler) Write(words []uint16) []byte {
	buf := make([]byte, 2*len(words))
	for i, w := range words {
		binary.LittleEndian.PutUint16(buf[2*i:], w)
	}
	return buf
}

// Assemble runs the whole pipeline over source and returns the byte
// image a Cpu can load.
func (a *Assembler) Assemble(source string) ([]byte, error) {
	tokens, err := a.Tokenize(source)
	if err != nil {
		return nil, err
	}
	words, err := a.Convert(tokens, a.BuildLabelTable(tokens))
	if err != nil {
		return nil, err
	}
	return a.Write(words), nil
}
