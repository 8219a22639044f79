package cpu

// An Opcode carries everything the decoder needs besides the operand
// words themselves: how many operands follow the instruction word, and
// which handler consumes them.
//
// Arity is fixed per opcode rather than encoded in the word, so the
// decoder and the assembler must agree on it. Both read this table.
type Opcode struct {
	// An Instruction receives its operands as decoded Args and reads or
	// writes machine state through the Cpu. Handlers never advance the
	// pc themselves; jumps replace it outright.
	Instruction func(c *Cpu, args []Arg)

	// Name is the assembler mnemonic, lowercase.
	Name string

	// Operand words consumed after the instruction word; 0 to 3. The
	// fourth mode slot in the high byte is reserved and always 0b00.
	Arity uint16
}

// Opcodes maps the 25 instruction bytes the Cpu recognises. Anything
// else fetched from memory is reported and skipped as if it were a nop.
var Opcodes = map[byte]Opcode{
	// system
	0x00: {Instruction: (*Cpu).nop, Name: "nop", Arity: 0},
	0x01: {Instruction: (*Cpu).ext, Name: "ext", Arity: 1},
	0x02: {Instruction: (*Cpu).sys, Name: "sys", Arity: 1},

	// data
	0x03: {Instruction: (*Cpu).mov, Name: "mov", Arity: 2},

	// jumps and conditionals
	0x04: {Instruction: (*Cpu).jmp, Name: "jmp", Arity: 1},
	0x05: {Instruction: (*Cpu).jeq, Name: "jeq", Arity: 3},
	0x06: {Instruction: (*Cpu).jne, Name: "jne", Arity: 3},
	0x07: {Instruction: (*Cpu).jgt, Name: "jgt", Arity: 3},
	0x08: {Instruction: (*Cpu).jge, Name: "jge", Arity: 3},
	0x09: {Instruction: (*Cpu).jlt, Name: "jlt", Arity: 3},
	0x0A: {Instruction: (*Cpu).jle, Name: "jle", Arity: 3},

	// subroutines
	0x0B: {Instruction: (*Cpu).jsr, Name: "jsr", Arity: 1},
	0x0C: {Instruction: (*Cpu).ret, Name: "ret", Arity: 0},

	// arithmetic
	0x0D: {Instruction: (*Cpu).add, Name: "add", Arity: 2},
	0x0E: {Instruction: (*Cpu).sub, Name: "sub", Arity: 2},
	0x0F: {Instruction: (*Cpu).mul, Name: "mul", Arity: 2},
	0x10: {Instruction: (*Cpu).mdl, Name: "mod", Arity: 2},

	// bitwise
	0x11: {Instruction: (*Cpu).and, Name: "and", Arity: 2},
	0x12: {Instruction: (*Cpu).orr, Name: "orr", Arity: 2},
	0x13: {Instruction: (*Cpu).not, Name: "not", Arity: 1},
	0x14: {Instruction: (*Cpu).xor, Name: "xor", Arity: 2},
	0x15: {Instruction: (*Cpu).lsl, Name: "lsl", Arity: 2},
	0x16: {Instruction: (*Cpu).lsr, Name: "lsr", Arity: 2},

	// data stack
	0x17: {Instruction: (*Cpu).psh, Name: "psh", Arity: 1},
	0x18: {Instruction: (*Cpu).pop, Name: "pop", Arity: 1},
}
