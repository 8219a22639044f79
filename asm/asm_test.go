package asm

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"

	"qcpu/mem"
)

func TestTokenize(t *testing.T) {
	a := New()

	tokens, err := a.Tokenize("mov a 5 ; set up\nloop: add a 1")
	assert.NoError(t, err)

	assert.Equal(t, tokens, []Token{
		{Type: Op, Data: "mov", Address: 0, Line: 1},
		{Type: Register, Data: "a", Address: 1, Line: 1},
		{Type: Immediate, Data: "5", Address: 2, Line: 1},
		{Type: Label, Data: "loop", Address: 3, Line: 2},
		{Type: Op, Data: "add", Address: 3, Line: 2},
		{Type: Register, Data: "a", Address: 4, Line: 2},
		{Type: Immediate, Data: "1", Address: 5, Line: 2},
	})
}

func TestTokenizeModes(t *testing.T) {
	a := New()

	tokens, err := a.Tokenize("mov $10 [x]\njmp $table\n# full line comment\npsh 0xff")
	assert.NoError(t, err)

	types := []TokenType{}
	for _, tok := range tokens {
		types = append(types, tok.Type)
	}
	assert.Equal(t, types, []TokenType{
		Op, Absolute, Indirect,
		Op, AbsoluteLabelReference,
		Op, Immediate,
	})
}

func TestEncodeNop(t *testing.T) {
	img, err := New().Assemble("nop")
	assert.NoError(t, err)
	assert.Equal(t, img, []byte{0x00, 0x00})
}

func TestEncodeMov(t *testing.T) {
	a := New()

	tokens, err := a.Tokenize("mov a 5")
	assert.NoError(t, err)
	words, err := a.Convert(tokens, a.BuildLabelTable(tokens))
	assert.NoError(t, err)

	// register dest in slot 1 (0b11), immediate source in slot 2 (0b00)
	assert.Equal(t, words, []uint16{0xC003, 0x0000, 0x0005})
	assert.Equal(t, a.Write(words), []byte{0x03, 0xC0, 0x00, 0x00, 0x05, 0x00})
}

func TestEncodeMod(t *testing.T) {
	a := New()

	tokens, err := a.Tokenize("mod a b")
	assert.NoError(t, err)
	words, err := a.Convert(tokens, nil)
	assert.NoError(t, err)

	assert.Equal(t, words, []uint16{0xF010, 0x0000, 0x0001})
}

func TestBuildLabelTable(t *testing.T) {
	a := New()

	tokens, err := a.Tokenize("start: nop\njmp start\n-: nop")
	assert.NoError(t, err)

	// anonymous anchors are resolved positionally, never stored
	assert.Equal(t, a.BuildLabelTable(tokens), map[string]int{"start": 0})
}

func TestAnonymousLabels(t *testing.T) {
	a := New()

	// backward: the reference binds to the closest - anchor before it
	tokens, err := a.Tokenize("-: nop\nnop\njmp -")
	assert.NoError(t, err)
	words, err := a.Convert(tokens, a.BuildLabelTable(tokens))
	assert.NoError(t, err)
	assert.Equal(t, words[3], uint16(0))

	// forward: the reference binds to the next + anchor after it
	tokens, err = a.Tokenize("jmp +\nnop\n+: ext 0")
	assert.NoError(t, err)
	words, err = a.Convert(tokens, a.BuildLabelTable(tokens))
	assert.NoError(t, err)
	assert.Equal(t, words[1], uint16(3))
}

func TestAnonymousLabelMissing(t *testing.T) {
	a := New()

	tokens, err := a.Tokenize("jmp +")
	assert.NoError(t, err)
	_, err = a.Convert(tokens, nil)
	assert.Error(t, err)

	tokens, err = a.Tokenize("jmp -")
	assert.NoError(t, err)
	_, err = a.Convert(tokens, nil)
	assert.Error(t, err)
}

func TestOrg(t *testing.T) {
	a := New()

	img, err := a.Assemble(".org(4) nop")
	assert.NoError(t, err)
	// words 0..3 unassigned, nop at word 4
	assert.Equal(t, img, []byte{0, 0, 0, 0, 0, 0, 0, 0, 0, 0})
}

func TestDs(t *testing.T) {
	a := New()

	tokens, err := a.Tokenize("psh 1 .ds(3) psh 2")
	assert.NoError(t, err)
	assert.Equal(t, tokens[2].Address, 5) // second psh lands after the gap

	words, err := a.Convert(tokens, nil)
	assert.NoError(t, err)
	assert.Equal(t, len(words), 7)
	assert.Equal(t, words[2], uint16(0))
	assert.Equal(t, words[6], uint16(2))
}

func TestText(t *testing.T) {
	a := New()

	tokens, err := a.Tokenize(".text('hi')")
	assert.NoError(t, err)
	assert.Equal(t, tokens, []Token{
		{Type: Immediate, Data: "104", Address: 0, Line: 1},
		{Type: Immediate, Data: "105", Address: 1, Line: 1},
	})

	words, err := a.Convert(tokens, nil)
	assert.NoError(t, err)
	assert.Equal(t, words, []uint16{'h', 'i'})
}

func TestTextNewline(t *testing.T) {
	a := New()

	// a literal newline comes out as the two characters \ and n
	words, err := a.Convert(mustTokenize(t, a, ".text('a\nb')"), nil)
	assert.NoError(t, err)
	assert.Equal(t, words, []uint16{'a', '\\', 'n', 'b'})
}

func TestDirectiveErrors(t *testing.T) {
	a := New()

	_, err := a.Tokenize(".org(start)")
	assert.Error(t, err)

	_, err = a.Tokenize(".ds(x)")
	assert.Error(t, err)

	_, err = a.Tokenize(".text(unquoted)")
	assert.Error(t, err)

	_, err = a.Tokenize(".frobnicate(1)")
	assert.Error(t, err)
}

func TestUnknownLabel(t *testing.T) {
	a := New()

	tokens, err := a.Tokenize("jmp nowhere")
	assert.NoError(t, err)
	_, err = a.Convert(tokens, a.BuildLabelTable(tokens))

	var asmErr *Error
	assert.ErrorAs(t, err, &asmErr)
	assert.Equal(t, asmErr.Lexeme, "nowhere")
	assert.Equal(t, asmErr.Line, 1)
}

func TestUnrecognisedTokenSkipped(t *testing.T) {
	a := New()
	diag := &strings.Builder{}
	a.SetOutput(diag)

	// the bad lexeme is reported and dropped; it consumes no address
	img, err := a.Assemble("mov a !!! 5")
	assert.NoError(t, err)
	assert.Equal(t, img, []byte{0x03, 0xC0, 0x00, 0x00, 0x05, 0x00})
	assert.Contains(t, diag.String(), "unrecognised token: [!!!] on line 1")
}

func TestParseNumber(t *testing.T) {
	for in, want := range map[string]uint16{
		"0":      0,
		"42":     42,
		"0x10":   16,
		"0XFF":   255,
		"0b101":  5,
		"0B11":   3,
		"65535":  65535,
		"0xffff": 65535,
	} {
		n, err := parseNumber(in)
		assert.NoError(t, err, in)
		assert.Equal(t, n, want, in)
	}

	for _, in := range []string{"", "abc", "0x", "0b", "65536", "-1", "1.5"} {
		_, err := parseNumber(in)
		assert.Error(t, err, in)
	}
}

func TestRoundTrip(t *testing.T) {
	a := New()

	source := `
  mov a 0
-: add a 1
  jlt - a 3
  ext a
`
	tokens, err := a.Tokenize(source)
	assert.NoError(t, err)
	words, err := a.Convert(tokens, a.BuildLabelTable(tokens))
	assert.NoError(t, err)

	// the loader reproduces the converted words exactly
	b := &mem.Bus{}
	assert.NoError(t, b.LoadImage(a.Write(words)))
	for i, w := range words {
		assert.Equal(t, b.Words[i], w, "word %d", i)
	}

	// little-endian contract
	img := a.Write(words)
	for i, w := range words {
		assert.Equal(t, img[2*i], byte(w&0xFF))
		assert.Equal(t, img[2*i+1], byte(w>>8))
	}
}

func mustTokenize(t *testing.T, a *Assembler, source string) []Token {
	t.Helper()
	tokens, err := a.Tokenize(source)
	assert.NoError(t, err)
	return tokens
}
