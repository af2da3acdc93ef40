package cpu

import (
	"bufio"
	"fmt"
	"io"
	"log"
	"maps"
	"regexp"
	"slices"
	"strconv"
	"strings"

	"go.starlark.net/starlark"
	"go.starlark.net/syntax"
)

// Predefined system equates
var sysEquate = map[string]string{
	"LINENO":   "0",
	"PC_START": fmt.Sprintf("%#x", PC_START),
	"KBSR":     fmt.Sprintf("%#x", MR_KBSR),
	"KBDR":     fmt.Sprintf("%#x", MR_KBDR),
}

// Assembler is a single-pass assembler for the LC-3 assembly language.
// Mnemonics and registers are case-insensitive; labels and equates are
// case-sensitive. Labels end with ':'. Numeric literals accept the
// LC-3 '#' and 'x' prefixes as well as plain Go syntax, and '$(...)'
// expressions are evaluated at assembly time.
type Assembler struct {
	Verbose    bool        // If set, verbosely logs the assembler actions.
	Statements []Statement // List of generated statements.

	predefine map[string]string // Predefines
	Label     map[string]uint16 // Map of labels to load addresses.
	Equate    map[string]string // Map of equates.

	origin    uint16
	originSet bool
	ended     bool
}

// Predefine defines a new equate or redefines an existing equate.
func (asm *Assembler) Predefine(equ string, value string) {
	if asm.predefine == nil {
		asm.predefine = map[string]string{equ: value}
	} else {
		asm.predefine[equ] = value
	}
}

// trapAlias maps the service-routine mnemonics to their vectors.
var trapAlias = map[string]TrapVector{
	"getc":  TRAP_GETC,
	"out":   TRAP_OUT,
	"puts":  TRAP_PUTS,
	"in":    TRAP_IN,
	"putsp": TRAP_PUTSP,
	"halt":  TRAP_HALT,
}

var pcRelOp = map[string]Opcode{
	"ld":  OP_LD,
	"ldi": OP_LDI,
	"lea": OP_LEA,
	"st":  OP_ST,
	"sti": OP_STI,
}

var baseOp = map[string]Opcode{
	"ldr": OP_LDR,
	"str": OP_STR,
}

// parseInt parses an LC-3 numeric literal: #10, x1F, 0x1F, or decimal.
func (asm *Assembler) parseInt(word string) (value int64, err error) {
	text := word
	if strings.HasPrefix(text, "#") {
		text = text[1:]
	} else if len(text) > 1 && (text[0] == 'x' || text[0] == 'X') {
		text = "0x" + text[1:]
	}

	value, nerr := strconv.ParseInt(text, 0, 32)
	if nerr != nil {
		err = ErrParseNumber(word)
	}

	return
}

// valueOf parses a literal that must fit in one word.
func (asm *Assembler) valueOf(word string) (value uint16, err error) {
	v64, err := asm.parseInt(word)
	if err != nil {
		return
	}
	if v64 < -0x8000 || v64 > 0xFFFF {
		err = ErrImmediateRange
		return
	}
	value = uint16(v64)
	return
}

// register parses an r0-r7 register name.
func (asm *Assembler) register(word string) (r uint16, err error) {
	w := strings.ToLower(word)
	if len(w) == 2 && w[0] == 'r' && w[1] >= '0' && w[1] <= '7' {
		r = uint16(w[1] - '0')
		return
	}
	err = ErrRegisterInvalid
	return
}

// fieldRange checks that a signed offset fits an n-bit field.
func fieldRange(v int64, bits int) (err error) {
	limit := int64(1) << (bits - 1)
	if v < -limit || v >= limit {
		err = ErrOffsetRange
	}
	return
}

// offsetOrLabel parses a PC-relative operand: either a numeric offset
// checked against the field width, or a label left for the link pass.
func (asm *Assembler) offsetOrLabel(word string, bits int) (off int16, label string, err error) {
	v64, nerr := asm.parseInt(word)
	if nerr != nil {
		label = word
		return
	}
	err = fieldRange(v64, bits)
	off = int16(v64)
	return
}

// parenEval does assembly-time $(...) evaluations.
func (asm *Assembler) parenEval(expr string) (value uint16, err error) {
	thread := starlark.Thread{}
	opts := syntax.FileOptions{}
	pred := starlark.StringDict{}
	for key, str := range asm.Equate {
		value16, verr := asm.valueOf(str)
		if verr != nil {
			// Ignore non-integer equates. They may be registers
			// or labels.
			continue
		}
		pred[key] = starlark.MakeInt(int(value16))
	}
	prog := "rc=" + expr + "\n"
	dict, err := starlark.ExecFileOptions(&opts, &thread, "expr", prog, pred)
	if err != nil {
		return
	}
	st_rc, ok := dict["rc"]
	if !ok {
		err = ErrParseExpression(expr)
		return
	}
	st_int, ok := st_rc.(starlark.Int)
	if !ok {
		err = ErrParseExpression(expr)
		return
	}
	st_int64, ok := st_int.Int64()
	if !ok {
		err = ErrParseExpression(expr)
		return
	}
	value = uint16(st_int64)
	return
}

// splitComment strips a ';' comment, honoring quoted strings.
func splitComment(text string) string {
	inQuote := false
	for n, r := range text {
		switch {
		case r == '"':
			inQuote = !inQuote
		case r == ';' && !inQuote:
			return text[:n]
		}
	}
	return text
}

// splitFields splits a line on spaces, tabs, and commas, keeping quoted
// strings as single words.
func splitFields(line string) (words []string) {
	var cur strings.Builder
	inQuote := false
	flush := func() {
		if cur.Len() > 0 {
			words = append(words, cur.String())
			cur.Reset()
		}
	}
	for _, r := range line {
		switch {
		case r == '"':
			inQuote = !inQuote
			cur.WriteRune(r)
		case !inQuote && (r == ' ' || r == '\t' || r == ','):
			flush()
		default:
			cur.WriteRune(r)
		}
	}
	flush()
	return
}

// parseLine expands one source line into its operand words.
func (asm *Assembler) parseLine(line string, lineno int) (words []string, err error) {
	// Set line number.
	asm.Equate["LINENO"] = fmt.Sprintf("%v", lineno)

	if !strings.Contains(line, `"`) {
		// Do 'x' evaluations
		re := regexp.MustCompile(`'\\?[^']'`)
		line = re.ReplaceAllStringFunc(line, func(word string) string {
			str := word[1 : len(word)-1]
			if str[0] == '\\' {
				switch str[1:] {
				case "\\":
					str = "\\"
				case "n":
					str = "\n"
				case "r":
					str = "\r"
				case "0":
					str = "\x00"
				case "e":
					str = "\033"
				default:
					return word
				}
			} else if len(str) != 1 {
				return word
			}
			return fmt.Sprintf("%v", str[0])
		})

		// Do $() evaluations
		re = regexp.MustCompile(`\$\([^\$]*\)`)
		line = re.ReplaceAllStringFunc(line, func(str string) string {
			value, _err := asm.parenEval(str[2 : len(str)-1])
			if _err != nil {
				err = _err
			}
			return fmt.Sprintf("%#x", value)
		})
		if err != nil {
			return
		}
	}

	words = splitFields(line)
	if len(words) == 0 {
		return
	}

	// .equ CONST VALUE
	if strings.ToLower(words[0]) == ".equ" {
		if len(words) != 3 {
			err = ErrEquateSyntax
			return
		}
		_, ok := asm.Equate[words[1]]
		if ok {
			err = ErrEquateDuplicate
			return
		}
		asm.Equate[words[1]] = words[2]
		words = words[:0]
		return
	}

	for n, word := range words {
		if strings.HasPrefix(word, `"`) {
			continue
		}
		equate, ok := asm.Equate[word]
		if ok {
			words[n] = equate
		}
	}

	for strings.HasSuffix(words[0], ":") {
		label := words[0][:len(words[0])-1]
		_, ok := asm.Label[label]
		if ok {
			err = ErrLabelDuplicate
			return
		}
		if !asm.originSet {
			err = ErrOriginMissing
			return
		}

		if asm.Label == nil {
			asm.Label = make(map[string]uint16, 16)
		}
		asm.Label[label] = asm.currentAddr()
		words = words[1:]
		if len(words) == 0 {
			return
		}
	}

	return
}

// currentAddr gets the next load address.
func (asm *Assembler) currentAddr() uint16 {
	if len(asm.Statements) == 0 {
		return asm.origin
	}

	last := asm.Statements[len(asm.Statements)-1]

	return last.Addr + uint16(len(last.Codes))
}

// Parse parses an input stream into a Program.
func (asm *Assembler) Parse(input io.Reader) (prog *Program, err error) {
	scanner := bufio.NewScanner(input)

	var line string
	var lineno int

	defer func() {
		if err != nil {
			err = &ErrSyntax{LineNo: lineno, Line: line, Err: err}
		}
	}()

	asm.Statements = asm.Statements[:0]
	asm.origin = 0
	asm.originSet = false
	asm.ended = false
	clear(asm.Label)
	asm.Equate = maps.Clone(sysEquate)
	for attr, val := range asm.predefine {
		asm.Equate[attr] = val
	}

	for scanner.Scan() && !asm.ended {
		text := scanner.Text()
		lineno += 1

		if asm.Verbose {
			log.Printf("%v: %v", lineno, text)
		}

		line = strings.TrimSpace(splitComment(text))

		var words []string
		words, err = asm.parseLine(line, lineno)
		if err != nil {
			return
		}

		err = asm.parseWords(words, lineno)
		if err != nil {
			return
		}
	}
	err = scanner.Err()
	if err != nil {
		return
	}

	if !asm.originSet {
		err = ErrOriginMissing
		return
	}

	// Final linking of label references.
	for n := range asm.Statements {
		st := &asm.Statements[n]
		if len(st.LinkLabel) == 0 {
			continue
		}

		target, ok := asm.Label[st.LinkLabel]
		if !ok {
			lineno, line = st.LineNo, strings.Join(st.Words, " ")
			err = ErrLabelMissing(st.LinkLabel)
			return
		}

		index := len(st.Codes) - 1
		if st.LinkBits == 16 {
			st.Codes[index] = Code(target)
			continue
		}

		// PC-relative fields count from the incremented PC.
		offset := int64(target) - (int64(st.Addr) + int64(index) + 1)
		err = fieldRange(offset, st.LinkBits)
		if err != nil {
			lineno, line = st.LineNo, strings.Join(st.Words, " ")
			return
		}
		mask := Code(1)<<st.LinkBits - 1
		st.Codes[index] |= Code(offset) & mask
	}

	prog = &Program{
		Origin:     asm.origin,
		Statements: slices.Clone(asm.Statements),
	}

	return
}

// parseWords evaluates the words in a line of assembly text.
func (asm *Assembler) parseWords(words []string, lineno int) (err error) {
	var codes []Code
	var label string
	var bits int

	// no-op
	if len(words) == 0 {
		return
	}

	initial_words := words

	defer func() {
		if len(codes) == 0 || err != nil {
			return
		}
		st := Statement{LineNo: lineno, Addr: asm.currentAddr(), Words: initial_words,
			Codes: codes, LinkLabel: label, LinkBits: bits}
		asm.Statements = append(asm.Statements, st)
	}()

	mnemonic := strings.ToLower(words[0])
	args := words[1:]

	switch mnemonic {
	case ".orig":
		if asm.originSet {
			return ErrOriginDuplicate
		}
		if err = operandCount(args, 1); err != nil {
			return
		}
		asm.origin, err = asm.valueOf(args[0])
		if err != nil {
			return
		}
		asm.originSet = true
		return
	case ".end":
		asm.ended = true
		return
	}

	if !asm.originSet {
		return ErrOriginMissing
	}

	switch mnemonic {
	case ".fill":
		if err = operandCount(args, 1); err != nil {
			return
		}
		v64, nerr := asm.parseInt(args[0])
		if nerr == nil {
			if v64 < -0x8000 || v64 > 0xFFFF {
				return ErrImmediateRange
			}
			codes = append(codes, Code(uint16(v64)))
			return
		}
		codes = append(codes, Code(0))
		label, bits = args[0], 16

	case ".blkw":
		if err = operandCount(args, 1); err != nil {
			return
		}
		var v64 int64
		v64, err = asm.parseInt(args[0])
		if err != nil {
			return
		}
		if v64 < 1 || v64 > MEMORY_MAX {
			return ErrBlockSize
		}
		codes = make([]Code, v64)

	case ".stringz":
		if err = operandCount(args, 1); err != nil {
			return
		}
		text, uerr := strconv.Unquote(args[0])
		if uerr != nil {
			return ErrStringSyntax
		}
		for _, r := range text {
			codes = append(codes, Code(uint16(r)))
		}
		codes = append(codes, Code(0))

	case "add", "and":
		op := OP_ADD
		if mnemonic == "and" {
			op = OP_AND
		}
		if err = operandCount(args, 3); err != nil {
			return
		}
		var dr, sr1 uint16
		dr, err = asm.register(args[0])
		if err != nil {
			return
		}
		sr1, err = asm.register(args[1])
		if err != nil {
			return
		}
		sr2, rerr := asm.register(args[2])
		if rerr == nil {
			codes = append(codes, MakeCodeOperate(op, dr, sr1, sr2))
			return
		}
		var v64 int64
		v64, err = asm.parseInt(args[2])
		if err != nil {
			return
		}
		if v64 < -16 || v64 > 15 {
			return ErrImmediateRange
		}
		codes = append(codes, MakeCodeOperateImm(op, dr, sr1, int16(v64)))

	case "not":
		if err = operandCount(args, 2); err != nil {
			return
		}
		var dr, sr uint16
		dr, err = asm.register(args[0])
		if err != nil {
			return
		}
		sr, err = asm.register(args[1])
		if err != nil {
			return
		}
		codes = append(codes, MakeCodeNot(dr, sr))

	case "jmp":
		if err = operandCount(args, 1); err != nil {
			return
		}
		var base uint16
		base, err = asm.register(args[0])
		if err != nil {
			return
		}
		codes = append(codes, MakeCodeJmp(base))

	case "ret":
		if err = operandCount(args, 0); err != nil {
			return
		}
		codes = append(codes, MakeCodeJmp(R7))

	case "jsr":
		if err = operandCount(args, 1); err != nil {
			return
		}
		var off int16
		off, label, err = asm.offsetOrLabel(args[0], 11)
		if err != nil {
			return
		}
		codes = append(codes, MakeCodeJsr(off))
		if len(label) != 0 {
			bits = 11
		}

	case "jsrr":
		if err = operandCount(args, 1); err != nil {
			return
		}
		var base uint16
		base, err = asm.register(args[0])
		if err != nil {
			return
		}
		codes = append(codes, MakeCodeJsrr(base))

	case "ld", "ldi", "lea", "st", "sti":
		if err = operandCount(args, 2); err != nil {
			return
		}
		var reg uint16
		reg, err = asm.register(args[0])
		if err != nil {
			return
		}
		var off int16
		off, label, err = asm.offsetOrLabel(args[1], 9)
		if err != nil {
			return
		}
		codes = append(codes, MakeCodePCRel(pcRelOp[mnemonic], reg, off))
		if len(label) != 0 {
			bits = 9
		}

	case "ldr", "str":
		if err = operandCount(args, 3); err != nil {
			return
		}
		var reg, base uint16
		reg, err = asm.register(args[0])
		if err != nil {
			return
		}
		base, err = asm.register(args[1])
		if err != nil {
			return
		}
		var v64 int64
		v64, err = asm.parseInt(args[2])
		if err != nil {
			return
		}
		if err = fieldRange(v64, 6); err != nil {
			return
		}
		codes = append(codes, MakeCodeBase(baseOp[mnemonic], reg, base, int16(v64)))

	case "trap":
		if err = operandCount(args, 1); err != nil {
			return
		}
		if vector, ok := trapAlias[strings.ToLower(args[0])]; ok {
			codes = append(codes, MakeCodeTrap(vector))
			return
		}
		var v64 int64
		v64, err = asm.parseInt(args[0])
		if err != nil {
			return
		}
		if v64 < 0 || v64 > 0xFF {
			return ErrVectorRange
		}
		codes = append(codes, MakeCodeTrap(TrapVector(v64)))

	default:
		if strings.HasPrefix(mnemonic, "br") {
			mask := Flag(0)
			for _, c := range mnemonic[2:] {
				switch c {
				case 'n':
					mask |= FL_NEG
				case 'z':
					mask |= FL_ZRO
				case 'p':
					mask |= FL_POS
				default:
					return ErrOpcodeInvalid
				}
			}
			if mask == 0 {
				mask = FL_NEG | FL_ZRO | FL_POS
			}
			if err = operandCount(args, 1); err != nil {
				return
			}
			var off int16
			off, label, err = asm.offsetOrLabel(args[0], 9)
			if err != nil {
				return
			}
			codes = append(codes, MakeCodeBr(mask, off))
			if len(label) != 0 {
				bits = 9
			}
			return
		}

		vector, ok := trapAlias[mnemonic]
		if !ok {
			return ErrOpcodeInvalid
		}
		if err = operandCount(args, 0); err != nil {
			return
		}
		codes = append(codes, MakeCodeTrap(vector))
	}

	return
}

func operandCount(args []string, want int) (err error) {
	if len(args) < want {
		err = ErrOperandMissing
	} else if len(args) > want {
		err = ErrOperandExtra
	}
	return
}
