package vm

import (
	"strings"
)

// Assembler translates a MASM-flavoured text source into machine code
// written into Memory, and into initial CPU register state, per spec.md
// §4.4. Symbol tables live for the duration of a single Load call;
// previous contents are discarded on each load.
type Assembler struct {
	cpu *CPU // the CPU whose Memory and segment/IP registers Load initialises

	model  string
	bases  segmentBases
	labels map[string]int
	vars   map[string]int

	entryLabel string
	sizing     bool // true during the size-estimation pass: unresolved forward references are tolerated
}

// NewAssembler constructs an Assembler that loads programs into cpu's
// Memory and initialises cpu's segment registers and IP on a successful
// Load.
func NewAssembler(cpu *CPU) *Assembler {
	return &Assembler{cpu: cpu}
}

func foldKey(name string) string { return strings.ToUpper(strings.TrimSpace(name)) }

func (a *Assembler) lookupSymbol(name string) (int, bool) {
	key := foldKey(name)
	if addr, ok := a.labels[key]; ok {
		return addr, true
	}
	if addr, ok := a.vars[key]; ok {
		return addr, true
	}
	if a.sizing {
		// Tolerate forward references during sizing (the value is unused),
		// but not numeric literals: they must size as the immediates they
		// are emitted as.
		if _, err := parseImmediate(name); err != nil {
			return 0, true
		}
	}
	return 0, false
}

// asmLineKind distinguishes what a preprocessed source line does.
type asmLineKind int

const (
	lineDirective asmLineKind = iota
	lineInstruction
	lineData
)

type asmLine struct {
	num       int
	raw       string
	kind      asmLineKind
	directive string // e.g. "MODEL", "DATA", "CODE", "STACK", "ORG", "END", "PROC", "ENDP"
	arg       string
	mnemonic  string
	operands  []string
	section   section
	addr      int // filled in during the size pass
}

// Load runs the full two-pass assembly pipeline: preprocess, size
// estimate (resolving label/variable addresses), then emit.
func (a *Assembler) Load(source string) error {
	a.model = defaultMemoryModel
	a.bases = memoryModels[defaultMemoryModel]
	a.labels = make(map[string]int)
	a.vars = make(map[string]int)
	a.entryLabel = ""

	lines, err := a.preprocess(source)
	if err != nil {
		return err
	}

	if err := a.sizePass(lines); err != nil {
		return err
	}

	a.cpu.Memory().Reset()
	if err := a.emitPass(lines); err != nil {
		return err
	}

	a.cpu.SetRegister(CS, uint16(a.bases.code>>4))
	a.cpu.SetRegister(DS, uint16(a.bases.data>>4))
	a.cpu.SetRegister(SS, uint16(a.bases.stack>>4))
	a.cpu.SetRegister(ES, uint16(a.bases.data>>4))
	a.cpu.SetRegister(SP, 0xFFFE)

	entry := 0
	if a.entryLabel != "" {
		if addr, ok := a.labels[foldKey(a.entryLabel)]; ok {
			entry = addr
		} else if addr, ok := a.vars[foldKey(a.entryLabel)]; ok {
			entry = addr
		}
	} else if addr, ok := a.labels["START"]; ok {
		entry = addr
	} else if addr, ok := a.labels["MAIN"]; ok {
		entry = addr
	}
	a.cpu.SetRegister(IP, uint16(entry-a.bases.code))
	return nil
}

// preprocess strips comments and blank lines and classifies each
// remaining line as a directive, a data declaration, or an instruction,
// recording any label prefix along the way. It does not yet resolve
// addresses; that happens in sizePass.
func (a *Assembler) preprocess(source string) ([]asmLine, error) {
	var out []asmLine
	rawLines := strings.Split(source, "\n")
	for i, raw := range rawLines {
		lineNo := i + 1
		text := raw
		if idx := strings.Index(text, ";"); idx >= 0 {
			text = text[:idx]
		}
		text = strings.TrimSpace(text)
		if text == "" {
			continue
		}

		var label string
		if idx := strings.Index(text, ":"); idx >= 0 && !strings.Contains(text[:idx], " ") {
			label = text[:idx]
			text = strings.TrimSpace(text[idx+1:])
			out = append(out, asmLine{num: lineNo, raw: raw, kind: lineDirective, directive: "LABEL", arg: label})
			if text == "" {
				continue
			}
		}

		fields := strings.Fields(text)
		first := fields[0]
		firstUpper := strings.ToUpper(first)

		if strings.HasPrefix(first, ".") {
			out = append(out, asmLine{num: lineNo, raw: raw, kind: lineDirective, directive: strings.ToUpper(strings.TrimPrefix(first, ".")), arg: strings.TrimSpace(strings.TrimPrefix(text, first))})
			continue
		}
		if firstUpper == "ORG" || firstUpper == "END" {
			out = append(out, asmLine{num: lineNo, raw: raw, kind: lineDirective, directive: firstUpper, arg: strings.TrimSpace(strings.TrimPrefix(text, first))})
			continue
		}

		if len(fields) >= 2 && strings.ToUpper(fields[1]) == "PROC" {
			out = append(out, asmLine{num: lineNo, raw: raw, kind: lineDirective, directive: "LABEL", arg: first})
			continue
		}
		if len(fields) >= 1 && strings.ToUpper(fields[0]) == "ENDP" {
			continue
		}
		if len(fields) >= 2 && strings.ToUpper(fields[1]) == "DB" {
			afterName := strings.TrimSpace(text[len(first):])
			rest := strings.TrimSpace(afterName[len("DB"):])
			out = append(out, asmLine{num: lineNo, raw: raw, kind: lineData, directive: first, arg: rest})
			continue
		}

		mnemonic := firstUpper
		operandText := strings.TrimSpace(strings.TrimPrefix(text, first))
		var operands []string
		if operandText != "" {
			operands = splitOperands(operandText)
		}
		out = append(out, asmLine{num: lineNo, raw: raw, kind: lineInstruction, mnemonic: mnemonic, operands: operands})
	}
	return out, nil
}

// dbByteCount returns the number of bytes a DB declaration's argument
// text occupies: string-literal bytes (quotes excluded) or the
// comma-separated value count, per spec.md §4.4.
func dbByteCount(arg string) int {
	arg = strings.TrimSpace(arg)
	if len(arg) >= 2 && (arg[0] == '\'' || arg[0] == '"') && arg[len(arg)-1] == arg[0] {
		return len(arg) - 2
	}
	return len(splitOperands(arg))
}

func dbBytes(arg string) []byte {
	arg = strings.TrimSpace(arg)
	if len(arg) >= 2 && (arg[0] == '\'' || arg[0] == '"') && arg[len(arg)-1] == arg[0] {
		return []byte(arg[1 : len(arg)-1])
	}
	var out []byte
	for _, part := range splitOperands(arg) {
		n, err := parseImmediate(part)
		if err != nil {
			n = 0
		}
		out = append(out, byte(n))
	}
	return out
}

// sizePass walks the preprocessed lines once, tracking the active section
// and a per-section location counter, recording label/variable addresses
// and each instruction line's computed address. Instruction byte length
// depends only on operand syntactic shape (register/immediate/memory,
// width), never on a resolved symbol's numeric value, so this pass never
// needs forward-reference values - only their presence, which `sizing`
// mode tolerates.
func (a *Assembler) sizePass(lines []asmLine) error {
	a.sizing = true
	defer func() { a.sizing = false }()

	active := sectionCode
	lc := map[section]int{sectionCode: a.bases.code, sectionData: a.bases.data, sectionStack: a.bases.stack}

	for i := range lines {
		ln := &lines[i]
		switch ln.kind {
		case lineDirective:
			switch ln.directive {
			case "LABEL":
				a.labels[foldKey(ln.arg)] = lc[active]
			case "MODEL":
				fields := strings.Fields(ln.arg)
				if len(fields) == 0 {
					return newParseError(ln.num, ln.raw, ".MODEL requires a memory-model name")
				}
				model := strings.ToUpper(fields[0])
				if b, ok := memoryModels[model]; ok {
					a.model = model
					a.bases = b
					lc[sectionCode], lc[sectionData], lc[sectionStack] = b.code, b.data, b.stack
				}
			case "CODE":
				active = sectionCode
			case "DATA":
				active = sectionData
			case "STACK":
				active = sectionStack
			case "ORG":
				if n, err := parseImmediate(ln.arg); err == nil {
					lc[active] = int(n)
				}
			case "END":
				a.entryLabel = strings.TrimSpace(ln.arg)
			}
		case lineData:
			a.vars[foldKey(ln.directive)] = lc[sectionData]
			lc[sectionData] += dbByteCount(ln.arg)
		case lineInstruction:
			ln.section = active
			ln.addr = lc[active]
			size, err := a.instructionSize(ln.num, ln.raw, ln.mnemonic, ln.operands)
			if err != nil {
				return err
			}
			lc[active] += size
		}
	}
	return nil
}

// emitPass re-walks the lines, this time writing real bytes to Memory at
// each recorded address.
func (a *Assembler) emitPass(lines []asmLine) error {
	for _, ln := range lines {
		switch ln.kind {
		case lineData:
			addr, ok := a.vars[foldKey(ln.directive)]
			if !ok {
				return newSemanticError(ln.num, ln.raw, "internal: variable %q missing address", ln.directive)
			}
			if err := a.cpu.Memory().LoadBytes(addr, dbBytes(ln.arg)); err != nil {
				return err
			}
		case lineInstruction:
			bytes, err := a.encodeInstruction(ln.num, ln.raw, ln.addr, ln.mnemonic, ln.operands)
			if err != nil {
				return err
			}
			if err := a.cpu.Memory().LoadBytes(ln.addr, bytes); err != nil {
				return err
			}
		}
	}
	return nil
}
