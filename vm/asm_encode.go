package vm

import "strings"

// This file implements the assembler's mnemonic set as enumerated in
// spec.md §4.4: MOV, ADD, SUB, CMP, AND, OR, XOR, TEST, MUL, DIV, INC,
// DEC, PUSH, POP, JMP, the full Jcc set, CALL, RET, LOOP/LOOPE/LOOPNE,
// the string primitives, REP/REPE/REPZ/REPNE/REPNZ, the single-byte flag
// and control instructions, CBW, CWD, LAHF, SAHF, NOP, HLT, and INT; it
// also accepts LEA/LDS/LES, JCXZ, RETN/RETF, and the LOOPZ/LOOPNZ aliases.
// Shift/rotate, NOT, ADC, and SBB are part of the instruction engine
// (ops_logic.go, ops_arith.go) but are not assembler mnemonics - a
// raw-byte-loaded program can still use them.

func reg16Code(r Register) byte {
	for i, e := range reg16Table {
		if e == r {
			return byte(i)
		}
	}
	return 0
}

// isSegReg reports whether r is one of CS/DS/SS/ES, which ModR/M encodes
// through a separate 2-bit field (opcodes 0x8C/0x8E) rather than the
// general-purpose reg16Table.
func isSegReg(r Register) bool {
	return r == CS || r == DS || r == SS || r == ES
}

func segRegCode(r Register) byte {
	for i, e := range segRegTable {
		if e == r {
			return byte(i)
		}
	}
	return 0
}

func reg8Code(r Register, high bool) byte {
	for i, e := range reg8Table {
		if e.reg == r && e.high == high {
			return byte(i)
		}
	}
	return 0
}

func modrmByte(mod, reg, rm byte) byte { return mod<<6 | reg<<3 | rm }

// encodeModRM produces the ModR/M byte (and any trailing displacement
// bytes) addressing rmOp, with regField filling the reg bits - either a
// second register operand or a group's sub-opcode.
func encodeModRM(regField byte, rmOp asmOperand) []byte {
	if rmOp.kind == operandRegister {
		var rmCode byte
		if rmOp.regWidth == width8 {
			rmCode = reg8Code(rmOp.reg, rmOp.regHigh)
		} else {
			rmCode = reg16Code(rmOp.reg)
		}
		return []byte{modrmByte(3, regField, rmCode)}
	}

	if rmOp.direct {
		b := []byte{modrmByte(0, regField, 6)}
		d := uint16(rmOp.disp)
		return append(b, byte(d), byte(d>>8))
	}

	rm := byte(rmOp.rm)
	if rm == 6 && !rmOp.hasDisp {
		// [BP] alone cannot use mod=0 (reserved for the direct-address
		// form), so emit it as mod=1 with an explicit zero displacement.
		return []byte{modrmByte(1, regField, rm), 0}
	}
	if !rmOp.hasDisp {
		return []byte{modrmByte(0, regField, rm)}
	}
	if rmOp.disp >= -128 && rmOp.disp <= 127 {
		return []byte{modrmByte(1, regField, rm), byte(int8(rmOp.disp))}
	}
	d := uint16(int16(rmOp.disp))
	return []byte{modrmByte(2, regField, rm), byte(d), byte(d >> 8)}
}

// jccOpcodes maps every conditional-jump mnemonic (including the standard
// aliases) to its 0x70+idx opcode.
var jccOpcodes = map[string]byte{
	"JO": 0x70, "JNO": 0x71,
	"JB": 0x72, "JC": 0x72, "JNAE": 0x72,
	"JAE": 0x73, "JNB": 0x73, "JNC": 0x73,
	"JE": 0x74, "JZ": 0x74,
	"JNE": 0x75, "JNZ": 0x75,
	"JBE": 0x76, "JNA": 0x76,
	"JA": 0x77, "JNBE": 0x77,
	"JS": 0x78, "JNS": 0x79,
	"JP": 0x7A, "JPE": 0x7A,
	"JNP": 0x7B, "JPO": 0x7B,
	"JL": 0x7C, "JNGE": 0x7C,
	"JGE": 0x7D, "JNL": 0x7D,
	"JLE": 0x7E, "JNG": 0x7E,
	"JG": 0x7F, "JNLE": 0x7F,
}

// stringOpcodes maps the assembler's explicit-width string mnemonics to
// their unprefixed opcode byte.
var stringOpcodes = map[string]byte{
	"MOVSB": 0xA4, "MOVSW": 0xA5,
	"CMPSB": 0xA6, "CMPSW": 0xA7,
	"STOSB": 0xAA, "STOSW": 0xAB,
	"LODSB": 0xAC, "LODSW": 0xAD,
	"SCASB": 0xAE, "SCASW": 0xAF,
}

// instructionSize computes the exact encoded length of one instruction
// line without requiring any label's resolved address - only whether a
// referenced symbol exists, which sizing mode tolerates for any name that
// is not a numeric literal.
// This lets the same location counter drive both the sizing and emission
// passes without risking an address/byte-length mismatch (see SPEC_FULL.md
// §4 and DESIGN.md's discussion of the literal conservative-estimate
// contract in spec.md §4.4).
func (a *Assembler) instructionSize(line int, raw, mnemonic string, operands []string) (int, error) {
	bytes, err := a.encodeInstruction(line, raw, 0, mnemonic, operands)
	if err != nil {
		return 0, err
	}
	return len(bytes), nil
}

// encodeInstruction produces the raw bytes for one instruction line. addr
// is this instruction's own address, needed to compute rel8/rel16
// displacements against branch targets. During the sizing pass
// (a.sizing==true) label targets are unresolved (0), but that never
// changes the byte count: every form this assembler emits has a length
// fixed by its mnemonic and operand syntax, never by an operand's value.
func (a *Assembler) encodeInstruction(line int, raw string, addr int, mnemonic string, operandTexts []string) ([]byte, error) {
	// REP/REPE/REPZ/REPNE/REPNZ take their target as a following mnemonic
	// token (e.g. "REP MOVSB"), not an operand expression, so handle them
	// before the general operand parser runs.
	if prefix, ok := repPrefixOpcodes[mnemonic]; ok {
		if len(operandTexts) != 1 {
			return nil, newParseError(line, raw, "%s expects a single string-primitive mnemonic", mnemonic)
		}
		sub := strings.ToUpper(strings.TrimSpace(operandTexts[0]))
		subOpcode, ok := stringOpcodes[sub]
		if !ok {
			return nil, newSemanticError(line, raw, "%s is not a string primitive %s can prefix", sub, mnemonic)
		}
		return []byte{prefix, subOpcode}, nil
	}

	ops := make([]asmOperand, len(operandTexts))
	for i, t := range operandTexts {
		op, err := a.parseOperand(line, raw, t)
		if err != nil {
			return nil, err
		}
		ops[i] = op
	}

	switch mnemonic {
	case "MOV":
		return a.encodeMOV(line, raw, ops)
	case "LEA":
		return a.encodeLEA(line, raw, ops, 0x8D)
	case "LDS":
		return a.encodeLEA(line, raw, ops, 0xC5)
	case "LES":
		return a.encodeLEA(line, raw, ops, 0xC4)
	case "ADD":
		return a.encodeBinOp(line, raw, ops, 0x00)
	case "SUB":
		return a.encodeBinOp(line, raw, ops, 0x28)
	case "CMP":
		return a.encodeBinOp(line, raw, ops, 0x38)
	case "AND":
		return a.encodeBinOp(line, raw, ops, 0x20)
	case "OR":
		return a.encodeBinOp(line, raw, ops, 0x08)
	case "XOR":
		return a.encodeBinOp(line, raw, ops, 0x30)
	case "TEST":
		return a.encodeTEST(line, raw, ops)
	case "MUL":
		return a.encodeGroupF6F7(line, raw, ops, 4)
	case "DIV":
		return a.encodeGroupF6F7(line, raw, ops, 6)
	case "INC":
		return a.encodeIncDec(line, raw, ops, 0x40, 0)
	case "DEC":
		return a.encodeIncDec(line, raw, ops, 0x48, 1)
	case "PUSH":
		return a.encodePUSH(line, raw, ops)
	case "POP":
		return a.encodePOP(line, raw, ops)
	case "JMP":
		return a.encodeJMP(line, raw, ops, addr)
	case "CALL":
		return a.encodeCALL(line, raw, ops, addr)
	case "RET", "RETN", "RETF":
		return a.encodeRET(line, raw, mnemonic, ops)
	case "LOOP":
		return a.encodeShortBranch(line, raw, ops, addr, 0xE2)
	case "LOOPE", "LOOPZ":
		return a.encodeShortBranch(line, raw, ops, addr, 0xE1)
	case "LOOPNE", "LOOPNZ":
		return a.encodeShortBranch(line, raw, ops, addr, 0xE0)
	case "JCXZ":
		return a.encodeShortBranch(line, raw, ops, addr, 0xE3)
	case "CLD":
		return []byte{0xFC}, nil
	case "STD":
		return []byte{0xFD}, nil
	case "CLC":
		return []byte{0xF8}, nil
	case "STC":
		return []byte{0xF9}, nil
	case "CLI":
		return []byte{0xFA}, nil
	case "STI":
		return []byte{0xFB}, nil
	case "CMC":
		return []byte{0xF5}, nil
	case "CBW":
		return []byte{0x98}, nil
	case "CWD":
		return []byte{0x99}, nil
	case "LAHF":
		return []byte{0x9F}, nil
	case "SAHF":
		return []byte{0x9E}, nil
	case "NOP":
		return []byte{0x90}, nil
	case "HLT":
		return []byte{0xF4}, nil
	case "INT":
		return a.encodeINT(line, raw, ops)
	}

	if op, ok := jccOpcodes[mnemonic]; ok {
		return a.encodeShortBranch(line, raw, ops, addr, op)
	}
	if op, ok := stringOpcodes[mnemonic]; ok {
		if len(ops) != 0 {
			return nil, newParseError(line, raw, "%s takes no operands", mnemonic)
		}
		return []byte{op}, nil
	}

	return nil, newParseError(line, raw, "unsupported mnemonic %q", mnemonic)
}

func requireOperands(line int, raw, mnemonic string, ops []asmOperand, n int) error {
	if len(ops) != n {
		return newParseError(line, raw, "%s expects %d operand(s), got %d", mnemonic, n, len(ops))
	}
	return nil
}

func operandWidth(op asmOperand) width {
	if op.kind == operandRegister {
		return op.regWidth
	}
	return width16 // memory operand width defaults to word when not otherwise constrained
}

func (a *Assembler) encodeMOV(line int, raw string, ops []asmOperand) ([]byte, error) {
	if err := requireOperands(line, raw, "MOV", ops, 2); err != nil {
		return nil, err
	}
	dst, src := ops[0], ops[1]

	switch {
	case dst.kind == operandRegister && isSegReg(dst.reg) && src.kind == operandRegister:
		if isSegReg(src.reg) {
			return nil, newSemanticError(line, raw, "MOV between two segment registers is not encodable")
		}
		return append([]byte{0x8E}, encodeModRM(segRegCode(dst.reg), src)...), nil

	case dst.kind == operandRegister && isSegReg(dst.reg) && src.kind == operandMemory:
		return append([]byte{0x8E}, encodeModRM(segRegCode(dst.reg), src)...), nil

	case dst.kind == operandRegister && src.kind == operandRegister && isSegReg(src.reg):
		return append([]byte{0x8C}, encodeModRM(segRegCode(src.reg), dst)...), nil

	case dst.kind == operandMemory && src.kind == operandRegister && isSegReg(src.reg):
		return append([]byte{0x8C}, encodeModRM(segRegCode(src.reg), dst)...), nil

	case dst.kind == operandRegister && src.kind == operandRegister:
		if dst.regWidth != src.regWidth {
			return nil, newSemanticError(line, raw, "MOV operand width mismatch")
		}
		op := byte(0x88)
		if dst.regWidth == width16 {
			op = 0x89
		}
		regField := regCodeOf(src)
		return append([]byte{op}, encodeModRM(regField, dst)...), nil

	case dst.kind == operandRegister && src.kind == operandMemory:
		op := byte(0x8A)
		if dst.regWidth == width16 {
			op = 0x8B
		}
		return append([]byte{op}, encodeModRM(regCodeOf(dst), src)...), nil

	case dst.kind == operandMemory && src.kind == operandRegister:
		op := byte(0x88)
		if src.regWidth == width16 {
			op = 0x89
		}
		return append([]byte{op}, encodeModRM(regCodeOf(src), dst)...), nil

	case dst.kind == operandRegister && src.kind == operandImmediate:
		if dst.regWidth == width8 {
			return []byte{0xB0 + reg8Code(dst.reg, dst.regHigh), byte(src.imm)}, nil
		}
		v := uint16(src.imm)
		return []byte{0xB8 + reg16Code(dst.reg), byte(v), byte(v >> 8)}, nil

	case dst.kind == operandMemory && src.kind == operandImmediate:
		// DB-declared variables are byte-oriented; default memory,imm MOV
		// to the byte form absent an explicit register elsewhere to infer
		// width from.
		b := append([]byte{0xC6}, encodeModRM(0, dst)...)
		return append(b, byte(src.imm)), nil
	}

	return nil, newSemanticError(line, raw, "unsupported MOV operand combination")
}

func (a *Assembler) encodeLEA(line int, raw string, ops []asmOperand, opcode byte) ([]byte, error) {
	if err := requireOperands(line, raw, "LEA/LDS/LES", ops, 2); err != nil {
		return nil, err
	}
	dst, src := ops[0], ops[1]
	if dst.kind != operandRegister || dst.regWidth != width16 {
		return nil, newSemanticError(line, raw, "destination must be a 16-bit register")
	}
	if src.kind != operandMemory {
		return nil, newSemanticError(line, raw, "source must be a memory operand")
	}
	return append([]byte{opcode}, encodeModRM(regCodeOf(dst), src)...), nil
}

func regCodeOf(op asmOperand) byte {
	if op.regWidth == width8 {
		return reg8Code(op.reg, op.regHigh)
	}
	return reg16Code(op.reg)
}

// encodeBinOp covers ADD/SUB/CMP/AND/OR/XOR per spec.md §4.4's supported
// forms: register/memory both directions, and the AL/AX-immediate
// shorthand. A non-accumulator register paired with an immediate has no
// encoding in this instruction set (the runtime engine has no 0x80/0x81/
// 0x83 immediate group either), so that combination is a semantic error.
func (a *Assembler) encodeBinOp(line int, raw string, ops []asmOperand, base byte) ([]byte, error) {
	if err := requireOperands(line, raw, "arithmetic/logical op", ops, 2); err != nil {
		return nil, err
	}
	dst, src := ops[0], ops[1]

	switch {
	case dst.kind == operandRegister && src.kind == operandRegister:
		if dst.regWidth != src.regWidth {
			return nil, newSemanticError(line, raw, "operand width mismatch")
		}
		op := base + 0x00
		if dst.regWidth == width16 {
			op = base + 0x01
		}
		return append([]byte{op}, encodeModRM(regCodeOf(src), dst)...), nil

	case dst.kind == operandRegister && src.kind == operandMemory:
		op := base + 0x02
		if dst.regWidth == width16 {
			op = base + 0x03
		}
		return append([]byte{op}, encodeModRM(regCodeOf(dst), src)...), nil

	case dst.kind == operandMemory && src.kind == operandRegister:
		op := base + 0x00
		if src.regWidth == width16 {
			op = base + 0x01
		}
		return append([]byte{op}, encodeModRM(regCodeOf(src), dst)...), nil

	case dst.kind == operandRegister && src.kind == operandImmediate:
		if dst.regWidth == width8 && dst.reg == AX && !dst.regHigh {
			return []byte{base + 0x04, byte(src.imm)}, nil
		}
		if dst.regWidth == width16 && dst.reg == AX {
			v := uint16(src.imm)
			return []byte{base + 0x05, byte(v), byte(v >> 8)}, nil
		}
		return nil, newSemanticError(line, raw, "only AL/AX support an immediate source for this operation")
	}

	return nil, newSemanticError(line, raw, "unsupported operand combination")
}

func (a *Assembler) encodeTEST(line int, raw string, ops []asmOperand) ([]byte, error) {
	if err := requireOperands(line, raw, "TEST", ops, 2); err != nil {
		return nil, err
	}
	dst, src := ops[0], ops[1]

	if dst.kind == operandRegister && src.kind == operandImmediate && dst.reg == AX && !dst.regHigh {
		if dst.regWidth == width8 {
			return []byte{0xA8, byte(src.imm)}, nil
		}
		v := uint16(src.imm)
		return []byte{0xA9, byte(v), byte(v >> 8)}, nil
	}

	var regOp, rmOp asmOperand
	switch {
	case dst.kind == operandRegister:
		regOp, rmOp = dst, src
	case src.kind == operandRegister:
		regOp, rmOp = src, dst
	default:
		return nil, newSemanticError(line, raw, "TEST requires at least one register operand")
	}
	op := byte(0x84)
	if regOp.regWidth == width16 {
		op = 0x85
	}
	return append([]byte{op}, encodeModRM(regCodeOf(regOp), rmOp)...), nil
}

// encodeGroupF6F7 covers MUL/DIV via the 0xF6 (byte) / 0xF7 (word) group,
// reg field sub selecting the operation.
func (a *Assembler) encodeGroupF6F7(line int, raw string, ops []asmOperand, sub byte) ([]byte, error) {
	if err := requireOperands(line, raw, "MUL/DIV", ops, 1); err != nil {
		return nil, err
	}
	op := ops[0]
	opcode := byte(0xF6)
	if operandWidth(op) == width16 {
		opcode = 0xF7
	}
	return append([]byte{opcode}, encodeModRM(sub, op)...), nil
}

func (a *Assembler) encodeIncDec(line int, raw string, ops []asmOperand, plusRegBase byte, groupFFsub byte) ([]byte, error) {
	if err := requireOperands(line, raw, "INC/DEC", ops, 1); err != nil {
		return nil, err
	}
	op := ops[0]
	if op.kind == operandRegister && op.regWidth == width16 {
		return []byte{plusRegBase + reg16Code(op.reg)}, nil
	}
	return append([]byte{0xFF}, encodeModRM(groupFFsub, op)...), nil
}

func (a *Assembler) encodePUSH(line int, raw string, ops []asmOperand) ([]byte, error) {
	if err := requireOperands(line, raw, "PUSH", ops, 1); err != nil {
		return nil, err
	}
	op := ops[0]
	if op.kind == operandRegister && isSegReg(op.reg) {
		return nil, newSemanticError(line, raw, "PUSH does not support segment register operands")
	}
	if op.kind == operandRegister && op.regWidth == width16 {
		return []byte{0x50 + reg16Code(op.reg)}, nil
	}
	return append([]byte{0xFF}, encodeModRM(6, op)...), nil
}

func (a *Assembler) encodePOP(line int, raw string, ops []asmOperand) ([]byte, error) {
	if err := requireOperands(line, raw, "POP", ops, 1); err != nil {
		return nil, err
	}
	op := ops[0]
	if op.kind == operandRegister && isSegReg(op.reg) {
		return nil, newSemanticError(line, raw, "POP does not support segment register operands")
	}
	if op.kind != operandRegister || op.regWidth != width16 {
		return nil, newSemanticError(line, raw, "POP requires a 16-bit register operand")
	}
	return []byte{0x58 + reg16Code(op.reg)}, nil
}

// encodeJMP and encodeCALL emit the rel16 near form (0xE9/0xE8);
// spec.md §9's minimal contract requires only rel8 support for Jcc/LOOP,
// so JMP/CALL always use their fixed-length rel16 encoding regardless of
// how close the target is - this keeps their size independent of the
// target's resolved address, preserving the sizing pass's invariant.
func (a *Assembler) encodeJMP(line int, raw string, ops []asmOperand, addr int) ([]byte, error) {
	if err := requireOperands(line, raw, "JMP", ops, 1); err != nil {
		return nil, err
	}
	target, err := a.branchTarget(line, raw, ops[0])
	if err != nil {
		return nil, err
	}
	disp := uint16(target - (addr + 3))
	return []byte{0xE9, byte(disp), byte(disp >> 8)}, nil
}

func (a *Assembler) encodeCALL(line int, raw string, ops []asmOperand, addr int) ([]byte, error) {
	if err := requireOperands(line, raw, "CALL", ops, 1); err != nil {
		return nil, err
	}
	target, err := a.branchTarget(line, raw, ops[0])
	if err != nil {
		return nil, err
	}
	disp := uint16(target - (addr + 3))
	return []byte{0xE8, byte(disp), byte(disp >> 8)}, nil
}

func (a *Assembler) encodeRET(line int, raw, mnemonic string, ops []asmOperand) ([]byte, error) {
	far := mnemonic == "RETF"
	if len(ops) == 0 {
		if far {
			return []byte{0xCB}, nil
		}
		return []byte{0xC3}, nil
	}
	if len(ops) == 1 && ops[0].kind == operandImmediate {
		v := uint16(ops[0].imm)
		if far {
			return []byte{0xCA, byte(v), byte(v >> 8)}, nil
		}
		return []byte{0xC2, byte(v), byte(v >> 8)}, nil
	}
	return nil, newParseError(line, raw, "RET takes zero or one immediate operand")
}

// encodeShortBranch covers Jcc/LOOP-family/JCXZ, all rel8 forms.
func (a *Assembler) encodeShortBranch(line int, raw string, ops []asmOperand, addr int, opcode byte) ([]byte, error) {
	if err := requireOperands(line, raw, "branch", ops, 1); err != nil {
		return nil, err
	}
	target, err := a.branchTarget(line, raw, ops[0])
	if err != nil {
		return nil, err
	}
	disp := target - (addr + 2)
	if disp < -128 || disp > 127 {
		if !a.sizing {
			return nil, newOverflowError(line, raw, "branch target out of rel8 range (%d)", disp)
		}
		disp = 0
	}
	return []byte{opcode, byte(int8(disp))}, nil
}

// branchTarget resolves a bare label-name operand to an address. Control
// targets are always symbols, never registers or literals, so this
// bypasses parseOperand's general memory/immediate handling.
func (a *Assembler) branchTarget(line int, raw string, op asmOperand) (int, error) {
	if op.kind == operandMemory && op.direct {
		return int(op.disp), nil
	}
	if op.kind == operandImmediate {
		return int(op.imm), nil
	}
	return 0, newSemanticError(line, raw, "branch target must be a label")
}

func (a *Assembler) encodeINT(line int, raw string, ops []asmOperand) ([]byte, error) {
	if err := requireOperands(line, raw, "INT", ops, 1); err != nil {
		return nil, err
	}
	if ops[0].kind != operandImmediate {
		return nil, newSemanticError(line, raw, "INT requires an immediate vector")
	}
	return []byte{0xCD, byte(ops[0].imm)}, nil
}

// repPrefixOpcodes maps REP/REPE/REPZ (ZF=1 continuation) and REPNE/REPNZ
// (ZF=0 continuation) to their prefix byte.
var repPrefixOpcodes = map[string]byte{
	"REP": 0xF3, "REPE": 0xF3, "REPZ": 0xF3,
	"REPNE": 0xF2, "REPNZ": 0xF2,
}
