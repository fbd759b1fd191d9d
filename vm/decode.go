package vm

// opFunc is one decoded instruction handler. modrm is only meaningful
// when the dispatch-table entry that selected it has needsModRM set; it is
// the raw ModR/M byte already fetched by ExecuteInstruction.
type opFunc func(c *CPU, modrm byte) error

// opcodeEntry is one 256-entry dispatch-table slot. needsModRM is carried
// explicitly rather than sniffed from a mnemonic string (see SPEC_FULL.md
// §4): ExecuteInstruction fetches the ModR/M byte iff this is true.
type opcodeEntry struct {
	handler    opFunc
	needsModRM bool
}

// dispatchTable is indexed directly by the first opcode byte. It is
// populated once, at package-init time, by each ops_*.go file's own
// init(), mirroring the teacher pack's "registerXxx() called from init()"
// population idiom.
var dispatchTable [256]opcodeEntry

func registerOpcode(code byte, needsModRM bool, fn opFunc) {
	dispatchTable[code] = opcodeEntry{handler: fn, needsModRM: needsModRM}
}

// plusRegTable is reg16Table again, named for readability at "+reg" call
// sites (MOV r16,imm / PUSH / POP / INC / DEC each embed a 3-bit register
// number in the low bits of the opcode byte itself).
var plusRegTable = reg16Table

// registerPlusReg registers one table entry per opcode in [base, base+8),
// each a closure over the register that opcode's low 3 bits name. Mirrors
// the nested-loop table-population idiom the examples use to fan one
// handler shape out across many dispatch-table slots.
func registerPlusReg(base byte, needsModRM bool, make func(r Register) opFunc) {
	for i := 0; i < 8; i++ {
		registerOpcode(base+byte(i), needsModRM, make(plusRegTable[i]))
	}
}

// reg8PlusTable gives the 8-bit register selected by the low 3 bits of an
// opcode in the MOV r8,imm8 (+reg) family.
var reg8PlusTable = reg8Table

func registerPlusReg8(base byte, make func(reg Register, high bool) opFunc) {
	for i := 0; i < 8; i++ {
		e := reg8PlusTable[i]
		registerOpcode(base+byte(i), false, make(e.reg, e.high))
	}
}

// --- ModR/M decode -----------------------------------------------------

// reg8Table and reg16Table give the register (and, for 8-bit forms,
// high/low half) selected by a 3-bit reg or rm field, per spec.md §4.3
// "Register indexing from ModR/M".
var reg8Table = [8]struct {
	reg  Register
	high bool
}{
	{AX, false}, {CX, false}, {DX, false}, {BX, false},
	{AX, true}, {CX, true}, {DX, true}, {BX, true},
}

var reg16Table = [8]Register{AX, CX, DX, BX, SP, BP, SI, DI}

// segRegTable gives the segment register selected by the 2-bit reg field
// MOV Sreg,rm16/MOV rm16,Sreg (opcodes 0x8E/0x8C) encode in bits 4:3 of
// their ModR/M byte, per the 8086's ES=0,CS=1,SS=2,DS=3 ordering.
var segRegTable = [4]Register{ES, CS, SS, DS}

func modField(modrm byte) byte { return (modrm >> 6) & 0x3 }
func regField(modrm byte) byte { return (modrm >> 3) & 0x7 }
func rmField(modrm byte) byte  { return modrm & 0x7 }

// operand is the resolved target of a ModR/M rm (or, for mod=3, a plain
// register) field: either a register-direct reference or a physical
// memory address.
type operand struct {
	isMemory bool
	reg      Register
	high     bool   // only meaningful for 8-bit register-direct operands
	addr     int    // physical address, when isMemory
	offset   uint16 // 16-bit effective offset (pre-segment-translation), when isMemory
}

func (c *CPU) readOperand8(op operand) (byte, error) {
	if !op.isMemory {
		if op.high {
			return c.GetRegisterHighByte(op.reg)
		}
		return c.GetRegisterLowByte(op.reg)
	}
	return c.mem.ReadByte(op.addr)
}

func (c *CPU) writeOperand8(op operand, v byte) error {
	if !op.isMemory {
		if op.high {
			return c.SetRegisterHighByte(op.reg, v)
		}
		return c.SetRegisterLowByte(op.reg, v)
	}
	return c.mem.WriteByte(op.addr, v)
}

func (c *CPU) readOperand16(op operand) (uint16, error) {
	if !op.isMemory {
		return c.GetRegister(op.reg), nil
	}
	return c.mem.ReadWord(op.addr)
}

func (c *CPU) writeOperand16(op operand, v uint16) error {
	if !op.isMemory {
		c.SetRegister(op.reg, v)
		return nil
	}
	return c.mem.WriteWord(op.addr, v)
}

// resolveRM decodes the rm (and mod) fields of modrm into an operand. When
// mod=3 the operand is register-direct (8-bit width selects reg8Table,
// otherwise reg16Table). Otherwise rm selects one of the standard 8086
// effective-address forms; mod selects no/8-bit/16-bit displacement.
// BP-based forms default to segment SS, all others to DS; mod=0,rm=6 is
// the direct-address special case (a bare 16-bit offset, segment DS).
func (c *CPU) resolveRM(modrm byte, w width) (operand, error) {
	mod := modField(modrm)
	rm := rmField(modrm)

	if mod == 3 {
		if w == width8 {
			e := reg8Table[rm]
			return operand{reg: e.reg, high: e.high}, nil
		}
		return operand{reg: reg16Table[rm]}, nil
	}

	var base uint16
	segment := c.regs[DS]
	switch rm {
	case 0:
		base = c.regs[BX] + c.regs[SI]
	case 1:
		base = c.regs[BX] + c.regs[DI]
	case 2:
		base = c.regs[BP] + c.regs[SI]
		segment = c.regs[SS]
	case 3:
		base = c.regs[BP] + c.regs[DI]
		segment = c.regs[SS]
	case 4:
		base = c.regs[SI]
	case 5:
		base = c.regs[DI]
	case 6:
		if mod == 0 {
			disp, err := c.FetchWord()
			if err != nil {
				return operand{}, err
			}
			return operand{isMemory: true, offset: disp, addr: GetPhysicalAddress(c.regs[DS], disp)}, nil
		}
		base = c.regs[BP]
		segment = c.regs[SS]
	case 7:
		base = c.regs[BX]
	}

	switch mod {
	case 1:
		d, err := c.FetchByte()
		if err != nil {
			return operand{}, err
		}
		base += uint16(int16(int8(d)))
	case 2:
		d, err := c.FetchWord()
		if err != nil {
			return operand{}, err
		}
		base += d
	}

	return operand{isMemory: true, offset: base, addr: GetPhysicalAddress(segment, base)}, nil
}

// resolveReg decodes the reg field of modrm into a register-direct operand
// at the given width.
func resolveReg(modrm byte, w width) operand {
	if w == width8 {
		e := reg8Table[regField(modrm)]
		return operand{reg: e.reg, high: e.high}
	}
	return operand{reg: reg16Table[regField(modrm)]}
}

// resolveSegReg decodes the reg field of modrm as a segment register,
// for the MOV Sreg,rm16 / MOV rm16,Sreg opcodes.
func resolveSegReg(modrm byte) Register {
	return segRegTable[regField(modrm)&0x3]
}
