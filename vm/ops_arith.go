package vm

// registerBinOpFamily registers the standard six-opcode layout shared by
// ADD/ADC/SUB/SBB/CMP (and, in ops_logic.go, AND/OR/XOR): rm8,r8 ;
// rm16,r16 ; r8,rm8 ; r16,rm16 ; AL,imm8 ; AX,imm16, at a given base
// opcode (ADD=0x00, ADC=0x10, SUB=0x28, SBB=0x18, CMP=0x38).
func registerBinOpFamily(base byte, apply8 func(c *CPU, x, y byte) byte, apply16 func(c *CPU, x, y uint16) uint16) {
	registerOpcode(base+0x00, true, func(c *CPU, modrm byte) error {
		return binRM8R8(c, modrm, apply8)
	})
	registerOpcode(base+0x01, true, func(c *CPU, modrm byte) error {
		return binRM16R16(c, modrm, apply16)
	})
	registerOpcode(base+0x02, true, func(c *CPU, modrm byte) error {
		return binR8RM8(c, modrm, apply8)
	})
	registerOpcode(base+0x03, true, func(c *CPU, modrm byte) error {
		return binR16RM16(c, modrm, apply16)
	})
	registerOpcode(base+0x04, false, func(c *CPU, _ byte) error {
		return binALImm8(c, apply8)
	})
	registerOpcode(base+0x05, false, func(c *CPU, _ byte) error {
		return binAXImm16(c, apply16)
	})
}

func init() {
	registerBinOpFamily(0x00, addApply8, addApply16)
	registerBinOpFamily(0x10, adcApply8, adcApply16)
	registerBinOpFamily(0x28, subApply8, subApply16)
	registerBinOpFamily(0x18, sbbApply8, sbbApply16)
	registerBinOpFamily(0x38, cmpApply8, cmpApply16)

	registerPlusReg(0x40, false, func(r Register) opFunc {
		return func(c *CPU, _ byte) error {
			v := c.GetRegister(r)
			c.setFlagsInc(uint32(v), width16)
			c.SetRegister(r, uint16(v+1))
			return nil
		}
	})
	registerPlusReg(0x48, false, func(r Register) opFunc {
		return func(c *CPU, _ byte) error {
			v := c.GetRegister(r)
			c.setFlagsDec(uint32(v), width16)
			c.SetRegister(r, uint16(v-1))
			return nil
		}
	})

	registerOpcode(0xF6, true, group8x0F6)
	registerOpcode(0xF7, true, group16x0F7)
	registerOpcode(0xFF, true, groupFF)

	registerOpcode(0x98, false, opCBW)
	registerOpcode(0x99, false, opCWD)
	registerOpcode(0x27, false, opDAA)
	registerOpcode(0x2F, false, opDAS)
	registerOpcode(0x37, false, opAAA)
	registerOpcode(0x3F, false, opAAS)
	registerOpcode(0xD4, false, opAAM)
	registerOpcode(0xD5, false, opAAD)
}

// addApply8/16, etc. apply the operation and update flags via the shared
// setFlagsAdd/setFlagsSub helpers, returning the masked result.
func addApply8(c *CPU, x, y byte) byte {
	full := uint32(x) + uint32(y)
	c.setFlagsAdd(uint32(x), uint32(y), full, width8)
	return byte(full)
}
func addApply16(c *CPU, x, y uint16) uint16 {
	full := uint32(x) + uint32(y)
	c.setFlagsAdd(uint32(x), uint32(y), full, width16)
	return uint16(full)
}
func adcApply8(c *CPU, x, y byte) byte {
	carry := uint32(c.GetFlag(FlagCF))
	full := uint32(x) + uint32(y) + carry
	c.setFlagsAdd(uint32(x), uint32(y)+carry, full, width8)
	return byte(full)
}
func adcApply16(c *CPU, x, y uint16) uint16 {
	carry := uint32(c.GetFlag(FlagCF))
	full := uint32(x) + uint32(y) + carry
	c.setFlagsAdd(uint32(x), uint32(y)+carry, full, width16)
	return uint16(full)
}
func subApply8(c *CPU, x, y byte) byte {
	return byte(c.setFlagsSub(uint32(x), uint32(y), width8))
}
func subApply16(c *CPU, x, y uint16) uint16 {
	return uint16(c.setFlagsSub(uint32(x), uint32(y), width16))
}
func sbbApply8(c *CPU, x, y byte) byte {
	borrow := uint32(c.GetFlag(FlagCF))
	return byte(c.setFlagsSub(uint32(x), uint32(y)+borrow, width8))
}
func sbbApply16(c *CPU, x, y uint16) uint16 {
	borrow := uint32(c.GetFlag(FlagCF))
	return uint16(c.setFlagsSub(uint32(x), uint32(y)+borrow, width16))
}
func cmpApply8(c *CPU, x, y byte) byte {
	c.setFlagsSub(uint32(x), uint32(y), width8)
	return x // CMP never writes back
}
func cmpApply16(c *CPU, x, y uint16) uint16 {
	c.setFlagsSub(uint32(x), uint32(y), width16)
	return x
}

func binRM8R8(c *CPU, modrm byte, apply func(*CPU, byte, byte) byte) error {
	rm, err := c.resolveRM(modrm, width8)
	if err != nil {
		return err
	}
	reg := resolveReg(modrm, width8)
	x, err := c.readOperand8(rm)
	if err != nil {
		return err
	}
	y, err := c.readOperand8(reg)
	if err != nil {
		return err
	}
	return c.writeOperand8(rm, apply(c, x, y))
}

func binRM16R16(c *CPU, modrm byte, apply func(*CPU, uint16, uint16) uint16) error {
	rm, err := c.resolveRM(modrm, width16)
	if err != nil {
		return err
	}
	reg := resolveReg(modrm, width16)
	x, err := c.readOperand16(rm)
	if err != nil {
		return err
	}
	y, err := c.readOperand16(reg)
	if err != nil {
		return err
	}
	return c.writeOperand16(rm, apply(c, x, y))
}

func binR8RM8(c *CPU, modrm byte, apply func(*CPU, byte, byte) byte) error {
	rm, err := c.resolveRM(modrm, width8)
	if err != nil {
		return err
	}
	reg := resolveReg(modrm, width8)
	x, err := c.readOperand8(reg)
	if err != nil {
		return err
	}
	y, err := c.readOperand8(rm)
	if err != nil {
		return err
	}
	return c.writeOperand8(reg, apply(c, x, y))
}

func binR16RM16(c *CPU, modrm byte, apply func(*CPU, uint16, uint16) uint16) error {
	rm, err := c.resolveRM(modrm, width16)
	if err != nil {
		return err
	}
	reg := resolveReg(modrm, width16)
	x, err := c.readOperand16(reg)
	if err != nil {
		return err
	}
	y, err := c.readOperand16(rm)
	if err != nil {
		return err
	}
	return c.writeOperand16(reg, apply(c, x, y))
}

func binALImm8(c *CPU, apply func(*CPU, byte, byte) byte) error {
	imm, err := c.FetchByte()
	if err != nil {
		return err
	}
	al, err := c.GetRegisterLowByte(AX)
	if err != nil {
		return err
	}
	return c.SetRegisterLowByte(AX, apply(c, al, imm))
}

func binAXImm16(c *CPU, apply func(*CPU, uint16, uint16) uint16) error {
	imm, err := c.FetchWord()
	if err != nil {
		return err
	}
	c.SetRegister(AX, apply(c, c.GetRegister(AX), imm))
	return nil
}

// group8x0F6 is the 0xF6 byte-operand group: reg field selects
// TEST/NOT/NEG/MUL/IMUL/DIV/IDIV on an 8-bit r/m operand.
func group8x0F6(c *CPU, modrm byte) error {
	rm, err := c.resolveRM(modrm, width8)
	if err != nil {
		return err
	}
	v, err := c.readOperand8(rm)
	if err != nil {
		return err
	}
	switch regField(modrm) {
	case 0, 1: // TEST r/m8, imm8
		imm, err := c.FetchByte()
		if err != nil {
			return err
		}
		c.setFlagsLogical(uint32(v&imm), width8)
		return nil
	case 2: // NOT
		return c.writeOperand8(rm, ^v)
	case 3: // NEG
		r := c.setFlagsSub(0, uint32(v), width8)
		c.SetFlag(FlagCF, v != 0)
		return c.writeOperand8(rm, byte(r))
	case 4: // MUL AL, r/m8 -> AX
		al, _ := c.GetRegisterLowByte(AX)
		result := uint16(al) * uint16(v)
		c.SetRegister(AX, result)
		overflow := result > 0xFF
		c.SetFlag(FlagCF, overflow)
		c.SetFlag(FlagOF, overflow)
		return nil
	case 5: // IMUL AL, r/m8 -> AX
		al, _ := c.GetRegisterLowByte(AX)
		result := int16(int8(al)) * int16(int8(v))
		c.SetRegister(AX, uint16(result))
		fits := result == int16(int8(byte(result)))
		c.SetFlag(FlagCF, !fits)
		c.SetFlag(FlagOF, !fits)
		return nil
	case 6: // DIV AX by r/m8 -> AL=quot, AH=rem
		if v == 0 {
			return ErrDivideError
		}
		ax := c.GetRegister(AX)
		q, r := ax/uint16(v), ax%uint16(v)
		if q > 0xFF {
			return ErrDivideError
		}
		c.SetRegister(AX, uint16(byte(r))<<8|uint16(byte(q)))
		return nil
	case 7: // IDIV AX by r/m8
		if v == 0 {
			return ErrDivideError
		}
		ax := int16(c.GetRegister(AX))
		d := int16(int8(v))
		q, r := ax/d, ax%d
		if q > 127 || q < -128 {
			return ErrDivideError
		}
		c.SetRegister(AX, uint16(uint8(r))<<8|uint16(uint8(q)))
		return nil
	}
	return ErrUnsupportedModRM
}

// group16x0F7 is the 0xF7 word-operand group, the 16-bit analogue of
// group8x0F6.
func group16x0F7(c *CPU, modrm byte) error {
	rm, err := c.resolveRM(modrm, width16)
	if err != nil {
		return err
	}
	v, err := c.readOperand16(rm)
	if err != nil {
		return err
	}
	switch regField(modrm) {
	case 0, 1: // TEST r/m16, imm16
		imm, err := c.FetchWord()
		if err != nil {
			return err
		}
		c.setFlagsLogical(uint32(v&imm), width16)
		return nil
	case 2: // NOT
		return c.writeOperand16(rm, ^v)
	case 3: // NEG
		r := c.setFlagsSub(0, uint32(v), width16)
		c.SetFlag(FlagCF, v != 0)
		return c.writeOperand16(rm, uint16(r))
	case 4: // MUL AX, r/m16 -> DX:AX
		ax := c.GetRegister(AX)
		result := uint32(ax) * uint32(v)
		c.SetRegister(AX, uint16(result))
		c.SetRegister(DX, uint16(result>>16))
		overflow := result > 0xFFFF
		c.SetFlag(FlagCF, overflow)
		c.SetFlag(FlagOF, overflow)
		return nil
	case 5: // IMUL AX, r/m16 -> DX:AX
		ax := int32(int16(c.GetRegister(AX)))
		result := ax * int32(int16(v))
		c.SetRegister(AX, uint16(result))
		c.SetRegister(DX, uint16(result>>16))
		fits := result == int32(int16(uint16(result)))
		c.SetFlag(FlagCF, !fits)
		c.SetFlag(FlagOF, !fits)
		return nil
	case 6: // DIV DX:AX by r/m16
		if v == 0 {
			return ErrDivideError
		}
		dividend := uint32(c.GetRegister(DX))<<16 | uint32(c.GetRegister(AX))
		q, r := dividend/uint32(v), dividend%uint32(v)
		if q > 0xFFFF {
			return ErrDivideError
		}
		c.SetRegister(AX, uint16(q))
		c.SetRegister(DX, uint16(r))
		return nil
	case 7: // IDIV DX:AX by r/m16
		if v == 0 {
			return ErrDivideError
		}
		dividend := int32(uint32(c.GetRegister(DX))<<16 | uint32(c.GetRegister(AX)))
		d := int32(int16(v))
		q, r := dividend/d, dividend%d
		if q > 32767 || q < -32768 {
			return ErrDivideError
		}
		c.SetRegister(AX, uint16(int16(q)))
		c.SetRegister(DX, uint16(int16(r)))
		return nil
	}
	return ErrUnsupportedModRM
}

// groupFF covers INC/DEC r/m16 (reg 0/1) and PUSH r/m16 (reg 6); the
// indirect CALL/JMP forms (reg 2-5, 7) are not part of this simulator's
// supported control-flow subset.
func groupFF(c *CPU, modrm byte) error {
	rm, err := c.resolveRM(modrm, width16)
	if err != nil {
		return err
	}
	switch regField(modrm) {
	case 0:
		v, err := c.readOperand16(rm)
		if err != nil {
			return err
		}
		c.setFlagsInc(uint32(v), width16)
		return c.writeOperand16(rm, v+1)
	case 1:
		v, err := c.readOperand16(rm)
		if err != nil {
			return err
		}
		c.setFlagsDec(uint32(v), width16)
		return c.writeOperand16(rm, v-1)
	case 6:
		v, err := c.readOperand16(rm)
		if err != nil {
			return err
		}
		return c.Push(v)
	}
	return ErrUnsupportedModRM
}

func opCBW(c *CPU, _ byte) error {
	al, err := c.GetRegisterLowByte(AX)
	if err != nil {
		return err
	}
	c.SetRegister(AX, uint16(int16(int8(al))))
	return nil
}

func opCWD(c *CPU, _ byte) error {
	ax := int16(c.GetRegister(AX))
	if ax < 0 {
		c.SetRegister(DX, 0xFFFF)
	} else {
		c.SetRegister(DX, 0)
	}
	return nil
}

func opDAA(c *CPU, _ byte) error {
	al, _ := c.GetRegisterLowByte(AX)
	cf := c.GetFlag(FlagCF) == 1
	af := c.GetFlag(FlagAF) == 1
	old := al
	if al&0x0F > 9 || af {
		al += 6
		cf = cf || al < old
		af = true
	}
	if old > 0x99 || cf {
		al += 0x60
		cf = true
	}
	c.SetFlag(FlagCF, cf)
	c.SetFlag(FlagAF, af)
	c.SetFlag(FlagZF, al == 0)
	c.SetFlag(FlagSF, al&0x80 != 0)
	c.SetFlag(FlagPF, parity(uint32(al)))
	return c.SetRegisterLowByte(AX, al)
}

func opDAS(c *CPU, _ byte) error {
	al, _ := c.GetRegisterLowByte(AX)
	cf := c.GetFlag(FlagCF) == 1
	af := c.GetFlag(FlagAF) == 1
	old := al
	if al&0x0F > 9 || af {
		cf = cf || al < 6
		al -= 6
		af = true
	}
	if old > 0x99 || cf {
		al -= 0x60
		cf = true
	}
	c.SetFlag(FlagCF, cf)
	c.SetFlag(FlagAF, af)
	c.SetFlag(FlagZF, al == 0)
	c.SetFlag(FlagSF, al&0x80 != 0)
	c.SetFlag(FlagPF, parity(uint32(al)))
	return c.SetRegisterLowByte(AX, al)
}

func opAAA(c *CPU, _ byte) error {
	al, _ := c.GetRegisterLowByte(AX)
	ah, _ := c.GetRegisterHighByte(AX)
	if al&0x0F > 9 || c.GetFlag(FlagAF) == 1 {
		al += 6
		ah += 1
		c.SetFlag(FlagAF, true)
		c.SetFlag(FlagCF, true)
	} else {
		c.SetFlag(FlagAF, false)
		c.SetFlag(FlagCF, false)
	}
	al &= 0x0F
	c.SetRegisterLowByte(AX, al)
	return c.SetRegisterHighByte(AX, ah)
}

func opAAS(c *CPU, _ byte) error {
	al, _ := c.GetRegisterLowByte(AX)
	ah, _ := c.GetRegisterHighByte(AX)
	if al&0x0F > 9 || c.GetFlag(FlagAF) == 1 {
		al -= 6
		ah -= 1
		c.SetFlag(FlagAF, true)
		c.SetFlag(FlagCF, true)
	} else {
		c.SetFlag(FlagAF, false)
		c.SetFlag(FlagCF, false)
	}
	al &= 0x0F
	c.SetRegisterLowByte(AX, al)
	return c.SetRegisterHighByte(AX, ah)
}

func opAAM(c *CPU, _ byte) error {
	base, err := c.FetchByte()
	if err != nil {
		return err
	}
	if base == 0 {
		return ErrDivideError
	}
	al, _ := c.GetRegisterLowByte(AX)
	ah := al / base
	al = al % base
	c.SetFlag(FlagZF, al == 0)
	c.SetFlag(FlagSF, al&0x80 != 0)
	c.SetFlag(FlagPF, parity(uint32(al)))
	c.SetRegisterLowByte(AX, al)
	return c.SetRegisterHighByte(AX, ah)
}

func opAAD(c *CPU, _ byte) error {
	base, err := c.FetchByte()
	if err != nil {
		return err
	}
	al, _ := c.GetRegisterLowByte(AX)
	ah, _ := c.GetRegisterHighByte(AX)
	result := al + ah*base
	c.SetFlag(FlagZF, result == 0)
	c.SetFlag(FlagSF, result&0x80 != 0)
	c.SetFlag(FlagPF, parity(uint32(result)))
	c.SetRegisterHighByte(AX, 0)
	return c.SetRegisterLowByte(AX, result)
}
