package vm

func init() {
	registerOpcode(0x88, true, movRM8R8)
	registerOpcode(0x89, true, movRM16R16)
	registerOpcode(0x8A, true, movR8RM8)
	registerOpcode(0x8B, true, movR16RM16)
	registerOpcode(0x8C, true, movRM16Sreg)
	registerOpcode(0x8D, true, opLEA)
	registerOpcode(0x8E, true, movSregRM16)
	registerOpcode(0xC4, true, opLES)
	registerOpcode(0xC5, true, opLDS)
	registerOpcode(0xC6, true, movRM8Imm8)
	registerOpcode(0xC7, true, movRM16Imm16)

	registerPlusReg8(0xB0, func(reg Register, high bool) opFunc {
		return func(c *CPU, _ byte) error {
			imm, err := c.FetchByte()
			if err != nil {
				return err
			}
			return c.writeOperand8(operand{reg: reg, high: high}, imm)
		}
	})
	registerPlusReg(0xB8, false, func(reg Register) opFunc {
		return func(c *CPU, _ byte) error {
			imm, err := c.FetchWord()
			if err != nil {
				return err
			}
			c.SetRegister(reg, imm)
			return nil
		}
	})
	registerPlusReg(0x50, false, func(reg Register) opFunc {
		return func(c *CPU, _ byte) error {
			// Read the register's current value before Push mutates SP,
			// so `PUSH SP` observably pushes the pre-decrement SP value.
			v := c.GetRegister(reg)
			return c.Push(v)
		}
	})
	registerPlusReg(0x58, false, func(reg Register) opFunc {
		return func(c *CPU, _ byte) error {
			v, err := c.Pop()
			if err != nil {
				return err
			}
			c.SetRegister(reg, v)
			return nil
		}
	})

	registerOpcode(0x9C, false, opPUSHF)
	registerOpcode(0x9D, false, opPOPF)
	registerOpcode(0x9E, false, opSAHF)
	registerOpcode(0x9F, false, opLAHF)
	registerOpcode(0xD7, false, opXLAT)

	registerOpcode(0xE4, false, inALImm8)
	registerOpcode(0xE5, false, inAXImm8)
	registerOpcode(0xE6, false, outImm8AL)
	registerOpcode(0xE7, false, outImm8AX)
	registerOpcode(0xEC, false, inALDX)
	registerOpcode(0xED, false, inAXDX)
	registerOpcode(0xEE, false, outDXAL)
	registerOpcode(0xEF, false, outDXAX)
}

func movRM8R8(c *CPU, modrm byte) error {
	rm, err := c.resolveRM(modrm, width8)
	if err != nil {
		return err
	}
	src := resolveReg(modrm, width8)
	v, err := c.readOperand8(src)
	if err != nil {
		return err
	}
	return c.writeOperand8(rm, v)
}

func movRM16R16(c *CPU, modrm byte) error {
	rm, err := c.resolveRM(modrm, width16)
	if err != nil {
		return err
	}
	src := resolveReg(modrm, width16)
	v, err := c.readOperand16(src)
	if err != nil {
		return err
	}
	return c.writeOperand16(rm, v)
}

func movR8RM8(c *CPU, modrm byte) error {
	rm, err := c.resolveRM(modrm, width8)
	if err != nil {
		return err
	}
	v, err := c.readOperand8(rm)
	if err != nil {
		return err
	}
	dst := resolveReg(modrm, width8)
	return c.writeOperand8(dst, v)
}

func movR16RM16(c *CPU, modrm byte) error {
	rm, err := c.resolveRM(modrm, width16)
	if err != nil {
		return err
	}
	v, err := c.readOperand16(rm)
	if err != nil {
		return err
	}
	dst := resolveReg(modrm, width16)
	return c.writeOperand16(dst, v)
}

func movRM8Imm8(c *CPU, modrm byte) error {
	rm, err := c.resolveRM(modrm, width8)
	if err != nil {
		return err
	}
	imm, err := c.FetchByte()
	if err != nil {
		return err
	}
	return c.writeOperand8(rm, imm)
}

func movRM16Imm16(c *CPU, modrm byte) error {
	rm, err := c.resolveRM(modrm, width16)
	if err != nil {
		return err
	}
	imm, err := c.FetchWord()
	if err != nil {
		return err
	}
	return c.writeOperand16(rm, imm)
}

// movRM16Sreg is MOV rm16,Sreg (0x8C): the reg field names a segment
// register, written into the rm destination.
func movRM16Sreg(c *CPU, modrm byte) error {
	rm, err := c.resolveRM(modrm, width16)
	if err != nil {
		return err
	}
	return c.writeOperand16(rm, c.GetRegister(resolveSegReg(modrm)))
}

// movSregRM16 is MOV Sreg,rm16 (0x8E): the reg field names the segment
// register destination, read from the rm source.
func movSregRM16(c *CPU, modrm byte) error {
	rm, err := c.resolveRM(modrm, width16)
	if err != nil {
		return err
	}
	v, err := c.readOperand16(rm)
	if err != nil {
		return err
	}
	c.SetRegister(resolveSegReg(modrm), v)
	return nil
}

func opLEA(c *CPU, modrm byte) error {
	rm, err := c.resolveRM(modrm, width16)
	if err != nil {
		return err
	}
	if !rm.isMemory {
		return ErrUnsupportedModRM
	}
	dst := resolveReg(modrm, width16)
	c.SetRegister(dst.reg, rm.offset)
	return nil
}

func opLES(c *CPU, modrm byte) error { return loadFarPointer(c, modrm, ES) }
func opLDS(c *CPU, modrm byte) error { return loadFarPointer(c, modrm, DS) }

func loadFarPointer(c *CPU, modrm byte, seg Register) error {
	rm, err := c.resolveRM(modrm, width16)
	if err != nil {
		return err
	}
	if !rm.isMemory {
		return ErrUnsupportedModRM
	}
	dst := resolveReg(modrm, width16)
	offVal, err := c.mem.ReadWord(rm.addr)
	if err != nil {
		return err
	}
	segVal, err := c.mem.ReadWord(rm.addr + 2)
	if err != nil {
		return err
	}
	c.SetRegister(dst.reg, offVal)
	c.SetRegister(seg, segVal)
	return nil
}

func opPUSHF(c *CPU, _ byte) error { return c.Push(c.regs[FLAGS]) }

func opPOPF(c *CPU, _ byte) error {
	v, err := c.Pop()
	if err != nil {
		return err
	}
	c.regs[FLAGS] = v
	return nil
}

func opSAHF(c *CPU, _ byte) error {
	ah, err := c.GetRegisterHighByte(AX)
	if err != nil {
		return err
	}
	c.regs[FLAGS] = (c.regs[FLAGS] & 0xFF00) | uint16(ah)
	return nil
}

func opLAHF(c *CPU, _ byte) error {
	return c.SetRegisterHighByte(AX, byte(c.regs[FLAGS]))
}

func opXLAT(c *CPU, _ byte) error {
	al, err := c.GetRegisterLowByte(AX)
	if err != nil {
		return err
	}
	addr := GetPhysicalAddress(c.regs[DS], c.regs[BX]+uint16(al))
	v, err := c.mem.ReadByte(addr)
	if err != nil {
		return err
	}
	return c.SetRegisterLowByte(AX, v)
}

// No port/device model is simulated (bus interface emulation is an
// explicit non-goal); IN always yields zero and OUT discards its operand.
func inALImm8(c *CPU, _ byte) error {
	if _, err := c.FetchByte(); err != nil {
		return err
	}
	return c.SetRegisterLowByte(AX, 0)
}

func inAXImm8(c *CPU, _ byte) error {
	if _, err := c.FetchByte(); err != nil {
		return err
	}
	c.SetRegister(AX, 0)
	return nil
}

func outImm8AL(c *CPU, _ byte) error {
	_, err := c.FetchByte()
	return err
}

func outImm8AX(c *CPU, _ byte) error {
	_, err := c.FetchByte()
	return err
}

func inALDX(c *CPU, _ byte) error  { return c.SetRegisterLowByte(AX, 0) }
func inAXDX(c *CPU, _ byte) error  { c.SetRegister(AX, 0); return nil }
func outDXAL(c *CPU, _ byte) error { return nil }
func outDXAX(c *CPU, _ byte) error { return nil }
