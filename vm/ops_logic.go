package vm

func andApply8(c *CPU, x, y byte) byte {
	r := x & y
	c.setFlagsLogical(uint32(r), width8)
	return r
}
func andApply16(c *CPU, x, y uint16) uint16 {
	r := x & y
	c.setFlagsLogical(uint32(r), width16)
	return r
}
func orApply8(c *CPU, x, y byte) byte {
	r := x | y
	c.setFlagsLogical(uint32(r), width8)
	return r
}
func orApply16(c *CPU, x, y uint16) uint16 {
	r := x | y
	c.setFlagsLogical(uint32(r), width16)
	return r
}
func xorApply8(c *CPU, x, y byte) byte {
	r := x ^ y
	c.setFlagsLogical(uint32(r), width8)
	return r
}
func xorApply16(c *CPU, x, y uint16) uint16 {
	r := x ^ y
	c.setFlagsLogical(uint32(r), width16)
	return r
}

func init() {
	registerBinOpFamily(0x20, andApply8, andApply16)
	registerBinOpFamily(0x08, orApply8, orApply16)
	registerBinOpFamily(0x30, xorApply8, xorApply16)

	registerOpcode(0x84, true, func(c *CPU, modrm byte) error {
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
		c.setFlagsLogical(uint32(x&y), width8)
		return nil
	})
	registerOpcode(0x85, true, func(c *CPU, modrm byte) error {
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
		c.setFlagsLogical(uint32(x&y), width16)
		return nil
	})
	registerOpcode(0xA8, false, func(c *CPU, _ byte) error {
		imm, err := c.FetchByte()
		if err != nil {
			return err
		}
		al, err := c.GetRegisterLowByte(AX)
		if err != nil {
			return err
		}
		c.setFlagsLogical(uint32(al&imm), width8)
		return nil
	})
	registerOpcode(0xA9, false, func(c *CPU, _ byte) error {
		imm, err := c.FetchWord()
		if err != nil {
			return err
		}
		c.setFlagsLogical(uint32(c.GetRegister(AX)&imm), width16)
		return nil
	})

	registerOpcode(0xD0, true, shiftGroup(width8, false))
	registerOpcode(0xD1, true, shiftGroup(width16, false))
	registerOpcode(0xD2, true, shiftGroup(width8, true))
	registerOpcode(0xD3, true, shiftGroup(width16, true))
}

// shiftGroup implements the 0xD0-0xD3 group: reg field selects
// ROL/ROR/RCL/RCR/SHL/SHR/(SHL alias)/SAR; byCL selects whether the shift
// count comes from CL (0xD2/0xD3) or is fixed at 1 (0xD0/0xD1).
func shiftGroup(w width, byCL bool) opFunc {
	return func(c *CPU, modrm byte) error {
		rm, err := c.resolveRM(modrm, w)
		if err != nil {
			return err
		}
		count := uint(1)
		if byCL {
			cl, err := c.GetRegisterLowByte(CX)
			if err != nil {
				return err
			}
			count = uint(cl) & 0x1F
		}

		var v uint32
		if w == width8 {
			b, err := c.readOperand8(rm)
			if err != nil {
				return err
			}
			v = uint32(b)
		} else {
			u, err := c.readOperand16(rm)
			if err != nil {
				return err
			}
			v = uint32(u)
		}

		bits := uint(w)
		mask := w.mask()
		var cf bool
		switch regField(modrm) {
		case 0: // ROL
			for i := uint(0); i < count; i++ {
				top := (v >> (bits - 1)) & 1
				v = ((v << 1) | top) & mask
				cf = top == 1
			}
			c.SetFlag(FlagCF, cf)
			if count == 1 {
				c.SetFlag(FlagOF, (v>>(bits-1))&1 != boolBit(cf))
			}
		case 1: // ROR
			for i := uint(0); i < count; i++ {
				bit0 := v & 1
				v = (v >> 1) | (bit0 << (bits - 1))
				v &= mask
				cf = bit0 == 1
			}
			c.SetFlag(FlagCF, cf)
			if count == 1 {
				top1 := (v >> (bits - 1)) & 1
				top2 := (v >> (bits - 2)) & 1
				c.SetFlag(FlagOF, top1 != top2)
			}
		case 2: // RCL
			cfIn := uint32(c.GetFlag(FlagCF))
			for i := uint(0); i < count; i++ {
				top := (v >> (bits - 1)) & 1
				v = ((v << 1) | cfIn) & mask
				cfIn = top
			}
			c.SetFlag(FlagCF, cfIn == 1)
		case 3: // RCR
			cfIn := uint32(c.GetFlag(FlagCF))
			for i := uint(0); i < count; i++ {
				bit0 := v & 1
				v = (v >> 1) | (cfIn << (bits - 1))
				v &= mask
				cfIn = bit0
			}
			c.SetFlag(FlagCF, cfIn == 1)
		case 4, 6: // SHL/SAL
			for i := uint(0); i < count; i++ {
				cf = (v>>(bits-1))&1 == 1
				v = (v << 1) & mask
			}
			c.SetFlag(FlagCF, cf)
			c.setFlagsLogical(v, w)
		case 5: // SHR
			for i := uint(0); i < count; i++ {
				cf = v&1 == 1
				v >>= 1
			}
			c.SetFlag(FlagCF, cf)
			c.setFlagsLogical(v, w)
		case 7: // SAR
			signBit := v & w.signBit()
			for i := uint(0); i < count; i++ {
				cf = v&1 == 1
				v = (v >> 1) | signBit
			}
			c.SetFlag(FlagCF, cf)
			c.setFlagsLogical(v, w)
		}

		if w == width8 {
			return c.writeOperand8(rm, byte(v))
		}
		return c.writeOperand16(rm, uint16(v))
	}
}

func boolBit(b bool) uint32 {
	if b {
		return 1
	}
	return 0
}
