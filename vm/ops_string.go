package vm

// stringStep returns the signed SI/DI adjustment for a string primitive at
// the given width, honouring DF (spec.md §4.3: ±1 byte, ±2 word).
func (c *CPU) stringStep(w width) uint16 {
	step := uint16(1)
	if w == width16 {
		step = 2
	}
	if c.GetFlag(FlagDF) == 1 {
		return ^step + 1 // two's-complement negate, kept in uint16
	}
	return step
}

func movsOnce(c *CPU, w width) error {
	step := c.stringStep(w)
	srcAddr := GetPhysicalAddress(c.regs[DS], c.regs[SI])
	dstAddr := GetPhysicalAddress(c.regs[ES], c.regs[DI])
	if w == width8 {
		v, err := c.mem.ReadByte(srcAddr)
		if err != nil {
			return err
		}
		if err := c.mem.WriteByte(dstAddr, v); err != nil {
			return err
		}
	} else {
		v, err := c.mem.ReadWord(srcAddr)
		if err != nil {
			return err
		}
		if err := c.mem.WriteWord(dstAddr, v); err != nil {
			return err
		}
	}
	c.regs[SI] += step
	c.regs[DI] += step
	return nil
}

func cmpsOnce(c *CPU, w width) error {
	step := c.stringStep(w)
	srcAddr := GetPhysicalAddress(c.regs[DS], c.regs[SI])
	dstAddr := GetPhysicalAddress(c.regs[ES], c.regs[DI])
	if w == width8 {
		x, err := c.mem.ReadByte(srcAddr)
		if err != nil {
			return err
		}
		y, err := c.mem.ReadByte(dstAddr)
		if err != nil {
			return err
		}
		c.setFlagsSub(uint32(x), uint32(y), width8)
	} else {
		x, err := c.mem.ReadWord(srcAddr)
		if err != nil {
			return err
		}
		y, err := c.mem.ReadWord(dstAddr)
		if err != nil {
			return err
		}
		c.setFlagsSub(uint32(x), uint32(y), width16)
	}
	c.regs[SI] += step
	c.regs[DI] += step
	return nil
}

func scasOnce(c *CPU, w width) error {
	step := c.stringStep(w)
	dstAddr := GetPhysicalAddress(c.regs[ES], c.regs[DI])
	if w == width8 {
		al, err := c.GetRegisterLowByte(AX)
		if err != nil {
			return err
		}
		y, err := c.mem.ReadByte(dstAddr)
		if err != nil {
			return err
		}
		c.setFlagsSub(uint32(al), uint32(y), width8)
	} else {
		y, err := c.mem.ReadWord(dstAddr)
		if err != nil {
			return err
		}
		c.setFlagsSub(uint32(c.GetRegister(AX)), uint32(y), width16)
	}
	c.regs[DI] += step
	return nil
}

func stosOnce(c *CPU, w width) error {
	step := c.stringStep(w)
	dstAddr := GetPhysicalAddress(c.regs[ES], c.regs[DI])
	if w == width8 {
		al, err := c.GetRegisterLowByte(AX)
		if err != nil {
			return err
		}
		if err := c.mem.WriteByte(dstAddr, al); err != nil {
			return err
		}
	} else {
		if err := c.mem.WriteWord(dstAddr, c.GetRegister(AX)); err != nil {
			return err
		}
	}
	c.regs[DI] += step
	return nil
}

func lodsOnce(c *CPU, w width) error {
	step := c.stringStep(w)
	srcAddr := GetPhysicalAddress(c.regs[DS], c.regs[SI])
	if w == width8 {
		v, err := c.mem.ReadByte(srcAddr)
		if err != nil {
			return err
		}
		if err := c.SetRegisterLowByte(AX, v); err != nil {
			return err
		}
	} else {
		v, err := c.mem.ReadWord(srcAddr)
		if err != nil {
			return err
		}
		c.SetRegister(AX, v)
	}
	c.regs[SI] += step
	return nil
}

// stringPrimitive is one unprefixed iteration of a string instruction.
type stringPrimitive struct {
	run        func(c *CPU, w width) error
	w          width
	isCompare  bool // CMPS/SCAS: REP additionally conditions on ZF
}

var stringPrimitives = map[byte]stringPrimitive{
	0xA4: {movsOnce, width8, false},
	0xA5: {movsOnce, width16, false},
	0xA6: {cmpsOnce, width8, true},
	0xA7: {cmpsOnce, width16, true},
	0xAA: {stosOnce, width8, false},
	0xAB: {stosOnce, width16, false},
	0xAC: {lodsOnce, width8, false},
	0xAD: {lodsOnce, width16, false},
	0xAE: {scasOnce, width8, true},
	0xAF: {scasOnce, width16, true},
}

func init() {
	for opcode, prim := range stringPrimitives {
		p := prim
		registerOpcode(opcode, false, func(c *CPU, _ byte) error {
			return p.run(c, p.w)
		})
	}
	registerOpcode(0xF3, false, repPrefix(true))
	registerOpcode(0xF2, false, repPrefix(false))
}

// repPrefix implements REP/REPE/REPZ (0xF3, wantZF=true meaning
// the ZF=1 condition) and REPNE/REPNZ (0xF2, ZF=0 condition) per spec.md
// §4.3: MOVS/STOS/LODS repeat while CX != 0; CMPS/SCAS additionally
// require the ZF condition after each iteration. CX=0 skips the primitive
// entirely, still consuming its opcode byte.
func repPrefix(wantZF bool) opFunc {
	return func(c *CPU, _ byte) error {
		opcode, err := c.FetchByte()
		if err != nil {
			return err
		}
		prim, ok := stringPrimitives[opcode]
		if !ok {
			return ErrUnknownOpcode
		}
		if c.regs[CX] == 0 {
			return nil
		}
		for {
			if err := prim.run(c, prim.w); err != nil {
				return err
			}
			c.regs[CX] = (c.regs[CX] - 1) & 0xFFFF
			if c.regs[CX] == 0 {
				return nil
			}
			if prim.isCompare {
				zf := c.GetFlag(FlagZF) == 1
				if zf != wantZF {
					return nil
				}
			}
		}
	}
}
