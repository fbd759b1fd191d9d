package vm

func init() {
	registerOpcode(0xEB, false, jmpRel8)
	registerOpcode(0xE9, false, jmpRel16)
	registerOpcode(0xEA, false, jmpFar)

	for i := byte(0); i < 16; i++ {
		idx := i
		registerOpcode(0x70+i, false, func(c *CPU, _ byte) error {
			return jumpIf(c, condition(c, idx))
		})
	}

	registerOpcode(0xE3, false, func(c *CPU, _ byte) error {
		return jumpIf(c, c.regs[CX] == 0)
	})
	registerOpcode(0xE2, false, func(c *CPU, _ byte) error {
		c.regs[CX] = (c.regs[CX] - 1) & 0xFFFF
		return jumpIf(c, c.regs[CX] != 0)
	})
	registerOpcode(0xE1, false, func(c *CPU, _ byte) error {
		c.regs[CX] = (c.regs[CX] - 1) & 0xFFFF
		return jumpIf(c, c.regs[CX] != 0 && c.GetFlag(FlagZF) == 1)
	})
	registerOpcode(0xE0, false, func(c *CPU, _ byte) error {
		c.regs[CX] = (c.regs[CX] - 1) & 0xFFFF
		return jumpIf(c, c.regs[CX] != 0 && c.GetFlag(FlagZF) == 0)
	})

	registerOpcode(0xE8, false, callRel16)
	registerOpcode(0x9A, false, callFar)
	registerOpcode(0xC3, false, opRET)
	registerOpcode(0xC2, false, opRETImm16)
	registerOpcode(0xCB, false, opRETFar)
	registerOpcode(0xCA, false, opRETFarImm16)
}

// condition evaluates the 16 standard 8086 conditional-jump predicates,
// indexed the same way the opcode's low nibble (0x70+idx) selects them.
func condition(c *CPU, idx byte) bool {
	of := c.GetFlag(FlagOF) == 1
	cf := c.GetFlag(FlagCF) == 1
	zf := c.GetFlag(FlagZF) == 1
	sf := c.GetFlag(FlagSF) == 1
	pf := c.GetFlag(FlagPF) == 1
	switch idx {
	case 0x0: // JO
		return of
	case 0x1: // JNO
		return !of
	case 0x2: // JB/JC/JNAE
		return cf
	case 0x3: // JAE/JNB/JNC
		return !cf
	case 0x4: // JE/JZ
		return zf
	case 0x5: // JNE/JNZ
		return !zf
	case 0x6: // JBE/JNA
		return cf || zf
	case 0x7: // JA/JNBE
		return !cf && !zf
	case 0x8: // JS
		return sf
	case 0x9: // JNS
		return !sf
	case 0xA: // JP/JPE
		return pf
	case 0xB: // JNP/JPO
		return !pf
	case 0xC: // JL/JNGE
		return sf != of
	case 0xD: // JGE/JNL
		return sf == of
	case 0xE: // JLE/JNG
		return zf || sf != of
	case 0xF: // JG/JNLE
		return !zf && sf == of
	}
	return false
}

// jumpIf reads the rel8 displacement and, if take, sets IP to
// (ip_after_instruction + sign-extended displacement) mod 2^16. The
// displacement byte is always consumed, matching the architecture's
// "short jump" encoding regardless of whether the branch is taken.
func jumpIf(c *CPU, take bool) error {
	d, err := c.FetchByte()
	if err != nil {
		return err
	}
	if take {
		c.regs[IP] = (c.regs[IP] + uint16(int16(int8(d)))) & 0xFFFF
		if c.hook != nil {
			c.hook.Jump()
		}
	}
	return nil
}

func jmpRel8(c *CPU, _ byte) error { return jumpIf(c, true) }

func jmpRel16(c *CPU, _ byte) error {
	d, err := c.FetchWord()
	if err != nil {
		return err
	}
	c.regs[IP] = (c.regs[IP] + d) & 0xFFFF
	if c.hook != nil {
		c.hook.Jump()
	}
	return nil
}

func jmpFar(c *CPU, _ byte) error {
	offset, err := c.FetchWord()
	if err != nil {
		return err
	}
	segment, err := c.FetchWord()
	if err != nil {
		return err
	}
	c.regs[IP] = offset
	c.regs[CS] = segment
	if c.hook != nil {
		c.hook.Jump()
	}
	return nil
}

func callRel16(c *CPU, _ byte) error {
	d, err := c.FetchWord()
	if err != nil {
		return err
	}
	if err := c.Push(c.regs[IP]); err != nil {
		return err
	}
	c.regs[IP] = (c.regs[IP] + d) & 0xFFFF
	if c.hook != nil {
		c.hook.Call()
	}
	return nil
}

func callFar(c *CPU, _ byte) error {
	offset, err := c.FetchWord()
	if err != nil {
		return err
	}
	segment, err := c.FetchWord()
	if err != nil {
		return err
	}
	if err := c.Push(c.regs[CS]); err != nil {
		return err
	}
	if err := c.Push(c.regs[IP]); err != nil {
		return err
	}
	c.regs[CS] = segment
	c.regs[IP] = offset
	if c.hook != nil {
		c.hook.Call()
	}
	return nil
}

func opRET(c *CPU, _ byte) error {
	ip, err := c.Pop()
	if err != nil {
		return err
	}
	c.regs[IP] = ip
	if c.hook != nil {
		c.hook.Return()
	}
	return nil
}

func opRETImm16(c *CPU, _ byte) error {
	imm, err := c.FetchWord()
	if err != nil {
		return err
	}
	ip, err := c.Pop()
	if err != nil {
		return err
	}
	c.regs[IP] = ip
	c.regs[SP] = (c.regs[SP] + imm) & 0xFFFF
	if c.hook != nil {
		c.hook.Return()
	}
	return nil
}

func opRETFar(c *CPU, _ byte) error {
	ip, err := c.Pop()
	if err != nil {
		return err
	}
	cs, err := c.Pop()
	if err != nil {
		return err
	}
	c.regs[IP] = ip
	c.regs[CS] = cs
	if c.hook != nil {
		c.hook.Return()
	}
	return nil
}

func opRETFarImm16(c *CPU, _ byte) error {
	imm, err := c.FetchWord()
	if err != nil {
		return err
	}
	ip, err := c.Pop()
	if err != nil {
		return err
	}
	cs, err := c.Pop()
	if err != nil {
		return err
	}
	c.regs[IP] = ip
	c.regs[CS] = cs
	c.regs[SP] = (c.regs[SP] + imm) & 0xFFFF
	if c.hook != nil {
		c.hook.Return()
	}
	return nil
}
