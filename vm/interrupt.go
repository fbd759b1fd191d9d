package vm

func init() {
	registerOpcode(0xCD, false, opINT)
	registerOpcode(0xCE, false, opINTO)
	registerOpcode(0xCF, false, opIRET)
}

// dosStringTerminator is the '$' byte that ends an INT 21h/AH=09h string.
const dosStringTerminator = 0x24

// opINT dispatches INT imm8. Only INT 21h/AH=09h is a modelled DOS-style
// service (spec.md §1 explicitly excludes real IVT lookups beyond it);
// every other vector is a no-op by the resolved Open Question in
// DESIGN.md, consuming only the immediate operand.
func opINT(c *CPU, _ byte) error {
	vector, err := c.FetchByte()
	if err != nil {
		return err
	}
	if vector != 0x21 {
		return nil
	}
	ah, err := c.GetRegisterHighByte(AX)
	if err != nil {
		return err
	}
	if ah != 0x09 {
		return nil
	}
	return c.printDOSString()
}

// printDOSString writes DS:DX-relative bytes to the attached OutputSink
// until (not including) the '$' terminator, one byte per Write call per
// spec.md §6.
func (c *CPU) printDOSString() error {
	addr := GetPhysicalAddress(c.regs[DS], c.regs[DX])
	for {
		b, err := c.mem.ReadByte(addr)
		if err != nil {
			return err
		}
		if b == dosStringTerminator {
			return nil
		}
		if _, err := c.out.Write([]byte{b}); err != nil {
			return err
		}
		addr++
	}
}

// opINTO traps through the same entry sequence a real INT would use for
// vector 4, but only when OF=1: push FLAGS, CS, IP, then clear IF and TF.
// No synthetic service exists for vector 4, so execution falls through to
// the next instruction; a program that wants the entry undone issues IRET
// itself.
func opINTO(c *CPU, _ byte) error {
	if c.GetFlag(FlagOF) != 1 {
		return nil
	}
	if err := c.Push(c.regs[FLAGS]); err != nil {
		return err
	}
	if err := c.Push(c.regs[CS]); err != nil {
		return err
	}
	if err := c.Push(c.regs[IP]); err != nil {
		return err
	}
	c.SetFlag(FlagIF, false)
	c.SetFlag(FlagTF, false)
	return nil
}

// opIRET pops IP, CS, FLAGS in that order, per spec.md §4.3.
func opIRET(c *CPU, _ byte) error {
	ip, err := c.Pop()
	if err != nil {
		return err
	}
	cs, err := c.Pop()
	if err != nil {
		return err
	}
	flags, err := c.Pop()
	if err != nil {
		return err
	}
	c.regs[IP] = ip
	c.regs[CS] = cs
	c.regs[FLAGS] = flags
	return nil
}
