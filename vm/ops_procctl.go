package vm

func init() {
	registerOpcode(0xF8, false, func(c *CPU, _ byte) error { c.SetFlag(FlagCF, false); return nil })
	registerOpcode(0xF9, false, func(c *CPU, _ byte) error { c.SetFlag(FlagCF, true); return nil })
	registerOpcode(0xF5, false, func(c *CPU, _ byte) error { c.SetFlag(FlagCF, c.GetFlag(FlagCF) == 0); return nil })
	registerOpcode(0xFC, false, func(c *CPU, _ byte) error { c.SetFlag(FlagDF, false); return nil })
	registerOpcode(0xFD, false, func(c *CPU, _ byte) error { c.SetFlag(FlagDF, true); return nil })
	registerOpcode(0xFA, false, func(c *CPU, _ byte) error { c.SetFlag(FlagIF, false); return nil })
	registerOpcode(0xFB, false, func(c *CPU, _ byte) error { c.SetFlag(FlagIF, true); return nil })
	registerOpcode(0x90, false, func(c *CPU, _ byte) error { return nil })
	registerOpcode(0xF4, false, func(c *CPU, _ byte) error { c.halted = true; return nil })
	registerOpcode(0x9B, false, func(c *CPU, _ byte) error { return nil }) // WAIT: no coprocessor to wait on

	registerOpcode(0xF0, false, lockPrefix)

	// ESC 0xD8-0xDF: consume the ModR/M byte, perform nothing (8087
	// semantics beyond consuming the opcode byte are an explicit non-goal).
	for op := byte(0xD8); op <= 0xDF; op++ {
		registerOpcode(op, true, func(c *CPU, _ byte) error { return nil })
	}
}

// lockPrefix re-enters dispatch on the following opcode: LOCK has no bus
// effect in a single-threaded simulator, so it is transparent to the
// instruction it prefixes.
func lockPrefix(c *CPU, _ byte) error {
	opcode, err := c.FetchByte()
	if err != nil {
		return err
	}
	entry := dispatchTable[opcode]
	if entry.handler == nil {
		return ErrUnknownOpcode
	}
	var modrm byte
	if entry.needsModRM {
		modrm, err = c.FetchByte()
		if err != nil {
			return err
		}
	}
	return entry.handler(c, modrm)
}
