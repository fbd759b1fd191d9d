package vm

import "testing"

func newTestCPU() *CPU {
	return NewCPU(NewMemory(DefaultMemorySize))
}

func TestPhysicalAddressLaw(t *testing.T) {
	cases := []struct{ seg, off uint16 }{
		{0x0010, 0x0000}, {0xFFFF, 0xFFFF}, {0x1234, 0x5678},
	}
	for _, c := range cases {
		got := GetPhysicalAddress(c.seg, c.off)
		want := ((int(c.seg) << 4) + int(c.off)) & 0xFFFFF
		assert(t, got == want, "physical(%#x,%#x) = %#x, want %#x", c.seg, c.off, got, want)
	}
}

func TestPushPopRoundTrip(t *testing.T) {
	c := newTestCPU()
	sp := c.GetRegister(SP)
	assert(t, c.Push(0xBEEF) == nil, "Push failed")
	v, err := c.Pop()
	assert(t, err == nil, "Pop failed: %v", err)
	assert(t, v == 0xBEEF, "popped %#x, want 0xBEEF", v)
	assert(t, c.GetRegister(SP) == sp, "SP = %#x after round trip, want %#x", c.GetRegister(SP), sp)
}

func TestHighLowByteInvariant(t *testing.T) {
	c := newTestCPU()
	c.SetRegister(AX, 0x1234)
	hi, _ := c.GetRegisterHighByte(AX)
	lo, _ := c.GetRegisterLowByte(AX)
	assert(t, uint16(hi)<<8|uint16(lo) == c.GetRegister(AX), "AH:AL does not reconstruct AX")
}

func TestIPWraps(t *testing.T) {
	c := newTestCPU()
	c.regs[IP] = 0xFFFF
	c.regs[CS] = 0x0010
	c.mem.WriteByte(GetPhysicalAddress(0x0010, 0xFFFF), 0x90) // NOP
	assert(t, c.ExecuteInstruction() == nil, "ExecuteInstruction failed")
	assert(t, c.regs[IP] == 0x0000, "IP = %#x after wrap, want 0", c.regs[IP])
}

func TestSPWrapsOnPush(t *testing.T) {
	c := newTestCPU()
	c.regs[SP] = 0x0000
	assert(t, c.Push(1) == nil, "Push failed")
	assert(t, c.regs[SP] == 0xFFFE, "SP = %#x after push from 0, want 0xFFFE", c.regs[SP])
}

// S1 from spec.md §8: MOV AX,0x1234; MOV BX,0x5678; ADD AX,BX; MOV CX,AX; HLT.
func loadScenarioS1(t *testing.T) *CPU {
	c := newTestCPU()
	bytes := []byte{0xB8, 0x34, 0x12, 0xBB, 0x78, 0x56, 0x01, 0xD8, 0x89, 0xC1, 0xF4}
	assert(t, c.mem.LoadBytes(0x0100, bytes) == nil, "LoadBytes failed")
	c.regs[CS] = 0x0010
	c.regs[IP] = 0
	return c
}

func TestScenarioS1(t *testing.T) {
	c := loadScenarioS1(t)
	assert(t, c.Run(0) == nil, "Run failed")
	assert(t, c.Halted(), "expected halted")
	assert(t, c.GetRegister(AX) == 0x68AC, "AX = %#x, want 0x68AC", c.GetRegister(AX))
	assert(t, c.GetRegister(BX) == 0x5678, "BX = %#x, want 0x5678", c.GetRegister(BX))
	assert(t, c.GetRegister(CX) == 0x68AC, "CX = %#x, want 0x68AC", c.GetRegister(CX))
	assert(t, c.InstructionCount() == 5, "instructions executed = %d, want 5", c.InstructionCount())
}

// S2 from spec.md §8: MOV CX,5; MOV AX,0; loop: INC AX; LOOP loop; HLT.
func TestScenarioS2(t *testing.T) {
	c := newTestCPU()
	bytes := []byte{0xB9, 0x05, 0x00, 0xB8, 0x00, 0x00, 0x40, 0xE2, 0xFD, 0xF4}
	assert(t, c.mem.LoadBytes(0x0100, bytes) == nil, "LoadBytes failed")
	c.regs[CS] = 0x0010
	c.regs[IP] = 0
	assert(t, c.Run(0) == nil, "Run failed")
	assert(t, c.Halted(), "expected halted")
	assert(t, c.GetRegister(AX) == 0x0005, "AX = %#x, want 0x0005", c.GetRegister(AX))
	assert(t, c.GetRegister(CX) == 0x0000, "CX = %#x, want 0", c.GetRegister(CX))
}

// S6 from spec.md §8: a breakpoint at the ADD instruction of S1 stops
// before it executes; clearing it and resuming reaches S1's final state.
func TestScenarioS6BreakpointStopsBeforeExecution(t *testing.T) {
	c := loadScenarioS1(t)
	dbg := NewDebugger(c)
	dbg.SetBreakpoint(0x0106)

	hit, err := dbg.RunToBreakpoint(0)
	assert(t, err == nil, "RunToBreakpoint failed: %v", err)
	assert(t, hit, "expected to hit the breakpoint")
	assert(t, c.GetRegister(AX) == 0x1234, "AX = %#x, want 0x1234", c.GetRegister(AX))
	assert(t, c.GetRegister(BX) == 0x5678, "BX = %#x, want 0x5678", c.GetRegister(BX))
	assert(t, c.GetRegister(CX) == 0, "CX = %#x, want 0", c.GetRegister(CX))
	assert(t, c.GetRegister(IP) == 0x0006, "IP = %#x, want 0x0006", c.GetRegister(IP))

	dbg.ClearBreakpoints()
	assert(t, c.Run(0) == nil, "resumed Run failed")
	assert(t, c.Halted(), "expected halted after resuming")
	assert(t, c.GetRegister(AX) == 0x68AC, "AX = %#x, want 0x68AC after resuming", c.GetRegister(AX))
	assert(t, c.GetRegister(CX) == 0x68AC, "CX = %#x, want 0x68AC after resuming", c.GetRegister(CX))
}

// Flag sanity law from spec.md §8: ADD AL,imm8.
func TestAddFlagLaw(t *testing.T) {
	c := newTestCPU()
	// MOV AL,0x7F ; ADD AL,0x01 ; HLT -> overflow into the sign bit.
	bytes := []byte{0xB0, 0x7F, 0x04, 0x01, 0xF4}
	assert(t, c.mem.LoadBytes(0x0100, bytes) == nil, "LoadBytes failed")
	c.regs[CS] = 0x0010
	c.regs[IP] = 0
	assert(t, c.Run(0) == nil, "Run failed")

	al, _ := c.GetRegisterLowByte(AX)
	assert(t, al == 0x80, "AL = %#x, want 0x80", al)
	assert(t, c.GetFlag(FlagCF) == 0, "CF should be 0")
	assert(t, c.GetFlag(FlagZF) == 0, "ZF should be 0")
	assert(t, c.GetFlag(FlagSF) == 1, "SF should be 1")
	assert(t, c.GetFlag(FlagOF) == 1, "OF should be 1 (0x7F+0x01 overflows into the sign bit)")
}

// REP idempotence on CX=0, per spec.md §8.
func TestRepWithZeroCountIsNoop(t *testing.T) {
	c := newTestCPU()
	c.regs[CX] = 0
	si, di := c.GetRegister(SI), c.GetRegister(DI)
	bytes := []byte{0xF3, 0xA4, 0xF4} // REP MOVSB ; HLT
	assert(t, c.mem.LoadBytes(0x0100, bytes) == nil, "LoadBytes failed")
	c.regs[CS] = 0x0010
	c.regs[IP] = 0
	assert(t, c.Run(0) == nil, "Run failed")
	assert(t, c.GetRegister(CX) == 0, "CX should remain 0")
	assert(t, c.GetRegister(SI) == si, "SI should be unchanged")
	assert(t, c.GetRegister(DI) == di, "DI should be unchanged")
}

// LOOP progress law, per spec.md §8: decrements CX once, jumps iff CX != 0.
func TestLoopDecrementsOncePerExecution(t *testing.T) {
	c := newTestCPU()
	c.regs[CX] = 1
	bytes := []byte{0xE2, 0xFE, 0xF4} // LOOP $; HLT (falls through once CX hits 0)
	assert(t, c.mem.LoadBytes(0x0100, bytes) == nil, "LoadBytes failed")
	c.regs[CS] = 0x0010
	c.regs[IP] = 0
	assert(t, c.Run(3) == nil, "Run failed")
	assert(t, c.GetRegister(CX) == 0, "CX = %#x, want 0 after one LOOP decrement", c.GetRegister(CX))
	assert(t, c.Halted(), "expected halted after falling through LOOP")
}
