package vm

import "testing"

func TestToggleBreakpointFlipsMembership(t *testing.T) {
	c := newTestCPU()
	dbg := NewDebugger(c)

	on := dbg.ToggleBreakpoint(0x0106)
	assert(t, on, "first toggle should arm the breakpoint")
	assert(t, len(dbg.Breakpoints()) == 1, "expected one armed breakpoint, got %d", len(dbg.Breakpoints()))

	off := dbg.ToggleBreakpoint(0x0106)
	assert(t, !off, "second toggle should disarm the breakpoint")
	assert(t, len(dbg.Breakpoints()) == 0, "expected no armed breakpoints, got %d", len(dbg.Breakpoints()))
}

func TestStepInstructionIgnoresBreakpointAtCurrentAddress(t *testing.T) {
	c := loadScenarioS1(t)
	dbg := NewDebugger(c)
	dbg.SetBreakpoint(0x0100) // the very first instruction's own address

	assert(t, dbg.StepInstruction() == nil, "StepInstruction should execute regardless of a breakpoint here")
	assert(t, c.GetRegister(AX) == 0x1234, "AX = %#x, want 0x1234 after one step", c.GetRegister(AX))
}

func TestRunToBreakpointStopsImmediatelyWhenAlreadyThere(t *testing.T) {
	c := loadScenarioS1(t)
	dbg := NewDebugger(c)
	dbg.SetBreakpoint(0x0100) // CS:IP starts here before anything executes

	hit, err := dbg.RunToBreakpoint(0)
	assert(t, err == nil, "RunToBreakpoint failed: %v", err)
	assert(t, hit, "expected an immediate breakpoint hit")
	assert(t, c.InstructionCount() == 0, "no instruction should have executed yet, count=%d", c.InstructionCount())
}

func TestClearBreakpointsEmptiesSet(t *testing.T) {
	c := newTestCPU()
	dbg := NewDebugger(c)
	dbg.SetBreakpoint(1)
	dbg.SetBreakpoint(2)
	dbg.ClearBreakpoints()
	assert(t, len(dbg.Breakpoints()) == 0, "expected no breakpoints after ClearBreakpoints, got %d", len(dbg.Breakpoints()))
}
