package vm

// Debugger wraps a CPU with breakpoints and single-stepping, per spec.md
// §4.5. Breakpoints are physical CS:IP addresses; a run stops *before*
// executing an instruction whose address is in the set, mirroring the
// teacher's check-before-execute loop idiom.
type Debugger struct {
	cpu         *CPU
	breakpoints map[int]struct{}
}

// NewDebugger wraps cpu with an empty breakpoint set.
func NewDebugger(cpu *CPU) *Debugger {
	return &Debugger{cpu: cpu, breakpoints: make(map[int]struct{})}
}

// SetBreakpoint arms a breakpoint at the given physical address.
func (d *Debugger) SetBreakpoint(addr int) {
	d.breakpoints[addr] = struct{}{}
}

// ToggleBreakpoint arms addr if not already armed, disarms it otherwise,
// and reports the resulting state (true = armed).
func (d *Debugger) ToggleBreakpoint(addr int) bool {
	if _, ok := d.breakpoints[addr]; ok {
		delete(d.breakpoints, addr)
		return false
	}
	d.breakpoints[addr] = struct{}{}
	return true
}

// ClearBreakpoints disarms every breakpoint.
func (d *Debugger) ClearBreakpoints() {
	d.breakpoints = make(map[int]struct{})
}

// Breakpoints returns the currently armed addresses.
func (d *Debugger) Breakpoints() []int {
	out := make([]int, 0, len(d.breakpoints))
	for addr := range d.breakpoints {
		out = append(out, addr)
	}
	return out
}

func (d *Debugger) atBreakpoint() bool {
	_, ok := d.breakpoints[GetPhysicalAddress(d.cpu.regs[CS], d.cpu.regs[IP])]
	return ok
}

// StepInstruction executes exactly one instruction regardless of any
// breakpoint at the current address, per spec.md §4.5 (a step always
// makes progress; only RunToBreakpoint stops on arrival).
func (d *Debugger) StepInstruction() error {
	return d.cpu.ExecuteInstruction()
}

// RunToBreakpoint executes instructions until the CPU halts, a step
// fails, max (if > 0) instructions have executed, or CS:IP lands on an
// armed breakpoint - checked BEFORE that instruction executes, so a
// breakpoint at the current address on entry stops immediately without
// executing anything. Returns true if it stopped due to a breakpoint.
func (d *Debugger) RunToBreakpoint(max int) (hitBreakpoint bool, err error) {
	for i := 0; max <= 0 || i < max; i++ {
		if d.atBreakpoint() {
			return true, nil
		}
		if err := d.cpu.ExecuteInstruction(); err != nil {
			if err == ErrHalted {
				return false, nil
			}
			return false, err
		}
	}
	return false, nil
}
