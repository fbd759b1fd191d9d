package vm

import (
	"io"
	"log"
	"runtime/debug"
	"time"
)

// OutputSink receives the bytes the INT 21h/AH=09h service prints, one
// character at a time, per spec.md §6. Any io.Writer satisfies it.
type OutputSink interface {
	Write(p []byte) (n int, err error)
}

// CPU holds the 8086's architecturally visible state: the 14-register
// file, halted status, instruction counter, a reference to the Memory it
// fetches from and mutates, and the host collaborators (output sink,
// logger, profiler) it is wired to.
type CPU struct {
	attachProfiler

	regs   [numRegisters]uint16
	halted bool
	count  uint64

	mem    *Memory
	out    OutputSink
	logger *log.Logger
}

// NewCPU constructs a CPU bound to mem. The output sink defaults to
// io.Discard and the logger to log.Default(); both can be replaced.
func NewCPU(mem *Memory) *CPU {
	c := &CPU{mem: mem, out: io.Discard, logger: log.Default()}
	c.Reset()
	return c
}

// SetOutputSink replaces the destination for INT 21h/AH=09h output.
func (c *CPU) SetOutputSink(sink OutputSink) {
	if sink == nil {
		sink = io.Discard
	}
	c.out = sink
}

// SetLogger replaces the diagnostic logger used for fault reporting.
func (c *CPU) SetLogger(l *log.Logger) {
	if l == nil {
		l = log.Default()
	}
	c.logger = l
}

// Halted reports whether HLT has stopped the CPU.
func (c *CPU) Halted() bool { return c.halted }

// InstructionCount reports how many instructions have executed since the
// last Reset.
func (c *CPU) InstructionCount() uint64 { return c.count }

// Memory returns the Memory this CPU fetches from and mutates.
func (c *CPU) Memory() *Memory { return c.mem }

// Reset reinitialises the register file and clears halted, per spec.md
// §4.2: CS=DS=SS=ES=0x0010 (COM-style layout, base physical 0x0100),
// IP=0, SP=0xFFFE, all other registers and flags zero. Any attached
// profiling hook is preserved.
func (c *CPU) Reset() {
	for r := Register(0); r < numRegisters; r++ {
		c.regs[r] = 0
	}
	c.regs[CS] = 0x0010
	c.regs[DS] = 0x0010
	c.regs[SS] = 0x0010
	c.regs[ES] = 0x0010
	c.regs[SP] = 0xFFFE
	c.halted = false
	c.count = 0
}

// GetPhysicalAddress computes the 20-bit physical address for a
// segment:offset pair, per spec.md §3.
func GetPhysicalAddress(segment, offset uint16) int {
	return ((int(segment) << 4) + int(offset)) & 0xFFFFF
}

func (c *CPU) physicalCSIP() int {
	return GetPhysicalAddress(c.regs[CS], c.regs[IP])
}

// FetchByte reads the byte at CS:IP and advances IP by 1, wrapping mod
// 2^16.
func (c *CPU) FetchByte() (byte, error) {
	b, err := c.mem.ReadByte(c.physicalCSIP())
	if err != nil {
		return 0, err
	}
	c.regs[IP] = (c.regs[IP] + 1) & 0xFFFF
	return b, nil
}

// FetchWord reads the little-endian word at CS:IP and advances IP by 2,
// wrapping mod 2^16.
func (c *CPU) FetchWord() (uint16, error) {
	lo, err := c.FetchByte()
	if err != nil {
		return 0, err
	}
	hi, err := c.FetchByte()
	if err != nil {
		return 0, err
	}
	return uint16(lo) | uint16(hi)<<8, nil
}

// Push decrements SP by 2 then writes word at SS:SP, per spec.md §3.
func (c *CPU) Push(word uint16) error {
	c.regs[SP] = (c.regs[SP] - 2) & 0xFFFF
	return c.mem.WriteWord(GetPhysicalAddress(c.regs[SS], c.regs[SP]), word)
}

// Pop reads the word at SS:SP then increments SP by 2, per spec.md §3.
func (c *CPU) Pop() (uint16, error) {
	word, err := c.mem.ReadWord(GetPhysicalAddress(c.regs[SS], c.regs[SP]))
	if err != nil {
		return 0, err
	}
	c.regs[SP] = (c.regs[SP] + 2) & 0xFFFF
	return word, nil
}

// ExecuteInstruction drives one fetch/decode/execute step. If halted, it
// reports ErrHalted ("no progress"). Otherwise it fetches the opcode byte,
// resolves the dispatch-table entry, fetches a ModR/M byte iff the entry
// needs one, invokes the handler, increments the instruction counter on
// success, and notifies the profiler (if any) of the executed opcode.
func (c *CPU) ExecuteInstruction() error {
	if c.halted {
		return ErrHalted
	}

	start := time.Now()
	opcode, err := c.FetchByte()
	if err != nil {
		return err
	}

	entry := dispatchTable[opcode]
	if entry.handler == nil {
		c.logger.Printf("unknown opcode 0x%02X at CS:IP=%04X:%04X", opcode, c.regs[CS], c.regs[IP]-1)
		return ErrUnknownOpcode
	}

	var modrm byte
	if entry.needsModRM {
		modrm, err = c.FetchByte()
		if err != nil {
			return err
		}
	}

	if err := entry.handler(c, modrm); err != nil {
		c.logger.Printf("%v executing opcode 0x%02X at CS:IP=%04X:%04X", err, opcode, c.regs[CS], c.regs[IP]-1)
		return err
	}

	c.count++
	if c.hook != nil {
		c.hook.InstructionExecuted(opcode, time.Since(start))
	}
	return nil
}

// Run repeats ExecuteInstruction until halted, until max (if > 0)
// instructions have executed, or until a step reports failure. It returns
// nil when the CPU halts or the instruction budget is exhausted, and the
// failing step's error otherwise.
//
// Memory is allocated up front (Memory's backing array, the CPU's own
// fields); the tight fetch/decode/execute loop below allocates nothing
// itself, so the GC is paused for its duration and restored to the
// caller's GOGC on return.
func (c *CPU) Run(max int) error {
	gcPercent := debug.SetGCPercent(-1)
	defer debug.SetGCPercent(gcPercent)

	for i := 0; max <= 0 || i < max; i++ {
		if err := c.ExecuteInstruction(); err != nil {
			if err == ErrHalted {
				return nil
			}
			return err
		}
	}
	return nil
}
