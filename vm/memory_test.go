package vm

import (
	"fmt"
	"testing"
	"time"
)

func assert(t *testing.T, cond bool, format string, args ...any) {
	if !cond {
		t.Fatalf(fmt.Sprintf("%v %s", cond, format), args...)
	}
}

func TestMemoryWordRoundTrip(t *testing.T) {
	m := NewMemory(1024)
	cases := []struct {
		addr int
		v    uint16
	}{
		{0, 0}, {1, 0xFFFF}, {100, 0x1234}, {1021, 0xBEEF},
	}
	for _, c := range cases {
		assert(t, m.WriteWord(c.addr, c.v) == nil, "write_word(%d, %#x) failed", c.addr, c.v)
		got, err := m.ReadWord(c.addr)
		assert(t, err == nil, "read_word(%d) failed: %v", c.addr, err)
		assert(t, got == c.v, "read_word(%d) = %#x, want %#x", c.addr, got, c.v)
	}
}

func TestMemoryOutOfRange(t *testing.T) {
	m := NewMemory(16)
	_, err := m.ReadByte(16)
	assert(t, err != nil, "ReadByte past the end should fail")
	_, err = m.ReadWord(15)
	assert(t, err != nil, "ReadWord spanning past the end should fail")
	assert(t, m.WriteByte(-1, 0) != nil, "WriteByte with negative address should fail")
}

func TestMemoryByteRangeInvariant(t *testing.T) {
	m := NewMemory(4)
	assert(t, m.WriteByte(0, 0xFF) == nil, "WriteByte failed")
	b, _ := m.ReadByte(0)
	assert(t, int(b) < 0x100, "byte value %d out of range", b)
}

func TestMemoryLoadBytesAndDump(t *testing.T) {
	m := NewMemory(16)
	data := []byte{1, 2, 3, 4}
	assert(t, m.LoadBytes(4, data) == nil, "LoadBytes failed")
	dump := m.Dump(4, 4)
	assert(t, len(dump) == 4, "Dump returned %d bytes, want 4", len(dump))
	for i, b := range data {
		assert(t, dump[i] == b, "dump[%d] = %d, want %d", i, dump[i], b)
	}
}

func TestMemoryResetPreservesProfiler(t *testing.T) {
	m := NewMemory(16)
	p := &countingProfiler{}
	m.Attach(p)
	m.WriteByte(0, 1)
	m.Reset()
	m.WriteByte(0, 2)
	assert(t, p.writes >= 2, "profiler should still observe writes after Reset, got %d", p.writes)
}

// countingProfiler is a minimal Profiler used across vm package tests.
type countingProfiler struct {
	reads, writes, jumps, calls, returns int
}

func (p *countingProfiler) MemoryRead(int)                         { p.reads++ }
func (p *countingProfiler) MemoryWrite(int)                        { p.writes++ }
func (p *countingProfiler) InstructionExecuted(byte, time.Duration) {}
func (p *countingProfiler) Jump()                                   { p.jumps++ }
func (p *countingProfiler) Call()                                   { p.calls++ }
func (p *countingProfiler) Return()                                 { p.returns++ }
