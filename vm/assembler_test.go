package vm

import (
	"bytes"
	"strings"
	"testing"
)

func assembleAndRun(t *testing.T, source string) *CPU {
	c := newTestCPU()
	asm := NewAssembler(c)
	assert(t, asm.Load(source) == nil, "assembler Load failed for:\n%s", source)
	assert(t, c.Run(0) == nil, "Run failed")
	return c
}

// S3 from spec.md §8: a .MODEL SMALL program that prints "Hi" via
// INT 21h/AH=09h from a '$'-terminated DB string.
func TestScenarioS3PrintsViaInterrupt(t *testing.T) {
	source := `
.MODEL SMALL
.DATA
msg DB 'Hi$'
.CODE
start:
    MOV AX,@DATA
    MOV DS,AX
    MOV AH,09h
    MOV DX,OFFSET msg
    INT 21h
    HLT
END start
`
	c := newTestCPU()
	var out bytes.Buffer
	c.SetOutputSink(&out)
	asm := NewAssembler(c)
	assert(t, asm.Load(source) == nil, "assembler Load failed")
	assert(t, c.Run(0) == nil, "Run failed")
	assert(t, c.Halted(), "expected halted")
	assert(t, out.String() == "Hi", "output = %q, want %q", out.String(), "Hi")
}

// S4 from spec.md §8: a CMP/JNE branch; JNE falls through, so CX=1, and
// ZF=1 after the CMP.
func TestScenarioS4Branch(t *testing.T) {
	source := `
.CODE
start:
    MOV AX,3
    MOV BX,3
    CMP AX,BX
    JNE bad
    MOV CX,1
    JMP done
bad:
    MOV CX,2
done:
    HLT
END start
`
	c := assembleAndRun(t, source)
	assert(t, c.Halted(), "expected halted")
	assert(t, c.GetRegister(CX) == 1, "CX = %#x, want 1", c.GetRegister(CX))
	assert(t, c.GetFlag(FlagZF) == 1, "ZF should be 1 after CMP AX,BX with AX==BX")
}

// S5 from spec.md §8: PUSH/POP round trip through assembled code restores
// both the value and the stack pointer.
func TestScenarioS5PushPop(t *testing.T) {
	source := `
.CODE
start:
    MOV AX,0BEEFh
    PUSH AX
    MOV AX,0
    POP AX
    HLT
END start
`
	c := newTestCPU()
	sp := c.GetRegister(SP)
	asm := NewAssembler(c)
	assert(t, asm.Load(source) == nil, "assembler Load failed")
	sp = c.GetRegister(SP) // SP is (re)initialized by Load from the stack segment
	assert(t, c.Run(0) == nil, "Run failed")
	assert(t, c.GetRegister(AX) == 0xBEEF, "AX = %#x, want 0xBEEF", c.GetRegister(AX))
	assert(t, c.GetRegister(SP) == sp, "SP = %#x, want %#x (restored)", c.GetRegister(SP), sp)
}

// Boundary behavior from spec.md §8: a forward rel8 displacement of
// exactly +127 must assemble; +128 must be rejected by the assembler.
func TestShortJumpDisplacementBoundary(t *testing.T) {
	// Exactly +127: a forward JNZ over 127 bytes of NOP padding.
	var fwd strings.Builder
	for i := 0; i < 127; i++ {
		fwd.WriteString("NOP\n")
	}
	forwardSource := ".CODE\nstart:\nMOV AX,1\nCMP AX,1\nJNZ target\n" + fwd.String() + "target:\nHLT\nEND start\n"
	c := newTestCPU()
	asm := NewAssembler(c)
	assert(t, asm.Load(forwardSource) == nil, "a +127 rel8 displacement should assemble")

	// One more byte of padding pushes the displacement to +128, which must
	// be rejected.
	var tooFar strings.Builder
	for i := 0; i < 128; i++ {
		tooFar.WriteString("NOP\n")
	}
	overflowSource := ".CODE\nstart:\nMOV AX,1\nCMP AX,1\nJNZ target\n" + tooFar.String() + "target:\nHLT\nEND start\n"
	c2 := newTestCPU()
	asm2 := NewAssembler(c2)
	err := asm2.Load(overflowSource)
	assert(t, err != nil, "a +128 rel8 displacement should be rejected")
	asmErr, ok := err.(*AssemblerError)
	assert(t, ok, "expected *AssemblerError, got %T", err)
	assert(t, asmErr.Kind == AsmOverflowError, "expected AsmOverflowError, got %v", asmErr.Kind)
}

// PUSH/POP have no segment-register encoding; the engine implements none,
// so the assembler must reject them rather than miscompiling to whatever
// reg16Code's zero-value default happens to name.
func TestPushPopRejectSegmentRegisters(t *testing.T) {
	for _, mnemonic := range []string{"PUSH", "POP"} {
		source := ".CODE\nstart:\n" + mnemonic + " CS\nHLT\nEND start\n"
		c := newTestCPU()
		asm := NewAssembler(c)
		err := asm.Load(source)
		assert(t, err != nil, "%s CS should be rejected", mnemonic)
		asmErr, ok := err.(*AssemblerError)
		assert(t, ok, "%s CS: expected *AssemblerError, got %T", mnemonic, err)
		assert(t, asmErr.Kind == AsmSemanticError, "%s CS: expected AsmSemanticError, got %v", mnemonic, asmErr.Kind)
	}
}

// RETF must emit the far-return opcodes, distinct from RET/RETN's near
// form, even though all three reach the same encoder.
func TestRetfEmitsFarReturnOpcode(t *testing.T) {
	c := newTestCPU()
	asm := NewAssembler(c)
	source := ".CODE\nstart:\nRETF\nEND start\n"
	assert(t, asm.Load(source) == nil, "assembler Load failed")
	b, err := c.Memory().ReadByte(entryPhysicalAddress(c))
	assert(t, err == nil, "ReadByte failed: %v", err)
	assert(t, b == 0xCB, "RETF encoded opcode = %#x, want 0xCB", b)
}

// entryPhysicalAddress returns the physical address CS:IP names right
// after Load, i.e. the program's first instruction byte.
func entryPhysicalAddress(c *CPU) int {
	return GetPhysicalAddress(c.GetRegister(CS), c.GetRegister(IP))
}

// A bare .MODEL with no memory-model name must surface as a structured
// parse error, not panic on an empty Fields() slice.
func TestModelDirectiveWithoutOperandIsParseError(t *testing.T) {
	c := newTestCPU()
	asm := NewAssembler(c)
	err := asm.Load(".MODEL\n.CODE\nstart:\nHLT\nEND start\n")
	assert(t, err != nil, "bare .MODEL should be rejected")
	asmErr, ok := err.(*AssemblerError)
	assert(t, ok, "expected *AssemblerError, got %T", err)
	assert(t, asmErr.Kind == AsmParseError, "expected AsmParseError, got %v", asmErr.Kind)
}
