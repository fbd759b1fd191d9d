package vm

import "math/bits"

// width is the operand width in bits an arithmetic/logical operation is
// performed at: 8 for byte forms, 16 for word forms.
type width int

const (
	width8  width = 8
	width16 width = 16
)

func (w width) mask() uint32 {
	if w == width8 {
		return 0xFF
	}
	return 0xFFFF
}

func (w width) signBit() uint32 {
	if w == width8 {
		return 0x80
	}
	return 0x8000
}

// parity reports whether the low byte of v has even parity (spec.md §4.3:
// PF = 1 when the low byte of the result has even parity).
func parity(v uint32) bool {
	return bits.OnesCount8(byte(v))%2 == 0
}

// setFlagsAdd applies the standard 8086 flag-update rule for an addition
// x + y = full (unmasked, as computed in at-least-32-bit arithmetic),
// masked result r, at width w. Grounded on the mask/msb carry and overflow
// formulas used for ADD/ADC/INC-style operations.
func (c *CPU) setFlagsAdd(x, y, full uint32, w width) {
	r := full & w.mask()
	c.SetFlag(FlagCF, full > w.mask())
	c.SetFlag(FlagZF, r == 0)
	c.SetFlag(FlagSF, r&w.signBit() != 0)
	c.SetFlag(FlagPF, parity(r))
	c.SetFlag(FlagAF, (x&0xF)+(y&0xF) > 0xF)
	sameOperandSign := (x^y)&w.signBit() == 0
	resultDiffers := (x^r)&w.signBit() != 0
	c.SetFlag(FlagOF, sameOperandSign && resultDiffers)
}

// setFlagsSub applies the standard 8086 flag-update rule for a subtraction
// x - y, masked result r, at width w. Used by SUB/SBB/CMP/DEC-style
// operations.
func (c *CPU) setFlagsSub(x, y uint32, w width) uint32 {
	xm, ym := x&w.mask(), y&w.mask()
	full := (xm - ym) & 0xFFFFFFFF
	r := full & w.mask()
	c.SetFlag(FlagCF, xm < ym)
	c.SetFlag(FlagZF, r == 0)
	c.SetFlag(FlagSF, r&w.signBit() != 0)
	c.SetFlag(FlagPF, parity(r))
	c.SetFlag(FlagAF, (xm&0xF) < (ym&0xF))
	differSign := (xm^ym)&w.signBit() != 0
	resultDiffersFromX := (xm^r)&w.signBit() != 0
	c.SetFlag(FlagOF, differSign && resultDiffersFromX)
	return r
}

// setFlagsLogical applies the AND/OR/XOR/TEST flag-update rule: CF and OF
// are cleared, SF/ZF/PF come from the result, AF is left undefined (zeroed
// here, as the spec permits).
func (c *CPU) setFlagsLogical(r uint32, w width) {
	rm := r & w.mask()
	c.SetFlag(FlagCF, false)
	c.SetFlag(FlagOF, false)
	c.SetFlag(FlagZF, rm == 0)
	c.SetFlag(FlagSF, rm&w.signBit() != 0)
	c.SetFlag(FlagPF, parity(rm))
	c.SetFlag(FlagAF, false)
}

// setFlagsInc applies INC's flag-update rule: CF is untouched; OF is set
// only when crossing signBit-1 -> signBit (e.g. 0x7FFF -> 0x8000 at width
// 16).
func (c *CPU) setFlagsInc(x uint32, w width) {
	full := x + 1
	r := full & w.mask()
	c.SetFlag(FlagZF, r == 0)
	c.SetFlag(FlagSF, r&w.signBit() != 0)
	c.SetFlag(FlagPF, parity(r))
	c.SetFlag(FlagAF, (x&0xF)+1 > 0xF)
	c.SetFlag(FlagOF, (x&w.mask()) == w.signBit()-1)
}

// setFlagsDec applies DEC's flag-update rule: CF is untouched; OF is set
// only when crossing signBit -> signBit-1 (e.g. 0x8000 -> 0x7FFF at width
// 16).
func (c *CPU) setFlagsDec(x uint32, w width) {
	full := x - 1
	r := full & w.mask()
	c.SetFlag(FlagZF, r == 0)
	c.SetFlag(FlagSF, r&w.signBit() != 0)
	c.SetFlag(FlagPF, parity(r))
	c.SetFlag(FlagAF, x&0xF == 0)
	c.SetFlag(FlagOF, (x&w.mask()) == w.signBit())
}
