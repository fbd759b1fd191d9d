package vm

// segmentBases holds the three deterministic, non-overlapping physical
// base addresses a memory model assigns to CODE/DATA/STACK, per spec.md
// §4.4.
type segmentBases struct {
	code, data, stack int
}

// memoryModels mirrors original_source/assembler.py's per-model base
// table: SMALL keeps the documented 0x100/0x200/0x300 layout, the larger
// models distribute by 0x1000.
var memoryModels = map[string]segmentBases{
	"TINY":    {0x0100, 0x0100, 0x0100},
	"SMALL":   {0x0100, 0x0200, 0x0300},
	"MEDIUM":  {0x1000, 0x2000, 0x3000},
	"COMPACT": {0x0100, 0x1000, 0x2000},
	"LARGE":   {0x1000, 0x2000, 0x3000},
	"HUGE":    {0x1000, 0x2000, 0x3000},
}

const defaultMemoryModel = "SMALL"

// section identifies which of the three segments an assembler location
// counter and emitted bytes belong to.
type section int

const (
	sectionCode section = iota
	sectionData
	sectionStack
)
