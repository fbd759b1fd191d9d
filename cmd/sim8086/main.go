package main

import (
	"flag"
	"fmt"
	"os"
	"strconv"
	"strings"

	"sim8086/vm"
)

var (
	debugMode  = flag.Bool("debug", false, "enter single-step debug mode")
	maxSteps   = flag.Int("max", 0, "maximum instructions to execute (0 = unlimited)")
	breakFlags breakpointList
)

// breakpointList accumulates repeated -break flags, each a hex or decimal
// physical address.
type breakpointList []int

func (b *breakpointList) String() string {
	parts := make([]string, len(*b))
	for i, v := range *b {
		parts[i] = fmt.Sprintf("0x%05X", v)
	}
	return strings.Join(parts, ",")
}

func (b *breakpointList) Set(s string) error {
	s = strings.TrimSpace(s)
	var v int64
	var err error
	if strings.HasPrefix(strings.ToLower(s), "0x") {
		v, err = strconv.ParseInt(s[2:], 16, 32)
	} else {
		v, err = strconv.ParseInt(s, 10, 32)
	}
	if err != nil {
		return fmt.Errorf("bad breakpoint address %q: %w", s, err)
	}
	*b = append(*b, int(v))
	return nil
}

func init() {
	flag.Var(&breakFlags, "break", "breakpoint address (repeatable), hex (0x...) or decimal")
	flag.Parse()
}

func main() {
	args := flag.Args()
	if len(args) == 0 {
		fmt.Println("Usage: sim8086 [-debug] [-max N] [-break ADDR ...] <source file>")
		return
	}

	source, err := os.ReadFile(args[0])
	if err != nil {
		fmt.Println(err)
		os.Exit(1)
	}

	mem := vm.NewMemory(vm.DefaultMemorySize)
	cpu := vm.NewCPU(mem)
	cpu.SetOutputSink(os.Stdout)

	asm := vm.NewAssembler(cpu)
	if err := asm.Load(string(source)); err != nil {
		fmt.Println(err)
		os.Exit(1)
	}

	if *debugMode {
		dbg := vm.NewDebugger(cpu)
		for _, addr := range breakFlags {
			dbg.SetBreakpoint(addr)
		}
		runDebug(cpu, dbg)
		return
	}

	if err := cpu.Run(*maxSteps); err != nil {
		fmt.Println(err)
		os.Exit(1)
	}
	printState(cpu)
}

// runDebug alternates RunToBreakpoint/single-step reporting until the CPU
// halts or fails, printing register state whenever it stops.
func runDebug(cpu *vm.CPU, dbg *vm.Debugger) {
	for {
		hit, err := dbg.RunToBreakpoint(*maxSteps)
		if err != nil {
			fmt.Println(err)
			return
		}
		printState(cpu)
		if cpu.Halted() {
			return
		}
		if hit {
			fmt.Printf("breakpoint at CS:IP=%04X:%04X\n", cpu.GetRegister(vm.CS), cpu.GetRegister(vm.IP))
		}
		if !hit {
			return
		}
		if err := dbg.StepInstruction(); err != nil {
			if err == vm.ErrHalted {
				return
			}
			fmt.Println(err)
			return
		}
	}
}

func printState(cpu *vm.CPU) {
	regs := cpu.RegisterState()
	fmt.Printf("AX=%04X BX=%04X CX=%04X DX=%04X SP=%04X BP=%04X SI=%04X DI=%04X\n",
		regs["AX"], regs["BX"], regs["CX"], regs["DX"], regs["SP"], regs["BP"], regs["SI"], regs["DI"])
	fmt.Printf("CS=%04X DS=%04X SS=%04X ES=%04X IP=%04X\n",
		regs["CS"], regs["DS"], regs["SS"], regs["ES"], regs["IP"])
	flags := cpu.FlagState()
	fmt.Printf("flags: CF=%d PF=%d AF=%d ZF=%d SF=%d TF=%d IF=%d DF=%d OF=%d\n",
		flags["CF"], flags["PF"], flags["AF"], flags["ZF"], flags["SF"], flags["TF"], flags["IF"], flags["DF"], flags["OF"])
}
