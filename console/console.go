/*
Package console provides an interactive front end over a
recompiler.Dispatcher: step or run the guest, inspect registers, set
breakpoints, disassemble guest memory and look at block-cache
occupancy.

Grounded on rcornwell-S370's command/reader.ConsoleReader, which wraps
github.com/peterh/liner in a prompt/read/dispatch loop and feeds every
line to command/parser.ProcessCommand. The liner wiring (NewLiner,
SetCtrlCAborts, SetCompleter, Prompt, AppendHistory, ErrPromptAborted
handling) carries over unchanged; the command grammar does not, since
the teacher's command/parser packages (commands.go, mem_commands.go)
are a large S/370 device/channel/memory-dump vocabulary with no ARM
equivalent. Console's command set is purpose-built for the recompiler
instead: step, run, regs, break, disasm, cache, quit.
*/
package console

import (
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strconv"
	"strings"

	"github.com/peterh/liner"

	"github.com/armrt/armrt/arm"
	"github.com/armrt/armrt/decode"
	"github.com/armrt/armrt/recompiler"
)

// Console drives a recompiler.Dispatcher from an interactive prompt.
type Console struct {
	Dispatcher *recompiler.Dispatcher
	Arch       decode.Arch

	breakpoints map[uint32]bool
}

// New builds a Console over an already-constructed Dispatcher.
func New(d *recompiler.Dispatcher, arch decode.Arch) *Console {
	return &Console{
		Dispatcher:  d,
		Arch:        arch,
		breakpoints: make(map[uint32]bool),
	}
}

var commandNames = []string{
	"step", "run", "regs", "break", "clear", "disasm", "cache", "help", "quit",
}

// Run reads and dispatches commands from stdin until the user quits or
// aborts with Ctrl-C/Ctrl-D.
func (c *Console) Run() {
	line := liner.NewLiner()
	defer line.Close()

	line.SetCtrlCAborts(true)
	line.SetCompleter(func(prefix string) []string {
		var out []string
		for _, name := range commandNames {
			if strings.HasPrefix(name, prefix) {
				out = append(out, name)
			}
		}
		return out
	})

	for {
		command, err := line.Prompt("armrt> ")
		if err == nil {
			line.AppendHistory(command)
			quit, perr := c.dispatch(command)
			if perr != nil {
				fmt.Println("error: " + perr.Error())
			}
			if quit {
				return
			}
			continue
		}

		if errors.Is(err, liner.ErrPromptAborted) {
			return
		}
		slog.Error("console: error reading line", "error", err)
		return
	}
}

// dispatch parses and executes one command line, reporting whether the
// console should exit.
func (c *Console) dispatch(line string) (bool, error) {
	fields := strings.Fields(line)
	if len(fields) == 0 {
		return false, nil
	}
	cmd, args := fields[0], fields[1:]

	switch cmd {
	case "step", "s":
		return false, c.cmdStep(args)
	case "run", "r":
		return false, c.cmdRun(args)
	case "regs", "reg":
		c.cmdRegs()
		return false, nil
	case "break", "b":
		return false, c.cmdBreak(args)
	case "clear":
		return false, c.cmdClear(args)
	case "disasm", "d":
		return false, c.cmdDisasm(args)
	case "cache":
		c.cmdCache()
		return false, nil
	case "help", "?":
		c.cmdHelp()
		return false, nil
	case "quit", "q", "exit":
		return true, nil
	default:
		return false, fmt.Errorf("unknown command %q (try \"help\")", cmd)
	}
}

func (c *Console) cmdStep(args []string) error {
	n := 1
	if len(args) > 0 {
		v, err := strconv.Atoi(args[0])
		if err != nil {
			return fmt.Errorf("step: %w", err)
		}
		n = v
	}
	for i := 0; i < n; i++ {
		if _, err := c.Dispatcher.Step(); err != nil {
			return err
		}
		if c.atBreakpoint() {
			fmt.Printf("breakpoint hit at 0x%08X\n", c.Dispatcher.Machine.State.PC())
			break
		}
	}
	c.cmdRegs()
	return nil
}

func (c *Console) cmdRun(args []string) error {
	budget := int64(1 << 30)
	if len(args) > 0 {
		v, err := strconv.ParseInt(args[0], 10, 64)
		if err != nil {
			return fmt.Errorf("run: %w", err)
		}
		budget = v
	}

	var spent int64
	for spent < budget {
		n, err := c.Dispatcher.Step()
		spent += int64(n)
		if err != nil {
			return err
		}
		if c.atBreakpoint() {
			fmt.Printf("breakpoint hit at 0x%08X\n", c.Dispatcher.Machine.State.PC())
			break
		}
		if c.Dispatcher.Machine.State.ExecState() != arm.Running {
			fmt.Println("guest stopped")
			break
		}
	}
	c.cmdRegs()
	return nil
}

func (c *Console) cmdRegs() {
	s := c.Dispatcher.Machine.State
	for i := arm.GPR(0); i <= arm.R15; i++ {
		fmt.Printf("r%-2d=%08X ", i, s.R(i))
		if i%4 == 3 {
			fmt.Println()
		}
	}
	fmt.Printf("cpsr=%08X mode=%02X thumb=%v\n", s.CPSR(), s.Mode(), s.Thumb())
}

func (c *Console) cmdBreak(args []string) error {
	if len(args) != 1 {
		return errors.New("usage: break <addr>")
	}
	addr, err := parseAddr(args[0])
	if err != nil {
		return fmt.Errorf("break: %w", err)
	}
	c.breakpoints[addr] = true
	fmt.Printf("breakpoint set at 0x%08X\n", addr)
	return nil
}

func (c *Console) cmdClear(args []string) error {
	if len(args) != 1 {
		return errors.New("usage: clear <addr>")
	}
	addr, err := parseAddr(args[0])
	if err != nil {
		return fmt.Errorf("clear: %w", err)
	}
	delete(c.breakpoints, addr)
	return nil
}

func (c *Console) atBreakpoint() bool {
	return c.breakpoints[c.Dispatcher.Machine.State.PC()]
}

func (c *Console) cmdDisasm(args []string) error {
	if len(args) < 1 {
		return errors.New("usage: disasm <addr> [count]")
	}
	addr, err := parseAddr(args[0])
	if err != nil {
		return fmt.Errorf("disasm: %w", err)
	}
	count := 8
	if len(args) > 1 {
		n, err := strconv.Atoi(args[1])
		if err != nil {
			return fmt.Errorf("disasm: %w", err)
		}
		count = n
	}

	thumb := c.Dispatcher.Machine.State.Thumb()
	mem := c.Dispatcher.Machine.Mem
	for i := 0; i < count; i++ {
		if thumb {
			word := mem.CodeReadHalf(addr)
			instr := decode.DecodeThumb(word, c.Arch)
			fmt.Printf("0x%08X: %04X  %s\n", addr, word, decode.Disassemble(instr))
			addr += instr.Length
		} else {
			word := mem.CodeReadWord(addr)
			instr := decode.DecodeARM(word, c.Arch)
			fmt.Printf("0x%08X: %08X  %s\n", addr, word, decode.Disassemble(instr))
			addr += 4
		}
	}
	return nil
}

func (c *Console) cmdCache() {
	st := c.Dispatcher.Stats()
	fmt.Printf("blocks translated=%d executed=%d compiled-native=%d irqs=%d cycles=%d\n",
		st.BlocksTranslated, st.BlocksExecuted, st.BlocksCompiledNative, st.IRQsTaken, st.Cycles)
	fmt.Printf("native blocks cached=%d\n", c.Dispatcher.NativeBlockCount())

	var addrs []uint32
	for addr := range c.breakpoints {
		addrs = append(addrs, addr)
	}
	sort.Slice(addrs, func(i, j int) bool { return addrs[i] < addrs[j] })
	for _, addr := range addrs {
		fmt.Printf("breakpoint 0x%08X\n", addr)
	}
}

func (c *Console) cmdHelp() {
	fmt.Println(`commands:
  step [n]         execute n blocks (default 1), print registers
  run [cycles]     run until the cycle budget is spent, a breakpoint hits, or the guest stops
  regs             print guest registers
  break <addr>     set a breakpoint at a guest address
  clear <addr>     remove a breakpoint
  disasm <addr> [n]  disassemble n instructions (default 8) starting at addr
  cache            print dispatcher and native-block-cache statistics
  quit             exit the console`)
}

func parseAddr(s string) (uint32, error) {
	s = strings.TrimPrefix(s, "0x")
	s = strings.TrimPrefix(s, "0X")
	n, err := strconv.ParseUint(s, 16, 32)
	if err != nil {
		return 0, err
	}
	return uint32(n), nil
}
