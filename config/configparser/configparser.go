/*
Package configparser reads an armrt configuration file and fills in a
Settings struct describing the guest CPU model and the translator/
optimizer/JIT knobs spec.md's recompiler is tuned by.

The line-oriented tokenizer (directive name, optional "=value", optional
comma-separated trailing options) is adapted from rcornwell-S370's
config/configparser, which parses the same shape of line for its device
config files; what changes is the grammar above the tokenizer. The
teacher's version dispatches each directive to a per-device-type create
callback registered from device packages' init() functions (an S/370
system is built from an open-ended list of peripherals); armrt's
settings are a small fixed set known up front, so LoadConfigFile
dispatches directly into a Settings struct instead of a registry.
*/
package configparser

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"unicode"

	"github.com/armrt/armrt/decode"
	"github.com/armrt/armrt/optimize"
)

// Option is one comma-separated trailing value on a directive line, e.g.
// the "maxinstrs=32" in "translate maxinstrs=32".
type Option struct {
	Name     string
	EqualOpt string
}

// Settings holds every value a configuration file can set. Zero values
// mean "use the recompiler's own default". LoadConfigFile fills in
// defaults only for a directive the file contains (an "optimizer" line
// starts from optimize.DefaultOptions(), a "jit" line turns block linking
// on), so callers that construct a Settings without loading a file still
// get sensible zero-value behavior from whatever consumes it.
type Settings struct {
	CPUModel string // "ARM7TDMI" or "ARM946E-S"
	Arch     decode.Arch

	MaxInstrs       int
	EnableOptimizer bool
	EnableJIT       bool
	JITCodeSize     int

	// Optimizer holds spec.md §6's nine optimizer.passes.* toggles plus
	// optimizer.max_iterations. Left at its zero value (every toggle
	// false), the recompiler falls back to optimize.DefaultOptions().
	Optimizer optimize.Options

	// EnableBlockLinking mirrors compiler.enable_block_linking (spec.md
	// §6, default true); LinkingSet records whether a config file actually
	// set it, since its "on" default can't be told apart from an unset zero
	// value otherwise.
	EnableBlockLinking    bool
	LinkingSet            bool
	InitialCodeBufferSize uint32 // bytes; 0 means codebuf.DefaultSize

	TCMSize    uint32 // bytes, 0 disables TCM
	MemorySize uint32 // guest address space size in bytes

	LogFile   string
	DebugFile string
	DebugMask []string // names resolved against util/debug's Flag constants by the caller
}

// DefaultMaxInstrs mirrors translate.DefaultMaxInstrs so a Settings built
// without a config file still behaves the same as one that set it
// explicitly to the translator's own default.
const DefaultMaxInstrs = 64

var lineNumber int

// LoadConfigFile reads name and applies every directive line to s in
// order; later directives override earlier ones for the same field.
func LoadConfigFile(name string, s *Settings) error {
	file, err := os.Open(name)
	if err != nil {
		return err
	}
	defer file.Close()

	lineNumber = 0
	reader := bufio.NewReader(file)
	for {
		line := optionLine{}
		var rerr error
		line.line, rerr = reader.ReadString('\n')
		lineNumber++
		if len(line.line) == 0 && rerr != nil {
			if errors.Is(rerr, io.EOF) {
				break
			}
			return rerr
		}
		if err := line.apply(s); err != nil {
			return err
		}
	}
	return nil
}

type optionLine struct {
	line string
	pos  int
}

func (l *optionLine) skipSpace() {
	for l.pos < len(l.line) && unicode.IsSpace(rune(l.line[l.pos])) {
		l.pos++
	}
}

func (l *optionLine) isEOL() bool {
	return l.pos >= len(l.line) || l.line[l.pos] == '#'
}

func (l *optionLine) getName() string {
	start := l.pos
	for l.pos < len(l.line) {
		by := l.line[l.pos]
		if unicode.IsLetter(rune(by)) || unicode.IsNumber(rune(by)) || by == '-' || by == '_' || by == '.' || by == '/' {
			l.pos++
			continue
		}
		break
	}
	return l.line[start:l.pos]
}

// apply parses one directive line ("<name> <value> [,<opt>[=<val>]]*", or
// "<name> <opt>=<val> [,<opt>[=<val>]]*" when the first token is an option)
// and writes the parsed value into s.
func (l *optionLine) apply(s *Settings) error {
	l.skipSpace()
	if l.isEOL() {
		return nil
	}

	directive := strings.ToUpper(l.getName())
	l.skipSpace()
	value := l.getName()

	var opts []Option
	if l.pos < len(l.line) && l.line[l.pos] == '=' {
		// "<name> <opt>=<val>": the first token is itself an option.
		l.pos++
		opts = append(opts, Option{Name: value, EqualOpt: l.getName()})
		value = ""
	}
	for {
		l.skipSpace()
		if l.isEOL() || l.pos >= len(l.line) || l.line[l.pos] != ',' {
			break
		}
		l.pos++
		l.skipSpace()
		name := l.getName()
		opt := Option{Name: name}
		if l.pos < len(l.line) && l.line[l.pos] == '=' {
			l.pos++
			opt.EqualOpt = l.getName()
		}
		opts = append(opts, opt)
	}

	switch directive {
	case "CPU":
		return applyCPUModel(s, value)
	case "MEMORY":
		n, err := parseSize(value)
		if err != nil {
			return lineErr("memory", err)
		}
		s.MemorySize = n
	case "TCM":
		n, err := parseSize(value)
		if err != nil {
			return lineErr("tcm", err)
		}
		s.TCMSize = n
	case "TRANSLATE":
		for _, o := range opts {
			if strings.EqualFold(o.Name, "MAXINSTRS") {
				n, err := strconv.Atoi(o.EqualOpt)
				if err != nil {
					return lineErr("translate maxinstrs", err)
				}
				s.MaxInstrs = n
			}
		}
	case "OPTIMIZER":
		s.EnableOptimizer = strings.EqualFold(value, "on")
		s.Optimizer = optimize.DefaultOptions()
		for _, o := range opts {
			switch strings.ToUpper(o.Name) {
			case "CONSTPROP":
				s.Optimizer.ConstantPropagation = optionOn(o)
			case "DEADREG":
				s.Optimizer.DeadRegisterStoreElimination = optionOn(o)
			case "DEADSTATE":
				s.Optimizer.DeadStateStoreElimination = optionOn(o)
			case "DEADHOSTFLAG":
				s.Optimizer.DeadHostFlagStoreElimination = optionOn(o)
			case "DEADFLAGVAL":
				s.Optimizer.DeadFlagValueStoreElimination = optionOn(o)
			case "DEADVAR":
				s.Optimizer.DeadVariableStoreElimination = optionOn(o)
			case "BITWISE":
				s.Optimizer.BitwiseCoalescence = optionOn(o)
			case "ARITH":
				s.Optimizer.ArithmeticCoalescence = optionOn(o)
			case "HOSTFLAGS":
				s.Optimizer.HostFlagsCoalescence = optionOn(o)
			case "MAXITER":
				n, err := strconv.Atoi(o.EqualOpt)
				if err != nil {
					return lineErr("optimizer maxiter", err)
				}
				s.Optimizer.MaxIterations = n
			}
		}
	case "JIT":
		s.EnableJIT = strings.EqualFold(value, "on")
		s.EnableBlockLinking = true
		for _, o := range opts {
			switch strings.ToUpper(o.Name) {
			case "CODESIZE":
				n, err := parseSize(o.EqualOpt)
				if err != nil {
					return lineErr("jit codesize", err)
				}
				s.JITCodeSize = int(n)
			case "INITIALCODESIZE":
				n, err := parseSize(o.EqualOpt)
				if err != nil {
					return lineErr("jit initialcodesize", err)
				}
				s.InitialCodeBufferSize = n
			case "LINK":
				s.EnableBlockLinking = strings.EqualFold(o.EqualOpt, "on")
				s.LinkingSet = true
			}
		}
	case "LOGFILE":
		s.LogFile = value
	case "DEBUGFILE":
		s.DebugFile = value
	case "DEBUG":
		s.DebugMask = append(s.DebugMask, value)
		for _, o := range opts {
			s.DebugMask = append(s.DebugMask, o.Name)
		}
	default:
		return fmt.Errorf("configparser: unknown directive %q, line %d", directive, lineNumber)
	}
	return nil
}

// optionOn reports whether a comma-separated pass toggle (e.g.
// "CONSTPROP=off") is on; a bare name with no "=value" part (EqualOpt
// empty) counts as on.
func optionOn(o Option) bool {
	if o.EqualOpt == "" {
		return true
	}
	return !strings.EqualFold(o.EqualOpt, "off")
}

func applyCPUModel(s *Settings, value string) error {
	switch strings.ToUpper(value) {
	case "ARM7TDMI":
		s.CPUModel = "ARM7TDMI"
		s.Arch = decode.ARMv4T
	case "ARM946E-S", "ARM946ES":
		s.CPUModel = "ARM946E-S"
		s.Arch = decode.ARMv5TE
	default:
		return fmt.Errorf("configparser: unknown cpu model %q, line %d", value, lineNumber)
	}
	return nil
}

// parseSize accepts a plain decimal byte count or a K/M-suffixed one
// (e.g. "64K", "16M"), the same suffix convention rcornwell-S370's
// address-field grammar documents for its own config file format.
func parseSize(value string) (uint32, error) {
	if value == "" {
		return 0, errors.New("missing size value")
	}
	mult := uint64(1)
	switch value[len(value)-1] {
	case 'K', 'k':
		mult = 1024
		value = value[:len(value)-1]
	case 'M', 'm':
		mult = 1024 * 1024
		value = value[:len(value)-1]
	}
	n, err := strconv.ParseUint(value, 10, 32)
	if err != nil {
		return 0, err
	}
	return uint32(n * mult), nil
}

func lineErr(what string, err error) error {
	return fmt.Errorf("configparser: %s: %w, line %d", what, err, lineNumber)
}
