/*
Command armrt loads a configuration file, builds a guest machine and
dispatcher, and drops into an interactive console — or, in batch mode,
just runs the guest to completion.

Grounded on rcornwell-S370's root main.go: the same getopt flag set
shape (config file, log file, help), the same slog+util/logger setup,
the same os/signal SIGINT/SIGTERM shutdown select loop. What changes is
what gets built from the parsed config — a core.NewCPU/sys_channel/
telnet stack there, a memory.Flat-backed interp.Machine and
recompiler.Dispatcher here — and the command surface, which is
console.Console instead of command/parser's device-oriented grammar.
*/
package main

import (
	"log/slog"
	"os"
	"os/signal"
	"strconv"
	"syscall"

	getopt "github.com/pborman/getopt/v2"

	"github.com/armrt/armrt/backend/interp"
	"github.com/armrt/armrt/config/configparser"
	"github.com/armrt/armrt/console"
	"github.com/armrt/armrt/cp15"
	"github.com/armrt/armrt/decode"
	"github.com/armrt/armrt/memory"
	"github.com/armrt/armrt/recompiler"
	"github.com/armrt/armrt/state"
	"github.com/armrt/armrt/translate"
	"github.com/armrt/armrt/util/debug"
	"github.com/armrt/armrt/util/logger"
)

var log *slog.Logger

func main() {
	optConfig := getopt.StringLong("config", 'c', "armrt.cfg", "Configuration file")
	optLogFile := getopt.StringLong("log", 'l', "", "Log file")
	optBatch := getopt.BoolLong("batch", 'b', "Run without a console, to completion or a cycle budget")
	optCycles := getopt.StringLong("cycles", 0, "", "Cycle budget for --batch")
	optDebug := getopt.BoolLong("debug", 'd', "Mirror sub-warn log records to stderr")
	optHelp := getopt.BoolLong("help", 'h', "Help")
	getopt.Parse()

	if *optHelp {
		getopt.Usage()
		os.Exit(0)
	}

	var file *os.File
	if *optLogFile != "" {
		var err error
		file, err = os.Create(*optLogFile)
		if err != nil {
			file = os.Stderr
		}
	} else {
		file = os.Stderr
	}
	programLevel := new(slog.LevelVar)
	programLevel.Set(slog.LevelInfo)
	log = slog.New(logger.NewHandler(file, &slog.HandlerOptions{Level: programLevel}, *optDebug))
	slog.SetDefault(log)

	log.Info("armrt started")

	if _, err := os.Stat(*optConfig); os.IsNotExist(err) {
		log.Error("configuration file not found", "file", *optConfig)
		os.Exit(1)
	}

	var settings configparser.Settings
	settings.MaxInstrs = configparser.DefaultMaxInstrs
	if err := configparser.LoadConfigFile(*optConfig, &settings); err != nil {
		log.Error(err.Error())
		os.Exit(1)
	}

	if settings.DebugFile != "" {
		if f, err := os.Create(settings.DebugFile); err == nil {
			debug.SetFile(f)
			defer f.Close()
		}
	}
	var mask debug.Flag
	for _, name := range settings.DebugMask {
		switch name {
		case "translate":
			mask |= debug.FlagTranslate
		case "optimize":
			mask |= debug.FlagOptimize
		case "jit":
			mask |= debug.FlagJIT
		case "dispatch":
			mask |= debug.FlagDispatch
		case "cache":
			mask |= debug.FlagCache
		}
	}
	debug.SetMask(mask)

	memSize := settings.MemorySize
	if memSize == 0 {
		memSize = 64 * 1024 * 1024
	}
	var mem memory.System = memory.NewFlat(memSize)

	guestState := state.New()

	var cops translate.Coprocessors
	if settings.Arch == decode.ARMv5TE {
		sc := cp15.NewSystemControl(cp15.ArchV5TE, 0x946)
		cops[15] = sc
		if settings.TCMSize > 0 {
			sc.TCM.Configure(cp15.TCMConfig{
				ITCMSize: tcmSizeFor(settings.TCMSize),
				DTCMSize: tcmSizeFor(settings.TCMSize),
				DTCMBase: 0x00800000,
			})
			mem = cp15.NewTCMMemory(mem, &sc.TCM)
		}
	} else {
		cops[15] = cp15.Null{}
	}

	machine := &interp.Machine{State: guestState, Mem: mem, Cops: interp.Coprocessors(cops)}

	maxInstrs := settings.MaxInstrs
	if maxInstrs == 0 {
		maxInstrs = configparser.DefaultMaxInstrs
	}
	d := recompiler.New(machine, cops, recompiler.Options{
		Arch:            settings.Arch,
		MaxInstrs:       maxInstrs,
		EnableOptimizer: settings.EnableOptimizer,
		Optimizer:       settings.Optimizer,
	})
	if settings.EnableJIT {
		codeSize := settings.JITCodeSize
		if codeSize == 0 {
			codeSize = 4 * 1024 * 1024
		}
		enableLinking := true
		if settings.LinkingSet {
			enableLinking = settings.EnableBlockLinking
		}
		if err := d.EnableNative(codeSize, int(settings.InitialCodeBufferSize), enableLinking); err != nil {
			log.Warn("native compilation disabled", "error", err)
		}
	}

	if *optBatch {
		var cycles int64
		if *optCycles != "" {
			n, err := strconv.ParseInt(*optCycles, 10, 64)
			if err != nil {
				log.Error("invalid --cycles value", "value", *optCycles)
				os.Exit(1)
			}
			cycles = n
		}
		runBatch(d, cycles)
		return
	}

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	done := make(chan struct{})
	go func() {
		console.New(d, settings.Arch).Run()
		close(done)
	}()

	select {
	case <-sigChan:
		log.Info("got quit signal")
	case <-done:
	}

	log.Info("shutting down")
}

// tcmSizeFor maps a configured byte count onto the nearest cp15.TCMSize
// that does not exceed it, defaulting to the smallest supported region.
func tcmSizeFor(bytes uint32) cp15.TCMSize {
	sizes := []cp15.TCMSize{
		cp15.TCMSize1024KB, cp15.TCMSize512KB, cp15.TCMSize256KB, cp15.TCMSize128KB,
		cp15.TCMSize64KB, cp15.TCMSize32KB, cp15.TCMSize16KB, cp15.TCMSize8KB, cp15.TCMSize4KB,
	}
	for _, s := range sizes {
		if bytes >= s.Bytes() {
			return s
		}
	}
	return cp15.TCMSize4KB
}

func runBatch(d *recompiler.Dispatcher, cycles int64) {
	if cycles <= 0 {
		cycles = 1 << 30
	}
	spent, err := d.Run(cycles)
	if err != nil {
		log.Error("run stopped with error", "error", err, "cycles", spent)
		os.Exit(1)
	}
	log.Info("run complete", "cycles", spent)
}
