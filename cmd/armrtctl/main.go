/*
Command armrtctl is an offline companion to armrt: disassemble a raw
guest binary, or load a configuration and binary and run it headless,
reporting block-cache occupancy.

Grounded on oisee-z80-optimizer's cmd/z80opt/main.go: one cobra root
command with a handful of subcommands, each building its own *cobra.Command
with cobra/pflag-declared flags and a RunE closure, rather than the
single flat getopt flag set cmd/armrt uses — the two tools are deliberately
built on different CLI stacks (see SPEC_FULL.md's DOMAIN STACK) since
armrtctl's subcommand shape (disasm/run) matches z80opt's
(enumerate/target/verify/...) far better than a flat-flags tool would.
*/
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/armrt/armrt/backend/interp"
	"github.com/armrt/armrt/config/configparser"
	"github.com/armrt/armrt/cp15"
	"github.com/armrt/armrt/decode"
	"github.com/armrt/armrt/memory"
	"github.com/armrt/armrt/recompiler"
	"github.com/armrt/armrt/state"
	"github.com/armrt/armrt/translate"
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "armrtctl",
		Short: "armrt offline disassembler and cache-inspection tool",
	}

	rootCmd.AddCommand(newDisasmCmd(), newRunCmd())
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func newDisasmCmd() *cobra.Command {
	var arch string
	var thumb bool
	var base uint32

	cmd := &cobra.Command{
		Use:   "disasm [file]",
		Short: "Disassemble a flat ARM or Thumb binary image",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			data, err := os.ReadFile(args[0])
			if err != nil {
				return err
			}
			a, err := parseArch(arch)
			if err != nil {
				return err
			}
			return disasmBytes(data, a, thumb, base)
		},
	}
	cmd.Flags().StringVar(&arch, "arch", "armv4t", "Guest architecture: armv4t or armv5te")
	cmd.Flags().BoolVar(&thumb, "thumb", false, "Decode as Thumb (16-bit) instructions")
	cmd.Flags().Uint32Var(&base, "base", 0, "Base address of the image for printed addresses")
	return cmd
}

func disasmBytes(data []byte, arch decode.Arch, thumb bool, base uint32) error {
	addr := base
	if thumb {
		for i := 0; i+1 < len(data); {
			word := uint16(data[i]) | uint16(data[i+1])<<8
			instr := decode.DecodeThumb(word, arch)
			fmt.Printf("0x%08X: %04X  %s\n", addr, word, decode.Disassemble(instr))
			i += int(instr.Length)
			addr += instr.Length
		}
		return nil
	}
	for i := 0; i+3 < len(data); i += 4 {
		word := uint32(data[i]) | uint32(data[i+1])<<8 | uint32(data[i+2])<<16 | uint32(data[i+3])<<24
		instr := decode.DecodeARM(word, arch)
		fmt.Printf("0x%08X: %08X  %s\n", addr, word, decode.Disassemble(instr))
		addr += 4
	}
	return nil
}

func newRunCmd() *cobra.Command {
	var configFile string
	var cycles int64
	var jit bool

	cmd := &cobra.Command{
		Use:   "run [image]",
		Short: "Load a flat image at address 0 and run it headless, reporting cache statistics",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var settings configparser.Settings
			settings.MaxInstrs = configparser.DefaultMaxInstrs
			if configFile != "" {
				if err := configparser.LoadConfigFile(configFile, &settings); err != nil {
					return err
				}
			}

			data, err := os.ReadFile(args[0])
			if err != nil {
				return err
			}

			memSize := settings.MemorySize
			if memSize == 0 {
				memSize = 16 * 1024 * 1024
			}
			mem := memory.NewFlat(memSize)
			for i, b := range data {
				mem.WriteByte(uint32(i), b)
			}

			guestState := state.New()

			var cops translate.Coprocessors
			if settings.Arch == decode.ARMv5TE {
				cops[15] = cp15.NewSystemControl(cp15.ArchV5TE, 0x946)
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
			if jit {
				codeSize := settings.JITCodeSize
				if codeSize == 0 {
					codeSize = 4 * 1024 * 1024
				}
				enableLinking := true
				if settings.LinkingSet {
					enableLinking = settings.EnableBlockLinking
				}
				if err := d.EnableNative(codeSize, int(settings.InitialCodeBufferSize), enableLinking); err != nil {
					fmt.Fprintf(os.Stderr, "warning: native compilation disabled: %v\n", err)
				}
			}

			spent, err := d.Run(cycles)
			st := d.Stats()
			fmt.Printf("cycles=%d blocks-translated=%d blocks-executed=%d compiled-native=%d irqs=%d\n",
				spent, st.BlocksTranslated, st.BlocksExecuted, st.BlocksCompiledNative, st.IRQsTaken)
			if jit {
				fmt.Printf("native blocks cached=%d\n", d.NativeBlockCount())
			}
			return err
		},
	}
	cmd.Flags().StringVar(&configFile, "config", "", "Configuration file (optional; CLI defaults apply otherwise)")
	cmd.Flags().Int64Var(&cycles, "cycles", 1<<24, "Cycle budget")
	cmd.Flags().BoolVar(&jit, "jit", false, "Warm-compile every translated block through the native backend")
	return cmd
}

func parseArch(s string) (decode.Arch, error) {
	switch s {
	case "armv4t":
		return decode.ARMv4T, nil
	case "armv5te":
		return decode.ARMv5TE, nil
	default:
		return 0, fmt.Errorf("unknown --arch %q (want armv4t or armv5te)", s)
	}
}
