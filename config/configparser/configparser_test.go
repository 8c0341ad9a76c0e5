package configparser

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/armrt/armrt/decode"
	"github.com/armrt/armrt/optimize"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	dir := t.TempDir()
	name := filepath.Join(dir, "armrt.cfg")
	if err := os.WriteFile(name, []byte(body), 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	return name
}

func TestLoadConfigFileParsesCoreDirectives(t *testing.T) {
	name := writeConfig(t, "# comment line\n"+
		"cpu ARM946E-S\n"+
		"memory 64M\n"+
		"tcm 16K\n"+
		"translate maxinstrs=32\n"+
		"optimizer on\n"+
		"jit on,codesize=1M\n"+
		"debugfile trace.log\n"+
		"debug dispatch,cache\n")

	var s Settings
	if err := LoadConfigFile(name, &s); err != nil {
		t.Fatalf("LoadConfigFile: %v", err)
	}

	if s.CPUModel != "ARM946E-S" || s.Arch != decode.ARMv5TE {
		t.Fatalf("CPUModel/Arch = %q/%v, want ARM946E-S/ARMv5TE", s.CPUModel, s.Arch)
	}
	if s.MemorySize != 64*1024*1024 {
		t.Fatalf("MemorySize = %d, want 64M", s.MemorySize)
	}
	if s.TCMSize != 16*1024 {
		t.Fatalf("TCMSize = %d, want 16K", s.TCMSize)
	}
	if s.MaxInstrs != 32 {
		t.Fatalf("MaxInstrs = %d, want 32", s.MaxInstrs)
	}
	if !s.EnableOptimizer || !s.EnableJIT {
		t.Fatalf("EnableOptimizer/EnableJIT = %v/%v, want true/true", s.EnableOptimizer, s.EnableJIT)
	}
	if s.JITCodeSize != 1024*1024 {
		t.Fatalf("JITCodeSize = %d, want 1M", s.JITCodeSize)
	}
	if s.DebugFile != "trace.log" {
		t.Fatalf("DebugFile = %q, want trace.log", s.DebugFile)
	}
	if len(s.DebugMask) != 2 || s.DebugMask[0] != "dispatch" || s.DebugMask[1] != "cache" {
		t.Fatalf("DebugMask = %v, want [dispatch cache]", s.DebugMask)
	}
}

func TestLoadConfigFileParsesOptimizerPassToggles(t *testing.T) {
	name := writeConfig(t, "cpu ARM7TDMI\n"+
		"optimizer on,constprop=off,deadreg,bitwise=off,maxiter=5\n")

	var s Settings
	if err := LoadConfigFile(name, &s); err != nil {
		t.Fatalf("LoadConfigFile: %v", err)
	}

	want := optimize.DefaultOptions()
	want.ConstantPropagation = false
	want.BitwiseCoalescence = false
	want.MaxIterations = 5
	if s.Optimizer != want {
		t.Fatalf("Optimizer = %+v, want %+v", s.Optimizer, want)
	}
}

func TestLoadConfigFileParsesJITLinkingAndBufferSizeOptions(t *testing.T) {
	name := writeConfig(t, "cpu ARM7TDMI\n"+
		"jit on,codesize=4M,initialcodesize=64K,link=off\n")

	var s Settings
	if err := LoadConfigFile(name, &s); err != nil {
		t.Fatalf("LoadConfigFile: %v", err)
	}

	if s.JITCodeSize != 4*1024*1024 {
		t.Fatalf("JITCodeSize = %d, want 4M", s.JITCodeSize)
	}
	if s.InitialCodeBufferSize != 64*1024 {
		t.Fatalf("InitialCodeBufferSize = %d, want 64K", s.InitialCodeBufferSize)
	}
	if !s.LinkingSet || s.EnableBlockLinking {
		t.Fatalf("LinkingSet/EnableBlockLinking = %v/%v, want true/false", s.LinkingSet, s.EnableBlockLinking)
	}
}

func TestLoadConfigFileJITOnDefaultsLinkingToTrue(t *testing.T) {
	name := writeConfig(t, "cpu ARM7TDMI\njit on\n")

	var s Settings
	if err := LoadConfigFile(name, &s); err != nil {
		t.Fatalf("LoadConfigFile: %v", err)
	}
	if !s.EnableBlockLinking {
		t.Fatalf("EnableBlockLinking = false, want true (jit's own default)")
	}
}

func TestLoadConfigFileRejectsUnknownDirective(t *testing.T) {
	name := writeConfig(t, "bogus value\n")
	var s Settings
	if err := LoadConfigFile(name, &s); err == nil {
		t.Fatalf("expected an error for an unknown directive")
	}
}

func TestLoadConfigFileRejectsUnknownCPUModel(t *testing.T) {
	name := writeConfig(t, "cpu ARM9999\n")
	var s Settings
	if err := LoadConfigFile(name, &s); err == nil {
		t.Fatalf("expected an error for an unknown cpu model")
	}
}

func TestLoadConfigFileIgnoresBlankAndCommentOnlyLines(t *testing.T) {
	name := writeConfig(t, "\n# just a comment\n   \ncpu ARM7TDMI\n")
	var s Settings
	if err := LoadConfigFile(name, &s); err != nil {
		t.Fatalf("LoadConfigFile: %v", err)
	}
	if s.CPUModel != "ARM7TDMI" || s.Arch != decode.ARMv4T {
		t.Fatalf("CPUModel/Arch = %q/%v, want ARM7TDMI/ARMv4T", s.CPUModel, s.Arch)
	}
}
