// Package main provides the thumbm0 command, an assembler and disassembler
// for the ARM Thumb instruction subset of Cortex-M0 class cores.
package main

import (
	"encoding/binary"
	"flag"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/davecgh/go-spew/spew"
	"golang.org/x/term"

	"github.com/sarchlab/thumbm0/asm"
	"github.com/sarchlab/thumbm0/config"
	"github.com/sarchlab/thumbm0/disasm"
	"github.com/sarchlab/thumbm0/insts"
	"github.com/sarchlab/thumbm0/loader"
)

var (
	configPath = flag.String("config", "", "Path to configuration JSON file")
	baseAddr   = flag.String("base", "", "Load address of raw images (default 0x08000000)")
	showAddr   = flag.Bool("addr", false, "Show address and halfword columns in listings")
	fixBranch  = flag.Bool("fix", true, "Rewrite in-range branch targets as labels")
	labels     = flag.Bool("labels", true, "Resolve labels when assembling")
	output     = flag.String("o", "", "Output file (default stdout)")
	verbose    = flag.Bool("v", false, "Verbose output")
)

func usage() {
	fmt.Fprintf(os.Stderr, "Usage: thumbm0 [options] asm <source.s>\n")
	fmt.Fprintf(os.Stderr, "       thumbm0 [options] dis <program.elf|image.bin>\n")
	fmt.Fprintf(os.Stderr, "       thumbm0 [options] table\n")
	fmt.Fprintf(os.Stderr, "\nOptions:\n")
	flag.PrintDefaults()
}

func main() {
	flag.Usage = usage
	flag.Parse()

	if flag.NArg() < 1 {
		usage()
		os.Exit(1)
	}

	cfg, err := loadConfig()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error loading config: %v\n", err)
		os.Exit(1)
	}

	cmd := flag.Arg(0)
	switch cmd {
	case "table":
		err = writeOutput(func(w io.Writer, _ bool) error {
			return dumpTable(w, *verbose)
		})
	case "asm", "dis":
		if flag.NArg() < 2 {
			usage()
			os.Exit(1)
		}
		path := flag.Arg(1)
		err = writeOutput(func(w io.Writer, raw bool) error {
			if cmd == "asm" {
				return assemble(cfg, path, w, raw)
			}
			return disassemble(cfg, path, w)
		})
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n\n", cmd)
		usage()
		os.Exit(1)
	}

	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// loadConfig reads the configuration file, if any, and applies the flags
// that were set explicitly on top of it.
func loadConfig() (*config.Config, error) {
	cfg := config.Default()
	if *configPath != "" {
		var err error
		cfg, err = config.Load(*configPath)
		if err != nil {
			return nil, err
		}
	}

	var baseErr error
	flag.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "base":
			cfg.BaseAddress, baseErr = config.ParseAddress(*baseAddr)
		case "addr":
			cfg.ShowAddresses = *showAddr
		case "fix":
			cfg.FixBranches = *fixBranch
		case "labels":
			cfg.ResolveLabels = *labels
		}
	})
	if baseErr != nil {
		return nil, baseErr
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// writeOutput runs fn against the -o file or stdout. raw is true unless the
// destination is a terminal.
func writeOutput(fn func(w io.Writer, raw bool) error) error {
	if *output == "" {
		return fn(os.Stdout, !term.IsTerminal(int(os.Stdout.Fd())))
	}

	f, err := os.Create(*output)
	if err != nil {
		return fmt.Errorf("failed to create output file: %w", err)
	}

	if err := fn(f, true); err != nil {
		_ = f.Close()
		return err
	}

	return f.Close()
}

// assemble translates the source file at path. Raw output is the
// little-endian image; otherwise one "address: halfword" line per halfword.
func assemble(cfg *config.Config, path string, w io.Writer, raw bool) error {
	src, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read source: %w", err)
	}

	opts := []asm.Option{asm.WithLabels(cfg.ResolveLabels)}
	if *verbose {
		opts = append(opts, asm.WithTrace(os.Stderr))
	}

	// Lines that failed contribute no bytes; the rest is still written.
	code, asmErr := asm.New(opts...).Assemble(string(src))

	if raw {
		_, err = w.Write(code)
	} else {
		err = writeHex(w, uint32(cfg.BaseAddress), code)
	}
	if err != nil {
		return err
	}

	return asmErr
}

func writeHex(w io.Writer, base uint32, code []byte) error {
	for off := 0; off+1 < len(code); off += 2 {
		hw := binary.LittleEndian.Uint16(code[off:])
		_, err := fmt.Fprintf(w, "%s: %s\n",
			insts.Hex32(base+uint32(off)), insts.Hex16(uint32(hw)))
		if err != nil {
			return err
		}
	}
	return nil
}

// disassemble lists the program at path. ELF symbols are added to the
// configured name table.
func disassemble(cfg *config.Config, path string, w io.Writer) error {
	prog, err := loader.LoadFile(path, uint32(cfg.BaseAddress))
	if err != nil {
		return err
	}

	base, code, err := prog.Image()
	if err != nil {
		return err
	}

	if *verbose {
		fmt.Fprintf(os.Stderr, "Loaded: %s\n", path)
		fmt.Fprintf(os.Stderr, "Entry point: 0x%s\n", insts.Hex32(prog.EntryPoint))
		fmt.Fprintf(os.Stderr, "Segments: %d\n", len(prog.Segments))
		fmt.Fprintf(os.Stderr, "Symbols: %d\n", len(prog.Symbols))
	}

	cfg = cfg.Clone()
	cfg.AddNames(prog.Symbols)
	names, err := cfg.Names()
	if err != nil {
		return err
	}

	d := disasm.New(
		disasm.WithBaseAddress(base),
		disasm.WithAddresses(cfg.ShowAddresses),
		disasm.WithBranchFix(cfg.FixBranches),
		disasm.WithNames(names),
	)

	listing := d.Disassemble(code)
	if listing == "" {
		return nil
	}

	_, err = io.WriteString(w, listing+"\n")
	return err
}

// dumpTable prints every leaf of the instruction table with the operand
// signatures it encodes. detailed dumps the whole decode tree instead.
func dumpTable(w io.Writer, detailed bool) error {
	set, err := insts.NewInstructionSet()
	if err != nil {
		return err
	}

	if detailed {
		dumper := spew.ConfigState{
			Indent:                  "  ",
			DisablePointerAddresses: true,
			SortKeys:                true,
		}
		dumper.Fdump(w, set.Root)
		return nil
	}

	for _, l := range set.Leaves() {
		sigs := make([]string, 0, len(l.Encodings))
		for _, k := range l.Encodings {
			sigs = append(sigs, fmt.Sprintf("%s/%q", k.Mnemonic, k.Signature))
		}
		_, err := fmt.Fprintf(w, "%s  %-5s %-12s %s\n",
			insts.Hex16(uint32(l.Prefix)), l.Mnemonic, l.Template, strings.Join(sigs, " "))
		if err != nil {
			return err
		}
	}

	return nil
}
