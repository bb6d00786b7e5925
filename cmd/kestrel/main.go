// Kestrel CLI - runs compiled Kestrel programs under budgeted, audited
// execution.
package main

import (
	"flag"
	"fmt"
	"os"

	"github.com/google/uuid"
	"github.com/tliron/commonlog"
	_ "github.com/tliron/commonlog/simple"

	"github.com/kestrelvm/kestrel/sched"
	"github.com/kestrelvm/kestrel/store"
	"github.com/kestrelvm/kestrel/vm"
	"github.com/kestrelvm/kestrel/vm/cap"
)

func main() {
	verbose := flag.Bool("v", false, "Verbose output")
	configPath := flag.String("config", "", "Path to kestrel.toml (defaults used when omitted)")
	dbPath := flag.String("db", "", "SQLite database for persist host calls and audit archive")
	auditPath := flag.String("audit", "", "Write the audit log export (canonical CBOR) to this file")
	snapshotPath := flag.String("snapshot", "", "Write the final machine snapshot to this file")
	disasm := flag.Bool("disasm", false, "Disassemble the program instead of running it")

	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: kestrel [options] program.kbc\n\n")
		fmt.Fprintf(os.Stderr, "Runs a compiled Kestrel program to completion under its configured budgets.\n\n")
		fmt.Fprintf(os.Stderr, "Options:\n")
		flag.PrintDefaults()
		fmt.Fprintf(os.Stderr, "\nExamples:\n")
		fmt.Fprintf(os.Stderr, "  kestrel prog.kbc                     # Run with default budgets\n")
		fmt.Fprintf(os.Stderr, "  kestrel -config kestrel.toml prog.kbc\n")
		fmt.Fprintf(os.Stderr, "  kestrel -db state.db -audit run.cbor prog.kbc\n")
		fmt.Fprintf(os.Stderr, "  kestrel -disasm prog.kbc             # Print the bytecode listing\n")
	}
	flag.Parse()

	if *verbose {
		commonlog.Configure(1, nil)
	} else {
		commonlog.Configure(0, nil)
	}

	if flag.NArg() != 1 {
		flag.Usage()
		os.Exit(2)
	}

	data, err := os.ReadFile(flag.Arg(0))
	if err != nil {
		fatalf("reading program: %v", err)
	}
	program, err := vm.UnmarshalProgram(data)
	if err != nil {
		fatalf("decoding program: %v", err)
	}

	if *disasm {
		disassemble(program)
		return
	}

	cfg := sched.DefaultConfig()
	if *configPath != "" {
		cfg, err = sched.LoadConfig(*configPath)
		if err != nil {
			fatalf("%v", err)
		}
	}

	var handler sched.HostHandler
	var db *store.Store
	if *dbPath != "" {
		db, err = store.Open(*dbPath)
		if err != nil {
			fatalf("opening store: %v", err)
		}
		defer db.Close()
		handler = store.NewHandler(db)
	} else {
		handler = store.NewHandler(nil)
	}

	result, err := sched.ExecuteActor(program, cfg, handler)
	if err != nil {
		fatalf("running program: %v", err)
	}

	if *verbose {
		fmt.Printf("steps=%d memory=%d ticks=%d audit=%d\n",
			result.Metrics.StepsUsed, result.Metrics.MemoryUsed,
			result.Metrics.Ticks, result.Metrics.AuditEntries)
	}

	if *snapshotPath != "" {
		if err := os.WriteFile(*snapshotPath, result.Snapshot, 0o644); err != nil {
			fatalf("writing snapshot: %v", err)
		}
	}

	export := &cap.Export{RunID: uuid.NewString(), Entries: result.Audit}
	if *auditPath != "" {
		data, err := cap.MarshalExport(export)
		if err != nil {
			fatalf("encoding audit export: %v", err)
		}
		if err := os.WriteFile(*auditPath, data, 0o644); err != nil {
			fatalf("writing audit export: %v", err)
		}
	}
	if db != nil {
		if err := db.ArchiveAudit(export); err != nil {
			fatalf("archiving audit: %v", err)
		}
	}

	if result.Err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", result.Err)
		os.Exit(1)
	}
	fmt.Println(formatValue(program, result.Value))
}

func disassemble(p *vm.Program) {
	for i, fn := range p.Functions {
		fmt.Printf("; function %d: %s (params=%d locals=%d)\n", i, fn.Name, fn.NumParams, fn.NumLocals)
		fmt.Print(vm.Disassemble(fn.Code))
		fmt.Println()
	}
}

// formatValue renders a value for the terminal. Heap handles print their
// arena offset; the CLI does not chase them.
func formatValue(p *vm.Program, v vm.Value) string {
	switch {
	case v.IsNil():
		return "nil"
	case v == vm.True:
		return "true"
	case v == vm.False:
		return "false"
	case v.IsSmallInt():
		return fmt.Sprintf("%d", v.SmallInt())
	case v.IsSymbol():
		if name := p.SymbolName(v); name != "" {
			return name
		}
		return fmt.Sprintf("#<symbol %d>", v.SymbolID())
	case v.IsPair():
		return fmt.Sprintf("#<pair @%d>", v.Handle())
	case v.IsRawHandle():
		return fmt.Sprintf("#<raw @%d>", v.Handle())
	case v.IsClosure():
		return fmt.Sprintf("#<closure @%d>", v.Handle())
	case v.IsActor():
		return fmt.Sprintf("#<actor %d>", v.ActorID())
	case v.IsCap():
		return fmt.Sprintf("#<cap %d:%d>", v.CapKind(), v.CapAmount())
	}
	return fmt.Sprintf("#<value %#x>", v.Bits())
}

func fatalf(format string, args ...any) {
	fmt.Fprintf(os.Stderr, "Error: "+format+"\n", args...)
	os.Exit(1)
}
