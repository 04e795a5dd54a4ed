// Package shell implements the interactive command loop described in
// spec.md §6.1, mirroring the original's parse_line/cmd_* dispatch
// but driving pkg/registry instead of forking child processes.
package shell

import (
	"bufio"
	"fmt"
	"io"
	"strings"

	"github.com/dustin/go-humanize"

	"github.com/spdsslg/backup-automation/pkg/registry"
)

// Shell reads commands from in and writes output to out, one line at
// a time, until `exit` is issued or in reaches EOF.
type Shell struct {
	reg *registry.Registry
	in  *bufio.Scanner
	out io.Writer
}

// New constructs a Shell bound to the given registry and I/O streams.
func New(reg *registry.Registry, in io.Reader, out io.Writer) *Shell {
	return &Shell{reg: reg, in: bufio.NewScanner(in), out: out}
}

// Run executes the read-dispatch loop until exit or EOF, printing the
// command list once at startup exactly as the original does.
func (s *Shell) Run() {
	s.printHelp()
	for s.in.Scan() {
		line := s.in.Text()
		if strings.TrimSpace(line) == "" {
			continue
		}

		args, err := ParseLine(line)
		if err != nil {
			fmt.Fprintln(s.out, err)
			continue
		}
		if len(args) == 0 {
			continue
		}

		if s.dispatch(args) {
			return
		}
	}
}

// dispatch executes one parsed command line, returning true if the
// shell should terminate.
func (s *Shell) dispatch(args []string) bool {
	switch args[0] {
	case "help":
		s.printHelp()
	case "list":
		s.cmdList()
	case "add":
		s.cmdAdd(args)
	case "end":
		s.cmdEnd(args)
	case "restore":
		s.cmdRestore(args)
	case "exit":
		s.reg.Shutdown()
		return true
	default:
		fmt.Fprintf(s.out, "unknown command: %s\n", args[0])
	}
	return false
}

func (s *Shell) printHelp() {
	fmt.Fprintln(s.out, "Commands:")
	fmt.Fprintln(s.out, "  add <source> <target1> [target2 ...]")
	fmt.Fprintln(s.out, "  end <source> <target1> [target2 ...]")
	fmt.Fprintln(s.out, "  list")
	fmt.Fprintln(s.out, "  restore <source> <target>")
	fmt.Fprintln(s.out, "  exit")
}

func (s *Shell) cmdList() {
	snapshots := s.reg.List()
	if len(snapshots) == 0 {
		fmt.Fprintln(s.out, "(no active backups)")
		return
	}
	for _, snap := range snapshots {
		id := snap.ID.String()[:8]
		if snap.Active {
			fmt.Fprintf(s.out, "[ACTIVE] id=%s src=%q dst=%q started=%s\n",
				id, snap.Src, snap.Dst, humanize.Time(snap.CreatedAt))
			continue
		}
		status := "ENDED"
		if snap.RunError != nil {
			status = "FAILED"
		}
		fmt.Fprintf(s.out, "[%s] id=%s src=%q dst=%q\n", status, id, snap.Src, snap.Dst)
	}
}

func (s *Shell) cmdAdd(args []string) {
	if len(args) < 3 {
		fmt.Fprintln(s.out, "usage: add <source> <target1> [target2 ...]")
		return
	}
	for _, result := range s.reg.Add(args[1], args[2:]) {
		if result.Err != nil {
			fmt.Fprintf(s.out, "add: %s: %v\n", result.Target, result.Err)
			continue
		}
		fmt.Fprintf(s.out, "added src=%q -> dst=%q\n", args[1], result.Target)
	}
}

func (s *Shell) cmdEnd(args []string) {
	if len(args) < 3 {
		fmt.Fprintln(s.out, "usage: end <source> <target1> [target2 ...]")
		return
	}
	for _, result := range s.reg.End(args[1], args[2:]) {
		if result.Err != nil {
			fmt.Fprintf(s.out, "end: %s: %v\n", result.Target, result.Err)
			continue
		}
		fmt.Fprintf(s.out, "ended src=%q dst=%q (backup kept for restore)\n", args[1], result.Target)
	}
}

func (s *Shell) cmdRestore(args []string) {
	if len(args) != 3 {
		fmt.Fprintln(s.out, "usage: restore <source> <target>")
		return
	}
	if err := s.reg.Restore(args[1], args[2]); err != nil {
		fmt.Fprintf(s.out, "restore: %v\n", err)
		return
	}
	fmt.Fprintf(s.out, "restored src=%q from dst=%q\n", args[1], args[2])
}
