package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/mitchellh/go-homedir"
	"github.com/nikandfor/tlog"
	"github.com/peterh/liner"

	axiom "github.com/monadgroup/axiom-sub000"
	"github.com/monadgroup/axiom-sub000/internal/analyze"
	"github.com/monadgroup/axiom-sub000/internal/codegen"
	"github.com/monadgroup/axiom-sub000/internal/config"
	"github.com/monadgroup/axiom-sub000/internal/diag"
	"github.com/monadgroup/axiom-sub000/internal/dsp"
	"github.com/monadgroup/axiom-sub000/internal/ir"
)

const (
	historyFile = ".axiom_history"
	promptMain  = "axiom> "
	promptCont  = "  ...> "
)

const helpText = `Enter block code; statements may span lines.
Commands:
  :ir         toggle printing the optimized IR of each block
  :run N      deploy the last block alone and print its outputs for N frames
  :load FILE  compile a block from FILE
  :help       show this text
  :quit       leave
`

type session struct {
	showIR bool
	last   *axiom.Block
	next   axiom.BlockID
}

func main() {
	optLevel := flag.Int("opt", config.Load().Runtime.OptLevel, "IR optimization level for :ir output")
	flag.Parse()

	tlog.DefaultLogger = tlog.New(tlog.NewConsoleWriter(os.Stderr, tlog.LstdFlags))
	tlog.SetVerbosity(config.Load().Verbose)

	os.Exit(run(*optLevel))
}

func run(optLevel int) int {
	fmt.Print(helpText)

	histPath := historyFile
	if home, err := homedir.Dir(); err == nil {
		histPath = filepath.Join(home, historyFile)
	}

	ln := liner.NewLiner()
	defer ln.Close()
	ln.SetCtrlCAborts(true)

	if f, err := os.Open(histPath); err == nil {
		_, _ = ln.ReadHistory(f)
		_ = f.Close()
	}

	s := &session{next: 1}
	for {
		src, ok := readBlock(ln, promptMain, promptCont)
		if !ok {
			fmt.Println()
			break
		}
		if strings.TrimSpace(src) == "" {
			continue
		}
		ln.AppendHistory(strings.ReplaceAll(src, "\n", " "))

		if strings.HasPrefix(strings.TrimSpace(src), ":") {
			if s.command(src, optLevel) {
				break
			}
			continue
		}
		s.compile(src, optLevel)
	}

	if f, err := os.Create(histPath); err == nil {
		_, _ = ln.WriteHistory(f)
		_ = f.Close()
	}
	return 0
}

// readBlock reads lines until the source no longer ends early.
func readBlock(ln *liner.State, prompt, cont string) (string, bool) {
	var b strings.Builder

	for {
		p := prompt
		if b.Len() > 0 {
			p = cont
		}
		line, err := ln.Prompt(p)
		if errors.Is(err, io.EOF) {
			return "", false
		}
		if err != nil {
			// Ctrl+C drops the pending input.
			return "", true
		}

		if b.Len() > 0 {
			b.WriteByte('\n')
		}
		b.WriteString(line)

		src := b.String()
		if strings.HasPrefix(strings.TrimSpace(src), ":") {
			return src, true
		}
		_, cerr := axiom.CompileBlock(0, "probe", src)
		var d *diag.Error
		if errors.As(cerr, &d) && d.Kind == diag.UnexpectedEnd && strings.TrimSpace(line) != "" {
			continue
		}
		return src, true
	}
}

func (s *session) command(line string, optLevel int) (exit bool) {
	fields := strings.Fields(line)
	switch fields[0] {
	case ":help":
		fmt.Print(helpText)
	case ":quit", ":exit":
		return true
	case ":ir":
		s.showIR = !s.showIR
		fmt.Printf("ir output %v\n", s.showIR)
	case ":load":
		if len(fields) < 2 {
			fmt.Println("usage: :load FILE")
			return false
		}
		path, err := homedir.Expand(fields[1])
		if err != nil {
			fmt.Println(err)
			return false
		}
		src, err := os.ReadFile(path)
		if err != nil {
			fmt.Printf("cannot read %s: %v\n", path, err)
			return false
		}
		s.compile(string(src), optLevel)
	case ":run":
		n := 8
		if len(fields) > 1 {
			v, err := strconv.Atoi(fields[1])
			if err != nil || v < 0 {
				fmt.Println("usage: :run N")
				return false
			}
			n = v
		}
		if err := s.run(n); err != nil {
			fmt.Println(err)
		}
	default:
		fmt.Println("unknown command. Type :help for help.")
	}
	return false
}

func (s *session) compile(src string, optLevel int) {
	b, err := axiom.CompileBlock(s.next, fmt.Sprintf("block%d", s.next), src)
	if err != nil {
		printError(src, err)
		return
	}
	s.next++
	s.last = b
	fmt.Print(b.String())

	if s.showIR {
		m := codegen.Block(analyze.AnalyzeBlock(b, analyze.Options{}))
		ir.Optimize(m, optLevel)
		fmt.Print(ir.Format(m))
	}
}

func (s *session) run(frames int) error {
	if s.last == nil {
		return errors.New("no block compiled yet")
	}
	r, err := axiom.New()
	if err != nil {
		return err
	}
	defer r.Close()

	if err := r.Commit(context.Background(), axiom.BlockPatch(s.last)); err != nil {
		return err
	}
	portals := r.Portals()
	for f := 0; f < frames; f++ {
		if err := r.RunUpdate(); err != nil {
			return err
		}
		var sb strings.Builder
		fmt.Fprintf(&sb, "%4d", f)
		for i, p := range portals {
			if p.Kind != axiom.PortalOutput || p.Type.Kind != axiom.NumType().Kind {
				continue
			}
			a, err := r.PortalPtr(i)
			if err != nil {
				return err
			}
			n := dsp.ReadNum(r.Memory(), a)
			fmt.Fprintf(&sb, "  %s=%g,%g %v", p.Name, n.Left, n.Right, n.Form)
		}
		fmt.Println(sb.String())
	}
	return nil
}

// printError prints a compile error with the offending source marked.
func printError(src string, err error) {
	var d *diag.Error
	if !errors.As(err, &d) {
		log.Println(err)
		return
	}
	lines := strings.Split(src, "\n")
	if l := d.Range.Start.Line; l >= 1 && l <= len(lines) {
		fmt.Println(lines[l-1])
		width := 1
		if d.Range.End.Line == l && d.Range.End.Col > d.Range.Start.Col {
			width = d.Range.End.Col - d.Range.Start.Col
		}
		fmt.Println(strings.Repeat(" ", max(d.Range.Start.Col-1, 0)) + strings.Repeat("^", width))
	}
	fmt.Println(d)
}
