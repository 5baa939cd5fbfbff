package ir

import (
	"fmt"
	"strings"
)

// Format renders m as text, one instruction per line.
func Format(m *Module) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "module %s\n", m.Name)
	for _, g := range m.Globals {
		ro := ""
		if g.ReadOnly {
			ro = " readonly"
		}
		fmt.Fprintf(&sb, "global %s %v%s\n", g.Name, g.Type, ro)
	}
	for _, fn := range m.Funcs {
		params := make([]string, len(fn.Params))
		for i, p := range fn.Params {
			params[i] = p.String()
		}
		fmt.Fprintf(&sb, "func %s(%s) %v {\n", fn.Name, strings.Join(params, ", "), fn.Result)
		formatBlock(&sb, fn.Body, 1)
		sb.WriteString("}\n")
	}
	return sb.String()
}

func formatBlock(sb *strings.Builder, b *Block, depth int) {
	indent := strings.Repeat("  ", depth)
	for _, in := range b.Instrs {
		sb.WriteString(indent)
		if in.Dst != NoValue {
			fmt.Fprintf(sb, "r%d = ", in.Dst)
		}
		sb.WriteString(in.Op.String())
		switch in.Op {
		case OpVecBin:
			fmt.Fprintf(sb, ".%v", VecOp(in.Imm))
		case OpVecUn:
			fmt.Fprintf(sb, ".%v", UnOp(in.Imm))
		case OpIntBin:
			fmt.Fprintf(sb, ".%v", IntOp(in.Imm))
		}
		for _, a := range in.Args {
			fmt.Fprintf(sb, " r%d", a)
		}
		switch in.Op {
		case OpParam, OpConstInt, OpOffset, OpIndex, OpLoadInt, OpStoreInt, OpLoadFloat, OpStoreFloat, OpCopy, OpZero:
			fmt.Fprintf(sb, " %d", in.Imm)
		case OpConstVec:
			fmt.Fprintf(sb, " <%g, %g>", in.Vec[0], in.Vec[1])
		case OpShuffle:
			fmt.Fprintf(sb, " %d %d", in.Imm, in.Imm2)
		case OpGlobalAddr, OpCall:
			fmt.Fprintf(sb, " @%s", in.Sym)
		case OpAlloca:
			fmt.Fprintf(sb, " %v", in.Type)
		case OpLoop:
			fmt.Fprintf(sb, " r%d", in.Imm)
		}
		sb.WriteByte('\n')

		switch in.Op {
		case OpIf:
			formatBlock(sb, in.Then, depth+1)
			if len(in.Else.Instrs) > 0 {
				sb.WriteString(indent + "else\n")
				formatBlock(sb, in.Else, depth+1)
			}
		case OpLoop:
			formatBlock(sb, in.Body, depth+1)
		case OpSwitch:
			for i, c := range in.Cases {
				fmt.Fprintf(sb, "%scase %d\n", indent, i)
				formatBlock(sb, c, depth+1)
			}
			sb.WriteString(indent + "default\n")
			formatBlock(sb, in.Else, depth+1)
		}
	}
}
