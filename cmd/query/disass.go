package query

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/hitzhangjie/godwarf/pkg/symbol"
)

var disassCmd = &cobra.Command{
	Use:   "disass <function|address>",
	Short: "反汇编函数的机器指令",
	Annotations: map[string]string{
		cmdGroupAnnotation: cmdGroupSource,
	},
	Aliases: []string{"dis", "disassemble"},
	Args:    cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		var (
			max, _    = cmd.Flags().GetUint64("max")
			syntax, _ = cmd.Flags().GetString("syntax")
		)

		fn, err := lookupFunction(args[0])
		if err != nil {
			return err
		}

		insts, err := binfo.Disassemble(fn, syntax)
		if err != nil {
			return err
		}
		if max != 0 && uint64(len(insts)) > max {
			insts = insts[:max]
		}

		out := cmd.OutOrStdout()
		fmt.Fprintf(out, "TEXT %s\n", fn.Name())

		tw := tabwriter.NewWriter(out, 0, 4, 8, ' ', 0)
		lastLine := 0
		for _, inst := range insts {
			if inst.Line != 0 && inst.Line != lastLine {
				fmt.Fprintf(tw, "%s:%d\n", inst.File, inst.Line)
				lastLine = inst.Line
			}
			fmt.Fprintf(tw, "  %#x:\t% x\t%s\n", inst.Addr, inst.Bytes, inst.Asm)
		}
		return tw.Flush()
	},
}

func init() {
	queryRootCmd.AddCommand(disassCmd)

	disassCmd.Flags().Uint64P("max", "n", 0, "反汇编指令数量，0表示整个函数")
	disassCmd.Flags().StringP("syntax", "s", "gnu", "反汇编指令语法，支持：go, gnu, intel")
}

// lookupFunction finds a function by name or by an address it covers.
func lookupFunction(s string) (*symbol.Function, error) {
	if fn, ok := binfo.FunctionByName(s); ok {
		return fn, nil
	}
	pc, err := parseAddr(s)
	if err != nil {
		return nil, fmt.Errorf("no function named %s", s)
	}
	return binfo.PCToFunction(pc)
}
