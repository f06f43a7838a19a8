package query

import (
	"fmt"
	"regexp"
	"sort"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/hitzhangjie/godwarf/pkg/symbol"
)

var funcsCmd = &cobra.Command{
	Use:   "funcs [regexp]",
	Short: "列出函数及其地址范围",
	Annotations: map[string]string{
		cmdGroupAnnotation: cmdGroupSymbols,
	},
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		var re *regexp.Regexp
		if len(args) != 0 {
			var err error
			if re, err = regexp.Compile(args[0]); err != nil {
				return fmt.Errorf("invalid regexp: %v", err)
			}
		}

		fns := make([]*symbol.Function, 0, len(binfo.Functions))
		for _, fn := range binfo.Functions {
			if re == nil || re.MatchString(fn.Name()) {
				fns = append(fns, fn)
			}
		}
		sort.SliceStable(fns, func(i, j int) bool { return fns[i].LowPC() < fns[j].LowPC() })

		tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
		for _, fn := range fns {
			cu := ""
			if fn.CompileUnit() != nil {
				cu = fn.CompileUnit().Name
			}
			fmt.Fprintf(tw, "%#x-%#x\t%s\t%s\n", fn.LowPC(), fn.HighPC(), fn.Name(), cu)
		}
		return tw.Flush()
	},
}

var filesCmd = &cobra.Command{
	Use:   "files",
	Short: "列出行号表中的源文件",
	Annotations: map[string]string{
		cmdGroupAnnotation: cmdGroupSymbols,
	},
	Args: cobra.NoArgs,
	Run: func(cmd *cobra.Command, args []string) {
		for _, f := range binfo.SourceFiles() {
			fmt.Fprintln(cmd.OutOrStdout(), f)
		}
	},
}

func init() {
	queryRootCmd.AddCommand(funcsCmd)
	queryRootCmd.AddCommand(filesCmd)
}
