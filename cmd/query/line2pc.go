package query

import (
	"fmt"

	"github.com/spf13/cobra"
)

var line2pcCmd = &cobra.Command{
	Use:   "line2pc <file:lineno>",
	Short: "查询源码位置对应的指令地址",
	Annotations: map[string]string{
		cmdGroupAnnotation: cmdGroupSource,
	},
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		breakpoint, _ := cmd.Flags().GetBool("breakpoint")

		file, lineno, err := parseFileLineno(args[0])
		if err != nil {
			return err
		}

		var pc uint64
		if breakpoint {
			pc, err = binfo.FileLineToPCForBreakpoint(file, lineno)
		} else {
			pc, err = binfo.FileLineToPC(file, lineno)
		}
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "%s:%d\t%#x\n", file, lineno, pc)
		return nil
	},
}

func init() {
	queryRootCmd.AddCommand(line2pcCmd)

	line2pcCmd.Flags().BoolP("breakpoint", "b", false, "跳过函数序言，返回适合设置断点的地址")
}
