package query

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"
)

var pc2lineCmd = &cobra.Command{
	Use:     "pc2line <address>",
	Short:   "查询地址对应的源码位置",
	Aliases: []string{"pc"},
	Annotations: map[string]string{
		cmdGroupAnnotation: cmdGroupSource,
	},
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		pc, err := parseAddr(args[0])
		if err != nil {
			return err
		}

		file, lineno, err := binfo.PCToFileLine(pc)
		if err != nil {
			return err
		}

		fnName := "?"
		if fn, err := binfo.PCToFunction(pc); err == nil {
			fnName = fn.Name()
		}
		fmt.Fprintf(cmd.OutOrStdout(), "%#x\t%s:%d\t%s\n", pc, file, lineno, fnName)
		return nil
	},
}

func init() {
	queryRootCmd.AddCommand(pc2lineCmd)
}

func parseAddr(s string) (uint64, error) {
	pc, err := strconv.ParseUint(s, 0, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid address: %s", s)
	}
	return pc, nil
}
