package query

import (
	"github.com/spf13/cobra"
)

var exitCmd = &cobra.Command{
	Use:     "exit",
	Short:   "结束查询会话",
	Aliases: []string{"quit", "q"},
	Annotations: map[string]string{
		cmdGroupAnnotation: cmdGroupOthers,
	},
	Run: func(cmd *cobra.Command, args []string) {
		if CurrentSession != nil {
			CurrentSession.Stop()
		}
	},
}

func init() {
	queryRootCmd.AddCommand(exitCmd)
}
