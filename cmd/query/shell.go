package query

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"sort"
	"strings"

	"github.com/peterh/liner"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/hitzhangjie/godwarf/pkg/symbol"
)

const (
	cmdGroupAnnotation = "cmd_group_annotation"

	cmdGroupSource  = "1-source"
	cmdGroupSymbols = "2-symbols"
	cmdGroupOthers  = "3-other"
	cmdGroupCobra   = "other"

	cmdGroupDelimiter = "-"

	prefix    = "godwarf> "
	descShort = "godwarf interactive query commands"
)

var queryRootCmd = &cobra.Command{
	Use:           "help [command]",
	Short:         descShort,
	SilenceUsage:  true,
	SilenceErrors: true,
}

var (
	CurrentSession *QuerySession

	// binfo is the binary queried by the shell commands
	binfo *symbol.BinaryInfo
)

// QuerySession 交互式查询会话
type QuerySession struct {
	done   chan bool
	prefix string
	root   *cobra.Command
	liner  *liner.State
	last   string

	defers []func()
}

// NewQuerySession creates a session answering queries about bi.
func NewQuerySession(bi *symbol.BinaryInfo) *QuerySession {
	binfo = bi

	fn := func(cmd *cobra.Command, args []string) {
		out := cmd.OutOrStdout()

		// 描述信息
		fmt.Fprintln(out, cmd.Short)
		fmt.Fprintln(out)

		// 使用信息
		fmt.Fprintln(out, cmd.Use)
		fmt.Fprintln(out, cmd.Flags().FlagUsages())

		// 命令分组
		fmt.Fprintln(out, helpMessageByGroups(cmd))
	}
	queryRootCmd.SetHelpFunc(fn)

	return &QuerySession{
		done:   make(chan bool),
		prefix: prefix,
		root:   queryRootCmd,
	}
}

// Start reads commands until exit or end of input.
func (s *QuerySession) Start() {
	s.liner = liner.NewLiner()
	s.liner.SetCompleter(completer)
	s.liner.SetTabCompletionStyle(liner.TabPrints)
	s.liner.SetCtrlCAborts(true)

	defer func() {
		s.liner.Close()
		for idx := len(s.defers) - 1; idx >= 0; idx-- {
			s.defers[idx]()
		}
	}()

	for {
		select {
		case <-s.done:
			return
		default:
		}

		txt, err := s.liner.Prompt(s.prefix)
		if errors.Is(err, liner.ErrPromptAborted) {
			continue
		}
		if err != nil {
			if err != io.EOF {
				fmt.Fprintln(s.root.ErrOrStderr(), err)
			}
			return
		}

		txt = strings.TrimSpace(txt)
		if len(txt) != 0 {
			s.last = txt
			s.liner.AppendHistory(txt)
		} else {
			txt = s.last
		}

		if err := s.Exec(txt); err != nil {
			fmt.Fprintln(s.root.ErrOrStderr(), "error:", err)
		}
	}
}

// Exec runs one command line.
func (s *QuerySession) Exec(txt string) error {
	args := strings.Fields(txt)
	if len(args) == 0 {
		return nil
	}
	s.root.SetArgs(args)
	err := s.root.Execute()

	// flags keep their values between executions of the same command
	for _, c := range s.root.Commands() {
		c.Flags().VisitAll(func(f *pflag.Flag) {
			f.Value.Set(f.DefValue)
			f.Changed = false
		})
	}
	return err
}

func (s *QuerySession) AtExit(fn func()) *QuerySession {
	s.defers = append(s.defers, fn)
	return s
}

func (s *QuerySession) Stop() {
	select {
	case <-s.done:
	default:
		close(s.done)
	}
}

func completer(line string) []string {
	cmds := []string{}

	// complete source files of commands taking a location
	if fields := strings.Fields(line); len(fields) == 2 && binfo != nil {
		switch fields[0] {
		case "list", "l", "line2pc":
			for _, f := range binfo.SourceFiles() {
				if strings.HasPrefix(f, fields[1]) {
					cmds = append(cmds, fields[0]+" "+f)
				}
			}
			return cmds
		}
	}

	for _, c := range queryRootCmd.Commands() {
		// complete cmd
		if strings.HasPrefix(c.Use, line) {
			cmds = append(cmds, strings.Split(c.Use, " ")[0])
		}
		// complete cmd's aliases
		for _, alias := range c.Aliases {
			if strings.HasPrefix(alias, line) {
				cmds = append(cmds, alias)
			}
		}
	}
	return cmds
}

// helpMessageByGroups 将各个命令按照分组归类，再展示帮助信息
func helpMessageByGroups(cmd *cobra.Command) string {

	// key:group, val:sorted commands in same group
	groups := map[string][]string{}
	for _, c := range cmd.Commands() {
		// 如果没有指定命令分组，放入other组
		groupName, ok := c.Annotations[cmdGroupAnnotation]
		if !ok {
			groupName = cmdGroupCobra
		}

		groupCmds := append(groups[groupName], fmt.Sprintf("  %-16s:%s", c.Name(), c.Short))
		sort.Strings(groupCmds)
		groups[groupName] = groupCmds
	}

	if len(groups[cmdGroupCobra]) != 0 {
		groups[cmdGroupOthers] = append(groups[cmdGroupOthers], groups[cmdGroupCobra]...)
	}
	delete(groups, cmdGroupCobra)

	// 按照分组名进行排序
	groupNames := []string{}
	for k := range groups {
		groupNames = append(groupNames, k)
	}
	sort.Strings(groupNames)

	// 按照group分组，并对组内命令进行排序
	buf := bytes.Buffer{}
	for _, groupName := range groupNames {
		group := strings.Split(groupName, cmdGroupDelimiter)[1]
		buf.WriteString(fmt.Sprintf("- [%s]\n", group))

		for _, cmd := range groups[groupName] {
			buf.WriteString(fmt.Sprintf("%s\n", cmd))
		}
		buf.WriteString("\n")
	}
	return buf.String()
}
