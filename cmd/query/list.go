package query

import (
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/spf13/cobra"
)

var listCmd = &cobra.Command{
	Use:     "list <file:lineno|address>",
	Short:   "查看源码信息",
	Aliases: []string{"l"},
	Annotations: map[string]string{
		cmdGroupAnnotation: cmdGroupSource,
	},
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		rng, _ := cmd.Flags().GetInt("range")

		var (
			file   string
			lineno int
			err    error
		)

		// parse location
		if strings.Contains(args[0], ":") {
			if file, lineno, err = parseFileLineno(args[0]); err != nil {
				return err
			}
			file = resolveSourceFile(file)
		} else {
			pc, err := parseAddr(args[0])
			if err != nil {
				return err
			}
			if file, lineno, err = binfo.PCToFileLine(pc); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "line table get file:lineno = %s:%d\n", file, lineno)
		}

		// print lines
		return listFileLines(cmd.OutOrStdout(), file, lineno, rng)
	},
}

func init() {
	queryRootCmd.AddCommand(listCmd)

	listCmd.Flags().IntP("range", "r", 5, "显示指定行前后的行数")
}

// resolveSourceFile returns the line table path ending in /file when file
// is not itself a path of the line table and exactly one path matches.
func resolveSourceFile(file string) string {
	var match string
	for _, f := range binfo.SourceFiles() {
		if f == file {
			return f
		}
		if strings.HasSuffix(f, "/"+file) {
			if match != "" {
				return file
			}
			match = f
		}
	}
	if match == "" {
		return file
	}
	return match
}

// list file lines, lineno is 1-based
func listFileLines(w io.Writer, file string, lineno, rng int) error {

	lines, offset, err := listFile(file, lineno, rng)
	if err != nil {
		return fmt.Errorf("list file err: %v", err)
	}

	// use 1-based counter
	idx := offset + 1
	for _, ln := range lines {
		if idx != lineno {
			fmt.Fprintf(w, "%-4s\t%d\t%s\n", "", idx, ln)
		} else {
			fmt.Fprintf(w, "%-4s\t%d\t%s\n", "=>", idx, ln)
		}
		idx++
	}

	return nil
}

// must be form file:lineno, like main.go:100
func parseFileLineno(s string) (file string, lineno int, err error) {
	idx := strings.LastIndex(s, ":")
	if idx <= 0 {
		err = fmt.Errorf("invalid location: %s, must be file:lineno", s)
		return
	}

	file = s[:idx]
	v, err := strconv.ParseInt(s[idx+1:], 10, 64)
	if err != nil {
		err = fmt.Errorf("invalid location: %s, must be file:lineno", s)
		return
	}
	lineno = int(v)
	return
}

// return value `offset` is zero-based counter
func listFile(file string, lineno, rng int) (lines []string, offset int, err error) {
	dat, err := os.ReadFile(file)
	if err != nil {
		err = fmt.Errorf("read file err: %v", err)
		return
	}

	raw := strings.Split(string(dat), "\n")
	count := len(raw)

	begin := lineno - 1 - rng
	if begin < 0 {
		begin = 0
	}
	if begin > count {
		return
	}

	end := lineno + rng
	if end > count {
		end = count
	}

	return raw[begin:end], begin, nil
}
