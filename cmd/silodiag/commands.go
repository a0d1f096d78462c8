package main

import (
	"fmt"
	"io"
	"sort"
	"strings"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/robert-malhotra/go-silo/internal/dtype"
	"github.com/robert-malhotra/go-silo/silo"
)

func newLsCommand(s *session) *cobra.Command {
	var recursive bool
	cmd := &cobra.Command{
		Use:   "ls <file> [dir]",
		Short: "List the objects of a directory.",
		Args:  cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			f, err := s.open(cmd, args[0])
			if err != nil {
				return err
			}
			defer f.Close()

			dir := "/"
			if len(args) == 2 {
				dir = args[1]
			}
			if recursive {
				return f.Walk(dir, func(e silo.Entry, err error) error {
					if err != nil {
						return err
					}
					printEntry(s.stdout, e, strings.Count(e.Path, "/")-1)
					return nil
				})
			}
			entries, err := f.List(dir)
			if err != nil {
				return err
			}
			for _, e := range entries {
				printEntry(s.stdout, e, 0)
			}
			return nil
		},
	}
	cmd.Flags().BoolVarP(&recursive, "recursive", "r", false, "descend into subdirectories")
	return cmd
}

func printEntry(w io.Writer, e silo.Entry, depth int) {
	indent := strings.Repeat("  ", depth)
	if e.Target != "" {
		fmt.Fprintf(w, "%s%-24s %-10s -> %s\n", indent, e.Name, e.Kind, e.Target)
		return
	}
	fmt.Fprintf(w, "%s%-24s %s\n", indent, e.Name, e.Kind)
}

func newDumpCommand(s *session) *cobra.Command {
	var values bool
	cmd := &cobra.Command{
		Use:   "dump <file> <object>",
		Short: "Print the header of an object.",
		Long: `
Prints every component of an object header with its type. With --values
the arrays named by variable components are read and summarized.
`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			f, err := s.open(cmd, args[0])
			if err != nil {
				return err
			}
			defer f.Close()

			o, err := f.GetObject(args[1])
			if err != nil {
				return err
			}
			fmt.Fprintf(s.stdout, "%s (%s)\n", o.Name, o.Kind)
			names := append([]string(nil), o.Components...)
			sort.Strings(names)
			for _, name := range names {
				t := o.Type(name)
				fmt.Fprintf(s.stdout, "  %-16s %-9s %v\n", name, t, o.Value(name))
				if values && t == silo.ComponentVariable {
					v, err := f.Component(o.Name, name)
					if err != nil {
						return err
					}
					fmt.Fprintf(s.stdout, "  %16s %s\n", "", summarize(v, 8))
				}
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&values, "values", false, "read variable components")
	return cmd
}

func newReadCommand(s *session) *cobra.Command {
	var (
		raw   bool
		limit int
	)
	cmd := &cobra.Command{
		Use:   "read <file> <var>",
		Short: "Read a variable and print its storage and values.",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			f, err := s.open(cmd, args[0])
			if err != nil {
				return err
			}
			defer f.Close()

			info, err := f.VarInfo(args[1])
			if err != nil {
				return err
			}
			logical := uint64(info.Size)
			fmt.Fprintf(s.stdout, "%s: %s %v\n", info.Name, info.Kind, info.Dims)
			fmt.Fprintf(s.stdout, "  stored:  %s of %s", humanize.Bytes(uint64(info.Stored)), humanize.Bytes(logical))
			if info.Stored > 0 && info.Compressed {
				fmt.Fprintf(s.stdout, " (%.2fx)", float64(logical)/float64(info.Stored))
			}
			fmt.Fprintln(s.stdout)
			if len(info.Filters) > 0 {
				fmt.Fprintf(s.stdout, "  filters: %s (compressed: %v)\n", strings.Join(info.Filters, ", "), info.Compressed)
			}

			read := f.ReadVar
			if raw {
				read = f.ReadVarRaw
			}
			v, err := read(args[1])
			if err != nil {
				return err
			}
			fmt.Fprintf(s.stdout, "  values:  %s\n", summarize(v, limit))
			return nil
		},
	}
	cmd.Flags().BoolVar(&raw, "raw", false, "ignore force-single")
	cmd.Flags().IntVarP(&limit, "limit", "n", 16, "number of values to print")
	return cmd
}

// summarize prints the first n values of a slice and its length.
func summarize(v any, n int) string {
	if b, ok := v.([]byte); ok {
		return fmt.Sprintf("%q", b)
	}
	vals, err := dtype.AsFloat64s(v)
	if err != nil {
		return fmt.Sprintf("%v", v)
	}
	if len(vals) <= n {
		return fmt.Sprintf("%v", vals)
	}
	return fmt.Sprintf("%v ... (%s values)", vals[:n], humanize.Comma(int64(len(vals))))
}
