// Command cinderkv is a thin debug harness around the tree package: open a
// directory, put a string key/value, or get a string key back. It is not
// part of the core's scope (front-ends are explicitly out of scope per the
// core's design) — it exists only so the store can be poked at from a shell.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/cinderkv/cinderkv/codec"
	"github.com/cinderkv/cinderkv/tree"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var dir string

	root := &cobra.Command{
		Use:   "cinderkv",
		Short: "debug harness for a cinderkv tree directory",
	}
	root.PersistentFlags().StringVar(&dir, "dir", "./cinderkv-data", "tree directory")

	root.AddCommand(newOpenCmd(&dir), newPutCmd(&dir), newGetCmd(&dir))
	return root
}

func newOpenCmd(dir *string) *cobra.Command {
	return &cobra.Command{
		Use:   "open",
		Short: "open (or create) the tree directory and print its segment list",
		RunE: func(cmd *cobra.Command, args []string) error {
			t, err := tree.Open(*dir)
			if err != nil {
				return err
			}
			defer t.Close()
			fmt.Printf("directory: %s\nsegments: %v\n", t.Directory(), t.Segments())
			return nil
		},
	}
}

func newPutCmd(dir *string) *cobra.Command {
	return &cobra.Command{
		Use:   "put <key> <value>",
		Short: "store a string key/value pair",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			t, err := tree.Open(*dir)
			if err != nil {
				return err
			}
			defer t.Close()

			key := codec.String([]byte(args[0]))
			value := codec.String([]byte(args[1]))
			return t.Put(key, value)
		},
	}
}

func newGetCmd(dir *string) *cobra.Command {
	return &cobra.Command{
		Use:   "get <key>",
		Short: "fetch a string key",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			t, err := tree.Open(*dir)
			if err != nil {
				return err
			}
			defer t.Close()

			key := codec.String([]byte(args[0]))
			value, ok, err := t.Fetch(key)
			if err != nil {
				return err
			}
			if !ok {
				fmt.Println("not found")
				return nil
			}
			fmt.Println(string(value.Bytes()))
			return nil
		},
	}
}
