// Command andromap maps an Android ELF shared object into the current
// process and inspects or drives it: print resolved exports, browse them
// interactively, or script the loader from JavaScript.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/nsoload/andromap"
	"github.com/nsoload/andromap/internal/config"
	"github.com/nsoload/andromap/internal/logging"
)

var (
	verbose    bool
	quiet      bool
	configPath string
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "andromap <library.so> [symbol...]",
		Short: "Map an Android shared object into this process and resolve its exports",
		Long: `andromap maps an ELF shared object built for this host's instruction-set
family into the current process: it lays out PT_LOAD segments, applies
dynamic relocations against a curated host symbol table, and resolves the
library's exported symbols through its GNU hash table.

Examples:
  andromap libwidget.so                  # load and report
  andromap libwidget.so widget_init       # load and resolve one symbol
  andromap repl libwidget.so              # interactive symbol browser
  andromap script libwidget.so run.js     # drive the loader from JavaScript`,
		Args:                  cobra.MinimumNArgs(1),
		DisableFlagsInUseLine: true,
		RunE:                  runOpen,
	}
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose debug output")
	rootCmd.PersistentFlags().BoolVarP(&quiet, "quiet", "q", false, "quiet mode (warnings and errors only)")
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "path to an andromap config file")

	rootCmd.AddCommand(replCmd())
	rootCmd.AddCommand(scriptCmd())

	cobra.OnInitialize(initEnv)

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func initEnv() {
	logging.Init(verbose && !quiet)
	if configPath != "" {
		cfg, err := config.Load(configPath)
		if err != nil {
			fmt.Fprintln(os.Stderr, err)
			os.Exit(1)
		}
		andromap.SetConfig(cfg)
	}
}

func runOpen(cmd *cobra.Command, args []string) error {
	path := args[0]
	lib, err := andromap.OpenLibrary(path)
	if err != nil {
		return err
	}
	defer lib.Close()

	fmt.Printf("loaded %s (id %s)\n", lib.Path, lib.ID)

	for _, name := range args[1:] {
		addr, err := lib.LoadSymbol(name)
		if err != nil {
			fmt.Printf("  %-32s %v\n", name, err)
			continue
		}
		fmt.Printf("  %-32s %#x\n", name, addr)
	}
	return nil
}
