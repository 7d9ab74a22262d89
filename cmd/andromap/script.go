package main

import (
	"fmt"
	"os"

	"github.com/dop251/goja"
	"github.com/spf13/cobra"

	"github.com/nsoload/andromap"
	"github.com/nsoload/andromap/internal/callabi"
)

func scriptCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "script <library.so> <script.js>",
		Short: "Drive the loader from a JavaScript console script",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			lib, err := andromap.OpenLibrary(args[0])
			if err != nil {
				return err
			}
			defer lib.Close()

			src, err := os.ReadFile(args[1])
			if err != nil {
				return fmt.Errorf("script: read %s: %w", args[1], err)
			}

			vm := goja.New()
			vm.SetFieldNameMapper(goja.UncapFieldNameMapper())
			if err := vm.Set("lib", newScriptLib(lib)); err != nil {
				return err
			}
			_, err = vm.RunString(string(src))
			return err
		},
	}
}

// scriptLib is the `lib` object exposed to script.js: lib.symbol(name)
// resolves an export, lib.call(name, ...ints) resolves and invokes it.
type scriptLib struct {
	lib *andromap.LoadedLibrary
}

func newScriptLib(lib *andromap.LoadedLibrary) *scriptLib {
	return &scriptLib{lib: lib}
}

// Open maps another library into the process and returns a new lib-shaped
// handle to it, so a script can drive more than one library at once.
func (s *scriptLib) Open(path string) (*scriptLib, error) {
	lib, err := andromap.OpenLibrary(path)
	if err != nil {
		return nil, err
	}
	return newScriptLib(lib), nil
}

func (s *scriptLib) Symbol(name string) (string, error) {
	addr, err := s.lib.LoadSymbol(name)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%#x", addr), nil
}

func (s *scriptLib) Call(name string, args ...int64) (int64, error) {
	addr, err := s.lib.LoadSymbol(name)
	if err != nil {
		return 0, err
	}
	return callabi.Call(addr, args...), nil
}
