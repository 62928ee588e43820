package vm

import "github.com/pkg/errors"

// DriverFunc is the shared library's enumeration entry point
// (spec.md §6.4): it returns the ordered list of exported function
// names the library wishes to register.
type DriverFunc func() []string

// platformLoader abstracts "open a shared library, resolve a symbol" so
// that IMPORT has a single, platform-independent implementation; the
// concrete loader lives in extension_unix.go (backed by the standard
// library's plugin package) or extension_unsupported.go (spec.md §9,
// "Extension loader portability").
type platformLoader interface {
	Open(path string) (driver DriverFunc, lookup func(name string) (ExtensionFunc, error), err error)
}

var loader platformLoader = defaultLoader{}

// Import implements the IMPORT opcode (spec.md §4.5): load the named
// shared library, call its driver entry point, resolve each exported
// name, and register every one into the thread's extension table. A
// name already registered is fatal.
func Import(t *Thread, path string) error {
	driver, lookup, err := loader.Open(path)
	if err != nil {
		return errors.Wrapf(err, "IMPORT %q", path)
	}

	names := driver()
	for _, name := range names {
		fn, err := lookup(name)
		if err != nil {
			return errors.Wrapf(err, "IMPORT %q: resolving %q", path, name)
		}
		if err := t.RegisterExtension(name, fn); err != nil {
			return err
		}
	}
	return nil
}
