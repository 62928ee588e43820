//go:build linux || darwin

package vm

import (
	"plugin"

	"github.com/pkg/errors"
)

// defaultLoader backs IMPORT with the standard library's plugin package,
// the one dynamic-loading facility available without taking on a cgo
// toolchain dependency (see DESIGN.md). It is only buildable on the
// platforms Go's plugin package itself supports.
type defaultLoader struct{}

func (defaultLoader) Open(path string) (DriverFunc, func(name string) (ExtensionFunc, error), error) {
	p, err := plugin.Open(path)
	if err != nil {
		return nil, nil, errors.Wrap(err, "opening shared library")
	}

	driverSym, err := p.Lookup("Driver")
	if err != nil {
		return nil, nil, errors.Wrap(err, "missing driver entry point")
	}
	driver, ok := driverSym.(func() []string)
	if !ok {
		return nil, nil, errors.New("driver entry point has the wrong signature")
	}

	lookup := func(name string) (ExtensionFunc, error) {
		sym, err := p.Lookup(name)
		if err != nil {
			return nil, errors.Wrapf(err, "missing exported symbol %q", name)
		}
		fn, ok := sym.(func(*Thread, *List) (Value, error))
		if !ok {
			return nil, errors.Errorf("exported symbol %q has the wrong signature", name)
		}
		return ExtensionFunc(fn), nil
	}

	return DriverFunc(driver), lookup, nil
}
