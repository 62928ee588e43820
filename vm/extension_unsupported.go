//go:build !linux && !darwin

package vm

import "github.com/pkg/errors"

// defaultLoader on platforms without Go's plugin package: IMPORT fails
// cleanly with "unsupported", per spec.md §4.5/§9.
type defaultLoader struct{}

func (defaultLoader) Open(path string) (DriverFunc, func(name string) (ExtensionFunc, error), error) {
	return nil, nil, errors.New("unsupported")
}
