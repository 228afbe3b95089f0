// Copyright (c) 2019 devblok
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

package core

import (
	"io/ioutil"
	"path/filepath"

	"github.com/devblok/paphos/utility/kar"
	"github.com/gobuffalo/packr"
	"github.com/pkg/errors"
)

// Compiled shader names, relative to a shader source.
const (
	VertexShaderName   = "triangle.vert.spv"
	FragmentShaderName = "triangle.frag.spv"
)

// ShaderSource finds compiled shader bytecode by name.
type ShaderSource interface {
	Find(name string) ([]byte, error)
}

// DirectorySource reads shaders from a directory on disk.
type DirectorySource string

// Find implements ShaderSource
func (d DirectorySource) Find(name string) ([]byte, error) {
	return ioutil.ReadFile(filepath.Join(string(d), name))
}

// BoxSource reads shaders packed into the binary.
func BoxSource(box packr.Box) ShaderSource {
	return box
}

// MapSource serves shaders from memory.
type MapSource map[string][]byte

// Find implements ShaderSource
func (m MapSource) Find(name string) ([]byte, error) {
	code, ok := m[name]
	if !ok {
		return nil, errors.Errorf("shader %s not found", name)
	}
	return code, nil
}

// OpenShaderSource opens the configured archive, or the directory when no
// archive is set. The returned release function closes the archive.
func OpenShaderSource(cfg ShaderConfiguration) (ShaderSource, func(), error) {
	if cfg.Archive == "" {
		return DirectorySource(cfg.Directory), func() {}, nil
	}
	ar, err := kar.OpenFile(cfg.Archive)
	if err != nil {
		return nil, nil, errors.Wrapf(err, "kar.OpenFile(%s)", cfg.Archive)
	}
	return ar, func() { ar.Close() }, nil
}

// LoadShaders reads the vertex and fragment bytecode. Bytecode is a
// stream of 32-bit words, so a length that is zero or not a multiple of
// four is rejected.
func LoadShaders(src ShaderSource) (vertex, fragment []byte, err error) {
	if vertex, err = loadShader(src, VertexShaderName); err != nil {
		return nil, nil, err
	}
	if fragment, err = loadShader(src, FragmentShaderName); err != nil {
		return nil, nil, err
	}
	return vertex, fragment, nil
}

func loadShader(src ShaderSource, name string) ([]byte, error) {
	code, err := src.Find(name)
	if err != nil {
		return nil, errors.Wrapf(err, "shader %s", name)
	}
	if len(code) == 0 || len(code)%4 != 0 {
		return nil, errors.Errorf("shader %s: invalid bytecode size %d", name, len(code))
	}
	return code, nil
}
