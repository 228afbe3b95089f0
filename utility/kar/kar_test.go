// Copyright (c) 2019 devblok
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

package kar_test

import (
	"bytes"
	"io/ioutil"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/devblok/paphos/utility/kar"
	qt "github.com/frankban/quicktest"
	"github.com/pkg/errors"
)

var (
	testString1 = "idunvovkjnreovmegihjbrqlkmfrjnb"
	testString2 = "idunvovkjnreovmsdvwrvnervnreegihjbrqlkmfrjnb"
)

func newBuilder(c *qt.C) *kar.Builder {
	builder, err := kar.NewBuilder(kar.Header{
		Author:      "devblok",
		DateCreated: time.Now().Unix(),
		Version:     1,
	})
	c.Assert(err, qt.IsNil)
	c.Cleanup(func() { builder.Close() })
	return builder
}

func build(c *qt.C, files map[string]string, order ...string) []byte {
	builder := newBuilder(c)
	for _, name := range order {
		c.Assert(builder.Add(name, strings.NewReader(files[name])), qt.IsNil)
	}
	var buf bytes.Buffer
	written, err := builder.WriteTo(&buf)
	c.Assert(err, qt.IsNil)
	c.Assert(written, qt.Equals, int64(buf.Len()))
	return buf.Bytes()
}

func TestCreateAndRead(t *testing.T) {
	c := qt.New(t)
	data := build(c, map[string]string{"test": testString1, "test2": testString2}, "test", "test2")

	ar, err := kar.Open(bytes.NewReader(data))
	c.Assert(err, qt.IsNil)
	c.Assert(ar.Names(), qt.DeepEquals, []string{"test", "test2"})
	c.Assert(ar.Header().Author, qt.Equals, "devblok")

	f, err := ar.Open("test2")
	c.Assert(err, qt.IsNil)
	c.Assert(f.Size(), qt.Equals, int64(len(testString2)))
	result, err := ioutil.ReadAll(f)
	c.Assert(err, qt.IsNil)
	c.Assert(string(result), qt.Equals, testString2)
}

func TestCreateAndReadAll(t *testing.T) {
	c := qt.New(t)
	big := strings.Repeat(testString2, 1000)
	data := build(c, map[string]string{"test": testString1, "big": big}, "test", "big")

	ar, err := kar.Open(bytes.NewReader(data))
	c.Assert(err, qt.IsNil)

	got, err := ar.ReadAll("test")
	c.Assert(err, qt.IsNil)
	c.Assert(string(got), qt.Equals, testString1)

	got, err = ar.Find("big")
	c.Assert(err, qt.IsNil)
	c.Assert(string(got), qt.Equals, big)
}

func TestNotFound(t *testing.T) {
	c := qt.New(t)
	data := build(c, map[string]string{"test": testString1}, "test")
	ar, err := kar.Open(bytes.NewReader(data))
	c.Assert(err, qt.IsNil)

	_, err = ar.ReadAll("missing")
	c.Assert(errors.Is(err, kar.ErrNotFound), qt.IsTrue)
}

func TestDuplicate(t *testing.T) {
	c := qt.New(t)
	builder := newBuilder(c)
	c.Assert(builder.Add("test", strings.NewReader(testString1)), qt.IsNil)
	err := builder.Add("test", strings.NewReader(testString2))
	c.Assert(errors.Is(err, kar.ErrDuplicate), qt.IsTrue)
	c.Assert(builder.Len(), qt.Equals, 1)
}

func TestOpenCorrupted(t *testing.T) {
	c := qt.New(t)
	for name, data := range map[string][]byte{
		"empty":     nil,
		"magic":     []byte("TAR\x00\x01\x00\x00\x00\x00\x00\x00\x00"),
		"size":      []byte("KAR\x00\x01"),
		"truncated": []byte("KAR\x00\xff\x00\x00\x00\x00\x00\x00\x00abc"),
	} {
		_, err := kar.Open(bytes.NewReader(data))
		c.Assert(err, qt.Equals, kar.ErrFileFormat, qt.Commentf(name))
	}
}

func TestOpenFile(t *testing.T) {
	c := qt.New(t)
	data := build(c, map[string]string{"shaders/a.spv": testString1, "shaders/b.spv": testString2}, "shaders/b.spv", "shaders/a.spv")

	dir := c.TempDir()
	path := filepath.Join(dir, "bundle.kar")
	c.Assert(ioutil.WriteFile(path, data, 0644), qt.IsNil)

	ar, err := kar.OpenFile(path)
	c.Assert(err, qt.IsNil)
	defer ar.Close()

	c.Assert(ar.Names(), qt.DeepEquals, []string{"shaders/a.spv", "shaders/b.spv"})
	got, err := ar.ReadAll("shaders/a.spv")
	c.Assert(err, qt.IsNil)
	c.Assert(string(got), qt.Equals, testString1)

	_, err = kar.OpenFile(filepath.Join(dir, "missing.kar"))
	c.Assert(os.IsNotExist(errors.Cause(err)), qt.IsTrue)
}
