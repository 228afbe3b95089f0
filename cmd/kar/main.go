// Copyright (c) 2019 devblok
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

package main

import (
	"flag"
	"io/ioutil"
	"os"
	"os/user"
	"path/filepath"
	"strings"
	"time"

	"github.com/devblok/paphos/utility/kar"
	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
)

var (
	author   = flag.String("author", currentUserName(), "Set the author of the package when compressing")
	version  = flag.Int64("version", 1, "Archive version number to create it with")
	extract  = flag.String("e", "", "Extract the archive given")
	compress = flag.String("c", "", "Compress the given file/folder")
	dstFile  = flag.String("f", "out.kar", "Destination file, or directory when extracting")
	list     = flag.String("l", "", "List the files of the archive given")
	silent   = flag.Bool("s", false, "Silent")
)

func currentUserName() string {
	u, err := user.Current()
	if err != nil {
		return "unknown"
	}
	return u.Username
}

func main() {
	flag.Parse()
	if *silent {
		log.SetLevel(log.WarnLevel)
	}

	ops := 0
	for _, op := range []string{*extract, *compress, *list} {
		if op != "" {
			ops++
		}
	}
	if ops > 1 {
		log.Fatal("only one operation at a time")
	}

	var err error
	switch {
	case *compress != "":
		err = compressFiles(*compress, *dstFile)
	case *extract != "":
		err = extractFiles(*extract, *dstFile)
	case *list != "":
		err = listFiles(*list)
	default:
		flag.PrintDefaults()
	}
	if err != nil {
		log.WithError(err).Fatal("kar")
	}
}

// compressFiles adds every regular file under src, named by its path
// relative to src with forward slashes.
func compressFiles(src, dst string) error {
	if _, err := os.Stat(dst); err == nil {
		return errors.New("destination file exists, will not overwrite")
	}

	var filesToCompress []string
	if err := filepath.Walk(src, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if info.Mode().IsRegular() {
			filesToCompress = append(filesToCompress, path)
		}
		return nil
	}); err != nil {
		return err
	}

	karBuilder, err := kar.NewBuilder(kar.Header{
		Author:      *author,
		DateCreated: time.Now().Unix(),
		Version:     *version,
	})
	if err != nil {
		return err
	}
	defer karBuilder.Close()

	for _, ftc := range filesToCompress {
		name, err := filepath.Rel(src, ftc)
		if err != nil || name == "." {
			name = filepath.Base(ftc)
		}
		if err := addFile(karBuilder, filepath.ToSlash(name), ftc); err != nil {
			return err
		}
		log.WithField("file", name).Info("added")
	}

	out, err := os.Create(dst)
	if err != nil {
		return err
	}
	written, err := karBuilder.WriteTo(out)
	if cerr := out.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		return err
	}
	log.WithFields(log.Fields{"files": len(filesToCompress), "bytes": written}).Info("archive written")
	return nil
}

func addFile(b *kar.Builder, name, path string) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()
	return b.Add(name, f)
}

func extractFiles(src, dst string) error {
	ar, err := kar.OpenFile(src)
	if err != nil {
		return err
	}
	defer ar.Close()

	for _, name := range ar.Names() {
		data, err := ar.ReadAll(name)
		if err != nil {
			return err
		}
		path := filepath.Join(dst, filepath.FromSlash(name))
		if !strings.HasPrefix(path, filepath.Clean(dst)+string(os.PathSeparator)) {
			return errors.Errorf("%s escapes the destination", name)
		}
		if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
			return err
		}
		if err := ioutil.WriteFile(path, data, 0644); err != nil {
			return err
		}
		log.WithField("file", name).Info("extracted")
	}
	return nil
}

func listFiles(src string) error {
	ar, err := kar.OpenFile(src)
	if err != nil {
		return err
	}
	defer ar.Close()

	header := ar.Header()
	log.WithFields(log.Fields{
		"author":  header.Author,
		"version": header.Version,
		"created": time.Unix(header.DateCreated, 0),
	}).Info(src)
	for _, e := range header.Index {
		log.WithFields(log.Fields{"size": e.Size, "compressed": e.CompressedSize}).Info(e.Name)
	}
	return nil
}
