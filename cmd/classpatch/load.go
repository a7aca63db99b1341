package main

import (
	"fmt"
	"os"

	"github.com/chazu/classpatch/classfile"
	"github.com/chazu/classpatch/patch"
	"github.com/chazu/classpatch/universe"
)

// image is one loaded universe: the classes of an image plus the library
// classes it links against.
type image struct {
	path      string
	header    *classfile.ImageHeader
	classes   *universe.ClassSet
	libraries []*classfile.ClassNode
}

// loadImage reads path and every library into a fresh class set. Library
// classes are hidden: they resolve the hierarchy but are never patched.
func loadImage(path string, libraries []string) (*image, error) {
	header, classes, err := classfile.LoadImage(path)
	if err != nil {
		return nil, fmt.Errorf("loading image %s: %w", path, err)
	}
	img := &image{
		path:    path,
		header:  header,
		classes: universe.FromNodes(classes),
	}
	for _, lib := range libraries {
		_, libClasses, err := classfile.LoadImage(lib)
		if err != nil {
			return nil, fmt.Errorf("loading library %s: %w", lib, err)
		}
		for _, c := range libClasses {
			if img.classes.ClassWrapper(c.Name) != nil {
				log.Warningf("%s: library class %s shadowed by image", lib, c.Name)
				continue
			}
			img.classes.AddHidden(c)
			img.libraries = append(img.libraries, c)
		}
	}
	log.Debugf("loaded %s: %d classes, %d library classes", path, img.classes.Len(), len(img.libraries))
	return img, nil
}

// digest identifies the current state of the universe, libraries included.
func (img *image) digest() (classfile.Digest, error) {
	nodes := img.classes.Nodes()
	nodes = append(nodes, img.libraries...)
	return classfile.HashClasses(nodes)
}

// save writes the visible classes to path with the flags of the source
// image.
func (img *image) save(path string) error {
	var flags uint32
	if img.header != nil {
		flags = img.header.Flags
	}
	return classfile.SaveImage(path, img.classes.Nodes(), flags)
}

// selectClasses returns the named visible classes, or all of them when no
// names are given.
func (img *image) selectClasses(names []string) ([]*universe.ClassWrapper, error) {
	if len(names) == 0 {
		return img.classes.Classes(), nil
	}
	out := make([]*universe.ClassWrapper, 0, len(names))
	for _, n := range names {
		cw := img.classes.ClassWrapper(n)
		if cw == nil || cw.IsHidden() || cw.IsExternal() {
			return nil, fmt.Errorf("class %s not found in %s", n, img.path)
		}
		out = append(out, cw)
	}
	return out, nil
}

// template is a parsed template file and the digest of its source.
type template struct {
	path    string
	classes *patch.Classes
	digest  classfile.Digest
}

func loadTemplate(path string) (*template, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading template: %w", err)
	}
	classes, err := patch.ParseString(string(data))
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return &template{path: path, classes: classes, digest: classfile.HashBytes(data)}, nil
}
