//go:build property

package watcher

import (
	"fmt"
	"sort"
	"testing"
	"time"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
)

func TestDebouncerProperties(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.Rng.Seed(9876)
	parameters.MinSuccessfulTests = 100

	properties := gopter.NewProperties(parameters)

	properties.Property("flush emits one sorted event per path", prop.ForAll(
		func(indexes []int) bool {
			if len(indexes) == 0 {
				return true
			}

			d := &Debouncer{
				delay:  time.Hour,
				events: make(chan ChangeEvent, 1),
				output: make(chan []ChangeEvent, 1),
			}
			unique := map[string]bool{}
			for i, n := range indexes {
				path := fmt.Sprintf("file%d.go", n)
				unique[path] = true
				d.pending = append(d.pending, ChangeEvent{Path: path, Size: int64(i)})
			}
			d.flush()

			batch := <-d.output
			if len(batch) != len(unique) {
				return false
			}
			return sort.SliceIsSorted(batch, func(i, j int) bool { return batch[i].Path < batch[j].Path }) &&
				len(d.pending) == 0
		},
		gen.SliceOf(gen.IntRange(0, 20)),
	))

	properties.Property("the latest event for a path wins", prop.ForAll(
		func(sizes []int64) bool {
			if len(sizes) == 0 {
				return true
			}
			d := &Debouncer{output: make(chan []ChangeEvent, 1)}
			for _, s := range sizes {
				d.pending = append(d.pending, ChangeEvent{Path: "same.go", Size: s})
			}
			d.flush()

			batch := <-d.output
			return len(batch) == 1 && batch[0].Size == sizes[len(sizes)-1]
		},
		gen.SliceOf(gen.Int64()),
	))

	properties.TestingRun(t)
}

func TestFilterProperties(t *testing.T) {
	properties := gopter.NewProperties(nil)

	properties.Property("extension filter ignores case", prop.ForAll(
		func(name string) bool {
			filter := ExtensionFilter([]string{".go"})
			return filter(name+".go") && filter(name+".GO") && !filter(name+".gox")
		},
		gen.Identifier(),
	))

	properties.Property("paths under ignored directories are rejected", prop.ForAll(
		func(prefix, name string) bool {
			if ignoredDirs[prefix] {
				return true
			}
			for dir := range ignoredDirs {
				if NoIgnoredDirFilter(prefix + "/" + dir + "/" + name + ".go") {
					return false
				}
			}
			return NoIgnoredDirFilter(prefix + "/" + name + ".go")
		},
		gen.Identifier(),
		gen.Identifier(),
	))

	properties.TestingRun(t)
}
