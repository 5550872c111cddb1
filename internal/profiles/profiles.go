// Package profiles holds named image-size presets for the "tfs format"
// command, so a user can write "tfs format --profile small disk.img"
// instead of spelling out a data-block count. Grounded on the teacher's
// disks/disks.go predefined-disk-geometry table, which loads a
// go:embed'd CSV into a lookup map at package init.
package profiles

import (
	_ "embed"
	"fmt"
	"strings"

	"github.com/gocarina/gocsv"

	"github.com/tinytfs/tfs/internal/layout"
)

// Profile names a preset data-region size for a freshly formatted image.
type Profile struct {
	Slug       string `csv:"slug"`
	Name       string `csv:"name"`
	DataBlocks uint32 `csv:"data_blocks"`
	Notes      string `csv:"notes"`
}

//go:embed profiles.csv
var rawCSV string

var bySlug map[string]Profile

func init() {
	bySlug = make(map[string]Profile)
	reader := strings.NewReader(rawCSV)
	err := gocsv.UnmarshalToCallback(reader, func(row Profile) error {
		if _, exists := bySlug[row.Slug]; exists {
			return fmt.Errorf("duplicate profile slug %q", row.Slug)
		}
		if row.DataBlocks > layout.MaxDataBlockCount {
			return fmt.Errorf("profile %q exceeds the maximum data block count (%d > %d)",
				row.Slug, row.DataBlocks, layout.MaxDataBlockCount)
		}
		bySlug[row.Slug] = row
		return nil
	})
	if err != nil {
		panic(fmt.Errorf("loading image profiles: %w", err))
	}
}

// DefaultSlug is the profile used when the user doesn't pick one.
const DefaultSlug = "default"

// Get looks up a named profile.
func Get(slug string) (Profile, error) {
	p, ok := bySlug[slug]
	if !ok {
		return Profile{}, fmt.Errorf("no image profile named %q; known profiles: %s", slug, strings.Join(Names(), ", "))
	}
	return p, nil
}

// Names returns every known profile slug, for help text and error messages.
func Names() []string {
	names := make([]string, 0, len(bySlug))
	for slug := range bySlug {
		names = append(names, slug)
	}
	return names
}
