// Package migrations embeds the PostgreSQL schema and validates the migration set
// before it is handed to golang-migrate.
package migrations

import (
	"crypto/sha256"
	"embed"
	"errors"
	"fmt"
	"io/fs"
	"path/filepath"
	"regexp"
	"slices"
	"strconv"
)

//go:embed *.sql
var embedded embed.FS

// ErrNoMigrations is returned when the file system holds no migration files.
var ErrNoMigrations = errors.New("no embedded migration files found")

// 001_create_rights.up.sql / 001_create_rights.down.sql
var filenamePattern = regexp.MustCompile(`^(\d{3})_([a-zA-Z0-9_]+)\.(up|down)\.sql$`)

// Info describes one migration file.
type Info struct {
	Sequence  int
	Name      string
	Direction string
	Filename  string
}

// Set is a validated view over a migration file system. Checksums recorded by the
// first successful Validate must match on every later call.
type Set struct {
	fs        fs.FS
	checksums map[string]string
}

// New returns a Set over fsys, or over the embedded migrations when fsys is nil.
func New(fsys fs.FS) *Set {
	if fsys == nil {
		fsys = embedded
	}

	return &Set{fs: fsys, checksums: make(map[string]string)}
}

// FS returns the underlying file system, suitable for golang-migrate's iofs source.
func (s *Set) FS() fs.FS {
	return s.fs
}

// List returns the well-formed migration filenames in lexical order, which for
// 3-digit sequences is also apply order.
func (s *Set) List() ([]string, error) {
	entries, err := fs.ReadDir(s.fs, ".")
	if err != nil {
		return nil, fmt.Errorf("failed to read migrations directory: %w", err)
	}

	files := []string{}

	for _, entry := range entries {
		if entry.IsDir() || filepath.Ext(entry.Name()) != ".sql" {
			continue
		}

		if filenamePattern.MatchString(entry.Name()) {
			files = append(files, entry.Name())
		}
	}

	slices.Sort(files)

	return files, nil
}

// Content returns the bytes of one migration file.
func (s *Set) Content(filename string) ([]byte, error) {
	return fs.ReadFile(s.fs, filename)
}

// Validate checks that every migration is readable, that up and down files pair up,
// that sequences start at 001 without gaps, and that no file changed since the
// last successful Validate.
func (s *Set) Validate() error {
	files, err := s.List()
	if err != nil {
		return err
	}

	if len(files) == 0 {
		return ErrNoMigrations
	}

	infos := make([]*Info, 0, len(files))
	sums := make(map[string]string, len(files))

	for _, file := range files {
		info, err := Parse(file)
		if err != nil {
			return err
		}

		content, err := s.Content(file)
		if err != nil {
			return fmt.Errorf("failed to read migration file %s: %w", file, err)
		}

		sum := fmt.Sprintf("%x", sha256.Sum256(content))
		if previous, ok := s.checksums[file]; ok && previous != sum {
			return fmt.Errorf("checksum mismatch for %s: file has been modified", file)
		}

		sums[file] = sum
		infos = append(infos, info)
	}

	if err := validatePairing(infos); err != nil {
		return err
	}

	if err := validateSequence(infos); err != nil {
		return err
	}

	s.checksums = sums

	return nil
}

// MaxSequence returns the highest sequence number in the set, 0 when empty.
func (s *Set) MaxSequence() int {
	files, err := s.List()
	if err != nil {
		return 0
	}

	highest := 0

	for _, file := range files {
		if info, err := Parse(file); err == nil {
			highest = max(highest, info.Sequence)
		}
	}

	return highest
}

// Parse splits a migration filename into its parts.
func Parse(filename string) (*Info, error) {
	matches := filenamePattern.FindStringSubmatch(filename)
	if len(matches) != 4 {
		return nil, fmt.Errorf(
			"invalid migration filename format: %s (expected: 001_name.up.sql or 001_name.down.sql)",
			filename,
		)
	}

	sequence, err := strconv.Atoi(matches[1])
	if err != nil {
		return nil, fmt.Errorf("invalid sequence number in filename %s: %w", filename, err)
	}

	return &Info{
		Sequence:  sequence,
		Name:      matches[2],
		Direction: matches[3],
		Filename:  filename,
	}, nil
}

func validatePairing(infos []*Info) error {
	directions := make(map[string]map[string]bool)

	for _, info := range infos {
		key := fmt.Sprintf("%03d_%s", info.Sequence, info.Name)
		if directions[key] == nil {
			directions[key] = make(map[string]bool)
		}

		directions[key][info.Direction] = true
	}

	keys := make([]string, 0, len(directions))
	for key := range directions {
		keys = append(keys, key)
	}

	slices.Sort(keys)

	for _, key := range keys {
		if !directions[key]["up"] {
			return fmt.Errorf("orphaned down migration: missing up migration for %s", key)
		}

		if !directions[key]["down"] {
			return fmt.Errorf("orphaned up migration: missing down migration for %s", key)
		}
	}

	return nil
}

func validateSequence(infos []*Info) error {
	names := make(map[int]string)

	for _, info := range infos {
		if name, ok := names[info.Sequence]; ok && name != info.Name {
			return fmt.Errorf("duplicate migration sequence %03d: %s and %s", info.Sequence, name, info.Name)
		}

		names[info.Sequence] = info.Name
	}

	sequences := make([]int, 0, len(names))
	for sequence := range names {
		sequences = append(sequences, sequence)
	}

	slices.Sort(sequences)

	if sequences[0] != 1 {
		return fmt.Errorf("migration sequence should start with 001, but found %03d", sequences[0])
	}

	for i := 1; i < len(sequences); i++ {
		if expected := sequences[i-1] + 1; sequences[i] != expected {
			return fmt.Errorf("gap in migration sequence: expected %03d, found %03d", expected, sequences[i])
		}
	}

	return nil
}
