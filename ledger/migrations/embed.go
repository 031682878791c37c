// Package migrations embeds the ledger's schema migrations and validates
// their filenames before golang-migrate ever sees them.
package migrations

import (
	"crypto/sha256"
	"embed"
	"encoding/hex"
	"fmt"
	"io/fs"
	"regexp"
	"sort"
	"strconv"
)

//go:embed *.sql
var embeddedMigrations embed.FS

var migrationFilenameRegex = regexp.MustCompile(`^(\d{3})_([a-zA-Z0-9_]+)\.(up|down)\.sql$`)

// FS returns the embedded migration files for golang-migrate's iofs source.
func FS() fs.FS {
	return embeddedMigrations
}

// Validate checks that every embedded file matches the naming convention,
// that each sequence number has both an up and a down file, and that the
// sequence has no gaps starting from 001.
func Validate() error {
	entries, err := embeddedMigrations.ReadDir(".")
	if err != nil {
		return fmt.Errorf("migrations: read embedded dir: %w", err)
	}

	seen := make(map[int]map[string]bool)
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		m := migrationFilenameRegex.FindStringSubmatch(entry.Name())
		if m == nil {
			return fmt.Errorf("migrations: %q does not match NNN_name.(up|down).sql", entry.Name())
		}
		seq, err := strconv.Atoi(m[1])
		if err != nil {
			return fmt.Errorf("migrations: %q has unparsable sequence number: %w", entry.Name(), err)
		}
		if seen[seq] == nil {
			seen[seq] = make(map[string]bool)
		}
		seen[seq][m[3]] = true
	}

	if len(seen) == 0 {
		return fmt.Errorf("migrations: no embedded migrations found")
	}

	sequences := make([]int, 0, len(seen))
	for seq := range seen {
		sequences = append(sequences, seq)
	}
	sort.Ints(sequences)

	for i, seq := range sequences {
		if !seen[seq]["up"] || !seen[seq]["down"] {
			return fmt.Errorf("migrations: sequence %03d is missing an up or down file", seq)
		}
		if i == 0 && seq != 1 {
			return fmt.Errorf("migrations: sequence must start at 001, starts at %03d", seq)
		}
		if i > 0 && seq != sequences[i-1]+1 {
			return fmt.Errorf("migrations: gap in migration sequence between %03d and %03d", sequences[i-1], seq)
		}
	}
	return nil
}

// Checksum returns the SHA-256 hex digest of an embedded migration file's
// contents, used by callers that want to log what was actually applied.
func Checksum(name string) (string, error) {
	data, err := embeddedMigrations.ReadFile(name)
	if err != nil {
		return "", err
	}
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:]), nil
}

// Names returns the embedded migration filenames in sorted order.
func Names() ([]string, error) {
	entries, err := embeddedMigrations.ReadDir(".")
	if err != nil {
		return nil, err
	}
	names := make([]string, 0, len(entries))
	for _, e := range entries {
		if !e.IsDir() {
			names = append(names, e.Name())
		}
	}
	sort.Strings(names)
	return names, nil
}
