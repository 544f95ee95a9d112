// Package catalog persists and loads the mutation catalog: one
// colon-delimited line per mutation, in id order.
package catalog

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	m "irmut.dev/pkg/irmut/internal/model"
)

// ErrMalformed is wrapped by every parse failure.
var ErrMalformed = errors.New("malformed catalog line")

// DefaultPath returns $HOME/tmp/irmut/mutations.txt.
func DefaultPath() (string, error) {
	home := os.Getenv("HOME")
	if home == "" {
		return "", errors.New("catalog: HOME is not set")
	}

	return filepath.Join(home, "tmp", "irmut", "mutations.txt"), nil
}

// EncodeLine renders one mutation in the catalog grammar
// <id>:<KIND>:<function>:<index>:<tail>.
func EncodeLine(mut m.Mutation) string {
	head := fmt.Sprintf("%d:%s:%s:%d", mut.ID, mut.Kind, mut.Function, mut.Index)

	switch mut.Kind {
	case m.KindAOR, m.KindLOR:
		return fmt.Sprintf("%s:%d:%d", head, mut.Op, mut.TOp)
	case m.KindROR:
		return fmt.Sprintf("%s:%d:%d:%d", head, mut.Op, mut.SPre, mut.TPre)
	case m.KindSTD:
		return fmt.Sprintf("%s:%d:%d", head, mut.Op, mut.FTp)
	case m.KindLVR:
		return fmt.Sprintf("%s:%d:%d:%d:%d", head, mut.Op, mut.OpIndex, mut.SCon, mut.TCon)
	}

	return head
}

// ParseLine parses one catalog line.
func ParseLine(line string) (m.Mutation, error) {
	var mut m.Mutation

	fields := strings.Split(strings.TrimSpace(line), ":")
	if len(fields) < 6 {
		return mut, fmt.Errorf("%w: %q", ErrMalformed, line)
	}

	id, err := strconv.Atoi(fields[0])
	if err != nil || id < 1 || id > m.MaxMutNum {
		return mut, fmt.Errorf("%w: bad id in %q", ErrMalformed, line)
	}

	idx, err := strconv.Atoi(fields[3])
	if err != nil || idx < 0 {
		return mut, fmt.Errorf("%w: bad index in %q", ErrMalformed, line)
	}

	mut.ID = id
	mut.Kind = m.Kind(fields[1])
	mut.Function = fields[2]
	mut.Index = idx

	tail := fields[4:]

	ints := make([]int64, len(tail))
	for i, f := range tail {
		v, err := strconv.ParseInt(f, 10, 64)
		if err != nil {
			return mut, fmt.Errorf("%w: bad field %q in %q", ErrMalformed, f, line)
		}

		ints[i] = v
	}

	switch mut.Kind {
	case m.KindAOR, m.KindLOR:
		if len(ints) != 2 {
			return mut, fmt.Errorf("%w: %s wants 2 tail fields in %q", ErrMalformed, mut.Kind, line)
		}

		mut.Op, mut.TOp = m.Opcode(ints[0]), m.Opcode(ints[1])
	case m.KindROR:
		if len(ints) != 3 {
			return mut, fmt.Errorf("%w: ROR wants 3 tail fields in %q", ErrMalformed, line)
		}

		mut.Op = m.Opcode(ints[0])
		mut.SPre, mut.TPre = m.Predicate(ints[1]), m.Predicate(ints[2])
	case m.KindSTD:
		if len(ints) != 2 {
			return mut, fmt.Errorf("%w: STD wants 2 tail fields in %q", ErrMalformed, line)
		}

		mut.Op, mut.FTp = m.Opcode(ints[0]), m.TypeTag(ints[1])
	case m.KindLVR:
		if len(ints) != 4 {
			return mut, fmt.Errorf("%w: LVR wants 4 tail fields in %q", ErrMalformed, line)
		}

		mut.Op = m.Opcode(ints[0])
		mut.OpIndex = int(ints[1])
		mut.SCon, mut.TCon = ints[2], ints[3]
	default:
		return mut, fmt.Errorf("%w: unknown kind %q in %q", ErrMalformed, fields[1], line)
	}

	return mut, nil
}

// Write streams the catalog to w, one line per mutation.
func Write(w io.Writer, muts []m.Mutation) error {
	bw := bufio.NewWriter(w)
	for _, mut := range muts {
		if _, err := bw.WriteString(EncodeLine(mut) + "\n"); err != nil {
			return fmt.Errorf("catalog write: %w", err)
		}
	}

	return bw.Flush()
}

// Read parses a whole catalog stream, enforcing dense id order 1..N.
func Read(r io.Reader) ([]m.Mutation, error) {
	var muts []m.Mutation

	sc := bufio.NewScanner(r)
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" {
			continue
		}

		mut, err := ParseLine(line)
		if err != nil {
			return nil, err
		}

		if mut.ID != len(muts)+1 {
			return nil, fmt.Errorf("%w: id %d out of order, want %d", ErrMalformed, mut.ID, len(muts)+1)
		}

		muts = append(muts, mut)
	}

	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("catalog read: %w", err)
	}

	return muts, nil
}

// Save writes the catalog to path, creating parent directories.
func Save(path string, muts []m.Mutation) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("catalog save: %w", err)
	}

	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("catalog save: %w", err)
	}
	defer f.Close()

	return Write(f, muts)
}

// Load reads the catalog at path.
func Load(path string) ([]m.Mutation, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("catalog load: %w", err)
	}
	defer f.Close()

	return Read(f)
}
