package runctx

import (
	"bufio"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/kmtricks-go/kmtricks/kerrors"
)

// Sample is one line of a kmtricks.fof sample descriptor (spec §6):
// "id : path1 [; path2 ...] [! abundance_min]".
type Sample struct {
	ID           string
	Paths        []string
	AbundanceMin uint64 // 0 means "use the run default"
}

// ParseFof parses a kmtricks.fof sample descriptor. Empty lines are
// ignored; a duplicate id is an InputError.
func ParseFof(r io.Reader) ([]Sample, error) {
	sc := bufio.NewScanner(r)
	seen := make(map[string]bool)
	var samples []Sample
	lineNo := 0
	for sc.Scan() {
		lineNo++
		line := strings.TrimSpace(sc.Text())
		if line == "" {
			continue
		}
		s, err := parseFofLine(line)
		if err != nil {
			return nil, &kerrors.InputError{Op: "runctx.ParseFof", Err: fmt.Errorf("line %d: %w", lineNo, err)}
		}
		if seen[s.ID] {
			return nil, &kerrors.InputError{Op: "runctx.ParseFof", Err: fmt.Errorf("line %d: duplicate sample id %q", lineNo, s.ID)}
		}
		seen[s.ID] = true
		samples = append(samples, s)
	}
	if err := sc.Err(); err != nil {
		return nil, &kerrors.InputError{Op: "runctx.ParseFof", Err: err}
	}
	return samples, nil
}

func parseFofLine(line string) (Sample, error) {
	idPart, rest, ok := strings.Cut(line, ":")
	if !ok {
		return Sample{}, fmt.Errorf("missing ':' separator in %q", line)
	}
	id := strings.TrimSpace(idPart)
	if id == "" {
		return Sample{}, fmt.Errorf("empty sample id in %q", line)
	}

	pathsPart := rest
	var abundanceMin uint64
	if p, a, ok := strings.Cut(rest, "!"); ok {
		pathsPart = p
		v, err := strconv.ParseUint(strings.TrimSpace(a), 10, 64)
		if err != nil {
			return Sample{}, fmt.Errorf("bad abundance_min in %q: %w", line, err)
		}
		abundanceMin = v
	}

	var paths []string
	for _, p := range strings.Split(pathsPart, ";") {
		p = strings.TrimSpace(p)
		if p != "" {
			paths = append(paths, p)
		}
	}
	if len(paths) == 0 {
		return Sample{}, fmt.Errorf("no input paths in %q", line)
	}
	return Sample{ID: id, Paths: paths, AbundanceMin: abundanceMin}, nil
}

// WriteFof serializes samples back to kmtricks.fof format, in order.
func WriteFof(w io.Writer, samples []Sample) error {
	for _, s := range samples {
		line := s.ID + " : " + strings.Join(s.Paths, " ; ")
		if s.AbundanceMin > 0 {
			line += fmt.Sprintf(" ! %d", s.AbundanceMin)
		}
		if _, err := fmt.Fprintln(w, line); err != nil {
			return err
		}
	}
	return nil
}
