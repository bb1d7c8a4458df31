package tract

import (
	"bufio"
	"fmt"
	"io"
	"strconv"
	"strings"
)

// maxLineBytes bounds a single transaction line.
const maxLineBytes = 1 << 20

// ReadOptions controls the text transaction format.
type ReadOptions struct {
	// Separators lists the runes that split items. Defaults to blank, tab and comma.
	Separators string

	// Comment starts a comment line. Defaults to "#".
	Comment string

	// Weights enables a trailing ": weight" suffix on each line.
	Weights bool
}

func (o ReadOptions) withDefaults() ReadOptions {
	if o.Separators == "" {
		o.Separators = " \t,"
	}
	if o.Comment == "" {
		o.Comment = "#"
	}
	return o
}

// Read parses one transaction per line from r and builds a Database.
// Comment lines are skipped. A blank line is an empty transaction: it holds
// no items but counts towards the total weight.
func Read(r io.Reader, opts ReadOptions) (*Database, error) {
	b := NewBuilder()
	if err := ReadInto(b, r, opts); err != nil {
		return nil, err
	}
	return b.Build()
}

// ReadInto parses transactions from r into an existing Builder.
func ReadInto(b *Builder, r io.Reader, opts ReadOptions) error {
	opts = opts.withDefaults()

	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), maxLineBytes)

	split := func(c rune) bool { return strings.ContainsRune(opts.Separators, c) }

	lineNo := 0
	for scanner.Scan() {
		lineNo++
		line := strings.TrimSpace(scanner.Text())
		if line != "" && strings.HasPrefix(line, opts.Comment) {
			continue
		}

		weight := 1
		if opts.Weights {
			if idx := strings.LastIndexByte(line, ':'); idx >= 0 {
				w, err := strconv.Atoi(strings.TrimSpace(line[idx+1:]))
				if err != nil || w <= 0 {
					return fmt.Errorf("%w: line %d: bad weight %q",
						ErrInvalidInput, lineNo, strings.TrimSpace(line[idx+1:]))
				}
				weight = w
				line = line[:idx]
			}
		}

		if err := b.Add(strings.FieldsFunc(line, split), weight); err != nil {
			return fmt.Errorf("line %d: %w", lineNo, err)
		}
	}

	if err := scanner.Err(); err != nil {
		return fmt.Errorf("%w: line %d: %v", ErrInvalidInput, lineNo+1, err)
	}
	return nil
}
