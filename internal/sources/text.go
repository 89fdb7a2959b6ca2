package sources

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/jackc/pgx/v5/pgtype"

	"github.com/JonMunkholm/lifetable/internal/core"
)

// preambleLines is the title block above the header of HMD and HFD text files.
const preambleLines = 2

// ctxCheckInterval is how many rows are read between cancellation checks.
const ctxCheckInterval = 1000

// rowFunc receives one data row. line is the 1-based line number in the file.
type rowFunc func(line int, row []string, idx core.HeaderIndex)

// scanTextTable reads a whitespace-delimited table: skip preamble lines, one
// header line, then data rows. Missing required columns fail the file.
func scanTextTable(ctx context.Context, path string, specs []core.FieldSpec, fn rowFunc) error {
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("read source: %w", err)
	}
	defer f.Close()

	sc := core.NewFieldScanner(f)
	if !sc.Skip(preambleLines) {
		return fmt.Errorf("read source %s: file ends inside its preamble", path)
	}
	header := sc.Next()
	if header == nil {
		return fmt.Errorf("read source %s: no header line", path)
	}
	idx := core.MakeHeaderIndex(header)
	if err := core.ValidateHeader(specs, idx); err != nil {
		return fmt.Errorf("%s: %w", filepath.Base(path), err)
	}

	n := 0
	for row := sc.Next(); row != nil; row = sc.Next() {
		n++
		if n%ctxCheckInterval == 0 {
			if err := ctx.Err(); err != nil {
				return err
			}
		}
		fn(sc.Line(), row, idx)
	}
	if err := sc.Err(); err != nil {
		return fmt.Errorf("read source %s: %w", path, err)
	}
	return nil
}

// coercions counts present-but-unparseable cells per column, so a file with
// many bad cells yields one warning per column instead of one per cell.
type coercions struct {
	source string
	file   string
	counts map[string]int
	order  []string
}

func newCoercions(source, path string) *coercions {
	return &coercions{source: source, file: filepath.Base(path), counts: make(map[string]int)}
}

// float parses raw, counting it when it held text that is not a number.
func (c *coercions) float(col, raw string) pgtype.Float8 {
	v := core.ToFloat8(raw)
	if !v.Valid && core.ToText(raw).Valid {
		if c.counts[col] == 0 {
			c.order = append(c.order, col)
		}
		c.counts[col]++
	}
	return v
}

func (c *coercions) report(rep *core.Report) {
	for _, col := range c.order {
		rep.Warnf(c.source, "", "%s: %d non-numeric %s values coerced to missing", c.file, c.counts[col], col)
	}
}

// dropRow reports a row that could not be keyed.
func dropRow(rep *core.Report, source, path string, line int, err error) {
	rep.Add(core.Issue{
		Kind:    core.IssueDataQuality,
		Source:  source,
		Message: fmt.Sprintf("%s line %d: %v; row dropped", filepath.Base(path), line, err),
	})
}

// malformedKey reports a row whose population code is unusable.
func malformedKey(rep *core.Report, source, raw, path string, line int) {
	rep.Add(core.Issue{
		Kind:    core.IssueMalformedKey,
		Source:  source,
		Key:     raw,
		Message: fmt.Sprintf("%s line %d: population code too short; row dropped", filepath.Base(path), line),
	})
}

// codeFromFilename returns the population code of per-country files such as
// "AUS.fltper_1x1.txt".
func codeFromFilename(path string) string {
	name := filepath.Base(path)
	if i := strings.IndexByte(name, '.'); i > 0 {
		return name[:i]
	}
	return name
}
