package loader

import (
	"context"
	"fmt"
	"strings"

	"github.com/foxzi/mailseed/internal/metrics"
	"github.com/foxzi/mailseed/internal/store"
)

// chunk is a contiguous slice of a table's rows
type chunk struct {
	offset int
	rows   []row
}

func chunks(t *table, size int) []chunk {
	var out []chunk
	for off := 0; off < len(t.rows); off += size {
		end := off + size
		if end > len(t.rows) {
			end = len(t.rows)
		}
		out = append(out, chunk{offset: off, rows: t.rows[off:end]})
	}
	return out
}

func (c chunk) ids() []string {
	ids := make([]string, len(c.rows))
	for i, r := range c.rows {
		ids[i] = r.id
	}
	return ids
}

// insertChunk writes one multi-row INSERT
func (l *Loader) insertChunk(ctx context.Context, ex execer, t *table, c chunk, index int) error {
	if err := l.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("insert %s chunk %d: %w", t.name, index, err)
	}

	rowMarks := "(" + store.Placeholders(len(t.columns)) + ")"
	var b strings.Builder
	b.WriteString("INSERT INTO ")
	b.WriteString(t.name)
	b.WriteString(" (")
	b.WriteString(strings.Join(t.columns, ", "))
	b.WriteString(") VALUES ")

	args := make([]any, 0, len(c.rows)*len(t.columns))
	for i, r := range c.rows {
		if i > 0 {
			b.WriteString(", ")
		}
		b.WriteString(rowMarks)
		args = append(args, r.vals...)
	}

	_, err := ex.ExecContext(ctx, l.db.Rebind(b.String()), args...)
	metrics.IncChunk(t.name, err)
	if err != nil {
		first, last := c.rows[0].ref, c.rows[len(c.rows)-1].ref
		return fmt.Errorf("insert %s chunk %d (rows %d-%d, %s..%s): %w",
			t.name, index, c.offset, c.offset+len(c.rows)-1, first, last, err)
	}

	metrics.AddRowsInserted(t.name, len(c.rows))
	l.logger.Debug("chunk inserted", "table", t.name, "chunk", index, "rows", len(c.rows))
	return nil
}
