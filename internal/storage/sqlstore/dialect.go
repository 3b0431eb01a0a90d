package sqlstore

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"moneyboard/internal/storage"

	"github.com/lib/pq"
)

// Dialect captures the differences between the SQL backends. Queries are
// written with ? placeholders and rebound per dialect.
type Dialect struct {
	Name      string
	driver    string
	numbered  bool
	forUpdate string
	dsn       func(string) string
}

var (
	SQLite = Dialect{
		Name:   "sqlite",
		driver: "sqlite",
		// immediate transactions take the write lock up front, so a batch
		// never fails halfway with SQLITE_BUSY after its reads.
		dsn: func(path string) string {
			sep := "?"
			if strings.Contains(path, "?") {
				sep = "&"
			}
			return path + sep + "_txlock=immediate&_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)"
		},
	}
	Postgres = Dialect{
		Name:      "postgres",
		driver:    "postgres",
		numbered:  true,
		forUpdate: " FOR UPDATE",
		dsn:       func(s string) string { return s },
	}
)

// Rebind rewrites ? placeholders into $1, $2... for numbered dialects.
func (d Dialect) Rebind(q string) string {
	if !d.numbered {
		return q
	}
	var b strings.Builder
	b.Grow(len(q) + 8)
	n := 0
	for _, r := range q {
		if r == '?' {
			n++
			b.WriteByte('$')
			b.WriteString(strconv.Itoa(n))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

// mapInsertError turns a unique-key violation into storage.ErrDuplicate, so
// a create that lost a race reads the same as one rejected by ensureAbsent.
func mapInsertError(table, id string, err error) error {
	if err == nil {
		return nil
	}
	var pqErr *pq.Error
	if errors.As(err, &pqErr) && pqErr.Code == "23505" {
		return fmt.Errorf("%s %s: %w: %v", table, id, storage.ErrDuplicate, err)
	}
	if strings.Contains(err.Error(), "UNIQUE constraint failed") {
		return fmt.Errorf("%s %s: %w: %v", table, id, storage.ErrDuplicate, err)
	}
	return err
}
