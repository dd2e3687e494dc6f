// Package mutate applies feature additions, deletions, geometry
// updates, and attribute updates against a layer's backing table, each
// as a single transactional unit (§4.H).
package mutate

import (
	"database/sql"
	"fmt"
	"strconv"
	"strings"

	"github.com/pkg/errors"
	"github.com/vectorlayer/spatialite/catalog"
	"github.com/vectorlayer/spatialite/internal/log"
	"github.com/vectorlayer/spatialite/wkb"
)

// ErrReadOnlyViolation is returned when any mutation is attempted
// against a layer that is not a read-write base table.
type ErrReadOnlyViolation struct{ Table string }

func (e ErrReadOnlyViolation) Error() string {
	return fmt.Sprintf("mutate: layer %q is read-only", e.Table)
}

// FieldKind mirrors the three logical attribute types §3 maps declared
// SQL types onto.
type FieldKind int

const (
	KindInteger FieldKind = iota
	KindDouble
	KindText
)

// Feature is one row to insert: an optional geometry in the 3D dialect
// (nil means a SQL NULL geometry) and attribute values positional to
// the cols passed to InsertBatch (the layer's field schema order).
type Feature struct {
	Geom3D     []byte
	Attributes []interface{}
}

// GeomUpdate changes a single feature's geometry.
type GeomUpdate struct {
	ID    int64
	Geom3D []byte
}

// AttrUpdate changes a single feature's attribute values. Values are
// keyed by column name; a value of nil is written as SQL NULL. Features
// with a negative ID are silently skipped (§4.H).
type AttrUpdate struct {
	ID     int64
	Values map[string]interface{}
}

// Column describes a column to add via AddColumns.
type Column struct {
	Name         string
	DeclaredType string
}

func requireWritable(info *catalog.Info) error {
	if info.Class != catalog.Table || info.ReadOnly {
		return ErrReadOnlyViolation{Table: info.Query}
	}
	return nil
}

func withTx(db *sql.DB, fn func(tx *sql.Tx) error) error {
	tx, err := db.Begin()
	if err != nil {
		return errors.Wrap(err, "mutate: BEGIN")
	}
	if err := fn(tx); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil {
			log.Errorf("mutate: rollback failed after error %v: %v", err, rbErr)
		}
		return err
	}
	if err := tx.Commit(); err != nil {
		return errors.Wrap(err, "mutate: COMMIT")
	}
	return nil
}

// InsertBatch inserts features into table, binding each geometry
// through GeomFromWKB and each attribute per its declared kind. Any
// single row's failure rolls back the whole batch (§4.H atomicity);
// inserted is only meaningful when err is nil.
func InsertBatch(db *sql.DB, info *catalog.Info, table, geomCol string, srid int, dim wkb.Dim, cols []string, kinds []FieldKind, features []Feature) (inserted int, err error) {
	if err := requireWritable(info); err != nil {
		return 0, err
	}

	q := buildInsertSQL(table, geomCol, srid, cols)

	err = withTx(db, func(tx *sql.Tx) error {
		stmt, err := tx.Prepare(q)
		if err != nil {
			return errors.Wrapf(err, "mutate: preparing insert %q", q)
		}
		defer stmt.Close()

		for i, f := range features {
			args := make([]interface{}, 0, 1+len(cols))
			if f.Geom3D == nil {
				args = append(args, nil)
			} else {
				ext, convErr := wkb.ConvertFromNative(f.Geom3D, dim)
				if convErr != nil {
					return errors.Wrapf(convErr, "mutate: converting geometry for feature %d", i)
				}
				args = append(args, ext)
			}
			for j, v := range f.Attributes {
				args = append(args, bindValue(v, kinds[j]))
			}
			if _, err := stmt.Exec(args...); err != nil {
				return errors.Wrapf(err, "mutate: inserting feature %d", i)
			}
			inserted++
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	return inserted, nil
}

// buildInsertSQL composes an INSERT naming exactly geomCol followed by
// cols, with one placeholder per named column (§4.H). cols already
// includes any declared primary key column — loadFields does not
// exclude it — so no separate identity column is named here; a table
// with no declared primary key relies on SQLite's implicit ROWID,
// which needs no column of its own.
func buildInsertSQL(table, geomCol string, srid int, cols []string) string {
	allCols := append([]string{geomCol}, cols...)
	placeholders := make([]string, len(allCols))
	placeholders[0] = fmt.Sprintf("GeomFromWKB(?, %d)", srid)
	for i := 1; i < len(placeholders); i++ {
		placeholders[i] = "?"
	}
	return fmt.Sprintf("INSERT INTO %s(%s) VALUES (%s)",
		quoteIdent(table), strings.Join(quoteAll(allCols), ", "), strings.Join(placeholders, ", "))
}

func bindValue(v interface{}, kind FieldKind) interface{} {
	if v == nil {
		return nil
	}
	switch kind {
	case KindInteger, KindDouble:
		return v
	default:
		return fmt.Sprint(v)
	}
}

// DeleteSet deletes the rows named by ids, one statement execution per
// id. The whole set rolls back on any failure.
func DeleteSet(db *sql.DB, info *catalog.Info, table string, ids []int64) (deleted int, err error) {
	if err := requireWritable(info); err != nil {
		return 0, err
	}

	q := fmt.Sprintf("DELETE FROM %s WHERE ROWID=?", quoteIdent(table))
	err = withTx(db, func(tx *sql.Tx) error {
		stmt, err := tx.Prepare(q)
		if err != nil {
			return errors.Wrapf(err, "mutate: preparing delete %q", q)
		}
		defer stmt.Close()
		for _, id := range ids {
			if _, err := stmt.Exec(id); err != nil {
				return errors.Wrapf(err, "mutate: deleting id %d", id)
			}
			deleted++
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	return deleted, nil
}

// UpdateGeometries rewrites the geometry column for each named feature.
func UpdateGeometries(db *sql.DB, info *catalog.Info, table, geomCol string, srid int, dim wkb.Dim, updates []GeomUpdate) error {
	if err := requireWritable(info); err != nil {
		return err
	}

	q := fmt.Sprintf("UPDATE %s SET %s=GeomFromWKB(?, %d) WHERE ROWID=?", quoteIdent(table), quoteIdent(geomCol), srid)
	return withTx(db, func(tx *sql.Tx) error {
		stmt, err := tx.Prepare(q)
		if err != nil {
			return errors.Wrapf(err, "mutate: preparing geometry update %q", q)
		}
		defer stmt.Close()
		for _, u := range updates {
			ext, convErr := wkb.ConvertFromNative(u.Geom3D, dim)
			if convErr != nil {
				return errors.Wrapf(convErr, "mutate: converting geometry for feature %d", u.ID)
			}
			if _, err := stmt.Exec(ext, u.ID); err != nil {
				return errors.Wrapf(err, "mutate: updating geometry for feature %d", u.ID)
			}
		}
		return nil
	})
}

// UpdateAttributes composes and executes one UPDATE per feature with
// its values inlined as SQL literals (§4.H — per the §9 open question,
// this is a correctness and injection risk the original design carries
// forward rather than parameterizes; see DESIGN.md). Features with a
// negative ID are skipped.
func UpdateAttributes(db *sql.DB, info *catalog.Info, table string, updates []AttrUpdate) error {
	if err := requireWritable(info); err != nil {
		return err
	}

	return withTx(db, func(tx *sql.Tx) error {
		for _, u := range updates {
			if u.ID < 0 {
				continue
			}
			if len(u.Values) == 0 {
				continue
			}
			sets := make([]string, 0, len(u.Values))
			for col, v := range u.Values {
				sets = append(sets, fmt.Sprintf("%s=%s", quoteIdent(col), literal(v)))
			}
			q := fmt.Sprintf("UPDATE %s SET %s WHERE ROWID=%d", quoteIdent(table), strings.Join(sets, ", "), u.ID)
			if _, err := tx.Exec(q); err != nil {
				return errors.Wrapf(err, "mutate: updating attributes for feature %d", u.ID)
			}
		}
		return nil
	})
}

// literal renders v as a SQL literal: integers and floats inlined
// verbatim, strings single-quoted with internal quotes doubled, nil as
// the bareword NULL.
func literal(v interface{}) string {
	switch vv := v.(type) {
	case nil:
		return "NULL"
	case int:
		return strconv.Itoa(vv)
	case int64:
		return strconv.FormatInt(vv, 10)
	case float64:
		return strconv.FormatFloat(vv, 'g', -1, 64)
	case string:
		return "'" + strings.ReplaceAll(vv, "'", "''") + "'"
	default:
		return "'" + strings.ReplaceAll(fmt.Sprint(vv), "'", "''") + "'"
	}
}

// AddColumns adds each column to table, then the caller should reload
// the layer's field schema (§4.H).
func AddColumns(db *sql.DB, info *catalog.Info, table string, cols []Column) error {
	if err := requireWritable(info); err != nil {
		return err
	}

	return withTx(db, func(tx *sql.Tx) error {
		for _, c := range cols {
			q := fmt.Sprintf("ALTER TABLE %s ADD COLUMN %s %s", quoteIdent(table), quoteIdent(c.Name), c.DeclaredType)
			if _, err := tx.Exec(q); err != nil {
				return errors.Wrapf(err, "mutate: adding column %q", c.Name)
			}
		}
		return nil
	})
}

func quoteIdent(name string) string {
	return `"` + strings.ReplaceAll(name, `"`, `""`) + `"`
}

func quoteAll(names []string) []string {
	out := make([]string, len(names))
	for i, n := range names {
		out[i] = quoteIdent(n)
	}
	return out
}
