package assetstore

import (
	"context"
	"database/sql"
	"fmt"

	"golang.org/x/text/cases"
	"golang.org/x/text/unicode/norm"
)

// foldForSearch is the comparison form of names and character tags:
// NFC-composed and Unicode case folded. SQLite's LOWER only folds ASCII, so
// the folded text is computed here and stored next to the original.
func foldForSearch(value string) string {
	if value == "" {
		return ""
	}
	return cases.Fold().String(norm.NFC.String(value))
}

// backfillFolded fills the folded search columns of rows written before
// they existed. Every stored name is non-empty, so an empty name_folded
// marks a row that still needs it.
func (s *Store) backfillFolded(ctx context.Context) error {
	return s.inTx(ctx, func(tx *sql.Tx) error {
		rows, err := tx.QueryContext(ctx, `SELECT id, name, character_name FROM assets WHERE name_folded = ''`)
		if err != nil {
			return fmt.Errorf("select unfolded rows: %w", err)
		}
		type pending struct{ id, name, character string }
		var todo []pending
		for rows.Next() {
			var (
				p         pending
				character sql.NullString
			)
			if err := rows.Scan(&p.id, &p.name, &character); err != nil {
				_ = rows.Close()
				return fmt.Errorf("scan unfolded row: %w", err)
			}
			p.character = character.String
			todo = append(todo, p)
		}
		if err := rows.Close(); err != nil {
			return err
		}
		if err := rows.Err(); err != nil {
			return err
		}
		for _, p := range todo {
			if _, err := tx.ExecContext(ctx,
				`UPDATE assets SET name_folded = ?, character_folded = ? WHERE id = ?`,
				foldForSearch(p.name), foldForSearch(p.character), p.id,
			); err != nil {
				return fmt.Errorf("fold row %s: %w", p.id, err)
			}
		}
		if len(todo) > 0 {
			s.logger.Info("search columns backfilled", "rows", len(todo))
		}
		return nil
	})
}
