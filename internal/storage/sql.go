package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"serreclub/internal/club"
)

var _ club.Store = (*SQLStore)(nil)

// SQLStore keeps every resource family in its own tables. Multi-step
// mutations run in one transaction each.
type SQLStore struct {
	DB      *sql.DB
	Dialect Dialect
}

func NewSQLStore(db *sql.DB, d Dialect) *SQLStore {
	return &SQLStore{DB: db, Dialect: d}
}

func (s *SQLStore) Close() error { return s.DB.Close() }

func (s *SQLStore) Ping(ctx context.Context) error { return s.DB.PingContext(ctx) }

func (s *SQLStore) q(query string) string { return s.Dialect.rebind(query) }

// withTx runs fn in a transaction and commits when fn succeeds.
func (s *SQLStore) withTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	tx, err := s.DB.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if err := fn(tx); err != nil {
		return err
	}
	return tx.Commit()
}

// serialize makes concurrent transactions replacing the same set of rows run
// one after the other. A single-connection SQLite pool already does that; on
// Postgres a delete-then-insert at READ COMMITTED does not, so the set is
// guarded by a transaction-scoped advisory lock.
func (s *SQLStore) serialize(ctx context.Context, tx *sql.Tx, key string) error {
	if s.Dialect != DialectPostgres {
		return nil
	}
	_, err := tx.ExecContext(ctx, `SELECT pg_advisory_xact_lock(hashtext($1))`, key)
	return err
}

// ---------------------------------------------------------------------------
// Members
// ---------------------------------------------------------------------------

func (s *SQLStore) ListMembers(ctx context.Context) ([]club.Member, error) {
	rows, err := s.DB.QueryContext(ctx, `SELECT login, pass_hash, role, serre FROM members ORDER BY login`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	members := []club.Member{}
	for rows.Next() {
		var m club.Member
		if err := rows.Scan(&m.Login, &m.PassHash, &m.Role, &m.Serre); err != nil {
			return nil, err
		}
		members = append(members, m)
	}
	return members, rows.Err()
}

func (s *SQLStore) GetMember(ctx context.Context, login string) (*club.Member, error) {
	var m club.Member
	err := s.DB.QueryRowContext(ctx, s.q(`SELECT login, pass_hash, role, serre FROM members WHERE login = ?`), login).
		Scan(&m.Login, &m.PassHash, &m.Role, &m.Serre)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &m, nil
}

func (s *SQLStore) UpsertMember(ctx context.Context, m club.Member) error {
	_, err := s.DB.ExecContext(ctx, s.q(
		`INSERT INTO members (login, pass_hash, role, serre) VALUES (?, ?, ?, ?)
		 ON CONFLICT (login) DO UPDATE SET pass_hash = excluded.pass_hash, role = excluded.role, serre = excluded.serre`),
		m.Login, m.PassHash, m.Role, m.Serre,
	)
	return err
}

func (s *SQLStore) DeleteMember(ctx context.Context, login string) (int64, error) {
	res, err := s.DB.ExecContext(ctx, s.q(`DELETE FROM members WHERE login = ?`), login)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

func (s *SQLStore) DeleteAllMembers(ctx context.Context) error {
	_, err := s.DB.ExecContext(ctx, `DELETE FROM members`)
	return err
}

// ---------------------------------------------------------------------------
// Login history
// ---------------------------------------------------------------------------

func (s *SQLStore) AppendLogin(ctx context.Context, e club.LoginHistoryEntry) error {
	_, err := s.DB.ExecContext(ctx, s.q(`INSERT INTO login_history (username, role, logged_at) VALUES (?, ?, ?)`),
		e.Username, e.Role, e.Date.UnixMilli())
	return err
}

// ListLogins returns the newest entries first.
func (s *SQLStore) ListLogins(ctx context.Context) ([]club.LoginHistoryEntry, error) {
	rows, err := s.DB.QueryContext(ctx, `SELECT username, role, logged_at FROM login_history ORDER BY id DESC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	entries := []club.LoginHistoryEntry{}
	for rows.Next() {
		var e club.LoginHistoryEntry
		var at int64
		if err := rows.Scan(&e.Username, &e.Role, &at); err != nil {
			return nil, err
		}
		e.Date = time.UnixMilli(at).UTC()
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

func (s *SQLStore) ClearLogins(ctx context.Context) error {
	_, err := s.DB.ExecContext(ctx, `DELETE FROM login_history`)
	return err
}

// ---------------------------------------------------------------------------
// Population
// ---------------------------------------------------------------------------

func (s *SQLStore) ListPopulation(ctx context.Context) ([]club.PopulationEntry, error) {
	rows, err := s.DB.QueryContext(ctx,
		`SELECT member_username, species_name, source, total_count FROM population ORDER BY member_username, species_name, id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	entries := []club.PopulationEntry{}
	for rows.Next() {
		var e club.PopulationEntry
		if err := rows.Scan(&e.MemberUsername, &e.SpeciesName, &e.Source, &e.TotalCount); err != nil {
			return nil, err
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

func (s *SQLStore) ReplacePopulation(ctx context.Context, member string, entries []club.PopulationEntry) (int, error) {
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		if err := s.serialize(ctx, tx, "population:"+member); err != nil {
			return err
		}
		if _, err := tx.ExecContext(ctx, s.q(`DELETE FROM population WHERE member_username = ?`), member); err != nil {
			return err
		}
		stmt, err := tx.PrepareContext(ctx, s.q(
			`INSERT INTO population (member_username, species_name, source, total_count) VALUES (?, ?, ?, ?)`))
		if err != nil {
			return err
		}
		defer stmt.Close()
		for _, e := range entries {
			if _, err := stmt.ExecContext(ctx, member, e.SpeciesName, e.Source, e.TotalCount); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	return len(entries), nil
}

// ---------------------------------------------------------------------------
// Annonces
// ---------------------------------------------------------------------------

const annonceColumns = `id, titre, type, description, categorie, auteur, prive, favori_par, created_at`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanAnnonce(row rowScanner) (*club.Annonce, error) {
	var a club.Annonce
	var favs string
	var created int64
	if err := row.Scan(&a.ID, &a.Titre, &a.Type, &a.Description, &a.Categorie, &a.Auteur, &a.Prive, &favs, &created); err != nil {
		return nil, err
	}
	// A damaged favorites column reads as an empty set.
	if err := json.Unmarshal([]byte(favs), &a.FavoriPar); err != nil {
		a.FavoriPar = nil
	}
	a.CreatedAt = time.UnixMilli(created).UTC()
	norm := club.NormalizeAnnonce(a)
	return &norm, nil
}

func (s *SQLStore) ListAnnonces(ctx context.Context) ([]club.Annonce, error) {
	rows, err := s.DB.QueryContext(ctx, `SELECT `+annonceColumns+` FROM annonces ORDER BY created_at DESC, id DESC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	ads := []club.Annonce{}
	for rows.Next() {
		a, err := scanAnnonce(rows)
		if err != nil {
			return nil, err
		}
		ads = append(ads, *a)
	}
	return ads, rows.Err()
}

func (s *SQLStore) GetAnnonce(ctx context.Context, id string) (*club.Annonce, error) {
	a, err := scanAnnonce(s.DB.QueryRowContext(ctx, s.q(`SELECT `+annonceColumns+` FROM annonces WHERE id = ?`), id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	return a, err
}

func (s *SQLStore) InsertAnnonce(ctx context.Context, a club.Annonce) error {
	a = club.NormalizeAnnonce(a)
	favs, err := json.Marshal(a.FavoriPar)
	if err != nil {
		return err
	}
	_, err = s.DB.ExecContext(ctx, s.q(
		`INSERT INTO annonces (`+annonceColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`),
		a.ID, a.Titre, a.Type, a.Description, a.Categorie, a.Auteur, a.Prive, string(favs), a.CreatedAt.UnixMilli(),
	)
	return err
}

// lockedAnnonce reads an ad inside tx, locking its row where the dialect
// supports it.
func (s *SQLStore) lockedAnnonce(ctx context.Context, tx *sql.Tx, id string) (*club.Annonce, error) {
	a, err := scanAnnonce(tx.QueryRowContext(ctx, s.q(`SELECT `+annonceColumns+` FROM annonces WHERE id = ?`)+s.Dialect.lockRow(), id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("annonce %s: %w", id, club.ErrNotFound)
	}
	return a, err
}

func (s *SQLStore) UpdateAnnonce(ctx context.Context, id string, mutate func(*club.Annonce) error) (*club.Annonce, error) {
	var out *club.Annonce
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		a, err := s.lockedAnnonce(ctx, tx, id)
		if err != nil {
			return err
		}
		if err := mutate(a); err != nil {
			return err
		}
		norm := club.NormalizeAnnonce(*a)
		favs, err := json.Marshal(norm.FavoriPar)
		if err != nil {
			return err
		}
		if _, err := tx.ExecContext(ctx, s.q(
			`UPDATE annonces SET titre = ?, type = ?, description = ?, categorie = ?, prive = ?, favori_par = ? WHERE id = ?`),
			norm.Titre, norm.Type, norm.Description, norm.Categorie, norm.Prive, string(favs), id,
		); err != nil {
			return err
		}
		out = &norm
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (s *SQLStore) DeleteAnnonce(ctx context.Context, id string, check func(*club.Annonce) error) error {
	return s.withTx(ctx, func(tx *sql.Tx) error {
		a, err := s.lockedAnnonce(ctx, tx, id)
		if err != nil {
			return err
		}
		if err := check(a); err != nil {
			return err
		}
		_, err = tx.ExecContext(ctx, s.q(`DELETE FROM annonces WHERE id = ?`), id)
		return err
	})
}

// ---------------------------------------------------------------------------
// Serre
// ---------------------------------------------------------------------------

func (s *SQLStore) GetSerre(ctx context.Context) (*club.Serre, error) {
	var out club.Serre
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		err := tx.QueryRowContext(ctx, `SELECT notes FROM serre_notes WHERE id = 1`).Scan(&out.Notes)
		if err != nil && !errors.Is(err, sql.ErrNoRows) {
			return err
		}

		if out.Bacs, err = s.readBacs(ctx, tx); err != nil {
			return err
		}
		if out.Assignments, err = s.readAssignments(ctx, tx); err != nil {
			return err
		}
		out.Feed, err = s.readFeed(ctx, tx)
		return err
	})
	if err != nil {
		return nil, err
	}
	norm := club.NormalizeSerre(out)
	return &norm, nil
}

func (s *SQLStore) readBacs(ctx context.Context, tx *sql.Tx) ([]club.Bac, error) {
	rows, err := tx.QueryContext(ctx,
		`SELECT bac_id, name, last_water_change, last_filter_clean FROM serre_bacs ORDER BY position`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	bacs := []club.Bac{}
	for rows.Next() {
		var b club.Bac
		var water, filter sql.NullString
		if err := rows.Scan(&b.ID, &b.Name, &water, &filter); err != nil {
			return nil, err
		}
		b.LastWaterChange = nullableString(water)
		b.LastFilterClean = nullableString(filter)
		bacs = append(bacs, b)
	}
	return bacs, rows.Err()
}

func (s *SQLStore) readAssignments(ctx context.Context, tx *sql.Tx) (map[string]club.Assignment, error) {
	rows, err := tx.QueryContext(ctx, `SELECT bac_id, membre_id, nom FROM serre_assignments`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := map[string]club.Assignment{}
	for rows.Next() {
		var bacID string
		var a club.Assignment
		if err := rows.Scan(&bacID, &a.MembreID, &a.Nom); err != nil {
			return nil, err
		}
		out[bacID] = a
	}
	return out, rows.Err()
}

func (s *SQLStore) readFeed(ctx context.Context, tx *sql.Tx) (club.Feed, error) {
	var feed club.Feed
	var last sql.NullInt64
	err := tx.QueryRowContext(ctx, `SELECT last_update, monthly_use_kg FROM serre_feed WHERE id = 1`).Scan(&last, &feed.MonthlyUseKg)
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		return feed, err
	}
	if last.Valid {
		t := time.UnixMilli(last.Int64).UTC()
		feed.LastUpdate = &t
	}

	rows, err := tx.QueryContext(ctx, `SELECT item_id, name, unit, quantity FROM serre_feed_items ORDER BY position`)
	if err != nil {
		return feed, err
	}
	defer rows.Close()

	feed.Items = []club.FeedItem{}
	for rows.Next() {
		var it club.FeedItem
		if err := rows.Scan(&it.ID, &it.Name, &it.Unit, &it.Quantity); err != nil {
			return feed, err
		}
		feed.Items = append(feed.Items, it)
	}
	return feed, rows.Err()
}

func (s *SQLStore) SaveNotes(ctx context.Context, notes string) error {
	_, err := s.DB.ExecContext(ctx, s.q(
		`INSERT INTO serre_notes (id, notes) VALUES (1, ?)
		 ON CONFLICT (id) DO UPDATE SET notes = excluded.notes`), notes)
	return err
}

func (s *SQLStore) ReplaceBacs(ctx context.Context, bacs []club.Bac, assignments map[string]club.Assignment) error {
	return s.withTx(ctx, func(tx *sql.Tx) error {
		if err := s.serialize(ctx, tx, "serre:bacs"); err != nil {
			return err
		}
		if _, err := tx.ExecContext(ctx, `DELETE FROM serre_bacs`); err != nil {
			return err
		}
		if _, err := tx.ExecContext(ctx, `DELETE FROM serre_assignments`); err != nil {
			return err
		}
		for i, b := range bacs {
			b = club.NormalizeBac(b)
			if _, err := tx.ExecContext(ctx, s.q(
				`INSERT INTO serre_bacs (position, bac_id, name, last_water_change, last_filter_clean) VALUES (?, ?, ?, ?, ?)`),
				i, b.ID, b.Name, b.LastWaterChange, b.LastFilterClean,
			); err != nil {
				return err
			}
		}
		for bacID, a := range assignments {
			if _, err := tx.ExecContext(ctx, s.q(
				`INSERT INTO serre_assignments (bac_id, membre_id, nom) VALUES (?, ?, ?)`),
				bacID, a.MembreID, a.Nom,
			); err != nil {
				return err
			}
		}
		return nil
	})
}

func (s *SQLStore) ReplaceFeed(ctx context.Context, feed club.Feed) error {
	feed = club.NormalizeFeed(feed)
	var last any
	if feed.LastUpdate != nil {
		last = feed.LastUpdate.UnixMilli()
	}
	return s.withTx(ctx, func(tx *sql.Tx) error {
		if err := s.serialize(ctx, tx, "serre:feed"); err != nil {
			return err
		}
		if _, err := tx.ExecContext(ctx, s.q(
			`INSERT INTO serre_feed (id, last_update, monthly_use_kg) VALUES (1, ?, ?)
			 ON CONFLICT (id) DO UPDATE SET last_update = excluded.last_update, monthly_use_kg = excluded.monthly_use_kg`),
			last, feed.MonthlyUseKg,
		); err != nil {
			return err
		}
		if _, err := tx.ExecContext(ctx, `DELETE FROM serre_feed_items`); err != nil {
			return err
		}
		for i, it := range feed.Items {
			if _, err := tx.ExecContext(ctx, s.q(
				`INSERT INTO serre_feed_items (position, item_id, name, unit, quantity) VALUES (?, ?, ?, ?, ?)`),
				i, it.ID, it.Name, it.Unit, it.Quantity,
			); err != nil {
				return err
			}
		}
		return nil
	})
}

func nullableString(ns sql.NullString) *string {
	if !ns.Valid {
		return nil
	}
	v := ns.String
	return &v
}
