package main

import (
	"database/sql"
	"log"
	"time"

	"github.com/vmihailenco/msgpack/v5"
	_ "modernc.org/sqlite"
)

// DB wraps the SQLite database. Writes are latest-write-wins; there is no
// durability guarantee beyond that.
type DB struct {
	conn *sql.DB
}

// OpenDB opens (or creates) the SQLite database.
func OpenDB(path string) (*DB, error) {
	conn, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}

	// Enable WAL mode for better concurrency
	if _, err := conn.Exec("PRAGMA journal_mode=WAL"); err != nil {
		conn.Close()
		return nil, err
	}

	db := &DB{conn: conn}
	if err := db.migrate(); err != nil {
		conn.Close()
		return nil, err
	}
	return db, nil
}

// Close closes the database connection.
func (db *DB) Close() error {
	return db.conn.Close()
}

// migrate creates tables if they don't exist.
func (db *DB) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS players (
		id TEXT PRIMARY KEY,
		username TEXT NOT NULL UNIQUE,
		pass_hash TEXT NOT NULL DEFAULT '',
		tier INTEGER NOT NULL DEFAULT 0,
		latitude REAL NOT NULL DEFAULT 0,
		longitude REAL NOT NULL DEFAULT 0,
		accuracy REAL NOT NULL DEFAULT 0,
		view_radius REAL NOT NULL DEFAULT 30,
		kill_radius REAL NOT NULL DEFAULT 1,
		kills INTEGER NOT NULL DEFAULT 0,
		deaths INTEGER NOT NULL DEFAULT 0,
		level INTEGER NOT NULL DEFAULT 1,
		token_auth TEXT NOT NULL DEFAULT '',
		token_exp INTEGER NOT NULL DEFAULT 0,
		session_id TEXT NOT NULL DEFAULT ''
	);

	CREATE TABLE IF NOT EXISTS session_snapshots (
		id TEXT PRIMARY KEY,
		data BLOB NOT NULL,
		updated_at DATETIME DEFAULT CURRENT_TIMESTAMP
	);

	CREATE TABLE IF NOT EXISTS events (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		type TEXT NOT NULL,
		player_id TEXT NOT NULL DEFAULT '',
		session_id TEXT NOT NULL DEFAULT '',
		data TEXT NOT NULL DEFAULT '',
		created_at DATETIME DEFAULT CURRENT_TIMESTAMP
	);

	CREATE INDEX IF NOT EXISTS idx_players_username ON players(username);
	CREATE INDEX IF NOT EXISTS idx_events_session ON events(session_id);
	`
	_, err := db.conn.Exec(schema)
	if err != nil {
		log.Printf("DB migration error: %v", err)
	}
	return err
}

// SavePlayer upserts the full player record, token included.
func (db *DB) SavePlayer(p *Player) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	_, err := db.conn.Exec(`
		INSERT INTO players
			(id, username, pass_hash, tier, latitude, longitude, accuracy,
			 view_radius, kill_radius, kills, deaths, level, token_auth, token_exp, session_id)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			username = excluded.username,
			pass_hash = excluded.pass_hash,
			tier = excluded.tier,
			latitude = excluded.latitude,
			longitude = excluded.longitude,
			accuracy = excluded.accuracy,
			view_radius = excluded.view_radius,
			kill_radius = excluded.kill_radius,
			kills = excluded.kills,
			deaths = excluded.deaths,
			level = excluded.level,
			token_auth = excluded.token_auth,
			token_exp = excluded.token_exp,
			session_id = excluded.session_id`,
		p.ID, p.Username, p.PassHash, p.Tier,
		p.Location.Latitude, p.Location.Longitude, p.Location.Accuracy,
		p.ViewRadius, p.KillRadius, p.Kills, p.Deaths, p.Level,
		p.Token.Authenticator, p.Token.Expiration, p.SessionID,
	)
	return err
}

// LoadPlayers reads every player record back into memory.
func (db *DB) LoadPlayers() ([]*Player, error) {
	rows, err := db.conn.Query(`
		SELECT id, username, pass_hash, tier, latitude, longitude, accuracy,
		       view_radius, kill_radius, kills, deaths, level, token_auth, token_exp, session_id
		FROM players`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*Player
	for rows.Next() {
		p := &Player{}
		if err := rows.Scan(
			&p.ID, &p.Username, &p.PassHash, &p.Tier,
			&p.Location.Latitude, &p.Location.Longitude, &p.Location.Accuracy,
			&p.ViewRadius, &p.KillRadius, &p.Kills, &p.Deaths, &p.Level,
			&p.Token.Authenticator, &p.Token.Expiration, &p.SessionID,
		); err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

// DeletePlayer removes a player record.
func (db *DB) DeletePlayer(id string) error {
	_, err := db.conn.Exec("DELETE FROM players WHERE id = ?", id)
	return err
}

// SaveSessionSnapshot upserts the msgpack-encoded session state.
func (db *DB) SaveSessionSnapshot(snap *sessionSnapshot) error {
	blob, err := msgpack.Marshal(snap)
	if err != nil {
		return err
	}
	_, err = db.conn.Exec(`
		INSERT INTO session_snapshots (id, data, updated_at) VALUES (?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET data = excluded.data, updated_at = excluded.updated_at`,
		snap.ID, blob, time.Now(),
	)
	return err
}

// LoadSessionSnapshots reads every persisted session back.
func (db *DB) LoadSessionSnapshots() ([]*sessionSnapshot, error) {
	rows, err := db.conn.Query("SELECT data FROM session_snapshots")
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*sessionSnapshot
	for rows.Next() {
		var blob []byte
		if err := rows.Scan(&blob); err != nil {
			return nil, err
		}
		snap := &sessionSnapshot{}
		if err := msgpack.Unmarshal(blob, snap); err != nil {
			return nil, err
		}
		out = append(out, snap)
	}
	return out, rows.Err()
}

// DeleteSessionSnapshot removes a persisted session.
func (db *DB) DeleteSessionSnapshot(id string) error {
	_, err := db.conn.Exec("DELETE FROM session_snapshots WHERE id = ?", id)
	return err
}

// InsertEvents writes a batch of analytics events in one transaction.
func (db *DB) InsertEvents(batch []GameEvent) error {
	if len(batch) == 0 {
		return nil
	}
	tx, err := db.conn.Begin()
	if err != nil {
		return err
	}
	stmt, err := tx.Prepare(
		"INSERT INTO events (type, player_id, session_id, data, created_at) VALUES (?, ?, ?, ?, ?)")
	if err != nil {
		tx.Rollback()
		return err
	}
	defer stmt.Close()

	for _, e := range batch {
		if _, err := stmt.Exec(e.Type, e.PlayerID, e.SessionID, e.Data, e.Timestamp); err != nil {
			tx.Rollback()
			return err
		}
	}
	return tx.Commit()
}

// EventCount returns how many events of a type were recorded for a session.
func (db *DB) EventCount(sessionID, evtType string) (int, error) {
	var n int
	err := db.conn.QueryRow(
		"SELECT COUNT(*) FROM events WHERE session_id = ? AND type = ?",
		sessionID, evtType,
	).Scan(&n)
	return n, err
}
