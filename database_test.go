package main

import (
	"path/filepath"
	"testing"
	"time"
)

func openTestDB(t *testing.T) *DB {
	t.Helper()
	db, err := OpenDB(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

func TestPlayerRoundTrip(t *testing.T) {
	db := openTestDB(t)

	p := NewPlayer("alice", "$2a$12$hash", TierModerator)
	p.Token = NewToken([]string{"alice", "pw"}, 24)
	p.Location = Coordinate{Latitude: 40.1, Longitude: -88.2, Accuracy: 5}
	p.Kills = 3
	p.Deaths = 1
	p.Level = 2
	p.SessionID = "sess-1"

	if err := db.SavePlayer(p); err != nil {
		t.Fatalf("save: %v", err)
	}

	loaded, err := db.LoadPlayers()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if len(loaded) != 1 {
		t.Fatalf("loaded %d players, want 1", len(loaded))
	}
	got := loaded[0]
	if got.ID != p.ID || got.Username != "alice" || got.PassHash != p.PassHash {
		t.Errorf("identity mismatch: %+v", got)
	}
	if got.Tier != TierModerator || got.Kills != 3 || got.Deaths != 1 || got.Level != 2 {
		t.Errorf("stats mismatch: %+v", got)
	}
	if got.Location != p.Location {
		t.Errorf("location mismatch: %+v vs %+v", got.Location, p.Location)
	}
	if got.Token != p.Token {
		t.Errorf("token mismatch: %+v vs %+v", got.Token, p.Token)
	}
	if got.SessionID != "sess-1" {
		t.Errorf("session id = %q", got.SessionID)
	}
}

func TestPlayerUpsert(t *testing.T) {
	db := openTestDB(t)

	p := NewPlayer("bob", "", TierPlayer)
	if err := db.SavePlayer(p); err != nil {
		t.Fatal(err)
	}
	p.Kills = 7
	if err := db.SavePlayer(p); err != nil {
		t.Fatal(err)
	}

	loaded, _ := db.LoadPlayers()
	if len(loaded) != 1 {
		t.Fatalf("upsert produced %d rows, want 1", len(loaded))
	}
	if loaded[0].Kills != 7 {
		t.Errorf("kills = %d, want 7", loaded[0].Kills)
	}
}

func TestDeletePlayerRow(t *testing.T) {
	db := openTestDB(t)

	p := NewPlayer("gone", "", TierPlayer)
	db.SavePlayer(p)
	if err := db.DeletePlayer(p.ID); err != nil {
		t.Fatal(err)
	}
	loaded, _ := db.LoadPlayers()
	if len(loaded) != 0 {
		t.Errorf("loaded %d players after delete, want 0", len(loaded))
	}
}

func TestSessionSnapshotRoundTrip(t *testing.T) {
	db := openTestDB(t)

	sess := newGameSession("persisted", Coordinate{Latitude: 40.1, Longitude: -88.2}, 100)
	sess.Token = NewToken([]string{"persisted"}, 8760)
	sess.Passcode = 1234
	sess.addMember("p1")
	sess.addMember("p2")
	sess.targets = map[string]string{"p1": "p2", "p2": "p1"}
	sess.spawnItems()
	sess.Started = true

	if err := db.SaveSessionSnapshot(sess.Snapshot()); err != nil {
		t.Fatalf("save snapshot: %v", err)
	}

	snaps, err := db.LoadSessionSnapshots()
	if err != nil {
		t.Fatalf("load snapshots: %v", err)
	}
	if len(snaps) != 1 {
		t.Fatalf("loaded %d snapshots, want 1", len(snaps))
	}

	got := restoreSession(snaps[0])
	if got.ID != sess.ID || got.Name != "persisted" || !got.Started {
		t.Errorf("restored session mismatch: %+v", got)
	}
	if got.CurrentPasscode() != 1234 || !got.CurrentToken().Equal(sess.Token) {
		t.Error("restored passcode/token mismatch")
	}
	if got.MemberCount() != 2 || got.TargetOf("p1") != "p2" {
		t.Error("restored membership/targets mismatch")
	}
	if len(got.PlacedItems()) != len(sess.PlacedItems()) {
		t.Errorf("restored %d items, want %d", len(got.PlacedItems()), len(sess.PlacedItems()))
	}
}

func TestDeleteSessionSnapshot(t *testing.T) {
	db := openTestDB(t)

	sess := newGameSession("short-lived", testCenter, 50)
	db.SaveSessionSnapshot(sess.Snapshot())
	if err := db.DeleteSessionSnapshot(sess.ID); err != nil {
		t.Fatal(err)
	}
	snaps, _ := db.LoadSessionSnapshots()
	if len(snaps) != 0 {
		t.Errorf("loaded %d snapshots after delete, want 0", len(snaps))
	}
}

func TestInsertEventsAndCount(t *testing.T) {
	db := openTestDB(t)

	batch := []GameEvent{
		{Type: EvtKill, PlayerID: "p1", SessionID: "s1", Data: "p2", Timestamp: time.Now()},
		{Type: EvtKill, PlayerID: "p1", SessionID: "s1", Data: "p3", Timestamp: time.Now()},
		{Type: EvtWin, PlayerID: "p1", SessionID: "s1", Timestamp: time.Now()},
		{Type: EvtKill, PlayerID: "p9", SessionID: "other", Timestamp: time.Now()},
	}
	if err := db.InsertEvents(batch); err != nil {
		t.Fatalf("insert: %v", err)
	}

	n, err := db.EventCount("s1", EvtKill)
	if err != nil {
		t.Fatalf("count: %v", err)
	}
	if n != 2 {
		t.Errorf("kill count = %d, want 2", n)
	}
	n, _ = db.EventCount("s1", EvtWin)
	if n != 1 {
		t.Errorf("win count = %d, want 1", n)
	}
}

func TestAnalyticsFlushOnClose(t *testing.T) {
	db := openTestDB(t)
	analytics := NewAnalytics(db)

	analytics.Track(EvtSessionCreate, "p1", "s1", "")
	analytics.Track(EvtSessionJoin, "p2", "s1", "")
	analytics.Close()

	n, err := db.EventCount("s1", EvtSessionCreate)
	if err != nil {
		t.Fatal(err)
	}
	if n != 1 {
		t.Errorf("create count = %d, want 1", n)
	}
}
