package main

import (
	"flag"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
)

func main() {
	cfg, err := LoadConfig()
	if err != nil {
		log.Fatalf("config: %v", err)
	}

	addr := flag.String("addr", cfg.Addr, "HTTP listen address")
	dbPath := flag.String("db", cfg.DBPath, "Path to the SQLite database")
	flag.Parse()
	cfg.Addr = *addr
	cfg.DBPath = *dbPath

	db, err := OpenDB(cfg.DBPath)
	if err != nil {
		log.Fatalf("open database: %v", err)
	}
	defer db.Close()

	players := NewPlayerRegistry()
	loaded, err := db.LoadPlayers()
	if err != nil {
		log.Fatalf("load players: %v", err)
	}
	for _, p := range loaded {
		if gerr := players.Add(p); gerr != nil {
			log.Printf("skipping player %q: %s", p.Username, gerr.Message)
		}
	}

	analytics := NewAnalytics(db)
	defer analytics.Close()

	registry := NewSessionRegistry(players, db, analytics, cfg)
	snaps, err := db.LoadSessionSnapshots()
	if err != nil {
		log.Fatalf("load sessions: %v", err)
	}
	registry.Restore(snaps)
	log.Printf("restored %d players and %d sessions", len(loaded), len(snaps))

	auth := NewAuth(players, db, cfg)
	hub := NewHub(players, registry, auth, db)
	go hub.Run()

	router := SetupRoutes(hub, NewAPI(registry, auth))

	// Graceful shutdown
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)

	server := &http.Server{Addr: cfg.Addr, Handler: router}

	go func() {
		log.Printf("Server starting on %s", cfg.Addr)
		if err := server.ListenAndServe(); err != http.ErrServerClosed {
			log.Fatalf("ListenAndServe: %v", err)
		}
	}()

	<-stop
	log.Println("Shutting down...")
	server.Close()
}
