package main

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"net/http/httputil"
	"net/url"
	"os"
	"path/filepath"

	_ "github.com/mattn/go-sqlite3"

	"github.com/koecan-app/koecan/internal/api"
	dbstore "github.com/koecan-app/koecan/internal/db"
	"github.com/koecan-app/koecan/internal/middleware"
	"github.com/koecan-app/koecan/internal/realtime"
	"github.com/koecan-app/koecan/internal/services"
	"github.com/koecan-app/koecan/internal/session"
	"github.com/koecan-app/koecan/internal/utils"
)

func main() {
	addr := utils.SafeEnv("KOECAN_ADDR", ":8080")
	commit := os.Getenv("KOECAN_COMMIT")
	buildTime := os.Getenv("KOECAN_BUILD_TIME")

	// A token role the dispatch table cannot route is a deploy error;
	// refuse to start rather than 500 on first login.
	if err := services.ValidateRoleHomes(); err != nil {
		log.Fatalf("role homes: %v", err)
	}

	store, err := openStore()
	if err != nil {
		log.Fatalf("open store: %v", err)
	}

	var sessions services.LinkSessionStore
	if redisAddr := os.Getenv("KOECAN_REDIS_ADDR"); redisAddr != "" {
		sessions = session.NewRedisLinkSessionStore(redisAddr, os.Getenv("KOECAN_REDIS_PASSWORD"))
		log.Printf("link sessions backed by redis at %s", redisAddr)
	} else {
		sessions = session.NewMemoryLinkSessionStore()
	}

	hub := realtime.NewHub()
	go hub.Run()

	mux := http.NewServeMux()
	rt := api.NewRouter(api.Config{
		Store:       store,
		Hub:         hub,
		Sessions:    sessions,
		LandingPath: utils.SafeEnv("KOECAN_LINE_LANDING_PATH", "/app/line/linked"),
	})
	rt.Register(mux)

	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{
			"ok":         true,
			"name":       "Koecan API",
			"commit":     commit,
			"build_time": buildTime,
		})
	})

	mux.HandleFunc("/version", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{
			"commit":     commit,
			"build_time": buildTime,
		})
	})

	// Frontend serving strategy (priority):
	// 1) Static files if KOECAN_STATIC_DIR is set (fullstack image)
	// 2) Dev proxy if KOECAN_DEV_FRONTEND_URL is set (proxy / to Vite dev)
	if staticDir := os.Getenv("KOECAN_STATIC_DIR"); staticDir != "" {
		fs := http.FileServer(http.Dir(staticDir))
		mux.Handle("/", fs)
	} else if devURL := os.Getenv("KOECAN_DEV_FRONTEND_URL"); devURL != "" {
		if u, err := url.Parse(devURL); err == nil {
			rp := httputil.NewSingleHostReverseProxy(u)
			// Ensure no-store headers also apply to proxied responses
			rp.ModifyResponse = func(res *http.Response) error {
				res.Header.Set("Cache-Control", "no-store, no-cache, must-revalidate, max-age=0")
				res.Header.Set("Pragma", "no-cache")
				res.Header.Set("Expires", "0")
				return nil
			}
			mux.Handle("/", rp)
		} else {
			log.Printf("invalid KOECAN_DEV_FRONTEND_URL=%q: %v", devURL, err)
		}
	}

	handler := middleware.NoStore(middleware.CORS(middleware.SecureHeaders(middleware.WithAuth(mux))))

	log.Printf("Koecan server listening on %s", addr)
	if err := http.ListenAndServe(addr, handler); err != nil {
		log.Fatalf("server error: %v", err)
	}
}

// openStore picks SQLite when KOECAN_SQLITE_PATH is set, otherwise the
// in-memory store (local development; nothing survives a restart).
func openStore() (api.Store, error) {
	sqlitePath := os.Getenv("KOECAN_SQLITE_PATH")
	if sqlitePath == "" {
		log.Printf("KOECAN_SQLITE_PATH unset, using in-memory store")
		return api.NewMemoryStore(), nil
	}
	if err := os.MkdirAll(filepath.Dir(sqlitePath), 0o755); err != nil {
		return nil, fmt.Errorf("create sqlite dir: %w", err)
	}
	dsn := fmt.Sprintf("file:%s?cache=shared&_busy_timeout=5000", filepath.ToSlash(sqlitePath))
	sqliteDB, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	if err := dbstore.RunMigrations(sqliteDB, os.Getenv("KOECAN_MIGRATIONS_DIR")); err != nil {
		return nil, fmt.Errorf("run migrations: %w", err)
	}
	return dbstore.NewStore(sqliteDB)
}
