package market

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	_ "modernc.org/sqlite"
)

// Cache persists candle history per symbol and interval so restarts and
// source outages do not leave the snapshot builder blind. One sqlite file per
// symbol keeps writes independent.
type Cache struct {
	root string

	mu  sync.Mutex
	dbs map[string]*sql.DB
}

func NewCache(root string) (*Cache, error) {
	if root == "" {
		return nil, fmt.Errorf("cache root cannot be empty")
	}
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, err
	}
	return &Cache{root: root, dbs: make(map[string]*sql.DB)}, nil
}

func (c *Cache) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	var firstErr error
	for k, db := range c.dbs {
		if db == nil {
			continue
		}
		if err := db.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
		delete(c.dbs, k)
	}
	return firstErr
}

func (c *Cache) db(symbol, interval string) (*sql.DB, error) {
	if symbol == "" || interval == "" {
		return nil, fmt.Errorf("symbol/interval cannot be empty")
	}
	key := strings.ToUpper(symbol) + "@" + strings.ToLower(interval)
	c.mu.Lock()
	defer c.mu.Unlock()
	if db, ok := c.dbs[key]; ok && db != nil {
		return db, nil
	}
	path := c.dbPath(symbol, interval)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, err
	}
	dsn := fmt.Sprintf("file:%s?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)&cache=shared", path)
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	if err := ensureCandleSchema(db); err != nil {
		_ = db.Close()
		return nil, err
	}
	c.dbs[key] = db
	return db, nil
}

func (c *Cache) dbPath(symbol, interval string) string {
	dir := filepath.Join(c.root, strings.ToUpper(symbol))
	return filepath.Join(dir, strings.ToLower(interval)+".db")
}

// Put upserts candles by open time.
func (c *Cache) Put(ctx context.Context, symbol, interval string, candles []Candle) (int, error) {
	if len(candles) == 0 {
		return 0, nil
	}
	db, err := c.db(symbol, interval)
	if err != nil {
		return 0, err
	}
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return 0, err
	}
	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO candles (open_time, close_time, open, high, low, close, volume, trades)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(open_time) DO UPDATE SET
		    close_time=excluded.close_time,
		    open=excluded.open,
		    high=excluded.high,
		    low=excluded.low,
		    close=excluded.close,
		    volume=excluded.volume,
		    trades=excluded.trades`)
	if err != nil {
		_ = tx.Rollback()
		return 0, err
	}
	defer stmt.Close()
	count := 0
	for _, cd := range candles {
		if _, err := stmt.ExecContext(ctx, cd.OpenTime, cd.CloseTime, cd.Open, cd.High, cd.Low, cd.Close, cd.Volume, cd.Trades); err != nil {
			_ = tx.Rollback()
			return 0, err
		}
		count++
	}
	return count, tx.Commit()
}

// Recent returns the newest limit candles in ascending open-time order.
func (c *Cache) Recent(ctx context.Context, symbol, interval string, limit int) ([]Candle, error) {
	db, err := c.db(symbol, interval)
	if err != nil {
		return nil, err
	}
	if limit <= 0 {
		limit = 200
	}
	rows, err := db.QueryContext(ctx, `
		SELECT open_time, close_time, open, high, low, close, volume, trades
		FROM candles ORDER BY open_time DESC LIMIT ?`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var list []Candle
	for rows.Next() {
		var cd Candle
		if err := rows.Scan(&cd.OpenTime, &cd.CloseTime, &cd.Open, &cd.High, &cd.Low, &cd.Close, &cd.Volume, &cd.Trades); err != nil {
			return nil, err
		}
		list = append(list, cd)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	for i, j := 0, len(list)-1; i < j; i, j = i+1, j-1 {
		list[i], list[j] = list[j], list[i]
	}
	return list, nil
}

// LastOpenTime returns the newest cached open time, zero when empty.
func (c *Cache) LastOpenTime(ctx context.Context, symbol, interval string) (int64, error) {
	db, err := c.db(symbol, interval)
	if err != nil {
		return 0, err
	}
	var ts sql.NullInt64
	row := db.QueryRowContext(ctx, `SELECT MAX(open_time) FROM candles`)
	if err := row.Scan(&ts); err != nil {
		return 0, err
	}
	if !ts.Valid {
		return 0, nil
	}
	return ts.Int64, nil
}

func ensureCandleSchema(db *sql.DB) error {
	_, err := db.Exec(`CREATE TABLE IF NOT EXISTS candles (
		open_time  INTEGER PRIMARY KEY,
		close_time INTEGER NOT NULL,
		open       REAL NOT NULL,
		high       REAL NOT NULL,
		low        REAL NOT NULL,
		close      REAL NOT NULL,
		volume     REAL NOT NULL,
		trades     INTEGER DEFAULT 0,
		inserted_at INTEGER NOT NULL DEFAULT (strftime('%s','now') * 1000)
	);`)
	return err
}
