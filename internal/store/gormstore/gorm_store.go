package gormstore

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/datatypes"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
	_ "modernc.org/sqlite"

	"ballast/internal/risk"
	storemodel "ballast/internal/store/model"
)

type evaluationModel = storemodel.EvaluationModel
type evaluationOrderModel = storemodel.EvaluationOrderModel

// EvaluationRecord is the read-side view of a stored evaluation.
type EvaluationRecord struct {
	ID         int64               `json:"id"`
	Profile    string              `json:"profile"`
	Equity     string              `json:"equity"`
	Halted     bool                `json:"halted"`
	HaltReason string              `json:"halt_reason,omitempty"`
	Signals    []risk.Signal       `json:"signals"`
	Result     *risk.Result        `json:"result"`
	Violations map[string][]string `json:"violations,omitempty"`
	CreatedAt  time.Time           `json:"created_at"`
}

// GormStore persists evaluations in SQLite through gorm.
type GormStore struct {
	db *gorm.DB
}

func NewGormStore(path string) (*GormStore, error) {
	path = strings.TrimSpace(path)
	if path == "" {
		return nil, fmt.Errorf("gorm store: path cannot be empty")
	}
	if err := ensureDir(path); err != nil {
		return nil, err
	}
	dsn := fmt.Sprintf("file:%s?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)&cache=shared", path)
	// DriverName "sqlite" selects the pure-Go modernc driver, which the
	// _pragma DSN parameters above are written for; the default mattn
	// driver needs cgo.
	db, err := gorm.Open(sqlite.New(sqlite.Config{DriverName: "sqlite", DSN: dsn}), &gorm.Config{
		Logger:                                   logger.Default.LogMode(logger.Silent),
		DisableForeignKeyConstraintWhenMigrating: true,
	})
	if err != nil {
		return nil, err
	}
	if err := db.AutoMigrate(&evaluationModel{}, &evaluationOrderModel{}); err != nil {
		return nil, err
	}
	sqlDB, err := db.DB()
	if err != nil {
		return nil, err
	}
	// SQLite + WAL: a little parallelism for concurrent HTTP reads while
	// keeping lock contention low.
	sqlDB.SetMaxOpenConns(2)
	sqlDB.SetMaxIdleConns(2)
	return &GormStore{db: db}, nil
}

func (s *GormStore) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// SaveEvaluation stores one pipeline invocation with its flattened orders.
func (s *GormStore) SaveEvaluation(ctx context.Context, profile string, equity decimal.Decimal, signals []risk.Signal, result *risk.Result) (int64, error) {
	if s == nil || s.db == nil {
		return 0, fmt.Errorf("gorm store not initialized")
	}
	if result == nil {
		return 0, fmt.Errorf("result cannot be nil")
	}
	signalsJSON, err := json.Marshal(signals)
	if err != nil {
		return 0, err
	}
	resultJSON, err := json.Marshal(result)
	if err != nil {
		return 0, err
	}
	var violationsJSON datatypes.JSON
	if len(result.Violations) > 0 {
		raw, err := json.Marshal(result.Violations)
		if err != nil {
			return 0, err
		}
		violationsJSON = raw
	}
	now := time.Now().Unix()
	rec := evaluationModel{
		Profile:        profile,
		Equity:         equity.String(),
		Halted:         result.Halted,
		HaltReason:     result.HaltReason,
		SignalCount:    len(signals),
		OrderCount:     len(result.Orders),
		SignalsJSON:    signalsJSON,
		ResultJSON:     resultJSON,
		ViolationsJSON: violationsJSON,
		CreatedAtUnix:  now,
	}
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(&rec).Error; err != nil {
			return err
		}
		if len(result.Orders) == 0 {
			return nil
		}
		orders := make([]evaluationOrderModel, 0, len(result.Orders))
		for _, o := range result.Orders {
			orders = append(orders, evaluationOrderModel{
				EvaluationID:  rec.ID,
				ClientOrderID: o.ClientOrderID,
				Symbol:        o.Symbol,
				Side:          string(o.Side),
				Quantity:      o.Quantity.String(),
				Notional:      o.Notional.String(),
				Strength:      o.Strength,
				CreatedAtUnix: now,
			})
		}
		return tx.Create(&orders).Error
	})
	if err != nil {
		return 0, err
	}
	return rec.ID, nil
}

// RecentEvaluations returns the newest evaluations, newest first.
func (s *GormStore) RecentEvaluations(ctx context.Context, limit int) ([]EvaluationRecord, error) {
	if s == nil || s.db == nil {
		return nil, fmt.Errorf("gorm store not initialized")
	}
	if limit <= 0 {
		limit = 50
	}
	if limit > 500 {
		limit = 500
	}
	var rows []evaluationModel
	if err := s.db.WithContext(ctx).Order("id DESC").Limit(limit).Find(&rows).Error; err != nil {
		return nil, err
	}
	out := make([]EvaluationRecord, 0, len(rows))
	for _, row := range rows {
		rec, err := toRecord(row)
		if err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	return out, nil
}

// Evaluation returns one evaluation by id.
func (s *GormStore) Evaluation(ctx context.Context, id int64) (EvaluationRecord, error) {
	if s == nil || s.db == nil {
		return EvaluationRecord{}, fmt.Errorf("gorm store not initialized")
	}
	var row evaluationModel
	if err := s.db.WithContext(ctx).First(&row, id).Error; err != nil {
		return EvaluationRecord{}, err
	}
	return toRecord(row)
}

// OrdersBySymbol returns flattened orders for a symbol, newest first.
func (s *GormStore) OrdersBySymbol(ctx context.Context, symbol string, limit int) ([]evaluationOrderModel, error) {
	if s == nil || s.db == nil {
		return nil, fmt.Errorf("gorm store not initialized")
	}
	if limit <= 0 {
		limit = 100
	}
	var rows []evaluationOrderModel
	err := s.db.WithContext(ctx).
		Where("symbol = ?", strings.ToUpper(strings.TrimSpace(symbol))).
		Order("id DESC").Limit(limit).Find(&rows).Error
	return rows, err
}

func toRecord(row evaluationModel) (EvaluationRecord, error) {
	rec := EvaluationRecord{
		ID:         row.ID,
		Profile:    row.Profile,
		Equity:     row.Equity,
		Halted:     row.Halted,
		HaltReason: row.HaltReason,
		CreatedAt:  time.Unix(row.CreatedAtUnix, 0).UTC(),
	}
	if len(row.SignalsJSON) > 0 {
		if err := json.Unmarshal(row.SignalsJSON, &rec.Signals); err != nil {
			return rec, err
		}
	}
	if len(row.ResultJSON) > 0 {
		if err := json.Unmarshal(row.ResultJSON, &rec.Result); err != nil {
			return rec, err
		}
	}
	if len(row.ViolationsJSON) > 0 {
		if err := json.Unmarshal(row.ViolationsJSON, &rec.Violations); err != nil {
			return rec, err
		}
	}
	return rec, nil
}

func ensureDir(path string) error {
	dir := filepath.Dir(path)
	if dir == "" || dir == "." {
		return nil
	}
	return os.MkdirAll(dir, 0o755)
}
