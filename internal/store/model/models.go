package model

import "gorm.io/datatypes"

// EvaluationModel is one persisted pipeline invocation: the inputs that shaped
// it and the full result as JSON, plus the flat columns the API filters on.
type EvaluationModel struct {
	ID             int64          `gorm:"column:id;primaryKey"`
	Profile        string         `gorm:"column:profile;index"`
	Equity         string         `gorm:"column:equity"`
	Halted         bool           `gorm:"column:halted;index"`
	HaltReason     string         `gorm:"column:halt_reason"`
	SignalCount    int            `gorm:"column:signal_count"`
	OrderCount     int            `gorm:"column:order_count"`
	SignalsJSON    datatypes.JSON `gorm:"column:signals_json;type:TEXT"`
	ResultJSON     datatypes.JSON `gorm:"column:result_json;type:TEXT"`
	ViolationsJSON datatypes.JSON `gorm:"column:violations_json;type:TEXT"`
	CreatedAtUnix  int64          `gorm:"column:created_at;index"`
}

func (EvaluationModel) TableName() string { return "evaluations" }

// EvaluationOrderModel flattens the orders of an evaluation for querying by
// symbol without unpacking JSON.
type EvaluationOrderModel struct {
	ID            int64   `gorm:"column:id;primaryKey"`
	EvaluationID  int64   `gorm:"column:evaluation_id;index"`
	ClientOrderID string  `gorm:"column:client_order_id;index"`
	Symbol        string  `gorm:"column:symbol;index"`
	Side          string  `gorm:"column:side"`
	Quantity      string  `gorm:"column:quantity"`
	Notional      string  `gorm:"column:notional"`
	Strength      float64 `gorm:"column:strength"`
	CreatedAtUnix int64   `gorm:"column:created_at"`
}

func (EvaluationOrderModel) TableName() string { return "evaluation_orders" }
