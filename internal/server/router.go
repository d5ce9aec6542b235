package server

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/tidwall/gjson"
	"gorm.io/gorm"

	"ballast/internal/logger"
	"ballast/internal/market"
	"ballast/internal/profile"
	"ballast/internal/risk"
	"ballast/internal/risk/engine"
	"ballast/internal/risk/sizers"
	"ballast/internal/store/gormstore"
)

// Router exposes the risk pipeline over HTTP: one evaluate endpoint plus
// read-only access to stored evaluations.
type Router struct {
	store     *gormstore.GormStore
	profiles  *profile.Registry
	snapshots *market.SnapshotBuilder
	base      risk.Config
}

func NewRouter(store *gormstore.GormStore, profiles *profile.Registry, snapshots *market.SnapshotBuilder, base risk.Config) *Router {
	return &Router{store: store, profiles: profiles, snapshots: snapshots, base: base}
}

func (r *Router) Register(group *gin.RouterGroup) {
	group.POST("/evaluate", r.handleEvaluate)
	group.GET("/evaluations", r.handleEvaluations)
	group.GET("/evaluations/:id", r.handleEvaluation)
	group.GET("/orders", r.handleOrders)
}

// evaluateResponse is the evaluate endpoint payload.
type evaluateResponse struct {
	ID      int64        `json:"id,omitempty"`
	Profile string       `json:"profile"`
	Equity  string       `json:"equity"`
	Result  *risk.Result `json:"result"`
}

func (r *Router) handleEvaluate(c *gin.Context) {
	body, err := io.ReadAll(c.Request.Body)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "read body failed"})
		return
	}
	if !gjson.ValidBytes(body) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "body is not valid JSON"})
		return
	}

	profileName := strings.TrimSpace(gjson.GetBytes(body, "profile").String())

	var signals []risk.Signal
	if raw := gjson.GetBytes(body, "signals"); raw.Exists() {
		if err := json.Unmarshal([]byte(raw.Raw), &signals); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid signals: " + err.Error()})
			return
		}
	}
	var portfolio risk.PortfolioState
	if raw := gjson.GetBytes(body, "portfolio"); raw.Exists() {
		if err := json.Unmarshal([]byte(raw.Raw), &portfolio); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid portfolio: " + err.Error()})
			return
		}
	}
	var marks risk.Marks
	if raw := gjson.GetBytes(body, "marks"); raw.Exists() {
		if err := json.Unmarshal([]byte(raw.Raw), &marks); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid marks: " + err.Error()})
			return
		}
	}

	marketState, ok := r.marketState(c, body, signals)
	if !ok {
		return
	}

	resolved, err := r.resolveProfile(profileName)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	eng := engine.New(engine.WithSizer(resolved.Sizer), engine.WithConstraints(resolved.Constraints...))
	result, err := eng.Process(signals, portfolio, marketState, resolved.Config, marks)
	if err != nil {
		var inputErr *risk.InputError
		if errors.As(err, &inputErr) {
			c.JSON(http.StatusBadRequest, gin.H{"error": inputErr.Error()})
			return
		}
		logger.Errorf("[api] evaluate failed: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "evaluation failed"})
		return
	}

	equity := portfolio.Equity(marketState)
	resp := evaluateResponse{
		Profile: resolved.Name,
		Equity:  equity.String(),
		Result:  result,
	}
	if r.store != nil {
		id, err := r.store.SaveEvaluation(c.Request.Context(), resolved.Name, equity, signals, result)
		if err != nil {
			logger.Errorf("[api] persisting evaluation failed: %v", err)
		} else {
			resp.ID = id
		}
	}
	c.JSON(http.StatusOK, resp)
}

// marketState uses the request's market snapshot when present, otherwise
// builds one from live data for the signalled symbols.
func (r *Router) marketState(c *gin.Context, body []byte, signals []risk.Signal) (risk.MarketState, bool) {
	if raw := gjson.GetBytes(body, "market"); raw.Exists() {
		var state risk.MarketState
		if err := json.Unmarshal([]byte(raw.Raw), &state); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid market: " + err.Error()})
			return risk.MarketState{}, false
		}
		return state, true
	}
	if r.snapshots == nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "market snapshot is required"})
		return risk.MarketState{}, false
	}
	symbols := make([]string, 0, len(signals))
	seen := make(map[string]struct{}, len(signals))
	for _, s := range signals {
		if _, dup := seen[s.Symbol]; dup {
			continue
		}
		seen[s.Symbol] = struct{}{}
		symbols = append(symbols, s.Symbol)
	}
	state, err := r.snapshots.Build(c.Request.Context(), symbols)
	if err != nil {
		logger.Errorf("[api] building market snapshot failed: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "market snapshot failed"})
		return risk.MarketState{}, false
	}
	return state, true
}

func (r *Router) resolveProfile(name string) (profile.Resolved, error) {
	if r.profiles != nil {
		return r.profiles.Resolve(name, r.base)
	}
	if name != "" && name != "default" {
		return profile.Resolved{}, errors.New("unknown profile " + strconv.Quote(name))
	}
	return profile.Resolved{
		Name:        "default",
		Sizer:       sizers.Volatility{},
		Constraints: engine.DefaultConstraints(),
		Config:      r.base,
	}, nil
}

func (r *Router) handleEvaluations(c *gin.Context) {
	if r.store == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "store not configured"})
		return
	}
	limit := parseLimit(c.Query("limit"), 50)
	rows, err := r.store.RecentEvaluations(c.Request.Context(), limit)
	if err != nil {
		logger.Errorf("[api] listing evaluations failed: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "listing evaluations failed"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"evaluations": rows})
}

func (r *Router) handleEvaluation(c *gin.Context) {
	if r.store == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "store not configured"})
		return
	}
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || id <= 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid evaluation id"})
		return
	}
	rec, err := r.store.Evaluation(c.Request.Context(), id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "evaluation not found"})
			return
		}
		logger.Errorf("[api] loading evaluation %d failed: %v", id, err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "loading evaluation failed"})
		return
	}
	c.JSON(http.StatusOK, rec)
}

func (r *Router) handleOrders(c *gin.Context) {
	if r.store == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "store not configured"})
		return
	}
	symbol := strings.TrimSpace(c.Query("symbol"))
	if symbol == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "symbol is required"})
		return
	}
	limit := parseLimit(c.Query("limit"), 100)
	rows, err := r.store.OrdersBySymbol(c.Request.Context(), symbol, limit)
	if err != nil {
		logger.Errorf("[api] listing orders for %s failed: %v", symbol, err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "listing orders failed"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"orders": rows})
}

func parseLimit(raw string, fallback int) int {
	if raw == "" {
		return fallback
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n <= 0 {
		return fallback
	}
	if n > 500 {
		return 500
	}
	return n
}
