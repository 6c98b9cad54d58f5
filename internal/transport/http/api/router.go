package apihttp

import (
	"context"
	"net/http"
	"strconv"
	"strings"
	"time"

	"cryptomind/internal/alert"
	"cryptomind/internal/journal"
	"cryptomind/internal/logger"
	"cryptomind/internal/market"
	"cryptomind/internal/metrics"
	"cryptomind/internal/store/decisionlog"
	"cryptomind/internal/trader"
	"cryptomind/internal/wallet"

	"github.com/gin-gonic/gin"
	"golang.org/x/time/rate"
)

const (
	defaultListLimit = 100
	maxListLimit     = 500
	tradeTimeout     = 5 * time.Second
)

// Router 挂载 /api 路由。
type Router struct {
	trader        Trader
	quotes        Quotes
	auto          AutoTrader
	alerts        Alerts
	notifications Notifications
	failures      FailureReporter
	decisions     Decisions
	metrics       *metrics.Metrics
	tradeLimiter  *rate.Limiter
}

// Register 将路由挂载到给定分组下。未配置的依赖对应的路由不注册。
func (r *Router) Register(group *gin.RouterGroup) {
	if group == nil {
		return
	}
	group.GET("/wallet", r.handleWallet)
	group.GET("/networth", r.handleNetWorth)
	group.GET("/transactions", r.handleTransactions)
	group.POST("/trades", r.limitTrades(), r.handleTrade)
	group.GET("/quotes", r.handleQuotes)
	group.GET("/quotes/:id", r.handleQuote)
	if r.auto != nil {
		group.GET("/autotrade", r.handleAutoTradeStatus)
		group.POST("/autotrade/enable", r.handleAutoTradeEnable)
		group.POST("/autotrade/disable", r.handleAutoTradeDisable)
	}
	if r.decisions != nil {
		group.GET("/autotrade/decisions", r.handleDecisions)
	}
	if r.alerts != nil {
		group.GET("/alerts", r.handleListAlerts)
		group.POST("/alerts", r.handleCreateAlert)
		group.DELETE("/alerts/:id", r.handleDeleteAlert)
	}
	if r.notifications != nil {
		group.GET("/notifications", r.handleNotifications)
		group.GET("/ws/notifications", r.handleNotificationStream)
	}
}

type walletResponse struct {
	wallet.Valuation
	QuotesUpdatedAt time.Time `json:"quotes_updated_at"`
}

func (r *Router) handleWallet(c *gin.Context) {
	snap := r.trader.Wallet()
	c.JSON(http.StatusOK, walletResponse{
		Valuation:       wallet.Valuate(snap, r.quotes.ByID()),
		QuotesUpdatedAt: r.quotes.UpdatedAt(),
	})
}

func (r *Router) handleNetWorth(c *gin.Context) {
	snap := r.trader.Wallet()
	c.JSON(http.StatusOK, gin.H{
		"cash":      snap.Cash,
		"net_worth": wallet.NetWorth(snap, r.quotes.ByID()),
	})
}

func (r *Router) handleTransactions(c *gin.Context) {
	limit := parseLimit(c)
	origin := strings.ToUpper(strings.TrimSpace(c.Query("origin")))
	if origin == "" {
		txs := r.trader.Transactions(limit)
		c.JSON(http.StatusOK, gin.H{"transactions": txs, "count": len(txs)})
		return
	}
	// 先过滤再截断
	txs := make([]journal.Transaction, 0, limit)
	for _, tx := range r.trader.Transactions(0) {
		if string(tx.Origin) != origin {
			continue
		}
		txs = append(txs, tx)
		if len(txs) == limit {
			break
		}
	}
	c.JSON(http.StatusOK, gin.H{"transactions": txs, "count": len(txs)})
}

type tradeRequest struct {
	AssetID   string  `json:"asset_id" binding:"required"`
	Side      string  `json:"side" binding:"required,side"`
	AmountUSD float64 `json:"amount_usd"`
}

func (r *Router) limitTrades() gin.HandlerFunc {
	return func(c *gin.Context) {
		if !r.tradeLimiter.Allow() {
			logger.Warnf("[api] trade rejected by rate limiter ip=%s", c.ClientIP())
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{"error": "too many requests"})
			return
		}
		c.Next()
	}
}

func (r *Router) handleTrade(c *gin.Context) {
	var req tradeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	side, _ := journal.ParseSide(req.Side)
	ctx, cancel := context.WithTimeout(c.Request.Context(), tradeTimeout)
	defer cancel()

	tx, err := r.trader.Execute(ctx, trader.TradeRequest{
		AssetID:   req.AssetID,
		Side:      side,
		AmountUSD: req.AmountUSD,
		Origin:    journal.OriginManual,
	})
	if err != nil {
		if r.failures != nil {
			r.failures.TradeFailed(req.AssetID, err)
		}
		if r.metrics != nil {
			r.metrics.ObserveRejection(string(trader.KindOf(err)), journal.OriginManual)
		}
		status := statusFor(err)
		if status >= http.StatusInternalServerError {
			logger.Errorf("[api] trade failed ip=%s asset=%s err=%v", c.ClientIP(), req.AssetID, err)
		}
		writeError(c, status, err)
		return
	}
	c.JSON(http.StatusOK, tx)
}

func (r *Router) handleQuotes(c *gin.Context) {
	quotes := r.quotes.All()
	if q := strings.ToLower(strings.TrimSpace(c.Query("q"))); q != "" {
		filtered := make([]market.Quote, 0, len(quotes))
		for _, quote := range quotes {
			if strings.Contains(strings.ToLower(quote.Name), q) || strings.Contains(strings.ToLower(quote.Symbol), q) {
				filtered = append(filtered, quote)
			}
		}
		quotes = filtered
	}
	c.JSON(http.StatusOK, gin.H{"quotes": quotes, "updated_at": r.quotes.UpdatedAt()})
}

func (r *Router) handleQuote(c *gin.Context) {
	q, ok := r.quotes.Quote(c.Param("id"))
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "quote not found"})
		return
	}
	c.JSON(http.StatusOK, q)
}

func (r *Router) handleAutoTradeStatus(c *gin.Context) {
	c.JSON(http.StatusOK, r.auto.Status())
}

func (r *Router) handleAutoTradeEnable(c *gin.Context) {
	logger.Infof("[api] autotrade enable ip=%s", c.ClientIP())
	c.JSON(http.StatusOK, r.auto.Enable())
}

func (r *Router) handleAutoTradeDisable(c *gin.Context) {
	logger.Infof("[api] autotrade disable ip=%s", c.ClientIP())
	c.JSON(http.StatusOK, r.auto.Disable())
}

func (r *Router) handleDecisions(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
	defer cancel()
	recs, err := r.decisions.List(ctx, decisionlog.Query{
		AssetID: c.Query("asset_id"),
		Outcome: c.Query("outcome"),
		Limit:   parseLimit(c),
	})
	if err != nil {
		logger.Errorf("[api] decisions list failed ip=%s err=%v", c.ClientIP(), err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"decisions": recs, "count": len(recs)})
}

type alertRequest struct {
	AssetID     string  `json:"asset_id" binding:"required"`
	TargetPrice float64 `json:"target_price" binding:"required,gt=0"`
	Condition   string  `json:"condition" binding:"required,condition"`
}

func (r *Router) handleListAlerts(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"alerts": r.alerts.List()})
}

func (r *Router) handleCreateAlert(c *gin.Context) {
	var req alertRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	q, ok := r.quotes.Quote(strings.TrimSpace(req.AssetID))
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "quote not found"})
		return
	}
	cond, _ := alert.ParseCondition(req.Condition)
	a, err := r.alerts.Add(q.AssetID, q.Symbol, req.TargetPrice, cond)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusCreated, a)
}

func (r *Router) handleDeleteAlert(c *gin.Context) {
	if !r.alerts.Remove(c.Param("id")) {
		c.JSON(http.StatusNotFound, gin.H{"error": "alert not found"})
		return
	}
	c.Status(http.StatusNoContent)
}

func (r *Router) handleNotifications(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"notifications": r.notifications.Recent(parseLimit(c))})
}

func parseLimit(c *gin.Context) int {
	limit, err := strconv.Atoi(c.DefaultQuery("limit", strconv.Itoa(defaultListLimit)))
	if err != nil || limit <= 0 {
		return defaultListLimit
	}
	if limit > maxListLimit {
		return maxListLimit
	}
	return limit
}
