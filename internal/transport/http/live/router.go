package livehttp

import (
	"net/http"
	"strconv"

	"pulsetrader/internal/portfolio"

	"github.com/gin-gonic/gin"
)

// Router 暴露组合实盘状态的只读 API。
type Router struct {
	manager *portfolio.Manager
	journal *portfolio.Journal
}

func NewRouter(manager *portfolio.Manager, journal *portfolio.Journal) *Router {
	return &Router{manager: manager, journal: journal}
}

// Register 把路由挂到给定分组（通常是 /api/live）。
func (r *Router) Register(group *gin.RouterGroup) {
	group.GET("/strategies", r.handleStrategies)
	group.GET("/trades", r.handleTrades)
	group.GET("/symbols", r.handleSymbols)
}

func (r *Router) handleStrategies(c *gin.Context) {
	if r.manager == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "组合管理器未启用"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"strategies": r.manager.Status()})
}

func (r *Router) handleTrades(c *gin.Context) {
	if r.journal == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "流水存储未启用"})
		return
	}
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "100"))
	trades, err := r.journal.ListTrades(c.Query("strategy"), limit)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"trades": trades})
}

func (r *Router) handleSymbols(c *gin.Context) {
	if r.manager == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "组合管理器未启用"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"symbols": r.manager.Symbols()})
}
