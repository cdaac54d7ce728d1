package app

import (
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/theChefEngineer/ai-tool-app-sub001/app/access"
	"github.com/theChefEngineer/ai-tool-app-sub001/app/models"
	"github.com/theChefEngineer/ai-tool-app-sub001/app/plans"
	"github.com/theChefEngineer/ai-tool-app-sub001/auth"
)

const (
	requestTimeout     = 5 * time.Second
	maxTextBytes       = 1 << 20
	maxRecordBodyBytes = 2*maxTextBytes + 64<<10 // both texts at the cap plus the other fields
)

// currentUserID returns the authenticated subject or writes a 401.
func currentUserID(c *gin.Context) (string, bool) {
	claims, ok := auth.ClaimsFromContext(c.Request.Context())
	if !ok || claims.Subject == "" {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "missing auth context"})
		return "", false
	}
	return claims.Subject, true
}

func featureParam(c *gin.Context) (plans.Feature, bool) {
	f, err := plans.ParseFeature(c.Param("feature"))
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "unknown feature"})
		return 0, false
	}
	return f, true
}

func historyTypeParam(c *gin.Context) (models.HistoryType, bool) {
	typ := models.HistoryType(strings.ToLower(c.Param("type")))
	if !typ.Valid() {
		c.JSON(http.StatusNotFound, gin.H{"error": "unknown history type"})
		return "", false
	}
	return typ, true
}

// accessStatus maps a denial onto an HTTP status: upgrade prompts are 403,
// exhausted quota is 429 and a failed usage write is 409.
func accessStatus(res access.Result) int {
	switch {
	case res.HasAccess:
		return http.StatusOK
	case res.LimitReached:
		return http.StatusTooManyRequests
	case res.UpgradeRequired:
		return http.StatusForbidden
	default:
		return http.StatusConflict
	}
}

func isTruthy(v string) bool {
	switch strings.ToLower(strings.TrimSpace(v)) {
	case "1", "true", "yes":
		return true
	}
	return false
}
