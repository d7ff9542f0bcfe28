package httpapi

import (
	"context"
	"net/http"
	"time"

	"crm-call-tracker/internal/auth"
	"crm-call-tracker/internal/config"
	"crm-call-tracker/pkg/logger"
	"crm-call-tracker/pkg/utils"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
)

// CallSlots enforces the per-user concurrent call cap in Redis. Slots carry a
// TTL so a crashed process cannot leak capacity forever; normal release
// happens when the call reaches a terminal status.
type CallSlots struct {
	RDB   *redis.Client
	Limit int
	TTL   time.Duration
}

func NewCallSlots(rdb *redis.Client, cfg config.CallsConfig) *CallSlots {
	return &CallSlots{RDB: rdb, Limit: cfg.MaxActivePerUser, TTL: cfg.ActiveSlotTTL}
}

func (s *CallSlots) key(userID string) string {
	return "calls:active:" + userID
}

func (s *CallSlots) Acquire(ctx context.Context, userID string) (bool, error) {
	if s == nil || s.RDB == nil {
		// no Redis wired: the cap is simply not enforced
		return true, nil
	}
	return utils.AcquireCallSlot(ctx, s.RDB, s.key(userID), s.Limit, s.TTL)
}

// Release frees one slot. Best-effort: the TTL is the backstop.
func (s *CallSlots) Release(ctx context.Context, userID string) {
	if s == nil || s.RDB == nil || userID == "" {
		return
	}
	if err := utils.ReleaseCallSlot(ctx, s.RDB, s.key(userID)); err != nil {
		logger.From(ctx).Warn("call slot release failed", "user_id", userID, "err", err)
	}
}

// RequireCallSlot gates call initiation on an available slot for the
// authenticated user. 429 when the user is at the cap.
func RequireCallSlot(slots *CallSlots) gin.HandlerFunc {
	return func(c *gin.Context) {
		userID, err := auth.UserID(c.Request.Context())
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "user_id required"})
			return
		}
		ok, err := slots.Acquire(c.Request.Context(), userID)
		if err != nil {
			logger.From(c.Request.Context()).Error("call slot acquire failed", "user_id", userID, "err", err)
			c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
			return
		}
		if !ok {
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{"error": "too many active calls"})
			return
		}
		c.Next()
	}
}
