package api

import (
	"time"

	"github.com/antigravity-tools/agproxy/internal/config"
	"github.com/antigravity-tools/agproxy/internal/monitor"
	"github.com/antigravity-tools/agproxy/internal/router"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"
)

// dispatchResult is the outcome of walking a route plan.
type dispatchResult struct {
	Body        []byte
	MappedModel string
	StatusCode  int
	OK          bool
}

// dispatch walks the plan's candidates against the account pool. The walk is
// bounded by the plan's hop cap; capacity-first plans rotate their starting
// candidate so load spreads across the list. Each attempt is recorded in the
// monitor. When the pool is drained and the secondary backend is dispatching,
// it takes the request instead.
func (s *Server) dispatch(c *gin.Context, originalModel string, plan router.RoutePlan, geminiBody []byte) dispatchResult {
	candidates := plan.Candidates()
	maxModels := plan.MaxModels()
	if len(candidates) == 0 {
		candidates = []string{plan.Primary}
	}

	start := 0
	if plan.IsCapacityFirst() && len(candidates) > 1 {
		start = int(s.rotation.Add(1)) % len(candidates)
	}

	sessionID := ""
	if plan.IsSticky() {
		sessionID = stickySessionID(c)
	}

	zai := s.deps.Zai
	if zai.IsDispatching() && zai.DispatchMode == config.ZaiDispatchExclusive {
		return s.dispatchZai(c, originalModel, candidates[start], geminiBody)
	}

	var last dispatchResult
	for hop := 0; hop < maxModels && hop < len(candidates); hop++ {
		model := candidates[(start+hop)%len(candidates)]

		acc, err := s.deps.TokenManager.Pick(c.Request.Context(), model, sessionID)
		if err != nil {
			log.Warnf("no account available for %s: %v", model, err)
			break
		}

		began := time.Now()
		status, body, err := s.upstream.generateContent(c.Request.Context(), model, acc.Token.AccessToken, "", geminiBody)
		entry := monitor.RequestLog{
			ID:           uuid.NewString(),
			Timestamp:    began,
			Method:       c.Request.Method,
			Path:         c.FullPath(),
			Model:        originalModel,
			MappedModel:  model,
			AccountEmail: acc.Email,
			StatusCode:   status,
			DurationMs:   time.Since(began).Milliseconds(),
		}
		if err != nil {
			entry.Error = err.Error()
		}
		s.deps.Monitor.Record(entry)

		if err == nil && status >= 200 && status < 300 {
			s.deps.TokenManager.MarkSuccess(acc.ID)
			return dispatchResult{Body: body, MappedModel: model, StatusCode: status, OK: true}
		}

		s.deps.TokenManager.MarkFailure(acc.ID)
		log.Warnf("upstream attempt failed: model=%s account=%s status=%d err=%v", model, acc.Email, status, err)
		last = dispatchResult{Body: body, MappedModel: model, StatusCode: status}
	}

	if zai.IsDispatching() {
		return s.dispatchZai(c, originalModel, candidates[start], geminiBody)
	}

	if last.StatusCode == 0 {
		last.StatusCode = 502
		last.MappedModel = candidates[start]
	}
	return last
}

// dispatchZai sends one attempt to the secondary backend with its API key.
func (s *Server) dispatchZai(c *gin.Context, originalModel, model string, geminiBody []byte) dispatchResult {
	began := time.Now()
	status, body, err := s.zaiUpstream.generateContent(c.Request.Context(), model, "", s.deps.Zai.APIKey, geminiBody)
	entry := monitor.RequestLog{
		ID:           uuid.NewString(),
		Timestamp:    began,
		Method:       c.Request.Method,
		Path:         c.FullPath(),
		Model:        originalModel,
		MappedModel:  model,
		AccountEmail: "zai",
		StatusCode:   status,
		DurationMs:   time.Since(began).Milliseconds(),
	}
	if err != nil {
		entry.Error = err.Error()
	}
	s.deps.Monitor.Record(entry)

	if err != nil {
		return dispatchResult{StatusCode: 502, MappedModel: model}
	}
	return dispatchResult{Body: body, MappedModel: model, StatusCode: status, OK: status >= 200 && status < 300}
}

// stickySessionID extracts a conversation identity for sticky plans from the
// headers clients commonly send, falling back to the caller's credential.
func stickySessionID(c *gin.Context) string {
	for _, header := range []string{"X-Session-Id", "X-User-Id", "X-Client-Id"} {
		if v := c.GetHeader(header); v != "" {
			return v
		}
	}
	return c.GetHeader("Authorization")
}
