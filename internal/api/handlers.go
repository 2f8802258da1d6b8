package api

import (
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/antigravity-tools/agproxy/internal/router"
	"github.com/gin-gonic/gin"
	"github.com/tidwall/gjson"
)

// handleClaudeMessages terminates Anthropic Messages requests. CLI-shaped
// Claude traffic gets the family mapping (including the haiku downgrade).
func (s *Server) handleClaudeMessages(c *gin.Context) {
	body, err := io.ReadAll(c.Request.Body)
	if err != nil {
		claudeError(c, http.StatusBadRequest, "invalid_request_error", "failed to read request body")
		return
	}
	model := gjson.GetBytes(body, "model").String()
	if model == "" {
		claudeError(c, http.StatusBadRequest, "invalid_request_error", "model is required")
		return
	}

	plan := s.resolvePlan(model, true)
	geminiBody := claudeRequestToGemini(body)

	result := s.dispatch(c, model, plan, geminiBody)
	if !result.OK {
		claudeError(c, upstreamStatus(result.StatusCode), "api_error", "all upstream candidates failed")
		return
	}
	c.Data(http.StatusOK, "application/json", geminiResponseToClaude(result.Body, result.MappedModel))
}

// handleOpenAIChatCompletions terminates OpenAI Chat Completions requests.
func (s *Server) handleOpenAIChatCompletions(c *gin.Context) {
	body, err := io.ReadAll(c.Request.Body)
	if err != nil {
		openaiError(c, http.StatusBadRequest, "failed to read request body")
		return
	}
	model := gjson.GetBytes(body, "model").String()
	if model == "" {
		openaiError(c, http.StatusBadRequest, "model is required")
		return
	}

	plan := s.resolvePlan(model, false)
	geminiBody := openaiRequestToGemini(body)

	result := s.dispatch(c, model, plan, geminiBody)
	if !result.OK {
		openaiError(c, upstreamStatus(result.StatusCode), "all upstream candidates failed")
		return
	}
	c.Data(http.StatusOK, "application/json", geminiResponseToOpenAI(result.Body, result.MappedModel))
}

// handleGeminiGenerate terminates native Gemini v1beta requests. The path
// parameter carries "<model>:<action>"; only generateContent is served.
func (s *Server) handleGeminiGenerate(c *gin.Context) {
	modelAction := c.Param("modelAction")
	model, action, found := strings.Cut(modelAction, ":")
	if !found || model == "" {
		geminiError(c, http.StatusBadRequest, "expected models/<model>:generateContent")
		return
	}
	if action != "generateContent" {
		geminiError(c, http.StatusNotFound, "unsupported action: "+action)
		return
	}

	body, err := io.ReadAll(c.Request.Body)
	if err != nil {
		geminiError(c, http.StatusBadRequest, "failed to read request body")
		return
	}

	plan := s.resolvePlan(model, false)
	geminiBody := flattenGeminiTools(body)

	result := s.dispatch(c, model, plan, geminiBody)
	if !result.OK {
		geminiError(c, upstreamStatus(result.StatusCode), "all upstream candidates failed")
		return
	}
	c.Data(http.StatusOK, "application/json", result.Body)
}

// handleListModels advertises the models this proxy accepts, in the OpenAI
// list format all three client families understand.
func (s *Server) handleListModels(c *gin.Context) {
	var ids []string
	if s.deps.Experimental.DynamicModels {
		ids = router.AllDynamicModels(s.deps.CustomMapping)
	} else {
		ids = router.SupportedModels()
	}

	models := make([]gin.H, 0, len(ids))
	created := time.Now().Unix()
	for _, id := range ids {
		models = append(models, gin.H{
			"id":       id,
			"object":   "model",
			"created":  created,
			"owned_by": "agproxy",
		})
	}
	c.JSON(http.StatusOK, gin.H{"object": "list", "data": models})
}

// resolvePlan runs the route resolver against the tables cloned at start.
func (s *Server) resolvePlan(model string, applyClaudeFamily bool) router.RoutePlan {
	return router.ResolvePlan(
		model,
		s.deps.CustomMapping,
		s.deps.OpenAIMapping,
		s.deps.AnthropicMapping,
		s.deps.Strategies,
		applyClaudeFamily,
	)
}

// upstreamStatus maps an upstream failure status onto the client response.
// Client-attributable statuses pass through; everything else is a 502.
func upstreamStatus(status int) int {
	switch status {
	case http.StatusTooManyRequests, http.StatusBadRequest, http.StatusUnauthorized, http.StatusForbidden, http.StatusNotFound:
		return status
	default:
		return http.StatusBadGateway
	}
}

func claudeError(c *gin.Context, status int, errType, message string) {
	c.JSON(status, gin.H{"type": "error", "error": gin.H{"type": errType, "message": message}})
}

func openaiError(c *gin.Context, status int, message string) {
	c.JSON(status, gin.H{"error": gin.H{"type": "api_error", "message": message}})
}

func geminiError(c *gin.Context, status int, message string) {
	c.JSON(status, gin.H{"error": gin.H{"code": status, "message": message, "status": http.StatusText(status)}})
}
