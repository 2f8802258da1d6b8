package api

import (
	"strconv"
	"strings"
	"time"

	"github.com/antigravity-tools/agproxy/internal/schema"
	"github.com/google/uuid"
	"github.com/tidwall/gjson"
	"github.com/tidwall/sjson"
)

// claudeRequestToGemini converts an Anthropic Messages request body into the
// Gemini generateContent shape. Tool parameter schemas are flattened on the
// way through.
func claudeRequestToGemini(body []byte) []byte {
	out := []byte(`{}`)
	root := gjson.ParseBytes(body)

	if system := root.Get("system"); system.Exists() {
		text := system.String()
		if system.IsArray() {
			var parts []string
			system.ForEach(func(_, block gjson.Result) bool {
				parts = append(parts, block.Get("text").String())
				return true
			})
			text = strings.Join(parts, "\n")
		}
		out, _ = sjson.SetBytes(out, "systemInstruction.parts.0.text", text)
	}

	idx := 0
	root.Get("messages").ForEach(func(_, msg gjson.Result) bool {
		role := "user"
		if msg.Get("role").String() == "assistant" {
			role = "model"
		}
		out, _ = sjson.SetBytes(out, "contents."+itoa(idx)+".role", role)

		content := msg.Get("content")
		part := 0
		if content.IsArray() {
			content.ForEach(func(_, block gjson.Result) bool {
				switch block.Get("type").String() {
				case "text":
					out, _ = sjson.SetBytes(out, contentPath(idx, part)+".text", block.Get("text").String())
					part++
				case "tool_result":
					out, _ = sjson.SetBytes(out, contentPath(idx, part)+".functionResponse.name", block.Get("tool_use_id").String())
					out, _ = sjson.SetRawBytes(out, contentPath(idx, part)+".functionResponse.response", rawOrQuote(block.Get("content")))
					part++
				case "tool_use":
					out, _ = sjson.SetBytes(out, contentPath(idx, part)+".functionCall.name", block.Get("name").String())
					out, _ = sjson.SetRawBytes(out, contentPath(idx, part)+".functionCall.args", rawOrQuote(block.Get("input")))
					part++
				}
				return true
			})
		} else {
			out, _ = sjson.SetBytes(out, contentPath(idx, part)+".text", content.String())
		}
		idx++
		return true
	})

	out = setGenerationConfig(out, map[string]gjson.Result{
		"maxOutputTokens": root.Get("max_tokens"),
		"temperature":     root.Get("temperature"),
		"topP":            root.Get("top_p"),
		"topK":            root.Get("top_k"),
	})
	if stops := root.Get("stop_sequences"); stops.IsArray() {
		out, _ = sjson.SetRawBytes(out, "generationConfig.stopSequences", []byte(stops.Raw))
	}

	if tools := root.Get("tools"); tools.IsArray() {
		t := 0
		tools.ForEach(func(_, tool gjson.Result) bool {
			base := "tools.0.functionDeclarations." + itoa(t)
			out, _ = sjson.SetBytes(out, base+".name", tool.Get("name").String())
			if desc := tool.Get("description"); desc.Exists() {
				out, _ = sjson.SetBytes(out, base+".description", desc.String())
			}
			params := schema.FlattenJSON([]byte(tool.Get("input_schema").Raw))
			if len(params) > 0 && gjson.ValidBytes(params) {
				out, _ = sjson.SetRawBytes(out, base+".parameters", params)
			}
			t++
			return true
		})
	}

	return out
}

// geminiResponseToClaude converts a generateContent response into the
// Anthropic Messages response shape.
func geminiResponseToClaude(body []byte, model string) []byte {
	root := gjson.ParseBytes(body)
	out := []byte(`{"type":"message","role":"assistant"}`)
	out, _ = sjson.SetBytes(out, "id", "msg_"+uuid.NewString())
	out, _ = sjson.SetBytes(out, "model", model)

	idx := 0
	root.Get("candidates.0.content.parts").ForEach(func(_, part gjson.Result) bool {
		if text := part.Get("text"); text.Exists() {
			out, _ = sjson.SetBytes(out, "content."+itoa(idx)+".type", "text")
			out, _ = sjson.SetBytes(out, "content."+itoa(idx)+".text", text.String())
			idx++
		} else if fc := part.Get("functionCall"); fc.Exists() {
			out, _ = sjson.SetBytes(out, "content."+itoa(idx)+".type", "tool_use")
			out, _ = sjson.SetBytes(out, "content."+itoa(idx)+".id", "toolu_"+uuid.NewString())
			out, _ = sjson.SetBytes(out, "content."+itoa(idx)+".name", fc.Get("name").String())
			out, _ = sjson.SetRawBytes(out, "content."+itoa(idx)+".input", rawOrQuote(fc.Get("args")))
			idx++
		}
		return true
	})

	stopReason := "end_turn"
	if root.Get("candidates.0.finishReason").String() == "MAX_TOKENS" {
		stopReason = "max_tokens"
	}
	out, _ = sjson.SetBytes(out, "stop_reason", stopReason)
	out, _ = sjson.SetBytes(out, "usage.input_tokens", root.Get("usageMetadata.promptTokenCount").Int())
	out, _ = sjson.SetBytes(out, "usage.output_tokens", root.Get("usageMetadata.candidatesTokenCount").Int())
	return out
}

// openaiRequestToGemini converts a Chat Completions request body into the
// Gemini generateContent shape.
func openaiRequestToGemini(body []byte) []byte {
	out := []byte(`{}`)
	root := gjson.ParseBytes(body)

	idx := 0
	var systemParts []string
	root.Get("messages").ForEach(func(_, msg gjson.Result) bool {
		role := msg.Get("role").String()
		content := msg.Get("content")

		if role == "system" || role == "developer" {
			systemParts = append(systemParts, content.String())
			return true
		}

		geminiRole := "user"
		if role == "assistant" {
			geminiRole = "model"
		}
		out, _ = sjson.SetBytes(out, "contents."+itoa(idx)+".role", geminiRole)

		part := 0
		if content.IsArray() {
			content.ForEach(func(_, block gjson.Result) bool {
				if block.Get("type").String() == "text" {
					out, _ = sjson.SetBytes(out, contentPath(idx, part)+".text", block.Get("text").String())
					part++
				}
				return true
			})
		} else {
			out, _ = sjson.SetBytes(out, contentPath(idx, part)+".text", content.String())
		}
		idx++
		return true
	})

	if len(systemParts) > 0 {
		out, _ = sjson.SetBytes(out, "systemInstruction.parts.0.text", strings.Join(systemParts, "\n"))
	}

	maxTokens := root.Get("max_completion_tokens")
	if !maxTokens.Exists() {
		maxTokens = root.Get("max_tokens")
	}
	out = setGenerationConfig(out, map[string]gjson.Result{
		"maxOutputTokens": maxTokens,
		"temperature":     root.Get("temperature"),
		"topP":            root.Get("top_p"),
	})

	if tools := root.Get("tools"); tools.IsArray() {
		t := 0
		tools.ForEach(func(_, tool gjson.Result) bool {
			fn := tool.Get("function")
			if !fn.Exists() {
				return true
			}
			base := "tools.0.functionDeclarations." + itoa(t)
			out, _ = sjson.SetBytes(out, base+".name", fn.Get("name").String())
			if desc := fn.Get("description"); desc.Exists() {
				out, _ = sjson.SetBytes(out, base+".description", desc.String())
			}
			params := schema.FlattenJSON([]byte(fn.Get("parameters").Raw))
			if len(params) > 0 && gjson.ValidBytes(params) {
				out, _ = sjson.SetRawBytes(out, base+".parameters", params)
			}
			t++
			return true
		})
	}

	return out
}

// geminiResponseToOpenAI converts a generateContent response into the Chat
// Completions response shape.
func geminiResponseToOpenAI(body []byte, model string) []byte {
	root := gjson.ParseBytes(body)
	out := []byte(`{"object":"chat.completion"}`)
	out, _ = sjson.SetBytes(out, "id", "chatcmpl-"+uuid.NewString())
	out, _ = sjson.SetBytes(out, "created", time.Now().Unix())
	out, _ = sjson.SetBytes(out, "model", model)

	var texts []string
	toolIdx := 0
	root.Get("candidates.0.content.parts").ForEach(func(_, part gjson.Result) bool {
		if text := part.Get("text"); text.Exists() {
			texts = append(texts, text.String())
		} else if fc := part.Get("functionCall"); fc.Exists() {
			base := "choices.0.message.tool_calls." + itoa(toolIdx)
			out, _ = sjson.SetBytes(out, base+".id", "call_"+uuid.NewString())
			out, _ = sjson.SetBytes(out, base+".type", "function")
			out, _ = sjson.SetBytes(out, base+".function.name", fc.Get("name").String())
			out, _ = sjson.SetBytes(out, base+".function.arguments", string(rawOrQuote(fc.Get("args"))))
			toolIdx++
		}
		return true
	})

	out, _ = sjson.SetBytes(out, "choices.0.index", 0)
	out, _ = sjson.SetBytes(out, "choices.0.message.role", "assistant")
	out, _ = sjson.SetBytes(out, "choices.0.message.content", strings.Join(texts, ""))
	finish := "stop"
	switch root.Get("candidates.0.finishReason").String() {
	case "MAX_TOKENS":
		finish = "length"
	}
	if toolIdx > 0 {
		finish = "tool_calls"
	}
	out, _ = sjson.SetBytes(out, "choices.0.finish_reason", finish)

	out, _ = sjson.SetBytes(out, "usage.prompt_tokens", root.Get("usageMetadata.promptTokenCount").Int())
	out, _ = sjson.SetBytes(out, "usage.completion_tokens", root.Get("usageMetadata.candidatesTokenCount").Int())
	out, _ = sjson.SetBytes(out, "usage.total_tokens", root.Get("usageMetadata.totalTokenCount").Int())
	return out
}

// flattenGeminiTools rewrites a native Gemini request in place so every
// function declaration's parameters conform to the restricted schema shape.
func flattenGeminiTools(body []byte) []byte {
	tools := gjson.GetBytes(body, "tools")
	if !tools.IsArray() {
		return body
	}
	ti := 0
	tools.ForEach(func(_, tool gjson.Result) bool {
		di := 0
		tool.Get("functionDeclarations").ForEach(func(_, decl gjson.Result) bool {
			params := decl.Get("parameters")
			if params.Exists() {
				flattened := schema.FlattenJSON([]byte(params.Raw))
				if gjson.ValidBytes(flattened) {
					body, _ = sjson.SetRawBytes(body, "tools."+itoa(ti)+".functionDeclarations."+itoa(di)+".parameters", flattened)
				}
			}
			di++
			return true
		})
		ti++
		return true
	})
	return body
}

func contentPath(msg, part int) string {
	return "contents." + itoa(msg) + ".parts." + itoa(part)
}

func setGenerationConfig(out []byte, fields map[string]gjson.Result) []byte {
	for key, val := range fields {
		if val.Exists() {
			out, _ = sjson.SetRawBytes(out, "generationConfig."+key, []byte(val.Raw))
		}
	}
	return out
}

// rawOrQuote returns the raw JSON of a result, or an empty object for
// missing values so downstream parsers always see valid JSON.
func rawOrQuote(r gjson.Result) []byte {
	if !r.Exists() || r.Raw == "" {
		return []byte(`{}`)
	}
	return []byte(r.Raw)
}

func itoa(n int) string {
	return strconv.Itoa(n)
}
