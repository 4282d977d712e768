// internal/generation/recovery.go
package generation

import (
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"

	"content-workers/internal/common/errors"
	"content-workers/internal/models"
)

// ParseStage records which recovery step produced structured output.
type ParseStage string

const (
	StageDirect    ParseStage = "direct"
	StageBraceScan ParseStage = "brace_scan"
	StageFailed    ParseStage = "failed"
)

// ParseOutcome is the result of recovering topics from model text. Items and Err are exclusive.
type ParseOutcome struct {
	Items []GeneratedItem
	Stage ParseStage
	Raw   string
	Err   *errors.StandardError
}

// RecoverTopics decodes the model's reply as a topics document. The whole text is tried first, then the
// span from the first '{' to the last '}'. Braces in prose around the JSON defeat the second step.
func RecoverTopics(raw string) ParseOutcome {
	value, stage, err := recoverJSON(raw)
	if err != nil {
		return ParseOutcome{Stage: StageFailed, Raw: raw, Err: errors.NewParseError(err.Error())}
	}

	elems, ok := topicElements(value)
	if !ok {
		return ParseOutcome{Stage: stage, Raw: raw, Err: errors.NewParseError("response has no topics array")}
	}

	items := make([]GeneratedItem, 0, len(elems))
	for _, e := range elems {
		m, ok := e.(map[string]interface{})
		if !ok {
			continue
		}
		item := itemFromMap(m)
		if item.Title == "" {
			continue
		}
		items = append(items, item)
	}

	if len(items) == 0 {
		return ParseOutcome{Stage: stage, Raw: raw, Err: errors.NewParseError("response contained no topics with a title")}
	}

	return ParseOutcome{Items: items, Stage: stage, Raw: raw}
}

func recoverJSON(raw string) (interface{}, ParseStage, error) {
	var v interface{}
	directErr := json.Unmarshal([]byte(strings.TrimSpace(raw)), &v)
	if directErr == nil {
		return v, StageDirect, nil
	}

	start := strings.Index(raw, "{")
	end := strings.LastIndex(raw, "}")
	if start < 0 || end <= start {
		return nil, StageFailed, fmt.Errorf("no JSON object found: %v", directErr)
	}

	if err := json.Unmarshal([]byte(raw[start:end+1]), &v); err != nil {
		return nil, StageFailed, fmt.Errorf("brace scan: %v", err)
	}
	return v, StageBraceScan, nil
}

func topicElements(v interface{}) ([]interface{}, bool) {
	switch t := v.(type) {
	case []interface{}:
		return t, true
	case map[string]interface{}:
		arr, ok := t["topics"].([]interface{})
		return arr, ok
	}
	return nil, false
}

// itemFromMap reads the model-controlled fields of one topic, filling defaults for anything missing.
func itemFromMap(m map[string]interface{}) GeneratedItem {
	return GeneratedItem{
		Title:          stringField(m, "title"),
		RelevanceScore: scoreField(m["relevance_score"]),
		SEOKeywords:    keywordsField(m["seo_keywords"]),
		TargetAudience: stringField(m, "target_audience"),
		Category:       models.NormalizeCategory(stringField(m, "category")),
		Status:         models.TopicStatusDraft,
	}
}

func stringField(m map[string]interface{}, key string) string {
	switch v := m[key].(type) {
	case string:
		return strings.TrimSpace(v)
	case nil:
		return ""
	case []interface{}:
		parts := make([]string, 0, len(v))
		for _, p := range v {
			if s := strings.TrimSpace(fmt.Sprint(p)); s != "" {
				parts = append(parts, s)
			}
		}
		return strings.Join(parts, ", ")
	case map[string]interface{}:
		return ""
	default:
		return fmt.Sprint(v)
	}
}

func scoreField(v interface{}) float64 {
	var f float64
	switch t := v.(type) {
	case float64:
		f = t
	case string:
		parsed, err := strconv.ParseFloat(strings.TrimSpace(strings.TrimSuffix(strings.TrimSpace(t), "%")), 64)
		if err != nil {
			return 0
		}
		f = parsed
	default:
		return 0
	}

	if math.IsNaN(f) {
		return 0
	}
	return math.Max(0, math.Min(100, f))
}

func keywordsField(v interface{}) []string {
	out := []string{}
	switch t := v.(type) {
	case []interface{}:
		for _, k := range t {
			if k == nil {
				continue
			}
			if s := strings.TrimSpace(fmt.Sprint(k)); s != "" {
				out = append(out, s)
			}
		}
	case string:
		for _, k := range strings.Split(t, ",") {
			if s := strings.TrimSpace(k); s != "" {
				out = append(out, s)
			}
		}
	}
	return out
}
