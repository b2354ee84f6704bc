// Package prompt 管理内嵌的分析提示词模板
package prompt

import (
	"embed"
	"fmt"
	"strings"
	"sync"

	einoprompt "github.com/cloudwego/eino/components/prompt"
	"github.com/cloudwego/eino/schema"
)

//go:embed templates/*.txt
var templatesFS embed.FS

type PromptID string

const (
	PromptAnswerV1      PromptID = "answer_v1"
	PromptIntentV1      PromptID = "intent_v1"
	PromptConnectionsV1 PromptID = "connections_v1"
	PromptFollowUpsV1   PromptID = "followups_v1"
	PromptGapsV1        PromptID = "gaps_v1"
	PromptClustersV1    PromptID = "clusters_v1"
	PromptGemsV1        PromptID = "gems_v1"
	PromptLivingV1      PromptID = "living_context_v1"
	PromptTemporalV1    PromptID = "temporal_v1"
	PromptCostV1        PromptID = "cost_alignment_v1"
)

// systemFile 所有分析共用的系统提示词
const systemFile = "templates/analyst.system.txt"

var known = map[PromptID]bool{
	PromptAnswerV1:      true,
	PromptIntentV1:      true,
	PromptConnectionsV1: true,
	PromptFollowUpsV1:   true,
	PromptGapsV1:        true,
	PromptClustersV1:    true,
	PromptGemsV1:        true,
	PromptLivingV1:      true,
	PromptTemporalV1:    true,
	PromptCostV1:        true,
}

type Registry struct {
	mu    sync.RWMutex
	cache map[PromptID]einoprompt.ChatTemplate
}

func NewRegistry() *Registry {
	return &Registry{
		cache: make(map[PromptID]einoprompt.ChatTemplate),
	}
}

// ChatTemplate 返回 FString 模板（系统 + 用户消息），首次加载后缓存
func (r *Registry) ChatTemplate(id PromptID) (einoprompt.ChatTemplate, error) {
	if r == nil {
		return nil, fmt.Errorf("prompt registry is nil")
	}

	r.mu.RLock()
	if tpl, ok := r.cache[id]; ok {
		r.mu.RUnlock()
		return tpl, nil
	}
	r.mu.RUnlock()

	r.mu.Lock()
	defer r.mu.Unlock()
	if tpl, ok := r.cache[id]; ok {
		return tpl, nil
	}

	if !known[id] {
		return nil, fmt.Errorf("unknown prompt id: %s", id)
	}
	system, err := readEmbeddedText(systemFile)
	if err != nil {
		return nil, err
	}
	user, err := readEmbeddedText("templates/" + string(id) + ".user.txt")
	if err != nil {
		return nil, err
	}

	tpl := einoprompt.FromMessages(
		schema.FString,
		schema.SystemMessage(system),
		schema.UserMessage(user),
	)
	r.cache[id] = tpl
	return tpl, nil
}

func readEmbeddedText(path string) (string, error) {
	b, err := templatesFS.ReadFile(path)
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(string(b)), nil
}
