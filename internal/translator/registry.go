package translator

import (
	"context"
	"sort"
	"strings"
)

// Credentials of one provider.
type Credentials struct {
	APIKey  string `json:"api_key"`
	BaseURL string `json:"base_url"`
}

// CredentialSource resolves the credentials of a provider.
type CredentialSource interface {
	Credentials(provider string) Credentials
}

// Client is a chat model able to answer one system+user exchange.
type Client interface {
	Complete(ctx context.Context, system, user, model string) (string, error)
}

// Factory builds the client of a provider.
type Factory func(ctx context.Context, cred Credentials) (Client, error)

// Provider describes a registered provider.
type Provider struct {
	ID             string `json:"id"`
	DefaultModel   string `json:"default_model"`
	DefaultBaseURL string `json:"default_base_url,omitempty"`
	NeedsKey       bool   `json:"needs_key"`
	factory        Factory
}

// Registry maps provider identifiers to factories. It is filled once at
// startup and only read afterwards.
type Registry struct {
	providers map[string]Provider
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{providers: make(map[string]Provider)}
}

// Register adds or replaces a provider.
func (r *Registry) Register(p Provider, f Factory) {
	p.ID = normalizeProvider(p.ID)
	p.factory = f
	r.providers[p.ID] = p
}

// Lookup returns the provider with the given identifier.
func (r *Registry) Lookup(id string) (Provider, bool) {
	p, ok := r.providers[normalizeProvider(id)]
	return p, ok
}

// Providers lists the registered providers sorted by identifier.
func (r *Registry) Providers() []Provider {
	out := make([]Provider, 0, len(r.providers))
	for _, p := range r.providers {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

func normalizeProvider(id string) string {
	return strings.ToLower(strings.TrimSpace(id))
}

// DefaultRegistry registers every built-in provider.
func DefaultRegistry() *Registry {
	r := NewRegistry()
	for _, v := range openAICompatible {
		r.Register(Provider{ID: v.id, DefaultModel: v.model, DefaultBaseURL: v.baseURL, NeedsKey: true}, newEinoFactory(v.baseURL, v.model))
	}
	r.Register(Provider{ID: "anthropic", DefaultModel: "claude-3-5-haiku-latest", NeedsKey: true}, newAnthropicFactory("claude-3-5-haiku-latest"))
	r.Register(Provider{ID: "mistral", DefaultModel: "mistral-small-latest", NeedsKey: true}, newMistralFactory("mistral-small-latest"))
	r.Register(Provider{ID: "ollama", DefaultModel: "qwen2.5", DefaultBaseURL: "http://127.0.0.1:11434"}, newOllamaFactory("http://127.0.0.1:11434", "qwen2.5"))
	return r
}

// 兼容 OpenAI Chat Completions 协议的服务商
var openAICompatible = []struct {
	id      string
	baseURL string
	model   string
}{
	{"openai", "https://api.openai.com/v1", "gpt-4o-mini"},
	{"deepseek", "https://api.deepseek.com/v1", "deepseek-chat"},
	{"moonshot", "https://api.moonshot.cn/v1", "moonshot-v1-8k"},
	{"qwen", "https://dashscope.aliyuncs.com/compatible-mode/v1", "qwen-plus"},
	{"zhipu", "https://open.bigmodel.cn/api/paas/v4", "glm-4-flash"},
	{"siliconflow", "https://api.siliconflow.cn/v1", "Qwen/Qwen2.5-7B-Instruct"},
	{"groq", "https://api.groq.com/openai/v1", "llama-3.3-70b-versatile"},
	{"openrouter", "https://openrouter.ai/api/v1", "openai/gpt-4o-mini"},
}
