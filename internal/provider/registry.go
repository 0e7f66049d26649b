package provider

import (
	"fmt"
	"sort"
	"sync"
)

// Registry 进程级 LLM 供应商注册表。启动时 bootstrap 注册
// anthropic / openai 兼容端点，问答管线按 ModelBinding.Provider
// 在这里解析 claude/llama 选择器对应的供应商。
type Registry struct {
	mu        sync.RWMutex
	providers map[string]LLMProvider
}

var globalProviderRegistry = &Registry{
	providers: make(map[string]LLMProvider),
}

// RegisterProvider 以 Name() 为键注册供应商，重复注册覆盖
func RegisterProvider(provider LLMProvider) {
	globalProviderRegistry.mu.Lock()
	defer globalProviderRegistry.mu.Unlock()
	globalProviderRegistry.providers[provider.Name()] = provider
}

// GetProvider 按名称解析供应商，未注册（如缺 API key 时启动）返回错误
func GetProvider(name string) (LLMProvider, error) {
	globalProviderRegistry.mu.RLock()
	defer globalProviderRegistry.mu.RUnlock()
	p, ok := globalProviderRegistry.providers[name]
	if !ok {
		return nil, fmt.Errorf("LLM provider not found: %s", name)
	}
	return p, nil
}

// ListProviders 返回已注册供应商名称（排序后，便于日志输出）
func ListProviders() []string {
	globalProviderRegistry.mu.RLock()
	defer globalProviderRegistry.mu.RUnlock()
	names := make([]string, 0, len(globalProviderRegistry.providers))
	for name := range globalProviderRegistry.providers {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
