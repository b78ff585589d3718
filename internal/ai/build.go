package ai

import (
	"fmt"

	"github.com/xxxsen/readweb/internal/config"
)

// BuildGenerator turns the configured providers into a single fallback
// generator. It returns nil when no provider is configured.
func BuildGenerator(items []config.AIProviderConfig) (IGenerator, error) {
	entries := make([]GeneratorEntry, 0, len(items))
	for i, item := range items {
		args := item.Data
		if args == nil {
			args = map[string]interface{}{}
		}
		provider, err := NewProvider(item.Provider, args)
		if err != nil {
			return nil, fmt.Errorf("init ai provider %d (%s): %w", i, item.Name, err)
		}
		entries = append(entries, GeneratorEntry{
			Name:      item.Name,
			Generator: NewGenerator(provider, item.Model),
		})
	}
	return NewGroupGenerator(entries), nil
}
