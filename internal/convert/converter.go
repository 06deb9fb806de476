package convert

import (
	"context"
	"fmt"

	"github.com/fileforge/fileforge/internal/domain"
)

// Options carries per-request conversion parameters passed through to the
// engine untouched.
type Options map[string]string

// Converter transforms input bytes from one format to another. Pure
// transformation; no side effects on jobs or quota.
type Converter interface {
	Convert(ctx context.Context, input []byte, opts Options) ([]byte, error)
}

// Registry maps normalized (source, target) format pairs to converters.
// Populated at startup and read-only afterwards.
type Registry struct {
	converters map[string]Converter
}

func NewRegistry() *Registry {
	return &Registry{converters: make(map[string]Converter)}
}

func pairKey(source, target string) string {
	return domain.NormalizeFormat(source) + ">" + domain.NormalizeFormat(target)
}

// Register adds a converter for the pair, replacing any previous one.
func (r *Registry) Register(source, target string, converter Converter) {
	r.converters[pairKey(source, target)] = converter
}

// Resolve returns the converter for the pair, or ErrUnsupportedConversion.
func (r *Registry) Resolve(source, target string) (Converter, error) {
	converter, ok := r.converters[pairKey(source, target)]
	if !ok {
		return nil, fmt.Errorf("%w: %s to %s",
			domain.ErrUnsupportedConversion,
			domain.NormalizeFormat(source),
			domain.NormalizeFormat(target),
		)
	}
	return converter, nil
}

// Pairs returns the registered format pairs, for diagnostics.
func (r *Registry) Pairs() []string {
	pairs := make([]string, 0, len(r.converters))
	for key := range r.converters {
		pairs = append(pairs, key)
	}
	return pairs
}
