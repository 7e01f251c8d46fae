package core

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/JonMunkholm/csvimport/internal/logging"
	"github.com/JonMunkholm/csvimport/internal/mapping"
)

// TemplateMatchThreshold is the minimum score for a template to be considered a match.
const TemplateMatchThreshold = 0.7

// TemplateStore persists import templates.
type TemplateStore interface {
	Create(ctx context.Context, t ImportTemplate) (ImportTemplate, error)
	Get(ctx context.Context, id string) (ImportTemplate, error)
	List(ctx context.Context, targetKey string) ([]ImportTemplate, error)
	Delete(ctx context.Context, id string) error
}

// MemoryTemplateStore keeps templates in process memory.
type MemoryTemplateStore struct {
	mu        sync.RWMutex
	templates map[string]ImportTemplate
}

// NewMemoryTemplateStore returns an empty in-memory store.
func NewMemoryTemplateStore() *MemoryTemplateStore {
	return &MemoryTemplateStore{templates: make(map[string]ImportTemplate)}
}

func (m *MemoryTemplateStore) Create(_ context.Context, t ImportTemplate) (ImportTemplate, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, existing := range m.templates {
		if existing.TargetKey == t.TargetKey && strings.EqualFold(existing.Name, t.Name) {
			return ImportTemplate{}, fmt.Errorf("%w: %s", ErrTemplateExists, t.Name)
		}
	}

	now := time.Now().UTC()
	t.ID = uuid.NewString()
	t.CreatedAt = now
	t.UpdatedAt = now
	t.Mapping = t.Mapping.Clone()
	t.Headers = append([]string(nil), t.Headers...)

	m.templates[t.ID] = t
	return t, nil
}

func (m *MemoryTemplateStore) Get(_ context.Context, id string) (ImportTemplate, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	t, ok := m.templates[id]
	if !ok {
		return ImportTemplate{}, fmt.Errorf("%w: %s", ErrTemplateNotFound, id)
	}
	return t, nil
}

func (m *MemoryTemplateStore) List(_ context.Context, targetKey string) ([]ImportTemplate, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]ImportTemplate, 0)
	for _, t := range m.templates {
		if t.TargetKey == targetKey {
			out = append(out, t)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

func (m *MemoryTemplateStore) Delete(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.templates[id]; !ok {
		return fmt.Errorf("%w: %s", ErrTemplateNotFound, id)
	}
	delete(m.templates, id)
	return nil
}

// SaveTemplate stores the current mapping of a session as a named template.
// Only mapped fields are kept.
func (s *Service) SaveTemplate(ctx context.Context, sessionID, name string) (*ImportTemplate, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, ErrTemplateName
	}

	sess, err := s.session(sessionID)
	if err != nil {
		return nil, err
	}

	sess.mu.Lock()
	tpl := ImportTemplate{
		TargetKey: sess.target.Key,
		Name:      name,
		Mapping:   make(mapping.Mapping),
		Headers:   append([]string(nil), sess.result.Headers...),
	}
	for field, header := range sess.mapping {
		if header != "" {
			tpl.Mapping[field] = header
		}
	}
	sess.mu.Unlock()

	saved, err := s.templates.Create(ctx, tpl)
	if err != nil {
		return nil, fmt.Errorf("save template: %w", err)
	}

	logging.WithFields(ctx, "session_id", sessionID, "template_id", saved.ID).
		Info("template saved", "target", saved.TargetKey, "fields", len(saved.Mapping))
	return &saved, nil
}

// ListTemplates returns all templates for a target.
func (s *Service) ListTemplates(ctx context.Context, targetKey string) ([]ImportTemplate, error) {
	if _, ok := Get(targetKey); !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownTarget, targetKey)
	}

	templates, err := s.templates.List(ctx, targetKey)
	if err != nil {
		return nil, fmt.Errorf("list templates: %w", err)
	}
	return templates, nil
}

// DeleteTemplate removes a template belonging to targetKey.
func (s *Service) DeleteTemplate(ctx context.Context, targetKey, id string) error {
	t, err := s.templates.Get(ctx, id)
	if err != nil {
		return err
	}
	if t.TargetKey != targetKey {
		return fmt.Errorf("%w: %s", ErrTemplateNotFound, id)
	}
	return s.templates.Delete(ctx, id)
}

// MatchTemplates finds templates whose headers fit csvHeaders, best first.
func (s *Service) MatchTemplates(ctx context.Context, targetKey string, csvHeaders []string) ([]TemplateMatch, error) {
	templates, err := s.ListTemplates(ctx, targetKey)
	if err != nil {
		return nil, err
	}

	var matches []TemplateMatch
	for _, t := range templates {
		score := matchTemplateHeaders(csvHeaders, t.Headers)
		if score >= TemplateMatchThreshold {
			matches = append(matches, TemplateMatch{Template: t, Score: score})
		}
	}

	sort.SliceStable(matches, func(i, j int) bool {
		return matches[i].Score > matches[j].Score
	})

	return matches, nil
}

// matchTemplateHeaders returns the share of template headers present in the
// file, ignoring case and surrounding space.
func matchTemplateHeaders(csvHeaders, templateHeaders []string) float64 {
	if len(templateHeaders) == 0 {
		return 0
	}

	csvSet := make(map[string]bool, len(csvHeaders))
	for _, h := range csvHeaders {
		csvSet[strings.ToLower(strings.TrimSpace(h))] = true
	}

	matched := 0
	for _, h := range templateHeaders {
		if csvSet[strings.ToLower(strings.TrimSpace(h))] {
			matched++
		}
	}

	return float64(matched) / float64(len(templateHeaders))
}

// templateMapping keeps the entries of a template that point at a header in
// headers, resolved to the file's own spelling of that header.
func templateMapping(t ImportTemplate, target Target, headers []string) mapping.Mapping {
	byKey := make(map[string]string, len(headers))
	for _, h := range headers {
		key := strings.ToLower(strings.TrimSpace(h))
		if _, ok := byKey[key]; !ok {
			byKey[key] = h
		}
	}

	out := make(mapping.Mapping)
	for field, header := range t.Mapping {
		if _, ok := target.Field(field); !ok {
			continue
		}
		if h, ok := byKey[strings.ToLower(strings.TrimSpace(header))]; ok {
			out[field] = h
		}
	}
	return out
}
