package learning

import (
	"context"
	"crypto/md5"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"sort"
	"sync"
	"time"

	"sjsage522/scoutmcp/helpers"
	"sjsage522/scoutmcp/logger"
	scouterrors "sjsage522/scoutmcp/pkg/errors"
	"sjsage522/scoutmcp/services/metrics"
	"sjsage522/scoutmcp/services/publisher"
)

// UnknownErrorID is returned when an error could not be captured
const UnknownErrorID = "unknown_error"

// EventKey is the stream field carrying a base64 ErrorEvent
const EventKey = "b64_error_event"

// Manager records failures and answers prevention and similarity queries
type Manager struct {
	mu        sync.RWMutex
	patterns  map[string]*ErrorPattern
	selectors map[string]*SelectorRecord

	// saveMu is taken before mu is released so writes reach the store in
	// the order they were applied in memory
	saveMu sync.Mutex

	store     Store
	publisher publisher.Publisher
	metrics   *metrics.Metrics
	now       func() time.Time
	log       *logger.Logger
}

// Option configures a Manager
type Option func(*Manager)

// WithPublisher publishes an ErrorEvent on every capture
func WithPublisher(p publisher.Publisher) Option {
	return func(m *Manager) { m.publisher = p }
}

// WithMetrics counts captured errors
func WithMetrics(mt *metrics.Metrics) Option {
	return func(m *Manager) { m.metrics = mt }
}

// WithClock replaces time.Now
func WithClock(now func() time.Time) Option {
	return func(m *Manager) { m.now = now }
}

// NewManager loads the store content and returns a ready Manager
func NewManager(ctx context.Context, store Store, opts ...Option) (*Manager, error) {
	m := &Manager{
		store:     store,
		publisher: publisher.NopPublisher{},
		now:       time.Now,
		log:       logger.ForLearning(),
	}
	for _, opt := range opts {
		opt(m)
	}

	data, err := store.Load(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load error patterns: %w", err)
	}
	m.patterns = data.Patterns
	m.selectors = data.Selectors

	m.log.Info().
		Int("patterns", len(m.patterns)).
		Int("selectors", len(m.selectors)).
		Msg("Loaded error patterns")
	return m, nil
}

// Signature returns the stable id of an error occurrence: the first 12 hex
// digits of md5("<type>:<message[:100]>:<tool>:<page_type>").
func Signature(err error, toolName string, contextInfo map[string]interface{}) string {
	data := fmt.Sprintf("%s:%s:%s:%s",
		scouterrors.TypeName(err),
		helpers.Truncate(err.Error(), 100),
		toolName,
		pageTypeOf(contextInfo, "unknown"),
	)
	sum := md5.Sum([]byte(data))
	return hex.EncodeToString(sum[:])[:12]
}

func pageTypeOf(contextInfo map[string]interface{}, fallback string) string {
	if v, ok := contextInfo["page_type"].(string); ok && v != "" {
		return v
	}
	return fallback
}

// CaptureError records err for toolName and returns the pattern id. It
// never fails; UnknownErrorID is returned when err is nil.
func (m *Manager) CaptureError(ctx context.Context, err error, toolName string, contextInfo map[string]interface{}, userQuery string) string {
	if err == nil {
		return UnknownErrorID
	}
	if contextInfo == nil {
		contextInfo = map[string]interface{}{}
	}

	id := Signature(err, toolName, contextInfo)
	now := m.now()

	m.mu.Lock()
	pattern, known := m.patterns[id]
	if known {
		pattern.Frequency++
		pattern.LastSeen = now
	} else {
		category, severity := scouterrors.Classify(err)
		solution, tips := solutionAndTips(category, err.Error())
		pattern = &ErrorPattern{
			ErrorID:        id,
			Category:       category,
			Severity:       severity,
			ErrorMessage:   err.Error(),
			OriginalError:  scouterrors.TypeName(err),
			ContextInfo:    contextInfo,
			Solution:       solution,
			PreventionTips: tips,
			Frequency:      1,
			FirstSeen:      now,
			LastSeen:       now,
			ToolName:       toolName,
			PageType:       pageTypeOf(contextInfo, ""),
			QueryContext:   userQuery,
		}
		m.patterns[id] = pattern
	}
	saved := pattern.clone()
	m.saveMu.Lock()
	m.mu.Unlock()

	if known {
		m.log.Info().Str("error_id", id).Int("frequency", saved.Frequency).Msg("Known error updated")
	} else {
		m.log.Info().Str("error_id", id).Str("category", string(saved.Category)).Msg("New error captured")
	}

	saveErr := m.store.SavePattern(ctx, saved)
	m.saveMu.Unlock()
	if saveErr != nil {
		m.log.Error().Err(saveErr).Str("error_id", id).Msg("Failed to persist error pattern")
	}
	m.metrics.IncErrorCaptured(string(saved.Category))
	m.publish(saved, now)

	return id
}

func (m *Manager) publish(p *ErrorPattern, at time.Time) {
	event := ErrorEvent{
		Signature:  p.ErrorID,
		ToolName:   p.ToolName,
		Message:    p.ErrorMessage,
		Category:   p.Category,
		Severity:   p.Severity,
		Frequency:  p.Frequency,
		Timestamp:  at,
		Resolution: p.Solution,
	}
	body, err := json.Marshal(event)
	if err != nil {
		m.log.Error().Err(err).Msg("Failed to encode error event")
		return
	}
	if err := m.publisher.Publish(EventKey, body); err != nil {
		m.log.Warn().Err(err).Str("error_id", p.ErrorID).Msg("Failed to publish error event")
	}
}

// RecordSelector counts one success or failure of selector for field
func (m *Manager) RecordSelector(ctx context.Context, field, selector string, ok bool) {
	if selector == "" {
		return
	}
	key := selectorKey(field, selector)

	m.mu.Lock()
	record, exists := m.selectors[key]
	if !exists {
		record = &SelectorRecord{Selector: selector, Field: field}
		m.selectors[key] = record
	}
	if ok {
		record.Successes++
	} else {
		record.Failures++
	}
	record.LastUsed = m.now()
	saved := *record
	m.saveMu.Lock()
	m.mu.Unlock()

	err := m.store.SaveSelector(ctx, &saved)
	m.saveMu.Unlock()
	if err != nil {
		m.log.Error().Err(err).Str("selector", selector).Msg("Failed to persist selector record")
	}
}

// Pattern returns a copy of one pattern
func (m *Manager) Pattern(id string) (ErrorPattern, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	p, ok := m.patterns[id]
	if !ok {
		return ErrorPattern{}, false
	}
	return *p.clone(), true
}

// Selector returns a copy of one selector record
func (m *Manager) Selector(field, selector string) (SelectorRecord, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	r, ok := m.selectors[selectorKey(field, selector)]
	if !ok {
		return SelectorRecord{}, false
	}
	return *r, true
}

// ClearOld drops patterns seen exactly once and not since days ago.
// It returns how many were removed.
func (m *Manager) ClearOld(ctx context.Context, days int) int {
	cutoff := m.now().AddDate(0, 0, -days)

	m.mu.Lock()
	var old []string
	for id, p := range m.patterns {
		if p.Frequency == 1 && p.LastSeen.Before(cutoff) {
			old = append(old, id)
		}
	}
	for _, id := range old {
		delete(m.patterns, id)
	}
	if len(old) == 0 {
		m.mu.Unlock()
		return 0
	}
	m.saveMu.Lock()
	m.mu.Unlock()

	sort.Strings(old)
	err := m.store.DeletePatterns(ctx, old)
	m.saveMu.Unlock()
	if err != nil {
		m.log.Error().Err(err).Int("count", len(old)).Msg("Failed to delete old patterns")
	}
	m.log.Info().Int("count", len(old)).Msg("Cleared old errors")
	return len(old)
}

// snapshotPatterns returns copies of every pattern ordered by id
func (m *Manager) snapshotPatterns() []*ErrorPattern {
	m.mu.RLock()
	defer m.mu.RUnlock()
	patterns := make([]*ErrorPattern, 0, len(m.patterns))
	for _, p := range m.patterns {
		patterns = append(patterns, p.clone())
	}
	sort.Slice(patterns, func(i, j int) bool {
		return patterns[i].ErrorID < patterns[j].ErrorID
	})
	return patterns
}

func (m *Manager) snapshotSelectors() []SelectorRecord {
	m.mu.RLock()
	defer m.mu.RUnlock()
	records := make([]SelectorRecord, 0, len(m.selectors))
	for _, r := range m.selectors {
		records = append(records, *r)
	}
	sort.Slice(records, func(i, j int) bool {
		if records[i].Field != records[j].Field {
			return records[i].Field < records[j].Field
		}
		return records[i].Selector < records[j].Selector
	})
	return records
}

// Close closes the underlying store
func (m *Manager) Close() error {
	return m.store.Close()
}
