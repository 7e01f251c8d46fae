package core

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/JonMunkholm/csvimport/internal/charset"
	"github.com/JonMunkholm/csvimport/internal/csvparse"
	"github.com/JonMunkholm/csvimport/internal/logging"
	"github.com/JonMunkholm/csvimport/internal/mapping"
)

const (
	// DefaultSessionTTL is how long an untouched session is kept.
	DefaultSessionTTL = 30 * time.Minute

	// DefaultPreviewRows is how many rows a Snapshot carries.
	DefaultPreviewRows = 10

	// DefaultAnalyzeParallelism bounds AnalyzeFiles fan-out.
	DefaultAnalyzeParallelism = 4
)

// ServiceConfig tunes a Service. Zero values fall back to defaults.
type ServiceConfig struct {
	MaxFileSize        int64
	MaxConcurrent      int
	MaxWaitTime        time.Duration
	SessionTTL         time.Duration
	PreviewRows        int
	Match              mapping.Options
	AnalyzeParallelism int
}

func (c ServiceConfig) withDefaults() ServiceConfig {
	if c.SessionTTL <= 0 {
		c.SessionTTL = DefaultSessionTTL
	}
	if c.PreviewRows <= 0 {
		c.PreviewRows = DefaultPreviewRows
	}
	if c.AnalyzeParallelism <= 0 {
		c.AnalyzeParallelism = DefaultAnalyzeParallelism
	}
	return c
}

// Service owns import sessions and runs the decode, parse and match pipeline
// for them. It is safe for concurrent use.
type Service struct {
	cfg       ServiceConfig
	limiter   *ImportLimiter
	templates TemplateStore
	now       func() time.Time

	mu       sync.RWMutex
	sessions map[string]*session
}

// session is the state of one opened file. Fields other than id, target
// and touched are guarded by mu.
type session struct {
	id      string
	target  Target
	touched atomic.Int64

	mu              sync.Mutex
	fileName        string
	data            []byte
	report          charset.Report
	encoding        charset.Encoding
	encodingChosen  bool
	text            string
	opts            csvparse.Options
	detectDelimiter bool
	result          csvparse.Result
	mapping         mapping.Mapping
	template        *AppliedTemplate
	createdAt       time.Time
}

// NewService creates a Service. A nil store keeps templates in memory.
func NewService(cfg ServiceConfig, templates TemplateStore) *Service {
	if templates == nil {
		templates = NewMemoryTemplateStore()
	}
	cfg = cfg.withDefaults()

	return &Service{
		cfg:       cfg,
		limiter:   NewImportLimiter(cfg.MaxConcurrent, cfg.MaxWaitTime),
		templates: templates,
		now:       time.Now,
		sessions:  make(map[string]*session),
	}
}

// Limiter exposes the concurrency limiter for status reporting and drain.
func (s *Service) Limiter() *ImportLimiter {
	return s.limiter
}

// Targets returns all registered targets.
func (s *Service) Targets() []Target {
	return All()
}

// Open starts a session for a new file: it sniffs the encoding, decodes,
// detects the delimiter, parses with default options and auto-matches the
// target's fields. The best matching saved template, if any, seeds the
// mapping. The service keeps req.Data; callers must not modify it.
func (s *Service) Open(ctx context.Context, req OpenRequest) (*Snapshot, error) {
	target, err := s.validateOpen(req)
	if err != nil {
		return nil, err
	}

	if err := s.limiter.Acquire(ctx); err != nil {
		return nil, err
	}
	defer s.limiter.Release()

	now := s.now()
	sess := &session{
		id:              uuid.NewString(),
		target:          target,
		fileName:        req.FileName,
		data:            req.Data,
		report:          charset.Sniff(req.Data),
		opts:            csvparse.DefaultOptions(),
		detectDelimiter: true,
		mapping:         mapping.Reset(target.Fields),
		createdAt:       now,
	}
	sess.encoding = sess.report.Encoding
	sess.touched.Store(now.UnixNano())

	if err := sess.decode(); err != nil {
		return nil, fmt.Errorf("open %s: %w", req.FileName, err)
	}
	sess.parse(s.cfg.Match)
	s.applyBestTemplate(ctx, sess)

	s.mu.Lock()
	s.sessions[sess.id] = sess
	s.mu.Unlock()

	logging.WithFields(ctx, "session_id", sess.id, "target", target.Key).Info("session opened",
		"file", req.FileName,
		"bytes", len(req.Data),
		"encoding", sess.encoding,
		"delimiter", string(sess.opts.Delimiter),
		"rows", len(sess.result.Data),
		"client_ip", ClientIPFromContext(ctx),
		"user_agent", UserAgentFromContext(ctx),
	)

	sess.mu.Lock()
	defer sess.mu.Unlock()
	return s.snapshotOf(sess), nil
}

// SetEncoding re-decodes the session's bytes with the encoding named by
// label and re-parses. "" or "auto" returns to the detected encoding.
// An unsupported label leaves the session unchanged.
func (s *Service) SetEncoding(ctx context.Context, id, label string) (*Snapshot, error) {
	return s.update(ctx, id, func(sess *session) error {
		enc, chosen := sess.report.Encoding, false
		if label != "" && label != "auto" {
			parsed, err := charset.Parse(label)
			if err != nil {
				return err
			}
			enc, chosen = parsed, true
		}

		prev := sess.encoding
		sess.encoding = enc
		if err := sess.decode(); err != nil {
			sess.encoding = prev
			return err
		}
		sess.encodingChosen = chosen
		sess.parse(s.cfg.Match)

		logging.WithFields(ctx, "session_id", sess.id).Debug("encoding changed", "from", prev, "to", enc)
		return nil
	})
}

// SetOptions applies patch to the session's parse options and re-parses.
// Mapping entries that still point at an existing header are kept.
func (s *Service) SetOptions(ctx context.Context, id string, patch OptionsPatch) (*Snapshot, error) {
	return s.update(ctx, id, func(sess *session) error {
		opts, detect, err := applyPatch(sess.opts, sess.detectDelimiter, patch)
		if err != nil {
			return err
		}
		sess.opts, sess.detectDelimiter = opts, detect
		sess.parse(s.cfg.Match)

		logging.WithFields(ctx, "session_id", sess.id).Debug("options changed",
			"has_headers", sess.opts.HasHeaders,
			"delimiter", string(sess.opts.Delimiter),
			"detected", detect,
		)
		return nil
	})
}

// MapField maps field to header. An empty header unmaps the field.
func (s *Service) MapField(ctx context.Context, id, field, header string) (*Snapshot, error) {
	return s.update(ctx, id, func(sess *session) error {
		if _, ok := sess.target.Field(field); !ok {
			return fmt.Errorf("%w: %s", ErrUnknownField, field)
		}
		if header != "" && !containsString(sess.result.Headers, header) {
			return fmt.Errorf("%w: %s", ErrUnknownColumn, header)
		}
		sess.mapping = mapping.MapField(sess.mapping, field, header)
		return nil
	})
}

// AutoMatch fills unmapped fields from the current headers.
func (s *Service) AutoMatch(ctx context.Context, id string) (*Snapshot, error) {
	return s.update(ctx, id, func(sess *session) error {
		sess.mapping = mapping.AutoMatch(sess.result.Headers, sess.target.Fields, sess.mapping, s.cfg.Match)
		return nil
	})
}

// ClearMapping unmaps every field.
func (s *Service) ClearMapping(ctx context.Context, id string) (*Snapshot, error) {
	return s.update(ctx, id, func(sess *session) error {
		sess.mapping = mapping.Reset(sess.target.Fields)
		sess.template = nil
		return nil
	})
}

// Snapshot returns the current state of a session.
func (s *Service) Snapshot(ctx context.Context, id string) (*Snapshot, error) {
	return s.update(ctx, id, func(*session) error { return nil })
}

// Records returns every parsed row projected onto the target's fields.
// It fails with ErrUnmappedRequired while a required field has no column.
func (s *Service) Records(ctx context.Context, id string) ([]mapping.Record, error) {
	sess, err := s.session(id)
	if err != nil {
		return nil, err
	}

	sess.mu.Lock()
	defer sess.mu.Unlock()

	var missing []string
	for _, issue := range mapping.Validate(sess.result.Headers, sess.target.Fields, sess.mapping) {
		if issue.Kind == mapping.IssueRequiredUnmapped {
			missing = append(missing, issue.Field)
		}
	}
	if len(missing) > 0 {
		return nil, fmt.Errorf("%w: %v", ErrUnmappedRequired, missing)
	}

	records := mapping.Apply(sess.result.Data, sess.target.Fields, sess.mapping)
	logging.WithFields(ctx, "session_id", id).Info("records produced", "rows", len(records))
	return records, nil
}

// Close discards a session.
func (s *Service) Close(ctx context.Context, id string) error {
	s.mu.Lock()
	_, ok := s.sessions[id]
	delete(s.sessions, id)
	s.mu.Unlock()

	if !ok {
		return fmt.Errorf("%w: %s", ErrSessionNotFound, id)
	}

	logging.WithFields(ctx, "session_id", id).Info("session closed")
	return nil
}

// SessionCount returns the number of live sessions.
func (s *Service) SessionCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.sessions)
}

// update runs fn under the session lock and returns the resulting snapshot.
func (s *Service) update(ctx context.Context, id string, fn func(*session) error) (*Snapshot, error) {
	sess, err := s.session(id)
	if err != nil {
		return nil, err
	}

	sess.mu.Lock()
	defer sess.mu.Unlock()

	if err := fn(sess); err != nil {
		logging.WithFields(ctx, "session_id", id).Debug("session update rejected", "error", err)
		return nil, err
	}
	return s.snapshotOf(sess), nil
}

// session looks up a live session and marks it as used. Expired sessions are
// removed and reported as not found.
func (s *Service) session(id string) (*session, error) {
	s.mu.RLock()
	sess, ok := s.sessions[id]
	s.mu.RUnlock()

	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrSessionNotFound, id)
	}

	now := s.now()
	if s.expired(sess, now) {
		s.mu.Lock()
		delete(s.sessions, id)
		s.mu.Unlock()
		return nil, fmt.Errorf("%w: %s", ErrSessionNotFound, id)
	}

	sess.touched.Store(now.UnixNano())
	return sess, nil
}

func (s *Service) expired(sess *session, now time.Time) bool {
	return now.Sub(time.Unix(0, sess.touched.Load())) > s.cfg.SessionTTL
}

// applyBestTemplate seeds the mapping from the best matching saved
// template. Template lookup failures are logged and otherwise ignored.
func (s *Service) applyBestTemplate(ctx context.Context, sess *session) {
	matches, err := s.MatchTemplates(ctx, sess.target.Key, sess.result.Headers)
	if err != nil {
		logging.WithFields(ctx, "session_id", sess.id).Warn("template lookup failed", "error", err)
		return
	}
	if len(matches) == 0 {
		return
	}

	best := matches[0]
	seed := mapping.Reset(sess.target.Fields)
	for field, header := range templateMapping(best.Template, sess.target, sess.result.Headers) {
		seed[field] = header
	}
	sess.mapping = mapping.AutoMatch(sess.result.Headers, sess.target.Fields, seed, s.cfg.Match)
	sess.template = &AppliedTemplate{
		ID:    best.Template.ID,
		Name:  best.Template.Name,
		Score: best.Score,
	}
}

// snapshotOf builds a Snapshot. The caller holds sess.mu.
func (s *Service) snapshotOf(sess *session) *Snapshot {
	issues := mapping.Validate(sess.result.Headers, sess.target.Fields, sess.mapping)
	if issues == nil {
		issues = []mapping.Issue{}
	}

	touched := time.Unix(0, sess.touched.Load())

	return &Snapshot{
		ID:        sess.id,
		TargetKey: sess.target.Key,
		FileName:  sess.fileName,
		Size:      len(sess.data),
		Encoding: EncodingInfo{
			Current:  sess.encoding,
			Detected: sess.report.Encoding,
			Hint:     sess.report.Hint,
			BOM:      sess.report.BOM,
			Chosen:   sess.encodingChosen,
		},
		Options:   settingsFrom(sess.opts, sess.detectDelimiter),
		Headers:   sess.result.Headers,
		Preview:   sess.result.Preview(s.cfg.PreviewRows),
		TotalRows: len(sess.result.Data),
		Errors:    sess.result.Errors,
		Mapping:   sess.mapping,
		Issues:    issues,
		Ready:     !mapping.HasRequiredGaps(issues),
		Template:  sess.template,
		CreatedAt: sess.createdAt,
		ExpiresAt: touched.Add(s.cfg.SessionTTL),
	}
}

// decode converts the raw bytes with the current encoding.
func (sess *session) decode() error {
	text, err := charset.Decode(sess.data, sess.encoding)
	if err != nil {
		return err
	}
	sess.text = text
	return nil
}

// parse re-runs delimiter detection (unless the user chose one), the parser
// and the auto-matcher. Mapping entries whose header disappeared are
// cleared first; the rest are kept.
func (sess *session) parse(opts mapping.Options) {
	if sess.detectDelimiter {
		sess.opts.Delimiter = csvparse.DetectDelimiter(sess.text)
	}
	sess.result = csvparse.Parse(sess.text, sess.opts)
	kept := mapping.Prune(sess.mapping, sess.result.Headers)
	sess.mapping = mapping.AutoMatch(sess.result.Headers, sess.target.Fields, kept, opts)
}

func containsString(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}
