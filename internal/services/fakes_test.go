package services_test

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	"image/color"
	"image/png"
	"sort"
	"strings"
	"sync"
	"time"

	"adangle-backend/internal/adlibrary"
	"adangle-backend/internal/apperr"
	"adangle-backend/internal/models"
	"github.com/google/uuid"
)

// memoryRecords mimics the Postgres schema, including the
// (session_id, ad_id) unique constraint.
type memoryRecords struct {
	mu            sync.Mutex
	sessions      map[uuid.UUID]models.Session
	userAssets    []models.UserAsset
	competitorAds []models.RankedReference
	generated     []models.RenderedAsset
	runs          []models.GenerationRun
	failAssetAt   map[int]bool
	failUserAsset int
	clock         time.Time
}

func newMemoryRecords() *memoryRecords {
	return &memoryRecords{
		sessions:    make(map[uuid.UUID]models.Session),
		failAssetAt: make(map[int]bool),
		clock:       time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC),
	}
}

func (m *memoryRecords) tick() time.Time {
	m.clock = m.clock.Add(time.Millisecond)
	return m.clock
}

func (m *memoryRecords) CreateSession(_ context.Context, brandName string) (*models.Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s := models.Session{ID: uuid.New(), BrandName: brandName, CreatedAt: m.tick()}
	m.sessions[s.ID] = s
	return &s, nil
}

func (m *memoryRecords) GetSession(_ context.Context, id uuid.UUID) (*models.Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.sessions[id]
	if !ok {
		return nil, apperr.NotFound("session %s not found", id)
	}
	return &s, nil
}

func (m *memoryRecords) CreateUserAsset(_ context.Context, a models.UserAsset) (*models.UserAsset, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failUserAsset > 0 && len(m.userAssets)+1 == m.failUserAsset {
		return nil, errors.New("insert failed")
	}
	if a.ID == uuid.Nil {
		a.ID = uuid.New()
	}
	a.CreatedAt = m.tick()
	m.userAssets = append(m.userAssets, a)
	return &a, nil
}

func (m *memoryRecords) ListUserAssets(_ context.Context, sessionID uuid.UUID) ([]models.UserAsset, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []models.UserAsset
	for _, a := range m.userAssets {
		if a.SessionID == sessionID {
			out = append(out, a)
		}
	}
	return out, nil
}

func (m *memoryRecords) CreateCompetitorAd(_ context.Context, ref models.RankedReference) (*models.RankedReference, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, existing := range m.competitorAds {
		if existing.SessionID == ref.SessionID && existing.AdID == ref.AdID {
			return &existing, false, nil
		}
	}
	if ref.ID == uuid.Nil {
		ref.ID = uuid.New()
	}
	ref.CreatedAt = m.tick()
	ref.Persisted = true
	m.competitorAds = append(m.competitorAds, ref)
	return &ref, true, nil
}

func (m *memoryRecords) ListCompetitorAds(_ context.Context, sessionID uuid.UUID) ([]models.RankedReference, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []models.RankedReference
	for _, r := range m.competitorAds {
		if r.SessionID == sessionID {
			out = append(out, r)
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].WinnerScore != out[j].WinnerScore {
			return out[i].WinnerScore > out[j].WinnerScore
		}
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	return out, nil
}

func (m *memoryRecords) CreateGeneratedAsset(_ context.Context, a models.RenderedAsset) (*models.RenderedAsset, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failAssetAt[a.ConceptIndex] {
		return nil, errors.New("insert failed")
	}
	if a.ID == uuid.Nil {
		a.ID = uuid.New()
	}
	a.CreatedAt = m.tick()
	a.Background, a.Composite = nil, nil
	m.generated = append(m.generated, a)
	return &a, nil
}

func (m *memoryRecords) GetGeneratedAsset(_ context.Context, id uuid.UUID) (*models.RenderedAsset, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, a := range m.generated {
		if a.ID == id {
			return &a, nil
		}
	}
	return nil, apperr.NotFound("generated asset %s not found", id)
}

func (m *memoryRecords) CreateGenerationRun(_ context.Context, run models.GenerationRun) (*models.GenerationRun, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	run.CreatedAt = m.tick()
	m.runs = append(m.runs, run)
	return &run, nil
}

func (m *memoryRecords) ListGenerationRuns(_ context.Context, sessionID uuid.UUID) ([]models.GenerationRun, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []models.GenerationRun
	for i := len(m.runs) - 1; i >= 0; i-- {
		if m.runs[i].SessionID == sessionID {
			out = append(out, m.runs[i])
		}
	}
	return out, nil
}

func (m *memoryRecords) competitorCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.competitorAds)
}

func (m *memoryRecords) generatedCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.generated)
}

type memoryObjects struct {
	mu      sync.Mutex
	objects map[string][]byte
	puts    int
}

func newMemoryObjects() *memoryObjects {
	return &memoryObjects{objects: make(map[string][]byte)}
}

func (m *memoryObjects) Put(_ context.Context, bucket, objectPath string, data []byte, _ string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.objects[bucket+"/"+objectPath] = data
	m.puts++
	return objectPath, nil
}

func (m *memoryObjects) Get(_ context.Context, bucket, objectPath string) ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	data, ok := m.objects[bucket+"/"+objectPath]
	if !ok {
		return nil, fmt.Errorf("object %s/%s not found", bucket, objectPath)
	}
	return data, nil
}

func (m *memoryObjects) Sign(_ context.Context, bucket, objectPath string, ttl time.Duration, download bool) (string, error) {
	url := fmt.Sprintf("https://storage.test/%s/%s?ttl=%d", bucket, objectPath, int(ttl.Seconds()))
	if download {
		url += "&download=" + objectPath
	}
	return url, nil
}

func (m *memoryObjects) Remove(_ context.Context, bucket string, objectPaths ...string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, p := range objectPaths {
		delete(m.objects, bucket+"/"+p)
	}
	return nil
}

func (m *memoryObjects) count(prefix string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for k := range m.objects {
		if strings.HasPrefix(k, prefix) {
			n++
		}
	}
	return n
}

type fakeSearch struct {
	mu         sync.Mutex
	candidates []models.ReferenceCandidate
	err        error
	calls      int
	badImages  map[string]bool
}

func (f *fakeSearch) Search(_ context.Context, _ adlibrary.SearchParams) ([]models.ReferenceCandidate, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	return f.candidates, f.err
}

func (f *fakeSearch) DownloadImage(_ context.Context, url string) ([]byte, string, error) {
	if f.badImages[url] {
		return nil, "", errors.New("download failed")
	}
	return solidPNG(8, color.RGBA{R: 200, G: 100, B: 50, A: 255}), "image/png", nil
}

// scriptedLLM answers concept prompts with a JSON batch and every other
// prompt with a short style directive.
type scriptedLLM struct {
	mu          sync.Mutex
	concepts    int
	styleErr    error
	conceptErr  error
	conceptRaw  string
	styleCalls  int
	conceptCall int
}

func (s *scriptedLLM) Complete(_ context.Context, prompt string, _ []models.ImageInput) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if strings.Contains(prompt, "JSON array") {
		s.conceptCall++
		if s.conceptErr != nil {
			return "", s.conceptErr
		}
		if s.conceptRaw != "" {
			return s.conceptRaw, nil
		}
		items := make([]string, s.concepts)
		for i := range items {
			items[i] = fmt.Sprintf(`{"concept_number": %d, "visual_prompt": "SCENE: shot %d at dawn", "hook": "Coffee number %d before nine"}`, i+1, i+1, i+1)
		}
		return "[" + strings.Join(items, ",") + "]", nil
	}
	s.styleCalls++
	if s.styleErr != nil {
		return "", s.styleErr
	}
	return "Warm window light. Muted earth palette.", nil
}

// scriptedImages fails for prompts that mention one of the listed shots and
// panics on panicShot.
type scriptedImages struct {
	mu          sync.Mutex
	fail        map[int]error
	panicShot   int
	calls       int
	rateLimited bool
}

func (s *scriptedImages) Synthesize(_ context.Context, prompt string, _ *models.ImageInput) ([]byte, error) {
	s.mu.Lock()
	s.calls++
	s.mu.Unlock()
	if s.rateLimited {
		return nil, &apperr.ProviderError{Provider: "gemini-image", StatusCode: 429, RateLimited: true, Err: errors.New("RESOURCE_EXHAUSTED")}
	}
	if s.panicShot > 0 && strings.Contains(prompt, fmt.Sprintf("shot %d ", s.panicShot)) {
		var broken map[string]int
		broken["shot"] = s.panicShot
	}
	for shot, err := range s.fail {
		if strings.Contains(prompt, fmt.Sprintf("shot %d ", shot)) {
			return nil, err
		}
	}
	return solidPNG(64, color.RGBA{R: 120, G: 130, B: 140, A: 255}), nil
}

func (s *scriptedImages) callCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls
}

type recordedEvent struct {
	event   string
	payload map[string]interface{}
}

type recordingEvents struct {
	mu     sync.Mutex
	events []recordedEvent
}

func (r *recordingEvents) PublishRunEvent(_ context.Context, _ uuid.UUID, event string, payload map[string]interface{}) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, recordedEvent{event: event, payload: payload})
	return nil
}

func (r *recordingEvents) stages() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []string
	for _, e := range r.events {
		if e.event == "stage_changed" {
			out = append(out, e.payload["stage"].(string))
		}
	}
	return out
}

func solidPNG(size int, c color.RGBA) []byte {
	img := image.NewRGBA(image.Rect(0, 0, size, size))
	for y := 0; y < size; y++ {
		for x := 0; x < size; x++ {
			img.SetRGBA(x, y, c)
		}
	}
	var buf bytes.Buffer
	_ = png.Encode(&buf, img)
	return buf.Bytes()
}
