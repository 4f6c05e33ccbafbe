// Package mocks provides test doubles for the renderer's collaborators.
package mocks

//go:generate mockgen -destination=mock_asset_provider.go -package=mocks github.com/phantomssr/phantom/pkg/interfaces AssetProvider

import (
	"context"
	"fmt"
	"io"
	"strings"
	"sync"
	"time"

	"github.com/phantomssr/phantom/pkg/interfaces"
	"github.com/phantomssr/phantom/pkg/types"
)

// RenderFunc produces the markup for one render in a MockEngine
type RenderFunc func(ctx context.Context, uri string, meta *types.EngineMetadata) (string, error)

// DefaultRender returns "<template>|<uri>" so tests can tell which
// template generation served a request
func DefaultRender(ctx context.Context, uri string, meta *types.EngineMetadata) (string, error) {
	return meta.Template + "|" + uri, nil
}

// MockEngine is an in-memory render engine
type MockEngine struct {
	ID int

	mu            sync.Mutex
	state         types.EngineState
	render        RenderFunc
	delay         time.Duration
	startErr      error
	starts        int
	stops         int
	rendered      []string
	inFlight      int
	maxConcurrent int
	stoppedBusy   bool
}

var _ interfaces.RenderEngine = (*MockEngine)(nil)

// NewMockEngine creates a stopped mock engine. A nil render uses DefaultRender.
func NewMockEngine(id int, render RenderFunc) *MockEngine {
	if render == nil {
		render = DefaultRender
	}
	return &MockEngine{
		ID:     id,
		state:  types.EngineStateStopped,
		render: render,
	}
}

// SetDelay makes every render sleep before producing its result
func (m *MockEngine) SetDelay(d time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.delay = d
}

// SetStartError makes Start fail
func (m *MockEngine) SetStartError(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.startErr = err
}

// Start marks the engine idle
func (m *MockEngine) Start(meta *types.EngineMetadata) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.startErr != nil {
		return m.startErr
	}
	if m.state == types.EngineStateStopped {
		m.state = types.EngineStateIdle
		m.starts++
	}
	return nil
}

// Stop marks the engine stopped
func (m *MockEngine) Stop() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.state == types.EngineStateStopped {
		return nil
	}
	if m.inFlight > 0 {
		m.stoppedBusy = true
	}
	m.state = types.EngineStateStopped
	m.stops++
	return nil
}

// IsWorking reports whether the engine is started
func (m *MockEngine) IsWorking() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state != types.EngineStateStopped
}

// State returns the engine state
func (m *MockEngine) State() types.EngineState {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

// Render records the call and delegates to the render function
func (m *MockEngine) Render(ctx context.Context, uri string, meta *types.EngineMetadata) (string, error) {
	m.mu.Lock()
	if m.state == types.EngineStateStopped {
		m.mu.Unlock()
		return "", &types.EngineExecutionError{URI: uri, Err: types.ErrEngineStopped}
	}
	m.inFlight++
	if m.inFlight > m.maxConcurrent {
		m.maxConcurrent = m.inFlight
	}
	m.state = types.EngineStateBusy
	m.rendered = append(m.rendered, uri)
	delay := m.delay
	render := m.render
	m.mu.Unlock()

	defer func() {
		m.mu.Lock()
		m.inFlight--
		if m.state == types.EngineStateBusy && m.inFlight == 0 {
			m.state = types.EngineStateIdle
		}
		m.mu.Unlock()
	}()

	if delay > 0 {
		time.Sleep(delay)
	}
	return render(ctx, uri, meta)
}

// Rendered returns the URIs rendered so far, in order
func (m *MockEngine) Rendered() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]string, len(m.rendered))
	copy(out, m.rendered)
	return out
}

// Starts returns how many times the engine was started
func (m *MockEngine) Starts() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.starts
}

// Stops returns how many times the engine was stopped
func (m *MockEngine) Stops() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.stops
}

// MaxConcurrent returns the highest number of overlapping Render calls seen
func (m *MockEngine) MaxConcurrent() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.maxConcurrent
}

// StoppedWhileBusy reports whether Stop ran during a render
func (m *MockEngine) StoppedWhileBusy() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.stoppedBusy
}

// MockEngineFactory creates MockEngines and remembers them
type MockEngineFactory struct {
	mu          sync.Mutex
	render      RenderFunc
	delay       time.Duration
	createErr   error
	failStartAt int
	engines     []*MockEngine
	metas       []*types.EngineMetadata
}

var _ interfaces.EngineFactory = (*MockEngineFactory)(nil)

// NewMockEngineFactory creates a factory whose engines use render
func NewMockEngineFactory(render RenderFunc) *MockEngineFactory {
	return &MockEngineFactory{render: render}
}

// SetDelay sets the render delay of engines created from now on
func (f *MockEngineFactory) SetDelay(d time.Duration) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.delay = d
}

// SetCreateError makes Create fail
func (f *MockEngineFactory) SetCreateError(err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.createErr = err
}

// FailStartAt makes the n-th engine created from now on (1-based) fail
// to start. Zero disables it.
func (f *MockEngineFactory) FailStartAt(n int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if n > 0 {
		n += len(f.engines)
	}
	f.failStartAt = n
}

// Create returns a new MockEngine
func (f *MockEngineFactory) Create(meta *types.EngineMetadata) (interfaces.RenderEngine, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.createErr != nil {
		return nil, f.createErr
	}

	engine := NewMockEngine(len(f.engines)+1, f.render)
	engine.delay = f.delay
	if f.failStartAt == len(f.engines)+1 {
		engine.startErr = fmt.Errorf("engine %d refused to start", engine.ID)
	}
	f.engines = append(f.engines, engine)
	f.metas = append(f.metas, meta)
	return engine, nil
}

// Engines returns every engine created so far
func (f *MockEngineFactory) Engines() []*MockEngine {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]*MockEngine, len(f.engines))
	copy(out, f.engines)
	return out
}

// Created returns how many engines were created
func (f *MockEngineFactory) Created() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.engines)
}

// LastMetadata returns the metadata passed to the most recent Create
func (f *MockEngineFactory) LastMetadata() *types.EngineMetadata {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.metas) == 0 {
		return nil
	}
	return f.metas[len(f.metas)-1]
}

// RunningEngines returns how many created engines are currently started
func (f *MockEngineFactory) RunningEngines() int {
	running := 0
	for _, engine := range f.Engines() {
		if engine.IsWorking() {
			running++
		}
	}
	return running
}

// MemoryAssetProvider serves assets from memory and reports a change
// whenever SetAssets is called
type MemoryAssetProvider struct {
	mu         sync.Mutex
	index      string
	bundle     string
	bundleName string
	liveReload bool
	modified   time.Time
	indexErr   error
	bundleErr  error
	checkErr   error
	checks     int
}

var _ interfaces.AssetProvider = (*MemoryAssetProvider)(nil)

// NewMemoryAssetProvider creates a provider holding index and bundle
func NewMemoryAssetProvider(index, bundle string, liveReload bool) *MemoryAssetProvider {
	return &MemoryAssetProvider{
		index:      index,
		bundle:     bundle,
		bundleName: "server.bundle.js",
		liveReload: liveReload,
	}
}

// SetAssets replaces both assets and marks them modified now
func (p *MemoryAssetProvider) SetAssets(index, bundle string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.index = index
	p.bundle = bundle
	p.modified = time.Now()
}

// SetIndexError makes IndexContent fail
func (p *MemoryAssetProvider) SetIndexError(err error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.indexErr = err
}

// SetBundleError makes ServerBundle fail
func (p *MemoryAssetProvider) SetBundleError(err error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.bundleErr = err
}

// SetCheckError makes LiveReloadRequired fail
func (p *MemoryAssetProvider) SetCheckError(err error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.checkErr = err
}

// Checks returns how many times LiveReloadRequired was called
func (p *MemoryAssetProvider) Checks() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.checks
}

// IndexContent returns the template
func (p *MemoryAssetProvider) IndexContent() (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.indexErr != nil {
		return "", &types.AssetReadError{Asset: "index template", Path: "memory", Err: p.indexErr}
	}
	return p.index, nil
}

// ServerBundle returns the bundle source
func (p *MemoryAssetProvider) ServerBundle() (io.ReadCloser, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.bundleErr != nil {
		return nil, &types.AssetReadError{Asset: "server bundle", Path: p.bundleName, Err: p.bundleErr}
	}
	return io.NopCloser(strings.NewReader(p.bundle)), nil
}

// ServerBundleName returns the bundle file name
func (p *MemoryAssetProvider) ServerBundleName() string {
	return p.bundleName
}

// LiveReloadSupported reports the value given at construction
func (p *MemoryAssetProvider) LiveReloadSupported() bool {
	return p.liveReload
}

// LiveReloadRequired reports whether SetAssets ran after since
func (p *MemoryAssetProvider) LiveReloadRequired(since time.Time) (bool, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.checks++
	if p.checkErr != nil {
		return false, p.checkErr
	}
	return p.modified.After(since), nil
}

// MockNotifier records reload notifications
type MockNotifier struct {
	mu                sync.Mutex
	Reloads           []int
	ReloadFailures    []error
	SupervisorStopped []error
}

var _ interfaces.ReloadNotifier = (*MockNotifier)(nil)

// NewMockNotifier creates an empty notifier
func NewMockNotifier() *MockNotifier {
	return &MockNotifier{}
}

// NotifyReload records a successful reload
func (n *MockNotifier) NotifyReload(generation int, duration time.Duration) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.Reloads = append(n.Reloads, generation)
}

// NotifyReloadFailure records a failed reload
func (n *MockNotifier) NotifyReloadFailure(err error) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.ReloadFailures = append(n.ReloadFailures, err)
}

// NotifySupervisorStopped records a supervisor failure
func (n *MockNotifier) NotifySupervisorStopped(err error) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.SupervisorStopped = append(n.SupervisorStopped, err)
}

// Counts returns the number of reloads, reload failures and supervisor stops
func (n *MockNotifier) Counts() (reloads, failures, stopped int) {
	n.mu.Lock()
	defer n.mu.Unlock()
	return len(n.Reloads), len(n.ReloadFailures), len(n.SupervisorStopped)
}

// MockMetrics records metric updates
type MockMetrics struct {
	mu             sync.Mutex
	renders        int
	failures       int
	queueDepth     int
	enginesRunning int
	reloads        map[types.ReloadResult]int
}

var _ interfaces.MetricsRecorder = (*MockMetrics)(nil)

// NewMockMetrics creates an empty recorder
func NewMockMetrics() *MockMetrics {
	return &MockMetrics{reloads: make(map[types.ReloadResult]int)}
}

// ObserveRender counts a render
func (m *MockMetrics) ObserveRender(uri string, duration time.Duration, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.renders++
	if err != nil {
		m.failures++
	}
}

// SetQueueDepth records the queue depth
func (m *MockMetrics) SetQueueDepth(depth int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.queueDepth = depth
}

// SetEnginesRunning records the running engine count
func (m *MockMetrics) SetEnginesRunning(n int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.enginesRunning = n
}

// ObserveReload counts a reload by result
func (m *MockMetrics) ObserveReload(result types.ReloadResult, duration time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.reloads[result]++
}

// Renders returns the number of renders and failures observed
func (m *MockMetrics) Renders() (renders, failures int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.renders, m.failures
}

// EnginesRunning returns the last engine count set
func (m *MockMetrics) EnginesRunning() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.enginesRunning
}

// Reloads returns how many reloads ended with result
func (m *MockMetrics) Reloads(result types.ReloadResult) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.reloads[result]
}

// MockStatusRecorder records status updates in memory
type MockStatusRecorder struct {
	mu        sync.Mutex
	states    []types.RendererState
	reloads   []types.ReloadEvent
	renders   int
	failures  int
	heartbeat bool
	cleanedUp bool
	recordErr error
}

var _ interfaces.StatusRecorder = (*MockStatusRecorder)(nil)

// NewMockStatusRecorder creates an empty recorder
func NewMockStatusRecorder() *MockStatusRecorder {
	return &MockStatusRecorder{}
}

// SetRecordError makes RecordState and RecordReload fail
func (s *MockStatusRecorder) SetRecordError(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.recordErr = err
}

// RecordState appends state
func (s *MockStatusRecorder) RecordState(state types.RendererState, engines int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.states = append(s.states, state)
	return s.recordErr
}

// RecordRender counts a render
func (s *MockStatusRecorder) RecordRender(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.renders++
	if err != nil {
		s.failures++
	}
}

// RecordReload appends event
func (s *MockStatusRecorder) RecordReload(event types.ReloadEvent) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.reloads = append(s.reloads, event)
	return s.recordErr
}

// StartHeartbeat marks the heartbeat running
func (s *MockStatusRecorder) StartHeartbeat(ctx context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.heartbeat = true
}

// StopHeartbeat marks the heartbeat stopped
func (s *MockStatusRecorder) StopHeartbeat() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.heartbeat = false
}

// Cleanup marks the recorder cleaned up
func (s *MockStatusRecorder) Cleanup() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cleanedUp = true
	return nil
}

// States returns every recorded state in order
func (s *MockStatusRecorder) States() []types.RendererState {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]types.RendererState, len(s.states))
	copy(out, s.states)
	return out
}

// ReloadEvents returns every recorded reload
func (s *MockStatusRecorder) ReloadEvents() []types.ReloadEvent {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]types.ReloadEvent, len(s.reloads))
	copy(out, s.reloads)
	return out
}

// HeartbeatRunning reports whether StartHeartbeat was called without a
// matching StopHeartbeat
func (s *MockStatusRecorder) HeartbeatRunning() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.heartbeat
}

// CleanedUp reports whether Cleanup ran
func (s *MockStatusRecorder) CleanedUp() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cleanedUp
}
