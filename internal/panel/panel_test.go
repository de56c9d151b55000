package panel

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/anikdutta/voterpulse/internal/transcript"
)

var errBoom = errors.New("boom")

// ── Doubles ───────────────────────────────────────────────────────────────────

type startCall struct {
	channelID string
	political bool
}

type fakeRelay struct {
	mu          sync.Mutex
	connectErr  error
	startErr    error
	connects    int
	starts      []startCall
	stops       int
	disconnects int

	lineFns   []func(transcript.Line)
	statusFns []func(transcript.Status)
	errFns    []func(error)
}

var _ Relay = (*fakeRelay)(nil)

func (f *fakeRelay) Connect(context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.connects++
	return f.connectErr
}

func (f *fakeRelay) StartTranscription(_ context.Context, channelID string, political bool) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.startErr != nil {
		return f.startErr
	}
	f.starts = append(f.starts, startCall{channelID: channelID, political: political})
	return nil
}

func (f *fakeRelay) StopTranscription(context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.stops++
	return nil
}

func (f *fakeRelay) Disconnect() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.disconnects++
}

func (f *fakeRelay) OnTranscript(fn func(transcript.Line)) func() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.lineFns = append(f.lineFns, fn)
	return func() {}
}

func (f *fakeRelay) OnStatus(fn func(transcript.Status)) func() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.statusFns = append(f.statusFns, fn)
	return func() {}
}

func (f *fakeRelay) OnError(fn func(error)) func() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.errFns = append(f.errFns, fn)
	return func() {}
}

func (f *fakeRelay) emitLine(l transcript.Line) {
	f.mu.Lock()
	fns := append([]func(transcript.Line){}, f.lineFns...)
	f.mu.Unlock()
	for _, fn := range fns {
		fn(l)
	}
}

func (f *fakeRelay) emitStatus(s transcript.Status) {
	f.mu.Lock()
	fns := append([]func(transcript.Status){}, f.statusFns...)
	f.mu.Unlock()
	for _, fn := range fns {
		fn(s)
	}
}

type fakeStore struct {
	mu       sync.Mutex
	saveErr  error
	saves    []transcript.Line
	queryErr error
	records  []transcript.Record
}

var _ transcript.Store = (*fakeStore)(nil)

func (f *fakeStore) Save(_ context.Context, _, _ string, line transcript.Line) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.saveErr != nil {
		return f.saveErr
	}
	f.saves = append(f.saves, line)
	return nil
}

func (f *fakeStore) SaveBatch(_ context.Context, _, _ string, lines []transcript.Line) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.saveErr != nil {
		return 0, f.saveErr
	}
	f.saves = append(f.saves, lines...)
	return len(lines), nil
}

func (f *fakeStore) Query(context.Context, transcript.QueryOptions) ([]transcript.Record, error) {
	if f.queryErr != nil {
		return nil, f.queryErr
	}
	return f.records, nil
}

func (f *fakeStore) QueryPolitical(context.Context, string, int) ([]transcript.Record, error) {
	return f.records, nil
}

func (f *fakeStore) Stats(context.Context, string) (transcript.Stats, error) {
	return transcript.Stats{}, nil
}

func (f *fakeStore) savedCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.saves)
}

// ── Lifecycle ─────────────────────────────────────────────────────────────────

func TestStartStop_Lifecycle(t *testing.T) {
	t.Parallel()

	relay := &fakeRelay{}
	p := New(relay, nil)

	if err := p.Start(context.Background(), "ABP Ananda", "abp-1", true); err != nil {
		t.Fatalf("Start: %v", err)
	}
	if got := p.State(); got != StateStreaming {
		t.Errorf("state = %v, want streaming", got)
	}
	if relay.connects != 1 {
		t.Errorf("connects = %d, want 1", relay.connects)
	}
	if len(relay.starts) != 1 || relay.starts[0] != (startCall{channelID: "abp-1", political: true}) {
		t.Errorf("starts = %+v", relay.starts)
	}

	relay.emitLine(transcript.Line{English: "visible after stop"})

	if err := p.Stop(context.Background()); err != nil {
		t.Fatalf("Stop: %v", err)
	}
	if got := p.State(); got != StateIdle {
		t.Errorf("state = %v, want idle", got)
	}
	if relay.stops != 1 || relay.disconnects != 1 {
		t.Errorf("stops = %d, disconnects = %d, want 1 each", relay.stops, relay.disconnects)
	}
	// Stopping keeps the last lines on screen.
	if got := p.Lines(); len(got) != 1 || got[0].English != "visible after stop" {
		t.Errorf("buffer after stop = %+v, want the streamed line kept", got)
	}
}

func TestStart_WhileStreaming(t *testing.T) {
	t.Parallel()

	p := New(&fakeRelay{}, nil)
	if err := p.Start(context.Background(), "ch", "ch-1", false); err != nil {
		t.Fatalf("Start: %v", err)
	}
	if err := p.Start(context.Background(), "ch", "ch-1", false); !errors.Is(err, ErrAlreadyStreaming) {
		t.Errorf("second Start = %v, want ErrAlreadyStreaming", err)
	}
}

func TestStart_ConnectFailure(t *testing.T) {
	t.Parallel()

	relay := &fakeRelay{connectErr: errBoom}
	p := New(relay, nil)

	err := p.Start(context.Background(), "ch", "ch-1", false)
	if !errors.Is(err, errBoom) {
		t.Fatalf("Start = %v, want wrapped connect error", err)
	}
	if got := p.State(); got != StateIdle {
		t.Errorf("state = %v, want idle after failed connect", got)
	}
}

func TestStart_StartTranscriptionFailureDisconnects(t *testing.T) {
	t.Parallel()

	relay := &fakeRelay{startErr: errBoom}
	p := New(relay, nil)

	err := p.Start(context.Background(), "ch", "ch-1", false)
	if !errors.Is(err, errBoom) {
		t.Fatalf("Start = %v, want wrapped start error", err)
	}
	if relay.disconnects != 1 {
		t.Errorf("disconnects = %d, want 1 (cleanup after failed start)", relay.disconnects)
	}
	if got := p.State(); got != StateIdle {
		t.Errorf("state = %v, want idle", got)
	}
}

func TestStart_ClearsPreviousBuffer(t *testing.T) {
	t.Parallel()

	relay := &fakeRelay{}
	p := New(relay, nil)

	if err := p.Start(context.Background(), "ch", "ch-1", false); err != nil {
		t.Fatalf("Start: %v", err)
	}
	relay.emitLine(transcript.Line{English: "old session"})
	if err := p.Stop(context.Background()); err != nil {
		t.Fatalf("Stop: %v", err)
	}

	if err := p.Start(context.Background(), "ch", "ch-1", false); err != nil {
		t.Fatalf("restart: %v", err)
	}
	if got := p.Lines(); len(got) != 0 {
		t.Errorf("buffer after restart = %+v, want empty", got)
	}
}

// ── Line handling and auto-save ───────────────────────────────────────────────

func TestOnLine_BuffersWithoutSavingWhenAutoSaveOff(t *testing.T) {
	t.Parallel()

	relay := &fakeRelay{}
	store := &fakeStore{}
	p := New(relay, store)

	if err := p.Start(context.Background(), "ch", "ch-1", false); err != nil {
		t.Fatalf("Start: %v", err)
	}
	relay.emitLine(transcript.Line{English: "hello"})
	p.WaitSaves()

	if got := p.Lines(); len(got) != 1 {
		t.Fatalf("buffered = %d, want 1", len(got))
	}
	if store.savedCount() != 0 {
		t.Errorf("saves = %d, want 0 with auto-save off", store.savedCount())
	}
	if got := p.SaveState(); got != SaveOff {
		t.Errorf("save state = %v, want off", got)
	}
}

func TestOnLine_AutoSavePersists(t *testing.T) {
	t.Parallel()

	relay := &fakeRelay{}
	store := &fakeStore{}
	p := New(relay, store, WithAutoSave())

	if err := p.Start(context.Background(), "ch", "ch-1", false); err != nil {
		t.Fatalf("Start: %v", err)
	}
	relay.emitLine(transcript.Line{English: "save me"})
	p.WaitSaves()

	if store.savedCount() != 1 {
		t.Errorf("saves = %d, want 1", store.savedCount())
	}
	if got := p.SaveState(); got != SaveIdle {
		t.Errorf("save state = %v, want on", got)
	}
}

func TestOnLine_SaveFailureKeepsLineBuffered(t *testing.T) {
	t.Parallel()

	relay := &fakeRelay{}
	store := &fakeStore{saveErr: errBoom}
	p := New(relay, store, WithAutoSave())

	if err := p.Start(context.Background(), "ch", "ch-1", false); err != nil {
		t.Fatalf("Start: %v", err)
	}
	relay.emitLine(transcript.Line{English: "unsaved but visible"})
	p.WaitSaves()

	if got := p.SaveState(); got != SaveError {
		t.Errorf("save state = %v, want error", got)
	}
	if !errors.Is(p.LastError(), errBoom) {
		t.Errorf("LastError = %v, want the save error", p.LastError())
	}
	// The stream keeps rendering regardless of persistence outcome.
	if got := p.Lines(); len(got) != 1 || got[0].English != "unsaved but visible" {
		t.Errorf("buffer = %+v, want failed-save line kept", got)
	}
}

func TestSetAutoSave_RequiresStore(t *testing.T) {
	t.Parallel()

	p := New(&fakeRelay{}, nil)
	p.SetAutoSave(true)
	if got := p.SaveState(); got != SaveOff {
		t.Errorf("save state = %v, want off without a store", got)
	}
}

func TestSetAutoSave_Toggle(t *testing.T) {
	t.Parallel()

	p := New(&fakeRelay{}, &fakeStore{})
	p.SetAutoSave(true)
	if got := p.SaveState(); got != SaveIdle {
		t.Errorf("save state = %v, want on", got)
	}
	p.SetAutoSave(false)
	if got := p.SaveState(); got != SaveOff {
		t.Errorf("save state = %v, want off", got)
	}
}

// ── Filter renegotiation ──────────────────────────────────────────────────────

func TestSetPoliticalFilter_RestartsSession(t *testing.T) {
	t.Parallel()

	relay := &fakeRelay{}
	p := New(relay, nil, WithRestartPause(5*time.Millisecond))

	if err := p.Start(context.Background(), "ch", "ch-1", false); err != nil {
		t.Fatalf("Start: %v", err)
	}
	if err := p.SetPoliticalFilter(context.Background(), true); err != nil {
		t.Fatalf("SetPoliticalFilter: %v", err)
	}

	// Stop then start on the same connection, no reconnect.
	if relay.stops != 1 {
		t.Errorf("stops = %d, want 1", relay.stops)
	}
	if relay.connects != 1 || relay.disconnects != 0 {
		t.Errorf("connects = %d, disconnects = %d, want same connection reused", relay.connects, relay.disconnects)
	}
	if len(relay.starts) != 2 {
		t.Fatalf("starts = %d, want 2", len(relay.starts))
	}
	if got := relay.starts[1]; got != (startCall{channelID: "ch-1", political: true}) {
		t.Errorf("restart = %+v, want political filter on", got)
	}
}

func TestSetPoliticalFilter_NoopWhenUnchanged(t *testing.T) {
	t.Parallel()

	relay := &fakeRelay{}
	p := New(relay, nil)

	if err := p.Start(context.Background(), "ch", "ch-1", true); err != nil {
		t.Fatalf("Start: %v", err)
	}
	if err := p.SetPoliticalFilter(context.Background(), true); err != nil {
		t.Fatalf("SetPoliticalFilter: %v", err)
	}
	if relay.stops != 0 || len(relay.starts) != 1 {
		t.Errorf("stops = %d, starts = %d, want no restart for unchanged filter", relay.stops, len(relay.starts))
	}
}

func TestSetPoliticalFilter_IdleOnlyRecordsFlag(t *testing.T) {
	t.Parallel()

	relay := &fakeRelay{}
	p := New(relay, nil)

	if err := p.SetPoliticalFilter(context.Background(), true); err != nil {
		t.Fatalf("SetPoliticalFilter: %v", err)
	}
	if relay.stops != 0 || len(relay.starts) != 0 {
		t.Error("idle filter change must not touch the relay")
	}

	// The recorded flag applies to the next session.
	if err := p.Start(context.Background(), "ch", "ch-1", true); err != nil {
		t.Fatalf("Start: %v", err)
	}
	if relay.starts[0].political != true {
		t.Error("next session did not carry the recorded filter")
	}
}

// ── History and search ────────────────────────────────────────────────────────

func TestLoadHistory_FillsBufferOldestFirst(t *testing.T) {
	t.Parallel()

	// Query returns newest first; the panel re-orders for display.
	store := &fakeStore{records: []transcript.Record{
		{EnglishText: "newest", TranscriptTime: "9:03:00 PM"},
		{EnglishText: "middle", TranscriptTime: "9:02:00 PM"},
		{EnglishText: "oldest", TranscriptTime: "9:01:00 PM", BJPMention: true},
	}}
	p := New(&fakeRelay{}, store)

	if err := p.LoadHistory(context.Background(), transcript.QueryOptions{}); err != nil {
		t.Fatalf("LoadHistory: %v", err)
	}

	lines := p.Lines()
	if len(lines) != 3 {
		t.Fatalf("len = %d, want 3", len(lines))
	}
	if lines[0].English != "oldest" || lines[2].English != "newest" {
		t.Errorf("order = [%s %s %s], want oldest first", lines[0].English, lines[1].English, lines[2].English)
	}
	if lines[0].BJPMention == nil || !*lines[0].BJPMention {
		t.Error("mention flag lost in history conversion")
	}
	if p.LoadingHistory() {
		t.Error("LoadingHistory still true after return")
	}
}

func TestLoadHistory_FailureLeavesBufferUntouched(t *testing.T) {
	t.Parallel()

	relay := &fakeRelay{}
	store := &fakeStore{queryErr: errBoom}
	p := New(relay, store)

	if err := p.Start(context.Background(), "ch", "ch-1", false); err != nil {
		t.Fatalf("Start: %v", err)
	}
	relay.emitLine(transcript.Line{English: "live line"})

	if err := p.LoadHistory(context.Background(), transcript.QueryOptions{}); !errors.Is(err, errBoom) {
		t.Fatalf("LoadHistory = %v, want query error", err)
	}
	if got := p.Lines(); len(got) != 1 || got[0].English != "live line" {
		t.Errorf("buffer = %+v, want untouched on failed read", got)
	}
}

func TestLoadHistory_NoStore(t *testing.T) {
	t.Parallel()

	p := New(&fakeRelay{}, nil)
	if err := p.LoadHistory(context.Background(), transcript.QueryOptions{}); err == nil {
		t.Fatal("LoadHistory without store: expected error")
	}
}

func TestSearch_MatchesAnyLanguageField(t *testing.T) {
	t.Parallel()

	relay := &fakeRelay{}
	p := New(relay, nil)
	if err := p.Start(context.Background(), "ch", "ch-1", false); err != nil {
		t.Fatalf("Start: %v", err)
	}
	relay.emitLine(transcript.Line{Bengali: "মমতা কলকাতায়", English: "Mamata in Kolkata"})
	relay.emitLine(transcript.Line{Hindi: "चुनाव की तैयारी"})
	relay.emitLine(transcript.Line{English: "Weather update"})

	tests := []struct {
		query string
		want  int
	}{
		{"KOLKATA", 1},
		{"মমতা", 1},
		{"चुनाव", 1},
		{"update", 1},
		{"  ", 3},
		{"", 3},
		{"no such text", 0},
	}
	for _, tc := range tests {
		if got := len(p.Search(tc.query)); got != tc.want {
			t.Errorf("Search(%q) = %d lines, want %d", tc.query, got, tc.want)
		}
	}

	// Search filters the view only.
	if got := p.Lines(); len(got) != 3 {
		t.Errorf("buffer = %d lines after search, want 3", len(got))
	}
}

func TestStatusAndErrorEvents(t *testing.T) {
	t.Parallel()

	relay := &fakeRelay{}
	p := New(relay, nil)
	if err := p.Start(context.Background(), "ch", "ch-1", false); err != nil {
		t.Fatalf("Start: %v", err)
	}

	relay.emitStatus(transcript.Status{ChannelID: "ch-1", Kind: transcript.StatusCapturing})
	if got := p.LastStatus(); got.Kind != transcript.StatusCapturing {
		t.Errorf("LastStatus = %+v", got)
	}

	relay.mu.Lock()
	fns := append([]func(error){}, relay.errFns...)
	relay.mu.Unlock()
	for _, fn := range fns {
		fn(errBoom)
	}
	if !errors.Is(p.LastError(), errBoom) {
		t.Errorf("LastError = %v, want relay error", p.LastError())
	}
}

func TestState_Strings(t *testing.T) {
	t.Parallel()

	if got := StateConnecting.String(); got != "connecting" {
		t.Errorf("StateConnecting = %q", got)
	}
	if got := SaveSaving.String(); got != "saving" {
		t.Errorf("SaveSaving = %q", got)
	}
	if got := State(42).String(); got != "unknown" {
		t.Errorf("State(42) = %q", got)
	}
}
