// Package flow is one contributor's pass through tier selection, script,
// recording and upload. It owns every stateful component and wires the
// upload coordinator's session renewal back into the script provisioner.
package flow

import (
	"context"
	"errors"
	"log/slog"
	"sync"

	"github.com/rx3lixir/voicebank/internal/apierror"
	"github.com/rx3lixir/voicebank/internal/domain"
	"github.com/rx3lixir/voicebank/internal/duration"
	"github.com/rx3lixir/voicebank/internal/recorder"
	"github.com/rx3lixir/voicebank/internal/script"
	"github.com/rx3lixir/voicebank/internal/upload"
	"github.com/rx3lixir/voicebank/pkg/audio"
)

var (
	ErrNoTier      = errors.New("no recording duration selected")
	ErrNoScript    = errors.New("script not loaded")
	ErrNoRecording = errors.New("no completed recording")
)

// Remote is the recording service as seen by a contributor
type Remote interface {
	script.Remote
	upload.Submitter
}

type Deps struct {
	Catalog    *duration.Catalog
	Remote     Remote
	Device     recorder.Device
	Clock      recorder.Clock
	Format     audio.PCMFormat
	PreviewDir string
	Translator *apierror.Translator
	Upload     upload.Options
}

type Flow struct {
	catalog *duration.Catalog
	scripts *script.Provisioner
	engine  *recorder.Engine
	uploads *upload.Coordinator
	log     *slog.Logger

	mu     sync.Mutex
	option *duration.Option
}

// View is a point-in-time picture of the whole flow
type View struct {
	Option           *duration.Option
	Script           script.State
	Recorder         recorder.Status
	Upload           upload.State
	RecordProgress   float64
	RemainingSeconds int
	UploadProgress   int
}

func New(deps Deps, log *slog.Logger) *Flow {
	if deps.Catalog == nil {
		deps.Catalog = duration.Default()
	}
	if deps.Translator == nil {
		deps.Translator = apierror.NewTranslator(nil)
	}
	if deps.Upload.Translator == nil {
		deps.Upload.Translator = deps.Translator
	}

	scripts := script.NewProvisioner(deps.Remote, deps.Translator, log)
	engine := recorder.NewEngine(deps.Device, recorder.Options{
		Format:     deps.Format,
		Clock:      deps.Clock,
		PreviewDir: deps.PreviewDir,
		Translator: deps.Translator,
	}, log)

	return &Flow{
		catalog: deps.Catalog,
		scripts: scripts,
		engine:  engine,
		uploads: upload.NewCoordinator(deps.Remote, scripts, deps.Upload, log),
		log:     log.With("component", "flow"),
	}
}

func (f *Flow) Catalog() *duration.Catalog   { return f.catalog }
func (f *Flow) Scripts() *script.Provisioner { return f.scripts }
func (f *Flow) Recorder() *recorder.Engine   { return f.engine }
func (f *Flow) Uploads() *upload.Coordinator { return f.uploads }

// SelectTier discards any take in progress and starts loading a script for
// the tier
func (f *Flow) SelectTier(ctx context.Context, id duration.ID) error {
	option, err := f.catalog.Lookup(id)
	if err != nil {
		return err
	}

	f.engine.Reset()
	f.uploads.Reset()

	f.mu.Lock()
	f.option = &option
	f.mu.Unlock()

	f.log.Info("tier selected", "tier", option.Tier(), "max_seconds", option.MaxDurationSeconds())
	f.scripts.Select(ctx, option)
	return nil
}

// Option returns the selected tier
func (f *Flow) Option() (duration.Option, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.option == nil {
		return duration.Option{}, false
	}
	return *f.option, true
}

// StartRecording begins a take capped at the tier length
func (f *Flow) StartRecording() error {
	loaded, ok := f.scripts.Current()
	if !ok {
		return ErrNoScript
	}
	f.engine.Start(loaded.Option.MaxDurationSeconds())
	return nil
}

func (f *Flow) Pause()  { f.engine.Pause() }
func (f *Flow) Resume() { f.engine.Resume() }
func (f *Flow) Stop()   { f.engine.Stop() }

// DiscardTake drops the current take so it can be recorded again
func (f *Flow) DiscardTake() {
	f.engine.Reset()
	f.uploads.Reset()
}

// Upload submits the completed take under the current session
func (f *Flow) Upload(ctx context.Context) error {
	done, ok := f.engine.Status().(recorder.Completed)
	if !ok || done.Artifact == nil {
		return ErrNoRecording
	}
	loaded, ok := f.scripts.Current()
	if !ok {
		return ErrNoScript
	}

	f.uploads.Upload(ctx, upload.Request{
		Artifact: done.Artifact,
		Session:  loaded.Session,
		Option:   loaded.Option,
	})
	return nil
}

// RetryUpload repeats a retryable failed upload
func (f *Flow) RetryUpload(ctx context.Context) bool {
	return f.uploads.Retry(ctx)
}

// Session returns the session uploads are currently filed under
func (f *Flow) Session() (domain.RecordingSession, bool) {
	loaded, ok := f.scripts.Current()
	return loaded.Session, ok
}

// View reports the state of every component
func (f *Flow) View() View {
	v := View{
		Script:   f.scripts.State(),
		Recorder: f.engine.Status(),
		Upload:   f.uploads.State(),
	}
	if option, ok := f.Option(); ok {
		v.Option = &option
		elapsed := recorder.Elapsed(v.Recorder)
		v.RecordProgress = recorder.Progress(elapsed, option.MaxDurationSeconds())
		v.RemainingSeconds = recorder.Remaining(elapsed, option.MaxDurationSeconds())
	}
	v.UploadProgress = upload.Progress(v.Upload)
	return v
}

// Reset returns every component to idle
func (f *Flow) Reset() {
	f.engine.Reset()
	f.uploads.Reset()
	f.scripts.Reset()

	f.mu.Lock()
	f.option = nil
	f.mu.Unlock()
}

// Close releases the microphone and waits for background work
func (f *Flow) Close() {
	f.engine.Close()
	f.uploads.Close()
	f.scripts.Close()
}
