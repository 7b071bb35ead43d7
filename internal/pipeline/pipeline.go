// Package pipeline runs upload jobs: credential, download, EXIF rewrite,
// two-phase upload, history record and cache warming. Jobs run strictly one
// at a time in submission order, so the stores they write are never raced.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/dmitrijs2005/photodrop/internal/common"
	"github.com/dmitrijs2005/photodrop/internal/credentials"
	"github.com/dmitrijs2005/photodrop/internal/exifx"
	"github.com/dmitrijs2005/photodrop/internal/history"
	"github.com/dmitrijs2005/photodrop/internal/imagex"
	"github.com/dmitrijs2005/photodrop/internal/logging"
	"github.com/dmitrijs2005/photodrop/internal/metrics"
	"github.com/dmitrijs2005/photodrop/internal/netx"
	"github.com/dmitrijs2005/photodrop/internal/notify"
	"github.com/dmitrijs2005/photodrop/internal/photos"
	"github.com/google/uuid"
)

const (
	DefaultKeepAliveInterval = 25 * time.Second

	messageProgress = "Uploading image to Google Photos…"
)

type Credentials interface {
	Acquire(ctx context.Context) (*credentials.Credential, error)
	Refresh(ctx context.Context, stale *credentials.Credential) (*credentials.Credential, error)
}

type Downloader interface {
	Download(ctx context.Context, url string) (*netx.ImageResource, error)
}

type Uploader interface {
	UploadBytes(ctx context.Context, token string, data []byte, mimeType string) (string, error)
	CreateMediaItem(ctx context.Context, token, uploadToken, filename, albumID string) (*photos.MediaItem, error)
}

type Albums interface {
	Resolve(ctx context.Context, cred *credentials.Credential) string
	Title(ctx context.Context, cred *credentials.Credential, id string) (string, error)
}

type Ledger interface {
	Append(ctx context.Context, e history.Entry) (history.Record, error)
}

type ThumbnailCache interface {
	Put(ctx context.Context, key string, value string) error
}

type Notifier interface {
	Show(relay notify.Relay, msg notify.Message)
	Dismiss(relay notify.Relay, id string)
}

// Platform is the hosting environment. KeepAlive is called periodically
// while a job runs.
type Platform interface {
	KeepAlive(ctx context.Context) error
}

// RewriteFunc rewrites JPEG metadata; see exifx.Rewrite.
type RewriteFunc func(data []byte, now time.Time) ([]byte, error)

// Deps are the collaborators a Pipeline sequences. Platform, Thumbnails and
// Metrics may be nil.
type Deps struct {
	Credentials Credentials
	Downloader  Downloader
	Photos      Uploader
	Albums      Albums
	History     Ledger
	Thumbnails  ThumbnailCache
	Notifier    Notifier
	Platform    Platform
	Metrics     *metrics.Metrics
	Logger      logging.Logger
}

// Request is one user-triggered upload.
type Request struct {
	ImageURL  string
	OriginURL string
	Surface   notify.Relay
}

// Result describes a completed upload.
type Result struct {
	Record history.Record
	Item   photos.MediaItem
}

// Job is the transient state of one upload. It is discarded once terminal.
type Job struct {
	SourceURL string
	OriginURL string
	State     State
	ToastID   string

	surface   notify.Relay
	refreshed bool
	log       logging.Logger
}

type Pipeline struct {
	deps      Deps
	queue     *Queue[Result]
	rewrite   RewriteFunc
	keepAlive time.Duration
	observer  func(Transition)
	now       func() time.Time
	log       logging.Logger
}

type Option func(*Pipeline)

func WithKeepAliveInterval(d time.Duration) Option {
	return func(p *Pipeline) { p.keepAlive = d }
}

// WithObserver registers fn for every state transition. fn runs on the
// worker goroutine and must not block.
func WithObserver(fn func(Transition)) Option {
	return func(p *Pipeline) { p.observer = fn }
}

func WithRewriter(fn RewriteFunc) Option {
	return func(p *Pipeline) { p.rewrite = fn }
}

func WithClock(now func() time.Time) Option {
	return func(p *Pipeline) { p.now = now }
}

func New(deps Deps, opts ...Option) *Pipeline {
	if deps.Logger == nil {
		deps.Logger = logging.Nop()
	}
	log := deps.Logger.With("component", "pipeline")
	p := &Pipeline{
		deps:      deps,
		queue:     NewQueue[Result](log),
		rewrite:   exifx.Rewrite,
		keepAlive: DefaultKeepAliveInterval,
		observer:  func(Transition) {},
		now:       time.Now,
		log:       log,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Submit enqueues req and waits for its outcome. Cancelling ctx abandons the
// wait; the job itself runs to completion.
func (p *Pipeline) Submit(ctx context.Context, req Request) (Result, error) {
	select {
	case o := <-p.Enqueue(ctx, req):
		return o.Value, o.Err
	case <-ctx.Done():
		return Result{}, ctx.Err()
	}
}

// Enqueue schedules req behind every earlier job and returns its future.
func (p *Pipeline) Enqueue(ctx context.Context, req Request) <-chan Outcome[Result] {
	jobCtx := context.WithoutCancel(ctx)
	job := &Job{
		SourceURL: req.ImageURL,
		OriginURL: req.OriginURL,
		State:     StateQueued,
		ToastID:   uuid.NewString(),
		surface:   req.Surface,
	}
	job.log = p.log.With("job", job.ToastID)

	out := p.queue.Enqueue(func() (Result, error) {
		defer func() { p.deps.Metrics.SetQueueDepth(p.queue.Depth() - 1) }()
		return p.execute(jobCtx, job)
	})
	p.deps.Metrics.SetQueueDepth(p.queue.Depth())
	return out
}

// Pending counts queued and running jobs.
func (p *Pipeline) Pending() int {
	return p.queue.Depth()
}

// Close waits for queued jobs to finish and rejects new ones.
func (p *Pipeline) Close() {
	p.queue.Close()
}

func (p *Pipeline) execute(ctx context.Context, job *Job) (Result, error) {
	started := p.now()
	job.log.Info(ctx, "upload started", "url", job.SourceURL, "origin", job.OriginURL)

	stopKeepAlive := p.startKeepAlive(ctx, job)
	p.show(job, notify.Message{Kind: notify.KindProgress, Text: messageProgress, ID: job.ToastID})

	res, err := p.run(ctx, job)

	stopKeepAlive()
	p.dismiss(job)

	if err != nil {
		p.transition(job, StateFailed, err)
		kind := common.KindOf(err)
		job.log.Warn(ctx, "upload failed", "kind", kind, "error", err, "elapsed", p.now().Sub(started))
		p.deps.Metrics.JobFinished("failure", kind.String())
		p.show(job, notify.Message{Kind: notify.KindError, Text: common.UserMessage(err)})
		return Result{}, err
	}

	p.transition(job, StateDone, nil)
	job.log.Info(ctx, "upload finished", "item_id", res.Item.ID, "elapsed", p.now().Sub(started))
	p.deps.Metrics.JobFinished("success", "")
	p.show(job, notify.Message{Kind: notify.KindSuccess, Text: fmt.Sprintf("Uploaded %s to Google Photos.", res.Record.Filename)})
	return res, nil
}

func (p *Pipeline) run(ctx context.Context, job *Job) (Result, error) {
	// network-free check first so rejected locators cost nothing
	if _, err := netx.ValidateURL(job.SourceURL); err != nil {
		return Result{}, err
	}

	var cred *credentials.Credential
	err := p.step(ctx, "credential", func() (err error) {
		cred, err = p.deps.Credentials.Acquire(ctx)
		return err
	})
	if err != nil {
		return Result{}, err
	}
	p.transition(job, StateCredentialAcquired, nil)

	var img *netx.ImageResource
	err = p.step(ctx, "download", func() (err error) {
		img, err = p.deps.Downloader.Download(ctx, job.SourceURL)
		return err
	})
	if err != nil {
		return Result{}, err
	}
	p.transition(job, StateDownloaded, nil)

	payload := p.rewriteMetadata(ctx, job, img)
	p.transition(job, StateMetadataRewritten, nil)

	var uploadToken string
	err = p.step(ctx, "upload_bytes", func() error {
		return p.withCredentialRetry(ctx, job, &cred, "upload_bytes", func(c *credentials.Credential) (err error) {
			uploadToken, err = p.deps.Photos.UploadBytes(ctx, c.Token, payload, img.MIMEType)
			return err
		})
	})
	if err != nil {
		return Result{}, err
	}
	p.transition(job, StateBytesUploaded, nil)

	albumID := p.deps.Albums.Resolve(ctx, cred)

	var item *photos.MediaItem
	err = p.step(ctx, "create_item", func() error {
		return p.withCredentialRetry(ctx, job, &cred, "create_item", func(c *credentials.Credential) (err error) {
			item, err = p.deps.Photos.CreateMediaItem(ctx, c.Token, uploadToken, img.Filename, albumID)
			return err
		})
	})
	if err != nil {
		return Result{}, err
	}
	p.transition(job, StateItemCreated, nil)

	rec := p.record(ctx, job, img, item, albumID)
	p.transition(job, StateRecordPersisted, nil)

	p.warmCaches(ctx, job, cred, img, item, albumID)
	return Result{Record: rec, Item: *item}, nil
}

// rewriteMetadata stamps JPEG payloads with the current time. Any rewrite
// failure falls back to the original bytes.
func (p *Pipeline) rewriteMetadata(ctx context.Context, job *Job, img *netx.ImageResource) []byte {
	if img.MIMEType != "image/jpeg" {
		return img.Bytes
	}
	out, err := p.rewrite(img.Bytes, p.now())
	if err != nil {
		job.log.Debug(ctx, "metadata rewrite skipped", "kind", common.KindFormat, "error", err)
		return img.Bytes
	}
	return out
}

// withCredentialRetry runs fn and, on the job's first credential expiry,
// refreshes the credential and replays fn once.
func (p *Pipeline) withCredentialRetry(ctx context.Context, job *Job, cred **credentials.Credential, step string, fn func(*credentials.Credential) error) error {
	err := fn(*cred)
	if err == nil || !errors.Is(err, common.ErrCredentialExpired) {
		return err
	}
	if job.refreshed {
		job.log.Warn(ctx, "credential expired again, giving up", "step", step)
		return err
	}

	job.refreshed = true
	p.transition(job, StateCredentialAcquired, nil)
	p.deps.Metrics.CredentialReplay(step)
	job.log.Info(ctx, "credential expired, refreshing", "step", step)

	fresh, rerr := p.deps.Credentials.Refresh(ctx, *cred)
	if rerr != nil {
		return rerr
	}
	*cred = fresh
	return fn(fresh)
}

// record appends the history entry. Failure is logged; the upload already
// succeeded remotely.
func (p *Pipeline) record(ctx context.Context, job *Job, img *netx.ImageResource, item *photos.MediaItem, albumID string) history.Record {
	filename := item.Filename
	if filename == "" {
		filename = img.Filename
	}
	entry := history.Entry{
		Filename:      filename,
		RemoteItemID:  item.ID,
		RemoteViewURL: item.ProductURL,
		AlbumID:       albumID,
	}

	rec, err := p.deps.History.Append(ctx, entry)
	if err != nil {
		job.log.Warn(ctx, "history append failed", "error", err)
		return history.Record{
			Timestamp:     p.now().UnixMilli(),
			Filename:      entry.Filename,
			RemoteItemID:  entry.RemoteItemID,
			RemoteViewURL: entry.RemoteViewURL,
			AlbumID:       entry.AlbumID,
		}
	}
	return rec
}

func (p *Pipeline) warmCaches(ctx context.Context, job *Job, cred *credentials.Credential, img *netx.ImageResource, item *photos.MediaItem, albumID string) {
	if p.deps.Thumbnails != nil {
		if thumb, err := imagex.Thumbnail(img.Bytes, imagex.DefaultMaxSide); err != nil {
			job.log.Debug(ctx, "thumbnail skipped", "error", err)
		} else if err := p.deps.Thumbnails.Put(ctx, item.ID, imagex.DataURL("image/jpeg", thumb)); err != nil {
			job.log.Debug(ctx, "thumbnail cache write failed", "error", err)
		}
	}
	if albumID != "" {
		if _, err := p.deps.Albums.Title(ctx, cred, albumID); err != nil {
			job.log.Debug(ctx, "album title cache warm failed", "error", err)
		}
	}
}

func (p *Pipeline) step(ctx context.Context, name string, fn func() error) error {
	start := p.now()
	err := fn()
	p.deps.Metrics.ObserveStep(name, p.now().Sub(start))
	if err != nil {
		return fmt.Errorf("%s: %w", name, err)
	}
	return nil
}

func (p *Pipeline) transition(job *Job, to State, err error) {
	from := job.State
	job.State = to
	p.observer(Transition{JobID: job.ToastID, From: from, To: to, Err: err})
}

func (p *Pipeline) show(job *Job, msg notify.Message) {
	if p.deps.Notifier == nil {
		return
	}
	p.deps.Notifier.Show(job.surface, msg)
}

func (p *Pipeline) dismiss(job *Job) {
	if p.deps.Notifier == nil {
		return
	}
	p.deps.Notifier.Dismiss(job.surface, job.ToastID)
}

// startKeepAlive pings the platform every keep-alive interval until the
// returned stop func is called.
func (p *Pipeline) startKeepAlive(ctx context.Context, job *Job) (stop func()) {
	if p.deps.Platform == nil || p.keepAlive <= 0 {
		return func() {}
	}

	ticker := time.NewTicker(p.keepAlive)
	done := make(chan struct{})
	exited := make(chan struct{})
	go func() {
		defer close(exited)
		for {
			select {
			case <-done:
				return
			case <-ticker.C:
				if err := p.deps.Platform.KeepAlive(ctx); err != nil {
					job.log.Debug(ctx, "keep-alive failed", "error", err)
				}
			}
		}
	}()

	return func() {
		ticker.Stop()
		close(done)
		<-exited
	}
}
