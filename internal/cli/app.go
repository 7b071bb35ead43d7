package cli

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/dmitrijs2005/photodrop/internal/common"
	"github.com/dmitrijs2005/photodrop/internal/credentials"
	"github.com/dmitrijs2005/photodrop/internal/history"
	"github.com/dmitrijs2005/photodrop/internal/kvstore"
	"github.com/dmitrijs2005/photodrop/internal/logging"
	"github.com/dmitrijs2005/photodrop/internal/notify"
	"github.com/dmitrijs2005/photodrop/internal/photos"
	"github.com/dmitrijs2005/photodrop/internal/pipeline"
	"github.com/dmitrijs2005/photodrop/internal/profile"
)

type Uploader interface {
	Enqueue(ctx context.Context, req pipeline.Request) <-chan pipeline.Outcome[pipeline.Result]
	Pending() int
}

type HistoryService interface {
	List(ctx context.Context) ([]history.Record, error)
	Remove(ctx context.Context, id string) (bool, error)
}

type AlbumService interface {
	List(ctx context.Context, cred *credentials.Credential) ([]photos.Album, error)
	Select(ctx context.Context, id string) error
	Selected(ctx context.Context) (string, error)
}

type ProfileService interface {
	Current(ctx context.Context, cred *credentials.Credential) (*profile.Profile, error)
}

type AccountService interface {
	Login(ctx context.Context) (*credentials.Credential, error)
	Logout(ctx context.Context) error
}

type Credentials interface {
	Acquire(ctx context.Context) (*credentials.Credential, error)
}

// ChangeFeed is the part of kvstore.Store the watcher needs.
type ChangeFeed interface {
	Subscribe(buffer int) (<-chan kvstore.Change, func())
}

// Deps are the services the REPL drives. Surface receives upload
// notifications; when nil a console relay on the REPL output is used, with
// ProgressFailsafe as its progress timeout.
type Deps struct {
	Uploads     Uploader
	History     HistoryService
	Albums      AlbumService
	Profile     ProfileService
	Account     AccountService
	Credentials Credentials
	Changes     ChangeFeed
	Surface     notify.Relay
	Logger      logging.Logger

	ProgressFailsafe time.Duration
}

type App struct {
	deps Deps
	out  io.Writer
	log  logging.Logger

	mu       sync.Mutex
	userName string
}

// NewApp builds an App writing to out. out is shared with the notification
// surface and the change watcher, so every write is serialized.
func NewApp(deps Deps, out io.Writer) *App {
	if deps.Logger == nil {
		deps.Logger = logging.Nop()
	}
	sw := &syncWriter{w: out}
	if deps.Surface == nil {
		deps.Surface = notify.NewConsole(sw, deps.ProgressFailsafe)
	}
	return &App{deps: deps, out: sw, log: deps.Logger.With("component", "cli")}
}

// Run prints a greeting, starts the change watcher and runs the REPL on in
// until the user exits.
func (a *App) Run(ctx context.Context, in io.Reader) {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	a.println("Welcome to photodrop (type 'help' for commands)")

	var wg sync.WaitGroup
	if a.deps.Changes != nil {
		changes, unsubscribe := a.deps.Changes.Subscribe(16)
		defer unsubscribe()
		wg.Add(1)
		go func() {
			defer wg.Done()
			a.watchChanges(ctx, changes)
		}()
	}

	runREPL(ctx, a, a.out, a.getStatus, bufio.NewScanner(in))

	cancel()
	wg.Wait()
}

func (a *App) getStatus() string {
	a.mu.Lock()
	name := a.userName
	a.mu.Unlock()

	s := name
	if n := a.deps.Uploads.Pending(); n > 0 {
		if s != "" {
			s += " "
		}
		s += fmt.Sprintf("%d pending", n)
	}
	if s != "" {
		s = fmt.Sprintf("(%s)", s)
	}
	return s
}

func (a *App) setUserName(name string) {
	a.mu.Lock()
	a.userName = name
	a.mu.Unlock()
}

func (a *App) println(args ...any) {
	fmt.Fprintln(a.out, args...)
}

func (a *App) printf(format string, args ...any) {
	fmt.Fprintf(a.out, format, args...)
}

// fail reports err to the user without leaking internals.
func (a *App) fail(ctx context.Context, op string, err error) error {
	a.log.Debug(ctx, op+" failed", "error", err)
	a.println("Error:", common.UserMessage(err))
	return err
}

type syncWriter struct {
	mu sync.Mutex
	w  io.Writer
}

func (s *syncWriter) Write(p []byte) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.w.Write(p)
}
