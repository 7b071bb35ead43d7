package cli

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/dmitrijs2005/photodrop/internal/pipeline"
)

var errUsage = errors.New("usage")

// Upload queues an image and returns at once. Progress and the outcome are
// reported through the notification surface.
func (a *App) Upload(ctx context.Context, args []string) error {
	if len(args) == 0 {
		a.println("Usage: upload <url> [origin]")
		return errUsage
	}
	req := pipeline.Request{ImageURL: args[0], Surface: a.deps.Surface}
	if len(args) > 1 {
		req.OriginURL = args[1]
	}

	a.deps.Uploads.Enqueue(ctx, req)
	a.printf("Queued %s (%d pending)\n", req.ImageURL, a.deps.Uploads.Pending())
	return nil
}

func (a *App) History(ctx context.Context) error {
	records, err := a.deps.History.List(ctx)
	if err != nil {
		return a.fail(ctx, "history", err)
	}
	if len(records) == 0 {
		a.println("No uploads yet.")
		return nil
	}
	for _, r := range records {
		ts := time.UnixMilli(r.Timestamp).Format(time.DateTime)
		a.printf("%s  %s  %s  %s\n", r.ID, ts, r.Filename, r.RemoteViewURL)
	}
	return nil
}

func (a *App) Delete(ctx context.Context, args []string) error {
	if len(args) != 1 {
		a.println("Usage: delete <id>")
		return errUsage
	}
	removed, err := a.deps.History.Remove(ctx, args[0])
	if err != nil {
		return a.fail(ctx, "delete", err)
	}
	if !removed {
		a.printf("No history entry %s\n", args[0])
		return nil
	}
	a.printf("Deleted %s\n", args[0])
	return nil
}

func (a *App) Albums(ctx context.Context) error {
	cred, err := a.deps.Credentials.Acquire(ctx)
	if err != nil {
		return a.fail(ctx, "albums", err)
	}
	list, err := a.deps.Albums.List(ctx, cred)
	if err != nil {
		return a.fail(ctx, "albums", err)
	}
	selected, err := a.deps.Albums.Selected(ctx)
	if err != nil {
		a.log.Debug(ctx, "read album selection failed", "error", err)
	}

	if len(list) == 0 {
		a.println("No albums yet. Uploads create one on first use.")
		return nil
	}
	for _, al := range list {
		mark := " "
		if al.ID == selected {
			mark = "*"
		}
		a.printf("%s %s  %s (%d items)\n", mark, al.ID, al.Title, al.MediaItemsCount)
	}
	return nil
}

// Album selects the upload target; "none" returns to the default album.
func (a *App) Album(ctx context.Context, args []string) error {
	if len(args) != 1 {
		a.println("Usage: album <id|none>")
		return errUsage
	}
	id := args[0]
	if strings.EqualFold(id, "none") {
		id = ""
	}
	if err := a.deps.Albums.Select(ctx, id); err != nil {
		return a.fail(ctx, "album", err)
	}
	if id == "" {
		a.println("Uploads go to the main library.")
		return nil
	}
	a.printf("Uploads go to album %s.\n", id)
	return nil
}

func (a *App) WhoAmI(ctx context.Context) error {
	cred, err := a.deps.Credentials.Acquire(ctx)
	if err != nil {
		return a.fail(ctx, "whoami", err)
	}
	p, err := a.deps.Profile.Current(ctx, cred)
	if err != nil {
		return a.fail(ctx, "whoami", err)
	}
	a.setUserName(p.Name)
	a.printf("Signed in as %s\n", p.Name)
	if p.PhotoURL != "" {
		a.printf("Photo: %s\n", p.PhotoURL)
	}
	return nil
}

func (a *App) Login(ctx context.Context) error {
	cred, err := a.deps.Account.Login(ctx)
	if err != nil {
		return a.fail(ctx, "login", err)
	}
	name := "Google account"
	if p, err := a.deps.Profile.Current(ctx, cred); err != nil {
		a.log.Debug(ctx, "profile lookup failed", "error", err)
	} else if p.Name != "" {
		name = p.Name
	}
	a.setUserName(name)
	a.printf("Signed in as %s\n", name)
	return nil
}

func (a *App) Logout(ctx context.Context) error {
	err := a.deps.Account.Logout(ctx)
	a.setUserName("")
	if err != nil {
		return a.fail(ctx, "logout", err)
	}
	a.println("Signed out. Local history and caches were cleared.")
	return nil
}

func (a *App) Status(ctx context.Context) error {
	a.mu.Lock()
	name := a.userName
	a.mu.Unlock()
	if name == "" {
		name = "unknown (run whoami or login)"
	}
	a.printf("Account: %s\n", name)

	selected, err := a.deps.Albums.Selected(ctx)
	if err != nil {
		a.log.Debug(ctx, "read album selection failed", "error", err)
	}
	if selected == "" {
		selected = "main library"
	}
	a.printf("Target album: %s\n", selected)

	records, err := a.deps.History.List(ctx)
	if err != nil {
		return a.fail(ctx, "status", err)
	}
	a.printf("Uploads in history: %d\n", len(records))
	a.printf("Jobs pending: %d\n", a.deps.Uploads.Pending())
	return nil
}
