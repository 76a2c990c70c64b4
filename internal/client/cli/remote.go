package cli

import (
	"context"
	"fmt"
	"time"

	"github.com/dmitrijs2005/promptvault/internal/client/services"
)

// getSecret is a test seam for GetSecret.
var getSecret = GetSecret

// Save writes the catalog immediately.
func (a *App) Save(ctx context.Context, args []string) error {
	if a.catalog.Ready() && a.catalog.Len() == 0 {
		fmt.Fprintln(a.out, "Nothing to save, the catalog is empty")
		return nil
	}
	if err := a.writeBack.Flush(ctx, services.TriggerManual); err != nil {
		return err
	}
	st, _ := a.writeBack.LastWrite()
	where := "local store"
	if st.Remote {
		where += " and " + st.Path
	}
	fmt.Fprintf(a.out, "Saved %d prompts to %s\n", st.Count, where)
	return nil
}

func (a *App) Status(ctx context.Context, args []string) error {
	role := "contributor"
	if a.session.Privileged() {
		role = "admin"
	}
	fmt.Fprintf(a.out, "User:     %s (%s)\n", a.session.User(), role)
	fmt.Fprintf(a.out, "Mode:     %s\n", a.mode())
	fmt.Fprintf(a.out, "Prompts:  %d\n", a.catalog.Len())
	if a.remote != nil {
		cloud := "disabled (no token)"
		if a.session.CloudEnabled() {
			cloud = "writes to " + a.session.RemotePath()
		} else if a.session.Authorized() {
			cloud = "paused (offline)"
		}
		fmt.Fprintf(a.out, "Cloud:    %s\n", cloud)
	}

	st, ok := a.writeBack.LastWrite()
	if !ok {
		fmt.Fprintln(a.out, "Last save: never")
		return nil
	}
	fmt.Fprintf(a.out, "Last save: %s (%s, %d prompts, digest %.12s)\n",
		st.At.Format(time.DateTime), st.Trigger, st.Count, st.Digest)
	return nil
}

// Connect sets the remote access token, read without echo when not given
// as an argument, and checks the remote store.
func (a *App) Connect(ctx context.Context, args []string) error {
	if a.remote == nil {
		return fmt.Errorf("no remote store configured")
	}
	if len(args) > 1 {
		return errUsage("connect [token]")
	}

	var token string
	if len(args) == 1 {
		token = args[0]
	} else {
		var err error
		if token, err = getSecret(a.out, "Access token"); err != nil {
			return err
		}
	}

	a.session.SetToken(token)
	a.remote.SetAccessToken(a.session.Token())
	if a.dispatcher != nil {
		a.dispatcher.SetAccessToken(a.session.Token())
	}

	pctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := a.remote.Ping(pctx); err != nil {
		a.session.SetOnline(false)
		a.setMode(ModeOffline)
		return fmt.Errorf("remote store unreachable: %w", err)
	}
	a.session.SetOnline(true)
	a.setMode(ModeOnline)
	fmt.Fprintln(a.out, "Connected.")

	if a.catalog.Ready() {
		return a.Save(ctx, nil)
	}
	return nil
}

// RemoveFile deletes a remote attachment such as an uploaded image.
func (a *App) RemoveFile(ctx context.Context, args []string) error {
	if a.remote == nil {
		return fmt.Errorf("no remote store configured")
	}
	if len(args) != 1 {
		return errUsage("rmfile <path>")
	}
	if err := a.remote.Delete(ctx, args[0]); err != nil {
		return err
	}
	fmt.Fprintf(a.out, "Removed %s\n", args[0])
	return nil
}
