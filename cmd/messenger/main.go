// Package main runs one messenger identity from the terminal: it connects
// chat and video, optionally starts or joins a call, and prints state
// changes until interrupted.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/jrsteele09/go-realtime-core/calls"
	"github.com/jrsteele09/go-realtime-core/chat"
	"github.com/jrsteele09/go-realtime-core/identity"
	"github.com/jrsteele09/go-realtime-core/internal/config"
	"github.com/jrsteele09/go-realtime-core/internal/logx"
	"github.com/jrsteele09/go-realtime-core/realtime"
	"github.com/jrsteele09/go-realtime-core/realtime/fake"
	"github.com/jrsteele09/go-realtime-core/realtime/wschat"
	"github.com/jrsteele09/go-realtime-core/session"
	"github.com/jrsteele09/go-realtime-core/tokenclient"
)

type options struct {
	server  string
	user    string
	name    string
	ws      string
	offline bool
	call    string
	join    string
	origin  string
}

func main() {
	var opts options
	flag.StringVar(&opts.server, "server", "http://localhost:8080", "token service base URL")
	flag.StringVar(&opts.user, "user", "", "identity id (required)")
	flag.StringVar(&opts.name, "name", "", "display name")
	flag.StringVar(&opts.ws, "ws", "", "chat websocket URL (default: in-memory chat)")
	flag.BoolVar(&opts.offline, "offline", false, "use in-memory backends and static credentials")
	flag.StringVar(&opts.call, "call", "", "start a call, ringing this identity id")
	flag.StringVar(&opts.join, "join", "", "join the call in this invite link")
	flag.StringVar(&opts.origin, "origin", "http://localhost:3000", "origin used for printed invite links")
	flag.Parse()

	if opts.user == "" {
		fmt.Fprintln(os.Stderr, "Error: -user is required")
		flag.Usage()
		os.Exit(2)
	}

	c, err := config.New()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	logx.Setup(c.GetEnv(), c.GetLogLevel())

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if err := run(ctx, c, opts); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, c config.Config, opts options) error {
	registry, err := session.NewRegistry(deps(c, opts))
	if err != nil {
		return err
	}
	ctx = session.WithRegistry(ctx, registry)

	me := identity.Identity{ID: opts.user, DisplayName: opts.name}
	s, err := registry.Open(me)
	if err != nil {
		return err
	}
	defer func() {
		if err := registry.CloseAll(context.Background()); err != nil {
			fmt.Fprintf(os.Stderr, "Close: %v\n", err)
		}
	}()

	s.Chat.Subscribe(func(snap chat.Snapshot) {
		fmt.Printf("chat: %s (retries %d)\n", snap.State, snap.RetryCount)
	})
	s.Calls.Subscribe(func(cs calls.Session) {
		fmt.Printf("call: %s %s participants=%d\n", cs.State, cs.ID, len(cs.Participants))
		if cs.State == calls.Ringing {
			fmt.Printf("incoming call from %s\n", cs.Caller.Name())
		}
	})

	if err := s.Connect(ctx); err != nil {
		fmt.Printf("connect: %s\n", s.Chat.Status().Message)
	}

	switch {
	case opts.join != "":
		if err := s.Calls.JoinLink(ctx, opts.join); err != nil {
			return fmt.Errorf("join: %w", err)
		}
	case opts.call != "":
		if err := s.Calls.Start(ctx, &identity.Identity{ID: opts.call}); err != nil {
			return fmt.Errorf("call: %w", err)
		}
	}
	if link, err := s.Calls.InviteLink(opts.origin); err == nil {
		fmt.Printf("invite: %s\n", link)
	}

	<-ctx.Done()
	return nil
}

// deps wires the token client unless running offline. The video backend is
// always in-memory; there is no network video transport in this module.
func deps(c config.Config, opts options) session.Deps {
	d := session.Deps{
		NewChat: func(identity.Identity) realtime.ChatBackend {
			if opts.ws != "" {
				return wschat.New(opts.ws)
			}
			return fake.NewChat()
		},
		NewVideo: func(identity.Identity) realtime.VideoBackend {
			return fake.NewVideo()
		},
		Config: c,
	}

	if opts.offline {
		static := func(identity.Identity) realtime.CredentialProvider {
			return func(context.Context) (string, error) { return "offline", nil }
		}
		d.ChatCredentials, d.VideoCredentials = static, static
		return d
	}

	d.ChatCredentials = func(id identity.Identity) realtime.CredentialProvider {
		return tokenclient.Provider(tokenclient.New(opts.server, tokenclient.WithIdentity(id)).ChatSource())
	}
	d.VideoCredentials = func(id identity.Identity) realtime.CredentialProvider {
		return tokenclient.Provider(tokenclient.New(opts.server, tokenclient.WithIdentity(id)).VideoSource(id.ID))
	}
	return d
}
