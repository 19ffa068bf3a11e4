package main

import (
	"bufio"
	"context"
	"fmt"
	"mime"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/dkovac/brim/internal/auth"
	"github.com/dkovac/brim/internal/composer"
	"github.com/dkovac/brim/internal/controller"
	"github.com/dkovac/brim/internal/grouping"
	"github.com/dkovac/brim/internal/logstore"
	"github.com/dkovac/brim/internal/stream"
)

var chatCmd = &cobra.Command{
	Use:   "chat",
	Short: "Join the room and chat interactively",
	RunE:  runChat,
}

func runChat(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	log := newLogger(cfg.LogLevel)
	defer log.Sync()

	store, err := openIdentityStore(cfg, log)
	if err != nil {
		return err
	}
	defer store.Close()

	var room logstore.Log
	if cfg.OfflineMode {
		room = logstore.NewMemory()
	} else {
		room = logstore.NewWSLog(cfg.LogAddr, cfg.Room, cfg.AuthToken, log)
	}

	session := auth.NewSession(auth.ProviderFor(cfg.AuthToken, store), log)
	str := stream.New(room, log)
	ctrl := controller.New(session, store, str, cfg.Location(), log)
	comp := composer.New(room, ctrl, log)

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	ctrl.OnRender(func() { render(ctrl.Snapshot(), cfg.Location()) })
	ctrl.Start(ctx)
	defer str.Stop()

	view := ctrl.Snapshot()
	if view.State == controller.StateDegraded {
		// degraded: error already rendered, keep the process up so the
		// failure is readable, but there is nothing to type into
		<-ctx.Done()
		return nil
	}

	fmt.Println("commands: /name, /attach <file>, /clear, /cancel, /quit")

	scanner := bufio.NewScanner(os.Stdin)
	for scanner.Scan() {
		if ctx.Err() != nil {
			break
		}
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}

		if ctrl.Snapshot().Editing {
			handleEditInput(ctrl, line)
			continue
		}

		switch {
		case line == "/quit":
			return nil

		case line == "/name":
			ctrl.BeginEdit()
			fmt.Println("type a new display name, or /cancel")

		case strings.HasPrefix(line, "/attach "):
			path := strings.TrimSpace(strings.TrimPrefix(line, "/attach "))
			mediaType := mime.TypeByExtension(filepath.Ext(path))
			att := comp.Stage(filepath.Base(path), mediaType)
			fmt.Printf("staged %s attachment: %s\n", att.Kind, att.FileName)

		case line == "/clear":
			comp.ClearAttachment()
			fmt.Println("attachment cleared")

		default:
			sctx, scancel := context.WithTimeout(ctx, 20*time.Second)
			err := comp.Submit(sctx, line)
			scancel()
			if err != nil {
				ctrl.ReportError(err)
			} else {
				ctrl.ClearError()
			}
		}
	}
	return scanner.Err()
}

func handleEditInput(ctrl *controller.Controller, line string) {
	if line == "/cancel" {
		ctrl.CancelEdit()
		fmt.Println("kept previous name")
		return
	}
	ctrl.SetEditBuffer(line)
	if err := ctrl.SaveEdit(); err != nil {
		fmt.Println("name not saved; still editing (/cancel to stop)")
	}
}

// render repaints the whole view. Groups arrive fresh on every snapshot.
func render(view controller.View, loc *time.Location) {
	fmt.Print("\033[2J\033[H")

	switch view.State {
	case controller.StateLoading:
		fmt.Println("connecting…")
	case controller.StateDegraded:
		fmt.Printf("sign-in failed: %s\n", view.Err)
		return
	}

	if view.Identity.UserID != "" {
		fmt.Printf("— %s —\n", view.Identity.DisplayName)
	}

	now := time.Now()
	for _, g := range view.Groups {
		fmt.Printf("· %s\n", grouping.Label(g.DateKey, now, loc))
		for _, m := range g.Messages {
			body := ""
			if m.Text != nil {
				body = *m.Text
			}
			if m.Attachment != nil {
				label := fmt.Sprintf("[%s: %s]", m.Attachment.Kind, m.Attachment.FileName)
				if body != "" {
					body += " " + label
				} else {
					body = label
				}
			}
			fmt.Printf("  %s: %s\n", m.AuthorName, body)
		}
	}

	if view.Err != "" {
		fmt.Printf("! %s\n", view.Err)
	}
	if view.Editing {
		fmt.Printf("editing name [%s]> ", view.EditBuffer)
	} else {
		fmt.Print("> ")
	}
}
