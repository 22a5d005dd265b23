// chatcli is a terminal client for one conversation: it logs in, opens a
// session against the REST gateway with the websocket feed for push
// updates, and mirrors the room in the terminal.
package main

import (
	"bufio"
	"context"
	"flag"
	"fmt"
	"log"
	"mime"
	"os"
	"path/filepath"
	"strings"

	"github.com/jonboulle/clockwork"

	"StudioDesk/server/internal/gateway"
	"StudioDesk/server/internal/models"
	"StudioDesk/server/internal/session"
)

func main() {
	server := flag.String("server", "http://localhost:8080", "server base URL")
	email := flag.String("email", "", "login email")
	password := flag.String("password", "", "login password")
	room := flag.String("room", "", "room key, e.g. project-7 or dm-10-20")
	flag.Parse()

	if *email == "" || *password == "" || *room == "" {
		fmt.Fprintln(os.Stderr, "usage: chatcli -email ... -password ... -room ...")
		os.Exit(1)
	}

	ctx := context.Background()

	gw := gateway.NewHTTPGateway(*server, "")
	if err := gw.Login(ctx, *email, *password); err != nil {
		log.Fatalf("Login failed: %v", err)
	}

	var me models.User
	if err := fetchProfile(ctx, gw, &me); err != nil {
		log.Fatalf("Failed to load profile: %v", err)
	}

	feed, err := gateway.DialFeed(*server, gw.Token)
	if err != nil {
		log.Printf("Push feed unavailable, polling only: %v", err)
	}

	var sessionFeed session.Feed
	if feed != nil {
		defer feed.Close()
		sessionFeed = feed
	}

	ctrl := session.NewController(*room, models.Identity{ID: me.ID, Name: me.Username},
		gw, sessionFeed, clockwork.NewRealClock())
	ctrl.SetOnUpdate(func() { render(ctrl, me.ID) })

	if err := ctrl.Open(ctx); err != nil {
		log.Fatalf("Failed to open session: %v", err)
	}
	defer ctrl.Close()

	fmt.Printf("Connected to %s as %s. Type a message, /file <path>, or /quit.\n", *room, me.Username)

	scanner := bufio.NewScanner(os.Stdin)
	for scanner.Scan() {
		line := scanner.Text()
		switch {
		case line == "/quit":
			return
		case strings.HasPrefix(line, "/file "):
			path := strings.TrimSpace(strings.TrimPrefix(line, "/file "))
			if err := sendFile(ctx, ctrl, path); err != nil {
				fmt.Printf("! %v\n", err)
			}
		default:
			if feed != nil {
				feed.SendTyping(*room, false)
			}
			if _, err := ctrl.Send(ctx, line); err != nil {
				fmt.Printf("! send failed: %v (text kept: %q)\n", err, ctrl.Input())
			}
		}
	}
}

func sendFile(ctx context.Context, ctrl *session.Controller, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	name := filepath.Base(path)
	mimeType := mime.TypeByExtension(filepath.Ext(path))
	if mimeType == "" {
		mimeType = "application/octet-stream"
	}
	_, err = ctrl.SendFile(ctx, name, mimeType, data, "")
	return err
}

func fetchProfile(ctx context.Context, gw *gateway.HTTPGateway, out *models.User) error {
	return gw.Get(ctx, "/api/profile", out)
}

func render(ctrl *session.Controller, viewerID int) {
	fmt.Print("\033[H\033[2J")
	for _, group := range session.GroupByDay(ctrl.Messages()) {
		fmt.Printf("--- %s ---\n", group.Day.Format("Mon, 02 Jan 2006"))
		for _, msg := range group.Messages {
			marker := ""
			if msg.Edited {
				marker = " (edited)"
			}
			who := msg.SenderName
			if msg.SenderID == viewerID {
				who = "you"
			}
			body := msg.Body
			if msg.Kind == models.KindTaskTag {
				body = "🔗 " + body
			}
			fmt.Printf("[%s] %s: %s%s\n", msg.Timestamp.Format("15:04"), who, body, marker)
		}
	}
	if name := ctrl.TypingUser(); name != "" {
		fmt.Printf("%s is typing...\n", name)
	}
	fmt.Print("> ")
}
