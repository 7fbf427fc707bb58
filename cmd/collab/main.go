// Command collab is a terminal collaboration client, mainly for poking at a
// running server: it joins a dashboard room, prints the shared state, the
// roster and the live activity feed, and lets you publish filter changes.
package main

import (
	"bufio"
	"context"
	"flag"
	"fmt"
	"os"
	"strings"
	"time"

	"dashcollab/backend/internal/collabclient"
	"dashcollab/backend/internal/models"
)

func main() {
	server := flag.String("server", "http://localhost:8080", "server base URL")
	dashboard := flag.String("dashboard", "demo", "dashboard id to join")
	name := flag.String("name", "terminal-user", "display name")
	flag.Parse()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	session, err := collabclient.FetchSession(ctx, *server)
	cancel()
	if err != nil {
		fmt.Fprintf(os.Stderr, "session: %v\n", err)
		os.Exit(1)
	}

	wsURL := strings.Replace(*server, "http", "ws", 1)
	mgr := collabclient.New(wsURL, session.Token)
	defer mgr.Disconnect()

	mgr.OnStateUpdated(func(s models.DashboardState) {
		fmt.Printf("state: range=%s source=%s cards=%v drill=%v\n",
			s.SelectedDateRange, s.SelectedJourneySource, s.EnabledKpiCards, s.DrillDownPath)
	})
	mgr.OnUsersUpdated(func(users []models.User) {
		names := make([]string, 0, len(users))
		for _, u := range users {
			names = append(names, u.Name)
		}
		fmt.Printf("roster (%d): %s\n", len(users), strings.Join(names, ", "))
	})
	mgr.OnEvent(func(e models.CollaborationEvent) {
		fmt.Printf("event: %s by %s\n", e.Type, e.User.Name)
	})

	ctx, cancel = context.WithTimeout(context.Background(), 10*time.Second)
	err = mgr.Connect(ctx, models.User{ID: session.UserID, Name: *name}, *dashboard)
	cancel()
	if err != nil {
		fmt.Fprintf(os.Stderr, "connect: %v\n", err)
		os.Exit(1)
	}

	state := mgr.CurrentState()
	fmt.Printf("joined %q as %s (range=%s)\n", *dashboard, *name, state.SelectedDateRange)
	fmt.Println("commands: range <7d|30d|90d>, source <name>, quit")

	scanner := bufio.NewScanner(os.Stdin)
	for scanner.Scan() {
		fields := strings.Fields(scanner.Text())
		if len(fields) == 0 {
			continue
		}
		switch fields[0] {
		case "range":
			if len(fields) < 2 {
				fmt.Println("usage: range <value>")
				continue
			}
			publishFilter(mgr, "selectedDateRange", fields[1], func(p *models.StatePatch) {
				p.SelectedDateRange = &fields[1]
			})
		case "source":
			if len(fields) < 2 {
				fmt.Println("usage: source <value>")
				continue
			}
			publishFilter(mgr, "selectedJourneySource", fields[1], func(p *models.StatePatch) {
				p.SelectedJourneySource = &fields[1]
			})
		case "quit":
			return
		default:
			fmt.Printf("unknown command %q\n", fields[0])
		}
	}
}

func publishFilter(mgr *collabclient.Manager, filter, value string, apply func(*models.StatePatch)) {
	var patch models.StatePatch
	apply(&patch)

	payload, _ := models.EncodePayload(models.FilterChangePayload{Filter: filter, Value: value})
	mgr.PublishStateChange(patch, &models.CollaborationEvent{
		Type:    models.EventFilterChange,
		Payload: payload,
	})
}
