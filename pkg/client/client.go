// Package client implements the interactive shell supervisors use at the
// dock: list and edit sheets, inspect the pending queue, force a sync.
package client

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"sort"
	"strings"

	"github.com/chzyer/readline"
	"github.com/warestage/loadsheet-client/pkg/connectivity"
	"github.com/warestage/loadsheet-client/pkg/services"
	"github.com/warestage/loadsheet-client/pkg/syncer"
	"github.com/warestage/loadsheet-client/pkg/syncinfo"
)

type Shell struct {
	rl      *readline.Instance
	svc     *services.Services
	engine  *syncer.Engine
	monitor *connectivity.Monitor
	info    *syncinfo.SyncManager
}

func NewShell(svc *services.Services, engine *syncer.Engine, monitor *connectivity.Monitor,
	info *syncinfo.SyncManager) (*Shell, error) {
	rl, err := readline.New("loadsheet> ")
	if err != nil {
		return nil, err
	}
	return &Shell{
		rl:      rl,
		svc:     svc,
		engine:  engine,
		monitor: monitor,
		info:    info,
	}, nil
}

func (s *Shell) Close() {
	s.rl.Close()
}

// Start reads commands until exit or EOF.
func (s *Shell) Start(ctx context.Context) {
	s.printHelp()
	for {
		line, err := s.rl.Readline()
		if err != nil {
			if errors.Is(err, readline.ErrInterrupt) {
				continue
			}
			if errors.Is(err, io.EOF) {
				return
			}
			fmt.Println("read error:", err)
			return
		}

		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		if line == "exit" || line == "quit" {
			return
		}
		s.dispatch(ctx, line)
	}
}

func (s *Shell) dispatch(ctx context.Context, line string) {
	fields := strings.Fields(line)
	switch fields[0] {
	case "help":
		s.printHelp()
	case "list":
		if len(fields) != 2 {
			fmt.Println("usage: list <collection>")
			return
		}
		s.list(ctx, fields[1])
	case "show":
		if len(fields) != 3 {
			fmt.Println("usage: show <collection> <id>")
			return
		}
		s.show(ctx, fields[1], fields[2])
	case "create":
		parts := strings.SplitN(line, " ", 3)
		if len(parts) != 3 {
			fmt.Println("usage: create <collection> <json>")
			return
		}
		s.create(ctx, parts[1], parts[2])
	case "update":
		parts := strings.SplitN(line, " ", 4)
		if len(parts) != 4 {
			fmt.Println("usage: update <collection> <id> <json>")
			return
		}
		s.update(ctx, parts[1], parts[2], parts[3])
	case "delete":
		if len(fields) != 3 {
			fmt.Println("usage: delete <collection> <id>")
			return
		}
		if err := s.svc.DeleteRecord(ctx, fields[1], fields[2]); err != nil {
			fmt.Println("delete failed:", err)
			return
		}
		fmt.Println("Deleted.")
	case "user":
		parts := strings.SplitN(line, " ", 3)
		if len(parts) != 3 {
			fmt.Println("usage: user <id> <json>")
			return
		}
		if !json.Valid([]byte(parts[2])) {
			fmt.Println("invalid JSON")
			return
		}
		if err := s.svc.UpdateUser(ctx, parts[1], json.RawMessage(parts[2])); err != nil {
			fmt.Println("update failed:", err)
			return
		}
		fmt.Println("User updated.")
	case "queue":
		s.queue(ctx)
	case "sync":
		s.engine.TriggerSync()
		fmt.Println("Sync requested.")
	case "status":
		s.status(ctx)
	default:
		fmt.Printf("unknown command %q; try help\n", fields[0])
	}
}

func (s *Shell) printHelp() {
	fmt.Println(`Commands:
  list <collection>                 list rows (e.g. list sheets)
  show <collection> <id>            print one row
  create <collection> <json>        create a row
  update <collection> <id> <json>   replace a row
  delete <collection> <id>          delete a row
  user <id> <json>                  update a user row
  queue                             show pending offline mutations
  sync                              trigger a sync pass
  status                            connectivity, queue depth, last sync
  exit`)
}

func (s *Shell) list(ctx context.Context, collection string) {
	rows, err := s.svc.ListRecords(ctx, collection)
	if err != nil {
		fmt.Println("list failed:", err)
		return
	}
	if len(rows) == 0 {
		fmt.Println("(empty)")
		return
	}
	ids := make([]string, 0, len(rows))
	for id := range rows {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	for _, id := range ids {
		fmt.Printf("%s  %s\n", id, compact(rows[id]))
	}
}

func (s *Shell) show(ctx context.Context, collection, id string) {
	rows, err := s.svc.ListRecords(ctx, collection)
	if err != nil {
		fmt.Println("show failed:", err)
		return
	}
	data, ok := rows[id]
	if !ok {
		fmt.Println("not found")
		return
	}
	var pretty map[string]interface{}
	if err := json.Unmarshal(data, &pretty); err == nil {
		out, _ := json.MarshalIndent(pretty, "", "  ")
		fmt.Println(string(out))
		return
	}
	fmt.Println(string(data))
}

func (s *Shell) create(ctx context.Context, collection, payload string) {
	if !json.Valid([]byte(payload)) {
		fmt.Println("invalid JSON")
		return
	}
	id, err := s.svc.CreateRecord(ctx, collection, json.RawMessage(payload))
	if err != nil {
		fmt.Println("create failed:", err)
		return
	}
	fmt.Println("Created", id)
}

func (s *Shell) update(ctx context.Context, collection, id, payload string) {
	if !json.Valid([]byte(payload)) {
		fmt.Println("invalid JSON")
		return
	}
	if err := s.svc.UpdateRecord(ctx, collection, id, json.RawMessage(payload)); err != nil {
		fmt.Println("update failed:", err)
		return
	}
	fmt.Println("Updated.")
}

func (s *Shell) queue(ctx context.Context) {
	pending, err := s.svc.Pending(ctx)
	if err != nil {
		fmt.Println("queue read failed:", err)
		return
	}
	if len(pending) == 0 {
		fmt.Println("queue is empty")
		return
	}
	for _, m := range pending {
		fmt.Printf("%s  %-40s enqueued %s  retries %d\n",
			m.ID, m.Describe(), m.EnqueuedAt.Format("2006-01-02 15:04:05"), m.RetryCount)
	}
}

func (s *Shell) status(ctx context.Context) {
	if s.monitor.Online() {
		fmt.Println("connectivity: online")
	} else {
		fmt.Println("connectivity: offline")
	}

	count, err := s.svc.PendingCount(ctx)
	if err != nil {
		fmt.Println("queue depth: unknown:", err)
	} else {
		fmt.Println("queue depth:", count)
	}

	last := s.info.GetSyncInfo().LastSync
	if last.IsZero() {
		fmt.Println("last sync: never")
	} else {
		fmt.Println("last sync:", last.Format("2006-01-02 15:04:05 MST"))
	}
}

func compact(data json.RawMessage) string {
	if len(data) > 80 {
		return string(data[:77]) + "..."
	}
	return string(data)
}
