package commands

import (
	"fmt"
	"net/http"

	"asmforge/internal/diag"
	"asmforge/internal/gasparse"
	"asmforge/internal/lexer"
	"asmforge/internal/object"
	"asmforge/internal/watch"
)

// WatchCommand serves a websocket build-progress stream on addr,
// re-assembling path and broadcasting an Event whenever a client asks
// (real filesystem-change detection is a Non-goal here; this reproduces
// a reference WatchCommand's "serve until interrupted" shape, with the
// broadcast wired to a real assemble-and-report pass instead of a
// placeholder message).
func WatchCommand(args []string) error {
	if len(args) == 0 {
		return fmt.Errorf("watch: no input file")
	}
	path := args[0]
	addr := ":7777"
	if len(args) > 1 {
		addr = args[1]
	}

	srv := watch.NewServer()
	http.Handle("/watch", srv)
	http.HandleFunc("/rebuild", func(w http.ResponseWriter, r *http.Request) {
		rebuildAndBroadcast(srv, path)
	})

	fmt.Printf("watch: serving %s on %s (connect to /watch, POST /rebuild to trigger)\n", path, addr)
	return http.ListenAndServe(addr, nil)
}

func rebuildAndBroadcast(srv *watch.Server, path string) {
	obj := object.New(".text")
	engine := diag.NewEngine()
	src, err := readFileOrEmpty(path)
	if err != nil {
		srv.Broadcast(watch.Event{Kind: "diagnostic", Unit: path, Message: err.Error()})
		return
	}
	tokens := lexer.NewScanner(src).ScanTokens()
	p := gasparse.New(tokens, path, obj)
	p.Parse()
	for _, perr := range p.Errors {
		srv.Broadcast(watch.Event{Kind: "diagnostic", Unit: path, Message: perr.Error()})
	}
	obj.Build(0, engine)
	for _, d := range engine.Diagnostics() {
		srv.Broadcast(watch.Event{Kind: "diagnostic", Unit: path, Message: d.Error()})
	}
	for _, sec := range obj.Sections() {
		srv.Broadcast(watch.Event{Kind: "pass", Unit: path, SectionLen: sec.End - sec.Base})
	}
	srv.Broadcast(watch.Event{Kind: "done", Unit: path})
}
