// cmd/asmforge/main.go
package main

import (
	"fmt"
	"log"
	"os"

	"asmforge/internal/commands"
)

const version = "0.1.0"

// commandAliases mirrors a reference CLI's single-letter shortcuts, adapted
// to this CLI's own command set.
var commandAliases = map[string]string{
	"b": "build",
	"w": "watch",
	"t": "trace",
	"r": "repl",
	"c": "conformance",
	"i": "init",
}

func main() {
	args := os.Args[1:]
	if len(args) == 0 {
		usage()
		return
	}

	cmd := args[0]
	if alias, ok := commandAliases[cmd]; ok {
		cmd = alias
	}
	rest := args[1:]

	if cmd == "--help" || cmd == "-h" || cmd == "help" {
		usage()
		return
	}
	if cmd == "--version" || cmd == "-v" || cmd == "version" {
		fmt.Printf("asmforge %s\n", version)
		return
	}

	var err error
	switch cmd {
	case "init":
		err = commands.InitCommand(rest)
	case "build":
		format := "elf64"
		var files []string
		for i := 0; i < len(rest); i++ {
			if rest[i] == "-f" && i+1 < len(rest) {
				format = rest[i+1]
				i++
				continue
			}
			files = append(files, rest[i])
		}
		err = commands.BuildCommand(files, format)
	case "watch":
		err = commands.WatchCommand(rest)
	case "trace":
		err = commands.TraceCommand(rest)
	case "repl":
		err = commands.ReplCommand(rest)
	case "clean":
		err = commands.CleanCommand(rest)
	case "conformance":
		err = commands.ConformanceCommand(rest)
	default:
		fmt.Printf("unknown command: %s\n", cmd)
		usage()
		os.Exit(1)
	}

	if err != nil {
		log.Fatalf("Error: %v", err)
	}
}

func usage() {
	fmt.Println(`asmforge - span-dependent assembler

Usage:
  asmforge <command> [arguments]

Commands:
  init [name]            scaffold a new project
  build [-f fmt] files   assemble one or more files (fmt: elf64, flat)
  watch file [addr]      serve build-progress over a websocket
  trace file             step through a built section's bytecodes
  repl                   interactive expression/symbol shell
  conformance            run the S1-S6 end-to-end scenario suite
  clean                  remove build artifacts
  version                print the version
  help                   show this message

Aliases: b=build w=watch t=trace r=repl c=conformance i=init`)
}
