package main

import (
	"fmt"
	"os"
)

// Version is set at build time via ldflags
var Version = "dev"

const (
	daemonAddr = "http://127.0.0.1:7433"
	pidFile    = "dibitd.pid"
)

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	args := os.Args[2:]
	var err error
	switch os.Args[1] {
	case "init":
		err = cmdInit()
	case "config":
		err = cmdConfig()
	case "doctor":
		err = cmdDoctor()
	case "start":
		err = cmdStart()
	case "stop":
		err = cmdStop()
	case "status":
		err = cmdStatus()
	case "logs":
		err = cmdLogs(args)
	case "semesters":
		err = cmdSemesters()
	case "search":
		err = cmdSearch(args)
	case "add":
		err = cmdAdd(args)
	case "remove", "rm":
		err = cmdRemove(args)
	case "group":
		err = cmdGroup(args)
	case "move":
		err = cmdMove(args)
	case "color":
		err = cmdColor(args)
	case "category":
		err = cmdCategory(args)
	case "semester":
		err = cmdSetSemester(args)
	case "profile":
		err = cmdProfile(args)
	case "practiced":
		err = cmdPracticed(args)
	case "custom":
		err = cmdCustom(args)
	case "schedule":
		err = cmdSchedule(args)
	case "exams":
		err = cmdExams(args)
	case "prereq":
		err = cmdPrereq(args)
	case "rank":
		err = cmdRank(args)
	case "export":
		err = cmdExport(args)
	case "import":
		err = cmdImport(args)
	case "sync":
		err = cmdSync(args)
	case "prefetch":
		err = cmdPrefetch(args)
	case "dump":
		err = cmdDump(args)
	case "reset":
		err = cmdReset(args)
	case "history":
		err = cmdHistory(args)
	case "mcp":
		err = cmdMCP(args)
	case "help", "-h", "--help":
		printUsage()
	case "version", "-v", "--version":
		fmt.Printf("dibit %s\n", Version)
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n\n", os.Args[1])
		printUsage()
		os.Exit(1)
	}

	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func printUsage() {
	fmt.Println(`Dib It - Course schedule planner for Tel Aviv University

Usage:
  dibit <command> [arguments]

Most commands accept -s <semester> (e.g. 2024a); the default is the
semester you are viewing, else the current one.

Setup Commands:
  init                          Initialize Dib It (first-time setup)
  config                        Show current configuration
  doctor                        Check catalog, storage and services

Daemon Commands:
  start                         Start the Dib It daemon
  stop                          Stop the Dib It daemon
  status                        Show daemon status
  logs [-n N] [--level L]       View daemon logs

Catalog Commands:
  semesters                     List semesters
  search <query>                Search courses by ID or name
  prefetch [--queue] [sem...]   Warm the catalog cache

Selection Commands:
  add <course>                  Select a course
  remove <course>               Deselect a course
  group <course> <group>        Toggle a group of a selected course
  move <course> up|down         Reorder a selected course
  color <course> [#rrggbb]      Set or clear a course color
  category <course> <name>      Set the study plan category
  semester <semester>           Switch the viewed semester
  profile <school> <plan> <year>  Set school, study plan and start year
  practiced <course> <sem> <moed>  Toggle a practiced past exam
  custom add <name> <file>      Add a custom course catalog
  custom remove <name>          Remove a custom course catalog

View Commands:
  schedule                      Show the weekly schedule
  exams                         Show the exam timeline
  prereq                        Check prerequisites
  rank <course...>              Rank courses by distance from selected exams

Data Commands:
  export ics|xlsx|json [-o file]  Export calendar, spreadsheet or document
  import <file>                 Replace the selection with a document
  sync save|restore [--user id] Cloud save and restore
  dump [--backup KEY]           Print the stored document or a backup
  reset --yes                   Clear the selection
  history [-n count]            Show stored revisions (sqlite storage)

Integration Commands:
  mcp [--http addr]             Start MCP server

Other:
  help                          Show this help message
  version                       Show version information

Examples:
  dibit add 0368-2157           # Select Algorithms
  dibit group 0368-2157 01      # Pick group 01
  dibit schedule -s 2024b       # Weekly grid of 2024b
  dibit export ics -o tau.ics   # Calendar for your phone`)
}
