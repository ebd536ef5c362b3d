package main

import (
	"os"

	"github.com/fatih/color"
	"golang.org/x/term"
)

// isTTY reports whether stdout is an interactive terminal.
func isTTY() bool {
	return term.IsTerminal(int(os.Stdout.Fd()))
}

var (
	green  = color.New(color.FgGreen).SprintFunc()
	yellow = color.New(color.FgYellow).SprintFunc()
	red    = color.New(color.FgRed).SprintFunc()
	cyan   = color.New(color.FgCyan).SprintFunc()
	gray   = color.New(color.FgHiBlack).SprintFunc()
	bold   = color.New(color.Bold).SprintFunc()
)

func init() {
	if !isTTY() {
		color.NoColor = true
	}
}

func errorText(msg string) string   { return red("error: " + msg) }
func warningText(msg string) string { return yellow("warning: " + msg) }
