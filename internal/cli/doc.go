// Package cli provides the interactive photodrop command-line client.
//
// The REPL is the presentation surface: it submits uploads to the pipeline,
// shows their notifications on the console, and lets the user browse the
// upload history, pick a target album and sign in or out. A background
// watcher reports history changes made by running jobs.
//
// The REPL is started via App.Run(ctx, in), which blocks until the user
// exits or in is exhausted. See runREPL for the command list.
package cli
