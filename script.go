package main

import (
	"bufio"
	"fmt"
	"io"
	"math"
	"os"
	"strconv"
	"strings"
	"time"

	"askocr/cancel"
	"askocr/helper"
	"askocr/hotkey"
	"askocr/log"
)

// runScript drives the App from line commands on stdin, one per line. It
// exists for integration tests and shell automation:
//
//	TAP | KEYDOWN | KEYUP     simulate the capture hotkey
//	SNIP | SELECTION | CHECK  start an operation
//	TRANSCRIBE <file>         start a transcription
//	PULL <model>              pull an Ollama model
//	PLAY <file> | PAUSE | RESUME | STOP | VOLUME <0-2>
//	CANCEL [class]            cancel one class, or everything
//	WAIT                      wait for running operations
//	WAIT_ENDED                wait for playback to finish
//	SLEEP <ms>
//	QUIT
func runScript(e *env, _ []string) int {
	return e.script(os.Stdin)
}

func (e *env) script(in io.Reader) int {
	hk := hotkey.NewFake()
	trig := hotkey.NewTrigger(hk, holdAfter, 0)
	defer trig.Close()

	lines := make(chan string)
	done := make(chan struct{})
	defer close(done)
	go func() {
		defer close(lines)
		sc := bufio.NewScanner(in)
		for sc.Scan() {
			select {
			case lines <- strings.TrimSpace(sc.Text()):
			case <-done:
				return
			}
		}
	}()

	// Gestures already produced run before the next line is read.
	drain := func() {
		for {
			select {
			case g := <-trig.Gestures():
				e.app.HandleGesture(e.ctx, g)
			default:
				return
			}
		}
	}

	for {
		drain()
		var line string
		select {
		case l, ok := <-lines:
			if !ok {
				return e.wait()
			}
			line = l
		case g := <-trig.Gestures():
			e.app.HandleGesture(e.ctx, g)
			continue
		case <-e.ctx.Done():
			e.app.CancelAll()
			return 130
		}
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		name, arg, _ := strings.Cut(line, " ")
		arg = strings.TrimSpace(arg)
		log.Debugf("script: %s", line)

		switch strings.ToUpper(name) {
		case "TAP":
			hk.SimTap()
		case "KEYDOWN":
			hk.SimKeydown()
		case "KEYUP":
			hk.SimKeyup()
		case "SNIP":
			e.app.Snip(e.ctx)
		case "SELECTION":
			e.app.Selection(e.ctx)
		case "CHECK":
			e.app.CheckModels(e.ctx)
		case "TRANSCRIBE":
			e.app.Transcribe(e.ctx, arg, helper.TranscribeOptions{Model: e.opts.whisper, Format: e.opts.format, Language: e.opts.lang})
		case "PULL":
			e.app.PullModel(e.ctx, arg)
		case "PLAY":
			e.app.Play(arg)
		case "PAUSE":
			e.app.Pause()
		case "RESUME":
			e.app.Resume()
		case "STOP":
			e.app.Stop()
		case "VOLUME":
			v, err := strconv.ParseFloat(arg, 32)
			if err != nil || math.IsNaN(v) || v < 0 || v > 2 {
				fmt.Fprintf(e.stderr, "script: bad volume %q\n", arg)
				continue
			}
			e.app.SetVolume(float32(v))
		case "CANCEL":
			if arg == "" {
				e.app.CancelAll()
			} else {
				e.app.CancelClass(cancel.Class(arg))
			}
		case "WAIT":
			if code := e.wait(); code == 130 {
				return code
			}
		case "WAIT_ENDED":
			select {
			case <-e.out.Ended():
			case <-e.ctx.Done():
				return 130
			}
		case "SLEEP":
			ms, err := strconv.Atoi(arg)
			if err != nil {
				fmt.Fprintf(e.stderr, "script: bad duration %q\n", arg)
				continue
			}
			select {
			case <-time.After(time.Duration(ms) * time.Millisecond):
			case <-e.ctx.Done():
				return 130
			}
		case "QUIT":
			return e.wait()
		default:
			fmt.Fprintf(e.stderr, "script: unknown command %q\n", name)
		}
	}
}
