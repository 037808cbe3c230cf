package main

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sort"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/tidwall/gjson"

	"askocr/audio"
	"askocr/cancel"
	"askocr/clipboard"
	"askocr/events"
	"askocr/hotkey"
	"askocr/log"
)

type eventMsg events.Event
type noticeMsg string
type tickMsg time.Time

type uiModel struct {
	ctx    context.Context
	app    *App
	bus    *events.Bus
	volume float32

	frame         int
	width, height int
	progress      map[string]events.Progress
	running       int
	results       int
	last          events.Result
	lastText      string
	copied        bool
	player        audio.State
	notice        string
	hotkeyLine    string
}

var (
	pixelColorsBusy = []string{"", "226", "220", "214", "208", "196", "160", "124", "88", "52", "236", "236", "236", "236", "255", "249"}
	pixelColorsIdle = []string{"", "231", "224", "217", "210", "160", "124", "88", "52", "236", "236", "236", "236", "236", "255", "249"}
	pixelStylesBusy [16]lipgloss.Style
	pixelStylesIdle [16]lipgloss.Style
	pixelBgBusy     [16][16]lipgloss.Style
	pixelBgIdle     [16][16]lipgloss.Style
)

func init() {
	buildStyles(pixelColorsBusy, &pixelStylesBusy, &pixelBgBusy)
	buildStyles(pixelColorsIdle, &pixelStylesIdle, &pixelBgIdle)
}

func buildStyles(colors []string, fg *[16]lipgloss.Style, bg *[16][16]lipgloss.Style) {
	for i, c := range colors {
		if c == "" {
			continue
		}
		fg[i] = lipgloss.NewStyle().Foreground(lipgloss.Color(c))
		for j, b := range colors {
			if b != "" {
				bg[i][j] = lipgloss.NewStyle().Foreground(lipgloss.Color(c)).Background(lipgloss.Color(b))
			}
		}
	}
}

var (
	dimStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("241"))
	helpStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("239"))
	keyStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("239")).Bold(true)
	textStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("4"))
	errStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("196"))
	okStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("42"))
	activeStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("208")).Bold(true)
)

// runUI drives the App from an interactive terminal. An optional argument
// is loaded into the player.
func runUI(e *env, args []string) int {
	if !isTerminal(e.stdout) {
		fmt.Fprintln(e.stderr, "Error: the interactive UI needs a terminal; see askocr -h for one-shot commands")
		return 1
	}

	m := newUIModel(e.ctx, e.app, e.bus, e.cfg.Audio.Volume)

	// Gesture notices wait until the program exists.
	var p *tea.Program
	ready := make(chan struct{})
	notify := func(s string) {
		<-ready
		p.Send(noticeMsg(s))
	}
	if e.cfg.Hotkey.Enabled {
		stop, err := startHotkey(e.ctx, e.app, notify)
		if err != nil {
			log.Warnf("hotkey unavailable: %v", err)
			m.hotkeyLine = "hotkey unavailable: " + err.Error()
		} else {
			defer stop()
			m.hotkeyLine = hotkey.Combo + " tap: snip, hold: selection"
		}
	}
	p = tea.NewProgram(m, tea.WithAltScreen(), tea.WithContext(e.ctx), tea.WithOutput(e.stdout))
	close(ready)

	if len(args) > 0 {
		e.app.Play(args[0])
	}

	if _, err := p.Run(); err != nil {
		if errors.Is(err, tea.ErrProgramKilled) {
			return 130
		}
		fmt.Fprintf(e.stderr, "Error: %v\n", err)
		return 1
	}
	return 0
}

// startHotkey registers the global capture hotkey and turns its gestures
// into App actions.
func startHotkey(ctx context.Context, app *App, notify func(string)) (func(), error) {
	hk := hotkey.New()
	if err := hk.Register(); err != nil {
		return nil, err
	}
	trig := hotkey.NewTrigger(hk, holdAfter, cooldown)
	go func() {
		for g := range trig.Gestures() {
			log.Debugf("hotkey %s", g)
			if app.HandleGesture(ctx, g) == "" {
				notify("capture cancelled")
			}
		}
	}()
	return func() {
		trig.Close()
		hk.Unregister()
	}, nil
}

func newUIModel(ctx context.Context, app *App, bus *events.Bus, volume float32) uiModel {
	return uiModel{
		ctx:      ctx,
		app:      app,
		bus:      bus,
		volume:   volume,
		progress: make(map[string]events.Progress),
	}
}

func uiTick() tea.Cmd {
	return tea.Tick(60*time.Millisecond, func(t time.Time) tea.Msg {
		return tickMsg(t)
	})
}

// waitEvent reads the next event off the bus. The UI re-arms it after each
// event so the bus is drained by the program's goroutine alone.
func waitEvent(bus *events.Bus) tea.Cmd {
	return func() tea.Msg {
		select {
		case ev := <-bus.Events():
			return eventMsg(ev)
		case <-bus.Done():
			return nil
		}
	}
}

func (m uiModel) Init() tea.Cmd {
	return tea.Batch(uiTick(), waitEvent(m.bus))
}

func (m uiModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height

	case tea.KeyMsg:
		return m.key(msg.String())

	case tickMsg:
		m.frame++
		m.running = 0
		for _, c := range cancel.Classes {
			m.running += len(m.app.Running(c))
		}
		return m, uiTick()

	case noticeMsg:
		m.notice = string(msg)

	case eventMsg:
		m = m.event(events.Event(msg))
		return m, waitEvent(m.bus)
	}
	return m, nil
}

func (m uiModel) key(k string) (tea.Model, tea.Cmd) {
	switch k {
	case "q", "ctrl+c":
		return m, tea.Quit
	case "s":
		m.app.Snip(m.ctx)
		m.notice = "select a region..."
	case "t":
		m.app.Selection(m.ctx)
	case "c":
		m.app.CheckModels(m.ctx)
	case "x":
		m.notice = fmt.Sprintf("cancelled %d operation(s)", m.app.CancelAll())
	case "y":
		if m.lastText == "" {
			break
		}
		if err := clipboard.Copy(m.lastText); err != nil {
			m.notice = "copy failed: " + err.Error()
		} else {
			m.copied = true
		}
	case " ":
		if m.player.Paused {
			m.app.Resume()
		} else {
			m.app.Pause()
		}
	case "+", "=":
		m.volume = min(m.volume+0.1, 2)
		m.app.SetVolume(m.volume)
	case "-":
		m.volume = max(m.volume-0.1, 0)
		m.app.SetVolume(m.volume)
	case "left":
		m.app.Seek(0)
	}
	return m, nil
}

func (m uiModel) event(ev events.Event) uiModel {
	switch v := ev.Payload.(type) {
	case events.Progress:
		if v.Done || v.Error != "" {
			delete(m.progress, v.Operation)
			if v.Error != "" {
				m.notice = v.Operation + ": " + v.Error
			}
		} else {
			m.progress[v.Operation] = v
		}
	case events.Result:
		m.results++
		m.last = v
		m.lastText = resultText(v)
		m.copied = false
		m.notice = ""
	case audio.State:
		if v.Error != "" {
			m.notice = "player: " + v.Error
		}
		switch {
		case v.Command == "ended" || v.Command == "stop":
			v.Path = ""
		case v.Path == "" || v.Error != "":
			v.Path = m.player.Path
		}
		m.player = v
	}
	return m
}

// resultText picks the human-readable part of a result payload.
func resultText(r events.Result) string {
	if !r.Success {
		return r.Error
	}
	for _, path := range []string{"text", "full_text", "command", "output_path", "installer", "model"} {
		if v := gjson.GetBytes(r.Payload, path); v.Exists() && v.String() != "" {
			return v.String()
		}
	}
	if files := gjson.GetBytes(r.Payload, "files"); files.IsArray() {
		return fmt.Sprintf("downloaded %d file(s)", len(files.Array()))
	}
	if out := gjson.GetBytes(r.Payload, "output"); out.String() != "" {
		return lastLine(out.String())
	}
	if img := gjson.GetBytes(r.Payload, "image_data"); img.Exists() {
		return fmt.Sprintf("captured image (%s data URL)", formatBytes(uint64(len(img.String()))))
	}
	return string(r.Payload)
}

func lastLine(s string) string {
	if i := strings.LastIndexByte(s, '\n'); i >= 0 {
		return s[i+1:]
	}
	return s
}

// level is the mean progress of the downloads in flight, in [0, 1].
func (m uiModel) level() float64 {
	if len(m.progress) == 0 {
		return 0
	}
	var sum float64
	for _, p := range m.progress {
		sum += p.Percent
	}
	return sum / float64(len(m.progress)) / 100
}

func (m uiModel) View() string {
	if m.width == 0 || m.height == 0 {
		return "Loading..."
	}

	const eyeWidth = 45
	busy := m.running > 0 || len(m.progress) > 0
	eye := renderEye(m.frame, m.level(), busy)

	var info []string
	if busy {
		info = append(info, activeStyle.Render(fmt.Sprintf("● %d running", max(m.running, len(m.progress)))))
	} else {
		info = append(info, dimStyle.Render("○ IDLE"))
	}
	info = append(info, dimStyle.Render(m.playerLine()))
	if m.hotkeyLine != "" {
		info = append(info, dimStyle.Render(m.hotkeyLine))
	}
	if m.notice != "" {
		info = append(info, errStyle.Render(m.notice))
	}
	info = append(info, "")
	info = append(info,
		keyStyle.Render("s")+helpStyle.Render(" snip  ")+keyStyle.Render("t")+helpStyle.Render(" selection  ")+keyStyle.Render("c")+helpStyle.Render(" models"),
		keyStyle.Render("x")+helpStyle.Render(" cancel  ")+keyStyle.Render("y")+helpStyle.Render(" copy  ")+keyStyle.Render("q")+helpStyle.Render(" quit"),
		keyStyle.Render("space")+helpStyle.Render(" pause  ")+keyStyle.Render("+/-")+helpStyle.Render(" volume"),
		helpStyle.Render("askocr "+version),
	)
	for _, line := range info {
		eye += line + "\n"
	}
	eyeLines := strings.Split(eye, "\n")

	panelWidth := max(m.width-eyeWidth-1, 20)
	wrapWidth := max(panelWidth-2, 10)

	var panel strings.Builder
	for _, name := range sortedKeys(m.progress) {
		panel.WriteString(progressBar(m.progress[name], wrapWidth) + "\n")
	}
	if len(m.progress) > 0 {
		panel.WriteString("\n")
	}
	if m.results > 0 {
		panel.WriteString(dimStyle.Render(fmt.Sprintf("Last result: %s (#%d)", m.last.Action, m.results)) + "\n\n")
		style := textStyle
		if !m.last.Success {
			style = errStyle
		}
		lines := wrapText(m.lastText, wrapWidth)
		for i, line := range lines {
			panel.WriteString(style.Render(line))
			if i == len(lines)-1 && m.copied {
				panel.WriteString(" " + okStyle.Render("[✓ copied]"))
			}
			panel.WriteString("\n")
		}
	} else {
		panel.WriteString(dimStyle.Render("No results yet"))
	}

	right := lipgloss.NewStyle().
		Width(panelWidth).
		Height(m.height).
		PaddingLeft(1).
		Render(panel.String())

	padded := make([]string, m.height)
	for i := range padded {
		if i < len(eyeLines) {
			padded[i] = eyeLines[i]
		} else {
			padded[i] = strings.Repeat(" ", eyeWidth-1)
		}
	}
	left := lipgloss.NewStyle().
		Width(eyeWidth - 1).
		Height(m.height).
		Render(strings.Join(padded, "\n"))

	return lipgloss.JoinHorizontal(lipgloss.Top, left, right)
}

func (m uiModel) playerLine() string {
	vol := fmt.Sprintf("vol %.0f%%", m.volume*100)
	switch {
	case m.player.Path == "":
		return "♪ stopped  " + vol
	case m.player.Paused:
		return "♪ paused " + baseName(m.player.Path) + "  " + vol
	default:
		return "♪ " + baseName(m.player.Path) + "  " + vol
	}
}

func baseName(path string) string {
	if i := strings.LastIndexAny(path, `/\`); i >= 0 {
		return path[i+1:]
	}
	return path
}

func progressBar(p events.Progress, width int) string {
	label := p.Operation + " " + p.Status
	if p.Total == 0 {
		return label
	}
	barWidth := max(width-len(label)-8, 10)
	filled := int(p.Percent / 100 * float64(barWidth))
	filled = min(max(filled, 0), barWidth)
	bar := strings.Repeat("█", filled) + strings.Repeat("░", barWidth-filled)
	return fmt.Sprintf("%s\n%s %5.1f%%", label, okStyle.Render(bar), p.Percent)
}

func sortedKeys(m map[string]events.Progress) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func renderEye(frame int, level float64, busy bool) string {
	const charsW = 44
	const charsH = 15
	const pixW = charsW
	const pixH = charsH * 2

	centerX := float64(pixW) / 2
	centerY := float64(pixH) / 2

	// Breathes with task progress
	var breathe float64
	if busy {
		breathe = math.Sin(float64(frame)*0.10)*0.03 + level*0.3 - 0.05
	} else {
		breathe = math.Sin(float64(frame)*0.08)*0.02 - 0.05
	}

	pixels := make([][]int, pixH)
	for i := range pixels {
		pixels[i] = make([]int, pixW)
	}

	type ring struct {
		radius     float64
		breatheAmt float64
		colorIdx   int
	}

	rings := []ring{
		{0.6, 0.10, 1},
		{1.3, 0.12, 2},
		{2.0, 0.15, 3},
		{2.8, 0.35, 4}, // outer rings react most
		{3.5, 0.40, 5},
		{4.2, 0.38, 6},
		{5.0, 0.30, 7},
		{5.8, 0.15, 8},
		{6.5, 0.03, 9},
		{7.2, 0.0, 10},
		{8.0, 0.0, 11},
		{10.0, 0.0, 12},
		{12.0, 0.0, 13},
	}

	for y := 0; y < pixH; y++ {
		for x := 0; x < pixW; x++ {
			dx := float64(x) - centerX
			dy := float64(y) - centerY
			dist := math.Sqrt(dx*dx + dy*dy)
			for _, r := range rings {
				radius := r.radius + breathe*r.breatheAmt*20
				if radius > 10.0 {
					radius = 10.0
				}
				if dist < radius {
					pixels[y][x] = r.colorIdx
					break
				}
			}
		}
	}

	// Glass reflections
	type spot struct {
		ox, oy float64
		radius float64
		color  int
	}
	dSide := 9.0
	dSide2 := 7.2
	dTop := 10.0
	dTop2 := 8.2
	spots := []spot{
		{-dSide * 0.707, -dSide * 0.707, 0.7, 14},
		{-dSide2 * 0.707, -dSide2 * 0.707, 0.4, 15},
		{0, -dTop, 0.8, 14},
		{0, -dTop2, 0.6, 15},
		{dSide * 0.707, -dSide * 0.707, 0.7, 14},
		{dSide2 * 0.707, -dSide2 * 0.707, 0.4, 15},
		{0, -2.0, 0.6, 14},
	}
	for y := 0; y < pixH; y++ {
		for x := 0; x < pixW; x++ {
			px := float64(x) - centerX
			py := float64(y) - centerY
			for _, s := range spots {
				dx := px - s.ox
				dy := py - s.oy
				rLen := math.Sqrt(s.ox*s.ox + s.oy*s.oy)
				if rLen < 0.001 {
					rLen = 1
				}
				tx, ty := -s.oy/rLen, s.ox/rLen
				dt := dx*tx + dy*ty
				dn := dx*(-ty) + dy*tx
				if (dt*dt)/9.0+dn*dn < s.radius*s.radius {
					pixels[y][x] = s.color
				}
			}
		}
	}

	var styles *[16]lipgloss.Style
	var bgStyles *[16][16]lipgloss.Style
	if busy {
		styles = &pixelStylesBusy
		bgStyles = &pixelBgBusy
	} else {
		styles = &pixelStylesIdle
		bgStyles = &pixelBgIdle
	}

	var result strings.Builder
	for cy := 0; cy < charsH; cy++ {
		for cx := 0; cx < charsW; cx++ {
			topY := cy * 2
			botY := cy*2 + 1
			top := 0
			bot := 0
			if topY < pixH {
				top = pixels[topY][cx]
			}
			if botY < pixH {
				bot = pixels[botY][cx]
			}
			if top == 0 && bot == 0 {
				result.WriteString(" ")
			} else if top == bot {
				result.WriteString(styles[top].Render("█"))
			} else if top != 0 && bot == 0 {
				result.WriteString(styles[top].Render("▀"))
			} else if top == 0 && bot != 0 {
				result.WriteString(styles[bot].Render("▄"))
			} else {
				result.WriteString(bgStyles[top][bot].Render("▀"))
			}
		}
		result.WriteString("\n")
	}
	return result.String()
}

func wrapText(text string, width int) []string {
	if len(text) == 0 {
		return []string{""}
	}
	if width <= 0 {
		width = 1
	}

	var lines []string
	for len(text) > width {
		// Find last space within width
		splitAt := width
		for i := width; i > 0; i-- {
			if text[i] == ' ' {
				splitAt = i
				break
			}
		}
		lines = append(lines, text[:splitAt])
		text = strings.TrimLeft(text[splitAt:], " ")
	}
	if len(text) > 0 {
		lines = append(lines, text)
	}
	return lines
}

