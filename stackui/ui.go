// Package stackui provides an interactive terminal view of a live
// guardstack.Stack, for watching its guards react to pushes, pops and
// deliberate corruption.
package stackui

import (
	"fmt"

	"github.com/gdamore/tcell/v2"
	"github.com/rivo/tview"

	"github.com/solidifylabs/guardstack"
	"github.com/solidifylabs/guardstack/layout"
	"github.com/solidifylabs/guardstack/types"
)

// Run starts a UI that displays the control block and buffer of s, refreshed
// after every key press. Values to push are obtained from next.
//
// Keys:
//
//	p       push next()
//	o       pop (only if Size() > 0)
//	v       validate
//	t       flip a bit of slot 0
//	g       flip a bit of the buffer's trailing canary
//	c       flip a bit of the control block's leading canary
//	s       flip a bit of the size
//	d       destruct
//	q, Esc  quit
//
// An operation that halts (i.e. panics) is reported in the result pane, after
// which only quitting is possible.
func Run[T types.Elem](s *guardstack.Stack[T], next func() T) error {
	t := newTermView(s, next)
	t.initApp()
	t.populate()
	return t.app.Run()
}

type termView[T types.Elem] struct {
	stack *guardstack.Stack[T]
	next  func() T

	app           *tview.Application
	block, buffer *tview.List
	help, result  *tview.TextView

	halted bool
}

func newTermView[T types.Elem](s *guardstack.Stack[T], next func() T) *termView[T] {
	t := &termView[T]{
		stack: s,
		next:  next,
	}
	t.initComponents()
	return t
}

func styleBox(b *tview.Box, title string) *tview.Box {
	return b.SetBorder(true).
		SetTitle(title).
		SetTitleAlign(tview.AlignLeft)
}

func (t *termView[T]) initComponents() {
	for title, l := range map[string]**tview.List{
		"Control block": &t.block,
		"Buffer":        &t.buffer,
	} {
		*l = tview.NewList()
		(*l).ShowSecondaryText(false).
			SetSelectedFocusOnly(true)
		styleBox((*l).Box, title)
	}

	for title, v := range map[string]**tview.TextView{
		"Keys":   &t.help,
		"Result": &t.result,
	} {
		*v = tview.NewTextView()
		styleBox((*v).Box, title)
	}
	t.help.SetText("[p]ush p[o]p [v]alidate | corrupt: slo[t] [g]uard [c]anary [s]ize | [d]estruct | [q]uit")
}

func (t *termView[T]) initApp() {
	t.app = tview.NewApplication().SetRoot(t.createLayout(), true)
	t.app.SetInputCapture(t.inputCapture)
}

func (t *termView[T]) createLayout() tview.Primitive {
	// Components have borders of 2, which need to be accounted for in absolute
	// dimensions.
	const (
		hHelp  = 2 + 1
		wBlock = 2 + 48
	)
	middle := tview.NewFlex().
		AddItem(t.block, wBlock, 0, false).
		AddItem(t.buffer, 0, 1, false)

	root := tview.NewFlex().
		SetDirection(tview.FlexRow).
		AddItem(t.help, hHelp, 0, false).
		AddItem(middle, 0, 3, false).
		AddItem(t.result, 0, 1, false)

	styleBox(root.Box, fmt.Sprintf("GUARDSTACK %T", t.stack)).SetTitleAlign(tview.AlignCenter)

	return root
}

func (t *termView[T]) inputCapture(ev *tcell.EventKey) *tcell.EventKey {
	switch ev.Key() {
	case tcell.KeyCtrlC:
		t.app.Stop()
		return ev

	case tcell.KeyEscape:
		t.app.Stop()
		return nil
	} // switch ev.Key()

	if ev.Rune() == 'q' {
		t.app.Stop()
		return nil
	}
	t.handle(ev.Rune())
	t.populate()
	return nil
}

// handle performs the action bound to r, unless the stack has halted.
func (t *termView[T]) handle(r rune) {
	if t.halted {
		return
	}
	s := t.stack

	switch r {
	case 'p':
		v := t.next()
		t.do(func() string {
			s.Push(v)
			return fmt.Sprintf("pushed %s", types.Render(v))
		})

	case 'o':
		t.do(func() string {
			if s.Size() == 0 {
				return "empty; not popping"
			}
			return fmt.Sprintf("popped %s", types.Render(s.Pop()))
		})

	case 'v':
		code := s.Validate()
		t.result.SetText(fmt.Sprintf("Validate() = %d (%v): %v", code, code.Class(), code))

	case 't':
		t.tamper(s.TamperBuffer(layout.Slots, 0, 1))
	case 'g':
		t.tamper(s.TamperBuffer(layout.TrailingCanary, 0, 1))
	case 'c':
		t.tamper(s.TamperBlock(guardstack.FieldCanaryLow, 1))
	case 's':
		t.tamper(s.TamperBlock(guardstack.FieldSize, 1<<40))

	case 'd':
		t.do(func() string {
			s.Destruct()
			return "destructed"
		})
	}
}

func (t *termView[T]) tamper(err error) {
	if err != nil {
		t.result.SetText(fmt.Sprintf("ERROR: %v", err))
		return
	}
	t.result.SetText("corrupted; the next operation will notice (at Dump level and above)")
}

// do runs fn, displaying either its result or the value it panicked with. A
// panic halts the UI's use of the stack.
func (t *termView[T]) do(fn func() string) {
	defer func() {
		r := recover()
		if r == nil {
			return
		}
		t.halted = true
		t.result.SetText(fmt.Sprintf("HALTED: %v\n\nPress q to quit.", r))
	}()
	t.result.SetText(fn())
}

func (t *termView[T]) populate() {
	snap := t.stack.Snapshot()
	fill(t.block, blockLines(snap))
	fill(t.buffer, bufferLines(snap))
}

func fill(l *tview.List, lines []string) {
	l.Clear()
	for _, line := range lines {
		l.AddItem(line, "", 0, nil)
	}
}

func blockLines[T types.Elem](snap guardstack.Snapshot[T]) []string {
	lines := []string{
		fmt.Sprintf("level        %v", snap.Level),
		fmt.Sprintf("validate     %d (%v)", snap.Code, snap.Code.Class()),
	}
	if snap.Level >= types.Dump {
		lines = append(lines, fmt.Sprintf("label        %q", snap.Site.Label))
	}
	if snap.Level >= types.Canary {
		lines = append(lines, fmt.Sprintf("canary_low   %016x", snap.CanaryLow))
	}
	lines = append(lines,
		fmt.Sprintf("size         %d", snap.Size),
		fmt.Sprintf("capacity     %d", snap.Capacity),
		fmt.Sprintf("data         %s (%v)", snap.Data, snap.Poison),
	)
	if snap.Level >= types.Hash {
		lines = append(lines, fmt.Sprintf("hash         %016x", snap.Hash))
	}
	if snap.Level >= types.Canary {
		lines = append(lines, fmt.Sprintf("canary_high  %016x", snap.CanaryHigh))
	}
	return lines
}

func bufferLines[T types.Elem](snap guardstack.Snapshot[T]) []string {
	buf := snap.Buffer
	switch {
	case !snap.Allocated:
		return []string{"(not allocated)"}
	case buf == nil:
		return []string{"(not readable)"}
	}

	var lines []string
	if snap.Level >= types.Canary {
		lines = append(lines, fmt.Sprintf("canary_low   %016x", buf.CanaryLow))
	}
	if snap.Level >= types.Hash {
		lines = append(lines, fmt.Sprintf("checksum     %016x / %016x", buf.Checksum, buf.FreshChecksum))
	}
	for i, v := range buf.Slots {
		mark := " "
		if int64(i) < snap.Size {
			mark = "*"
		}
		lines = append(lines, fmt.Sprintf("%s%4d  %s", mark, i, types.Render(v)))
	}
	if snap.Level >= types.Canary {
		lines = append(lines, fmt.Sprintf("canary_high  %016x", buf.CanaryHigh))
	}
	return lines
}
