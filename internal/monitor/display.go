// Copyright © 2025 Attestant Limited.
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package monitor

import (
	"fmt"
	"time"

	"github.com/gdamore/tcell/v2"
	"github.com/rivo/tview"
	"github.com/watchxrpl/watchxrpl/internal/xrpl"
)

// Status symbols for visual indicators
const (
	StatusSymbolHealthy     = "●"
	StatusSymbolDegraded    = "◐"
	StatusSymbolUnreachable = "○"
)

// Animation frames for the title
var titleAnimationFrames = []string{
	"   /\\_/\\     \n  ( o.o )    \n   > ^ <     \n  watchxrpl   ",
	"   /\\_/\\     \n  ( o.o )    \n   > ^ <     \n  watchxrpl   ",
	"   /\\_/\\     \n  ( -.- )    \n   > ^ <     \n  watchxrpl   ",
	"   /\\_/\\     \n  ( o.o )    \n   > ^ <     \n  watchxrpl   ",
}

type Display struct {
	app             *tview.Application
	statusTable     *tview.Table
	statsView       *tview.TextView
	transitionsView *tview.TextView
	title           *tview.TextView
	help            *tview.TextView
	monitor         *Monitor
	refreshInterval time.Duration
	nextRefresh     time.Time
	countdownTicker *time.Ticker
	animationTicker *time.Ticker
	animationFrame  int
}

func NewDisplay(monitor *Monitor) *Display {
	return &Display{
		app:             tview.NewApplication(),
		statusTable:     tview.NewTable(),
		statsView:       tview.NewTextView(),
		transitionsView: tview.NewTextView(),
		title:           tview.NewTextView(),
		help:            tview.NewTextView(),
		monitor:         monitor,
		refreshInterval: monitor.GetRefreshInterval(),
		nextRefresh:     time.Now().Add(monitor.GetRefreshInterval()),
		animationFrame:  0,
	}
}

func (d *Display) Run() error {
	d.setupLayout()

	d.countdownTicker = time.NewTicker(time.Second)
	go d.countdownLoop()

	d.animationTicker = time.NewTicker(500 * time.Millisecond)
	go d.animationLoop()

	go d.updateLoop()

	return d.app.Run()
}

func (d *Display) setupLayout() {
	d.title.SetText(titleAnimationFrames[0]).
		SetTextAlign(tview.AlignLeft).
		SetTextColor(tcell.ColorGreen)

	d.statusTable.SetBorders(false).
		SetSelectable(false, false)

	d.statsView.SetDynamicColors(true).
		SetWrap(false)

	d.transitionsView.SetDynamicColors(true).
		SetWrap(false).
		SetBorder(true).
		SetTitle(" Recent Transitions ").
		SetTitleAlign(tview.AlignLeft)

	d.updateHelpText()
	d.help.SetTextAlign(tview.AlignLeft).
		SetTextColor(tcell.ColorBlack)

	flex := tview.NewFlex().
		SetDirection(tview.FlexRow).
		AddItem(d.title, 4, 0, false).
		AddItem(nil, 1, 0, false).
		AddItem(tview.NewTextView().SetText("  ● Validator").SetTextColor(tcell.ColorGreen), 1, 0, false).
		AddItem(d.statusTable, 12, 0, true).
		AddItem(d.statsView, 4, 0, false).
		AddItem(d.transitionsView, 0, 1, false).
		AddItem(d.help, 1, 0, false)

	d.app.SetRoot(flex, true).EnableMouse(false)

	d.app.SetInputCapture(func(event *tcell.EventKey) *tcell.EventKey {
		switch event.Rune() {
		case 'q', 'Q':
			d.app.Stop()
			return nil
		case 'r', 'R':
			go d.render(d.monitor.Latest())
			d.nextRefresh = time.Now().Add(d.refreshInterval)
			return nil
		}
		if event.Key() == tcell.KeyEscape || event.Key() == tcell.KeyCtrlC {
			d.app.Stop()
			return nil
		}
		return event
	})

	d.render(d.monitor.Latest())
}

func (d *Display) updateLoop() {
	for update := range d.monitor.Updates() {
		d.nextRefresh = time.Now().Add(d.refreshInterval)
		d.render(update)
	}
}

func (d *Display) countdownLoop() {
	for range d.countdownTicker.C {
		d.app.QueueUpdateDraw(func() {
			d.updateHelpText()
		})
	}
}

func (d *Display) animationLoop() {
	for range d.animationTicker.C {
		d.animationFrame = (d.animationFrame + 1) % len(titleAnimationFrames)
		d.app.QueueUpdateDraw(func() {
			d.title.SetText(titleAnimationFrames[d.animationFrame])
		})
	}
}

func (d *Display) updateHelpText() {
	remaining := int(time.Until(d.nextRefresh).Seconds())
	if remaining < 0 {
		remaining = 0
	}
	d.help.SetText(fmt.Sprintf("  q: quit | r: refresh | next refresh in %ds", remaining))
}

func stateColor(state xrpl.State) tcell.Color {
	switch state {
	case xrpl.StateProposing:
		return tcell.ColorGreen
	case xrpl.StateFull, xrpl.StateTracking:
		return tcell.ColorYellow
	default:
		return tcell.ColorRed
	}
}

func stateSymbol(state xrpl.State) string {
	switch state {
	case xrpl.StateProposing:
		return StatusSymbolHealthy
	case xrpl.StateUnreachable, xrpl.StateDisconnected:
		return StatusSymbolUnreachable
	default:
		return StatusSymbolDegraded
	}
}

func (d *Display) render(update NodeUpdate) {
	d.app.QueueUpdateDraw(func() {
		d.renderStatus(update)
		d.renderStats(update)
		d.renderTransitions(update)
	})
}

func (d *Display) setRow(row int, field, value string, color tcell.Color) {
	d.statusTable.SetCell(row, 0, tview.NewTableCell("  "+field).
		SetTextColor(tcell.ColorYellow).
		SetAlign(tview.AlignLeft))
	d.statusTable.SetCell(row, 1, tview.NewTableCell(" "+value).
		SetTextColor(color).
		SetAlign(tview.AlignLeft))
}

func (d *Display) renderStatus(update NodeUpdate) {
	d.statusTable.Clear()

	if update.Err != nil {
		d.setRow(0, "Status", StatusSymbolUnreachable+" unreachable", tcell.ColorRed)
		d.setRow(1, "Error", update.Err.Error(), tcell.ColorRed)
		return
	}
	if update.Snapshot == nil {
		d.setRow(0, "Status", "waiting for first poll...", tcell.ColorGray)
		return
	}

	snap := update.Snapshot
	d.setRow(0, "State", fmt.Sprintf("%s %s", stateSymbol(snap.State), snap.State), stateColor(snap.State))
	d.setRow(1, "Ledger", fmt.Sprintf("%d (age %ds)", snap.LedgerSeq, snap.LedgerAge), tcell.ColorWhite)
	d.setRow(2, "Peers", fmt.Sprintf("%d (in %d / out %d / insane %d)",
		snap.Peers, update.PeerSummary.Inbound, update.PeerSummary.Outbound, update.PeerSummary.Insane), tcell.ColorWhite)
	d.setRow(3, "Quorum", fmt.Sprintf("%d (proposers %d)", snap.ValidationQuorum, snap.Proposers), tcell.ColorWhite)
	d.setRow(4, "Load Factor", fmt.Sprintf("%.2f", snap.LoadFactor), tcell.ColorWhite)
	d.setRow(5, "I/O Latency", fmt.Sprintf("%dms", snap.IOLatencyMS), tcell.ColorWhite)
	d.setRow(6, "Converge Time", fmt.Sprintf("%.2fs", snap.ConvergeTimeS), tcell.ColorWhite)
	d.setRow(7, "Base Fee", fmt.Sprintf("%.6f XRP", snap.BaseFeeXRP), tcell.ColorWhite)
	d.setRow(8, "Uptime", (time.Duration(snap.UptimeSeconds) * time.Second).String(), tcell.ColorWhite)
	d.setRow(9, "Version", snap.BuildVersion, tcell.ColorWhite)
	if snap.PubkeyValidator != "" {
		d.setRow(10, "Validator Key", snap.PubkeyValidator, tcell.ColorWhite)
	}
}

func (d *Display) renderStats(update NodeUpdate) {
	d.statsView.Clear()
	if len(update.Stats) == 0 {
		fmt.Fprintf(d.statsView, "\n  No validation statistics yet")
		return
	}

	fmt.Fprintf(d.statsView, "\n")
	for _, stats := range update.Stats {
		color := "green"
		if stats.AgreementRatePct < 99 {
			color = "yellow"
		}
		if stats.AgreementRatePct < 95 {
			color = "red"
		}
		fmt.Fprintf(d.statsView, "  Validations %dh: %d checked, [%s]%.1f%% agreed[-], %d missed\n",
			stats.WindowHours, stats.TotalChecked, color, stats.AgreementRatePct, stats.MissedCount)
	}
}

func (d *Display) renderTransitions(update NodeUpdate) {
	d.transitionsView.Clear()
	if len(update.Transitions) == 0 {
		fmt.Fprintf(d.transitionsView, " No state transitions recorded")
		return
	}

	for _, tr := range update.Transitions {
		fmt.Fprintf(d.transitionsView, " [%s] %s -> %s (after %s)\n",
			tr.Timestamp.Format("15:04:05"), tr.OldState, tr.NewState,
			tr.DurationInOldState.Round(time.Second))
	}
}
