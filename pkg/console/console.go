/*
 * Copyright 2025 Carver Automation Corporation.
 *
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *
 *     http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

// Package console renders the operator-facing terminal output: banners,
// the channel status table, help and command results.
package console

import (
	"fmt"
	"io"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"

	"github.com/carverauto/fieldagent/pkg/models"
)

// Dracula theme colors.
const (
	draculaForeground = "#F8F8F2"
	draculaCyan       = "#8BE9FD"
	draculaGreen      = "#50FA7B"
	draculaOrange     = "#FFB86C"
	draculaPurple     = "#BD93F9"
	draculaRed        = "#FF5555"
	draculaComment    = "#6272A4"
)

const (
	bannerPaddingX = 2
	cellPaddingX   = 1
	prompt         = "> "
)

type styles struct {
	banner, header, on, off, muted, success, warn, error lipgloss.Style
}

func newStyles(r *lipgloss.Renderer) styles {
	return styles{
		banner: r.NewStyle().
			Padding(0, bannerPaddingX).
			Border(lipgloss.DoubleBorder()).
			BorderForeground(lipgloss.Color(draculaCyan)).
			Foreground(lipgloss.Color(draculaForeground)).
			Bold(true),
		header: r.NewStyle().
			Foreground(lipgloss.Color(draculaPurple)).
			Bold(true).
			Padding(0, cellPaddingX),
		on: r.NewStyle().
			Foreground(lipgloss.Color(draculaGreen)).
			Padding(0, cellPaddingX),
		off: r.NewStyle().
			Foreground(lipgloss.Color(draculaComment)).
			Padding(0, cellPaddingX),
		muted: r.NewStyle().
			Foreground(lipgloss.Color(draculaComment)),
		success: r.NewStyle().
			Foreground(lipgloss.Color(draculaGreen)),
		warn: r.NewStyle().
			Foreground(lipgloss.Color(draculaOrange)),
		error: r.NewStyle().
			Foreground(lipgloss.Color(draculaRed)).
			Bold(true),
	}
}

// Console writes styled output to a terminal. Writes are serialized so
// lines from different goroutines do not interleave.
type Console struct {
	mu     sync.Mutex
	out    io.Writer
	styles styles
}

// New returns a Console writing to out. Colors are dropped automatically
// when out is not a terminal.
func New(out io.Writer) *Console {
	return &Console{
		out:    out,
		styles: newStyles(lipgloss.NewRenderer(out)),
	}
}

func (c *Console) write(s string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	_, _ = io.WriteString(c.out, s)
}

// Banner prints a boxed title line.
func (c *Console) Banner(title string) {
	c.write("\n" + c.styles.banner.Render(title) + "\n\n")
}

// Summary prints key/value lines shown after startup.
func (c *Console) Summary(pairs ...string) {
	var b strings.Builder

	for i := 0; i+1 < len(pairs); i += 2 {
		fmt.Fprintf(&b, "%s %s\n", c.styles.muted.Render(pairs[i]+":"), pairs[i+1])
	}

	c.write(b.String())
}

// Prompt prints the interactive prompt.
func (c *Console) Prompt() {
	c.write(prompt)
}

// Line prints a plain line.
func (c *Console) Line(s string) {
	c.write(s + "\n")
}

// Help prints the interactive command reference.
func (c *Console) Help() {
	c.write(HelpText())
}

// HelpText returns the interactive command reference.
func HelpText() string {
	return `Commands:
  on <ch>       Turn on channel
  off <ch>      Turn off channel
  toggle <ch>   Toggle channel
  all_on        Turn on every channel
  all_off       Turn off every channel
  status        Show switch status
  help          Show this help
  quit          Exit program
`
}

// Status prints the channel table.
func (c *Console) Status(channels []models.Channel[bool]) {
	c.write(c.StatusTable(channels) + "\n")
}

// StatusTable renders channels as a bordered table.
func (c *Console) StatusTable(channels []models.Channel[bool]) string {
	rows := make([][]string, 0, len(channels))

	for _, ch := range channels {
		state := "OFF"
		if ch.Value {
			state = "ON"
		}

		last := "never"
		if !ch.LastChangedAt.IsZero() {
			last = ch.LastChangedAt.Local().Format(time.DateTime)
		}

		rows = append(rows, []string{
			"CH" + strconv.Itoa(ch.Index),
			state,
			strconv.FormatUint(ch.ChangeCount, 10),
			last,
		})
	}

	st := c.styles

	t := table.New().
		Border(lipgloss.RoundedBorder()).
		BorderStyle(st.muted).
		Headers("CHANNEL", "STATE", "TOGGLES", "LAST CHANGE").
		Rows(rows...).
		StyleFunc(func(row, col int) lipgloss.Style {
			if row == table.HeaderRow {
				return st.header
			}

			if col == 1 && rows[row][1] == "ON" {
				return st.on
			}

			return st.off
		})

	return t.Render()
}

// Result prints the outcome of a console command.
func (c *Console) Result(cmd models.Command, res models.ExecutionResult) {
	if !res.Ok() {
		c.Error(fmt.Sprintf("%s: %v", cmd, res.Err))

		return
	}

	if res.Verb == models.VerbStatus {
		c.Status(res.Channels)

		return
	}

	msg := fmt.Sprintf("%s: %d changed, %d unchanged", cmd, len(res.Applied), len(res.Unchanged))
	c.write(c.styles.success.Render(msg) + "\n")
}

// Error prints an error line.
func (c *Console) Error(msg string) {
	c.write(c.styles.error.Render("error: "+msg) + "\n")
}

// Warn prints a warning line.
func (c *Console) Warn(msg string) {
	c.write(c.styles.warn.Render(msg) + "\n")
}

// SensorCycle prints one sensor sample.
func (c *Console) SensorCycle(cycle uint64, r models.SensorReading) {
	c.write(fmt.Sprintf("[Cycle %d] Temp: %.2f°C | Humidity: %.2f%%\n", cycle, r.Temperature, r.Humidity))
}
