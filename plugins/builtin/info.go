package builtin

import (
	"context"
	"fmt"
	"runtime"
	"sort"
	"strings"
	"time"

	"github.com/shirou/gopsutil/v3/host"
	"github.com/shirou/gopsutil/v3/load"
	"github.com/shirou/gopsutil/v3/mem"

	"github.com/jdelaire/openbot/core/command"
)

// HostStats is what the status command reports about the machine.
type HostStats struct {
	Hostname   string
	Uptime     time.Duration
	MemUsed    uint64
	MemTotal   uint64
	MemPercent float64
	Load1      float64
	Load5      float64
	Load15     float64
}

func collectHostStats(ctx context.Context) (HostStats, error) {
	var st HostStats
	h, err := host.InfoWithContext(ctx)
	if err != nil {
		return st, fmt.Errorf("host info: %w", err)
	}
	st.Hostname = h.Hostname
	st.Uptime = time.Duration(h.Uptime) * time.Second

	v, err := mem.VirtualMemoryWithContext(ctx)
	if err != nil {
		return st, fmt.Errorf("memory: %w", err)
	}
	st.MemUsed, st.MemTotal, st.MemPercent = v.Used, v.Total, v.UsedPercent

	// Load average is not available everywhere.
	if l, err := load.AvgWithContext(ctx); err == nil {
		st.Load1, st.Load5, st.Load15 = l.Load1, l.Load5, l.Load15
	}
	return st, nil
}

func (p *Plugin) pingCommand() command.Descriptor {
	return command.Descriptor{
		Pattern:     "ping",
		Aliases:     []string{"p"},
		Description: "Check that the bot is alive",
		Category:    "general",
		Handler: func(ctx context.Context, inv *command.Invocation) (command.Result, error) {
			latency := p.now().Sub(inv.Msg.Timestamp)
			if latency < 0 {
				latency = 0
			}
			return command.Success, inv.Reply(ctx, fmt.Sprintf("Pong! %d ms", latency.Milliseconds()))
		},
	}
}

func (p *Plugin) helpCommand() command.Descriptor {
	return command.Descriptor{
		Pattern:     "help ?(.*)",
		Aliases:     []string{"menu"},
		Description: "List commands, or show one",
		Category:    "general",
		Usage:       "help [command]",
		NoReact:     true,
		Handler: func(ctx context.Context, inv *command.Invocation) (command.Result, error) {
			if p.commands == nil {
				return command.Fallback, nil
			}
			if name := strings.ToLower(strings.TrimPrefix(inv.Arg, inv.Prefix)); name != "" {
				return p.helpFor(ctx, inv, name)
			}
			return command.Success, inv.Reply(ctx, p.menu(inv.Prefix))
		},
	}
}

func (p *Plugin) helpFor(ctx context.Context, inv *command.Invocation, name string) (command.Result, error) {
	for _, d := range p.commands.List() {
		if d.Hidden {
			continue
		}
		if d.Name() != name && !containsString(d.Aliases, name) {
			continue
		}
		var b strings.Builder
		fmt.Fprintf(&b, "%s%s", inv.Prefix, d.Name())
		if d.Description != "" {
			fmt.Fprintf(&b, ": %s", d.Description)
		}
		if d.Usage != "" {
			fmt.Fprintf(&b, "\nUsage: %s%s", inv.Prefix, d.Usage)
		}
		if len(d.Aliases) > 0 {
			fmt.Fprintf(&b, "\nAliases: %s", strings.Join(d.Aliases, ", "))
		}
		return command.Success, inv.Reply(ctx, b.String())
	}
	return command.Fallback, inv.Reply(ctx, fmt.Sprintf("No command named %q.", name))
}

func (p *Plugin) menu(prefix string) string {
	byCategory := make(map[string][]string)
	for _, d := range p.commands.List() {
		if d.Hidden {
			continue
		}
		cat := d.Category
		if cat == "" {
			cat = "other"
		}
		line := prefix + d.Name()
		if d.Description != "" {
			line += " - " + d.Description
		}
		byCategory[cat] = append(byCategory[cat], line)
	}
	if len(byCategory) == 0 {
		return "No commands available."
	}

	cats := make([]string, 0, len(byCategory))
	for c := range byCategory {
		cats = append(cats, c)
	}
	sort.Strings(cats)

	var b strings.Builder
	b.WriteString("Available commands:\n")
	for _, c := range cats {
		fmt.Fprintf(&b, "\n[%s]\n", c)
		for _, line := range byCategory[c] {
			fmt.Fprintf(&b, "  %s\n", line)
		}
	}
	return strings.TrimRight(b.String(), "\n")
}

func (p *Plugin) statusCommand() command.Descriptor {
	return command.Descriptor{
		Pattern:     "status",
		Description: "Show bot and host status",
		Category:    "general",
		Handler: func(ctx context.Context, inv *command.Invocation) (command.Result, error) {
			var b strings.Builder
			fmt.Fprintf(&b, "Status: OK\nVersion: %s\nUptime: %s\nGo: %s\nGoroutines: %d",
				p.version, p.now().Sub(p.started).Truncate(time.Second), runtime.Version(), runtime.NumGoroutine())

			st, err := p.stats(ctx)
			if err != nil {
				p.logger.Warn("host stats unavailable", "error", err)
			} else {
				fmt.Fprintf(&b, "\n\nHost: %s\nHost uptime: %s\nMemory: %s / %s (%.0f%%)\nLoad: %.2f %.2f %.2f",
					st.Hostname, formatUptime(st.Uptime), formatBytes(st.MemUsed), formatBytes(st.MemTotal), st.MemPercent,
					st.Load1, st.Load5, st.Load15)
			}
			return command.Success, inv.Reply(ctx, b.String())
		},
	}
}

func formatUptime(d time.Duration) string {
	secs := uint64(d / time.Second)
	days := secs / 86400
	hours := (secs % 86400) / 3600
	mins := (secs % 3600) / 60
	if days > 0 {
		return fmt.Sprintf("%dd %dh %dm", days, hours, mins)
	}
	return fmt.Sprintf("%dh %dm", hours, mins)
}

func formatBytes(n uint64) string {
	gb := float64(n) / 1024 / 1024 / 1024
	if gb >= 1 {
		return fmt.Sprintf("%.1f GB", gb)
	}
	return fmt.Sprintf("%d MB", n/1024/1024)
}

func containsString(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}
