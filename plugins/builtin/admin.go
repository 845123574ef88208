package builtin

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/jdelaire/openbot/core/command"
	"github.com/jdelaire/openbot/core/permission"
)

var sudoOnly = permission.Flags{RequiresSudo: true}

func (p *Plugin) modeCommand() command.Descriptor {
	return command.Descriptor{
		Pattern:     "mode ?(.*)",
		Flags:       sudoOnly,
		Description: "Show or switch between public and private mode",
		Category:    "config",
		Usage:       "mode [public|private]",
		Handler: func(ctx context.Context, inv *command.Invocation) (command.Result, error) {
			if inv.Arg == "" {
				return command.Success, inv.Reply(ctx, fmt.Sprintf("Mode: %s", p.settings.Mode()))
			}
			mode, ok := permission.ParseMode(inv.Arg)
			if !ok {
				return command.Fallback, inv.Reply(ctx, fmt.Sprintf("Usage: %smode public|private", inv.Prefix))
			}
			if err := p.settings.SetMode(mode); err != nil {
				return command.Success, err
			}
			return command.Success, inv.Reply(ctx, fmt.Sprintf("Mode set to %s.", mode))
		},
	}
}

// userArgs collects user ids from mentions, the quoted sender, @handles and
// bare argument words.
func userArgs(inv *command.Invocation) []string {
	out := inv.Targets()
	seen := make(map[string]bool, len(out))
	for _, id := range out {
		seen[id] = true
	}
	for _, id := range inv.Args() {
		if strings.HasPrefix(id, "@") || seen[id] {
			continue
		}
		seen[id] = true
		out = append(out, id)
	}
	return out
}

func (p *Plugin) setSudoCommand() command.Descriptor {
	return command.Descriptor{
		Pattern:     "setsudo ?(.*)",
		Aliases:     []string{"addsudo"},
		Flags:       sudoOnly,
		Description: "Grant sudo to users",
		Category:    "config",
		Usage:       "setsudo @user...",
		Handler: func(ctx context.Context, inv *command.Invocation) (command.Result, error) {
			if unknown, err := inv.ReplyUnresolved(ctx); unknown {
				return command.Fallback, err
			}
			ids := userArgs(inv)
			if len(ids) == 0 {
				return command.Fallback, inv.Reply(ctx, "Mention, quote or name the users to promote.")
			}
			added, err := p.settings.AddSudo(ids...)
			if err != nil {
				return command.Success, err
			}
			if added == 0 {
				return command.Fallback, inv.Reply(ctx, "Already sudo.")
			}
			return command.Success, inv.Reply(ctx, fmt.Sprintf("Added %d sudo user(s).", added))
		},
	}
}

func (p *Plugin) delSudoCommand() command.Descriptor {
	return command.Descriptor{
		Pattern:     "delsudo ?(.*)",
		Aliases:     []string{"rmsudo"},
		Flags:       sudoOnly,
		Description: "Revoke sudo from users",
		Category:    "config",
		Usage:       "delsudo @user...",
		Handler: func(ctx context.Context, inv *command.Invocation) (command.Result, error) {
			if unknown, err := inv.ReplyUnresolved(ctx); unknown {
				return command.Fallback, err
			}
			ids := userArgs(inv)
			if len(ids) == 0 {
				return command.Fallback, inv.Reply(ctx, "Mention, quote or name the users to demote.")
			}
			removed, err := p.settings.RemoveSudo(ids...)
			if err != nil {
				return command.Success, err
			}
			if removed == 0 {
				return command.Fallback, inv.Reply(ctx, "None of them were sudo.")
			}
			return command.Success, inv.Reply(ctx, fmt.Sprintf("Removed %d sudo user(s).", removed))
		},
	}
}

func (p *Plugin) getSudoCommand() command.Descriptor {
	return command.Descriptor{
		Pattern:     "getsudo",
		Aliases:     []string{"sudolist"},
		Flags:       sudoOnly,
		Description: "List sudo users",
		Category:    "config",
		Handler: func(ctx context.Context, inv *command.Invocation) (command.Result, error) {
			ids := p.settings.Sudo()
			if len(ids) == 0 {
				return command.Fallback, inv.Reply(ctx, "No sudo users.")
			}
			var b strings.Builder
			b.WriteString("Sudo users:")
			for _, id := range ids {
				fmt.Fprintf(&b, "\n- %s", id)
			}
			return command.Success, inv.Send(ctx, b.String(), ids...)
		},
	}
}

func (p *Plugin) setVarCommand() command.Descriptor {
	return command.Descriptor{
		Pattern:     "setvar ?(.*)",
		Flags:       sudoOnly,
		Description: "Set a runtime variable",
		Category:    "config",
		Usage:       "setvar KEY=value",
		Handler: func(ctx context.Context, inv *command.Invocation) (command.Result, error) {
			key, value, ok := strings.Cut(inv.Arg, "=")
			key = strings.TrimSpace(key)
			if !ok || key == "" {
				return command.Fallback, inv.Reply(ctx, fmt.Sprintf("Usage: %ssetvar KEY=value", inv.Prefix))
			}
			if err := p.settings.Set(key, strings.TrimSpace(value)); err != nil {
				return command.Success, err
			}
			return command.Success, inv.Reply(ctx, fmt.Sprintf("%s updated.", strings.ToUpper(key)))
		},
	}
}

func (p *Plugin) getVarCommand() command.Descriptor {
	return command.Descriptor{
		Pattern:     "getvar ?(.*)",
		Flags:       sudoOnly,
		Description: "Show one or all runtime variables",
		Category:    "config",
		Usage:       "getvar [KEY]",
		Handler: func(ctx context.Context, inv *command.Invocation) (command.Result, error) {
			if inv.Arg != "" {
				v, ok := p.settings.Get(inv.Arg)
				if !ok {
					return command.Fallback, inv.Reply(ctx, fmt.Sprintf("%s is not set.", strings.ToUpper(inv.Arg)))
				}
				return command.Success, inv.Reply(ctx, fmt.Sprintf("%s=%s", strings.ToUpper(inv.Arg), v))
			}

			vars := p.settings.Vars()
			if len(vars) == 0 {
				return command.Fallback, inv.Reply(ctx, "No variables set.")
			}
			keys := make([]string, 0, len(vars))
			for k := range vars {
				keys = append(keys, k)
			}
			sort.Strings(keys)
			var b strings.Builder
			for _, k := range keys {
				fmt.Fprintf(&b, "%s=%s\n", k, vars[k])
			}
			return command.Success, inv.Reply(ctx, strings.TrimRight(b.String(), "\n"))
		},
	}
}

func (p *Plugin) delVarCommand() command.Descriptor {
	return command.Descriptor{
		Pattern:     "delvar ?(.*)",
		Flags:       sudoOnly,
		Description: "Delete a runtime variable",
		Category:    "config",
		Usage:       "delvar KEY",
		Handler: func(ctx context.Context, inv *command.Invocation) (command.Result, error) {
			if inv.Arg == "" {
				return command.Fallback, inv.Reply(ctx, fmt.Sprintf("Usage: %sdelvar KEY", inv.Prefix))
			}
			ok, err := p.settings.Delete(inv.Arg)
			if err != nil {
				return command.Success, err
			}
			if !ok {
				return command.Fallback, inv.Reply(ctx, fmt.Sprintf("%s is not set.", strings.ToUpper(inv.Arg)))
			}
			return command.Success, inv.Reply(ctx, fmt.Sprintf("%s deleted.", strings.ToUpper(inv.Arg)))
		},
	}
}

func (p *Plugin) setPrefixCommand() command.Descriptor {
	return command.Descriptor{
		Pattern:     "setprefix ?(.*)",
		Flags:       permission.Flags{RequiresOwner: true},
		Description: "Change the command prefix",
		Category:    "config",
		Usage:       "setprefix <prefix>",
		Handler: func(ctx context.Context, inv *command.Invocation) (command.Result, error) {
			if inv.Arg == "" || strings.ContainsAny(inv.Arg, " \t\n") {
				return command.Fallback, inv.Reply(ctx, fmt.Sprintf("Usage: %ssetprefix <prefix>", inv.Prefix))
			}
			if err := p.settings.SetPrefix(inv.Arg); err != nil {
				return command.Success, err
			}
			return command.Success, inv.Reply(ctx, fmt.Sprintf("Prefix set to %q.", inv.Arg))
		},
	}
}

func (p *Plugin) reloadCommand() command.Descriptor {
	return command.Descriptor{
		Pattern:     "reload",
		Flags:       sudoOnly,
		Description: "Reload commands and settings",
		Category:    "config",
		Handler: func(ctx context.Context, inv *command.Invocation) (command.Result, error) {
			if err := p.settings.Reload(); err != nil {
				return command.Success, fmt.Errorf("reload settings: %w", err)
			}
			if p.reload == nil {
				return command.Success, inv.Reply(ctx, "Settings reloaded.")
			}
			n, err := p.reload()
			if err != nil {
				return command.Success, err
			}
			return command.Success, inv.Reply(ctx, fmt.Sprintf("Reloaded %d commands.", n))
		},
	}
}
