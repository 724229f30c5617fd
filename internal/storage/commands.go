package storage

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/tldr-it-stepankutaj/reconkit/internal/command"
	"github.com/tldr-it-stepankutaj/reconkit/internal/event"
	"github.com/tldr-it-stepankutaj/reconkit/internal/reports"
	"github.com/tldr-it-stepankutaj/reconkit/internal/target"
	"github.com/tldr-it-stepankutaj/reconkit/pkg/version"
)

func unsupported(cmd command.Command) error {
	return fmt.Errorf("%s does not support %q", cmd.Object().Kind, cmd.Action())
}

// name returns the first positional argument or the name parameter.
func name(cmd command.Command) string {
	if v := cmd.Arg(0); v != "" {
		return v
	}
	v, _ := cmd.Param("name")
	return v
}

func required(cmd command.Command, what string) (string, error) {
	v := name(cmd)
	if v == "" {
		return "", fmt.Errorf("%s %s needs a %s", cmd.Object().Kind, cmd.Action(), what)
	}
	return v, nil
}

func (c *Controller) targetCommand(ctx context.Context, cmd command.Command) error {
	switch cmd.Action() {
	case command.Add:
		fields := cmd.Params()
		if typ := cmd.Arg(0); typ != "" {
			fields[target.FieldType] = typ
		}
		t, err := target.FromFields(fields)
		if err != nil {
			return err
		}
		t, err = c.store.AddTarget(ctx, t)
		if err != nil {
			return err
		}
		return c.reply("added target %s", t)
	case command.List:
		var typ target.Type
		if raw := cmd.Arg(0); raw != "" {
			var err error
			if typ, err = target.ParseType(raw); err != nil {
				return err
			}
		}
		ts, err := c.store.Targets(ctx, typ)
		if err != nil {
			return err
		}
		c.emit(targetTable("targets in "+c.store.Current().Name, ts))
		return nil
	case command.Show:
		id, err := targetArg(cmd)
		if err != nil {
			return err
		}
		t, err := c.store.Target(ctx, id)
		if err != nil {
			return err
		}
		rows := make([][]string, 0, len(t.Keys()))
		for _, k := range t.Keys() {
			v, _ := t.Field(k)
			rows = append(rows, []string{k, v})
		}
		c.emit(event.ResponseTable{Title: t.String(), Headers: []string{"FIELD", "VALUE"}, Rows: rows})
		return nil
	case command.Remove:
		id, err := targetArg(cmd)
		if err != nil {
			return err
		}
		if err := c.store.RemoveTarget(ctx, id); err != nil {
			return err
		}
		return c.reply("removed target #%d", id)
	default:
		return unsupported(cmd)
	}
}

func targetArg(cmd command.Command) (int64, error) {
	raw := cmd.Arg(0)
	if raw == "" {
		raw, _ = cmd.Param("id")
	}
	if raw == "" {
		raw, _ = cmd.Param(ArgTargetID)
	}
	if raw == "" {
		return 0, fmt.Errorf("target %s needs a target id", cmd.Action())
	}
	return targetID(strings.TrimPrefix(raw, "#"))
}

func targetTable(title string, ts []target.Target) event.ResponseTable {
	rows := make([][]string, 0, len(ts))
	for _, t := range ts {
		parent := ""
		if t.HasParent() {
			parent = strconv.FormatInt(t.ParentID, 10)
		}
		rows = append(rows, []string{strconv.FormatInt(t.ID, 10), t.Type.String(), t.Name, parent})
	}
	return event.ResponseTable{Title: title, Headers: []string{"ID", "TYPE", "NAME", "PARENT"}, Rows: rows}
}

func (c *Controller) groupCommand(ctx context.Context, cmd command.Command) error {
	switch cmd.Action() {
	case command.List:
		groups, err := c.store.Groups(ctx)
		if err != nil {
			return err
		}
		rows := make([][]string, 0, len(groups))
		for _, g := range groups {
			rows = append(rows, []string{g.Name, strconv.Itoa(g.Members)})
		}
		c.emit(event.ResponseTable{Title: "groups in " + c.store.Current().Name, Headers: []string{"NAME", "TARGETS"}, Rows: rows})
		return nil
	}

	n, err := required(cmd, "group name")
	if err != nil {
		return err
	}
	switch cmd.Action() {
	case command.Add:
		if _, err := c.store.CreateGroup(ctx, n); err != nil {
			return err
		}
		return c.reply("created group %q", n)
	case command.Show:
		g, err := c.store.GroupByName(ctx, n)
		if err != nil {
			return err
		}
		ts, err := c.store.GroupTargets(ctx, g.ID)
		if err != nil {
			return err
		}
		c.emit(targetTable("group "+g.Name, ts))
		return nil
	case command.Remove:
		if err := c.store.RemoveGroup(ctx, n); err != nil {
			return err
		}
		return c.reply("removed group %q", n)
	default:
		return unsupported(cmd)
	}
}

func (c *Controller) workspaceCommand(ctx context.Context, cmd command.Command) error {
	switch cmd.Action() {
	case command.List:
		all, err := c.store.Workspaces(ctx)
		if err != nil {
			return err
		}
		current := c.store.Current().Name
		rows := make([][]string, 0, len(all))
		for _, ws := range all {
			mark := ""
			if ws.Name == current {
				mark = "*"
			}
			rows = append(rows, []string{ws.Name, mark})
		}
		c.emit(event.ResponseTable{Title: "workspaces", Headers: []string{"NAME", "CURRENT"}, Rows: rows})
		return nil
	case command.Show:
		return c.reply("current workspace: %s", c.store.Current().Name)
	}

	n, err := required(cmd, "workspace name")
	if err != nil {
		return err
	}
	switch cmd.Action() {
	case command.Add:
		if _, err := c.store.CreateWorkspace(ctx, n); err != nil {
			return err
		}
		return c.reply("created workspace %q", n)
	case command.Use:
		ws, err := c.store.UseWorkspace(ctx, n)
		if err != nil {
			return err
		}
		c.log.WithField("workspace", ws.Name).Info("workspace selected")
		return c.reply("using workspace %q", ws.Name)
	case command.Remove:
		if err := c.store.RemoveWorkspace(ctx, n); err != nil {
			return err
		}
		return c.reply("removed workspace %q", n)
	default:
		return unsupported(cmd)
	}
}

func (c *Controller) keystoreCommand(ctx context.Context, cmd command.Command) error {
	if cmd.Action() == command.List {
		secrets, err := c.store.Secrets(ctx)
		if err != nil {
			return err
		}
		rows := make([][]string, 0, len(secrets))
		for _, s := range secrets {
			rows = append(rows, []string{s.Name, mask(s.Value)})
		}
		c.emit(event.ResponseTable{Title: "keystore", Headers: []string{"NAME", "VALUE"}, Rows: rows})
		return nil
	}

	n, err := required(cmd, "key name")
	if err != nil {
		return err
	}
	switch cmd.Action() {
	case command.Add:
		value, ok := cmd.Param("value")
		if !ok {
			value = cmd.Arg(1)
		}
		if value == "" {
			return fmt.Errorf("keystore add needs value=<secret>")
		}
		if err := c.store.PutSecret(ctx, n, value); err != nil {
			return err
		}
		return c.reply("stored key %q", n)
	case command.Remove:
		if err := c.store.RemoveSecret(ctx, n); err != nil {
			return err
		}
		return c.reply("removed key %q", n)
	default:
		return unsupported(cmd)
	}
}

// mask keeps the last four characters of values longer than eight.
func mask(v string) string {
	if len(v) <= 8 {
		return strings.Repeat("*", len(v))
	}
	return strings.Repeat("*", len(v)-4) + v[len(v)-4:]
}

func (c *Controller) linkCommand(ctx context.Context, cmd command.Command) error {
	if cmd.Action() != command.Add && cmd.Action() != command.Remove {
		return unsupported(cmd)
	}
	raw, _ := cmd.Param(ArgTargetID)
	id, err := targetID(raw)
	if err != nil {
		return err
	}
	groupName, _ := cmd.Param(ArgGroup)
	if groupName == "" {
		return fmt.Errorf("link %s needs group=<name>", cmd.Action())
	}
	g, err := c.store.GroupByName(ctx, groupName)
	if err != nil {
		return err
	}

	if cmd.Action() == command.Add {
		if err := c.store.Link(ctx, g.ID, id); err != nil {
			return err
		}
		return c.reply("linked target #%d to group %q", id, g.Name)
	}
	if err := c.store.Unlink(ctx, g.ID, id); err != nil {
		return err
	}
	return c.reply("unlinked target #%d from group %q", id, g.Name)
}

func (c *Controller) export(ctx context.Context, cmd command.Command) error {
	format, err := reports.ParseFormat(cmd.Object().Name)
	if err != nil {
		return err
	}
	ts, err := c.store.Targets(ctx, "")
	if err != nil {
		return err
	}
	memberships, err := c.store.TargetGroups(ctx)
	if err != nil {
		return err
	}

	ws := c.store.Current().Name
	b := reports.NewBuilder().SetMetadata(reports.Metadata{
		GeneratedAt: c.clock().UTC(),
		GeneratedBy: "reconkit " + version.Version,
		Workspace:   ws,
	})
	if title, ok := cmd.Param("title"); ok {
		b.SetTitle(title)
	}
	for _, t := range ts {
		b.AddTarget(t, memberships[t.ID]...)
	}

	path := c.exportPath(cmd, format.Ext())
	if err := b.Build().Export(path, format); err != nil {
		return fmt.Errorf("export %s: %w", format, err)
	}
	c.log.WithFields(logrus.Fields{"path": path, "targets": len(ts)}).Info("workspace exported")
	return c.reply("exported %d targets from %s to %s", len(ts), ws, path)
}
