package manifest

import "fmt"

// Command is the directive kind selected by a step keyword.
type Command int

const (
	CommandUnknown Command = iota
	CommandMove
	CommandMerge
	CommandExtract
	CommandCopy
	CommandChmodExecutable
	CommandExecute
	CommandWriteFile
	CommandWriteJSON
	CommandWriteConfig
	CommandInputMenu
	CommandInsertDisc
	CommandTask
)

// Task is the compatibility-runtime action of a CommandTask directive.
type Task int

const (
	TaskNone Task = iota
	TaskUnknown
	TaskWineExec
	TaskWinetricks
	TaskCreatePrefix
	TaskWineKill
	TaskSetRegedit
)

// field names the JSON keys that fill one argument slot. The first present
// name wins. Optional slots resolve to "" when absent; raw slots keep any JSON
// value as its JSON text.
type field struct {
	names    []string
	optional bool
	raw      bool
}

func req(names ...string) field { return field{names: names} }
func opt(names ...string) field { return field{names: names, optional: true} }

type commandSchema struct {
	command Command
	keyword string
	fields  []field
	// scalarBody lets the step value itself fill the first slot ("chmodx": "path").
	scalarBody bool
}

type taskSchema struct {
	task    Task
	keyword string
	fields  []field
}

// commandTable is in priority order: when a step carries more than one
// keyword, the earliest entry here wins regardless of JSON key order.
var commandTable = []commandSchema{
	{command: CommandMove, keyword: "move", fields: []field{req("src"), req("dst")}},
	{command: CommandMerge, keyword: "merge", fields: []field{req("src"), req("dst")}},
	{command: CommandExtract, keyword: "extract", fields: []field{req("file"), opt("dst")}},
	{command: CommandCopy, keyword: "copy", fields: []field{req("src"), req("dst")}},
	{command: CommandChmodExecutable, keyword: "chmodx", fields: []field{opt("file")}, scalarBody: true},
	{command: CommandExecute, keyword: "execute", fields: []field{req("command", "file")}},
	{command: CommandWriteFile, keyword: "write_file", fields: []field{req("file"), req("content")}},
	{command: CommandWriteJSON, keyword: "write_json", fields: []field{req("file"), {names: []string{"data"}, raw: true}}},
	{command: CommandWriteConfig, keyword: "write_config", fields: []field{req("file"), req("section"), req("key"), req("value")}},
	{command: CommandInputMenu, keyword: "input_menu", fields: []field{req("id"), opt("preselect"), opt("description")}},
	{command: CommandInsertDisc, keyword: "insert-disc", fields: []field{req("requires")}},
	{command: CommandTask, keyword: "task"},
}

// taskTable is matched against a task step's "name"; the name itself is
// dispatch input and never becomes an argument.
var taskTable = []taskSchema{
	{task: TaskWineExec, keyword: "wineexec", fields: []field{req("executable")}},
	{task: TaskWinetricks, keyword: "winetricks", fields: []field{req("app"), opt("prefix")}},
	{task: TaskCreatePrefix, keyword: "create_prefix", fields: []field{req("prefix")}},
	{task: TaskWineKill, keyword: "winekill", fields: []field{req("prefix")}},
	{task: TaskSetRegedit, keyword: "set_regedit", fields: []field{req("path"), req("key"), req("value")}},
}

func lookupCommand(c Command) (commandSchema, bool) {
	for _, cs := range commandTable {
		if cs.command == c {
			return cs, true
		}
	}
	return commandSchema{}, false
}

func lookupTask(t Task) (taskSchema, bool) {
	for _, ts := range taskTable {
		if ts.task == t {
			return ts, true
		}
	}
	return taskSchema{}, false
}

func lookupTaskKeyword(name string) (taskSchema, bool) {
	for _, ts := range taskTable {
		if ts.keyword == name {
			return ts, true
		}
	}
	return taskSchema{}, false
}

// Arity is the number of arguments a directive of (c, t) carries.
func Arity(c Command, t Task) int {
	if c == CommandTask {
		ts, ok := lookupTask(t)
		if !ok {
			return 0
		}
		return len(ts.fields)
	}
	if t != TaskNone {
		return 0
	}
	cs, ok := lookupCommand(c)
	if !ok {
		return 0
	}
	return len(cs.fields)
}

func (c Command) Keyword() string {
	if cs, ok := lookupCommand(c); ok {
		return cs.keyword
	}
	return "unknown"
}

func (c Command) String() string { return c.Keyword() }

func (c Command) MarshalText() ([]byte, error) { return []byte(c.Keyword()), nil }

func (c *Command) UnmarshalText(b []byte) error {
	kw := string(b)
	if kw == "unknown" {
		*c = CommandUnknown
		return nil
	}
	for _, cs := range commandTable {
		if cs.keyword == kw {
			*c = cs.command
			return nil
		}
	}
	return fmt.Errorf("unknown command keyword %q", kw)
}

func (t Task) Keyword() string {
	switch t {
	case TaskNone:
		return ""
	case TaskUnknown:
		return "unknown"
	}
	if ts, ok := lookupTask(t); ok {
		return ts.keyword
	}
	return "unknown"
}

func (t Task) String() string { return t.Keyword() }

func (t Task) MarshalText() ([]byte, error) { return []byte(t.Keyword()), nil }

func (t *Task) UnmarshalText(b []byte) error {
	switch kw := string(b); kw {
	case "":
		*t = TaskNone
	case "unknown":
		*t = TaskUnknown
	default:
		ts, ok := lookupTaskKeyword(kw)
		if !ok {
			return fmt.Errorf("unknown task keyword %q", kw)
		}
		*t = ts.task
	}
	return nil
}

// SchemaEntry describes one (command, task) pair for contract output and tests.
type SchemaEntry struct {
	Command Command  `json:"command"`
	Task    Task     `json:"task,omitempty"`
	Keyword string   `json:"keyword"`
	Fields  []string `json:"fields"`
	// Optional lists the fields that may be absent.
	Optional []string `json:"optional,omitempty"`
}

// Schema lists every executable (command, task) pair in table order. Each
// Fields entry is the first accepted JSON key for that argument slot.
func Schema() []SchemaEntry {
	out := make([]SchemaEntry, 0, len(commandTable)+len(taskTable))
	for _, cs := range commandTable {
		if cs.command == CommandTask {
			for _, ts := range taskTable {
				out = append(out, schemaEntry(CommandTask, ts.task, ts.keyword, ts.fields))
			}
			continue
		}
		out = append(out, schemaEntry(cs.command, TaskNone, cs.keyword, cs.fields))
	}
	return out
}

func schemaEntry(c Command, t Task, keyword string, fields []field) SchemaEntry {
	e := SchemaEntry{Command: c, Task: t, Keyword: keyword, Fields: make([]string, 0, len(fields))}
	for _, f := range fields {
		e.Fields = append(e.Fields, f.names[0])
		if f.optional {
			e.Optional = append(e.Optional, f.names[0])
		}
	}
	return e
}

// CommandKeywords returns the command keyword table in priority order.
func CommandKeywords() []string {
	out := make([]string, 0, len(commandTable))
	for _, cs := range commandTable {
		out = append(out, cs.keyword)
	}
	return out
}

// TaskKeywords returns the task keyword table in declared order.
func TaskKeywords() []string {
	out := make([]string, 0, len(taskTable))
	for _, ts := range taskTable {
		out = append(out, ts.keyword)
	}
	return out
}
