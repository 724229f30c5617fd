package node

import "strings"

var helpLines = []string{
	"Commands:",
	"  help                                      show this help",
	"  module list                               list available modules",
	"  module help <name>                        show module arguments",
	"  module run <name> target_id=<id> [k=v]    run a module against a target (group=<name> links results)",
	"  target add <type> name=<name> [k=v]       add a target (company, person, domain, host, service, email)",
	"  target list [type] | show <id> | remove <id>",
	"  group add|show|remove <name> | group list",
	"  link add|remove target_id=<id> group=<name>",
	"  workspace add|use|show|remove <name> | workspace list",
	"  keystore add <name> value=<secret> | keystore list | keystore remove <name>",
	"  export <json|yaml|md> [path=<file>] [title=<text>]  export targets of the current workspace",
	"  exit                                      leave the console",
}

// Help renders the command reference.
func Help() string {
	return strings.Join(helpLines, "\n")
}
