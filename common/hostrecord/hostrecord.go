// Package hostrecord encodes planned nodes as Ansible inventory host lines and
// reads them back.
package hostrecord

import (
	"fmt"
	"strings"

	"github.com/hpc-scale/prepare-scale/common/inivalue"
	"github.com/hpc-scale/prepare-scale/common/topologycalc"
	"github.com/pkg/errors"
)

const (
	PythonInterpreter = "/usr/bin/python3"

	sshCommonArgsKey = "ansible_ssh_common_args"
)

// Bastion is the jump host used to reach the cluster nodes.
type Bastion struct {
	User    string
	Address string
	KeyFile string
}

// SSHCommonArgs returns the ssh arguments proxying through the bastion.
func (b *Bastion) SSHCommonArgs() string {
	proxy := fmt.Sprintf(
		"ssh -p 22 -o StrictHostKeyChecking=no -o UserKnownHostsFile=/dev/null -W %%h:%%p %s@%s -i %s",
		b.User, b.Address, b.KeyFile)
	return "-o ControlMaster=auto -o ControlPersist=30m -o UserKnownHostsFile=/dev/null " +
		"-o StrictHostKeyChecking=no -o ProxyCommand=\"" + proxy + "\""
}

type Options struct {
	// Bastion is nil when the nodes are reachable directly.
	Bastion *Bastion
}

// Record is a parsed host line.
type Record struct {
	Node              *topologycalc.OutputNode
	PythonInterpreter string
	SSHCommonArgs     string
}

// Encode renders node as a single host line.
func Encode(node *topologycalc.OutputNode, opts Options) string {
	var sb strings.Builder
	sb.WriteString(node.Address)

	write := func(key, value string) {
		sb.WriteByte(' ')
		sb.WriteString(key)
		sb.WriteByte('=')
		sb.WriteString(value)
	}

	write("scale_cluster_quorum", inivalue.Bool(node.Quorum))
	write("scale_cluster_manager", inivalue.Bool(node.Manager))
	write("scale_cluster_gui", inivalue.Bool(node.GUI))
	write("scale_zimon_collector", inivalue.Bool(node.Collector))
	write("is_nsd_server", inivalue.Bool(node.NSD))
	write("is_admin_node", inivalue.Bool(node.Admin))
	write("ansible_user", node.User)
	write("ansible_ssh_private_key_file", node.KeyFile)
	write("ansible_python_interpreter", PythonInterpreter)
	write("scale_nodeclass", node.Class)
	write("scale_daemon_nodename", node.DaemonName)
	write("scale_protocol_node", inivalue.Bool(node.Protocol))
	write("scale_cluster_gateway", inivalue.Bool(node.Gateway))

	if opts.Bastion != nil {
		write(sshCommonArgsKey, "'"+opts.Bastion.SSHCommonArgs()+"'")
	} else {
		write(sshCommonArgsKey, "")
	}

	return sb.String()
}

// Parse reads a host line produced by Encode.
func Parse(line string) (*Record, error) {
	tokens, err := split(line)
	if err != nil {
		return nil, err
	}
	if len(tokens) == 0 || strings.Contains(tokens[0], "=") {
		return nil, errors.Errorf("host line %q does not start with an address", line)
	}

	node := &topologycalc.OutputNode{Address: tokens[0]}
	rec := &Record{Node: node}

	flags := map[string]*bool{
		"scale_cluster_quorum":  &node.Quorum,
		"scale_cluster_manager": &node.Manager,
		"scale_cluster_gui":     &node.GUI,
		"scale_zimon_collector": &node.Collector,
		"is_nsd_server":         &node.NSD,
		"is_admin_node":         &node.Admin,
		"scale_protocol_node":   &node.Protocol,
		"scale_cluster_gateway": &node.Gateway,
	}
	values := map[string]*string{
		"ansible_user":                 &node.User,
		"ansible_ssh_private_key_file": &node.KeyFile,
		"ansible_python_interpreter":   &rec.PythonInterpreter,
		"scale_nodeclass":              &node.Class,
		"scale_daemon_nodename":        &node.DaemonName,
		sshCommonArgsKey:               &rec.SSHCommonArgs,
	}

	for _, token := range tokens[1:] {
		key, value, ok := strings.Cut(token, "=")
		if !ok {
			return nil, errors.Errorf("host line token %q is not a key=value pair", token)
		}

		if flag, ok := flags[key]; ok {
			b, err := inivalue.ParseBool(value)
			if err != nil {
				return nil, errors.Wrapf(err, "host line key %s", key)
			}
			*flag = b
			continue
		}

		if dst, ok := values[key]; ok {
			*dst = unquote(value)
		}
	}

	return rec, nil
}

// split breaks a line on spaces outside of quotes. Quotes are kept.
func split(line string) ([]string, error) {
	var tokens []string
	var cur strings.Builder
	var quote rune

	for _, r := range line {
		switch {
		case quote != 0:
			if r == quote {
				quote = 0
			}
			cur.WriteRune(r)
		case r == '\'' || r == '"':
			quote = r
			cur.WriteRune(r)
		case r == ' ' || r == '\t':
			if cur.Len() > 0 {
				tokens = append(tokens, cur.String())
				cur.Reset()
			}
		default:
			cur.WriteRune(r)
		}
	}
	if quote != 0 {
		return nil, errors.Errorf("unterminated %c quote in host line", quote)
	}
	if cur.Len() > 0 {
		tokens = append(tokens, cur.String())
	}

	return tokens, nil
}

func unquote(value string) string {
	if len(value) >= 2 && value[0] == '\'' && value[len(value)-1] == '\'' {
		return value[1 : len(value)-1]
	}
	return value
}
