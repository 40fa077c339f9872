package hostrecord

import (
	"testing"

	"github.com/hpc-scale/prepare-scale/common/nodeclass"
	"github.com/hpc-scale/prepare-scale/common/topologycalc"
	"github.com/stretchr/testify/require"
)

func testNode() *topologycalc.OutputNode {
	return &topologycalc.OutputNode{
		Address:    "10.241.0.6",
		DaemonName: "10.241.0.6",
		Quorum:     true,
		Manager:    true,
		GUI:        true,
		Collector:  true,
		Admin:      true,
		Class:      nodeclass.Management,
		User:       "root",
		KeyFile:    "/root/.ssh/id_rsa",
	}
}

func TestEncode(t *testing.T) {
	line := Encode(testNode(), Options{})
	require.Equal(t, "10.241.0.6 scale_cluster_quorum=True scale_cluster_manager=True scale_cluster_gui=True "+
		"scale_zimon_collector=True is_nsd_server=False is_admin_node=True ansible_user=root "+
		"ansible_ssh_private_key_file=/root/.ssh/id_rsa ansible_python_interpreter=/usr/bin/python3 "+
		"scale_nodeclass=managementnodegrp scale_daemon_nodename=10.241.0.6 scale_protocol_node=False "+
		"scale_cluster_gateway=False ansible_ssh_common_args=", line)
}

func TestEncodeBastion(t *testing.T) {
	bastion := &Bastion{User: "ubuntu", Address: "150.239.0.10", KeyFile: "/keys/bastion"}
	line := Encode(testNode(), Options{Bastion: bastion})

	require.Contains(t, line, "ansible_ssh_common_args='-o ControlMaster=auto -o ControlPersist=30m "+
		"-o UserKnownHostsFile=/dev/null -o StrictHostKeyChecking=no -o ProxyCommand=\"ssh -p 22 "+
		"-o StrictHostKeyChecking=no -o UserKnownHostsFile=/dev/null -W %h:%p ubuntu@150.239.0.10 "+
		"-i /keys/bastion\"'")
}

func TestRoundTrip(t *testing.T) {
	bastion := &Bastion{User: "ubuntu", Address: "150.239.0.10", KeyFile: "/keys/bastion"}

	nodes := []*topologycalc.OutputNode{
		testNode(),
		{
			Address:    "scale-strg-003.internal",
			DaemonName: "scale-strg-003",
			Quorum:     true,
			NSD:        true,
			Class:      nodeclass.StorageDesc,
			User:       "root",
			KeyFile:    "/root/.ssh/id_rsa",
		},
		{
			Address:    "10.241.0.9",
			DaemonName: "10.241.0.9",
			NSD:        true,
			Protocol:   true,
			Gateway:    true,
			Manager:    true,
			Admin:      true,
			Class:      nodeclass.StorageProtocol,
			User:       "root",
			KeyFile:    "/root/.ssh/id_rsa",
		},
	}

	for _, opts := range []Options{{}, {Bastion: bastion}} {
		for _, node := range nodes {
			rec, err := Parse(Encode(node, opts))
			require.NoError(t, err)
			require.Equal(t, node, rec.Node)
			require.Equal(t, PythonInterpreter, rec.PythonInterpreter)
			if opts.Bastion != nil {
				require.Equal(t, bastion.SSHCommonArgs(), rec.SSHCommonArgs)
			} else {
				require.Empty(t, rec.SSHCommonArgs)
			}
		}
	}
}

func TestParseErrors(t *testing.T) {
	_, err := Parse("")
	require.Error(t, err)

	_, err = Parse("scale_cluster_quorum=True")
	require.Error(t, err)

	_, err = Parse("10.0.0.1 scale_cluster_quorum=maybe")
	require.Error(t, err)

	_, err = Parse("10.0.0.1 dangling")
	require.Error(t, err)

	_, err = Parse("10.0.0.1 ansible_ssh_common_args='-o Foo")
	require.Error(t, err)
}
