package ansible

import (
	"bytes"
	"path/filepath"
	"text/template"

	"github.com/pkg/errors"
	"go.uber.org/zap"
)

// Playbooks use [[ ]] delimiters so the Jinja expressions pass through.
const installPlaybook = `---
# Ensure provisioned VMs are up and passwordless SSH setup has been
# completed and operational
- name: Check passwordless SSH connection is setup
  hosts: [[ .Hosts ]]
  any_errors_fatal: true
  gather_facts: false
  connection: local
  tasks:
    - name: Check passwordless SSH on all scale inventory hosts
      shell: ssh {{ ansible_ssh_common_args }} -i [[ .KeyFile ]] root@{{ inventory_hostname }} "echo PASSWDLESS_SSH_ENABLED"
      register: result
      until: result.stdout.find("PASSWDLESS_SSH_ENABLED") != -1
      retries: 240
      delay: 10

# Validate Scale packages existence to skip node role
- name: Check if Scale packages already installed on node
  hosts: [[ .Hosts ]]
  gather_facts: false
  vars:
    scale_packages_installed: true
    scale_packages:
      - gpfs.base
      - gpfs.adv
      - gpfs.crypto
      - gpfs.docs
      - gpfs.gpl
      - gpfs.gskit
      - gpfs.gss.pmcollector
      - gpfs.gss.pmsensors
      - gpfs.gui
      - gpfs.java
  tasks:
    - name: Check if scale packages are already installed
      shell: rpm -q "{{ item }}"
      loop: "{{ scale_packages }}"
      register: scale_packages_check
      ignore_errors: true

    - name: Set scale packages installation variable
      set_fact:
        scale_packages_installed: false
      when: item.rc != 0
      loop: "{{ scale_packages_check.results }}"
      ignore_errors: true

# Install and config Spectrum Scale on nodes
- hosts: [[ .Hosts ]]
  collections:
    - ibm.spectrum_scale
  any_errors_fatal: true
  vars:
    - scale_node_update_check: false
  pre_tasks:
    - include_vars: group_vars/[[ .ClusterConfig ]]
  roles:
    - core_prepare
    - { role: core_install, when: "scale_packages_installed is false" }
    - core_configure
    - { role: gui_install, when: "scale_packages_installed is false" }
    - gui_configure
    - gui_verify
    - perfmon_prepare
    - { role: perfmon_install, when: "scale_packages_installed is false" }
    - perfmon_configure
    - perfmon_verify
    - { role: mrot_config, when: enable_mrot }
    - { role: nfs_prepare, when: enable_ces }
    - { role: nfs_install, when: "enable_ces and scale_packages_installed is false" }
    - { role: nfs_ic_failover, when: enable_ces }
    - { role: nfs_configure, when: enable_ces }
    - { role: nfs_route_configure, when: enable_ces }
    - { role: nfs_verify, when: enable_ces }
    - { role: auth_prepare, when: enable_ces }
    - { role: auth_configure, when: enable_ldap or enable_ces }
    - { role: nfs_file_share, when: enable_ces }
    - { role: afm_cos_prepare, when: enable_afm }
    - { role: afm_cos_install, when: "enable_afm and scale_packages_installed is false" }
    - { role: afm_cos_configure, when: enable_afm }
    - { role: kp_encryption_prepare, when: "enable_key_protect and scale_cluster_type == 'storage'" }
    - { role: kp_encryption_configure, when: enable_key_protect }
    - { role: kp_encryption_apply, when: "enable_key_protect and scale_cluster_type == 'storage'" }
`

const packerPlaybook = `---
# Install and config Spectrum Scale on nodes
- hosts: [[ .Hosts ]]
  collections:
    - ibm.spectrum_scale
  any_errors_fatal: true
  pre_tasks:
    - include_vars: group_vars/[[ .ClusterConfig ]]
  roles:
    - core_configure
    - gui_configure
    - gui_verify
    - perfmon_configure
    - perfmon_verify
`

const noGUIPlaybook = `---
# Install and config Spectrum Scale on nodes
- hosts: [[ .Hosts ]]
  collections:
    - ibm.spectrum_scale
  any_errors_fatal: true
  pre_tasks:
    - include_vars: group_vars/[[ .ClusterConfig ]]
  roles:
    - core_prepare
    - core_install
    - core_configure
`

const noGUIPackerPlaybook = `---
# Install and config Spectrum Scale on nodes
- hosts: [[ .Hosts ]]
  collections:
    - ibm.spectrum_scale
  any_errors_fatal: true
  pre_tasks:
    - include_vars: group_vars/[[ .ClusterConfig ]]
  roles:
    - core_configure
`

const encryptionGKLMPlaybookText = `---
# Encryption setup for the key servers
- hosts: localhost
  collections:
    - ibm.spectrum_scale
  any_errors_fatal: true
  roles:
    - encryption_prepare
`

const encryptionClusterPlaybookText = `---
# Enabling encryption on Storage Scale
- hosts: [[ .Hosts ]]
  collections:
    - ibm.spectrum_scale
  any_errors_fatal: true
  roles:
    - encryption_configure
`

type playbookData struct {
	Hosts         string
	ClusterConfig string
	KeyFile       string
}

// playbookText picks the install playbook variant.
func playbookText(usingPackerImage, usingRestInitialization bool) (string, string) {
	switch {
	case !usingPackerImage && usingRestInitialization:
		return "install", installPlaybook
	case usingPackerImage && usingRestInitialization:
		return "packer", packerPlaybook
	case !usingPackerImage && !usingRestInitialization:
		return "nogui", noGUIPlaybook
	default:
		return "nogui-packer", noGUIPackerPlaybook
	}
}

func renderTemplate(name, text string, data *playbookData) ([]byte, error) {
	tmpl, err := template.New(name).Delims("[[", "]]").Option("missingkey=error").Parse(text)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to parse %s playbook", name)
	}

	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, data); err != nil {
		return nil, errors.Wrapf(err, "failed to render %s playbook", name)
	}
	return buf.Bytes(), nil
}

func (w *Writer) renderPlaybook(clusterType string) ([]byte, error) {
	name, text := playbookText(w.opts.UsingPackerImage, w.opts.UsingRestInitialization)
	return renderTemplate(name, text, &playbookData{
		Hosts:         hostsGroup,
		ClusterConfig: clusterType + "_cluster_config.yaml",
		KeyFile:       w.opts.InstancePrivateKey,
	})
}

func (w *Writer) writePlaybook(path, clusterType string) error {
	data, err := w.renderPlaybook(clusterType)
	if err != nil {
		return err
	}

	w.logger.Debug("playbook content", zap.String("path", path), zap.ByteString("content", data))
	return writeFile(path, data)
}

func (w *Writer) writeEncryptionPlaybooks(paths []string) error {
	if len(paths) == 0 {
		return nil
	}

	texts := map[string]string{
		encryptionGKLMPlaybook:    encryptionGKLMPlaybookText,
		encryptionClusterPlaybook: encryptionClusterPlaybookText,
	}

	for _, path := range paths {
		name := filepath.Base(path)
		data, err := renderTemplate(name, texts[name], &playbookData{Hosts: hostsGroup})
		if err != nil {
			return err
		}
		if err := writeFile(path, data); err != nil {
			return err
		}
	}

	w.logger.Info("wrote encryption playbooks", zap.Strings("paths", paths))
	return nil
}
