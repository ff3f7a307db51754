package storage

import (
	"fmt"
	"strings"

	"github.com/open-edge-platform/host-servicer/internal/config"
	"github.com/open-edge-platform/host-servicer/internal/enginerr"
	"github.com/open-edge-platform/host-servicer/internal/utils/shell"
)

// AssembleRaidArray runs mdadm to create array r over memberPaths (in
// declared member order) and returns its device path, per spec §4.1: "for
// each declared array, run assembly on member device paths; record id ->
// device-path."
func AssembleRaidArray(r config.RaidArray, memberPaths []string) (string, error) {
	if len(memberPaths) != len(r.Members) {
		return "", enginerr.New(enginerr.Internal, "storage.AssembleRaidArray",
			fmt.Sprintf("raid array %q: expected %d member paths, got %d", r.ID, len(r.Members), len(memberPaths)))
	}

	devicePath := fmt.Sprintf("/dev/md/%s", r.ID)
	cmd := fmt.Sprintf("mdadm --create %s --run --level=%s --raid-devices=%d %s",
		devicePath, strings.TrimPrefix(string(r.Level), "raid"), len(memberPaths), strings.Join(memberPaths, " "))

	if _, err := shell.ExecCmd(cmd, true, "", nil); err != nil {
		return "", enginerr.Wrap(enginerr.Servicing, "storage.AssembleRaidArray",
			fmt.Sprintf("mdadm create failed for array %q", r.ID), err)
	}
	return devicePath, nil
}

// RenderMdadmConf produces /etc/mdadm/mdadm.conf by invoking
// `mdadm --examine --scan`, per spec §6. Returns empty content (no file
// should be written) when no software RAID array exists.
func RenderMdadmConf(cfg *config.HostConfiguration) (string, error) {
	if len(cfg.RaidArrays) == 0 {
		return "", nil
	}

	out, err := shell.ExecCmd("mdadm --examine --scan", true, "", nil)
	if err != nil {
		return "", enginerr.Wrap(enginerr.Servicing, "storage.RenderMdadmConf", "mdadm --examine --scan failed", err)
	}

	var b strings.Builder
	b.WriteString("# generated by hostsvcd, do not edit\n")
	b.WriteString(out)
	if !strings.HasSuffix(out, "\n") {
		b.WriteString("\n")
	}
	return b.String(), nil
}
