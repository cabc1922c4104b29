package dac

import (
	"encoding/json"
	"fmt"
	"sort"
	"strconv"
	"strings"
)

// Dictionary is the firmware self-description fetched with identify
type Dictionary struct {
	Version       string            `json:"version"`
	BuildVersions string            `json:"build_versions"`
	Config        map[string]string `json:"config"`
	Commands      map[string]int    `json:"commands"`
	Responses     map[string]int    `json:"responses"`
}

// ParseDictionary decodes the JSON dictionary
func ParseDictionary(data []byte) (*Dictionary, error) {
	d := &Dictionary{}
	if err := json.Unmarshal(data, d); err != nil {
		return nil, fmt.Errorf("parse dictionary: %w", err)
	}
	return d, nil
}

// CommandID looks up a host -> device message by name
func (d *Dictionary) CommandID(name string) (uint16, error) {
	return lookup(d.Commands, name)
}

// ResponseID looks up a device -> host message by name
func (d *Dictionary) ResponseID(name string) (uint16, error) {
	return lookup(d.Responses, name)
}

// lookup matches the name part of "name arg=%u ..." signatures
func lookup(table map[string]int, name string) (uint16, error) {
	for sig, id := range table {
		if sigName, _, _ := strings.Cut(sig, " "); sigName == name {
			return uint16(id), nil
		}
	}
	return 0, fmt.Errorf("dictionary has no message %q", name)
}

// Uint returns a numeric config constant
func (d *Dictionary) Uint(name string) (uint64, error) {
	v, ok := d.Config[name]
	if !ok {
		return 0, fmt.Errorf("dictionary has no constant %q", name)
	}
	return strconv.ParseUint(v, 10, 64)
}

// Summary renders the dictionary for display
func (d *Dictionary) Summary() string {
	var b strings.Builder
	fmt.Fprintf(&b, "Version: %s\nBuild:   %s\n", d.Version, d.BuildVersions)

	b.WriteString("\nConfig:\n")
	keys := make([]string, 0, len(d.Config))
	for k := range d.Config {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		fmt.Fprintf(&b, "  %-12s = %s\n", k, d.Config[k])
	}

	writeTable(&b, "Commands", d.Commands)
	writeTable(&b, "Responses", d.Responses)
	return b.String()
}

func writeTable(b *strings.Builder, title string, table map[string]int) {
	type entry struct {
		sig string
		id  int
	}
	entries := make([]entry, 0, len(table))
	for sig, id := range table {
		entries = append(entries, entry{sig, id})
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].id < entries[j].id })

	fmt.Fprintf(b, "\n%s (%d):\n", title, len(entries))
	for _, e := range entries {
		fmt.Fprintf(b, "  [%2d] %s\n", e.id, e.sig)
	}
}
