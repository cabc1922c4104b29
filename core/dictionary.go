package core

import (
	"sort"
	"sync"
)

// Version is reported to the host in the dictionary
const Version = "piodac-0.1.0"

// Dictionary is the self-description the host downloads with identify:
// firmware constants plus the command and response tables.
type Dictionary struct {
	mu         sync.RWMutex
	registry   *CommandRegistry
	version    string
	build      string
	constants  map[string]string
	cachedJSON []byte
}

var globalDictionary = NewDictionary(globalRegistry)

// NewDictionary creates a dictionary over reg
func NewDictionary(reg *CommandRegistry) *Dictionary {
	return &Dictionary{
		registry:  reg,
		version:   Version,
		build:     "go-tinygo",
		constants: make(map[string]string),
	}
}

// GetGlobalDictionary returns the firmware dictionary
func GetGlobalDictionary() *Dictionary {
	return globalDictionary
}

// RegisterConstant adds a constant to the global dictionary
func RegisterConstant(name string, value interface{}) {
	globalDictionary.AddConstant(name, value)
}

// AddConstant adds or replaces a constant and drops the cached encoding
func (d *Dictionary) AddConstant(name string, value interface{}) {
	d.mu.Lock()
	d.constants[name] = valueToString(value)
	d.cachedJSON = nil
	d.mu.Unlock()
}

// SetBuildVersions sets the toolchain description
func (d *Dictionary) SetBuildVersions(build string) {
	d.mu.Lock()
	d.build = build
	d.cachedJSON = nil
	d.mu.Unlock()
}

// BuildDictionary encodes and caches the dictionary. Call it once all
// commands and constants are registered.
func (d *Dictionary) BuildDictionary() {
	// read the registry before taking our own lock
	entries := d.registry.Entries()

	d.mu.Lock()
	d.cachedJSON = d.encodeLocked(entries)
	d.mu.Unlock()
	DebugPrintln("[Dict] built, " + itoa(len(d.cachedJSON)) + " bytes")
}

// Generate returns the JSON dictionary, building it if needed
func (d *Dictionary) Generate() []byte {
	d.mu.RLock()
	cached := d.cachedJSON
	d.mu.RUnlock()
	if cached != nil {
		return cached
	}
	d.BuildDictionary()
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.cachedJSON
}

func (d *Dictionary) encodeLocked(entries []*Command) []byte {
	out := make([]byte, 0, 1024)
	out = append(out, `{"version":`...)
	out = appendJSONString(out, d.version)
	out = append(out, `,"build_versions":`...)
	out = appendJSONString(out, d.build)

	out = append(out, `,"config":{`...)
	names := make([]string, 0, len(d.constants))
	for name := range d.constants {
		names = append(names, name)
	}
	sort.Strings(names)
	for i, name := range names {
		if i > 0 {
			out = append(out, ',')
		}
		out = appendJSONString(out, name)
		out = append(out, ':')
		out = appendJSONString(out, d.constants[name])
	}

	out = append(out, `},"commands":{`...)
	out = appendCommandTable(out, entries, true)
	out = append(out, `},"responses":{`...)
	out = appendCommandTable(out, entries, false)
	out = append(out, `}}`...)
	return out
}

// appendCommandTable writes "signature":id pairs for commands (handler set)
// or responses (no handler), in ID order.
func appendCommandTable(out []byte, entries []*Command, commands bool) []byte {
	first := true
	for _, cmd := range entries {
		if (cmd.Handler != nil) != commands {
			continue
		}
		if !first {
			out = append(out, ',')
		}
		first = false
		out = appendJSONString(out, cmd.Signature())
		out = append(out, ':')
		out = appendUint(out, uint64(cmd.ID))
	}
	return out
}

func appendJSONString(out []byte, s string) []byte {
	out = append(out, '"')
	for i := 0; i < len(s); i++ {
		c := s[i]
		switch {
		case c == '"' || c == '\\':
			out = append(out, '\\', c)
		case c < 0x20:
			out = append(out, '\\', 'u', '0', '0', hexDigit(c>>4), hexDigit(c&0xF))
		default:
			out = append(out, c)
		}
	}
	return append(out, '"')
}

func hexDigit(v byte) byte {
	if v < 10 {
		return '0' + v
	}
	return 'a' + v - 10
}

// GetChunk returns a copy of count bytes of the dictionary starting at offset
func (d *Dictionary) GetChunk(offset uint32, count uint8) []byte {
	data := d.Generate()
	if offset >= uint32(len(data)) {
		return []byte{}
	}
	end := offset + uint32(count)
	if end > uint32(len(data)) {
		end = uint32(len(data))
	}
	// copy, so the transmit path never aliases the cached dictionary
	chunk := make([]byte, end-offset)
	copy(chunk, data[offset:end])
	return chunk
}
